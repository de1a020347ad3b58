package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/models"
)

const mindmapColumns = `id, title, description, nodes, connections, author, is_public, tags, template, category, created_at, updated_at`

// PublicQuery filters and paginates the public gallery.
type PublicQuery struct {
	Category models.Category // empty means any
	Search   string          // empty means no text filter
	Limit    int
	Offset   int
}

// InsertMindMap stores a new document. m.ID must be set.
func (db *DB) InsertMindMap(ctx context.Context, m *models.MindMap) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transient("storage: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := insertMindMap(ctx, tx, m); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Transient("storage: commit", err)
	}
	return nil
}

// GetMindMap returns the document with id or apperr.ErrNotFound.
func (db *DB) GetMindMap(ctx context.Context, id string) (*models.MindMap, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+mindmapColumns+` FROM mindmaps WHERE id = ?`, id)
	m, err := scanMindMap(row)
	if err != nil {
		return nil, classify("storage: get mindmap", err)
	}
	return m, nil
}

// UpdateMindMap replaces every mutable column of an existing document.
func (db *DB) UpdateMindMap(ctx context.Context, m *models.MindMap) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transient("storage: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := updateMindMap(ctx, tx, m); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Transient("storage: commit", err)
	}
	return nil
}

// DeleteMindMap permanently removes a document.
func (db *DB) DeleteMindMap(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transient("storage: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteMindMap(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Transient("storage: commit", err)
	}
	return nil
}

// ListByAuthor returns an author's documents, most recently updated first,
// and the total number of documents the author owns.
func (db *DB) ListByAuthor(ctx context.Context, author string, limit, offset int) ([]models.MindMap, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM mindmaps WHERE author = ?`, author).Scan(&total); err != nil {
		return nil, 0, classify("storage: count by author", err)
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+mindmapColumns+`
		FROM mindmaps
		WHERE author = ?
		ORDER BY updated_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, author, limit, offset)
	if err != nil {
		return nil, 0, classify("storage: list by author", err)
	}
	out, err := collectMindMaps(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListPublic returns public documents matching q, most recently created
// first, and the total number of matches.
func (db *DB) ListPublic(ctx context.Context, q PublicQuery) ([]models.MindMap, int, error) {
	where := []string{"is_public = 1"}
	var args []any
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(q.Category))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		clause, cargs := searchClause(s)
		where = append(where, clause)
		args = append(args, cargs...)
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM mindmaps WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, classify("storage: count public", err)
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+mindmapColumns+`
		FROM mindmaps
		WHERE `+cond+`
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, classify("storage: list public", err)
	}
	out, err := collectMindMaps(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// ListTemplates returns every public template, most recently created first.
func (db *DB) ListTemplates(ctx context.Context) ([]models.MindMap, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+mindmapColumns+`
		FROM mindmaps
		WHERE template = 1 AND is_public = 1
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, classify("storage: list templates", err)
	}
	return collectMindMaps(rows)
}

func insertMindMap(ctx context.Context, tx *sql.Tx, m *models.MindMap) error {
	nodes, conns, tags, err := encodeGraph(m)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO mindmaps (`+mindmapColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Title, m.Description, nodes, conns, m.Author, m.IsPublic, tags, m.Template,
		string(m.Category), m.CreatedAt.UnixNano(), m.UpdatedAt.UnixNano())
	if err != nil {
		return classify("storage: insert mindmap", err)
	}
	return ftsUpsert(tx, m.ID, m.Title, m.Description, m.Tags)
}

func updateMindMap(ctx context.Context, tx *sql.Tx, m *models.MindMap) error {
	nodes, conns, tags, err := encodeGraph(m)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE mindmaps SET
			title       = ?,
			description = ?,
			nodes       = ?,
			connections = ?,
			is_public   = ?,
			tags        = ?,
			template    = ?,
			category    = ?,
			updated_at  = ?
		WHERE id = ?
	`, m.Title, m.Description, nodes, conns, m.IsPublic, tags, m.Template, string(m.Category),
		m.UpdatedAt.UnixNano(), m.ID)
	if err != nil {
		return classify("storage: update mindmap", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: update mindmap %s: %w", m.ID, apperr.ErrNotFound)
	}
	return ftsUpsert(tx, m.ID, m.Title, m.Description, m.Tags)
}

func deleteMindMap(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM mindmaps WHERE id = ?`, id)
	if err != nil {
		return classify("storage: delete mindmap", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage: delete mindmap %s: %w", id, apperr.ErrNotFound)
	}
	ftsDelete(tx, id)
	return nil
}

func encodeGraph(m *models.MindMap) (nodes, conns, tags string, err error) {
	nb, err := json.Marshal(nonNil(m.Nodes))
	if err != nil {
		return "", "", "", fmt.Errorf("storage: encode nodes: %w", err)
	}
	cb, err := json.Marshal(nonNil(m.Connections))
	if err != nil {
		return "", "", "", fmt.Errorf("storage: encode connections: %w", err)
	}
	tb, err := json.Marshal(nonNil(m.Tags))
	if err != nil {
		return "", "", "", fmt.Errorf("storage: encode tags: %w", err)
	}
	return string(nb), string(cb), string(tb), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMindMap(s scanner) (*models.MindMap, error) {
	var (
		m                  models.MindMap
		nodes, conns, tags string
		category           string
		created, updated   int64
	)
	if err := s.Scan(&m.ID, &m.Title, &m.Description, &nodes, &conns, &m.Author, &m.IsPublic,
		&tags, &m.Template, &category, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(nodes), &m.Nodes); err != nil {
		return nil, fmt.Errorf("storage: decode nodes of %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(conns), &m.Connections); err != nil {
		return nil, fmt.Errorf("storage: decode connections of %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return nil, fmt.Errorf("storage: decode tags of %s: %w", m.ID, err)
	}
	m.Category = models.Category(category)
	m.CreatedAt = time.Unix(0, created).UTC()
	m.UpdatedAt = time.Unix(0, updated).UTC()
	m.Nodes = nonNil(m.Nodes)
	m.Connections = nonNil(m.Connections)
	m.Tags = nonNil(m.Tags)
	return &m, nil
}

func collectMindMaps(rows *sql.Rows) ([]models.MindMap, error) {
	defer rows.Close()
	out := []models.MindMap{}
	for rows.Next() {
		m, err := scanMindMap(rows)
		if err != nil {
			return nil, classify("storage: scan mindmap", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("storage: iterate mindmaps", err)
	}
	return out, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
