package storage

import (
	"context"

	"github.com/starford/mindmaps/internal/apperr"
	"github.com/starford/mindmaps/internal/models"
)

// TemplateSource records which file a template document was synced from.
type TemplateSource struct {
	Slug string
	// Path is the file the template was last read from, relative to the
	// templates directory.
	Path      string
	MindMapID string
	Checksum  string
}

// TemplateSources returns every synced template source keyed by slug.
func (db *DB) TemplateSources(ctx context.Context) (map[string]TemplateSource, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT slug, path, mindmap_id, checksum FROM template_sources`)
	if err != nil {
		return nil, classify("storage: template sources", err)
	}
	defer rows.Close()
	out := make(map[string]TemplateSource)
	for rows.Next() {
		var s TemplateSource
		if err := rows.Scan(&s.Slug, &s.Path, &s.MindMapID, &s.Checksum); err != nil {
			return nil, classify("storage: scan template source", err)
		}
		out[s.Slug] = s
	}
	return out, classify("storage: iterate template sources", rows.Err())
}

// UpsertTemplate inserts or replaces a template document and its source
// record in one transaction. The document keeps its original CreatedAt
// when it already exists.
func (db *DB) UpsertTemplate(ctx context.Context, src TemplateSource, m *models.MindMap) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transient("storage: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM mindmaps WHERE id = ?`, m.ID).Scan(&exists); err != nil {
		return classify("storage: check template", err)
	}
	if exists > 0 {
		err = updateMindMap(ctx, tx, m)
	} else {
		err = insertMindMap(ctx, tx, m)
	}
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO template_sources (slug, path, mindmap_id, checksum)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			path       = excluded.path,
			mindmap_id = excluded.mindmap_id,
			checksum   = excluded.checksum
	`, src.Slug, src.Path, src.MindMapID, src.Checksum)
	if err != nil {
		return classify("storage: upsert template source", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Transient("storage: commit", err)
	}
	return nil
}

// DeleteTemplate removes a template document and its source record. Either
// both are removed or neither is.
func (db *DB) DeleteTemplate(ctx context.Context, src TemplateSource) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Transient("storage: begin tx", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM mindmaps WHERE id = ? AND template = 1`, src.MindMapID); err != nil {
		return classify("storage: delete template", err)
	}
	ftsDelete(tx, src.MindMapID)
	if _, err := tx.ExecContext(ctx, `DELETE FROM template_sources WHERE slug = ?`, src.Slug); err != nil {
		return classify("storage: delete template source", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Transient("storage: commit", err)
	}
	return nil
}
