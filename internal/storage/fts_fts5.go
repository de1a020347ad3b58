//go:build sqlite_fts5

package storage

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS mindmaps_fts USING fts5(
			id UNINDEXED,
			title,
			description,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, id, title, description string, tags []string) error {
	_, _ = tx.Exec(`DELETE FROM mindmaps_fts WHERE id = ?`, id)
	_, err := tx.Exec(`INSERT INTO mindmaps_fts (id, title, description, tags) VALUES (?, ?, ?, ?)`,
		id, title, description, strings.Join(tags, " "))
	if err != nil {
		return fmt.Errorf("storage: upsert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, id string) {
	_, _ = tx.Exec(`DELETE FROM mindmaps_fts WHERE id = ?`, id)
}

// searchClause restricts a mindmaps query to documents matching the FTS5 query.
func searchClause(query string) (string, []any) {
	return `id IN (SELECT id FROM mindmaps_fts WHERE mindmaps_fts MATCH ?)`, []any{ftsQuote(query)}
}

// ftsQuote turns free text into a conjunction of quoted FTS5 terms so that
// user punctuation is never parsed as query syntax.
func ftsQuote(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}
