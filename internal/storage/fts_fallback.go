//go:build !sqlite_fts5

package storage

import (
	"database/sql"
	"strings"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; free-text search uses LIKE on the mindmaps columns.
	return nil
}

func ftsUpsert(_ *sql.Tx, _, _, _ string, _ []string) error {
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) {}

// searchClause restricts a mindmaps query to documents whose title,
// description, or tags contain query (case-insensitive for ASCII).
func searchClause(query string) (string, []any) {
	like := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return `(title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR tags LIKE ? ESCAPE '\')`,
		[]any{like, like, like}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
