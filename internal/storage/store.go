package storage

import (
	"context"
	"time"

	"github.com/starford/mindmaps/internal/models"
)

// MindMapStore defines document persistence. Consumers depend on this
// interface rather than *DB so tests can substitute failing stores.
type MindMapStore interface {
	InsertMindMap(ctx context.Context, m *models.MindMap) error
	GetMindMap(ctx context.Context, id string) (*models.MindMap, error)
	UpdateMindMap(ctx context.Context, m *models.MindMap) error
	DeleteMindMap(ctx context.Context, id string) error
	ListByAuthor(ctx context.Context, author string, limit, offset int) ([]models.MindMap, int, error)
	ListPublic(ctx context.Context, q PublicQuery) ([]models.MindMap, int, error)
	ListTemplates(ctx context.Context) ([]models.MindMap, error)
}

// UserStore defines account and session persistence.
type UserStore interface {
	InsertUser(ctx context.Context, u *models.User, passwordHash []byte) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByName(ctx context.Context, username string) (*models.User, error)
	Credentials(ctx context.Context, email string) (*models.User, []byte, error)
	PasswordHash(ctx context.Context, id string) ([]byte, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName string) error
	SetPasswordHash(ctx context.Context, id string, hash []byte) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
	InsertSession(ctx context.Context, s models.Session) error
	SessionByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// TemplateStore defines template source bookkeeping used by the template sync.
type TemplateStore interface {
	TemplateSources(ctx context.Context) (map[string]TemplateSource, error)
	UpsertTemplate(ctx context.Context, src TemplateSource, m *models.MindMap) error
	DeleteTemplate(ctx context.Context, src TemplateSource) error
}

// Verify *DB satisfies the store interfaces at compile time.
var (
	_ MindMapStore  = (*DB)(nil)
	_ UserStore     = (*DB)(nil)
	_ TemplateStore = (*DB)(nil)
)
