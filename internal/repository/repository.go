package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/config"
	"github.com/septivank/meter-field-ops/internal/db"
)

// Limits applied by the lookup queries
const (
	MaxIDLikeResults   = 10
	DefaultNameResults = 15
)

// Gateway is the typed query/command surface over the five store tables.
// It shapes queries only; business rules live in the callers.
type Gateway interface {
	FindCustomerByID(ctx context.Context, id string) (*db.Customer, error)
	FindCustomersByIDLike(ctx context.Context, fragment string, limit int) ([]db.Customer, error)
	FindCustomersByName(ctx context.Context, fragment string, limit int) ([]db.Customer, error)
	FindCustomersBefore(ctx context.Context, officer, day string, position, limit int) ([]db.Customer, error)
	FindCustomersAfter(ctx context.Context, officer, day string, position, limit int) ([]db.Customer, error)
	FindCustomersByOfficerDayCategory(ctx context.Context, officer, day string, category db.ServiceCategory) ([]db.Customer, error)
	InsertCustomers(ctx context.Context, rows []db.Customer) error

	ListArrears(ctx context.Context, officer string) ([]db.Arrear, error)
	InsertArrears(ctx context.Context, rows []db.Arrear) error

	FilterWhitelisted(ctx context.Context, ids []string) ([]string, error)
	InsertWhitelist(ctx context.Context, ids []string) error

	FindSubmitted(ctx context.Context, ids []string) ([]string, error)
	AppendSubmissions(ctx context.Context, entries []db.SubmittedEntry) error
	RecentSubmissions(ctx context.Context, limit int) ([]db.SubmittedEntry, error)

	FindUser(ctx context.Context, username string) (*db.UserAccount, error)
	ListUsers(ctx context.Context) ([]db.UserAccount, error)
	UpsertUsers(ctx context.Context, users []db.UserAccount) error
	BindDevice(ctx context.Context, username, token string) (bool, error)
	ClearDevice(ctx context.Context, username string) error
	SetSecretHash(ctx context.Context, username, hash string) error

	TruncateTable(ctx context.Context, table db.Table) error
	DeleteByIDs(ctx context.Context, table db.Table, ids []string) error
	CountRows(ctx context.Context, table db.Table) (int, error)
}

// Repository is the PostgreSQL Gateway
type Repository struct {
	pool            *pgxpool.Pool
	deleteChunkSize int
}

var _ Gateway = (*Repository)(nil)

// NewRepository creates a new repository. A nil pool yields a repository
// whose every call fails with apperror.ErrNotConfigured.
func NewRepository(pool *pgxpool.Pool, cfg config.ImportConfig) *Repository {
	chunk := cfg.DeleteChunkSize
	if chunk <= 0 {
		chunk = 100
	}
	return &Repository{pool: pool, deleteChunkSize: chunk}
}

// Configured reports whether a pool was supplied
func (r *Repository) Configured() bool {
	return r.pool != nil
}

func (r *Repository) ready() error {
	if r.pool == nil {
		return apperror.ErrNotConfigured
	}
	return nil
}
