package service

import (
	"context"
	"fmt"

	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/db"
	"github.com/septivank/meter-field-ops/internal/repository"
	"go.uber.org/zap"
)

// RecentEntriesLimit is the number of submissions shown on the dashboard
const RecentEntriesLimit = 20

// Stats is the administrator dashboard
type Stats struct {
	OfficerCount  int                 `json:"officer_count"`
	ActiveCount   int                 `json:"active_count"`
	Users         []db.UserAccount    `json:"users"`
	RecentEntries []db.SubmittedEntry `json:"recent_entries"`
	RowCounts     map[db.Table]int    `json:"row_counts"`
}

// RouteInvalidator drops cached routes
type RouteInvalidator interface {
	InvalidateRoutes(ctx context.Context)
}

// JobForgetter drops the import history of a table
type JobForgetter interface {
	Forget(table db.Table)
}

// AdminService serves the administrator dashboard and table maintenance
type AdminService struct {
	store  repository.Gateway
	routes RouteInvalidator
	jobs   JobForgetter
	logger *zap.Logger
}

// NewAdminService creates a new admin service. routes and jobs may be nil.
func NewAdminService(store repository.Gateway, routes RouteInvalidator, jobs JobForgetter, logger *zap.Logger) *AdminService {
	return &AdminService{store: store, routes: routes, jobs: jobs, logger: logger}
}

// Stats collects account and table statistics
func (s *AdminService) Stats(ctx context.Context) (*Stats, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	recent, err := s.store.RecentSubmissions(ctx, RecentEntriesLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent entries: %w", err)
	}

	stats := &Stats{
		OfficerCount:  len(users),
		Users:         users,
		RecentEntries: recent,
		RowCounts:     make(map[db.Table]int, 4),
	}
	for _, u := range users {
		if u.DeviceToken != nil {
			stats.ActiveCount++
		}
	}

	for _, table := range []db.Table{db.TableCustomers, db.TableArrears, db.TableWhitelist, db.TableSubmissions} {
		count, err := s.store.CountRows(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats.RowCounts[table] = count
	}

	return stats, nil
}

// ClearTable removes every row of table. Accounts cannot be cleared; they
// are only maintained through the users import.
func (s *AdminService) ClearTable(ctx context.Context, table db.Table) error {
	if table == db.TableUsers {
		return fmt.Errorf("%w: %s cannot be cleared", apperror.ErrUnknownTable, table)
	}

	if err := s.store.TruncateTable(ctx, table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	if table == db.TableCustomers && s.routes != nil {
		s.routes.InvalidateRoutes(ctx)
	}
	if s.jobs != nil {
		s.jobs.Forget(table)
	}

	s.logger.Warn("table cleared", zap.String("table", string(table)))
	return nil
}
