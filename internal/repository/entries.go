package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/db"
)

// FilterWhitelisted returns the subset of ids present in the whitelist
func (r *Repository) FilterWhitelisted(ctx context.Context, ids []string) ([]string, error) {
	query := `SELECT idpel FROM whitelist WHERE idpel = ANY($1)`
	return r.queryIDs(ctx, "check whitelist", query, ids)
}

// InsertWhitelist writes ids in a single COPY round-trip
func (r *Repository) InsertWhitelist(ctx context.Context, ids []string) error {
	if err := r.ready(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{string(db.TableWhitelist)}, []string{"idpel"},
		pgx.CopyFromSlice(len(ids), func(i int) ([]any, error) {
			return []any{ids[i]}, nil
		}),
	)
	if err != nil {
		return apperror.Store("insert whitelist", err)
	}
	return nil
}

// FindSubmitted returns the subset of ids that already have a submission
func (r *Repository) FindSubmitted(ctx context.Context, ids []string) ([]string, error) {
	query := `SELECT DISTINCT idpel FROM submissions WHERE idpel = ANY($1)`
	return r.queryIDs(ctx, "check submissions", query, ids)
}

// AppendSubmissions writes all entries in one round-trip. submitted_at is
// left to the server default.
func (r *Repository) AppendSubmissions(ctx context.Context, entries []db.SubmittedEntry) error {
	if err := r.ready(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{string(db.TableSubmissions)}, []string{"entry_id", "idpel", "petugas", "status"},
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.EntryID, e.ID, e.Officer, e.Status}, nil
		}),
	)
	if err != nil {
		return apperror.Store("append submissions", err)
	}
	return nil
}

// RecentSubmissions returns the newest submissions first
func (r *Repository) RecentSubmissions(ctx context.Context, limit int) ([]db.SubmittedEntry, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT entry_id, idpel, petugas, status, submitted_at
		FROM submissions
		ORDER BY submitted_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, apperror.Store("list recent submissions", err)
	}
	defer rows.Close()

	entries := make([]db.SubmittedEntry, 0, limit)
	for rows.Next() {
		var e db.SubmittedEntry
		if err := rows.Scan(&e.EntryID, &e.ID, &e.Officer, &e.Status, &e.SubmittedAt); err != nil {
			return nil, apperror.Store("list recent submissions", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, apperror.Store("list recent submissions", err)
	}

	return entries, nil
}

func (r *Repository) queryIDs(ctx context.Context, op, query string, ids []string) ([]string, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []string{}, nil
	}

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, apperror.Store(op, err)
	}

	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, apperror.Store(op, err)
	}
	return found, nil
}
