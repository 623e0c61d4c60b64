package repository

import (
	"context"
	"fmt"

	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/db"
)

// keyColumn returns the identifier column used for targeted deletes
func keyColumn(table db.Table) (string, error) {
	switch table {
	case db.TableUsers:
		return "username", nil
	case db.TableCustomers, db.TableArrears, db.TableWhitelist, db.TableSubmissions:
		return "idpel", nil
	}
	return "", fmt.Errorf("%w: %q", apperror.ErrUnknownTable, table)
}

// TruncateTable removes every row of table
func (r *Repository) TruncateTable(ctx context.Context, table db.Table) error {
	if err := r.ready(); err != nil {
		return err
	}
	if _, err := keyColumn(table); err != nil {
		return err
	}

	if _, err := r.pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s", table)); err != nil {
		return apperror.Store(fmt.Sprintf("truncate %s", table), err)
	}
	return nil
}

// DeleteByIDs removes rows whose key is in ids, one round-trip per chunk
func (r *Repository) DeleteByIDs(ctx context.Context, table db.Table, ids []string) error {
	if err := r.ready(); err != nil {
		return err
	}
	column, err := keyColumn(table)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1)", table, column)
	for _, chunk := range chunkIDs(ids, r.deleteChunkSize) {
		if _, err := r.pool.Exec(ctx, query, chunk); err != nil {
			return apperror.Store(fmt.Sprintf("delete from %s", table), err)
		}
	}
	return nil
}

// CountRows returns the number of rows in table
func (r *Repository) CountRows(ctx context.Context, table db.Table) (int, error) {
	if err := r.ready(); err != nil {
		return 0, err
	}
	if _, err := keyColumn(table); err != nil {
		return 0, err
	}

	var count int
	if err := r.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, apperror.Store(fmt.Sprintf("count %s", table), err)
	}
	return count, nil
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
