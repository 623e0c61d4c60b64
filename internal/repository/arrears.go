package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/db"
)

var arrearCopyColumns = []string{
	"idpel", "petugas", "kddk", "hari", "nama", "alamat", "tarif", "daya", "gardu", "no_tiang", "rptag", "lembar",
}

// ListArrears returns the arrears of one officer, or of everyone when officer is empty
func (r *Repository) ListArrears(ctx context.Context, officer string) ([]db.Arrear, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	query := `
		SELECT idpel, petugas, kddk, hari, nama, alamat, tarif, daya, gardu, no_tiang, rptag, lembar
		FROM arrears
		WHERE $1 = '' OR petugas = $1
		ORDER BY petugas, hari, idpel
	`

	rows, err := r.pool.Query(ctx, query, officer)
	if err != nil {
		return nil, apperror.Store("list arrears", err)
	}
	defer rows.Close()

	arrears := make([]db.Arrear, 0)
	for rows.Next() {
		var a db.Arrear
		if err := rows.Scan(
			&a.ID, &a.Officer, &a.KDDK, &a.Day, &a.Name, &a.Address, &a.Tariff,
			&a.Power, &a.Substation, &a.Pole, &a.Amount, &a.Sheets,
		); err != nil {
			return nil, apperror.Store("list arrears", err)
		}
		arrears = append(arrears, a)
	}

	if err := rows.Err(); err != nil {
		return nil, apperror.Store("list arrears", err)
	}

	return arrears, nil
}

// InsertArrears writes rows in a single COPY round-trip
func (r *Repository) InsertArrears(ctx context.Context, rows []db.Arrear) error {
	if err := r.ready(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{string(db.TableArrears)}, arrearCopyColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			a := rows[i]
			return []any{
				a.ID, a.Officer, a.KDDK, a.Day, a.Name, a.Address, a.Tariff,
				a.Power, a.Substation, a.Pole, a.Amount, a.Sheets,
			}, nil
		}),
	)
	if err != nil {
		return apperror.Store("insert arrears", err)
	}
	return nil
}
