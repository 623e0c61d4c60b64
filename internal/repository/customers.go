package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/septivank/meter-field-ops/internal/apperror"
	"github.com/septivank/meter-field-ops/internal/db"
)

const customerColumns = `idpel, no_meter, kddk, hari_baca, petugas, nama, alamat, tarif, daya, gardu,
	no_tiang, jenis_layanan, kategori_layanan, status, koordinat_y, koordinat_x, route_position`

var customerCopyColumns = []string{
	"idpel", "no_meter", "kddk", "hari_baca", "petugas", "nama", "alamat", "tarif", "daya", "gardu",
	"no_tiang", "jenis_layanan", "kategori_layanan", "status", "koordinat_y", "koordinat_x", "route_position",
}

// FindCustomerByID returns the customer with the exact identifier, or nil when absent
func (r *Repository) FindCustomerByID(ctx context.Context, id string) (*db.Customer, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers WHERE idpel = $1`

	c, err := scanCustomer(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Store("find customer by id", err)
	}
	return c, nil
}

// FindCustomersByIDLike returns customers whose identifier contains fragment
func (r *Repository) FindCustomersByIDLike(ctx context.Context, fragment string, limit int) ([]db.Customer, error) {
	if limit <= 0 || limit > MaxIDLikeResults {
		limit = MaxIDLikeResults
	}
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE idpel ILIKE $1
		ORDER BY idpel
		LIMIT $2
	`
	return r.queryCustomers(ctx, "find customers by id fragment", query, likePattern(fragment), limit)
}

// FindCustomersByName returns customers whose name contains fragment
func (r *Repository) FindCustomersByName(ctx context.Context, fragment string, limit int) ([]db.Customer, error) {
	if limit <= 0 {
		limit = DefaultNameResults
	}
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE nama ILIKE $1
		ORDER BY nama, idpel
		LIMIT $2
	`
	return r.queryCustomers(ctx, "find customers by name", query, likePattern(fragment), limit)
}

// FindCustomersBefore returns up to limit customers of the officer/day group
// preceding position, nearest first (descending route position)
func (r *Repository) FindCustomersBefore(ctx context.Context, officer, day string, position, limit int) ([]db.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE petugas = $1 AND hari_baca = $2 AND route_position < $3
		ORDER BY route_position DESC
		LIMIT $4
	`
	return r.queryCustomers(ctx, "find route predecessors", query, officer, day, position, limit)
}

// FindCustomersAfter returns up to limit customers of the officer/day group
// following position, in ascending route position
func (r *Repository) FindCustomersAfter(ctx context.Context, officer, day string, position, limit int) ([]db.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE petugas = $1 AND hari_baca = $2 AND route_position > $3
		ORDER BY route_position ASC
		LIMIT $4
	`
	return r.queryCustomers(ctx, "find route successors", query, officer, day, position, limit)
}

// FindCustomersByOfficerDayCategory returns the whole route of an officer for one day
func (r *Repository) FindCustomersByOfficerDayCategory(ctx context.Context, officer, day string, category db.ServiceCategory) ([]db.Customer, error) {
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE petugas = $1 AND hari_baca = $2 AND kategori_layanan = $3
		ORDER BY route_position ASC
	`
	return r.queryCustomers(ctx, "find route by criteria", query, officer, day, string(category))
}

// InsertCustomers writes rows in a single COPY round-trip
func (r *Repository) InsertCustomers(ctx context.Context, rows []db.Customer) error {
	if err := r.ready(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{string(db.TableCustomers)}, customerCopyColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			c := rows[i]
			return []any{
				c.ID, c.MeterNumber, c.KDDK, c.ReadingDay, c.Officer, c.Name, c.Address, c.Tariff, c.Power,
				c.Substation, c.Pole, c.ServiceType, string(c.ServiceCategory), string(c.Status),
				c.Latitude, c.Longitude, c.RoutePosition,
			}, nil
		}),
	)
	if err != nil {
		return apperror.Store("insert customers", err)
	}
	return nil
}

func (r *Repository) queryCustomers(ctx context.Context, op, query string, args ...any) ([]db.Customer, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.Store(op, err)
	}
	defer rows.Close()

	customers := make([]db.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, apperror.Store(op, err)
		}
		customers = append(customers, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, apperror.Store(op, err)
	}

	return customers, nil
}

func scanCustomer(row pgx.Row) (*db.Customer, error) {
	var c db.Customer
	var category, status string
	err := row.Scan(
		&c.ID,
		&c.MeterNumber,
		&c.KDDK,
		&c.ReadingDay,
		&c.Officer,
		&c.Name,
		&c.Address,
		&c.Tariff,
		&c.Power,
		&c.Substation,
		&c.Pole,
		&c.ServiceType,
		&category,
		&status,
		&c.Latitude,
		&c.Longitude,
		&c.RoutePosition,
	)
	if err != nil {
		return nil, err
	}
	c.ServiceCategory = db.ServiceCategory(category)
	c.Status = db.CustomerStatus(status)
	return &c, nil
}

// likePattern wraps fragment for a substring ILIKE, escaping wildcards
func likePattern(fragment string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(fragment))
	return "%" + escaped + "%"
}
