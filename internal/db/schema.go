package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements are idempotent; they run on every start when
// DATABASE_ENSURE_SCHEMA is enabled.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username     TEXT PRIMARY KEY,
		name         TEXT NOT NULL DEFAULT '',
		role         TEXT NOT NULL DEFAULT 'OFFICER' CHECK (role IN ('ADMIN', 'OFFICER')),
		secret_hash  TEXT,
		device_token TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		idpel            TEXT PRIMARY KEY,
		no_meter         TEXT NOT NULL DEFAULT '',
		kddk             TEXT NOT NULL DEFAULT '',
		hari_baca        TEXT NOT NULL DEFAULT '',
		petugas          TEXT NOT NULL DEFAULT '',
		nama             TEXT NOT NULL DEFAULT '',
		alamat           TEXT NOT NULL DEFAULT '',
		tarif            TEXT NOT NULL DEFAULT '',
		daya             BIGINT NOT NULL DEFAULT 0,
		gardu            TEXT NOT NULL DEFAULT '',
		no_tiang         TEXT NOT NULL DEFAULT '',
		jenis_layanan    TEXT NOT NULL DEFAULT '',
		kategori_layanan TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'ACTIVE',
		koordinat_y      DOUBLE PRECISION,
		koordinat_x      DOUBLE PRECISION,
		route_position   INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS customers_route_idx ON customers (petugas, hari_baca, route_position)`,
	`CREATE INDEX IF NOT EXISTS customers_route_category_idx ON customers (petugas, hari_baca, kategori_layanan, route_position)`,
	`CREATE TABLE IF NOT EXISTS arrears (
		idpel    TEXT NOT NULL,
		petugas  TEXT NOT NULL DEFAULT '',
		kddk     TEXT NOT NULL DEFAULT '',
		hari     TEXT NOT NULL DEFAULT '',
		nama     TEXT NOT NULL DEFAULT '',
		alamat   TEXT NOT NULL DEFAULT '',
		tarif    TEXT NOT NULL DEFAULT '',
		daya     BIGINT NOT NULL DEFAULT 0,
		gardu    TEXT NOT NULL DEFAULT '',
		no_tiang TEXT NOT NULL DEFAULT '',
		rptag    BIGINT NOT NULL DEFAULT 0,
		lembar   INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS arrears_idpel_idx ON arrears (idpel)`,
	`CREATE INDEX IF NOT EXISTS arrears_petugas_idx ON arrears (petugas)`,
	`CREATE TABLE IF NOT EXISTS whitelist (
		idpel TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS submissions (
		entry_id     UUID PRIMARY KEY,
		idpel        TEXT NOT NULL,
		petugas      TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'OK',
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS submissions_idpel_idx ON submissions (idpel)`,
	`CREATE INDEX IF NOT EXISTS submissions_submitted_at_idx ON submissions (submitted_at DESC)`,
}

// EnsureSchema creates the five tables and their indexes if missing
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("[DATABASE] schema statement %d failed: %w", i+1, err)
		}
	}
	return nil
}
