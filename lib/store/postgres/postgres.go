// Package postgres implements the interface for PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" //nolint:gci // load the postgres driver that is used by the system

	"github.com/tarancss/faucet/lib/store"
)

const schema = `CREATE TABLE IF NOT EXISTS drips (
	id       BIGSERIAL PRIMARY KEY,
	addr     TEXT NOT NULL,
	username TEXT NOT NULL DEFAULT '',
	day      DATE NOT NULL,
	ts       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS drips_day_addr ON drips (day, addr);
CREATE INDEX IF NOT EXISTS drips_day_username ON drips (day, username);`

type Postgres struct {
	db *sql.DB
}

// New returns a postgres client connection to the specified database in 'connection' and makes sure the drips table
// exists.
func New(connection string) (*Postgres, error) {
	db, err := sql.Open("postgres", connection)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB in %s: %w", connection, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second) //nolint:gomnd // 5 seconds timeout
	defer cancel()

	if _, err = db.ExecContext(ctx, schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("cannot create drips table: %w", err)
	}

	return &Postgres{db: db}, nil
}

// ClosePostgres will close any database connection. Must be called at termination time.
func (p *Postgres) ClosePostgres() error {
	return p.db.Close()
}

// HasDrippedToday reports whether the address or the username got a drip today.
func (p *Postgres) HasDrippedToday(ctx context.Context, k store.DripKey) (bool, error) {
	if k.Addr == "" {
		return false, store.ErrNoAddr
	}

	var dripped bool

	err := p.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM drips WHERE day = $1::date AND (addr = $2 OR ($3 <> '' AND username = $3)))`,
		store.Day(time.Now()), k.Addr, k.Username).Scan(&dripped)
	if err != nil {
		return false, fmt.Errorf("could not query drips in db: %w", err)
	}

	return dripped, nil
}

// SaveDrip inserts a drip made today for the key.
func (p *Postgres) SaveDrip(ctx context.Context, k store.DripKey) error {
	if k.Addr == "" {
		return store.ErrNoAddr
	}

	now := time.Now()

	_, err := p.db.ExecContext(ctx, `INSERT INTO drips (addr, username, day, ts) VALUES ($1, $2, $3::date, $4)`,
		k.Addr, k.Username, store.Day(now), now)
	if err != nil {
		return fmt.Errorf("could not insert drip in db: %w", err)
	}

	return nil
}

// PurgeDrips deletes the drips made before the given day and returns how many were deleted.
func (p *Postgres) PurgeDrips(ctx context.Context, before string) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM drips WHERE day < $1::date`, before)
	if err != nil {
		return 0, fmt.Errorf("could not purge drips in db: %w", err)
	}

	return res.RowsAffected()
}
