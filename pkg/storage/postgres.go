package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/byosync/facecommit/pkg/enrollment"
	"github.com/byosync/facecommit/pkg/failure"
	"github.com/byosync/facecommit/pkg/options"
	"github.com/jackc/pgx/v5"
)

// Postgres keeps one row per identity in the enrollments table.
type Postgres struct {
	conn   *pgx.Conn
	codec  *Codec
	logger *slog.Logger
}

// NewPostgres connects and creates the schema if needed.
func NewPostgres(ctx context.Context, connString string, codec *Codec, opts ...options.Option) (*Postgres, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	oo := options.NewOptions(opts...)
	return &Postgres{
		conn:   conn,
		codec:  codec,
		logger: oo.Logger,
	}, nil
}

func initSchema(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS enrollments (
			user_id TEXT NOT NULL,
			device_id TEXT NOT NULL DEFAULT '',
			saved_at TIMESTAMPTZ NOT NULL,
			records INT NOT NULL,
			payload BYTEA NOT NULL,
			PRIMARY KEY (user_id, device_id)
		);
	`)
	return err
}

func (p *Postgres) Close(ctx context.Context) error {
	return p.conn.Close(ctx)
}

func (p *Postgres) Save(ctx context.Context, id enrollment.Identity, store *enrollment.Store) error {
	if !id.Valid() {
		return ErrInvalidIdentity
	}

	payload, err := p.codec.Encode(store)
	if err != nil {
		return err
	}

	if _, err := p.conn.Exec(ctx, `
		INSERT INTO enrollments (user_id, device_id, saved_at, records, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, device_id) DO UPDATE
		SET saved_at = EXCLUDED.saved_at, records = EXCLUDED.records, payload = EXCLUDED.payload
	`, id.UserID, id.DeviceID, store.SavedAt, store.Len(), payload); err != nil {
		return fmt.Errorf("cannot save enrollment for %s: %w", id, err)
	}

	p.logger.Debug("enrollment saved", "backend", "postgres", "identity", id.String(), "records", store.Len())
	return nil
}

func (p *Postgres) Load(ctx context.Context, id enrollment.Identity) (*enrollment.Store, error) {
	if !id.Valid() {
		return nil, ErrInvalidIdentity
	}

	var payload []byte
	err := p.conn.QueryRow(ctx,
		"SELECT payload FROM enrollments WHERE user_id = $1 AND device_id = $2",
		id.UserID, id.DeviceID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, failure.ErrNoEnrollment
	}
	if err != nil {
		return nil, fmt.Errorf("cannot load enrollment for %s: %w", id, err)
	}

	return p.codec.Decode(payload)
}

func (p *Postgres) Delete(ctx context.Context, id enrollment.Identity) error {
	if !id.Valid() {
		return ErrInvalidIdentity
	}

	if _, err := p.conn.Exec(ctx,
		"DELETE FROM enrollments WHERE user_id = $1 AND device_id = $2",
		id.UserID, id.DeviceID,
	); err != nil {
		return fmt.Errorf("cannot delete enrollment for %s: %w", id, err)
	}
	return nil
}
