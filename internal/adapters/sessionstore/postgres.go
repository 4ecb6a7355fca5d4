package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/reporting"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type PostgresSessionStore struct {
	db      *sqlx.DB
	schema  string
	codec   Codec
	nowFunc func() time.Time
	tracer  trace.Tracer
}

func NewPostgresSessionStore(db *sqlx.DB, schema string, codec Codec, nowFunc func() time.Time) *PostgresSessionStore {
	return &PostgresSessionStore{
		db:      db,
		schema:  schema,
		codec:   codec,
		nowFunc: nowFunc,
		tracer:  otel.Tracer("pitwall/sessionstore/postgres"),
	}
}

type dbSessionEntry struct {
	BlobName    string    `db:"blob_name"`
	Season      int       `db:"season"`
	Event       string    `db:"event"`
	SessionType string    `db:"session_type"`
	Data        []byte    `db:"data"`
	SizeBytes   int64     `db:"size_bytes"`
	StoredAt    time.Time `db:"stored_at"`
}

func (p *PostgresSessionStore) Get(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error) {
	ctx, span := p.tracer.Start(ctx, "PostgresSessionStore.Get", trace.WithAttributes(
		attribute.String("session", key.String()),
	))
	defer span.End()

	var entry dbSessionEntry
	err := p.db.GetContext(ctx, &entry, fmt.Sprintf(`SELECT
		blob_name, season, event, session_type, data, size_bytes, stored_at
		FROM %s.sessions
		WHERE blob_name = $1`,
		pq.QuoteIdentifier(p.schema),
	),
		key.BlobName(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreMiss, key.String())
		}
		err := fmt.Errorf("failed to select session entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session": key.String(),
		})
		return nil, err
	}

	sessionEntry, err := p.codec.Decode(entry.Data)
	if err != nil {
		err := fmt.Errorf("failed to decode stored session: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session":  key.String(),
			"storedAt": entry.StoredAt.Format(time.RFC3339),
		})
		return nil, err
	}

	// Different keys may share a blob name, e.g. "Abu Dhabi" and "Abu_Dhabi"
	if sessionEntry.Key != key {
		return nil, fmt.Errorf("%w: stored entry for %s belongs to %s", domain.ErrStoreMiss, key.String(), sessionEntry.Key.String())
	}

	return sessionEntry, nil
}

func (p *PostgresSessionStore) Put(ctx context.Context, entry *domain.SessionEntry) error {
	ctx, span := p.tracer.Start(ctx, "PostgresSessionStore.Put", trace.WithAttributes(
		attribute.String("session", entry.Key.String()),
	))
	defer span.End()

	data, err := p.codec.Encode(entry)
	if err != nil {
		err := fmt.Errorf("failed to encode session: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session": entry.Key.String(),
		})
		return err
	}

	txx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		err := fmt.Errorf("failed to start transaction: %w", err)
		reporting.Report(ctx, err)
		return err
	}
	defer txx.Rollback()

	_, err = txx.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(p.schema)))
	if err != nil {
		err := fmt.Errorf("failed to set search path: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"schema": p.schema,
		})
		return err
	}

	storedAt := p.nowFunc()
	_, err = txx.ExecContext(
		ctx,
		`INSERT INTO sessions
		(blob_name, season, event, session_type, data, size_bytes, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (blob_name)
		DO UPDATE SET
			season = EXCLUDED.season,
			event = EXCLUDED.event,
			session_type = EXCLUDED.session_type,
			data = EXCLUDED.data,
			size_bytes = EXCLUDED.size_bytes,
			stored_at = EXCLUDED.stored_at`,
		entry.Key.BlobName(),
		entry.Key.Season,
		entry.Key.Event,
		string(entry.Key.SessionType),
		data,
		entry.SizeBytes,
		storedAt,
	)
	if err != nil {
		err := fmt.Errorf("failed to upsert session entry: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session":  entry.Key.String(),
			"storedAt": storedAt.Format(time.RFC3339),
		})
		return err
	}

	err = txx.Commit()
	if err != nil {
		err := fmt.Errorf("failed to commit transaction: %w", err)
		reporting.Report(ctx, err)
		return err
	}

	return nil
}
