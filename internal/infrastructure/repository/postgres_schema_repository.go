package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"archie-core-marketplace-layer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS field_definitions (
	channel_type     TEXT        NOT NULL,
	channel_subtype  TEXT        NOT NULL DEFAULT '',
	category         TEXT        NOT NULL DEFAULT '',
	field_code       TEXT        NOT NULL,
	label            TEXT        NOT NULL,
	description      TEXT        NOT NULL DEFAULT '',
	value_type       TEXT        NOT NULL,
	required         BOOLEAN     NOT NULL DEFAULT FALSE,
	validation_rules JSONB,
	value_list_code  TEXT        NOT NULL DEFAULT '',
	discovered_at    TIMESTAMPTZ NOT NULL,
	last_verified_at TIMESTAMPTZ NOT NULL,
	active           BOOLEAN     NOT NULL DEFAULT TRUE,
	PRIMARY KEY (channel_type, channel_subtype, category, field_code)
);

CREATE TABLE IF NOT EXISTS value_lists (
	channel_type    TEXT        NOT NULL,
	channel_subtype TEXT        NOT NULL DEFAULT '',
	list_code       TEXT        NOT NULL,
	name            TEXT        NOT NULL,
	description     TEXT        NOT NULL DEFAULT '',
	vals            TEXT[]      NOT NULL,
	value_count     INTEGER     NOT NULL,
	discovered_at   TIMESTAMPTZ NOT NULL,
	last_synced_at  TIMESTAMPTZ NOT NULL,
	sync_status     TEXT        NOT NULL,
	sync_error      TEXT        NOT NULL DEFAULT '',
	PRIMARY KEY (channel_type, channel_subtype, list_code)
);
`

const upsertFieldSQL = `
	INSERT INTO field_definitions (channel_type, channel_subtype, category, field_code, label, description,
		value_type, required, validation_rules, value_list_code, discovered_at, last_verified_at, active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (channel_type, channel_subtype, category, field_code)
	DO UPDATE SET
		label = $5,
		description = $6,
		value_type = $7,
		required = $8,
		validation_rules = $9,
		value_list_code = $10,
		last_verified_at = $12,
		active = $13
`

const upsertValueListSQL = `
	INSERT INTO value_lists (channel_type, channel_subtype, list_code, name, description, vals, value_count,
		discovered_at, last_synced_at, sync_status, sync_error)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (channel_type, channel_subtype, list_code)
	DO UPDATE SET
		name = $4,
		description = $5,
		vals = $6,
		value_count = $7,
		last_synced_at = $9,
		sync_status = $10,
		sync_error = $11
`

const deactivateMissingFieldsSQL = `
	UPDATE field_definitions f SET active = FALSE
	WHERE f.channel_type = $1 AND f.channel_subtype = $2 AND f.active
	AND NOT EXISTS (
		SELECT 1 FROM unnest($3::text[], $4::text[]) AS k(category, field_code)
		WHERE k.category = f.category AND k.field_code = f.field_code
	)
`

// PostgresSchemaRepository implements SchemaRepository using PostgreSQL
type PostgresSchemaRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSchemaRepository connects to PostgreSQL and creates the schema tables when missing
func NewPostgresSchemaRepository(ctx context.Context, dsn string) (*PostgresSchemaRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema tables: %w", err)
	}
	return &PostgresSchemaRepository{pool: pool}, nil
}

// Close releases the connection pool
func (r *PostgresSchemaRepository) Close() {
	r.pool.Close()
}

// inTx runs fn in a transaction, rolling back when it fails
func (r *PostgresSchemaRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *PostgresSchemaRepository) UpsertValueLists(ctx context.Context, lists []domain.ValueList) error {
	if len(lists) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, vl := range lists {
			values := vl.Values
			if values == nil {
				values = []string{}
			}
			batch.Queue(upsertValueListSQL,
				string(vl.Channel.Type), vl.Channel.Subtype, vl.Code, vl.Name, vl.Description, values, vl.ValueCount,
				vl.DiscoveredAt, vl.LastSyncedAt, string(vl.SyncStatus), vl.SyncError)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert value lists: %w", err)
		}
		return nil
	})
}

func (r *PostgresSchemaRepository) UpsertFieldDefinitions(ctx context.Context, fields []domain.FieldDefinition) error {
	if len(fields) == 0 {
		return nil
	}
	return r.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, f := range fields {
			var rules []byte
			if len(f.ValidationRules) > 0 {
				encoded, err := json.Marshal(f.ValidationRules)
				if err != nil {
					return fmt.Errorf("failed to encode validation rules of %s: %w", f.Code, err)
				}
				rules = encoded
			}
			batch.Queue(upsertFieldSQL,
				string(f.Channel.Type), f.Channel.Subtype, f.Category, f.Code, f.Label, f.Description,
				string(f.ValueType), f.Required, rules, f.ValueListCode, f.DiscoveredAt, f.LastVerifiedAt, f.Active)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to upsert field definitions: %w", err)
		}
		return nil
	})
}

func (r *PostgresSchemaRepository) DeactivateMissingFields(ctx context.Context, channel domain.ChannelKey, keep []domain.FieldKey) (int, error) {
	categories := make([]string, len(keep))
	codes := make([]string, len(keep))
	for i, k := range keep {
		categories[i] = k.Category
		codes[i] = k.Code
	}
	tag, err := r.pool.Exec(ctx, deactivateMissingFieldsSQL, string(channel.Type), channel.Subtype, categories, codes)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate field definitions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresSchemaRepository) MarkValueListsFailed(ctx context.Context, channel domain.ChannelKey, syncError string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE value_lists SET sync_status = $3, sync_error = $4
		WHERE channel_type = $1 AND channel_subtype = $2`,
		string(channel.Type), channel.Subtype, string(domain.SyncStatusFailed), syncError)
	if err != nil {
		return 0, fmt.Errorf("failed to mark value lists failed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresSchemaRepository) ListFieldDefinitions(ctx context.Context, channel *domain.ChannelKey) ([]domain.FieldDefinition, error) {
	query := `
		SELECT channel_type, channel_subtype, category, field_code, label, description, value_type, required,
			validation_rules, value_list_code, discovered_at, last_verified_at, active
		FROM field_definitions`
	args := []any{}
	if channel != nil {
		query += ` WHERE channel_type = $1 AND channel_subtype = $2`
		args = append(args, string(channel.Type), channel.Subtype)
	}
	query += ` ORDER BY channel_type, channel_subtype, field_code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list field definitions: %w", err)
	}
	defer rows.Close()

	var fields []domain.FieldDefinition
	for rows.Next() {
		var (
			f         domain.FieldDefinition
			chType    string
			valueType string
			rules     []byte
		)
		if err := rows.Scan(&chType, &f.Channel.Subtype, &f.Category, &f.Code, &f.Label, &f.Description,
			&valueType, &f.Required, &rules, &f.ValueListCode, &f.DiscoveredAt, &f.LastVerifiedAt, &f.Active); err != nil {
			return nil, fmt.Errorf("failed to scan field definition: %w", err)
		}
		f.Channel.Type = domain.Marketplace(chType)
		f.ValueType = domain.ValueType(valueType)
		if len(rules) > 0 {
			if err := json.Unmarshal(rules, &f.ValidationRules); err != nil {
				return nil, fmt.Errorf("failed to decode validation rules of %s: %w", f.Code, err)
			}
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return fields, nil
}

func (r *PostgresSchemaRepository) ListValueLists(ctx context.Context, channel *domain.ChannelKey) ([]domain.ValueList, error) {
	query := `
		SELECT channel_type, channel_subtype, list_code, name, description, vals, value_count,
			discovered_at, last_synced_at, sync_status, sync_error
		FROM value_lists`
	args := []any{}
	if channel != nil {
		query += ` WHERE channel_type = $1 AND channel_subtype = $2`
		args = append(args, string(channel.Type), channel.Subtype)
	}
	query += ` ORDER BY channel_type, channel_subtype, list_code`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list value lists: %w", err)
	}
	defer rows.Close()

	var lists []domain.ValueList
	for rows.Next() {
		var (
			vl     domain.ValueList
			chType string
			status string
		)
		if err := rows.Scan(&chType, &vl.Channel.Subtype, &vl.Code, &vl.Name, &vl.Description, &vl.Values, &vl.ValueCount,
			&vl.DiscoveredAt, &vl.LastSyncedAt, &status, &vl.SyncError); err != nil {
			return nil, fmt.Errorf("failed to scan value list: %w", err)
		}
		vl.Channel.Type = domain.Marketplace(chType)
		vl.SyncStatus = domain.SyncStatus(status)
		lists = append(lists, vl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return lists, nil
}

func (r *PostgresSchemaRepository) LastVerifiedAt(ctx context.Context, channel domain.ChannelKey) (*time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(last_verified_at) FROM field_definitions
		WHERE channel_type = $1 AND channel_subtype = $2 AND active`,
		string(channel.Type), channel.Subtype).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last verification: %w", err)
	}
	return last, nil
}
