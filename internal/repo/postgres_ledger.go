package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LeventeLantos/schoolwire/internal/errs"
	"github.com/LeventeLantos/schoolwire/internal/model"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS message_records (
	id                  TEXT PRIMARY KEY,
	event_id            TEXT NOT NULL,
	recipient_id        TEXT NOT NULL,
	channel             TEXT NOT NULL,
	provider_message_id TEXT NOT NULL UNIQUE,
	status              TEXT NOT NULL,
	answered            BOOLEAN,
	content             JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS message_records_event_idx ON message_records (event_id);
CREATE INDEX IF NOT EXISTS message_records_recipient_idx ON message_records (recipient_id);
CREATE INDEX IF NOT EXISTS message_records_queued_idx ON message_records (created_at) WHERE status = 'queued';
`

const recordColumns = `id, event_id, recipient_id, channel, provider_message_id, status, answered, content, created_at, updated_at`

type PostgresLedger struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Ledger = (*PostgresLedger)(nil)

func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	return pool, nil
}

func NewPostgresLedger(pool *pgxpool.Pool, now func() time.Time) *PostgresLedger {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &PostgresLedger{pool: pool, now: now}
}

func (r *PostgresLedger) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, ledgerSchema); err != nil {
		return fmt.Errorf("ledger schema: %w", err)
	}
	return nil
}

func (r *PostgresLedger) Ready(ctx context.Context) error {
	var one int
	return r.pool.QueryRow(ctx, "select 1").Scan(&one)
}

func (r *PostgresLedger) Append(ctx context.Context, rec model.MessageRecord) error {
	content, err := json.Marshal(rec.Content)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO message_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		rec.ID,
		rec.EventID,
		rec.RecipientID,
		string(rec.Channel),
		rec.ProviderMessageID,
		string(rec.Status),
		nullableBool(rec.Answered),
		content,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func (r *PostgresLedger) FindByProviderID(ctx context.Context, providerMessageID string) (model.MessageRecord, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM message_records
		WHERE provider_message_id = $1
	`, providerMessageID)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MessageRecord{}, fmt.Errorf("provider message %q: %w", providerMessageID, errs.ErrLogNotFound)
	}
	return rec, err
}

// UpdateStatus applies the update in a single statement so status and answered
// change together.
func (r *PostgresLedger) UpdateStatus(ctx context.Context, providerMessageID string, upd model.StatusUpdate) (model.MessageRecord, error) {
	status, hasStatus := upd.Status.Get()
	if status == "" {
		hasStatus = false
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE message_records
		SET status = CASE WHEN $2 THEN $3 ELSE status END,
		    answered = CASE WHEN $4 THEN $5 ELSE answered END,
		    updated_at = $6
		WHERE provider_message_id = $1
		RETURNING `+recordColumns,
		providerMessageID,
		hasStatus,
		string(status),
		upd.Answered.Set,
		nullableBool(upd.Answered),
		r.now(),
	)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.MessageRecord{}, fmt.Errorf("provider message %q: %w", providerMessageID, errs.ErrLogNotFound)
	}
	return rec, err
}

func (r *PostgresLedger) MarkTransmitted(ctx context.Context, providerMessageID string, status model.Status) (model.MessageRecord, bool, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE message_records
		SET status = $2, updated_at = $3
		WHERE provider_message_id = $1 AND status = 'queued'
		RETURNING `+recordColumns,
		providerMessageID,
		string(status),
		r.now(),
	)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either unknown or already moved on by a callback.
		current, findErr := r.FindByProviderID(ctx, providerMessageID)
		return current, false, findErr
	}
	if err != nil {
		return model.MessageRecord{}, false, err
	}
	return rec, true, nil
}

func (r *PostgresLedger) ListByEvent(ctx context.Context, eventID string) ([]model.MessageRecord, error) {
	return r.query(ctx, `
		SELECT `+recordColumns+`
		FROM message_records
		WHERE event_id = $1
		ORDER BY created_at, id
	`, eventID)
}

func (r *PostgresLedger) ListByRecipient(ctx context.Context, recipientID string) ([]model.MessageRecord, error) {
	return r.query(ctx, `
		SELECT `+recordColumns+`
		FROM message_records
		WHERE recipient_id = $1
		ORDER BY created_at, id
	`, recipientID)
}

func (r *PostgresLedger) Summarize(ctx context.Context, eventID string) (model.Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT status, count(*)
		FROM message_records
		WHERE event_id = $1
		GROUP BY status
	`, eventID)
	if err != nil {
		return model.Summary{}, err
	}
	defer rows.Close()

	s := model.Summary{ByStatus: map[model.Status]int{}}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return model.Summary{}, err
		}
		s.ByStatus[model.Status(status)] = n
		s.Total += n
	}
	return s, rows.Err()
}

func (r *PostgresLedger) ListQueued(ctx context.Context, channels []model.Channel, limit int) ([]model.MessageRecord, error) {
	if limit <= 0 || len(channels) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(channels))
	for _, c := range channels {
		names = append(names, string(c))
	}

	return r.query(ctx, `
		SELECT `+recordColumns+`
		FROM message_records
		WHERE status = 'queued' AND channel = ANY($1)
		ORDER BY created_at ASC
		LIMIT $2
	`, names, limit)
}

func (r *PostgresLedger) query(ctx context.Context, sql string, args ...any) ([]model.MessageRecord, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MessageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (model.MessageRecord, error) {
	var (
		rec      model.MessageRecord
		channel  string
		status   string
		answered *bool
		content  []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.EventID,
		&rec.RecipientID,
		&channel,
		&rec.ProviderMessageID,
		&status,
		&answered,
		&content,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return model.MessageRecord{}, err
	}

	rec.Channel = model.Channel(channel)
	rec.Status = model.Status(status)
	if answered != nil {
		rec.Answered = model.Some(*answered)
	}
	if err := json.Unmarshal(content, &rec.Content); err != nil {
		return model.MessageRecord{}, fmt.Errorf("decode content of %s: %w", rec.ID, err)
	}
	return rec, nil
}

func nullableBool(o model.Optional[bool]) *bool {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}
