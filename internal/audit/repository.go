// Package audit persists normalized inquiries so a desk can review what a
// free-text RFQ was turned into. Storage is optional: without DATABASE_URL
// the API runs with auditing off.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rfqnorm/backend/internal/contracts"
)

// ErrNotFound is returned when no record has the requested id
var ErrNotFound = errors.New("audit record not found")

// Sources of an inquiry
const (
	SourceAPI       = "api"
	SourceBatch     = "batch"
	SourceTool      = "tool"
	SourceWebSocket = "ws"
	SourceCLI       = "cli"
)

// Record is one normalized inquiry
type Record struct {
	ID          int64                    `json:"id"`
	Text        string                   `json:"text"`
	CurrentDate time.Time                `json:"current_date"`
	Source      string                   `json:"source"`
	Quotes      []contracts.InquiryQuote `json:"quotes"`
	NullFields  int                      `json:"null_fields"`
	CreatedAt   time.Time                `json:"created_at"`
}

// NewRecord builds a record and counts the null fields over all legs
func NewRecord(text string, ctx contracts.InquiryContext, source string, quotes []contracts.InquiryQuote) *Record {
	nulls := 0
	for i := range quotes {
		nulls += len(quotes[i].NullFields())
	}
	return &Record{
		Text:        text,
		CurrentDate: ctx.CurrentDate,
		Source:      source,
		Quotes:      quotes,
		NullFields:  nulls,
	}
}

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS audit;
	CREATE TABLE IF NOT EXISTS audit.inquiries (
		id           BIGSERIAL PRIMARY KEY,
		text         TEXT        NOT NULL,
		inquiry_date DATE        NOT NULL,
		source       TEXT        NOT NULL,
		quotes       JSONB       NOT NULL,
		null_fields  INTEGER     NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS inquiries_created_at_idx ON audit.inquiries (created_at DESC);
`

// Repository handles audit data persistence
// ⭐ SSOT: Audit 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the audit schema and table when missing
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure audit schema: %w", err)
	}
	return nil
}

// Save inserts a record and fills in its id and created_at
func (r *Repository) Save(ctx context.Context, rec *Record) error {
	quotesJSON, err := json.Marshal(rec.Quotes)
	if err != nil {
		return fmt.Errorf("failed to marshal quotes: %w", err)
	}

	query := `
		INSERT INTO audit.inquiries (text, inquiry_date, source, quotes, null_fields)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err = r.pool.QueryRow(ctx, query,
		rec.Text, rec.CurrentDate, rec.Source, quotesJSON, rec.NullFields,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save inquiry: %w", err)
	}

	return nil
}

// Get retrieves a record by id
func (r *Repository) Get(ctx context.Context, id int64) (*Record, error) {
	query := `
		SELECT id, text, inquiry_date, source, quotes, null_fields, created_at
		FROM audit.inquiries
		WHERE id = $1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inquiry: %w", err)
	}
	return rec, nil
}

// Recent returns the latest records, newest first
func (r *Repository) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, text, inquiry_date, source, quotes, null_fields, created_at
		FROM audit.inquiries
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query inquiries: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inquiry: %w", err)
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec        Record
		quotesJSON []byte
	)

	err := row.Scan(
		&rec.ID, &rec.Text, &rec.CurrentDate, &rec.Source,
		&quotesJSON, &rec.NullFields, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(quotesJSON, &rec.Quotes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quotes: %w", err)
	}
	return &rec, nil
}
