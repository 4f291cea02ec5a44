package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Status values of a stored quote request.
const (
	StatusPending = "pending"
)

// ErrNotFound is returned when a quote request does not exist.
var ErrNotFound = errors.New("sink: quote request not found")

// Attachment describes one uploaded file. Contents are not kept.
type Attachment struct {
	Role string `json:"role"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Quote is one stored quote request.
type Quote struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	Form            string         `json:"form" db:"form"`
	ReferenceNumber string         `json:"referenceNumber" db:"reference_number"`
	Status          string         `json:"status" db:"status"`
	Name            string         `json:"name,omitempty" db:"name"`
	Email           string         `json:"email,omitempty" db:"email"`
	Body            map[string]any `json:"body" db:"body"`
	Attachments     []Attachment   `json:"attachments,omitempty" db:"attachments"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
}

// Repository defines quote request storage.
type Repository interface {
	Create(ctx context.Context, quote *Quote) error
	Get(ctx context.Context, form string, id uuid.UUID) (*Quote, error)
	// List returns the quotes of form, newest first.
	List(ctx context.Context, form string) ([]Quote, error)
}

// MemoryRepository keeps quotes in process memory.
type MemoryRepository struct {
	mu     sync.RWMutex
	quotes map[uuid.UUID]Quote
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{quotes: make(map[uuid.UUID]Quote)}
}

func (r *MemoryRepository) Create(_ context.Context, quote *Quote) error {
	if quote == nil {
		return errors.New("sink: quote is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.quotes[quote.ID]; exists {
		return fmt.Errorf("sink: quote %s already exists", quote.ID)
	}
	r.quotes[quote.ID] = *quote
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, form string, id uuid.UUID) (*Quote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	quote, ok := r.quotes[id]
	if !ok || quote.Form != form {
		return nil, ErrNotFound
	}
	return &quote, nil
}

func (r *MemoryRepository) List(_ context.Context, form string) ([]Quote, error) {
	r.mu.RLock()
	out := make([]Quote, 0, len(r.quotes))
	for _, quote := range r.quotes {
		if quote.Form == form {
			out = append(out, quote)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ReferenceNumber > out[j].ReferenceNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Schema creates the quote_requests table.
const Schema = `
CREATE TABLE IF NOT EXISTS quote_requests (
	id               UUID PRIMARY KEY,
	form             TEXT NOT NULL,
	reference_number TEXT NOT NULL UNIQUE,
	status           TEXT NOT NULL,
	name             TEXT NOT NULL DEFAULT '',
	email            TEXT NOT NULL DEFAULT '',
	body             JSONB NOT NULL,
	attachments      JSONB NOT NULL DEFAULT '[]',
	created_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS quote_requests_form_created_idx ON quote_requests (form, created_at DESC);
`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository wraps an open pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Connect opens a pool and checks connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate quote_requests: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, quote *Quote) error {
	query := `
		INSERT INTO quote_requests (id, form, reference_number, status, name, email, body, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	attachments := quote.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	_, err := r.db.Exec(ctx, query,
		quote.ID, quote.Form, quote.ReferenceNumber, quote.Status,
		quote.Name, quote.Email, quote.Body, attachments, quote.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert quote %s: %w", quote.ID, err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, form string, id uuid.UUID) (*Quote, error) {
	query := `
		SELECT id, form, reference_number, status, name, email, body, attachments, created_at
		FROM quote_requests
		WHERE form = $1 AND id = $2
	`
	rows, err := r.db.Query(ctx, query, form, id)
	if err != nil {
		return nil, fmt.Errorf("query quote %s: %w", id, err)
	}
	defer rows.Close()

	quote, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Quote])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan quote %s: %w", id, err)
	}
	return &quote, nil
}

func (r *PostgresRepository) List(ctx context.Context, form string) ([]Quote, error) {
	query := `
		SELECT id, form, reference_number, status, name, email, body, attachments, created_at
		FROM quote_requests
		WHERE form = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, form)
	if err != nil {
		return nil, fmt.Errorf("query quotes for form %s: %w", form, err)
	}
	defer rows.Close()

	quotes, err := pgx.CollectRows(rows, pgx.RowToStructByName[Quote])
	if err != nil {
		return nil, fmt.Errorf("scan quotes for form %s: %w", form, err)
	}
	return quotes, nil
}
