package promptstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const (
	defaultMaxOpenConns = 10
	connectTimeout      = 10 * time.Second

	createPromptsTable = `CREATE TABLE IF NOT EXISTS prompts (
		doc_type    TEXT PRIMARY KEY,
		prompt_text TEXT NOT NULL
	)`
)

// PostgresStore keeps prompts in the prompts table. Upserts make the last writer win.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string, maxOpenConns int) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database_url is required for the postgres driver")
	}
	if maxOpenConns <= 0 {
		maxOpenConns = defaultMaxOpenConns
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createPromptsTable); err != nil {
		return fmt.Errorf("create prompts table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, docType string) (string, error) {
	key, err := normalizeKey(docType)
	if err != nil {
		return "", err
	}

	var prompt string
	err = s.db.QueryRowContext(ctx, `SELECT prompt_text FROM prompts WHERE doc_type = $1`, key).Scan(&prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(key)
	}
	if err != nil {
		return "", fmt.Errorf("get prompt: %w", err)
	}
	return prompt, nil
}

func (s *PostgresStore) Put(ctx context.Context, docType, prompt string) error {
	key, err := normalizeKey(docType)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prompts (doc_type, prompt_text)
		VALUES ($1, $2)
		ON CONFLICT (doc_type) DO UPDATE SET prompt_text = EXCLUDED.prompt_text
	`, key, prompt)
	if err != nil {
		return fmt.Errorf("store prompt: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
