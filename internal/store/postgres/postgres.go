// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/knotline/knot/internal/model"
	"github.com/knotline/knot/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateEvent(ctx context.Context, ev *model.Event) error {
	return queryCreateEvent(ctx, s.db, ev)
}

func (s *PostgresStore) GetEvent(ctx context.Context, roomID, eventID string) (*model.Event, error) {
	return queryGetEvent(ctx, s.db, roomID, eventID)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return queryListEvents(ctx, s.db, filter)
}

func (s *PostgresStore) MarkEventRedacted(ctx context.Context, eventID string) error {
	return queryMarkEventRedacted(ctx, s.db, eventID)
}

func (s *PostgresStore) CreateRelation(ctx context.Context, rel *model.Relation) error {
	return queryCreateRelation(ctx, s.db, rel)
}

func (s *PostgresStore) GetRelationBySource(ctx context.Context, sourceEventID string) (*model.Relation, error) {
	return queryGetRelationBySource(ctx, s.db, sourceEventID)
}

func (s *PostgresStore) ListRelations(ctx context.Context, filter model.RelationFilter) ([]*model.Relation, error) {
	return queryListRelations(ctx, s.db, filter)
}

func (s *PostgresStore) ListRelationEvents(ctx context.Context, filter model.RelationFilter) ([]*model.Event, error) {
	return queryListRelationEvents(ctx, s.db, filter)
}

func (s *PostgresStore) MarkRelationStale(ctx context.Context, sourceEventID string) error {
	return queryMarkRelationStale(ctx, s.db, sourceEventID)
}

func (s *PostgresStore) IncrementAggregation(ctx context.Context, targetEventID, eventType, key string, firstStream int64) error {
	return queryIncrementAggregation(ctx, s.db, targetEventID, eventType, key, firstStream)
}

func (s *PostgresStore) DecrementAggregation(ctx context.Context, targetEventID, eventType, key string) error {
	return queryDecrementAggregation(ctx, s.db, targetEventID, eventType, key)
}

func (s *PostgresStore) ListAggregationGroups(ctx context.Context, filter model.GroupFilter) ([]*model.AggregationGroup, error) {
	return queryListAggregationGroups(ctx, s.db, filter)
}

func (s *PostgresStore) AppendJournal(ctx context.Context, entry *model.JournalEntry) error {
	return queryAppendJournal(ctx, s.db, entry)
}

func (s *PostgresStore) ListJournal(ctx context.Context, limit int) ([]*model.JournalEntry, error) {
	return queryListJournal(ctx, s.db, limit)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateEvent(ctx context.Context, ev *model.Event) error {
	return queryCreateEvent(ctx, s.tx, ev)
}

func (s *txStore) GetEvent(ctx context.Context, roomID, eventID string) (*model.Event, error) {
	return queryGetEvent(ctx, s.tx, roomID, eventID)
}

func (s *txStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return queryListEvents(ctx, s.tx, filter)
}

func (s *txStore) MarkEventRedacted(ctx context.Context, eventID string) error {
	return queryMarkEventRedacted(ctx, s.tx, eventID)
}

func (s *txStore) CreateRelation(ctx context.Context, rel *model.Relation) error {
	return queryCreateRelation(ctx, s.tx, rel)
}

func (s *txStore) GetRelationBySource(ctx context.Context, sourceEventID string) (*model.Relation, error) {
	return queryGetRelationBySource(ctx, s.tx, sourceEventID)
}

func (s *txStore) ListRelations(ctx context.Context, filter model.RelationFilter) ([]*model.Relation, error) {
	return queryListRelations(ctx, s.tx, filter)
}

func (s *txStore) ListRelationEvents(ctx context.Context, filter model.RelationFilter) ([]*model.Event, error) {
	return queryListRelationEvents(ctx, s.tx, filter)
}

func (s *txStore) MarkRelationStale(ctx context.Context, sourceEventID string) error {
	return queryMarkRelationStale(ctx, s.tx, sourceEventID)
}

func (s *txStore) IncrementAggregation(ctx context.Context, targetEventID, eventType, key string, firstStream int64) error {
	return queryIncrementAggregation(ctx, s.tx, targetEventID, eventType, key, firstStream)
}

func (s *txStore) DecrementAggregation(ctx context.Context, targetEventID, eventType, key string) error {
	return queryDecrementAggregation(ctx, s.tx, targetEventID, eventType, key)
}

func (s *txStore) ListAggregationGroups(ctx context.Context, filter model.GroupFilter) ([]*model.AggregationGroup, error) {
	return queryListAggregationGroups(ctx, s.tx, filter)
}

func (s *txStore) AppendJournal(ctx context.Context, entry *model.JournalEntry) error {
	return queryAppendJournal(ctx, s.tx, entry)
}

func (s *txStore) ListJournal(ctx context.Context, limit int) ([]*model.JournalEntry, error) {
	return queryListJournal(ctx, s.tx, limit)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
