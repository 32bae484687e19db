package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/andresmejia3/faceseed/internal/artifact"
	"github.com/andresmejia3/faceseed/internal/event"
	"github.com/andresmejia3/faceseed/internal/faces"
)

var log = event.Log

// ErrNotFound means the subject has not been published.
var ErrNotFound = errors.New("subject not found")

// Store manages the PostgreSQL connection and pgvector operations.
type Store struct {
	conn *pgx.Conn
}

// Subject is a published subject row.
type Subject struct {
	ID         string
	NumSamples int
	Dimension  int
	RunID      string
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the seed tables and vector extension if they don't exist.
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;
		CREATE TABLE IF NOT EXISTS seed_subjects (
			id TEXT PRIMARY KEY,
			num_samples INT NOT NULL,
			dimension INT NOT NULL,
			run_id TEXT NOT NULL,
			published_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS seed_embeddings (
			subject_id TEXT NOT NULL REFERENCES seed_subjects(id) ON DELETE CASCADE,
			sample_index INT NOT NULL,
			source TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			PRIMARY KEY (subject_id, sample_index)
		);
	`, faces.Dim)
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// PublishArtifact replaces the subject's rows with the artifact's table in one transaction.
func (s *Store) PublishArtifact(ctx context.Context, runID string, a *artifact.Artifact) error {
	if err := a.Validate(); err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO seed_subjects (id, num_samples, dimension, run_id, published_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			num_samples = EXCLUDED.num_samples,
			dimension = EXCLUDED.dimension,
			run_id = EXCLUDED.run_id,
			published_at = NOW()
	`, a.StudentID, a.NumSamples, a.Dimension, runID)
	if err != nil {
		return fmt.Errorf("upserting subject %s: %w", a.StudentID, err)
	}

	// 1. Clean up old rows so a shrinking table leaves nothing behind
	if _, err := tx.Exec(ctx, "DELETE FROM seed_embeddings WHERE subject_id = $1", a.StudentID); err != nil {
		return err
	}

	// 2. Insert the new rows in one round trip
	batch := &pgx.Batch{}
	for i, row := range a.Embeddings {
		batch.Queue(`
			INSERT INTO seed_embeddings (subject_id, sample_index, source, embedding)
			VALUES ($1, $2, $3, $4)
		`, a.StudentID, i, a.Samples[i], pgvector.NewVector(row))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting embeddings of %s: %w", a.StudentID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Debugf("store: published %s (%d rows, run %s)", a.StudentID, a.NumSamples, runID)

	return nil
}

// GetSubject returns the published subject row.
func (s *Store) GetSubject(ctx context.Context, id string) (Subject, error) {
	var sub Subject
	err := s.conn.QueryRow(ctx,
		"SELECT id, num_samples, dimension, run_id FROM seed_subjects WHERE id = $1", id,
	).Scan(&sub.ID, &sub.NumSamples, &sub.Dimension, &sub.RunID)
	if errors.Is(err, pgx.ErrNoRows) {
		return sub, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sub, err
}

// SubjectEmbeddings returns the published embeddings of a subject in sample order, together with
// their source file names.
func (s *Store) SubjectEmbeddings(ctx context.Context, id string) ([][]float32, []string, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT source, embedding::text FROM seed_embeddings
		WHERE subject_id = $1 ORDER BY sample_index
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var embeddings [][]float32
	var sources []string
	for rows.Next() {
		var source, text string
		if err := rows.Scan(&source, &text); err != nil {
			return nil, nil, err
		}

		var vec pgvector.Vector
		if err := vec.Scan([]byte(text)); err != nil {
			return nil, nil, fmt.Errorf("parsing embedding of %s: %w", id, err)
		}

		embeddings = append(embeddings, vec.Slice())
		sources = append(sources, source)
	}

	return embeddings, sources, rows.Err()
}

// ListSubjects returns all published subject IDs, sorted.
func (s *Store) ListSubjects(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, "SELECT id FROM seed_subjects ORDER BY id")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Reset drops all seed tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS seed_embeddings CASCADE;
		DROP TABLE IF EXISTS seed_subjects CASCADE;
	`)
	return err
}
