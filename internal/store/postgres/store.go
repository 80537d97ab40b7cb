// Package postgres persists invocation outcomes and observation events so
// round trips can be analyzed after the fact.
package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/sebader/iotedge-end2end/internal/domain"
)

// Store implements dispatcher.OutcomeStore and ingestor.ObservationStore
// using PostgreSQL.
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

// New creates a new PostgreSQL store. Every operation is bounded by
// opTimeout on top of the caller's context.
func New(db *sql.DB, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Store{db: db, opTimeout: opTimeout}
}

// InsertOutcome records one completed invocation attempt.
func (s *Store) InsertOutcome(ctx context.Context, o domain.InvocationOutcome) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	var errText sql.NullString
	if o.Error != "" {
		errText = sql.NullString{String: o.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, queryInsertOutcome,
		o.ID,
		o.CorrelationID.String(),
		o.Destination.DeviceID,
		o.Destination.ModuleID,
		string(o.Kind),
		o.StatusCode,
		errText,
		o.StartedAt,
		o.FinishedAt,
	)
	return err
}

// InsertObservation records one terminal observation event.
func (s *Store) InsertObservation(ctx context.Context, o domain.Observation) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, queryInsertObservation,
		o.ID,
		o.CorrelationID.String(),
		o.ObservedAt,
		o.BodyBytes,
	)
	return err
}
