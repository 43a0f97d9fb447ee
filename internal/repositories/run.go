package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
)

// ErrRunNotFound is returned when a run does not exist or was deleted.
var ErrRunNotFound = errors.New("run not found")

// RunRepository implements models.Repository[*models.Run] plus outcome storage.
//
// It satisfies tasks.RunRecorder.
type RunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.Run] = (*RunRepository)(nil)

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `id, sequence, kind, source_service, source_id, name, targets, total, matched, failed, skipped,
	started_at, finished_at, created_at, updated_at, deleted_at`

// Create inserts a new [models.Run] with generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	id := shared.GenerateID()
	query := `
		INSERT INTO runs (
			id, sequence, kind, source_service, source_id, name, targets, total,
			matched, failed, skipped, started_at, finished_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var sequence int
	err := inTx(r.db, func(tx *sql.Tx) error {
		var err error
		if sequence, err = nextRunSequence(tx); err != nil {
			return err
		}
		_, err = tx.Exec(query,
			id,
			sequence,
			string(run.Kind),
			run.SourceService.String(),
			run.SourceID,
			run.Name,
			joinSources(run.Targets),
			run.Total,
			run.Matched,
			run.Failed,
			run.Skipped,
			run.StartedAt,
			nullTime(run.FinishedAt),
			run.CreatedAt(),
			run.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	run.SetID(id)
	run.Sequence = sequence
	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ? AND deleted_at IS NULL`
	return scanRun(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run by its human-readable sequence number
func (r *RunRepository) GetBySequence(sequence int) (*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE sequence = ? AND deleted_at IS NULL`
	return scanRun(r.db.QueryRow(query, sequence))
}

// Update writes the counters and finish time of an existing run
func (r *RunRepository) Update(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	query := `
		UPDATE runs
		SET matched = ?, failed = ?, skipped = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, run.Matched, run.Failed, run.Skipped, nullTime(run.FinishedAt), now, run.ID())
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if err := expectOne(result, run.ID()); err != nil {
		return err
	}

	run.SetUpdatedAt(now)
	return nil
}

// Delete soft-deletes a run by ID. Its outcomes stay until the row is purged.
func (r *RunRepository) Delete(id string) error {
	query := `
		UPDATE runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return expectOne(result, id)
}

// List retrieves runs newest first, excluding soft-deleted ones.
//
// Supported criteria: "source_service" (models.Source), "kind" (models.Kind) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE deleted_at IS NULL`
	args := []any{}

	if src, ok := criteria["source_service"].(models.Source); ok && src != models.SourceUnknown {
		query += " AND source_service = ?"
		args = append(args, src.String())
	}
	if kind, ok := criteria["kind"].(models.Kind); ok && kind != "" {
		query += " AND kind = ?"
		args = append(args, string(kind))
	}

	query += " ORDER BY sequence DESC"
	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// AddOutcomes stores the per-track outcomes of a run in a single transaction.
func (r *RunRepository) AddOutcomes(runID string, outcomes []models.Outcome) error {
	return inTx(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO run_outcomes (run_id, position, service, track_name, artist, status, score, matched_id, matched_url, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare outcome insert: %w", err)
		}
		defer stmt.Close()

		for _, o := range outcomes {
			_, err := stmt.Exec(runID, o.Position, o.Service.String(), o.TrackName, o.Artist, o.Status, o.Score,
				nullString(o.MatchedID), nullString(o.MatchedURL), nullString(o.Error))
			if err != nil {
				return fmt.Errorf("failed to insert outcome %d/%s: %w", o.Position, o.Service, err)
			}
		}
		return nil
	})
}

// Outcomes returns the outcomes of a run ordered by position, then service.
func (r *RunRepository) Outcomes(runID string) ([]models.Outcome, error) {
	query := `
		SELECT run_id, position, service, track_name, artist, status, score, matched_id, matched_url, error
		FROM run_outcomes
		WHERE run_id = ?
		ORDER BY position ASC, service ASC
	`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []models.Outcome
	for rows.Next() {
		var (
			o                          models.Outcome
			service                    string
			matchedID, matchedURL, msg sql.NullString
		)
		if err := rows.Scan(&o.RunID, &o.Position, &service, &o.TrackName, &o.Artist, &o.Status, &o.Score, &matchedID, &matchedURL, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		o.Service, _ = models.ParseSource(service)
		o.MatchedID, o.MatchedURL, o.Error = matchedID.String, matchedURL.String, msg.String
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return outcomes, nil
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run        models.Run
		id         string
		kind       string
		source     string
		targets    string
		createdAt  time.Time
		updatedAt  time.Time
		finishedAt sql.NullTime
		deletedAt  sql.NullTime
	)

	err := row.Scan(&id, &run.Sequence, &kind, &source, &run.SourceID, &run.Name, &targets, &run.Total,
		&run.Matched, &run.Failed, &run.Skipped, &run.StartedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.SetID(id)
	run.Kind = models.Kind(kind)
	run.SourceService, _ = models.ParseSource(source)
	run.Targets = splitSources(targets)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		run.MarkFinished(finishedAt.Time)
	}
	if deletedAt.Valid {
		run.DeletedAt = &deletedAt.Time
	}
	return &run, nil
}





