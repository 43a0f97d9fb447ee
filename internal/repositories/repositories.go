package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/songvert/internal/models"
)

type scanner interface {
	Scan(dest ...any) error
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func inTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// nextRunSequence increments the runs counter inside tx and returns the new value. A rolled back
// tx leaves the counter untouched.
func nextRunSequence(tx *sql.Tx) (int, error) {
	if _, err := tx.Exec("UPDATE runs_sequence SET value = value + 1 WHERE id = 1"); err != nil {
		return 0, fmt.Errorf("failed to increment run sequence: %w", err)
	}

	var sequence int
	if err := tx.QueryRow("SELECT value FROM runs_sequence WHERE id = 1").Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to read run sequence: %w", err)
	}
	return sequence, nil
}

func expectOne(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// joinSources stores targets as a comma separated list of service keys.
func joinSources(srcs []models.Source) string {
	names := make([]string, len(srcs))
	for i, s := range srcs {
		names[i] = s.String()
	}
	return strings.Join(names, ",")
}

func splitSources(s string) []models.Source {
	var out []models.Source
	for _, name := range strings.Split(s, ",") {
		if src, err := models.ParseSource(name); err == nil && src != models.SourceUnknown {
			out = append(out, src)
		}
	}
	return out
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
