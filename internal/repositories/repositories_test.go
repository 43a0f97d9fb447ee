package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/songvert/internal/models"
	"github.com/desertthunder/songvert/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestRun(name string, src models.Source) *models.Run {
	p := &models.Playlist{
		Name:          name,
		ID:            "pl-" + name,
		Kind:          models.KindPlaylist,
		SourceService: src,
		Tracks:        make([]models.Track, 3),
	}
	run := models.NewRun(p, []models.Source{models.SourceAppleMusic, models.SourceYouTube})
	run.Matched, run.Failed, run.Skipped = 4, 1, 1
	return run
}

func TestRunRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun("Mix", models.SourceSpotify)
		run.MarkFinished(run.StartedAt.Add(2 * time.Second))

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" || run.Sequence != 1 {
			t.Fatalf("expected id and sequence 1, got %q / %d", run.ID(), run.Sequence)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Name != "Mix" || got.SourceService != models.SourceSpotify || got.Kind != models.KindPlaylist {
			t.Errorf("unexpected run %+v", got)
		}
		if len(got.Targets) != 2 || got.Targets[0] != models.SourceAppleMusic || got.Targets[1] != models.SourceYouTube {
			t.Errorf("unexpected targets %v", got.Targets)
		}
		if got.Total != 3 || got.Matched != 4 || got.Failed != 1 || got.Skipped != 1 {
			t.Errorf("unexpected counters %+v", got)
		}
		if got.FinishedAt == nil || !got.FinishedAt.Equal(*run.FinishedAt) {
			t.Errorf("expected finished at %v, got %v", run.FinishedAt, got.FinishedAt)
		}
	})

	t.Run("Create rejects invalid runs", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun("", models.SourceSpotify)
		if err := repo.Create(run); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Get("nope"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun("Mix", models.SourceSpotify)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Matched = 5
		run.Failed = 0
		run.MarkFinished(time.Now().UTC())
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, _ := repo.Get(run.ID())
		if got.Matched != 5 || got.Failed != 0 || got.FinishedAt == nil {
			t.Errorf("update not persisted: %+v", got)
		}
	})

	t.Run("Delete hides the run", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun("Mix", models.SourceSpotify)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(run.ID()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected deleted run to be hidden, got %v", err)
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected second delete to fail, got %v", err)
		}
		if err := repo.Update(run); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected update of deleted run to fail, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for _, r := range []*models.Run{
			newTestRun("first", models.SourceSpotify),
			newTestRun("second", models.SourceAppleMusic),
			newTestRun("third", models.SourceSpotify),
		} {
			if err := repo.Create(r); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 || all[0].Name != "third" || all[2].Name != "first" {
			t.Errorf("expected newest first, got %d runs", len(all))
		}

		spotify, _ := repo.List(map[string]any{"source_service": models.SourceSpotify})
		if len(spotify) != 2 {
			t.Errorf("expected 2 spotify runs, got %d", len(spotify))
		}

		limited, _ := repo.List(map[string]any{"limit": 1})
		if len(limited) != 1 || limited[0].Sequence != 3 {
			t.Errorf("unexpected limited list %+v", limited)
		}

		bySeq, err := repo.GetBySequence(2)
		if err != nil || bySeq.Name != "second" {
			t.Errorf("expected run #2, got %v, %v", bySeq, err)
		}
	})

	t.Run("Outcomes", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun("Mix", models.SourceSpotify)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		outcomes := []models.Outcome{
			{RunID: run.ID(), Position: 2, Service: models.SourceYouTube, TrackName: "B", Artist: "X", Status: models.StatusNoMatch, Error: "no acceptable match"},
			{RunID: run.ID(), Position: 1, Service: models.SourceAppleMusic, TrackName: "A", Artist: "X", Status: models.StatusMatched, Score: 3.8, MatchedID: "123", MatchedURL: "https://music.apple.com/x"},
		}
		if err := repo.AddOutcomes(run.ID(), outcomes); err != nil {
			t.Fatalf("failed to add outcomes: %v", err)
		}

		got, err := repo.Outcomes(run.ID())
		if err != nil {
			t.Fatalf("failed to read outcomes: %v", err)
		}
		if len(got) != 2 || got[0].Position != 1 || got[0].MatchedID != "123" || got[0].Score != 3.8 {
			t.Errorf("unexpected outcomes %+v", got)
		}
		if got[1].Service != models.SourceYouTube || got[1].MatchedID != "" || got[1].Error != "no acceptable match" {
			t.Errorf("unexpected second outcome %+v", got[1])
		}
	})

	t.Run("Outcomes for unknown run", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		err := repo.AddOutcomes("missing", []models.Outcome{{Position: 1, Service: models.SourceSpotify, Status: models.StatusMatched}})
		if err == nil {
			t.Error("expected foreign key violation")
		}
	})

	t.Run("Outcomes are stored all or nothing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newTestRun("Mix", models.SourceSpotify)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		dup := models.Outcome{Position: 1, Service: models.SourceYouTube, TrackName: "A", Artist: "X", Status: models.StatusMatched}
		if err := repo.AddOutcomes(run.ID(), []models.Outcome{dup, dup}); err == nil {
			t.Fatal("expected duplicate outcome to fail")
		}
		got, err := repo.Outcomes(run.ID())
		if err != nil {
			t.Fatalf("failed to read outcomes: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no outcomes after a failed batch, got %d", len(got))
		}
	})
}

func TestRunSequence(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRunRepository(db)

	boom := errors.New("boom")
	err := inTx(db, func(tx *sql.Tx) error {
		if seq, err := nextRunSequence(tx); err != nil || seq != 1 {
			t.Fatalf("expected sequence 1 inside the transaction, got %d, %v", seq, err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	for want := 1; want <= 2; want++ {
		run := newTestRun("Mix", models.SourceSpotify)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.Sequence != want {
			t.Errorf("expected sequence %d, got %d", want, run.Sequence)
		}
	}
}
