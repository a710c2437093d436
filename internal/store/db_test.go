package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

func setupTestDB(t *testing.T) (*DB, func()) {
	tmpFile := filepath.Join(t.TempDir(), "test.db")
	db, err := NewSQLiteDB(tmpFile)
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	cleanup := func() {
		if cErr := db.Close(); cErr != nil {
			t.Logf("db.Close error: %v", cErr)
		}
	}
	return db, cleanup
}

func TestDB_Chains(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	chain := &domain.Chain{
		ID:         "chain-1",
		TemplateID: "tmpl-1",
		Name:       "Test Chain",
		Type:       domain.ChainTypeProduction,
		State:      domain.ChainStateDraft,
		ShipKey:    "radio",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := db.SaveChain(chain); err != nil {
		t.Fatalf("SaveChain failed: %v", err)
	}

	fetched, err := db.GetChain("chain-1")
	if err != nil {
		t.Fatalf("GetChain failed: %v", err)
	}
	if fetched.ShipKey != "radio" {
		t.Errorf("Expected ship key radio, got %s", fetched.ShipKey)
	}

	chain.State = domain.ChainStateReady
	if err := db.SaveChain(chain); err != nil {
		t.Fatalf("SaveChain update failed: %v", err)
	}
	fetched, _ = db.GetChain("chain-1")
	if fetched.State != domain.ChainStateReady {
		t.Errorf("Expected state %s, got %s", domain.ChainStateReady, fetched.State)
	}

	list, err := db.ListChains()
	if err != nil {
		t.Fatalf("ListChains failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("Expected 1 chain, got %d", len(list))
	}

	if err := db.DeleteChain("chain-1"); err != nil {
		t.Fatalf("DeleteChain failed: %v", err)
	}
	if _, err := db.GetChain("chain-1"); !domain.IsExistence(err) {
		t.Errorf("Expected existence error, got %v", err)
	}
}

func TestDB_SegmentsAndRestore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	now := time.Now().UTC().Truncate(time.Second)
	chain := &domain.Chain{
		ID:        "chain-1",
		Type:      domain.ChainTypePreview,
		State:     domain.ChainStateFabricate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.SaveChain(chain); err != nil {
		t.Fatalf("SaveChain failed: %v", err)
	}

	seg := &domain.Segment{
		ID:        "seg-0",
		ChainID:   "chain-1",
		Offset:    0,
		Type:      domain.SegmentTypeInitial,
		State:     domain.SegmentStateDubbed,
		BeginAt:   now,
		Total:     16,
		Tempo:     120,
		Key:       "C major",
		CreatedAt: now,
		UpdatedAt: now,
	}
	seg.SetDuration(8_000_000)
	if err := db.SaveSegment(seg); err != nil {
		t.Fatalf("SaveSegment failed: %v", err)
	}

	length := int64(500_000)
	entities := []domain.SegmentEntity{
		domain.SegmentMeme{ID: "m1", SegmentID: "seg-0", Name: "DARK"},
		domain.SegmentChoice{ID: "c1", SegmentID: "seg-0", ProgramID: "p1", ProgramType: domain.ProgramTypeMain, DeltaIn: -1, DeltaOut: -1},
		domain.SegmentChoiceArrangement{ID: "a1", SegmentID: "seg-0", SegmentChoiceID: "c1"},
		domain.SegmentChoiceArrangementPick{ID: "k1", SegmentID: "seg-0", SegmentChoiceArrangementID: "a1", InstrumentAudioID: "au1", LengthMicros: &length},
		domain.SegmentMeta{ID: "x1", SegmentID: "seg-0", Key: "StickyBun_e1", Value: "{}"},
	}
	if err := db.SaveSegmentEntities(context.Background(), "seg-0", entities); err != nil {
		t.Fatalf("SaveSegmentEntities failed: %v", err)
	}

	loaded, err := db.ListSegmentEntities("seg-0")
	if err != nil {
		t.Fatalf("ListSegmentEntities failed: %v", err)
	}
	if len(loaded) != len(entities) {
		t.Errorf("Expected %d entities, got %d", len(entities), len(loaded))
	}

	s := NewSegmentStore()
	n, err := db.Restore(s)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 chain restored, got %d", n)
	}

	restored, err := s.ReadSegment("seg-0")
	if err != nil {
		t.Fatalf("ReadSegment failed: %v", err)
	}
	if restored.DurationMicros == nil || *restored.DurationMicros != 8_000_000 {
		t.Errorf("Expected duration 8000000, got %v", restored.DurationMicros)
	}

	repos := NewRepositories(s)
	picks := repos.Picks.List("seg-0")
	if len(picks) != 1 {
		t.Fatalf("Expected 1 pick on sealed segment, got %d", len(picks))
	}
	if picks[0].LengthMicros == nil || *picks[0].LengthMicros != length {
		t.Errorf("Expected pick length %d, got %v", length, picks[0].LengthMicros)
	}

	if err := db.DeleteSegment("seg-0"); err != nil {
		t.Fatalf("DeleteSegment failed: %v", err)
	}
	loaded, _ = db.ListSegmentEntities("seg-0")
	if len(loaded) != 0 {
		t.Errorf("Expected entities removed with segment, got %d", len(loaded))
	}
}

func TestTemplateRepo(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewTemplateRepo(db)

	missing, err := repo.Get("nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if missing != nil {
		t.Error("Expected nil for missing template")
	}

	cfg := domain.DefaultTemplateConfig()
	cfg.StickyBunEnabled = false
	cfg.MainProgramLengthMaxDelta = 100
	tmpl := &domain.Template{ID: "tmpl-1", Name: "Lofi", ShipKey: "lofi", Config: cfg}
	if err := repo.Save(tmpl); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	fetched, err := repo.Get("tmpl-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if fetched.Config.StickyBunEnabled {
		t.Error("Expected sticky bun disabled")
	}
	if fetched.Config.MainProgramLengthMaxDelta != 100 {
		t.Errorf("Expected max delta 100, got %d", fetched.Config.MainProgramLengthMaxDelta)
	}

	cfg.IntensityAutoCrescendoMinimum = 0.9
	cfg.IntensityAutoCrescendoMaximum = 0.1
	if err := repo.Save(&domain.Template{ID: "bad", Config: cfg}); !domain.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}

	if err := repo.Delete("tmpl-1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	fetched, _ = repo.Get("tmpl-1")
	if fetched != nil {
		t.Error("Expected template deleted")
	}
}

func TestDB_RunInTxRollback(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	err := db.RunInTx(context.Background(), func(tx *DB) error {
		chain := &domain.Chain{ID: "tx-chain", Type: domain.ChainTypePreview, State: domain.ChainStateDraft}
		if err := tx.SaveChain(chain); err != nil {
			return err
		}
		return domain.Fatalf("abort")
	})
	if !domain.IsFatal(err) {
		t.Fatalf("Expected fatal error, got %v", err)
	}
	if _, err := db.GetChain("tx-chain"); !domain.IsExistence(err) {
		t.Errorf("Expected chain rolled back, got %v", err)
	}
}
