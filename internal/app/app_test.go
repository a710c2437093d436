package app

import (
	"math/rand/v2"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/config"
	"github.com/cesargomez89/segmentcraft/internal/content"
	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/logger"
	"github.com/cesargomez89/segmentcraft/internal/marble"
	"github.com/cesargomez89/segmentcraft/internal/store"
)

const fixture = `
templates:
  - {id: tmpl-1, name: Radio}
  - {id: tmpl-empty, name: Nothing Bound}
templateBindings:
  - {id: tb-1, templateId: tmpl-1, contentType: Program, targetId: main-1}
  - {id: tb-2, templateId: tmpl-1, contentType: Program, targetId: macro-1}
  - {id: tb-3, templateId: tmpl-1, contentType: Program, targetId: beat-1}
  - {id: tb-4, templateId: tmpl-1, contentType: Instrument, targetId: drum-1}
  - {id: tb-5, templateId: tmpl-1, contentType: Instrument, targetId: pad-1}
  - {id: tb-6, templateId: tmpl-1, contentType: Instrument, targetId: bg-1}
programs:
  - {id: main-1, type: Main, state: Published, name: Main One, key: C, tempo: 120}
  - {id: macro-1, type: Macro, state: Published, name: Macro One, key: C, tempo: 120}
  - {id: beat-1, type: Beat, state: Published, name: Beat One, tempo: 120}
programSequences:
  - {id: seq-main, programId: main-1, name: A, key: C, total: 8, intensity: 0.6}
  - {id: seq-macro, programId: macro-1, name: M, key: C, total: 0, intensity: 0.4}
  - {id: seq-beat, programId: beat-1, name: B, total: 4}
programSequenceBindings:
  - {id: main-b0, programId: main-1, programSequenceId: seq-main, offset: 0}
  - {id: main-b1, programId: main-1, programSequenceId: seq-main, offset: 1}
  - {id: macro-b0, programId: macro-1, programSequenceId: seq-macro, offset: 0}
  - {id: macro-b1, programId: macro-1, programSequenceId: seq-macro, offset: 1}
  - {id: macro-b2, programId: macro-1, programSequenceId: seq-macro, offset: 2}
programSequenceChords:
  - {id: ch-1, programId: main-1, programSequenceId: seq-main, name: C, position: 0}
  - {id: ch-2, programId: main-1, programSequenceId: seq-main, name: G, position: 4}
programSequenceChordVoicings:
  - {id: vc-1, programId: main-1, programSequenceChordId: ch-1, programVoiceId: v-pad, notes: "C4, E4, G4"}
  - {id: vc-2, programId: main-1, programSequenceChordId: ch-2, programVoiceId: v-pad, notes: "G3, B3, D4"}
programVoices:
  - {id: v-pad, programId: main-1, type: Pad, name: Pad}
  - {id: v-kick, programId: beat-1, type: Drum, name: Kick}
programVoiceTracks:
  - {id: t-kick, programId: beat-1, programVoiceId: v-kick, name: KICK}
programSequencePatterns:
  - {id: pat-kick, programId: beat-1, programSequenceId: seq-beat, programVoiceId: v-kick, name: Kick, total: 4}
programSequencePatternEvents:
  - {id: ev-1, programId: beat-1, programSequencePatternId: pat-kick, programVoiceTrackId: t-kick, position: 0, duration: 1, velocity: 1, tones: X}
  - {id: ev-2, programId: beat-1, programSequencePatternId: pat-kick, programVoiceTrackId: t-kick, position: 2, duration: 1, velocity: 0.5, tones: X}
instruments:
  - {id: drum-1, type: Drum, mode: Event, state: Published, name: Kit, config: {isOneShot: true}}
  - {id: pad-1, type: Pad, mode: Chord, state: Published, name: Pad, config: {isTonal: true}}
  - {id: bg-1, type: Background, mode: Loop, state: Published, name: Room}
instrumentAudios:
  - {id: a-kick, instrumentId: drum-1, name: Kick, event: KICK, tones: X}
  - {id: a-pad-c, instrumentId: pad-1, name: Pad C, event: PAD, tones: C}
  - {id: a-pad-g, instrumentId: pad-1, name: Pad G, event: PAD, tones: G}
  - {id: a-bg-1, instrumentId: bg-1, name: Soft, tones: X, intensity: 0.2}
`

var chainBegin = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*store.DB, func()) {
	tmpFile := filepath.Join(t.TempDir(), "test_app.db")
	db, err := store.NewSQLiteDB(tmpFile)
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

func testConfig() *config.Config {
	return &config.Config{
		WorkCycle:                 time.Second,
		MaxConcurrentChains:       2,
		CraftAheadSeconds:         20,
		BufferAheadSeconds:        180,
		BufferBeforeSeconds:       10,
		PersistenceWindowSeconds:  3600,
		ChainStartInFutureSeconds: 0,
		PreviewLengthMaxHours:     8,
		PreviewShipKeyLength:      12,
		TuningRootNote:            "A4",
		TuningRootPitchHz:         440,
	}
}

type testServices struct {
	store    *store.SegmentStore
	chains   *ChainService
	segments *SegmentService
	work     *CraftWork
}

// newServices wires the services over a fresh store. Pass nil for repo to
// keep everything in memory.
func newServices(t *testing.T, repo Persister) *testServices {
	t.Helper()
	material, err := content.LoadYAML(strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("LoadYAML failed: %v", err)
	}

	cfg := testConfig()
	log := logger.Discard()
	st := store.NewSegmentStore()
	templates := NewTemplateCatalog(material, nil)

	chains := NewChainService(st, repo, templates, cfg, log)
	chains.Now = func() time.Time { return chainBegin }
	segments := NewSegmentService(st, repo, cfg, log)
	work := NewCraftWork(chains, segments, templates, cfg, log)
	seed := uint64(0)
	work.Rand = func() *rand.Rand {
		seed++
		return marble.NewSource(seed)
	}
	return &testServices{store: st, chains: chains, segments: segments, work: work}
}

// putChain stores a chain directly, bypassing the service rules.
func putChain(t *testing.T, st *store.SegmentStore, id string, state domain.ChainState, stopAt *time.Time) *domain.Chain {
	t.Helper()
	start := chainBegin
	chain := &domain.Chain{
		ID:         id,
		TemplateID: "tmpl-1",
		Name:       "Chain " + id,
		Type:       domain.ChainTypeProduction,
		State:      state,
		ShipKey:    "key_" + id,
		StartAt:    &start,
		StopAt:     stopAt,
		CreatedAt:  chainBegin,
	}
	if err := st.PutChain(chain); err != nil {
		t.Fatalf("PutChain failed: %v", err)
	}
	return chain
}

// putSegment stores a four second segment at the offset.
func putSegment(t *testing.T, st *store.SegmentStore, chainID string, offset int, state domain.SegmentState) *domain.Segment {
	t.Helper()
	seg := &domain.Segment{
		ID:                 chainID + "-seg-" + string(rune('0'+offset)),
		ChainID:            chainID,
		Offset:             offset,
		Type:               domain.SegmentTypeContinue,
		State:              state,
		BeginAt:            chainBegin.Add(time.Duration(offset) * 4 * time.Second),
		BeginAtChainMicros: int64(offset) * 4_000_000,
		Total:              8,
		Tempo:              120,
	}
	if state != domain.SegmentStatePlanned && state != domain.SegmentStateCrafting {
		seg.SetDuration(4_000_000)
	}
	if err := st.PutSegment(seg); err != nil {
		t.Fatalf("PutSegment failed: %v", err)
	}
	return seg
}
