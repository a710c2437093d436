package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/domain"
	"github.com/cesargomez89/segmentcraft/internal/storage"
)

func TestSegmentService_Create(t *testing.T) {
	svc := newServices(t, nil)
	chain := putChain(t, svc.store, "c1", domain.ChainStateFabricate, nil)

	seg, err := svc.segments.Create(&domain.Segment{
		ChainID: chain.ID,
		Offset:  0,
		State:   domain.SegmentStateCrafted,
		BeginAt: chainBegin,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if seg.ID == "" {
		t.Error("Expected an id to be assigned")
	}
	if seg.State != domain.SegmentStatePlanned {
		t.Errorf("Expected state Planned, got %s", seg.State)
	}
	if seg.Type != domain.SegmentTypePending {
		t.Errorf("Expected type Pending, got %s", seg.Type)
	}

	_, err = svc.segments.Create(&domain.Segment{ChainID: chain.ID, Offset: 0, BeginAt: chainBegin})
	if !domain.IsValidation(err) {
		t.Errorf("Expected validation error for duplicate offset, got %v", err)
	}
	_, err = svc.segments.Create(&domain.Segment{ID: seg.ID, ChainID: chain.ID, Offset: 1, BeginAt: chainBegin})
	if !domain.IsValidation(err) {
		t.Errorf("Expected validation error for duplicate id, got %v", err)
	}
	_, err = svc.segments.Create(&domain.Segment{ChainID: "missing", Offset: 0, BeginAt: chainBegin})
	if !domain.IsExistence(err) {
		t.Errorf("Expected existence error for unknown chain, got %v", err)
	}
}

func TestSegmentService_Update(t *testing.T) {
	svc := newServices(t, nil)
	putChain(t, svc.store, "c1", domain.ChainStateFabricate, nil)
	putChain(t, svc.store, "c2", domain.ChainStateFabricate, nil)
	seg := putSegment(t, svc.store, "c1", 0, domain.SegmentStatePlanned)

	moved := seg.Clone()
	moved.ChainID = "c2"
	if _, err := svc.segments.Update(seg.ID, moved); !domain.IsValidation(err) {
		t.Errorf("Expected validation error changing chain, got %v", err)
	}

	if _, err := svc.segments.UpdateState(seg.ID, domain.SegmentStateDubbed); !domain.IsPrivilege(err) {
		t.Errorf("Expected privilege error skipping to Dubbed, got %v", err)
	}

	updated := seg.Clone()
	updated.Key = "G minor"
	got, err := svc.segments.Update(seg.ID, updated)
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Key != "G minor" {
		t.Errorf("Expected key G minor, got %s", got.Key)
	}
}

func TestSegmentService_Reads(t *testing.T) {
	svc := newServices(t, nil)
	chain := putChain(t, svc.store, "c1", domain.ChainStateFabricate, nil)
	for i := 0; i < 4; i++ {
		putSegment(t, svc.store, chain.ID, i, domain.SegmentStateCrafted)
	}

	t.Run("by ship key newest first", func(t *testing.T) {
		segs, err := svc.segments.ReadManyByShipKey("KEY_C1")
		if err != nil {
			t.Fatalf("ReadManyByShipKey failed: %v", err)
		}
		if len(segs) != 4 {
			t.Fatalf("Expected 4 segments, got %d", len(segs))
		}
		if segs[0].Offset != 3 || segs[3].Offset != 0 {
			t.Errorf("Expected offsets 3..0, got %d..%d", segs[0].Offset, segs[3].Offset)
		}
	})

	t.Run("offset window", func(t *testing.T) {
		segs, err := svc.segments.ReadManyFromToOffset(chain.ID, 1, 2)
		if err != nil {
			t.Fatalf("ReadManyFromToOffset failed: %v", err)
		}
		if len(segs) != 2 || segs[0].Offset != 1 || segs[1].Offset != 2 {
			t.Errorf("Expected offsets 1 and 2, got %v", segs)
		}

		segs, err = svc.segments.ReadManyFromToOffset(chain.ID, 10, 20)
		if err != nil {
			t.Fatalf("ReadManyFromToOffset failed: %v", err)
		}
		if len(segs) != 0 {
			t.Errorf("Expected no segments past the end, got %d", len(segs))
		}
	})

	t.Run("around an instant", func(t *testing.T) {
		at := chainBegin.Add(6 * time.Second).Unix()
		segs, err := svc.segments.ReadManyFromSecondsUTCByShipKey(chain.ShipKey, at)
		if err != nil {
			t.Fatalf("ReadManyFromSecondsUTCByShipKey failed: %v", err)
		}
		if len(segs) != 4 {
			t.Errorf("Expected all 4 segments inside the buffers, got %d", len(segs))
		}

		segs, err = svc.segments.ReadManyFromSecondsUTC(chain.ID, chainBegin.Add(time.Hour).Unix())
		if err != nil {
			t.Fatalf("ReadManyFromSecondsUTC failed: %v", err)
		}
		if len(segs) != 0 {
			t.Errorf("Expected no segments an hour later, got %d", len(segs))
		}
	})

	t.Run("unknown ship key", func(t *testing.T) {
		if _, err := svc.segments.ReadManyByShipKey("nobody"); !domain.IsExistence(err) {
			t.Errorf("Expected existence error, got %v", err)
		}
	})
}

func TestSegmentService_Ship(t *testing.T) {
	svc := newServices(t, nil)
	chain := putChain(t, svc.store, "c1", domain.ChainStateFabricate, nil)
	putSegment(t, svc.store, chain.ID, 0, domain.SegmentStateCrafted)
	second := putSegment(t, svc.store, chain.ID, 1, domain.SegmentStateCrafted)

	last, err := svc.segments.ReadLastDubbedSegment(chain.ID)
	if err != nil {
		t.Fatalf("ReadLastDubbedSegment failed: %v", err)
	}
	if last != nil {
		t.Errorf("Expected no dubbed segment yet, got offset %d", last.Offset)
	}

	shipped, err := svc.segments.Ship(second.ID)
	if err != nil {
		t.Fatalf("Ship failed: %v", err)
	}
	if shipped.State != domain.SegmentStateDubbed {
		t.Errorf("Expected state Dubbed, got %s", shipped.State)
	}

	last, err = svc.segments.ReadLastDubbedSegment(chain.ID)
	if err != nil {
		t.Fatalf("ReadLastDubbedSegment failed: %v", err)
	}
	if last == nil || last.ID != second.ID {
		t.Errorf("Expected last dubbed segment %s, got %v", second.ID, last)
	}

	if _, err := svc.segments.Ship(second.ID); err != nil {
		t.Errorf("Expected shipping a dubbed segment again to be a no-op, got %v", err)
	}
}

func TestSegmentService_Revert(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	svc := newServices(t, db)

	chain := putChain(t, svc.store, "c1", domain.ChainStateFabricate, nil)
	if err := db.SaveChain(chain); err != nil {
		t.Fatalf("SaveChain failed: %v", err)
	}
	seg := putSegment(t, svc.store, chain.ID, 0, domain.SegmentStateCrafting)

	entities := []domain.SegmentEntity{
		domain.SegmentChoice{ID: "choice-1", SegmentID: seg.ID, ProgramID: "main-1", ProgramType: domain.ProgramTypeMain},
		domain.SegmentMeme{ID: "meme-1", SegmentID: seg.ID, Name: "WARM"},
		domain.SegmentMessage{ID: "msg-1", SegmentID: seg.ID, Type: domain.MessageTypeError, Body: "no main program"},
	}
	for _, e := range entities {
		if err := svc.store.PutEntity(e); err != nil {
			t.Fatalf("PutEntity failed: %v", err)
		}
	}
	if err := db.SaveSegment(seg); err != nil {
		t.Fatalf("SaveSegment failed: %v", err)
	}
	if err := db.SaveSegmentEntities(context.Background(), seg.ID, entities); err != nil {
		t.Fatalf("SaveSegmentEntities failed: %v", err)
	}

	reverted, err := svc.segments.Revert(context.Background(), seg.ID)
	if err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	if reverted.State != domain.SegmentStatePlanned {
		t.Errorf("Expected state Planned, got %s", reverted.State)
	}

	kept := svc.segments.ReadEntities(seg.ID)
	if len(kept) != 1 || kept[0].Kind() != domain.KindMessage {
		t.Errorf("Expected only the message to remain, got %v", kept)
	}

	persisted, err := db.ListSegmentEntities(seg.ID)
	if err != nil {
		t.Fatalf("ListSegmentEntities failed: %v", err)
	}
	if len(persisted) != 1 || persisted[0].EntityID() != "msg-1" {
		t.Errorf("Expected only msg-1 persisted, got %v", persisted)
	}

	crafted := putSegment(t, svc.store, chain.ID, 1, domain.SegmentStateCrafted)
	if _, err := svc.segments.Revert(context.Background(), crafted.ID); !domain.IsPrivilege(err) {
		t.Errorf("Expected privilege error reverting a crafted segment, got %v", err)
	}
}

func TestSegmentService_Destroy(t *testing.T) {
	svc := newServices(t, nil)
	chain := putChain(t, svc.store, "c1", domain.ChainStateFabricate, nil)
	seg := putSegment(t, svc.store, chain.ID, 0, domain.SegmentStateCrafted)

	if err := svc.segments.Destroy(seg.ID); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := svc.segments.ReadOne(seg.ID); !domain.IsExistence(err) {
		t.Errorf("Expected existence error after destroy, got %v", err)
	}
	if _, err := svc.segments.ReadOneAtChainOffset(chain.ID, 0); !domain.IsExistence(err) {
		t.Errorf("Expected offset 0 to be free, got %v", err)
	}
}

func TestSegmentService_ShipArchives(t *testing.T) {
	svc := newServices(t, nil)
	dir := t.TempDir()
	archive, err := storage.NewArchive(dir, "{{.ShipKey}}/{{.Offset}}")
	if err != nil {
		t.Fatalf("NewArchive failed: %v", err)
	}
	svc.segments.Archive = archive

	chain := putChain(t, svc.store, "c1", domain.ChainStateFabricate, nil)
	seg := putSegment(t, svc.store, chain.ID, 0, domain.SegmentStateCrafted)
	if err := svc.store.PutEntity(domain.SegmentMeme{ID: "meme-1", SegmentID: seg.ID, Name: "WARM"}); err != nil {
		t.Fatalf("PutEntity failed: %v", err)
	}

	if _, err := svc.segments.Ship(seg.ID); err != nil {
		t.Fatalf("Ship failed: %v", err)
	}

	path := filepath.Join(dir, "key_c1", "000000.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected archived segment at %s: %v", path, err)
	}
	if !strings.Contains(string(data), `"WARM"`) {
		t.Errorf("Expected archived document to carry the meme, got %s", data)
	}

	if err := svc.segments.Destroy(seg.ID); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "key_c1")); !os.IsNotExist(err) {
		t.Errorf("Expected archive folder removed with its last segment, got %v", err)
	}
}
