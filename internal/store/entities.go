package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

type entityRow struct {
	ID        string `db:"id"`
	SegmentID string `db:"segment_id"`
	Kind      string `db:"kind"`
	Seq       int    `db:"seq"`
	Body      string `db:"body"`
}

var entityDecoders = map[domain.EntityKind]func([]byte) (domain.SegmentEntity, error){
	domain.KindChoice:       decodeAs[domain.SegmentChoice],
	domain.KindArrangement:  decodeAs[domain.SegmentChoiceArrangement],
	domain.KindPick:         decodeAs[domain.SegmentChoiceArrangementPick],
	domain.KindChord:        decodeAs[domain.SegmentChord],
	domain.KindChordVoicing: decodeAs[domain.SegmentChordVoicing],
	domain.KindMeme:         decodeAs[domain.SegmentMeme],
	domain.KindMessage:      decodeAs[domain.SegmentMessage],
	domain.KindMeta:         decodeAs[domain.SegmentMeta],
}

func decodeAs[E domain.SegmentEntity](body []byte) (domain.SegmentEntity, error) {
	var e E
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, err
	}
	return e, nil
}

// SaveSegmentEntities replaces every child entity of a segment in one transaction.
func (db *DB) SaveSegmentEntities(ctx context.Context, segmentID string, entities []domain.SegmentEntity) error {
	rows := make([]entityRow, 0, len(entities))
	for i, e := range entities {
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", e.Kind(), e.EntityID(), err)
		}
		rows = append(rows, entityRow{
			ID:        e.EntityID(),
			SegmentID: segmentID,
			Kind:      string(e.Kind()),
			Seq:       i,
			Body:      string(body),
		})
	}

	return db.RunInTx(ctx, func(tx *DB) error {
		if _, err := tx.Exec(`DELETE FROM segment_entities WHERE segment_id = ?`, segmentID); err != nil {
			return err
		}
		for _, row := range rows {
			_, err := tx.NamedExec(`INSERT INTO segment_entities (id, segment_id, kind, seq, body)
				VALUES (:id, :segment_id, :kind, :seq, :body)
				ON CONFLICT(kind, id) DO UPDATE SET segment_id = excluded.segment_id, seq = excluded.seq, body = excluded.body`, row)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) ListSegmentEntities(segmentID string) ([]domain.SegmentEntity, error) {
	var rows []entityRow
	if err := db.Select(&rows, `SELECT id, segment_id, kind, seq, body FROM segment_entities WHERE segment_id = ? ORDER BY kind, seq`, segmentID); err != nil {
		return nil, err
	}

	out := make([]domain.SegmentEntity, 0, len(rows))
	for _, row := range rows {
		decode, ok := entityDecoders[domain.EntityKind(row.Kind)]
		if !ok {
			return nil, fmt.Errorf("unknown entity kind %q", row.Kind)
		}
		e, err := decode([]byte(row.Body))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", row.Kind, row.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Restore loads every persisted chain, segment and child entity into the
// in-memory store. Sealed segments are restored with their crafted content.
func (db *DB) Restore(s *SegmentStore) (int, error) {
	chains, err := db.ListChains()
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, chain := range chains {
		if err := s.PutChain(chain); err != nil {
			return restored, fmt.Errorf("failed to restore chain %s: %w", chain.ID, err)
		}
		segments, err := db.ListSegments(chain.ID)
		if err != nil {
			return restored, err
		}
		for _, seg := range segments {
			if err := s.PutSegment(seg); err != nil {
				return restored, fmt.Errorf("failed to restore segment %s: %w", seg.ID, err)
			}
			entities, err := db.ListSegmentEntities(seg.ID)
			if err != nil {
				return restored, err
			}
			for _, e := range entities {
				if err := s.putEntity(e, false); err != nil {
					return restored, fmt.Errorf("failed to restore %s %s: %w", e.Kind(), e.EntityID(), err)
				}
			}
		}
		restored++
	}
	return restored, nil
}
