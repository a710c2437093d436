package store

import (
	"github.com/cesargomez89/segmentcraft/internal/domain"
)

const segmentColumns = `id, chain_id, segment_offset, type, state, begin_at, end_at, begin_at_chain_micros,
	duration_micros, total, intensity, tempo, key_name, storage_key, delta, waveform_preroll, created_at, updated_at`

func (db *DB) SaveSegment(seg *domain.Segment) error {
	query := `INSERT INTO segments (` + segmentColumns + `)
		VALUES (:id, :chain_id, :segment_offset, :type, :state, :begin_at, :end_at, :begin_at_chain_micros,
			:duration_micros, :total, :intensity, :tempo, :key_name, :storage_key, :delta, :waveform_preroll, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			state = excluded.state,
			begin_at = excluded.begin_at,
			end_at = excluded.end_at,
			begin_at_chain_micros = excluded.begin_at_chain_micros,
			duration_micros = excluded.duration_micros,
			total = excluded.total,
			intensity = excluded.intensity,
			tempo = excluded.tempo,
			key_name = excluded.key_name,
			storage_key = excluded.storage_key,
			delta = excluded.delta,
			waveform_preroll = excluded.waveform_preroll,
			updated_at = excluded.updated_at`

	_, err := db.NamedExec(query, seg)
	return err
}

func (db *DB) ListSegments(chainID string) ([]*domain.Segment, error) {
	var segments []*domain.Segment
	err := db.Select(&segments, `SELECT `+segmentColumns+` FROM segments WHERE chain_id = ? ORDER BY segment_offset ASC`, chainID)
	return segments, err
}

func (db *DB) DeleteSegment(id string) error {
	if _, err := db.Exec(`DELETE FROM segment_entities WHERE segment_id = ?`, id); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM segments WHERE id = ?`, id)
	return err
}
