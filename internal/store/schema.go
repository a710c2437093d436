package store

const Schema = `
CREATE TABLE IF NOT EXISTS chains (
	id TEXT PRIMARY KEY,
	account_id TEXT,
	template_id TEXT,
	name TEXT,
	type TEXT NOT NULL,
	state TEXT NOT NULL,
	ship_key TEXT,
	start_at DATETIME,
	stop_at DATETIME,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chains_ship_key ON chains(ship_key);

CREATE TABLE IF NOT EXISTS segments (
	id TEXT PRIMARY KEY,
	chain_id TEXT NOT NULL REFERENCES chains(id) ON DELETE CASCADE,
	segment_offset INTEGER NOT NULL,
	type TEXT NOT NULL,
	state TEXT NOT NULL,
	begin_at DATETIME NOT NULL,
	end_at DATETIME,
	begin_at_chain_micros INTEGER NOT NULL DEFAULT 0,
	duration_micros INTEGER,
	total INTEGER DEFAULT 0,
	intensity REAL DEFAULT 0,
	tempo REAL DEFAULT 0,
	key_name TEXT,
	storage_key TEXT,
	delta INTEGER DEFAULT 0,
	waveform_preroll REAL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One segment per offset within a chain
CREATE UNIQUE INDEX IF NOT EXISTS idx_segments_chain_offset ON segments(chain_id, segment_offset);

CREATE TABLE IF NOT EXISTS segment_entities (
	id TEXT NOT NULL,
	segment_id TEXT NOT NULL REFERENCES segments(id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	seq INTEGER NOT NULL DEFAULT 0,
	body TEXT NOT NULL,  -- JSON
	PRIMARY KEY (kind, id)
);

CREATE INDEX IF NOT EXISTS idx_segment_entities_segment ON segment_entities(segment_id, kind, seq);

CREATE TABLE IF NOT EXISTS templates (
	id TEXT PRIMARY KEY,
	name TEXT,
	ship_key TEXT,
	config TEXT,  -- YAML
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
