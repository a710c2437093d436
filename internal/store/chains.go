package store

import (
	"database/sql"
	"errors"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

const chainColumns = `id, account_id, template_id, name, type, state, ship_key, start_at, stop_at, created_at, updated_at`

func (db *DB) SaveChain(chain *domain.Chain) error {
	query := `INSERT INTO chains (` + chainColumns + `)
		VALUES (:id, :account_id, :template_id, :name, :type, :state, :ship_key, :start_at, :stop_at, :created_at, :updated_at)
		ON CONFLICT(id) DO UPDATE SET
			account_id = excluded.account_id,
			template_id = excluded.template_id,
			name = excluded.name,
			type = excluded.type,
			state = excluded.state,
			ship_key = excluded.ship_key,
			start_at = excluded.start_at,
			stop_at = excluded.stop_at,
			updated_at = excluded.updated_at`

	_, err := db.NamedExec(query, chain)
	return err
}

func (db *DB) GetChain(id string) (*domain.Chain, error) {
	chain := &domain.Chain{}
	err := db.Get(chain, `SELECT `+chainColumns+` FROM chains WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Wrap(domain.KindExistence, domain.ErrChainNotFound, "chain %s", id)
	}
	if err != nil {
		return nil, err
	}
	return chain, nil
}

func (db *DB) ListChains() ([]*domain.Chain, error) {
	var chains []*domain.Chain
	err := db.Select(&chains, `SELECT `+chainColumns+` FROM chains ORDER BY created_at ASC`)
	return chains, err
}

// DeleteChain removes a chain with all of its segments and their children.
func (db *DB) DeleteChain(id string) error {
	if _, err := db.Exec(`DELETE FROM segment_entities WHERE segment_id IN (SELECT id FROM segments WHERE chain_id = ?)`, id); err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM segments WHERE chain_id = ?`, id); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM chains WHERE id = ?`, id)
	return err
}
