package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/domain"
)

// TemplateRepo stores template config overrides edited at runtime. Content
// loaded from disk supplies the baseline; a saved row wins over it.
type TemplateRepo struct {
	db *DB
}

func NewTemplateRepo(db *DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

type templateRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	ShipKey string `db:"ship_key"`
	Config  string `db:"config"`
}

// Get returns nil without error when no override exists.
func (r *TemplateRepo) Get(id string) (*domain.Template, error) {
	var row templateRow
	err := r.db.Get(&row, "SELECT id, name, ship_key, config FROM templates WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := domain.ParseTemplateConfig([]byte(row.Config))
	if err != nil {
		return nil, err
	}
	return &domain.Template{ID: row.ID, Name: row.Name, ShipKey: row.ShipKey, Config: cfg}, nil
}

func (r *TemplateRepo) Save(t *domain.Template) error {
	if err := t.Config.Validate(); err != nil {
		return err
	}
	cfg, err := t.Config.Marshal()
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT INTO templates (id, name, ship_key, config, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, ship_key = excluded.ship_key,
			config = excluded.config, updated_at = excluded.updated_at
	`, t.ID, t.Name, t.ShipKey, string(cfg), time.Now())
	return err
}

func (r *TemplateRepo) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM templates WHERE id = ?", id)
	return err
}
