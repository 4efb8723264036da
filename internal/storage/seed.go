package storage

import (
	_ "embed"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed seed_taxonomy.yaml
var taxonomySeedYAML []byte

type taxonomySeed struct {
	Segments      []seedEntry `yaml:"segments"`
	Organizations []seedEntry `yaml:"organizations"`
}

type seedEntry struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
}

// seedTaxonomyIfEmpty loads the embedded YAML taxonomy into segments and
// organizations when the segments table is empty, inserting every row in
// one transaction with INSERT OR IGNORE so existing codes are not
// duplicated (spec.md §5).
func (s *Store) seedTaxonomyIfEmpty() error {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM segments`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var seed taxonomySeed
	if err := yaml.Unmarshal(taxonomySeedYAML, &seed); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range seed.Segments {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO segments (id, code, name, color) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), e.Code, e.Name, e.Color); err != nil {
			return err
		}
	}
	for _, e := range seed.Organizations {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO organizations (id, code, name, color) VALUES (?, ?, ?, ?)`,
			uuid.NewString(), e.Code, e.Name, e.Color); err != nil {
			return err
		}
	}
	return tx.Commit()
}
