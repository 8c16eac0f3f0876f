// Package seed loads a schema+instance bootstrap file for a database.
// It backs cmd/dbctl's seed command and cmd/cli's .import command: both
// entrypoints need to populate a fresh working commit from a file
// instead of issuing one edit at a time.
package seed

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/nickyhof/CommitDB/model"
)

// File is the on-disk shape of a seed: enough to create a database (if
// it does not already exist) and stage a schema plus instances into a
// working commit on its default branch.
type File struct {
	DatabaseName        string           `json:"database_name"`
	DatabaseDescription string           `json:"database_description"`
	Schema              model.Schema     `json:"schema"`
	Instances           []model.Instance `json:"instances"`
}

// Load reads a YAML seed file and decodes it into typed model values.
// The document is decoded generically first and re-marshaled through
// JSON so that model's existing `json` struct tags (snake_case field
// names) drive the mapping, rather than duplicating every tag in `yaml`
// form across model/.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}

	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("seed: parse yaml %s: %w", path, err)
	}

	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("seed: convert %s to json: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(asJSON, &f); err != nil {
		return nil, fmt.Errorf("seed: decode %s: %w", path, err)
	}
	return &f, nil
}
