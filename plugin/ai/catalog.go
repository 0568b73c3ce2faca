package ai

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// FunctionDefinition describes one callable operation exposed to the
// model. The catalog is configuration: it is loaded from disk at startup
// and never generated at runtime.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// LoadCatalog reads the function catalog from a JSON file.
func LoadCatalog(path string) ([]FunctionDefinition, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read function catalog %s", path)
	}

	var catalog []FunctionDefinition
	if err := json.Unmarshal(buf, &catalog); err != nil {
		return nil, errors.Wrapf(err, "failed to parse function catalog %s", path)
	}

	for _, fn := range catalog {
		if fn.Name == "" {
			return nil, errors.Errorf("function catalog %s contains an entry without a name", path)
		}
	}

	return catalog, nil
}
