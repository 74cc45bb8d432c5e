package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
)

// GoldenItem is one reference question/answer pair from the golden set.
type GoldenItem struct {
	Question         string `json:"question"`
	Answer           string `json:"answer"`
	ReferenceContext string `json:"reference_context,omitempty"`
}

// LoadGoldenSet reads the reference set from a JSON file holding an
// array of items.
func LoadGoldenSet(path string) ([]GoldenItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden set: %w", err)
	}

	var items []GoldenItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse golden set: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("golden set %s is empty", path)
	}

	return items, nil
}
