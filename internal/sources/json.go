package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"metacat/internal/document"
)

// ── JSON parser ────────────────────────────────────────────
// A .json file holds either a single object (one record) or a top-level
// array (one record per element).

type jsonParser struct{}

func init() { Register(&jsonParser{}) }

func (p *jsonParser) Extensions() []string { return []string{".json"} }

func (p *jsonParser) Parse(ctx context.Context, path string) ([]Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	if elements, ok := raw.([]any); ok {
		docs := make([]Doc, len(elements))
		for i, elem := range elements {
			docs[i] = Doc{
				Index: i,
				Count: len(elements),
				Root:  document.FromValue(elem),
			}
		}
		return docs, nil
	}

	return []Doc{{Index: 0, Count: 1, Root: document.FromValue(raw)}}, nil
}
