package apl

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
)

// Component identifiers the layout must define.
const (
	SurfaceA     = "imageA"
	SurfaceB     = "imageB"
	LabelSurface = "counterText"
)

//go:embed layout/camera.json
var layoutFS embed.FS

const embeddedLayout = "layout/camera.json"

// Document is a parsed layout document. It is read-only once loaded.
type Document struct {
	content map[string]any
}

// Content returns the document tree for serialization.
func (d *Document) Content() map[string]any {
	return d.content
}

// DefaultDocument returns the embedded camera layout.
func DefaultDocument() (*Document, error) {
	data, err := layoutFS.ReadFile(embeddedLayout)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded layout: %w", err)
	}
	return ParseDocument(data)
}

// LoadDocument reads a layout from path, or the embedded layout when path
// is empty.
func LoadDocument(path string) (*Document, error) {
	if path == "" {
		return DefaultDocument()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}
	return ParseDocument(data)
}

// ParseDocument decodes and validates a layout. The layout must contain
// exactly one Image with each of the ids SurfaceA and SurfaceB and one Text
// with id LabelSurface.
func ParseDocument(data []byte) (*Document, error) {
	var content map[string]any
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to parse layout: %w", err)
	}

	found := make(map[string][]string)
	collectComponents(content, found)

	required := []struct{ id, kind string }{
		{SurfaceA, "Image"},
		{SurfaceB, "Image"},
		{LabelSurface, "Text"},
	}
	for _, r := range required {
		kinds := found[r.id]
		if len(kinds) != 1 {
			return nil, fmt.Errorf("layout must define component %q exactly once, found %d", r.id, len(kinds))
		}
		if kinds[0] != r.kind {
			return nil, fmt.Errorf("layout component %q must be %s, got %s", r.id, r.kind, kinds[0])
		}
	}

	return &Document{content: content}, nil
}

// collectComponents records the type of every node carrying an "id".
func collectComponents(node any, found map[string][]string) {
	switch v := node.(type) {
	case map[string]any:
		if id, ok := v["id"].(string); ok {
			kind, _ := v["type"].(string)
			found[id] = append(found[id], kind)
		}
		for _, child := range v {
			collectComponents(child, found)
		}
	case []any:
		for _, child := range v {
			collectComponents(child, found)
		}
	}
}
