package resume

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
)

// Profile is an extracted résumé together with the text it came from.
type Profile struct {
	Text     string
	Sections session.Resume
}

// LoadProfile reads a résumé from disk. PDF and plain text files go through the extractor;
// JSON files are taken as an already extracted profile.
func LoadProfile(ctx context.Context, path string, extractor *Extractor) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read resume %q: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var sections session.Resume
		if err := json.Unmarshal(data, &sections); err != nil {
			return nil, fmt.Errorf("decode resume profile %q: %w", path, err)
		}
		if sections == nil {
			sections = session.Resume{}
		}
		return &Profile{Sections: sections}, nil
	case ".pdf":
		text, err := ExtractPDFText(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("extract text from %q: %w", path, err)
		}
		return extractProfile(ctx, extractor, text)
	default:
		return extractProfile(ctx, extractor, string(data))
	}
}

func extractProfile(ctx context.Context, extractor *Extractor, text string) (*Profile, error) {
	sections, err := extractor.Extract(ctx, text)
	if err != nil {
		return nil, err
	}
	return &Profile{Text: strings.TrimSpace(text), Sections: sections}, nil
}
