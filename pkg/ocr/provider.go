// Package ocr abstracts the text-extraction backends behind a single
// Provider interface. The orchestrator never branches on provider identity;
// it only knows that a non-tesseract primary has tesseract as its fallback.
package ocr

import (
	"context"
	"errors"
	"fmt"
)

// Provider names accepted in configuration.
const (
	NameTesseract = "tesseract"
	NameVision    = "vision"
	NameAzure     = "azure"
)

// ErrExtraction marks an individual backend failure (timeout, auth, garbled
// input). The orchestrator recovers from it once, via the fallback engine.
var ErrExtraction = errors.New("ocr extraction failed")

// Provider is one text-extraction backend.
type Provider interface {
	Name() string
	// ExtractText returns the raw recognized text of an image or PDF.
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Config selects and parameterizes the backends.
type Config struct {
	Provider      string // vision | azure | tesseract; empty means tesseract
	VisionAPIKey  string
	AzureEndpoint string
	AzureKey      string
	Languages     []string // tesseract language packs, default eng+deu
}

// FromConfig builds the primary provider and its fallback once at startup.
// The fallback is always the local tesseract engine; it is nil when the
// primary already is tesseract (no second attempt beyond it).
func FromConfig(cfg Config) (primary, fallback Provider, err error) {
	local := NewTesseract(cfg.Languages)
	switch cfg.Provider {
	case "", NameTesseract:
		return local, nil, nil
	case NameVision:
		v, err := NewVision(context.Background(), cfg.VisionAPIKey)
		if err != nil {
			return nil, nil, err
		}
		return v, local, nil
	case NameAzure:
		a, err := NewAzure(cfg.AzureEndpoint, cfg.AzureKey)
		if err != nil {
			return nil, nil, err
		}
		return a, local, nil
	default:
		return nil, nil, fmt.Errorf("unknown ocr provider %q", cfg.Provider)
	}
}
