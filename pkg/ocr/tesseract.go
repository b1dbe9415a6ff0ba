package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract is the local, dependency-free engine. It doubles as the
// designated fallback for the cloud providers.
type Tesseract struct {
	languages []string
}

// NewTesseract configures the local engine. Languages default to eng+deu,
// matching the parser's keyword locales.
func NewTesseract(languages []string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng", "deu"}
	}
	return &Tesseract{languages: languages}
}

func (t *Tesseract) Name() string { return NameTesseract }

func (t *Tesseract) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	img, err := t.decode(data, mimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	text, err := t.recognize(prepareImage(img))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	// Low-contrast paper sometimes comes back empty; retry once binarized.
	if strings.TrimSpace(text) == "" {
		text, err = t.recognize(binarize(imaging.Grayscale(img), 160))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrExtraction, err)
		}
	}
	return text, nil
}

func (t *Tesseract) decode(data []byte, mimeType string) (image.Image, error) {
	if strings.EqualFold(strings.TrimSpace(mimeType), "application/pdf") {
		return renderPDF(data)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func (t *Tesseract) recognize(img image.Image) (string, error) {
	buf, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := client.SetImageFromBytes(buf); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}
