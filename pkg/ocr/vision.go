package ocr

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

// Vision extracts text through the Google Cloud Vision API.
type Vision struct {
	svc *vision.Service
}

// NewVision builds the API client once; requests reuse it.
func NewVision(ctx context.Context, apiKey string) (*Vision, error) {
	var opts []option.ClientOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init vision client: %w", err)
	}
	return &Vision{svc: svc}, nil
}

func (v *Vision) Name() string { return NameVision }

func (v *Vision) ExtractText(ctx context.Context, data []byte, _ string) (string, error) {
	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
			Features: []*vision.Feature{{Type: "DOCUMENT_TEXT_DETECTION"}},
		}},
	}
	resp, err := v.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: vision annotate: %v", ErrExtraction, err)
	}
	if len(resp.Responses) == 0 {
		return "", fmt.Errorf("%w: vision returned no responses", ErrExtraction)
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("%w: vision: %s", ErrExtraction, r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", fmt.Errorf("%w: vision found no text", ErrExtraction)
	}
	return r.FullTextAnnotation.Text, nil
}
