package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Azure extracts text through the Azure Computer Vision OCR endpoint. There
// is no Go SDK worth its weight for this one call, so it is a thin REST
// client over the documented v3.2 surface.
type Azure struct {
	endpoint string
	key      string
	client   *http.Client
}

// NewAzure validates the credentials are present; the endpoint is the
// resource base URL (https://<name>.cognitiveservices.azure.com).
func NewAzure(endpoint, key string) (*Azure, error) {
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("azure ocr requires endpoint and key")
	}
	return &Azure{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (a *Azure) Name() string { return NameAzure }

// azureOCRResult mirrors the subset of the v3.2 /ocr response we read.
type azureOCRResult struct {
	Regions []struct {
		Lines []struct {
			Words []struct {
				Text string `json:"text"`
			} `json:"words"`
		} `json:"lines"`
	} `json:"regions"`
}

func (a *Azure) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	url := a.endpoint + "/vision/v3.2/ocr?language=unk&detectOrientation=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrExtraction, err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.key)
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: azure ocr call: %v", ErrExtraction, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read azure response: %v", ErrExtraction, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: azure ocr status %d: %s", ErrExtraction, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var result azureOCRResult
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decode azure response: %v", ErrExtraction, err)
	}
	var sb strings.Builder
	for _, region := range result.Regions {
		for _, line := range region.Lines {
			words := make([]string, 0, len(line.Words))
			for _, w := range line.Words {
				words = append(words, w.Text)
			}
			sb.WriteString(strings.Join(words, " "))
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}
