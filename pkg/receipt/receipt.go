package receipt

import "time"

// Status is the processing state of an uploaded receipt.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusReviewed Status = "reviewed"
	StatusFailed   Status = "failed"
	StatusRestored Status = "restored"
)

// Item is a single purchased line on a receipt, in source-text order.
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Parsed is the structured result of running the text parser over raw OCR
// output. All fields are best-effort; RawText is kept verbatim for audit.
type Parsed struct {
	Merchant string  `json:"merchant"`
	Date     string  `json:"date,omitempty"` // ISO calendar date (YYYY-MM-DD)
	Total    float64 `json:"total"`
	Tax      float64 `json:"tax"`
	Items    []Item  `json:"items"`
	RawText  string  `json:"rawText"`
}

// ProcessingMeta records provenance of the last successful extraction.
// Overwritten whenever a receipt is reprocessed.
type ProcessingMeta struct {
	Provider     string    `json:"provider"`
	FallbackUsed bool      `json:"fallbackUsed"`
	ExtractionMs int64     `json:"extractionMs"`
	At           time.Time `json:"at"`
}

// Quality is the assessor's completeness/consistency verdict for a parsed
// receipt. It informs manual review, it never blocks approval.
type Quality struct {
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// Meta is the stored metadata of an uploaded receipt file.
type Meta struct {
	ID           string          `json:"id"`
	ContentHash  string          `json:"contentHash"`
	MimeType     string          `json:"mimeType"`
	SizeBytes    int64           `json:"sizeBytes"`
	OriginalName string          `json:"originalName"`
	Status       Status          `json:"status"`
	UploadedAt   time.Time       `json:"uploadedAt"`
	Parsed       *Parsed         `json:"parsed,omitempty"`
	Processing   *ProcessingMeta `json:"processing,omitempty"`
	Quality      *Quality        `json:"quality,omitempty"`
}
