// Package process orchestrates per-receipt and batch OCR runs: extract,
// parse, assess, persist, with one fallback attempt and no partial writes.
package process

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mxxx222/converto-receipts/pkg/ocr"
	"github.com/mxxx222/converto-receipts/pkg/parse"
	"github.com/mxxx222/converto-receipts/pkg/quality"
	"github.com/mxxx222/converto-receipts/pkg/receipt"
	"github.com/mxxx222/converto-receipts/pkg/store"
)

// batchWidth bounds concurrent OCR calls during a batch run. Fixed admission
// control, not dynamic backpressure.
const batchWidth = 3

// ErrOCRFailed means both the primary provider and the fallback engine
// failed; the receipt stays queued for a manual retry.
var ErrOCRFailed = errors.New("ocr failed on primary and fallback providers")

// Processor wires the store and the configured providers together.
type Processor struct {
	store    store.Store
	primary  ocr.Provider
	fallback ocr.Provider // nil when the primary already is the local engine
}

// New builds a processor. fallback may be nil.
func New(st store.Store, primary, fallback ocr.Provider) *Processor {
	return &Processor{store: st, primary: primary, fallback: fallback}
}

// Outcome is the result of one successful receipt run.
type Outcome struct {
	Provider     string          `json:"provider"`
	FallbackUsed bool            `json:"fallbackUsed"`
	ExtractionMs int64           `json:"extractionMs"`
	Parsed       receipt.Parsed  `json:"parsed"`
	Quality      receipt.Quality `json:"quality"`
}

// Result is the per-receipt entry of a batch run.
type Result struct {
	ID       string `json:"id"`
	OK       bool   `json:"ok"`
	Provider string `json:"provider,omitempty"`
	Fallback bool   `json:"fallback"`
	Ms       int64  `json:"ms"`
	Error    string `json:"error,omitempty"`
}

// ProcessOne runs a single receipt through extract → parse → assess and
// persists the full tuple atomically. Reprocessing an already-reviewed
// receipt overwrites its previous result. On double extraction failure
// nothing is written and the receipt keeps its status.
func (p *Processor) ProcessOne(ctx context.Context, id string) (Outcome, error) {
	meta, err := p.store.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	data, err := p.store.Buffer(ctx, id)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	text, provider, fellBack, err := p.extract(ctx, data, meta.MimeType)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}

	parsed, err := parse.Parse(text)
	if err != nil {
		// extract() rejects empty text, so this is a programming error.
		return Outcome{}, fmt.Errorf("parse after successful extraction: %w", err)
	}
	q := quality.Assess(parsed)

	pm := receipt.ProcessingMeta{
		Provider:     provider,
		FallbackUsed: fellBack,
		ExtractionMs: elapsed,
		At:           time.Now().UTC(),
	}
	if err := p.store.Approve(ctx, id, parsed, q, pm); err != nil {
		return Outcome{}, fmt.Errorf("persist result for %s: %w", id, err)
	}
	return Outcome{
		Provider:     provider,
		FallbackUsed: fellBack,
		ExtractionMs: elapsed,
		Parsed:       parsed,
		Quality:      q,
	}, nil
}

// extract calls the primary provider and, on failure, the fallback engine
// exactly once. A successful call returning only whitespace counts as a
// failure: there is nothing to parse.
func (p *Processor) extract(ctx context.Context, data []byte, mimeType string) (string, string, bool, error) {
	text, err := p.primary.ExtractText(ctx, data, mimeType)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: %s returned no text", ocr.ErrExtraction, p.primary.Name())
	}
	if err == nil {
		return text, p.primary.Name(), false, nil
	}
	if p.fallback == nil {
		return "", "", false, err
	}
	log.Printf("ocr: primary %s failed (%v), falling back to %s", p.primary.Name(), err, p.fallback.Name())
	text, ferr := p.fallback.ExtractText(ctx, data, mimeType)
	if ferr == nil && strings.TrimSpace(text) == "" {
		ferr = fmt.Errorf("%w: %s returned no text", ocr.ErrExtraction, p.fallback.Name())
	}
	if ferr != nil {
		return "", "", false, fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return text, p.fallback.Name(), true, nil
}

// ProcessAll runs every queued receipt through ProcessOne, at most
// batchWidth at a time. One receipt's failure never aborts the others; the
// result slice maps 1:1 to the queued receipts in listing order regardless
// of completion order.
func (p *Processor) ProcessAll(ctx context.Context) ([]Result, error) {
	all, err := p.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	var queued []receipt.Meta
	for _, m := range all {
		if m.Status == receipt.StatusQueued {
			queued = append(queued, m)
		}
	}

	results := make([]Result, len(queued))
	var g errgroup.Group
	g.SetLimit(batchWidth)
	for i, m := range queued {
		i, m := i, m
		g.Go(func() error {
			out, err := p.ProcessOne(ctx, m.ID)
			if err != nil {
				log.Printf("process: receipt %s failed: %v", m.ID, err)
				results[i] = Result{ID: m.ID, Error: err.Error()}
				return nil
			}
			results[i] = Result{
				ID:       m.ID,
				OK:       true,
				Provider: out.Provider,
				Fallback: out.FallbackUsed,
				Ms:       out.ExtractionMs,
			}
			return nil
		})
	}
	_ = g.Wait() // workers never return an error; failures live in results
	return results, nil
}
