package store

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

func pngUpload(name string, data []byte) Upload {
	return Upload{Name: name, MimeType: "image/png", Data: data}
}

func TestMemoryAddAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	res, err := s.Add(ctx, pngUpload("a.png", []byte("payload-a")))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Duplicate {
		t.Fatalf("first upload reported duplicate")
	}
	if res.Meta.Status != receipt.StatusQueued {
		t.Fatalf("status = %q, want queued", res.Meta.Status)
	}
	if res.Meta.SizeBytes != int64(len("payload-a")) {
		t.Fatalf("size = %d", res.Meta.SizeBytes)
	}

	got, err := s.Get(ctx, res.Meta.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ContentHash != res.Meta.ContentHash || got.OriginalName != "a.png" {
		t.Fatalf("get = %#v", got)
	}

	buf, err := s.Buffer(ctx, res.Meta.ID)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	if !bytes.Equal(buf, []byte("payload-a")) {
		t.Fatalf("buffer = %q", buf)
	}
}

func TestMemoryDedup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	first, err := s.Add(ctx, pngUpload("a.png", []byte("same-bytes")))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	// Same content under a different name is still the same receipt.
	second, err := s.Add(ctx, pngUpload("b.png", []byte("same-bytes")))
	if err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if !second.Duplicate {
		t.Fatalf("duplicate upload not flagged")
	}
	if second.Meta.ID != first.Meta.ID {
		t.Fatalf("duplicate returned new id: %q vs %q", second.Meta.ID, first.Meta.ID)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list has %d entries, want 1", len(list))
	}
}

func TestMemoryUploadValidation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	if _, err := s.Add(ctx, pngUpload("empty.png", nil)); !errors.Is(err, ErrEmptyFile) {
		t.Fatalf("empty upload: %v", err)
	}
	if _, err := s.Add(ctx, Upload{Name: "x.txt", MimeType: "text/plain", Data: []byte("hi")}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("text/plain upload: %v", err)
	}
	big := make([]byte, DefaultMaxUploadBytes+1)
	if _, err := s.Add(ctx, pngUpload("big.png", big)); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("oversize upload: %v", err)
	}
	// All three are invalid-upload class errors.
	if _, err := s.Add(ctx, pngUpload("empty.png", nil)); !errors.Is(err, ErrInvalidUpload) {
		t.Fatalf("empty upload does not wrap ErrInvalidUpload: %v", err)
	}

	// Exactly at the cap passes.
	exact := make([]byte, DefaultMaxUploadBytes)
	if _, err := s.Add(ctx, pngUpload("exact.png", exact)); err != nil {
		t.Fatalf("upload at cap rejected: %v", err)
	}
	// PDFs are accepted alongside images.
	if _, err := s.Add(ctx, Upload{Name: "r.pdf", MimeType: "application/pdf", Data: []byte("%PDF-1.4")}); err != nil {
		t.Fatalf("pdf upload rejected: %v", err)
	}
}

func TestMemoryListOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	var ids []string
	for _, name := range []string{"1.png", "2.png", "3.png"} {
		res, err := s.Add(ctx, pngUpload(name, []byte(name)))
		if err != nil {
			t.Fatalf("add %s: %v", name, err)
		}
		ids = append(ids, res.Meta.ID)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list has %d entries", len(list))
	}
	for i := range ids {
		if list[i].ID != ids[i] {
			t.Fatalf("list order changed: %v", list)
		}
	}
}

func TestMemoryApprove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	res, _ := s.Add(ctx, pngUpload("a.png", []byte("x")))

	parsed := receipt.Parsed{Merchant: "Shop", Total: 12.08, Tax: 1.10, RawText: "raw"}
	q := receipt.Quality{Score: 0.85, Issues: []string{"no line items"}}
	pm := receipt.ProcessingMeta{Provider: "tesseract", ExtractionMs: 42}
	if err := s.Approve(ctx, res.Meta.ID, parsed, q, pm); err != nil {
		t.Fatalf("approve: %v", err)
	}

	got, err := s.Get(ctx, res.Meta.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != receipt.StatusReviewed {
		t.Fatalf("status = %q", got.Status)
	}
	if got.Parsed == nil || got.Parsed.Total != 12.08 {
		t.Fatalf("parsed = %#v", got.Parsed)
	}
	if got.Quality == nil || got.Quality.Score != 0.85 {
		t.Fatalf("quality = %#v", got.Quality)
	}
	if got.Processing == nil || got.Processing.Provider != "tesseract" {
		t.Fatalf("processing = %#v", got.Processing)
	}

	if err := s.Approve(ctx, "missing", parsed, q, pm); !errors.Is(err, ErrNotFound) {
		t.Fatalf("approve missing id: %v", err)
	}
}

func TestMemoryRemoveRestore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	res, _ := s.Add(ctx, pngUpload("a.png", []byte("x")))
	id := res.Meta.ID

	if _, err := s.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted receipt still visible: %v", err)
	}
	if _, err := s.Remove(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double remove: %v", err)
	}
	list, _ := s.List(ctx)
	if len(list) != 0 {
		t.Fatalf("deleted receipt listed: %v", list)
	}

	m, err := s.Restore(ctx, id)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if m.Status != receipt.StatusQueued {
		t.Fatalf("restored status = %q, want prior queued", m.Status)
	}
	if _, err := s.Restore(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("restore of live receipt: %v", err)
	}
	if _, err := s.Restore(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("restore missing id: %v", err)
	}
}

func TestMemoryConcurrentApproveAndRead(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	res, _ := s.Add(ctx, pngUpload("a.png", []byte("x")))
	id := res.Meta.ID
	hash := res.Meta.ContentHash

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			parsed := receipt.Parsed{Merchant: "Shop", Total: float64(i), RawText: "raw"}
			q := receipt.Quality{Score: 0.5}
			pm := receipt.ProcessingMeta{Provider: "tesseract", ExtractionMs: int64(i)}
			if err := s.Approve(ctx, id, parsed, q, pm); err != nil {
				t.Errorf("approve: %v", err)
				return
			}
		}
	}()

	// Readers must only ever see a complete tuple, never a reviewed status
	// with a stale or missing parsed record.
	check := func(m *receipt.Meta) {
		if m.Status != receipt.StatusReviewed {
			return
		}
		if m.Parsed == nil || m.Quality == nil || m.Processing == nil {
			t.Errorf("reviewed receipt with incomplete tuple: %#v", m)
		}
	}
	for i := 0; i < 500; i++ {
		list, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for j := range list {
			check(&list[j])
		}
		m, err := s.FindByHash(ctx, hash)
		if err != nil {
			t.Fatalf("find by hash: %v", err)
		}
		check(m)
		m, err = s.Get(ctx, id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		check(m)
	}
	<-done
}

func TestMemoryConcurrentDistinctIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	var ids []string
	for i := 0; i < 8; i++ {
		res, err := s.Add(ctx, pngUpload("f.png", []byte{byte(i), 0xFF}))
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, res.Meta.ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				parsed := receipt.Parsed{Total: float64(i), RawText: "raw"}
				if err := s.Approve(ctx, id, parsed, receipt.Quality{}, receipt.ProcessingMeta{}); err != nil {
					t.Errorf("approve %s: %v", id, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		m, err := s.Get(ctx, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if m.Status != receipt.StatusReviewed || m.Parsed == nil {
			t.Fatalf("receipt %s after updates: %#v", id, m)
		}
	}
}

func TestMemoryFindByHash(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	res, _ := s.Add(ctx, pngUpload("a.png", []byte("x")))

	m, err := s.FindByHash(ctx, res.Meta.ContentHash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if m.ID != res.Meta.ID {
		t.Fatalf("find returned %q", m.ID)
	}
	if _, err := s.FindByHash(ctx, "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown hash: %v", err)
	}
}
