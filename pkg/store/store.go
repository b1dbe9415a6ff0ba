// Package store persists uploaded receipt files and their processing state.
// Uploads are content-addressed: byte-identical files resolve to the same
// logical receipt regardless of how often they are submitted.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

// DefaultMaxUploadBytes caps uploads at 6 MiB.
const DefaultMaxUploadBytes = 6 << 20

var (
	// ErrInvalidUpload is the parent of all upload validation failures.
	ErrInvalidUpload = errors.New("invalid upload")

	ErrEmptyFile       = fmt.Errorf("%w: empty file", ErrInvalidUpload)
	ErrTooLarge        = fmt.Errorf("%w: file too large", ErrInvalidUpload)
	ErrUnsupportedType = fmt.Errorf("%w: unsupported content type", ErrInvalidUpload)

	// ErrNotFound is returned for operations referencing an unknown or
	// deleted receipt id.
	ErrNotFound = errors.New("receipt not found")
)

// Upload is a validated-on-add incoming file.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

// AddResult reports the stored receipt and whether the upload was a
// byte-identical duplicate of an existing one.
type AddResult struct {
	Meta      receipt.Meta `json:"meta"`
	Duplicate bool         `json:"duplicate"`
}

// Store is the persistence contract of the pipeline. Implementations must
// update the (status, parsed, processing, quality) tuple of a receipt
// atomically per id, and must not block operations on distinct ids against
// each other.
type Store interface {
	// Add validates and stores an upload. Identical bytes resolve to the
	// already-stored receipt with Duplicate set.
	Add(ctx context.Context, up Upload) (AddResult, error)
	// FindByHash looks a receipt up by its content hash.
	FindByHash(ctx context.Context, hash string) (*receipt.Meta, error)
	// List returns all live receipts in insertion order.
	List(ctx context.Context) ([]receipt.Meta, error)
	// Get returns a single receipt's metadata.
	Get(ctx context.Context, id string) (*receipt.Meta, error)
	// Buffer returns the raw uploaded bytes for (re)processing.
	Buffer(ctx context.Context, id string) ([]byte, error)
	// Approve marks the receipt reviewed and attaches the parsed record,
	// quality verdict and extraction provenance in one atomic write.
	Approve(ctx context.Context, id string, parsed receipt.Parsed, q receipt.Quality, meta receipt.ProcessingMeta) error
	// SetProcessingMeta overwrites only the extraction provenance.
	SetProcessingMeta(ctx context.Context, id string, meta receipt.ProcessingMeta) error
	// Remove soft-deletes a receipt; it disappears from List/Get but stays
	// recoverable.
	Remove(ctx context.Context, id string) (*receipt.Meta, error)
	// Restore reverses a prior Remove.
	Restore(ctx context.Context, id string) (*receipt.Meta, error)
}

// ValidateUpload checks size and MIME constraints and returns the content
// hash used for deduplication.
func ValidateUpload(up Upload, maxBytes int64) (string, error) {
	if len(up.Data) == 0 {
		return "", ErrEmptyFile
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if int64(len(up.Data)) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(up.Data), maxBytes)
	}
	if !AllowedMimeType(up.MimeType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, up.MimeType)
	}
	sum := sha256.Sum256(up.Data)
	return hex.EncodeToString(sum[:]), nil
}

// AllowedMimeType reports whether the pipeline accepts this content type.
func AllowedMimeType(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	return strings.HasPrefix(mime, "image/") || mime == "application/pdf"
}
