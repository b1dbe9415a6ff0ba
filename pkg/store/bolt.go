package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

var (
	bucketReceipts = []byte("receipts")
	bucketBlobs    = []byte("blobs")
	bucketHashIdx  = []byte("hash_index")
	bucketOrder    = []byte("order")
)

// BoltStore is the single-file durable store. bbolt serializes writers, which
// gives the per-id atomic tuple update for free; reads run concurrently.
type BoltStore struct {
	db       *bolt.DB
	maxBytes int64
}

// boltRecord is the persisted envelope around a receipt's metadata.
type boltRecord struct {
	Meta       receipt.Meta   `json:"meta"`
	Deleted    bool           `json:"deleted,omitempty"`
	PrevStatus receipt.Status `json:"prevStatus,omitempty"`
}

// NewBoltStore opens (or creates) the database file at path.
func NewBoltStore(path string, maxBytes int64) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketReceipts, bucketBlobs, bucketHashIdx, bucketOrder} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}
	return &BoltStore{db: db, maxBytes: maxBytes}, nil
}

// Close releases the underlying database file.
func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) Add(_ context.Context, up Upload) (AddResult, error) {
	hash, err := ValidateUpload(up, s.maxBytes)
	if err != nil {
		return AddResult{}, err
	}
	var res AddResult
	err = s.db.Update(func(tx *bolt.Tx) error {
		if id := tx.Bucket(bucketHashIdx).Get([]byte(hash)); id != nil {
			rec, err := readRecord(tx, string(id))
			if err != nil {
				return err
			}
			res = AddResult{Meta: rec.Meta, Duplicate: true}
			return nil
		}
		rec := boltRecord{Meta: receipt.Meta{
			ID:           uuid.NewString(),
			ContentHash:  hash,
			MimeType:     up.MimeType,
			SizeBytes:    int64(len(up.Data)),
			OriginalName: up.Name,
			Status:       receipt.StatusQueued,
			UploadedAt:   time.Now().UTC(),
		}}
		if err := writeRecord(tx, rec); err != nil {
			return err
		}
		if err := tx.Bucket(bucketBlobs).Put([]byte(rec.Meta.ID), up.Data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHashIdx).Put([]byte(hash), []byte(rec.Meta.ID)); err != nil {
			return err
		}
		seq, err := tx.Bucket(bucketOrder).NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		if err := tx.Bucket(bucketOrder).Put(key[:], []byte(rec.Meta.ID)); err != nil {
			return err
		}
		res = AddResult{Meta: rec.Meta}
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}
	return res, nil
}

func (s *BoltStore) FindByHash(_ context.Context, hash string) (*receipt.Meta, error) {
	var out *receipt.Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketHashIdx).Get([]byte(hash))
		if id == nil {
			return ErrNotFound
		}
		rec, err := readRecord(tx, string(id))
		if err != nil {
			return err
		}
		if rec.Deleted {
			return ErrNotFound
		}
		out = &rec.Meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) List(_ context.Context) ([]receipt.Meta, error) {
	var out []receipt.Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOrder).ForEach(func(_, id []byte) error {
			rec, err := readRecord(tx, string(id))
			if err != nil {
				return err
			}
			if !rec.Deleted {
				out = append(out, rec.Meta)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Get(_ context.Context, id string) (*receipt.Meta, error) {
	var out *receipt.Meta
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := readRecord(tx, id)
		if err != nil {
			return err
		}
		if rec.Deleted {
			return ErrNotFound
		}
		out = &rec.Meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Buffer(_ context.Context, id string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := readRecord(tx, id)
		if err != nil {
			return err
		}
		if rec.Deleted {
			return ErrNotFound
		}
		blob := tx.Bucket(bucketBlobs).Get([]byte(id))
		if blob == nil {
			return ErrNotFound
		}
		out = make([]byte, len(blob))
		copy(out, blob)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Approve(_ context.Context, id string, parsed receipt.Parsed, q receipt.Quality, meta receipt.ProcessingMeta) error {
	return s.update(id, func(rec *boltRecord) {
		rec.Meta.Status = receipt.StatusReviewed
		rec.Meta.Parsed = &parsed
		rec.Meta.Quality = &q
		rec.Meta.Processing = &meta
	})
}

func (s *BoltStore) SetProcessingMeta(_ context.Context, id string, meta receipt.ProcessingMeta) error {
	return s.update(id, func(rec *boltRecord) {
		rec.Meta.Processing = &meta
	})
}

func (s *BoltStore) Remove(_ context.Context, id string) (*receipt.Meta, error) {
	var out *receipt.Meta
	err := s.db.Update(func(tx *bolt.Tx) error {
		rec, err := readRecord(tx, id)
		if err != nil {
			return err
		}
		if rec.Deleted {
			return ErrNotFound
		}
		rec.Deleted = true
		rec.PrevStatus = rec.Meta.Status
		if err := writeRecord(tx, rec); err != nil {
			return err
		}
		out = &rec.Meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Restore(_ context.Context, id string) (*receipt.Meta, error) {
	var out *receipt.Meta
	err := s.db.Update(func(tx *bolt.Tx) error {
		rec, err := readRecord(tx, id)
		if err != nil {
			return err
		}
		if !rec.Deleted {
			return ErrNotFound
		}
		rec.Deleted = false
		if rec.PrevStatus != "" {
			rec.Meta.Status = rec.PrevStatus
		} else {
			rec.Meta.Status = receipt.StatusRestored
		}
		rec.PrevStatus = ""
		if err := writeRecord(tx, rec); err != nil {
			return err
		}
		out = &rec.Meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) update(id string, mutate func(*boltRecord)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		rec, err := readRecord(tx, id)
		if err != nil {
			return err
		}
		if rec.Deleted {
			return ErrNotFound
		}
		mutate(&rec)
		return writeRecord(tx, rec)
	})
}

func readRecord(tx *bolt.Tx, id string) (boltRecord, error) {
	raw := tx.Bucket(bucketReceipts).Get([]byte(id))
	if raw == nil {
		return boltRecord{}, ErrNotFound
	}
	var rec boltRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return boltRecord{}, fmt.Errorf("decode receipt %s: %w", id, err)
	}
	return rec, nil
}

func writeRecord(tx *bolt.Tx, rec boltRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode receipt %s: %w", rec.Meta.ID, err)
	}
	return tx.Bucket(bucketReceipts).Put([]byte(rec.Meta.ID), raw)
}
