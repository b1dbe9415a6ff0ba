package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mxxx222/converto-receipts/models"
	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

// GormStore persists receipts in postgres. Tuple updates ride a single
// UPDATE statement, so statement atomicity covers the per-id requirement.
type GormStore struct {
	db       *gorm.DB
	maxBytes int64
}

// NewGormStore wraps an opened gorm connection. Migration is the caller's
// concern (see openGorm in the server wiring).
func NewGormStore(db *gorm.DB, maxBytes int64) *GormStore {
	return &GormStore{db: db, maxBytes: maxBytes}
}

func (s *GormStore) Add(ctx context.Context, up Upload) (AddResult, error) {
	hash, err := ValidateUpload(up, s.maxBytes)
	if err != nil {
		return AddResult{}, err
	}
	var existing models.Receipt
	err = s.db.WithContext(ctx).Where("content_hash = ?", hash).First(&existing).Error
	if err == nil {
		meta, err := rowToMeta(&existing)
		if err != nil {
			return AddResult{}, err
		}
		return AddResult{Meta: *meta, Duplicate: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return AddResult{}, fmt.Errorf("lookup by hash: %w", err)
	}
	row := models.Receipt{
		ID:           uuid.NewString(),
		ContentHash:  hash,
		MimeType:     up.MimeType,
		SizeBytes:    int64(len(up.Data)),
		OriginalName: up.Name,
		Status:       string(receipt.StatusQueued),
		UploadedAt:   time.Now().UTC(),
		Data:         up.Data,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return AddResult{}, fmt.Errorf("create receipt: %w", err)
	}
	meta, err := rowToMeta(&row)
	if err != nil {
		return AddResult{}, err
	}
	return AddResult{Meta: *meta}, nil
}

func (s *GormStore) FindByHash(ctx context.Context, hash string) (*receipt.Meta, error) {
	var row models.Receipt
	err := s.db.WithContext(ctx).Where("content_hash = ? AND deleted = false", hash).First(&row).Error
	if err != nil {
		return nil, mapGormErr(err)
	}
	return rowToMeta(&row)
}

func (s *GormStore) List(ctx context.Context) ([]receipt.Meta, error) {
	var rows []models.Receipt
	err := s.db.WithContext(ctx).
		Where("deleted = false").
		Order("uploaded_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	out := make([]receipt.Meta, 0, len(rows))
	for i := range rows {
		meta, err := rowToMeta(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *meta)
	}
	return out, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*receipt.Meta, error) {
	row, err := s.liveRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return rowToMeta(row)
}

func (s *GormStore) Buffer(ctx context.Context, id string) ([]byte, error) {
	row, err := s.liveRow(ctx, id)
	if err != nil {
		return nil, err
	}
	return row.Data, nil
}

func (s *GormStore) Approve(ctx context.Context, id string, parsed receipt.Parsed, q receipt.Quality, meta receipt.ProcessingMeta) error {
	parsedJSON, err := json.Marshal(parsed)
	if err != nil {
		return fmt.Errorf("encode parsed: %w", err)
	}
	qJSON, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quality: %w", err)
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode processing meta: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("id = ? AND deleted = false", id).
		Updates(map[string]interface{}{
			"status":     string(receipt.StatusReviewed),
			"parsed":     parsedJSON,
			"quality":    qJSON,
			"processing": metaJSON,
		})
	if res.Error != nil {
		return fmt.Errorf("approve receipt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) SetProcessingMeta(ctx context.Context, id string, meta receipt.ProcessingMeta) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode processing meta: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("id = ? AND deleted = false", id).
		Update("processing", metaJSON)
	if res.Error != nil {
		return fmt.Errorf("set processing meta: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Remove(ctx context.Context, id string) (*receipt.Meta, error) {
	row, err := s.liveRow(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("id = ? AND deleted = false", id).
		Updates(map[string]interface{}{"deleted": true, "prev_status": row.Status})
	if res.Error != nil {
		return nil, fmt.Errorf("remove receipt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return rowToMeta(row)
}

func (s *GormStore) Restore(ctx context.Context, id string) (*receipt.Meta, error) {
	var row models.Receipt
	err := s.db.WithContext(ctx).Where("id = ? AND deleted = true", id).First(&row).Error
	if err != nil {
		return nil, mapGormErr(err)
	}
	status := row.PrevStatus
	if status == "" {
		status = string(receipt.StatusRestored)
	}
	res := s.db.WithContext(ctx).Model(&models.Receipt{}).
		Where("id = ? AND deleted = true", id).
		Updates(map[string]interface{}{"deleted": false, "status": status, "prev_status": ""})
	if res.Error != nil {
		return nil, fmt.Errorf("restore receipt: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	row.Status = status
	return rowToMeta(&row)
}

func (s *GormStore) liveRow(ctx context.Context, id string) (*models.Receipt, error) {
	var row models.Receipt
	err := s.db.WithContext(ctx).Where("id = ? AND deleted = false", id).First(&row).Error
	if err != nil {
		return nil, mapGormErr(err)
	}
	return &row, nil
}

func mapGormErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func rowToMeta(row *models.Receipt) (*receipt.Meta, error) {
	meta := receipt.Meta{
		ID:           row.ID,
		ContentHash:  row.ContentHash,
		MimeType:     row.MimeType,
		SizeBytes:    row.SizeBytes,
		OriginalName: row.OriginalName,
		Status:       receipt.Status(row.Status),
		UploadedAt:   row.UploadedAt,
	}
	if len(row.Parsed) > 0 {
		var p receipt.Parsed
		if err := json.Unmarshal(row.Parsed, &p); err != nil {
			return nil, fmt.Errorf("decode parsed for %s: %w", row.ID, err)
		}
		meta.Parsed = &p
	}
	if len(row.Processing) > 0 {
		var pm receipt.ProcessingMeta
		if err := json.Unmarshal(row.Processing, &pm); err != nil {
			return nil, fmt.Errorf("decode processing meta for %s: %w", row.ID, err)
		}
		meta.Processing = &pm
	}
	if len(row.Quality) > 0 {
		var q receipt.Quality
		if err := json.Unmarshal(row.Quality, &q); err != nil {
			return nil, fmt.Errorf("decode quality for %s: %w", row.ID, err)
		}
		meta.Quality = &q
	}
	return &meta, nil
}
