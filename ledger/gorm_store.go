package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/replyloop/replyloop/db/models"
	"github.com/replyloop/replyloop/internal/strutil"
)

// Column bound for detail and error text; longer values are truncated on a
// UTF-8 boundary rather than rejected.
const maxTextBytes = 2048

type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) UpsertPending(ctx context.Context, rec Record) (Record, error) {
	if s == nil || s.DB == nil {
		return Record{}, fmt.Errorf("nil ledger store")
	}
	if err := validateKeyFields(rec); err != nil {
		return Record{}, err
	}

	var out Record
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, found, err := getTx(tx, rec.UserID, rec.ThreadID, rec.ActionKey)
		if err != nil {
			return err
		}
		now := time.Now().Unix()

		if found {
			if existing.Status.Terminal() {
				out = existing
				return nil
			}
			updates := map[string]any{
				"status":     string(StatusPending),
				"detail":     strutil.TruncateUTF8(rec.Detail, maxTextBytes),
				"updated_at": now,
			}
			if rec.OrderID != 0 {
				updates["order_id"] = rec.OrderID
			}
			if rec.OrderNumber != "" {
				updates["order_number"] = rec.OrderNumber
			}
			if err := tx.Model(&models.ActionRecord{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
			refreshed, _, err := getTx(tx, rec.UserID, rec.ThreadID, rec.ActionKey)
			if err != nil {
				return err
			}
			out = refreshed
			return nil
		}

		row := recordToModel(rec)
		row.Status = string(StatusPending)
		row.Detail = strutil.TruncateUTF8(rec.Detail, maxTextBytes)
		row.CreatedAt = now
		row.UpdatedAt = now
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		out = modelToRecord(row)
		return nil
	})
	return out, err
}

func (s *GormStore) Get(ctx context.Context, userID, threadID, actionKey string) (Record, bool, error) {
	if s == nil || s.DB == nil {
		return Record{}, false, fmt.Errorf("nil ledger store")
	}
	return getTx(s.DB.WithContext(ctx), userID, threadID, actionKey)
}

func (s *GormStore) GetByID(ctx context.Context, id uint64) (Record, bool, error) {
	if s == nil || s.DB == nil {
		return Record{}, false, fmt.Errorf("nil ledger store")
	}
	var row models.ActionRecord
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return modelToRecord(row), true, nil
}

func (s *GormStore) LatestPending(ctx context.Context, userID, threadID string) (Record, bool, error) {
	if s == nil || s.DB == nil {
		return Record{}, false, fmt.Errorf("nil ledger store")
	}
	var row models.ActionRecord
	err := s.DB.WithContext(ctx).
		Where("user_id = ? AND thread_id = ? AND status = ?", strings.TrimSpace(userID), strings.TrimSpace(threadID), string(StatusPending)).
		Order("updated_at DESC, id DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return modelToRecord(row), true, nil
}

func (s *GormStore) MarkApplied(ctx context.Context, rec Record) (Record, error) {
	return s.resolve(ctx, rec, StatusApplied, "")
}

func (s *GormStore) MarkFailed(ctx context.Context, rec Record, execErr string) (Record, error) {
	return s.resolve(ctx, rec, StatusFailed, execErr)
}

// resolve upserts the record into an execution outcome state. An existing
// applied row is never overwritten: re-resolution echoes it unchanged.
func (s *GormStore) resolve(ctx context.Context, rec Record, status Status, execErr string) (Record, error) {
	if s == nil || s.DB == nil {
		return Record{}, fmt.Errorf("nil ledger store")
	}
	if err := validateKeyFields(rec); err != nil {
		return Record{}, err
	}

	var out Record
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, found, err := getTx(tx, rec.UserID, rec.ThreadID, rec.ActionKey)
		if err != nil {
			return err
		}
		now := time.Now().Unix()

		if found {
			if existing.Status == StatusApplied {
				out = existing
				return nil
			}
			updates := map[string]any{
				"status":     string(status),
				"detail":     strutil.TruncateUTF8(rec.Detail, maxTextBytes),
				"updated_at": now,
				"decided_at": now,
			}
			if rec.OrderID != 0 {
				updates["order_id"] = rec.OrderID
			}
			if rec.OrderNumber != "" {
				updates["order_number"] = rec.OrderNumber
			}
			if status == StatusApplied {
				updates["applied_at"] = now
				updates["error"] = nil
			} else {
				updates["error"] = strutil.TruncateUTF8(execErr, maxTextBytes)
			}
			if err := tx.Model(&models.ActionRecord{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
				return err
			}
			refreshed, _, err := getTx(tx, rec.UserID, rec.ThreadID, rec.ActionKey)
			if err != nil {
				return err
			}
			out = refreshed
			return nil
		}

		row := recordToModel(rec)
		row.Status = string(status)
		row.Detail = strutil.TruncateUTF8(rec.Detail, maxTextBytes)
		row.CreatedAt = now
		row.UpdatedAt = now
		row.DecidedAt = &now
		if status == StatusApplied {
			row.AppliedAt = &now
		} else if execErr != "" {
			msg := strutil.TruncateUTF8(execErr, maxTextBytes)
			row.Error = &msg
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		out = modelToRecord(row)
		return nil
	})
	return out, err
}

func (s *GormStore) MarkDeclined(ctx context.Context, id uint64) (Record, error) {
	if s == nil || s.DB == nil {
		return Record{}, fmt.Errorf("nil ledger store")
	}
	var out Record
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.ActionRecord
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("action record %d not found", id)
			}
			return err
		}
		if Status(row.Status) == StatusDeclined {
			out = modelToRecord(row)
			return nil
		}
		if Status(row.Status) == StatusApplied {
			return fmt.Errorf("action record %d is already applied", id)
		}
		now := time.Now().Unix()
		updates := map[string]any{
			"status":     string(StatusDeclined),
			"decided_at": now,
			"updated_at": now,
		}
		if err := tx.Model(&models.ActionRecord{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		out = modelToRecord(row)
		return nil
	})
	return out, err
}

func getTx(tx *gorm.DB, userID, threadID, actionKey string) (Record, bool, error) {
	var row models.ActionRecord
	err := tx.
		Where("user_id = ? AND thread_id = ? AND action_key = ?",
			strings.TrimSpace(userID), strings.TrimSpace(threadID), actionKey).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return modelToRecord(row), true, nil
}

func validateKeyFields(rec Record) error {
	if strings.TrimSpace(rec.UserID) == "" || strings.TrimSpace(rec.ThreadID) == "" || strings.TrimSpace(rec.ActionKey) == "" {
		return fmt.Errorf("ledger record requires user, thread and action key")
	}
	return nil
}

func recordToModel(rec Record) models.ActionRecord {
	return models.ActionRecord{
		UserID:      strings.TrimSpace(rec.UserID),
		ThreadID:    strings.TrimSpace(rec.ThreadID),
		ActionKey:   rec.ActionKey,
		ActionType:  strings.TrimSpace(rec.ActionType),
		PayloadJSON: rec.PayloadJSON,
		OrderID:     rec.OrderID,
		OrderNumber: strings.TrimSpace(rec.OrderNumber),
	}
}

func modelToRecord(row models.ActionRecord) Record {
	rec := Record{
		ID:          row.ID,
		UserID:      row.UserID,
		ThreadID:    row.ThreadID,
		ActionKey:   row.ActionKey,
		ActionType:  row.ActionType,
		Status:      Status(row.Status),
		Detail:      row.Detail,
		PayloadJSON: row.PayloadJSON,
		OrderID:     row.OrderID,
		OrderNumber: row.OrderNumber,
		CreatedAt:   time.Unix(row.CreatedAt, 0).UTC(),
		UpdatedAt:   time.Unix(row.UpdatedAt, 0).UTC(),
	}
	if row.Error != nil {
		rec.Error = *row.Error
	}
	if row.DecidedAt != nil {
		t := time.Unix(*row.DecidedAt, 0).UTC()
		rec.DecidedAt = &t
	}
	if row.AppliedAt != nil {
		t := time.Unix(*row.AppliedAt, 0).UTC()
		rec.AppliedAt = &t
	}
	return rec
}
