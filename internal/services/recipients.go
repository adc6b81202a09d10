package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rohits-web03/dispatch/internal/metrics"
	"github.com/rohits-web03/dispatch/internal/models"
	"github.com/rohits-web03/dispatch/internal/repositories"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecipientInput carries the editable fields of a recipient. Pointer fields
// are left untouched by Update when nil.
type RecipientInput struct {
	Name      *string `json:"name" validate:"omitnil,min=1,max=90"`
	Desc      *string `json:"desc" validate:"omitnil,max=140"`
	Phone     *string `json:"phone" validate:"omitnil,min=1,max=18"`
	City      *string `json:"city" validate:"omitnil,min=1,max=40"`
	Birthdate *string `json:"birthdate"`
	Uni       *string `json:"uni" validate:"omitnil,max=140"`
}

type RecipientService struct {
	db    *gorm.DB
	blobs repositories.BlobStore
	log   logrus.FieldLogger
}

func NewRecipientService(db *gorm.DB, blobs repositories.BlobStore, log logrus.FieldLogger) *RecipientService {
	return &RecipientService{db: db, blobs: blobs, log: log}
}

// List returns active recipients whose name starts with namePrefix,
// ignoring case.
func (s *RecipientService) List(ctx context.Context, namePrefix string) ([]models.Recipient, error) {
	q := s.db.WithContext(ctx).Where("status = ?", models.RecipientActive)
	if namePrefix != "" {
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\'`, escapeLike(strings.ToLower(namePrefix))+"%")
	}
	out := []models.Recipient{}
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *RecipientService) Get(ctx context.Context, id uint) (*models.Recipient, error) {
	var r models.Recipient
	err := s.db.WithContext(ctx).Take(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("recipient")
	}
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}
	return &r, nil
}

func (s *RecipientService) Create(ctx context.Context, in RecipientInput) (*models.Recipient, error) {
	var missing []string
	if in.Name == nil {
		missing = append(missing, "name is required")
	}
	if in.Phone == nil {
		missing = append(missing, "phone is required")
	}
	if in.City == nil {
		missing = append(missing, "city is required")
	}
	if len(missing) > 0 {
		return nil, validationError(missing...)
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	r := models.Recipient{Status: models.RecipientActive}
	if err := apply(&r, in); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Create(&r).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, &Error{Kind: KindAlreadyExists, Message: "a recipient with this phone already exists"}
	}
	if err != nil {
		return nil, fmt.Errorf("create recipient: %w", err)
	}
	return &r, nil
}

// Update applies a partial edit to an active recipient.
func (s *RecipientService) Update(ctx context.Context, id uint, in RecipientInput) (*models.Recipient, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var out models.Recipient
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Recipient
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("recipient")
			}
			return fmt.Errorf("load recipient: %w", err)
		}
		if !r.IsActive() {
			return invalidState("recipient %d is deleted", id)
		}
		if err := apply(&r, in); err != nil {
			return err
		}
		err := tx.Save(&r).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &Error{Kind: KindAlreadyExists, Message: "a recipient with this phone already exists"}
		}
		if err != nil {
			return fmt.Errorf("update recipient: %w", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func apply(r *models.Recipient, in RecipientInput) error {
	if in.Name != nil {
		r.Name = *in.Name
	}
	if in.Desc != nil {
		r.Desc = *in.Desc
	}
	if in.Phone != nil {
		r.Phone = *in.Phone
	}
	if in.City != nil {
		r.City = *in.City
	}
	if in.Uni != nil {
		r.Uni = *in.Uni
	}
	if in.Birthdate != nil {
		if *in.Birthdate == "" {
			r.Birthdate = nil
			return nil
		}
		d, err := time.Parse(dateLayout, *in.Birthdate)
		if err != nil {
			return validationError("birthdate must be a date in 2006-01-02 format")
		}
		r.Birthdate = &d
	}
	return nil
}

// Delete soft-deletes the recipient and drops it from every draft. Formed
// and finalized transfers keep their rows.
func (s *RecipientService) Delete(ctx context.Context, id uint) error {
	var avatar string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r models.Recipient
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&r, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("recipient")
			}
			return fmt.Errorf("load recipient: %w", err)
		}
		if !r.IsActive() {
			return invalidState("recipient already deleted")
		}
		avatar = r.Avatar

		drafts := tx.Model(&models.Transfer{}).Select("id").Where("status = ?", models.TransferDraft)
		err := tx.Where("recipient_id = ? AND transfer_id IN (?)", id, drafts).
			Delete(&models.TransferRecipient{}).Error
		if err != nil {
			return fmt.Errorf("drop recipient from drafts: %w", err)
		}
		err = tx.Model(&r).Updates(map[string]any{
			"status": models.RecipientDeleted,
			"avatar": "",
		}).Error
		if err != nil {
			return fmt.Errorf("delete recipient: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if avatar != "" {
		s.removeBlob(ctx, avatar)
	}
	return nil
}

// SetAvatar uploads a new avatar and replaces the previous one.
func (s *RecipientService) SetAvatar(ctx context.Context, id uint, up Upload) (*models.Recipient, error) {
	if up.Name == "" || up.Body == nil {
		return nil, validationError("avatar is required")
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.IsActive() {
		return nil, invalidState("recipient %d is deleted", id)
	}

	url, err := s.blobs.Put(ctx, up.Name, up.Body, up.Size, up.ContentType)
	if err != nil {
		return nil, dependencyFailure("upload avatar", err)
	}

	previous := r.Avatar
	res := s.db.WithContext(ctx).Model(&models.Recipient{}).
		Where("id = ? AND status = ?", id, models.RecipientActive).
		Update("avatar", url)
	if res.Error != nil || res.RowsAffected == 0 {
		s.removeBlob(ctx, url)
		if res.Error != nil {
			return nil, fmt.Errorf("store avatar: %w", res.Error)
		}
		return nil, invalidState("recipient %d is deleted", id)
	}
	if previous != "" && previous != url {
		s.removeBlob(ctx, previous)
	}
	r.Avatar = url
	return r, nil
}

func (s *RecipientService) removeBlob(ctx context.Context, url string) {
	if err := s.blobs.Delete(ctx, url); err != nil {
		metrics.RecordBlobCleanupFailure()
		s.log.WithError(err).WithField("blob", url).Warn("failed to delete blob")
	}
}
