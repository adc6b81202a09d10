package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rohits-web03/dispatch/internal/metrics"
	"github.com/rohits-web03/dispatch/internal/models"
	"github.com/rohits-web03/dispatch/internal/repositories"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Decision is the moderator's verdict on a formed transfer.
type Decision string

const (
	DecisionComplete Decision = "complete"
	DecisionReject   Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionComplete || d == DecisionReject
}

func (d Decision) status() models.TransferStatus {
	if d == DecisionReject {
		return models.TransferRejected
	}
	return models.TransferCompleted
}

// ParseDecision turns the action string of a completion request into a
// Decision, failing with a MissingAction error for anything else.
func ParseDecision(action string) (Decision, error) {
	d := Decision(action)
	if !d.Valid() {
		return "", &Error{Kind: KindMissingAction, Message: "no action specified, expected \"complete\" or \"reject\""}
	}
	return d, nil
}

// Upload is a file payload on its way to the blob store.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// TransferService owns the transfer lifecycle: draft accumulation,
// formation and moderation. Every mutation runs in a single transaction
// against a row-locked transfer.
type TransferService struct {
	db     *gorm.DB
	blobs  repositories.BlobStore
	log    logrus.FieldLogger
	now    func() time.Time
	drafts singleflight.Group
}

func NewTransferService(db *gorm.DB, blobs repositories.BlobStore, log logrus.FieldLogger) *TransferService {
	return &TransferService{
		db:    db,
		blobs: blobs,
		log:   log,
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// GetOrCreateDraft returns the sender's draft, creating it when none exists.
// Concurrent calls in this process share one lookup; across processes the
// partial unique index decides the winner and losers re-read its draft.
func (s *TransferService) GetOrCreateDraft(ctx context.Context, sender *models.User) (*models.Transfer, error) {
	key := strconv.FormatUint(uint64(sender.ID), 10)
	// The flight is shared, so one caller's cancellation must not fail the rest.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.drafts.Do(key, func() (any, error) {
		return s.loadOrCreateDraft(flightCtx, sender.ID)
	})
	if err != nil {
		return nil, err
	}
	draft := *v.(*models.Transfer)
	return &draft, nil
}

func (s *TransferService) loadOrCreateDraft(ctx context.Context, senderID uint) (*models.Transfer, error) {
	db := s.db.WithContext(ctx)

	existing, err := findDraft(db, senderID)
	if err != nil || existing != nil {
		return existing, err
	}

	draft := models.Transfer{
		Status:    models.TransferDraft,
		SenderID:  senderID,
		CreatedAt: s.now(),
	}
	err = db.Omit(clause.Associations).Create(&draft).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		existing, err = findDraft(db, senderID)
		if err == nil && existing == nil {
			err = errors.New("draft vanished after unique violation")
		}
		return existing, err
	}
	if err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	metrics.RecordTransition(models.TransferDraft)
	return &draft, nil
}

func findDraft(db *gorm.DB, senderID uint) (*models.Transfer, error) {
	var draft models.Transfer
	err := db.Where("sender_id = ? AND status = ?", senderID, models.TransferDraft).
		Take(&draft).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find draft: %w", err)
	}
	return &draft, nil
}

// AddRecipient puts an active recipient on the sender's draft, creating the
// draft first if needed.
func (s *TransferService) AddRecipient(ctx context.Context, sender *models.User, recipientID uint) (*models.Transfer, error) {
	if _, err := activeRecipient(s.db.WithContext(ctx), recipientID); err != nil {
		return nil, err
	}

	draft, err := s.GetOrCreateDraft(ctx, sender)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, sender, draft.ID, func(tx *gorm.DB, t *models.Transfer) error {
		if err := requireDraft(t, "add recipients to"); err != nil {
			return err
		}
		// FOR SHARE waits out a concurrent recipient delete.
		if _, err := activeRecipient(tx.Clauses(clause.Locking{Strength: "SHARE"}), recipientID); err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&models.TransferRecipient{}).
			Where("transfer_id = ? AND recipient_id = ?", t.ID, recipientID).
			Count(&n).Error; err != nil {
			return fmt.Errorf("check recipient: %w", err)
		}
		if n > 0 {
			return alreadyAdded()
		}

		row := models.TransferRecipient{TransferID: t.ID, RecipientID: recipientID}
		err := tx.Omit(clause.Associations).Create(&row).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return alreadyAdded()
		}
		if err != nil {
			return fmt.Errorf("add recipient: %w", err)
		}
		*draft = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

func alreadyAdded() *Error {
	return &Error{Kind: KindAlreadyAdded, Message: "recipient already added"}
}

func activeRecipient(db *gorm.DB, id uint) (*models.Recipient, error) {
	var r models.Recipient
	err := db.Take(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("recipient")
	}
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}
	if !r.IsActive() {
		return nil, invalidState("recipient %d is deleted", id)
	}
	return &r, nil
}

// RemoveRecipient deletes the join row for recipientID from a draft.
func (s *TransferService) RemoveRecipient(ctx context.Context, actor *models.User, transferID, recipientID uint) error {
	return s.mutate(ctx, actor, transferID, func(tx *gorm.DB, t *models.Transfer) error {
		if err := requireDraft(t, "remove recipients from"); err != nil {
			return err
		}
		res := tx.Where("transfer_id = ? AND recipient_id = ?", t.ID, recipientID).
			Delete(&models.TransferRecipient{})
		if res.Error != nil {
			return fmt.Errorf("remove recipient: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFound("transfer recipient")
		}
		return nil
	})
}

// GetTransferRecipient returns one join row of a transfer.
func (s *TransferService) GetTransferRecipient(ctx context.Context, actor *models.User, transferID, recipientID uint) (*models.TransferRecipient, error) {
	if _, err := s.Get(ctx, actor, transferID); err != nil {
		return nil, err
	}
	return findJoinRow(s.db.WithContext(ctx), transferID, recipientID)
}

func findJoinRow(db *gorm.DB, transferID, recipientID uint) (*models.TransferRecipient, error) {
	var row models.TransferRecipient
	err := db.Where("transfer_id = ? AND recipient_id = ?", transferID, recipientID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("transfer recipient")
	}
	if err != nil {
		return nil, fmt.Errorf("load transfer recipient: %w", err)
	}
	return &row, nil
}

type commentInput struct {
	Comment string `json:"comment" validate:"max=200"`
}

// UpdateRecipientComment edits the per-recipient comment of a draft.
func (s *TransferService) UpdateRecipientComment(ctx context.Context, actor *models.User, transferID, recipientID uint, comment string) (*models.TransferRecipient, error) {
	if err := validateStruct(commentInput{Comment: comment}); err != nil {
		return nil, err
	}

	var out *models.TransferRecipient
	err := s.mutate(ctx, actor, transferID, func(tx *gorm.DB, t *models.Transfer) error {
		if err := requireDraft(t, "edit recipients of"); err != nil {
			return err
		}
		row, err := findJoinRow(tx, t.ID, recipientID)
		if err != nil {
			return err
		}
		if err := tx.Model(row).Update("comment", comment).Error; err != nil {
			return fmt.Errorf("update comment: %w", err)
		}
		row.Comment = comment
		out = row
		return nil
	})
	return out, err
}

// SetFile uploads a new file for a draft and swaps the stored reference.
// The previous blob is removed only after the row points at the new one, and
// a failed swap removes the freshly uploaded blob.
func (s *TransferService) SetFile(ctx context.Context, actor *models.User, transferID uint, up Upload) (*models.Transfer, error) {
	if up.Name == "" || up.Body == nil {
		return nil, validationError("file is required")
	}

	current, err := s.Get(ctx, actor, transferID)
	if err != nil {
		return nil, err
	}
	if err := requireDraft(current, "attach a file to"); err != nil {
		return nil, err
	}

	url, err := s.blobs.Put(ctx, up.Name, up.Body, up.Size, up.ContentType)
	if err != nil {
		return nil, dependencyFailure("upload file", err)
	}

	var previous string
	var out models.Transfer
	err = s.mutate(ctx, actor, transferID, func(tx *gorm.DB, t *models.Transfer) error {
		if err := requireDraft(t, "attach a file to"); err != nil {
			return err
		}
		previous = t.File
		err := tx.Model(t).Updates(map[string]any{
			"file":      url,
			"file_name": up.Name,
			"file_size": up.Size,
		}).Error
		if err != nil {
			return fmt.Errorf("store file reference: %w", err)
		}
		t.File, t.FileName, t.FileSize = url, up.Name, up.Size
		out = *t
		return nil
	})
	if err != nil {
		s.removeBlob(ctx, url)
		return nil, err
	}

	if previous != "" && previous != url {
		s.removeBlob(ctx, previous)
	}
	return &out, nil
}

// Form moves a draft to formed once it has at least one recipient and a file.
func (s *TransferService) Form(ctx context.Context, actor *models.User, transferID uint) (*models.Transfer, error) {
	var out models.Transfer
	err := s.mutate(ctx, actor, transferID, func(tx *gorm.DB, t *models.Transfer) error {
		switch t.Status {
		case models.TransferDraft:
		case models.TransferFormed:
			return invalidState("the transfer is already formed")
		default:
			return invalidState("cannot form a %s transfer, it must be %s", t.Status, models.TransferDraft)
		}
		if err := validateReady(tx, t); err != nil {
			return err
		}

		now := s.now()
		err := tx.Model(t).Updates(map[string]any{
			"status":    models.TransferFormed,
			"formed_at": now,
		}).Error
		if err != nil {
			return fmt.Errorf("form transfer: %w", err)
		}
		t.Status = models.TransferFormed
		t.FormedAt = &now
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(models.TransferFormed)
	return &out, nil
}

// Complete applies a moderator's decision to a formed transfer and marks
// every recipient as delivered with the same timestamp.
func (s *TransferService) Complete(ctx context.Context, actor *models.User, transferID uint, decision Decision) (*models.Transfer, error) {
	if !decision.Valid() {
		_, err := ParseDecision(string(decision))
		return nil, err
	}

	var out models.Transfer
	err := s.mutate(ctx, actor, transferID, func(tx *gorm.DB, t *models.Transfer) error {
		switch {
		case t.Status == models.TransferFormed:
		case t.Status.Terminal():
			return invalidState("the transfer is already finalized (%s)", t.Status)
		default:
			return invalidState("the transfer is not formed yet (%s)", t.Status)
		}
		if !actor.IsModerator() {
			return forbidden("only moderators can complete or reject transfers")
		}
		if err := validateReady(tx, t); err != nil {
			return err
		}

		now := s.now()
		status := decision.status()
		err := tx.Model(t).Updates(map[string]any{
			"status":       status,
			"completed_at": now,
			"moderator_id": actor.ID,
		}).Error
		if err != nil {
			return fmt.Errorf("complete transfer: %w", err)
		}
		err = tx.Model(&models.TransferRecipient{}).
			Where("transfer_id = ?", t.ID).
			Updates(map[string]any{"has_read": true, "sent_at": now}).Error
		if err != nil {
			return fmt.Errorf("mark recipients: %w", err)
		}

		t.Status = status
		t.CompletedAt = &now
		t.ModeratorID = &actor.ID
		out = *t
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordTransition(out.Status)
	return &out, nil
}

// Delete soft-deletes a draft and hard-deletes its join rows.
func (s *TransferService) Delete(ctx context.Context, actor *models.User, transferID uint) error {
	var file string
	err := s.mutate(ctx, actor, transferID, func(tx *gorm.DB, t *models.Transfer) error {
		if t.Status != models.TransferDraft {
			return invalidState("cannot delete a non-draft transfer (%s)", t.Status)
		}
		if err := tx.Where("transfer_id = ?", t.ID).Delete(&models.TransferRecipient{}).Error; err != nil {
			return fmt.Errorf("delete recipients: %w", err)
		}
		err := tx.Model(t).Updates(map[string]any{
			"status":     models.TransferDeleted,
			"deleted_at": s.now(),
		}).Error
		if err != nil {
			return fmt.Errorf("delete transfer: %w", err)
		}
		file = t.File
		return nil
	})
	if err != nil {
		return err
	}
	metrics.RecordTransition(models.TransferDeleted)
	if file != "" {
		s.removeBlob(ctx, file)
	}
	return nil
}

// Get loads a transfer with its sender and moderator. Only the sender and
// moderators may see it.
func (s *TransferService) Get(ctx context.Context, actor *models.User, transferID uint) (*models.Transfer, error) {
	var t models.Transfer
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Preload("Moderator").
		Take(&t, transferID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("transfer")
	}
	if err != nil {
		return nil, fmt.Errorf("load transfer: %w", err)
	}
	if !canAccess(actor, &t) {
		return nil, forbidden("not your transfer")
	}
	return &t, nil
}

// mutate runs fn in a transaction with the transfer row locked, after the
// access check.
func (s *TransferService) mutate(ctx context.Context, actor *models.User, transferID uint, fn func(tx *gorm.DB, t *models.Transfer) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t models.Transfer
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Take(&t, transferID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFound("transfer")
		}
		if err != nil {
			return fmt.Errorf("lock transfer: %w", err)
		}
		if !canAccess(actor, &t) {
			return forbidden("not your transfer")
		}
		return fn(tx, &t)
	})
}

func canAccess(actor *models.User, t *models.Transfer) bool {
	return actor != nil && (actor.IsModerator() || t.SenderID == actor.ID)
}

func requireDraft(t *models.Transfer, action string) error {
	if t.Status != models.TransferDraft {
		return invalidState("cannot %s a %s transfer, it must be %s", action, t.Status, models.TransferDraft)
	}
	return nil
}

// validateReady lists every missing requirement for formation.
func validateReady(tx *gorm.DB, t *models.Transfer) error {
	var n int64
	if err := tx.Model(&models.TransferRecipient{}).Where("transfer_id = ?", t.ID).Count(&n).Error; err != nil {
		return fmt.Errorf("count recipients: %w", err)
	}
	var problems []string
	if n == 0 {
		problems = append(problems, "recipients field is empty")
	}
	if t.File == "" {
		problems = append(problems, "no files selected for transfer")
	}
	if len(problems) > 0 {
		return validationError(problems...)
	}
	return nil
}

func (s *TransferService) removeBlob(ctx context.Context, url string) {
	if err := s.blobs.Delete(ctx, url); err != nil {
		metrics.RecordBlobCleanupFailure()
		s.log.WithError(err).WithField("blob", url).Warn("failed to delete blob")
	}
}
