package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rohits-web03/dispatch/internal/models"
)

const dateLayout = "2006-01-02"

// TransferFilter narrows List. FormedFrom is inclusive and FormedBefore is
// exclusive; both are nil when no range was requested.
type TransferFilter struct {
	Status       models.TransferStatus
	FormedFrom   *time.Time
	FormedBefore *time.Time
}

// ParseTransferFilter validates the raw query parameters of the transfer
// list. formedAtRange is "YYYY-MM-DD,YYYY-MM-DD" and includes both days.
func ParseTransferFilter(status, formedAtRange string) (TransferFilter, error) {
	var f TransferFilter
	var problems []string

	if status != "" {
		f.Status = models.TransferStatus(status)
		if !f.Status.Valid() {
			problems = append(problems, fmt.Sprintf("unknown status %q", status))
		}
	}

	if formedAtRange != "" {
		from, to, err := parseDateRange(formedAtRange)
		if err != nil {
			problems = append(problems, err.Error())
		} else {
			before := to.AddDate(0, 0, 1)
			f.FormedFrom, f.FormedBefore = &from, &before
		}
	}

	if len(problems) > 0 {
		return TransferFilter{}, validationError(problems...)
	}
	return f, nil
}

func parseDateRange(raw string) (time.Time, time.Time, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, errors.New("formed-at-range must be two dates separated by a comma")
	}
	from, err := time.Parse(dateLayout, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("formed-at-range start %q is not a YYYY-MM-DD date", parts[0])
	}
	to, err := time.Parse(dateLayout, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("formed-at-range end %q is not a YYYY-MM-DD date", parts[1])
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("formed-at-range end is before its start")
	}
	return from, to, nil
}

// List returns formed and finalized transfers. Senders see their own,
// moderators see everyone's.
func (s *TransferService) List(ctx context.Context, actor *models.User, f TransferFilter) ([]models.Transfer, error) {
	q := s.db.WithContext(ctx).
		Preload("Sender").
		Preload("Moderator").
		Where("status NOT IN ?", []models.TransferStatus{models.TransferDraft, models.TransferDeleted})

	if !actor.IsModerator() {
		q = q.Where("sender_id = ?", actor.ID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.FormedFrom != nil {
		q = q.Where("formed_at >= ?", *f.FormedFrom)
	}
	if f.FormedBefore != nil {
		q = q.Where("formed_at < ?", *f.FormedBefore)
	}

	var out []models.Transfer
	if err := q.Order("id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return out, nil
}

// RecipientInfo is the denormalized view of one recipient of a transfer.
type RecipientInfo struct {
	ID      uint   `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Avatar  string `json:"avatar"`
	Comment string `json:"comment"`
	HasRead bool   `json:"has_read"`
}

func (s *TransferService) RecipientsInfo(ctx context.Context, transferID uint) ([]RecipientInfo, error) {
	out := []RecipientInfo{}
	err := s.db.WithContext(ctx).
		Table("transfer_recipients AS tr").
		Select("r.id, r.name, r.phone, r.avatar, tr.comment, tr.has_read").
		Joins("JOIN recipients AS r ON r.id = tr.recipient_id").
		Where("tr.transfer_id = ?", transferID).
		Order("tr.id").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load recipients info: %w", err)
	}
	return out, nil
}

// DraftSummary describes the caller's current draft for the recipients list.
type DraftSummary struct {
	DraftID            *uint `json:"draftId"`
	DraftRecipientsLen int64 `json:"draftRecipientsLen"`
}

func (s *TransferService) DraftSummary(ctx context.Context, sender *models.User) (DraftSummary, error) {
	var out DraftSummary
	db := s.db.WithContext(ctx)
	draft, err := findDraft(db, sender.ID)
	if err != nil || draft == nil {
		return out, err
	}
	out.DraftID = &draft.ID
	err = db.Model(&models.TransferRecipient{}).Where("transfer_id = ?", draft.ID).Count(&out.DraftRecipientsLen).Error
	if err != nil {
		return out, fmt.Errorf("count draft recipients: %w", err)
	}
	return out, nil
}
