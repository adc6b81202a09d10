package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rohits-web03/dispatch/internal/metrics"
	"github.com/rohits-web03/dispatch/internal/models"
	"github.com/rohits-web03/dispatch/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type transferFixture struct {
	db        *gorm.DB
	blobs     *testutil.MemoryBlobStore
	svc       *TransferService
	sender    *models.User
	stranger  *models.User
	moderator *models.User
}

func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()
	db := testutil.NewDB(t)
	blobs := testutil.NewMemoryBlobStore()
	return &transferFixture{
		db:        db,
		blobs:     blobs,
		svc:       NewTransferService(db, blobs, testutil.Logger()),
		sender:    testutil.CreateUser(t, db, "alice", false),
		stranger:  testutil.CreateUser(t, db, "mallory", false),
		moderator: testutil.CreateUser(t, db, "mod", true),
	}
}

func upload(name, body string) Upload {
	return Upload{Name: name, ContentType: "text/plain", Size: int64(len(body)), Body: strings.NewReader(body)}
}

// readyDraft builds a draft with one recipient and a file.
func (f *transferFixture) readyDraft(t *testing.T) (*models.Transfer, *models.Recipient) {
	t.Helper()
	ctx := context.Background()
	r := testutil.CreateRecipient(t, f.db, "Ivan")
	draft, err := f.svc.AddRecipient(ctx, f.sender, r.ID)
	require.NoError(t, err)
	_, err = f.svc.SetFile(ctx, f.sender, draft.ID, upload("report.pdf", "contents"))
	require.NoError(t, err)
	return draft, r
}

func countDrafts(t *testing.T, db *gorm.DB, senderID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Transfer{}).
		Where("sender_id = ? AND status = ?", senderID, models.TransferDraft).
		Count(&n).Error)
	return n
}

// recordLocks reports the row-lock strength of every locking query on table.
func recordLocks(t *testing.T, db *gorm.DB, table string) func() []string {
	t.Helper()
	var mu sync.Mutex
	var locks []string
	err := db.Callback().Query().After("gorm:query").Register("test:record_locks", func(tx *gorm.DB) {
		if tx.Statement.Table != table {
			return
		}
		c, ok := tx.Statement.Clauses["FOR"]
		if !ok {
			return
		}
		if l, ok := c.Expression.(clause.Locking); ok {
			mu.Lock()
			locks = append(locks, l.Strength)
			mu.Unlock()
		}
	})
	require.NoError(t, err)
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), locks...)
	}
}

func cleanupFailures(t *testing.T) float64 {
	t.Helper()
	families, err := metrics.Registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == "dispatch_blobs_cleanup_failures_total" {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatal("cleanup failure counter is not registered")
	return 0
}

func TestGetOrCreateDraftIsIdempotent(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	first, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)
	assert.Equal(t, models.TransferDraft, first.Status)
	assert.Equal(t, f.sender.ID, first.SenderID)

	second, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), countDrafts(t, f.db, f.sender.ID))
}

func TestGetOrCreateDraftConcurrent(t *testing.T) {
	f := newTransferFixture(t)
	// A second service shares the database but not the in-process group, so
	// the storage index has to settle the race between the two.
	other := NewTransferService(f.db, f.blobs, testutil.Logger())

	const n = 16
	ids := make([]uint, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			svc := f.svc
			if i%2 == 1 {
				svc = other
			}
			d, err := svc.GetOrCreateDraft(context.Background(), f.sender)
			errs[i] = err
			if err == nil {
				ids[i] = d.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, int64(1), countDrafts(t, f.db, f.sender.ID))
}

func TestDraftsArePerSender(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	a, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)
	b, err := f.svc.GetOrCreateDraft(ctx, f.stranger)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestAddRecipientTwiceFails(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	r := testutil.CreateRecipient(t, f.db, "Ivan")

	draft, err := f.svc.AddRecipient(ctx, f.sender, r.ID)
	require.NoError(t, err)

	_, err = f.svc.AddRecipient(ctx, f.sender, r.ID)
	assert.ErrorIs(t, err, ErrAlreadyAdded)

	var rows int64
	require.NoError(t, f.db.Model(&models.TransferRecipient{}).Where("transfer_id = ?", draft.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestAddRecipientRequiresActiveRecipient(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddRecipient(ctx, f.sender, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	r := testutil.CreateRecipient(t, f.db, "Gone")
	require.NoError(t, f.db.Model(r).Update("status", models.RecipientDeleted).Error)
	_, err = f.svc.AddRecipient(ctx, f.sender, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Rejected adds must not leave an empty draft behind either way.
	assert.Equal(t, int64(0), countDrafts(t, f.db, f.sender.ID))
}

func TestFormListsEveryMissingRequirement(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	draft, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)

	_, err = f.svc.Form(ctx, f.sender, draft.ID)
	require.ErrorIs(t, err, ErrValidation)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.ElementsMatch(t, []string{"recipients field is empty", "no files selected for transfer"}, se.Details)

	stored, err := f.svc.Get(ctx, f.sender, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferDraft, stored.Status)
	assert.Nil(t, stored.FormedAt)
}

func TestFormMissingFileOnly(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	r := testutil.CreateRecipient(t, f.db, "Ivan")

	draft, err := f.svc.AddRecipient(ctx, f.sender, r.ID)
	require.NoError(t, err)

	_, err = f.svc.Form(ctx, f.sender, draft.ID)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"no files selected for transfer"}, se.Details)
}

func TestFormAndAlreadyFormed(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, _ := f.readyDraft(t)

	formed, err := f.svc.Form(ctx, f.sender, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferFormed, formed.Status)
	require.NotNil(t, formed.FormedAt)
	assert.False(t, formed.FormedAt.Before(formed.CreatedAt))

	_, err = f.svc.Form(ctx, f.sender, draft.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "already formed")
}

func TestFormByStrangerIsForbidden(t *testing.T) {
	f := newTransferFixture(t)
	draft, _ := f.readyDraft(t)

	_, err := f.svc.Form(context.Background(), f.stranger, draft.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestFormedTransferIsImmutable(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, r := f.readyDraft(t)
	_, err := f.svc.Form(ctx, f.sender, draft.ID)
	require.NoError(t, err)

	err = f.svc.RemoveRecipient(ctx, f.sender, draft.ID, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = f.svc.UpdateRecipientComment(ctx, f.sender, draft.ID, r.ID, "late note")
	assert.ErrorIs(t, err, ErrInvalidState)

	before := f.blobs.Len()
	_, err = f.svc.SetFile(ctx, f.sender, draft.ID, upload("other.pdf", "x"))
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, before, f.blobs.Len())

	err = f.svc.Delete(ctx, f.sender, draft.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// Adding a recipient now opens a fresh draft instead.
	next, err := f.svc.AddRecipient(ctx, f.sender, r.ID)
	require.NoError(t, err)
	assert.NotEqual(t, draft.ID, next.ID)
}

func TestGetOrCreateDraftAdoptsRivalDraft(t *testing.T) {
	f := newTransferFixture(t)
	var rival models.Transfer
	inserted := false
	// Another process creates the draft between our lookup and our insert.
	err := f.db.Callback().Create().Before("gorm:begin_transaction").Register("test:rival_draft", func(tx *gorm.DB) {
		if inserted || tx.Statement.Table != "transfers" {
			return
		}
		inserted = true
		rival = models.Transfer{Status: models.TransferDraft, SenderID: f.sender.ID, CreatedAt: time.Now().UTC()}
		require.NoError(t, f.db.Omit(clause.Associations).Create(&rival).Error)
	})
	require.NoError(t, err)

	draft, err := f.svc.GetOrCreateDraft(context.Background(), f.sender)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, rival.ID, draft.ID)
	assert.Equal(t, int64(1), countDrafts(t, f.db, f.sender.ID))
}

func TestGetOrCreateDraftIgnoresCallerCancellation(t *testing.T) {
	f := newTransferFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	draft, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)
	assert.Equal(t, f.sender.ID, draft.SenderID)
	assert.Equal(t, int64(1), countDrafts(t, f.db, f.sender.ID))
}

func TestAddAndDeleteRecipientLockTheRecipientRow(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	r := testutil.CreateRecipient(t, f.db, "Ivan")
	locks := recordLocks(t, f.db, "recipients")

	draft, err := f.svc.AddRecipient(ctx, f.sender, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"SHARE"}, locks())

	recipients := NewRecipientService(f.db, f.blobs, testutil.Logger())
	require.NoError(t, recipients.Delete(ctx, r.ID))
	assert.Equal(t, []string{"SHARE", "UPDATE"}, locks())

	_, err = f.svc.AddRecipient(ctx, f.sender, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.svc.Form(ctx, f.sender, draft.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCompleteChecksStateBeforeRole(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, _ := f.readyDraft(t)

	_, err := f.svc.Complete(ctx, f.sender, draft.ID, DecisionComplete)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "not formed yet")

	// Strangers still cannot learn anything about the transfer.
	_, err = f.svc.Complete(ctx, f.stranger, draft.ID, DecisionComplete)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, f.sender, draft.ID))
	_, err = f.svc.Complete(ctx, f.moderator, draft.ID, DecisionComplete)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "already finalized")
}

func TestCompleteRequiresFormed(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, _ := f.readyDraft(t)

	_, err := f.svc.Complete(ctx, f.moderator, draft.ID, DecisionComplete)
	require.ErrorIs(t, err, ErrInvalidState)

	stored, err := f.svc.Get(ctx, f.sender, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferDraft, stored.Status)
	assert.Nil(t, stored.CompletedAt)
	assert.Nil(t, stored.ModeratorID)
}

func TestCompleteMarksEveryRecipient(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, _ := f.readyDraft(t)
	second := testutil.CreateRecipient(t, f.db, "Olga")
	_, err := f.svc.AddRecipient(ctx, f.sender, second.ID)
	require.NoError(t, err)

	_, err = f.svc.Form(ctx, f.sender, draft.ID)
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, f.moderator, draft.ID, DecisionComplete)
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, done.Status)
	require.NotNil(t, done.ModeratorID)
	assert.Equal(t, f.moderator.ID, *done.ModeratorID)

	stored, err := f.svc.Get(ctx, f.sender, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CompletedAt)
	require.NotNil(t, stored.FormedAt)
	assert.False(t, stored.CompletedAt.Before(*stored.FormedAt))
	require.NotNil(t, stored.Moderator)
	assert.Equal(t, "mod", stored.Moderator.Username)

	var rows []models.TransferRecipient
	require.NoError(t, f.db.Where("transfer_id = ?", draft.ID).Find(&rows).Error)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.True(t, row.HasRead)
		require.NotNil(t, row.SentAt)
		assert.True(t, row.SentAt.Equal(*stored.CompletedAt))
	}
}

func TestRejectFinalizes(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, _ := f.readyDraft(t)
	_, err := f.svc.Form(ctx, f.sender, draft.ID)
	require.NoError(t, err)

	rejected, err := f.svc.Complete(ctx, f.moderator, draft.ID, DecisionReject)
	require.NoError(t, err)
	assert.Equal(t, models.TransferRejected, rejected.Status)
	assert.NotNil(t, rejected.CompletedAt)

	_, err = f.svc.Complete(ctx, f.moderator, draft.ID, DecisionComplete)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Contains(t, err.Error(), "already finalized")
}

func TestCompleteRequiresModerator(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, _ := f.readyDraft(t)
	_, err := f.svc.Form(ctx, f.sender, draft.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, f.sender, draft.ID, DecisionComplete)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCompleteRejectsUnknownDecision(t *testing.T) {
	f := newTransferFixture(t)
	draft, _ := f.readyDraft(t)

	_, err := f.svc.Complete(context.Background(), f.moderator, draft.ID, Decision("approve"))
	assert.ErrorIs(t, err, ErrMissingAction)
}

func TestParseDecision(t *testing.T) {
	d, err := ParseDecision("complete")
	require.NoError(t, err)
	assert.Equal(t, DecisionComplete, d)

	d, err = ParseDecision("reject")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, d)

	for _, raw := range []string{"", "Complete", "approve"} {
		_, err := ParseDecision(raw)
		assert.ErrorIs(t, err, ErrMissingAction, raw)
	}
}

func TestDeleteDraft(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, _ := f.readyDraft(t)
	stored, err := f.svc.Get(ctx, f.sender, draft.ID)
	require.NoError(t, err)
	require.True(t, f.blobs.Has(stored.File))

	require.NoError(t, f.svc.Delete(ctx, f.sender, draft.ID))

	deleted, err := f.svc.Get(ctx, f.sender, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferDeleted, deleted.Status)
	assert.NotNil(t, deleted.DeletedAt)
	assert.False(t, f.blobs.Has(stored.File))

	var rows int64
	require.NoError(t, f.db.Model(&models.TransferRecipient{}).Where("transfer_id = ?", draft.ID).Count(&rows).Error)
	assert.Zero(t, rows)

	err = f.svc.Delete(ctx, f.sender, draft.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// The sender may open a new draft right away.
	next, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)
	assert.NotEqual(t, draft.ID, next.ID)
}

func TestDeleteUnknownTransfer(t *testing.T) {
	f := newTransferFixture(t)
	err := f.svc.Delete(context.Background(), f.sender, 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveRecipientAndComment(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	r := testutil.CreateRecipient(t, f.db, "Ivan")
	draft, err := f.svc.AddRecipient(ctx, f.sender, r.ID)
	require.NoError(t, err)

	row, err := f.svc.UpdateRecipientComment(ctx, f.sender, draft.ID, r.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", row.Comment)

	got, err := f.svc.GetTransferRecipient(ctx, f.sender, draft.ID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Comment)
	assert.False(t, got.HasRead)

	_, err = f.svc.UpdateRecipientComment(ctx, f.sender, draft.ID, r.ID, strings.Repeat("x", 201))
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.svc.RemoveRecipient(ctx, f.sender, draft.ID, r.ID))
	err = f.svc.RemoveRecipient(ctx, f.sender, draft.ID, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.GetTransferRecipient(ctx, f.sender, draft.ID, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetFileReplacesPreviousBlob(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)

	first, err := f.svc.SetFile(ctx, f.sender, draft.ID, upload("a.txt", "one"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", first.FileName)
	assert.Equal(t, int64(3), first.FileSize)
	assert.True(t, f.blobs.Has(first.File))

	second, err := f.svc.SetFile(ctx, f.sender, draft.ID, upload("b.txt", "second"))
	require.NoError(t, err)
	assert.NotEqual(t, first.File, second.File)
	assert.True(t, f.blobs.Has(second.File))
	assert.False(t, f.blobs.Has(first.File))
	assert.Equal(t, 1, f.blobs.Len())
}

func TestSetFileUploadFailureLeavesTransferUntouched(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)

	f.blobs.FailPut = true
	_, err = f.svc.SetFile(ctx, f.sender, draft.ID, upload("a.txt", "one"))
	assert.ErrorIs(t, err, ErrDependencyFailure)

	stored, err := f.svc.Get(ctx, f.sender, draft.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.File)
}

func TestSetFileCleanupFailureIsNotFatal(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)

	first, err := f.svc.SetFile(ctx, f.sender, draft.ID, upload("a.txt", "one"))
	require.NoError(t, err)

	f.blobs.FailDelete = true
	before := cleanupFailures(t)
	second, err := f.svc.SetFile(ctx, f.sender, draft.ID, upload("b.txt", "two"))
	require.NoError(t, err)
	assert.Equal(t, "b.txt", second.FileName)
	assert.True(t, f.blobs.Has(first.File))
	assert.Equal(t, before+1, cleanupFailures(t))
}

func TestSetFileByStrangerIsForbidden(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)

	_, err = f.svc.SetFile(ctx, f.stranger, draft.ID, upload("a.txt", "one"))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, f.blobs.Len())
}

func TestGetAccess(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	draft, err := f.svc.GetOrCreateDraft(ctx, f.sender)
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, f.stranger, draft.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.Get(ctx, f.moderator, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Sender.Username)
	assert.Nil(t, got.Moderator)

	_, err = f.svc.Get(ctx, f.sender, 777)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListVisibilityAndFilters(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	mine, _ := f.readyDraft(t)
	_, err := f.svc.Form(ctx, f.sender, mine.ID)
	require.NoError(t, err)

	// Open draft: never listed.
	_, err = f.svc.AddRecipient(ctx, f.sender, testutil.CreateRecipient(t, f.db, "Draft").ID)
	require.NoError(t, err)

	theirs, err := f.svc.AddRecipient(ctx, f.stranger, testutil.CreateRecipient(t, f.db, "Petr").ID)
	require.NoError(t, err)
	_, err = f.svc.SetFile(ctx, f.stranger, theirs.ID, upload("x.bin", "x"))
	require.NoError(t, err)
	_, err = f.svc.Form(ctx, f.stranger, theirs.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, f.moderator, theirs.ID, DecisionComplete)
	require.NoError(t, err)

	own, err := f.svc.List(ctx, f.sender, TransferFilter{})
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, mine.ID, own[0].ID)

	all, err := f.svc.List(ctx, f.moderator, TransferFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, mine.ID, all[0].ID)
	assert.Equal(t, theirs.ID, all[1].ID)
	assert.Equal(t, "mallory", all[1].Sender.Username)

	completed, err := f.svc.List(ctx, f.moderator, TransferFilter{Status: models.TransferCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, theirs.ID, completed[0].ID)

	drafts, err := f.svc.List(ctx, f.moderator, TransferFilter{Status: models.TransferDraft})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestListFormedAtRangeIncludesBothDays(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	stamps := []time.Time{
		time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC),
		time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 11, 23, 30, 0, 0, time.UTC),
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
	}
	ids := make([]uint, len(stamps))
	for i, ts := range stamps {
		stamp := ts
		tr := models.Transfer{Status: models.TransferFormed, SenderID: f.sender.ID, FormedAt: &stamp, File: "f"}
		require.NoError(t, f.db.Create(&tr).Error)
		ids[i] = tr.ID
	}

	filter, err := ParseTransferFilter("", "2024-03-10,2024-03-11")
	require.NoError(t, err)

	got, err := f.svc.List(ctx, f.sender, filter)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[1], got[0].ID)
	assert.Equal(t, ids[2], got[1].ID)
}

func TestParseTransferFilter(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		rng     string
		wantErr bool
	}{
		{name: "empty", status: "", rng: ""},
		{name: "status only", status: "formed"},
		{name: "unknown status", status: "archived", wantErr: true},
		{name: "single day", rng: "2024-01-05,2024-01-05"},
		{name: "one date", rng: "2024-01-05", wantErr: true},
		{name: "bad date", rng: "2024-13-01,2024-01-02", wantErr: true},
		{name: "reversed", rng: "2024-02-01,2024-01-01", wantErr: true},
		{name: "spaces", rng: "2024-01-01, 2024-01-31"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseTransferFilter(tt.status, tt.rng)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.TransferStatus(tt.status), f.Status)
			if tt.rng == "" {
				assert.Nil(t, f.FormedFrom)
				assert.Nil(t, f.FormedBefore)
			} else {
				require.NotNil(t, f.FormedFrom)
				require.NotNil(t, f.FormedBefore)
				assert.True(t, f.FormedBefore.After(*f.FormedFrom))
			}
		})
	}
}

func TestRecipientsInfoAndDraftSummary(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()

	summary, err := f.svc.DraftSummary(ctx, f.sender)
	require.NoError(t, err)
	assert.Nil(t, summary.DraftID)
	assert.Zero(t, summary.DraftRecipientsLen)

	a := testutil.CreateRecipient(t, f.db, "Anna")
	b := testutil.CreateRecipient(t, f.db, "Boris")
	draft, err := f.svc.AddRecipient(ctx, f.sender, a.ID)
	require.NoError(t, err)
	_, err = f.svc.AddRecipient(ctx, f.sender, b.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateRecipientComment(ctx, f.sender, draft.ID, b.ID, "for Boris")
	require.NoError(t, err)

	summary, err = f.svc.DraftSummary(ctx, f.sender)
	require.NoError(t, err)
	require.NotNil(t, summary.DraftID)
	assert.Equal(t, draft.ID, *summary.DraftID)
	assert.Equal(t, int64(2), summary.DraftRecipientsLen)

	info, err := f.svc.RecipientsInfo(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, info, 2)
	assert.Equal(t, "Anna", info[0].Name)
	assert.Equal(t, a.Phone, info[0].Phone)
	assert.Equal(t, "Boris", info[1].Name)
	assert.Equal(t, "for Boris", info[1].Comment)
	assert.False(t, info[1].HasRead)

	empty, err := f.svc.RecipientsInfo(ctx, 9999)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestLifecycleEndToEnd(t *testing.T) {
	f := newTransferFixture(t)
	ctx := context.Background()
	r := testutil.CreateRecipient(t, f.db, "Ivan")

	draft, err := f.svc.AddRecipient(ctx, f.sender, r.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateRecipientComment(ctx, f.sender, draft.ID, r.ID, "see attached")
	require.NoError(t, err)
	_, err = f.svc.SetFile(ctx, f.sender, draft.ID, upload("contract.pdf", "%PDF"))
	require.NoError(t, err)

	formed, err := f.svc.Form(ctx, f.sender, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransferFormed, formed.Status)

	done, err := f.svc.Complete(ctx, f.moderator, draft.ID, DecisionComplete)
	require.NoError(t, err)
	assert.Equal(t, models.TransferCompleted, done.Status)
	assert.True(t, done.Status.Terminal())

	info, err := f.svc.RecipientsInfo(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, info, 1)
	assert.True(t, info[0].HasRead)
	assert.Equal(t, "see attached", info[0].Comment)

	list, err := f.svc.List(ctx, f.sender, TransferFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.TransferCompleted, list[0].Status)
}
