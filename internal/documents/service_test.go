package documents

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/sealine-erp/sealine-erp/internal/authz"
)

type memoryRepo struct {
	docs          map[uuid.UUID]Document
	history       map[uuid.UUID][]HistoryEntry
	distributions map[uuid.UUID][]DistributionRecord
	recipients    map[int64]bool
	nextHistID    int64
	nextDistID    int64

	// beforeTx runs between the service's read and its transaction, to
	// simulate a concurrent writer winning the race.
	beforeTx func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs:          make(map[uuid.UUID]Document),
		history:       make(map[uuid.UUID][]HistoryEntry),
		distributions: make(map[uuid.UUID][]DistributionRecord),
		recipients:    map[int64]bool{1: true, 2: true, 3: true, 4: true, 5: true},
	}
}

func (r *memoryRepo) snapshot() (map[uuid.UUID]Document, map[uuid.UUID][]HistoryEntry, map[uuid.UUID][]DistributionRecord) {
	docs := make(map[uuid.UUID]Document, len(r.docs))
	for k, v := range r.docs {
		docs[k] = v
	}
	hist := make(map[uuid.UUID][]HistoryEntry, len(r.history))
	for k, v := range r.history {
		hist[k] = append([]HistoryEntry(nil), v...)
	}
	dist := make(map[uuid.UUID][]DistributionRecord, len(r.distributions))
	for k, v := range r.distributions {
		dist[k] = append([]DistributionRecord(nil), v...)
	}
	return docs, hist, dist
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.beforeTx != nil {
		r.beforeTx()
	}
	docs, hist, dist := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.docs, r.history, r.distributions = docs, hist, dist
		return err
	}
	return nil
}

func (r *memoryRepo) GetDocument(ctx context.Context, id uuid.UUID) (Document, error) {
	doc, ok := r.docs[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (r *memoryRepo) ListDocuments(ctx context.Context, limit, offset int, filters ListFilters) ([]Document, int, error) {
	var out []Document
	for _, doc := range r.docs {
		if doc.DeletedAt != nil {
			continue
		}
		if filters.Status != "" && string(doc.Status) != filters.Status {
			continue
		}
		out = append(out, doc)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetHistory(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error) {
	return append([]HistoryEntry(nil), r.history[id]...), nil
}

func (r *memoryRepo) GetDistributions(ctx context.Context, id uuid.UUID) ([]DistributionRecord, error) {
	return append([]DistributionRecord(nil), r.distributions[id]...), nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertDocument(ctx context.Context, doc Document) error {
	tx.repo.docs[doc.ID] = doc
	return nil
}

func (tx *memoryTx) UpdateDocumentFields(ctx context.Context, doc Document) error {
	existing, ok := tx.repo.docs[doc.ID]
	if !ok {
		return ErrNotFound
	}
	doc.Status = existing.Status
	tx.repo.docs[doc.ID] = doc
	return nil
}

func (tx *memoryTx) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	doc, ok := tx.repo.docs[id]
	if !ok {
		return ErrNotFound
	}
	if doc.Status != from {
		return ErrConflict
	}
	doc.Status = to
	tx.repo.docs[id] = doc
	return nil
}

func (tx *memoryTx) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	doc, ok := tx.repo.docs[id]
	if !ok {
		return ErrNotFound
	}
	doc.DeletedAt = &at
	tx.repo.docs[id] = doc
	return nil
}

func (tx *memoryTx) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	tx.repo.nextHistID++
	entry.ID = tx.repo.nextHistID
	tx.repo.history[entry.DocumentID] = append(tx.repo.history[entry.DocumentID], entry)
	return nil
}

func (tx *memoryTx) InsertDistribution(ctx context.Context, rec DistributionRecord) error {
	tx.repo.nextDistID++
	rec.ID = tx.repo.nextDistID
	tx.repo.distributions[rec.DocumentID] = append(tx.repo.distributions[rec.DocumentID], rec)
	return nil
}

func (tx *memoryTx) MissingRecipients(ctx context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		if !tx.repo.recipients[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (tx *memoryTx) Acknowledge(ctx context.Context, documentID uuid.UUID, recipientID int64, remarks string, at time.Time) (bool, error) {
	records := tx.repo.distributions[documentID]
	for i, rec := range records {
		if rec.RecipientID == recipientID && rec.AcknowledgedAt == nil {
			ts := at
			records[i].AcknowledgedAt = &ts
			records[i].Remarks = remarks
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) GetDistribution(ctx context.Context, documentID uuid.UUID, recipientID int64) (DistributionRecord, error) {
	for _, rec := range tx.repo.distributions[documentID] {
		if rec.RecipientID == recipientID {
			return rec, nil
		}
	}
	return DistributionRecord{}, ErrNotFound
}

var (
	author   = Actor{ID: 10, Role: authz.RoleQMR, CanEdit: true}
	reviewer = Actor{ID: 20, Role: authz.RoleDirector, CanEdit: true}
	staff    = Actor{ID: 30, Role: authz.RoleStaff, CanEdit: false}
)

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil, nil, slog.Default())
}

func createDraft(t *testing.T, svc *Service) Document {
	t.Helper()
	doc, err := svc.Create(context.Background(), author, CreateInput{
		Code:            "SL-QMS-001",
		Title:           "Garbage Management Plan",
		DocumentType:    "procedure",
		Department:      "quality",
		RetentionMonths: 60,
	})
	require.NoError(t, err)
	return doc
}

func TestCreateStartsInDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	doc := createDraft(t, svc)
	require.Equal(t, StatusDraft, doc.Status)
	require.NotEqual(t, uuid.Nil, doc.ID)
	require.Equal(t, author.ID, doc.CreatedBy)

	entries, err := repo.GetHistory(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, ActionCreate, entries[0].Action)
	require.Equal(t, StatusDraft, entries[0].ToStatus)
	require.Equal(t, author.ID, entries[0].ActorID)
}

func TestCreateRequiresCoreFields(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Create(context.Background(), author, CreateInput{Title: "No code"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateIdenticalPayloadAppendsNoHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := createDraft(t, svc)

	same := UpdateInput{
		Title:           doc.Title,
		DocumentType:    doc.DocumentType,
		Department:      doc.Department,
		RetentionMonths: doc.RetentionMonths,
	}
	updated, err := svc.Update(context.Background(), author, doc.ID, same)
	require.NoError(t, err)
	require.Equal(t, doc, updated)

	entries, err := repo.GetHistory(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1, "identical update must not grow history")
}

func TestUpdateChangesFieldsAndAppendsHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := createDraft(t, svc)

	updated, err := svc.Update(context.Background(), author, doc.ID, UpdateInput{Title: "Garbage Management Plan v2"})
	require.NoError(t, err)
	require.Equal(t, "Garbage Management Plan v2", updated.Title)
	require.Equal(t, StatusDraft, updated.Status)

	entries, err := repo.GetHistory(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ActionUpdate, entries[1].Action)
}

func TestUpdateWhilePendingIsInvalid(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := createDraft(t, svc)

	_, err := svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), author, doc.ID, UpdateInput{Title: "sneaky edit"})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSubmitRequiresCreatorOrEditGrant(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := createDraft(t, svc)

	_, err := svc.SubmitForApproval(context.Background(), staff, doc.ID)
	require.ErrorIs(t, err, ErrNotAllowed)

	submitted, err := svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, submitted.Status)
}

func TestApproveBySubmitterIsRejected(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := createDraft(t, svc)

	_, err := svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), author, doc.ID, "")
	require.ErrorIs(t, err, ErrSelfApproval)

	approved, err := svc.Approve(context.Background(), reviewer, doc.ID, "looks good")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
}

func TestConcurrentApproveLosesWithConflict(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := createDraft(t, svc)

	_, err := svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.NoError(t, err)

	// Another approver wins between our read and our write.
	repo.beforeTx = func() {
		d := repo.docs[doc.ID]
		d.Status = StatusApproved
		repo.docs[doc.ID] = d
		repo.beforeTx = nil
	}
	_, err = svc.Approve(context.Background(), reviewer, doc.ID, "")
	require.ErrorIs(t, err, ErrConflict)
}

func TestRejectRequiresRemarksAndReturnsToDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := createDraft(t, svc)

	_, err := svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.NoError(t, err)

	_, err = svc.Reject(context.Background(), reviewer, doc.ID, "")
	require.ErrorIs(t, err, ErrValidation)

	rejected, err := svc.Reject(context.Background(), reviewer, doc.ID, "retention period too short")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, rejected.Status)

	// The loop is editable and resubmittable.
	_, err = svc.Update(context.Background(), author, doc.ID, UpdateInput{RetentionMonths: 120})
	require.NoError(t, err)
	resubmitted, err := svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPendingApproval, resubmitted.Status)
}

func approveFor(t *testing.T, svc *Service) Document {
	t.Helper()
	doc := createDraft(t, svc)
	_, err := svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.NoError(t, err)
	approved, err := svc.Approve(context.Background(), reviewer, doc.ID, "")
	require.NoError(t, err)
	return approved
}

func TestDistributeDeduplicatesRecipients(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := approveFor(t, svc)

	distributed, records, err := svc.Distribute(context.Background(), reviewer, doc.ID, []int64{1, 2, 1}, "")
	require.NoError(t, err)
	require.Equal(t, StatusDistributed, distributed.Status)
	require.Len(t, records, 2)
	require.Equal(t, int64(1), records[0].RecipientID)
	require.Equal(t, int64(2), records[1].RecipientID)
}

func TestDistributeUnknownRecipientFailsWholeBatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := approveFor(t, svc)

	_, _, err := svc.Distribute(context.Background(), reviewer, doc.ID, []int64{1, 999}, "")
	require.ErrorIs(t, err, ErrValidation)

	// Nothing committed: the document is still approved, no fan-out rows.
	current, err := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, current.Status)
	dist, err := repo.GetDistributions(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Empty(t, dist)
}

func TestDistributeRequiresRecipients(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := approveFor(t, svc)

	_, _, err := svc.Distribute(context.Background(), reviewer, doc.ID, nil, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestDistributeFromDraftIsInvalid(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := createDraft(t, svc)

	_, _, err := svc.Distribute(context.Background(), reviewer, doc.ID, []int64{1}, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAcknowledgeIsRecipientExclusiveAndOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := approveFor(t, svc)

	_, _, err := svc.Distribute(context.Background(), reviewer, doc.ID, []int64{1, 2}, "")
	require.NoError(t, err)

	recipient := Actor{ID: 1, Role: authz.RoleCrew}
	record, err := svc.Acknowledge(context.Background(), recipient, doc.ID, "read and understood")
	require.NoError(t, err)
	require.NotNil(t, record.AcknowledgedAt)
	require.Equal(t, "read and understood", record.Remarks)

	_, err = svc.Acknowledge(context.Background(), recipient, doc.ID, "again")
	require.ErrorIs(t, err, ErrAlreadyAcknowledged)

	// A non-recipient cannot acknowledge at all.
	outsider := Actor{ID: 4, Role: authz.RoleCrew}
	_, err = svc.Acknowledge(context.Background(), outsider, doc.ID, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAcknowledgeAppendsNoDocumentHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := approveFor(t, svc)

	_, _, err := svc.Distribute(context.Background(), reviewer, doc.ID, []int64{1}, "")
	require.NoError(t, err)
	before, err := repo.GetHistory(context.Background(), doc.ID)
	require.NoError(t, err)

	_, err = svc.Acknowledge(context.Background(), Actor{ID: 1, Role: authz.RoleCrew}, doc.ID, "")
	require.NoError(t, err)

	after, err := repo.GetHistory(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before), "acknowledgement is tracked per distribution record only")

	// Document-level state is untouched.
	current, err := repo.GetDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDistributed, current.Status)
}

func TestRetireSoftDeletesAndKeepsHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := createDraft(t, svc)

	_, err := svc.Retire(context.Background(), staff, doc.ID)
	require.ErrorIs(t, err, ErrNotAllowed)

	retired, err := svc.Retire(context.Background(), author, doc.ID)
	require.NoError(t, err)
	require.Equal(t, StatusRetired, retired.Status)
	require.NotNil(t, retired.DeletedAt)

	entries, err := repo.GetHistory(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, ActionRetire, entries[1].Action)

	// Retired is terminal.
	_, err = svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApproveFromDraftIsInvalid(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := createDraft(t, svc)

	_, err := svc.Approve(context.Background(), reviewer, doc.ID, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFullLifecycleHistoryReplay(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	doc := createDraft(t, svc)
	_, err := svc.SubmitForApproval(context.Background(), author, doc.ID)
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), reviewer, doc.ID, "")
	require.NoError(t, err)
	_, _, err = svc.Distribute(context.Background(), reviewer, doc.ID, []int64{1, 2, 3}, "")
	require.NoError(t, err)
	_, err = svc.Acknowledge(context.Background(), Actor{ID: 2, Role: authz.RoleCrew}, doc.ID, "")
	require.NoError(t, err)

	view, err := svc.History(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, view.Entries, 4)
	require.Equal(t, []Action{ActionCreate, ActionSubmit, ActionApprove, ActionDistribute},
		[]Action{view.Entries[0].Action, view.Entries[1].Action, view.Entries[2].Action, view.Entries[3].Action})
	require.Equal(t, StatusDistributed, ReplayStatus(view.Entries))
	require.Equal(t, view.Document.Status, ReplayStatus(view.Entries))
	require.Len(t, view.Distributions, 3)

	acked := 0
	for _, rec := range view.Distributions {
		if rec.AcknowledgedAt != nil {
			acked++
		}
	}
	require.Equal(t, 1, acked)
}

func TestHistorySurvivesRetirement(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := approveFor(t, svc)

	_, err := svc.Retire(context.Background(), author, doc.ID)
	require.NoError(t, err)

	view, err := svc.History(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Len(t, view.Entries, 4)
	require.Equal(t, StatusRetired, ReplayStatus(view.Entries))
}
