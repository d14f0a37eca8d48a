package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sealine-erp/sealine-erp/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetDocument(ctx context.Context, id uuid.UUID) (Document, error)
	ListDocuments(ctx context.Context, limit, offset int, filters ListFilters) ([]Document, int, error)
	GetHistory(ctx context.Context, id uuid.UUID) ([]HistoryEntry, error)
	GetDistributions(ctx context.Context, id uuid.UUID) ([]DistributionRecord, error)
}

// TxRepository exposes the operations that must commit atomically with a
// transition: the state write, its history entry and any fan-out rows.
type TxRepository interface {
	InsertDocument(ctx context.Context, doc Document) error
	UpdateDocumentFields(ctx context.Context, doc Document) error
	// UpdateStatus performs a compare-and-set on the status column and
	// returns ErrConflict when the expected state no longer holds.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	InsertDistribution(ctx context.Context, rec DistributionRecord) error
	MissingRecipients(ctx context.Context, ids []int64) ([]int64, error)
	// Acknowledge sets acknowledged_at only when still unacknowledged and
	// reports whether a row was updated.
	Acknowledge(ctx context.Context, documentID uuid.UUID, recipientID int64, remarks string, at time.Time) (bool, error)
	GetDistribution(ctx context.Context, documentID uuid.UUID, recipientID int64) (DistributionRecord, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ReminderScheduler enqueues acknowledgement reminders after distribution.
type ReminderScheduler interface {
	ScheduleAckReminder(ctx context.Context, documentID uuid.UUID, delay time.Duration) error
}

// IdempotencyPort guards distribution replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

const ackReminderDelay = 72 * time.Hour

// ListFilters narrows document listings.
type ListFilters struct {
	Status     string
	Department string
	Search     string
}

// Service is the document lifecycle engine. It re-validates every state
// transition itself so it stays correct when invoked outside HTTP.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency IdempotencyPort
	reminders   ReminderScheduler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the lifecycle engine.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, reminders ReminderScheduler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		audit:       audit,
		idempotency: idem,
		reminders:   reminders,
		logger:      logger,
		now:         time.Now,
	}
}

// CreateInput describes a new controlled document.
type CreateInput struct {
	Code            string
	Title           string
	DocumentType    string
	Department      string
	RetentionMonths int
	EffectiveDate   time.Time
	ContentURL      string
	FileName        string
	FileSize        int64
}

// UpdateInput carries the mutable fields of a document.
type UpdateInput struct {
	Title           string
	DocumentType    string
	Department      string
	RetentionMonths int
	EffectiveDate   time.Time
	ContentURL      string
	FileName        string
	FileSize        int64
}

// HistoryView bundles the full audit trail with distribution status.
type HistoryView struct {
	Document      Document
	Entries       []HistoryEntry
	Distributions []DistributionRecord
}

// Create assigns an identifier, stores the document in DRAFT and appends the
// creation history entry.
func (s *Service) Create(ctx context.Context, actor Actor, input CreateInput) (Document, error) {
	if input.Code == "" || input.Title == "" || input.DocumentType == "" || input.Department == "" {
		return Document{}, fmt.Errorf("%w: code, title, document type and department are required", ErrValidation)
	}
	now := s.now()
	doc := Document{
		ID:              uuid.New(),
		Code:            input.Code,
		Title:           input.Title,
		DocumentType:    input.DocumentType,
		Department:      input.Department,
		RetentionMonths: input.RetentionMonths,
		EffectiveDate:   input.EffectiveDate,
		ContentURL:      input.ContentURL,
		FileName:        input.FileName,
		FileSize:        input.FileSize,
		Status:          StatusDraft,
		CreatedBy:       actor.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			DocumentID: doc.ID,
			ToStatus:   StatusDraft,
			Action:     ActionCreate,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			At:         now,
		})
	})
	if err != nil {
		return Document{}, s.fail(ctx, doc.ID, ActionCreate, actor, err)
	}
	s.recordAudit(ctx, actor, "DOC_CREATE", doc.ID, map[string]any{"code": doc.Code})
	return doc, nil
}

// Update mutates mutable fields while the document is editable. Calling it
// with an identical payload appends no history entry and returns the record
// unchanged.
func (s *Service) Update(ctx context.Context, actor Actor, id uuid.UUID, input UpdateInput) (Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if _, err := nextStatus(doc.Status, ActionUpdate); err != nil {
		return Document{}, err
	}
	updated, changed := applyUpdate(doc, input)
	if !changed {
		return doc, nil
	}
	now := s.now()
	from := doc.Status
	updated.Status = StatusDraft
	updated.UpdatedAt = now
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if from != StatusDraft {
			// A rejected document loops back to DRAFT on edit.
			if err := tx.UpdateStatus(ctx, id, from, StatusDraft); err != nil {
				return err
			}
		}
		if err := tx.UpdateDocumentFields(ctx, updated); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			DocumentID: id,
			FromStatus: from,
			ToStatus:   StatusDraft,
			Action:     ActionUpdate,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			At:         now,
		})
	})
	if err != nil {
		return Document{}, s.fail(ctx, id, ActionUpdate, actor, err)
	}
	s.recordAudit(ctx, actor, "DOC_UPDATE", id, map[string]any{"code": updated.Code})
	return updated, nil
}

// SubmitForApproval moves a draft into the approval queue. Only the creator
// or a holder of edit access on the documents module may submit.
func (s *Service) SubmitForApproval(ctx context.Context, actor Actor, id uuid.UUID) (Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if actor.ID != doc.CreatedBy && !actor.CanEdit {
		return Document{}, ErrNotAllowed
	}
	return s.transition(ctx, actor, doc, ActionSubmit, "")
}

// Approve accepts a pending document. The submitter cannot approve their own
// submission.
func (s *Service) Approve(ctx context.Context, actor Actor, id uuid.UUID, remarks string) (Document, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if _, err := nextStatus(doc.Status, ActionApprove); err != nil {
		return Document{}, err
	}
	entries, err := s.repo.GetHistory(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if submitter, ok := lastSubmitter(entries); ok && submitter == actor.ID {
		return Document{}, ErrSelfApproval
	}
	return s.transition(ctx, actor, doc, ActionApprove, remarks)
}

// Reject returns a pending document to DRAFT. Remarks are mandatory so the
// author knows what to fix.
func (s *Service) Reject(ctx context.Context, actor Actor, id uuid.UUID, remarks string) (Document, error) {
	if remarks == "" {
		return Document{}, fmt.Errorf("%w: rejection remarks are required", ErrValidation)
	}
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	return s.transition(ctx, actor, doc, ActionReject, remarks)
}

// Distribute fans out one DistributionRecord per distinct recipient. The
// batch is all-or-nothing: an unknown recipient fails the whole call and the
// caller retries with a corrected list. An optional idempotency key guards
// replays after network failure.
func (s *Service) Distribute(ctx context.Context, actor Actor, id uuid.UUID, recipientIDs []int64, idemKey string) (Document, []DistributionRecord, error) {
	recipients := dedupeIDs(recipientIDs)
	if len(recipients) == 0 {
		return Document{}, nil, fmt.Errorf("%w: at least one recipient is required", ErrValidation)
	}
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, nil, err
	}
	if _, err := nextStatus(doc.Status, ActionDistribute); err != nil {
		return Document{}, nil, err
	}

	keyInserted := false
	if idemKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idemKey, "documents.distribute"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Document{}, nil, fmt.Errorf("%w: distribution already processed", ErrConflict)
			}
			return Document{}, nil, err
		}
		keyInserted = true
	}

	now := s.now()
	records := make([]DistributionRecord, 0, len(recipients))
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		missing, err := tx.MissingRecipients(ctx, recipients)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: unknown recipients %v", ErrValidation, missing)
		}
		if err := tx.UpdateStatus(ctx, id, StatusApproved, StatusDistributed); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, HistoryEntry{
			DocumentID: id,
			FromStatus: StatusApproved,
			ToStatus:   StatusDistributed,
			Action:     ActionDistribute,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Remarks:    fmt.Sprintf("distributed to %d recipients", len(recipients)),
			At:         now,
		}); err != nil {
			return err
		}
		for _, recipientID := range recipients {
			rec := DistributionRecord{
				DocumentID:    id,
				RecipientID:   recipientID,
				DistributedAt: now,
			}
			if err := tx.InsertDistribution(ctx, rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		if keyInserted {
			_ = s.idempotency.Delete(ctx, idemKey)
		}
		return Document{}, nil, s.fail(ctx, id, ActionDistribute, actor, err)
	}

	doc.Status = StatusDistributed
	doc.UpdatedAt = now
	if s.reminders != nil {
		if err := s.reminders.ScheduleAckReminder(ctx, id, ackReminderDelay); err != nil {
			s.logger.Warn("schedule ack reminder", slog.String("document_id", id.String()), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actor, "DOC_DISTRIBUTE", id, map[string]any{"recipients": len(recipients)})
	return doc, records, nil
}

// Acknowledge records a recipient's acknowledgement exactly once. The
// document-level state is unchanged and no history entry is appended; the
// distribution record is the acknowledgement's source of truth.
func (s *Service) Acknowledge(ctx context.Context, actor Actor, id uuid.UUID, remarks string) (DistributionRecord, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return DistributionRecord{}, err
	}
	if _, err := nextStatus(doc.Status, ActionAcknowledge); err != nil {
		return DistributionRecord{}, err
	}
	now := s.now()
	var record DistributionRecord
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		updated, err := tx.Acknowledge(ctx, id, actor.ID, remarks, now)
		if err != nil {
			return err
		}
		if !updated {
			existing, err := tx.GetDistribution(ctx, id, actor.ID)
			if err != nil {
				return err
			}
			if existing.AcknowledgedAt != nil {
				return ErrAlreadyAcknowledged
			}
			return ErrNotFound
		}
		record, err = tx.GetDistribution(ctx, id, actor.ID)
		return err
	})
	if err != nil {
		return DistributionRecord{}, err
	}
	s.recordAudit(ctx, actor, "DOC_ACKNOWLEDGE", id, nil)
	return record, nil
}

// Retire soft-deletes the document: the deleted marker flips, the state
// becomes RETIRED and the full history stays queryable.
func (s *Service) Retire(ctx context.Context, actor Actor, id uuid.UUID) (Document, error) {
	if !actor.CanEdit {
		return Document{}, ErrNotAllowed
	}
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if _, err := nextStatus(doc.Status, ActionRetire); err != nil {
		return Document{}, err
	}
	now := s.now()
	from := doc.Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, id, from, StatusRetired); err != nil {
			return err
		}
		if err := tx.MarkDeleted(ctx, id, now); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			DocumentID: id,
			FromStatus: from,
			ToStatus:   StatusRetired,
			Action:     ActionRetire,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			At:         now,
		})
	})
	if err != nil {
		return Document{}, s.fail(ctx, id, ActionRetire, actor, err)
	}
	doc.Status = StatusRetired
	doc.DeletedAt = &now
	doc.UpdatedAt = now
	s.recordAudit(ctx, actor, "DOC_RETIRE", id, map[string]any{"code": doc.Code})
	return doc, nil
}

// Get returns a single document.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Document, error) {
	return s.repo.GetDocument(ctx, id)
}

// List returns documents with pagination metadata.
func (s *Service) List(ctx context.Context, limit, offset int, filters ListFilters) ([]Document, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListDocuments(ctx, limit, offset, filters)
}

// History returns the ordered audit trail plus distribution status. Read
// only; a divergence between the cached status and the replayed history is
// logged because it should be impossible.
func (s *Service) History(ctx context.Context, id uuid.UUID) (HistoryView, error) {
	doc, err := s.repo.GetDocument(ctx, id)
	if err != nil {
		return HistoryView{}, err
	}
	entries, err := s.repo.GetHistory(ctx, id)
	if err != nil {
		return HistoryView{}, err
	}
	if replayed := ReplayStatus(entries); replayed != "" && replayed != doc.Status {
		s.logger.Error("document status diverged from history replay",
			slog.String("document_id", id.String()),
			slog.String("stored", string(doc.Status)),
			slog.String("replayed", string(replayed)),
		)
	}
	distributions, err := s.repo.GetDistributions(ctx, id)
	if err != nil {
		return HistoryView{}, err
	}
	return HistoryView{Document: doc, Entries: entries, Distributions: distributions}, nil
}

// transition runs the generic CAS-write-plus-history unit for simple
// transitions.
func (s *Service) transition(ctx context.Context, actor Actor, doc Document, action Action, remarks string) (Document, error) {
	to, err := nextStatus(doc.Status, action)
	if err != nil {
		return Document{}, err
	}
	now := s.now()
	from := doc.Status
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateStatus(ctx, doc.ID, from, to); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, HistoryEntry{
			DocumentID: doc.ID,
			FromStatus: from,
			ToStatus:   to,
			Action:     action,
			ActorID:    actor.ID,
			ActorRole:  actor.Role,
			Remarks:    remarks,
			At:         now,
		})
	})
	if err != nil {
		return Document{}, s.fail(ctx, doc.ID, action, actor, err)
	}
	doc.Status = to
	doc.UpdatedAt = now
	s.recordAudit(ctx, actor, "DOC_"+string(action), doc.ID, nil)
	return doc, nil
}

// fail logs unexpected persistence failures with enough context to
// reconstruct the attempted transition. Typed domain errors pass through.
func (s *Service) fail(ctx context.Context, id uuid.UUID, action Action, actor Actor, err error) error {
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidTransition):
		return err
	default:
		s.logger.Error("document transition failed",
			slog.String("document_id", id.String()),
			slog.String("action", string(action)),
			slog.Int64("actor_id", actor.ID),
			slog.Any("error", err),
		)
		return err
	}
}

func (s *Service) recordAudit(ctx context.Context, actor Actor, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "documents",
		EntityID: id.String(),
		Meta:     meta,
	})
}

func applyUpdate(doc Document, input UpdateInput) (Document, bool) {
	updated := doc
	if input.Title != "" {
		updated.Title = input.Title
	}
	if input.DocumentType != "" {
		updated.DocumentType = input.DocumentType
	}
	if input.Department != "" {
		updated.Department = input.Department
	}
	if input.RetentionMonths > 0 {
		updated.RetentionMonths = input.RetentionMonths
	}
	if !input.EffectiveDate.IsZero() {
		updated.EffectiveDate = input.EffectiveDate
	}
	if input.ContentURL != "" {
		updated.ContentURL = input.ContentURL
	}
	if input.FileName != "" {
		updated.FileName = input.FileName
	}
	if input.FileSize > 0 {
		updated.FileSize = input.FileSize
	}
	changed := updated.Title != doc.Title ||
		updated.DocumentType != doc.DocumentType ||
		updated.Department != doc.Department ||
		updated.RetentionMonths != doc.RetentionMonths ||
		!updated.EffectiveDate.Equal(doc.EffectiveDate) ||
		updated.ContentURL != doc.ContentURL ||
		updated.FileName != doc.FileName ||
		updated.FileSize != doc.FileSize
	return updated, changed
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func lastSubmitter(entries []HistoryEntry) (int64, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Action == ActionSubmit {
			return entries[i].ActorID, true
		}
	}
	return 0, false
}
