// Package documents owns the controlled document lifecycle: transition
// validation, append-only history, distribution fan-out and acknowledgement
// tracking.
package documents

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sealine-erp/sealine-erp/internal/authz"
)

// Status is the lifecycle state of a controlled document.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusDistributed     Status = "DISTRIBUTED"
	StatusRetired         Status = "RETIRED"
)

// Action enumerates lifecycle transitions recorded in history.
type Action string

const (
	ActionCreate      Action = "CREATE"
	ActionUpdate      Action = "UPDATE"
	ActionSubmit      Action = "SUBMIT"
	ActionApprove     Action = "APPROVE"
	ActionReject      Action = "REJECT"
	ActionDistribute  Action = "DISTRIBUTE"
	ActionAcknowledge Action = "ACKNOWLEDGE"
	ActionRetire      Action = "RETIRE"
)

// Document represents a controlled record (policy, procedure, form). The
// Status column caches what replaying the history yields; all mutation goes
// through the service's transition functions.
type Document struct {
	ID              uuid.UUID
	Code            string
	Title           string
	DocumentType    string
	Department      string
	RetentionMonths int
	EffectiveDate   time.Time
	ContentURL      string
	FileName        string
	FileSize        int64
	Status          Status
	CreatedBy       int64
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HistoryEntry is the immutable record of one transition. Append-only; never
// updated or deleted, even after retirement.
type HistoryEntry struct {
	ID         int64
	DocumentID uuid.UUID
	FromStatus Status
	ToStatus   Status
	Action     Action
	ActorID    int64
	ActorRole  authz.Role
	Remarks    string
	At         time.Time
}

// DistributionRecord tracks one (document, recipient) pair. Acknowledgement
// is recorded at most once and only by the recipient.
type DistributionRecord struct {
	ID             int64
	DocumentID     uuid.UUID
	RecipientID    int64
	DistributedAt  time.Time
	AcknowledgedAt *time.Time
	Remarks        string
}

// Actor identifies who performs a transition, with the role exercised at the
// time of action and whether they hold edit access on the documents module.
// Role gating happened at the gate; the engine only consumes the outcome.
type Actor struct {
	ID      int64
	Role    authz.Role
	CanEdit bool
}

var (
	// ErrNotFound indicates the document or distribution record is absent.
	ErrNotFound = errors.New("documents: not found")
	// ErrValidation indicates missing or malformed input.
	ErrValidation = errors.New("documents: invalid input")
	// ErrConflict indicates a concurrent transition won the race.
	ErrConflict = errors.New("documents: concurrent transition conflict")
	// ErrNotAllowed indicates the actor may not perform this transition.
	ErrNotAllowed = errors.New("documents: actor not permitted")
	// ErrSelfApproval indicates the submitter tried to approve their own
	// submission.
	ErrSelfApproval = errors.New("documents: submitter cannot approve own document")
	// ErrAlreadyAcknowledged indicates a second acknowledgement attempt.
	ErrAlreadyAcknowledged = errors.New("documents: distribution already acknowledged")
	// ErrInvalidTransition is matched by InvalidTransitionError.
	ErrInvalidTransition = errors.New("documents: invalid transition")
)

// InvalidTransitionError reports an attempted action that the current state
// does not list.
type InvalidTransitionError struct {
	Current Status
	Action  Action
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("documents: cannot %s from %s", e.Action, e.Current)
}

// Is lets callers match against ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// transitions lists, per state, the permitted actions and their target
// states. Acknowledgement leaves the document-level state untouched. Reject
// loops straight back to DRAFT; the REJECTED constant is retained for rows
// written by earlier revisions and is treated as editable.
var transitions = map[Status]map[Action]Status{
	StatusDraft: {
		ActionUpdate: StatusDraft,
		ActionSubmit: StatusPendingApproval,
		ActionRetire: StatusRetired,
	},
	StatusRejected: {
		ActionUpdate: StatusDraft,
		ActionSubmit: StatusPendingApproval,
	},
	StatusPendingApproval: {
		ActionApprove: StatusApproved,
		ActionReject:  StatusDraft,
	},
	StatusApproved: {
		ActionDistribute: StatusDistributed,
		ActionRetire:     StatusRetired,
	},
	StatusDistributed: {
		ActionAcknowledge: StatusDistributed,
		ActionRetire:      StatusRetired,
	},
}

// nextStatus validates a transition and returns the target state.
func nextStatus(current Status, action Action) (Status, error) {
	if to, ok := transitions[current][action]; ok {
		return to, nil
	}
	return "", &InvalidTransitionError{Current: current, Action: action}
}

// ReplayStatus derives the current state from history entries in order. The
// stored status column is a cache of this replay and must never diverge.
func ReplayStatus(entries []HistoryEntry) Status {
	if len(entries) == 0 {
		return ""
	}
	return entries[len(entries)-1].ToStatus
}
