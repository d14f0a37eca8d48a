package documents

import "time"

type createRequest struct {
	Code            string    `json:"code" validate:"required,max=64"`
	Title           string    `json:"title" validate:"required,max=255"`
	DocumentType    string    `json:"document_type" validate:"required,max=64"`
	Department      string    `json:"department" validate:"required,max=64"`
	RetentionMonths int       `json:"retention_months" validate:"gte=0,lte=1200"`
	EffectiveDate   time.Time `json:"effective_date"`
	ContentURL      string    `json:"content_url" validate:"omitempty,max=1024"`
	FileName        string    `json:"file_name" validate:"omitempty,max=255"`
	FileSize        int64     `json:"file_size" validate:"gte=0"`
}

type updateRequest struct {
	Title           string    `json:"title" validate:"omitempty,max=255"`
	DocumentType    string    `json:"document_type" validate:"omitempty,max=64"`
	Department      string    `json:"department" validate:"omitempty,max=64"`
	RetentionMonths int       `json:"retention_months" validate:"gte=0,lte=1200"`
	EffectiveDate   time.Time `json:"effective_date"`
	ContentURL      string    `json:"content_url" validate:"omitempty,max=1024"`
	FileName        string    `json:"file_name" validate:"omitempty,max=255"`
	FileSize        int64     `json:"file_size" validate:"gte=0"`
}

type remarksRequest struct {
	Remarks string `json:"remarks" validate:"omitempty,max=1000"`
}

type distributeRequest struct {
	RecipientIDs []int64 `json:"recipient_ids" validate:"required,min=1,dive,gt=0"`
}

type documentResponse struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Title           string     `json:"title"`
	DocumentType    string     `json:"document_type"`
	Department      string     `json:"department"`
	RetentionMonths int        `json:"retention_months"`
	EffectiveDate   time.Time  `json:"effective_date"`
	ContentURL      string     `json:"content_url,omitempty"`
	FileName        string     `json:"file_name,omitempty"`
	FileSize        int64      `json:"file_size,omitempty"`
	Status          Status     `json:"status"`
	CreatedBy       int64      `json:"created_by"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type historyEntryResponse struct {
	ID         int64     `json:"id"`
	FromStatus Status    `json:"from_status,omitempty"`
	ToStatus   Status    `json:"to_status"`
	Action     Action    `json:"action"`
	ActorID    int64     `json:"actor_id"`
	ActorRole  string    `json:"actor_role"`
	Remarks    string    `json:"remarks,omitempty"`
	At         time.Time `json:"at"`
}

type distributionResponse struct {
	ID             int64      `json:"id"`
	RecipientID    int64      `json:"recipient_id"`
	DistributedAt  time.Time  `json:"distributed_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	Remarks        string     `json:"remarks,omitempty"`
}

type historyResponse struct {
	Document      documentResponse       `json:"document"`
	Entries       []historyEntryResponse `json:"entries"`
	Distributions []distributionResponse `json:"distributions"`
}

type listResponse struct {
	Items  []documentResponse `json:"items"`
	Total  int                `json:"total"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

func toDocumentResponse(doc Document) documentResponse {
	return documentResponse{
		ID:              doc.ID.String(),
		Code:            doc.Code,
		Title:           doc.Title,
		DocumentType:    doc.DocumentType,
		Department:      doc.Department,
		RetentionMonths: doc.RetentionMonths,
		EffectiveDate:   doc.EffectiveDate,
		ContentURL:      doc.ContentURL,
		FileName:        doc.FileName,
		FileSize:        doc.FileSize,
		Status:          doc.Status,
		CreatedBy:       doc.CreatedBy,
		DeletedAt:       doc.DeletedAt,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func toHistoryResponse(view HistoryView) historyResponse {
	entries := make([]historyEntryResponse, len(view.Entries))
	for i, e := range view.Entries {
		entries[i] = historyEntryResponse{
			ID:         e.ID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Action:     e.Action,
			ActorID:    e.ActorID,
			ActorRole:  string(e.ActorRole),
			Remarks:    e.Remarks,
			At:         e.At,
		}
	}
	distributions := make([]distributionResponse, len(view.Distributions))
	for i, d := range view.Distributions {
		distributions[i] = distributionResponse{
			ID:             d.ID,
			RecipientID:    d.RecipientID,
			DistributedAt:  d.DistributedAt,
			AcknowledgedAt: d.AcknowledgedAt,
			Remarks:        d.Remarks,
		}
	}
	return historyResponse{
		Document:      toDocumentResponse(view.Document),
		Entries:       entries,
		Distributions: distributions,
	}
}
