package dto

import (
	"time"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/policy"
)

// AttachmentPayload is attachment metadata sent with a new ticket.
type AttachmentPayload struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"sizeBytes"`
}

// CreateTicketRequest payload for filing a ticket.
type CreateTicketRequest struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Category      string              `json:"category"`
	Priority      string              `json:"priority"`
	Status        string              `json:"status"`
	SchoolID      string              `json:"schoolId"`
	SchoolName    string              `json:"schoolName"`
	District      string              `json:"district"`
	AssignedMitra []string            `json:"assignedMitra"`
	Attachments   []AttachmentPayload `json:"attachments"`
}

// DomainAttachments converts the payload attachments.
func (r CreateTicketRequest) DomainAttachments() []domain.Attachment {
	out := make([]domain.Attachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		out = append(out, domain.Attachment{Name: a.Name, URL: a.URL, SizeBytes: a.SizeBytes})
	}
	return out
}

// CommentRequest payload for replying on a thread.
type CommentRequest struct {
	Message string `json:"message"`
}

// TransitionRequest payload for an explicit lifecycle transition.
type TransitionRequest struct {
	Kind string `json:"kind"`
	Note string `json:"note"`
}

// PatchTicketRequest is an administrative patch. Absent fields are left alone;
// an empty assignedMitra array clears the partners.
type PatchTicketRequest struct {
	Priority      *string   `json:"priority"`
	Category      *string   `json:"category"`
	AssignedMitra *[]string `json:"assignedMitra"`
	Status        *string   `json:"status"`
	Note          string    `json:"note"`
}

// StudentReportRequest payload for attaching a student report.
type StudentReportRequest struct {
	StudentName string `json:"studentName"`
	Summary     string `json:"summary"`
}

// TicketSummaryResponse is one row of a ticket listing.
type TicketSummaryResponse struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	SchoolName    string    `json:"schoolName"`
	District      string    `json:"district,omitempty"`
	AssignedMitra []string  `json:"assignedMitra"`
	CommentCount  int       `json:"commentCount"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// PermissionsResponse tells the caller what it may do on the ticket.
type PermissionsResponse struct {
	CanContribute bool `json:"canContribute"`
	CanEscalate   bool `json:"canEscalate"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Category       string                 `json:"category"`
	Status         string                 `json:"status"`
	Priority       string                 `json:"priority"`
	ReporterID     string                 `json:"reporterId"`
	ReporterRole   string                 `json:"reporterRole"`
	SchoolID       string                 `json:"schoolId,omitempty"`
	SchoolName     string                 `json:"schoolName"`
	District       string                 `json:"district,omitempty"`
	AssignedMitra  []string               `json:"assignedMitra"`
	Attachments    []domain.Attachment    `json:"attachments"`
	Comments       []domain.Comment       `json:"comments"`
	StudentReports []domain.StudentReport `json:"studentReports"`
	AIAnalysis     *domain.AIAnalysis     `json:"aiAnalysis,omitempty"`
	Permissions    PermissionsResponse    `json:"permissions"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// AdvisoryResponse wraps an advisory with where it came from.
type AdvisoryResponse struct {
	Source      string          `json:"source"`
	Cached      bool            `json:"cached"`
	Role        string          `json:"role"`
	GeneratedAt *time.Time      `json:"generatedAt,omitempty"`
	Advisory    domain.Advisory `json:"advisory"`
}

// NewTicketSummary maps a ticket to its listing row.
func NewTicketSummary(t domain.Ticket) TicketSummaryResponse {
	return TicketSummaryResponse{
		ID:            t.ID,
		Title:         t.Title,
		Category:      t.Category,
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		SchoolName:    t.SchoolName,
		District:      t.District,
		AssignedMitra: orEmpty(t.AssignedMitra),
		CommentCount:  len(t.Comments),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewTicketSummaries maps a listing.
func NewTicketSummaries(tickets []domain.Ticket) []TicketSummaryResponse {
	out := make([]TicketSummaryResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, NewTicketSummary(t))
	}
	return out
}

// NewTicketResponse maps a ticket as seen by viewer. The cached analysis is
// included only when it was generated for the viewer's role.
func NewTicketResponse(viewer domain.Identity, t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Category:       t.Category,
		Status:         string(t.Status),
		Priority:       string(t.Priority),
		ReporterID:     t.ReporterID,
		ReporterRole:   t.ReporterRole.String(),
		SchoolID:       t.SchoolID,
		SchoolName:     t.SchoolName,
		District:       t.District,
		AssignedMitra:  orEmpty(t.AssignedMitra),
		Attachments:    t.Attachments,
		Comments:       t.Comments,
		StudentReports: t.StudentReports,
		Permissions: PermissionsResponse{
			CanContribute: policy.CanContribute(viewer.Role, t),
			CanEscalate: viewer.Role == domain.RoleDaerah &&
				(t.Status == domain.TicketStatusPending || t.Status == domain.TicketStatusOpen),
		},
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	// A cached analysis is written for one role and only shown to it.
	if t.AIAnalysis != nil && t.AIAnalysis.Role == viewer.Role {
		resp.AIAnalysis = t.AIAnalysis
	}
	if resp.Attachments == nil {
		resp.Attachments = []domain.Attachment{}
	}
	if resp.Comments == nil {
		resp.Comments = []domain.Comment{}
	}
	if resp.StudentReports == nil {
		resp.StudentReports = []domain.StudentReport{}
	}
	return resp
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
