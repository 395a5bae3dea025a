package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusOpen      TicketStatus = "open"
	TicketStatusEscalated TicketStatus = "escalated"
	TicketStatusResolved  TicketStatus = "resolved"
	TicketStatusRejected  TicketStatus = "rejected"
)

// ParseTicketStatus validates a raw status value.
func ParseTicketStatus(raw string) (TicketStatus, error) {
	status := TicketStatus(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case TicketStatusPending, TicketStatusOpen, TicketStatusEscalated, TicketStatusResolved, TicketStatusRejected:
		return status, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// Terminal reports whether no transition leaves the status.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusRejected
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// ParseTicketPriority validates a raw priority value.
func ParseTicketPriority(raw string) (TicketPriority, error) {
	priority := TicketPriority(strings.ToLower(strings.TrimSpace(raw)))
	switch priority {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return priority, nil
	default:
		return "", fmt.Errorf("unknown priority %q", raw)
	}
}

// CategoryStudentReport is reserved for tickets that aggregate student reports.
// Schools never see it in their listing.
const CategoryStudentReport = "Laporan Siswa"

// Ticket is the aggregate for filed reports.
type Ticket struct {
	ID             string
	Title          string
	Description    string
	Category       string
	Status         TicketStatus
	Priority       TicketPriority
	ReporterID     string
	ReporterRole   Role
	SchoolID       string
	SchoolName     string
	District       string
	AssignedMitra  []string
	Attachments    []Attachment
	Comments       []Comment
	StudentReports []StudentReport
	AIAnalysis     *AIAnalysis
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy so callers never share slices with a store.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	cp.AssignedMitra = append([]string(nil), t.AssignedMitra...)
	cp.Attachments = append([]Attachment(nil), t.Attachments...)
	cp.Comments = append([]Comment(nil), t.Comments...)
	cp.StudentReports = append([]StudentReport(nil), t.StudentReports...)
	if t.AIAnalysis != nil {
		analysis := t.AIAnalysis.Clone()
		cp.AIAnalysis = &analysis
	}
	return &cp
}

// Attachment stores metadata for an uploaded file referenced by a ticket.
type Attachment struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"sizeBytes"`
}
