package domain

import "time"

// Advisory is derived, role-specific guidance for a ticket.
type Advisory struct {
	Summary      string   `json:"summary"`
	Insights     []string `json:"insights"`
	Guidance     string   `json:"guidance"`
	NextSteps    []string `json:"nextSteps"`
	DraftReply   string   `json:"draftReply"`
	StatusAdvice string   `json:"statusAdvice"`
}

// Clone copies the slices of the advisory.
func (a Advisory) Clone() Advisory {
	a.Insights = append([]string(nil), a.Insights...)
	a.NextSteps = append([]string(nil), a.NextSteps...)
	return a
}

// AIAnalysis is a generated advisory cached on its ticket.
type AIAnalysis struct {
	Advisory
	Role        Role      `json:"role"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Clone copies the cached advisory.
func (a AIAnalysis) Clone() AIAnalysis {
	a.Advisory = a.Advisory.Clone()
	return a
}
