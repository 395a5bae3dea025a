package domain

import "time"

// Comment is one immutable entry of a ticket thread.
type Comment struct {
	ID      string    `json:"id"`
	Author  string    `json:"author"`
	Role    Role      `json:"role"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// StudentReport is a student's account attached to a ticket.
type StudentReport struct {
	StudentName string    `json:"studentName"`
	Summary     string    `json:"summary"`
	Time        time.Time `json:"time"`
}
