package domain

import "time"

// Account is a login-capable identity record.
type Account struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Name         string
	SchoolID     string
	SchoolName   string
	District     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity projects the account onto the caller identity.
func (a *Account) Identity() Identity {
	return Identity{
		ID:         a.ID,
		Username:   a.Username,
		Role:       a.Role,
		Name:       a.Name,
		SchoolID:   a.SchoolID,
		SchoolName: a.SchoolName,
		District:   a.District,
	}
}
