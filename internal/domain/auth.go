package domain

// Identity is the resolved caller of an operation.
type Identity struct {
	ID         string
	Username   string
	Role       Role
	Name       string
	SchoolID   string
	SchoolName string
	District   string
}

// DisplayName is the name shown on comments authored by the identity.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Username
}
