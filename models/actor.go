package models

// Actor is the authenticated caller performing an operation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Label is what gets written into audit fields such as createdBy.
func (a Actor) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}
