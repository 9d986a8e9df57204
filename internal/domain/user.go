package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Caller is the authenticated principal of a request, taken from the bearer token
type Caller struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanAccess reports whether the caller may read or modify a rental owned by ownerID
func (c Caller) CanAccess(ownerID string) bool {
	return c.IsAdmin() || c.UserID == ownerID
}
