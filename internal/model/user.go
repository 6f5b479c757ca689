package model

import "strings"

// Role is the user type a session was opened with.  It selects the login
// endpoint on the backend and the dashboard variant served to the client.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleStore Role = "store"
	RoleUser  Role = "user"
)

// ParseRole normalizes a role string.  Unknown values report ok=false.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleStore:
		return RoleStore, true
	case RoleUser:
		return RoleUser, true
	}
	return "", false
}

// BackendRole is the role name the backend uses in its user records.
func (r Role) BackendRole() string {
	switch r {
	case RoleStore:
		return "STORE_OWNER"
	case RoleAdmin:
		return "ADMIN"
	}
	return "USER"
}

// User is the backend's profile of a person.  The same shape is returned by
// the profile lookup, the phone search and the QR resolution endpoints.
type User struct {
	ID           int64  `json:"id"`
	Phone        string `json:"phone"`
	Username     string `json:"username,omitempty"`
	Nickname     string `json:"nickname,omitempty"`
	Email        string `json:"email,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	IsStoreOwner bool   `json:"is_store_owner,omitempty"`
	Role         string `json:"role,omitempty"`
}

// DisplayName picks the friendliest non-empty name.
func (u User) DisplayName() string {
	switch {
	case u.Nickname != "":
		return u.Nickname
	case u.LastName+u.FirstName != "":
		return u.LastName + u.FirstName
	case u.Username != "":
		return u.Username
	}
	return u.Phone
}

// UserSearchResult is the payload of GET /store/search-user/.
type UserSearchResult struct {
	Found bool  `json:"found"`
	User  *User `json:"user"`
}
