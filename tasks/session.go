package tasks

// Role is the coarse authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole normalizes a free-text role string; anything that is not
// "admin" is a regular user.
func ParseRole(s string) Role {
	if equalFold(s, string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// Session is the explicit identity threaded through request handling.
// It replaces the original dashboard's ambient browser session storage.
type Session struct {
	Username    string
	DisplayName string
	Email       string
	Department  string
	Role        Role
}

// IsAdmin reports whether the session may see and mutate everything.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin }

// User is a row of the Users sheet. The legacy sheet stores the password
// in plain text; this system only echoes that contract, it does not add
// credential storage of its own.
type User struct {
	Username    string
	DisplayName string
	Email       string
	Department  string
	Role        Role
	Password    string
}

// Session derives the session identity for a user.
func (u User) Session() Session {
	return Session{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		Department:  u.Department,
		Role:        u.Role,
	}
}
