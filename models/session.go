package models

// Session is the authenticated dashboard session. A super_admin session has
// no department; a dept_admin session is scoped to one.
type Session struct {
	Token      string `json:"token"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
}

// Valid reports whether a session is present.
func (s Session) Valid() bool {
	return s.Token != ""
}

// IsSuperAdmin reports whether the session may manage personnel.
func (s Session) IsSuperAdmin() bool {
	return s.Role == RoleSuperAdmin
}
