package models

// Session is the authenticated-user state cached by the client.
// Token and User are always persisted together.
type Session struct {
	Token string
	User  User
}

// Valid reports whether the session carries both a token and a user.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.User.Email != ""
}
