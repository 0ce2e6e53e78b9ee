package models

// User is the profile returned by the backend for an authenticated account.
type User struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt Timestamp `json:"created_at"`
}

// SignupForm holds the fields collected when creating an account.
type SignupForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	AcceptedTerms   bool
}
