package auth

import "github.com/joescharf/crev/internal/models"

// State is the outcome of a session check.
type State string

const (
	// NoToken means nothing is stored; the user must log in.
	NoToken State = "no_token"
	// Authenticated means the stored token was accepted by the service.
	Authenticated State = "authenticated"
	// Unauthenticated means a stored token was rejected and has been cleared.
	Unauthenticated State = "unauthenticated"
)

// Navigation tells the presentation layer where to go next.
type Navigation string

const (
	// NavigateApp is the authenticated entry point (review and rewrite).
	NavigateApp Navigation = "app"
	// NavigateLogin is the unauthenticated entry point.
	NavigateLogin Navigation = "login"
	// Stay keeps the user where they are.
	Stay Navigation = "stay"
)

// SessionCheck is the result of Gateway.CheckSession.
type SessionCheck struct {
	State State
	User  *models.User // set when Authenticated
	Err   error        // why the session was rejected, when Unauthenticated
}

// Next maps the check to the navigation the caller must perform.
func (c SessionCheck) Next() Navigation {
	switch c.State {
	case Authenticated:
		return NavigateApp
	case NoToken:
		return NavigateLogin
	default:
		return Stay
	}
}
