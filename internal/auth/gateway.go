// Package auth owns every identity-related interaction with the service:
// login, signup, Google sign-in, current-user lookup, the session check run
// on entry, and logout.
//
// Results are plain values. Where the browser client navigated between pages,
// Gateway reports a Navigation for the caller to act on.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joescharf/crev/internal/backend"
	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
	"github.com/joescharf/crev/internal/session"
	"github.com/joescharf/crev/internal/validate"
)

// Fallback and mapped messages shown to the user.
const (
	MsgLoginFailed        = "Login failed. Please check your credentials."
	MsgGoogleFailed       = "Google login failed. Please try regular login."
	MsgSignupFailed       = "Signup failed. Please try again."
	MsgEmailRegistered    = "This email is already registered. Try logging in or use a different email."
	MsgSignupInvalidEmail = "Please enter a valid email address."
	MsgNetwork            = "Network error. Please try again."
	MsgGoogleNetwork      = "Network error. Please check your connection."
	MsgNotLoggedIn        = "Please log in first"
	MsgSessionExpired     = "Your session is no longer valid. Please log in again."
)

// Server detail strings with a dedicated user-facing message.
var signupDetails = map[string]string{
	"Email already registered": MsgEmailRegistered,
	"Invalid email format":     MsgSignupInvalidEmail,
}

// Client is the subset of the service API the gateway needs.
type Client interface {
	Login(ctx context.Context, email, password string) (*backend.TokenResponse, error)
	Signup(ctx context.Context, name, email, password string) error
	Google(ctx context.Context) (*backend.TokenResponse, error)
	Me(ctx context.Context, token string) (*models.User, error)
}

// Gateway performs auth calls and keeps the session store in step with them.
type Gateway struct {
	client Client
	store  session.Store
}

// NewGateway creates a Gateway over the given client and store.
func NewGateway(c Client, s session.Store) *Gateway {
	return &Gateway{client: c, store: s}
}

// Login authenticates with email and password and persists the session.
// When remember is set the email is kept for the next login, otherwise any
// remembered email is forgotten.
func (g *Gateway) Login(ctx context.Context, email, password string, remember bool) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if err := validate.Login(email, password); err != nil {
		return nil, err
	}

	resp, err := g.client.Login(ctx, email, password)
	if err != nil {
		return nil, authFailure(err, MsgLoginFailed)
	}

	sess, err := g.establish(ctx, resp, MsgLoginFailed)
	if err != nil {
		return nil, err
	}

	if remember {
		err = g.store.RememberEmail(ctx, email)
	} else {
		err = g.store.ForgetEmail(ctx)
	}
	if err != nil {
		slog.Warn("failed to update remembered email", "error", err)
	}
	return sess, nil
}

// GoogleLogin runs the service's Google sign-in and persists the session.
func (g *Gateway) GoogleLogin(ctx context.Context) (*models.Session, error) {
	resp, err := g.client.Google(ctx)
	if errs.Is(err, errs.KindConnectivity) {
		return nil, errs.Connectivity(MsgGoogleNetwork, err)
	}
	if err != nil {
		return nil, authFailure(err, MsgGoogleFailed)
	}
	return g.establish(ctx, resp, MsgGoogleFailed)
}

// Signup validates the form locally and creates the account. No session is
// created; the caller should send the user to login.
func (g *Gateway) Signup(ctx context.Context, form models.SignupForm) error {
	if err := validate.Signup(form); err != nil {
		return err
	}

	err := g.client.Signup(ctx, strings.TrimSpace(form.Name), strings.TrimSpace(form.Email), form.Password)
	if err == nil {
		return nil
	}
	if errs.Is(err, errs.KindConnectivity) {
		return errs.Connectivity(MsgNetwork, err)
	}

	detail := errs.DetailOf(err)
	msg, ok := signupDetails[detail]
	if !ok {
		msg = detail
	}
	if msg == "" {
		msg = MsgSignupFailed
	}
	e := errs.Auth(errs.StatusOf(err), msg)
	e.Detail = detail
	e.Err = err
	return e
}

// FetchCurrentUser asks the service who token belongs to.
func (g *Gateway) FetchCurrentUser(ctx context.Context, token string) (*models.User, error) {
	u, err := g.client.Me(ctx, token)
	if err != nil {
		if errs.Is(err, errs.KindConnectivity) {
			return nil, err
		}
		e := errs.Auth(errs.StatusOf(err), MsgSessionExpired)
		e.Err = err
		return nil, e
	}
	return u, nil
}

// CheckSession is run when entering the login or signup flow.
//
//   - nothing stored: NoToken
//   - stored token accepted by the service: Authenticated, cached user refreshed
//   - stored token rejected or unverifiable: store cleared, Unauthenticated
func (g *Gateway) CheckSession(ctx context.Context) (SessionCheck, error) {
	sess, err := g.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return SessionCheck{State: NoToken}, nil
	}
	if err != nil {
		return SessionCheck{}, fmt.Errorf("load session: %w", err)
	}

	u, err := g.FetchCurrentUser(ctx, sess.Token)
	if err != nil {
		slog.Debug("stored session rejected", "error", err)
		if cerr := g.store.Clear(ctx); cerr != nil {
			return SessionCheck{}, fmt.Errorf("clear session: %w", cerr)
		}
		return SessionCheck{State: Unauthenticated, Err: err}, nil
	}

	if u.Email != "" {
		sess.User = *u
		if err := g.store.Save(ctx, sess); err != nil {
			slog.Warn("failed to refresh cached user", "error", err)
		}
	}
	return SessionCheck{State: Authenticated, User: &sess.User}, nil
}

// RequireSession is run when entering an authenticated command. It returns
// the verified user, or an auth error after clearing a rejected session.
func (g *Gateway) RequireSession(ctx context.Context) (*models.User, error) {
	check, err := g.CheckSession(ctx)
	if err != nil {
		return nil, err
	}
	switch check.State {
	case Authenticated:
		return check.User, nil
	case Unauthenticated:
		if errs.Is(check.Err, errs.KindConnectivity) {
			return nil, check.Err
		}
		return nil, errs.Auth(errs.StatusOf(check.Err), MsgSessionExpired)
	default:
		return nil, errs.Auth(0, MsgNotLoggedIn)
	}
}

// CachedUser returns the user from the stored session without a network call.
func (g *Gateway) CachedUser(ctx context.Context) (*models.User, error) {
	sess, err := g.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &sess.User, nil
}

// RememberedEmail returns the email saved by a remembered login, if any.
func (g *Gateway) RememberedEmail(ctx context.Context) (string, error) {
	return g.store.RememberedEmail(ctx)
}

// Logout clears the stored session.
func (g *Gateway) Logout(ctx context.Context) (Navigation, error) {
	if err := g.store.Clear(ctx); err != nil {
		return Stay, fmt.Errorf("clear session: %w", err)
	}
	return NavigateLogin, nil
}

// establish validates a token response and saves it as the session.
func (g *Gateway) establish(ctx context.Context, resp *backend.TokenResponse, fallback string) (*models.Session, error) {
	sess := &models.Session{Token: resp.AccessToken, User: resp.User}
	if !sess.Valid() {
		return nil, errs.Server(http.StatusOK, fallback+" (incomplete response)")
	}
	if err := g.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return sess, nil
}

// authFailure turns a client error from a login call into the taxonomy:
// connectivity stays connectivity, a 5xx stays a server error, anything else
// is a rejected login carrying the server message or fallback.
func authFailure(err error, fallback string) error {
	if errs.Is(err, errs.KindConnectivity) {
		return errs.Connectivity(MsgNetwork, err)
	}
	status := errs.StatusOf(err)
	msg := errs.DetailOf(err)
	if msg == "" {
		msg = fallback
	}
	if status >= http.StatusInternalServerError {
		e := errs.Server(status, msg)
		e.Err = err
		return e
	}
	e := errs.Auth(status, msg)
	e.Detail = errs.DetailOf(err)
	e.Err = err
	return e
}
