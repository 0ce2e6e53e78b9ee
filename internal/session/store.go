package session

import (
	"context"
	"errors"

	"github.com/joescharf/crev/internal/models"
)

// Well-known storage keys.
const (
	KeyToken           = "authToken"
	KeyUser            = "user"
	KeyRememberedEmail = "rememberedEmail"
)

// ErrNoSession is returned by Load when no complete session is stored.
var ErrNoSession = errors.New("no session")

// Store persists the client session and the remembered login email.
type Store interface {
	// Session
	Save(ctx context.Context, s *models.Session) error
	Load(ctx context.Context) (*models.Session, error)
	Clear(ctx context.Context) error

	// Remembered email
	RememberEmail(ctx context.Context, email string) error
	RememberedEmail(ctx context.Context) (string, error)
	ForgetEmail(ctx context.Context) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
