// Package review issues authenticated review and rewrite requests.
//
// The Orchestrator validates input locally, attaches the stored bearer token,
// and classifies every failure into the errs taxonomy. A second call for an
// operation that is still in flight is refused rather than queued.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
	"github.com/joescharf/crev/internal/session"
)

// Operation names an orchestrated request.
type Operation string

const (
	OpReview  Operation = "review"
	OpRewrite Operation = "rewrite"
)

// Transport performs the review and rewrite calls for a bearer token.
type Transport interface {
	Review(ctx context.Context, token string, req models.CodeRequest) (*models.ReviewResult, error)
	Rewrite(ctx context.Context, token string, req models.CodeRequest) (*models.RewriteResult, error)
}

// sessionScoped is implemented by transports that can report whether they
// authenticate with the stored bearer token. Transports without it are
// assumed to.
type sessionScoped interface {
	UsesSession() bool
}

// Orchestrator runs review and rewrite requests against a Transport.
type Orchestrator struct {
	transport Transport
	store     session.Store
	target    string // shown in connectivity guidance

	reviewing atomic.Bool
	rewriting atomic.Bool
}

// NewOrchestrator creates an Orchestrator. target names where the transport
// sends requests (the service base URL) and appears in connectivity errors.
func NewOrchestrator(t Transport, s session.Store, target string) *Orchestrator {
	return &Orchestrator{transport: t, store: s, target: target}
}

// InFlight reports whether op is currently running.
func (o *Orchestrator) InFlight(op Operation) bool {
	return o.guard(op).Load()
}

// SubmitReview asks for a review of code.
func (o *Orchestrator) SubmitReview(ctx context.Context, code string, language string) (*models.ReviewResult, error) {
	req, token, err := o.prepare(ctx, OpReview, code, language)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(OpReview)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := o.transport.Review(ctx, token, req)
	if err != nil {
		return nil, o.classify(ctx, err)
	}
	if res.Review == "" {
		res.Review = "No review available."
	}
	return res, nil
}

// SubmitRewrite asks for a corrected version of code.
func (o *Orchestrator) SubmitRewrite(ctx context.Context, code string, language string) (*models.RewriteResult, error) {
	req, token, err := o.prepare(ctx, OpRewrite, code, language)
	if err != nil {
		return nil, err
	}

	release, err := o.acquire(OpRewrite)
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := o.transport.Rewrite(ctx, token, req)
	if err != nil {
		return nil, o.classify(ctx, err)
	}
	if res.RewrittenCode == "" {
		res.RewrittenCode = "No rewrite available."
	}
	return res, nil
}

// prepare runs the local checks and reads the token. Nothing here touches
// the network.
func (o *Orchestrator) prepare(ctx context.Context, op Operation, code, language string) (models.CodeRequest, string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.CodeRequest{}, "", errs.Validation(fmt.Sprintf("Please paste some code to %s", op))
	}
	lang, err := models.ParseLanguage(language)
	if err != nil {
		return models.CodeRequest{}, "", errs.Validation(err.Error())
	}

	sess, err := o.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return models.CodeRequest{}, "", errs.Auth(0, "Please log in first")
	}
	if err != nil {
		return models.CodeRequest{}, "", fmt.Errorf("load session: %w", err)
	}

	return models.CodeRequest{Code: code, Language: lang}, sess.Token, nil
}

// usesSession reports whether auth failures from the transport speak for the
// stored session.
func (o *Orchestrator) usesSession() bool {
	if s, ok := o.transport.(sessionScoped); ok {
		return s.UsesSession()
	}
	return true
}

func (o *Orchestrator) guard(op Operation) *atomic.Bool {
	if op == OpRewrite {
		return &o.rewriting
	}
	return &o.reviewing
}

func (o *Orchestrator) acquire(op Operation) (func(), error) {
	g := o.guard(op)
	if !g.CompareAndSwap(false, true) {
		return nil, errs.Busy(string(op))
	}
	return func() { g.Store(false) }, nil
}

// classify maps a transport error into the taxonomy. Auth failures end the
// session only when the transport sent the session token; other failures
// leave it alone.
func (o *Orchestrator) classify(ctx context.Context, err error) error {
	switch {
	case errs.Is(err, errs.KindConnectivity):
		cause := err
		if inner := errors.Unwrap(err); inner != nil {
			cause = inner
		}
		reason := strings.TrimRight(cause.Error(), ".")
		guidance := fmt.Sprintf("Make sure the backend server is running on %s", o.target)
		if !o.usesSession() {
			guidance = fmt.Sprintf("Make sure %s is reachable", o.target)
		}
		return errs.Connectivity(fmt.Sprintf("Error: %s. %s", reason, guidance), err)
	case errs.Is(err, errs.KindAuth):
		if o.usesSession() {
			o.endSession(ctx)
		}
		return err
	}

	status := errs.StatusOf(err)
	if o.usesSession() && (status == http.StatusUnauthorized || status == http.StatusForbidden) {
		o.endSession(ctx)
		e := errs.Auth(status, "Your session is no longer valid. Please log in again.")
		e.Err = err
		return e
	}
	if status != 0 {
		e := errs.Server(status, fmt.Sprintf("HTTP error! status: %d", status))
		e.Detail = errs.DetailOf(err)
		e.Err = err
		return e
	}
	e := errs.Server(0, err.Error())
	e.Err = err
	return e
}

func (o *Orchestrator) endSession(ctx context.Context) {
	if err := o.store.Clear(ctx); err != nil {
		slog.Warn("failed to clear rejected session", "error", err)
	}
}
