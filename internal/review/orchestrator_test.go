package review

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crev/internal/backend"
	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/llm"
	"github.com/joescharf/crev/internal/models"
	"github.com/joescharf/crev/internal/session"
)

// fakeTransport records calls and can block until released.
type fakeTransport struct {
	calls   atomic.Int32
	tokens  []string
	block   chan struct{}
	started chan struct{}

	review  *models.ReviewResult
	rewrite *models.RewriteResult
	err     error
}

func (f *fakeTransport) wait() {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeTransport) Review(_ context.Context, token string, _ models.CodeRequest) (*models.ReviewResult, error) {
	f.calls.Add(1)
	f.tokens = append(f.tokens, token)
	f.wait()
	if f.err != nil {
		return nil, f.err
	}
	return f.review, nil
}

func (f *fakeTransport) Rewrite(_ context.Context, token string, _ models.CodeRequest) (*models.RewriteResult, error) {
	f.calls.Add(1)
	f.tokens = append(f.tokens, token)
	f.wait()
	if f.err != nil {
		return nil, f.err
	}
	return f.rewrite, nil
}

func newTestStore(t *testing.T) *session.SQLiteStore {
	t.Helper()
	s, err := session.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func loggedInStore(t *testing.T) *session.SQLiteStore {
	t.Helper()
	s := newTestStore(t)
	require.NoError(t, s.Save(context.Background(), &models.Session{
		Token: "abc",
		User:  models.User{ID: 1, Email: "a@b.com"},
	}))
	return s
}

func TestSubmitReview_Success(t *testing.T) {
	ft := &fakeTransport{review: &models.ReviewResult{Review: "ok", Suggestions: []string{"a", "b"}}}
	o := NewOrchestrator(ft, loggedInStore(t), "http://backend")

	res, err := o.SubmitReview(context.Background(), "  print(1)  ", "python")
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Review)
	assert.Equal(t, []string{"a", "b"}, res.Suggestions)
	assert.Equal(t, []string{"abc"}, ft.tokens, "bearer token comes from the store")
	assert.False(t, o.InFlight(OpReview))
}

func TestSubmitReview_EmptyCodeNoNetwork(t *testing.T) {
	ft := &fakeTransport{}
	o := NewOrchestrator(ft, loggedInStore(t), "http://backend")

	for _, code := range []string{"", "   ", "\n\t"} {
		_, err := o.SubmitReview(context.Background(), code, "python")
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.KindValidation))
		assert.Equal(t, "Please paste some code to review", err.Error())
	}
	_, err := o.SubmitRewrite(context.Background(), "", "python")
	require.Error(t, err)
	assert.Equal(t, "Please paste some code to rewrite", err.Error())

	assert.Equal(t, int32(0), ft.calls.Load())
}

func TestSubmitReview_UnknownLanguage(t *testing.T) {
	ft := &fakeTransport{}
	o := NewOrchestrator(ft, loggedInStore(t), "http://backend")

	_, err := o.SubmitReview(context.Background(), "x", "cobol")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Equal(t, int32(0), ft.calls.Load())
}

func TestSubmitReview_NotLoggedIn(t *testing.T) {
	ft := &fakeTransport{}
	o := NewOrchestrator(ft, newTestStore(t), "http://backend")

	_, err := o.SubmitReview(context.Background(), "x", "go")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindAuth))
	assert.Equal(t, int32(0), ft.calls.Load())
}

func TestSubmitReview_ServerErrorLeavesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := loggedInStore(t)
	o := NewOrchestrator(backend.NewClient(srv.URL, 5*time.Second), s, srv.URL)

	_, err := o.SubmitReview(context.Background(), "print(1)", "python")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindServer))
	assert.Equal(t, 500, errs.StatusOf(err))
	assert.Equal(t, "HTTP error! status: 500", err.Error())

	sess, err := s.Load(context.Background())
	require.NoError(t, err, "session left untouched")
	assert.Equal(t, "abc", sess.Token)
}

func TestSubmitReview_UnauthorizedClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Could not validate credentials"}`))
	}))
	defer srv.Close()

	s := loggedInStore(t)
	o := NewOrchestrator(backend.NewClient(srv.URL, 5*time.Second), s, srv.URL)

	_, err := o.SubmitRewrite(context.Background(), "x = 1", "python")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindAuth))

	_, err = s.Load(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestSubmitReview_Connectivity(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := loggedInStore(t)
	o := NewOrchestrator(backend.NewClient(url, time.Second), s, url)

	_, err := o.SubmitReview(context.Background(), "x", "python")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConnectivity))
	assert.Contains(t, err.Error(), "Make sure the backend server is running on "+url)

	_, err = s.Load(context.Background())
	assert.NoError(t, err, "connectivity failures keep the session")
}

// anthropicStub answers every request with status and an API error body.
func anthropicStub(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSubmitReview_RejectedAPIKeyKeepsSession(t *testing.T) {
	srv := anthropicStub(t, http.StatusUnauthorized)
	t.Setenv("ANTHROPIC_BASE_URL", srv.URL)

	s := loggedInStore(t)
	o := NewOrchestrator(llm.NewClient("bad-key", "claude-haiku-4-5-20251001"), s, srv.URL)

	_, err := o.SubmitReview(context.Background(), "x = 1", "python")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindAuth))
	assert.Equal(t, llm.MsgKeyRejected, err.Error())

	sess, err := s.Load(context.Background())
	require.NoError(t, err, "a rejected API key says nothing about the service session")
	assert.Equal(t, "abc", sess.Token)
}

// tokenlessTransport authenticates on its own.
type tokenlessTransport struct{ fakeTransport }

func (*tokenlessTransport) UsesSession() bool { return false }

func TestSubmitRewrite_TokenlessTransportKeepsSessionOnForbidden(t *testing.T) {
	s := loggedInStore(t)
	ft := &tokenlessTransport{fakeTransport{err: errs.Server(http.StatusForbidden, "forbidden")}}
	o := NewOrchestrator(ft, s, "https://api.example.com")

	_, err := o.SubmitRewrite(context.Background(), "x = 1", "python")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindServer))
	assert.Equal(t, "HTTP error! status: 403", err.Error())

	_, err = s.Load(context.Background())
	assert.NoError(t, err)
}

func TestSubmitReview_TokenlessTransportNeedsLogin(t *testing.T) {
	ft := &tokenlessTransport{}
	o := NewOrchestrator(ft, newTestStore(t), "https://api.example.com")

	_, err := o.SubmitReview(context.Background(), "x = 1", "python")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindAuth))
	assert.Equal(t, "Please log in first", err.Error())
	assert.Equal(t, int32(0), ft.calls.Load())
}

func TestSubmitRewrite_Success(t *testing.T) {
	ft := &fakeTransport{rewrite: &models.RewriteResult{RewrittenCode: "x = 1", Improvements: []string{"spacing"}}}
	o := NewOrchestrator(ft, loggedInStore(t), "http://backend")

	res, err := o.SubmitRewrite(context.Background(), "x=1", "")
	require.NoError(t, err)
	assert.Equal(t, "x = 1", res.RewrittenCode)
	assert.Equal(t, []string{"spacing"}, res.Improvements)
}

func TestSubmit_EmptyResultPlaceholders(t *testing.T) {
	ft := &fakeTransport{
		review:  &models.ReviewResult{},
		rewrite: &models.RewriteResult{},
	}
	o := NewOrchestrator(ft, loggedInStore(t), "http://backend")

	rv, err := o.SubmitReview(context.Background(), "x", "go")
	require.NoError(t, err)
	assert.Equal(t, "No review available.", rv.Review)

	rw, err := o.SubmitRewrite(context.Background(), "x", "go")
	require.NoError(t, err)
	assert.Equal(t, "No rewrite available.", rw.RewrittenCode)
}

func TestInFlightGuard(t *testing.T) {
	ft := &fakeTransport{
		review:  &models.ReviewResult{Review: "ok"},
		rewrite: &models.RewriteResult{RewrittenCode: "ok"},
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	o := NewOrchestrator(ft, loggedInStore(t), "http://backend")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := o.SubmitReview(ctx, "x", "go")
		done <- err
	}()
	<-ft.started
	assert.True(t, o.InFlight(OpReview))

	// Same operation is refused without reaching the transport.
	_, err := o.SubmitReview(ctx, "y", "go")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindBusy))
	assert.Equal(t, int32(1), ft.calls.Load())

	// The other operation has its own guard.
	rewriteDone := make(chan error, 1)
	go func() {
		_, err := o.SubmitRewrite(ctx, "z", "go")
		rewriteDone <- err
	}()
	<-ft.started
	assert.True(t, o.InFlight(OpRewrite))

	close(ft.block)
	require.NoError(t, <-done)
	require.NoError(t, <-rewriteDone)
	assert.False(t, o.InFlight(OpReview))
	assert.False(t, o.InFlight(OpRewrite))

	// Guard is released after completion.
	_, err = o.SubmitReview(ctx, "x", "go")
	assert.NoError(t, err)
}

func TestInFlightGuard_ReleasedOnError(t *testing.T) {
	ft := &fakeTransport{err: errs.Server(502, "HTTP error! status: 502")}
	o := NewOrchestrator(ft, loggedInStore(t), "http://backend")

	_, err := o.SubmitReview(context.Background(), "x", "go")
	require.Error(t, err)
	assert.False(t, o.InFlight(OpReview))
}
