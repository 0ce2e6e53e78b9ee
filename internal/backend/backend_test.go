package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/crev/internal/errs"
	"github.com/joescharf/crev/internal/models"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("", 0)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.client.Timeout)

	c = NewClient("http://example.test/", time.Second)
	assert.Equal(t, "http://example.test", c.BaseURL())
}

func TestLogin_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])
		assert.Equal(t, "pw", body["password"])

		w.Write([]byte(`{"access_token":"abc","token_type":"bearer","user":{"id":1,"email":"a@b.com","name":"A"}}`))
	})

	resp, err := c.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.AccessToken)
	assert.Equal(t, "a@b.com", resp.User.Email)
}

func TestLogin_Rejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid credentials"}`))
	})

	_, err := c.Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindServer))
	assert.Equal(t, http.StatusUnauthorized, errs.StatusOf(err))
	assert.Equal(t, "invalid credentials", errs.DetailOf(err))
}

func TestMe_SendsBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/auth/me", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"id":7,"email":"a@b.com","name":"A","created_at":"2025-01-02T03:04:05"}`))
	})

	u, err := c.Me(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 7, u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, 2025, u.CreatedAt.Year())
}

func TestSignup_EmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/signup", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
	})
	assert.NoError(t, c.Signup(context.Background(), "A", "a@b.com", "secret1"))
}

func TestSignup_DetailMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"detail":"Email already registered"}`))
	})
	err := c.Signup(context.Background(), "A", "a@b.com", "secret1")
	require.Error(t, err)
	assert.Equal(t, "Email already registered", errs.DetailOf(err))
	assert.Equal(t, "Email already registered", err.Error())
}

func TestReview(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/review", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body models.CodeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "print(1)", body.Code)
		assert.Equal(t, models.LanguagePython, body.Language)
		w.Write([]byte(`{"review":"Looks fine","suggestions":["Add tests","Add docs"]}`))
	})

	res, err := c.Review(context.Background(), "tok", models.CodeRequest{Code: "print(1)", Language: models.LanguagePython})
	require.NoError(t, err)
	assert.Equal(t, "Looks fine", res.Review)
	assert.Equal(t, []string{"Add tests", "Add docs"}, res.Suggestions)
}

func TestRewrite_AcceptsBothKeys(t *testing.T) {
	for _, body := range []string{
		`{"rewritten_code":"x = 1","improvements":["a"]}`,
		`{"rewrite":"x = 1","improvements":["a"]}`,
		`{"rewritten_code":"x = 1","rewrite":"ignored","improvements":["a"]}`,
	} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/rewrite", r.URL.Path)
			w.Write([]byte(body))
		})
		res, err := c.Rewrite(context.Background(), "tok", models.CodeRequest{Code: "x=1", Language: models.LanguagePython})
		require.NoError(t, err, body)
		assert.Equal(t, "x = 1", res.RewrittenCode, body)
		assert.Equal(t, []string{"a"}, res.Improvements)
	}
}

func TestServerErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.Review(context.Background(), "tok", models.CodeRequest{Code: "x", Language: models.LanguageGo})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindServer))
	assert.Equal(t, 500, errs.StatusOf(err))
	assert.Equal(t, "HTTP error! status: 500", err.Error())
	assert.Empty(t, errs.DetailOf(err))
}

func TestHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	assert.NoError(t, c.Health(context.Background()))
}

func TestConnectivityError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	err := c.Health(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindConnectivity))
	assert.Equal(t, 0, errs.StatusOf(err))
}

func TestMalformedSuccessBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>oops</html>")
	})
	_, err := c.Google(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindServer))
}

func TestServerMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"message", `{"message":"m"}`, "m"},
		{"detail", `{"detail":"d"}`, "d"},
		{"error", `{"error":"e"}`, "e"},
		{"message wins", `{"message":"m","detail":"d"}`, "m"},
		{"detail list", `{"detail":[{"loc":["body","email"],"msg":"field required"}]}`, "field required"},
		{"empty object", `{}`, ""},
		{"not json", `bad gateway`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ServerMessage([]byte(tt.body)))
		})
	}
}
