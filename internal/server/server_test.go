package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/dispatcher"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDispatcher struct {
	mu      sync.Mutex
	seen    []int64
	status  dispatcher.Status
	ctxErrs []error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, update *models.Update) dispatcher.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, update.ID)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return dispatcher.Result{Status: f.status, UpdateID: update.ID}
}

func post(h http.Handler, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhookDispatches(t *testing.T) {
	d := &fakeDispatcher{status: dispatcher.StatusOK}
	s := New(d, Options{Path: "/tg"})

	w := post(s.Handler(), "/tg", `{"update_id": 42, "message": {"message_id": 1, "chat": {"id": 5, "type": "private"}, "text": "hi"}}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	require.Equal(t, []int64{42}, d.seen)
	assert.NoError(t, d.ctxErrs[0])
}

func TestWebhookReportsDuplicate(t *testing.T) {
	d := &fakeDispatcher{status: dispatcher.StatusDuplicate}
	s := New(d, Options{})

	w := post(s.Handler(), "/webhook", `{"update_id": 1}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"duplicate"}`, w.Body.String())
}

func TestWebhookBadJSON(t *testing.T) {
	d := &fakeDispatcher{status: dispatcher.StatusOK}
	s := New(d, Options{})

	w := post(s.Handler(), "/webhook", `{not json`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"error"}`, w.Body.String())
	assert.Empty(t, d.seen)
}

func TestWebhookSecretToken(t *testing.T) {
	d := &fakeDispatcher{status: dispatcher.StatusOK}
	s := New(d, Options{SecretToken: "s3cret"})

	w := post(s.Handler(), "/webhook", `{"update_id": 1}`, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"error"}`, w.Body.String())

	w = post(s.Handler(), "/webhook", `{"update_id": 1}`, map[string]string{secretHeader: "wrong"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"error"}`, w.Body.String())
	assert.Empty(t, d.seen)

	w = post(s.Handler(), "/webhook", `{"update_id": 1}`, map[string]string{secretHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{1}, d.seen)
}

func TestHealthz(t *testing.T) {
	s := New(&fakeDispatcher{}, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestHealthzReportsBackendFailure(t *testing.T) {
	healthy := true
	s := New(&fakeDispatcher{}, Options{HealthCheck: func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("redis: connection refused")
	}})

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		return w
	}

	w := get()
	assert.Equal(t, http.StatusOK, w.Code)

	healthy = false
	w = get()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"error"}`, w.Body.String())
}
