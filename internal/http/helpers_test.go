package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"motodean/internal/config"
	"motodean/internal/domain"
	"motodean/internal/http/handlers"
	applog "motodean/internal/log"
	"motodean/internal/repos"
	"motodean/internal/testutil"
)

type harness struct {
	t   *testing.T
	db  *sqlx.DB
	app *fiber.App
}

func newHarness(t *testing.T, opts handlers.AppOptions) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	cfg := config.Config{TxTimeout: 5 * time.Second, TxRetries: 2}
	return &harness{t: t, db: db, app: handlers.NewApp(handlers.NewDeps(db, cfg, nil), opts)}
}

// session binds a fresh session id to a new user of the given role.
func (h *harness) session(role domain.Role) (string, *domain.User) {
	h.t.Helper()
	u := testutil.User(h.t, h.db, role)
	sid := uuid.NewString()
	require.NoError(h.t, repos.NewUserRepo(h.db).BindSession(context.Background(), sid, u.ID))
	return sid, u
}

func (h *harness) do(method, path, sid string, body any) (*http.Response, map[string]any) {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(h.t, err)
	return resp, decode(h.t, resp)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return out
}

func cookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// observeLogs routes the process logger into memory for the duration of the test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	applog.SetDefault(zap.New(core))
	t.Cleanup(func() { applog.SetDefault(nil) })
	return logs
}

func fieldsOf(e observer.LoggedEntry) map[string]any {
	m := e.ContextMap()
	if f, ok := m["fields"].(map[string]any); ok {
		return f
	}
	return map[string]any{}
}
