package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-fortune-backend/internal/config"
	"github.com/tbourn/go-fortune-backend/internal/guest"
	"github.com/tbourn/go-fortune-backend/internal/llm"
	"github.com/tbourn/go-fortune-backend/internal/repo"
	"github.com/tbourn/go-fortune-backend/internal/token"
)

const testAdminToken = "test-admin-token"

// stubCompleter returns a fixed reply or error.
type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(context.Context, string, []llm.Turn, string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func testConfig() config.Config {
	return config.Config{
		GinMode:     gin.TestMode,
		APIBasePath: "/",
		HistoryCap:  100,
		AdminToken:  testAdminToken,
		TokenSecret: "test-secret",
		TokenTTL:    time.Hour,
		CookieTTL:   time.Hour,
		Guest: config.GuestConfig{
			BufferCap:    16,
			MessageLimit: 3,
			SessionTTL:   time.Hour,
		},
		LLM:            config.LLMConfig{HistoryTurns: 20, Timeout: time.Second},
		RateRPS:        1000,
		RateBurst:      1000,
		IdempotencyTTL: time.Hour,
		OTEL:           config.OTELConfig{ServiceName: "test"},
	}
}

func newTestServer(t *testing.T, completer llm.Completer) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("api_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:         db,
		GuestStore: guest.NewMemoryStore(time.Hour),
		Completer:  completer,
	}, testConfig())
	return r, db
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept-Encoding", "identity")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func createGuestSession(t *testing.T, r http.Handler, nickname string) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/auth/create-guest", map[string]any{
		"nickname": nickname, "birthYear": 2000, "birthMonth": 5, "birthDay": 10,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create guest: %d %s", w.Code, w.Body.String())
	}
	sid, _ := decode(t, w)["sessionId"].(string)
	if sid == "" {
		t.Fatalf("no sessionId in %s", w.Body.String())
	}
	return sid
}

func TestHealthAndFallbacks(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})

	w := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/no-such-route", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown route: %d", w.Code)
	}
	if body := decode(t, w); body["code"] != "not_found" {
		t.Fatalf("unknown route envelope: %v", body)
	}

	w = doJSON(t, r, http.MethodDelete, "/health", nil, nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method not allowed: %d", w.Code)
	}
}

func TestRegisterFlow(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})
	payload := map[string]any{"nickname": "Aoi", "birthYear": 2000, "birthMonth": 5, "birthDay": 10}

	w := doJSON(t, r, http.MethodPost, "/auth/register", payload, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first register: %d %s", w.Code, w.Body.String())
	}
	first := decode(t, w)
	if first["message"] != "registration complete" {
		t.Fatalf("first register body: %v", first)
	}

	// Identical tuple is idempotent.
	w = doJSON(t, r, http.MethodPost, "/auth/register", payload, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("re-register: %d %s", w.Code, w.Body.String())
	}
	second := decode(t, w)
	if second["userId"] != first["userId"] {
		t.Fatalf("re-register resolved a different user: %v vs %v", second["userId"], first["userId"])
	}

	// Same nickname, different birth date is a conflict with warning=true.
	w = doJSON(t, r, http.MethodPost, "/auth/register",
		map[string]any{"nickname": "Aoi", "birthYear": 1999, "birthMonth": 1, "birthDay": 1}, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("conflict: %d %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["warning"] != true {
		t.Fatalf("conflict body: %v", body)
	}

	// Missing fields fail binding.
	w = doJSON(t, r, http.MethodPost, "/auth/register", map[string]any{"nickname": "Ren"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: %d", w.Code)
	}
}

func TestRegisterMigratesGuestBuffer(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})

	for _, msg := range []string{"first question", "final question"} {
		w := doJSON(t, r, http.MethodPost, "/guest/message", map[string]any{
			"sessionId": "guest-77", "character": "kaede", "content": msg,
		}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("guest message: %d %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, r, http.MethodPost, "/auth/register", map[string]any{
		"nickname": "Aoi", "birthYear": 2000, "birthMonth": 5, "birthDay": 10,
		"sessionId": "guest-77", "character": "kaede",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", w.Code, w.Body.String())
	}
	welcome, _ := decode(t, w)["welcomeMessage"].(string)
	if !strings.Contains(welcome, "final question") {
		t.Fatalf("welcome should quote the last guest message: %q", welcome)
	}

	// The buffer is consumed.
	w = doJSON(t, r, http.MethodGet, "/guest/state?sessionId=guest-77&character=kaede", nil, nil)
	if body := decode(t, w); body["phase"] != string(guest.PhaseFresh) {
		t.Fatalf("guest state after migration: %v", body)
	}
}

func TestCreateGuestDedupe(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})

	payload := map[string]any{
		"nickname": "Aoi", "birthYear": 2000, "birthMonth": 5, "birthDay": 10,
		"sessionId": "sess-dup",
	}
	w := doJSON(t, r, http.MethodPost, "/auth/create-guest", payload, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/auth/create-guest", payload, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("retry: %d %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["sessionId"] != "sess-dup" {
		t.Fatalf("retry body: %v", body)
	}
}

func TestConversationRoundTripAndETag(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})
	sid := createGuestSession(t, r, "Aoi")

	w := doJSON(t, r, http.MethodPost, "/conversation", map[string]any{
		"sessionId": sid, "character": "kaede", "role": "user", "content": "hello",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("append: %d %s", w.Code, w.Body.String())
	}

	// Guest-flagged turns are acknowledged but never persisted: success with
	// no messageId, and the stored log stays untouched.
	w = doJSON(t, r, http.MethodPost, "/conversation", map[string]any{
		"sessionId": sid, "character": "kaede", "role": "user", "content": "x", "isGuestMessage": true,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("guest-flagged append: %d %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["success"] != true || body["messageId"] != nil {
		t.Fatalf("guest-flagged envelope: %v", body)
	}

	w = doJSON(t, r, http.MethodGet, "/conversation?sessionId="+sid+"&character=kaede", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("read: %d %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["hasHistory"] != true {
		t.Fatalf("hasHistory: %v", body)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages: %v", body)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag header")
	}
	w = doJSON(t, r, http.MethodGet, "/conversation?sessionId="+sid+"&character=kaede", nil,
		map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional read: %d", w.Code)
	}

	// Unknown session reads 404.
	w = doJSON(t, r, http.MethodGet, "/conversation?sessionId=nope&character=kaede", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", w.Code)
	}
}

func TestConversationIdempotencyReplay(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})
	sid := createGuestSession(t, r, "Aoi")

	headers := map[string]string{
		"Idempotency-Key": "retry-abc-1",
		"X-Session-ID":    sid,
		"X-Character-ID":  "kaede",
	}
	payload := map[string]any{
		"sessionId": sid, "character": "kaede", "role": "user", "content": "hello",
	}

	w := doJSON(t, r, http.MethodPost, "/conversation", payload, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("first append: %d %s", w.Code, w.Body.String())
	}
	first := decode(t, w)
	if first["replayed"] == true {
		t.Fatalf("first request flagged as replay: %v", first)
	}
	firstID, _ := first["messageId"].(float64)
	if firstID == 0 {
		t.Fatalf("no messageId in %v", first)
	}

	// Same key, same tuple: served from the stored record, nothing re-appended.
	w = doJSON(t, r, http.MethodPost, "/conversation", payload, headers)
	if w.Code != http.StatusOK {
		t.Fatalf("retry append: %d %s", w.Code, w.Body.String())
	}
	second := decode(t, w)
	if second["replayed"] != true {
		t.Fatalf("expected replay envelope, got %v", second)
	}
	if id, _ := second["messageId"].(float64); id != firstID {
		t.Fatalf("replay messageId %v != %v", id, firstID)
	}

	w = doJSON(t, r, http.MethodGet, "/conversation?sessionId="+sid+"&character=kaede", nil, nil)
	if msgs, _ := decode(t, w)["messages"].([]any); len(msgs) != 1 {
		t.Fatalf("retry persisted a duplicate turn: %d messages", len(msgs))
	}

	// Malformed keys are rejected before the handler runs.
	w = doJSON(t, r, http.MethodPost, "/conversation", payload,
		map[string]string{"Idempotency-Key": "bad key with spaces"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed key: %d %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["code"] != "bad_idempotency_key" {
		t.Fatalf("malformed key envelope: %v", body)
	}
}

func TestChatEndpoint(t *testing.T) {
	stub := &stubCompleter{reply: "the cards say yes"}
	r, _ := newTestServer(t, stub)
	sid := createGuestSession(t, r, "Aoi")

	w := doJSON(t, r, http.MethodPost, "/chat", map[string]any{
		"sessionId": sid, "character": "kaede", "message": "will it rain?",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	reply, _ := body["reply"].(map[string]any)
	if reply["content"] != "the cards say yes" || reply["role"] != "assistant" {
		t.Fatalf("chat body: %v", body)
	}

	w = doJSON(t, r, http.MethodPost, "/chat", map[string]any{
		"sessionId": "nope", "character": "kaede", "message": "hi",
	}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown session: %d", w.Code)
	}

	// Provider failure surfaces as a gateway error.
	stub.err = errors.New("upstream down")
	w = doJSON(t, r, http.MethodPost, "/chat", map[string]any{
		"sessionId": sid, "character": "kaede", "message": "still there?",
	}, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("provider failure: %d %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["code"] != "answer_failed" {
		t.Fatalf("failure envelope: %v", body)
	}
}

func TestGuestMessageFlow(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})

	var body map[string]any
	for i := 1; i <= 3; i++ {
		w := doJSON(t, r, http.MethodPost, "/guest/message", map[string]any{
			"sessionId": "g-1", "character": "sena", "content": fmt.Sprintf("q%d", i),
		}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("message %d: %d %s", i, w.Code, w.Body.String())
		}
		body = decode(t, w)
	}
	// MessageLimit is 3 in the test config.
	if body["limitReached"] != true || body["showPrompt"] != true {
		t.Fatalf("at the limit: %v", body)
	}
	if g, _ := body["guidance"].(string); g == "" {
		t.Fatalf("guidance missing: %v", body)
	}

	w := doJSON(t, r, http.MethodPost, "/guest/message", map[string]any{
		"sessionId": "g-1", "character": "sena", "content": "one more",
	}, nil)
	if body = decode(t, w); body["showPrompt"] == true {
		t.Fatalf("prompt must be shown once: %v", body)
	}

	w = doJSON(t, r, http.MethodGet, "/guest/state?sessionId=g-1&character=sena", nil, nil)
	if body = decode(t, w); body["phase"] != string(guest.PhaseLimitReached) {
		t.Fatalf("state: %v", body)
	}

	w = doJSON(t, r, http.MethodPost, "/guest/message", map[string]any{
		"sessionId": "g-1", "character": "nobody", "content": "hi",
	}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown persona: %d", w.Code)
	}
}

func TestListPersonas(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})

	w := doJSON(t, r, http.MethodGet, "/personas", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("personas: %d", w.Code)
	}
	list, _ := decode(t, w)["personas"].([]any)
	if len(list) != 4 {
		t.Fatalf("expected 4 personas: %v", list)
	}
	first, _ := list[0].(map[string]any)
	if first["id"] != "kaede" || first["guidance"] == "" {
		t.Fatalf("persona shape: %v", first)
	}
}

func TestLastConversations(t *testing.T) {
	r, db := newTestServer(t, &stubCompleter{reply: "ok"})
	sid := createGuestSession(t, r, "Aoi")

	w := doJSON(t, r, http.MethodPost, "/conversation", map[string]any{
		"sessionId": sid, "character": "towa", "role": "user", "content": "hello",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("append: %d %s", w.Code, w.Body.String())
	}

	u, err := repo.FindUserBySessionID(context.Background(), db, sid)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	raw, err := token.NewCodec("test-secret", time.Hour).Issue(u.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	w = doJSON(t, r, http.MethodGet, "/last-conversations?userToken="+raw, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("last conversations: %d %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["nickname"] != "Aoi" {
		t.Fatalf("nickname: %v", body)
	}
	last, _ := body["lastConversations"].(map[string]any)
	if last["towa"] == nil || last["kaede"] != nil {
		t.Fatalf("activity map: %v", last)
	}

	w = doJSON(t, r, http.MethodGet, "/last-conversations?userToken=garbage", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/last-conversations", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: %d", w.Code)
	}
}

func TestLoginSetsCookie(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})

	w := doJSON(t, r, http.MethodPost, "/auth/register", map[string]any{
		"nickname": "Aoi", "birthYear": 2000, "birthMonth": 5, "birthDay": 10,
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/login", map[string]any{
		"nickname": "Aoi", "birthYear": 2000, "birthMonth": 5, "birthDay": 10,
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var cookie string
	for _, c := range w.Result().Cookies() {
		if c.Name == "fortune_token" {
			cookie = c.Value
		}
	}
	if cookie == "" {
		t.Fatalf("login must set the token cookie")
	}
	if uid, err := token.NewCodec("test-secret", time.Hour).Verify(cookie); err != nil || uid == 0 {
		t.Fatalf("cookie token: uid=%d err=%v", uid, err)
	}

	w = doJSON(t, r, http.MethodPost, "/auth/login", map[string]any{
		"nickname": "Aoi", "birthYear": 2000, "birthMonth": 5, "birthDay": 11,
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong birth date: %d", w.Code)
	}
}

func TestAdminFlow(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})
	sid := createGuestSession(t, r, "Aoi")
	auth := map[string]string{"Authorization": "Bearer " + testAdminToken}

	// Seed a few conversation rows.
	for _, ch := range []string{"kaede", "kaede", "sena"} {
		w := doJSON(t, r, http.MethodPost, "/conversation", map[string]any{
			"sessionId": sid, "character": ch, "role": "user", "content": "msg",
		}, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("seed append: %d", w.Code)
		}
	}

	// Gate: missing and wrong bearer are refused.
	if w := doJSON(t, r, http.MethodGet, "/admin/users", nil, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("no bearer: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/admin/users", nil, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong bearer: %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/admin/users", nil, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("list users: %d %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	users, _ := body["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("users: %v", body)
	}
	userID := int(users[0].(map[string]any)["id"].(float64))

	w = doJSON(t, r, http.MethodGet, "/admin/stats", nil, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
	if body = decode(t, w); body["users"].(float64) != 1 {
		t.Fatalf("stats body: %v", body)
	}

	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/admin/users/%d", userID),
		map[string]any{"nickname": "Renamed"}, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("update user: %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet,
		fmt.Sprintf("/admin/conversations?userId=%d&character=kaede", userID), nil, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("list conversations: %d %s", w.Code, w.Body.String())
	}
	if msgs, _ := decode(t, w)["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("conversations: %v", msgs)
	}

	w = doJSON(t, r, http.MethodDelete,
		fmt.Sprintf("/admin/conversations?userId=%d&character=kaede", userID), nil, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("delete pair: %d %s", w.Code, w.Body.String())
	}
	if body = decode(t, w); body["deleted"].(float64) != 2 {
		t.Fatalf("delete pair body: %v", body)
	}

	// Deleting the user removes the remaining rows too.
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/admin/users/%d", userID), nil, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("delete user: %d %s", w.Code, w.Body.String())
	}
	if body = decode(t, w); body["deletedConversations"].(float64) != 1 {
		t.Fatalf("cascade count: %v", body)
	}
	if w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/admin/users/%d", userID), nil, auth); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", w.Code)
	}
}

func TestAdminIPAllowList(t *testing.T) {
	r, _ := newTestServer(t, &stubCompleter{reply: "ok"})
	auth := map[string]string{"Authorization": "Bearer " + testAdminToken}

	// Empty list: the gate checks the bearer only.
	w := doJSON(t, r, http.MethodGet, "/admin/ips", nil, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("list ips: %d %s", w.Code, w.Body.String())
	}

	// Allow the test client (httptest requests come from 192.0.2.1), which
	// activates enforcement without locking ourselves out.
	w = doJSON(t, r, http.MethodPost, "/admin/ips", map[string]any{"ipAddress": "192.0.2.1"}, auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create ip: %d %s", w.Code, w.Body.String())
	}
	selfID := int(decode(t, w)["id"].(float64))

	if w = doJSON(t, r, http.MethodGet, "/admin/users", nil, auth); w.Code != http.StatusOK {
		t.Fatalf("listed client: %d %s", w.Code, w.Body.String())
	}

	// Duplicate addresses are rejected.
	w = doJSON(t, r, http.MethodPost, "/admin/ips", map[string]any{"ipAddress": "192.0.2.1"}, auth)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate ip: %d %s", w.Code, w.Body.String())
	}

	// Add a second entry and deactivate ours: the list stays enforced and we
	// are locked out.
	w = doJSON(t, r, http.MethodPost, "/admin/ips", map[string]any{"ipAddress": "203.0.113.7"}, auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("second ip: %d %s", w.Code, w.Body.String())
	}
	otherID := int(decode(t, w)["id"].(float64))

	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/admin/ips/%d", selfID),
		map[string]any{"isActive": false}, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate self: %d %s", w.Code, w.Body.String())
	}
	if w = doJSON(t, r, http.MethodGet, "/admin/users", nil, auth); w.Code != http.StatusForbidden {
		t.Fatalf("deactivated client: %d %s", w.Code, w.Body.String())
	}

	// Reactivate, then remove the other entry.
	w = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/admin/ips/%d", selfID),
		map[string]any{"isActive": true}, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("reactivate self: %d %s", w.Code, w.Body.String())
	}
	if w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/admin/ips/%d", otherID), nil, auth); w.Code != http.StatusNoContent {
		t.Fatalf("delete other: %d %s", w.Code, w.Body.String())
	}
	if w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/admin/ips/%d", otherID), nil, auth); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: %d", w.Code)
	}
}
