package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/StreakBot/internal/dispatch"
	"github.com/BTreeMap/StreakBot/internal/models"
	"github.com/BTreeMap/StreakBot/internal/store"
)

type recordingSender struct {
	mu    sync.Mutex
	sends []models.Intent
}

func (r *recordingSender) Send(ctx context.Context, chatID int64, intent models.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, intent)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore, *recordingSender) {
	t.Helper()
	st := store.NewInMemoryStore()
	snd := &recordingSender{}
	d := dispatch.New(st, snd, nil)
	return NewServer(st, d, 0), st, snd
}

func TestWebhookGetReportsActive(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/webhook", nil)
	rec := httptest.NewRecorder()
	srv.webhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "Active" {
		t.Errorf("expected Active, got %q", body)
	}
}

func TestWebhookPostProcessesUpdate(t *testing.T) {
	srv, st, snd := newTestServer(t)
	update := `{"update_id":99,"message":{"message_id":1,"from":{"id":100,"first_name":"Alice"},"chat":{"id":42},"text":"/start"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(update))
	rec := httptest.NewRecorder()
	srv.webhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "OK" {
		t.Errorf("expected OK, got %q", body)
	}
	a, err := st.GetActor(context.Background(), "100")
	if err != nil || a == nil {
		t.Fatalf("expected actor created via webhook, got %v, %v", a, err)
	}
	if snd.count() == 0 {
		t.Error("expected a welcome to be sent")
	}
}

func TestWebhookPostMalformedStillAcknowledged(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.webhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for malformed body, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "OK" {
		t.Errorf("expected OK, got %q", body)
	}
}

func TestWebhookPostUnroutableAcknowledged(t *testing.T) {
	srv, _, snd := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":5}`))
	rec := httptest.NewRecorder()
	srv.webhookHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if snd.count() != 0 {
		t.Error("expected no delivery for unroutable update")
	}
}

func TestWebhookPostDuplicateDropped(t *testing.T) {
	srv, _, snd := newTestServer(t)
	update := `{"update_id":99,"message":{"message_id":1,"from":{"id":100,"first_name":"Alice"},"chat":{"id":42},"text":"/start"}}`

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(update))
		rec := httptest.NewRecorder()
		srv.webhookHandler(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if got := snd.count(); got != 1 {
		t.Errorf("expected redelivered update to be processed once, got %d sends", got)
	}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHealthHandler(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.healthHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != models.StatusOK {
		t.Errorf("expected ok status, got %+v", resp)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
}

func TestHealthHandlerRejectsPost(t *testing.T) {
	srv, _, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rec := httptest.NewRecorder()
	srv.healthHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestChannelsHandler(t *testing.T) {
	srv, st, _ := newTestServer(t)
	if err := st.AddChannel(context.Background(), models.Channel{Name: "Updates", Link: "https://example.test/updates"}); err != nil {
		t.Fatalf("AddChannel failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/channels", nil)
	rec := httptest.NewRecorder()
	srv.channelsHandler(rec, req)

	resp := decodeResponse(t, rec)
	if resp.Status != models.StatusOK {
		t.Fatalf("expected ok, got %+v", resp)
	}
	channels, ok := resp.Result.([]any)
	if !ok || len(channels) != 1 {
		t.Errorf("expected one channel in result, got %+v", resp.Result)
	}
}

func TestRepliesHandler(t *testing.T) {
	srv, st, _ := newTestServer(t)
	if err := st.AddCustomReply(context.Background(), models.CustomReply{Label: "FAQ", Type: models.ReplyTypeText, Content: "answers"}); err != nil {
		t.Fatalf("AddCustomReply failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/replies", nil)
	rec := httptest.NewRecorder()
	srv.repliesHandler(rec, req)

	resp := decodeResponse(t, rec)
	if resp.Status != models.StatusOK {
		t.Fatalf("expected ok, got %+v", resp)
	}
	replies, ok := resp.Result.([]any)
	if !ok || len(replies) != 1 {
		t.Errorf("expected one reply in result, got %+v", resp.Result)
	}
}

func TestStatsHandler(t *testing.T) {
	srv, st, _ := newTestServer(t)
	ctx := context.Background()
	if _, err := st.UpsertActor(ctx, "100", "Alice"); err != nil {
		t.Fatalf("UpsertActor failed: %v", err)
	}
	if err := st.AddMotivation(ctx, "go"); err != nil {
		t.Fatalf("AddMotivation failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.statsHandler(rec, req)

	resp := decodeResponse(t, rec)
	if resp.Status != models.StatusOK {
		t.Fatalf("expected ok, got %+v", resp)
	}
	stats, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("expected stats object, got %+v", resp.Result)
	}
	if stats["actors"] != float64(1) || stats["motivations"] != float64(1) {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestRoutesServeWebhook(t *testing.T) {
	srv, _, _ := newTestServer(t)
	mux := http.NewServeMux()
	srv.Routes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/webhook")
	if err != nil {
		t.Fatalf("GET /webhook failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	if string(body) != "Active" {
		t.Errorf("expected Active, got %q", body)
	}
}
