package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/adverge/pipeline/internal/configres"
	"github.com/adverge/pipeline/internal/identity"
	"github.com/adverge/pipeline/internal/ingress"
	"github.com/adverge/pipeline/internal/retry"
	"github.com/adverge/pipeline/internal/schema"
	"github.com/adverge/pipeline/internal/store"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	component, err := ingress.New(store.NewMemoryStore(), identity.NewSequential())
	if err != nil {
		t.Fatalf("ingress component: %v", err)
	}
	return NewHandler(component, retry.DefaultPolicy(retry.Overrides{}))
}

func orderedTimestamps() schema.Timestamps {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return schema.Timestamps{
		RequestAt:            base,
		TriggerAt:            base.Add(10 * time.Millisecond),
		OpportunityCreatedAt: base.Add(20 * time.Millisecond),
	}
}

func postJSON(t *testing.T, handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateOpportunityReturnsCreated(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/opportunities", ingress.Input{
		OpportunityKey: "opp_http_1",
		Timestamps:     orderedTimestamps(),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result ingress.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.CreateAction != schema.ActionCreated {
		t.Fatalf("expected created action, got %q", result.CreateAction)
	}
	if result.TraceInit.TraceKey == "" {
		t.Fatalf("expected minted trace key")
	}
}

func TestCreateOpportunityDuplicateAnswersOK(t *testing.T) {
	handler := newTestHandler(t)
	input := ingress.Input{OpportunityKey: "opp_http_dup", Timestamps: orderedTimestamps()}

	first := postJSON(t, handler, "/v1/opportunities", input)
	if first.Code != http.StatusCreated {
		t.Fatalf("first call: expected 201, got %d", first.Code)
	}
	var created ingress.Result
	if err := json.Unmarshal(first.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode first result: %v", err)
	}

	second := postJSON(t, handler, "/v1/opportunities", input)
	if second.Code != http.StatusOK {
		t.Fatalf("second call: expected 200, got %d", second.Code)
	}
	var dup ingress.Result
	if err := json.Unmarshal(second.Body.Bytes(), &dup); err != nil {
		t.Fatalf("decode second result: %v", err)
	}
	if dup.CreateAction != schema.ActionDuplicateNoop {
		t.Fatalf("expected duplicate_noop, got %q", dup.CreateAction)
	}
	if dup.TraceInit != created.TraceInit {
		t.Fatalf("duplicate changed lineage: %+v vs %+v", dup.TraceInit, created.TraceInit)
	}
}

func TestCreateOpportunityRejectsDisorderedTimestamps(t *testing.T) {
	handler := newTestHandler(t)
	ts := orderedTimestamps()
	ts.TriggerAt = ts.RequestAt.Add(-time.Second)

	rec := postJSON(t, handler, "/v1/opportunities", ingress.Input{Timestamps: ts})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var result ingress.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Reason != schema.ReasonTimestampOrderInvalid {
		t.Fatalf("expected timestamp reason, got %q", result.Reason)
	}
}

func TestCreateOpportunityRejectsMalformedBody(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/opportunities", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestResolveConfigFailsClosedWithoutGlobal(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/config/resolve", resolveRequest{
		Context: configres.Context{ResolveAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		App:     &schema.ConfigScope{ConfigVersion: "app-1", Config: map[string]any{"route": "premium"}},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snapshot schema.ConfigSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.ResolutionStatus != schema.StatusRejected {
		t.Fatalf("expected REJECTED, got %q", snapshot.ResolutionStatus)
	}
}

func TestResolveConfigMergesScopes(t *testing.T) {
	handler := newTestHandler(t)

	rec := postJSON(t, handler, "/v1/config/resolve", resolveRequest{
		Global: &schema.ConfigScope{
			ConfigVersion: "g-1",
			Config:        map[string]any{"route": "default", "ttlSec": float64(60)},
		},
		Placement: &schema.ConfigScope{
			ConfigVersion: "p-1",
			Config:        map[string]any{"route": "premium"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snapshot schema.ConfigSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.ResolutionStatus != schema.StatusResolved {
		t.Fatalf("expected RESOLVED, got %q", snapshot.ResolutionStatus)
	}
	if snapshot.EffectiveConfig["route"] != "premium" {
		t.Fatalf("expected placement override, got %v", snapshot.EffectiveConfig["route"])
	}
}

func TestGetRetryPolicy(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/retry/policy", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var policy retryPolicyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &policy); err != nil {
		t.Fatalf("decode policy: %v", err)
	}
	if policy.MaxRetries != 5 {
		t.Fatalf("expected 5 max retries, got %d", policy.MaxRetries)
	}
	if len(policy.BackoffMs) != 5 || policy.BackoffMs[0] != 1000 {
		t.Fatalf("unexpected ladder %v", policy.BackoffMs)
	}
	if policy.DeadLetterTopic != retry.TopicDeadLetter {
		t.Fatalf("unexpected dead-letter topic %q", policy.DeadLetterTopic)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodDelete, "/v1/opportunities", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
