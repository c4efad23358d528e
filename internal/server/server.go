// Package server exposes the consistency core over HTTP: opportunity
// creation, config resolution, and the retry policy consulted by queue
// workers.
package server

import (
	"errors"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/adverge/pipeline/errs"
	"github.com/adverge/pipeline/internal/configres"
	"github.com/adverge/pipeline/internal/ingress"
	"github.com/adverge/pipeline/internal/retry"
	"github.com/adverge/pipeline/internal/schema"
)

const (
	maxJSONBodyBytes int64 = 1 << 20 // 1 MiB

	opportunitiesPath = "/v1/opportunities"
	configResolvePath = "/v1/config/resolve"
	retryPolicyPath   = "/v1/retry/policy"
	healthPath        = "/healthz"
)

type handlerFunc func(http.ResponseWriter, *http.Request)

type httpServer struct {
	ingress *ingress.Component
	policy  retry.Policy
}

// NewHandler wires the HTTP routes over the ingress component and the
// effective retry policy.
func NewHandler(ing *ingress.Component, policy retry.Policy) http.Handler {
	server := &httpServer{ingress: ing, policy: policy}
	mux := http.NewServeMux()

	mux.Handle(opportunitiesPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.createOpportunity,
	}))
	mux.Handle(configResolvePath, server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.resolveConfig,
	}))
	mux.Handle(retryPolicyPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getRetryPolicy,
	}))
	mux.HandleFunc(healthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}

func (s *httpServer) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *httpServer) createOpportunity(w http.ResponseWriter, r *http.Request) {
	var input ingress.Input
	if !decodeBody(w, r, &input) {
		return
	}

	result, err := s.ingress.CreateOpportunity(r.Context(), input)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}

	switch {
	case !result.CreateAccepted:
		writeJSON(w, http.StatusUnprocessableEntity, result)
	case result.CreateAction == schema.ActionDuplicateNoop:
		writeJSON(w, http.StatusOK, result)
	default:
		writeJSON(w, http.StatusCreated, result)
	}
}

type resolveRequest struct {
	Context   configres.Context   `json:"context"`
	Global    *schema.ConfigScope `json:"global"`
	App       *schema.ConfigScope `json:"app"`
	Placement *schema.ConfigScope `json:"placement"`
}

func (s *httpServer) resolveConfig(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snapshot := configres.Resolve(req.Global, req.App, req.Placement, req.Context)
	writeJSON(w, http.StatusOK, snapshot)
}

type retryPolicyResponse struct {
	MaxRetries      int     `json:"maxRetries"`
	BackoffMs       []int64 `json:"backoffMs"`
	DeadLetterTopic string  `json:"deadLetterTopic"`
}

func (s *httpServer) getRetryPolicy(w http.ResponseWriter, _ *http.Request) {
	backoff := make([]int64, 0, len(s.policy.Backoff))
	for _, delay := range s.policy.Backoff {
		backoff = append(backoff, delay.Milliseconds())
	}
	writeJSON(w, http.StatusOK, retryPolicyResponse{
		MaxRetries:      s.policy.MaxRetries,
		BackoffMs:       backoff,
		DeadLetterTopic: s.policy.DeadLetterTopic,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func statusForError(err error) int {
	var envelope *errs.E
	if !errors.As(err, &envelope) {
		return http.StatusInternalServerError
	}
	switch envelope.Code {
	case errs.CodeInvalid:
		return http.StatusBadRequest
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeConflict:
		return http.StatusConflict
	case errs.CodeStore, errs.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}
