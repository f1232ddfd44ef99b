package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/contractiq/backend/internal/query"
	"github.com/contractiq/backend/internal/tenant"
)

type AskHandler struct {
	engine  *query.Engine
	timeout time.Duration
}

func NewAskHandler(engine *query.Engine, timeout time.Duration) *AskHandler {
	return &AskHandler{engine: engine, timeout: timeout}
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	result, err := h.engine.Ask(r.Context(), tenant.IDFromContext(r.Context()), req.Question, query.Options{
		TopK:    req.TopK,
		Timeout: h.timeout,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
