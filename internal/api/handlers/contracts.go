package handlers

import (
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contractiq/backend/internal/contracts"
	"github.com/contractiq/backend/internal/store"
	"github.com/contractiq/backend/internal/tenant"
)

type ContractHandler struct {
	svc *contracts.Service
}

func NewContractHandler(svc *contracts.Service) *ContractHandler {
	return &ContractHandler{svc: svc}
}

func (h *ContractHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil { // 32MB max
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file required"})
		return
	}
	defer file.Close()

	var expiry *time.Time
	if v := r.FormValue("expiry_date"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "expiry_date must be YYYY-MM-DD"})
			return
		}
		expiry = &t
	}

	fileType := header.Header.Get("Content-Type")
	if fileType == "" || fileType == "application/octet-stream" {
		fileType = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	}

	doc, err := h.svc.Upload(r.Context(), tenant.IDFromContext(r.Context()), contracts.UploadRequest{
		Filename:   header.Filename,
		FileType:   fileType,
		ExpiryDate: expiry,
		Data:       file,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docs, err := h.svc.List(r.Context(), tenant.IDFromContext(r.Context()), store.DocumentFilter{
		Status:    q.Get("status"),
		RiskScore: q.Get("risk"),
		Filename:  q.Get("search"),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contracts": docs, "count": len(docs)})
}

func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid contract ID"})
		return
	}

	detail, err := h.svc.GetDetail(r.Context(), tenant.IDFromContext(r.Context()), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ContractHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid contract ID"})
		return
	}

	if err := h.svc.Delete(r.Context(), tenant.IDFromContext(r.Context()), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
