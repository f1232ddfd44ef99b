package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contractiq/backend/internal/auth"
	"github.com/contractiq/backend/internal/contracts"
	"github.com/contractiq/backend/internal/embedding"
	"github.com/contractiq/backend/internal/ingest"
	"github.com/contractiq/backend/internal/models"
	"github.com/contractiq/backend/internal/query"
	"github.com/contractiq/backend/internal/storage"
	"github.com/contractiq/backend/internal/store"
	"github.com/contractiq/backend/internal/vectorindex"
)

const testDim = 4

// stubEmbedder hashes words into a tiny vector space so different texts get
// different but deterministic embeddings.
type stubEmbedder struct{}

func (stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, testDim)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := 0
			for _, r := range w {
				h = h*31 + int(r)
			}
			v[((h%testDim)+testDim)%testDim]++
		}
		out[i] = v
	}
	return out, nil
}

func (stubEmbedder) Dim() int { return testDim }

type testApp struct {
	handler  http.Handler
	pipeline *ingest.Pipeline
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mem := store.NewMemory(testDim, nil)
	idx := vectorindex.NewBruteForce(testDim)
	files, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)

	svc := contracts.NewService(mem, mem, idx, files, nil, nil)
	authSvc := auth.NewService(mem, "test-secret", time.Hour, nil)
	var emb embedding.Embedder = stubEmbedder{}
	engine := query.NewEngine(emb, idx, mem, mem)

	handler := NewRouter(Deps{
		Tenants:     mem,
		AuthService: authSvc,
		Contracts:   svc,
		Engine:      engine,
		AskTimeout:  time.Second,
	})

	return &testApp{
		handler:  handler,
		pipeline: ingest.NewPipeline(svc, files, emb),
	}
}

func (a *testApp) do(t *testing.T, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	return a.do(t, method, path, token, &buf, "application/json")
}

func (a *testApp) signup(t *testing.T, email string) string {
	t.Helper()
	rec := a.doJSON(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"name": "Acme", "email": email, "password": "longenough",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.Token)
	return sess.Token
}

func (a *testApp) uploadTxt(t *testing.T, token, filename, content string) *models.Document {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := a.do(t, http.MethodPost, "/api/v1/contracts", token, &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc models.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	return &doc
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/readyz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "disabled")
}

func TestAuthRequired(t *testing.T) {
	app := newTestApp(t)

	rec := app.do(t, http.MethodGet, "/api/v1/contracts", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/contracts", "garbage-token", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignupLoginFlow(t *testing.T) {
	app := newTestApp(t)
	app.signup(t, "ops@acme.test")

	rec := app.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ops@acme.test", "password": "longenough",
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "ops@acme.test", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestContractLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "ops@acme.test")

	doc := app.uploadTxt(t, token, "msa.txt", "Either party may terminate with notice.\n\nCustomer shall indemnify Provider.")
	docID := doc.ID.String()

	rec := app.do(t, http.MethodGet, "/api/v1/contracts", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "msa.txt")
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = app.do(t, http.MethodGet, "/api/v1/contracts/"+docID, token, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodDelete, "/api/v1/contracts/"+docID, token, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(t, http.MethodGet, "/api/v1/contracts/"+docID, token, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsUnsupportedFileTypeOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "ops@acme.test")

	// A binary that declares its own MIME type.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="malware.exe"`)
	hdr.Set("Content-Type", "application/x-msdownload")
	fw, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = fw.Write([]byte("MZ\x90\x00"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := app.do(t, http.MethodPost, "/api/v1/contracts", token, &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "unsupported file type")

	// Same when the type has to be derived from the extension.
	buf.Reset()
	mw = multipart.NewWriter(&buf)
	fw, err = mw.CreateFormFile("file", "notes.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("a,b,c"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec = app.do(t, http.MethodPost, "/api/v1/contracts", token, &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodGet, "/api/v1/contracts", token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
}

func TestAskOverHTTP(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "ops@acme.test")

	rec := app.doJSON(t, http.MethodPost, "/api/v1/ask", token, map[string]any{
		"question": "termination terms?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result query.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, query.StateDone, result.State)
	assert.Empty(t, result.Evidence)

	// Empty question is a validation failure.
	rec = app.doJSON(t, http.MethodPost, "/api/v1/ask", token, map[string]any{"question": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForeignContractReadsAsNotFound(t *testing.T) {
	app := newTestApp(t)
	owner := app.signup(t, "owner@acme.test")
	rival := app.signup(t, "rival@other.test")

	docID := app.uploadTxt(t, owner, "secret.txt", "confidential terms").ID.String()

	rec := app.do(t, http.MethodGet, "/api/v1/contracts/"+docID, rival, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.do(t, http.MethodDelete, "/api/v1/contracts/"+docID, rival, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Owner still sees it.
	rec = app.do(t, http.MethodGet, "/api/v1/contracts/"+docID, owner, nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestUploadIngestAskEndToEnd drives the full path a contract takes: upload
// over HTTP, the worker pipeline run inline, then evidence retrieval.
func TestUploadIngestAskEndToEnd(t *testing.T) {
	app := newTestApp(t)
	token := app.signup(t, "ops@acme.test")

	doc := app.uploadTxt(t, token, "msa.txt",
		"Either party may terminate this agreement with thirty days notice.\n\n"+
			"Customer shall indemnify and hold harmless the Provider.")

	require.NoError(t, app.pipeline.Process(context.Background(), doc.TenantID, doc.ID))

	// The indemnification clause pushes the heuristic to High.
	rec := app.do(t, http.MethodGet, "/api/v1/contracts/"+doc.ID.String(), token, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail contracts.Detail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, models.RiskHigh, detail.Document.RiskScore)
	assert.NotEmpty(t, detail.Chunks)

	rec = app.doJSON(t, http.MethodPost, "/api/v1/ask", token, map[string]any{
		"question": "terminate agreement notice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result query.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, query.StateDone, result.State)
	require.NotEmpty(t, result.Evidence)
	assert.Equal(t, "msa.txt", result.Evidence[0].ContractName)
	assert.Contains(t, result.Evidence[0].Excerpt, "terminate")
	assert.Greater(t, result.Evidence[0].Relevance, 0)
}
