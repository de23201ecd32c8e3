package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/bomtool/internal/bom"
	"github.com/JonMunkholm/bomtool/internal/config"
	"github.com/JonMunkholm/bomtool/internal/core"
	"github.com/JonMunkholm/bomtool/internal/source"
	"github.com/JonMunkholm/bomtool/internal/store"
)

const testCSV = "Ref,Part Number,Maker\nR1-R3,MCR03EZPFX,\nC1,GRM188,\n"

type memoryRuns struct {
	mu   sync.Mutex
	runs []*store.Run
}

func (m *memoryRuns) SaveRun(_ context.Context, run *store.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = uuid.New()
	run.CreatedAt = time.Now()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRuns) ListRuns(_ context.Context, limit int) ([]store.RunSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.RunSummary{}
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.runs[i]
		out = append(out, store.RunSummary{ID: r.ID, FileName: r.FileName, Format: r.Format, EntryCount: len(r.Combined), CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (m *memoryRuns) GetRun(_ context.Context, id uuid.UUID) (*store.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, store.ErrRunNotFound
}

func (m *memoryRuns) DeleteRunsBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Upload:   config.UploadConfig{MaxFileSize: 1 << 20},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, runs core.RunStore) *Server {
	t.Helper()
	svc := core.NewService(core.Config{MaxConcurrent: 2, MaxWait: time.Second}, runs)
	s := NewServer(svc, cfg)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

// uploadRequest builds a multipart POST with a file and optional sheets fields.
func uploadRequest(t *testing.T, path, fileName string, data []byte, sheets ...string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	for _, s := range sheets {
		require.NoError(t, mw.WriteField("sheets", s))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func workbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Main"))
	_, err := f.NewSheet("Notes")
	require.NoError(t, err)

	rows := map[string][][]any{
		"Main":  {{"Ref", "Part", "Mfg"}, {"R1, R2", "MCR03", ""}},
		"Notes": {{"revision", "2"}},
	}
	for sheet, data := range rows {
		for i, row := range data {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sheet, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealthAndIndex(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","history":false}`, rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BOM Extractor")
	assert.Contains(t, rec.Body.String(), ".xlsx")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestProcess_CSV(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	rec := serve(s, uploadRequest(t, "/api/process", "bom.csv", []byte(testCSV)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.RunID)
	assert.Empty(t, resp.Individual)
	require.Len(t, resp.Combined, 2)
	assert.Equal(t, bom.Entry{Display: "R1, R2, R3", Part: "MCR03EZPFX", Manufacturer: "Rohm"}, resp.Combined[0])

	assert.Contains(t, rec.Body.String(), `"individual":{}`)
	assert.Contains(t, rec.Body.String(), `"ref":"R1, R2, R3"`)
}

func TestProcess_Errors(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	notMultipart := httptest.NewRequest(http.MethodPost, "/api/process", strings.NewReader("x"))

	tests := []struct {
		name     string
		req      *http.Request
		wantCode int
		wantErr  string
	}{
		{"no file", notMultipart, http.StatusBadRequest, "FILE004"},
		{"missing file field", uploadRequest(t, "/api/process", "", nil), http.StatusBadRequest, "FILE004"},
		{"unsupported extension", uploadRequest(t, "/api/process", "bom.doc", []byte("x")), http.StatusBadRequest, "FILE006"},
		{"empty file", uploadRequest(t, "/api/process", "bom.csv", nil), http.StatusBadRequest, "FILE005"},
		{"header not found", uploadRequest(t, "/api/process", "bom.csv", []byte("a,b\n1,2\n")), http.StatusUnprocessableEntity, "HDR001"},
		{"no valid rows", uploadRequest(t, "/api/process", "bom.csv", []byte("Ref,Part\n,\n")), http.StatusUnprocessableEntity, "HDR002"},
		{"workbook without sheets", uploadRequest(t, "/api/process", "board.xlsx", workbook(t)), http.StatusBadRequest, "FILE007"},
		{"bad sheet json", uploadRequest(t, "/api/process", "board.xlsx", workbook(t), "[Main"), http.StatusBadRequest, "FILE010"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, tt.req)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestProcess_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 16
	s := newTestServer(t, cfg, nil)

	rec := serve(s, uploadRequest(t, "/api/process", "bom.csv", []byte(testCSV)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestProcess_Workbook(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)
	data := workbook(t)

	for name, fields := range map[string][]string{
		"json array":     {`["Main","Notes"]`},
		"repeated field": {"Main", "Notes"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(s, uploadRequest(t, "/api/process", "board.xlsx", data, fields...))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp struct {
				Combined   []bom.Entry                `json:"combined"`
				Individual map[string]json.RawMessage `json:"individual"`
				Sheets     []string                   `json:"sheets"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

			assert.Equal(t, []string{"Main", "Notes"}, resp.Sheets)
			require.Len(t, resp.Combined, 1)
			assert.Equal(t, "R1, R2", resp.Combined[0].Display)
			assert.JSONEq(t, `[{"ref":"R1, R2","part":"MCR03","mfg":"Rohm"}]`, string(resp.Individual["Main"]))
			assert.Contains(t, string(resp.Individual["Notes"]), `"error":"header not found`)
		})
	}
}

func TestListSheets(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	rec := serve(s, uploadRequest(t, "/api/sheets", "board.xlsx", workbook(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"sheets":["Main","Notes"]}`, rec.Body.String())

	rec = serve(s, uploadRequest(t, "/api/sheets", "bom.csv", []byte(testCSV)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sheets":[]}`, rec.Body.String())

	req := uploadRequest(t, "/api/sheets", "board.xlsx", workbook(t))
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Notes"`)
}

func TestProcess_HTMX(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	req := uploadRequest(t, "/api/process", "bom.csv", []byte(testCSV))
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<td>R1, R2, R3</td>")

	req = uploadRequest(t, "/api/process", "bom.doc", []byte("x"))
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "FILE006")
}

func TestRuns_HistoryDisabled(t *testing.T) {
	s := newTestServer(t, testConfig(), nil)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RUN002", decodeError(t, rec).Code)
}

func TestRuns_StoreAndExport(t *testing.T) {
	runs := &memoryRuns{}
	s := newTestServer(t, testConfig(), runs)

	rec := serve(s, uploadRequest(t, "/api/process", "board.xlsx", workbook(t), `["Main","Notes"]`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var processed ProcessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &processed))
	require.NotEmpty(t, processed.RunID)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), processed.RunID)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+processed.RunID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var run store.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "board.xlsx", run.FileName)
	require.Len(t, run.Sheets, 2)
	assert.NotEmpty(t, run.Sheets[1].Error)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+processed.RunID+"/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="board_bom.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Contains(t, rec.Body.String(), `"R1, R2",MCR03,Rohm,2`)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/runs/"+processed.RunID+"/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	f, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Combined", "Main"}, f.GetSheetList())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Contains(t, rec.Body.String(), "Recent runs")
	assert.Contains(t, rec.Body.String(), processed.RunID)
}

func TestRuns_Errors(t *testing.T) {
	s := newTestServer(t, testConfig(), &memoryRuns{})

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantErr  string
	}{
		{"invalid id", "/api/runs/not-a-uuid", http.StatusBadRequest, "RUN001"},
		{"unknown id", "/api/runs/" + uuid.NewString(), http.StatusNotFound, "RUN001"},
		{"unknown export format", "/api/runs/" + uuid.NewString() + "/export?format=ods", http.StatusBadRequest, "RUN003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s := newTestServer(t, cfg, nil)

	rec := serve(s, uploadRequest(t, "/api/process", "bom.csv", []byte(testCSV)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := uploadRequest(t, "/api/process", "bom.csv", []byte(testCSV))
	req.Header.Set("X-API-Key", "secret")
	rec = serve(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health check must not need a key")
}

func TestUploadRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, UploadLimit: 1}
	s := newTestServer(t, cfg, nil)

	rec := serve(s, uploadRequest(t, "/api/process", "bom.csv", []byte(testCSV)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, uploadRequest(t, "/api/process", "bom.csv", []byte(testCSV)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "non-upload routes use the general limit")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no file", errNoFile, http.StatusBadRequest},
		{"body too large", fmt.Errorf("parse upload: %w", &http.MaxBytesError{Limit: 10}), http.StatusRequestEntityTooLarge},
		{"unsupported", fmt.Errorf("%w: .doc", source.ErrUnsupportedFormat), http.StatusBadRequest},
		{"corrupt workbook", errors.New("read xlsx: open workbook: zip: not a valid zip file"), http.StatusBadRequest},
		{"header", &bom.HeaderNotFoundError{Scanned: 3}, http.StatusUnprocessableEntity},
		{"no rows", core.ErrNoValidRows, http.StatusUnprocessableEntity},
		{"nothing extracted", source.ErrNoData, http.StatusUnprocessableEntity},
		{"busy", core.ErrTooManyUploads, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"invalid run id", errInvalidRunID, http.StatusBadRequest},
		{"run missing", store.ErrRunNotFound, http.StatusNotFound},
		{"history disabled", core.ErrHistoryDisabled, http.StatusNotFound},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "board_bom.xlsx", exportFileName("board.xlsx", "xlsx"))
	assert.Equal(t, "a_b_bom.csv", exportFileName(`a"b.csv`, "csv"))
	assert.Equal(t, "bom_bom.csv", exportFileName("", "csv"))
}
