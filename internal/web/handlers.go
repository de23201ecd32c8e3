package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/JonMunkholm/bomtool/internal/bom"
	"github.com/JonMunkholm/bomtool/internal/core"
	"github.com/JonMunkholm/bomtool/internal/export"
	"github.com/JonMunkholm/bomtool/internal/logging"
	"github.com/JonMunkholm/bomtool/internal/source"
	"github.com/JonMunkholm/bomtool/internal/store"
	"github.com/JonMunkholm/bomtool/internal/web/templates"
)

var (
	errNoFile        = errors.New("no file provided")
	errInvalidSheets = errors.New("invalid sheet selection")
	errInvalidRunID  = errors.New("invalid run id")
)

const maxRunListLimit = 500

// multipartOverhead is room for form fields and part headers on top of the
// file size limit.
const multipartOverhead = 1 << 20

// ProcessResponse is the JSON body of POST /api/process.
//
// Individual maps each worksheet to its entries, or to {"error": message}
// when the sheet failed. It is empty for single-table formats.
type ProcessResponse struct {
	RunID      string         `json:"run_id,omitempty"`
	FileName   string         `json:"file_name"`
	Combined   []bom.Entry    `json:"combined"`
	Individual map[string]any `json:"individual"`
	Sheets     []string       `json:"sheets,omitempty"`
}

type sheetError struct {
	Error string `json:"error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params := templates.IndexParams{
		Extensions:     source.Extensions(),
		MaxFileSize:    s.cfg.Upload.MaxFileSize,
		HistoryEnabled: s.service.HistoryEnabled(),
	}
	if params.HistoryEnabled {
		runs, err := s.service.ListRuns(ctx, 20)
		if err != nil {
			logging.FromContext(ctx).Warn("list runs for index", "error", err)
		}
		params.Runs = runs
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.Index(params).Render(ctx, w); err != nil {
		logging.FromContext(ctx).Error("render index", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"history": s.service.HistoryEnabled(),
	})
}

// handleStatus reports upload slot usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.Limiter().Status())
}

// readUpload reads the multipart "file" field within the size limit.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return "", nil, errNoFile
		}
		return "", nil, fmt.Errorf("parse upload: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	if header.Size > maxSize {
		return "", nil, fmt.Errorf("file too large: %d bytes", header.Size)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	return filepath.Base(header.Filename), buf.Bytes(), nil
}

// parseSheets reads the worksheet selection: either one JSON array in the
// "sheets" field or the field repeated once per sheet.
func parseSheets(r *http.Request) ([]string, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	values := r.MultipartForm.Value["sheets"]
	if len(values) == 1 && strings.HasPrefix(strings.TrimSpace(values[0]), "[") {
		var sheets []string
		if err := json.Unmarshal([]byte(values[0]), &sheets); err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidSheets, err)
		}
		return sheets, nil
	}
	return values, nil
}

func (s *Server) handleListSheets(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	sheets, err := s.service.ListSheets(r.Context(), fileName, data)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.SheetPicker(sheets).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render sheet picker", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"sheets": sheets})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	fileName, data, err := s.readUpload(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	sheets, err := parseSheets(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	out, err := s.service.Process(r.Context(), core.Upload{
		FileName: fileName,
		Data:     data,
		Sheets:   sheets,
	})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Result(resultParams(out)).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render result", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, processResponse(out))
}

func processResponse(out *core.Outcome) ProcessResponse {
	resp := ProcessResponse{
		FileName:   out.FileName,
		Combined:   out.Result.Combined,
		Individual: make(map[string]any),
	}
	if out.RunID != uuid.Nil {
		resp.RunID = out.RunID.String()
	}
	if !out.Workbook {
		return resp
	}

	for _, r := range out.Result.Individual {
		resp.Sheets = append(resp.Sheets, r.Name)
		if r.Err != nil {
			resp.Individual[r.Name] = sheetError{Error: r.Err.Error()}
			continue
		}
		resp.Individual[r.Name] = nonNil(r.Entries)
	}
	return resp
}

func resultParams(out *core.Outcome) templates.ResultParams {
	p := templates.ResultParams{
		FileName: out.FileName,
		Combined: out.Result.Combined,
	}
	if out.RunID != uuid.Nil {
		p.RunID = out.RunID.String()
	}
	if out.Workbook {
		for _, r := range out.Result.Individual {
			view := templates.SheetView{Name: r.Name, Entries: r.Entries}
			if r.Err != nil {
				view.Error = core.FormatUserError(r.Err)
			}
			p.Sheets = append(p.Sheets, view)
		}
	}
	return p
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxRunListLimit)
		}
	}

	runs, err := s.service.ListRuns(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.RunList(runs).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render run list", "error", err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"runs": runs})
}

// loadRun resolves the {runID} URL parameter.
func (s *Server) loadRun(r *http.Request) (*store.Run, error) {
	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		return nil, errInvalidRunID
	}
	return s.service.GetRun(r.Context(), id)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.loadRun(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// handleExportRun downloads a stored run. XLSX holds the combined BOM and one
// sheet per successful worksheet; CSV holds the combined BOM only.
func (s *Server) handleExportRun(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	run, err := s.loadRun(r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	sheets := []export.Sheet{{Name: "Combined", Entries: run.Combined}}
	if len(run.Sheets) > 1 {
		for _, sr := range run.Sheets {
			if sr.Error == "" {
				sheets = append(sheets, export.Sheet{Name: sr.Name, Entries: sr.Entries})
			}
		}
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, sheets); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName(run.FileName, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("export write", "run_id", run.ID, "error", err)
	}
}

// exportFileName derives the download name from the uploaded file name.
func exportFileName(uploaded string, f export.Format) string {
	base := strings.TrimSuffix(filepath.Base(uploaded), filepath.Ext(uploaded))
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '"' || r == '\\' || r == '/' {
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		base = "bom"
	}
	return base + "_bom" + f.Extension()
}

func nonNil(entries []bom.Entry) []bom.Entry {
	if entries == nil {
		return []bom.Entry{}
	}
	return entries
}
