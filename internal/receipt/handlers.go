package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/zombor/scantrack/internal/extraction"
	"github.com/zombor/scantrack/internal/scanning"
)

// multipartOverhead leaves room for form boundaries and headers on top of
// the file itself
const multipartOverhead = 1 << 20

// writeJSON encodes v with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnsupportedFileType),
		errors.Is(err, ErrFileTooLarge),
		errors.Is(err, ErrUnsupportedExportFormat),
		errors.Is(err, ErrInvalidExportRange):
		return http.StatusBadRequest
	case errors.Is(err, extraction.ErrUndecodableInput):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeServiceError logs unexpected failures and writes the mapped status
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		writeError(w, "internal server error", code)
		return
	}
	writeError(w, err.Error(), code)
}

// queryInt reads a non-negative integer query parameter
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// contentTypeFor prefers the declared MIME type and falls back to the
// file extension
func contentTypeFor(filename, declared string) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return scanning.ContentTypeForFile(filename)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleUploadReceipt handles receipt upload
func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxUploadSize()+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Sprintf("file is too large, maximum size is %d bytes", s.service.MaxUploadSize()), http.StatusBadRequest)
			return
		}
		writeError(w, "error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, "no file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if err := s.service.ValidateUpload(header.Filename, header.Size); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, "error reading file", http.StatusInternalServerError)
		return
	}

	contentType := contentTypeFor(header.Filename, header.Header.Get("Content-Type"))
	receipt, err := s.service.ProcessReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		writeServiceError(w, "Error processing receipt", err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

// handleListReceipts returns a page of receipts, newest first
func (s *Server) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipts, err := s.service.ListReceipts(skip, limit)
	if err != nil {
		writeServiceError(w, "Error listing receipts", err)
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

// handleGetReceipt returns a single receipt
func (s *Server) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.service.GetReceipt(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleUpdateReceipt applies manual corrections
func (s *Server) handleUpdateReceipt(w http.ResponseWriter, r *http.Request) {
	var update Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	receipt, err := s.service.UpdateReceipt(r.PathValue("id"), update)
	if err != nil {
		writeServiceError(w, "Error updating receipt", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// handleDeleteReceipt deletes a receipt
func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReceipt(r.PathValue("id")); err != nil {
		writeServiceError(w, "Error deleting receipt", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetReceiptFile returns the uploaded file for a receipt
func (s *Server) handleGetReceiptFile(w http.ResponseWriter, r *http.Request) {
	data, receipt, err := s.service.GetReceiptFile(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting receipt file", err)
		return
	}

	w.Header().Set("Content-Type", receipt.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", receipt.Filename))
	w.Write(data)
}

func (s *Server) handleExpenseSummary(w http.ResponseWriter, r *http.Request) {
	months, err := queryInt(r, "months", defaultAnalyticsMonths)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	summary, err := s.service.ExpenseSummary(months)
	if err != nil {
		writeServiceError(w, "Error summarizing expenses", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	months, err := queryInt(r, "months", defaultAnalyticsMonths)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	stats, err := s.service.CategoryStats(months)
	if err != nil {
		writeServiceError(w, "Error computing category stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleMonthlyTrends(w http.ResponseWriter, r *http.Request) {
	months, err := queryInt(r, "months", defaultAnalyticsMonths)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	trends, err := s.service.MonthlyTrends(months)
	if err != nil {
		writeServiceError(w, "Error computing monthly trends", err)
		return
	}
	writeJSON(w, http.StatusOK, trends)
}

// handleExport sends the receipts created between the optional start and
// end dates in the requested format
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format, err := ParseExportFormat(query.Get("format"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	window, err := ParseExportRange(query.Get("start"), query.Get("end"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := s.service.Export(&buf, format, window); err != nil {
		writeServiceError(w, "Error exporting receipts", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", format.Filename(s.service.timeSource.Now())))
	w.Write(buf.Bytes())
}
