package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"docqa/internal/domain"
)

const (
	msgNoUpload      = "Please upload at least one document."
	msgNoText        = "None of the uploaded files contained extractable text."
	msgEnterQuestion = "Please enter a question."
	msgProcessFirst  = "Please upload and process documents first."
)

type errorResponse struct {
	Error string `json:"error"`
}

type askRequest struct {
	Question string `json:"question"`
}

type uploadResponse struct {
	domain.IngestSummary
	Message string `json:"message,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		if errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, msgNoUpload)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, msgNoUpload)
		return
	}

	summary, err := s.processUploads(r, headers)
	switch {
	case errors.Is(err, domain.ErrNoDocuments):
		writeJSON(w, http.StatusBadRequest, uploadResponse{IngestSummary: summary, Message: msgNoText})
	case err != nil:
		s.logger.Error("process files: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		msg := fmt.Sprintf("Processed %d files into %d chunks.", summary.Files, summary.Chunks)
		writeJSON(w, http.StatusOK, uploadResponse{IngestSummary: summary, Message: msg})
	}
}

// processUploads stores the uploads in a temporary directory for the
// duration of ProcessFiles.
func (s *Server) processUploads(r *http.Request, headers []*multipart.FileHeader) (domain.IngestSummary, error) {
	dir, err := os.MkdirTemp("", "docqa-upload-")
	if err != nil {
		return domain.IngestSummary{}, fmt.Errorf("create upload dir: %w", err)
	}
	defer os.RemoveAll(dir)

	files := make([]domain.FileRef, 0, len(headers))
	for i, fh := range headers {
		ref, err := saveUpload(dir, i, fh)
		if err != nil {
			return domain.IngestSummary{}, fmt.Errorf("save upload %s: %w", fh.Filename, err)
		}
		files = append(files, ref)
	}
	return s.service.ProcessFiles(r.Context(), files)
}

// saveUpload writes one uploaded file under dir. The stored name is prefixed
// with its position so duplicate names do not collide.
func saveUpload(dir string, i int, fh *multipart.FileHeader) (domain.FileRef, error) {
	name := filepath.Base(filepath.Clean("/" + fh.Filename))
	src, err := fh.Open()
	if err != nil {
		return domain.FileRef{}, err
	}
	defer src.Close()

	path := filepath.Join(dir, fmt.Sprintf("%03d-%s", i, name))
	dst, err := os.Create(path)
	if err != nil {
		return domain.FileRef{}, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return domain.FileRef{}, err
	}
	if err := dst.Close(); err != nil {
		return domain.FileRef{}, err
	}
	return domain.FileRef{Name: name, Path: path}, nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, msgEnterQuestion)
		return
	}
	if !s.service.Ready() {
		writeError(w, http.StatusConflict, msgProcessFirst)
		return
	}
	answer, err := s.service.Ask(r.Context(), req.Question)
	switch {
	case errors.Is(err, domain.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, msgEnterQuestion)
	case err != nil:
		s.logger.Error("ask: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, answer)
	}
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.service.History(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ClearHistory(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": s.service.Ready()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
