// Package httpserver exposes the reference Processing Worker's wire
// protocol over plain net/http. It has no middleware chain, param binding,
// or rendering needs beyond five fixed-shape JSON routes, so it forgoes a
// web framework (see DESIGN.md's "Dropped teacher dependencies" for why
// gin isn't wired here).
package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/monlai-dev/tip-pipeline/internal/worker/reference"
)

// Server adapts a *reference.Service to net/http.
type Server struct {
	svc *reference.Service
	log *zap.Logger
	mux *http.ServeMux
}

// New builds a Server and registers its routes.
func New(svc *reference.Service, log *zap.Logger) *Server {
	s := &Server{svc: svc, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /health", s.handleHealth)
	s.mux.HandleFunc("POST /detect-language", s.handleDetectLanguage)
	s.mux.HandleFunc("POST /translate", s.handleTranslate)
	s.mux.HandleFunc("POST /embed", s.handleEmbed)
	s.mux.HandleFunc("POST /process-batch", s.handleProcessBatch)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}

type detectLanguageRequest struct {
	Text string `json:"text"`
}

type detectLanguageResponse struct {
	Language string `json:"language"`
}

func (s *Server) handleDetectLanguage(w http.ResponseWriter, r *http.Request) {
	var req detectLanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, detectLanguageResponse{Language: s.svc.DetectLanguage(req.Text)})
}

type translateRequest struct {
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	SourceLanguage string `json:"source_language"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	translated, detected := s.svc.Translate(req.Text, req.SourceLanguage)
	writeJSON(w, http.StatusOK, translateResponse{TranslatedText: translated, SourceLanguage: detected})
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vec := s.svc.Embed(req.Text)
	writeJSON(w, http.StatusOK, embedResponse{Vector: vec[:]})
}

type batchItem struct {
	ID             int64  `json:"id"`
	Text           string `json:"text"`
	SourceLanguage string `json:"source_language,omitempty"`
}

type batchRequest struct {
	Items []batchItem `json:"items"`
}

type batchResultDTO struct {
	ID               int64     `json:"id"`
	DetectedLanguage string    `json:"detected_language,omitempty"`
	TranslatedText   string    `json:"translated_text,omitempty"`
	Vector           []float32 `json:"vector,omitempty"`
	Error            string    `json:"error,omitempty"`
}

type batchResponse struct {
	Results []batchResultDTO `json:"results"`
}

func (s *Server) handleProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]reference.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = reference.Item{ID: it.ID, Text: it.Text, SourceLanguage: it.SourceLanguage}
	}

	results := s.svc.ProcessBatch(items)

	dto := make([]batchResultDTO, len(results))
	for i, r := range results {
		if r.Err != "" {
			dto[i] = batchResultDTO{ID: r.ID, Error: r.Err}
			continue
		}
		dto[i] = batchResultDTO{
			ID:               r.ID,
			DetectedLanguage: r.DetectedLanguage,
			TranslatedText:   r.TranslatedText,
			Vector:           r.Vector[:],
		}
	}

	writeJSON(w, http.StatusOK, batchResponse{Results: dto})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
