package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/ai"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/interview"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/logger"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/resume"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/session"
	"github.com/omkarbandikatte/AI-Interview-Preparation/internal/utils"
)

const (
	sessionHeader  = "X-Session-ID"
	previewLength  = 500
	uploadField    = "file"
	sessionIDField = "session_id"

	// statusClientClosedRequest is logged when the caller goes away mid-request.
	statusClientClosedRequest = 499
)

type uploadResponse struct {
	Status              string         `json:"status"`
	SessionID           string         `json:"session_id"`
	ResumeText          string         `json:"resume_text"`
	ExtractedSections   session.Resume `json:"extracted_sections"`
	ExtractedCharacters int            `json:"extracted_characters"`
	Preview             string         `json:"preview"`
}

type webhookRequest struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	SessionID string         `json:"session_id"`
}

type webhookResponse struct {
	Response  any    `json:"response"`
	Outcome   string `json:"outcome"`
	Phase     string `json:"phase"`
	SessionID string `json:"session_id"`
}

type ignoredResponse struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	SessionID string `json:"session_id"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	*session.State
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleUploadResume(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload: "+err.Error())
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing resume file in field \"file\"")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload: "+err.Error())
		return
	}

	key := s.uploadKey(r)

	log := s.logger.With(logger.SessionFields(key, "")...)
	log.Info("resume uploaded", zap.String("filename", header.Filename), zap.Int("bytes", len(data)))

	text, err := s.extractText(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, resume.ErrNoText) {
			status = http.StatusUnprocessableEntity
		}
		log.Warn("resume text extraction failed", zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	sections, err := s.extractor.Extract(r.Context(), text)
	if err != nil {
		s.writeFailure(w, r, log, err)
		return
	}

	if err := s.orchestrator.Prepare(r.Context(), key, sections); err != nil {
		s.writeFailure(w, r, log, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Status:              "success",
		SessionID:           key,
		ResumeText:          text,
		ExtractedSections:   sections,
		ExtractedCharacters: utf8.RuneCountInString(text),
		Preview:             utils.Preview(text, previewLength),
	})
}

// uploadKey resolves the session a résumé belongs to. Without an explicit id it falls back
// to the same default key keyless webhook calls use.
func (s *Server) uploadKey(r *http.Request) string {
	if key := strings.TrimSpace(r.FormValue(sessionIDField)); key != "" {
		return key
	}
	if key := strings.TrimSpace(r.Header.Get(sessionHeader)); key != "" {
		return key
	}
	return s.cfg.DefaultSessionKey
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook body: "+err.Error())
		return
	}

	key := strings.TrimSpace(req.SessionID)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get(sessionHeader))
	}
	if key == "" {
		key = s.cfg.DefaultSessionKey
	}

	log := s.logger.With(logger.SessionFields(key, "")...)

	res, err := s.orchestrator.Handle(r.Context(), key, interview.ParseEvent(req.Event, req.Data))
	if err != nil {
		s.writeFailure(w, r, log, err)
		return
	}

	if res.Outcome == interview.OutcomeIgnored {
		writeJSON(w, http.StatusOK, ignoredResponse{Status: "ignored", Reason: res.Reason, SessionID: key})
		return
	}

	var payload any = res.Message
	if res.Outcome == interview.OutcomeFeedback && res.Feedback != nil {
		payload = res.Feedback
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Response:  payload,
		Outcome:   string(res.Outcome),
		Phase:     string(res.Phase),
		SessionID: key,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("id")

	st, err := s.orchestrator.Session(r.Context(), key)
	if err != nil {
		s.writeFailure(w, r, s.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{SessionID: key, State: st})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.orchestrator.Close(r.Context(), r.PathValue("id")); err != nil {
		s.writeFailure(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeFailure maps orchestrator and gateway errors onto HTTP statuses.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var gwErr *ai.GatewayError

	switch {
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		log.Info("request abandoned by client", zap.Error(err))
		w.WriteHeader(statusClientClosedRequest)
	case errors.As(err, &gwErr):
		log.Error("inference gateway failed", zap.Error(err), zap.Int("status_code", gwErr.StatusCode))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, interview.ErrInvalidSessionKey), errors.Is(err, resume.ErrNoText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		log.Warn("request cancelled", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
