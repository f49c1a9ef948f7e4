package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/me/gowl/internal/convert"
	"github.com/me/gowl/pkg/ir"
)

// translateRequest is the body of the convert, validate and stats
// endpoints. Target is ignored outside convert and defaults to the
// opposite of Source.
type translateRequest struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Document string `json:"document"`
}

func (s *Server) decodeTranslateRequest(w http.ResponseWriter, r *http.Request) (*translateRequest, convert.Language, bool) {
	reqID := RequestIDFromContext(r.Context())
	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &apiError{
			Kind: "BadRequest", Message: "invalid JSON body: " + err.Error(),
		})
		return nil, "", false
	}
	if req.Document == "" {
		respondError(w, reqID, http.StatusBadRequest, &apiError{
			Kind: "BadRequest", Message: "document is required",
		})
		return nil, "", false
	}
	lang, err := convert.ParseLanguage(req.Source)
	if err != nil {
		if lang, ok := convert.DetectLanguage(req.Name); ok {
			return &req, lang, true
		}
		respondError(w, reqID, http.StatusBadRequest, &apiError{
			Kind: "BadRequest", Message: err.Error(),
		})
		return nil, "", false
	}
	if req.Name == "" {
		req.Name = "document." + string(lang)
	}
	return &req, lang, true
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	req, from, ok := s.decodeTranslateRequest(w, r)
	if !ok {
		return
	}

	to := from.Other()
	if req.Target != "" {
		var err error
		if to, err = convert.ParseLanguage(req.Target); err != nil {
			respondError(w, reqID, http.StatusBadRequest, &apiError{
				Kind: "BadRequest", Message: err.Error(),
			})
			return
		}
	}

	res, err := s.conv.Convert(req.Name, []byte(req.Document), from, to)
	if err != nil {
		s.respondPipelineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, res)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	req, lang, ok := s.decodeTranslateRequest(w, r)
	if !ok {
		return
	}

	wf, err := s.conv.Validate(lang, req.Name, []byte(req.Document))
	if err != nil {
		s.respondPipelineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{
		"name":  wf.Name,
		"valid": true,
		"tasks": len(wf.Tasks),
		"calls": len(wf.Calls),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	req, lang, ok := s.decodeTranslateRequest(w, r)
	if !ok {
		return
	}

	stats, err := s.conv.Stats(lang, req.Name, []byte(req.Document))
	if err != nil {
		s.respondPipelineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, stats)
}

// respondPipelineError maps the translation error taxonomy onto HTTP.
// Everything user-caused is 422 with the error kind preserved.
func (s *Server) respondPipelineError(w http.ResponseWriter, reqID string, err error) {
	var synErr *ir.SyntaxError
	var semErr *ir.SemanticError
	var valErrs ir.ValidationErrors
	switch {
	case errors.As(err, &synErr):
		respondError(w, reqID, http.StatusUnprocessableEntity, &apiError{
			Kind: "SyntaxError", Message: synErr.Error(),
		})
	case errors.As(err, &semErr):
		respondError(w, reqID, http.StatusUnprocessableEntity, &apiError{
			Kind: "SemanticError", Message: semErr.Error(),
		})
	case errors.As(err, &valErrs):
		details := make([]string, len(valErrs))
		for i, ve := range valErrs {
			details[i] = ve.Error()
		}
		respondError(w, reqID, http.StatusUnprocessableEntity, &apiError{
			Kind:    string(valErrs.Kind()),
			Message: "validation failed",
			Details: details,
		})
	default:
		s.logger.Error("internal error", "request_id", reqID, "error", err)
		respondError(w, reqID, http.StatusInternalServerError, &apiError{
			Kind: "Internal", Message: "internal error",
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondOK(w, RequestIDFromContext(r.Context()), map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.history == nil {
		respondError(w, reqID, http.StatusNotFound, &apiError{
			Kind: "NotFound", Message: "conversion history is not enabled",
		})
		return
	}
	runs, err := s.history.ListRuns(r.Context(), 50)
	if err != nil {
		s.respondPipelineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.history == nil {
		respondError(w, reqID, http.StatusNotFound, &apiError{
			Kind: "NotFound", Message: "conversion history is not enabled",
		})
		return
	}
	run, err := s.history.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondPipelineError(w, reqID, err)
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, &apiError{
			Kind: "NotFound", Message: "run not found",
		})
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListRunDocuments(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if s.history == nil {
		respondError(w, reqID, http.StatusNotFound, &apiError{
			Kind: "NotFound", Message: "conversion history is not enabled",
		})
		return
	}
	docs, err := s.history.ListDocuments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondPipelineError(w, reqID, err)
		return
	}
	respondOK(w, reqID, docs)
}
