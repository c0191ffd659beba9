package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"local-chat-assistant/internal/domain"
	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/usecase"
)

type errorBody struct {
	Error string `json:"error"`
}

type textRequest struct {
	Text string `json:"text"`
}

type uploadResponse struct {
	View      *usecase.View `json:"view"`
	ErrorKind string        `json:"error_kind,omitempty"`
}

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.chatUC.ListModels(r.Context())
	if err != nil {
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("list models")
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "model list unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Items []string `json:"items"`
	}{Items: models})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := s.chatUC.View(r.Context(), logging.WorkspaceID(r.Context()))
	s.respond(w, r, http.StatusOK, view, err)
}

func (s *Server) handleNewChat(w http.ResponseWriter, r *http.Request) {
	view, err := s.chatUC.NewChat(r.Context(), logging.WorkspaceID(r.Context()))
	s.respond(w, r, http.StatusCreated, view, err)
}

func (s *Server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	view, err := s.chatUC.ClearAll(r.Context(), logging.WorkspaceID(r.Context()))
	s.respond(w, r, http.StatusOK, view, err)
}

func (s *Server) handleSelectChat(w http.ResponseWriter, r *http.Request) {
	var index int
	err := runtime.BindStyledParameterWithOptions("simple", "index", chi.URLParam(r, "index"), &index,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid format for parameter index: %s", err)})
		return
	}
	view, err := s.chatUC.SelectChat(r.Context(), logging.WorkspaceID(r.Context()), index)
	s.respond(w, r, http.StatusOK, view, err)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	turn, err := s.chatUC.SendMessage(r.Context(), logging.WorkspaceID(r.Context()), req.Text)
	s.respond(w, r, http.StatusOK, turn, err)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Items []string `json:"items"`
	}{Items: s.chatUC.Suggestions()})
}

func (s *Server) handleSelectSuggestion(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	turn, err := s.chatUC.SelectSuggestion(r.Context(), logging.WorkspaceID(r.Context()), req.Text)
	s.respond(w, r, http.StatusOK, turn, err)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// room for the multipart envelope around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.tooLarge(w)
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing form field: file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read upload"})
		return
	}
	if int64(len(data)) > s.maxUpload {
		s.tooLarge(w)
		return
	}

	view, gen, err := s.chatUC.UploadFile(r.Context(), logging.WorkspaceID(r.Context()), hdr.Filename, data)
	if err != nil {
		s.respond(w, r, 0, nil, err)
		return
	}
	s.respond(w, r, http.StatusOK, uploadResponse{View: view, ErrorKind: gen.ErrorKind()}, nil)
}

func (s *Server) tooLarge(w http.ResponseWriter) {
	writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
		Error: fmt.Sprintf("file exceeds %d MB", s.maxUpload>>20),
	})
}

// respond writes body with status, or maps err onto an error response.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, body any, err error) {
	if err == nil {
		writeJSON(w, status, body)
		return
	}
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, code, errorBody{Error: "internal error"})
		return
	}
	if code == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
		writeJSON(w, code, errorBody{Error: domain.ErrUnavailable.Error()})
		return
	}
	writeJSON(w, code, errorBody{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrUnsupportedFile):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIndexOutOfRange), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrTurnInProgress):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
