package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
	"github.com/Taichi-iskw/lesson-media/internal/logger"
	"github.com/Taichi-iskw/lesson-media/internal/model"
	"github.com/Taichi-iskw/lesson-media/internal/service/lesson"
	"github.com/Taichi-iskw/lesson-media/internal/service/media"
	"github.com/Taichi-iskw/lesson-media/internal/service/transcription"
)

const maxBodyBytes = 1 << 20

// Handlers holds the services behind the HTTP routes
type Handlers struct {
	Media       media.Service
	Lessons     lesson.Service
	Transcripts transcription.Service
	// Ping checks the database; nil skips the check
	Ping func(ctx context.Context) error
	Log  *logger.Logger
}

func (h *Handlers) logger() *logger.Logger {
	if h.Log == nil {
		return logger.NewNop()
	}
	return h.Log
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if h.Ping != nil {
		if err := h.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) PrepareUpload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	result, err := h.Media.Prepare(r.Context(), mux.Vars(r)["id"], body.Title)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// CompleteUpload is the provider's upload-finished webhook; deliveries may repeat
func (h *Handlers) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ResourceID    string `json:"resource_id"`
		UploadSession string `json:"upload_session"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	result, err := h.Media.CompleteUpload(r.Context(), body.ResourceID, body.UploadSession)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if result.Status == model.MediaProcessing {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result)
}

func (h *Handlers) RegisterExternal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL string `json:"url"`
	}
	if !h.decode(w, r, &body) {
		return
	}

	reg, err := h.Media.RegisterExternal(r.Context(), mux.Vars(r)["id"], body.URL)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := struct {
		*media.Registration
		Metadata *model.VideoMetadata `json:"metadata,omitempty"`
	}{Registration: reg}

	if reg.SupportsAutoMetadataFetch {
		meta, err := h.Media.FetchMetadata(r.Context(), reg.ResourceID)
		if err != nil {
			h.logger().Warn("metadata fetch after registration failed", "resource_id", reg.ResourceID, "error", err)
		} else {
			resp.Metadata = meta
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) FetchMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.Media.FetchMetadata(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	res, err := h.Media.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) GetTranscript(w http.ResponseWriter, r *http.Request) {
	lessonID := mux.Vars(r)["id"]

	record, err := h.Transcripts.Get(r.Context(), lessonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	effective, err := h.Lessons.Effective(r.Context(), lessonID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Effective  *model.EffectiveTranscript `json:"effective"`
		Record     *model.TranscriptRecord    `json:"record"`
		Generating bool                       `json:"generating"`
	}{effective, record, record.GenerationActive(time.Now(), h.Transcripts.Lease())})
}

func (h *Handlers) GenerateTranscript(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Force bool `json:"force"`
		// Wait runs the generation inside the request instead of in the background
		Wait bool `json:"wait"`
	}
	if !h.decodeOptional(w, r, &body) {
		return
	}
	if body.Wait {
		// A synchronous generation outlives the server-wide write timeout; give it the claim lease.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Now().Add(h.Transcripts.Lease())); err != nil {
			h.logger().Debug("write deadline not extended", "error", err)
		}
	}

	outcome, err := h.Lessons.GenerateTranscript(r.Context(), mux.Vars(r)["id"], lesson.GenerateOptions{
		Force:      body.Force,
		Background: !body.Wait,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if !body.Wait && outcome.Started {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}

func (h *Handlers) ClearUserTranscript(w http.ResponseWriter, r *http.Request) {
	effective, err := h.Lessons.ClearUserTranscript(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, effective)
}

func (h *Handlers) SaveLesson(w http.ResponseWriter, r *http.Request) {
	var req lesson.SaveRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.LessonID = mux.Vars(r)["id"]

	result, err := h.Lessons.Save(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArg, "invalid JSON body"))
		return false
	}
	return true
}

// decodeOptional accepts an empty body
func (h *Handlers) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !stderrors.Is(err, io.EOF) {
		h.writeError(w, apperrors.Wrap(err, apperrors.CodeInvalidArg, "invalid JSON body"))
		return false
	}
	return true
}

type errorResponse struct {
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Decision *lesson.Decision `json:"decision,omitempty"`
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	code := apperrors.Code(err)
	status := statusFor(code)

	resp := errorResponse{Code: code, Message: publicMessage(err)}
	if decision, ok := lesson.BlockedDecision(err); ok {
		resp.Decision = &decision
	}

	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed", "code", code, "error", err)
	}
	writeJSON(w, status, resp)
}

// statusFor maps application error codes to HTTP statuses
func statusFor(code string) int {
	switch code {
	case apperrors.CodeInvalidArg:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict, apperrors.CodeDependency, apperrors.CodeAlreadyInProgress, apperrors.CodeValidationBlocked:
		return http.StatusConflict
	case apperrors.CodePreparation:
		return http.StatusUnprocessableEntity
	case apperrors.CodeUploadFailure, apperrors.CodeGenerationFailure, apperrors.CodeExternal, apperrors.CodeMetadataUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error) string {
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
