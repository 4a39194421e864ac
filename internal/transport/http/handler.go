package httptransport

import (
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ppt2video/internal/entity"
	"ppt2video/internal/service"
)

type Handler struct {
	jobSvc         *service.JobService
	maxUploadBytes int64
}

func NewHandler(jobSvc *service.JobService, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 100 << 20
	}
	return &Handler{jobSvc: jobSvc, maxUploadBytes: maxUploadBytes}
}

type submitResp struct {
	ID        string `json:"id"`
	StatusURL string `json:"status_url"`
}

type taskResp struct {
	ID          string       `json:"id"`
	State       entity.State `json:"state"`
	Filename    string       `json:"filename,omitempty"`
	Voice       string       `json:"voice,omitempty"`
	Result      string       `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   string       `json:"created_at"`
	CompletedAt string       `json:"completed_at,omitempty"`
}

// SubmitTask godoc
// @Summary Submit a document for conversion
// @Description Stores the uploaded document, admits the job against the owner's quota and enqueues it. Returns immediately with the job id; poll the status URL for progress.
// @Tags tasks
// @Accept multipart/form-data
// @Produce json
// @Param document formData file true "presentation file (.ppt, .pptx, .odp)"
// @Param voice_id formData string false "narration voice id"
// @Success 201 {object} submitResp
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 429 {object} apiError
// @Router /tasks [post]
func (h *Handler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	ident := identityFrom(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, header, err := r.FormFile("document")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErr(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		writeErr(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	id, err := h.jobSvc.Submit(r.Context(), service.SubmitRequest{
		Owner:    ident.UserID,
		Role:     ident.Role,
		Filename: header.Filename,
		Voice:    r.FormValue("voice_id"),
		Document: file,
	})
	if err != nil {
		writeServiceErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, submitResp{
		ID:        id.String(),
		StatusURL: "/tasks/" + id.String() + "/status",
	})
}

// TaskStatus godoc
// @Summary Poll a task's status
// @Description Terminal tasks are rendered from the durable record; running ones merge in the live stage/progress snapshot.
// @Tags tasks
// @Produce json
// @Param id path string true "task id (uuid)"
// @Success 200 {object} service.Status
// @Failure 400 {object} apiError
// @Failure 403 {object} apiError
// @Failure 404 {object} apiError
// @Router /tasks/{id}/status [get]
func (h *Handler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	st, err := h.jobSvc.Status(r.Context(), id, identityFrom(r.Context()).UserID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListTasks godoc
// @Summary List the requester's tasks, newest first
// @Tags tasks
// @Produce json
// @Success 200 {array} taskResp
// @Router /tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobSvc.List(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}

	resp := make([]taskResp, 0, len(jobs))
	for _, j := range jobs {
		item := taskResp{
			ID:        j.ID.String(),
			State:     j.Status,
			Voice:     j.Voice,
			CreatedAt: j.CreatedAt.Format(time.RFC3339),
		}
		if j.Input != nil {
			item.Filename = j.Input.Name
		}
		if j.Output != nil {
			item.Result = j.Output.Name
		}
		if j.ErrorSummary != nil {
			item.Error = *j.ErrorSummary
		}
		if j.CompletedAt != nil {
			item.CompletedAt = j.CompletedAt.Format(time.RFC3339)
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

// DownloadTask godoc
// @Summary Download the produced video
// @Tags tasks
// @Produce video/mp4
// @Param id path string true "task id (uuid)"
// @Success 200 {file} file
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /tasks/{id}/download [get]
func (h *Handler) DownloadTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	ref, rc, err := h.jobSvc.Download(r.Context(), id, identityFrom(r.Context()).UserID)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": ref.Name}))
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("[http] task_id=%s download stream error=%v", id, err)
	}
}

// DeleteTask godoc
// @Summary Delete a task and its artifacts
// @Description Cascade-removes the uploaded document, the produced video and the record. Deleting an already-deleted task succeeds.
// @Tags tasks
// @Produce json
// @Param id path string true "task id (uuid)"
// @Success 200 {object} map[string]string
// @Failure 403 {object} apiError
// @Router /tasks/{id}/delete [post]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.jobSvc.Delete(r.Context(), id, identityFrom(r.Context()).UserID); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// RevokeTask godoc
// @Summary Cancel a queued or running task
// @Description Marks the task REVOKED immediately. A running conversion is signalled best-effort and its late result is discarded.
// @Tags tasks
// @Produce json
// @Param id path string true "task id (uuid)"
// @Success 200 {object} map[string]string
// @Failure 404 {object} apiError
// @Failure 409 {object} apiError
// @Router /tasks/{id}/revoke [post]
func (h *Handler) RevokeTask(w http.ResponseWriter, r *http.Request) {
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.jobSvc.Revoke(r.Context(), id, identityFrom(r.Context()).UserID); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// ListVoices godoc
// @Summary List available narration voices
// @Tags voices
// @Produce json
// @Success 200 {array} convert.Voice
// @Router /voices [get]
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.jobSvc.Voices(r.Context())
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, voices)
}

func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "invalid task id")
		return uuid.Nil, false
	}
	return id, true
}
