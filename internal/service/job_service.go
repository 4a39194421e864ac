package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"ppt2video/internal/artifact"
	"ppt2video/internal/convert"
	"ppt2video/internal/entity"
	"ppt2video/internal/quota"
	"ppt2video/internal/tracker"
)

// Record store port (implementations: postgresql.JobRepository,
// memory.JobRepository). The executor-side operations live in the worker
// package; this service only needs the request/response half.
type JobRepository interface {
	CreateUnderLimit(ctx context.Context, owner, role, voice string, input entity.ArtifactRef, limit int) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListByOwner(ctx context.Context, owner string) ([]*entity.Job, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// VoiceLister is the single conversion-capability call the API side
// makes; the pipeline itself runs only in the worker.
type VoiceLister interface {
	Voices(ctx context.Context) ([]convert.Voice, error)
}

type JobService struct {
	repo    JobRepository
	queue   Queue
	tracker tracker.Tracker
	store   artifact.Store
	gate    *quota.Gate
	voices  VoiceLister
}

func NewJobService(repo JobRepository, queue Queue, trk tracker.Tracker, store artifact.Store, gate *quota.Gate, voices VoiceLister) *JobService {
	return &JobService{
		repo:    repo,
		queue:   queue,
		tracker: trk,
		store:   store,
		gate:    gate,
		voices:  voices,
	}
}

var allowedExtensions = map[string]bool{
	".ppt":  true,
	".pptx": true,
	".odp":  true,
}

type SubmitRequest struct {
	Owner    string
	Role     string
	Filename string
	Voice    string
	Document io.Reader
}

// priorityForRole maps a role onto a queue lane: paying users skip the
// line, everyone else waits in normal.
func priorityForRole(role string) int {
	if role == "vip" {
		return 2
	}
	return 1
}

// Submit admits a new conversion job: advisory quota pre-check, input
// artifact store, quota-gated record insert, enqueue. The record insert
// is the atomic admission point; the pre-check only spares the artifact
// store an upload that is doomed anyway.
func (s *JobService) Submit(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	if req.Filename == "" || req.Document == nil {
		return uuid.Nil, fmt.Errorf("%w: document is required", entity.ErrInvalid)
	}
	ext := strings.ToLower(filepath.Ext(req.Filename))
	if !allowedExtensions[ext] {
		return uuid.Nil, fmt.Errorf("%w: unsupported document type %q", entity.ErrInvalid, ext)
	}

	decision, err := s.gate.CanAdmit(ctx, req.Owner, req.Role)
	if err != nil {
		return uuid.Nil, fmt.Errorf("quota check: %w", err)
	}
	if err := decision.Err(); err != nil {
		return uuid.Nil, err
	}

	input, err := s.store.StoreInput(ctx, uuid.New(), req.Filename, req.Document)
	if err != nil {
		return uuid.Nil, fmt.Errorf("store input: %w", err)
	}

	id, err := s.repo.CreateUnderLimit(ctx, req.Owner, req.Role, req.Voice, input, decision.Limit)
	if err != nil {
		if remErr := s.store.Remove(ctx, input); remErr != nil {
			log.Printf("[api] job_id=- undo input %s error=%v", input.Key, remErr)
		}
		return uuid.Nil, err
	}

	if err := s.queue.Enqueue(ctx, id.String(), priorityForRole(req.Role)); err != nil {
		// roll back so the failed submission neither occupies a quota
		// slot nor leaks its upload
		if delErr := s.repo.Delete(ctx, id); delErr != nil && !errors.Is(delErr, entity.ErrNotFound) {
			log.Printf("[api] job_id=%s undo record error=%v", id, delErr)
		}
		if remErr := s.store.Remove(ctx, input); remErr != nil {
			log.Printf("[api] job_id=%s undo input error=%v", id, remErr)
		}
		return uuid.Nil, fmt.Errorf("enqueue: %w", err)
	}

	return id, nil
}

// Meta is the client-facing progress/diagnostic block of a status
// response. Duration is seconds of execution wall time.
type Meta struct {
	Stage     string  `json:"stage,omitempty"`
	Progress  float64 `json:"progress"`
	Detail    string  `json:"detail,omitempty"`
	Error     string  `json:"error,omitempty"`
	Traceback string  `json:"traceback,omitempty"`
	Duration  float64 `json:"duration"`
}

type Status struct {
	ID          string       `json:"id"`
	State       entity.State `json:"state"`
	Meta        Meta         `json:"meta"`
	DownloadURL string       `json:"download_url,omitempty"`
	Result      string       `json:"result,omitempty"`
}

// Status composes the client-facing view of one job. Terminal jobs are
// rendered from the record alone; in-flight jobs merge the record state
// with the live tracker snapshot, falling back to a generic description
// when no executor has reported yet.
func (s *JobService) Status(ctx context.Context, id uuid.UUID, requester string) (*Status, error) {
	job, err := s.authorize(ctx, id, requester)
	if err != nil {
		return nil, err
	}

	st := &Status{
		ID:    job.ID.String(),
		State: job.Status,
		Meta:  Meta{Duration: job.Duration(time.Now()).Seconds()},
	}

	switch job.Status {
	case entity.StateSuccess:
		st.Meta.Stage = convert.StageComplete
		st.Meta.Progress = 100
		st.DownloadURL = "/tasks/" + st.ID + "/download"
		if job.Output != nil {
			st.Result = job.Output.Name
		}
	case entity.StateFailure:
		if job.ErrorSummary != nil {
			st.Meta.Error = *job.ErrorSummary
		}
		if job.ErrorDetail != nil {
			st.Meta.Traceback = *job.ErrorDetail
		}
	case entity.StateRevoked:
		st.Meta.Stage = "revoked"
	case entity.StatePending:
		st.Meta.Stage = "queued"
	default:
		snap, err := s.tracker.Get(ctx, st.ID)
		if err != nil {
			return nil, fmt.Errorf("tracker: %w", err)
		}
		if snap == nil {
			st.Meta.Stage = "processing"
		} else {
			st.Meta.Stage = snap.Stage
			st.Meta.Progress = snap.Progress
			st.Meta.Detail = snap.Detail
		}
	}

	return st, nil
}

func (s *JobService) List(ctx context.Context, owner string) ([]*entity.Job, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// Download opens the produced video of a successful job.
func (s *JobService) Download(ctx context.Context, id uuid.UUID, requester string) (entity.ArtifactRef, io.ReadCloser, error) {
	job, err := s.authorize(ctx, id, requester)
	if err != nil {
		return entity.ArtifactRef{}, nil, err
	}
	if job.Status != entity.StateSuccess || job.Output == nil {
		return entity.ArtifactRef{}, nil, entity.ErrNoResult
	}

	rc, err := s.store.Open(ctx, *job.Output)
	if err != nil {
		if errors.Is(err, artifact.ErrMissing) {
			return entity.ArtifactRef{}, nil, entity.ErrNoResult
		}
		return entity.ArtifactRef{}, nil, err
	}
	return *job.Output, rc, nil
}

// Revoke cancels a job. Pending jobs are also withdrawn from the queue;
// for running ones the record flip is the signal and the executor
// discards its result at the next fenced write.
func (s *JobService) Revoke(ctx context.Context, id uuid.UUID, requester string) error {
	job, err := s.authorize(ctx, id, requester)
	if err != nil {
		return err
	}

	if err := s.repo.Revoke(ctx, job.ID); err != nil {
		return err
	}
	if err := s.queue.Remove(ctx, job.ID.String()); err != nil {
		log.Printf("[api] job_id=%s dequeue after revoke error=%v", job.ID, err)
	}
	if err := s.tracker.Clear(ctx, job.ID.String()); err != nil {
		log.Printf("[api] job_id=%s clear snapshot after revoke error=%v", job.ID, err)
	}
	return nil
}

// Delete cascades: input artifact, output artifact, live snapshot, queue
// entry, then the record. Each step tolerates already-gone targets, so
// repeating a deletion is harmless and a half-finished cascade can be
// re-run.
func (s *JobService) Delete(ctx context.Context, id uuid.UUID, requester string) error {
	job, err := s.authorize(ctx, id, requester)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil
		}
		return err
	}

	if job.Input != nil {
		if err := s.store.Remove(ctx, *job.Input); err != nil {
			return fmt.Errorf("remove input: %w", err)
		}
	}
	if job.Output != nil {
		if err := s.store.Remove(ctx, *job.Output); err != nil {
			return fmt.Errorf("remove output: %w", err)
		}
	}
	if err := s.tracker.Clear(ctx, job.ID.String()); err != nil {
		log.Printf("[api] job_id=%s clear snapshot error=%v", job.ID, err)
	}
	if err := s.queue.Remove(ctx, job.ID.String()); err != nil {
		log.Printf("[api] job_id=%s dequeue error=%v", job.ID, err)
	}

	if err := s.repo.Delete(ctx, job.ID); err != nil && !errors.Is(err, entity.ErrNotFound) {
		return err
	}
	return nil
}

func (s *JobService) Voices(ctx context.Context) ([]convert.Voice, error) {
	return s.voices.Voices(ctx)
}

func (s *JobService) authorize(ctx context.Context, id uuid.UUID, requester string) (*entity.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Owner != requester {
		return nil, entity.ErrForbidden
	}
	return job, nil
}
