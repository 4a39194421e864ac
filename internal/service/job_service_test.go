package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"ppt2video/internal/artifact"
	"ppt2video/internal/convert"
	"ppt2video/internal/entity"
	"ppt2video/internal/quota"
	"ppt2video/internal/repository/memory"
	"ppt2video/internal/service"
	"ppt2video/internal/tracker"
)

// fakeQueue records enqueues; the claiming half is unused on the API side.
type fakeQueue struct {
	enqueuedIDs        []string
	enqueuedPriorities []int
	enqueueErr         error
	removed            []string
}

func (q *fakeQueue) Enqueue(ctx context.Context, jobID string, priority int) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueuedIDs = append(q.enqueuedIDs, jobID)
	q.enqueuedPriorities = append(q.enqueuedPriorities, priority)
	return nil
}

func (q *fakeQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	return "", errors.New("not implemented")
}
func (q *fakeQueue) Ack(ctx context.Context, jobID string) error { return nil }
func (q *fakeQueue) Remove(ctx context.Context, jobID string) error {
	q.removed = append(q.removed, jobID)
	return nil
}
func (q *fakeQueue) RequeueStale(ctx context.Context, max int64) (int64, error) { return 0, nil }

type env struct {
	repo  *memory.JobRepository
	queue *fakeQueue
	trk   *tracker.Memory
	store artifact.Store
	svc   *service.JobService
}

func newEnv(t *testing.T, limits map[string]int) *env {
	t.Helper()

	store, err := artifact.NewFS(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatalf("fs store: %v", err)
	}

	repo := memory.NewJobRepository()
	queue := &fakeQueue{}
	trk := tracker.NewMemory()
	gate := quota.NewGate(limits, 1, repo)
	svc := service.NewJobService(repo, queue, trk, store, gate, convert.NewSimulator(time.Millisecond))

	return &env{repo: repo, queue: queue, trk: trk, store: store, svc: svc}
}

func submit(t *testing.T, e *env, owner, role string) uuid.UUID {
	t.Helper()
	id, err := e.svc.Submit(context.Background(), service.SubmitRequest{
		Owner:    owner,
		Role:     role,
		Filename: "deck.pptx",
		Voice:    "en-US-GuyNeural",
		Document: bytes.NewReader([]byte("pptx bytes")),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return id
}

func TestSubmitCreatesPendingAndEnqueues(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	id := submit(t, e, "u1", "free")

	job, err := e.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Status != entity.StatePending {
		t.Fatalf("status=%s, want PENDING", job.Status)
	}
	if job.Input == nil {
		t.Fatal("input ref not recorded")
	}
	if len(e.queue.enqueuedIDs) != 1 || e.queue.enqueuedIDs[0] != id.String() {
		t.Fatalf("enqueued=%v, want [%s]", e.queue.enqueuedIDs, id)
	}
	if e.queue.enqueuedPriorities[0] != 1 {
		t.Fatalf("free role priority=%d, want 1", e.queue.enqueuedPriorities[0])
	}
}

func TestSubmitVipLandsInHighLane(t *testing.T) {
	e := newEnv(t, map[string]int{"vip": quota.Unlimited})
	submit(t, e, "v1", "vip")

	if e.queue.enqueuedPriorities[0] != 2 {
		t.Fatalf("vip priority=%d, want 2", e.queue.enqueuedPriorities[0])
	}
}

func TestSubmitRejectsUnsupportedExtension(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})

	_, err := e.svc.Submit(context.Background(), service.SubmitRequest{
		Owner:    "u1",
		Role:     "free",
		Filename: "notes.pdf",
		Document: bytes.NewReader([]byte("pdf")),
	})
	if !errors.Is(err, entity.ErrInvalid) {
		t.Fatalf("err=%v, want ErrInvalid", err)
	}
}

func TestSubmitOverQuotaRefused(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	submit(t, e, "u1", "free")

	_, err := e.svc.Submit(context.Background(), service.SubmitRequest{
		Owner:    "u1",
		Role:     "free",
		Filename: "second.pptx",
		Document: bytes.NewReader([]byte("pptx")),
	})
	var qe *entity.QuotaError
	if !errors.As(err, &qe) {
		t.Fatalf("err=%v, want QuotaError", err)
	}
	if qe.Limit != 1 || qe.Count != 1 {
		t.Fatalf("quota error limit=%d count=%d, want 1/1", qe.Limit, qe.Count)
	}
	if len(e.queue.enqueuedIDs) != 1 {
		t.Fatalf("refused submission must not enqueue, got %v", e.queue.enqueuedIDs)
	}
}

func TestSubmitAdmittedAgainAfterDelete(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	ctx := context.Background()
	id := submit(t, e, "u1", "free")

	if err := e.svc.Delete(ctx, id, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	submit(t, e, "u1", "free") // slot released
}

func TestSubmitEnqueueFailureRollsBack(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	e.queue.enqueueErr = errors.New("redis down")

	_, err := e.svc.Submit(context.Background(), service.SubmitRequest{
		Owner:    "u1",
		Role:     "free",
		Filename: "deck.pptx",
		Document: bytes.NewReader([]byte("pptx")),
	})
	if err == nil {
		t.Fatal("expected enqueue error")
	}

	// the failed submission must not hold a quota slot
	count, err := e.repo.CountActive(context.Background(), "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("active count=%d after rollback, want 0", count)
	}
}

func TestStatusPendingWithoutSnapshot(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	id := submit(t, e, "u1", "free")

	st, err := e.svc.Status(context.Background(), id, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != entity.StatePending {
		t.Fatalf("state=%s, want PENDING", st.State)
	}
	if st.Meta.Stage != "queued" || st.Meta.Progress != 0 {
		t.Fatalf("meta=%+v, want queued/0", st.Meta)
	}
	if st.DownloadURL != "" {
		t.Fatalf("pending job has download_url %q", st.DownloadURL)
	}
}

func TestStatusMergesSnapshotWhileRunning(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	ctx := context.Background()
	id := submit(t, e, "u1", "free")

	lease := uuid.New()
	if err := e.repo.Claim(ctx, id, lease); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := e.repo.SetRunning(ctx, id, lease, entity.StateProcessing); err != nil {
		t.Fatalf("set running: %v", err)
	}
	if err := e.trk.Set(ctx, id.String(), entity.Snapshot{
		Stage:    convert.StageGenerateAudio,
		Progress: 42,
		Detail:   "slide 3 of 7",
	}); err != nil {
		t.Fatalf("tracker set: %v", err)
	}

	st, err := e.svc.Status(ctx, id, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != entity.StateProcessing {
		t.Fatalf("state=%s, want PROCESSING", st.State)
	}
	if st.Meta.Stage != convert.StageGenerateAudio || st.Meta.Progress != 42 || st.Meta.Detail != "slide 3 of 7" {
		t.Fatalf("meta=%+v, want snapshot values", st.Meta)
	}
}

func TestStatusClaimedWithoutSnapshotFallsBack(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	ctx := context.Background()
	id := submit(t, e, "u1", "free")

	if err := e.repo.Claim(ctx, id, uuid.New()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	st, err := e.svc.Status(ctx, id, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Meta.Stage != "processing" {
		t.Fatalf("stage=%q, want generic processing", st.Meta.Stage)
	}
}

func TestStatusTerminalBuiltFromRecordOnly(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	ctx := context.Background()
	id := submit(t, e, "u1", "free")

	lease := uuid.New()
	if err := e.repo.Claim(ctx, id, lease); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// stale snapshot that must be ignored once the record is terminal
	_ = e.trk.Set(ctx, id.String(), entity.Snapshot{Stage: convert.StageConcatenate, Progress: 97})

	out := entity.ArtifactRef{Name: "deck_a1b2c3d4.mp4", Key: "videos/deck_a1b2c3d4.mp4"}
	if err := e.repo.Succeed(ctx, id, lease, out); err != nil {
		t.Fatalf("succeed: %v", err)
	}

	st, err := e.svc.Status(ctx, id, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.State != entity.StateSuccess {
		t.Fatalf("state=%s, want SUCCESS", st.State)
	}
	if st.Meta.Progress != 100 || st.Meta.Stage != convert.StageComplete {
		t.Fatalf("meta=%+v, want complete/100", st.Meta)
	}
	if st.DownloadURL != "/tasks/"+id.String()+"/download" {
		t.Fatalf("download_url=%q", st.DownloadURL)
	}
	if st.Result != out.Name {
		t.Fatalf("result=%q, want %q", st.Result, out.Name)
	}
}

func TestStatusFailureCarriesErrorAndTraceback(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	ctx := context.Background()
	id := submit(t, e, "u1", "free")

	lease := uuid.New()
	if err := e.repo.Claim(ctx, id, lease); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := e.repo.Fail(ctx, id, lease, "soffice exited with code 1", "full trace\nline 2"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	st, err := e.svc.Status(ctx, id, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Meta.Error != "soffice exited with code 1" {
		t.Fatalf("error=%q", st.Meta.Error)
	}
	if st.Meta.Traceback != "full trace\nline 2" {
		t.Fatalf("traceback=%q", st.Meta.Traceback)
	}
	if st.DownloadURL != "" {
		t.Fatal("failed job must not expose a download_url")
	}
}

func TestStatusForbiddenForOtherUsers(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	id := submit(t, e, "u1", "free")

	if _, err := e.svc.Status(context.Background(), id, "u2"); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("err=%v, want ErrForbidden", err)
	}
}

func TestDeleteIsIdempotentAndCascades(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	ctx := context.Background()
	id := submit(t, e, "u1", "free")

	job, _ := e.repo.GetByID(ctx, id)
	input := *job.Input

	if err := e.svc.Delete(ctx, id, "u1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if _, err := e.store.Open(ctx, input); !errors.Is(err, artifact.ErrMissing) {
		t.Fatalf("input artifact still present: %v", err)
	}
	if _, err := e.repo.GetByID(ctx, id); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("record still present: %v", err)
	}
	if len(e.queue.removed) == 0 {
		t.Fatal("queue entry not withdrawn")
	}

	// second delete is a no-op, not an error
	if err := e.svc.Delete(ctx, id, "u1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}

	if _, err := e.svc.Status(ctx, id, "u1"); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("status after delete err=%v, want ErrNotFound", err)
	}
}

func TestRevokePendingWithdrawsFromQueue(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	ctx := context.Background()
	id := submit(t, e, "u1", "free")

	if err := e.svc.Revoke(ctx, id, "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	job, _ := e.repo.GetByID(ctx, id)
	if job.Status != entity.StateRevoked {
		t.Fatalf("status=%s, want REVOKED", job.Status)
	}
	if job.CompletedAt == nil {
		t.Fatal("revoked job missing completed_at")
	}
	if len(e.queue.removed) != 1 || e.queue.removed[0] != id.String() {
		t.Fatalf("queue removals=%v", e.queue.removed)
	}
}

func TestRevokeTerminalIsRejected(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	ctx := context.Background()
	id := submit(t, e, "u1", "free")

	if err := e.svc.Revoke(ctx, id, "u1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := e.svc.Revoke(ctx, id, "u1"); !errors.Is(err, entity.ErrTerminal) {
		t.Fatalf("second revoke err=%v, want ErrTerminal", err)
	}
}

func TestDownloadBeforeSuccessConflicts(t *testing.T) {
	e := newEnv(t, map[string]int{"free": 1})
	id := submit(t, e, "u1", "free")

	if _, _, err := e.svc.Download(context.Background(), id, "u1"); !errors.Is(err, entity.ErrNoResult) {
		t.Fatalf("err=%v, want ErrNoResult", err)
	}
}
