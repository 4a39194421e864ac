package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"ppt2video/internal/artifact"
	"ppt2video/internal/convert"
	"ppt2video/internal/entity"
	"ppt2video/internal/tracker"
)

// maxSummaryLen bounds the human-readable error summary; the full
// diagnostic goes to error_detail untruncated.
const maxSummaryLen = 256

// JobRepo is the executor's half of the record store: claim, running-state
// flips and the fenced terminal writes.
type JobRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	Claim(ctx context.Context, id, lease uuid.UUID) error
	SetRunning(ctx context.Context, id, lease uuid.UUID, to entity.State) error
	Succeed(ctx context.Context, id, lease uuid.UUID, output entity.ArtifactRef) error
	Fail(ctx context.Context, id, lease uuid.UUID, summary, detail string) error
}

type Config struct {
	Timeout         time.Duration // per-job wall clock, 0 = unlimited
	MaxAttempts     int           // conversion attempts before FAILURE
	RetryBackoff    time.Duration // pause between attempts
	WorkDir         string        // scratch base, empty = system temp
	KeepTemp        bool          // keep per-job scratch dirs for debugging
	ProgressRate    float64       // tracker writes per second per job
	RevokePollEvery time.Duration // how often a running job checks for revocation
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 5 * time.Second
	}
	if c.RevokePollEvery <= 0 {
		c.RevokePollEvery = 15 * time.Second
	}
}

// Processor executes one claimed job end-to-end: fetch the input, run the
// conversion capability with progress reporting, persist the output and
// write the terminal state. All record writes after the claim are fenced
// by the claim's lease, so a result arriving after revocation or deletion
// is discarded instead of resurrecting the job.
type Processor struct {
	repo      JobRepo
	tracker   tracker.Tracker
	store     artifact.Store
	converter convert.Converter
	cfg       Config
}

func NewProcessor(repo JobRepo, trk tracker.Tracker, store artifact.Store, converter convert.Converter, cfg Config) *Processor {
	cfg.applyDefaults()
	return &Processor{
		repo:      repo,
		tracker:   trk,
		store:     store,
		converter: converter,
		cfg:       cfg,
	}
}

func (p *Processor) Process(ctx context.Context, jobID string) error {
	start := time.Now()

	id, err := uuid.Parse(jobID)
	if err != nil {
		log.Printf("[worker] job_id=%s parse_error=%v", jobID, err)
		return err
	}

	// exclusive claim; losers and stale requeues stop here
	lease := uuid.New()
	if err := p.repo.Claim(ctx, id, lease); err != nil {
		switch {
		case errors.Is(err, entity.ErrAlreadyClaimed):
			log.Printf("[worker] job_id=%s claim=lost", id)
			return nil
		case errors.Is(err, entity.ErrTerminal), errors.Is(err, entity.ErrNotFound):
			log.Printf("[worker] job_id=%s claim=stale reason=%v", id, err)
			return nil
		}
		return fmt.Errorf("claim %s: %w", id, err)
	}

	job, err := p.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			// deleted between claim and read
			return nil
		}
		return fmt.Errorf("load %s: %w", id, err)
	}

	log.Printf("[worker] job_id=%s status=started voice=%s", id, job.Voice)

	if job.Input == nil {
		p.fail(id, lease, errors.New("input document missing"), "")
		return nil
	}

	workDir, err := os.MkdirTemp(p.cfg.WorkDir, "job-"+artifact.ShortID(id)+"-")
	if err != nil {
		p.fail(id, lease, fmt.Errorf("create work dir: %w", err), "")
		return nil
	}
	if !p.cfg.KeepTemp {
		defer os.RemoveAll(workDir)
	}

	inputPath, err := p.fetchInput(ctx, *job.Input, workDir)
	if err != nil {
		p.fail(id, lease, err, "")
		return nil
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if p.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	// best-effort early cancellation: the record flip to REVOKED is the
	// authoritative signal, this poll just stops burning CPU sooner
	watcherDone := make(chan struct{})
	go p.watchRevocation(runCtx, id, cancel, watcherDone)

	req := convert.Request{
		JobID:     id,
		InputPath: inputPath,
		WorkDir:   workDir,
		BaseName:  job.Input.Name,
		Voice:     job.Voice,
	}

	res, convErr := p.runAttempts(runCtx, id, lease, req)
	cancel()
	<-watcherDone

	if convErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			convErr = fmt.Errorf("conversion timed out after %s: %w", p.cfg.Timeout, convErr)
		}
		sentry.CaptureException(convErr)
		p.fail(id, lease, convErr, time.Since(start).String())
		log.Printf("[worker] job_id=%s status=failure duration_ms=%d error=%s",
			id, time.Since(start).Milliseconds(), summarize(convErr))
		return nil
	}

	p.succeed(id, lease, req.BaseName, res.OutputPath)
	log.Printf("[worker] job_id=%s status=success duration_ms=%d",
		id, time.Since(start).Milliseconds())
	return nil
}

// runAttempts runs the conversion, retrying transient failures until the
// attempt budget is spent. Each attempt gets a fresh reporter, so the
// monotonic progress clamp resets with it.
func (p *Processor) runAttempts(ctx context.Context, id, lease uuid.UUID, req convert.Request) (*convert.Result, error) {
	var lastErr error

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		rep := newReporter(p.tracker, id.String(), p.cfg.ProgressRate, func() {
			if err := p.repo.SetRunning(ctx, id, lease, entity.StateProcessing); err != nil {
				log.Printf("[worker] job_id=%s set_processing error=%v", id, err)
			}
		})

		res, err := p.converter.Convert(ctx, req, rep.report)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var failure *convert.Failure
		if !errors.As(err, &failure) || !failure.Transient || attempt == p.cfg.MaxAttempts {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}

		// transient: surface the retry to pollers, back off, go again
		if rErr := p.repo.SetRunning(ctx, id, lease, entity.StateRetry); rErr != nil {
			// revoked or deleted meanwhile; the terminal write below
			// will be discarded by the fence either way
			return nil, err
		}
		log.Printf("[worker] job_id=%s status=retry attempt=%d error=%s", id, attempt, summarize(err))

		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(p.cfg.RetryBackoff):
		}
	}
	return nil, lastErr
}

// fetchInput copies the stored source document into the work dir.
func (p *Processor) fetchInput(ctx context.Context, ref entity.ArtifactRef, workDir string) (string, error) {
	rc, err := p.store.Open(ctx, ref)
	if err != nil {
		if errors.Is(err, artifact.ErrMissing) {
			return "", fmt.Errorf("source document %q no longer exists", ref.Name)
		}
		return "", fmt.Errorf("open input: %w", err)
	}
	defer rc.Close()

	path := filepath.Join(workDir, "source"+strings.ToLower(filepath.Ext(ref.Name)))
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("stage input: %w", err)
	}
	if _, err := io.Copy(dst, rc); err != nil {
		dst.Close()
		return "", fmt.Errorf("stage input: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("stage input: %w", err)
	}
	return path, nil
}

func (p *Processor) watchRevocation(ctx context.Context, id uuid.UUID, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.RevokePollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := p.repo.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, entity.ErrNotFound) {
					// deleted out from under us
					cancel()
					return
				}
				// store hiccup, keep running and poll again
				continue
			}
			if job.Status.Terminal() {
				cancel()
				return
			}
		}
	}
}

// succeed persists the produced video, then attempts the fenced terminal
// write. A fence miss means the job was revoked or deleted mid-run: the
// stored output is removed again and the run's result discarded.
func (p *Processor) succeed(id, lease uuid.UUID, baseName, outputPath string) {
	wctx, cancel := p.terminalCtx()
	defer cancel()
	defer p.clearSnapshot(id)

	f, err := os.Open(outputPath)
	if err != nil {
		p.fail(id, lease, fmt.Errorf("open produced video: %w", err), "")
		return
	}
	defer f.Close()

	ref, err := p.store.StoreOutput(wctx, id, baseName, f)
	if err != nil {
		p.fail(id, lease, fmt.Errorf("store output: %w", err), "")
		return
	}

	if err := p.repo.Succeed(wctx, id, lease, ref); err != nil {
		log.Printf("[worker] job_id=%s success_write=discarded reason=%v", id, err)
		if remErr := p.store.Remove(wctx, ref); remErr != nil {
			log.Printf("[worker] job_id=%s discard output %s error=%v", id, ref.Key, remErr)
		}
	}
}

// fail writes the terminal FAILURE: a bounded first-line summary for
// display plus the full diagnostic. A fence miss (revoked, deleted) is
// logged and dropped.
func (p *Processor) fail(id, lease uuid.UUID, cause error, duration string) {
	wctx, cancel := p.terminalCtx()
	defer cancel()
	defer p.clearSnapshot(id)

	summary := summarize(cause)
	detail := diagnostic(cause)
	if duration != "" {
		detail = detail + "\n\nduration: " + duration
	}

	if err := p.repo.Fail(wctx, id, lease, summary, detail); err != nil {
		log.Printf("[worker] job_id=%s failure_write=discarded reason=%v", id, err)
	}
}

// terminalCtx detaches terminal record writes from the run context, so a
// revocation- or shutdown-cancelled run can still record its outcome.
func (p *Processor) terminalCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

func (p *Processor) clearSnapshot(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.tracker.Clear(ctx, id.String()); err != nil {
		log.Printf("[worker] job_id=%s clear snapshot error=%v", id, err)
	}
}

// summarize reduces an error to its display form: the first line,
// truncated to maxSummaryLen runes.
func summarize(err error) string {
	var failure *convert.Failure
	msg := err.Error()
	if errors.As(err, &failure) {
		msg = failure.Msg
	}
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	runes := []rune(msg)
	if len(runes) > maxSummaryLen {
		msg = string(runes[:maxSummaryLen])
	}
	return strings.TrimSpace(msg)
}

// diagnostic extracts the full trace for error_detail.
func diagnostic(err error) string {
	var failure *convert.Failure
	if errors.As(err, &failure) && failure.Trace != "" {
		return failure.Trace
	}
	return err.Error()
}
