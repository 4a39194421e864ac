package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Simulator stands in for the real soffice/ffmpeg/tts pipeline in dev and
// test environments. It walks the real stage sequence on a timer and
// produces a placeholder mp4 in the work dir.
type Simulator struct {
	StepDelay time.Duration
	Slides    int
}

func NewSimulator(stepDelay time.Duration) *Simulator {
	if stepDelay <= 0 {
		stepDelay = 500 * time.Millisecond
	}
	return &Simulator{StepDelay: stepDelay, Slides: 5}
}

var simVoices = []Voice{
	{ID: "en-US-GuyNeural", Name: "Guy", Locale: "en-US", Gender: "Male"},
	{ID: "en-US-JennyNeural", Name: "Jenny", Locale: "en-US", Gender: "Female"},
	{ID: "zh-CN-XiaoxiaoNeural", Name: "Xiaoxiao", Locale: "zh-CN", Gender: "Female"},
	{ID: "zh-CN-YunxiNeural", Name: "Yunxi", Locale: "zh-CN", Gender: "Male"},
}

func (s *Simulator) Voices(ctx context.Context) ([]Voice, error) {
	out := make([]Voice, len(simVoices))
	copy(out, simVoices)
	return out, nil
}

func (s *Simulator) knownVoice(id string) bool {
	for _, v := range simVoices {
		if v.ID == id {
			return true
		}
	}
	return false
}

func (s *Simulator) Convert(ctx context.Context, req Request, report ProgressFunc) (*Result, error) {
	if req.Voice != "" && !s.knownVoice(req.Voice) {
		return nil, &Failure{
			Msg:   fmt.Sprintf("unknown voice %q", req.Voice),
			Trace: fmt.Sprintf("voice %q is not in the installed voice set", req.Voice),
		}
	}
	if _, err := os.Stat(req.InputPath); err != nil {
		return nil, &Failure{
			Msg:   "source document unreadable",
			Trace: err.Error(),
		}
	}

	report(StageInitializing, 0, "")

	if err := s.step(ctx, report, StageExportSlides, 5, 25, ""); err != nil {
		return nil, err
	}
	if err := s.step(ctx, report, StageExtractNotes, 25, 35, ""); err != nil {
		return nil, err
	}

	// per-slide phases carry the slide counter in detail
	if err := s.slideLoop(ctx, report, StageGenerateAudio, 35, 70); err != nil {
		return nil, err
	}
	if err := s.slideLoop(ctx, report, StageRenderSegments, 70, 90); err != nil {
		return nil, err
	}

	if err := s.step(ctx, report, StageConcatenate, 90, 97, ""); err != nil {
		return nil, err
	}

	out := filepath.Join(req.WorkDir, "video.mp4")
	if err := os.WriteFile(out, placeholderMP4(req), 0o644); err != nil {
		return nil, &Failure{Msg: "write video", Trace: err.Error(), Transient: true}
	}

	report(StageComplete, 100, "")
	return &Result{OutputPath: out}, nil
}

func (s *Simulator) step(ctx context.Context, report ProgressFunc, stage string, from, to float64, detail string) error {
	report(stage, from, detail)
	if err := s.pause(ctx); err != nil {
		return err
	}
	report(stage, to, detail)
	return nil
}

func (s *Simulator) slideLoop(ctx context.Context, report ProgressFunc, stage string, from, to float64) error {
	n := s.Slides
	if n <= 0 {
		n = 1
	}
	span := to - from
	for i := 1; i <= n; i++ {
		detail := fmt.Sprintf("slide %d of %d", i, n)
		report(stage, from+span*float64(i-1)/float64(n), detail)
		if err := s.pause(ctx); err != nil {
			return err
		}
	}
	report(stage, to, "")
	return nil
}

func (s *Simulator) pause(ctx context.Context) error {
	timer := time.NewTimer(s.StepDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// placeholderMP4 is a stub payload, not a playable file.
func placeholderMP4(req Request) []byte {
	header := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}
	return append(header, []byte(fmt.Sprintf("\nsimulated render of %s (voice=%s)\n", req.BaseName, req.Voice))...)
}
