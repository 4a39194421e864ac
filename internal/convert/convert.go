// Package convert is the boundary to the document-to-video pipeline. The
// rest of the system treats the pipeline as an opaque capability: it hands
// over a local input document, receives progress callbacks, and gets back
// a local video file to persist.
package convert

import (
	"context"

	"github.com/google/uuid"
)

// ProgressFunc receives pipeline progress. Stage is one of the Stage*
// constants, progress a percentage in [0, 100], detail a short human
// readable note ("slide 3 of 7").
type ProgressFunc func(stage string, progress float64, detail string)

type Request struct {
	JobID     uuid.UUID
	InputPath string // local path of the source document
	WorkDir   string // per-job scratch directory, owned by the caller
	BaseName  string // display name of the source, drives the output name
	Voice     string // narration voice id, empty = backend default
}

type Result struct {
	OutputPath string // local path of the produced video inside WorkDir
}

// Failure is a conversion error carrying an operator-facing diagnostic
// trace. Transient failures may be retried by the executor; everything
// else fails the job on first occurrence.
type Failure struct {
	Msg       string
	Trace     string
	Transient bool
}

func (f *Failure) Error() string { return f.Msg }

type Voice struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Locale string `json:"locale"`
	Gender string `json:"gender"`
}

type Converter interface {
	Convert(ctx context.Context, req Request, report ProgressFunc) (*Result, error)
	Voices(ctx context.Context) ([]Voice, error)
}

// Pipeline stages in execution order, as reported to the status tracker.
const (
	StageInitializing   = "initializing"
	StageExportSlides   = "exporting slides"
	StageExtractNotes   = "extracting notes"
	StageGenerateAudio  = "generating audio"
	StageRenderSegments = "rendering video segments"
	StageConcatenate    = "concatenating video"
	StageComplete       = "complete"
)
