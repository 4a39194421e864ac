// Package artifact persists job artifacts: the uploaded source document
// and the produced video. Keys are backend specific; callers treat them
// as opaque and keep them inside entity.ArtifactRef.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"ppt2video/internal/entity"
)

// ErrMissing is returned by Open when the blob behind a ref is gone.
// Remove never returns it.
var ErrMissing = errors.New("artifact missing")

type Store interface {
	// StoreInput persists an uploaded document and returns a ref whose
	// Name is the original file name.
	StoreInput(ctx context.Context, jobID uuid.UUID, filename string, r io.Reader) (entity.ArtifactRef, error)
	// StoreOutput persists a produced video under the canonical
	// {stem}_{id8}.mp4 name derived from baseName.
	StoreOutput(ctx context.Context, jobID uuid.UUID, baseName string, r io.Reader) (entity.ArtifactRef, error)
	Open(ctx context.Context, ref entity.ArtifactRef) (io.ReadCloser, error)
	// Remove deletes the blob behind ref. Removing a missing blob is not
	// an error.
	Remove(ctx context.Context, ref entity.ArtifactRef) error
}

const (
	inputPrefix  = "uploads"
	outputPrefix = "videos"

	maxStemLen = 50
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeName strips path components and characters that are unsafe in file
// names and object keys.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	return name
}

// ShortID is the first 8 hex chars of a job id, used in artifact names.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}

func safeStem(name string) string {
	stem := SafeName(name)
	if ext := filepath.Ext(stem); ext != "" {
		stem = strings.TrimSuffix(stem, ext)
	}
	stem = strings.Trim(stem, "._")
	if stem == "" {
		stem = "file"
	}
	if len(stem) > maxStemLen {
		stem = stem[:maxStemLen]
	}
	return stem
}

// InputName builds the stored name for an uploaded document:
// {unix}_{id8}_{stem}{ext}.
func InputName(jobID uuid.UUID, original string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%d_%s_%s%s", now.Unix(), ShortID(jobID), safeStem(original), ext)
}

// OutputName builds the produced video name: {stem}_{id8}.mp4.
func OutputName(jobID uuid.UUID, baseName string) string {
	return fmt.Sprintf("%s_%s.mp4", safeStem(baseName), ShortID(jobID))
}

// splitKey breaks an opaque key into its prefix and blob name, rejecting
// anything that could escape the backend roots.
func splitKey(key string) (prefix, name string, err error) {
	prefix, name, ok := strings.Cut(key, "/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", "", fmt.Errorf("malformed artifact key %q", key)
	}
	if prefix != inputPrefix && prefix != outputPrefix {
		return "", "", fmt.Errorf("unknown artifact key prefix %q", prefix)
	}
	return prefix, name, nil
}
