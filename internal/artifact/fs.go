package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	conf "ppt2video/internal/config"
	"ppt2video/internal/entity"
)

// New builds the configured artifact store backend.
func New(ctx context.Context, c conf.ArtifactsConfig) (Store, error) {
	switch c.Backend {
	case "s3":
		return NewS3(ctx, c.S3)
	case "fs", "":
		return NewFS(c.UploadDir, c.OutputDir)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", c.Backend)
	}
}

// FS stores artifacts on the local filesystem: uploads and produced
// videos live in two separate directories so they can sit on different
// volumes.
type FS struct {
	uploadDir string
	outputDir string
}

func NewFS(uploadDir, outputDir string) (*FS, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
		}
	}
	return &FS{uploadDir: uploadDir, outputDir: outputDir}, nil
}

func (f *FS) dirFor(prefix string) string {
	if prefix == outputPrefix {
		return f.outputDir
	}
	return f.uploadDir
}

func (f *FS) path(ref entity.ArtifactRef) (string, error) {
	prefix, name, err := splitKey(ref.Key)
	if err != nil {
		return "", err
	}
	return filepath.Join(f.dirFor(prefix), name), nil
}

func (f *FS) StoreInput(ctx context.Context, jobID uuid.UUID, filename string, r io.Reader) (entity.ArtifactRef, error) {
	name := InputName(jobID, filename, time.Now())
	ref := entity.ArtifactRef{Name: filepath.Base(filename), Key: inputPrefix + "/" + name}
	if err := f.write(filepath.Join(f.uploadDir, name), r); err != nil {
		return entity.ArtifactRef{}, err
	}
	return ref, nil
}

func (f *FS) StoreOutput(ctx context.Context, jobID uuid.UUID, baseName string, r io.Reader) (entity.ArtifactRef, error) {
	name := OutputName(jobID, baseName)
	ref := entity.ArtifactRef{Name: name, Key: outputPrefix + "/" + name}
	if err := f.write(filepath.Join(f.outputDir, name), r); err != nil {
		return entity.ArtifactRef{}, err
	}
	return ref, nil
}

func (f *FS) write(path string, r io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return dst.Close()
}

func (f *FS) Open(ctx context.Context, ref entity.ArtifactRef) (io.ReadCloser, error) {
	path, err := f.path(ref)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissing
		}
		return nil, err
	}
	return file, nil
}

func (f *FS) Remove(ctx context.Context, ref entity.ArtifactRef) error {
	path, err := f.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
