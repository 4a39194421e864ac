package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	conf "ppt2video/internal/config"
	"ppt2video/internal/entity"
)

// S3 stores artifacts in an S3-compatible bucket (AWS, R2, minio). Puts
// are synchronous: an artifact must be durable before the record that
// references it is written.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
}

func NewS3(ctx context.Context, c conf.S3Config) (*S3, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKeyID, c.SecretKey, "",
		)),
		config.WithRegion(c.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   c.Bucket,
	}, nil
}

func (s *S3) StoreInput(ctx context.Context, jobID uuid.UUID, filename string, r io.Reader) (entity.ArtifactRef, error) {
	name := InputName(jobID, filename, time.Now())
	ref := entity.ArtifactRef{Name: filepath.Base(filename), Key: inputPrefix + "/" + name}
	if err := s.put(ctx, ref.Key, contentTypeFor(name), r); err != nil {
		return entity.ArtifactRef{}, err
	}
	return ref, nil
}

func (s *S3) StoreOutput(ctx context.Context, jobID uuid.UUID, baseName string, r io.Reader) (entity.ArtifactRef, error) {
	name := OutputName(jobID, baseName)
	ref := entity.ArtifactRef{Name: name, Key: outputPrefix + "/" + name}
	if err := s.put(ctx, ref.Key, "video/mp4", r); err != nil {
		return entity.ArtifactRef{}, err
	}
	return ref, nil
}

func (s *S3) put(ctx context.Context, key, contentType string, r io.Reader) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %q: %w", key, err)
	}
	return nil
}

func (s *S3) Open(ctx context.Context, ref entity.ArtifactRef) (io.ReadCloser, error) {
	if _, _, err := splitKey(ref.Key); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("download %q: %w", ref.Key, err)
	}
	return out.Body, nil
}

func (s *S3) Remove(ctx context.Context, ref entity.ArtifactRef) error {
	if _, _, err := splitKey(ref.Key); err != nil {
		return err
	}
	// DeleteObject on a missing key already succeeds, which matches the
	// Remove contract.
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", ref.Key, err)
	}
	return nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
