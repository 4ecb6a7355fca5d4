package sessionstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/Amund211/pitwall/internal/domain"
	"github.com/Amund211/pitwall/internal/reporting"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const objectPrefix = "sessions"

type MinioSessionStore struct {
	client *minio.Client
	bucket string
	codec  Codec
	tracer trace.Tracer
}

func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// NewMinioSessionStore creates the bucket if it does not exist
func NewMinioSessionStore(ctx context.Context, client *minio.Client, bucket string, codec Codec) (*MinioSessionStore, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioSessionStore{
		client: client,
		bucket: bucket,
		codec:  codec,
		tracer: otel.Tracer("pitwall/sessionstore/minio"),
	}, nil
}

func objectName(key domain.SessionKey) string {
	return path.Join(objectPrefix, key.BlobName()+".bin")
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}

func (s *MinioSessionStore) Get(ctx context.Context, key domain.SessionKey) (*domain.SessionEntry, error) {
	ctx, span := s.tracer.Start(ctx, "MinioSessionStore.Get", trace.WithAttributes(
		attribute.String("session", key.String()),
	))
	defer span.End()

	name := objectName(key)

	object, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreMiss, key.String())
		}
		err := fmt.Errorf("failed to get object: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session": key.String(),
			"object":  name,
		})
		return nil, err
	}
	defer object.Close()

	// GetObject is lazy, missing objects surface on the first read
	blob, err := io.ReadAll(object)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreMiss, key.String())
		}
		err := fmt.Errorf("failed to read object: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session": key.String(),
			"object":  name,
		})
		return nil, err
	}

	entry, err := s.codec.Decode(blob)
	if err != nil {
		err := fmt.Errorf("failed to decode stored session: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session": key.String(),
			"object":  name,
		})
		return nil, err
	}

	if entry.Key != key {
		return nil, fmt.Errorf("%w: stored entry for %s belongs to %s", domain.ErrStoreMiss, key.String(), entry.Key.String())
	}

	return entry, nil
}

func (s *MinioSessionStore) Put(ctx context.Context, entry *domain.SessionEntry) error {
	ctx, span := s.tracer.Start(ctx, "MinioSessionStore.Put", trace.WithAttributes(
		attribute.String("session", entry.Key.String()),
	))
	defer span.End()

	blob, err := s.codec.Encode(entry)
	if err != nil {
		err := fmt.Errorf("failed to encode session: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session": entry.Key.String(),
		})
		return err
	}

	name := objectName(entry.Key)
	_, err = s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(blob), int64(len(blob)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		err := fmt.Errorf("failed to put object: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"session": entry.Key.String(),
			"object":  name,
		})
		return err
	}

	return nil
}
