package faqcatalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yanqian/faq-search/internal/domain/faq"
)

// ObjectStoreConfig locates catalog artifacts in an S3-compatible bucket (S3, R2, MinIO).
type ObjectStoreConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
}

// ObjectStoreSource reads and publishes the catalog artifacts under a bucket prefix.
type ObjectStoreSource struct {
	client *minio.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// NewObjectStoreSource constructs the source.
func NewObjectStoreSource(cfg ObjectStoreConfig, logger *slog.Logger) (*ObjectStoreSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("object store bucket is not configured")
	}
	client, err := minio.New(sanitizeEndpoint(cfg.Endpoint), &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       !strings.HasPrefix(strings.ToLower(strings.TrimSpace(cfg.Endpoint)), "http://"),
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("init object store client: %w", err)
	}
	return &ObjectStoreSource{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger.With("component", "faqcatalog.objectstore"),
	}, nil
}

// Load downloads and decodes the three artifacts.
func (s *ObjectStoreSource) Load(ctx context.Context) (faq.Dataset, error) {
	ds := faq.Dataset{Source: fmt.Sprintf("s3://%s/%s", s.bucket, s.prefix)}

	var err error
	if err := s.get(ctx, QuestionsFile, func(r io.Reader) error {
		ds.Questions, err = DecodeQuestions(r)
		return err
	}); err != nil {
		return faq.Dataset{}, err
	}
	if err := s.get(ctx, AnswersFile, func(r io.Reader) error {
		ds.Answers, err = DecodeAnswers(r)
		return err
	}); err != nil {
		return faq.Dataset{}, err
	}
	if err := s.get(ctx, EmbeddingsFile, func(r io.Reader) error {
		ds.Embeddings, err = ReadEmbeddings(r)
		return err
	}); err != nil {
		return faq.Dataset{}, err
	}
	return ds, nil
}

// Store uploads ds, creating the bucket when missing.
func (s *ObjectStoreSource) Store(ctx context.Context, ds faq.Dataset) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	var buf bytes.Buffer
	if err := EncodeJSON(&buf, ds.Questions); err != nil {
		return err
	}
	if err := s.put(ctx, QuestionsFile, buf.Bytes(), "application/json"); err != nil {
		return err
	}

	buf.Reset()
	if err := EncodeJSON(&buf, ds.Answers); err != nil {
		return err
	}
	if err := s.put(ctx, AnswersFile, buf.Bytes(), "application/json"); err != nil {
		return err
	}

	buf.Reset()
	if err := WriteEmbeddings(&buf, ds.Embeddings); err != nil {
		return err
	}
	return s.put(ctx, EmbeddingsFile, buf.Bytes(), "application/octet-stream")
}

func (s *ObjectStoreSource) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *ObjectStoreSource) get(ctx context.Context, name string, fn func(io.Reader) error) error {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(name), minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("get %s: %w", s.key(name), err)
	}
	defer obj.Close()
	if _, err := obj.Stat(); err != nil {
		return fmt.Errorf("stat %s: %w", s.key(name), err)
	}
	return fn(obj)
}

func (s *ObjectStoreSource) put(ctx context.Context, name string, data []byte, contentType string) error {
	info, err := s.client.PutObject(ctx, s.bucket, s.key(name), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:      contentType,
		DisableMultipart: len(data) < 5*1024*1024,
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", s.key(name), err)
	}
	s.logger.Info("catalog artifact uploaded", "key", info.Key, "size", info.Size)
	return nil
}

func (s *ObjectStoreSource) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err == nil && exists {
		return nil
	}
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	if err != nil && minio.ToErrorResponse(err).Code != "BucketAlreadyOwnedByYou" {
		return err
	}
	return nil
}

// sanitizeEndpoint removes schemes and paths to satisfy minio.New expectations.
func sanitizeEndpoint(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	if i := strings.Index(raw, "/"); i >= 0 {
		raw = raw[:i]
	}
	return raw
}

var _ faq.CatalogSource = (*ObjectStoreSource)(nil)
