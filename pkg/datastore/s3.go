package datastore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/catto/models/pkg/config"
	"github.com/sirupsen/logrus"
)

// Compile-time interface check.
var _ Datastore = (*s3Store)(nil)

// s3Store keeps one JSON object per row at {prefix}/{table}/{id}.json.
type s3Store struct {
	log    logrus.FieldLogger
	cfg    *config.S3DatastoreConfig
	client *s3.Client
}

// NewS3 creates a Datastore backed by S3-compatible object storage.
func NewS3(log logrus.FieldLogger, cfg *config.S3DatastoreConfig) Datastore {
	return &s3Store{
		log:    log.WithField("component", "datastore"),
		cfg:    cfg,
		client: newS3Client(cfg),
	}
}

func newS3Client(cfg *config.S3DatastoreConfig) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		} else {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

// Start verifies the bucket is reachable.
func (s *s3Store) Start(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.cfg.Bucket),
	}); err != nil {
		return fmt.Errorf("checking bucket s3://%s: %w", s.cfg.Bucket, err)
	}

	s.log.WithFields(logrus.Fields{
		"bucket": s.cfg.Bucket,
		"prefix": s.cfg.Prefix,
	}).Info("Datastore connected")

	return nil
}

// Stop is a no-op; the S3 client holds no connections to release.
func (s *s3Store) Stop() error {
	return nil
}

func (s *s3Store) Get(ctx context.Context, q GetQuery) (Row, error) {
	return s.getObject(ctx, s.objectKey(q.Table, q.ID))
}

func (s *s3Store) Scan(ctx context.Context, q ScanQuery) ([]Row, error) {
	prefix := s.tablePrefix(q.Table)

	paginator := s3.NewListObjectsV2Paginator(
		s.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(s.cfg.Bucket),
			Prefix: aws.String(prefix),
		},
	)

	var rows []Row

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing objects under %q: %w", prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.HasSuffix(*obj.Key, ".json") {
				continue
			}

			row, err := s.getObject(ctx, *obj.Key)
			if errors.Is(err, ErrNotFound) {
				// Deleted between list and get.
				continue
			}

			if err != nil {
				return nil, err
			}

			if matches(row, q.Params) {
				rows = append(rows, row)
			}
		}
	}

	return paginate(rows, q.Paginate), nil
}

func (s *s3Store) Update(ctx context.Context, q UpdateQuery) (Row, error) {
	key := s.objectKey(q.Table, q.ID)

	row, err := s.getObject(ctx, key)
	if err != nil {
		return nil, err
	}

	data, err := encodeRow(q.ID, merge(row, q.Data))
	if err != nil {
		return nil, fmt.Errorf("encoding %s row %s: %w", q.Table, q.ID, err)
	}

	if err := s.putObject(ctx, key, data, false); err != nil {
		return nil, err
	}

	return decodeRow(data)
}

func (s *s3Store) Create(ctx context.Context, q CreateQuery) (Row, error) {
	data, err := encodeRow(q.ID, q.Data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s row %s: %w", q.Table, q.ID, err)
	}

	if err := s.putObject(ctx, s.objectKey(q.Table, q.ID), data, true); err != nil {
		return nil, err
	}

	return decodeRow(data)
}

func (s *s3Store) getObject(ctx context.Context, key string) (Row, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("getting s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}

	row, err := decodeRow(body)
	if err != nil {
		return nil, fmt.Errorf("decoding s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}

	return row, nil
}

// putObject writes a row. When create is set the write is conditional on
// the key not existing yet.
func (s *s3Store) putObject(ctx context.Context, key string, data []byte, create bool) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}

	if create {
		input.IfNoneMatch = aws.String("*")
	}

	s.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": s.cfg.Bucket,
	}).Debug("Writing row")

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("writing s3://%s/%s: %w", s.cfg.Bucket, key, err)
	}

	return nil
}

// tablePrefix returns the key prefix all rows of a table live under.
func (s *s3Store) tablePrefix(table string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	if prefix == "" {
		return table + "/"
	}

	return prefix + "/" + table + "/"
}

func (s *s3Store) objectKey(table, id string) string {
	return s.tablePrefix(table) + id + ".json"
}
