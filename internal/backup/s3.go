package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const jsonlContentType = "application/x-ndjson"

// S3Options configures an S3Destination.
type S3Options struct {
	Bucket   string
	Key      string // empty means ReplicaKey(ReplicaID)
	Region   string
	Endpoint string // non-empty enables path-style addressing (MinIO and similar)

	// ReplicaID is recorded on every object so backups from several
	// replicas can be told apart.
	ReplicaID string
}

// ReplicaKey is the object key used when no key is configured.
func ReplicaKey(replicaID string) string {
	if replicaID == "" {
		return "board/comments.jsonl"
	}
	return "board/" + replicaID + "/comments.jsonl"
}

// S3Destination uploads each board export to one object in an
// S3-compatible bucket. The export header is copied into object metadata
// so the comment count and format can be read without fetching the body.
type S3Destination struct {
	client  *s3.Client
	bucket  string
	key     string
	replica string
}

// NewS3Destination loads the default AWS credential chain for opts.Region
// and returns a destination for opts.Bucket.
func NewS3Destination(ctx context.Context, opts S3Options) (*S3Destination, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 backup: bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	key := opts.Key
	if key == "" {
		key = ReplicaKey(opts.ReplicaID)
	}
	return &S3Destination{client: client, bucket: opts.Bucket, key: key, replica: opts.ReplicaID}, nil
}

// Key returns the object key backups are written to.
func (d *S3Destination) Key() string { return d.key }

// Write uploads an ExportJSONL payload, replacing the previous object.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	h, err := readHeader(data)
	if err != nil {
		return fmt.Errorf("s3 backup: %w", err)
	}

	meta := map[string]string{
		"board-format-version": h.Version,
		"board-comment-count":  strconv.Itoa(h.CommentCount),
		"board-exported-at":    h.Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if d.replica != "" {
		meta["board-replica"] = d.replica
	}

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(jsonlContentType),
		Metadata:    meta,
	})
	if err != nil {
		return fmt.Errorf("s3 put object %s/%s: %w", d.bucket, d.key, err)
	}
	return nil
}

// readHeader decodes the first line of an export.
func readHeader(data []byte) (header, error) {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode export header: %w", err)
	}
	if h.Type != "header" {
		return h, fmt.Errorf("export does not start with a header record")
	}
	return h, nil
}
