package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Client defines the minimal S3 client interface needed for index operations.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// FileEntry records one archived file in the remote index.
type FileEntry struct {
	Mtime time.Time `json:"mtime"`
	Size  int64     `json:"size"`
}

// Index is the remote JSON record of everything archived from a project.
type Index struct {
	Version int                  `json:"version"`
	Files   map[string]FileEntry `json:"files"`
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		Version: 1,
		Files:   make(map[string]FileEntry),
	}
}

// LoadIndex downloads and parses the archive index from S3.
// Returns an empty index if the object doesn't exist (first run).
// Returns an error for other failures (network, permissions, corrupt JSON).
func LoadIndex(ctx context.Context, client S3Client, bucket, key string) (*Index, error) {
	output, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return NewIndex(), nil
		}
		return nil, fmt.Errorf("downloading archive index: %w", err)
	}
	defer func() { _ = output.Body.Close() }()

	var idx Index
	if err := json.NewDecoder(output.Body).Decode(&idx); err != nil {
		return nil, fmt.Errorf("parsing archive index JSON: %w", err)
	}

	if idx.Version != 1 {
		return nil, fmt.Errorf("unsupported archive index version: %d", idx.Version)
	}

	if idx.Files == nil {
		idx.Files = make(map[string]FileEntry)
	}

	return &idx, nil
}

// SaveIndex uploads the archive index to S3 as JSON.
func SaveIndex(ctx context.Context, client S3Client, bucket, key string, idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling archive index: %w", err)
	}

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})

	if err != nil {
		return fmt.Errorf("uploading archive index: %w", err)
	}

	return nil
}
