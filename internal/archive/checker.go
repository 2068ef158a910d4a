package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// headAPI defines the minimal S3 client interface needed for checking object existence.
type headAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// ShouldArchive checks if a file still needs uploading by comparing with the
// remote object. Returns true if the object is missing or differs in size,
// false if an identical copy already exists.
func ShouldArchive(ctx context.Context, client headAPI, bucket, key string, localSize int64) (bool, error) {
	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		var nsk *types.NoSuchKey
		var nf *types.NotFound
		if errors.As(err, &nsk) || errors.As(err, &nf) {
			return true, nil
		}
		return false, fmt.Errorf("head object %s: %w", key, err)
	}

	if head.ContentLength == nil {
		return true, nil
	}

	if *head.ContentLength != localSize {
		return true, nil
	}

	return false, nil
}
