package storage

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/csse-ingest/internal/resilience"
)

// S3API is the subset of the S3 client used by S3Uploader.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader uploads files with PutObject, retrying transient failures.
type S3Uploader struct {
	client S3API
	retry  resilience.RetryConfig
}

// NewS3Client builds an S3 client from a loaded AWS config. A non-empty
// endpoint switches to path-style addressing for MinIO and LocalStack.
func NewS3Client(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
}

// NewS3Uploader returns an uploader over client.
func NewS3Uploader(client S3API, retry resilience.RetryConfig) *S3Uploader {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("storage", "put_object")
	}
	return &S3Uploader{client: client, retry: retry}
}

// Upload streams localPath to s3://bucket/key.
func (u *S3Uploader) Upload(ctx context.Context, localPath, bucket, key string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return eris.Wrapf(err, "storage: stat %s", localPath)
	}

	err = resilience.Do(ctx, u.retry, func(ctx context.Context) error {
		f, err := os.Open(localPath)
		if err != nil {
			return eris.Wrapf(err, "storage: open %s", localPath)
		}
		defer f.Close() //nolint:errcheck

		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(info.Size()),
			ContentType:   aws.String("application/vnd.apache.parquet"),
		})
		return err
	})
	if err != nil {
		return eris.Wrapf(err, "storage: put s3://%s/%s", bucket, key)
	}

	zap.L().Info("uploaded object",
		zap.String("component", "storage"),
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("bytes", info.Size()),
	)
	return nil
}
