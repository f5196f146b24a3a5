package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/rs/zerolog"

	"comfy-worker/internal/entity"
	"comfy-worker/internal/pipeline"
)

// S3Uploader delivers collected artifacts to an S3-compatible bucket.
// Credentials are read per job from {keyPrefix}AWS_ACCESS_KEY_ID and
// {keyPrefix}AWS_SECRET_ACCESS_KEY, so one worker can serve jobs bound
// to different buckets.
type S3Uploader struct {
	log zerolog.Logger
}

func NewS3Uploader(log zerolog.Logger) *S3Uploader {
	return &S3Uploader{log: log.With().Str("component", "s3").Logger()}
}

// Upload stores each file under {jobID}/{filename} and returns the
// object URLs in file order.
func (u *S3Uploader) Upload(ctx context.Context, jobID string, files []pipeline.CollectedFile, spec *entity.OutputSpec) ([]string, error) {
	accessKey := os.Getenv(spec.KeyPrefix + "AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv(spec.KeyPrefix + "AWS_SECRET_ACCESS_KEY")
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("missing %sAWS_ACCESS_KEY_ID / %sAWS_SECRET_ACCESS_KEY in environment",
			spec.KeyPrefix, spec.KeyPrefix)
	}

	endpoint := strings.TrimRight(spec.EndpointURL, "/")
	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String(os.Getenv("AWS_REGION")),
		Endpoint:         aws.String(endpoint),
		Credentials:      credentials.NewStaticCredentials(accessKey, secretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}
	svc := s3.New(sess)

	urls := make([]string, 0, len(files))
	for _, f := range files {
		key := jobID + "/" + f.Name
		_, err := svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(spec.Bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(f.Data),
			ContentType: aws.String(f.ContentType),
		})
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", key, err)
		}
		urls = append(urls, fmt.Sprintf("%s/%s/%s", endpoint, spec.Bucket, key))
		u.log.Info().Str("bucket", spec.Bucket).Str("key", key).Int("bytes", len(f.Data)).Msg("artifact uploaded")
	}

	return urls, nil
}
