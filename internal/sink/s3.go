package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/collectd-forward/agent/internal/ingest"
)

// s3API is the subset of the S3 client the sink uses; tests substitute a fake.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads each batch as one NDJSON object under a key prefix.
// Credentials and region come from the default AWS credential chain.
type S3Sink struct {
	client s3API
	bucket string
	prefix string
}

// NewS3 builds the S3 client from the environment's AWS configuration.
func NewS3(ctx context.Context, bucket, prefix string) (*S3Sink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}
	log.WithField("bucket", bucket).Info("s3 sink ready")
	return &S3Sink{client: s3.NewFromConfig(awsCfg), bucket: bucket, prefix: prefix}, nil
}

// Flush uploads the batch as one object, one JSON line per record in
// batch order. Object keys sort by upload time.
func (s *S3Sink) Flush(batch []ingest.FlatRecord) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for i := range batch {
		if err := enc.Encode(&batch[i]); err != nil {
			return errors.Wrap(err, "serialize record")
		}
	}

	key := fmt.Sprintf("%s/%d-%s.ndjson", s.prefix, time.Now().UnixNano(), uuid.New().String())
	_, err := s.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	return errors.Wrapf(err, "put object %s", key)
}

func (s *S3Sink) Close() error {
	return nil
}
