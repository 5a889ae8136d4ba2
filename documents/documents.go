/*
Copyright 2024 Pitchroom Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/pitchroom/dealflow/config"
)

// Store is the narrow document-service boundary the orchestrator depends
// on. Values written through it are referenced by key only; the saga
// never inspects document contents.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// ProposalKey returns the conventional storage key for a deal's proposal document.
func ProposalKey(dealID string) string {
	return fmt.Sprintf("proposals/%s/proposal.json", dealID)
}

// ContractKey returns the conventional storage key for a deal's production agreement.
func ContractKey(dealID string) string {
	return fmt.Sprintf("contracts/%s/production-agreement.json", dealID)
}

// S3Store persists deal documents to an S3 bucket.
type S3Store struct {
	client *s3.S3
	bucket string
}

// NewS3Store builds an S3-backed document store from the configured
// bucket, region and credentials. A custom endpoint supports
// S3-compatible stores in development.
func NewS3Store(conf *config.DocumentStoreConfig) (*S3Store, error) {
	awsConfig := &aws.Config{
		Region: aws.String(conf.Region),
	}
	if conf.AwsAccessKeyId != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(conf.AwsAccessKeyId, conf.AwsSecretAccessKey, "")
	}
	if conf.Endpoint != "" {
		awsConfig.Endpoint = aws.String(conf.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}
	return &S3Store{client: s3.New(sess), bucket: conf.Bucket}, nil
}

// Put writes data under key and returns the key as the stable reference.
// Re-running the same step overwrites the object in place, so the write
// is safe to retry after a crash.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Get reads the document stored under key.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			logrus.Error(err)
		}
	}(out.Body)
	return io.ReadAll(out.Body)
}
