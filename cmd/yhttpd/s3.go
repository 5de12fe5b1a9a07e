package main

import (
	"context"
	stderrors "errors"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yllibed/httpserver/internal/config"
	"github.com/yllibed/httpserver/internal/errors"
)

var errNoCredentials = stderrors.New("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are not set")

// newS3Client builds an S3 client from the bucket section and the standard
// AWS environment variables.
func newS3Client(b config.BucketConfig) (*s3.Client, error) {
	region := b.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = os.Getenv("AWS_DEFAULT_REGION")
	}
	if region == "" {
		return nil, errors.New(errors.CodeBucketClient).
			WithField("bucket.region").
			WithDetail("no region configured and AWS_REGION is not set")
	}

	opts := s3.Options{
		Region:       region,
		UsePathStyle: b.PathStyle,
		Credentials:  aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
	}
	if b.Endpoint != "" {
		opts.BaseEndpoint = aws.String(b.Endpoint)
	}
	return s3.New(opts), nil
}

func envCredentials(context.Context) (aws.Credentials, error) {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, errNoCredentials
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "Environment",
	}, nil
}
