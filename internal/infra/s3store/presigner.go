// Package s3store hands out short-lived presigned links to widget archives in S3.
package s3store

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const defaultTTL = 5 * time.Minute

// Presigner is the part of *s3.PresignClient used here.
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Options struct {
	Bucket string
	Prefix string
	Region string
	TTL    time.Duration
}

// Redirector presigns GET requests for archives stored under Bucket/Prefix.
type Redirector struct {
	presigner Presigner
	bucket    string
	prefix    string
	ttl       time.Duration
}

// NewRedirector loads the default AWS credential chain for the region.
func NewRedirector(ctx context.Context, opts Options) (*Redirector, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(opts.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewRedirectorWithPresigner(s3.NewPresignClient(s3.NewFromConfig(cfg)), opts)
}

func NewRedirectorWithPresigner(p Presigner, opts Options) (*Redirector, error) {
	if p == nil {
		return nil, fmt.Errorf("presigner is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Redirector{
		presigner: p,
		bucket:    bucket,
		prefix:    strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		ttl:       ttl,
	}, nil
}

func (r *Redirector) URL(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("asset name is required")
	}

	key := name
	if r.prefix != "" {
		key = path.Join(r.prefix, name)
	}

	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(r.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(fmt.Sprintf("attachment; filename=%q", path.Base(name))),
	}, func(o *s3.PresignOptions) { o.Expires = r.ttl })
	if err != nil {
		return "", fmt.Errorf("failed to presign %q: %w", key, err)
	}
	return req.URL, nil
}
