package s3store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePresigner struct {
	input   *s3.GetObjectInput
	expires time.Duration
	err     error
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.input = params
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	f.expires = opts.Expires
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/" + aws.ToString(params.Key)}, nil
}

func TestRedirectorURL(t *testing.T) {
	t.Parallel()

	p := &fakePresigner{}
	r, err := NewRedirectorWithPresigner(p, Options{Bucket: "widgets", Prefix: "/zips/", TTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedirectorWithPresigner() error = %v", err)
	}

	got, err := r.URL(context.Background(), "one.zip")
	if err != nil {
		t.Fatalf("URL() error = %v", err)
	}
	if got != "https://signed.example.com/zips/one.zip" {
		t.Fatalf("URL() = %q", got)
	}
	if aws.ToString(p.input.Bucket) != "widgets" {
		t.Fatalf("bucket = %q, want widgets", aws.ToString(p.input.Bucket))
	}
	if aws.ToString(p.input.ResponseContentDisposition) != `attachment; filename="one.zip"` {
		t.Fatalf("content disposition = %q", aws.ToString(p.input.ResponseContentDisposition))
	}
	if p.expires != time.Minute {
		t.Fatalf("expires = %v, want 1m", p.expires)
	}
}

func TestRedirectorDefaultsAndErrors(t *testing.T) {
	t.Parallel()

	p := &fakePresigner{}
	r, err := NewRedirectorWithPresigner(p, Options{Bucket: "widgets"})
	if err != nil {
		t.Fatalf("NewRedirectorWithPresigner() error = %v", err)
	}
	if _, err := r.URL(context.Background(), "one.zip"); err != nil {
		t.Fatalf("URL() error = %v", err)
	}
	if aws.ToString(p.input.Key) != "one.zip" {
		t.Fatalf("key = %q, want one.zip", aws.ToString(p.input.Key))
	}
	if p.expires != defaultTTL {
		t.Fatalf("expires = %v, want %v", p.expires, defaultTTL)
	}

	if _, err := r.URL(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty name")
	}

	signErr := errors.New("no credentials")
	failing, err := NewRedirectorWithPresigner(&fakePresigner{err: signErr}, Options{Bucket: "widgets"})
	if err != nil {
		t.Fatalf("NewRedirectorWithPresigner() error = %v", err)
	}
	if _, err := failing.URL(context.Background(), "one.zip"); !errors.Is(err, signErr) {
		t.Fatalf("URL() error = %v, want %v", err, signErr)
	}

	if _, err := NewRedirectorWithPresigner(p, Options{}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if _, err := NewRedirectorWithPresigner(nil, Options{Bucket: "widgets"}); err == nil {
		t.Fatal("expected error for nil presigner")
	}
}
