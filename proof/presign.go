// Package proof issues presigned S3 URLs for payment proof uploads and for
// admins reviewing them.
package proof

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

var ErrNotProof = errors.New("not a payment proof reference")

const scheme = "s3://"

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible endpoint; empty for AWS
	AccessKey string
	SecretKey string
	Expiry    time.Duration
}

type Presigner struct {
	bucket string
	expiry time.Duration
	client *s3.PresignClient
}

func NewPresigner(ctx context.Context, cfg Config) (*Presigner, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("S3 bucket is required for payment proofs")
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 15 * time.Minute
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Presigner{bucket: cfg.Bucket, expiry: cfg.Expiry, client: s3.NewPresignClient(client)}, nil
}

// Upload is a presigned PUT plus the opaque reference to store on the
// entitlement once the upload is done.
type Upload struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	ProofURL  string    `json:"proof_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectKey places proofs under the user's prefix, partitioned by day.
func ObjectKey(userID string, now time.Time) string {
	return fmt.Sprintf("payment-proofs/%s/%d/%02d/%02d/%s", userID, now.Year(), now.Month(), now.Day(), uuid.New())
}

func (p *Presigner) PresignUpload(ctx context.Context, userID, contentType string) (Upload, error) {
	now := time.Now()
	key := ObjectKey(userID, now)
	in := &s3.PutObjectInput{Bucket: aws.String(p.bucket), Key: aws.String(key)}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	req, err := presignPutObject(p.client, ctx, in, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return Upload{}, fmt.Errorf("presign upload: %w", err)
	}
	return Upload{
		Key:       key,
		UploadURL: req.URL,
		ProofURL:  scheme + p.bucket + "/" + key,
		ExpiresAt: now.Add(p.expiry),
	}, nil
}

// PresignView returns a short-lived GET URL for a proof reference produced by
// PresignUpload.
func (p *Presigner) PresignView(ctx context.Context, proofURL string) (string, error) {
	bucket, key, ok := strings.Cut(strings.TrimPrefix(proofURL, scheme), "/")
	if !strings.HasPrefix(proofURL, scheme) || !ok || bucket != p.bucket || key == "" {
		return "", ErrNotProof
	}
	req, err := presignGetObject(p.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return "", fmt.Errorf("presign view: %w", err)
	}
	return req.URL, nil
}
