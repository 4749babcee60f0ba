package proof

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresigner(t *testing.T) *Presigner {
	t.Helper()
	p, err := NewPresigner(context.Background(), Config{
		Bucket:    "proofs",
		Region:    "us-east-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)
	return p
}

func TestPresignUpload(t *testing.T) {
	p := newTestPresigner(t)

	up, err := p.PresignUpload(context.Background(), "u-1", "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.Key, "payment-proofs/u-1/"))
	assert.True(t, strings.HasPrefix(up.UploadURL, "http://127.0.0.1:9000/proofs/payment-proofs/u-1/"), up.UploadURL)
	assert.Contains(t, up.UploadURL, "X-Amz-Signature=")
	assert.Equal(t, "s3://proofs/"+up.Key, up.ProofURL)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), up.ExpiresAt, time.Minute)

	view, err := p.PresignView(context.Background(), up.ProofURL)
	require.NoError(t, err)
	assert.Contains(t, view, up.Key)
}

func TestPresignViewRejectsForeignReferences(t *testing.T) {
	p := newTestPresigner(t)
	for _, ref := range []string{"", "https://evil.example.com/x.png", "s3://other/key", "s3://proofs/", "s3://proofs"} {
		_, err := p.PresignView(context.Background(), ref)
		assert.ErrorIs(t, err, ErrNotProof, ref)
	}
}

func TestNewPresignerErrors(t *testing.T) {
	_, err := NewPresigner(context.Background(), Config{})
	assert.Error(t, err)

	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no profile")
	}
	_, err = NewPresigner(context.Background(), Config{Bucket: "proofs"})
	assert.ErrorContains(t, err, "no profile")
}

func TestObjectKeyLayout(t *testing.T) {
	key := ObjectKey("u-9", time.Date(2026, 4, 7, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(key, "payment-proofs/u-9/2026/04/07/"), key)
}
