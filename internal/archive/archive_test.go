package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/septivank/meter-field-ops/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func fixedStore(t *testing.T, p putter) *Store {
	return &Store{
		client: p,
		bucket: "field-ops",
		now:    func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) },
		logger: zaptest.NewLogger(t),
	}
}

func TestPut_UploadsUnderImportPrefix(t *testing.T) {
	p := &fakePutter{}
	s := fixedStore(t, p)

	key, err := s.Put(context.Background(), "customers", "job-1", "/tmp/upload/DIL.xlsx", []byte("xlsx"))
	require.NoError(t, err)

	assert.Equal(t, "imports/customers/20250601_093000_job-1_DIL.xlsx", key)
	assert.Equal(t, "field-ops", aws.ToString(p.input.Bucket))
	assert.Equal(t, key, aws.ToString(p.input.Key))
	assert.Equal(t, []byte("xlsx"), p.body)
}

func TestPut_WrapsUploadError(t *testing.T) {
	s := fixedStore(t, &fakePutter{err: errors.New("access denied")})

	_, err := s.Put(context.Background(), "arrears", "job-2", "a.xlsx", nil)
	assert.ErrorContains(t, err, "access denied")
}

func TestNewStore_Unconfigured(t *testing.T) {
	s, err := NewStore(context.Background(), config.ArchiveConfig{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	key, err := s.Put(context.Background(), "customers", "job", "f.xlsx", []byte("x"))
	assert.NoError(t, err)
	assert.Empty(t, key)
}
