package backup

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/otpkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	PutErr error
	GetErr error
	Object string

	LastPut *s3.PutObjectInput
	LastGet *s3.GetObjectInput
	PutBody string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.LastPut = in
	if f.PutErr != nil {
		return nil, f.PutErr
	}
	b, _ := io.ReadAll(in.Body)
	f.PutBody = string(b)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.LastGet = in
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.Object))}, nil
}

func stubAWS(t *testing.T, fake *fakeS3) (*awsconfig.LoadOptions, *s3.Options) {
	t.Helper()
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	var lo awsconfig.LoadOptions
	var so s3.Options
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&so)
		}
		return fake
	}
	return &lo, &so
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
	lo, so := stubAWS(t, &fakeS3{})

	_, err := NewS3Store(context.Background(), S3Config{
		Bucket:    "otpkeeper",
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "us-east-1",
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
	})
	require.NoError(t, err)

	assert.Equal(t, "us-east-1", lo.Region)
	require.NotNil(t, lo.Credentials)
	creds, err := lo.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "minioadmin", creds.AccessKeyID)

	require.NotNil(t, so.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *so.BaseEndpoint)
	assert.True(t, so.UsePathStyle)
}

func TestNewS3Store_DefaultChain(t *testing.T) {
	lo, so := stubAWS(t, &fakeS3{})

	_, err := NewS3Store(context.Background(), S3Config{Bucket: "b", Region: "eu-west-1"})
	require.NoError(t, err)
	assert.Nil(t, lo.Credentials)
	assert.Nil(t, so.BaseEndpoint)
	assert.False(t, so.UsePathStyle)
}

func TestNewS3Store_Errors(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	require.Error(t, err)

	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("load-fail")
	}
	_, err = NewS3Store(context.Background(), S3Config{Bucket: "b"})
	require.ErrorContains(t, err, "load-fail")
}

func TestS3Store_PutGet(t *testing.T) {
	fake := &fakeS3{Object: `{"version":1}`}
	stubAWS(t, fake)
	st, err := NewS3Store(context.Background(), S3Config{Bucket: "vaults"})
	require.NoError(t, err)

	require.NoError(t, st.Put(context.Background(), "me.json", []byte("payload")))
	assert.Equal(t, "vaults", aws.ToString(fake.LastPut.Bucket))
	assert.Equal(t, "me.json", aws.ToString(fake.LastPut.Key))
	assert.Equal(t, "payload", fake.PutBody)

	body, err := st.Get(context.Background(), "me.json")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(body))
	assert.Equal(t, "me.json", aws.ToString(fake.LastGet.Key))
}

func TestS3Store_GetErrors(t *testing.T) {
	fake := &fakeS3{GetErr: &types.NoSuchKey{}}
	stubAWS(t, fake)
	st, err := NewS3Store(context.Background(), S3Config{Bucket: "vaults"})
	require.NoError(t, err)

	_, err = st.Get(context.Background(), "missing.json")
	require.ErrorIs(t, err, common.ErrNotFound)

	fake.GetErr = errors.New("denied")
	_, err = st.Get(context.Background(), "x")
	require.ErrorContains(t, err, "denied")
	require.NotErrorIs(t, err, common.ErrNotFound)

	fake.PutErr = errors.New("quota")
	require.ErrorContains(t, st.Put(context.Background(), "x", nil), "quota")
}
