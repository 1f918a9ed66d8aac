package objstore

import (
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in         string
		secureIn   bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{in: "minio:9000", wantHost: "minio:9000"},
		{in: "minio:9000", secureIn: true, wantHost: "minio:9000", wantSecure: true},
		{in: "http://minio:9000", secureIn: true, wantHost: "minio:9000"},
		{in: "https://s3.amazonaws.com/", wantHost: "s3.amazonaws.com", wantSecure: true},
		{in: "ftp://x", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, c := range cases {
		c := c
		t.Run(c.in, func(t *testing.T) {
			t.Parallel()
			host, secure, err := ParseEndpoint(c.in, c.secureIn)
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, c.wantHost, host)
			require.Equal(t, c.wantSecure, secure)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	err := classify(minio.ErrorResponse{Code: "NoSuchKey"}, "b", "k.csv")
	require.ErrorIs(t, err, ErrNotFound)

	err = classify(errors.New("connection refused"), "b", "k.csv")
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "s3://b/k.csv")
}

func TestNewDoesNotDial(t *testing.T) {
	t.Parallel()

	c, err := New(Config{Endpoint: "http://127.0.0.1:1", AccessKey: "a", SecretKey: "s"})
	require.NoError(t, err)
	require.NotNil(t, c)
}
