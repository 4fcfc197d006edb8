package connection

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/st9db/st9.go/pkg/constants"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   error
	}{
		{409, "version conflict", constants.ErrObsoleteVersion},
		{409, "unique index constraint violation\n", constants.ErrDuplicateKey},
		{409, "something else", constants.ErrPersistence},
		{400, "bad query", constants.ErrInvalidClientRequest},
		{500, "oops", constants.ErrUnexpectedRemoteService},
		{418, "teapot", constants.ErrPersistence},
	}

	for _, tc := range cases {
		err := Classify(&Response{Status: tc.status, Body: []byte(tc.body)})
		require.Error(t, err)
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		assert.ErrorIs(t, err, constants.ErrPersistence, "every classified error is a persistence error")

		var perr *constants.PersistenceError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, tc.status, perr.Status)
	}

	assert.NoError(t, Classify(&Response{Status: 201}))
}

func TestRequestInfo(t *testing.T) {
	_, ok := RequestInfoFrom(context.Background())
	assert.False(t, ok)

	ctx := WithRequestInfo(context.Background(), RequestInfo{Referer: "https://example.com/a", SessionID: "s1"})
	info, ok := RequestInfoFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, map[string]string{"Referer": "https://example.com/a", "X-Session-ID": "s1"}, info.Headers())
}

func TestExponentialBackoff(t *testing.T) {
	r := &ExponentialBackoffRetryer{InitialDelay: 10 * time.Millisecond, MaxDelay: 25 * time.Millisecond, Multiplier: 2, MaxRetries: 3}

	d, ok := r.NextDelay(0, nil)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Millisecond, d)

	d, ok = r.NextDelay(2, nil)
	assert.True(t, ok)
	assert.Equal(t, 25*time.Millisecond, d)

	_, ok = r.NextDelay(3, nil)
	assert.False(t, ok)

	_, ok = NoRetry{}.NextDelay(0, nil)
	assert.False(t, ok)
}

func TestNewConfig(t *testing.T) {
	u, _ := url.Parse("http://localhost:7000/st9/")
	cfg := NewConfig(u)
	assert.Equal(t, "http://localhost:7000/st9", cfg.BaseURL)
	assert.NoError(t, cfg.Validate())

	u, _ = url.Parse("ws://localhost:7000")
	assert.ErrorIs(t, NewConfig(u).Validate(), constants.ErrInvalidArgument)
}
