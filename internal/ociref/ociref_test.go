package ociref

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/distribution/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warpsys/warpforge/internal/werr"
)

func TestParseValid(t *testing.T) {
	ref, err := Parse("docker.io/library/busybox:latest")
	require.NoError(t, err)
	assert.Contains(t, ref.String(), "busybox")
}

func TestParseInvalidIsCatchall(t *testing.T) {
	_, err := Parse("UPPER CASE NOT A REF")
	require.Error(t, err)
	assert.True(t, werr.Is(err, werr.KindCatchall))
}

type flakyUnpacker struct {
	failures int
	calls    int
}

func (f *flakyUnpacker) Unpack(_ context.Context, _ reference.Reference, _ AuthMode, _ string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("registry temporarily unavailable")
	}
	return nil
}

func TestRetryingUnpackerRetriesThenSucceeds(t *testing.T) {
	ref, err := Parse("docker.io/library/busybox:latest")
	require.NoError(t, err)

	inner := &flakyUnpacker{failures: 2}
	r := &RetryingUnpacker{Next: inner, MaxElapsed: time.Second}

	require.NoError(t, r.Unpack(context.Background(), ref, Anonymous, t.TempDir()))
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingUnpackerSurfacesSetupError(t *testing.T) {
	ref, err := Parse("docker.io/library/busybox:latest")
	require.NoError(t, err)

	inner := &flakyUnpacker{failures: 1000}
	r := &RetryingUnpacker{Next: inner, MaxElapsed: 50 * time.Millisecond}

	err = r.Unpack(context.Background(), ref, Anonymous, t.TempDir())
	require.Error(t, err)
	assert.True(t, werr.IsSetupError(err))
}
