package tracing

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampler(t *testing.T) {
	assert.Contains(t, Sampler("always_off", "").Description(), "AlwaysOff")
	assert.Contains(t, Sampler("traceidratio", "0.25").Description(), "0.25")
	assert.Equal(t, "AlwaysOnSampler", Sampler("traceidratio", "junk").Description(), "unparsable ratio means sample everything")
	assert.Contains(t, Sampler("", "").Description(), "ParentBased")
}

func TestDisabledSDKReturnsNoopShutdown(t *testing.T) {
	t.Setenv("OTEL_SDK_DISABLED", "true")
	shutdown, err := Init(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
