package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_RejectsMalformedEnv(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantMsg string
	}{
		{name: "duration", key: "HTTP_READ_TIMEOUT", value: "bad", wantMsg: "HTTPReadTimeout"},
		{name: "worker count", key: "WORKER_CONCURRENCY", value: "four", wantMsg: "WorkerConcurrency"},
		{name: "bucket refill", key: "AI_USER_REFILL_PER_SEC", value: "fast", wantMsg: "AIUserRefillPerSec"},
		{name: "analysis toggle", key: "AI_ANALYSIS_ENABLED", value: "sometimes", wantMsg: "AIAnalysisEnabled"},
		{name: "sample ratio above one", key: "OTEL_TRACES_SAMPLER_ARG", value: "1.5", wantMsg: "OTEL_TRACES_SAMPLER_ARG"},
		{name: "negative sample ratio", key: "OTEL_TRACES_SAMPLER_ARG", value: "-0.1", wantMsg: "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "op=config.Load")
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func Test_Load_AcceptsSampleRatioBounds(t *testing.T) {
	for _, v := range []string{"0", "0.25", "1"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("OTEL_TRACES_SAMPLER_ARG", v)
			_, err := Load()
			require.NoError(t, err)
		})
	}
}
