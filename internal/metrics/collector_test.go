package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector("promptcad_test", prometheus.NewRegistry(), nil)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	c := newTestCollector(t)

	c.RecordHTTPRequest("POST", "/generate", 200, 20*time.Millisecond, 512)
	c.RecordHTTPRequest("POST", "/generate", 201, 10*time.Millisecond, 0)
	c.RecordHTTPRequest("POST", "/generate", 400, time.Millisecond, 64)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/generate", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("POST", "/generate", "4xx")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.httpRequestDuration))
}

func TestCollector_RecordKernelOperation(t *testing.T) {
	c := newTestCollector(t)

	c.RecordKernelOperation("build", "ok", time.Millisecond)
	c.RecordKernelOperation("build", "ok", time.Millisecond)
	c.RecordKernelOperation("import_solid", "error", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.kernelOpsTotal.WithLabelValues("build", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.kernelOpsTotal.WithLabelValues("import_solid", "error")))
	assert.Equal(t, 2, testutil.CollectAndCount(c.kernelOpDuration))
}

func TestCollector_DomainCounters(t *testing.T) {
	c := newTestCollector(t)

	c.RecordShapeGenerated("cylinder", "prompt")
	c.RecordProjectSave("ok")
	c.RecordLibraryFetch("error")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.shapesGenerated.WithLabelValues("cylinder", "prompt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.projectsSaved.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.libraryFetches.WithLabelValues("error")))
}

func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector("dup", reg, nil)
	assert.Panics(t, func() { NewCollector("dup", reg, nil) })
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{304, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusCode(tt.code))
	}
}
