package metric

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/agentwire/errors"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestMetricsRegistry_RegisterComponentMetrics(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_counter", Help: "counter"})
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "test_gauge", Help: "gauge"})
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_duration_seconds", Help: "histogram",
	}, []string{"action"})

	require.NoError(t, registry.RegisterCounter("correlator", "counter", counter))
	require.NoError(t, registry.RegisterGauge("correlator", "gauge", gauge))
	require.NoError(t, registry.RegisterHistogramVec("correlator", "duration", histogram))

	counter.Inc()
	gauge.Set(3)
	histogram.WithLabelValues("chat").Observe(0.2)

	names := gatheredNames(t, registry)
	assert.True(t, names["test_counter"])
	assert.True(t, names["test_gauge"])
	assert.True(t, names["test_duration_seconds"])
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	first := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "first"})
	second := prometheus.NewCounter(prometheus.CounterOpts{Name: "dup_counter", Help: "second"})

	require.NoError(t, registry.RegisterCounter("svc", "dup", first))

	err := registry.RegisterCounter("svc", "dup", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// Same Prometheus name with different help under another key
	err = registry.RegisterCounter("other", "dup", second)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.False(t, errors.IsFatal(err))

	// The very same collector under another key
	err = registry.RegisterCounter("other", "dup", first)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMetricsRegistry_InvalidDescriptorIsInvalid(t *testing.T) {
	registry := NewMetricsRegistry()

	bad := prometheus.NewGauge(prometheus.GaugeOpts{Name: "bad-name", Help: "dash is not allowed"})
	err := registry.RegisterGauge("svc", "bad", bad)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	// A rejected collector leaves the key free
	good := prometheus.NewGauge(prometheus.GaugeOpts{Name: "good_name", Help: "ok"})
	assert.NoError(t, registry.RegisterGauge("svc", "bad", good))
}

func TestMetricsRegistry_Unregister(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "temp_gauge", Help: "temp"})
	require.NoError(t, registry.RegisterGauge("svc", "temp", gauge))
	gauge.Set(1)
	assert.True(t, gatheredNames(t, registry)["temp_gauge"])

	assert.True(t, registry.Unregister("svc", "temp"))
	assert.False(t, registry.Unregister("svc", "temp"))
	assert.False(t, gatheredNames(t, registry)["temp_gauge"])

	// Can register again after removal
	require.NoError(t, registry.RegisterGauge("svc", "temp", gauge))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counter := prometheus.NewCounter(prometheus.CounterOpts{
				Name: fmt.Sprintf("concurrent_counter_%d", i),
				Help: "concurrent",
			})
			errs <- registry.RegisterCounter("svc", fmt.Sprintf("c%d", i), counter)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestMetricsRegistrar_Interface(t *testing.T) {
	var _ MetricsRegistrar = NewMetricsRegistry()
}

func TestCoreMetrics_RecordMethods(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	core.RecordConnection(true)
	assert.Equal(t, 1.0, promtest.ToFloat64(core.ConnectionUp))
	core.RecordConnection(false)
	assert.Equal(t, 0.0, promtest.ToFloat64(core.ConnectionUp))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.StatusChanges.WithLabelValues("connected")))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.StatusChanges.WithLabelValues("disconnected")))

	core.RecordMessageReceived("response")
	core.RecordMessageReceived("response")
	core.RecordMessageSent("request")
	core.RecordMessageDropped("parse_error")
	core.RecordMessagePublished("agentwire.notify.created-notification")
	core.RecordError("transport", "transient")
	core.RecordNATSStatus(true)

	assert.Equal(t, 2.0, promtest.ToFloat64(core.MessagesReceived.WithLabelValues("response")))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.MessagesSent.WithLabelValues("request")))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.MessagesDropped.WithLabelValues("parse_error")))
	assert.Equal(t, 1.0, promtest.ToFloat64(
		core.MessagesPublished.WithLabelValues("agentwire.notify.created-notification")))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.ErrorsTotal.WithLabelValues("transport", "transient")))
	assert.Equal(t, 1.0, promtest.ToFloat64(core.NATSConnected))

	names := gatheredNames(t, registry)
	assert.True(t, names["agentwire_connection_up"])
	assert.True(t, names["agentwire_messages_received_total"])
}
