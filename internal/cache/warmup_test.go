package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hvac-cache/internal/common/logging"
	"hvac-cache/internal/observability"
	"hvac-cache/internal/redis"
)

type fakeWarmupSource struct {
	cities      []string
	weatherErr  map[string]error
	equipment   map[string]interface{}
	equipErr    error
	maintenance map[string]interface{}
	customers   map[string]interface{}
	panicTask   string
}

func (f *fakeWarmupSource) KnownCities(context.Context) ([]string, error) {
	return f.cities, nil
}

func (f *fakeWarmupSource) Weather(_ context.Context, city string) (interface{}, error) {
	if err := f.weatherErr[city]; err != nil {
		return nil, err
	}
	return map[string]interface{}{"city": city, "temp": 72}, nil
}

func (f *fakeWarmupSource) CriticalEquipmentStatuses(context.Context) (map[string]interface{}, error) {
	if f.panicTask == "equipment" {
		panic("backing service exploded")
	}
	return f.equipment, f.equipErr
}

func (f *fakeWarmupSource) UpcomingMaintenanceSchedules(context.Context) (map[string]interface{}, error) {
	return f.maintenance, nil
}

func (f *fakeWarmupSource) HighValueCustomerProfiles(context.Context) (map[string]interface{}, error) {
	return f.customers, nil
}

type recordingSink struct {
	mu      sync.Mutex
	reports []observability.FailureReport
}

func (r *recordingSink) Report(report observability.FailureReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func setupWarmupEngine(t *testing.T, source WarmupSource, sink observability.Sink) *Engine {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)

	engine := New(Config{WarmupEnabled: true}, client, source, sink, logging.NewDefaultLogger())

	t.Cleanup(func() {
		engine.Close()
		mr.Close()
	})

	return engine
}

func TestWarmup_PreloadsHotData(t *testing.T) {
	source := &fakeWarmupSource{
		cities:      []string{"austin", "dallas"},
		equipment:   map[string]interface{}{"eq1": map[string]interface{}{"status": "OPERATIONAL"}},
		maintenance: map[string]interface{}{"m1": map[string]interface{}{"due": "2026-09-01"}},
		customers:   map[string]interface{}{"c1": map[string]interface{}{"tier": "gold"}},
	}
	engine := setupWarmupEngine(t, source, observability.NopSink{})
	ctx := context.Background()

	engine.warmup.run(ctx)

	var weather map[string]interface{}
	assert.True(t, engine.Get(ctx, "weather:austin", &weather, GetOptions{}))
	assert.True(t, engine.Get(ctx, "weather:dallas", &weather, GetOptions{}))

	var equipment map[string]interface{}
	require.True(t, engine.Get(ctx, "equipment:eq1", &equipment, GetOptions{}))
	assert.Equal(t, "OPERATIONAL", equipment["status"])

	var schedule map[string]interface{}
	assert.True(t, engine.Get(ctx, "maintenance:m1", &schedule, GetOptions{}))

	var profile map[string]interface{}
	assert.True(t, engine.Get(ctx, "customer:c1", &profile, GetOptions{}))
}

func TestWarmup_TaskFailureIsIsolated(t *testing.T) {
	sink := &recordingSink{}
	source := &fakeWarmupSource{
		cities:    []string{"austin"},
		equipErr:  fmt.Errorf("equipment service unavailable"),
		customers: map[string]interface{}{"c1": map[string]interface{}{"tier": "gold"}},
	}
	engine := setupWarmupEngine(t, source, sink)
	ctx := context.Background()

	engine.warmup.run(ctx)

	// The failing task is reported, the others still complete
	assert.Equal(t, 1, sink.count())

	var payload map[string]interface{}
	assert.True(t, engine.Get(ctx, "weather:austin", &payload, GetOptions{}))
	assert.True(t, engine.Get(ctx, "customer:c1", &payload, GetOptions{}))
}

func TestWarmup_CityFailureSkipsOnlyThatCity(t *testing.T) {
	sink := &recordingSink{}
	source := &fakeWarmupSource{
		cities:     []string{"austin", "dallas"},
		weatherErr: map[string]error{"austin": fmt.Errorf("provider timeout")},
	}
	engine := setupWarmupEngine(t, source, sink)
	ctx := context.Background()

	engine.warmup.run(ctx)

	var payload map[string]interface{}
	assert.False(t, engine.Get(ctx, "weather:austin", &payload, GetOptions{}))
	assert.True(t, engine.Get(ctx, "weather:dallas", &payload, GetOptions{}))
	assert.Equal(t, 1, sink.count())
}

func TestWarmup_PanicIsRecovered(t *testing.T) {
	sink := &recordingSink{}
	source := &fakeWarmupSource{
		cities:    []string{"austin"},
		panicTask: "equipment",
	}
	engine := setupWarmupEngine(t, source, sink)
	ctx := context.Background()

	assert.NotPanics(t, func() { engine.warmup.run(ctx) })
	assert.Equal(t, 1, sink.count())

	var payload map[string]interface{}
	assert.True(t, engine.Get(ctx, "weather:austin", &payload, GetOptions{}))
}

func TestWarmup_NilSourceDisables(t *testing.T) {
	engine := setupWarmupEngine(t, nil, observability.NopSink{})
	assert.False(t, engine.warmup.hasSource())

	// Open with warmup enabled but no source must not panic
	require.NoError(t, engine.Open(context.Background()))
}
