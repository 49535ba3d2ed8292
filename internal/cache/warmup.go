package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"hvac-cache/internal/common/errors"
	"hvac-cache/internal/common/logging"
	"hvac-cache/internal/observability"
)

// WarmupSource supplies the business data preloaded into the cache at
// startup. Implementations live at the business-data API boundary; every
// method is best-effort and may return an error without affecting the
// other warmup tasks.
type WarmupSource interface {
	// KnownCities returns the service-area city names weather is fetched for.
	KnownCities(ctx context.Context) ([]string, error)
	// Weather returns the current conditions payload for a city.
	Weather(ctx context.Context, city string) (interface{}, error)
	// CriticalEquipmentStatuses returns status payloads keyed by equipment ID.
	CriticalEquipmentStatuses(ctx context.Context) (map[string]interface{}, error)
	// UpcomingMaintenanceSchedules returns schedule payloads keyed by schedule ID.
	UpcomingMaintenanceSchedules(ctx context.Context) (map[string]interface{}, error)
	// HighValueCustomerProfiles returns profile payloads keyed by customer ID.
	HighValueCustomerProfiles(ctx context.Context) (map[string]interface{}, error)
}

// warmupRunner preloads hot business data through the engine's own Set path
// so warmed entries follow the same TTL and tier rules as organic writes.
type warmupRunner struct {
	engine *Engine
	source WarmupSource
	sink   observability.Sink
	logger logging.Logger
}

func newWarmupRunner(engine *Engine, source WarmupSource, sink observability.Sink, logger logging.Logger) *warmupRunner {
	return &warmupRunner{
		engine: engine,
		source: source,
		sink:   sink,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "cache-warmup"}),
	}
}

func (w *warmupRunner) hasSource() bool {
	return w.source != nil
}

// run executes every warmup task in a supervised group. A task failure is
// logged and reported but never cancels its siblings; run always returns
// once all tasks have finished.
func (w *warmupRunner) run(ctx context.Context) {
	start := time.Now()
	w.logger.Info("Cache warmup started")

	g, ctx := errgroup.WithContext(ctx)

	tasks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"weather", w.warmWeather},
		{"equipment_statuses", w.warmEquipmentStatuses},
		{"maintenance_schedules", w.warmMaintenanceSchedules},
		{"customer_profiles", w.warmCustomerProfiles},
	}

	for _, task := range tasks {
		task := task
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					w.report(task.name, fmt.Errorf("warmup task panicked: %v", r))
				}
			}()
			if err := task.fn(ctx); err != nil {
				w.report(task.name, err)
			}
			// Failures are isolated: never propagate into the group
			return nil
		})
	}

	g.Wait()

	w.logger.Info("Cache warmup finished",
		logging.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
	)
}

func (w *warmupRunner) report(task string, err error) {
	w.logger.Warn("Cache warmup task failed",
		logging.Field{Key: "task", Value: task},
		logging.Field{Key: "error", Value: err.Error()},
	)
	w.sink.Report(observability.NewReport("warmup", task, "cache-warmup", err))
}

func (w *warmupRunner) warmWeather(ctx context.Context) error {
	cities, err := w.source.KnownCities(ctx)
	if err != nil {
		return errors.InternalError("failed to list known cities", err)
	}

	for _, city := range cities {
		payload, err := w.source.Weather(ctx, city)
		if err != nil {
			// One unreachable city should not abort the rest
			w.report("weather:"+city, err)
			continue
		}
		key := GenerateKey(NamespaceWeather, city)
		if err := w.engine.Set(ctx, key, payload, SetOptions{Tags: []string{NamespaceWeather}}); err != nil {
			w.report("weather:"+city, err)
		}
	}
	return nil
}

func (w *warmupRunner) warmEquipmentStatuses(ctx context.Context) error {
	statuses, err := w.source.CriticalEquipmentStatuses(ctx)
	if err != nil {
		return errors.InternalError("failed to load critical equipment statuses", err)
	}
	return w.storeAll(ctx, NamespaceEquipment, statuses)
}

func (w *warmupRunner) warmMaintenanceSchedules(ctx context.Context) error {
	schedules, err := w.source.UpcomingMaintenanceSchedules(ctx)
	if err != nil {
		return errors.InternalError("failed to load upcoming maintenance schedules", err)
	}
	return w.storeAll(ctx, NamespaceMaintenance, schedules)
}

func (w *warmupRunner) warmCustomerProfiles(ctx context.Context) error {
	profiles, err := w.source.HighValueCustomerProfiles(ctx)
	if err != nil {
		return errors.InternalError("failed to load high-value customer profiles", err)
	}
	return w.storeAll(ctx, NamespaceCustomer, profiles)
}

func (w *warmupRunner) storeAll(ctx context.Context, namespace string, payloads map[string]interface{}) error {
	for id, payload := range payloads {
		key := GenerateKey(namespace, id)
		if err := w.engine.Set(ctx, key, payload, SetOptions{Tags: []string{namespace}}); err != nil {
			w.report(namespace+":"+id, err)
		}
	}
	return nil
}
