package telemetry

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
)

const perfStatsInterval = time.Second * 30

// InstrumentPerfStats records process cpu, heap and goroutine gauges
// every 30 seconds until ctx is done.
func InstrumentPerfStats(ctx context.Context) {
	meter := otel.Meter("webharvest.process")
	cpuGauge, _ := meter.Float64Gauge("process.cpu_percent")
	heapGauge, _ := meter.Int64Gauge("process.heap_alloc_mb")
	objectGauge, _ := meter.Int64Gauge("process.live_objects")
	goroutineGauge, _ := meter.Int64Gauge("process.goroutines")

	go func() {
		ticker := time.NewTicker(perfStatsInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				usage, err := cpu.Percent(time.Second, false)
				if err != nil {
					slog.Warn("failed to read cpu usage", "err", err)
				} else {
					cpuGauge.Record(ctx, usage[0])
				}

				var stats runtime.MemStats
				runtime.ReadMemStats(&stats)
				heapGauge.Record(ctx, int64(stats.Alloc/1_000_000))
				objectGauge.Record(ctx, int64(stats.Mallocs-stats.Frees))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))
			case <-ctx.Done():
				return
			}
		}
	}()
}
