package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const report_perf_stats_cpu = "perf-stats.cpu"

type perfGauges struct {
	cpu        metric.Float64Gauge
	heapMB     metric.Int64Gauge
	liveObject metric.Int64Gauge
	goroutines metric.Int64Gauge
}

func newPerfGauges() perfGauges {
	meter := otel.Meter("chattysync.perf")
	cpuGauge, _ := meter.Float64Gauge("process.cpu_percent")
	heap, _ := meter.Int64Gauge("process.heap_mb")
	live, _ := meter.Int64Gauge("process.live_objects")
	goroutines, _ := meter.Int64Gauge("process.goroutines")
	return perfGauges{cpu: cpuGauge, heapMB: heap, liveObject: live, goroutines: goroutines}
}

func (g perfGauges) sample(ctx context.Context, tel API) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	g.heapMB.Record(ctx, int64(mem.HeapAlloc/1_000_000))
	g.liveObject.Record(ctx, int64(mem.Mallocs-mem.Frees))
	g.goroutines.Record(ctx, int64(runtime.NumGoroutine()))

	usage, err := cpu.PercentWithContext(ctx, 5*time.Second, false)
	if err != nil {
		tel.ReportWarning(report_perf_stats_cpu, err)
		return
	}
	if len(usage) > 0 {
		g.cpu.Record(ctx, usage[0])
	}
}

// InstrumentPerfStats starts a goroutine recording process gauges every 30
// seconds until ctx is done. The meter provider is resolved at call time.
func InstrumentPerfStats(ctx context.Context, tel API) {
	gauges := newPerfGauges()
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gauges.sample(ctx, tel)
			case <-ctx.Done():
				return
			}
		}
	}()
}
