package syncorch

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"

	"github.com/R3E-Network/syncengine/infrastructure/metrics"
)

// ResourceGauge periodically samples host CPU and memory and logs a warning
// when either crosses its threshold. It never reduces MaxWorkers — spec.md
// §5 treats MAX_WORKERS as an operator-set ceiling, not something the
// process adjusts itself — this is purely an operational signal.
type ResourceGauge struct {
	CPUThresholdPercent float64
	MemThresholdPercent float64
	Interval            time.Duration
	Log                 *logrus.Logger
	Metrics             *metrics.Metrics
}

func (g *ResourceGauge) interval() time.Duration {
	if g.Interval <= 0 {
		return 30 * time.Second
	}
	return g.Interval
}

func (g *ResourceGauge) log() *logrus.Logger {
	if g.Log == nil {
		return logrus.StandardLogger()
	}
	return g.Log
}

func (g *ResourceGauge) cpuThreshold() float64 {
	if g.CPUThresholdPercent <= 0 {
		return 90
	}
	return g.CPUThresholdPercent
}

func (g *ResourceGauge) memThreshold() float64 {
	if g.MemThresholdPercent <= 0 {
		return 90
	}
	return g.MemThresholdPercent
}

// Run samples on Interval until ctx is cancelled. Intended to be started as
// a goroutine alongside RunJob; errors reading host stats are logged and
// skipped rather than treated as fatal.
func (g *ResourceGauge) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sample()
		}
	}
}

func (g *ResourceGauge) sample() {
	var cpuPercent, memPercent float64

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		cpuPercent = pct[0]
		if cpuPercent >= g.cpuThreshold() {
			g.log().WithField("cpu_percent", cpuPercent).Warn("host CPU usage above soft threshold")
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memPercent = vm.UsedPercent
		if memPercent >= g.memThreshold() {
			g.log().WithField("mem_percent", memPercent).Warn("host memory usage above soft threshold")
		}
	}

	if g.Metrics != nil {
		g.Metrics.SetHostUtilization(cpuPercent, memPercent)
	}
}
