// Package sysmetrics reads live memory, disk and CPU figures for the
// automation monitor.
package sysmetrics

import (
	"context"
	"fmt"

	"github.com/opsweep/opsweep/pkg/protocol"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// Reader implements protocol.SystemMetrics with gopsutil probes.
type Reader struct {
	diskPath string
}

type Option func(*Reader)

// WithDiskPath changes the mount point the disk probe inspects.
func WithDiskPath(path string) Option {
	return func(r *Reader) {
		r.diskPath = path
	}
}

func NewReader(opts ...Option) *Reader {
	r := &Reader{diskPath: "/"}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

var _ protocol.SystemMetrics = (*Reader)(nil)

func (r *Reader) MemoryUsagePercent(ctx context.Context) (float64, error) {
	stats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("memory probe failed: %w", err)
	}

	return stats.UsedPercent, nil
}

func (r *Reader) DiskUsagePercent(ctx context.Context) (float64, error) {
	usage, err := disk.UsageWithContext(ctx, r.diskPath)
	if err != nil {
		return 0, fmt.Errorf("disk probe failed for %s: %w", r.diskPath, err)
	}

	return usage.UsedPercent, nil
}

func (r *Reader) CPUUsagePercent(ctx context.Context) (float64, error) {
	// Instantaneous sample; the monitor handles sustained-load windows.
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("cpu probe failed: %w", err)
	}

	if len(percents) == 0 {
		return 0, fmt.Errorf("cpu probe returned no samples")
	}

	return percents[0], nil
}

// BatteryPercent reports ok=false: gopsutil carries no battery probe, so
// battery_low triggers never fire on this reader.
func (r *Reader) BatteryPercent(_ context.Context) (int, bool, error) {
	return 0, false, nil
}
