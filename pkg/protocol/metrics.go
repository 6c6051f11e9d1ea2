package protocol

import "context"

// SystemMetrics reads live system conditions for the trigger monitor.
// Percentages are 0-100.
type SystemMetrics interface {
	MemoryUsagePercent(ctx context.Context) (float64, error)
	DiskUsagePercent(ctx context.Context) (float64, error)
	CPUUsagePercent(ctx context.Context) (float64, error)

	// BatteryPercent reports ok=false on hosts without a battery probe;
	// triggers depending on it then never fire.
	BatteryPercent(ctx context.Context) (percent int, ok bool, err error)
}
