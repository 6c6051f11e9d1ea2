package automation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/opsweep/opsweep/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMetrics struct {
	mu      sync.Mutex
	memory  float64
	disk    float64
	cpu     float64
	battery int
	hasBatt bool
	err     error
}

func (f *fakeMetrics) set(fn func(*fakeMetrics)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeMetrics) MemoryUsagePercent(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.memory, f.err
}

func (f *fakeMetrics) DiskUsagePercent(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.disk, f.err
}

func (f *fakeMetrics) CPUUsagePercent(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.cpu, f.err
}

func (f *fakeMetrics) BatteryPercent(context.Context) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.battery, f.hasBatt, f.err
}

func memoryRule(threshold float64) *models.AutomationRule {
	return &models.AutomationRule{
		ID:      "rule-mem",
		Name:    "memory pressure relief",
		Trigger: models.Trigger{Kind: models.TriggerMemoryPressure, Threshold: threshold},
		Actions: []models.AutomationAction{{Kind: models.ActionCleanMemory}},
		Enabled: true,
	}
}

func newTestMonitor(t *testing.T, metrics MetricsSource, actions *fakeActions, opts ...MonitorOption) *Monitor {
	t.Helper()

	runner := NewActionRunner(actions, slog.Default())

	return NewMonitor(metrics, runner, opts...)
}

func TestMonitor_FiresWhenThresholdCrossed(t *testing.T) {
	metrics := &fakeMetrics{memory: 85}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions)

	rule := memoryRule(80)
	require.NoError(t, m.AddRule(rule))

	m.poll(context.Background())

	assert.Equal(t, []string{"clean_memory"}, actions.recorded())
	require.NotNil(t, rule.LastTriggered)
}

func TestMonitor_BelowThresholdDoesNotFire(t *testing.T) {
	metrics := &fakeMetrics{memory: 40}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions)

	require.NoError(t, m.AddRule(memoryRule(80)))

	m.poll(context.Background())

	assert.Empty(t, actions.recorded())
}

func TestMonitor_CooldownDebouncesRepeatedFires(t *testing.T) {
	metrics := &fakeMetrics{memory: 95}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions, WithCooldown(5*time.Minute))

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.AddRule(memoryRule(80)))

	ctx := context.Background()

	// The condition holds on every poll, but only the first fires.
	m.poll(ctx)
	m.poll(ctx)

	now = now.Add(4 * time.Minute)
	m.poll(ctx)

	assert.Len(t, actions.recorded(), 1)

	// Once the cooldown elapses it may fire again.
	now = now.Add(2 * time.Minute)
	m.poll(ctx)

	assert.Len(t, actions.recorded(), 2)
}

func TestMonitor_DisabledRuleNeverFires(t *testing.T) {
	metrics := &fakeMetrics{memory: 95}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions)

	rule := memoryRule(80)
	rule.Enabled = false
	require.NoError(t, m.AddRule(rule))

	m.poll(context.Background())

	assert.Empty(t, actions.recorded())
}

func TestMonitor_CPUHighRequiresSustainedLoad(t *testing.T) {
	metrics := &fakeMetrics{cpu: 95}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	rule := &models.AutomationRule{
		ID:   "rule-cpu",
		Name: "sustained cpu pressure",
		Trigger: models.Trigger{
			Kind:      models.TriggerCPUHigh,
			Threshold: 90,
			Duration:  time.Minute,
		},
		Actions: []models.AutomationAction{{Kind: models.ActionNotify, Title: "CPU pegged"}},
		Enabled: true,
	}
	require.NoError(t, m.AddRule(rule))

	ctx := context.Background()

	// First sample above the threshold only opens the window.
	m.poll(ctx)
	assert.Empty(t, actions.recorded())

	// A dip below the threshold resets the window.
	now = now.Add(30 * time.Second)
	metrics.set(func(f *fakeMetrics) { f.cpu = 20 })
	m.poll(ctx)

	now = now.Add(time.Minute)
	metrics.set(func(f *fakeMetrics) { f.cpu = 95 })
	m.poll(ctx)
	assert.Empty(t, actions.recorded(), "window restarted after the dip")

	// Sustained load for the full duration fires.
	now = now.Add(time.Minute)
	m.poll(ctx)
	assert.Len(t, actions.recorded(), 1)
}

func TestMonitor_BatteryTriggerSkippedWithoutBattery(t *testing.T) {
	metrics := &fakeMetrics{battery: 5, hasBatt: false}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions)

	rule := &models.AutomationRule{
		ID:      "rule-batt",
		Name:    "battery saver",
		Trigger: models.Trigger{Kind: models.TriggerBatteryLow, Threshold: 20},
		Actions: []models.AutomationAction{{Kind: models.ActionNotify, Title: "Battery low"}},
		Enabled: true,
	}
	require.NoError(t, m.AddRule(rule))

	m.poll(context.Background())
	assert.Empty(t, actions.recorded())

	metrics.set(func(f *fakeMetrics) { f.hasBatt = true })
	m.poll(context.Background())
	assert.Len(t, actions.recorded(), 1)
}

func TestMonitor_EventTriggersNeverFire(t *testing.T) {
	metrics := &fakeMetrics{memory: 100, cpu: 100, disk: 100}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions)

	rule := &models.AutomationRule{
		ID:      "rule-net",
		Name:    "network watcher",
		Trigger: models.Trigger{Kind: models.TriggerNetworkChange},
		Actions: []models.AutomationAction{{Kind: models.ActionNotify, Title: "Network changed"}},
		Enabled: true,
	}
	require.NoError(t, m.AddRule(rule))

	m.poll(context.Background())

	assert.Empty(t, actions.recorded(), "no event source is wired for network_change")
}

func TestMonitor_MetricErrorSkipsRule(t *testing.T) {
	metrics := &fakeMetrics{err: errors.New("sysctl failed")}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions)

	require.NoError(t, m.AddRule(memoryRule(80)))

	m.poll(context.Background())

	assert.Empty(t, actions.recorded())
}

func TestMonitor_AddRuleValidation(t *testing.T) {
	m := newTestMonitor(t, &fakeMetrics{}, &fakeActions{})

	rule := memoryRule(80)
	require.NoError(t, m.AddRule(rule))
	assert.ErrorIs(t, m.AddRule(rule), ErrRuleExists)

	invalid := memoryRule(0)
	invalid.ID = "rule-invalid"
	assert.ErrorIs(t, m.AddRule(invalid), models.ErrInvalidTrigger)

	assert.ErrorIs(t, m.RemoveRule("nope"), ErrRuleNotFound)
	require.NoError(t, m.RemoveRule(rule.ID))
}

func TestMonitor_RulesAreCopies(t *testing.T) {
	m := newTestMonitor(t, &fakeMetrics{}, &fakeActions{})
	require.NoError(t, m.AddRule(memoryRule(80)))

	rules := m.Rules()
	require.Len(t, rules, 1)
	rules[0].Enabled = false

	fresh, err := m.RuleByID("rule-mem")
	require.NoError(t, err)
	assert.True(t, fresh.Enabled, "mutating a returned rule must not touch the registry")

	_, err = m.RuleByID("nope")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestMonitor_ConcurrentToggleWhilePolling(t *testing.T) {
	metrics := &fakeMetrics{memory: 95}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions,
		WithPollInterval(time.Millisecond),
		WithCooldown(time.Millisecond))

	rule := memoryRule(80)
	require.NoError(t, m.AddRule(rule))
	require.NoError(t, m.Start(context.Background()))

	defer m.Stop()

	// Flip the rule and read the registry while the poll loop fires; the
	// race detector flags any unserialized access to the shared state.
	done := make(chan struct{})

	go func() {
		defer close(done)

		for i := 0; i < 200; i++ {
			assert.NoError(t, m.SetRuleEnabled(rule.ID, i%2 == 0))

			for _, r := range m.Rules() {
				_ = r.Enabled
				_ = r.LastTriggered
			}
		}
	}()

	<-done
}

func TestMonitor_StartPollsUntilStopped(t *testing.T) {
	metrics := &fakeMetrics{memory: 95}
	actions := &fakeActions{}
	m := newTestMonitor(t, metrics, actions, WithPollInterval(10*time.Millisecond))

	require.NoError(t, m.AddRule(memoryRule(80)))
	require.NoError(t, m.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return len(actions.recorded()) == 1
	}, time.Second, 5*time.Millisecond)

	m.Stop()

	// A second Start after Stop is allowed.
	require.NoError(t, m.Start(context.Background()))
	m.Stop()
}
