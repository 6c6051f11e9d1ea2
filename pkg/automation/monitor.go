package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opsweep/opsweep/pkg/eventbus"
	"github.com/opsweep/opsweep/pkg/events"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/otelhelper"
	"github.com/opsweep/opsweep/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultPollInterval is how often trigger conditions are sampled.
	DefaultPollInterval = 30 * time.Second

	// DefaultCooldown debounces a fired rule: once triggered it stays quiet
	// for this long even if its condition keeps holding.
	DefaultCooldown = 5 * time.Minute
)

var (
	ErrRuleExists   = errors.New("automation rule already registered")
	ErrRuleNotFound = errors.New("automation rule not registered")
)

// MetricsSource is the slice of protocol.SystemMetrics the monitor reads.
type MetricsSource interface {
	MemoryUsagePercent(ctx context.Context) (float64, error)
	DiskUsagePercent(ctx context.Context) (float64, error)
	CPUUsagePercent(ctx context.Context) (float64, error)
	BatteryPercent(ctx context.Context) (int, bool, error)
}

// ruleState pairs a rule with the sampling state its trigger needs.
type ruleState struct {
	rule *models.AutomationRule

	// cpuHighSince tracks how long the CPU has stayed above the threshold;
	// nil while below it.
	cpuHighSince *time.Time
}

// Monitor polls live system metrics and fires automation rules whose
// trigger condition holds. One poll loop evaluates every registered rule,
// so per-rule state never races.
type Monitor struct {
	metrics      MetricsSource
	runner       *ActionRunner
	bus          eventbus.EventPublisher
	store        persistence.RuleRepository
	logger       *slog.Logger
	tracer       trace.Tracer
	pollInterval time.Duration
	cooldown     time.Duration
	now          func() time.Time

	mu      sync.Mutex
	rules   map[string]*ruleState
	cancel  context.CancelFunc
	stopped chan struct{}
}

type MonitorOption func(*Monitor)

func WithPollInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.pollInterval = interval
	}
}

func WithCooldown(cooldown time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.cooldown = cooldown
	}
}

// WithRuleStore persists rule state (LastTriggered) after every fire.
func WithRuleStore(store persistence.RuleRepository) MonitorOption {
	return func(m *Monitor) {
		m.store = store
	}
}

func WithMonitorEventBus(bus eventbus.EventPublisher) MonitorOption {
	return func(m *Monitor) {
		m.bus = bus
	}
}

func WithMonitorLogger(logger *slog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func NewMonitor(metrics MetricsSource, runner *ActionRunner, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		metrics:      metrics,
		runner:       runner,
		logger:       slog.Default(),
		tracer:       otel.Tracer("opsweep-automation"),
		pollInterval: DefaultPollInterval,
		cooldown:     DefaultCooldown,
		now:          time.Now,
		rules:        make(map[string]*ruleState),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With("module", "automation_monitor")

	return m
}

// AddRule registers rule for monitoring. The rule is validated first.
func (m *Monitor) AddRule(rule *models.AutomationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[rule.ID]; exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, rule.ID)
	}

	m.rules[rule.ID] = &ruleState{rule: rule}
	m.logger.Info("Registered automation rule", "rule_id", rule.ID, "trigger", rule.Trigger.Kind)

	return nil
}

func (m *Monitor) RemoveRule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rules[id]; !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	delete(m.rules, id)

	return nil
}

func (m *Monitor) SetRuleEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.rules[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	state.rule.Enabled = enabled

	return nil
}

// Rules returns copies of the registered rules in unspecified order, so
// callers can read them without racing the poll loop.
func (m *Monitor) Rules() []*models.AutomationRule {
	m.mu.Lock()
	defer m.mu.Unlock()

	rules := make([]*models.AutomationRule, 0, len(m.rules))
	for _, state := range m.rules {
		rule := *state.rule
		rules = append(rules, &rule)
	}

	return rules
}

// RuleByID returns a copy of one registered rule.
func (m *Monitor) RuleByID(id string) (*models.AutomationRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, exists := m.rules[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}

	rule := *state.rule

	return &rule, nil
}

// Start launches the poll loop. It returns immediately; Stop shuts the loop
// down and waits for it to exit.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return errors.New("monitor already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.stopped = make(chan struct{})

	go m.loop(ctx)

	m.logger.Info("Automation monitor started", "poll_interval", m.pollInterval, "cooldown", m.cooldown)

	return nil
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	stopped := m.stopped
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-stopped
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.stopped)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	m.mu.Lock()
	states := make([]*ruleState, 0, len(m.rules))

	for _, state := range m.rules {
		states = append(states, state)
	}
	m.mu.Unlock()

	for _, state := range states {
		m.evaluateRule(ctx, state)
	}
}

func (m *Monitor) evaluateRule(ctx context.Context, state *ruleState) {
	rule := state.rule

	m.mu.Lock()
	enabled := rule.Enabled
	lastTriggered := rule.LastTriggered
	m.mu.Unlock()

	if !enabled {
		return
	}

	now := m.now()

	if lastTriggered != nil && now.Sub(*lastTriggered) < m.cooldown {
		return
	}

	fired, value, err := m.evaluateTrigger(ctx, state, now)
	if err != nil {
		m.logger.Warn("Failed to read metric for rule", "rule_id", rule.ID, "error", err)

		return
	}

	if !fired {
		return
	}

	m.fire(ctx, rule, value, now)
}

// evaluateTrigger samples the metric behind the rule's trigger and reports
// whether the condition holds. network_change, app_launch and app_quit have
// no event source wired and never fire.
func (m *Monitor) evaluateTrigger(ctx context.Context, state *ruleState, now time.Time) (bool, float64, error) {
	trigger := state.rule.Trigger

	switch trigger.Kind {
	case models.TriggerMemoryPressure:
		value, err := m.metrics.MemoryUsagePercent(ctx)
		if err != nil {
			return false, 0, err
		}

		return value >= trigger.Threshold, value, nil
	case models.TriggerDiskSpaceLow:
		value, err := m.metrics.DiskUsagePercent(ctx)
		if err != nil {
			return false, 0, err
		}

		return value >= trigger.Threshold, value, nil
	case models.TriggerCPUHigh:
		value, err := m.metrics.CPUUsagePercent(ctx)
		if err != nil {
			return false, 0, err
		}

		if value < trigger.Threshold {
			state.cpuHighSince = nil

			return false, value, nil
		}

		if state.cpuHighSince == nil {
			since := now
			state.cpuHighSince = &since
		}

		if now.Sub(*state.cpuHighSince) < trigger.Duration {
			return false, value, nil
		}

		return true, value, nil
	case models.TriggerBatteryLow:
		percent, ok, err := m.metrics.BatteryPercent(ctx)
		if err != nil {
			return false, 0, err
		}

		if !ok {
			return false, 0, nil
		}

		return float64(percent) <= trigger.Threshold, float64(percent), nil
	case models.TriggerNetworkChange, models.TriggerAppLaunch, models.TriggerAppQuit:
		return false, 0, nil
	default:
		return false, 0, fmt.Errorf("%w: unknown kind %q", models.ErrInvalidTrigger, trigger.Kind)
	}
}

func (m *Monitor) fire(ctx context.Context, rule *models.AutomationRule, value float64, now time.Time) {
	ctx, span := otelhelper.StartSpan(ctx, m.tracer, "automation.rule_fire",
		attribute.String(otelhelper.RuleIDKey, rule.ID),
		attribute.String(otelhelper.TriggerKindKey, string(rule.Trigger.Kind)),
	)
	defer span.End()

	m.logger.Info("Automation rule fired",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"trigger", rule.Trigger.Kind,
		"value", value)

	failures := m.runner.RunAll(ctx, rule.Actions)
	if failures > 0 {
		m.logger.Warn("Rule actions finished with failures", "rule_id", rule.ID, "failures", failures)
	}

	triggered := now

	// Reset the CPU window so the next fire needs a fresh sustained period.
	// The snapshot keeps persistence off the lock.
	m.mu.Lock()
	rule.LastTriggered = &triggered

	if state, exists := m.rules[rule.ID]; exists {
		state.cpuHighSince = nil
	}

	snapshot := *rule
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.SaveRule(ctx, &snapshot); err != nil {
			m.logger.Warn("Failed to persist rule state", "rule_id", rule.ID, "error", err)
		}
	}

	if m.bus != nil {
		event := events.RuleFired{
			BaseEvent:   events.NewBaseEvent(events.RuleFiredEvent),
			RuleID:      rule.ID,
			RuleName:    rule.Name,
			TriggerKind: rule.Trigger.Kind,
			MetricValue: value,
			Actions:     len(rule.Actions),
		}
		if err := m.bus.Publish(ctx, rule.ID, event); err != nil {
			m.logger.Warn("Failed to publish rule event", "rule_id", rule.ID, "error", err)
		}
	}
}
