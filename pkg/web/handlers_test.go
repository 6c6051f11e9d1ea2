package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/opsweep/opsweep/pkg/automation"
	"github.com/opsweep/opsweep/pkg/catalog"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/ollama"
	"github.com/opsweep/opsweep/pkg/planner"
	"github.com/opsweep/opsweep/pkg/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlanner struct {
	plan *models.WorkflowPlan
	err  error
}

func (f *fakePlanner) Plan(context.Context, string) (*models.WorkflowPlan, error) {
	return f.plan, f.err
}

type fakeSafety struct {
	assessment *models.SafetyAssessment
	err        error
}

func (f *fakeSafety) Assess(context.Context, *models.WorkflowPlan) (*models.SafetyAssessment, error) {
	return f.assessment, f.err
}

type fakeExecutor struct {
	result *models.WorkflowResult
	err    error
	calls  int
}

func (f *fakeExecutor) Execute(context.Context, *models.WorkflowPlan) (*models.WorkflowResult, error) {
	f.calls++

	return f.result, f.err
}

type noopActions struct{}

func (noopActions) CleanMemory(context.Context) error            { return nil }
func (noopActions) CleanCaches(context.Context) error            { return nil }
func (noopActions) CleanTemporaryFiles(context.Context) error    { return nil }
func (noopActions) CloseBrowserTabs(context.Context, int) error  { return nil }
func (noopActions) KillProcess(context.Context, string) error    { return nil }
func (noopActions) RunCommand(context.Context, string) error     { return nil }
func (noopActions) Notify(context.Context, string, string) error { return nil }
func (noopActions) ExecuteScript(context.Context, string) error  { return nil }

type noopMetrics struct{}

func (noopMetrics) MemoryUsagePercent(context.Context) (float64, error) { return 0, nil }
func (noopMetrics) DiskUsagePercent(context.Context) (float64, error)   { return 0, nil }
func (noopMetrics) CPUUsagePercent(context.Context) (float64, error)    { return 0, nil }
func (noopMetrics) BatteryPercent(context.Context) (int, bool, error)   { return 0, false, nil }

type testDeps struct {
	planner  *fakePlanner
	safety   *fakeSafety
	executor *fakeExecutor
}

func safePlan() *models.WorkflowPlan {
	return &models.WorkflowPlan{
		Workflow: []models.WorkflowStep{{CapabilityID: "diag.mem.pressure", Reason: "baseline"}},
		Summary:  "check memory",
	}
}

func safeAssessment() *models.SafetyAssessment {
	return &models.SafetyAssessment{
		Approved:  true,
		RiskLevel: models.RiskSafe,
	}
}

func newTestApp(t *testing.T) (*fiber.App, *testDeps) {
	t.Helper()

	deps := &testDeps{
		planner:  &fakePlanner{plan: safePlan()},
		safety:   &fakeSafety{assessment: safeAssessment()},
		executor: &fakeExecutor{result: &models.WorkflowResult{Success: true}},
	}

	runner := automation.NewActionRunner(noopActions{}, slog.Default())
	sched := scheduler.NewScheduler(runner)
	monitor := automation.NewMonitor(noopMetrics{}, runner)

	handlers := NewAPIHandlers(
		catalog.Default(),
		deps.planner,
		deps.safety,
		deps.executor,
		sched,
		monitor,
		validator.New(validator.WithRequiredStructEnabled()),
		slog.Default(),
	)

	return NewApp(handlers), deps
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()

	var reader io.Reader

	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var out T

	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return out
}

func TestGetCapabilities(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/capabilities", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[map[string]any](t, resp)
	assert.EqualValues(t, catalog.Default().Len(), body["total_count"])
}

func TestCreatePlan(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/plan", PlanRequest{Query: "my mac is slow"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[PlanResponse](t, resp)
	require.NotNil(t, body.Plan)
	assert.Equal(t, "diag.mem.pressure", body.Plan.Workflow[0].CapabilityID)
	require.NotNil(t, body.Assessment)
	assert.True(t, body.Assessment.Approved)
}

func TestCreatePlan_ValidatesQuery(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/plan", PlanRequest{Query: "a"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreatePlan_BackendDown(t *testing.T) {
	app, deps := newTestApp(t)
	deps.planner.plan = nil
	deps.planner.err = ollama.ErrServerNotRunning

	resp := doJSON(t, app, http.MethodPost, "/plan", PlanRequest{Query: "clean up"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCreatePlan_BadModelOutput(t *testing.T) {
	app, deps := newTestApp(t)
	deps.planner.plan = nil
	deps.planner.err = planner.ErrEmptyWorkflow

	resp := doJSON(t, app, http.MethodPost, "/plan", PlanRequest{Query: "clean up"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAssessPlan(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/assess", AssessRequest{Plan: *safePlan()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody[models.SafetyAssessment](t, resp)
	assert.True(t, body.Approved)
}

func TestAssessPlan_RejectsEmptyPlan(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/assess", AssessRequest{Plan: models.WorkflowPlan{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExecutePlan_SafePlanRuns(t *testing.T) {
	app, deps := newTestApp(t)

	resp := doJSON(t, app, http.MethodPost, "/execute", ExecuteRequest{Plan: *safePlan()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, deps.executor.calls)

	body := decodeBody[ExecuteResponse](t, resp)
	require.NotNil(t, body.Result)
	assert.True(t, body.Result.Success)
}

func TestExecutePlan_ConfirmationGate(t *testing.T) {
	app, deps := newTestApp(t)
	deps.safety.assessment = &models.SafetyAssessment{
		Approved:             true,
		RiskLevel:            models.RiskDestructive,
		RequiresConfirmation: true,
	}

	resp := doJSON(t, app, http.MethodPost, "/execute", ExecuteRequest{Plan: *safePlan()})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Zero(t, deps.executor.calls)

	resp = doJSON(t, app, http.MethodPost, "/execute", ExecuteRequest{Plan: *safePlan(), Confirm: true})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, deps.executor.calls)
}

func TestExecutePlan_RejectedPlanNeverRuns(t *testing.T) {
	app, deps := newTestApp(t)
	deps.safety.assessment = &models.SafetyAssessment{
		Approved:             false,
		RiskLevel:            models.RiskDestructive,
		RequiresConfirmation: true,
	}

	resp := doJSON(t, app, http.MethodPost, "/execute", ExecuteRequest{Plan: *safePlan(), Confirm: true})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, deps.executor.calls)
}

func TestTaskLifecycle(t *testing.T) {
	app, _ := newTestApp(t)

	task := models.ScheduledTask{
		ID:       "task-api",
		Name:     "api-created cleanup",
		Schedule: models.Schedule{Kind: models.ScheduleDaily, Hour: 3},
		Actions:  []models.AutomationAction{{Kind: models.ActionCleanCaches}},
		Enabled:  true,
	}

	resp := doJSON(t, app, http.MethodPost, "/tasks/", task)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/tasks/", task)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/tasks/", nil)
	body := decodeBody[map[string]any](t, resp)
	assert.EqualValues(t, 1, body["total_count"])

	resp = doJSON(t, app, http.MethodGet, "/tasks/task-api", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeBody[models.ScheduledTask](t, resp)
	assert.Equal(t, "api-created cleanup", got.Name)

	resp = doJSON(t, app, http.MethodPost, "/tasks/task-api/disable", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got = decodeBody[models.ScheduledTask](t, resp)
	assert.False(t, got.Enabled)

	resp = doJSON(t, app, http.MethodDelete, "/tasks/task-api", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/tasks/task-api", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTask_RejectsInvalid(t *testing.T) {
	app, _ := newTestApp(t)

	task := models.ScheduledTask{
		ID:       "task-bad",
		Name:     "broken",
		Schedule: models.Schedule{Kind: models.ScheduleRecurring},
		Actions:  []models.AutomationAction{{Kind: models.ActionCleanCaches}},
	}

	resp := doJSON(t, app, http.MethodPost, "/tasks/", task)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuleLifecycle(t *testing.T) {
	app, _ := newTestApp(t)

	rule := models.AutomationRule{
		ID:      "rule-api",
		Name:    "api-created rule",
		Trigger: models.Trigger{Kind: models.TriggerMemoryPressure, Threshold: 80},
		Actions: []models.AutomationAction{{Kind: models.ActionCleanMemory}},
		Enabled: true,
	}

	resp := doJSON(t, app, http.MethodPost, "/rules/", rule)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doJSON(t, app, http.MethodPost, "/rules/", rule)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doJSON(t, app, http.MethodGet, "/rules/", nil)
	body := decodeBody[map[string]any](t, resp)
	assert.EqualValues(t, 1, body["total_count"])

	resp = doJSON(t, app, http.MethodPost, "/rules/rule-api/disable", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/rules/rule-api", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doJSON(t, app, http.MethodDelete, "/rules/rule-api", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
