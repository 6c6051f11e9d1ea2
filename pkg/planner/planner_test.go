package planner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/opsweep/opsweep/pkg/catalog"
	"github.com/opsweep/opsweep/pkg/ollama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeGenerator) Generate(_ context.Context, req ollama.GenerateRequest) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)

	return f.response, f.err
}

func TestPlanner_Plan(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"workflow": [
			{"capability_id": "diag.disk.free", "arguments": {}, "reason": "check space first"},
			{"capability_id": "cache.user.clear", "reason": "free up space"}
		],
		"summary": "Check disk space, then clear user caches"
	}`}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	plan, err := p.Plan(context.Background(), "my disk is full")
	require.NoError(t, err)
	require.Len(t, plan.Workflow, 2)
	assert.Equal(t, "diag.disk.free", plan.Workflow[0].CapabilityID)
	assert.Equal(t, "check space first", plan.Workflow[0].Reason)
	assert.Equal(t, "Check disk space, then clear user caches", plan.Summary)
	assert.Equal(t, 1, gen.calls)
}

func TestPlanner_Plan_PromptContainsCatalog(t *testing.T) {
	gen := &fakeGenerator{response: `{"workflow":[{"capability_id":"diag.uptime","reason":"r"}],"summary":"s"}`}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	_, err := p.Plan(context.Background(), "how long has this mac been up")
	require.NoError(t, err)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "diag.uptime")
	assert.Contains(t, gen.prompts[0], "how long has this mac been up")
}

func TestPlanner_Plan_StripsMarkdownFence(t *testing.T) {
	gen := &fakeGenerator{response: "Here you go:\n```json\n{\"workflow\":[{\"capability_id\":\"diag.mem.pressure\",\"reason\":\"baseline\"}],\"summary\":\"check memory\"}\n```"}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	plan, err := p.Plan(context.Background(), "is my memory ok")
	require.NoError(t, err)
	assert.Equal(t, "diag.mem.pressure", plan.Workflow[0].CapabilityID)
}

func TestPlanner_Plan_InvalidJSON(t *testing.T) {
	gen := &fakeGenerator{response: "I'm sorry, I cannot help with that."}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	_, err := p.Plan(context.Background(), "clean up")
	assert.ErrorIs(t, err, ErrInvalidJSONResponse)
}

func TestPlanner_Plan_SchemaViolation(t *testing.T) {
	// workflow must be an array of objects, not strings.
	gen := &fakeGenerator{response: `{"workflow": ["diag.disk.free"], "summary": "bad shape"}`}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	_, err := p.Plan(context.Background(), "clean up")
	assert.ErrorIs(t, err, ErrInvalidJSONResponse)
}

func TestPlanner_Plan_EmptyWorkflow(t *testing.T) {
	gen := &fakeGenerator{response: `{"workflow": [], "summary": "nothing to do"}`}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	_, err := p.Plan(context.Background(), "do nothing")
	assert.ErrorIs(t, err, ErrEmptyWorkflow)
}

func TestPlanner_Plan_TooManySteps(t *testing.T) {
	var steps []string
	for range 11 {
		steps = append(steps, `{"capability_id":"diag.disk.free","reason":"r"}`)
	}

	gen := &fakeGenerator{response: `{"workflow":[` + strings.Join(steps, ",") + `],"summary":"s"}`}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	_, err := p.Plan(context.Background(), "check everything many times")
	assert.ErrorIs(t, err, ErrWorkflowTooLong)
}

func TestPlanner_Plan_UnknownCapability(t *testing.T) {
	gen := &fakeGenerator{response: `{"workflow":[{"capability_id":"sys.reboot","reason":"r"}],"summary":"s"}`}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	_, err := p.Plan(context.Background(), "restart my mac")
	require.Error(t, err)
	assert.True(t, IsInvalidCapability(err))

	var invalidErr *InvalidCapabilityError

	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, "sys.reboot", invalidErr.ID)
}

func TestPlanner_Plan_GenerationFailurePropagates(t *testing.T) {
	gen := &fakeGenerator{err: ollama.ErrServerNotRunning}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	_, err := p.Plan(context.Background(), "clean up")
	assert.ErrorIs(t, err, ollama.ErrServerNotRunning)
}

func TestPlanner_Plan_TruncatedResponse(t *testing.T) {
	gen := &fakeGenerator{response: `{"workflow":[{"capability_id":"diag.disk.free"`}

	p := NewPlanner(gen, catalog.Default(), "llama3.2")

	_, err := p.Plan(context.Background(), "clean up")
	assert.ErrorIs(t, err, ErrInvalidJSONResponse)
	assert.False(t, errors.Is(err, ErrEmptyWorkflow))
}
