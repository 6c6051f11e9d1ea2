// Package planner converts a natural-language maintenance request into a
// validated workflow plan using the generation backend and the capability
// catalog.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opsweep/opsweep/pkg/catalog"
	"github.com/opsweep/opsweep/pkg/jsonutil"
	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/ollama"
	"github.com/opsweep/opsweep/pkg/otelhelper"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Generator is the slice of the generation client the planner needs.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
}

const systemPrompt = `You are a macOS system maintenance planner.
You convert a user's request into a JSON workflow of capability invocations.

Rules:
- Use ONLY capability ids from the provided catalog.
- Order operations so diagnostic steps come before destructive or cleanup steps.
- Avoid destructive operations unless the user clearly asked for them.
- Use at most 10 steps.
- Give a short reason for every step.
- Respond with strict JSON only, no prose and no markdown, in this shape:
{"workflow":[{"capability_id":"...","arguments":{},"reason":"..."}],"summary":"..."}`

// planSchema checks the extracted JSON for structural shape before the
// strict decode, so malformed responses fail with field-level detail
// instead of a bare unmarshal error.
const planSchema = `{
  "type": "object",
  "required": ["workflow"],
  "properties": {
    "workflow": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["capability_id"],
        "properties": {
          "capability_id": {"type": "string"},
          "arguments": {"type": "object", "additionalProperties": {"type": "string"}},
          "reason": {"type": "string"}
        }
      }
    },
    "summary": {"type": "string"}
  }
}`

type Planner struct {
	generator   Generator
	catalog     *catalog.Catalog
	model       string
	temperature float64
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Planner)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

func WithTemperature(temperature float64) Option {
	return func(p *Planner) {
		p.temperature = temperature
	}
}

func NewPlanner(generator Generator, cat *catalog.Catalog, model string, opts ...Option) *Planner {
	p := &Planner{
		generator:   generator,
		catalog:     cat,
		model:       model,
		temperature: 0.1,
		logger:      slog.Default(),
		tracer:      otel.Tracer("opsweep/planner"),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Plan turns query into a validated workflow plan. It fails with a typed
// error rather than ever returning a best-effort guess.
func (p *Planner) Plan(ctx context.Context, query string) (*models.WorkflowPlan, error) {
	ctx, span := p.tracer.Start(ctx, "planner.plan",
		trace.WithAttributes(attribute.String(otelhelper.ModelKey, p.model)))
	defer span.End()

	prompt := fmt.Sprintf("Available capabilities:\n\n%s\n\nUser request: %s",
		p.catalog.RenderSummary(catalog.DefaultSummaryLimit), query)

	p.logger.Debug("Requesting workflow plan", "model", p.model, "query", query)

	raw, err := p.generator.Generate(ctx, ollama.GenerateRequest{
		Model:       p.model,
		Prompt:      prompt,
		System:      systemPrompt,
		Temperature: p.temperature,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	plan, err := p.decodePlan(raw)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := p.validatePlan(plan); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.Int("opsweep.plan.steps", len(plan.Workflow)))
	p.logger.Info("Workflow plan produced", "steps", len(plan.Workflow), "summary", plan.Summary)

	return plan, nil
}

func (p *Planner) decodePlan(raw string) (*models.WorkflowPlan, error) {
	extracted, err := jsonutil.ExtractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSONResponse, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(planSchema),
		gojsonschema.NewStringLoader(extracted),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSONResponse, err)
	}

	if !result.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSONResponse, schemaErrors(result))
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(extracted)))
	decoder.DisallowUnknownFields()

	var plan models.WorkflowPlan
	if err := decoder.Decode(&plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSONResponse, err)
	}

	return &plan, nil
}

func (p *Planner) validatePlan(plan *models.WorkflowPlan) error {
	if len(plan.Workflow) == 0 {
		return ErrEmptyWorkflow
	}

	if len(plan.Workflow) > models.MaxWorkflowSteps {
		return fmt.Errorf("%w: %d steps", ErrWorkflowTooLong, len(plan.Workflow))
	}

	for _, step := range plan.Workflow {
		if _, ok := p.catalog.Get(step.CapabilityID); !ok {
			return &InvalidCapabilityError{ID: step.CapabilityID}
		}
	}

	return nil
}

func schemaErrors(result *gojsonschema.Result) string {
	var buf bytes.Buffer

	for i, desc := range result.Errors() {
		if i > 0 {
			buf.WriteString("; ")
		}

		buf.WriteString(desc.String())
	}

	return buf.String()
}
