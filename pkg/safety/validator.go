// Package safety scores the risk of a workflow plan and decides whether it
// may run and whether the user must confirm first.
package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

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

var (
	// ErrUnknownCapability indicates the plan references a capability id
	// missing from the catalog; such a plan cannot be assessed.
	ErrUnknownCapability = errors.New("plan references unknown capability")

	// ErrInvalidAssessment indicates the generation-backed second opinion
	// could not be decoded. Assessment fails closed: there is no silent
	// degrade to the rule-pass result.
	ErrInvalidAssessment = errors.New("generation response is not a valid safety assessment")
)

// Generator is the slice of the generation client the validator needs.
type Generator interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (string, error)
}

const systemPrompt = `You are a macOS system maintenance safety reviewer.
You receive a workflow of capability invocations and assess its risk.

Risk levels, in increasing order: "safe", "moderate", "destructive".

Respond with strict JSON only, no prose and no markdown, in this shape:
{"approved":true,"risk_level":"safe","warnings":[],"suggestions":[],"requires_confirmation":false}`

const assessmentSchema = `{
  "type": "object",
  "required": ["approved", "risk_level"],
  "properties": {
    "approved": {"type": "boolean"},
    "risk_level": {"type": "string", "enum": ["safe", "moderate", "destructive"]},
    "warnings": {"type": "array", "items": {"type": "string"}},
    "suggestions": {"type": "array", "items": {"type": "string"}},
    "requires_confirmation": {"type": "boolean"}
  }
}`

type Validator struct {
	generator   Generator
	catalog     *catalog.Catalog
	model       string
	temperature float64
	logger      *slog.Logger
	tracer      trace.Tracer
}

type Option func(*Validator)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

func WithTemperature(temperature float64) Option {
	return func(v *Validator) {
		v.temperature = temperature
	}
}

func NewValidator(generator Generator, cat *catalog.Catalog, model string, opts ...Option) *Validator {
	v := &Validator{
		generator:   generator,
		catalog:     cat,
		model:       model,
		temperature: 0.1,
		logger:      slog.Default(),
		tracer:      otel.Tracer("opsweep/safety"),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Assess scores plan in two tiers. The deterministic rule pass runs first;
// when it proves the plan trivially safe the result is returned without any
// generation call. Otherwise the generation backend provides a second
// opinion with a narrative of warnings and suggestions.
func (v *Validator) Assess(ctx context.Context, plan *models.WorkflowPlan) (*models.SafetyAssessment, error) {
	tier1, err := v.rulePass(plan)
	if err != nil {
		return nil, err
	}

	if tier1.RiskLevel == models.RiskSafe && tier1.Approved {
		v.logger.Debug("Plan is trivially safe, skipping generation pass", "steps", len(plan.Workflow))

		return tier1, nil
	}

	return v.generationPass(ctx, plan, tier1)
}

// RulePass exposes the deterministic tier for callers that must never block
// on the generation backend. It is a pure function of the plan and the
// catalog.
func (v *Validator) RulePass(plan *models.WorkflowPlan) (*models.SafetyAssessment, error) {
	return v.rulePass(plan)
}

func (v *Validator) rulePass(plan *models.WorkflowPlan) (*models.SafetyAssessment, error) {
	maxRisk := models.RiskSafe
	hasAnalysisSteps := false
	warnings := []string{}
	suggestions := []string{}

	for _, step := range plan.Workflow {
		capability, ok := v.catalog.Get(step.CapabilityID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, step.CapabilityID)
		}

		maxRisk = models.MaxRisk(maxRisk, capability.Risk)

		if capability.IsDiagnostic() {
			hasAnalysisSteps = true
		}

		if capability.Privilege == models.PrivilegeElevated {
			warnings = append(warnings, fmt.Sprintf("%s requires administrator privileges", capability.Title))
		}

		if capability.Risk == models.RiskDestructive {
			warnings = append(warnings, fmt.Sprintf("%s is destructive and cannot be undone automatically", capability.Title))

			if capability.RollbackNotes != "" {
				suggestions = append(suggestions, capability.RollbackNotes)
			}
		}
	}

	return &models.SafetyAssessment{
		Approved:             maxRisk != models.RiskDestructive || hasAnalysisSteps,
		RiskLevel:            maxRisk,
		Warnings:             warnings,
		Suggestions:          suggestions,
		RequiresConfirmation: maxRisk != models.RiskSafe,
	}, nil
}

func (v *Validator) generationPass(ctx context.Context, plan *models.WorkflowPlan, tier1 *models.SafetyAssessment) (*models.SafetyAssessment, error) {
	ctx, span := v.tracer.Start(ctx, "safety.generation_pass",
		trace.WithAttributes(
			attribute.String(otelhelper.ModelKey, v.model),
			attribute.String("opsweep.tier1.risk", string(tier1.RiskLevel)),
		))
	defer span.End()

	prompt := fmt.Sprintf("Assess this maintenance workflow:\n\n%s", v.renderPlan(plan))

	raw, err := v.generator.Generate(ctx, ollama.GenerateRequest{
		Model:       v.model,
		Prompt:      prompt,
		System:      systemPrompt,
		Temperature: v.temperature,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("safety assessment failed: %w", err)
	}

	assessment, err := v.decodeAssessment(raw)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("opsweep.assessment.approved", assessment.Approved),
		attribute.String("opsweep.assessment.risk", string(assessment.RiskLevel)),
	)
	v.logger.Info("Safety assessment produced",
		"approved", assessment.Approved,
		"risk_level", assessment.RiskLevel,
		"warnings", len(assessment.Warnings))

	return assessment, nil
}

func (v *Validator) renderPlan(plan *models.WorkflowPlan) string {
	var b strings.Builder

	for i, step := range plan.Workflow {
		capability, _ := v.catalog.Get(step.CapabilityID)

		fmt.Fprintf(&b, "%d. %s: %s (risk: %s, privilege: %s)\n",
			i+1, capability.Title, capability.Description, capability.Risk, capability.Privilege)

		if step.Reason != "" {
			fmt.Fprintf(&b, "   reason: %s\n", step.Reason)
		}
	}

	return b.String()
}

func (v *Validator) decodeAssessment(raw string) (*models.SafetyAssessment, error) {
	extracted, err := jsonutil.ExtractObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssessment, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(assessmentSchema),
		gojsonschema.NewStringLoader(extracted),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssessment, err)
	}

	if !result.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAssessment, schemaErrors(result))
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(extracted)))
	decoder.DisallowUnknownFields()

	var assessment models.SafetyAssessment
	if err := decoder.Decode(&assessment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssessment, err)
	}

	return &assessment, nil
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
