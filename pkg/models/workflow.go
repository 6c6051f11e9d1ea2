package models

// MaxWorkflowSteps bounds how many steps a plan may contain. The planner
// prompt asks for at most this many and decode-time validation enforces it.
const MaxWorkflowSteps = 10

// WorkflowStep is a single capability invocation inside a plan.
type WorkflowStep struct {
	CapabilityID string            `json:"capability_id" validate:"required"`
	Arguments    map[string]string `json:"arguments,omitempty"`
	Reason       string            `json:"reason"`
}

// WorkflowPlan is an ordered list of capability invocations produced from a
// natural-language request. Immutable once produced; consumed once by the
// safety validator and the executor.
type WorkflowPlan struct {
	Workflow []WorkflowStep `json:"workflow" validate:"required,min=1,max=10,dive"`
	Summary  string         `json:"summary"`
}
