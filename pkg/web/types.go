package web

import "github.com/opsweep/opsweep/pkg/models"

type PlanRequest struct {
	Query string `json:"query" validate:"required,min=3"`
}

type AssessRequest struct {
	Plan models.WorkflowPlan `json:"plan" validate:"required"`
}

// ExecuteRequest carries the plan to run. Confirm must be true when the
// safety assessment requires user confirmation.
type ExecuteRequest struct {
	Plan    models.WorkflowPlan `json:"plan"    validate:"required"`
	Confirm bool                `json:"confirm"`
}

type PlanResponse struct {
	Plan       *models.WorkflowPlan     `json:"plan"`
	Assessment *models.SafetyAssessment `json:"assessment"`
}

type ExecuteResponse struct {
	Assessment *models.SafetyAssessment `json:"assessment"`
	Result     *models.WorkflowResult   `json:"result"`
}
