package models

// SafetyAssessment is the risk verdict for a workflow plan. RiskLevel is the
// maximum risk class over all steps of the plan it was computed from.
type SafetyAssessment struct {
	Approved             bool      `json:"approved"`
	RiskLevel            RiskClass `json:"risk_level"            validate:"required,oneof=safe moderate destructive"`
	Warnings             []string  `json:"warnings"`
	Suggestions          []string  `json:"suggestions"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
}
