// Package models defines the core domain models for AI-planned system maintenance.
package models

// RiskClass classifies how dangerous a capability is when executed.
type RiskClass string

const (
	RiskSafe        RiskClass = "safe"
	RiskModerate    RiskClass = "moderate"
	RiskDestructive RiskClass = "destructive"
)

// rank gives RiskClass its total order: safe < moderate < destructive.
func (r RiskClass) rank() int {
	switch r {
	case RiskModerate:
		return 1
	case RiskDestructive:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether r is ranked equal to or above other.
func (r RiskClass) AtLeast(other RiskClass) bool {
	return r.rank() >= other.rank()
}

// MaxRisk returns the higher ranked of the two risk classes.
func MaxRisk(a, b RiskClass) RiskClass {
	if b.rank() > a.rank() {
		return b
	}

	return a
}

// PrivilegeLevel is the execution context a capability requires.
// Only elevated changes dispatch routing; the other tiers all run
// through the standard runner.
type PrivilegeLevel string

const (
	PrivilegeUser           PrivilegeLevel = "user"
	PrivilegeElevated       PrivilegeLevel = "elevated"
	PrivilegeAutomation     PrivilegeLevel = "automation"
	PrivilegeFullDiskAccess PrivilegeLevel = "full_disk_access"
)

// CapabilityGroup is the catalog category a capability belongs to.
type CapabilityGroup string

const (
	GroupDiagnostics CapabilityGroup = "diagnostics"
	GroupMemory      CapabilityGroup = "memory"
	GroupDisk        CapabilityGroup = "disk"
	GroupCache       CapabilityGroup = "cache"
	GroupBrowser     CapabilityGroup = "browser"
	GroupProcess     CapabilityGroup = "process"
)

// Capability is a named, catalog-registered system operation. Capabilities
// are loaded once at process start and never mutated.
type Capability struct {
	ID            string          `json:"id"            validate:"required"`
	Title         string          `json:"title"         validate:"required"`
	Description   string          `json:"description"   validate:"required"`
	Group         CapabilityGroup `json:"group"         validate:"required"`
	Risk          RiskClass       `json:"risk"          validate:"required,oneof=safe moderate destructive"`
	Privilege     PrivilegeLevel  `json:"privilege"     validate:"required,oneof=user elevated automation full_disk_access"`
	RollbackNotes string          `json:"rollback_notes,omitempty"`
}

// IsDiagnostic reports whether the capability belongs to the diagnostics
// family. Plans containing at least one diagnostic step are approved even
// when they also contain destructive steps.
func (c Capability) IsDiagnostic() bool {
	return c.Group == GroupDiagnostics
}
