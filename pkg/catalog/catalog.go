// Package catalog provides the read-only registry of capabilities the
// planner may use. Capabilities are registered once at construction and the
// catalog is safe for unsynchronized concurrent reads.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opsweep/opsweep/pkg/models"
)

// DefaultSummaryLimit caps how many capabilities per category are rendered
// into a prompt context, to bound prompt size.
const DefaultSummaryLimit = 20

type Catalog struct {
	capabilities map[string]models.Capability
	order        []string
}

// New builds a catalog from the given capabilities. Duplicate ids are
// rejected; the catalog is immutable afterwards.
func New(capabilities ...models.Capability) (*Catalog, error) {
	c := &Catalog{
		capabilities: make(map[string]models.Capability, len(capabilities)),
		order:        make([]string, 0, len(capabilities)),
	}

	for _, capability := range capabilities {
		if capability.ID == "" {
			return nil, fmt.Errorf("capability with empty id (title %q)", capability.Title)
		}

		if _, exists := c.capabilities[capability.ID]; exists {
			return nil, fmt.Errorf("duplicate capability id %q", capability.ID)
		}

		c.capabilities[capability.ID] = capability
		c.order = append(c.order, capability.ID)
	}

	return c, nil
}

// Get looks up a capability by id.
func (c *Catalog) Get(id string) (models.Capability, bool) {
	capability, ok := c.capabilities[id]

	return capability, ok
}

// All returns every capability in registration order.
func (c *Catalog) All() []models.Capability {
	all := make([]models.Capability, 0, len(c.order))
	for _, id := range c.order {
		all = append(all, c.capabilities[id])
	}

	return all
}

// ByGroup returns capabilities grouped by category, each group in
// registration order.
func (c *Catalog) ByGroup() map[models.CapabilityGroup][]models.Capability {
	groups := make(map[models.CapabilityGroup][]models.Capability)
	for _, id := range c.order {
		capability := c.capabilities[id]
		groups[capability.Group] = append(groups[capability.Group], capability)
	}

	return groups
}

// Len returns the number of registered capabilities.
func (c *Catalog) Len() int {
	return len(c.capabilities)
}

// RenderSummary produces the bounded text context handed to the generation
// backend: capabilities grouped by category with id, description and a risk
// marker, at most maxPerGroup entries per category.
func (c *Catalog) RenderSummary(maxPerGroup int) string {
	if maxPerGroup <= 0 {
		maxPerGroup = DefaultSummaryLimit
	}

	groups := c.ByGroup()

	names := make([]string, 0, len(groups))
	for group := range groups {
		names = append(names, string(group))
	}

	sort.Strings(names)

	var b strings.Builder

	for _, name := range names {
		fmt.Fprintf(&b, "## %s\n", name)

		entries := groups[models.CapabilityGroup(name)]
		if len(entries) > maxPerGroup {
			entries = entries[:maxPerGroup]
		}

		for _, capability := range entries {
			fmt.Fprintf(&b, "- %s: %s %s\n", capability.ID, capability.Description, riskMarker(capability.Risk))
		}

		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func riskMarker(risk models.RiskClass) string {
	switch risk {
	case models.RiskDestructive:
		return "[DESTRUCTIVE]"
	case models.RiskModerate:
		return "[moderate]"
	default:
		return "[safe]"
	}
}
