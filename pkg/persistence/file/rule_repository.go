package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/opsweep/opsweep/pkg/models"
	"github.com/opsweep/opsweep/pkg/persistence"
)

// RuleRepository stores each automation rule as rules/<id>.json.
type RuleRepository struct {
	root string
}

func NewRuleRepository(root string) *RuleRepository {
	return &RuleRepository{root: root}
}

func (rr *RuleRepository) rulesDir() string {
	return filepath.Join(rr.root, "rules")
}

func (rr *RuleRepository) Rules(ctx context.Context) ([]*models.AutomationRule, error) {
	entries, err := fs.Glob(os.DirFS(rr.rulesDir()), "*.json")
	if err != nil {
		return nil, &persistence.StoreError{Op: "Rules", EntityID: rr.rulesDir(), Err: err}
	}

	rules := make([]*models.AutomationRule, 0, len(entries))

	for _, entry := range entries {
		id := entry[:len(entry)-len(".json")]

		rule, err := rr.RuleByID(ctx, id)
		if err != nil {
			return nil, err
		}

		rules = append(rules, rule)
	}

	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })

	return rules, nil
}

func (rr *RuleRepository) RuleByID(_ context.Context, id string) (*models.AutomationRule, error) {
	data, err := os.ReadFile(filepath.Join(rr.rulesDir(), id+".json"))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrRuleNotFound, id)
	}

	if err != nil {
		return nil, &persistence.StoreError{Op: "RuleByID", EntityID: id, Err: err}
	}

	var rule models.AutomationRule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, &persistence.StoreError{Op: "RuleByID", EntityID: id, Err: err}
	}

	return &rule, nil
}

func (rr *RuleRepository) SaveRule(_ context.Context, rule *models.AutomationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(rr.rulesDir(), dirPerm); err != nil {
		return &persistence.StoreError{Op: "SaveRule", EntityID: rule.ID, Err: err}
	}

	data, err := json.MarshalIndent(rule, "", "  ")
	if err != nil {
		return &persistence.StoreError{Op: "SaveRule", EntityID: rule.ID, Err: err}
	}

	target := filepath.Join(rr.rulesDir(), rule.ID+".json")

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &persistence.StoreError{Op: "SaveRule", EntityID: rule.ID, Err: err}
	}

	if err := os.Rename(tmp, target); err != nil {
		return &persistence.StoreError{Op: "SaveRule", EntityID: rule.ID, Err: err}
	}

	return nil
}

func (rr *RuleRepository) DeleteRule(_ context.Context, id string) error {
	err := os.Remove(filepath.Join(rr.rulesDir(), id+".json"))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", persistence.ErrRuleNotFound, id)
	}

	if err != nil {
		return &persistence.StoreError{Op: "DeleteRule", EntityID: id, Err: err}
	}

	return nil
}
