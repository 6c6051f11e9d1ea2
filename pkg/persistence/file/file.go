// Package file provides file-based persistence for scheduled tasks and
// automation rules. Each entity is one JSON document under the root
// directory.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/opsweep/opsweep/pkg/persistence"
)

// Persistence implements persistence.Persistence on the local file system.
type Persistence struct {
	root string

	*TaskRepository
	*RuleRepository
}

func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		TaskRepository: NewTaskRepository(cleanRoot),
		RuleRepository: NewRuleRepository(cleanRoot),
	}
}

var _ persistence.Persistence = (*Persistence)(nil)

func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close is a no-op for file persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
