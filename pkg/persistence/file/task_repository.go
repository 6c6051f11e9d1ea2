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

const dirPerm = 0o755

// TaskRepository stores each scheduled task as tasks/<id>.json.
type TaskRepository struct {
	root string
}

func NewTaskRepository(root string) *TaskRepository {
	return &TaskRepository{root: root}
}

func (tr *TaskRepository) tasksDir() string {
	return filepath.Join(tr.root, "tasks")
}

func (tr *TaskRepository) Tasks(ctx context.Context) ([]*models.ScheduledTask, error) {
	entries, err := fs.Glob(os.DirFS(tr.tasksDir()), "*.json")
	if err != nil {
		return nil, &persistence.StoreError{Op: "Tasks", EntityID: tr.tasksDir(), Err: err}
	}

	tasks := make([]*models.ScheduledTask, 0, len(entries))

	for _, entry := range entries {
		id := entry[:len(entry)-len(".json")]

		task, err := tr.TaskByID(ctx, id)
		if err != nil {
			return nil, err
		}

		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })

	return tasks, nil
}

func (tr *TaskRepository) TaskByID(_ context.Context, id string) (*models.ScheduledTask, error) {
	data, err := os.ReadFile(filepath.Join(tr.tasksDir(), id+".json"))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrTaskNotFound, id)
	}

	if err != nil {
		return nil, &persistence.StoreError{Op: "TaskByID", EntityID: id, Err: err}
	}

	var task models.ScheduledTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, &persistence.StoreError{Op: "TaskByID", EntityID: id, Err: err}
	}

	return &task, nil
}

func (tr *TaskRepository) SaveTask(_ context.Context, task *models.ScheduledTask) error {
	if err := task.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(tr.tasksDir(), dirPerm); err != nil {
		return &persistence.StoreError{Op: "SaveTask", EntityID: task.ID, Err: err}
	}

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return &persistence.StoreError{Op: "SaveTask", EntityID: task.ID, Err: err}
	}

	target := filepath.Join(tr.tasksDir(), task.ID+".json")

	// Write-then-rename so readers never observe a partial document.
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &persistence.StoreError{Op: "SaveTask", EntityID: task.ID, Err: err}
	}

	if err := os.Rename(tmp, target); err != nil {
		return &persistence.StoreError{Op: "SaveTask", EntityID: task.ID, Err: err}
	}

	return nil
}

func (tr *TaskRepository) DeleteTask(_ context.Context, id string) error {
	err := os.Remove(filepath.Join(tr.tasksDir(), id+".json"))
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", persistence.ErrTaskNotFound, id)
	}

	if err != nil {
		return &persistence.StoreError{Op: "DeleteTask", EntityID: id, Err: err}
	}

	return nil
}
