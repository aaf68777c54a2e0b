package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/study-planner/internal/models"
	appErrors "github.com/noah-isme/study-planner/pkg/errors"
)

const taskFileDateLayout = "2006-01-02"

// TaskFileRepository reads task records from a YAML document:
//
//	tasks:
//	  - id: 1
//	    owner: 42
//	    name: Essay
//	    subject: History
//	    estimatedMinutes: 400
//	    deadline: 2024-03-10
//
// The file is re-read on every call so edits are picked up without restarts.
type TaskFileRepository struct {
	path string
}

type taskFile struct {
	Tasks []taskRecord `yaml:"tasks"`
}

type taskRecord struct {
	ID               int64  `yaml:"id"`
	Owner            int64  `yaml:"owner"`
	Name             string `yaml:"name"`
	Subject          string `yaml:"subject"`
	EstimatedMinutes *int   `yaml:"estimatedMinutes"`
	Deadline         string `yaml:"deadline"`
	Completed        bool   `yaml:"completed"`
}

// NewTaskFileRepository builds repository.
func NewTaskFileRepository(path string) *TaskFileRepository {
	return &TaskFileRepository{path: path}
}

// Path returns the backing file.
func (r *TaskFileRepository) Path() string {
	return r.path
}

// ListPlannableByOwner mirrors TaskRepository.ListPlannableByOwner. Records
// without an owner belong to every owner.
func (r *TaskFileRepository) ListPlannableByOwner(ctx context.Context, ownerID int64, includeCompleted bool) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "task file not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	var doc taskFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode task file %s: %w", r.path, err)
	}

	tasks := make([]models.Task, 0, len(doc.Tasks))
	for i, rec := range doc.Tasks {
		if rec.Owner != 0 && rec.Owner != ownerID {
			continue
		}
		if rec.Completed && !includeCompleted {
			continue
		}
		task := models.Task{
			ID:               rec.ID,
			OwnerID:          ownerID,
			Name:             rec.Name,
			SubjectName:      rec.Subject,
			EstimatedMinutes: rec.EstimatedMinutes,
			Completed:        rec.Completed,
		}
		if task.ID == 0 {
			task.ID = int64(i + 1)
		}
		if rec.Deadline != "" {
			deadline, err := time.Parse(taskFileDateLayout, rec.Deadline)
			if err != nil {
				return nil, fmt.Errorf("task %d deadline %q: %w", task.ID, rec.Deadline, err)
			}
			task.Deadline = &deadline
		}
		if !task.Plannable() {
			continue
		}
		tasks = append(tasks, task)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].Deadline, tasks[j].Deadline
		switch {
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		case (a == nil) != (b == nil):
			return a != nil
		default:
			return tasks[i].ID < tasks[j].ID
		}
	})
	return tasks, nil
}
