package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/study-planner/internal/models"
)

// TaskRepository reads task records from PostgreSQL. The schema is owned by
// the surrounding application; the planner only reads it.
type TaskRepository struct {
	db *sqlx.DB
}

// NewTaskRepository builds repository.
func NewTaskRepository(db *sqlx.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// ListPlannableByOwner returns the owner's tasks with a positive estimate,
// most urgent first. Completed tasks are skipped unless includeCompleted.
func (r *TaskRepository) ListPlannableByOwner(ctx context.Context, ownerID int64, includeCompleted bool) ([]models.Task, error) {
	const query = `SELECT t.id, t.owner_id, t.name, COALESCE(s.name, '') AS subject_name, t.estimated_minutes, t.deadline, t.completed
FROM tasks t
LEFT JOIN subjects s ON s.id = t.subject_id
WHERE t.owner_id = $1 AND t.estimated_minutes > 0 AND ($2 OR t.completed = FALSE)
ORDER BY t.deadline ASC NULLS LAST, t.id ASC`
	var tasks []models.Task
	if err := r.db.SelectContext(ctx, &tasks, query, ownerID, includeCompleted); err != nil {
		return nil, fmt.Errorf("list plannable tasks: %w", err)
	}
	return tasks, nil
}
