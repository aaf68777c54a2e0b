package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/study-planner/pkg/errors"
)

const sampleTaskFile = `
tasks:
  - id: 3
    name: Reading
    subject: Literature
    estimatedMinutes: 90
  - id: 1
    owner: 42
    name: Essay
    subject: History
    estimatedMinutes: 400
    deadline: "2024-03-10"
  - id: 2
    owner: 7
    name: Someone else's lab
    estimatedMinutes: 60
  - id: 4
    name: Done already
    estimatedMinutes: 30
    completed: true
  - id: 5
    name: Not estimated
`

func writeTaskFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestTaskFileRepositoryListPlannableByOwner(t *testing.T) {
	repo := NewTaskFileRepository(writeTaskFile(t, sampleTaskFile))

	tasks, err := repo.ListPlannableByOwner(context.Background(), 42, false)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.Equal(t, int64(1), tasks[0].ID)
	assert.Equal(t, "History", tasks[0].SubjectName)
	require.NotNil(t, tasks[0].Deadline)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), *tasks[0].Deadline)
	assert.Equal(t, int64(3), tasks[1].ID)
	assert.Equal(t, int64(42), tasks[1].OwnerID)

	withCompleted, err := repo.ListPlannableByOwner(context.Background(), 42, true)
	require.NoError(t, err)
	assert.Len(t, withCompleted, 3)
}

func TestTaskFileRepositoryRejectsBadDeadline(t *testing.T) {
	repo := NewTaskFileRepository(writeTaskFile(t, "tasks:\n  - id: 1\n    estimatedMinutes: 30\n    deadline: next week\n"))
	_, err := repo.ListPlannableByOwner(context.Background(), 1, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadline")
}

func TestTaskFileRepositoryMissingFile(t *testing.T) {
	repo := NewTaskFileRepository(filepath.Join(t.TempDir(), "absent.yaml"))
	_, err := repo.ListPlannableByOwner(context.Background(), 1, false)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
