package models

import "time"

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// Rank orders statuses for display: open work first, finished work last
func (s TaskStatus) Rank() int {
	switch s {
	case TaskStatusTodo:
		return 0
	case TaskStatusInProgress:
		return 1
	default:
		return 2
	}
}

// TaskPriority is stored but drives no behavior
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

// TaskList is a named, ordered grouping of tasks within a family
type TaskList struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	Color     *string   `json:"color,omitempty"`
	SortOrder int       `json:"sort_order"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultListIcon is used when a list is created without an icon
const DefaultListIcon = "📋"

// Task belongs to one list and, denormalized, to the list's family.
// CompletedAt and CompletedBy are either both set or both nil.
type Task struct {
	ID             string       `json:"id"`
	ListID         string       `json:"list_id"`
	FamilyID       string       `json:"family_id"`
	Title          string       `json:"title"`
	Description    *string      `json:"description,omitempty"`
	Status         TaskStatus   `json:"status"`
	Priority       TaskPriority `json:"priority"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	AssignedTo     *string      `json:"assigned_to,omitempty"`
	RecurrenceRule *string      `json:"recurrence_rule,omitempty"`
	Points         int          `json:"points"`
	CompletedAt    *time.Time   `json:"completed_at,omitempty"`
	CompletedBy    *string      `json:"completed_by,omitempty"`
	SortOrder      int          `json:"sort_order"`
	CreatedBy      string       `json:"created_by"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// IsDone reports whether the task is completed
func (t *Task) IsDone() bool {
	return t.Status == TaskStatusDone
}

// Toggled returns the status a toggle moves to: done goes back to todo,
// anything else becomes done.
func (t *Task) Toggled() TaskStatus {
	if t.Status == TaskStatusDone {
		return TaskStatusTodo
	}
	return TaskStatusDone
}

// ApplyStatus moves the task to status, keeping the completion fields in step:
// entering done stamps them with at and actorID, leaving done clears both.
func (t *Task) ApplyStatus(status TaskStatus, actorID string, at time.Time) {
	switch {
	case status == TaskStatusDone && t.Status != TaskStatusDone:
		completedAt := at
		completedBy := actorID
		t.CompletedAt = &completedAt
		t.CompletedBy = &completedBy
	case status != TaskStatusDone:
		t.CompletedAt = nil
		t.CompletedBy = nil
	}
	t.Status = status
	t.UpdatedAt = at
}

// TaskWithAssignee is a task joined with its assignee's display identity
type TaskWithAssignee struct {
	Task
	Assignee *MemberSummary `json:"assignee,omitempty"`
}

// TaskBuckets splits a list's tasks the way they are displayed
type TaskBuckets struct {
	Remaining []TaskWithAssignee `json:"remaining"`
	Completed []TaskWithAssignee `json:"completed"`
}

// SplitTasks separates done tasks from the rest, preserving order within each bucket
func SplitTasks(tasks []TaskWithAssignee) TaskBuckets {
	buckets := TaskBuckets{
		Remaining: []TaskWithAssignee{},
		Completed: []TaskWithAssignee{},
	}
	for _, task := range tasks {
		if task.IsDone() {
			buckets.Completed = append(buckets.Completed, task)
		} else {
			buckets.Remaining = append(buckets.Remaining, task)
		}
	}
	return buckets
}
