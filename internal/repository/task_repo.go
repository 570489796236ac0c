package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"familysync/internal/database"
	"familysync/internal/models"
)

// TaskRepository handles database operations for task lists and tasks.
// Every query is filtered by family, so records from other families read as not found.
type TaskRepository struct {
	db *database.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(db *database.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskListColumns = "id, family_id, name, icon, color, sort_order, created_by, created_at"

func scanTaskList(row scanner) (*models.TaskList, error) {
	var list models.TaskList
	var color sql.NullString
	err := row.Scan(
		&list.ID,
		&list.FamilyID,
		&list.Name,
		&list.Icon,
		&color,
		&list.SortOrder,
		&list.CreatedBy,
		&list.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	list.Color = stringPtr(color)
	return &list, nil
}

func insertTaskList(ctx context.Context, db database.DBTX, l *models.TaskList) error {
	query := `
		INSERT INTO task_lists (id, family_id, name, icon, color, sort_order, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		l.ID, l.FamilyID, l.Name, l.Icon, nullableString(l.Color), l.SortOrder, l.CreatedBy, l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task list: %w", err)
	}
	return nil
}

// ListLists returns a family's task lists in display order
func (r *TaskRepository) ListLists(ctx context.Context, familyID string) ([]models.TaskList, error) {
	query := "SELECT " + taskListColumns + " FROM task_lists WHERE family_id = ? ORDER BY sort_order ASC, created_at ASC"
	rows, err := r.db.QueryContext(ctx, query, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task lists: %w", err)
	}
	defer rows.Close()

	lists := []models.TaskList{}
	for rows.Next() {
		list, err := scanTaskList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task list: %w", err)
		}
		lists = append(lists, *list)
	}
	return lists, rows.Err()
}

// GetList retrieves one of a family's lists
func (r *TaskRepository) GetList(ctx context.Context, familyID, listID string) (*models.TaskList, error) {
	query := "SELECT " + taskListColumns + " FROM task_lists WHERE id = ? AND family_id = ?"
	list, err := scanTaskList(r.db.QueryRowContext(ctx, query, listID, familyID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task list: %w", err)
	}
	return list, nil
}

// CreateList appends a list after the family's existing ones. ID, SortOrder and CreatedAt are filled in.
func (r *TaskRepository) CreateList(ctx context.Context, list *models.TaskList) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		var next int
		err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(sort_order), -1) + 1 FROM task_lists WHERE family_id = ?", list.FamilyID,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to compute list order: %w", err)
		}

		list.ID = newID()
		list.SortOrder = next
		list.CreatedAt = now()
		return insertTaskList(ctx, tx, list)
	})
}

// statusRankExpr orders open work before finished work
const statusRankExpr = "CASE t.status WHEN 'todo' THEN 0 WHEN 'in_progress' THEN 1 ELSE 2 END"

func taskSelect() sq.SelectBuilder {
	return builder.Select(
		"t.id", "t.list_id", "t.family_id", "t.title", "t.description", "t.status", "t.priority",
		"t.due_date", "t.assigned_to", "t.recurrence_rule", "t.points", "t.completed_at", "t.completed_by",
		"t.sort_order", "t.created_by", "t.created_at", "t.updated_at",
		"m.id", "m.name", "m.color",
	).
		From("tasks t").
		LeftJoin("members m ON m.id = t.assigned_to")
}

func scanTask(row scanner) (*models.TaskWithAssignee, error) {
	var (
		task                            models.TaskWithAssignee
		description, assignedTo, rule   sql.NullString
		completedBy                     sql.NullString
		dueDate, completedAt            sql.NullTime
		assigneeID, assigneeName, color sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.ListID,
		&task.FamilyID,
		&task.Title,
		&description,
		&task.Status,
		&task.Priority,
		&dueDate,
		&assignedTo,
		&rule,
		&task.Points,
		&completedAt,
		&completedBy,
		&task.SortOrder,
		&task.CreatedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
		&assigneeID,
		&assigneeName,
		&color,
	)
	if err != nil {
		return nil, err
	}

	task.Description = stringPtr(description)
	task.DueDate = timePtr(dueDate)
	task.AssignedTo = stringPtr(assignedTo)
	task.RecurrenceRule = stringPtr(rule)
	task.CompletedAt = timePtr(completedAt)
	task.CompletedBy = stringPtr(completedBy)
	if assigneeID.Valid {
		task.Assignee = &models.MemberSummary{
			ID:    assigneeID.String,
			Name:  assigneeName.String,
			Color: color.String,
		}
	}
	return &task, nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, q sq.SelectBuilder) ([]models.TaskWithAssignee, error) {
	rows, err := queryBuilt(ctx, r.db, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.TaskWithAssignee{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

// ListTasks returns a list's tasks ordered by status (todo, in progress, done) then sort order
func (r *TaskRepository) ListTasks(ctx context.Context, familyID, listID string) ([]models.TaskWithAssignee, error) {
	q := taskSelect().
		Where(sq.Eq{"t.family_id": familyID, "t.list_id": listID}).
		OrderBy(statusRankExpr, "t.sort_order ASC", "t.created_at ASC")
	return r.queryTasks(ctx, q)
}

// UpcomingTasks returns a family's open tasks, soonest due first with undated tasks last
func (r *TaskRepository) UpcomingTasks(ctx context.Context, familyID string, limit int) ([]models.TaskWithAssignee, error) {
	q := taskSelect().
		Where(sq.Eq{"t.family_id": familyID}).
		Where(sq.NotEq{"t.status": string(models.TaskStatusDone)}).
		OrderBy("CASE WHEN t.due_date IS NULL THEN 1 ELSE 0 END", "t.due_date ASC", "t.created_at ASC").
		Limit(uint64(limit))
	return r.queryTasks(ctx, q)
}

// GetTask retrieves one of a family's tasks with its assignee
func (r *TaskRepository) GetTask(ctx context.Context, familyID, taskID string) (*models.TaskWithAssignee, error) {
	tasks, err := r.queryTasks(ctx, taskSelect().Where(sq.Eq{"t.id": taskID, "t.family_id": familyID}))
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

// CreateTask appends a task to the end of its list. ID, SortOrder, CreatedAt and UpdatedAt are filled in.
func (r *TaskRepository) CreateTask(ctx context.Context, task *models.Task) error {
	return r.db.WithTx(ctx, func(tx *database.Tx) error {
		var next int
		err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(sort_order), -1) + 1 FROM tasks WHERE list_id = ?", task.ListID,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to compute task order: %w", err)
		}

		ts := now()
		task.ID = newID()
		task.SortOrder = next
		task.CreatedAt = ts
		task.UpdatedAt = ts

		query := `
			INSERT INTO tasks (id, list_id, family_id, title, description, status, priority, due_date, assigned_to,
				recurrence_rule, points, completed_at, completed_by, sort_order, created_by, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err = tx.ExecContext(ctx, query,
			task.ID,
			task.ListID,
			task.FamilyID,
			task.Title,
			nullableString(task.Description),
			task.Status,
			task.Priority,
			nullableTime(task.DueDate),
			nullableString(task.AssignedTo),
			nullableString(task.RecurrenceRule),
			task.Points,
			nullableTime(task.CompletedAt),
			nullableString(task.CompletedBy),
			task.SortOrder,
			task.CreatedBy,
			task.CreatedAt,
			task.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		return nil
	})
}

// UpdateTaskStatus persists status and the completion pair together
func (r *TaskRepository) UpdateTaskStatus(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks
		SET status = ?, completed_at = ?, completed_by = ?, updated_at = ?
		WHERE id = ? AND family_id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		task.Status,
		nullableTime(task.CompletedAt),
		nullableString(task.CompletedBy),
		task.UpdatedAt.UTC(),
		task.ID,
		task.FamilyID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read task update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
