package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"familysync/internal/models"
	"familysync/internal/realtime"
	"familysync/internal/repository"
	"familysync/internal/validation"
)

// TaskInput is a new task as entered by a member
type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
	AssignedTo  string `json:"assigned_to"`
	Points      int    `json:"points"`
}

// TaskService handles task lists and their tasks
type TaskService struct {
	taskRepo   *repository.TaskRepository
	memberRepo *repository.MemberRepository
	hub        *realtime.Hub
	now        func() time.Time
}

// NewTaskService creates a new task service
func NewTaskService(taskRepo *repository.TaskRepository, memberRepo *repository.MemberRepository, hub *realtime.Hub) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		memberRepo: memberRepo,
		hub:        hub,
		now:        time.Now,
	}
}

// ListLists returns the caller's family lists in display order
func (s *TaskService) ListLists(ctx context.Context, identity *models.Identity) ([]models.TaskList, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	return s.taskRepo.ListLists(ctx, familyID)
}

// CreateList appends a new list to the caller's family
func (s *TaskService) CreateList(ctx context.Context, identity *models.Identity, name, icon, color string) (*models.TaskList, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}

	name = strings.TrimSpace(name)
	if err := validation.ValidateRequired("name", name, validation.MaxNameLength); err != nil {
		return nil, err
	}

	icon = strings.TrimSpace(icon)
	if icon == "" {
		icon = models.DefaultListIcon
	}

	list := &models.TaskList{
		FamilyID:  familyID,
		Name:      name,
		Icon:      icon,
		CreatedBy: identity.Member.ID,
	}
	if c := strings.TrimSpace(color); c != "" {
		if err := validation.ValidateColor(c); err != nil {
			return nil, err
		}
		list.Color = &c
	}

	if err := s.taskRepo.CreateList(ctx, list); err != nil {
		return nil, err
	}

	s.hub.Publish(familyID, realtime.NewEvent(realtime.EventListCreated, list))
	return list, nil
}

// ListTasks returns a list's tasks split into remaining and completed
func (s *TaskService) ListTasks(ctx context.Context, identity *models.Identity, listID string) (*models.TaskList, models.TaskBuckets, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, models.TaskBuckets{}, err
	}

	list, err := s.taskRepo.GetList(ctx, familyID, listID)
	if err != nil {
		return nil, models.TaskBuckets{}, err
	}
	if list == nil {
		return nil, models.TaskBuckets{}, ErrListNotFound
	}

	tasks, err := s.taskRepo.ListTasks(ctx, familyID, listID)
	if err != nil {
		return nil, models.TaskBuckets{}, err
	}
	return list, models.SplitTasks(tasks), nil
}

// CreateTask adds a task to the end of one of the caller's family lists
func (s *TaskService) CreateTask(ctx context.Context, identity *models.Identity, listID string, input TaskInput) (*models.TaskWithAssignee, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if err := validation.ValidateRequired("title", title, validation.MaxTitleLength); err != nil {
		return nil, err
	}

	list, err := s.taskRepo.GetList(ctx, familyID, listID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, ErrListNotFound
	}

	priority := models.TaskPriorityMedium
	if p := strings.TrimSpace(input.Priority); p != "" {
		priority = models.TaskPriority(p)
		if !priority.IsValid() {
			return nil, validation.ValidationError{Field: "priority", Message: "priority must be low, medium, high or urgent"}
		}
	}

	if input.Points < 0 {
		return nil, validation.ValidationError{Field: "points", Message: "points cannot be negative"}
	}

	var dueDate *time.Time
	if d := strings.TrimSpace(input.DueDate); d != "" {
		due, err := time.ParseInLocation(DateLayout, dateOnly(d), identity.Family.Location())
		if err != nil {
			return nil, validation.ValidationError{Field: "due_date", Message: "due date must be a date (YYYY-MM-DD)"}
		}
		dueDate = &due
	}

	var assignee *models.MemberSummary
	var assignedTo *string
	if id := strings.TrimSpace(input.AssignedTo); id != "" {
		member, err := s.memberRepo.GetFamilyMember(ctx, familyID, id)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, ErrAssigneeNotInFamily
		}
		summary := member.Summary()
		assignee = &summary
		assignedTo = &id
	}

	task := &models.Task{
		ListID:      list.ID,
		FamilyID:    familyID,
		Title:       title,
		Description: blankToNil(input.Description),
		Status:      models.TaskStatusTodo,
		Priority:    priority,
		DueDate:     dueDate,
		AssignedTo:  assignedTo,
		Points:      input.Points,
		CreatedBy:   identity.Member.ID,
	}
	if err := s.taskRepo.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	created := &models.TaskWithAssignee{Task: *task, Assignee: assignee}
	s.hub.Publish(familyID, realtime.NewEvent(realtime.EventTaskCreated, created))
	return created, nil
}

// ToggleTask flips a task between done and todo
func (s *TaskService) ToggleTask(ctx context.Context, identity *models.Identity, taskID string) (*models.TaskWithAssignee, error) {
	return s.changeStatus(ctx, identity, taskID, func(t *models.Task) models.TaskStatus { return t.Toggled() })
}

// SetTaskStatus moves a task to an explicit status
func (s *TaskService) SetTaskStatus(ctx context.Context, identity *models.Identity, taskID string, status models.TaskStatus) (*models.TaskWithAssignee, error) {
	if !status.IsValid() {
		return nil, validation.ValidationError{Field: "status", Message: "status must be todo, in_progress or done"}
	}
	return s.changeStatus(ctx, identity, taskID, func(*models.Task) models.TaskStatus { return status })
}

func (s *TaskService) changeStatus(ctx context.Context, identity *models.Identity, taskID string, next func(*models.Task) models.TaskStatus) (*models.TaskWithAssignee, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}

	task, err := s.taskRepo.GetTask(ctx, familyID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}

	task.ApplyStatus(next(&task.Task), identity.Member.ID, s.now().UTC())
	if err := s.taskRepo.UpdateTaskStatus(ctx, &task.Task); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}

	s.hub.Publish(familyID, realtime.NewEvent(realtime.EventTaskUpdated, task))
	return task, nil
}

// UpcomingTasks returns the family's open tasks by due date, undated last
func (s *TaskService) UpcomingTasks(ctx context.Context, identity *models.Identity, limit int) ([]models.TaskWithAssignee, error) {
	familyID, err := identity.FamilyID()
	if err != nil {
		return nil, err
	}
	return s.taskRepo.UpcomingTasks(ctx, familyID, limit)
}
