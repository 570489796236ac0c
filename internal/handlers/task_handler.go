package handlers

import (
	"net/http"

	"familysync/internal/models"
	"familysync/internal/service"
)

// TaskHandler handles task lists and tasks
type TaskHandler struct {
	taskService *service.TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(taskService *service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

type createListRequest struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

type taskStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

type listTasksResponse struct {
	List      *models.TaskList          `json:"list"`
	Remaining []models.TaskWithAssignee `json:"remaining"`
	Completed []models.TaskWithAssignee `json:"completed"`
}

// ListLists returns the family's task lists
func (h *TaskHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	lists, err := h.taskService.ListLists(r.Context(), GetIdentityFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Error listing task lists")
		return
	}

	respondJSON(w, http.StatusOK, lists)
}

// CreateList adds a task list
func (h *TaskHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	list, err := h.taskService.CreateList(r.Context(), GetIdentityFromContext(r.Context()), req.Name, req.Icon, req.Color)
	if err != nil {
		respondServiceError(w, err, "Error creating task list")
		return
	}

	respondJSON(w, http.StatusCreated, list)
}

// ListTasks returns one list with its tasks split into remaining and completed
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	list, buckets, err := h.taskService.ListTasks(r.Context(), GetIdentityFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err, "Error listing tasks")
		return
	}

	respondJSON(w, http.StatusOK, listTasksResponse{
		List:      list,
		Remaining: buckets.Remaining,
		Completed: buckets.Completed,
	})
}

// CreateTask adds a task to a list
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var input service.TaskInput
	if err := decodeJSON(w, r, &input); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), GetIdentityFromContext(r.Context()), r.PathValue("id"), input)
	if err != nil {
		respondServiceError(w, err, "Error creating task")
		return
	}

	respondJSON(w, http.StatusCreated, task)
}

// ToggleTask flips a task between done and not done
func (h *TaskHandler) ToggleTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.taskService.ToggleTask(r.Context(), GetIdentityFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respondServiceError(w, err, "Error toggling task")
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// SetStatus moves a task to the requested status
func (h *TaskHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req taskStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidRequestBody, "", nil)
		return
	}

	task, err := h.taskService.SetTaskStatus(r.Context(), GetIdentityFromContext(r.Context()), r.PathValue("id"), req.Status)
	if err != nil {
		respondServiceError(w, err, "Error updating task status")
		return
	}

	respondJSON(w, http.StatusOK, task)
}
