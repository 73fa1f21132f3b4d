package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"task-recurrence-service/internal/task-manager/services"
	"task-recurrence-service/pkg/validation"
)

type TaskHandler struct {
	Tasks *services.TaskService
}

func NewTaskHandler(tasks *services.TaskService) *TaskHandler {
	return &TaskHandler{Tasks: tasks}
}

type ReminderRequest struct {
	RemindDate string  `json:"remind_date"`
	RemindTime *string `json:"remind_time"`
}

type CreateTaskRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    string           `json:"priority"`
	Tags        []string         `json:"tags"`
	DueDate     string           `json:"due_date"`
	DueTime     *string          `json:"due_time"`
	Reminder    *ReminderRequest `json:"reminder"`
}

type UpdateTaskRequest struct {
	Title          *string          `json:"title"`
	Description    *string          `json:"description"`
	Priority       *string          `json:"priority"`
	Tags           []string         `json:"tags"`
	DueDate        *string          `json:"due_date"`
	DueTime        *string          `json:"due_time"`
	Reminder       *ReminderRequest `json:"reminder"`
	RemoveReminder bool             `json:"remove_reminder"`
}

func (r *ReminderRequest) toInput() (*services.ReminderInput, error) {
	if r == nil {
		return nil, nil
	}
	date, err := parseDate("remind_date", r.RemindDate)
	if err != nil {
		return nil, err
	}
	if date == nil {
		return nil, errMissingRemindDate
	}
	return &services.ReminderInput{RemindDate: *date, RemindTime: r.RemindTime}, nil
}

func (h *TaskHandler) CreateTask(ctx context.Context, c *app.RequestContext) {
	body := c.Request.Body()
	if err := validation.Validate(validation.SchemaTaskCreate, body); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	var req CreateTaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	reminder, err := req.Reminder.toInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	task, err := h.Tasks.Create(ctx, UserID(c), services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		DueDate:     dueDate,
		DueTime:     req.DueTime,
		Reminder:    reminder,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// GetTasks lists the caller's tasks. Query: status (pending|completed),
// completed, priority, overdue, due_soon, date_from, date_to, sort_by,
// sort_order (asc|desc, default desc), recurring_task_id.
func (h *TaskHandler) GetTasks(ctx context.Context, c *app.RequestContext) {
	filter, err := parseTaskFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	tasks, err := h.Tasks.List(ctx, UserID(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func parseTaskFilter(c *app.RequestContext) (services.TaskFilter, error) {
	filter := services.TaskFilter{
		RecurringTaskID: c.Query("recurring_task_id"),
		Priority:        c.Query("priority"),
		SortBy:          c.Query("sort_by"),
	}
	switch status := c.Query("status"); status {
	case "":
	case "completed", "pending":
		completed := status == "completed"
		filter.Completed = &completed
	default:
		return filter, errors.New("status must be pending or completed")
	}
	if v := c.Query("completed"); v != "" {
		completed, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("completed must be true or false")
		}
		filter.Completed = &completed
	}
	for name, dst := range map[string]*bool{"overdue": &filter.Overdue, "due_soon": &filter.DueSoon} {
		if v := c.Query(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return filter, fmt.Errorf("%s must be true or false", name)
			}
			*dst = b
		}
	}
	var err error
	if filter.DateFrom, err = parseDate("date_from", c.Query("date_from")); err != nil {
		return filter, err
	}
	if filter.DateTo, err = parseDate("date_to", c.Query("date_to")); err != nil {
		return filter, err
	}
	switch order := c.Query("sort_order"); order {
	case "", "desc":
		filter.SortDesc = true
	case "asc":
	default:
		return filter, errors.New("sort_order must be asc or desc")
	}
	return filter, nil
}

func (h *TaskHandler) GetTaskByID(ctx context.Context, c *app.RequestContext) {
	task, err := h.Tasks.Get(ctx, UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(ctx context.Context, c *app.RequestContext) {
	var req UpdateTaskRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	in := services.UpdateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		Tags:           req.Tags,
		DueTime:        req.DueTime,
		RemoveReminder: req.RemoveReminder,
	}
	if req.DueDate != nil {
		dueDate, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		in.DueDate = dueDate
	}
	reminder, err := req.Reminder.toInput()
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	in.Reminder = reminder

	task, err := h.Tasks.Update(ctx, UserID(c), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// ToggleComplete flips the task between completed and open.
func (h *TaskHandler) ToggleComplete(ctx context.Context, c *app.RequestContext) {
	task, err := h.Tasks.ToggleComplete(ctx, UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(ctx context.Context, c *app.RequestContext) {
	if err := h.Tasks.Delete(ctx, UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.H{"message": "Task deleted successfully"})
}

func (h *TaskHandler) AcknowledgeReminder(ctx context.Context, c *app.RequestContext) {
	reminder, err := h.Tasks.AcknowledgeReminder(ctx, UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reminder)
}
