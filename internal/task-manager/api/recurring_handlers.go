package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/jonboulle/clockwork"

	taskDB "task-recurrence-service/internal/task-manager/db"
	"task-recurrence-service/internal/task-manager/services"
	"task-recurrence-service/pkg/validation"
)

type RecurringTaskHandler struct {
	Rules *services.RuleService
	Clock clockwork.Clock
}

func NewRecurringTaskHandler(rules *services.RuleService, clock clockwork.Clock) *RecurringTaskHandler {
	return &RecurringTaskHandler{Rules: rules, Clock: clock}
}

type CreateRecurringTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	Pattern     string   `json:"pattern"`
	Interval    int      `json:"interval"`
	DaysOfWeek  []int    `json:"days_of_week"`
	DayOfMonth  *int     `json:"day_of_month"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	DueTime     *string  `json:"due_time"`
}

type UpdateRecurringTaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Priority    *string  `json:"priority"`
	Tags        []string `json:"tags"`
	Pattern     *string  `json:"pattern"`
	Interval    *int     `json:"interval"`
	DaysOfWeek  []int    `json:"days_of_week"`
	DayOfMonth  *int     `json:"day_of_month"`
	EndDate     *string  `json:"end_date"`
}

type CreateRecurringTaskResponse struct {
	RecurringTask *taskDB.RecurringTask `json:"recurring_task"`
	FirstInstance *taskDB.Task          `json:"first_instance"`
}

func (h *RecurringTaskHandler) CreateRecurringTask(ctx context.Context, c *app.RequestContext) {
	body := c.Request.Body()
	if err := validation.Validate(validation.SchemaRecurringRule, body); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	var req CreateRecurringTaskRequest
	if err := json.Unmarshal(body, &req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	endDate, err := parseDate("end_date", req.EndDate)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	rule, first, err := h.Rules.Create(ctx, UserID(c), services.RuleInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Pattern:     req.Pattern,
		Interval:    req.Interval,
		DaysOfWeek:  req.DaysOfWeek,
		DayOfMonth:  req.DayOfMonth,
		StartDate:   startDate,
		EndDate:     endDate,
		DueTime:     req.DueTime,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CreateRecurringTaskResponse{RecurringTask: rule, FirstInstance: first})
}

func (h *RecurringTaskHandler) GetRecurringTasks(ctx context.Context, c *app.RequestContext) {
	rules, err := h.Rules.List(ctx, UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *RecurringTaskHandler) GetRecurringTaskByID(ctx context.Context, c *app.RequestContext) {
	rule, err := h.Rules.Get(ctx, UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *RecurringTaskHandler) UpdateRecurringTask(ctx context.Context, c *app.RequestContext) {
	var req UpdateRecurringTaskRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	in := services.RuleUpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Pattern:     req.Pattern,
		Interval:    req.Interval,
		DaysOfWeek:  req.DaysOfWeek,
		DayOfMonth:  req.DayOfMonth,
	}
	if req.EndDate != nil {
		endDate, err := parseDate("end_date", *req.EndDate)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		in.EndDate = endDate
	}

	rule, err := h.Rules.Update(ctx, UserID(c), c.Param("id"), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

// DeleteRecurringTask deactivates the rule. Existing instances are kept.
func (h *RecurringTaskHandler) DeleteRecurringTask(ctx context.Context, c *app.RequestContext) {
	if err := h.Rules.Deactivate(ctx, UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.H{"message": "Recurring task deactivated"})
}

// PreviewRecurringTask lists upcoming due dates. Query: count (default 5),
// from (YYYY-MM-DD, default today).
func (h *RecurringTaskHandler) PreviewRecurringTask(ctx context.Context, c *app.RequestContext) {
	count := 5
	if v := c.Query("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "count must be a positive integer")
			return
		}
		count = n
	}
	from := taskDB.DateOnly(h.Clock.Now())
	if v := c.Query("from"); v != "" {
		t, err := parseDate("from", v)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		from = *t
	}

	dates, err := h.Rules.Preview(ctx, UserID(c), c.Param("id"), from, count)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(dateLayout))
	}
	c.JSON(http.StatusOK, utils.H{"dates": out})
}
