package api

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"task-recurrence-service/internal/task-manager/services"
)

// Handlers groups everything the task-manager router serves.
type Handlers struct {
	Tasks     *TaskHandler
	Recurring *RecurringTaskHandler
	Audit     *AuditHandler
	Scanner   services.Scanner
	JWTSecret string
}

// RegisterRoutes mounts the API on r. /ping and /metrics are public;
// everything else requires a bearer token.
func RegisterRoutes(r *route.Engine, h Handlers) {
	RegisterHealthRoutes(r)

	auth := AuthMiddleware(h.JWTSecret)

	taskGroup := r.Group("/tasks", auth)
	{
		taskGroup.POST("", h.Tasks.CreateTask)
		taskGroup.GET("", h.Tasks.GetTasks)
		taskGroup.GET("/:id", h.Tasks.GetTaskByID)
		taskGroup.PUT("/:id", h.Tasks.UpdateTask)
		taskGroup.DELETE("/:id", h.Tasks.DeleteTask)
		taskGroup.PATCH("/:id/complete", h.Tasks.ToggleComplete)
		taskGroup.POST("/:id/reminder/ack", h.Tasks.AcknowledgeReminder)
	}
	recurringGroup := r.Group("/recurring-tasks", auth)
	{
		recurringGroup.POST("", h.Recurring.CreateRecurringTask)
		recurringGroup.GET("", h.Recurring.GetRecurringTasks)
		recurringGroup.GET("/:id", h.Recurring.GetRecurringTaskByID)
		recurringGroup.PUT("/:id", h.Recurring.UpdateRecurringTask)
		recurringGroup.DELETE("/:id", h.Recurring.DeleteRecurringTask)
		recurringGroup.GET("/:id/preview", h.Recurring.PreviewRecurringTask)
	}
	r.GET("/audit", auth, h.Audit.GetAuditLogs)

	adminGroup := r.Group("/admin", auth)
	adminGroup.POST("/reminders/scan", func(ctx context.Context, c *app.RequestContext) {
		n, err := h.Scanner.Scan(ctx)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, utils.H{"reminders_published": n})
	})
}

// RegisterHealthRoutes mounts /ping and /metrics. The worker serves only these.
func RegisterHealthRoutes(r *route.Engine) {
	r.GET("/ping", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(http.StatusOK, utils.H{"message": "pong"})
	})
	r.GET("/metrics", adaptor.HertzHandler(promhttp.Handler()))
}
