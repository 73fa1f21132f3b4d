package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"task-recurrence-service/internal/task-manager/recurrence"
	"task-recurrence-service/internal/task-manager/services"
)

const dateLayout = "2006-01-02"

var errMissingRemindDate = errors.New("reminder.remind_date is required")

func writeError(c *app.RequestContext, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidTask),
		errors.Is(err, services.ErrInvalidRule),
		errors.Is(err, recurrence.ErrUnknownPattern):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		hlog.Errorf("Request %s %s failed: %v", c.Method(), c.Path(), err)
	}
	c.JSON(status, utils.H{"error": err.Error()})
}

func badRequest(c *app.RequestContext, msg string) {
	c.JSON(http.StatusBadRequest, utils.H{"error": msg})
}

func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD: %w", field, err)
	}
	return &t, nil
}
