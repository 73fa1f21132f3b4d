package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"

	"task-recurrence-service/internal/task-manager/services"
)

type AuditHandler struct {
	Audit *services.AuditService
}

func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{Audit: audit}
}

// GetAuditLogs returns the caller's audit trail, newest first.
func (h *AuditHandler) GetAuditLogs(ctx context.Context, c *app.RequestContext) {
	q := services.AuditQuery{UserID: UserID(c), EventType: c.Query("event_type")}
	var err error
	if q.Limit, err = intQuery(c, "limit"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if q.Offset, err = intQuery(c, "offset"); err != nil {
		badRequest(c, err.Error())
		return
	}

	records, total, err := h.Audit.List(ctx, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, utils.H{"items": records, "total": total})
}

func intQuery(c *app.RequestContext, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errInvalidQuery(key)
	}
	return n, nil
}

type errInvalidQuery string

func (e errInvalidQuery) Error() string {
	return string(e) + " must be a non-negative integer"
}
