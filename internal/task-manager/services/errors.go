package services

import (
	"errors"

	"task-recurrence-service/internal/task-manager/recurrence"
)

var (
	ErrInvalidRule = recurrence.ErrInvalidRule
	ErrInvalidTask = errors.New("invalid task")
	ErrNotFound    = errors.New("not found")
	ErrForbidden   = errors.New("access denied")

	// ErrSuccessorExists means the completed task already has its next
	// instance. Callers treat it as a no-op.
	ErrSuccessorExists = errors.New("successor instance already exists")
)
