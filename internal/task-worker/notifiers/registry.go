package notifiers

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Notifier type names.
const (
	NotifierLog      = "log"
	NotifierTelegram = "telegram"
)

// Reminder is what a notifier delivers.
type Reminder struct {
	TaskID   string
	UserID   string
	Type     string // due_soon | overdue
	DueAt    time.Time
	RemindAt time.Time
}

type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// Registry holds the notifiers a reminder fans out to.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

// Register adds n under name, replacing any previous notifier of that name.
func (r *Registry) Register(name string, n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[name] = n
}

func (r *Registry) Get(name string) (Notifier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifiers[name]
	if !ok {
		return nil, fmt.Errorf("no notifier registered for type: %s", name)
	}
	return n, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
