// Package scheduler runs curation tasks on cron schedules for the long-running daemon
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrBusy is returned when a task is asked to run while another task is running
var ErrBusy = errors.New("another task is running")

// Task is a named job run on a cron schedule
type Task struct {
	Key  string
	Spec string // standard five-field cron spec or descriptor such as "@daily"
	Run  func(ctx context.Context) error

	entryID cron.EntryID
}

// Manager handles scheduling and execution of tasks. At most one task runs at a time,
// whether started by cron or by RunNow: a task that comes due while another is running is
// skipped, not queued
type Manager struct {
	tasks  map[string]*Task
	logger *zap.Logger

	// Concurrency
	mutex   sync.RWMutex
	running sync.Mutex // held for the duration of a task run
	ctx     context.Context
	cancel  context.CancelFunc

	cron *cron.Cron
}

// NewManager creates and starts a manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")

	cronLogger := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		tasks:  make(map[string]*Task),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
	}

	m.cron.Start()
	return m
}

// Stop cancels running tasks and waits for them to return
func (m *Manager) Stop() {
	m.cancel()
	<-m.cron.Stop().Done()
}

// LoadTasks registers a list of tasks with the manager
func (m *Manager) LoadTasks(tasks []*Task) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, task := range tasks {
		if err := m.loadTask(task); err != nil {
			return fmt.Errorf("failed to load task '%s': %w", task.Key, err)
		}
	}

	return nil
}

// loadTask registers a single task (called with mutex held)
func (m *Manager) loadTask(task *Task) error {
	if task.Key == "" {
		return fmt.Errorf("task key cannot be empty")
	}
	if task.Run == nil {
		return fmt.Errorf("task has no run function")
	}
	if _, exists := m.tasks[task.Key]; exists {
		return fmt.Errorf("task already loaded")
	}

	id, err := m.cron.AddFunc(task.Spec, func() {
		_ = m.executeTask(task)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", task.Spec, err)
	}

	task.entryID = id
	m.tasks[task.Key] = task
	m.logger.Info("scheduled task", zap.String("task", task.Key), zap.String("spec", task.Spec))
	return nil
}

// RunNow executes a loaded task immediately in the caller's goroutine. It returns ErrBusy
// without running when another task is in progress
func (m *Manager) RunNow(key string) error {
	m.mutex.RLock()
	task, ok := m.tasks[key]
	m.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("task '%s' not found", key)
	}

	return m.executeTask(task)
}

// executeTask runs a task unless another one holds the run lock, and logs its outcome
func (m *Manager) executeTask(task *Task) error {
	if !m.running.TryLock() {
		m.logger.Warn("skipping task, another task is running", zap.String("task", task.Key))
		return ErrBusy
	}
	defer m.running.Unlock()

	start := time.Now()
	m.logger.Info("running task", zap.String("task", task.Key))

	err := task.Run(m.ctx)
	if err != nil {
		m.logger.Error("task failed", zap.String("task", task.Key), zap.Duration("duration", time.Since(start)), zap.Error(err))
		return err
	}

	m.logger.Info("task finished", zap.String("task", task.Key), zap.Duration("duration", time.Since(start)))
	return nil
}

// Next returns when a loaded task runs next
func (m *Manager) Next(key string) (time.Time, bool) {
	m.mutex.RLock()
	task, ok := m.tasks[key]
	m.mutex.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	return m.cron.Entry(task.entryID).Next, true
}

// GetTasks returns all loaded tasks sorted by key
func (m *Manager) GetTasks() []*Task {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	tasks := make([]*Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Key < tasks[j].Key })

	return tasks
}

// cronLogger routes cron's own logging (including recovered panics) through zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
