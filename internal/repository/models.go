package repository

import (
	"time"

	"github.com/bkaraoglu/finishline/internal/domain"
)

// BatchModel is the persistence model for the batches table.
type BatchModel struct {
	ID             string `gorm:"type:varchar(128);primaryKey"`
	AllTasksLoaded bool   `gorm:"not null;default:false"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (BatchModel) TableName() string {
	return "batches"
}

// TaskModel is the persistence model for the tasks table.
type TaskModel struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	BatchID   string `gorm:"type:varchar(128);not null"`
	Completed bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TaskModel) TableName() string {
	return "tasks"
}

// OutboxMessageModel is the persistence model for staged broker messages.
type OutboxMessageModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Queue        string `gorm:"type:varchar(64);not null"`
	Payload      []byte `gorm:"type:bytea;not null"`
	DispatchedAt *time.Time
	CreatedAt    time.Time
}

func (OutboxMessageModel) TableName() string {
	return "outbox_messages"
}

// TaskExecutionModel is the persistence model for the work-unit execution log.
type TaskExecutionModel struct {
	ID         string  `gorm:"type:uuid;primaryKey"`
	TaskID     string  `gorm:"type:uuid;not null"`
	BatchID    string  `gorm:"type:varchar(128);not null"`
	Kind       string  `gorm:"type:varchar(64);not null"`
	OK         bool    `gorm:"not null"`
	Error      *string `gorm:"type:text"`
	DurationMs int64   `gorm:"not null;default:0"`
	CreatedAt  time.Time
}

func (TaskExecutionModel) TableName() string {
	return "task_executions"
}

func batchModelFromDomain(b *domain.Batch) *BatchModel {
	if b == nil {
		return nil
	}

	return &BatchModel{
		ID:             b.ID,
		AllTasksLoaded: b.AllTasksLoaded,
		CreatedAt:      b.CreatedAt,
		UpdatedAt:      b.UpdatedAt,
	}
}

func batchModelToDomain(m *BatchModel) *domain.Batch {
	if m == nil {
		return nil
	}

	return &domain.Batch{
		ID:             m.ID,
		AllTasksLoaded: m.AllTasksLoaded,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func taskModelFromDomain(t *domain.Task) *TaskModel {
	if t == nil {
		return nil
	}

	return &TaskModel{
		ID:        t.ID,
		BatchID:   t.BatchID,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func taskModelToDomain(m *TaskModel) *domain.Task {
	if m == nil {
		return nil
	}

	return &domain.Task{
		ID:        m.ID,
		BatchID:   m.BatchID,
		Completed: m.Completed,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func outboxModelFromDomain(msg *domain.OutboxMessage) *OutboxMessageModel {
	if msg == nil {
		return nil
	}

	return &OutboxMessageModel{
		ID:           msg.ID,
		Queue:        msg.Queue,
		Payload:      msg.Payload,
		DispatchedAt: msg.DispatchedAt,
		CreatedAt:    msg.CreatedAt,
	}
}

func outboxModelToDomain(m *OutboxMessageModel) *domain.OutboxMessage {
	if m == nil {
		return nil
	}

	return &domain.OutboxMessage{
		ID:           m.ID,
		Queue:        m.Queue,
		Payload:      m.Payload,
		DispatchedAt: m.DispatchedAt,
		CreatedAt:    m.CreatedAt,
	}
}

func executionModelFromDomain(e *domain.TaskExecution) *TaskExecutionModel {
	if e == nil {
		return nil
	}

	return &TaskExecutionModel{
		ID:         e.ID,
		TaskID:     e.TaskID,
		BatchID:    e.BatchID,
		Kind:       e.Kind,
		OK:         e.OK,
		Error:      e.Error,
		DurationMs: e.DurationMs,
		CreatedAt:  e.CreatedAt,
	}
}
