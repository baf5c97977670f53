package queue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TaskMessage schedules one task-runner execution. It carries the serialized
// work descriptor so the substrate can redeliver the whole step.
type TaskMessage struct {
	TaskID  string          `json:"taskId"`
	BatchID string          `json:"batchId"`
	Kind    string          `json:"kind"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (m TaskMessage) Validate() error {
	if strings.TrimSpace(m.TaskID) == "" {
		return fmt.Errorf("taskId is required")
	}
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	if strings.TrimSpace(m.Kind) == "" {
		return fmt.Errorf("kind is required")
	}
	return nil
}

// CheckMessage schedules a completion check for a batch.
type CheckMessage struct {
	BatchID string `json:"batchId"`
}

func (m CheckMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	return nil
}

// CleanupMessage schedules one cleanup page sweep for a batch.
type CleanupMessage struct {
	BatchID string `json:"batchId"`
}

func (m CleanupMessage) Validate() error {
	if strings.TrimSpace(m.BatchID) == "" {
		return fmt.Errorf("batchId is required")
	}
	return nil
}

func EncodeTaskMessage(m TaskMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task message: %w", err)
	}
	return json.Marshal(m)
}

func DecodeTaskMessage(body []byte) (TaskMessage, error) {
	var m TaskMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return TaskMessage{}, fmt.Errorf("malformed task message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return TaskMessage{}, fmt.Errorf("invalid task message: %w", err)
	}
	return m, nil
}

func EncodeCheckMessage(m CheckMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid check message: %w", err)
	}
	return json.Marshal(m)
}

func DecodeCheckMessage(body []byte) (CheckMessage, error) {
	var m CheckMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return CheckMessage{}, fmt.Errorf("malformed check message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return CheckMessage{}, fmt.Errorf("invalid check message: %w", err)
	}
	return m, nil
}

func EncodeCleanupMessage(m CleanupMessage) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cleanup message: %w", err)
	}
	return json.Marshal(m)
}

func DecodeCleanupMessage(body []byte) (CleanupMessage, error) {
	var m CleanupMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return CleanupMessage{}, fmt.Errorf("malformed cleanup message: %w", err)
	}
	if err := m.Validate(); err != nil {
		return CleanupMessage{}, fmt.Errorf("invalid cleanup message: %w", err)
	}
	return m, nil
}
