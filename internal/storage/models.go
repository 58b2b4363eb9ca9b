package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// TopicStatus is the lifecycle state of a topic.
type TopicStatus string

const (
	TopicPending           TopicStatus = "Pending"
	TopicOngoing           TopicStatus = "Ongoing"
	TopicCompleted         TopicStatus = "Completed"
	TopicSystemInterrupted TopicStatus = "SystemInterrupted"
	TopicUserInterrupted   TopicStatus = "UserInterrupted"
	TopicFailed            TopicStatus = "Failed"
)

// Valid reports whether s is one of the known topic statuses.
func (s TopicStatus) Valid() bool {
	switch s {
	case TopicPending, TopicOngoing, TopicCompleted,
		TopicSystemInterrupted, TopicUserInterrupted, TopicFailed:
		return true
	}
	return false
}

type ProjectStatus string

const (
	ProjectPending   ProjectStatus = "Pending"
	ProjectOngoing   ProjectStatus = "Ongoing"
	ProjectCompleted ProjectStatus = "Completed"
)

type Role string

const (
	RoleInterviewer Role = "Interviewer"
	RoleInterviewee Role = "Interviewee"
)

type Project struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Requirements     string          `json:"requirements"`
	Status           ProjectStatus   `json:"status"`
	PrioritySequence []PriorityEntry `json:"priority_sequence"` // last persisted ranking
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

type Section struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Number    string `json:"number"`
	Content   string `json:"content"`
}

type Topic struct {
	ID            int64       `json:"id"`
	ProjectID     int64       `json:"project_id"`
	SectionID     int64       `json:"section_id"`
	SectionNumber string      `json:"section_number"`
	Number        string      `json:"number"`
	Content       string      `json:"content"`
	Status        TopicStatus `json:"status"`
	Necessity     bool        `json:"necessity"`
}

type Slot struct {
	ID        int64   `json:"id"`
	TopicID   int64   `json:"topic_id"`
	Number    string  `json:"number"`
	Key       string  `json:"key"`
	Value     *string `json:"value"`
	Necessity bool    `json:"necessity"`
	Evidence  []int64 `json:"evidence"` // message ids, insertion ordered
}

// Filled reports whether the slot holds a non-blank value.
func (s Slot) Filled() bool {
	return s.Value != nil && !isBlank(*s.Value)
}

type Message struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	TopicID     int64     `json:"topic_id,omitempty"` // 0 when the message is not bound to a topic
	TopicNumber string    `json:"topic_number,omitempty"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// PriorityEntry is one ranked topic in a project's priority order.
type PriorityEntry struct {
	TopicNumber string      `json:"topic_number"`
	Core        float64     `json:"core"`
	Status      TopicStatus `json:"status"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
