package models

import (
	"time"

	"gorm.io/datatypes"
)

type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
)

// TestResult is the latest scored attempt for an application. A new attempt
// for the same application overwrites the row.
type TestResult struct {
	ID              uint         `json:"id" gorm:"primaryKey"`
	ApplicationID   string       `json:"application_id" gorm:"not null;size:100;uniqueIndex"`
	Status          ResultStatus `json:"status" gorm:"not null;size:20;default:completed"`
	Score           float64      `json:"score" gorm:"not null"` // 0-100
	ViolationsCount int          `json:"violations_count" gorm:"not null;default:0"`
	EndReason       EndReason    `json:"end_reason" gorm:"size:20"`
	CompletedAt     time.Time    `json:"completed_at" gorm:"not null;index"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	AnswerLogs []AnswerLog `json:"answer_logs,omitempty" gorm:"foreignKey:TestResultID"`
}

func (TestResult) TableName() string {
	return "tests"
}

// AnswerLog is an append-only record of one finalized attempt.
type AnswerLog struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	TestResultID    uint           `json:"test_result_id" gorm:"not null;index"`
	Answers         datatypes.JSON `json:"answers"`
	Score           float64        `json:"score" gorm:"not null"` // 0-100
	ViolationsCount int            `json:"violations_count" gorm:"not null;default:0"`
	Violations      datatypes.JSON `json:"violations_by_kind"`
	CompletedAt     time.Time      `json:"completed_at" gorm:"not null"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (AnswerLog) TableName() string {
	return "test_results"
}

// AnswerEntry is one element of AnswerLog.Answers.
type AnswerEntry struct {
	QuestionIndex  int    `json:"question_index"`
	Question       string `json:"question"`
	SelectedOption *int   `json:"selected_option"`
	SelectedAnswer string `json:"selected_answer"`
	CorrectOption  int    `json:"correct_option"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
}
