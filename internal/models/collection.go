// internal/models/collection.go
package models

import "time"

type FeedbackRequest struct {
	ComponentSource string                 `json:"componentSource"`
	AcceptedTest    string                 `json:"acceptedTest"`
	Context         map[string]interface{} `json:"context,omitempty"`
	Rating          int                    `json:"rating,omitempty"`
}

type FeedbackResponse struct {
	Status     string `json:"status"`
	FeedbackID string `json:"feedback_id"`
}

// TrainingExample is one line of the JSONL training log.
type TrainingExample struct {
	Instruction  string                 `json:"instruction"`
	Output       string                 `json:"output"`
	Context      map[string]interface{} `json:"context"`
	Timestamp    string                 `json:"timestamp"`
	QualityScore int                    `json:"quality_score"`
}

type GenerationRecord struct {
	RequestID     string    `json:"request_id"`
	ComponentPath string    `json:"component_path"`
	Coverage      Coverage  `json:"coverage"`
	TestCount     int       `json:"test_count"`
	ParseBranch   string    `json:"parse_branch"`
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
}

type DashboardStats struct {
	TestsGeneratedToday int64   `json:"testsGeneratedToday"`
	GenerationsToday    int64   `json:"generationsToday"`
	FeedbackToday       int64   `json:"feedbackToday"`
	AverageQuality      float64 `json:"averageQuality"`
	TimeSavedHours      float64 `json:"timeSavedHours"`
	Error               string  `json:"error,omitempty"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
}
