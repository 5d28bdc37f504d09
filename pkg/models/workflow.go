package models

import (
	"time"
)

// StepType is the discriminant of a workflow step
type StepType string

const (
	StepCriteria      StepType = "criteria"
	StepConsent       StepType = "consent"
	StepForms         StepType = "forms"
	StepSubmission    StepType = "submission"
	StepCasenote      StepType = "casenote"
	StepReminder      StepType = "reminder"
	StepGDPR          StepType = "gdpr"
	StepEndpoint      StepType = "endpoint"
	StepDecisionYesNo StepType = "decision_yesno"
	StepDecisionMulti StepType = "decision_multi"
)

// IsDecision reports whether steps of this type branch into sub-paths
func (t StepType) IsDecision() bool {
	switch t {
	case StepDecisionYesNo, StepDecisionMulti:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether a path may end on a step of this type
func (t StepType) IsTerminal() bool {
	switch t {
	case StepEndpoint, StepGDPR, StepReminder, StepCasenote:
		return true
	default:
		return false
	}
}

// WorkflowStatus tracks a referral workflow through review
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"
	WorkflowStatusPending  WorkflowStatus = "pending"
	WorkflowStatusApproved WorkflowStatus = "approved"
)

// Step is a node in a referral workflow tree. Branches are only read for
// decision steps.
type Step struct {
	ID       string   `json:"id" yaml:"id"`
	Type     StepType `json:"type" yaml:"type"`
	Title    string   `json:"title" yaml:"title"`
	Content  string   `json:"content,omitempty" yaml:"content,omitempty"`
	Branches []Branch `json:"branches,omitempty" yaml:"branches,omitempty"`
}

// IsDecision reports whether the step is a branch point
func (s *Step) IsDecision() bool {
	return s.Type.IsDecision()
}

// Branch is one labelled outcome of a decision step
type Branch struct {
	Label string `json:"label" yaml:"label"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// ValidationResult is the outcome of checking a workflow's structure
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Workflow represents a referral workflow guide.
type Workflow struct {
	ID          string         `json:"id" yaml:"id"`
	Title       string         `json:"title" yaml:"title"`
	Description string         `json:"description" yaml:"description"`
	Ward        string         `json:"ward" yaml:"ward"`
	Status      WorkflowStatus `json:"status" yaml:"status"`
	Steps       []Step         `json:"steps" yaml:"steps"`
	Version     int            `json:"version" yaml:"-"`
	CreatedBy   string         `json:"created_by" yaml:"created_by"`
	ApprovedBy  string         `json:"approved_by,omitempty" yaml:"approved_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time      `json:"updated_at" yaml:"-"`
}
