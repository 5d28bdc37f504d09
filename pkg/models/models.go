// Package models defines the domain models for the inpatient hub service
package models

import (
	"time"
)

// Role represents a staff member's permission level
type Role string

const (
	RoleNormal      Role = "normal"
	RoleWardAdmin   Role = "ward_admin"
	RoleContributor Role = "contributor"
	RoleSeniorAdmin Role = "senior_admin"
)

// AllRoles lists the closed set of roles in display order
var AllRoles = []Role{
	RoleNormal,
	RoleWardAdmin,
	RoleContributor,
	RoleSeniorAdmin,
}

// AppVersion represents the feature tier the hub is running at
type AppVersion string

const (
	VersionLight   AppVersion = "light"
	VersionMedium  AppVersion = "medium"
	VersionMax     AppVersion = "max"
	VersionMaxPlus AppVersion = "max_plus"
)

// AllVersions lists the tiers from lowest to highest
var AllVersions = []AppVersion{
	VersionLight,
	VersionMedium,
	VersionMax,
	VersionMaxPlus,
}

// Feature names a capability that can be switched on or off per version
type Feature string

const (
	FeatureBookmarks      Feature = "bookmarks"
	FeatureReferrals      Feature = "referrals"
	FeatureGuides         Feature = "guides"
	FeatureWardTasks      Feature = "ward_tasks"
	FeaturePatientList    Feature = "patient_list"
	FeatureWorkflowEditor Feature = "workflow_editor"
	FeatureHandover       Feature = "handover"
	FeatureAnalytics      Feature = "analytics"
)

// User represents a member of ward staff selected from the demo roster
type User struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  Role   `json:"role" yaml:"role"`
	Ward  string `json:"ward" yaml:"ward"`
}

// WardTask is an entry in a ward's task diary
type WardTask struct {
	ID          string     `json:"id" yaml:"id"`
	Ward        string     `json:"ward" yaml:"ward"`
	Title       string     `json:"title" yaml:"title"`
	Notes       string     `json:"notes,omitempty" yaml:"notes,omitempty"`
	Due         *time.Time `json:"due,omitempty" yaml:"due,omitempty"`
	Done        bool       `json:"done" yaml:"done"`
	CreatedBy   string     `json:"created_by" yaml:"created_by"`
	CompletedBy string     `json:"completed_by,omitempty" yaml:"completed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time  `json:"updated_at" yaml:"-"`
}
