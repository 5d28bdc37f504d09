// Package access answers two independent questions: whether a feature is
// available at a version, and whether a role may perform a gated action.
//
// Both tables are authored data. Version sets are checked by direct
// membership, never derived from tier ordering, and anything unrecognised
// resolves to false.
package access

import (
	"sort"

	"inpatient-hub/backend/pkg/models"
)

// Action names a role-gated operation
type Action string

const (
	ActionEdit    Action = "edit"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
)

type featureSet map[models.Feature]struct{}

func setOf(features ...models.Feature) featureSet {
	res := make(featureSet, len(features))
	for _, f := range features {
		res[f] = struct{}{}
	}
	return res
}

var featureMatrix = map[models.AppVersion]featureSet{
	models.VersionLight: setOf(
		models.FeatureBookmarks,
		models.FeatureReferrals,
		models.FeatureGuides,
	),
	models.VersionMedium: setOf(
		models.FeatureBookmarks,
		models.FeatureReferrals,
		models.FeatureGuides,
		models.FeatureWardTasks,
	),
	models.VersionMax: setOf(
		models.FeatureBookmarks,
		models.FeatureReferrals,
		models.FeatureGuides,
		models.FeatureWardTasks,
		models.FeaturePatientList,
		models.FeatureWorkflowEditor,
	),
	models.VersionMaxPlus: setOf(
		models.FeatureBookmarks,
		models.FeatureReferrals,
		models.FeatureGuides,
		models.FeatureWardTasks,
		models.FeaturePatientList,
		models.FeatureWorkflowEditor,
		models.FeatureHandover,
		models.FeatureAnalytics,
	),
}

var roleActions = map[models.Role]map[Action]bool{
	models.RoleNormal:      {},
	models.RoleWardAdmin:   {ActionApprove: true},
	models.RoleContributor: {ActionEdit: true},
	models.RoleSeniorAdmin: {ActionEdit: true, ActionDelete: true, ActionApprove: true},
}

// HasFeature reports whether feature is enabled at version
func HasFeature(version models.AppVersion, feature models.Feature) bool {
	_, ok := featureMatrix[version][feature]
	return ok
}

// Features returns the features enabled at version, sorted by name
func Features(version models.AppVersion) []models.Feature {
	set := featureMatrix[version]
	res := make([]models.Feature, 0, len(set))
	for f := range set {
		res = append(res, f)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

// Matrix returns a copy of the full version to feature table
func Matrix() map[models.AppVersion][]models.Feature {
	res := make(map[models.AppVersion][]models.Feature, len(featureMatrix))
	for v := range featureMatrix {
		res[v] = Features(v)
	}
	return res
}

// Can reports whether role may perform action. The empty role stands for
// an absent user.
func Can(role models.Role, action Action) bool {
	return roleActions[role][action]
}

// CanEdit reports whether role may create or change content
func CanEdit(role models.Role) bool {
	return Can(role, ActionEdit)
}

// CanDelete reports whether role may remove content
func CanDelete(role models.Role) bool {
	return Can(role, ActionDelete)
}

// CanApprove reports whether role may sign off submitted content
func CanApprove(role models.Role) bool {
	return Can(role, ActionApprove)
}

// ParseVersion validates a user-supplied version
func ParseVersion(s string) (models.AppVersion, bool) {
	v := models.AppVersion(s)
	_, ok := featureMatrix[v]
	return v, ok
}

// ParseRole validates a role read from a roster or fixture
func ParseRole(s string) (models.Role, bool) {
	r := models.Role(s)
	_, ok := roleActions[r]
	return r, ok
}
