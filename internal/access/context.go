package access

import "inpatient-hub/backend/pkg/models"

// Context carries the current user and version into access checks. A nil
// User means nobody is signed in.
type Context struct {
	User    *models.User
	Version models.AppVersion
}

// Capabilities summarises what a role may do
type Capabilities struct {
	Edit    bool `json:"edit"`
	Delete  bool `json:"delete"`
	Approve bool `json:"approve"`
}

// CapabilitiesFor returns the capability summary for role
func CapabilitiesFor(role models.Role) Capabilities {
	return Capabilities{
		Edit:    CanEdit(role),
		Delete:  CanDelete(role),
		Approve: CanApprove(role),
	}
}

// Role returns the signed-in user's role, or the empty role
func (c Context) Role() models.Role {
	if c.User == nil {
		return ""
	}
	return c.User.Role
}

func (c Context) HasFeature(feature models.Feature) bool {
	return HasFeature(c.Version, feature)
}

func (c Context) CanEdit() bool {
	return CanEdit(c.Role())
}

func (c Context) CanDelete() bool {
	return CanDelete(c.Role())
}

func (c Context) CanApprove() bool {
	return CanApprove(c.Role())
}

func (c Context) Capabilities() Capabilities {
	return CapabilitiesFor(c.Role())
}
