package auth

import "bloodbank-backend/internal/models"

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID   uint
	Role     models.UserRole
	CentreID *string
}

func (a Actor) HomeCentre() string {
	if a.CentreID == nil {
		return ""
	}
	return *a.CentreID
}

// CanAccessCentre applies the location scope rule: admins see every centre,
// organizers and lab staff only their home centre, anyone else nothing.
func (a Actor) CanAccessCentre(centreID string) bool {
	switch {
	case a.Role.IsAdmin():
		return true
	case a.Role.IsCentreBound():
		return a.CentreID != nil && *a.CentreID == centreID
	default:
		return false
	}
}

// ScopeCentre returns the centre filter a query must use. Centre-bound roles are
// forced onto their home centre; admins keep the requested filter (empty = all).
func (a Actor) ScopeCentre(requested string) string {
	if a.Role.IsCentreBound() {
		return a.HomeCentre()
	}
	return requested
}
