// Package reqctx carries the tenant and staff user a request acts for.
package reqctx

import "strconv"

// Scope is passed explicitly to every service and repository call.
type Scope struct {
	TenantID string
	UserID   int64
	RoleID   int
}

// UserRef returns the user as a nullable foreign key value.
func (s Scope) UserRef() *int64 {
	if s.UserID <= 0 {
		return nil
	}
	id := s.UserID
	return &id
}

func (s Scope) String() string {
	return s.TenantID + "/" + strconv.FormatInt(s.UserID, 10)
}
