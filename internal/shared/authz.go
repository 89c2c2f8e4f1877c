package shared

// User roles. Staff users additionally carry the is_staff flag which gates
// administrative endpoints regardless of role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RequireStaff returns ErrPermissionDenied unless the context user is staff.
func RequireStaff(user *CurrentUser) error {
	if user == nil {
		return ErrUnauthorized
	}
	if !user.IsStaff && user.Role != RoleAdmin {
		return ErrPermissionDenied
	}
	return nil
}
