package port

// PrivilegeChecker verifies the caller may mutate system state. Check
// returns domain.ErrPermissionDenied before any block is touched.
type PrivilegeChecker interface {
	Check() error
}
