package authz

const (
	RoleLoanOfficer   = 10
	RoleBranchManager = 20
	RoleAuditor       = 30
	RoleAccountant    = 40
	RoleAdmin         = 50
)

var roleNames = map[int]string{
	RoleLoanOfficer:   "loan_officer",
	RoleBranchManager: "branch_manager",
	RoleAuditor:       "auditor",
	RoleAccountant:    "accountant",
	RoleAdmin:         "admin",
}

func Name(roleID int) string {
	if n, ok := roleNames[roleID]; ok {
		return n
	}
	return "unknown"
}

func Valid(roleID int) bool {
	_, ok := roleNames[roleID]
	return ok
}

// IsElevated roles may administer the pipeline and staff.
func IsElevated(roleID int) bool {
	return roleID == RoleBranchManager || roleID == RoleAdmin
}

func IsReadOnly(roleID int) bool {
	return roleID == RoleAuditor
}

// CanPostJournal roles may create and reverse journal entries.
func CanPostJournal(roleID int) bool {
	return roleID == RoleAccountant || roleID == RoleAdmin
}
