package rbac

// Roles carried in access tokens.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Permissions checked by the HTTP layer.
const (
	PermGradesView   = "grades:view"
	PermCGPACompute  = "cgpa:compute"
	PermPlanRead     = "plan:read"
	PermPlanWrite    = "plan:write"
	PermMarksEnter   = "marks:enter"
	PermMarksSubmit  = "marks:submit"
	PermMarksViewAll = "marks:view-all"
	PermMarksViewOwn = "marks:view-own"
	PermMarksFinals  = "marks:finals"
	PermCriteriaView = "criteria:view"
	PermCriteriaEdit = "criteria:edit"
	PermUsersList    = "users:list"
	PermUsersUpsert  = "users:bulk_upsert"
	PermPasswordSelf = "user:change_password"
)

var RolePermissions = map[string][]string{
	RoleStudent: {
		"plan:*",
		PermCGPACompute,
		PermGradesView,
		PermMarksViewOwn,
		PermPasswordSelf,
	},
	RoleTeacher: {
		"marks:*",
		"criteria:*",
		PermGradesView,
		PermCGPACompute,
		PermUsersList,
		PermPasswordSelf,
	},
	RoleAdmin: {
		"*",
	},
}
