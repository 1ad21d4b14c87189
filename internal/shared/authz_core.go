package shared

// Permission catalog names follow the resource:action convention. A "*"
// segment acts as a wildcard when stored in a grant.
const (
	PermUsersRead   = "users:read"
	PermUsersCreate = "users:create"
	PermUsersUpdate = "users:update"
	PermUsersDelete = "users:delete"

	PermRolesRead   = "roles:read"
	PermRolesCreate = "roles:create"
	PermRolesUpdate = "roles:update"
	PermRolesDelete = "roles:delete"

	PermPermissionsRead   = "permissions:read"
	PermPermissionsCreate = "permissions:create"

	PermFilesRead     = "files:read"
	PermFilesCreate   = "files:create"
	PermFilesUpdate   = "files:update"
	PermFilesDelete   = "files:delete"
	PermFilesDownload = "files:download"
	PermFilesShare    = "files:share"

	PermAuditRead     = "audit:read"
	PermDashboardRead = "dashboard:read"
	PermJobsRun       = "jobs:run"
)

// CoreScopes lists the permissions seeded for the admin role.
func CoreScopes() []string {
	return []string{
		PermUsersRead,
		PermUsersCreate,
		PermUsersUpdate,
		PermUsersDelete,
		PermRolesRead,
		PermRolesCreate,
		PermRolesUpdate,
		PermRolesDelete,
		PermPermissionsRead,
		PermPermissionsCreate,
		PermFilesRead,
		PermFilesCreate,
		PermFilesUpdate,
		PermFilesDelete,
		PermFilesDownload,
		PermFilesShare,
		PermAuditRead,
		PermDashboardRead,
		PermJobsRun,
	}
}
