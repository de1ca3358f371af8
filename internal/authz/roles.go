package authz

import "akimat/internal/models"

// Роли акимата: сотрудник < руководитель < администратор.
var (
	Staff      = []models.UserRole{models.RoleEmployee, models.RoleSupervisor, models.RoleAdministrator}
	Management = []models.UserRole{models.RoleSupervisor, models.RoleAdministrator}
	Admins     = []models.UserRole{models.RoleAdministrator}
)

// CanModerate: may change another user's status or role.
func CanModerate(role models.UserRole) bool {
	return role == models.RoleAdministrator
}
