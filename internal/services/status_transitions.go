package services

import "akimat/internal/models"

// Переходы статуса, доступные администратору. pending -> active делает только
// завершение регистрации, в pending пользователь попадает только через ЭЦП.
var AdminStatusTransitions = map[models.UserStatus]map[models.UserStatus]bool{
	models.StatusPending:  {models.StatusInactive: true},
	models.StatusActive:   {models.StatusInactive: true},
	models.StatusInactive: {models.StatusActive: true},
}

func canTransition(current, to models.UserStatus, table map[models.UserStatus]map[models.UserStatus]bool) bool {
	nexts, ok := table[current]
	if !ok {
		return false
	}
	return nexts[to]
}
