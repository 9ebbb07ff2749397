package models

import "github.com/google/uuid"

// Имена предопределённых ролей. Создаются миграцией при старте
// и дальше только читаются.
const (
	RoleUser      = "USER"
	RoleAdmin     = "ADMIN"
	RoleModerator = "MODERATOR"
)

// Role — именованная группа прав. Связь с User — многие-ко-многим.
type Role struct {
	ID   uuid.UUID
	Name string
}
