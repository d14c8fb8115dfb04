package models

const (
	StatusPending  = "Pending"
	StatusAccepted = "Accepted"
	// StatusRejected never reaches the database: a rejected booking is
	// deleted. It only appears on the wire and in the audit log.
	StatusRejected = "Rejected"
)

const (
	RoleMember   = "Member"
	RoleTeamLead = "Team Lead"
	RoleAdmin    = "Admin"
)

const (
	AuditAccepted = "accepted"
	AuditRejected = "rejected"
	AuditRevoked  = "revoked"
)

const (
	// DefaultSessionTTL время жизни сессии в Redis
	DefaultSessionTTL = 24 * 60 * 60 // 24 часа в секундах

	// DefaultPassword пароль по умолчанию для новых пользователей
	DefaultPassword = "password123"

	// AvatarURLTemplate шаблон аватарки, %s — имя пользователя
	AvatarURLTemplate = "https://ui-avatars.com/api/?name=%s&background=random"

	// DefaultSuperAdminEmail email супер-админа по умолчанию
	DefaultSuperAdminEmail = "admin@office.com"

	// ReminderHour час, в который бот напоминает о заявках
	ReminderHour = 9

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// RateLimitRequests количество запросов в окне
	RateLimitRequests = 20

	// RateLimitWindow окно ограничения частоты запросов
	RateLimitWindow = 60 // 1 минута в секундах
)

// ValidRole reports whether the role is one of the three known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleMember, RoleTeamLead, RoleAdmin:
		return true
	}
	return false
}
