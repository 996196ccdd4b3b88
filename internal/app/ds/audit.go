package ds

import "time"

// Действия для журнала аудита
const (
	ActionRequestCreated  = "REQUEST_CREATED"
	ActionRequestUpdated  = "REQUEST_UPDATED"
	ActionRequestDeleted  = "REQUEST_DELETED"
	ActionPayoutConfirmed = "PAYOUT_CONFIRMED"
	ActionPaymentVerified = "PAYMENT_VERIFIED"
	ActionUserCreated     = "USER_CREATED"
	ActionLogin           = "LOGIN"
	ActionLogout          = "LOGOUT"
)

// 7. Журнал аудита привилегированных действий (append-only)
type AuditLogEntry struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Action    string `gorm:"type:varchar(30);not null"`
	Details   string `gorm:"type:text"` // JSON с деталями изменения
	CreatedAt time.Time
}
