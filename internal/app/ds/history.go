package ds

import "time"

// 6. Таблица истории статусов (append-only)
type StatusHistoryEntry struct {
	ID         uint    `gorm:"primaryKey"`
	RequestID  uint    `gorm:"not null;index"`
	FromStatus *string `gorm:"type:varchar(30)"` // nil для начальной записи
	ToStatus   string  `gorm:"type:varchar(30);not null"`
	ChangedBy  uint    `gorm:"not null"`
	Reason     string  `gorm:"type:varchar(255)"`
	CreatedAt  time.Time
}
