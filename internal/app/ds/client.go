package ds

import "time"

// 2. Таблица клиентов
type Client struct {
	ID               uint    `gorm:"primaryKey"`
	Name             string  `gorm:"type:varchar(100);not null"`
	Email            *string `gorm:"type:varchar(100);uniqueIndex"` // Nullable: клиент может регистрироваться через Telegram
	Phone            string  `gorm:"type:varchar(32)"`
	TelegramID       string  `gorm:"type:varchar(32);index"`
	TelegramUsername string  `gorm:"type:varchar(64)"`
	CreatedAt        time.Time
}
