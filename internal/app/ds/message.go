package ds

import "time"

// 9. Таблица сообщений (переписка клиент-разработчик через бота)
type Message struct {
	ID                 uint   `gorm:"primaryKey"`
	RequestID          uint   `gorm:"not null;index"`
	ClientID           *uint  // Отправитель-клиент
	SenderID           *uint  // Отправитель-сотрудник
	Content            string `gorm:"type:text;not null"`
	ContainsSuspicious bool   `gorm:"default:false;not null"`
	SuspiciousKeywords string `gorm:"type:varchar(255)"`
	CreatedAt          time.Time
}
