package ds

import (
	"agency/internal/app/role"

	"github.com/shopspring/decimal"
)

// 1. Таблица сотрудников агентства
type User struct {
	ID               uint            `gorm:"primaryKey"`
	Email            string          `gorm:"type:varchar(100);unique;not null"`
	Password         string          `gorm:"type:varchar(255);not null"`
	Name             string          `gorm:"type:varchar(100);not null"`
	Role             role.Role       `gorm:"type:varchar(20);not null"`
	PayoutPercentage decimal.Decimal `gorm:"type:decimal(5,2);default:0"` // доля от суммы услуги, 0-100
	PendingBalance   decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	ConfirmedBalance decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	TotalEarned      decimal.Decimal `gorm:"type:decimal(12,2);default:0"`
	TelegramID       string          `gorm:"type:varchar(32);index"`
	TelegramUsername string          `gorm:"type:varchar(64)"`
	Phone            string          `gorm:"type:varchar(32)"`
	IsActive         bool            `gorm:"default:true;not null"`
}
