package ds

import (
	"time"

	"github.com/shopspring/decimal"
)

// Типы платежей
const (
	PaymentPrepayment = "prepayment"
	PaymentFinal      = "final"
)

// 8. Таблица платежей (подтверждения оплат от клиентов)
type Payment struct {
	ID          uint            `gorm:"primaryKey"`
	RequestID   uint            `gorm:"not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PaymentType string          `gorm:"type:varchar(20);not null"` // prepayment, final
	ProofURL    string          `gorm:"type:varchar(255)"`         // Файл квитанции в MinIO
	Verified    bool            `gorm:"default:false;not null"`
	VerifiedBy  *uint
	VerifiedAt  *time.Time
	CreatedAt   time.Time
}
