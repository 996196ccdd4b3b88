package ds

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы записи выплат
const (
	LedgerPending   = "PENDING"
	LedgerAdjusted  = "ADJUSTED"
	LedgerConfirmed = "CONFIRMED"
	LedgerCancelled = "CANCELLED"
)

// 5. Таблица начислений (одна запись = обязательство перед сотрудником
// по конкретной заявке и услуге; ServiceType = nil для менеджерской записи)
type PayoutLedgerEntry struct {
	ID            uint             `gorm:"primaryKey"`
	UserID        uint             `gorm:"not null;index"`
	RequestID     uint             `gorm:"not null;index"`
	ServiceType   *string          `gorm:"type:varchar(30)"`
	InitialAmount decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	FinalAmount   *decimal.Decimal `gorm:"type:decimal(12,2)"` // Выставляется при корректировке итоговой суммы
	Status        string           `gorm:"type:varchar(20);not null;default:'PENDING'"`
	CreatedAt     time.Time
	UpdatedAt     time.Time

	User    User    `gorm:"foreignKey:UserID"`
	Request Request `gorm:"foreignKey:RequestID"`
}

// EffectiveAmount сумма к выплате: скорректированная, если была корректировка
func (e *PayoutLedgerEntry) EffectiveAmount() decimal.Decimal {
	if e.FinalAmount != nil {
		return *e.FinalAmount
	}
	return e.InitialAmount
}
