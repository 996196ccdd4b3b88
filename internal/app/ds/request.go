package ds

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы заявки. Переходы проверяются по таблице statusTransitions.
const (
	StatusPendingTelegram      = "PENDING_TELEGRAM"
	StatusAwaitingContract     = "AWAITING_CONTRACT"
	StatusAwaitingPrepayment   = "AWAITING_PREPAYMENT"
	StatusReadyForDevelopment  = "READY_FOR_DEVELOPMENT"
	StatusInProgress           = "IN_PROGRESS"
	StatusReadyForReview       = "READY_FOR_REVIEW"
	StatusAwaitingFinalPayment = "AWAITING_FINAL_PAYMENT"
	StatusSupport              = "SUPPORT"
	StatusCompleted            = "COMPLETED"
	StatusCancelled            = "CANCELLED"
)

var statusTransitions = map[string][]string{
	StatusPendingTelegram:      {StatusAwaitingContract},
	StatusAwaitingContract:     {StatusAwaitingPrepayment},
	StatusAwaitingPrepayment:   {StatusReadyForDevelopment},
	StatusReadyForDevelopment:  {StatusInProgress},
	StatusInProgress:           {StatusReadyForReview},
	StatusReadyForReview:       {StatusAwaitingFinalPayment},
	StatusAwaitingFinalPayment: {StatusSupport, StatusCompleted},
	StatusSupport:              {StatusCompleted},
}

// CanTransition проверяет допустимость перехода статуса.
// CANCELLED достижим из любого незавершённого статуса.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	if to == StatusCancelled {
		return from != StatusCompleted && from != StatusCancelled
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var statusLabels = map[string]string{
	StatusPendingTelegram:      "Ожидает регистрации в Telegram",
	StatusAwaitingContract:     "Ожидает подписания договора",
	StatusAwaitingPrepayment:   "Ожидает предоплаты",
	StatusReadyForDevelopment:  "Готова к разработке",
	StatusInProgress:           "В работе",
	StatusReadyForReview:       "Готова к проверке",
	StatusAwaitingFinalPayment: "Ожидает финальной оплаты",
	StatusSupport:              "На поддержке",
	StatusCompleted:            "Завершена",
	StatusCancelled:            "Отменена",
}

// StatusLabel человекочитаемое название статуса для уведомлений клиенту
func StatusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

// 3. Таблица заявок
type Request struct {
	ID            uint   `gorm:"primaryKey"`
	RequestNumber string `gorm:"type:varchar(32);uniqueIndex;not null"` // REQ-2025-XXXXXX
	Status        string `gorm:"type:varchar(30);not null"`
	CreatedAt     time.Time
	ClientID      uint  `gorm:"not null;index"`
	ManagerID     uint  `gorm:"not null;index"`
	DeveloperID   *uint `gorm:"index"`
	// Поля по предметной области
	BusinessCategory     string           `gorm:"type:varchar(30);not null"` // STARTUP, SMB, ENTERPRISE
	InitialTotalAmount   decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	FinalTotalAmount     *decimal.Decimal `gorm:"type:decimal(12,2)"` // Выставляется бухгалтером один раз
	Description          string           `gorm:"type:text"`
	Notes                string           `gorm:"type:text"`
	SupportAgreed        bool             `gorm:"default:false;not null"`
	SupportMonthlyFee    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ContractSigned       bool             `gorm:"default:false;not null"`
	ContractSignedAt     *time.Time
	PrepaymentReceived   bool `gorm:"default:false;not null"`
	PrepaymentReceivedAt *time.Time

	Client    Client `gorm:"foreignKey:ClientID"`
	Manager   User   `gorm:"foreignKey:ManagerID"`
	Developer *User  `gorm:"foreignKey:DeveloperID"`
}

// 4. Таблица услуг заявки (упорядоченные позиции сметы)
type RequestService struct {
	ID            uint            `gorm:"primaryKey"`
	RequestID     uint            `gorm:"not null;index"`
	Position      int             `gorm:"not null"`                  // Порядок в смете
	Type          string          `gorm:"type:varchar(30);not null"` // WEBSITE, TELEGRAM_BOT, AUTOMATION
	Description   string          `gorm:"type:text"`
	PlannedAmount decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}
