package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============ Общие структуры ============

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ============ Заявки (Requests) ============

type ServiceInput struct {
	Type          string          `json:"type" binding:"required"`
	Description   string          `json:"description"`
	PlannedAmount decimal.Decimal `json:"planned_amount" binding:"required"`
}

type CreateRequestRequest struct {
	ClientName        string           `json:"client_name" binding:"required"`
	ClientEmail       string           `json:"client_email" binding:"omitempty,email"`
	ClientPhone       string           `json:"client_phone"`
	BusinessCategory  string           `json:"business_category" binding:"required,oneof=STARTUP SMB ENTERPRISE"`
	Services          []ServiceInput   `json:"services" binding:"required,min=1,dive"`
	SupportAgreed     bool             `json:"support_agreed"`
	SupportMonthlyFee *decimal.Decimal `json:"support_monthly_fee"`
	Description       string           `json:"description"`
}

// UpdateRequestRequest частичное обновление: указатели отличают
// "поле не передано" от нулевого значения
type UpdateRequestRequest struct {
	Status           *string          `json:"status"`
	StatusReason     string           `json:"status_reason"`
	DeveloperID      *uint            `json:"developer_id"`
	UnsetDeveloper   bool             `json:"unset_developer"`
	FinalTotalAmount *decimal.Decimal `json:"final_total_amount"`
	Notes            *string          `json:"notes"`
}

type ServiceResponse struct {
	Type          string           `json:"type"`
	Description   string           `json:"description"`
	PlannedAmount *decimal.Decimal `json:"planned_amount,omitempty"`
}

type UserBrief struct {
	ID               uint   `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	TelegramUsername string `json:"telegram_username,omitempty"`
}

type ClientBrief struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type RequestResponse struct {
	ID                 uint                  `json:"id"`
	RequestNumber      string                `json:"request_number"`
	Status             string                `json:"status"`
	CreatedAt          time.Time             `json:"created_at"`
	BusinessCategory   string                `json:"business_category"`
	Description        string                `json:"description,omitempty"`
	Notes              string                `json:"notes,omitempty"`
	Client             ClientBrief           `json:"client"`
	Manager            UserBrief             `json:"manager"`
	Developer          *UserBrief            `json:"developer,omitempty"`
	Services           []ServiceResponse     `json:"services,omitempty"`
	InitialTotalAmount *decimal.Decimal      `json:"initial_total_amount,omitempty"`
	FinalTotalAmount   *decimal.Decimal      `json:"final_total_amount,omitempty"`
	SupportAgreed      bool                  `json:"support_agreed"`
	SupportMonthlyFee  *decimal.Decimal      `json:"support_monthly_fee,omitempty"`
	ContractSigned     bool                  `json:"contract_signed"`
	ContractSignedAt   *time.Time            `json:"contract_signed_at,omitempty"`
	PrepaymentReceived bool                  `json:"prepayment_received"`
	StatusHistory      []StatusHistoryEntry  `json:"status_history,omitempty"`
	PayoutLedger       []LedgerEntryResponse `json:"payout_ledger,omitempty"`
}

type RequestListResponse struct {
	Requests   []RequestResponse `json:"requests"`
	Pagination Pagination        `json:"pagination"`
}

type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// ============ Начисления и балансы ============

type LedgerEntryResponse struct {
	ID            uint             `json:"id"`
	UserID        uint             `json:"user_id"`
	UserName      string           `json:"user_name,omitempty"`
	RequestID     uint             `json:"request_id"`
	ServiceType   *string          `json:"service_type"`
	InitialAmount decimal.Decimal  `json:"initial_amount"`
	FinalAmount   *decimal.Decimal `json:"final_amount,omitempty"`
	Status        string           `json:"status"`
}

type BalanceResponse struct {
	PendingBalance   decimal.Decimal `json:"pending_balance"`
	ConfirmedBalance decimal.Decimal `json:"confirmed_balance"`
	TotalEarned      decimal.Decimal `json:"total_earned"`
}

// ============ История и платежи ============

type StatusHistoryEntry struct {
	FromStatus *string   `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ChangedBy  uint      `json:"changed_by"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}

type PaymentResponse struct {
	ID          uint            `json:"id"`
	RequestID   uint            `json:"request_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType string          `json:"payment_type"`
	ProofURL    string          `json:"proof_url,omitempty"`
	Verified    bool            `json:"verified"`
	VerifiedAt  *time.Time      `json:"verified_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ============ Аудит ============

type AuditLogResponse struct {
	ID        uint      `json:"id"`
	UserID    uint      `json:"user_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// ============ Пользователи ============

type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type CreateUserRequest struct {
	Email            string          `json:"email" binding:"required,email"`
	Password         string          `json:"password" binding:"required,min=6"`
	Name             string          `json:"name" binding:"required"`
	Role             string          `json:"role" binding:"required,oneof=ADMIN MANAGER ACCOUNTANT DEVELOPER SUPPORT_DEVELOPER"`
	PayoutPercentage decimal.Decimal `json:"payout_percentage"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
