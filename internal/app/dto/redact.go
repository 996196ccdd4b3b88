package dto

import (
	"agency/internal/app/ds"
	"agency/internal/app/role"
)

// Формирование ответов с единым сокрытием финансовых полей:
// разработчики не получают суммы сметы, итоговую сумму и начисления.

func userBrief(u *ds.User) *UserBrief {
	if u == nil {
		return nil
	}
	return &UserBrief{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		TelegramUsername: u.TelegramUsername,
	}
}

func clientBrief(c ds.Client) ClientBrief {
	brief := ClientBrief{
		ID:    c.ID,
		Name:  c.Name,
		Phone: c.Phone,
	}
	if c.Email != nil {
		brief.Email = *c.Email
	}
	return brief
}

// RequestToResponse формирует ответ по заявке с учетом роли смотрящего
func RequestToResponse(r *ds.Request, viewer role.Role) RequestResponse {
	resp := RequestResponse{
		ID:                 r.ID,
		RequestNumber:      r.RequestNumber,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
		BusinessCategory:   r.BusinessCategory,
		Description:        r.Description,
		Notes:              r.Notes,
		Client:             clientBrief(r.Client),
		Manager:            *userBrief(&r.Manager),
		Developer:          userBrief(r.Developer),
		SupportAgreed:      r.SupportAgreed,
		ContractSigned:     r.ContractSigned,
		ContractSignedAt:   r.ContractSignedAt,
		PrepaymentReceived: r.PrepaymentReceived,
	}

	if viewer.IsDeveloper() {
		return resp
	}

	initial := r.InitialTotalAmount
	resp.InitialTotalAmount = &initial
	resp.FinalTotalAmount = r.FinalTotalAmount
	resp.SupportMonthlyFee = r.SupportMonthlyFee
	return resp
}

// ServicesToResponse позиции сметы; суммы скрываются от разработчиков
func ServicesToResponse(services []ds.RequestService, viewer role.Role) []ServiceResponse {
	out := make([]ServiceResponse, len(services))
	for i, svc := range services {
		out[i] = ServiceResponse{
			Type:        svc.Type,
			Description: svc.Description,
		}
		if !viewer.IsDeveloper() {
			amount := svc.PlannedAmount
			out[i].PlannedAmount = &amount
		}
	}
	return out
}

// LedgerToResponse начисления; вызывается только для админа и бухгалтера
func LedgerToResponse(entries []ds.PayoutLedgerEntry) []LedgerEntryResponse {
	out := make([]LedgerEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = LedgerEntryResponse{
			ID:            entry.ID,
			UserID:        entry.UserID,
			UserName:      entry.User.Name,
			RequestID:     entry.RequestID,
			ServiceType:   entry.ServiceType,
			InitialAmount: entry.InitialAmount,
			FinalAmount:   entry.FinalAmount,
			Status:        entry.Status,
		}
	}
	return out
}

// HistoryToResponse история статусов
func HistoryToResponse(history []ds.StatusHistoryEntry) []StatusHistoryEntry {
	out := make([]StatusHistoryEntry, len(history))
	for i, h := range history {
		out[i] = StatusHistoryEntry{
			FromStatus: h.FromStatus,
			ToStatus:   h.ToStatus,
			ChangedBy:  h.ChangedBy,
			Reason:     h.Reason,
			CreatedAt:  h.CreatedAt,
		}
	}
	return out
}

// PaymentsToResponse платежи по заявке
func PaymentsToResponse(payments []ds.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = PaymentResponse{
			ID:          p.ID,
			RequestID:   p.RequestID,
			Amount:      p.Amount,
			PaymentType: p.PaymentType,
			ProofURL:    p.ProofURL,
			Verified:    p.Verified,
			VerifiedAt:  p.VerifiedAt,
			CreatedAt:   p.CreatedAt,
		}
	}
	return out
}
