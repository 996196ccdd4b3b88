package repository

import (
	"errors"
	"time"

	"agency/internal/app/ds"
	"agency/internal/app/role"

	"gorm.io/gorm"
)

// SubmitPaymentProof сохраняет подтверждение оплаты от клиента по его
// последней заявке, ожидающей платеж. Возвращает заявку и созданный платеж.
func (r *Repository) SubmitPaymentProof(telegramID, proofURL string) (*ds.Request, *ds.Payment, error) {
	client, err := r.GetClientByTelegramID(telegramID)
	if err != nil {
		return nil, nil, err
	}

	var request ds.Request
	err = r.db.Where("client_id = ? AND status IN ?", client.ID,
		[]string{ds.StatusAwaitingPrepayment, ds.StatusAwaitingFinalPayment}).
		Order("created_at DESC").First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	paymentType := ds.PaymentPrepayment
	if request.PrepaymentReceived {
		paymentType = ds.PaymentFinal
	}

	payment := ds.Payment{
		RequestID:   request.ID,
		Amount:      request.InitialTotalAmount,
		PaymentType: paymentType,
		ProofURL:    proofURL,
		Verified:    false,
	}
	if err := r.db.Create(&payment).Error; err != nil {
		return nil, nil, err
	}

	return &request, &payment, nil
}

func (r *Repository) GetPayment(paymentID uint) (*ds.Payment, error) {
	var payment ds.Payment
	if err := r.db.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// AttachPaymentProof привязывает квитанцию к уже существующему платежу.
// Используется при загрузке квитанции через REST вместо бота.
func (r *Repository) AttachPaymentProof(actorRole role.Role, paymentID uint, proofURL string) (*ds.Payment, error) {
	if actorRole != role.Admin && actorRole != role.Accountant && actorRole != role.Manager {
		return nil, ErrForbidden
	}

	var payment ds.Payment
	if err := r.db.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if err := r.db.Model(&payment).Update("proof_url", proofURL).Error; err != nil {
		return nil, err
	}
	payment.ProofURL = proofURL
	return &payment, nil
}

// VerifyPayment отмечает платеж проверенным (бухгалтер или админ).
// Для предоплаты проставляет флаг получения предоплаты на заявке.
func (r *Repository) VerifyPayment(actorID uint, actorRole role.Role, paymentID uint) (*ds.Payment, error) {
	if actorRole != role.Admin && actorRole != role.Accountant {
		return nil, ErrForbidden
	}

	var payment ds.Payment
	if err := r.db.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now()

	err := r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&ds.Payment{}).Where("id = ?", payment.ID).
			Updates(map[string]interface{}{
				"verified":    true,
				"verified_by": actorID,
				"verified_at": now,
			}).Error
		if err != nil {
			return err
		}

		if payment.PaymentType == ds.PaymentPrepayment {
			err := tx.Model(&ds.Request{}).Where("id = ?", payment.RequestID).
				Updates(map[string]interface{}{
					"prepayment_received":    true,
					"prepayment_received_at": now,
				}).Error
			if err != nil {
				return err
			}
		}

		return appendAudit(tx, actorID, ds.ActionPaymentVerified, map[string]interface{}{
			"paymentId": payment.ID,
			"requestId": payment.RequestID,
			"amount":    payment.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	payment.Verified = true
	payment.VerifiedBy = &actorID
	payment.VerifiedAt = &now
	return &payment, nil
}

// GetRequestPayments платежи по заявке, новые первыми
func (r *Repository) GetRequestPayments(requestID uint) ([]ds.Payment, error) {
	var payments []ds.Payment
	err := r.db.Where("request_id = ?", requestID).Order("created_at DESC, id DESC").Find(&payments).Error
	return payments, err
}
