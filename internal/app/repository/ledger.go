package repository

import (
	"errors"
	"fmt"

	"agency/internal/app/ds"
	"agency/internal/app/role"

	"gorm.io/gorm"
)

// GetLedgerForRequest начисления по заявке (только админ и бухгалтер)
func (r *Repository) GetLedgerForRequest(actorRole role.Role, requestID uint) ([]ds.PayoutLedgerEntry, error) {
	if actorRole != role.Admin && actorRole != role.Accountant {
		return nil, ErrForbidden
	}

	var entries []ds.PayoutLedgerEntry
	err := r.db.Preload("User").Where("request_id = ?", requestID).
		Order("created_at ASC, id ASC").Find(&entries).Error
	return entries, err
}

// ConfirmPayout подтверждает начисление: PENDING/ADJUSTED -> CONFIRMED,
// сумма переносится из ожидающего баланса в подтвержденный, totalEarned растет.
// Вся мутация - одна транзакция.
func (r *Repository) ConfirmPayout(actorID uint, actorRole role.Role, entryID uint) (*ds.PayoutLedgerEntry, error) {
	if actorRole != role.Admin && actorRole != role.Accountant {
		return nil, ErrForbidden
	}

	var entry ds.PayoutLedgerEntry
	if err := r.db.First(&entry, entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if entry.Status != ds.LedgerPending && entry.Status != ds.LedgerAdjusted {
		return nil, fmt.Errorf("%w: начисление в статусе %s нельзя подтвердить", ErrValidation, entry.Status)
	}

	amount := entry.EffectiveAmount()

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ds.PayoutLedgerEntry{}).Where("id = ?", entry.ID).
			Update("status", ds.LedgerConfirmed).Error; err != nil {
			return err
		}

		var user ds.User
		if err := tx.First(&user, entry.UserID).Error; err != nil {
			return err
		}
		user.PendingBalance = user.PendingBalance.Sub(amount)
		user.ConfirmedBalance = user.ConfirmedBalance.Add(amount)
		user.TotalEarned = user.TotalEarned.Add(amount)
		err := tx.Model(&ds.User{}).Where("id = ?", user.ID).
			Updates(map[string]interface{}{
				"pending_balance":   user.PendingBalance,
				"confirmed_balance": user.ConfirmedBalance,
				"total_earned":      user.TotalEarned,
			}).Error
		if err != nil {
			return err
		}

		return appendAudit(tx, actorID, ds.ActionPayoutConfirmed, map[string]interface{}{
			"entryId":   entry.ID,
			"userId":    entry.UserID,
			"requestId": entry.RequestID,
			"amount":    amount,
		})
	})
	if err != nil {
		return nil, err
	}

	entry.Status = ds.LedgerConfirmed
	return &entry, nil
}
