package repository

import (
	"errors"
	"fmt"

	"agency/internal/app/ds"
	"agency/internal/app/role"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Методы для сотрудников

func (r *Repository) GetUserByID(id uint) (*ds.User, error) {
	var user ds.User
	err := r.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByEmail(email string) (*ds.User, error) {
	var user ds.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) GetUserByTelegramID(telegramID string) (*ds.User, error) {
	var user ds.User
	err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) UserExistsByEmail(email string) (bool, error) {
	var count int64
	err := r.db.Model(&ds.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

// CreateUser создает сотрудника (только админ), пишет запись в журнал аудита
func (r *Repository) CreateUser(actorID uint, actorRole role.Role, email, password, name string, userRole role.Role, payoutPercentage decimal.Decimal) (*ds.User, error) {
	if actorRole != role.Admin {
		return nil, ErrForbidden
	}
	if !userRole.Valid() {
		return nil, fmt.Errorf("%w: неизвестная роль %q", ErrValidation, userRole)
	}
	if payoutPercentage.IsNegative() || payoutPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("%w: процент выплаты должен быть в диапазоне 0-100", ErrValidation)
	}

	user := ds.User{
		Email:            email,
		Password:         password,
		Name:             name,
		Role:             userRole,
		PayoutPercentage: payoutPercentage,
		IsActive:         true,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return appendAudit(tx, actorID, ds.ActionUserCreated, map[string]interface{}{
			"userId": user.ID,
			"email":  email,
			"role":   userRole,
		})
	})
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetBalance возвращает балансы сотрудника (pending / confirmed / totalEarned)
func (r *Repository) GetBalance(userID uint) (pending, confirmed, totalEarned decimal.Decimal, err error) {
	user, err := r.GetUserByID(userID)
	if err != nil {
		return decimal.Zero, decimal.Zero, decimal.Zero, err
	}
	return user.PendingBalance, user.ConfirmedBalance, user.TotalEarned, nil
}

// ListActiveAccountants список бухгалтеров для уведомлений о платежах
func (r *Repository) ListActiveAccountants() ([]ds.User, error) {
	var accountants []ds.User
	err := r.db.Where("role = ? AND is_active = ?", role.Accountant, true).Find(&accountants).Error
	return accountants, err
}

// creditPending увеличивает ожидающий баланс на amount (внутри транзакции)
func creditPending(tx *gorm.DB, userID uint, amount decimal.Decimal) error {
	return adjustPending(tx, userID, amount)
}

// adjustPending прибавляет к ожидающему балансу знаковую дельту (внутри транзакции)
func adjustPending(tx *gorm.DB, userID uint, delta decimal.Decimal) error {
	var user ds.User
	if err := tx.First(&user, userID).Error; err != nil {
		return err
	}
	user.PendingBalance = user.PendingBalance.Add(delta)
	return tx.Model(&ds.User{}).Where("id = ?", userID).
		Update("pending_balance", user.PendingBalance).Error
}
