package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"agency/internal/app/ds"
	"agency/internal/app/role"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const defaultStatusReason = "Изменение статуса"

var oneHundred = decimal.NewFromInt(100)

// ServiceInput позиция сметы при создании заявки
type ServiceInput struct {
	Type          string
	Description   string
	PlannedAmount decimal.Decimal
}

// CreateRequestInput данные для создания заявки
type CreateRequestInput struct {
	ClientName        string
	ClientEmail       string
	ClientPhone       string
	BusinessCategory  string
	Services          []ServiceInput
	SupportAgreed     bool
	SupportMonthlyFee *decimal.Decimal
	Description       string
}

// UpdateRequestInput частичное обновление заявки.
// SetDeveloper отличает "назначить/снять разработчика" от "поле не передано".
type UpdateRequestInput struct {
	Status           *string
	StatusReason     string
	SetDeveloper     bool
	DeveloperID      *uint
	FinalTotalAmount *decimal.Decimal
	Notes            *string
}

// generateRequestNumber формирует человекочитаемый номер заявки
func generateRequestNumber() string {
	suffix := strings.ToUpper(uuid.New().String()[:6])
	return fmt.Sprintf("REQ-%d-%s", time.Now().Year(), suffix)
}

// CreateRequest создает заявку: клиент (upsert по email), позиции сметы,
// начисление менеджеру, начальная запись истории и запись аудита - одной транзакцией
func (r *Repository) CreateRequest(actorID uint, actorRole role.Role, input CreateRequestInput) (*ds.Request, error) {
	if actorRole != role.Manager && actorRole != role.Admin {
		return nil, ErrForbidden
	}
	if input.ClientName == "" || input.BusinessCategory == "" || len(input.Services) == 0 {
		return nil, fmt.Errorf("%w: обязательны имя клиента, категория и хотя бы одна услуга", ErrValidation)
	}

	initialTotal := decimal.Zero
	for _, svc := range input.Services {
		if svc.Type == "" || !svc.PlannedAmount.IsPositive() {
			return nil, fmt.Errorf("%w: услуга должна иметь тип и положительную сумму", ErrValidation)
		}
		initialTotal = initialTotal.Add(svc.PlannedAmount)
	}

	manager, err := r.GetUserByID(actorID)
	if err != nil {
		return nil, err
	}

	var request ds.Request

	err = r.db.Transaction(func(tx *gorm.DB) error {
		client, err := upsertClient(tx, input.ClientName, input.ClientEmail, input.ClientPhone)
		if err != nil {
			return err
		}

		request = ds.Request{
			RequestNumber:      generateRequestNumber(),
			Status:             ds.StatusPendingTelegram,
			ClientID:           client.ID,
			ManagerID:          manager.ID,
			BusinessCategory:   input.BusinessCategory,
			InitialTotalAmount: initialTotal,
			Description:        input.Description,
			SupportAgreed:      input.SupportAgreed,
			SupportMonthlyFee:  input.SupportMonthlyFee,
		}
		if err := tx.Create(&request).Error; err != nil {
			return err
		}

		for i, svc := range input.Services {
			rs := ds.RequestService{
				RequestID:     request.ID,
				Position:      i,
				Type:          svc.Type,
				Description:   svc.Description,
				PlannedAmount: svc.PlannedAmount,
			}
			if err := tx.Create(&rs).Error; err != nil {
				return err
			}
		}

		// Начисление менеджеру: процент от общей суммы, ServiceType = nil
		managerPayout := initialTotal.Mul(manager.PayoutPercentage).Div(oneHundred)
		entry := ds.PayoutLedgerEntry{
			UserID:        manager.ID,
			RequestID:     request.ID,
			ServiceType:   nil,
			InitialAmount: managerPayout,
			Status:        ds.LedgerPending,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := creditPending(tx, manager.ID, managerPayout); err != nil {
			return err
		}

		history := ds.StatusHistoryEntry{
			RequestID: request.ID,
			ToStatus:  ds.StatusPendingTelegram,
			ChangedBy: actorID,
			Reason:    "Заявка создана",
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		return appendAudit(tx, actorID, ds.ActionRequestCreated, map[string]interface{}{
			"requestId":     request.ID,
			"requestNumber": request.RequestNumber,
			"clientName":    input.ClientName,
			"amount":        initialTotal,
		})
	})
	if err != nil {
		return nil, err
	}

	return r.loadRequest(request.ID)
}

// canUpdate матрица прав на изменение заявки: каждая роль проверяется независимо
func canUpdate(request *ds.Request, actorID uint, actorRole role.Role) bool {
	switch actorRole {
	case role.Admin, role.Accountant:
		return true
	case role.Manager:
		return request.ManagerID == actorID
	case role.Developer, role.SupportDeveloper:
		return request.DeveloperID != nil && *request.DeveloperID == actorID
	}
	return false
}

// UpdateRequest применяет частичное обновление: смена статуса с записью истории,
// назначение разработчика с начислениями, корректировка итоговой суммы
// с пропорциональным пересчетом начислений. Одна транзакция на всю мутацию.
func (r *Repository) UpdateRequest(actorID uint, actorRole role.Role, requestID uint, input UpdateRequestInput) (*ds.Request, error) {
	var request ds.Request
	if err := r.db.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !canUpdate(&request, actorID, actorRole) {
		return nil, ErrForbidden
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{}

		// Смена статуса: проверяем переход по таблице и пишем историю
		if input.Status != nil && *input.Status != request.Status {
			if !ds.CanTransition(request.Status, *input.Status) {
				return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, request.Status, *input.Status)
			}
			reason := input.StatusReason
			if reason == "" {
				reason = defaultStatusReason
			}
			from := request.Status
			history := ds.StatusHistoryEntry{
				RequestID:  request.ID,
				FromStatus: &from,
				ToStatus:   *input.Status,
				ChangedBy:  actorID,
				Reason:     reason,
			}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}
			updates["status"] = *input.Status

			// Выход из ожидания договора означает, что договор подписан
			if request.Status == ds.StatusAwaitingContract && *input.Status == ds.StatusAwaitingPrepayment {
				updates["contract_signed"] = true
				updates["contract_signed_at"] = time.Now()
			}
		}

		// Назначение разработчика: прежние начисления по услугам отменяются,
		// затем создается по записи на каждую позицию сметы
		if input.SetDeveloper {
			if err := cancelDeveloperEntries(tx, request.ID); err != nil {
				return err
			}
			updates["developer_id"] = input.DeveloperID

			if input.DeveloperID != nil {
				var developer ds.User
				err := tx.First(&developer, *input.DeveloperID).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: разработчик не найден", ErrValidation)
				}
				if err != nil {
					return err
				}

				var services []ds.RequestService
				if err := tx.Where("request_id = ?", request.ID).Order("position").Find(&services).Error; err != nil {
					return err
				}

				for _, svc := range services {
					devPayout := svc.PlannedAmount.Mul(developer.PayoutPercentage).Div(oneHundred)
					serviceType := svc.Type
					entry := ds.PayoutLedgerEntry{
						UserID:        developer.ID,
						RequestID:     request.ID,
						ServiceType:   &serviceType,
						InitialAmount: devPayout,
						Status:        ds.LedgerPending,
					}
					if err := tx.Create(&entry).Error; err != nil {
						return err
					}
					if err := creditPending(tx, developer.ID, devPayout); err != nil {
						return err
					}
				}
			}
		}

		// Корректировка итоговой суммы: только бухгалтер, пропорциональный
		// пересчет всех живых начислений по заявке
		if input.FinalTotalAmount != nil && actorRole == role.Accountant {
			if !input.FinalTotalAmount.IsPositive() {
				return fmt.Errorf("%w: итоговая сумма должна быть положительной", ErrValidation)
			}
			updates["final_total_amount"] = *input.FinalTotalAmount

			adjustmentFactor := input.FinalTotalAmount.Div(request.InitialTotalAmount)

			var entries []ds.PayoutLedgerEntry
			err := tx.Where("request_id = ? AND status IN ?", request.ID,
				[]string{ds.LedgerPending, ds.LedgerAdjusted}).Find(&entries).Error
			if err != nil {
				return err
			}

			for _, entry := range entries {
				newAmount := entry.InitialAmount.Mul(adjustmentFactor)
				delta := newAmount.Sub(entry.EffectiveAmount())

				err := tx.Model(&ds.PayoutLedgerEntry{}).Where("id = ?", entry.ID).
					Updates(map[string]interface{}{
						"final_amount": newAmount,
						"status":       ds.LedgerAdjusted,
					}).Error
				if err != nil {
					return err
				}
				if err := adjustPending(tx, entry.UserID, delta); err != nil {
					return err
				}
			}
		}

		if input.Notes != nil {
			updates["notes"] = *input.Notes
		}

		if len(updates) > 0 {
			if err := tx.Model(&ds.Request{}).Where("id = ?", request.ID).Updates(updates).Error; err != nil {
				return err
			}
		}

		return appendAudit(tx, actorID, ds.ActionRequestUpdated, map[string]interface{}{
			"requestId": request.ID,
			"updates":   updates,
		})
	})
	if err != nil {
		return nil, err
	}

	return r.loadRequest(request.ID)
}

// cancelDeveloperEntries отменяет неподтвержденные начисления по услугам заявки
// и списывает их из ожидающих балансов владельцев (внутри транзакции)
func cancelDeveloperEntries(tx *gorm.DB, requestID uint) error {
	var stale []ds.PayoutLedgerEntry
	err := tx.Where("request_id = ? AND service_type IS NOT NULL AND status IN ?",
		requestID, []string{ds.LedgerPending, ds.LedgerAdjusted}).Find(&stale).Error
	if err != nil {
		return err
	}

	for _, entry := range stale {
		err := tx.Model(&ds.PayoutLedgerEntry{}).Where("id = ?", entry.ID).
			Update("status", ds.LedgerCancelled).Error
		if err != nil {
			return err
		}
		if err := adjustPending(tx, entry.UserID, entry.EffectiveAmount().Neg()); err != nil {
			return err
		}
	}
	return nil
}

// DeleteRequest удаляет заявку со всеми зависимыми строками (только админ).
// Неподтвержденные начисления списываются из ожидающих балансов владельцев.
func (r *Repository) DeleteRequest(actorID uint, actorRole role.Role, requestID uint) error {
	if actorRole != role.Admin {
		return ErrForbidden
	}

	var request ds.Request
	if err := r.db.First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var entries []ds.PayoutLedgerEntry
		if err := tx.Where("request_id = ?", request.ID).Find(&entries).Error; err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Status != ds.LedgerPending && entry.Status != ds.LedgerAdjusted {
				continue
			}
			if err := adjustPending(tx, entry.UserID, entry.EffectiveAmount().Neg()); err != nil {
				return err
			}
		}

		if err := tx.Where("request_id = ?", request.ID).Delete(&ds.PayoutLedgerEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", request.ID).Delete(&ds.StatusHistoryEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", request.ID).Delete(&ds.Payment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", request.ID).Delete(&ds.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("request_id = ?", request.ID).Delete(&ds.RequestService{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ds.Request{}, request.ID).Error; err != nil {
			return err
		}

		return appendAudit(tx, actorID, ds.ActionRequestDeleted, map[string]interface{}{
			"requestId":     request.ID,
			"requestNumber": request.RequestNumber,
		})
	})
}

// loadRequest заявка со связями для ответа
func (r *Repository) loadRequest(requestID uint) (*ds.Request, error) {
	var request ds.Request
	err := r.db.
		Preload("Client").
		Preload("Manager").
		Preload("Developer").
		First(&request, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// GetRequest заявка по ID с проверкой доступа по роли и принадлежности
func (r *Repository) GetRequest(actorID uint, actorRole role.Role, requestID uint) (*ds.Request, error) {
	request, err := r.loadRequest(requestID)
	if err != nil {
		return nil, err
	}

	hasAccess := actorRole == role.Admin ||
		actorRole == role.Accountant ||
		request.ManagerID == actorID ||
		(request.DeveloperID != nil && *request.DeveloperID == actorID)
	if !hasAccess {
		return nil, ErrForbidden
	}

	return request, nil
}

// GetRequestServices позиции сметы в исходном порядке
func (r *Repository) GetRequestServices(requestID uint) ([]ds.RequestService, error) {
	var services []ds.RequestService
	err := r.db.Where("request_id = ?", requestID).Order("position").Find(&services).Error
	return services, err
}

// GetStatusHistory история статусов заявки, новые записи первыми
func (r *Repository) GetStatusHistory(requestID uint, limit int) ([]ds.StatusHistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	var history []ds.StatusHistoryEntry
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at DESC, id DESC").Limit(limit).Find(&history).Error
	return history, err
}

// ListRequests список заявок с фильтрацией по роли, статусу и пагинацией.
// Менеджер видит свои заявки, разработчик - назначенные ему, остальные - все.
func (r *Repository) ListRequests(actorID uint, actorRole role.Role, status string, page, limit int) ([]ds.Request, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	query := r.db.Model(&ds.Request{})
	switch actorRole {
	case role.Manager:
		query = query.Where("manager_id = ?", actorID)
	case role.Developer, role.SupportDeveloper:
		query = query.Where("developer_id = ?", actorID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var requests []ds.Request
	err := query.
		Preload("Client").
		Preload("Manager").
		Preload("Developer").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}
