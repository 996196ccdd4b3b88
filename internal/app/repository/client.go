package repository

import (
	"errors"
	"fmt"
	"strings"

	"agency/internal/app/ds"

	"gorm.io/gorm"
)

// Ключевые слова возможного обмена контактами в обход платформы
var suspiciousKeywords = []string{
	"whatsapp", "viber", "telegram", "номер", "телефон", "почта", "email", "@",
}

// upsertClient находит клиента по email или создает нового (внутри транзакции).
// Клиент без email будет привязан позже через Telegram.
func upsertClient(tx *gorm.DB, name, email, phone string) (*ds.Client, error) {
	if email == "" {
		client := ds.Client{Name: name, Phone: phone}
		if err := tx.Create(&client).Error; err != nil {
			return nil, err
		}
		return &client, nil
	}

	var client ds.Client
	err := tx.Where("email = ?", email).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		client = ds.Client{Name: name, Email: &email, Phone: phone}
		if err := tx.Create(&client).Error; err != nil {
			return nil, err
		}
		return &client, nil
	}
	if err != nil {
		return nil, err
	}

	client.Name = name
	client.Phone = phone
	if err := tx.Save(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *Repository) GetClientByTelegramID(telegramID string) (*ds.Client, error) {
	var client ds.Client
	err := r.db.Where("telegram_id = ?", telegramID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// RegisterClientTelegram привязывает Telegram клиента к заявке по ее номеру
// и переводит заявку в AWAITING_CONTRACT. Возвращает заявку с менеджером
// для уведомления.
func (r *Repository) RegisterClientTelegram(requestNumber, telegramID, telegramUsername string) (*ds.Request, error) {
	var request ds.Request
	err := r.db.Preload("Client").Preload("Manager").
		Where("request_number = ?", requestNumber).First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if request.Client.TelegramID != "" {
		return nil, fmt.Errorf("%w: клиент уже зарегистрирован", ErrValidation)
	}
	if !ds.CanTransition(request.Status, ds.StatusAwaitingContract) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, request.Status, ds.StatusAwaitingContract)
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&ds.Client{}).Where("id = ?", request.ClientID).
			Updates(map[string]interface{}{
				"telegram_id":       telegramID,
				"telegram_username": telegramUsername,
			}).Error
		if err != nil {
			return err
		}

		from := request.Status
		if err := tx.Model(&ds.Request{}).Where("id = ?", request.ID).
			Update("status", ds.StatusAwaitingContract).Error; err != nil {
			return err
		}

		history := ds.StatusHistoryEntry{
			RequestID:  request.ID,
			FromStatus: &from,
			ToStatus:   ds.StatusAwaitingContract,
			ChangedBy:  request.ManagerID,
			Reason:     "Клиент зарегистрировался в Telegram",
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, err
	}

	request.Status = ds.StatusAwaitingContract
	request.Client.TelegramID = telegramID
	request.Client.TelegramUsername = telegramUsername
	return &request, nil
}

// RecordClientMessage сохраняет сообщение клиента по активной заявке
// с пометкой подозрительного содержимого. Возвращает заявку с разработчиком
// для пересылки сообщения.
func (r *Repository) RecordClientMessage(telegramID, text string) (*ds.Request, *ds.Message, error) {
	client, err := r.GetClientByTelegramID(telegramID)
	if err != nil {
		return nil, nil, err
	}

	var request ds.Request
	err = r.db.Preload("Developer").
		Where("client_id = ? AND status = ?", client.ID, ds.StatusInProgress).
		Order("created_at DESC").First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	lower := strings.ToLower(text)
	var found []string
	for _, keyword := range suspiciousKeywords {
		if strings.Contains(lower, keyword) {
			found = append(found, keyword)
		}
	}

	message := ds.Message{
		RequestID:          request.ID,
		ClientID:           &client.ID,
		Content:            text,
		ContainsSuspicious: len(found) > 0,
		SuspiciousKeywords: strings.Join(found, ", "),
	}
	if err := r.db.Create(&message).Error; err != nil {
		return nil, nil, err
	}

	return &request, &message, nil
}

// GetRequestMessages переписка по заявке в хронологическом порядке
func (r *Repository) GetRequestMessages(requestID uint) ([]ds.Message, error) {
	var messages []ds.Message
	err := r.db.Where("request_id = ?", requestID).Order("created_at ASC, id ASC").Find(&messages).Error
	return messages, err
}
