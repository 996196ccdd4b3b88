package repository

import (
	"encoding/json"

	"agency/internal/app/ds"

	"gorm.io/gorm"
)

// appendAudit добавляет запись в журнал аудита (внутри транзакции вызывающего)
func appendAudit(tx *gorm.DB, userID uint, action string, details map[string]interface{}) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	return tx.Create(&ds.AuditLogEntry{
		UserID:  userID,
		Action:  action,
		Details: string(payload),
	}).Error
}

// AppendAudit запись аудита вне транзакций (login/logout)
func (r *Repository) AppendAudit(userID uint, action string, details map[string]interface{}) error {
	return appendAudit(r.db, userID, action, details)
}

// GetAuditLog последние записи журнала аудита
func (r *Repository) GetAuditLog(limit int) ([]ds.AuditLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []ds.AuditLogEntry
	err := r.db.Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}
