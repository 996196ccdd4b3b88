package repository

import (
	"errors"
	"fmt"

	"agency/internal/app/ds"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Типизированные ошибки, отображаемые обработчиками на HTTP статусы
var (
	ErrNotFound          = errors.New("запись не найдена")
	ErrForbidden         = errors.New("недостаточно прав")
	ErrValidation        = errors.New("неверные данные")
	ErrIllegalTransition = errors.New("недопустимый переход статуса")
)

type Repository struct {
	db *gorm.DB
}

func New(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB оборачивает готовое соединение (в тестах - in-memory sqlite)
func NewWithDB(db *gorm.DB) (*Repository, error) {
	// Автоматическая миграция всех таблиц
	err := db.AutoMigrate(
		&ds.User{},
		&ds.Client{},
		&ds.Request{},
		&ds.RequestService{},
		&ds.PayoutLedgerEntry{},
		&ds.Payment{},
		&ds.StatusHistoryEntry{},
		&ds.AuditLogEntry{},
		&ds.Message{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{
		db: db,
	}, nil
}
