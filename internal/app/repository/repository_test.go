package repository

import (
	"fmt"
	"testing"

	"agency/internal/app/ds"
	"agency/internal/app/role"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	// Отдельная in-memory база на каждый тест
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	repo, err := NewWithDB(db)
	require.NoError(t, err)
	return repo
}

var userSeq int

func seedUser(t *testing.T, r *Repository, userRole role.Role, payoutPercentage string) *ds.User {
	t.Helper()
	userSeq++
	user := ds.User{
		Email:            fmt.Sprintf("user%d@agency.test", userSeq),
		Password:         "hash",
		Name:             fmt.Sprintf("User %d", userSeq),
		Role:             userRole,
		PayoutPercentage: decimal.RequireFromString(payoutPercentage),
		IsActive:         true,
	}
	require.NoError(t, r.db.Create(&user).Error)
	return &user
}

// seedStandardRequest заявка с двумя услугами 150000 + 50000 от менеджера
func seedStandardRequest(t *testing.T, r *Repository, manager *ds.User) *ds.Request {
	t.Helper()
	request, err := r.CreateRequest(manager.ID, manager.Role, CreateRequestInput{
		ClientName:       "Иван Васильев",
		ClientEmail:      "client@example.com",
		ClientPhone:      "+7 (999) 111-22-33",
		BusinessCategory: "STARTUP",
		Services: []ServiceInput{
			{Type: "WEBSITE", Description: "Корпоративный сайт", PlannedAmount: decimal.NewFromInt(150000)},
			{Type: "TELEGRAM_BOT", Description: "Бот для заявок", PlannedAmount: decimal.NewFromInt(50000)},
		},
		Description: "Сайт и бот для стартапа",
	})
	require.NoError(t, err)
	return request
}

// advanceStatus проводит заявку по цепочке статусов от имени админа
func advanceStatus(t *testing.T, r *Repository, admin *ds.User, requestID uint, statuses ...string) {
	t.Helper()
	for _, status := range statuses {
		s := status
		_, err := r.UpdateRequest(admin.ID, admin.Role, requestID, UpdateRequestInput{Status: &s})
		require.NoError(t, err)
	}
}

func requireDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(expected).Equal(actual),
		"expected %s, got %s", expected, actual.String())
}

func pendingBalance(t *testing.T, r *Repository, userID uint) decimal.Decimal {
	t.Helper()
	pending, _, _, err := r.GetBalance(userID)
	require.NoError(t, err)
	return pending
}

func requestLedger(t *testing.T, r *Repository, requestID uint) []ds.PayoutLedgerEntry {
	t.Helper()
	var entries []ds.PayoutLedgerEntry
	require.NoError(t, r.db.Where("request_id = ?", requestID).Order("id").Find(&entries).Error)
	return entries
}

func lastAudit(t *testing.T, r *Repository, action string) *ds.AuditLogEntry {
	t.Helper()
	var entry ds.AuditLogEntry
	err := r.db.Where("action = ?", action).Order("id DESC").First(&entry).Error
	if err != nil {
		return nil
	}
	return &entry
}
