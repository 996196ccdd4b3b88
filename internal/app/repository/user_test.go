package repository

import (
	"testing"

	"agency/internal/app/ds"
	"agency/internal/app/role"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCreateUser(t *testing.T) {
	r := newTestRepo(t)
	admin := seedUser(t, r, role.Admin, "0")
	manager := seedUser(t, r, role.Manager, "5")

	user, err := r.CreateUser(admin.ID, admin.Role, "new@agency.test", "hash",
		"Новый Разработчик", role.Developer, decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.Equal(t, role.Developer, user.Role)
	require.True(t, user.IsActive)

	audit := lastAudit(t, r, ds.ActionUserCreated)
	require.NotNil(t, audit)
	require.Equal(t, admin.ID, audit.UserID)

	// Только админ создает сотрудников
	_, err = r.CreateUser(manager.ID, manager.Role, "x@agency.test", "hash",
		"X", role.Developer, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrForbidden)

	// Неизвестная роль и процент вне диапазона отклоняются
	_, err = r.CreateUser(admin.ID, admin.Role, "y@agency.test", "hash",
		"Y", role.Role("INTERN"), decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrValidation)

	_, err = r.CreateUser(admin.ID, admin.Role, "z@agency.test", "hash",
		"Z", role.Developer, decimal.NewFromInt(150))
	require.ErrorIs(t, err, ErrValidation)
}

func TestGetUserLookups(t *testing.T) {
	r := newTestRepo(t)
	developer := seedUser(t, r, role.Developer, "10")

	require.NoError(t, r.db.Model(developer).Update("telegram_id", "555").Error)

	byEmail, err := r.GetUserByEmail(developer.Email)
	require.NoError(t, err)
	require.Equal(t, developer.ID, byEmail.ID)

	byTelegram, err := r.GetUserByTelegramID("555")
	require.NoError(t, err)
	require.Equal(t, developer.ID, byTelegram.ID)

	_, err = r.GetUserByTelegramID("does-not-exist")
	require.ErrorIs(t, err, ErrNotFound)

	exists, err := r.UserExistsByEmail(developer.Email)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestListActiveAccountants(t *testing.T) {
	r := newTestRepo(t)
	active := seedUser(t, r, role.Accountant, "0")
	inactive := seedUser(t, r, role.Accountant, "0")
	seedUser(t, r, role.Manager, "5")

	require.NoError(t, r.db.Model(inactive).Update("is_active", false).Error)

	accountants, err := r.ListActiveAccountants()
	require.NoError(t, err)
	require.Len(t, accountants, 1)
	require.Equal(t, active.ID, accountants[0].ID)
}
