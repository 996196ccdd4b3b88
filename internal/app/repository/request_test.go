package repository

import (
	"strings"
	"testing"

	"agency/internal/app/ds"
	"agency/internal/app/role"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestCreateRequest(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")

	request := seedStandardRequest(t, r, manager)

	require.Equal(t, ds.StatusPendingTelegram, request.Status)
	require.True(t, strings.HasPrefix(request.RequestNumber, "REQ-"))
	requireDecimal(t, "200000", request.InitialTotalAmount)
	require.Nil(t, request.FinalTotalAmount)
	require.Equal(t, "Иван Васильев", request.Client.Name)

	// Позиции сметы сохраняют порядок
	services, err := r.GetRequestServices(request.ID)
	require.NoError(t, err)
	require.Len(t, services, 2)
	require.Equal(t, "WEBSITE", services[0].Type)
	require.Equal(t, "TELEGRAM_BOT", services[1].Type)

	// Менеджеру начислено 5% от общей суммы одной записью без типа услуги
	entries := requestLedger(t, r, request.ID)
	require.Len(t, entries, 1)
	require.Equal(t, manager.ID, entries[0].UserID)
	require.Nil(t, entries[0].ServiceType)
	require.Equal(t, ds.LedgerPending, entries[0].Status)
	requireDecimal(t, "10000", entries[0].InitialAmount)
	requireDecimal(t, "10000", pendingBalance(t, r, manager.ID))

	// Ровно одна начальная запись истории без fromStatus
	history, err := r.GetStatusHistory(request.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Nil(t, history[0].FromStatus)
	require.Equal(t, ds.StatusPendingTelegram, history[0].ToStatus)
	require.Equal(t, manager.ID, history[0].ChangedBy)

	audit := lastAudit(t, r, ds.ActionRequestCreated)
	require.NotNil(t, audit)
	require.Equal(t, manager.ID, audit.UserID)
	require.Contains(t, audit.Details, request.RequestNumber)
}

func TestCreateRequestForbiddenForDeveloper(t *testing.T) {
	r := newTestRepo(t)
	developer := seedUser(t, r, role.Developer, "10")

	_, err := r.CreateRequest(developer.ID, developer.Role, CreateRequestInput{
		ClientName:       "Клиент",
		BusinessCategory: "SMB",
		Services:         []ServiceInput{{Type: "WEBSITE", PlannedAmount: decimal.NewFromInt(1000)}},
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreateRequestValidation(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")

	// Без услуг
	_, err := r.CreateRequest(manager.ID, manager.Role, CreateRequestInput{
		ClientName:       "Клиент",
		BusinessCategory: "SMB",
	})
	require.ErrorIs(t, err, ErrValidation)

	// Отрицательная сумма услуги
	_, err = r.CreateRequest(manager.ID, manager.Role, CreateRequestInput{
		ClientName:       "Клиент",
		BusinessCategory: "SMB",
		Services:         []ServiceInput{{Type: "WEBSITE", PlannedAmount: decimal.NewFromInt(-100)}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestStatusTransitionEnforced(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")
	request := seedStandardRequest(t, r, manager)

	// Перепрыгнуть через этапы нельзя
	bad := ds.StatusInProgress
	_, err := r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{Status: &bad})
	require.ErrorIs(t, err, ErrIllegalTransition)

	// Следующий по цепочке статус проходит и пишет историю
	next := ds.StatusAwaitingContract
	updated, err := r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		Status:       &next,
		StatusReason: "Клиент зарегистрировался",
	})
	require.NoError(t, err)
	require.Equal(t, ds.StatusAwaitingContract, updated.Status)

	history, err := r.GetStatusHistory(request.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotNil(t, history[0].FromStatus)
	require.Equal(t, ds.StatusPendingTelegram, *history[0].FromStatus)
	require.Equal(t, ds.StatusAwaitingContract, history[0].ToStatus)
	require.Equal(t, "Клиент зарегистрировался", history[0].Reason)

	// Отмена доступна из любого незавершенного статуса
	cancel := ds.StatusCancelled
	updated, err = r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{Status: &cancel})
	require.NoError(t, err)
	require.Equal(t, ds.StatusCancelled, updated.Status)

	// Из отмененной заявки выхода нет
	reopen := ds.StatusAwaitingContract
	_, err = r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{Status: &reopen})
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestContractSignedOnPrepaymentTransition(t *testing.T) {
	r := newTestRepo(t)
	admin := seedUser(t, r, role.Admin, "0")
	manager := seedUser(t, r, role.Manager, "5")
	request := seedStandardRequest(t, r, manager)

	require.False(t, request.ContractSigned)
	require.Nil(t, request.ContractSignedAt)

	advanceStatus(t, r, admin, request.ID, ds.StatusAwaitingContract)
	updated, err := r.GetRequest(admin.ID, admin.Role, request.ID)
	require.NoError(t, err)
	require.False(t, updated.ContractSigned)

	// Переход к ожиданию предоплаты фиксирует подписание договора
	advanceStatus(t, r, admin, request.ID, ds.StatusAwaitingPrepayment)
	updated, err = r.GetRequest(admin.ID, admin.Role, request.ID)
	require.NoError(t, err)
	require.True(t, updated.ContractSigned)
	require.NotNil(t, updated.ContractSignedAt)
}

func TestAssignDeveloperCreatesPerServiceEntries(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")
	developer := seedUser(t, r, role.Developer, "10")
	request := seedStandardRequest(t, r, manager)

	updated, err := r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  &developer.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.DeveloperID)
	require.Equal(t, developer.ID, *updated.DeveloperID)

	// По записи на каждую позицию сметы: 10% от 150000 и от 50000
	entries := requestLedger(t, r, request.ID)
	require.Len(t, entries, 3)

	var devEntries []ds.PayoutLedgerEntry
	for _, e := range entries {
		if e.UserID == developer.ID {
			devEntries = append(devEntries, e)
		}
	}
	require.Len(t, devEntries, 2)
	require.Equal(t, "WEBSITE", *devEntries[0].ServiceType)
	requireDecimal(t, "15000", devEntries[0].InitialAmount)
	require.Equal(t, "TELEGRAM_BOT", *devEntries[1].ServiceType)
	requireDecimal(t, "5000", devEntries[1].InitialAmount)

	requireDecimal(t, "20000", pendingBalance(t, r, developer.ID))
}

func TestReassignDeveloperCancelsPriorEntries(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")
	first := seedUser(t, r, role.Developer, "10")
	second := seedUser(t, r, role.Developer, "20")
	request := seedStandardRequest(t, r, manager)

	_, err := r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  &first.ID,
	})
	require.NoError(t, err)
	requireDecimal(t, "20000", pendingBalance(t, r, first.ID))

	_, err = r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  &second.ID,
	})
	require.NoError(t, err)

	// Начисления первого разработчика отменены и списаны с его баланса
	requireDecimal(t, "0", pendingBalance(t, r, first.ID))
	for _, e := range requestLedger(t, r, request.ID) {
		if e.UserID == first.ID {
			require.Equal(t, ds.LedgerCancelled, e.Status)
		}
	}
	// Второй получил свои 20% от каждой услуги
	requireDecimal(t, "40000", pendingBalance(t, r, second.ID))

	// Снятие разработчика тоже отменяет начисления
	_, err = r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  nil,
	})
	require.NoError(t, err)
	requireDecimal(t, "0", pendingBalance(t, r, second.ID))
}

func TestAccountantAdjustsFinalAmount(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")
	developer := seedUser(t, r, role.Developer, "10")
	accountant := seedUser(t, r, role.Accountant, "0")
	request := seedStandardRequest(t, r, manager)

	_, err := r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  &developer.ID,
	})
	require.NoError(t, err)

	// Итог 180000 вместо 200000: все живые начисления умножаются на 0.9
	final := decimal.NewFromInt(180000)
	updated, err := r.UpdateRequest(accountant.ID, accountant.Role, request.ID, UpdateRequestInput{
		FinalTotalAmount: &final,
	})
	require.NoError(t, err)
	require.NotNil(t, updated.FinalTotalAmount)
	requireDecimal(t, "180000", *updated.FinalTotalAmount)

	for _, e := range requestLedger(t, r, request.ID) {
		require.Equal(t, ds.LedgerAdjusted, e.Status)
		require.NotNil(t, e.FinalAmount)
	}

	// Менеджер: 10000 -> 9000, разработчик: 20000 -> 18000
	requireDecimal(t, "9000", pendingBalance(t, r, manager.ID))
	requireDecimal(t, "18000", pendingBalance(t, r, developer.ID))

	entries := requestLedger(t, r, request.ID)
	byType := map[string]decimal.Decimal{}
	for _, e := range entries {
		key := ""
		if e.ServiceType != nil {
			key = *e.ServiceType
		}
		byType[key] = e.EffectiveAmount()
	}
	requireDecimal(t, "9000", byType[""])
	requireDecimal(t, "13500", byType["WEBSITE"])
	requireDecimal(t, "4500", byType["TELEGRAM_BOT"])
}

func TestFinalAmountIgnoredForNonAccountant(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")
	request := seedStandardRequest(t, r, manager)

	final := decimal.NewFromInt(300000)
	updated, err := r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		FinalTotalAmount: &final,
	})
	require.NoError(t, err)
	require.Nil(t, updated.FinalTotalAmount)
	requireDecimal(t, "10000", pendingBalance(t, r, manager.ID))
}

func TestUpdateRequestAccessMatrix(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")
	otherManager := seedUser(t, r, role.Manager, "5")
	developer := seedUser(t, r, role.Developer, "10")
	request := seedStandardRequest(t, r, manager)

	notes := "чужая заметка"
	_, err := r.UpdateRequest(otherManager.ID, otherManager.Role, request.ID, UpdateRequestInput{Notes: &notes})
	require.ErrorIs(t, err, ErrForbidden)

	// Разработчик без назначения тоже не имеет доступа
	_, err = r.UpdateRequest(developer.ID, developer.Role, request.ID, UpdateRequestInput{Notes: &notes})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  &developer.ID,
	})
	require.NoError(t, err)

	// После назначения разработчик может обновлять свою заявку
	updated, err := r.UpdateRequest(developer.ID, developer.Role, request.ID, UpdateRequestInput{Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, notes, updated.Notes)
}

func TestDeleteRequest(t *testing.T) {
	r := newTestRepo(t)
	admin := seedUser(t, r, role.Admin, "0")
	manager := seedUser(t, r, role.Manager, "5")
	developer := seedUser(t, r, role.Developer, "10")
	request := seedStandardRequest(t, r, manager)

	_, err := r.UpdateRequest(manager.ID, manager.Role, request.ID, UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  &developer.ID,
	})
	require.NoError(t, err)

	// Удалять может только админ
	err = r.DeleteRequest(manager.ID, manager.Role, request.ID)
	require.ErrorIs(t, err, ErrForbidden)

	err = r.DeleteRequest(admin.ID, admin.Role, request.ID)
	require.NoError(t, err)

	_, err = r.GetRequest(admin.ID, admin.Role, request.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// Неподтвержденные начисления списаны из ожидающих балансов
	requireDecimal(t, "0", pendingBalance(t, r, manager.ID))
	requireDecimal(t, "0", pendingBalance(t, r, developer.ID))
	require.Empty(t, requestLedger(t, r, request.ID))

	audit := lastAudit(t, r, ds.ActionRequestDeleted)
	require.NotNil(t, audit)
	require.Equal(t, admin.ID, audit.UserID)
}

func TestListRequestsScopedByRole(t *testing.T) {
	r := newTestRepo(t)
	admin := seedUser(t, r, role.Admin, "0")
	manager := seedUser(t, r, role.Manager, "5")
	otherManager := seedUser(t, r, role.Manager, "5")
	developer := seedUser(t, r, role.Developer, "10")

	first := seedStandardRequest(t, r, manager)
	seedStandardRequest(t, r, otherManager)

	_, err := r.UpdateRequest(manager.ID, manager.Role, first.ID, UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  &developer.ID,
	})
	require.NoError(t, err)

	all, total, err := r.ListRequests(admin.ID, admin.Role, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.EqualValues(t, 2, total)

	mine, total, err := r.ListRequests(manager.ID, manager.Role, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.EqualValues(t, 1, total)
	require.Equal(t, first.ID, mine[0].ID)

	assigned, _, err := r.ListRequests(developer.ID, developer.Role, "", 1, 10)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, first.ID, assigned[0].ID)

	// Фильтр по статусу
	none, _, err := r.ListRequests(admin.ID, admin.Role, ds.StatusCompleted, 1, 10)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestGetRequestAccess(t *testing.T) {
	r := newTestRepo(t)
	manager := seedUser(t, r, role.Manager, "5")
	stranger := seedUser(t, r, role.Developer, "10")
	accountant := seedUser(t, r, role.Accountant, "0")
	request := seedStandardRequest(t, r, manager)

	_, err := r.GetRequest(stranger.ID, stranger.Role, request.ID)
	require.ErrorIs(t, err, ErrForbidden)

	got, err := r.GetRequest(accountant.ID, accountant.Role, request.ID)
	require.NoError(t, err)
	require.Equal(t, request.ID, got.ID)
}
