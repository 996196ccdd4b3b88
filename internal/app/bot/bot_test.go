package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"agency/internal/app/ds"
	"agency/internal/app/repository"
	"agency/internal/app/role"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeTelegram собирает отправленные ботом сообщения и фото по chat_id
type fakeTelegram struct {
	mu     sync.Mutex
	sent   map[string][]string
	photos map[string][]sentPhoto
}

type sentPhoto struct {
	fileID  string
	caption string
}

func (f *fakeTelegram) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		// Скачивание файла ботом
		if strings.Contains(r.URL.Path, "/file/") {
			fmt.Fprint(w, "proof-bytes")
			return
		}
		if strings.HasSuffix(r.URL.Path, "/getFile") {
			fmt.Fprint(w, `{"ok":true,"result":{"file_id":"f1","file_path":"photos/f1.jpg"}}`)
			return
		}

		var payload struct {
			ChatID  json.RawMessage `json:"chat_id"`
			Text    string          `json:"text"`
			Photo   string          `json:"photo"`
			Caption string          `json:"caption"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)

		chatID := string(payload.ChatID)
		if len(chatID) > 1 && chatID[0] == '"' {
			chatID = chatID[1 : len(chatID)-1]
		}

		f.mu.Lock()
		if payload.Photo != "" {
			f.photos[chatID] = append(f.photos[chatID], sentPhoto{fileID: payload.Photo, caption: payload.Caption})
		} else {
			f.sent[chatID] = append(f.sent[chatID], payload.Text)
		}
		f.mu.Unlock()

		fmt.Fprint(w, `{"ok":true,"result":{}}`)
	}
}

func (f *fakeTelegram) messages(chatID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[chatID]
}

func (f *fakeTelegram) sentPhotos(chatID string) []sentPhoto {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.photos[chatID]
}

// fakeProofStore хранилище квитанций в памяти
type fakeProofStore struct {
	uploads []string
	deleted []string
}

func (s *fakeProofStore) UploadProof(fileData []byte, originalFilename string) (string, error) {
	name := fmt.Sprintf("proof_%d_%s", len(s.uploads)+1, originalFilename)
	s.uploads = append(s.uploads, name)
	return name, nil
}

func (s *fakeProofStore) DeleteProof(filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

type botEnv struct {
	bot    *Bot
	repo   *repository.Repository
	db     *gorm.DB
	tg     *fakeTelegram
	proofs *fakeProofStore
}

func newTestBot(t *testing.T) *botEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	repo, err := repository.NewWithDB(db)
	require.NoError(t, err)

	tg := &fakeTelegram{sent: map[string][]string{}, photos: map[string][]sentPhoto{}}
	server := httptest.NewServer(tg.handler())
	t.Cleanup(server.Close)

	logrusLogger := logrus.New()
	logrusLogger.SetLevel(logrus.ErrorLevel)

	proofs := &fakeProofStore{}
	b := New("test-token", repo, nil, proofs, "admin-chat", logrusLogger)
	b.api.baseURL = server.URL

	return &botEnv{bot: b, repo: repo, db: db, tg: tg, proofs: proofs}
}

func (e *botEnv) seedUser(t *testing.T, userRole role.Role, pct, telegramID string) *ds.User {
	t.Helper()
	user := ds.User{
		Email:            fmt.Sprintf("%s-%s@agency.test", userRole, telegramID),
		Password:         "hash",
		Name:             fmt.Sprintf("Сотрудник %s", telegramID),
		Role:             userRole,
		PayoutPercentage: decimal.RequireFromString(pct),
		TelegramID:       telegramID,
		IsActive:         true,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

func (e *botEnv) seedRequest(t *testing.T, manager *ds.User) *ds.Request {
	t.Helper()
	request, err := e.repo.CreateRequest(manager.ID, manager.Role, repository.CreateRequestInput{
		ClientName:       "Иван Васильев",
		BusinessCategory: "STARTUP",
		Services: []repository.ServiceInput{
			{Type: "WEBSITE", PlannedAmount: decimal.NewFromInt(150000)},
			{Type: "TELEGRAM_BOT", PlannedAmount: decimal.NewFromInt(50000)},
		},
	})
	require.NoError(t, err)
	return request
}

func textMessage(chatID int64, text string) *message {
	return &message{
		Chat: chat{ID: chatID},
		From: &botUser{ID: chatID, Username: "client_one"},
		Text: text,
	}
}

func TestHandleStartRegistersClient(t *testing.T) {
	e := newTestBot(t)
	manager := e.seedUser(t, role.Manager, "5", "777")
	request := e.seedRequest(t, manager)

	e.bot.handleMessage(context.Background(), textMessage(100, "/start "+request.RequestNumber))

	// Клиент получил подтверждение, заявка перешла на следующий этап
	replies := e.tg.messages("100")
	require.Len(t, replies, 1)
	require.Contains(t, replies[0], request.RequestNumber)

	updated, err := e.repo.GetRequest(manager.ID, manager.Role, request.ID)
	require.NoError(t, err)
	require.Equal(t, ds.StatusAwaitingContract, updated.Status)
	require.Equal(t, "100", updated.Client.TelegramID)

	// Менеджер уведомлен о регистрации
	managerNotes := e.tg.messages("777")
	require.Len(t, managerNotes, 1)
	require.Contains(t, managerNotes[0], request.RequestNumber)
}

func TestHandleStartWithoutNumber(t *testing.T) {
	e := newTestBot(t)

	e.bot.handleMessage(context.Background(), textMessage(100, "/start"))

	replies := e.tg.messages("100")
	require.Len(t, replies, 1)
	require.Contains(t, replies[0], "номер заявки")
}

func TestHandleStartUnknownRequest(t *testing.T) {
	e := newTestBot(t)

	e.bot.handleMessage(context.Background(), textMessage(100, "/start REQ-2025-XXXXXX"))

	replies := e.tg.messages("100")
	require.Len(t, replies, 1)
	require.Contains(t, replies[0], "не найдена")
}

func TestHandleBalance(t *testing.T) {
	e := newTestBot(t)
	developer := e.seedUser(t, role.Developer, "10", "200")
	require.NoError(t, e.db.Model(developer).Updates(map[string]interface{}{
		"pending_balance":   decimal.NewFromInt(15000),
		"confirmed_balance": decimal.NewFromInt(5000),
		"total_earned":      decimal.NewFromInt(20000),
	}).Error)

	e.bot.handleMessage(context.Background(), textMessage(200, "/balance"))

	replies := e.tg.messages("200")
	require.Len(t, replies, 1)
	require.Contains(t, replies[0], "15000.00")
	require.Contains(t, replies[0], "5000.00")
	require.Contains(t, replies[0], "20000.00")

	// Для постороннего команда закрыта
	e.bot.handleMessage(context.Background(), textMessage(300, "/balance"))
	require.Contains(t, e.tg.messages("300")[0], "только сотрудникам")
}

func TestHandleWithdraw(t *testing.T) {
	e := newTestBot(t)
	accountant := e.seedUser(t, role.Accountant, "0", "900")
	developer := e.seedUser(t, role.Developer, "10", "200")
	require.NoError(t, e.db.Model(developer).
		Update("confirmed_balance", decimal.NewFromInt(5000)).Error)

	e.bot.handleMessage(context.Background(), textMessage(200, "/withdraw"))

	// Бухгалтер получил запрос, сотрудник - подтверждение
	require.Len(t, e.tg.messages(accountant.TelegramID), 1)
	require.Contains(t, e.tg.messages(accountant.TelegramID)[0], "5000.00")
	require.Contains(t, e.tg.messages("200")[0], "отправлен бухгалтерии")
}

func TestHandleClientTextRelaysAndFlags(t *testing.T) {
	e := newTestBot(t)
	admin := e.seedUser(t, role.Admin, "0", "")
	manager := e.seedUser(t, role.Manager, "5", "777")
	developer := e.seedUser(t, role.Developer, "10", "555")
	request := e.seedRequest(t, manager)

	e.bot.handleMessage(context.Background(), textMessage(100, "/start "+request.RequestNumber))

	_, err := e.repo.UpdateRequest(admin.ID, admin.Role, request.ID, repository.UpdateRequestInput{
		SetDeveloper: true,
		DeveloperID:  &developer.ID,
	})
	require.NoError(t, err)
	for _, status := range []string{
		ds.StatusAwaitingPrepayment, ds.StatusReadyForDevelopment, ds.StatusInProgress,
	} {
		s := status
		_, err = e.repo.UpdateRequest(admin.ID, admin.Role, request.ID, repository.UpdateRequestInput{Status: &s})
		require.NoError(t, err)
	}

	// Обычное сообщение пересылается разработчику, админ молчит
	e.bot.handleMessage(context.Background(), textMessage(100, "Когда будут макеты?"))
	require.Len(t, e.tg.messages("555"), 1)
	require.Contains(t, e.tg.messages("555")[0], "Когда будут макеты?")
	require.Empty(t, e.tg.messages("admin-chat"))

	// Попытка обмена контактами уходит в админский чат
	e.bot.handleMessage(context.Background(), textMessage(100, "Напишите мне в whatsapp"))
	require.Len(t, e.tg.messages("admin-chat"), 1)
	require.Contains(t, e.tg.messages("admin-chat")[0], "whatsapp")
}

func photoMessage(chatID int64) *message {
	return &message{
		Chat: chat{ID: chatID},
		From: &botUser{ID: chatID, Username: "client_one"},
		Photo: []photoSize{
			{FileID: "photo-small", FileSize: 100},
			{FileID: "photo-big", FileSize: 9000},
		},
	}
}

func TestHandleProofPhotoForwardedToAccountants(t *testing.T) {
	e := newTestBot(t)
	admin := e.seedUser(t, role.Admin, "0", "")
	manager := e.seedUser(t, role.Manager, "5", "777")
	e.seedUser(t, role.Accountant, "0", "900")
	request := e.seedRequest(t, manager)

	e.bot.handleMessage(context.Background(), textMessage(100, "/start "+request.RequestNumber))

	s := ds.StatusAwaitingPrepayment
	_, err := e.repo.UpdateRequest(admin.ID, admin.Role, request.ID, repository.UpdateRequestInput{Status: &s})
	require.NoError(t, err)

	e.bot.handleMessage(context.Background(), photoMessage(100))

	// Клиенту подтверждение текстом
	client := e.tg.messages("100")
	require.Contains(t, client[len(client)-1], "принята")
	require.Len(t, e.proofs.uploads, 1)

	// Бухгалтеру уходит само фото (наибольший размер) с подписью
	photos := e.tg.sentPhotos("900")
	require.Len(t, photos, 1)
	require.Equal(t, "photo-big", photos[0].fileID)
	require.Contains(t, photos[0].caption, request.RequestNumber)
	require.Contains(t, photos[0].caption, "Проверьте платеж")
}

func TestHandleProofDocumentNotifiesAsText(t *testing.T) {
	e := newTestBot(t)
	admin := e.seedUser(t, role.Admin, "0", "")
	manager := e.seedUser(t, role.Manager, "5", "777")
	e.seedUser(t, role.Accountant, "0", "900")
	request := e.seedRequest(t, manager)

	e.bot.handleMessage(context.Background(), textMessage(100, "/start "+request.RequestNumber))

	s := ds.StatusAwaitingPrepayment
	_, err := e.repo.UpdateRequest(admin.ID, admin.Role, request.ID, repository.UpdateRequestInput{Status: &s})
	require.NoError(t, err)

	doc := &message{
		Chat:     chat{ID: 100},
		From:     &botUser{ID: 100, Username: "client_one"},
		Document: &document{FileID: "doc-1", FileName: "invoice.pdf"},
	}
	e.bot.handleMessage(context.Background(), doc)

	require.Len(t, e.proofs.uploads, 1)
	require.Empty(t, e.tg.sentPhotos("900"))
	require.Len(t, e.tg.messages("900"), 1)
	require.Contains(t, e.tg.messages("900")[0], request.RequestNumber)
}

func TestHelpCommand(t *testing.T) {
	e := newTestBot(t)
	e.bot.handleMessage(context.Background(), textMessage(100, "/help"))
	require.Contains(t, e.tg.messages("100")[0], "/balance")
}
