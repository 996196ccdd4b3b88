package bot

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"agency/internal/app/redis"
	"agency/internal/app/repository"

	"github.com/sirupsen/logrus"
)

// Лимит входящих сообщений от одного чата в минуту
const messageRateLimit = 20

// ProofStore хранилище файлов квитанций
type ProofStore interface {
	UploadProof(fileData []byte, originalFilename string) (string, error)
	DeleteProof(filename string) error
}

// Bot обрабатывает сообщения клиентов и сотрудников в Telegram:
// регистрация по номеру заявки, квитанции об оплате, переписка с
// разработчиком и запросы баланса.
type Bot struct {
	api         *apiClient
	repo        *repository.Repository
	redis       *redis.Client
	proofs      ProofStore
	adminChatID string
	logger      *logrus.Logger
}

func New(token string, repo *repository.Repository, redisClient *redis.Client,
	proofs ProofStore, adminChatID string, logger *logrus.Logger) *Bot {
	return &Bot{
		api:         newAPIClient(token),
		repo:        repo,
		redis:       redisClient,
		proofs:      proofs,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Run запускает цикл long polling до отмены контекста
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("telegram bot started")

	var offset int64
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram bot stopped")
			return ctx.Err()
		default:
		}

		updates, err := b.api.getUpdates(ctx, offset, 30)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			b.logger.Error("getUpdates failed: ", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, upd := range updates {
			offset = upd.UpdateID + 1
			if upd.Message == nil {
				continue
			}
			b.handleMessage(ctx, upd.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *message) {
	chatID := chatIDString(msg.Chat.ID)

	if b.redis != nil {
		allowed, err := b.redis.AllowMessage(ctx, chatID, messageRateLimit)
		if err != nil {
			b.logger.Warn("rate limit check failed: ", err)
		} else if !allowed {
			return
		}
	}

	switch {
	case strings.HasPrefix(msg.Text, "/start"):
		b.handleStart(ctx, chatID, msg)
	case msg.Text == "/balance":
		b.handleBalance(ctx, chatID)
	case msg.Text == "/withdraw":
		b.handleWithdraw(ctx, chatID)
	case msg.Text == "/help":
		b.reply(ctx, chatID, helpText)
	case len(msg.Photo) > 0:
		b.handleProofPhoto(ctx, chatID, msg)
	case msg.Document != nil:
		b.handleProofDocument(ctx, chatID, msg)
	case msg.Text != "":
		b.handleClientText(ctx, chatID, msg.Text)
	}
}

const helpText = `Доступные команды:
/start НОМЕР_ЗАЯВКИ - привязать заявку
/balance - баланс (для сотрудников)
/withdraw - запросить выплату (для сотрудников)
/help - эта справка

Фото или PDF квитанции об оплате просто отправьте в чат.`

// handleStart привязывает чат клиента к заявке по ее номеру
func (b *Bot) handleStart(ctx context.Context, chatID string, msg *message) {
	parts := strings.Fields(msg.Text)
	if len(parts) < 2 {
		b.reply(ctx, chatID, "Укажите номер заявки: /start REQ-2025-XXXXXX")
		return
	}
	requestNumber := strings.ToUpper(parts[1])

	var username string
	if msg.From != nil {
		username = msg.From.Username
	}

	request, err := b.repo.RegisterClientTelegram(requestNumber, chatID, username)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		b.reply(ctx, chatID, "Заявка с таким номером не найдена. Проверьте номер у вашего менеджера.")
		return
	case errors.Is(err, repository.ErrValidation):
		b.reply(ctx, chatID, "По этой заявке клиент уже зарегистрирован.")
		return
	case errors.Is(err, repository.ErrIllegalTransition):
		b.reply(ctx, chatID, "Заявка уже прошла этап регистрации.")
		return
	case err != nil:
		b.logger.Error("register client failed: ", err)
		b.reply(ctx, chatID, "Не получилось привязать заявку, попробуйте позже.")
		return
	}

	b.reply(ctx, chatID, fmt.Sprintf(
		"Здравствуйте, %s! Заявка %s привязана. Менеджер подготовит договор и свяжется с вами.",
		request.Client.Name, request.RequestNumber))

	if request.Manager.TelegramID != "" {
		b.reply(ctx, request.Manager.TelegramID, fmt.Sprintf(
			"Клиент %s зарегистрировался по заявке %s.", request.Client.Name, request.RequestNumber))
	}
}

// handleBalance показывает балансы сотрудника
func (b *Bot) handleBalance(ctx context.Context, chatID string) {
	user, err := b.repo.GetUserByTelegramID(chatID)
	if err != nil {
		b.reply(ctx, chatID, "Команда доступна только сотрудникам.")
		return
	}

	pending, confirmed, totalEarned, err := b.repo.GetBalance(user.ID)
	if err != nil {
		b.logger.Error("get balance failed: ", err)
		b.reply(ctx, chatID, "Не получилось узнать баланс, попробуйте позже.")
		return
	}

	b.reply(ctx, chatID, fmt.Sprintf(
		"Ваш баланс:\nОжидает подтверждения: %s\nПодтверждено к выплате: %s\nВсего заработано: %s",
		pending.StringFixed(2), confirmed.StringFixed(2), totalEarned.StringFixed(2)))
}

// handleWithdraw отправляет бухгалтерам запрос на выплату подтвержденного баланса
func (b *Bot) handleWithdraw(ctx context.Context, chatID string) {
	user, err := b.repo.GetUserByTelegramID(chatID)
	if err != nil {
		b.reply(ctx, chatID, "Команда доступна только сотрудникам.")
		return
	}

	_, confirmed, _, err := b.repo.GetBalance(user.ID)
	if err != nil {
		b.logger.Error("get balance failed: ", err)
		b.reply(ctx, chatID, "Не получилось узнать баланс, попробуйте позже.")
		return
	}
	if confirmed.IsZero() {
		b.reply(ctx, chatID, "Подтвержденный баланс пуст, выводить нечего.")
		return
	}

	accountants, err := b.repo.ListActiveAccountants()
	if err != nil {
		b.logger.Error("list accountants failed: ", err)
	}
	notified := 0
	for _, acc := range accountants {
		if acc.TelegramID == "" {
			continue
		}
		b.reply(ctx, acc.TelegramID, fmt.Sprintf(
			"Запрос на выплату: %s, сумма %s.", user.Name, confirmed.StringFixed(2)))
		notified++
	}

	if notified == 0 {
		b.reply(ctx, chatID, "Запрос принят, бухгалтерия обработает его в рабочее время.")
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("Запрос на выплату %s отправлен бухгалтерии.", confirmed.StringFixed(2)))
}

// handleProofPhoto принимает фото квитанции об оплате
func (b *Bot) handleProofPhoto(ctx context.Context, chatID string, msg *message) {
	// Telegram присылает варианты размеров, берем самый большой
	largest := msg.Photo[0]
	for _, p := range msg.Photo[1:] {
		if p.FileSize > largest.FileSize {
			largest = p
		}
	}
	b.handleProofUpload(ctx, chatID, largest.FileID, "proof.jpg", true)
}

// handleProofDocument принимает квитанцию PDF-файлом
func (b *Bot) handleProofDocument(ctx context.Context, chatID string, msg *message) {
	name := msg.Document.FileName
	if name == "" {
		name = "proof.pdf"
	}
	ext := strings.ToLower(path.Ext(name))
	if ext != ".pdf" && ext != ".jpg" && ext != ".jpeg" && ext != ".png" && ext != ".webp" {
		b.reply(ctx, chatID, "Квитанция принимается как фото или PDF-файл.")
		return
	}
	b.handleProofUpload(ctx, chatID, msg.Document.FileID, name, false)
}

func (b *Bot) handleProofUpload(ctx context.Context, chatID, fileID, filename string, isPhoto bool) {
	if b.proofs == nil {
		b.reply(ctx, chatID, "Загрузка квитанций временно недоступна.")
		return
	}

	info, err := b.api.getFile(ctx, fileID)
	if err != nil {
		b.logger.Error("getFile failed: ", err)
		b.reply(ctx, chatID, "Не получилось скачать файл, попробуйте еще раз.")
		return
	}

	data, err := b.api.downloadFile(ctx, info.FilePath)
	if err != nil {
		b.logger.Error("download file failed: ", err)
		b.reply(ctx, chatID, "Не получилось скачать файл, попробуйте еще раз.")
		return
	}

	proofURL, err := b.proofs.UploadProof(data, filename)
	if err != nil {
		b.logger.Error("upload proof failed: ", err)
		b.reply(ctx, chatID, "Не получилось сохранить квитанцию, попробуйте позже.")
		return
	}

	request, payment, err := b.repo.SubmitPaymentProof(chatID, proofURL)
	if errors.Is(err, repository.ErrNotFound) {
		_ = b.proofs.DeleteProof(proofURL)
		b.reply(ctx, chatID, "Сейчас нет заявки, ожидающей оплату.")
		return
	}
	if err != nil {
		_ = b.proofs.DeleteProof(proofURL)
		b.logger.Error("submit proof failed: ", err)
		b.reply(ctx, chatID, "Не получилось сохранить квитанцию, попробуйте позже.")
		return
	}

	b.reply(ctx, chatID, fmt.Sprintf(
		"Квитанция по заявке %s принята, бухгалтерия проверит платеж.", request.RequestNumber))

	accountants, err := b.repo.ListActiveAccountants()
	if err != nil {
		b.logger.Error("list accountants failed: ", err)
		return
	}
	notice := fmt.Sprintf(
		"Новая квитанция по заявке %s (%s, сумма %s). Проверьте платеж #%d.",
		request.RequestNumber, payment.PaymentType, payment.Amount.StringFixed(2), payment.ID)
	for _, acc := range accountants {
		if acc.TelegramID == "" {
			continue
		}
		// Фото пересылаем бухгалтеру как есть, по file_id
		if isPhoto {
			if err := b.api.sendPhoto(ctx, acc.TelegramID, fileID, notice); err != nil {
				b.logger.Warn("sendPhoto failed: ", err)
				b.reply(ctx, acc.TelegramID, notice)
			}
			continue
		}
		b.reply(ctx, acc.TelegramID, notice)
	}
}

// handleClientText сохраняет сообщение клиента и пересылает его разработчику
func (b *Bot) handleClientText(ctx context.Context, chatID, text string) {
	request, saved, err := b.repo.RecordClientMessage(chatID, text)
	if errors.Is(err, repository.ErrNotFound) {
		b.reply(ctx, chatID, "Сейчас нет заявки в работе. Напишите /help для списка команд.")
		return
	}
	if err != nil {
		b.logger.Error("record client message failed: ", err)
		return
	}

	if request.Developer != nil && request.Developer.TelegramID != "" {
		b.reply(ctx, request.Developer.TelegramID, fmt.Sprintf(
			"Сообщение клиента по заявке %s:\n%s", request.RequestNumber, text))
	}

	if saved.ContainsSuspicious && b.adminChatID != "" {
		b.reply(ctx, b.adminChatID, fmt.Sprintf(
			"Подозрительное сообщение по заявке %s (ключевые слова: %s):\n%s",
			request.RequestNumber, saved.SuspiciousKeywords, text))
	}
}

func (b *Bot) reply(ctx context.Context, chatID, text string) {
	if err := b.api.sendMessage(ctx, chatID, text); err != nil {
		b.logger.Warn("sendMessage failed: ", err)
	}
}
