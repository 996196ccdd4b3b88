package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier отправляет уведомления после успешного изменения состояния.
// Никогда не блокирует основную операцию: ошибки доставки возвращаются вызывающему.
type Notifier interface {
	SendMessage(ctx context.Context, chatID, text string) error
}

// TelegramNotifier отправляет сообщения через Telegram Bot API
type TelegramNotifier struct {
	client  *http.Client
	baseURL string
	token   string
}

func NewTelegramNotifier(token string) *TelegramNotifier {
	return &TelegramNotifier{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://api.telegram.org",
		token:   token,
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (n *TelegramNotifier) SendMessage(ctx context.Context, chatID, text string) error {
	return n.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text})
}

func (n *TelegramNotifier) call(ctx context.Context, method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("telegram %s: unexpected response (status %d)", method, resp.StatusCode)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram %s: %s", method, apiResp.Description)
	}

	return nil
}

// NopNotifier заглушка для тестов и запуска без бота
type NopNotifier struct{}

func (NopNotifier) SendMessage(ctx context.Context, chatID, text string) error { return nil }
