package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// apiClient минимальный клиент Telegram Bot API поверх HTTP.
// Используются только методы, нужные боту: getUpdates, getFile, sendMessage.
type apiClient struct {
	client  *http.Client
	baseURL string
	token   string
}

func newAPIClient(token string) *apiClient {
	return &apiClient{
		client: &http.Client{
			// Таймаут должен покрывать long polling getUpdates
			Timeout: 60 * time.Second,
		},
		baseURL: "https://api.telegram.org",
		token:   token,
	}
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	MessageID int64       `json:"message_id"`
	From      *botUser    `json:"from"`
	Chat      chat        `json:"chat"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []photoSize `json:"photo"`
	Document  *document   `json:"document"`
}

type botUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type chat struct {
	ID int64 `json:"id"`
}

type photoSize struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
}

type document struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

type fileInfo struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (a *apiClient) call(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", a.baseURL, a.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return fmt.Errorf("telegram %s: unexpected response (status %d)", method, resp.StatusCode)
	}
	if !apiResp.OK {
		return fmt.Errorf("telegram %s: %s", method, apiResp.Description)
	}

	if out != nil {
		return json.Unmarshal(apiResp.Result, out)
	}
	return nil
}

func (a *apiClient) getUpdates(ctx context.Context, offset int64, timeout int) ([]update, error) {
	payload := map[string]interface{}{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message"},
	}
	var updates []update
	if err := a.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (a *apiClient) sendMessage(ctx context.Context, chatID, text string) error {
	return a.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}, nil)
}

// sendPhoto пересылает уже загруженное в Telegram фото по его file_id
func (a *apiClient) sendPhoto(ctx context.Context, chatID, fileID, caption string) error {
	return a.call(ctx, "sendPhoto", map[string]interface{}{
		"chat_id": chatID,
		"photo":   fileID,
		"caption": caption,
	}, nil)
}

// getFile возвращает путь файла на серверах Telegram для последующего скачивания
func (a *apiClient) getFile(ctx context.Context, fileID string) (*fileInfo, error) {
	var info fileInfo
	err := a.call(ctx, "getFile", map[string]interface{}{"file_id": fileID}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

func (a *apiClient) downloadFile(ctx context.Context, filePath string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/file/bot%s/%s", a.baseURL, a.token, url.PathEscape(filePath))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram file download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download: status %d", resp.StatusCode)
	}

	// Telegram Bot API ограничивает скачивание 20 МБ
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

func chatIDString(id int64) string {
	return strconv.FormatInt(id, 10)
}
