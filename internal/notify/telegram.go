package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"storefront/internal/models"
)

// ReceiptReader loads a stored receipt image.
type ReceiptReader interface {
	Read(ref string) ([]byte, error)
}

// TelegramSender posts the order summary to a Telegram chat through the Bot
// API, followed by the payment receipt as a photo when there is one.
type TelegramSender struct {
	apiURL   string
	token    string
	chatID   string
	receipts ReceiptReader
	client   *http.Client
}

func NewTelegramSender(apiURL, token, chatID string, receipts ReceiptReader) *TelegramSender {
	return &TelegramSender{
		apiURL:   strings.TrimRight(apiURL, "/"),
		token:    token,
		chatID:   chatID,
		receipts: receipts,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramSender) Send(ctx context.Context, order models.Order) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    Summary(order),
	})
	if err != nil {
		return err
	}
	if err := t.call(ctx, "sendMessage", "application/json", bytes.NewReader(payload)); err != nil {
		return err
	}

	if !forwardsReceipt(order) || t.receipts == nil {
		return nil
	}
	return t.sendReceipt(ctx, order)
}

func (t *TelegramSender) sendReceipt(ctx context.Context, order models.Order) error {
	data, err := t.receipts.Read(order.PaymentReceipt)
	if err != nil {
		return fmt.Errorf("read receipt %s: %w", order.PaymentReceipt, err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("chat_id", t.chatID)
	_ = w.WriteField("caption", "Reçu de paiement - "+order.OrderNumber)
	part, err := w.CreateFormFile("photo", path.Base(order.PaymentReceipt))
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return t.call(ctx, "sendPhoto", w.FormDataContentType(), &body)
}

func (t *TelegramSender) call(ctx context.Context, method, contentType string, body io.Reader) error {
	endpoint := t.apiURL + "/bot" + t.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.client.Do(req)
	if err != nil {
		// the error string carries the URL, and with it the bot token
		return fmt.Errorf("telegram %s: request failed", method)
	}
	defer resp.Body.Close()

	var out telegramResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != http.StatusOK || !out.OK {
		return fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, out.Description)
	}
	return nil
}
