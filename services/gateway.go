package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"maintenanceportal/config"
	"maintenanceportal/utils"
)

// GatewayOrder заказ, созданный в платежном шлюзе
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// PaymentGateway платежный шлюз
type PaymentGateway interface {
	// CreateOrder создает заказ на сумму amount в рупиях
	CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	// VerifySignature проверяет подпись "orderId|paymentId", присланную клиентом после оплаты
	VerifySignature(orderID, paymentID, signature string) bool
	// Manual сообщает, что шлюз не настроен и заказы оплачиваются сразу
	Manual() bool
	// KeyID публичный ключ для клиентского checkout
	KeyID() string
}

// NewPaymentGateway возвращает Razorpay, если заданы ключи, иначе ручной режим
func NewPaymentGateway(cfg *config.Config) PaymentGateway {
	if cfg.ManualPayments() {
		return NewManualGateway()
	}
	return NewRazorpayGateway(cfg.Razorpay.BaseURL, cfg.Razorpay.KeyID, cfg.Razorpay.Secret)
}

// RazorpayGateway клиент REST API Razorpay
type RazorpayGateway struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
}

// NewRazorpayGateway создает новый экземпляр RazorpayGateway
func NewRazorpayGateway(baseURL, keyID, secret string) *RazorpayGateway {
	return &RazorpayGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		keyID:   keyID,
		secret:  secret,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder создает заказ через POST /orders; сумма передается в пайсах
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	payload, err := json.Marshal(razorpayOrderRequest{
		Amount:   utils.ToMinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования заказа: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования запроса: %w", err)
	}
	req.SetBasicAuth(g.keyID, g.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса к платежному шлюзу: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа платежного шлюза: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr razorpayError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("платежный шлюз вернул %d: %s", resp.StatusCode, apiErr.Error.Description)
		}
		return nil, fmt.Errorf("платежный шлюз вернул %d", resp.StatusCode)
	}

	var order GatewayOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("ошибка разбора ответа платежного шлюза: %w", err)
	}
	if order.ID == "" {
		return nil, fmt.Errorf("платежный шлюз не вернул идентификатор заказа")
	}
	return &order, nil
}

// VerifySignature проверяет HMAC-SHA256 подпись секретом шлюза
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.ValidateHMAC(utils.PaymentSignaturePayload(orderID, paymentID), signature, []byte(g.secret))
}

func (g *RazorpayGateway) Manual() bool {
	return false
}

func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

// ManualGateway используется без ключей шлюза: заказы создаются локально и оплачиваются сразу
type ManualGateway struct{}

// NewManualGateway создает новый экземпляр ManualGateway
func NewManualGateway() *ManualGateway {
	return &ManualGateway{}
}

func (g *ManualGateway) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	return &GatewayOrder{
		ID:       "order_manual_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Amount:   utils.ToMinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

// VerifySignature в ручном режиме подписи не бывает
func (g *ManualGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return false
}

func (g *ManualGateway) Manual() bool {
	return true
}

func (g *ManualGateway) KeyID() string {
	return ""
}
