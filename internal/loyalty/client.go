package loyalty

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client инкапсулирует HTTP-взаимодействие с внешней системой лояльности.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Accrual описывает начисление баллов за оплаченный заказ.
type Accrual struct {
	Order  string `json:"order"`
	Card   string `json:"card"`
	Amount int64  `json:"amount"`
	Points int64  `json:"points"`
}

// NewClient создаёт HTTP-клиент системы лояльности по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// RegisterAccrual передаёт начисление в систему лояльности и возвращает код ответа
// и паузу из Retry-After для ответа 429.
func (c *Client) RegisterAccrual(ctx context.Context, a Accrual) (int, time.Duration, error) {
	if c == nil || c.baseURL == "" {
		return 0, 0, fmt.Errorf("loyalty client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(a)
	if err != nil {
		return 0, 0, fmt.Errorf("encode accrual: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/accruals", bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return resp.StatusCode, retryAfter, nil
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusConflict,
		http.StatusBadRequest, http.StatusUnprocessableEntity:
		return resp.StatusCode, 0, nil
	default:
		return resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
}
