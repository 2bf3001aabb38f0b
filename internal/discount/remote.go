package discount

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

// RemoteDirectory обращается к внешнему сервису проверки кодов скидок по HTTP.
type RemoteDirectory struct {
	baseURL    string
	httpClient *http.Client
	group      singleflight.Group
}

// remoteCode описывает ответ сервиса проверки кодов.
type remoteCode struct {
	Code    string `json:"code"`
	Type    string `json:"type"`
	Value   int64  `json:"value"`
	Minimum int64  `json:"min_order_amount,omitempty"`
}

// NewRemoteDirectory создаёт клиент сервиса проверки кодов по указанному адресу.
func NewRemoteDirectory(baseURL string, timeout time.Duration) *RemoteDirectory {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &RemoteDirectory{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Lookup запрашивает код у сервиса. Одновременные запросы одного кода с одной суммой объединяются.
func (d *RemoteDirectory) Lookup(ctx context.Context, code string, subtotal int64) (model.DiscountCode, error) {
	key := code + ":" + strconv.FormatInt(subtotal, 10)

	ch := d.group.DoChan(key, func() (interface{}, error) {
		return d.fetch(ctx, code, subtotal)
	})

	select {
	case <-ctx.Done():
		return model.DiscountCode{}, fmt.Errorf("%w: %w", ErrValidationUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return model.DiscountCode{}, res.Err
		}
		return res.Val.(model.DiscountCode), nil
	}
}

func (d *RemoteDirectory) fetch(ctx context.Context, code string, subtotal int64) (model.DiscountCode, error) {
	u := fmt.Sprintf("%s/api/discounts/%s?subtotal=%d", d.baseURL, url.PathEscape(code), subtotal)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.DiscountCode{}, fmt.Errorf("%w: create request: %w", ErrValidationUnavailable, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return model.DiscountCode{}, fmt.Errorf("%w: do request: %w", ErrValidationUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return model.DiscountCode{}, ErrCodeNotFound
	case http.StatusGone:
		return model.DiscountCode{}, ErrCodeExpired
	case http.StatusUnprocessableEntity:
		var body remoteCode
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Minimum > 0 {
			return model.DiscountCode{}, &MinimumNotMetError{Minimum: body.Minimum}
		}
		return model.DiscountCode{}, ErrMinimumNotMet
	default:
		return model.DiscountCode{}, fmt.Errorf("%w: unexpected status %d", ErrValidationUnavailable, resp.StatusCode)
	}

	var body remoteCode
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return model.DiscountCode{}, fmt.Errorf("%w: decode response: %w", ErrValidationUnavailable, err)
	}

	dc := model.DiscountCode{
		Code:  code,
		Type:  model.DiscountType(body.Type),
		Value: body.Value,
	}
	switch {
	case dc.Type == model.DiscountPercentage && dc.Value >= 0 && dc.Value <= 100:
	case dc.Type == model.DiscountFixed && dc.Value >= 0:
	default:
		return model.DiscountCode{}, fmt.Errorf("%w: malformed discount %q", ErrValidationUnavailable, body.Type)
	}

	return dc, nil
}
