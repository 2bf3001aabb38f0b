package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/bakery-storefront/internal/cart"
	"github.com/mmeshcher/bakery-storefront/internal/catering"
	"github.com/mmeshcher/bakery-storefront/internal/discount"
	"github.com/mmeshcher/bakery-storefront/internal/middleware"
	"github.com/mmeshcher/bakery-storefront/internal/model"
	"github.com/mmeshcher/bakery-storefront/internal/repository"
	"github.com/mmeshcher/bakery-storefront/internal/service"
)

const testSessionID = "6f1c2b1e-8d44-4a1e-9c55-2f0f5b7f4a10"

type unavailableDirectory struct{}

func (unavailableDirectory) Lookup(ctx context.Context, code string, subtotal int64) (model.DiscountCode, error) {
	return model.DiscountCode{}, discount.ErrValidationUnavailable
}

type stubService struct {
	mu        sync.Mutex
	carts     map[string]*cart.Cart
	directory cart.Directory

	products    []model.Product
	productsErr error

	addErr error

	checkoutOrder *model.Order
	checkoutErr   error
	checkoutSID   string

	order    *model.Order
	orderErr error

	summary    *model.LoyaltySummary
	summaryErr error

	estimate    catering.Estimate
	estimateErr error
}

func (s *stubService) Products(category string) ([]model.Product, error) {
	return s.products, s.productsErr
}

func (s *stubService) Cart(ctx context.Context, sessionID string) *cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.carts == nil {
		s.carts = make(map[string]*cart.Cart)
	}
	c, ok := s.carts[sessionID]
	if !ok {
		n := 0
		dir := s.directory
		if dir == nil {
			dir = discount.NewMemoryDirectory(discount.DefaultRules())
		}
		c = cart.New(cart.Options{
			Directory: dir,
			NewLineID: func() string {
				n++
				return fmt.Sprintf("line-%d", n)
			},
		})
		s.carts[sessionID] = c
	}
	return c
}

func (s *stubService) AddProduct(ctx context.Context, sessionID, productID string, quantity int) (model.CartLine, error) {
	if s.addErr != nil {
		return model.CartLine{}, s.addErr
	}
	return s.Cart(ctx, sessionID).AddItem(model.Product{ID: productID, Name: productID, Price: 150}, quantity)
}

func (s *stubService) Checkout(ctx context.Context, sessionID string, f model.Fulfillment) (*model.Order, error) {
	s.checkoutSID = sessionID
	return s.checkoutOrder, s.checkoutErr
}

func (s *stubService) Order(ctx context.Context, sessionID, orderID string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) LoyaltySummary(ctx context.Context, card string) (*model.LoyaltySummary, error) {
	return s.summary, s.summaryErr
}

func (s *stubService) CateringQuote(req catering.Request) (catering.Estimate, error) {
	return s.estimate, s.estimateErr
}

type testServer struct {
	router  http.Handler
	session *http.Cookie
}

func newTestServer(t *testing.T, svc Service) *testServer {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	sessions := middleware.NewSessionMiddleware("test-secret")
	h := NewHandler(svc, logger, sessions)

	w := httptest.NewRecorder()
	if err := sessions.SetSessionCookie(w, testSessionID); err != nil {
		t.Fatalf("set session cookie: %v", err)
	}

	return &testServer{
		router:  h.SetupRouter(),
		session: w.Result().Cookies()[0],
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(ts.session)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func TestListProducts(t *testing.T) {
	svc := &stubService{products: []model.Product{{ID: "esp-001", Name: "Espresso", Price: 150, Category: model.CategoryCoffee}}}
	ts := newTestServer(t, svc)

	rec := ts.do(t, http.MethodGet, "/api/products?category=coffee", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	products := decode[[]model.Product](t, rec)
	require.Len(t, products, 1)
	assert.Equal(t, "esp-001", products[0].ID)

	svc.productsErr = service.ErrInvalidCategory
	rec = ts.do(t, http.MethodGet, "/api/products?category=sushi", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CATEGORY", decode[errorResponse](t, rec).Code)
}

func TestCartFlow(t *testing.T) {
	svc := &stubService{}
	ts := newTestServer(t, svc)

	rec := ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "esp-001", "quantity": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[cart.View](t, rec)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(450), view.Subtotal)
	lineID := view.Lines[0].ID

	rec = ts.do(t, http.MethodPost, "/api/cart/discount", map[string]string{"code": " save10 "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	applied := decode[discountResponse](t, rec)
	assert.True(t, applied.Result.Applied)
	assert.Equal(t, int64(45), applied.Cart.Discount)
	assert.Equal(t, int64(405), applied.Cart.Total)
	assert.Equal(t, int64(40), applied.Cart.PointsToEarn)

	rec = ts.do(t, http.MethodPatch, "/api/cart/items/"+lineID, map[string]int{"quantity": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[cart.View](t, rec)
	assert.Equal(t, 1, view.ItemCount)
	assert.Equal(t, int64(15), view.Discount)

	rec = ts.do(t, http.MethodGet, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[cart.View](t, rec)
	require.NotNil(t, view.Code)
	assert.Equal(t, "SAVE10", view.Code.Code)

	rec = ts.do(t, http.MethodDelete, "/api/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[cart.View](t, rec)
	assert.Empty(t, view.Lines)
	require.NotNil(t, view.Code, "clearing the cart keeps the discount code")

	rec = ts.do(t, http.MethodDelete, "/api/cart/discount", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode[cart.View](t, rec).Code)
}

func TestAddCartItem_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		addErr error
		status int
		code   string
	}{
		{name: "missing product", body: map[string]any{"quantity": 1}, status: http.StatusBadRequest, code: "INVALID_REQUEST"},
		{name: "unknown product", body: map[string]any{"product_id": "nope"}, addErr: service.ErrProductNotFound, status: http.StatusNotFound, code: "PRODUCT_NOT_FOUND"},
		{name: "bad quantity", body: map[string]any{"product_id": "esp-001", "quantity": 0}, addErr: cart.ErrInvalidQuantity, status: http.StatusBadRequest, code: "INVALID_QUANTITY"},
		{name: "out of stock", body: map[string]any{"product_id": "tor-001", "quantity": 9}, addErr: cart.ErrInsufficientStock, status: http.StatusConflict, code: "INSUFFICIENT_STOCK"},
		{name: "unexpected", body: map[string]any{"product_id": "esp-001"}, addErr: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubService{addErr: tt.addErr})

			rec := ts.do(t, http.MethodPost, "/api/cart/items", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Code)
		})
	}
}

func TestCartItem_QuantityAboveLimit(t *testing.T) {
	svc := &stubService{}
	ts := newTestServer(t, svc)

	rec := ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "esp-001", "quantity": cart.MaxLineQuantity + 1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_QUANTITY", decode[errorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "esp-001", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	lineID := decode[cart.View](t, rec).Lines[0].ID

	rec = ts.do(t, http.MethodPatch, "/api/cart/items/"+lineID, map[string]any{"quantity": int64(1) << 40})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_QUANTITY", decode[errorResponse](t, rec).Code)

	assert.Equal(t, 2, svc.Cart(context.Background(), testSessionID).ItemCount())
}

func TestGetCart_SessionFromContext(t *testing.T) {
	svc := &stubService{}
	h := NewHandler(svc, zap.NewNop(), middleware.NewSessionMiddleware("test-secret"))

	_, err := svc.AddProduct(context.Background(), testSessionID, "esp-001", 2)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req = req.WithContext(middleware.WithSessionID(req.Context(), testSessionID))
	rec := httptest.NewRecorder()
	h.GetCart(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(300), decode[cart.View](t, rec).Subtotal)
}

func TestGetCart_WithoutSession(t *testing.T) {
	h := NewHandler(&stubService{}, zap.NewNop(), middleware.NewSessionMiddleware("test-secret"))

	rec := httptest.NewRecorder()
	h.GetCart(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "SESSION_REQUIRED", decode[errorResponse](t, rec).Code)
}

func TestRemoveCartItem_UnknownLineIsNoop(t *testing.T) {
	ts := newTestServer(t, &stubService{})

	rec := ts.do(t, http.MethodDelete, "/api/cart/items/missing", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestApplyDiscount_Failures(t *testing.T) {
	tests := []struct {
		name      string
		directory cart.Directory
		code      string
		status    int
		reason    string
	}{
		{name: "unknown code", code: "NOPE99", status: http.StatusUnprocessableEntity, reason: "CODE_NOT_FOUND"},
		{name: "malformed code", code: "!", status: http.StatusUnprocessableEntity, reason: "CODE_NOT_FOUND"},
		{name: "minimum not met", code: "BIENVENIDO15", status: http.StatusUnprocessableEntity, reason: "MINIMUM_NOT_MET"},
		{name: "service down", directory: unavailableDirectory{}, code: "SAVE10", status: http.StatusServiceUnavailable, reason: "VALIDATION_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubService{directory: tt.directory})
			ts.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "esp-001", "quantity": 1})

			rec := ts.do(t, http.MethodPost, "/api/cart/discount", map[string]string{"code": tt.code})
			assert.Equal(t, tt.status, rec.Code)
			resp := decode[errorResponse](t, rec)
			assert.Equal(t, tt.reason, resp.Code)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCheckout(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "created", status: http.StatusCreated},
		{name: "empty cart", err: service.ErrEmptyCart, status: http.StatusConflict, code: "EMPTY_CART"},
		{name: "invalid fulfillment", err: fmt.Errorf("%w: invalid phone", service.ErrInvalidFulfillment), status: http.StatusUnprocessableEntity, code: "INVALID_FULFILLMENT"},
		{name: "discount exhausted", err: repository.ErrDiscountExhausted, status: http.StatusConflict, code: "DISCOUNT_EXHAUSTED"},
		{name: "repository down", err: fmt.Errorf("%w: timeout", service.ErrOrderUnavailable), status: http.StatusServiceUnavailable, code: "ORDER_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{checkoutErr: tt.err}
			if tt.err == nil {
				svc.checkoutOrder = &model.Order{ID: "01JABCDEF", GrandTotal: 705}
			}
			ts := newTestServer(t, svc)

			rec := ts.do(t, http.MethodPost, "/api/checkout", model.Fulfillment{
				Method:       model.FulfillmentPickup,
				CustomerName: "Lucía",
				Phone:        "+54 11 5555-1234",
			})
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, testSessionID, svc.checkoutSID)

			if tt.code == "" {
				o := decode[model.Order](t, rec)
				assert.Equal(t, "01JABCDEF", o.ID)
				return
			}
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Code)
		})
	}
}

func TestGetOrder(t *testing.T) {
	svc := &stubService{order: &model.Order{ID: "01JABCDEF"}}
	ts := newTestServer(t, svc)

	rec := ts.do(t, http.MethodGet, "/api/orders/01JABCDEF", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "01JABCDEF", decode[model.Order](t, rec).ID)

	svc.orderErr = repository.ErrOrderNotFound
	rec = ts.do(t, http.MethodGet, "/api/orders/other", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetLoyalty(t *testing.T) {
	svc := &stubService{summary: &model.LoyaltySummary{Card: "79927398713", Points: 620, Level: "Plata", NextLevel: "Oro", PointsToLevel: 880}}
	ts := newTestServer(t, svc)

	rec := ts.do(t, http.MethodGet, "/api/loyalty/79927398713", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Plata", decode[model.LoyaltySummary](t, rec).Level)

	svc.summaryErr = service.ErrInvalidLoyaltyCard
	rec = ts.do(t, http.MethodGet, "/api/loyalty/123", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCateringQuote(t *testing.T) {
	svc := &stubService{estimate: catering.Estimate{Tier: "desayuno", Attendees: 20, Base: 70000, Total: 70000}}
	ts := newTestServer(t, svc)

	rec := ts.do(t, http.MethodPost, "/api/catering/quote", catering.Request{Tier: "desayuno", Attendees: 20})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(70000), decode[catering.Estimate](t, rec).Total)

	svc.estimateErr = catering.ErrAttendeesOutOfRange
	rec = ts.do(t, http.MethodPost, "/api/catering/quote", catering.Request{Tier: "desayuno", Attendees: 2})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ATTENDEES_OUT_OF_RANGE", decode[errorResponse](t, rec).Code)
}

func TestSessionIssuedForNewVisitor(t *testing.T) {
	ts := newTestServer(t, &stubService{})

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())
}
