// Package handler содержит HTTP-обработчики API витрины пекарни.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/bakery-storefront/internal/cart"
	"github.com/mmeshcher/bakery-storefront/internal/catering"
	"github.com/mmeshcher/bakery-storefront/internal/middleware"
	"github.com/mmeshcher/bakery-storefront/internal/model"
	"github.com/mmeshcher/bakery-storefront/internal/repository"
	"github.com/mmeshcher/bakery-storefront/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Products(category string) ([]model.Product, error)
	Cart(ctx context.Context, sessionID string) *cart.Cart
	AddProduct(ctx context.Context, sessionID, productID string, quantity int) (model.CartLine, error)
	Checkout(ctx context.Context, sessionID string, f model.Fulfillment) (*model.Order, error)
	Order(ctx context.Context, sessionID, orderID string) (*model.Order, error)
	LoyaltySummary(ctx context.Context, card string) (*model.LoyaltySummary, error)
	CateringQuote(req catering.Request) (catering.Estimate, error)
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service  Service
	logger   *zap.Logger
	sessions *middleware.SessionMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, sessions *middleware.SessionMiddleware) *Handler {
	return &Handler{
		service:  s,
		logger:   logger,
		sessions: sessions,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	writeError(w, http.StatusInternalServerError, "INTERNAL", http.StatusText(http.StatusInternalServerError))
}

func (h *Handler) sessionCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "session cookie is required")
		return nil, false
	}
	return h.service.Cart(r.Context(), sessionID), true
}

// ListProducts возвращает каталог, при указании ?category= только одну категорию.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.Products(r.URL.Query().Get("category"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCategory) {
			writeError(w, http.StatusBadRequest, "INVALID_CATEGORY", err.Error())
			return
		}
		h.internalError(w, "list products error", err)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetCart возвращает позиции и суммы корзины текущей сессии.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// AddCartItem добавляет товар каталога в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "session cookie is required")
		return
	}

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "product_id is required")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	if _, err := h.service.AddProduct(r.Context(), sessionID, req.ProductID, quantity); err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			writeError(w, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
		case errors.Is(err, cart.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, "INVALID_QUANTITY", err.Error())
		case errors.Is(err, cart.ErrInsufficientStock):
			writeError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error())
		default:
			h.internalError(w, "add cart item error", err, zap.String("product", req.ProductID))
		}
		return
	}

	writeJSON(w, http.StatusOK, h.service.Cart(r.Context(), sessionID).View())
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

// UpdateCartItem меняет количество позиции; 0 удаляет её.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "quantity is required")
		return
	}

	if err := c.UpdateQuantity(chi.URLParam(r, "lineID"), *req.Quantity); err != nil {
		h.lineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c.View())
}

// RemoveCartItem удаляет позицию из корзины.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	if err := c.RemoveItem(chi.URLParam(r, "lineID")); err != nil {
		h.lineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c.View())
}

func (h *Handler) lineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cart.ErrLineNotFound):
		writeError(w, http.StatusNotFound, "LINE_NOT_FOUND", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "INVALID_QUANTITY", err.Error())
	default:
		h.internalError(w, "cart line error", err)
	}
}

// ClearCart удаляет все позиции. Код скидки остаётся.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	c.Clear()
	writeJSON(w, http.StatusOK, c.View())
}

type discountRequest struct {
	Code string `json:"code"`
}

type discountResponse struct {
	Result cart.DiscountResult `json:"result"`
	Cart   cart.View           `json:"cart"`
}

// ApplyDiscount применяет код скидки к корзине.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	var req discountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "code is required")
		return
	}

	res := c.ApplyDiscountCode(r.Context(), req.Code)
	if !res.Applied {
		writeError(w, discountStatus(res.Reason), string(res.Reason), res.Message)
		return
	}

	writeJSON(w, http.StatusOK, discountResponse{Result: res, Cart: c.View()})
}

func discountStatus(reason cart.Reason) int {
	switch reason {
	case cart.ReasonValidationUnavailable:
		return http.StatusServiceUnavailable
	case cart.ReasonSuperseded:
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

// RemoveDiscount снимает код скидки.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	c, ok := h.sessionCart(w, r)
	if !ok {
		return
	}

	c.RemoveDiscountCode()
	writeJSON(w, http.StatusOK, c.View())
}

// Checkout оформляет заказ по корзине текущей сессии.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "session cookie is required")
		return
	}

	var f model.Fulfillment
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed fulfillment")
		return
	}

	order, err := h.service.Checkout(r.Context(), sessionID, f)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyCart):
			writeError(w, http.StatusConflict, "EMPTY_CART", err.Error())
		case errors.Is(err, service.ErrInvalidFulfillment):
			writeError(w, http.StatusUnprocessableEntity, "INVALID_FULFILLMENT", err.Error())
		case errors.Is(err, repository.ErrDiscountExhausted):
			writeError(w, http.StatusConflict, "DISCOUNT_EXHAUSTED", "discount code is no longer available and was removed")
		case errors.Is(err, service.ErrOrderUnavailable):
			writeError(w, http.StatusServiceUnavailable, "ORDER_UNAVAILABLE", "order could not be submitted, try again")
		default:
			h.internalError(w, "checkout error", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// GetOrder возвращает заказ, оформленный в текущей сессии.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "SESSION_REQUIRED", "session cookie is required")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	order, err := h.service.Order(r.Context(), sessionID, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "ORDER_NOT_FOUND", err.Error())
			return
		}
		h.internalError(w, "get order error", err, zap.String("order", orderID))
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// GetLoyalty возвращает баланс баллов и уровень по номеру карты.
func (h *Handler) GetLoyalty(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.LoyaltySummary(r.Context(), chi.URLParam(r, "card"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidLoyaltyCard) {
			writeError(w, http.StatusUnprocessableEntity, "INVALID_LOYALTY_CARD", err.Error())
			return
		}
		h.internalError(w, "loyalty summary error", err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// CateringQuote рассчитывает предварительную стоимость кейтеринга.
func (h *Handler) CateringQuote(w http.ResponseWriter, r *http.Request) {
	var req catering.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed catering request")
		return
	}

	est, err := h.service.CateringQuote(req)
	if err != nil {
		switch {
		case errors.Is(err, catering.ErrUnknownTier):
			writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_TIER", err.Error())
		case errors.Is(err, catering.ErrUnknownAddon):
			writeError(w, http.StatusUnprocessableEntity, "UNKNOWN_ADDON", err.Error())
		case errors.Is(err, catering.ErrAttendeesOutOfRange):
			writeError(w, http.StatusUnprocessableEntity, "ATTENDEES_OUT_OF_RANGE", err.Error())
		default:
			h.internalError(w, "catering quote error", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, est)
}
