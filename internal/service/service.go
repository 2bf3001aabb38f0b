// Package service реализует бизнес-логику витрины пекарни.
package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/mmeshcher/bakery-storefront/internal/cart"
	"github.com/mmeshcher/bakery-storefront/internal/catalog"
	"github.com/mmeshcher/bakery-storefront/internal/catering"
	"github.com/mmeshcher/bakery-storefront/internal/loyalty"
	"github.com/mmeshcher/bakery-storefront/internal/model"
	"github.com/mmeshcher/bakery-storefront/internal/repository"
	"github.com/mmeshcher/bakery-storefront/internal/validation"
)

var (
	// ErrProductNotFound возвращается для товара, которого нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrInvalidCategory возвращается для неизвестной категории каталога.
	ErrInvalidCategory = errors.New("invalid category")
	// ErrEmptyCart возвращается при оформлении пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidFulfillment возвращается для неполных или некорректных данных получения заказа.
	ErrInvalidFulfillment = errors.New("invalid fulfillment")
	// ErrOrderUnavailable возвращается, если заказ не удалось сохранить.
	ErrOrderUnavailable = errors.New("order submission unavailable")
	// ErrInvalidLoyaltyCard возвращается для номера карты, не прошедшего проверку Луна.
	ErrInvalidLoyaltyCard = errors.New("invalid loyalty card")
)

const (
	loyaltyBatchSize = 100

	defaultCartCacheSize = 10000
	defaultCartCacheTTL  = 30 * time.Minute
)

// textPolicy убирает разметку из свободного текста, введённого покупателем.
var textPolicy = bluemonday.StrictPolicy()

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateOrder(ctx context.Context, o model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	GetOrdersForLoyalty(ctx context.Context, limit int) ([]repository.OrderForLoyalty, error)
	UpdateOrderLoyalty(ctx context.Context, id string, status model.LoyaltyStatus) error
	GetLoyaltyPoints(ctx context.Context, card string) (int64, error)
}

// LoyaltyClient описывает внешнюю систему лояльности.
type LoyaltyClient interface {
	RegisterAccrual(ctx context.Context, a loyalty.Accrual) (int, time.Duration, error)
}

// Config содержит параметры оформления заказов и корзин.
type Config struct {
	DeliveryFee       int64
	FreeDeliveryFrom  int64
	StrictCart        bool
	ValidationTimeout time.Duration
	// CartCacheSize и CartCacheTTL ограничивают корзины, которые держатся в памяти процесса.
	// Вытесненная корзина при следующем обращении читается из хранилища заново.
	CartCacheSize int
	CartCacheTTL  time.Duration
}

// Service содержит бизнес-логику витрины: каталог, корзины сессий, оформление заказов и баллы.
type Service struct {
	repo          Repository
	catalog       *catalog.Catalog
	store         cart.Store
	directory     cart.Directory
	loyaltyClient LoyaltyClient
	logger        *zap.Logger
	cfg           Config
	now           func() time.Time

	mu    sync.Mutex
	carts *expirable.LRU[string, *cart.Cart]
}

// Deps содержит зависимости сервиса.
type Deps struct {
	Repo          Repository
	Catalog       *catalog.Catalog
	Store         cart.Store
	Directory     cart.Directory
	LoyaltyClient LoyaltyClient
	Logger        *zap.Logger
}

// NewService создаёт новый сервис.
func NewService(deps Deps, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CartCacheSize <= 0 {
		cfg.CartCacheSize = defaultCartCacheSize
	}
	if cfg.CartCacheTTL <= 0 {
		cfg.CartCacheTTL = defaultCartCacheTTL
	}

	onEvict := func(sessionID string, _ *cart.Cart) {
		logger.Debug("cart evicted from memory", zap.String("session", sessionID))
	}

	return &Service{
		repo:          deps.Repo,
		catalog:       deps.Catalog,
		store:         deps.Store,
		directory:     deps.Directory,
		loyaltyClient: deps.LoyaltyClient,
		logger:        logger,
		cfg:           cfg,
		now:           time.Now,
		carts:         expirable.NewLRU[string, *cart.Cart](cfg.CartCacheSize, onEvict, cfg.CartCacheTTL),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Products возвращает товары каталога, при непустой category только этой категории.
func (s *Service) Products(category string) ([]model.Product, error) {
	if category == "" {
		return s.catalog.List(), nil
	}
	c := model.Category(category)
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	return s.catalog.ByCategory(c), nil
}

// Cart возвращает корзину сессии. Корзина, которой нет в памяти, восстанавливается
// из хранилища; каждое обращение продлевает её время жизни в памяти.
func (s *Service) Cart(ctx context.Context, sessionID string) *cart.Cart {
	if c, ok := s.cachedCart(sessionID); ok {
		return c
	}

	loaded := cart.Load(ctx, cart.Options{
		Key:               sessionID,
		Store:             s.store,
		Directory:         s.directory,
		Logger:            s.logger.With(zap.String("session", sessionID)),
		Strict:            s.cfg.StrictCart,
		ValidationTimeout: s.cfg.ValidationTimeout,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts.Get(sessionID); ok {
		s.carts.Add(sessionID, c)
		return c
	}
	s.carts.Add(sessionID, loaded)
	return loaded
}

func (s *Service) cachedCart(sessionID string) (*cart.Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts.Get(sessionID)
	if ok {
		// Add продлевает TTL, Get только переставляет запись в начало
		s.carts.Add(sessionID, c)
	}
	return c, ok
}

// AddProduct добавляет товар каталога в корзину сессии.
func (s *Service) AddProduct(ctx context.Context, sessionID, productID string, quantity int) (model.CartLine, error) {
	p, ok := s.catalog.Get(productID)
	if !ok {
		return model.CartLine{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return s.Cart(ctx, sessionID).AddItem(p, quantity)
}

// Order возвращает заказ, оформленный в этой сессии.
func (s *Service) Order(ctx context.Context, sessionID, orderID string) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.SessionID != sessionID {
		return nil, repository.ErrOrderNotFound
	}
	return o, nil
}

// Checkout оформляет заказ по содержимому корзины сессии. Оформления одной корзины
// выполняются по очереди. После успешной записи из корзины убираются заказанные позиции
// и использованный код скидки; изменения, сделанные во время записи, сохраняются.
func (s *Service) Checkout(ctx context.Context, sessionID string, f model.Fulfillment) (*model.Order, error) {
	f = normalizeFulfillment(f)
	if err := validateFulfillment(f); err != nil {
		return nil, err
	}

	c := s.Cart(ctx, sessionID)
	release, err := c.BeginCheckout(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	view := c.View()
	if len(view.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	fee := s.deliveryFee(f.Method, view.Total)
	points := view.PointsToEarn

	status := model.LoyaltyStatusSkipped
	if f.LoyaltyCard != "" && points > 0 {
		status = model.LoyaltyStatusNew
	}

	o := model.Order{
		ID:             ulid.Make().String(),
		SessionID:      sessionID,
		Lines:          view.Lines,
		Discount:       view.Code,
		Subtotal:       view.Subtotal,
		DiscountAmount: view.Totals.Discount,
		Total:          view.Total,
		DeliveryFee:    fee,
		GrandTotal:     view.Total + fee,
		Points:         points,
		Fulfillment:    f,
		LoyaltyStatus:  status,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, repository.ErrDiscountExhausted) {
			if view.Code != nil {
				s.logger.Info("discount exhausted at checkout", zap.String("session", sessionID), zap.String("code", view.Code.Code))
				c.DropDiscountCode(view.Code.Code)
			}
			return nil, err
		}
		s.logger.Error("create order failed", zap.String("session", sessionID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrderUnavailable, err)
	}

	c.Settle(view)

	s.logger.Info("order created",
		zap.String("order", o.ID),
		zap.Int64("grand_total", o.GrandTotal),
		zap.String("method", string(f.Method)),
	)
	return &o, nil
}

func (s *Service) deliveryFee(method model.FulfillmentMethod, total int64) int64 {
	if method != model.FulfillmentDelivery {
		return 0
	}
	if s.cfg.FreeDeliveryFrom > 0 && total >= s.cfg.FreeDeliveryFrom {
		return 0
	}
	return s.cfg.DeliveryFee
}

func normalizeFulfillment(f model.Fulfillment) model.Fulfillment {
	f.CustomerName = plainText(f.CustomerName)
	f.Phone = strings.TrimSpace(f.Phone)
	f.Address = plainText(f.Address)
	f.Notes = plainText(f.Notes)
	f.LoyaltyCard = strings.ReplaceAll(strings.TrimSpace(f.LoyaltyCard), " ", "")
	return f
}

func plainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(s)))
}

func validateFulfillment(f model.Fulfillment) error {
	switch {
	case f.Method != model.FulfillmentPickup && f.Method != model.FulfillmentDelivery:
		return fmt.Errorf("%w: unknown method %q", ErrInvalidFulfillment, f.Method)
	case f.CustomerName == "":
		return fmt.Errorf("%w: customer name is required", ErrInvalidFulfillment)
	case !validation.IsValidPhone(f.Phone):
		return fmt.Errorf("%w: invalid phone", ErrInvalidFulfillment)
	case f.Method == model.FulfillmentDelivery && f.Address == "":
		return fmt.Errorf("%w: address is required for delivery", ErrInvalidFulfillment)
	case f.LoyaltyCard != "" && !validation.IsValidLoyaltyCard(f.LoyaltyCard):
		return fmt.Errorf("%w: invalid loyalty card", ErrInvalidFulfillment)
	}
	return nil
}

// LoyaltySummary возвращает баланс баллов карты и прогресс до следующего уровня.
func (s *Service) LoyaltySummary(ctx context.Context, card string) (*model.LoyaltySummary, error) {
	card = strings.ReplaceAll(strings.TrimSpace(card), " ", "")
	if !validation.IsValidLoyaltyCard(card) {
		return nil, ErrInvalidLoyaltyCard
	}

	points, err := s.repo.GetLoyaltyPoints(ctx, card)
	if err != nil {
		return nil, err
	}

	current, next, missing := loyalty.Progress(points)
	summary := &model.LoyaltySummary{
		Card:   card,
		Points: points,
		Level:  current.Name,
	}
	if next != nil {
		summary.NextLevel = next.Name
		summary.PointsToLevel = missing
	}
	return summary, nil
}

// CateringQuote рассчитывает предварительную стоимость кейтеринга.
func (s *Service) CateringQuote(req catering.Request) (catering.Estimate, error) {
	return catering.Quote(req)
}

// StartLoyaltySync запускает фоновую передачу баллов по оформленным заказам в систему лояльности.
func (s *Service) StartLoyaltySync(ctx context.Context) {
	if s.loyaltyClient == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processLoyaltyBatch(ctx)
			}
		}
	}()
}

func (s *Service) processLoyaltyBatch(ctx context.Context) {
	orders, err := s.repo.GetOrdersForLoyalty(ctx, loyaltyBatchSize)
	if err != nil {
		s.logger.Warn("load orders for loyalty", zap.Error(err))
		return
	}

	for _, o := range orders {
		statusCode, retryAfter, err := s.loyaltyClient.RegisterAccrual(ctx, loyalty.Accrual{
			Order:  o.ID,
			Card:   o.Card,
			Amount: o.Total,
			Points: o.Points,
		})

		if statusCode == http.StatusTooManyRequests {
			if retryAfter > 0 {
				timer := time.NewTimer(retryAfter)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			continue
		}

		if err != nil {
			s.logger.Debug("loyalty accrual failed", zap.String("order", o.ID), zap.Error(err))
			continue
		}

		var status model.LoyaltyStatus
		switch statusCode {
		case http.StatusOK, http.StatusAccepted, http.StatusConflict:
			status = model.LoyaltyStatusProcessed
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			status = model.LoyaltyStatusInvalid
		default:
			continue
		}

		if err := s.repo.UpdateOrderLoyalty(ctx, o.ID, status); err != nil {
			s.logger.Warn("update order loyalty", zap.String("order", o.ID), zap.Error(err))
		}
	}
}
