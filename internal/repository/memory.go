package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

// MemoryRepository хранит заказы в памяти процесса. Используется, если DATABASE_URI не задан.
type MemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]model.Order
	order  []string
}

// NewMemoryRepository создаёт пустой репозиторий в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{orders: make(map[string]model.Order)}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// CreateOrder сохраняет копию заказа.
func (r *MemoryRepository) CreateOrder(ctx context.Context, o model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrOrderExists, o.ID)
	}
	o.Lines = append([]model.CartLine(nil), o.Lines...)
	r.orders[o.ID] = o
	r.order = append(r.order, o.ID)
	return nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *MemoryRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	o.Lines = append([]model.CartLine(nil), o.Lines...)
	return &o, nil
}

// GetOrdersForLoyalty возвращает заказы в статусе NEW в порядке оформления.
func (r *MemoryRepository) GetOrdersForLoyalty(ctx context.Context, limit int) ([]OrderForLoyalty, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []OrderForLoyalty
	for _, id := range r.order {
		if len(res) >= limit {
			break
		}
		o := r.orders[id]
		if o.LoyaltyStatus != model.LoyaltyStatusNew {
			continue
		}
		res = append(res, OrderForLoyalty{
			ID:     o.ID,
			Card:   o.Fulfillment.LoyaltyCard,
			Total:  o.Total,
			Points: o.Points,
		})
	}
	return res, nil
}

// UpdateOrderLoyalty обновляет статус передачи баллов по заказу.
func (r *MemoryRepository) UpdateOrderLoyalty(ctx context.Context, id string, status model.LoyaltyStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.LoyaltyStatus = status
	r.orders[id] = o
	return nil
}

// GetLoyaltyPoints возвращает сумму подтверждённых баллов по карте.
func (r *MemoryRepository) GetLoyaltyPoints(ctx context.Context, card string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var points int64
	for _, o := range r.orders {
		if o.Fulfillment.LoyaltyCard == card && o.LoyaltyStatus == model.LoyaltyStatusProcessed {
			points += o.Points
		}
	}
	return points, nil
}
