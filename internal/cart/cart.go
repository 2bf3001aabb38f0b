// Package cart реализует корзину покупателя и расчёт стоимости заказа.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

var (
	// ErrInvalidQuantity возвращается, если количество позиции выходит за пределы 1..MaxLineQuantity.
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 999")
	// ErrInvalidProduct возвращается для товара без идентификатора или с ценой вне допустимых пределов.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrInsufficientStock возвращается, если количество в корзине превысит остаток товара.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrLineNotFound сигнализирует об обращении к несуществующей позиции в строгом режиме.
	ErrLineNotFound = errors.New("cart line not found")
)

// MaxLineQuantity ограничивает количество единиц в одной позиции.
const MaxLineQuantity = 999

// maxUnitPrice ограничивает цену единицы товара в сентаво, чтобы сумма корзины не переполнялась.
const maxUnitPrice int64 = 100_000_000

const (
	defaultValidationTimeout = 3 * time.Second
	persistTimeout           = 2 * time.Second
)

// Store описывает хранилище, переживающее перезагрузку страницы.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// Directory описывает справочник кодов скидок.
type Directory interface {
	Lookup(ctx context.Context, code string, subtotal int64) (model.DiscountCode, error)
}

// Options содержит зависимости и настройки корзины.
type Options struct {
	// Key задаёт ключ, под которым корзина сохраняется в Store.
	Key       string
	Store     Store
	Directory Directory
	Logger    *zap.Logger
	// Strict включает отладочные проверки: обращение к несуществующей позиции
	// возвращает ErrLineNotFound вместо молчаливого игнорирования.
	Strict            bool
	ValidationTimeout time.Duration
	NewLineID         func() string
}

// Cart хранит позиции и код скидки одной сессии покупателя.
type Cart struct {
	// checkout допускает не больше одного оформления заказа по корзине одновременно.
	checkout chan struct{}

	mu       sync.Mutex
	lines    []model.CartLine
	discount *model.DiscountCode
	// discountSeq увеличивается при каждом apply/remove; ответ справочника
	// применяется, только если за время ожидания номер не изменился.
	discountSeq uint64

	key               string
	store             Store
	directory         Directory
	logger            *zap.Logger
	strict            bool
	validationTimeout time.Duration
	newLineID         func() string
}

// New создаёт пустую корзину.
func New(opts Options) *Cart {
	c := &Cart{
		key:               opts.Key,
		store:             opts.Store,
		directory:         opts.Directory,
		logger:            opts.Logger,
		strict:            opts.Strict,
		validationTimeout: opts.ValidationTimeout,
		newLineID:         opts.NewLineID,
		checkout:          make(chan struct{}, 1),
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.validationTimeout <= 0 {
		c.validationTimeout = defaultValidationTimeout
	}
	if c.newLineID == nil {
		c.newLineID = uuid.NewString
	}
	return c
}

// Load создаёт корзину и восстанавливает её состояние из хранилища.
// Отсутствующий, повреждённый или устаревший снимок приводит к пустой корзине.
func Load(ctx context.Context, opts Options) *Cart {
	c := New(opts)
	if c.store == nil || c.key == "" {
		return c
	}

	blob, err := c.store.Load(ctx, c.key)
	if err != nil {
		c.logger.Debug("cart snapshot not loaded", zap.String("key", c.key), zap.Error(err))
		return c
	}

	snap, err := DecodeSnapshot(blob)
	if err != nil {
		c.logger.Warn("discarding stored cart", zap.String("key", c.key), zap.Error(err))
		return c
	}

	c.restore(snap)
	return c
}

// AddItem добавляет товар в корзину. Если позиция с этим товаром уже есть,
// её количество увеличивается на quantity.
func (c *Cart) AddItem(p model.Product, quantity int) (model.CartLine, error) {
	if quantity < 1 || quantity > MaxLineQuantity {
		return model.CartLine{}, ErrInvalidQuantity
	}
	if p.ID == "" || p.Price < 0 || p.Price > maxUnitPrice {
		return model.CartLine{}, ErrInvalidProduct
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexByProduct(p.ID)
	newQuantity := quantity
	if idx >= 0 {
		newQuantity += c.lines[idx].Quantity
	}
	if newQuantity > MaxLineQuantity {
		return model.CartLine{}, ErrInvalidQuantity
	}
	if p.Stock != nil && newQuantity > *p.Stock {
		return model.CartLine{}, ErrInsufficientStock
	}

	if idx >= 0 {
		c.lines[idx].Quantity = newQuantity
	} else {
		c.lines = append(c.lines, model.CartLine{
			ID:       c.newLineID(),
			Product:  cloneProduct(p),
			Quantity: quantity,
		})
		idx = len(c.lines) - 1
	}

	line := c.lines[idx]
	c.persistLocked()
	return line, nil
}

// UpdateQuantity устанавливает количество позиции. Значение 0 и меньше удаляет позицию.
func (c *Cart) UpdateQuantity(lineID string, quantity int) error {
	if quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexByLine(lineID)
	if idx < 0 {
		return c.missingLine("update quantity", lineID)
	}

	if quantity <= 0 {
		c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	} else {
		c.lines[idx].Quantity = quantity
	}

	c.persistLocked()
	return nil
}

// RemoveItem удаляет позицию из корзины.
func (c *Cart) RemoveItem(lineID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexByLine(lineID)
	if idx < 0 {
		return c.missingLine("remove item", lineID)
	}

	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	c.persistLocked()
	return nil
}

// Clear удаляет все позиции. Применённый код скидки сохраняется.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lines = nil
	c.persistLocked()
}

// BeginCheckout захватывает корзину для оформления заказа и возвращает функцию освобождения.
// Параллельное оформление той же корзины ждёт завершения текущего или отмены ctx.
func (c *Cart) BeginCheckout(ctx context.Context) (release func(), err error) {
	select {
	case c.checkout <- struct{}{}:
		return func() { <-c.checkout }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Settle убирает из корзины то, что вошло в оформленный заказ v: количество каждой
// заказанной позиции уменьшается на заказанное, код скидки снимается, если он не менялся.
// Позиции и код, добавленные во время оформления, остаются в корзине.
func (c *Cart) Settle(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ordered := range v.Lines {
		idx := c.indexByLine(ordered.ID)
		if idx < 0 {
			continue
		}
		if c.lines[idx].Quantity <= ordered.Quantity {
			c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
			continue
		}
		c.lines[idx].Quantity -= ordered.Quantity
	}

	if v.Code != nil {
		c.dropDiscountLocked(v.Code.Code)
	}
	c.persistLocked()
}

// DropDiscountCode снимает код скидки, только если применён именно code.
func (c *Cart) DropDiscountCode(code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dropDiscountLocked(code) {
		return false
	}
	c.persistLocked()
	return true
}

func (c *Cart) dropDiscountLocked(code string) bool {
	if c.discount == nil || c.discount.Code != code {
		return false
	}
	c.discount = nil
	return true
}

// Lines возвращает копию позиций корзины.
func (c *Cart) Lines() []model.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := make([]model.CartLine, len(c.lines))
	for i, l := range c.lines {
		res[i] = l
		res[i].Product = cloneProduct(l.Product)
	}
	return res
}

// ItemCount возвращает суммарное количество единиц товара в корзине.
func (c *Cart) ItemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, l := range c.lines {
		n += l.Quantity
	}
	return n
}

func (c *Cart) indexByProduct(productID string) int {
	for i, l := range c.lines {
		if l.Product.ID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexByLine(lineID string) int {
	for i, l := range c.lines {
		if l.ID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) missingLine(op, lineID string) error {
	c.logger.Debug("cart line not found", zap.String("op", op), zap.String("lineID", lineID))
	if c.strict {
		return ErrLineNotFound
	}
	return nil
}

// persistLocked сохраняет снимок корзины, а пустую корзину без кода удаляет из хранилища.
// Ошибка записи не откатывает состояние в памяти.
func (c *Cart) persistLocked() {
	if c.store == nil || c.key == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if len(c.lines) == 0 && c.discount == nil {
		if err := c.store.Delete(ctx, c.key); err != nil {
			c.logger.Warn("delete cart snapshot", zap.String("key", c.key), zap.Error(err))
		}
		return
	}

	blob, err := c.snapshotLocked().Encode()
	if err != nil {
		c.logger.Error("encode cart snapshot", zap.String("key", c.key), zap.Error(err))
		return
	}

	if err := c.store.Save(ctx, c.key, blob); err != nil {
		c.logger.Warn("persist cart", zap.String("key", c.key), zap.Error(err))
	}
}

func cloneProduct(p model.Product) model.Product {
	if p.Stock != nil {
		v := *p.Stock
		p.Stock = &v
	}
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	return p
}
