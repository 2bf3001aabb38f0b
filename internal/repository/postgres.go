// Package repository хранит заказы и правила скидок витрины: PostgreSQL для
// рабочего режима и память для локального запуска без БД.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/bakery-storefront/internal/discount"
	"github.com/mmeshcher/bakery-storefront/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrOrderExists возвращается при повторной записи заказа с тем же идентификатором.
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDiscountExhausted возвращается, если лимит использований кода исчерпан к моменту оформления.
	ErrDiscountExhausted = errors.New("discount code usage limit reached")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil || !isRetryable(err) || i == len(delays) {
			return err
		}

		timer := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}

	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	// pgx не экспортирует типизированные ошибки сети
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// GetDiscountRule возвращает правило кода скидки.
func (r *PostgresRepository) GetDiscountRule(ctx context.Context, code string) (*model.DiscountRule, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT code, description, discount_type, value, min_order_amount,
		        usage_limit, used_count, is_active, starts_at, expires_at
		 FROM discount_codes
		 WHERE code = $1`,
		code,
	)

	var (
		rule      model.DiscountRule
		dType     string
		startsAt  *time.Time
		expiresAt *time.Time
	)
	err := row.Scan(&rule.Code, &rule.Description, &dType, &rule.Value, &rule.MinOrderAmount,
		&rule.UsageLimit, &rule.UsedCount, &rule.IsActive, &startsAt, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrRuleNotFound
		}
		return nil, fmt.Errorf("get discount rule: %w", err)
	}

	rule.Type = model.DiscountType(dType)
	if startsAt != nil {
		rule.StartsAt = *startsAt
	}
	if expiresAt != nil {
		rule.ExpiresAt = *expiresAt
	}

	return &rule, nil
}

// CreateOrder сохраняет заказ с позициями и учитывает использование кода скидки в одной транзакции.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) error {
	return r.withRetry(ctx, func() error {
		return r.createOrder(ctx, o)
	})
}

func (r *PostgresRepository) createOrder(ctx context.Context, o model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		dCode  *string
		dType  *string
		dValue *int64
	)
	if o.Discount != nil {
		if err := useDiscount(ctx, tx, o.Discount.Code); err != nil {
			return err
		}
		code, typ, val := o.Discount.Code, string(o.Discount.Type), o.Discount.Value
		dCode, dType, dValue = &code, &typ, &val
	}

	f := o.Fulfillment
	_, err = tx.Exec(ctx,
		`INSERT INTO orders (id, session_id, method, customer_name, phone, address, notes, loyalty_card,
		                     discount_code, discount_type, discount_value,
		                     subtotal, discount_amount, total, delivery_fee, grand_total, points,
		                     loyalty_status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		o.ID, o.SessionID, string(f.Method), f.CustomerName, f.Phone, f.Address, f.Notes, f.LoyaltyCard,
		dCode, dType, dValue,
		o.Subtotal, o.DiscountAmount, o.Total, o.DeliveryFee, o.GrandTotal, o.Points,
		string(o.LoyaltyStatus), o.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrOrderExists, o.ID)
		}
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(
			`INSERT INTO order_lines (order_id, line_id, position, product_id, name, category, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, l.ID, i, l.Product.ID, l.Product.Name, string(l.Product.Category), l.Product.Price, l.Quantity,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert order lines: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// useDiscount увеличивает счётчик использований кода. Коды, которых нет в БД, не учитываются.
func useDiscount(ctx context.Context, tx pgx.Tx, code string) error {
	var limit, used int
	err := tx.QueryRow(ctx,
		`SELECT usage_limit, used_count FROM discount_codes WHERE code = $1 FOR UPDATE`,
		code,
	).Scan(&limit, &used)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("lock discount code: %w", err)
	}

	if limit > 0 && used >= limit {
		return ErrDiscountExhausted
	}

	if _, err := tx.Exec(ctx, `UPDATE discount_codes SET used_count = used_count + 1 WHERE code = $1`, code); err != nil {
		return fmt.Errorf("update discount usage: %w", err)
	}
	return nil
}

// GetOrder возвращает заказ вместе с позициями.
func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var (
		o      model.Order
		method string
		status string
		dCode  *string
		dType  *string
		dValue *int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, method, customer_name, phone, address, notes, loyalty_card,
		        discount_code, discount_type, discount_value,
		        subtotal, discount_amount, total, delivery_fee, grand_total, points,
		        loyalty_status, created_at
		 FROM orders
		 WHERE id = $1`,
		id,
	).Scan(&o.ID, &o.SessionID, &method, &o.Fulfillment.CustomerName, &o.Fulfillment.Phone,
		&o.Fulfillment.Address, &o.Fulfillment.Notes, &o.Fulfillment.LoyaltyCard,
		&dCode, &dType, &dValue,
		&o.Subtotal, &o.DiscountAmount, &o.Total, &o.DeliveryFee, &o.GrandTotal, &o.Points,
		&status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	o.Fulfillment.Method = model.FulfillmentMethod(method)
	o.LoyaltyStatus = model.LoyaltyStatus(status)
	if dCode != nil && dType != nil && dValue != nil {
		o.Discount = &model.DiscountCode{Code: *dCode, Type: model.DiscountType(*dType), Value: *dValue}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT line_id, product_id, name, category, unit_price, quantity
		 FROM order_lines
		 WHERE order_id = $1
		 ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l        model.CartLine
			category string
		)
		if err := rows.Scan(&l.ID, &l.Product.ID, &l.Product.Name, &category, &l.Product.Price, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		l.Product.Category = model.Category(category)
		o.Lines = append(o.Lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return &o, nil
}

// OrderForLoyalty описывает заказ, баллы по которому ещё не переданы в систему лояльности.
type OrderForLoyalty struct {
	ID     string
	Card   string
	Total  int64
	Points int64
}

// GetOrdersForLoyalty возвращает заказы, ожидающие передачи баллов.
func (r *PostgresRepository) GetOrdersForLoyalty(ctx context.Context, limit int) ([]OrderForLoyalty, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, loyalty_card, total, points
		 FROM orders
		 WHERE loyalty_status = $1
		 ORDER BY created_at
		 LIMIT $2`,
		string(model.LoyaltyStatusNew),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders for loyalty: %w", err)
	}
	defer rows.Close()

	var res []OrderForLoyalty
	for rows.Next() {
		var o OrderForLoyalty
		if err := rows.Scan(&o.ID, &o.Card, &o.Total, &o.Points); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateOrderLoyalty обновляет статус передачи баллов по заказу.
func (r *PostgresRepository) UpdateOrderLoyalty(ctx context.Context, id string, status model.LoyaltyStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET loyalty_status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return nil
}

// GetLoyaltyPoints возвращает сумму баллов, подтверждённых системой лояльности для карты.
func (r *PostgresRepository) GetLoyaltyPoints(ctx context.Context, card string) (int64, error) {
	var points int64
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0)
		 FROM orders
		 WHERE loyalty_card = $1 AND loyalty_status = $2`,
		card, string(model.LoyaltyStatusProcessed),
	).Scan(&points)
	if err != nil {
		return 0, fmt.Errorf("sum points: %w", err)
	}
	return points, nil
}
