package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jewelry_checkout/internal/model"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrOrderNotFound = errors.New("order not found")

// пул соединений с БД
type Storage struct {
	pool *pgxpool.Pool
}

// NewDB создает и возвращает новый пул соединений с базой данных,
// используя технику повторных попыток
func NewDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var lastErr error

	retryCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second

	ticker := backoff.NewTicker(b)
	defer ticker.Stop()

	slog.Info("Connecting to database with retries...")

	for range ticker.C {
		if retryCtx.Err() != nil {
			return nil, fmt.Errorf("retries stopped, context timeout exceeded: %w", lastErr)
		}

		attemptCtx, attemptCancel := context.WithTimeout(retryCtx, 5*time.Second)

		var err error
		pool, err = pgxpool.New(attemptCtx, dsn)
		attemptCancel()

		if err == nil {
			slog.Info("Successfully connected to the database.")
			return pool, nil
		}

		slog.Warn("Failed to connect to database, will retry.", "error", err)
		lastErr = err
	}

	return nil, fmt.Errorf("failed to connect to database after all attempts: %w", lastErr)
}

// Создание нового экземпляра Storage.
func NewStorage(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

// SaveOrder сохраняет завершенный заказ в базу данных в рамках одной транзакции
func (s *Storage) SaveOrder(ctx context.Context, order model.CompletedOrder) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	orderSQL := `INSERT INTO completed_orders (order_uid, jewelry_item_id, jewelry_title, buyer_email, payment_type, transaction_id, status,
				  item_total, shipping_cost, insurance_cost, shipping_insurance, tax, total, created_at)
				  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = tx.Exec(ctx, orderSQL,
		order.OrderUID, order.JewelryItemID, order.JewelryTitle, order.BuyerEmail, order.PaymentType, order.TransactionID, order.Status,
		order.Summary.ItemTotal, order.Summary.ShippingCost, order.Summary.InsuranceCost, order.Summary.ShippingInsurance, order.Summary.Tax, order.Summary.Total,
		order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	shippingSQL := `INSERT INTO shipping_addresses (order_uid, full_name, email, phone, address, city, state, zip_code, country)
					  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	sa := order.ShippingAddress
	_, err = tx.Exec(ctx, shippingSQL, order.OrderUID, sa.FullName, sa.Email, sa.Phone, sa.Address, sa.City, sa.State, sa.ZipCode, sa.Country)
	if err != nil {
		return fmt.Errorf("failed to insert shipping address: %w", err)
	}

	billingSQL := `INSERT INTO billing_addresses (order_uid, same_as_shipping, full_name, email, phone, address, city, state, zip_code, country)
					  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	ba := order.BillingAddress
	_, err = tx.Exec(ctx, billingSQL, order.OrderUID, ba.SameAsShipping, ba.FullName, ba.Email, ba.Phone, ba.Address, ba.City, ba.State, ba.ZipCode, ba.Country)
	if err != nil {
		return fmt.Errorf("failed to insert billing address: %w", err)
	}

	return tx.Commit(ctx)
}

// GetOrderByUID ищет один завершенный заказ по его UID вместе с адресами
func (s *Storage) GetOrderByUID(ctx context.Context, uid string) (model.CompletedOrder, error) {
	query := `
		SELECT
			o.order_uid, o.jewelry_item_id, o.jewelry_title, o.buyer_email, o.payment_type, o.transaction_id, o.status,
			o.item_total, o.shipping_cost, o.insurance_cost, o.shipping_insurance, o.tax, o.total, o.created_at,
			s.full_name, s.email, s.phone, s.address, s.city, s.state, s.zip_code, s.country,
			b.same_as_shipping, b.full_name, b.email, b.phone, b.address, b.city, b.state, b.zip_code, b.country
		FROM completed_orders AS o
		LEFT JOIN shipping_addresses AS s ON o.order_uid = s.order_uid
		LEFT JOIN billing_addresses AS b ON o.order_uid = b.order_uid
		WHERE o.order_uid = $1;`

	var order model.CompletedOrder
	err := s.pool.QueryRow(ctx, query, uid).Scan(
		&order.OrderUID, &order.JewelryItemID, &order.JewelryTitle, &order.BuyerEmail, &order.PaymentType, &order.TransactionID, &order.Status,
		&order.Summary.ItemTotal, &order.Summary.ShippingCost, &order.Summary.InsuranceCost, &order.Summary.ShippingInsurance, &order.Summary.Tax, &order.Summary.Total,
		&order.CreatedAt,
		&order.ShippingAddress.FullName, &order.ShippingAddress.Email, &order.ShippingAddress.Phone, &order.ShippingAddress.Address,
		&order.ShippingAddress.City, &order.ShippingAddress.State, &order.ShippingAddress.ZipCode, &order.ShippingAddress.Country,
		&order.BillingAddress.SameAsShipping, &order.BillingAddress.FullName, &order.BillingAddress.Email, &order.BillingAddress.Phone,
		&order.BillingAddress.Address, &order.BillingAddress.City, &order.BillingAddress.State, &order.BillingAddress.ZipCode, &order.BillingAddress.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CompletedOrder{}, ErrOrderNotFound
		}
		return model.CompletedOrder{}, fmt.Errorf("failed to query order from DB: %w", err)
	}

	return order, nil
}

// GetPaymentHistory возвращает историю платежей покупателя,
// свежие платежи первыми
func (s *Storage) GetPaymentHistory(ctx context.Context, buyerEmail string) ([]model.PaymentResult, error) {
	query := `
		SELECT order_uid, transaction_id, total, payment_type, status, jewelry_item_id, jewelry_title, created_at
		FROM completed_orders
		WHERE buyer_email = $1
		ORDER BY created_at DESC;`

	rows, err := s.pool.Query(ctx, query, buyerEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment history: %w", err)
	}
	defer rows.Close()

	var history []model.PaymentResult
	for rows.Next() {
		var orderUID string
		var p model.PaymentResult
		err := rows.Scan(&orderUID, &p.TransactionID, &p.Amount, &p.Method, &p.Status, &p.ItemID, &p.ItemTitle, &p.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("error scanning payment history row: %w", err)
		}
		p.Success = true
		history = append(history, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("error after iterating payment history rows: %w", rows.Err())
	}

	return history, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}
