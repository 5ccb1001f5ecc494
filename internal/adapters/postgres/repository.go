package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const orderColumns = `id, external_reference, gateway_order_id, payment_id, status, status_detail,
	currency, total_amount, payer, items, metadata, created_at, updated_at`

type OrderRepository struct {
	pool *pgxpool.Pool
	q    Executor
}

func NewOrderRepository(db *DB) ports.OrderRepository {
	return &OrderRepository{
		pool: db.Pool,
		q:    db.Pool,
	}
}

// FindByID retrieves an order by its system ID
func (r *OrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// FindByPaymentID retrieves the order a gateway payment belongs to
func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1`, paymentID)
}

// FindByPaymentIDForUpdate retrieves the order by payment ID and locks the row
func (r *OrderRepository) FindByPaymentIDForUpdate(ctx context.Context, paymentID string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_id = $1 FOR UPDATE`, paymentID)
}

// FindByExternalReference retrieves an order by the storefront's reference
func (r *OrderRepository) FindByExternalReference(ctx context.Context, ref string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_reference = $1`, ref)
}

// FindByExternalReferenceForUpdate retrieves an order by reference and locks the row
func (r *OrderRepository) FindByExternalReferenceForUpdate(ctx context.Context, ref string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE external_reference = $1 FOR UPDATE`, ref)
}

// FindByGatewayOrderID retrieves an order by the ID the gateway assigned in phase 1
func (r *OrderRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_order_id = $1`, gatewayOrderID)
}

// FindByGatewayOrderIDForUpdate retrieves an order by gateway order ID and locks the row
func (r *OrderRepository) FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway_order_id = $1 FOR UPDATE`, gatewayOrderID)
}

// FindStaleOrders returns orders with a known payment that are still open and
// have not been updated for olderThan, oldest first.
func (r *OrderRepository) FindStaleOrders(ctx context.Context, olderThan time.Duration, limit int) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
			FROM orders
			WHERE payment_id IS NOT NULL
				AND status IN ('pending', 'in_process')
				AND updated_at < $1
			ORDER BY updated_at ASC
			LIMIT $2
			`

	rows, err := r.q.Query(ctx, query, time.Now().Add(-olderThan), limit)
	if err != nil {
		return nil, fmt.Errorf("query stale orders: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Order, error) {
		return scanOrder(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect stale orders: %w", err)
	}
	return results, nil
}

// InsertPendingOrder saves a phase-1 order unless its external reference is taken
func (r *OrderRepository) InsertPendingOrder(ctx context.Context, o *domain.Order) (*domain.Order, bool, error) {
	args, err := orderArgs(o)
	if err != nil {
		return nil, false, err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
			VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (external_reference) DO NOTHING
			RETURNING ` + orderColumns

	inserted, err := scanOrder(r.q.QueryRow(ctx, query, args...))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, domain.ErrOrderNotFound) {
		return nil, false, fmt.Errorf("failed to insert order: %w", err)
	}

	existing, err := r.FindByExternalReference(ctx, o.ExternalReference)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// UpsertOrder inserts the order or overwrites the row with the same ID
func (r *OrderRepository) UpsertOrder(ctx context.Context, o *domain.Order) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}

	query := `INSERT INTO orders (` + orderColumns + `)
			VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				external_reference = EXCLUDED.external_reference,
				gateway_order_id   = EXCLUDED.gateway_order_id,
				payment_id         = EXCLUDED.payment_id,
				status             = EXCLUDED.status,
				status_detail      = EXCLUDED.status_detail,
				currency           = EXCLUDED.currency,
				total_amount       = EXCLUDED.total_amount,
				payer              = EXCLUDED.payer,
				items              = EXCLUDED.items,
				metadata           = EXCLUDED.metadata,
				updated_at         = EXCLUDED.updated_at
			`

	if _, err := r.q.Exec(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("upsert order %s: %w", o.ID, domain.ErrDuplicateOrder)
		}
		return fmt.Errorf("failed to upsert order: %w", err)
	}
	return nil
}

// LockPayment takes a transaction-scoped advisory lock keyed by payment ID.
// Outside WithTx the lock is released as soon as the statement ends.
func (r *OrderRepository) LockPayment(ctx context.Context, paymentID string) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "payment:"+paymentID); err != nil {
		return fmt.Errorf("lock payment %s: %w", paymentID, err)
	}
	return nil
}

// AppendHistory records one observed status
func (r *OrderRepository) AppendHistory(ctx context.Context, e domain.StatusHistoryEntry) error {
	query := `INSERT INTO order_status_history (id, order_id, payment_id, status, status_detail, observed_at)
			VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.q.Exec(ctx, query, e.ID, e.OrderID, e.PaymentID, e.Status, e.StatusDetail, e.ObservedAt); err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}
	return nil
}

// ListHistory returns the history of an order in insertion order
func (r *OrderRepository) ListHistory(ctx context.Context, orderID uuid.UUID) ([]domain.StatusHistoryEntry, error) {
	query := `SELECT id, order_id, payment_id, status, status_detail, observed_at
			FROM order_status_history
			WHERE order_id = $1
			ORDER BY seq ASC`

	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.StatusHistoryEntry, error) {
		var e domain.StatusHistoryEntry
		err := row.Scan(&e.ID, &e.OrderID, &e.PaymentID, &e.Status, &e.StatusDetail, &e.ObservedAt)
		return e, err
	})
}

// WithTx executes a function within a database transaction
func (r *OrderRepository) WithTx(ctx context.Context, fn func(ports.OrderRepository) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Defer rollback in case of panic or error (if commit isn't reached)
	defer tx.Rollback(ctx)

	repoWithTx := &OrderRepository{
		pool: r.pool,
		q:    tx,
	}

	if err := fn(repoWithTx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("commit: %w", domain.ErrDuplicateOrder)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *OrderRepository) findOne(ctx context.Context, query string, arg any) (*domain.Order, error) {
	return scanOrder(r.q.QueryRow(ctx, query, arg))
}

func orderArgs(o *domain.Order) ([]any, error) {
	payer, err := json.Marshal(o.Payer)
	if err != nil {
		return nil, fmt.Errorf("encode payer: %w", err)
	}
	items := o.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	var metadata any
	if len(o.Metadata) > 0 {
		metadata = []byte(o.Metadata)
	}

	return []any{
		o.ID,
		o.ExternalReference,
		o.GatewayOrderID,
		o.PaymentID,
		string(o.Status),
		o.StatusDetail,
		o.Currency,
		o.TotalAmount,
		payer,
		itemsJSON,
		metadata,
		o.CreatedAt,
		o.UpdatedAt,
	}, nil
}

// scanOrder scans a pgx.Row into a domain.Order. A missing row maps to
// domain.ErrOrderNotFound.
func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o           domain.Order
		externalRef *string
		status      string
		payer       []byte
		items       []byte
		metadata    []byte
	)
	err := row.Scan(
		&o.ID,
		&externalRef,
		&o.GatewayOrderID,
		&o.PaymentID,
		&status,
		&o.StatusDetail,
		&o.Currency,
		&o.TotalAmount,
		&payer,
		&items,
		&metadata,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.Status = domain.OrderStatus(status)
	if externalRef != nil {
		o.ExternalReference = *externalRef
	}
	if err := json.Unmarshal(payer, &o.Payer); err != nil {
		return nil, fmt.Errorf("decode payer: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	if len(metadata) > 0 {
		o.Metadata = metadata
	}
	return &o, nil
}
