package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/basit-devBE/commerce-core/internal/domain"
)

type inventoryRepository struct {
	db *sql.DB
}

// NewInventoryRepository создаёт PostgreSQL-реализацию InventoryRepository.
func NewInventoryRepository(store *Store) domain.InventoryRepository {
	return &inventoryRepository{db: store.DB()}
}

func (r *inventoryRepository) Get(productID string) (domain.InventoryRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var record domain.InventoryRecord
	err := r.db.QueryRowContext(ctx, `
		SELECT product_id, quantity, location, created_at, updated_at
		FROM inventory
		WHERE product_id = $1
	`, productID).Scan(
		&record.ProductID, &record.Quantity, &record.Location,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.InventoryRecord{}, domain.ErrInventoryNotFound
		}
		return domain.InventoryRecord{}, fmt.Errorf("select inventory: %w", err)
	}

	return record, nil
}

func (r *inventoryRepository) Put(record domain.InventoryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO inventory (product_id, quantity, location, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`, record.ProductID, record.Quantity, record.Location, record.CreatedAt, now)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInventoryExists
		}
		return fmt.Errorf("insert inventory: %w", err)
	}

	return nil
}

// Reserve уменьшает остаток условным UPDATE: строка меняется только когда
// остатка хватает, поэтому конкурентные резервы не уводят количество ниже нуля.
func (r *inventoryRepository) Reserve(productID string, qty int32) (int32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var remaining int32
	err := r.db.QueryRowContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - $2,
		    updated_at = NOW()
		WHERE product_id = $1
		  AND quantity >= $2
		RETURNING quantity
	`, productID, qty).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("reserve inventory: %w", err)
	}

	// UPDATE никого не задел: либо записи нет, либо остатка не хватает.
	var current int32
	err = r.db.QueryRowContext(ctx, `
		SELECT quantity FROM inventory WHERE product_id = $1
	`, productID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrInventoryNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("check inventory: %w", err)
	}

	return current, fmt.Errorf("%w: product %s has %d, want %d",
		domain.ErrInsufficientStock, productID, current, qty)
}

// Release возвращает qty на остаток один раз на пару (orderID, productID):
// запись в stock_releases с ON CONFLICT DO NOTHING служит ключом
// идемпотентности, инкремент выполняется в той же транзакции.
func (r *inventoryRepository) Release(orderID, productID string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM inventory WHERE product_id = $1)
	`, productID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check inventory: %w", err)
	}
	if !exists {
		err = domain.ErrInventoryNotFound
		return err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO stock_releases (order_id, product_id, qty, created_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (order_id, product_id) DO NOTHING
	`, orderID, productID, qty)
	if err != nil {
		return fmt.Errorf("record stock release: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for stock release: %w", err)
	}
	if inserted == 0 {
		// Возврат по этой паре уже проведён, повтор — no-op.
		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("commit noop release: %w", err)
		}
		return nil
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity + $2,
		    updated_at = NOW()
		WHERE product_id = $1
	`, productID, qty); err != nil {
		return fmt.Errorf("restore inventory: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit release: %w", err)
	}

	return nil
}

// RevokeRelease отменяет проведённый Release в одной транзакции: запись
// возврата удаляется, количество снимается обратно условным декрементом.
// Без записи возврата — no-op; при нехватке остатка транзакция
// откатывается и возвращается ErrInsufficientStock.
func (r *inventoryRepository) RevokeRelease(orderID, productID string, qty int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM stock_releases
		WHERE order_id = $1 AND product_id = $2
	`, orderID, productID)
	if err != nil {
		return fmt.Errorf("delete stock release: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for revoked release: %w", err)
	}
	if deleted == 0 {
		// Возврата по этой паре не было, снимать обратно нечего.
		err = tx.Commit()
		if err != nil {
			return fmt.Errorf("commit noop revoke: %w", err)
		}
		return nil
	}

	res, err = tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - $2,
		    updated_at = NOW()
		WHERE product_id = $1
		  AND quantity >= $2
	`, productID, qty)
	if err != nil {
		return fmt.Errorf("re-reserve inventory: %w", err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for re-reserve: %w", err)
	}
	if updated == 0 {
		err = domain.ErrInsufficientStock
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit revoke release: %w", err)
	}

	return nil
}

var _ domain.InventoryRepository = (*inventoryRepository)(nil)
