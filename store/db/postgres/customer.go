package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/recordabot/recorda/store"
)

func (d *DB) CreateCustomer(ctx context.Context, create *store.Customer) (*store.Customer, error) {
	fields := []string{"uid", "phone", "name"}
	placeholderValues := []any{create.UID, create.Phone, create.Name}

	if create.CreatedTs != 0 {
		fields = append(fields, "created_ts")
		placeholderValues = append(placeholderValues, create.CreatedTs)
	}

	stmt := `INSERT INTO customer (` + strings.Join(fields, ", ") + `)
		VALUES (` + placeholders(len(placeholderValues)) + `)
		RETURNING id, created_ts`

	if err := d.db.QueryRowContext(ctx, stmt, placeholderValues...).Scan(
		&create.ID,
		&create.CreatedTs,
	); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	return create, nil
}

func (d *DB) ListCustomers(ctx context.Context, find *store.FindCustomer) ([]*store.Customer, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "customer.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "customer.uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Phone; v != nil {
		where, args = append(where, "customer.phone = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := `
		SELECT id, uid, created_ts, phone, name
		FROM customer
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY customer.id ASC`

	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	list := make([]*store.Customer, 0)
	for rows.Next() {
		var customer store.Customer
		if err := rows.Scan(
			&customer.ID,
			&customer.UID,
			&customer.CreatedTs,
			&customer.Phone,
			&customer.Name,
		); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		list = append(list, &customer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}

	return list, nil
}

func (d *DB) DeleteCustomer(ctx context.Context, delete *store.DeleteCustomer) error {
	stmt := `DELETE FROM customer WHERE id = ` + placeholder(1)
	result, err := d.db.ExecContext(ctx, stmt, delete.ID)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("customer not found")
	}

	return nil
}
