package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/ariefcatur/go-retail-orders/internal/users"
	"github.com/jackc/pgx/v5"
)

type Repo struct{ DB postgres.DB }

// OrderQuery selects a user's orders. Basket picks the basket instead of
// placed orders; OrderID narrows to one order when non-zero.
type OrderQuery struct {
	UserID  int64
	OrderID int64
	Basket  bool
}

const contactColumns = `ct.id, COALESCE(ct.country, ''), COALESCE(ct.region, ''), COALESCE(ct.city, ''),
	COALESCE(ct.street, ''), COALESCE(ct.house, ''), COALESCE(ct.structure, ''), COALESCE(ct.building, ''),
	COALESCE(ct.apartment, ''), COALESCE(ct.phone, ''), COALESCE(ct.postal_code, '')`

const infoColumns = `pi.id, pi.model, pi.cat_id, p.name, c.name, pi.retailer_id, pi.price, pi.price_rrc`

const infoJoins = `
	JOIN product_infos pi ON pi.id = oi.product_info_id
	JOIN products p       ON p.id = pi.product_id
	JOIN categories c     ON c.id = p.category_id`

type nullableContact struct {
	id *int64
	c  users.Contact
}

func (n *nullableContact) dest() []any {
	return []any{&n.id, &n.c.Country, &n.c.Region, &n.c.City, &n.c.Street, &n.c.House,
		&n.c.Structure, &n.c.Building, &n.c.Apartment, &n.c.Phone, &n.c.PostalCode}
}

func (n *nullableContact) value() *users.Contact {
	if n.id == nil {
		return nil
	}
	c := n.c
	c.ID = *n.id
	return &c
}

func infoDest(pi *ItemProductInfo) []any {
	return []any{&pi.ID, &pi.Model, &pi.CatID, &pi.Product, &pi.Category, &pi.RetailerID, &pi.Price, &pi.PriceRRC}
}

// GetOrCreateBasket returns the user's basket id. The partial unique index
// orders_one_basket_per_user makes concurrent callers converge on one row.
func (r *Repo) GetOrCreateBasket(ctx context.Context, userID int64) (int64, error) {
	for attempt := 0; attempt < 3; attempt++ {
		var id int64
		err := r.DB.QueryRow(ctx, `
			INSERT INTO orders(user_id, state) VALUES ($1, 'basket')
			ON CONFLICT (user_id) WHERE state = 'basket' DO NOTHING
			RETURNING id`, userID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, err
		}
		id, found, err := r.FindBasket(ctx, userID)
		if err != nil {
			return 0, err
		}
		if found {
			return id, nil
		}
		// the basket was checked out between the two statements
	}
	return 0, fmt.Errorf("get or create basket for user %d: too much contention", userID)
}

func (r *Repo) FindBasket(ctx context.Context, userID int64) (int64, bool, error) {
	var id int64
	err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE user_id=$1 AND state='basket'`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (r *Repo) ProductAvailability(ctx context.Context, productInfoID int64) (ProductAvailability, error) {
	var a ProductAvailability
	err := r.DB.QueryRow(ctx, `
		SELECT r.accepting_orders FROM product_infos pi
		JOIN retailers r ON r.id = pi.retailer_id
		WHERE pi.id=$1`, productInfoID).Scan(&a.AcceptingOrders)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return a, err
	}
	a.Exists = true
	return a, nil
}

// UpsertItem inserts the line or overwrites its quantity. created is false
// when the line already existed.
func (r *Repo) UpsertItem(ctx context.Context, orderID, productInfoID, qty int64) (created bool, err error) {
	err = r.DB.QueryRow(ctx, `
		INSERT INTO order_items(order_id, product_info_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (order_id, product_info_id) DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING (xmax = 0)`, orderID, productInfoID, qty).Scan(&created)
	if postgres.IsForeignKeyViolation(err) {
		return false, apperr.Validation("product_info %d does not exist", productInfoID)
	}
	return created, err
}

func (r *Repo) UpdateItemQuantity(ctx context.Context, orderID, productInfoID, qty int64) (int64, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE order_items SET quantity=$3 WHERE order_id=$1 AND product_info_id=$2`,
		orderID, productInfoID, qty)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// DeleteItems removes the lines among ids that belong to the order and
// returns the ids actually removed.
func (r *Repo) DeleteItems(ctx context.Context, orderID int64, ids []int64) ([]int64, error) {
	rows, err := r.DB.Query(ctx, `
		DELETE FROM order_items WHERE order_id=$1 AND id = ANY($2) RETURNING id`, orderID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deleted := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

func (r *Repo) Orders(ctx context.Context, q OrderQuery) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT o.id, o.user_id, o.state, o.created_at, `+contactColumns+`
		FROM orders o
		LEFT JOIN contacts ct ON ct.id = o.contact_id
		WHERE o.user_id=$1
		  AND ($2::bigint = 0 OR o.id = $2)
		  AND ((o.state = 'basket') = $3)
		ORDER BY o.created_at DESC, o.id DESC`, q.UserID, q.OrderID, q.Basket)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		var o Order
		var nc nullableContact
		dest := append([]any{&o.ID, &o.UserID, &o.Status, &o.CreatedAt}, nc.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		o.Contact = nc.value()
		o.Items = []OrderItem{}
		index[o.ID] = len(out)
		ids = append(ids, o.ID)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	itemRows, err := r.DB.Query(ctx, `
		SELECT oi.order_id, oi.id, oi.quantity, `+infoColumns+`
		FROM order_items oi`+infoJoins+`
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.id`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var orderID int64
		var it OrderItem
		dest := append([]any{&orderID, &it.ID, &it.Quantity}, infoDest(&it.ProductInfo)...)
		if err := itemRows.Scan(dest...); err != nil {
			return nil, err
		}
		o := &out[index[orderID]]
		o.Items = append(o.Items, it)
	}
	return out, itemRows.Err()
}

// Checkout moves the user's basket to new and attaches the contact. The
// order row is locked for the duration of the checks.
func (r *Repo) Checkout(ctx context.Context, userID, orderID, contactID int64) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var owned bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM contacts WHERE id=$1 AND user_id=$2)`, contactID, userID).Scan(&owned); err != nil {
		return err
	}
	if !owned {
		return apperr.NotFound("contact %d is missing or does not belong to the user", contactID)
	}

	var state Status
	err = tx.QueryRow(ctx, `SELECT state FROM orders WHERE id=$1 AND user_id=$2 FOR UPDATE`, orderID, userID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("order %d is missing or does not belong to the user", orderID)
	}
	if err != nil {
		return err
	}
	if !CanTransition(state, StatusNew) {
		return apperr.InvalidState("order %d is %s and cannot be checked out", orderID, state)
	}

	var items int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM order_items WHERE order_id=$1`, orderID).Scan(&items); err != nil {
		return err
	}
	if items == 0 {
		return apperr.Validation("order %d has no items", orderID)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET state='new', contact_id=$2, updated_at=now() WHERE id=$1`, orderID, contactID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// PartnerOrderItems lists order lines pointing at offers of the retailer
// owned by retailerUserID, restricted to orders in one of states.
func (r *Repo) PartnerOrderItems(ctx context.Context, retailerUserID int64, f StateFilter) ([]PartnerOrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.quantity, `+infoColumns+`, o.id, o.state, u.email, `+contactColumns+`
		FROM order_items oi`+infoJoins+`
		JOIN retailers rt     ON rt.id = pi.retailer_id
		JOIN orders o         ON o.id = oi.order_id
		JOIN users u          ON u.id = o.user_id
		LEFT JOIN contacts ct ON ct.id = o.contact_id
		WHERE rt.user_id=$1 AND o.state = ANY($2)
		ORDER BY o.id, oi.id`, retailerUserID, f.strings())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PartnerOrderItem{}
	for rows.Next() {
		var it PartnerOrderItem
		var nc nullableContact
		dest := append([]any{&it.ID, &it.Quantity}, infoDest(&it.ProductInfo)...)
		dest = append(dest, &it.Order.ID, &it.Order.Status, &it.ClientEmail)
		dest = append(dest, nc.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		it.Order.Contact = nc.value()
		out = append(out, it)
	}
	return out, rows.Err()
}

// TransitionOrder moves an order containing the retailer's offers to state to.
func (r *Repo) TransitionOrder(ctx context.Context, retailerUserID, orderID int64, to Status) (*Transition, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t := &Transition{OrderID: orderID, To: to}
	err = tx.QueryRow(ctx, `
		SELECT o.state, u.email
		FROM orders o
		JOIN users u ON u.id = o.user_id
		WHERE o.id=$1 AND EXISTS (
			SELECT 1 FROM order_items oi
			JOIN product_infos pi ON pi.id = oi.product_info_id
			JOIN retailers rt     ON rt.id = pi.retailer_id
			WHERE oi.order_id = o.id AND rt.user_id = $2)
		FOR UPDATE OF o`, orderID, retailerUserID).Scan(&t.From, &t.ClientEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("order %d is missing or has none of the retailer's items", orderID)
	}
	if err != nil {
		return nil, err
	}
	if t.From == StatusBasket {
		return nil, apperr.InvalidState("order %d is still a basket", orderID)
	}
	if !CanTransition(t.From, to) {
		return nil, apperr.InvalidState("order %d cannot move from %s to %s", orderID, t.From, to)
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET state=$2, updated_at=now() WHERE id=$1`, orderID, to); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return t, nil
}
