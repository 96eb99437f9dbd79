package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

// ErrOwnershipConflict means the retailer name in a price list already
// belongs to another partner account.
var ErrOwnershipConflict = &apperr.Error{Code: apperr.CodeConflict, Message: "retailer is owned by another partner"}

type Repo struct{ DB postgres.DB }

func (r *Repo) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name FROM categories ORDER BY name DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListRetailers returns the retailers currently accepting orders.
func (r *Repo) ListRetailers(ctx context.Context) ([]Retailer, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, COALESCE(url, ''), user_id, accepting_orders
		FROM retailers WHERE accepting_orders ORDER BY name DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Retailer{}
	for rows.Next() {
		var x Retailer
		if err := rows.Scan(&x.ID, &x.Name, &x.URL, &x.UserID, &x.AcceptingOrders); err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// ListProductInfos pages through offers of retailers that accept orders.
// It returns the page and the total number of matching offers.
func (r *Repo) ListProductInfos(ctx context.Context, f ProductFilter) ([]ProductInfo, int, error) {
	const where = `
		FROM product_infos pi
		JOIN products p   ON p.id = pi.product_id
		JOIN categories c ON c.id = p.category_id
		JOIN retailers r  ON r.id = pi.retailer_id
		WHERE r.accepting_orders
		  AND ($1::bigint = 0 OR pi.retailer_id = $1)
		  AND ($2::bigint = 0 OR p.category_id = $2)`

	var total int
	if err := r.DB.QueryRow(ctx, `SELECT count(*) `+where, f.RetailerID, f.CategoryID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT pi.id, pi.model, pi.cat_id, p.id, p.name, c.name,
		       pi.retailer_id, pi.quantity, pi.price, pi.price_rrc `+where+`
		ORDER BY pi.id LIMIT $3 OFFSET $4`,
		f.RetailerID, f.CategoryID, f.PageSize, f.offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []ProductInfo{}
	ids := []int64{}
	for rows.Next() {
		var pi ProductInfo
		if err := rows.Scan(&pi.ID, &pi.Model, &pi.CatID, &pi.Product.ID, &pi.Product.Name, &pi.Product.Category,
			&pi.RetailerID, &pi.Quantity, &pi.Price, &pi.PriceRRC); err != nil {
			return nil, 0, err
		}
		pi.Parameters = []ProductParameter{}
		out = append(out, pi)
		ids = append(ids, pi.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return out, total, nil
	}

	params, err := r.parametersFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		if p, ok := params[out[i].ID]; ok {
			out[i].Parameters = p
		}
	}
	return out, total, nil
}

func (r *Repo) parametersFor(ctx context.Context, productInfoIDs []int64) (map[int64][]ProductParameter, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT pp.product_info_id, pa.name, pp.value
		FROM product_parameters pp
		JOIN parameters pa ON pa.id = pp.parameter_id
		WHERE pp.product_info_id = ANY($1)
		ORDER BY pa.name`, productInfoIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]ProductParameter{}
	for rows.Next() {
		var id int64
		var p ProductParameter
		if err := rows.Scan(&id, &p.Parameter, &p.Value); err != nil {
			return nil, err
		}
		out[id] = append(out[id], p)
	}
	return out, rows.Err()
}

func (r *Repo) RetailerByUser(ctx context.Context, userID int64) (*Retailer, error) {
	var x Retailer
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, COALESCE(url, ''), user_id, accepting_orders
		FROM retailers WHERE user_id=$1`, userID).
		Scan(&x.ID, &x.Name, &x.URL, &x.UserID, &x.AcceptingOrders)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("no retailer is registered for this account yet, import a price list first")
	}
	if err != nil {
		return nil, err
	}
	return &x, nil
}

func (r *Repo) SetAcceptingOrders(ctx context.Context, userID int64, accepting bool) error {
	ct, err := r.DB.Exec(ctx, `UPDATE retailers SET accepting_orders=$2 WHERE user_id=$1`, userID, accepting)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("no retailer is registered for this account yet, import a price list first")
	}
	return nil
}

// ReplacePriceList reconciles a partner's price list in one transaction:
// the retailer is upserted and locked, categories are upserted and linked,
// and every product info of the retailer is deleted and recreated from the
// document. Any failure rolls the whole import back.
func (r *Repo) ReplacePriceList(ctx context.Context, partnerID int64, pl *PriceList) (*ImportSummary, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	retailerID, err := upsertRetailer(ctx, tx, partnerID, pl.Retailer, pl.URL)
	if err != nil {
		return nil, err
	}
	sum := &ImportSummary{RetailerID: retailerID}

	for _, c := range pl.Categories {
		if _, err := tx.Exec(ctx, `
			INSERT INTO categories(id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, c.ID, c.Name); err != nil {
			return nil, fmt.Errorf("upsert category %d: %w", c.ID, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO retailer_categories(retailer_id, category_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, retailerID, c.ID); err != nil {
			return nil, fmt.Errorf("link category %d: %w", c.ID, err)
		}
		sum.Categories++
	}

	if _, err := tx.Exec(ctx, `DELETE FROM product_infos WHERE retailer_id=$1`, retailerID); err != nil {
		return nil, fmt.Errorf("clear product infos: %w", err)
	}

	paramIDs := map[string]int64{}
	for _, g := range pl.Goods {
		var productID int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO products(name, category_id) VALUES ($1, $2)
			ON CONFLICT (name, category_id) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, g.Name, g.CategoryID).Scan(&productID); err != nil {
			return nil, fmt.Errorf("upsert product %q: %w", g.Name, err)
		}

		var infoID int64
		if err := tx.QueryRow(ctx, `
			INSERT INTO product_infos(product_id, retailer_id, cat_id, model, quantity, price, price_rrc)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			productID, retailerID, g.CatID, g.Model, g.Quantity, g.Price, g.PriceRRC).Scan(&infoID); err != nil {
			return nil, fmt.Errorf("insert product info %d: %w", g.CatID, err)
		}
		sum.ProductInfos++

		for name, value := range g.Parameters {
			pid, ok := paramIDs[name]
			if !ok {
				if err := tx.QueryRow(ctx, `
					INSERT INTO parameters(name) VALUES ($1)
					ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
					RETURNING id`, name).Scan(&pid); err != nil {
					return nil, fmt.Errorf("upsert parameter %q: %w", name, err)
				}
				paramIDs[name] = pid
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO product_parameters(product_info_id, parameter_id, value)
				VALUES ($1, $2, $3)`, infoID, pid, value); err != nil {
				return nil, fmt.Errorf("insert parameter %q: %w", name, err)
			}
			sum.Parameters++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return sum, nil
}

func upsertRetailer(ctx context.Context, tx pgx.Tx, partnerID int64, name, url string) (int64, error) {
	var userType string
	err := tx.QueryRow(ctx, `SELECT type FROM users WHERE id=$1`, partnerID).Scan(&userType)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.NotFound("partner %d does not exist", partnerID)
	}
	if err != nil {
		return 0, err
	}
	if userType != "retailer" {
		return 0, apperr.Forbidden("partner %d is not a retailer account", partnerID)
	}

	var id, owner int64
	err = tx.QueryRow(ctx, `SELECT id, user_id FROM retailers WHERE name=$1 FOR UPDATE`, name).Scan(&id, &owner)
	switch {
	case err == nil && owner != partnerID:
		return 0, ErrOwnershipConflict
	case err == nil:
		if url != "" {
			if _, err := tx.Exec(ctx, `UPDATE retailers SET url=$2 WHERE id=$1`, id, url); err != nil {
				return 0, err
			}
		}
		return id, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return 0, err
	}

	// A partner owns a single retailer, so a new name renames it.
	err = tx.QueryRow(ctx, `
		INSERT INTO retailers(name, url, user_id) VALUES ($1, NULLIF($2, ''), $3)
		ON CONFLICT (user_id) DO UPDATE SET name = EXCLUDED.name, url = COALESCE(EXCLUDED.url, retailers.url)
		RETURNING id`, name, url, partnerID).Scan(&id)
	if postgres.IsUniqueViolation(err, "retailers_name_key") {
		return 0, ErrOwnershipConflict
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}
