package orders

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/notify"
	"go.uber.org/zap"
)

type Store interface {
	GetOrCreateBasket(ctx context.Context, userID int64) (int64, error)
	FindBasket(ctx context.Context, userID int64) (int64, bool, error)
	ProductAvailability(ctx context.Context, productInfoID int64) (ProductAvailability, error)
	UpsertItem(ctx context.Context, orderID, productInfoID, qty int64) (bool, error)
	UpdateItemQuantity(ctx context.Context, orderID, productInfoID, qty int64) (int64, error)
	DeleteItems(ctx context.Context, orderID int64, ids []int64) ([]int64, error)
	Orders(ctx context.Context, q OrderQuery) ([]Order, error)
	Checkout(ctx context.Context, userID, orderID, contactID int64) error
	PartnerOrderItems(ctx context.Context, retailerUserID int64, f StateFilter) ([]PartnerOrderItem, error)
	TransitionOrder(ctx context.Context, retailerUserID, orderID int64, to Status) (*Transition, error)
}

var _ Store = (*Repo)(nil)

type Publisher interface {
	Publish(ctx context.Context, events ...notify.Event)
}

type Service struct {
	Store  Store
	Events Publisher
	Log    *zap.Logger
}

func NewService(store Store, events Publisher, log *zap.Logger) *Service {
	return &Service{Store: store, Events: events, Log: log}
}

// Basket returns the client's basket as a list holding zero or one order.
func (s *Service) Basket(ctx context.Context, c auth.Client) ([]Order, error) {
	return s.Store.Orders(ctx, OrderQuery{UserID: c.ID, Basket: true})
}

func (s *Service) checkItem(ctx context.Context, i int, it ItemInput) error {
	if it.ProductInfoID <= 0 {
		return apperr.Validation("items[%d]: product_info is required", i)
	}
	if it.Quantity <= 0 {
		return apperr.Validation("items[%d]: quantity must be a positive integer", i)
	}
	a, err := s.Store.ProductAvailability(ctx, it.ProductInfoID)
	if err != nil {
		return err
	}
	if !a.Exists {
		return apperr.Validation("items[%d]: product_info %d does not exist", i, it.ProductInfoID)
	}
	if !a.AcceptingOrders {
		return apperr.Validation("items[%d]: retailer of product_info %d is not accepting orders", i, it.ProductInfoID)
	}
	return nil
}

// AddItems writes the batch into the client's basket in order. The first
// invalid entry stops the batch; the result counts what was written before it.
func (s *Service) AddItems(ctx context.Context, c auth.Client, items []ItemInput) (AddResult, error) {
	var res AddResult
	if len(items) == 0 {
		return res, apperr.Validation("items are required")
	}
	basketID, err := s.Store.GetOrCreateBasket(ctx, c.ID)
	if err != nil {
		return res, fmt.Errorf("basket: %w", err)
	}
	for i, it := range items {
		if err := s.checkItem(ctx, i, it); err != nil {
			return res, err
		}
		created, err := s.Store.UpsertItem(ctx, basketID, it.ProductInfoID, it.Quantity)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	s.Log.Debug("basket items added", zap.Int64("user_id", c.ID), zap.Int64("order_id", basketID),
		zap.Int("created", res.Created), zap.Int("updated", res.Updated))
	return res, nil
}

// UpdateItems sets quantities of lines already in the basket and returns
// how many rows changed. Entries without a matching line are not an error.
func (s *Service) UpdateItems(ctx context.Context, c auth.Client, items []ItemInput) (int64, error) {
	if len(items) == 0 {
		return 0, apperr.Validation("items are required")
	}
	basketID, found, err := s.Store.FindBasket(ctx, c.ID)
	if err != nil {
		return 0, fmt.Errorf("basket: %w", err)
	}
	var updated int64
	for i, it := range items {
		if err := s.checkItem(ctx, i, it); err != nil {
			return updated, err
		}
		if !found {
			continue
		}
		n, err := s.Store.UpdateItemQuantity(ctx, basketID, it.ProductInfoID, it.Quantity)
		if err != nil {
			return updated, err
		}
		updated += n
	}
	return updated, nil
}

// RemoveItems deletes the basket lines among ids and reports the ids that
// were not found in the client's basket.
func (s *Service) RemoveItems(ctx context.Context, c auth.Client, ids []int64) (RemoveResult, error) {
	res := RemoveResult{Deleted: []int64{}, NotFound: []int64{}}
	if len(ids) == 0 {
		return res, apperr.Validation("items are required")
	}
	unique := make([]int64, 0, len(ids))
	seen := map[int64]bool{}
	for _, id := range ids {
		if id <= 0 {
			return res, apperr.Validation("item id %d is invalid", id)
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	basketID, found, err := s.Store.FindBasket(ctx, c.ID)
	if err != nil {
		return res, fmt.Errorf("basket: %w", err)
	}
	deleted := map[int64]bool{}
	if found {
		got, err := s.Store.DeleteItems(ctx, basketID, unique)
		if err != nil {
			return res, err
		}
		for _, id := range got {
			deleted[id] = true
		}
	}
	for _, id := range unique {
		if deleted[id] {
			res.Deleted = append(res.Deleted, id)
		} else {
			res.NotFound = append(res.NotFound, id)
		}
	}
	return res, nil
}

// Orders lists the client's placed orders, or one of them when orderID is set.
func (s *Service) Orders(ctx context.Context, c auth.Client, orderID int64) ([]Order, error) {
	out, err := s.Store.Orders(ctx, OrderQuery{UserID: c.ID, OrderID: orderID})
	if err != nil {
		return nil, err
	}
	if orderID != 0 && len(out) == 0 {
		return nil, apperr.NotFound("order %d is missing or does not belong to the user", orderID)
	}
	return out, nil
}

// Checkout turns the basket into a new order shipped to contactID.
func (s *Service) Checkout(ctx context.Context, c auth.Client, orderID, contactID int64) error {
	if orderID <= 0 {
		return apperr.Validation("order_id is required")
	}
	if contactID <= 0 {
		return apperr.Validation("contact_id is required")
	}
	if err := s.Store.Checkout(ctx, c.ID, orderID, contactID); err != nil {
		return err
	}
	s.Log.Info("order placed", zap.Int64("user_id", c.ID), zap.Int64("order_id", orderID))
	s.Events.Publish(ctx, notify.OrderPlaced{OrderID: orderID, Email: c.Mail})
	return nil
}

// PartnerOrders lists order lines for the retailer's offers. When anything
// is returned the retailer and every distinct client are notified.
func (s *Service) PartnerOrders(ctx context.Context, r auth.Retailer, rawFilter string) ([]PartnerOrderItem, error) {
	f, err := ParseStateFilter(rawFilter)
	if err != nil {
		return nil, err
	}
	items, err := s.Store.PartnerOrderItems(ctx, r.ID, f)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	var clients []string
	seen := map[string]bool{}
	for _, it := range items {
		if it.ClientEmail != "" && !seen[it.ClientEmail] {
			seen[it.ClientEmail] = true
			clients = append(clients, it.ClientEmail)
		}
	}
	s.Events.Publish(ctx, notify.PartnerOrdersLoaded{RetailerEmail: r.Mail, ClientEmails: clients})
	return items, nil
}

// Transition moves one of the retailer's orders along the state machine
// and tells the client.
func (s *Service) Transition(ctx context.Context, r auth.Retailer, orderID int64, to Status) (*Transition, error) {
	if orderID <= 0 {
		return nil, apperr.Validation("order_id is required")
	}
	if !to.Valid() {
		return nil, apperr.Validation("invalid state %q", to)
	}
	t, err := s.Store.TransitionOrder(ctx, r.ID, orderID, to)
	if err != nil {
		return nil, err
	}
	s.Log.Info("order state changed", zap.Int64("order_id", orderID),
		zap.String("from", string(t.From)), zap.String("to", string(t.To)), zap.Int64("retailer_user_id", r.ID))
	s.Events.Publish(ctx, notify.OrderStatusChanged{OrderID: orderID, Email: t.ClientEmail, Status: string(t.To)})
	return t, nil
}
