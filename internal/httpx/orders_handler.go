package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type OrderService interface {
	Basket(ctx context.Context, c auth.Client) ([]orders.Order, error)
	AddItems(ctx context.Context, c auth.Client, items []orders.ItemInput) (orders.AddResult, error)
	UpdateItems(ctx context.Context, c auth.Client, items []orders.ItemInput) (int64, error)
	RemoveItems(ctx context.Context, c auth.Client, ids []int64) (orders.RemoveResult, error)
	Orders(ctx context.Context, c auth.Client, orderID int64) ([]orders.Order, error)
	Checkout(ctx context.Context, c auth.Client, orderID, contactID int64) error
	PartnerOrders(ctx context.Context, r auth.Retailer, filter string) ([]orders.PartnerOrderItem, error)
	Transition(ctx context.Context, r auth.Retailer, orderID int64, to orders.Status) (*orders.Transition, error)
}

var _ OrderService = (*orders.Service)(nil)

type OrdersHandler struct {
	Orders OrderService
	Auth   func(http.Handler) http.Handler
	Log    *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.Auth, RequireClient(h.Log))
		r.Get("/basket/", h.basket)
		r.Post("/basket/", h.addItems)
		r.Put("/basket/", h.updateItems)
		r.Delete("/basket/", h.removeItems)
		r.Get("/order/", h.listOrders)
		r.Post("/order/", h.checkout)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.Auth, RequireRetailer(h.Log))
		r.Get("/partner/orders/", h.partnerOrders)
		r.Post("/partner/orders/", h.transition)
	})
}

type itemsReq struct {
	Items []orders.ItemInput `json:"items"`
}

func (h *OrdersHandler) basket(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClientFrom(r.Context())
	out, err := h.Orders.Basket(r.Context(), c)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) addItems(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClientFrom(r.Context())
	var req itemsReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	res, err := h.Orders.AddItems(r.Context(), c, req.Items)
	if err != nil {
		// entries before the failing one are already in the basket
		writeFailure(w, h.Log, err, map[string]any{"Objects created": res.Created, "Objects updated": res.Updated})
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"Objects created": res.Created, "Objects updated": res.Updated})
}

func (h *OrdersHandler) updateItems(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClientFrom(r.Context())
	var req itemsReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	n, err := h.Orders.UpdateItems(r.Context(), c, req.Items)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"Objects updated": n})
}

func (h *OrdersHandler) removeItems(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClientFrom(r.Context())
	var req struct {
		Items []int64 `json:"items"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	res, err := h.Orders.RemoveItems(r.Context(), c, req.Items)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"Status":          len(res.Deleted) > 0,
		"Objects deleted": len(res.Deleted),
		"Deleted":         res.Deleted,
		"NotFound":        res.NotFound,
	})
}

// listOrders serves ?id_order=all (the default) or ?id_order=<id>.
func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClientFrom(r.Context())
	var id int64
	if raw := r.URL.Query().Get("id_order"); raw != "all" {
		var err error
		if id, err = queryInt64(r, "id_order"); err != nil {
			writeError(w, h.Log, err)
			return
		}
	}
	out, err := h.Orders.Orders(r.Context(), c, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	c, _ := auth.ClientFrom(r.Context())
	var req struct {
		OrderID   int64 `json:"order_id"`
		ContactID int64 `json:"contact_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Orders.Checkout(r.Context(), c, req.OrderID, req.ContactID); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *OrdersHandler) partnerOrders(w http.ResponseWriter, r *http.Request) {
	rt, _ := auth.RetailerFrom(r.Context())
	out, err := h.Orders.PartnerOrders(r.Context(), rt, r.URL.Query().Get("state_order"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request) {
	rt, _ := auth.RetailerFrom(r.Context())
	var req struct {
		OrderID int64         `json:"order_id"`
		State   orders.Status `json:"state"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if req.State == "" {
		writeError(w, h.Log, apperr.Validation("state is required"))
		return
	}
	t, err := h.Orders.Transition(r.Context(), rt, req.OrderID, req.State)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"order_id": t.OrderID, "from": t.From, "state": t.To})
}
