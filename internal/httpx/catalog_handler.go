package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/pricelist"
	"github.com/ariefcatur/go-retail-orders/internal/tasks"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type CatalogStore interface {
	ListCategories(ctx context.Context) ([]catalog.Category, error)
	ListRetailers(ctx context.Context) ([]catalog.Retailer, error)
	ListProductInfos(ctx context.Context, f catalog.ProductFilter) ([]catalog.ProductInfo, int, error)
	RetailerByUser(ctx context.Context, userID int64) (*catalog.Retailer, error)
	SetAcceptingOrders(ctx context.Context, userID int64, accepting bool) error
}

var _ CatalogStore = (*catalog.Repo)(nil)

type ImportQueue interface {
	EnqueueImport(ctx context.Context, req pricelist.Request) (string, error)
}

type TaskStatuses interface {
	Get(ctx context.Context, taskID string) (*tasks.Status, error)
}

type CatalogHandler struct {
	Catalog  CatalogStore
	Imports  ImportQueue
	Tasks    TaskStatuses
	PageSize int
	Auth     func(http.Handler) http.Handler
	Log      *zap.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/categories/", h.categories)
	r.Get("/retailers/", h.retailers)
	r.Get("/products/", h.products)

	r.Group(func(r chi.Router) {
		r.Use(h.Auth, RequireRetailer(h.Log))
		r.Get("/partner/state/", h.partnerState)
		r.Post("/partner/state/", h.setPartnerState)
		r.Post("/partner/update/", h.partnerUpdate)
		r.Get("/partner/update/{task_id}/", h.partnerTask)
	})
}

func (h *CatalogHandler) categories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (h *CatalogHandler) retailers(w http.ResponseWriter, r *http.Request) {
	rs, err := h.Catalog.ListRetailers(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

const maxPage = 100_000

type productPage struct {
	Count   int                   `json:"count"`
	Results []catalog.ProductInfo `json:"results"`
}

func (h *CatalogHandler) products(w http.ResponseWriter, r *http.Request) {
	f := catalog.ProductFilter{PageSize: h.PageSize}
	var err error
	if f.RetailerID, err = queryInt64(r, "retailer_id"); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if f.CategoryID, err = queryInt64(r, "category_id"); err != nil {
		writeError(w, h.Log, err)
		return
	}
	page, err := queryInt64(r, "page")
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if page > maxPage {
		writeError(w, h.Log, apperr.Validation("page must not exceed %d", maxPage))
		return
	}
	f.Page = int(page)

	items, total, err := h.Catalog.ListProductInfos(r.Context(), f)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, productPage{Count: total, Results: items})
}

func (h *CatalogHandler) partnerState(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.RetailerFrom(r.Context())
	rt, err := h.Catalog.RetailerByUser(r.Context(), p.ID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// parseToggle accepts a JSON bool or one of the strings true/on/yes
// (case-insensitive); any other string means false.
func parseToggle(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, apperr.Validation("invalid type of request parameter state")
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes":
		return true, nil
	}
	return false, nil
}

func (h *CatalogHandler) setPartnerState(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.RetailerFrom(r.Context())
	var in struct {
		State json.RawMessage `json:"state"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if len(in.State) == 0 || string(in.State) == "null" {
		writeError(w, h.Log, apperr.Validation("all necessary arguments are not specified"))
		return
	}
	accepting, err := parseToggle(in.State)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := h.Catalog.SetAcceptingOrders(r.Context(), p.ID, accepting); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

// partnerUpdate queues a price-list import and answers immediately.
func (h *CatalogHandler) partnerUpdate(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.RetailerFrom(r.Context())
	var in struct {
		URL string `json:"url"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, h.Log, err)
		return
	}
	id, err := h.Imports.EnqueueImport(r.Context(), pricelist.Request{PartnerID: p.ID, URL: in.URL})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"Task": id})
}

func (h *CatalogHandler) partnerTask(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.RetailerFrom(r.Context())
	id := chi.URLParam(r, "task_id")
	st, err := h.Tasks.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	if st.Kind != tasks.KindImportPriceList || st.OwnerID != p.ID {
		writeError(w, h.Log, apperr.NotFound("task %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
