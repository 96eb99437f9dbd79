package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/ariefcatur/go-retail-orders/internal/orders"
	"github.com/ariefcatur/go-retail-orders/internal/pricelist"
	"github.com/ariefcatur/go-retail-orders/internal/tasks"
	"github.com/ariefcatur/go-retail-orders/internal/users"
)

var (
	client   = auth.Client{ID: 1, Mail: "bob@example.com"}
	retailer = auth.Retailer{ID: 10, Mail: "acme@example.com"}
)

// stubUsers knows two tokens: "client-token" and "retailer-token".
type stubUsers struct {
	users.Service
	registered users.RegisterInput
	resetEmail string
	resetKey   string
}

func (s *stubUsers) Authenticate(_ context.Context, key string) (auth.Principal, error) {
	switch key {
	case "client-token":
		return client, nil
	case "retailer-token":
		return retailer, nil
	}
	return nil, apperr.Unauthorized("invalid token")
}

func (s *stubUsers) Register(_ context.Context, in users.RegisterInput) (string, error) {
	if in.Email == "" {
		return "", apperr.Validation("email is required")
	}
	s.registered = in
	return "confirm-key", nil
}

func (s *stubUsers) RequestPasswordReset(_ context.Context, email string) error {
	s.resetEmail = email
	return nil
}

func (s *stubUsers) ConfirmPasswordReset(_ context.Context, key, password string) error {
	if key != "r3set" {
		return apperr.Validation("the password reset token is invalid or expired")
	}
	s.resetKey = key
	return nil
}

func (s *stubUsers) DeleteContacts(_ context.Context, _ auth.Principal, ids []int64) (users.DeleteResult, error) {
	return users.DeleteResult{Deleted: ids[:1], NotFound: ids[1:]}, nil
}

type stubOrders struct {
	orders.Service
	orderID   int64
	items     []orders.ItemInput
	filter    string
	err       error
	partial   orders.AddResult
	checkouts int
}

func (s *stubOrders) Basket(context.Context, auth.Client) ([]orders.Order, error) {
	return []orders.Order{{ID: 5, Status: orders.StatusBasket, Items: []orders.OrderItem{
		{ID: 1, Quantity: 2, ProductInfo: orders.ItemProductInfo{ID: 101, Price: 100}},
		{ID: 2, Quantity: 3, ProductInfo: orders.ItemProductInfo{ID: 102, Price: 50}},
	}}}, nil
}

func (s *stubOrders) AddItems(_ context.Context, _ auth.Client, items []orders.ItemInput) (orders.AddResult, error) {
	s.items = items
	if s.err != nil {
		return s.partial, s.err
	}
	return orders.AddResult{Created: len(items)}, nil
}

func (s *stubOrders) RemoveItems(_ context.Context, _ auth.Client, ids []int64) (orders.RemoveResult, error) {
	return orders.RemoveResult{Deleted: ids[:1], NotFound: ids[1:]}, nil
}

func (s *stubOrders) Orders(_ context.Context, _ auth.Client, id int64) ([]orders.Order, error) {
	s.orderID = id
	return []orders.Order{}, s.err
}

func (s *stubOrders) Checkout(context.Context, auth.Client, int64, int64) error {
	s.checkouts++
	return s.err
}

func (s *stubOrders) PartnerOrders(_ context.Context, _ auth.Retailer, f string) ([]orders.PartnerOrderItem, error) {
	s.filter = f
	if _, err := orders.ParseStateFilter(f); err != nil {
		return nil, err
	}
	return []orders.PartnerOrderItem{}, nil
}

func (s *stubOrders) Transition(_ context.Context, _ auth.Retailer, id int64, to orders.Status) (*orders.Transition, error) {
	return &orders.Transition{OrderID: id, From: orders.StatusNew, To: to}, s.err
}

type stubCatalog struct {
	catalog.Repo
	filter    catalog.ProductFilter
	accepting *bool
}

func (s *stubCatalog) ListProductInfos(_ context.Context, f catalog.ProductFilter) ([]catalog.ProductInfo, int, error) {
	s.filter = f
	return []catalog.ProductInfo{{ID: 1, Model: "H1", Price: 500}}, 41, nil
}

func (s *stubCatalog) SetAcceptingOrders(_ context.Context, _ int64, v bool) error {
	s.accepting = &v
	return nil
}

type stubQueue struct{ reqs []pricelist.Request }

func (q *stubQueue) EnqueueImport(_ context.Context, req pricelist.Request) (string, error) {
	if err := pricelist.ValidateRequest(req); err != nil {
		return "", err
	}
	q.reqs = append(q.reqs, req)
	return "task-1", nil
}

type stubStatuses map[string]*tasks.Status

func (s stubStatuses) Get(_ context.Context, id string) (*tasks.Status, error) {
	if st, ok := s[id]; ok {
		return st, nil
	}
	return nil, apperr.NotFound("task %s not found", id)
}

type env struct {
	srv     *httptest.Server
	users   *stubUsers
	orders  *stubOrders
	catalog *stubCatalog
	queue   *stubQueue
}

func newEnv(t *testing.T) *env {
	log := zap.NewNop()
	e := &env{users: &stubUsers{}, orders: &stubOrders{}, catalog: &stubCatalog{}, queue: &stubQueue{}}
	authn := Authenticate(e.users, log)
	r := NewRouter(log)
	(&UsersHandler{Users: e.users, Auth: authn, Log: log}).Register(r)
	(&OrdersHandler{Orders: e.orders, Auth: authn, Log: log}).Register(r)
	(&CatalogHandler{
		Catalog: e.catalog, Imports: e.queue, PageSize: 40, Auth: authn, Log: log,
		Tasks: stubStatuses{
			"mine":   {TaskID: "mine", Kind: tasks.KindImportPriceList, State: tasks.StateSucceeded, OwnerID: retailer.ID},
			"theirs": {TaskID: "theirs", Kind: tasks.KindImportPriceList, State: tasks.StatePending, OwnerID: 99},
		},
	}).Register(r)
	e.srv = httptest.NewServer(r)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) do(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	res, err := http.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestAuthAndRoles(t *testing.T) {
	e := newEnv(t)

	res, body := e.do(t, http.MethodGet, "/basket/", "", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, false, body["Status"])

	res, _ = e.do(t, http.MethodGet, "/basket/", "bogus", "")
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, _ = e.do(t, http.MethodGet, "/basket/", "retailer-token", "")
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body = e.do(t, http.MethodPost, "/partner/update/", "client-token", `{"url":"https://example.com/p.yaml"}`)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "for retailers only", body["Errors"])
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	res, body := e.do(t, http.MethodPost, "/user/register/", "",
		`{"first_name":"Bob","last_name":"B","email":"bob@example.com","password":"s3cure-Passw0rd"}`)
	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, true, body["Status"])
	assert.Equal(t, "confirm-key", body["Token"])
	assert.Equal(t, "Bob", e.users.registered.FirstName)

	res, body = e.do(t, http.MethodPost, "/user/register/", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "email is required", body["Errors"])

	res, _ = e.do(t, http.MethodPost, "/user/register/", "", `not json`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestBasketEndpoints(t *testing.T) {
	e := newEnv(t)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/basket/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Token client-token")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	var basket []map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&basket))
	require.Len(t, basket, 1)
	assert.Equal(t, float64(350), basket[0]["total_sum"])

	res2, body := e.do(t, http.MethodPost, "/basket/", "client-token", `{"items":[{"product_info":101,"quantity":2}]}`)
	assert.Equal(t, http.StatusCreated, res2.StatusCode)
	assert.Equal(t, float64(1), body["Objects created"])
	assert.Equal(t, []orders.ItemInput{{ProductInfoID: 101, Quantity: 2}}, e.orders.items)

	e.orders.err = apperr.Validation("items[0]: product_info 999 does not exist")
	res2, body = e.do(t, http.MethodPost, "/basket/", "client-token", `{"items":[{"product_info":999,"quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)
	assert.Equal(t, "items[0]: product_info 999 does not exist", body["Errors"])
	assert.Equal(t, float64(0), body["Objects created"])

	e.orders.partial = orders.AddResult{Created: 2}
	e.orders.err = apperr.Validation("items[2]: quantity must be a positive integer")
	res2, body = e.do(t, http.MethodPost, "/basket/", "client-token",
		`{"items":[{"product_info":101,"quantity":1},{"product_info":102,"quantity":1},{"product_info":201,"quantity":0}]}`)
	assert.Equal(t, http.StatusBadRequest, res2.StatusCode)
	assert.Equal(t, false, body["Status"])
	assert.Equal(t, float64(2), body["Objects created"])
	e.orders.err = nil

	res2, body = e.do(t, http.MethodDelete, "/basket/", "client-token", `{"items":[5,6]}`)
	assert.Equal(t, http.StatusOK, res2.StatusCode)
	assert.Equal(t, float64(1), body["Objects deleted"])
	assert.Equal(t, []any{float64(6)}, body["NotFound"])
}

func TestOrderEndpoints(t *testing.T) {
	e := newEnv(t)

	res, _ := e.do(t, http.MethodGet, "/order/?id_order=7", "client-token", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int64(7), e.orders.orderID)

	res, _ = e.do(t, http.MethodGet, "/order/?id_order=all", "client-token", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Zero(t, e.orders.orderID)

	res, _ = e.do(t, http.MethodGet, "/order/?id_order=seven", "client-token", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body := e.do(t, http.MethodPost, "/order/", "client-token", `{"order_id":5,"contact_id":9}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["Status"])

	e.orders.err = apperr.NotFound("contact 9 is missing or does not belong to the user")
	res, _ = e.do(t, http.MethodPost, "/order/", "client-token", `{"order_id":5,"contact_id":9}`)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	e.orders.err = errors.New("connection reset")
	res, body = e.do(t, http.MethodPost, "/order/", "client-token", `{"order_id":5,"contact_id":9}`)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "internal error", body["Errors"])
}

func TestPartnerOrders(t *testing.T) {
	e := newEnv(t)

	res, _ := e.do(t, http.MethodGet, "/partner/orders/?state_order=all", "retailer-token", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "all", e.orders.filter)

	res, _ = e.do(t, http.MethodGet, "/partner/orders/?state_order=lost", "retailer-token", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body := e.do(t, http.MethodPost, "/partner/orders/", "retailer-token", `{"order_id":5,"state":"processing"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "processing", body["state"])

	e.orders.err = apperr.InvalidState("order 5 cannot move from new to sent")
	res, _ = e.do(t, http.MethodPost, "/partner/orders/", "retailer-token", `{"order_id":5,"state":"sent"}`)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestPartnerUpdate(t *testing.T) {
	e := newEnv(t)

	res, body := e.do(t, http.MethodPost, "/partner/update/", "retailer-token", `{"url":"https://example.com/p.yaml"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "task-1", body["Task"])
	require.Len(t, e.queue.reqs, 1)
	assert.Equal(t, pricelist.Request{PartnerID: retailer.ID, URL: "https://example.com/p.yaml"}, e.queue.reqs[0])

	res, _ = e.do(t, http.MethodPost, "/partner/update/", "retailer-token", `{"url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body = e.do(t, http.MethodGet, "/partner/update/mine/", "retailer-token", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "succeeded", body["state"])

	res, _ = e.do(t, http.MethodGet, "/partner/update/theirs/", "retailer-token", "")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestPartnerState(t *testing.T) {
	e := newEnv(t)
	for raw, want := range map[string]bool{`"yes"`: true, `"On"`: true, `"off"`: false, `false`: false, `true`: true} {
		res, _ := e.do(t, http.MethodPost, "/partner/state/", "retailer-token", `{"state":`+raw+`}`)
		assert.Equal(t, http.StatusOK, res.StatusCode, raw)
		require.NotNil(t, e.catalog.accepting)
		assert.Equal(t, want, *e.catalog.accepting, raw)
	}

	res, _ := e.do(t, http.MethodPost, "/partner/state/", "retailer-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	res, _ = e.do(t, http.MethodPost, "/partner/state/", "retailer-token", `{"state":[1]}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestProducts(t *testing.T) {
	e := newEnv(t)
	res, body := e.do(t, http.MethodGet, "/products/?retailer_id=3&category_id=4&page=2", "", "")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, float64(41), body["count"])
	assert.Len(t, body["results"], 1)
	assert.Equal(t, catalog.ProductFilter{RetailerID: 3, CategoryID: 4, Page: 2, PageSize: 40}, e.catalog.filter)

	res, _ = e.do(t, http.MethodGet, "/products/?page=-1", "", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	e.catalog.filter = catalog.ProductFilter{}
	res, body = e.do(t, http.MethodGet, "/products/?page=9223372036854775807", "", "")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "page must not exceed 100000", body["Errors"])
	assert.Zero(t, e.catalog.filter)
}

func TestDeleteContacts(t *testing.T) {
	e := newEnv(t)
	res, body := e.do(t, http.MethodDelete, "/user/contact/", "client-token", `{"ids_contact":[3,4]}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, []any{float64(3)}, body["Deleted"])
	assert.Equal(t, []any{float64(4)}, body["NotFound"])

	res, _ = e.do(t, http.MethodDelete, "/user/contact/", "client-token", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestPasswordResetEndpoints(t *testing.T) {
	e := newEnv(t)

	res, body := e.do(t, http.MethodPost, "/user/password_reset/", "", `{"email":"bob@example.com"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["Status"])
	assert.Equal(t, "bob@example.com", e.users.resetEmail)

	res, _ = e.do(t, http.MethodPost, "/user/password_reset/confirm/", "", `{"token":"r3set","password":"An0ther-Secret"}`)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "r3set", e.users.resetKey)

	res, body = e.do(t, http.MethodPost, "/user/password_reset/confirm/", "", `{"token":"old","password":"An0ther-Secret"}`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "the password reset token is invalid or expired", body["Errors"])
}
