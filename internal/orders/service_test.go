package orders

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-retail-orders/internal/apperr"
	"github.com/ariefcatur/go-retail-orders/internal/auth"
	"github.com/ariefcatur/go-retail-orders/internal/notify"
	"github.com/ariefcatur/go-retail-orders/internal/users"
)

type offer struct {
	price          int64
	retailerUserID int64
	accepting      bool
}

type memItem struct {
	id, productInfo, qty int64
}

type memOrder struct {
	id, userID, contactID int64
	state                 Status
	items                 []memItem
}

type memStore struct {
	mu        sync.Mutex
	seq       int64
	offers    map[int64]offer
	orders    map[int64]*memOrder
	contacts  map[int64]int64
	emails    map[int64]string
	basketHit int
}

func newMemStore() *memStore {
	return &memStore{
		offers:   map[int64]offer{},
		orders:   map[int64]*memOrder{},
		contacts: map[int64]int64{},
		emails:   map[int64]string{},
	}
}

func (m *memStore) next() int64 { m.seq++; return m.seq }

func (m *memStore) basketOf(userID int64) *memOrder {
	for _, o := range m.orders {
		if o.userID == userID && o.state == StatusBasket {
			return o
		}
	}
	return nil
}

func (m *memStore) GetOrCreateBasket(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.basketHit++
	if o := m.basketOf(userID); o != nil {
		return o.id, nil
	}
	o := &memOrder{id: m.next(), userID: userID, state: StatusBasket}
	m.orders[o.id] = o
	return o.id, nil
}

func (m *memStore) FindBasket(_ context.Context, userID int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o := m.basketOf(userID); o != nil {
		return o.id, true, nil
	}
	return 0, false, nil
}

func (m *memStore) ProductAvailability(_ context.Context, id int64) (ProductAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	return ProductAvailability{Exists: ok, AcceptingOrders: o.accepting}, nil
}

func (m *memStore) UpsertItem(_ context.Context, orderID, pi, qty int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	for i := range o.items {
		if o.items[i].productInfo == pi {
			o.items[i].qty = qty
			return false, nil
		}
	}
	o.items = append(o.items, memItem{id: m.next(), productInfo: pi, qty: qty})
	return true, nil
}

func (m *memStore) UpdateItemQuantity(_ context.Context, orderID, pi, qty int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[orderID]
	for i := range o.items {
		if o.items[i].productInfo == pi {
			o.items[i].qty = qty
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memStore) DeleteItems(_ context.Context, orderID int64, ids []int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	o := m.orders[orderID]
	var kept []memItem
	deleted := []int64{}
	for _, it := range o.items {
		if want[it.id] {
			deleted = append(deleted, it.id)
			continue
		}
		kept = append(kept, it)
	}
	o.items = kept
	return deleted, nil
}

func (m *memStore) Orders(_ context.Context, q OrderQuery) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Order{}
	for _, o := range m.orders {
		if o.userID != q.UserID || (o.state == StatusBasket) != q.Basket {
			continue
		}
		if q.OrderID != 0 && o.id != q.OrderID {
			continue
		}
		ord := Order{ID: o.id, UserID: o.userID, Status: o.state, Items: []OrderItem{}}
		if o.contactID != 0 {
			ord.Contact = &users.Contact{ID: o.contactID}
		}
		for _, it := range o.items {
			ord.Items = append(ord.Items, OrderItem{ID: it.id, Quantity: it.qty,
				ProductInfo: ItemProductInfo{ID: it.productInfo, Price: m.offers[it.productInfo].price}})
		}
		out = append(out, ord)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) Checkout(_ context.Context, userID, orderID, contactID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.contacts[contactID] != userID {
		return apperr.NotFound("contact %d is missing or does not belong to the user", contactID)
	}
	o, ok := m.orders[orderID]
	if !ok || o.userID != userID {
		return apperr.NotFound("order %d is missing or does not belong to the user", orderID)
	}
	if !CanTransition(o.state, StatusNew) {
		return apperr.InvalidState("order %d is %s and cannot be checked out", orderID, o.state)
	}
	if len(o.items) == 0 {
		return apperr.Validation("order %d has no items", orderID)
	}
	o.state, o.contactID = StatusNew, contactID
	return nil
}

func (m *memStore) PartnerOrderItems(_ context.Context, retailerUserID int64, f StateFilter) ([]PartnerOrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := map[Status]bool{}
	for _, s := range f.States {
		states[s] = true
	}
	out := []PartnerOrderItem{}
	for _, o := range m.orders {
		if !states[o.state] {
			continue
		}
		for _, it := range o.items {
			if m.offers[it.productInfo].retailerUserID != retailerUserID {
				continue
			}
			out = append(out, PartnerOrderItem{ID: it.id, Quantity: it.qty,
				ProductInfo: ItemProductInfo{ID: it.productInfo},
				Order:       PartnerOrder{ID: o.id, Status: o.state},
				ClientEmail: m.emails[o.userID]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) TransitionOrder(_ context.Context, retailerUserID, orderID int64, to Status) (*Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	mine := false
	if ok {
		for _, it := range o.items {
			mine = mine || m.offers[it.productInfo].retailerUserID == retailerUserID
		}
	}
	if !mine {
		return nil, apperr.NotFound("order %d is missing or has none of the retailer's items", orderID)
	}
	if o.state == StatusBasket {
		return nil, apperr.InvalidState("order %d is still a basket", orderID)
	}
	if !CanTransition(o.state, to) {
		return nil, apperr.InvalidState("order %d cannot move from %s to %s", orderID, o.state, to)
	}
	t := &Transition{OrderID: orderID, From: o.state, To: to, ClientEmail: m.emails[o.userID]}
	o.state = to
	return t, nil
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, events ...notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

var (
	bob     = auth.Client{ID: 1, Mail: "bob@example.com"}
	carol   = auth.Client{ID: 2, Mail: "carol@example.com"}
	acme    = auth.Retailer{ID: 10, Mail: "acme@example.com"}
	globex  = auth.Retailer{ID: 11, Mail: "globex@example.com"}
	closed  = auth.Retailer{ID: 12, Mail: "closed@example.com"}
	contact = int64(500)
)

// offers 101 (100) and 102 (50) belong to acme, 201 to globex, 301 to a
// retailer that stopped accepting orders.
func newTestService() (*Service, *memStore, *recorder) {
	st := newMemStore()
	st.seq = 1000
	st.offers[101] = offer{price: 100, retailerUserID: acme.ID, accepting: true}
	st.offers[102] = offer{price: 50, retailerUserID: acme.ID, accepting: true}
	st.offers[201] = offer{price: 70, retailerUserID: globex.ID, accepting: true}
	st.offers[301] = offer{price: 10, retailerUserID: closed.ID, accepting: false}
	st.contacts[contact] = bob.ID
	st.contacts[contact+1] = carol.ID
	st.emails[bob.ID] = bob.Mail
	st.emails[carol.ID] = carol.Mail
	rec := &recorder{}
	return NewService(st, rec, zap.NewNop()), st, rec
}

func TestBasket_TotalIsLive(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService()

	res, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 2}, {ProductInfoID: 102, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, AddResult{Created: 2}, res)

	basket, err := svc.Basket(ctx, bob)
	require.NoError(t, err)
	require.Len(t, basket, 1)
	assert.Equal(t, StatusBasket, basket[0].Status)
	assert.Equal(t, int64(350), basket[0].Total())

	raw, err := json.Marshal(basket[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"total_sum":350`)
	assert.Contains(t, string(raw), `"state":"basket"`)

	st.offers[101] = offer{price: 120, retailerUserID: acme.ID, accepting: true}
	basket, err = svc.Basket(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(390), basket[0].Total())
}

func TestBasket_EmptyWhenNone(t *testing.T) {
	svc, _, _ := newTestService()
	basket, err := svc.Basket(context.Background(), bob)
	require.NoError(t, err)
	assert.Empty(t, basket)
}

func TestAddItems_Upsert(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 2}})
	require.NoError(t, err)
	res, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 5}, {ProductInfoID: 201, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, AddResult{Created: 1, Updated: 1}, res)

	basket, err := svc.Basket(ctx, bob)
	require.NoError(t, err)
	require.Len(t, basket, 1)
	require.Len(t, basket[0].Items, 2)
	assert.Equal(t, int64(5*100+70), basket[0].Total())
}

func TestAddItems_UnknownProductInfoWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	res, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 999, Quantity: 1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, AddResult{}, res)

	basket, err := svc.Basket(ctx, bob)
	require.NoError(t, err)
	require.Len(t, basket, 1)
	assert.Empty(t, basket[0].Items)
}

func TestAddItems_FailFastKeepsEarlierEntries(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	res, err := svc.AddItems(ctx, bob, []ItemInput{
		{ProductInfoID: 101, Quantity: 1},
		{ProductInfoID: 102, Quantity: 0},
		{ProductInfoID: 201, Quantity: 1},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, AddResult{Created: 1}, res)

	basket, err := svc.Basket(ctx, bob)
	require.NoError(t, err)
	require.Len(t, basket[0].Items, 1)
	assert.Equal(t, int64(101), basket[0].Items[0].ProductInfo.ID)
}

func TestAddItems_RetailerNotAccepting(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.AddItems(context.Background(), bob, []ItemInput{{ProductInfoID: 301, Quantity: 1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.AddItems(context.Background(), bob, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAddItems_ConcurrentCallersShareOneBasket(t *testing.T) {
	ctx := context.Background()
	svc, st, _ := newTestService()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pi := int64(101)
			if i%2 == 1 {
				pi = 102
			}
			_, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: pi, Quantity: int64(i + 1)}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	baskets := 0
	for _, o := range st.orders {
		if o.userID == bob.ID && o.state == StatusBasket {
			baskets++
			assert.Len(t, o.items, 2)
		}
	}
	assert.Equal(t, 1, baskets)
	assert.Equal(t, 16, st.basketHit)
}

func TestUpdateItems(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	n, err := svc.UpdateItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 3}})
	require.NoError(t, err)
	assert.Zero(t, n, "no basket yet")

	_, err = svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 1}})
	require.NoError(t, err)
	n, err = svc.UpdateItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 3}, {ProductInfoID: 102, Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	basket, err := svc.Basket(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, int64(300), basket[0].Total())

	_, err = svc.UpdateItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: -1}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestRemoveItems_ReportsMissing(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	_, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 1}})
	require.NoError(t, err)
	basket, err := svc.Basket(ctx, bob)
	require.NoError(t, err)
	itemID := basket[0].Items[0].ID
	missing := itemID + 1

	res, err := svc.RemoveItems(ctx, bob, []int64{itemID, missing, itemID})
	require.NoError(t, err)
	assert.Equal(t, []int64{itemID}, res.Deleted)
	assert.Equal(t, []int64{missing}, res.NotFound)

	res, err = svc.RemoveItems(ctx, carol, []int64{itemID})
	require.NoError(t, err)
	assert.Empty(t, res.Deleted)
	assert.Equal(t, []int64{itemID}, res.NotFound)

	_, err = svc.RemoveItems(ctx, bob, []int64{0})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func basketID(t *testing.T, svc *Service, c auth.Client) int64 {
	t.Helper()
	b, err := svc.Basket(context.Background(), c)
	require.NoError(t, err)
	require.Len(t, b, 1)
	return b[0].ID
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	svc, st, rec := newTestService()
	_, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 2}})
	require.NoError(t, err)
	id := basketID(t, svc, bob)

	require.NoError(t, svc.Checkout(ctx, bob, id, contact))
	assert.Equal(t, StatusNew, st.orders[id].state)
	require.Len(t, rec.events, 1)
	assert.Equal(t, notify.OrderPlaced{OrderID: id, Email: bob.Mail}, rec.events[0])

	err = svc.Checkout(ctx, bob, id, contact)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	placed, err := svc.Orders(ctx, bob, 0)
	require.NoError(t, err)
	require.Len(t, placed, 1)
	assert.Equal(t, int64(200), placed[0].Total())
	require.NotNil(t, placed[0].Contact)
	assert.Equal(t, contact, placed[0].Contact.ID)

	_, err = svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 102, Quantity: 1}})
	require.NoError(t, err)
	assert.NotEqual(t, id, basketID(t, svc, bob), "a fresh basket after checkout")
}

func TestCheckout_ForeignContactLeavesBasket(t *testing.T) {
	ctx := context.Background()
	svc, st, rec := newTestService()
	_, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 1}})
	require.NoError(t, err)
	id := basketID(t, svc, bob)

	err = svc.Checkout(ctx, bob, id, contact+1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, StatusBasket, st.orders[id].state)
	assert.Empty(t, rec.events)

	err = svc.Checkout(ctx, carol, id, contact+1)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "order belongs to bob")
	assert.Equal(t, StatusBasket, st.orders[id].state)
}

func TestCheckout_EmptyBasket(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	_, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 1}})
	require.NoError(t, err)
	id := basketID(t, svc, bob)
	b, err := svc.Basket(ctx, bob)
	require.NoError(t, err)
	_, err = svc.RemoveItems(ctx, bob, []int64{b[0].Items[0].ID})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Checkout(ctx, bob, id, contact), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Checkout(ctx, bob, 0, contact), apperr.ErrValidation)
	assert.ErrorIs(t, svc.Checkout(ctx, bob, id, 0), apperr.ErrValidation)
}

func TestOrders_UnknownID(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Orders(context.Background(), bob, 4242)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	all, err := svc.Orders(context.Background(), bob, 0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPartnerOrders_NotifiesOnce(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := newTestService()
	_, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 1}, {ProductInfoID: 102, Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.AddItems(ctx, carol, []ItemInput{{ProductInfoID: 101, Quantity: 4}, {ProductInfoID: 201, Quantity: 1}})
	require.NoError(t, err)

	items, err := svc.PartnerOrders(ctx, acme, "")
	require.NoError(t, err)
	assert.Len(t, items, 3)
	require.Len(t, rec.events, 1)
	ev := rec.events[0].(notify.PartnerOrdersLoaded)
	assert.Equal(t, acme.Mail, ev.RetailerEmail)
	assert.ElementsMatch(t, []string{bob.Mail, carol.Mail}, ev.ClientEmails)

	items, err = svc.PartnerOrders(ctx, acme, "new")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Len(t, rec.events, 1, "empty listing sends nothing")

	_, err = svc.PartnerOrders(ctx, acme, "shipped")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestTransition(t *testing.T) {
	ctx := context.Background()
	svc, st, rec := newTestService()
	_, err := svc.AddItems(ctx, bob, []ItemInput{{ProductInfoID: 101, Quantity: 1}})
	require.NoError(t, err)
	id := basketID(t, svc, bob)

	_, err = svc.Transition(ctx, acme, id, StatusNew)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "retailers cannot move a basket")

	require.NoError(t, svc.Checkout(ctx, bob, id, contact))
	rec.events = nil

	_, err = svc.Transition(ctx, globex, id, StatusProcessing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Transition(ctx, acme, id, StatusSent)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	_, err = svc.Transition(ctx, acme, id, Status("shipped"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	tr, err := svc.Transition(ctx, acme, id, StatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, tr.From)
	assert.Equal(t, StatusProcessing, st.orders[id].state)
	require.Len(t, rec.events, 1)
	assert.Equal(t, notify.OrderStatusChanged{OrderID: id, Email: bob.Mail, Status: "processing"}, rec.events[0])

	_, err = svc.Transition(ctx, acme, id, StatusCanceled)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, acme, id, StatusProcessed)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "canceled is terminal")
}
