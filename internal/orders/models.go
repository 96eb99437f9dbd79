package orders

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-retail-orders/internal/users"
)

type Order struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"-"`
	Status    Status         `json:"state"`
	CreatedAt time.Time      `json:"date"`
	Contact   *users.Contact `json:"contact"`
	Items     []OrderItem    `json:"ordered_items"`
}

// Total is the live sum of quantity x current price over the items.
func (o *Order) Total() int64 {
	var total int64
	for _, it := range o.Items {
		total += it.Quantity * it.ProductInfo.Price
	}
	return total
}

func (o Order) MarshalJSON() ([]byte, error) {
	type alias Order
	return json.Marshal(struct {
		alias
		TotalSum int64 `json:"total_sum"`
	}{alias(o), o.Total()})
}

type OrderItem struct {
	ID          int64           `json:"id"`
	Quantity    int64           `json:"quantity"`
	ProductInfo ItemProductInfo `json:"product_info"`
}

// ItemProductInfo is the offer an order line points at, as it is now.
type ItemProductInfo struct {
	ID         int64  `json:"id"`
	Model      string `json:"model"`
	CatID      int64  `json:"cat_id"`
	Product    string `json:"product"`
	Category   string `json:"category"`
	RetailerID int64  `json:"retailer"`
	Price      int64  `json:"price"`
	PriceRRC   int64  `json:"price_rrc"`
}

// ItemInput is one entry of a basket add or update batch.
type ItemInput struct {
	ProductInfoID int64 `json:"product_info"`
	Quantity      int64 `json:"quantity"`
}

type AddResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

type RemoveResult struct {
	Deleted  []int64 `json:"deleted"`
	NotFound []int64 `json:"not_found"`
}

// PartnerOrderItem is an order line that references one of the retailer's offers.
type PartnerOrderItem struct {
	ID          int64           `json:"id"`
	Quantity    int64           `json:"quantity"`
	ProductInfo ItemProductInfo `json:"product_info"`
	Order       PartnerOrder    `json:"order"`
	ClientEmail string          `json:"-"`
}

type PartnerOrder struct {
	ID      int64          `json:"id"`
	Status  Status         `json:"state"`
	Contact *users.Contact `json:"contact"`
}

// Transition reports a state change made by a retailer.
type Transition struct {
	OrderID     int64
	From        Status
	To          Status
	ClientEmail string
}

type ProductAvailability struct {
	Exists          bool
	AcceptingOrders bool
}
