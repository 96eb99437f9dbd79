package catalog

type Retailer struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	URL             string `json:"url,omitempty"`
	UserID          int64  `json:"-"`
	AcceptingOrders bool   `json:"state"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID       int64  `json:"-"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type ProductParameter struct {
	Parameter string `json:"parameter"`
	Value     string `json:"value"`
}

// ProductInfo is the purchasable unit: a product offered by one retailer
// under the retailer's catalog number.
type ProductInfo struct {
	ID         int64              `json:"id"`
	Model      string             `json:"model"`
	CatID      int64              `json:"cat_id"`
	Product    Product            `json:"product"`
	RetailerID int64              `json:"retailer"`
	Quantity   int64              `json:"quantity"`
	Price      int64              `json:"price"`
	PriceRRC   int64              `json:"price_rrc"`
	Parameters []ProductParameter `json:"product_parameters"`
}

type ProductFilter struct {
	RetailerID int64
	CategoryID int64
	Page       int // 1-based
	PageSize   int
}

func (f ProductFilter) offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// ImportSummary reports what one price-list import wrote.
type ImportSummary struct {
	RetailerID   int64 `json:"retailer_id"`
	Categories   int   `json:"categories"`
	ProductInfos int   `json:"product_infos"`
	Parameters   int   `json:"parameters"`
}
