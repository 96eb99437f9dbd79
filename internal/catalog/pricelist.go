package catalog

// PriceList is a parsed partner document ready to be reconciled.
type PriceList struct {
	Retailer   string
	URL        string
	Categories []Category
	Goods      []Good
}

type Good struct {
	CatID      int64
	Name       string
	CategoryID int64
	Model      string
	Price      int64
	PriceRRC   int64
	Quantity   int64
	Parameters map[string]string
}
