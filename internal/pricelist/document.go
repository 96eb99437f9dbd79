package pricelist

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"gopkg.in/yaml.v3"
)

// document mirrors the partner YAML format. JSON documents parse too.
type document struct {
	Retailer   string          `yaml:"retailer"`
	URL        string          `yaml:"url"`
	Categories []categoryEntry `yaml:"categories"`
	Goods      []goodEntry     `yaml:"goods"`
}

type categoryEntry struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type goodEntry struct {
	ID         int64             `yaml:"id"`
	Name       string            `yaml:"name"`
	Category   int64             `yaml:"category"`
	Model      string            `yaml:"model"`
	Price      int64             `yaml:"price"`
	PriceRRC   int64             `yaml:"price_rrc"`
	Quantity   int64             `yaml:"quantity"`
	Parameters map[string]string `yaml:"parameters"`
}

// Parse decodes and checks a price list. Nothing is written on failure.
func Parse(data []byte) (*catalog.PriceList, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Err: errors.New("empty document")}
	}
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	pl := &catalog.PriceList{
		Retailer: strings.TrimSpace(doc.Retailer),
		URL:      strings.TrimSpace(doc.URL),
	}
	if pl.Retailer == "" {
		return nil, parseErr("retailer", "is required")
	}

	declared := make(map[int64]bool, len(doc.Categories))
	for i, c := range doc.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		name := strings.TrimSpace(c.Name)
		switch {
		case c.ID <= 0:
			return nil, parseErr(field, "id must be positive")
		case name == "":
			return nil, parseErr(field, "name is required")
		case declared[c.ID]:
			return nil, parseErr(field, "duplicate category id %d", c.ID)
		}
		declared[c.ID] = true
		pl.Categories = append(pl.Categories, catalog.Category{ID: c.ID, Name: name})
	}

	type offerKey struct {
		name     string
		category int64
		id       int64
	}
	seen := make(map[offerKey]bool, len(doc.Goods))
	for i, g := range doc.Goods {
		field := fmt.Sprintf("goods[%d]", i)
		name := strings.TrimSpace(g.Name)
		switch {
		case g.ID <= 0:
			return nil, parseErr(field, "id must be positive")
		case name == "":
			return nil, parseErr(field, "name is required")
		case !declared[g.Category]:
			return nil, parseErr(field, "category %d is not declared in categories", g.Category)
		case g.Price < 0 || g.PriceRRC < 0:
			return nil, parseErr(field, "prices must not be negative")
		case g.Quantity < 0:
			return nil, parseErr(field, "quantity must not be negative")
		}
		k := offerKey{name: name, category: g.Category, id: g.ID}
		if seen[k] {
			return nil, parseErr(field, "duplicate good %q with id %d", name, g.ID)
		}
		seen[k] = true

		params := make(map[string]string, len(g.Parameters))
		for pname, v := range g.Parameters {
			pname = strings.TrimSpace(pname)
			if pname == "" {
				return nil, parseErr(field, "parameter name is empty")
			}
			params[pname] = v
		}
		pl.Goods = append(pl.Goods, catalog.Good{
			CatID:      g.ID,
			Name:       name,
			CategoryID: g.Category,
			Model:      g.Model,
			Price:      g.Price,
			PriceRRC:   g.PriceRRC,
			Quantity:   g.Quantity,
			Parameters: params,
		})
	}
	return pl, nil
}
