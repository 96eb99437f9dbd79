// Package pricelist fetches partner price lists and reconciles them into
// the catalog.
package pricelist

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-retail-orders/internal/catalog"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Request is the typed payload of an import task.
type Request struct {
	PartnerID int64  `json:"partner_id" validate:"required,gt=0"`
	URL       string `json:"url" validate:"required,http_url"`
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type Store interface {
	ReplacePriceList(ctx context.Context, partnerID int64, pl *catalog.PriceList) (*catalog.ImportSummary, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest checks the request without touching the network. The API
// calls it before enqueueing so bad input is rejected synchronously.
func ValidateRequest(req Request) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return nil
}

type Importer struct {
	Store   Store
	Fetcher Fetcher
	Log     *zap.Logger
}

func NewImporter(store Store, fetcher Fetcher, log *zap.Logger) *Importer {
	return &Importer{Store: store, Fetcher: fetcher, Log: log}
}

// Import runs validate, fetch, parse and reconcile. The store is only
// called once the document has been fetched and parsed successfully.
func (im *Importer) Import(ctx context.Context, req Request) (*catalog.ImportSummary, error) {
	log := im.Log.With(zap.Int64("partner_id", req.PartnerID), zap.String("url", req.URL))

	if err := ValidateRequest(req); err != nil {
		log.Info("import rejected", zap.Error(err))
		return nil, err
	}

	body, err := im.Fetcher.Fetch(ctx, req.URL)
	if err != nil {
		log.Warn("price list fetch failed", zap.Error(err))
		return nil, err
	}

	pl, err := Parse(body)
	if err != nil {
		log.Warn("price list parse failed", zap.Error(err))
		return nil, err
	}

	sum, err := im.Store.ReplacePriceList(ctx, req.PartnerID, pl)
	if err != nil {
		log.Error("price list reconcile failed", zap.String("retailer", pl.Retailer), zap.Error(err))
		return nil, fmt.Errorf("reconcile %q: %w", pl.Retailer, err)
	}

	log.Info("price list imported",
		zap.String("retailer", pl.Retailer),
		zap.Int64("retailer_id", sum.RetailerID),
		zap.Int("categories", sum.Categories),
		zap.Int("product_infos", sum.ProductInfos),
		zap.Int("parameters", sum.Parameters))
	return sum, nil
}
