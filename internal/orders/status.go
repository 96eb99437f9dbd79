package orders

import "github.com/ariefcatur/go-retail-orders/internal/apperr"

type Status string

const (
	StatusBasket     Status = "basket"
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusConfirmed  Status = "confirmed"
	StatusAssembled  Status = "assembled"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusCanceled   Status = "canceled"
)

// Statuses lists every state in lifecycle order.
var Statuses = []Status{
	StatusBasket, StatusNew, StatusProcessing, StatusProcessed, StatusConfirmed,
	StatusAssembled, StatusSent, StatusDelivered, StatusCanceled,
}

// The chain only moves forward. Any placed order that is not finished can
// be canceled; delivered and canceled are terminal.
var validNext = map[Status]map[Status]bool{
	StatusBasket:     {StatusNew: true},
	StatusNew:        {StatusProcessing: true, StatusCanceled: true},
	StatusProcessing: {StatusProcessed: true, StatusCanceled: true},
	StatusProcessed:  {StatusConfirmed: true, StatusCanceled: true},
	StatusConfirmed:  {StatusAssembled: true, StatusCanceled: true},
	StatusAssembled:  {StatusSent: true, StatusCanceled: true},
	StatusSent:       {StatusDelivered: true, StatusCanceled: true},
	StatusDelivered:  {},
	StatusCanceled:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(validNext[s]) == 0
}

// StateFilter selects orders by state for a retailer's order listing.
type StateFilter struct {
	States []Status
}

// ParseStateFilter accepts "" (baskets), "all", or a single state name.
func ParseStateFilter(raw string) (StateFilter, error) {
	switch raw {
	case "":
		return StateFilter{States: []Status{StatusBasket}}, nil
	case "all":
		return StateFilter{States: append([]Status(nil), Statuses...)}, nil
	}
	s := Status(raw)
	if !s.Valid() {
		return StateFilter{}, apperr.Validation("invalid state_order value %q", raw)
	}
	return StateFilter{States: []Status{s}}, nil
}

func (f StateFilter) strings() []string {
	out := make([]string, len(f.States))
	for i, s := range f.States {
		out[i] = string(s)
	}
	return out
}
