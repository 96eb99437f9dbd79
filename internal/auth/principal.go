// Package auth carries the authenticated caller through request contexts.
// A caller is either a Client or a Retailer; services accept the concrete
// type for the operations that role is allowed to perform.
package auth

import "context"

type Role string

const (
	RoleClient   Role = "client"
	RoleRetailer Role = "retailer"
)

func (r Role) Valid() bool { return r == RoleClient || r == RoleRetailer }

type Principal interface {
	UserID() int64
	Email() string
	Role() Role
}

// Client may keep a basket and place orders.
type Client struct {
	ID   int64
	Mail string
}

func (c Client) UserID() int64 { return c.ID }
func (c Client) Email() string { return c.Mail }
func (c Client) Role() Role    { return RoleClient }

// Retailer may import price lists and work its customers' orders.
type Retailer struct {
	ID   int64
	Mail string
}

func (r Retailer) UserID() int64 { return r.ID }
func (r Retailer) Email() string { return r.Mail }
func (r Retailer) Role() Role    { return RoleRetailer }

// NewPrincipal builds the variant matching role. Unknown roles get no capabilities.
func NewPrincipal(id int64, email string, role Role) (Principal, bool) {
	switch role {
	case RoleClient:
		return Client{ID: id, Mail: email}, true
	case RoleRetailer:
		return Retailer{ID: id, Mail: email}, true
	}
	return nil, false
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}

func ClientFrom(ctx context.Context) (Client, bool) {
	p, _ := FromContext(ctx)
	c, ok := p.(Client)
	return c, ok
}

func RetailerFrom(ctx context.Context) (Retailer, bool) {
	p, _ := FromContext(ctx)
	r, ok := p.(Retailer)
	return r, ok
}
