package notify

type Kind string

const (
	KindUserRegistered      Kind = "user.registered"
	KindOrderPlaced         Kind = "order.placed"
	KindOrderStatusChanged  Kind = "order.status_changed"
	KindPartnerOrdersLoaded Kind = "partner.orders_loaded"
	KindPasswordReset       Kind = "user.password_reset_requested"
)

type Event interface {
	Kind() Kind
}

type UserRegistered struct {
	UserID       int64
	Email        string
	ConfirmToken string
}

func (UserRegistered) Kind() Kind { return KindUserRegistered }

type OrderPlaced struct {
	OrderID int64
	Email   string
}

func (OrderPlaced) Kind() Kind { return KindOrderPlaced }

type OrderStatusChanged struct {
	OrderID int64
	Email   string
	Status  string
}

func (OrderStatusChanged) Kind() Kind { return KindOrderStatusChanged }

// PartnerOrdersLoaded is raised when a retailer pulls a non-empty order listing.
type PartnerOrdersLoaded struct {
	RetailerEmail string
	ClientEmails  []string
}

func (PartnerOrdersLoaded) Kind() Kind { return KindPartnerOrdersLoaded }

type PasswordResetRequested struct {
	UserID int64
	Email  string
	Token  string
}

func (PasswordResetRequested) Kind() Kind { return KindPasswordReset }
