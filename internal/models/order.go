package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCanceled   OrderStatus = "CANCELED"
	OrderStatusReturned   OrderStatus = "RETURNED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCanceled, OrderStatusReturned:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
	PaymentCCP            PaymentMethod = "CCP"
	PaymentBaridiMob      PaymentMethod = "BARIDIMOB"
	PaymentViber          PaymentMethod = "VIBER"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentCCP, PaymentBaridiMob, PaymentViber:
		return true
	}
	return false
}

// Label is the human readable name used in notifications.
func (m PaymentMethod) Label() string {
	switch m {
	case PaymentCashOnDelivery:
		return "Paiement à la livraison"
	case PaymentCCP:
		return "Virement CCP"
	case PaymentBaridiMob:
		return "BaridiMob"
	case PaymentViber:
		return "Reçu via Viber"
	}
	return string(m)
}

// OrderItem is a line item. Name, UnitPrice and LineTotal are frozen when the
// order is created.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal    `bson:"unitPrice" json:"unitPrice"`
	LineTotal decimal.Decimal    `bson:"lineTotal" json:"lineTotal"`
}

type Order struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	OrderNumber string              `bson:"orderNumber" json:"orderNumber"`
	UserID      *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`

	GuestFirstName string `bson:"guestFirstName" json:"guestFirstName"`
	GuestLastName  string `bson:"guestLastName" json:"guestLastName"`
	GuestPhone     string `bson:"guestPhone" json:"guestPhone"`
	GuestEmail     string `bson:"guestEmail,omitempty" json:"guestEmail,omitempty"`

	RegionID        primitive.ObjectID `bson:"regionId" json:"regionId"`
	Region          *Region            `bson:"-" json:"region,omitempty"`
	Commune         string             `bson:"commune" json:"commune"`
	DeliveryAddress string             `bson:"deliveryAddress,omitempty" json:"deliveryAddress,omitempty"`
	PostalCode      string             `bson:"postalCode,omitempty" json:"postalCode,omitempty"`

	Items        []OrderItem     `bson:"items" json:"items"`
	Subtotal     decimal.Decimal `bson:"subtotal" json:"subtotal"`
	ShippingCost decimal.Decimal `bson:"shippingCost" json:"shippingCost"`
	Total        decimal.Decimal `bson:"total" json:"total"`

	Status         OrderStatus   `bson:"status" json:"status"`
	PaymentMethod  PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	PaymentReceipt string        `bson:"paymentReceipt,omitempty" json:"paymentReceipt,omitempty"`

	Notes       string `bson:"notes,omitempty" json:"notes,omitempty"`
	AdminNotes  string `bson:"adminNotes,omitempty" json:"adminNotes,omitempty"`
	ViberSent   bool   `bson:"viberSent" json:"viberSent"`
	ViberNumber string `bson:"viberNumber,omitempty" json:"viberNumber,omitempty"`

	CreatedAt   time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updatedAt" json:"updatedAt"`
	ShippedAt   *time.Time `bson:"shippedAt,omitempty" json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	CanceledAt  *time.Time `bson:"canceledAt,omitempty" json:"canceledAt,omitempty"`
}

func (o Order) CustomerName() string {
	return o.GuestFirstName + " " + o.GuestLastName
}
