// Package notify delivers a human readable summary of every new order to the
// shop's chat channel.
//
// Delivery is best effort. Dispatch never blocks the caller and never reports
// failure back to it; a failed or dropped notification is logged and counted,
// and is not retried.
package notify

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/models"
	"storefront/internal/regions"
)

// Sender delivers one order summary. Senders may block; they run on the
// dispatcher's workers, never on the request path.
type Sender interface {
	Send(ctx context.Context, order models.Order) error
}

type SenderFunc func(ctx context.Context, order models.Order) error

func (f SenderFunc) Send(ctx context.Context, order models.Order) error { return f(ctx, order) }

// Summary renders the chat message for an order.
func Summary(o models.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "🛒 Nouvelle commande %s\n\n", o.OrderNumber)

	if o.Region != nil {
		fmt.Fprintf(&b, "Wilaya: %s\n", regions.Label(*o.Region))
	}
	fmt.Fprintf(&b, "Client: %s\n", strings.TrimSpace(o.CustomerName()))
	fmt.Fprintf(&b, "Téléphone: %s\n", o.GuestPhone)
	if o.GuestEmail != "" {
		fmt.Fprintf(&b, "Email: %s\n", o.GuestEmail)
	}

	delivery := []string{o.Commune}
	if o.DeliveryAddress != "" {
		delivery = append(delivery, o.DeliveryAddress)
	}
	if o.PostalCode != "" {
		delivery = append(delivery, o.PostalCode)
	}
	fmt.Fprintf(&b, "Livraison: %s\n", strings.Join(delivery, ", "))

	b.WriteString("\nArticles:\n")
	for _, item := range o.Items {
		fmt.Fprintf(&b, "- %s × %d = %s DA\n", item.Name, item.Quantity, item.LineTotal.StringFixed(2))
	}

	fmt.Fprintf(&b, "\nSous-total: %s DA\n", o.Subtotal.StringFixed(2))
	fmt.Fprintf(&b, "Total: %s DA\n", o.Total.StringFixed(2))
	fmt.Fprintf(&b, "Paiement: %s\n", o.PaymentMethod.Label())

	receipt := "non"
	if o.PaymentReceipt != "" {
		receipt = "oui"
	}
	fmt.Fprintf(&b, "Reçu joint: %s\n", receipt)

	if o.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", o.Notes)
	}
	return b.String()
}

// forwardsReceipt reports whether the receipt image goes out as a second
// message. Capital orders are paid on delivery and never carry one.
func forwardsReceipt(o models.Order) bool {
	return o.PaymentReceipt != "" && o.Region != nil && !o.Region.IsCapital
}
