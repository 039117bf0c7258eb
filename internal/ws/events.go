package ws

import (
	"github.com/kiwari-pos/terminal/internal/checkout"
	"github.com/kiwari-pos/terminal/internal/enum"
	log "github.com/sirupsen/logrus"
)

// CheckoutEventType maps a checkout result to its monitor event type.
func CheckoutEventType(r checkout.Result) string {
	switch r.Outcome() {
	case "completed":
		return enum.EventCheckoutCompleted
	case "partial":
		return enum.EventCheckoutPartial
	default:
		return enum.EventCheckoutFailed
	}
}

// CheckoutListener publishes every finished checkout to its branch room.
func CheckoutListener(hub *Hub) checkout.Listener {
	return func(r checkout.Result) {
		if err := hub.Publish(r.BranchID, CheckoutEventType(r), r); err != nil {
			log.WithError(err).WithField("branch_id", r.BranchID).Warn("checkout event not published")
		}
	}
}
