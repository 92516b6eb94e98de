package escrow

import (
	"strconv"

	"blockmarket/core/types"
)

const (
	EventTypePurchased = "escrow.purchased"
	EventTypeVoteCast  = "escrow.vote_cast"
	EventTypeReleased  = "escrow.released"
	EventTypeRefunded  = "escrow.refunded"
	EventTypeWithdrawn = "escrow.withdrawn"
	EventTypePaused    = "escrow.paused"
	EventTypeUnpaused  = "escrow.unpaused"
)

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

func newPurchasedEvent(esc *Escrow) escrowEvent { return newEscrowEvent(EventTypePurchased, esc) }
func newReleasedEvent(esc *Escrow) escrowEvent  { return newEscrowEvent(EventTypeReleased, esc) }
func newRefundedEvent(esc *Escrow) escrowEvent  { return newEscrowEvent(EventTypeRefunded, esc) }
func newWithdrawnEvent(esc *Escrow) escrowEvent { return newEscrowEvent(EventTypeWithdrawn, esc) }

func newVoteCastEvent(esc *Escrow, voter types.Address, kind string) escrowEvent {
	evt := newEscrowEvent(EventTypeVoteCast, esc)
	evt.evt.Attributes["voter"] = voter.Hex()
	evt.evt.Attributes["vote"] = kind
	return evt
}

func newEscrowEvent(eventType string, esc *Escrow) escrowEvent {
	attrs := make(map[string]string)
	if esc != nil {
		attrs["productId"] = strconv.FormatUint(esc.ProductID, 10)
		attrs["buyer"] = esc.Buyer.Hex()
		attrs["seller"] = esc.Seller.Hex()
		attrs["arbiter"] = esc.Arbiter.Hex()
		attrs["amount"] = esc.Amount.String()
		attrs["releaseVotes"] = strconv.Itoa(len(esc.ReleaseVotes))
		attrs["refundVotes"] = strconv.Itoa(len(esc.RefundVotes))
		attrs["disbursed"] = strconv.FormatBool(esc.Disbursed)
	}
	return escrowEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}

func newPauseEvent(paused bool) escrowEvent {
	eventType := EventTypeUnpaused
	if paused {
		eventType = EventTypePaused
	}
	return escrowEvent{evt: &types.Event{Type: eventType, Attributes: map[string]string{"module": moduleName}}}
}
