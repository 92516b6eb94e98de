package catalog

import (
	"strconv"

	"blockmarket/core/types"
)

const (
	EventTypeStoreCreated  = "catalog.store_created"
	EventTypeProductAdded  = "catalog.product_added"
	EventTypeProductStatus = "catalog.product_status"
	EventTypePaused        = "catalog.paused"
	EventTypeUnpaused      = "catalog.unpaused"
)

type catalogEvent struct {
	evt *types.Event
}

func (e catalogEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e catalogEvent) Event() *types.Event { return e.evt }

func newStoreCreatedEvent(s *Store) catalogEvent {
	attrs := make(map[string]string)
	if s != nil {
		attrs["id"] = strconv.FormatUint(s.ID, 10)
		attrs["owner"] = s.Owner.Hex()
		attrs["name"] = s.Name
	}
	return catalogEvent{evt: &types.Event{Type: EventTypeStoreCreated, Attributes: attrs}}
}

func newProductAddedEvent(p *Product) catalogEvent {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
		attrs["storeId"] = strconv.FormatUint(p.StoreID, 10)
		attrs["owner"] = p.Owner.Hex()
		attrs["name"] = p.Name
		attrs["price"] = p.Price.String()
	}
	return catalogEvent{evt: &types.Event{Type: EventTypeProductAdded, Attributes: attrs}}
}

func newProductStatusEvent(p *Product) catalogEvent {
	attrs := make(map[string]string)
	if p != nil {
		attrs["id"] = strconv.FormatUint(p.ID, 10)
		attrs["status"] = p.Status.String()
		if !p.Buyer.IsZero() {
			attrs["buyer"] = p.Buyer.Hex()
		}
	}
	return catalogEvent{evt: &types.Event{Type: EventTypeProductStatus, Attributes: attrs}}
}

func newPauseEvent(paused bool) catalogEvent {
	eventType := EventTypeUnpaused
	if paused {
		eventType = EventTypePaused
	}
	return catalogEvent{evt: &types.Event{Type: eventType, Attributes: map[string]string{"module": moduleName}}}
}
