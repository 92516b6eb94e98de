package identity

import (
	"strconv"

	"blockmarket/core/types"
)

const (
	EventTypeAdminRegistered      = "identity.admin_registered"
	EventTypeStoreOwnerRegistered = "identity.store_owner_registered"
)

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

func newAdminRegisteredEvent(u *User, index uint64) registryEvent {
	return newRegistryEvent(EventTypeAdminRegistered, u, index)
}

func newStoreOwnerRegisteredEvent(u *User, index uint64) registryEvent {
	return newRegistryEvent(EventTypeStoreOwnerRegistered, u, index)
}

func newRegistryEvent(eventType string, u *User, index uint64) registryEvent {
	attrs := make(map[string]string)
	if u != nil {
		attrs["address"] = u.Address.Hex()
		attrs["name"] = u.Name
		attrs["role"] = u.Role.String()
		attrs["index"] = strconv.FormatUint(index, 10)
	}
	return registryEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}
