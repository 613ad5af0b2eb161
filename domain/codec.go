package domain

import (
	"encoding/json"
)

// The codec converts events to and from their persisted (name, payload) form.
// Decoding an unregistered name is fatal: an unknown fact in a stream means
// the deployed binary is older than its data, and replaying past it would
// silently corrupt state.

func EncodeCustomerEvent(event CustomerEvent) (string, []byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", nil, WrapError(ErrCodeInternal, "encode customer event", err)
	}
	return event.EventName(), payload, nil
}

func DecodeCustomerEvent(name string, payload []byte) (CustomerEvent, error) {
	var event CustomerEvent
	switch name {
	case CustomerCreatedName:
		event = &CustomerCreated{}
	case CustomerNameChangedName:
		event = &CustomerNameChanged{}
	case CustomerPhoneChangedName:
		event = &CustomerPhoneChanged{}
	case CustomerAddressChangedName:
		event = &CustomerAddressChanged{}
	case CustomerRoleChangedName:
		event = &CustomerRoleChanged{}
	case CustomerProductAddedName:
		event = &CustomerProductAdded{}
	case CustomerProductRemovedName:
		event = &CustomerProductRemoved{}
	case CustomerOrderAddedName:
		event = &CustomerOrderAdded{}
	case CustomerOrderRemovedName:
		event = &CustomerOrderRemoved{}
	case CustomerActivatedName:
		event = &CustomerActivated{}
	case CustomerDeactivatedName:
		event = &CustomerDeactivated{}
	case CustomerDeletedName:
		event = &CustomerDeleted{}
	case CustomerRestoredName:
		event = &CustomerRestored{}
	default:
		return nil, WrapError(ErrCodeInternal, "unknown customer event "+name, ErrUnknownEvent)
	}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, WrapError(ErrCodeInternal, "decode customer event "+name, err)
	}
	return event, nil
}

func EncodeProductEvent(event ProductEvent) (string, []byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", nil, WrapError(ErrCodeInternal, "encode product event", err)
	}
	return event.EventName(), payload, nil
}

func DecodeProductEvent(name string, payload []byte) (ProductEvent, error) {
	var event ProductEvent
	switch name {
	case ProductCreatedName:
		event = &ProductCreated{}
	case ProductDetailsChangedName:
		event = &ProductDetailsChanged{}
	case ProductOwnerChangedName:
		event = &ProductOwnerChanged{}
	case ProductDealerChangedName:
		event = &ProductDealerChanged{}
	case ProductOrderAddedName:
		event = &ProductOrderAdded{}
	case ProductOrderRemovedName:
		event = &ProductOrderRemoved{}
	case ProductPurchaseChangedName:
		event = &ProductPurchaseChanged{}
	case ProductUnrepairableName:
		event = &ProductMarkedUnrepairable{}
	case ProductActivatedName:
		event = &ProductActivated{}
	case ProductDeactivatedName:
		event = &ProductDeactivated{}
	case ProductDeletedName:
		event = &ProductDeleted{}
	case ProductRestoredName:
		event = &ProductRestored{}
	default:
		return nil, WrapError(ErrCodeInternal, "unknown product event "+name, ErrUnknownEvent)
	}
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, WrapError(ErrCodeInternal, "decode product event "+name, err)
	}
	return event, nil
}
