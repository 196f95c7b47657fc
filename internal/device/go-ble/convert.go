package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/rclink/internal/device"
)

// PeerFromAdvertisement converts an advertisement report into a registry peer.
func PeerFromAdvertisement(adv ble.Advertisement) device.Peer {
	services := adv.Services()
	uuids := make([]string, 0, len(services))
	for _, u := range services {
		uuids = append(uuids, u.String())
	}

	return device.Peer{
		Address:            adv.Addr().String(),
		Name:               adv.LocalName(),
		RSSI:               adv.RSSI(),
		Connectable:        adv.Connectable(),
		AdvertisedServices: uuids,
	}
}

// OperationsFromProperty maps GATT property bits onto device operations.
// Broadcast, signed writes and extended properties have no counterpart and are dropped.
func OperationsFromProperty(p ble.Property) device.Operations {
	var ops device.Operations
	if p&ble.CharRead != 0 {
		ops |= device.OpRead
	}
	if p&ble.CharWrite != 0 {
		ops |= device.OpWrite
	}
	if p&ble.CharWriteNR != 0 {
		ops |= device.OpWriteWithoutResponse
	}
	if p&ble.CharNotify != 0 {
		ops |= device.OpNotify
	}
	if p&ble.CharIndicate != 0 {
		ops |= device.OpIndicate
	}
	return ops
}

// CharacteristicInfo describes a discovered go-ble characteristic.
func CharacteristicInfo(c *ble.Characteristic) device.CharacteristicInfo {
	info := device.CharacteristicInfo{
		UUID:       c.UUID.String(),
		Operations: OperationsFromProperty(c.Property),
		Value:      append([]byte(nil), c.Value...),
	}
	for _, d := range c.Descriptors {
		info.Descriptors = append(info.Descriptors, d.UUID.String())
	}
	// Some stacks expose the CCCD handle without listing the descriptor.
	if c.CCCD != nil && !info.HasDescriptor(device.ClientCharacteristicConfigUUID) {
		info.Descriptors = append(info.Descriptors, device.ClientCharacteristicConfigUUID)
	}
	if len(info.Value) == 0 {
		info.Value = nil
	}
	return info
}
