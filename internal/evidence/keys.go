package evidence

import (
	"fmt"
	"strings"
)

// Prefix namespaces every evidence store key.
const Prefix = "fe_"

// Category is the kind of object an evidence store belongs to.
type Category string

// Store categories.
const (
	CategoryDevice   Category = "device"
	CategoryPlatform Category = "platform"
	CategoryLAN      Category = "lan"
)

// Channel is a platform sub-channel. Only ChannelPollPush is allocated
// today; the others are reserved in the key space.
type Channel string

// Platform sub-channels.
const (
	ChannelPollPush   Channel = "poll_push"
	ChannelAutomation Channel = "automation"
	ChannelConnector  Channel = "connector"
)

// Category tags. Every tag has the same length and ends in "_", so no tag
// is a prefix of another and a key decodes to exactly one object.
const (
	tagDevice     = "dev_"
	tagLAN        = "lan_"
	tagPollPush   = "ppp_"
	tagAutomation = "aut_"
	tagConnector  = "con_"
)

type tagInfo struct {
	category Category
	channel  Channel
}

var tags = map[string]tagInfo{
	tagDevice:     {category: CategoryDevice},
	tagLAN:        {category: CategoryLAN},
	tagPollPush:   {category: CategoryPlatform, channel: ChannelPollPush},
	tagAutomation: {category: CategoryPlatform, channel: ChannelAutomation},
	tagConnector:  {category: CategoryPlatform, channel: ChannelConnector},
}

// ReservedChannels are the platform sub-channels whose keys are reserved
// but not allocated.
var ReservedChannels = []Channel{ChannelAutomation, ChannelConnector}

// DeviceKey returns the store key for a device.
func DeviceKey(deviceID string) string {
	return Prefix + tagDevice + deviceID
}

// LANKey returns the store key for a LAN component.
func LANKey(componentID string) string {
	return Prefix + tagLAN + componentID
}

// PlatformKey returns the store key for one sub-channel of a platform.
func PlatformKey(ch Channel, platform string) (string, error) {
	var tag string
	switch ch {
	case ChannelPollPush:
		tag = tagPollPush
	case ChannelAutomation:
		tag = tagAutomation
	case ChannelConnector:
		tag = tagConnector
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	return Prefix + tag + platform, nil
}

// KeyInfo is a decoded store key.
type KeyInfo struct {
	Category Category
	Channel  Channel
	ObjectID string
}

// ParseKey decodes a store key produced by DeviceKey, LANKey or
// PlatformKey.
func ParseKey(key string) (KeyInfo, error) {
	rest, ok := strings.CutPrefix(key, Prefix)
	if !ok || len(rest) < len(tagDevice) {
		return KeyInfo{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	info, ok := tags[rest[:len(tagDevice)]]
	if !ok {
		return KeyInfo{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	id := rest[len(tagDevice):]
	if id == "" {
		return KeyInfo{}, fmt.Errorf("%w: %q has no object id", ErrInvalidKey, key)
	}

	return KeyInfo{Category: info.category, Channel: info.channel, ObjectID: id}, nil
}
