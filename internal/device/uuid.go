package device

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ClientCharacteristicConfigUUID is the notification-configuration descriptor (0x2902).
const ClientCharacteristicConfigUUID = "2902"

// EnableNotificationValue is written to 0x2902 to turn notifications on.
var EnableNotificationValue = []byte{0x01, 0x00}

// bluetoothBaseSuffix is the tail of the Bluetooth SIG base UUID, normalized.
const bluetoothBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the internal format (lowercase, no dashes).
// It strips a 0x prefix and braces, and reduces Bluetooth SIG base UUIDs
// (0000xxxx-0000-1000-8000-00805f9b34fb) to their 16-bit short form (xxxx).
func NormalizeUUID(u string) string {
	s := strings.ToLower(strings.TrimSpace(u))
	s = strings.Trim(s, "{}")
	s = strings.TrimPrefix(s, "0x")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) == 32 && strings.HasPrefix(s, "0000") && strings.HasSuffix(s, bluetoothBaseSuffix) {
		return s[4:8]
	}
	return s
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal format.
func NormalizeUUIDs(uuids []string) []string {
	normalized := make([]string, len(uuids))
	for i, u := range uuids {
		normalized[i] = NormalizeUUID(u)
	}
	return normalized
}

// SameUUID reports whether two UUIDs name the same attribute regardless of formatting.
func SameUUID(a, b string) bool {
	return NormalizeUUID(a) == NormalizeUUID(b)
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
func ShortenUUID(u string) string {
	if len(u) > 8 {
		return u[:8]
	}
	return u
}

// ValidateUUID validates that UUID strings are non-empty and well-formed.
// 16-bit and 32-bit short forms must be hex; anything longer must parse as a
// 128-bit UUID. Returns normalized UUID strings.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, u := range uuids {
		if strings.TrimSpace(u) == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		normalized := NormalizeUUID(u)
		switch len(normalized) {
		case 4, 8:
			if _, err := hex.DecodeString(normalized); err != nil {
				return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, u)
			}
		default:
			if _, err := uuid.Parse(strings.Trim(strings.TrimSpace(u), "{}")); err != nil {
				return nil, fmt.Errorf("invalid UUID format at index %d: %s: %w", i, u, err)
			}
		}
		result = append(result, normalized)
	}
	return result, nil
}
