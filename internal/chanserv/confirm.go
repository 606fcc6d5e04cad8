package chanserv

import (
	"fmt"
	"hash/crc32"
	"strings"
)

// ConfirmationToken computes the deterministic 8-hex-digit hash used to
// guard destructive two-step operations like unregister (§5 "Suspension /
// cancellation", scenario 6): hash(upper(handle) || upper(channel)).
// CRC-32 gives a stable, easily-verified 32-bit digest without pulling in a
// cryptographic hash for a value that is not a security boundary (any
// channel owner may already perform the operation; the token only guards
// against an accidental unconfirmed invocation).
func ConfirmationToken(handle, channel string) string {
	payload := strings.ToUpper(handle) + strings.ToUpper(channel)
	sum := crc32.ChecksumIEEE([]byte(payload))
	return fmt.Sprintf("%08x", sum)
}
