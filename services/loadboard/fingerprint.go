package loadboard

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"loadscout-backend/lib/scrapers/sylectus"
	"loadscout-backend/lib/textutil"
)

// Fingerprint derives the posting's stable identity from broker name,
// the origin and destination city lines and the pickup-date line.
// Volatile cells (truck type, miles, pieces, weight, delivery date) are
// deliberately excluded so that repeated observations of the same
// posting hash identically.
func Fingerprint(row sylectus.RawRow) string {
	seed := fmt.Sprintf("%s-%s-%s-%s",
		strings.TrimSpace(row.BrokerName),
		textutil.Line(row.OriginAndPickup, 0),
		textutil.Line(row.DestinationAndDelivery, 0),
		textutil.Line(row.OriginAndPickup, 1),
	)
	sum := sha1.Sum([]byte(seed))
	return hex.EncodeToString(sum[:])
}
