package loadboard

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"loadscout-backend/lib/scrapers/sylectus"
	"loadscout-backend/lib/textutil"
	"loadscout-backend/services/store"
)

var (
	stateZipRegex = regexp.MustCompile(`^([A-Z]{2})\s*(\d{5}(?:-\d{4})?)?\s*$`)
	mcNumberRegex = regexp.MustCompile(`(?i)\s*mc#\s*\d+`)
	vfSuffixRegex = regexp.MustCompile(`(?i)\s*vf$`)
)

// parsePlace splits a "City, ST 12345" line into its parts. A second
// segment that does not look like a state/zip pair is kept verbatim as
// the state, matching how the portal renders Canadian provinces.
func parsePlace(line string) store.Place {
	if line == "" {
		return store.Place{}
	}
	parts := strings.SplitN(line, ",", 2)
	place := store.Place{City: strings.TrimSpace(parts[0])}
	if len(parts) < 2 {
		return place
	}

	stateZip := strings.TrimSpace(parts[1])
	if m := stateZipRegex.FindStringSubmatch(stateZip); m != nil {
		place.State = m[1]
		place.Zip = m[2]
	} else {
		place.State = stateZip
	}
	return place
}

// cleanBrokerName strips the MC number and the trailing "VF" marker off
// a broker anchor.
func cleanBrokerName(name string) string {
	name = mcNumberRegex.ReplaceAllString(name, "")
	name = vfSuffixRegex.ReplaceAllString(name, "")
	return textutil.CollapseWhitespace(name)
}

func parseInt(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// loadFromRow builds a full posting from a freshly detail-extracted row.
func loadFromRow(row sylectus.RawRow, sourceID, brokerEmail, brokerNotes string) store.Load {
	pickup := textutil.Line(row.OriginAndPickup, 1)
	if pickup == "" {
		pickup = sylectus.NotAvailable
	}
	delivery := textutil.Line(row.DestinationAndDelivery, 1)
	if delivery == "" {
		delivery = sylectus.NotAvailable
	}

	return store.Load{
		SourceID:         sourceID,
		Origin:           parsePlace(textutil.Line(row.OriginAndPickup, 0)),
		Destination:      parsePlace(textutil.Line(row.DestinationAndDelivery, 0)),
		PickupDate:       pickup,
		DeliveryDateTime: delivery,
		TruckType:        textutil.Line(row.TruckAndMiles, 0),
		Miles:            parseInt(textutil.Line(row.TruckAndMiles, 1)),
		Pieces:           parseInt(textutil.Line(row.PiecesAndWeight, 0)),
		Weight:           parseInt(textutil.Line(row.PiecesAndWeight, 1)),
		BrokerName:       cleanBrokerName(row.BrokerName),
		BrokerEmail:      brokerEmail,
		BrokerNotes:      brokerNotes,
	}
}

// loadFromCached reuses a persisted posting's fields verbatim for a
// cache hit. The row ID and timestamps are dropped so the copy flows
// through the synchronizer like any other observation.
func loadFromCached(cached store.Load) store.Load {
	cached.ID = 0
	cached.CreatedAt = time.Time{}
	cached.UpdatedAt = time.Time{}
	return cached
}
