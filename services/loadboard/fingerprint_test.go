package loadboard

import (
	"testing"

	"loadscout-backend/lib/scrapers/sylectus"

	"github.com/stretchr/testify/require"
)

func TestFingerprintStability(t *testing.T) {
	first := sylectus.RawRow{
		BrokerName:             "Acme MC# 12345 VF",
		OriginAndPickup:        "Dallas, TX 75201\n01/02 08:00",
		DestinationAndDelivery: "Atlanta, GA\n01/03 14:00",
		TruckAndMiles:          "Sprinter\n781",
		PiecesAndWeight:        "2\n1,500",
	}
	// same posting, incidental differences in volatile cells and
	// whitespace elsewhere in the row
	second := sylectus.RawRow{
		BrokerName:             "Acme MC# 12345 VF",
		OriginAndPickup:        "Dallas, TX 75201 \n 01/02 08:00",
		DestinationAndDelivery: "Atlanta, GA\n01/03 16:30",
		TruckAndMiles:          "Large Straight\n781",
		PiecesAndWeight:        "3\n2,100",
	}

	require.Equal(t, Fingerprint(first), Fingerprint(second))
}

func TestFingerprintUniqueness(t *testing.T) {
	base := sylectus.RawRow{
		BrokerName:             "Acme MC# 12345 VF",
		OriginAndPickup:        "Dallas, TX 75201\n01/02 08:00",
		DestinationAndDelivery: "Atlanta, GA\n01/03 14:00",
	}

	otherBroker := base
	otherBroker.BrokerName = "Bravo Logistics MC# 9"

	otherOrigin := base
	otherOrigin.OriginAndPickup = "Houston, TX 77001\n01/02 08:00"

	otherPickup := base
	otherPickup.OriginAndPickup = "Dallas, TX 75201\n01/04 08:00"

	id := Fingerprint(base)
	require.NotEqual(t, id, Fingerprint(otherBroker))
	require.NotEqual(t, id, Fingerprint(otherOrigin))
	require.NotEqual(t, id, Fingerprint(otherPickup))
}

func TestFingerprintIsHex(t *testing.T) {
	id := Fingerprint(sylectus.RawRow{BrokerName: "Acme"})
	require.Len(t, id, 40)
}
