package sylectus

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const listingFixture = `<html><body>
<table><tbody>
<tr>
	<td><a class="nav" onclick="promabprofile(101)">Acme MC# 12345 VF</a></td>
	<td>09/01</td>
	<td>ASAP</td>
	<td>Dallas, TX 75201<br>01/02 08:00</td>
	<td>Atlanta, GA<br>01/03 14:00</td>
	<td>&nbsp;</td>
	<td>Sprinter<br>781</td>
	<td>2<br>1,500</td>
	<td>&nbsp;</td>
	<td><input type="button" value="BID"></td>
</tr>
<tr>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
	<td>&nbsp;</td>
</tr>
<tr>
	<td><a class="nav" onclick="promabprofile(102)">Bravo Logistics MC# 9</a></td>
	<td>09/01</td>
	<td>ASAP</td>
	<td>Chicago, IL<br>01/05 09:30</td>
	<td>Denver, CO 80014<br>01/06 18:00</td>
	<td>&nbsp;</td>
	<td>Straight Truck<br>1,004</td>
	<td>4<br>8,200</td>
	<td>&nbsp;</td>
	<td><input type="button" value="BID"></td>
</tr>
</tbody></table>
</body></html>`

func TestParseBoard(t *testing.T) {
	rows, err := ParseBoard(listingFixture)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.Equal(t, "Acme MC# 12345 VF", rows[0].BrokerName)
	require.True(t, rows[0].HasBroker())
	require.Equal(t, "Dallas, TX 75201\n01/02 08:00", rows[0].OriginAndPickup)
	require.Equal(t, "Atlanta, GA\n01/03 14:00", rows[0].DestinationAndDelivery)
	require.Equal(t, "Sprinter\n781", rows[0].TruckAndMiles)
	require.Equal(t, "2\n1,500", rows[0].PiecesAndWeight)
	require.Equal(t, 0, rows[0].Index)

	// filler rows carry no broker anchor and therefore no posting
	require.False(t, rows[1].HasBroker())

	require.Equal(t, "Bravo Logistics MC# 9", rows[2].BrokerName)
	require.Equal(t, "Chicago, IL\n01/05 09:30", rows[2].OriginAndPickup)
	require.Equal(t, 2, rows[2].Index)
}

func TestParseBoardIgnoresPlainAnchors(t *testing.T) {
	// an anchor without the broker-profile onclick is not a broker name
	rows, err := ParseBoard(`<html><body><table><tbody>
<tr>
	<td><a class="nav" onclick="sortColumn(1)">Origin</a></td>
	<td></td><td></td><td></td><td></td><td></td><td></td><td></td><td></td><td></td>
</tr>
</tbody></table></body></html>`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.False(t, rows[0].HasBroker())
}

const popupFixture = `<html><body><form id="aspnetForm">
<div class="popup-body"><div class="popup-content">
<div class="popup-child left-frame"><div class="trip-info-container">
	<div>
		<div>
			<p>Contact</p>
			<p><a href="mailto:dispatch@acme.example">dispatch@acme.example</a></p>
		</div>
	</div>
	<div>
		<p>Notes: Dock high only. No partials.</p>
	</div>
</div></div>
</div></div>
</form></body></html>`

func TestExtractDetailField(t *testing.T) {
	email, err := ExtractDetailField(popupFixture, EmailSelector)
	require.NoError(t, err)
	require.Equal(t, "dispatch@acme.example", email)

	notes, err := ExtractDetailField(popupFixture, NotesSelector)
	require.NoError(t, err)
	require.Equal(t, "Notes: Dock high only. No partials.", notes)
}

func TestExtractDetailFieldMissing(t *testing.T) {
	text, err := ExtractDetailField("<html><body></body></html>", EmailSelector)
	require.NoError(t, err)
	require.Equal(t, "", text)
}

func TestExpiredText(t *testing.T) {
	require.True(t, ExpiredText("<html><body>Sorry, this order has expired.</body></html>"))
	require.True(t, ExpiredText("<html><body>The bid period has ended</body></html>"))
	require.False(t, ExpiredText(popupFixture))
}
