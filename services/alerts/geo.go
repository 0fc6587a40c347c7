package alerts

import "math"

// earthRadiusMiles is the mean Earth radius used for great-circle
// distances.
const earthRadiusMiles = 3958.8

// DistanceMiles returns the haversine great-circle distance between two
// coordinates, in miles.
func DistanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}
