package geo

import "math"

// earthRadiusMiles is the mean Earth radius used by the haversine formula.
const earthRadiusMiles = 3956

// Distance returns the great-circle distance in miles between two
// coordinate pairs. The second return value is false when either pair is
// absent. Exact (0,0) is treated as "no coordinate", which trades a point
// in the Gulf of Guinea for not ranking unlocated restaurants.
func Distance(lat1, lon1, lat2, lon2 float64) (float64, bool) {
	if (lat1 == 0 && lon1 == 0) || (lat2 == 0 && lon2 == 0) {
		return 0, false
	}

	rLat1 := lat1 * math.Pi / 180
	rLat2 := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return c * earthRadiusMiles, true
}

// RoundMiles rounds a distance to 2 decimal places for display. Ranking
// always uses the unrounded value to avoid tie artifacts.
func RoundMiles(miles float64) float64 {
	return math.Round(miles*100) / 100
}
