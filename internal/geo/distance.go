// Package geo provides great-circle distance and the nearest-seed index used
// to find active ZIPs around an unassigned ZIP.
package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used for haversine distances.
const EarthRadiusMiles = 3958.8

const degToRad = math.Pi / 180

// HaversineMiles returns the great-circle distance in miles between two
// lat/lng points given in decimal degrees.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * degToRad
	phi2 := lat2 * degToRad
	dPhi := (lat2 - lat1) * degToRad
	dLambda := (lng2 - lng1) * degToRad

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	a := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	if a > 1 {
		a = 1
	}
	return EarthRadiusMiles * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// latitudeSpan is the widest latitude difference, in degrees, two points
// within radiusMiles of each other can have. Great-circle distance is never
// shorter than the meridian arc R*|dPhi|. The band is padded by a few ulps
// so a seed due north at exactly the radius survives rounding.
func latitudeSpan(radiusMiles float64) float64 {
	return radiusMiles / EarthRadiusMiles / degToRad * (1 + 1e-12)
}
