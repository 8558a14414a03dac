package domain

import "math"

const (
	earthRadiusKm = 6371

	// Approximate S-wave propagation speed used for arrival estimates.
	waveSpeedKmPerSec = 3.5
)

// DistanceKm computes the haversine great-circle distance between two
// coordinates in kilometers. A zero coordinate component is treated as a
// missing-value sentinel (some upstream feeds emit 0 for unknown positions),
// so any zero input short-circuits to 0 rather than producing a misleading
// distance to the null island.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if lat1 == 0 || lon1 == 0 || lat2 == 0 || lon2 == 0 {
		return 0
	}

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// Arrival is an advisory wave-arrival estimate for a given epicenter distance.
type Arrival struct {
	DistanceKm int `json:"distance_km"`
	ETASeconds int `json:"eta_seconds"`
}

// EstimateArrival converts an epicenter distance into a rough S-wave arrival
// estimate assuming constant propagation speed. Non-finite or negative input
// yields zeros; the estimate is advisory, not safety-critical.
func EstimateArrival(distKm float64) Arrival {
	if math.IsNaN(distKm) || math.IsInf(distKm, 0) || distKm < 0 {
		return Arrival{}
	}
	return Arrival{
		DistanceKm: int(math.Round(distKm)),
		ETASeconds: int(math.Round(distKm / waveSpeedKmPerSec)),
	}
}
