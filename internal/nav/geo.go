package nav

import "math"

const (
	earthRadiusM = 6371100
	coordScale   = 1e7
	headingScale = 1e5
)

func toRad(scaled int32) float64 {
	return float64(scaled) / coordScale * math.Pi / 180
}

// Distance returns the great-circle distance in metres between two
// positions given in 1e-7 degrees.
func Distance(lat1, lon1, lat2, lon2 int32) int32 {
	p1, l1 := toRad(lat1), toRad(lon1)
	p2, l2 := toRad(lat2), toRad(lon2)
	sLat := math.Sin((p2 - p1) / 2)
	sLon := math.Sin((l2 - l1) / 2)
	a := sLat*sLat + math.Cos(p1)*math.Cos(p2)*sLon*sLon
	return int32(math.Round(earthRadiusM * 2 * math.Asin(math.Sqrt(a))))
}

// Bearing returns the initial bearing in whole degrees [0, 360) from the
// first position to the second.
func Bearing(lat1, lon1, lat2, lon2 int32) int {
	p1, l1 := toRad(lat1), toRad(lon1)
	p2, l2 := toRad(lat2), toRad(lon2)
	dLon := l2 - l1
	y := math.Sin(dLon) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dLon)
	deg := math.Mod(math.Atan2(y, x)*180/math.Pi+360, 360)
	b := int(math.Round(deg))
	if b == 360 {
		b = 0
	}
	return b
}

// RelativeBearing folds bearing minus heading into [-180, 180].
func RelativeBearing(bearing, heading int) int {
	rel := bearing - heading
	if rel > 180 {
		rel -= 360
	}
	if rel < -180 {
		rel += 360
	}
	return rel
}

// Direction returns the bearing to (lat2, lon2) relative to the fix heading.
func (f Fix) Direction(lat2, lon2 int32) int {
	heading := int(math.Round(float64(f.Heading) / headingScale))
	return RelativeBearing(Bearing(f.Lat, f.Lon, lat2, lon2), heading)
}
