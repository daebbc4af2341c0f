package domain

import "math"

// EarthRadius is the spherical radius in metres used for transposition.
// It is the WGS-84 semi-major axis, not a mean radius.
const EarthRadius = 6_378_137.0

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }

// Distance returns the great-circle distance in metres from a to b.
func Distance(a, b Point) float64 {
	phi1, phi2 := radians(a.Lat), radians(b.Lat)
	dPhi := radians(b.Lat - a.Lat)
	dLambda := radians(b.Lon - a.Lon)

	h := math.Pow(math.Sin(dPhi/2), 2) + math.Cos(phi1)*math.Cos(phi2)*math.Pow(math.Sin(dLambda/2), 2)
	// Rounding can push h slightly outside [0, 1], and sqrt(1-h) then goes NaN.
	h = math.Max(0, math.Min(1, h))

	return EarthRadius * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Bearing returns the initial bearing in degrees [0, 360) from a to b.
func Bearing(a, b Point) float64 {
	phi1, phi2 := radians(a.Lat), radians(b.Lat)
	dLambda := radians(b.Lon - a.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	return math.Mod(degrees(math.Atan2(y, x))+360, 360)
}

// Destination applies a bearing (degrees) and distance (metres) to from.
func Destination(from Point, bearing, distance float64) Point {
	phi := radians(from.Lat)
	lambda := radians(from.Lon)
	theta := radians(bearing)
	delta := distance / EarthRadius

	phiOut := math.Asin(math.Sin(phi)*math.Cos(delta) + math.Cos(phi)*math.Sin(delta)*math.Cos(theta))
	lambdaOut := lambda + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi),
		math.Cos(delta)-math.Sin(phi)*math.Sin(phiOut),
	)
	return Point{Lat: degrees(phiOut), Lon: degrees(lambdaOut)}
}

// MovePoint keeps p's range and bearing from origin and re-applies them at dest.
func MovePoint(p, origin, dest Point) Point {
	if origin == dest {
		return p
	}
	return Destination(dest, Bearing(origin, p), Distance(origin, p))
}

// Transposer maps overlay coordinates into another radar's frame of reference.
type Transposer interface {
	Transpose(p Point) Point
}

// Transposition relocates features from Origin to Dest. A nil Dest is the
// identity transform.
type Transposition struct {
	Origin Point
	Dest   *Point
}

// Active reports whether coordinates will actually move.
func (t Transposition) Active() bool {
	return t.Dest != nil
}

// Transpose implements Transposer.
func (t Transposition) Transpose(p Point) Point {
	if t.Dest == nil {
		return p
	}
	return MovePoint(p, t.Origin, *t.Dest)
}
