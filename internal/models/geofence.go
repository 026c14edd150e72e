package models

import "math"

const earthRadiusMeters = 6371000.0

// Geofence is a named circular region inside a circle
type Geofence struct {
	ID           int64     `json:"id" db:"id"`
	CircleID     int64     `json:"circle_id" db:"circle_id"`
	Name         string    `json:"name" db:"name"`
	Lat          float64   `json:"lat" db:"lat"`
	Lon          float64   `json:"lon" db:"lon"`
	RadiusMeters float64   `json:"radius_meters" db:"radius_meters"`
	Audience     *Audience `json:"audience,omitempty"`
}

// Contains reports whether the point lies within the fence radius
func (g *Geofence) Contains(lat, lon float64) bool {
	return HaversineMeters(g.Lat, g.Lon, lat, lon) <= g.RadiusMeters
}

// HaversineMeters returns the great-circle distance between two points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}
