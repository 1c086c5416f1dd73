// README: Shared value objects used across modules.
package types

// ID identifies a record (uuid string in storage).
type ID string

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}
