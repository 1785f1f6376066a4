package geo

import (
	"math"

	"cleanopt/pkg/domain"
)

// cellDegrees sizes a grid cell so a typical metro area spans roughly a
// 3x3 block of cells. At mid-latitudes one degree of latitude is ~111km; a 0.05-degree
// cell is ~5.5km on a side.
const cellDegrees = 0.05

// minLat/maxLat/minLon/maxLon bound the mapped operating region. Coordinates
// outside this box are unmapped (ZoneUnmapped).
const (
	minLat = -90.0
	maxLat = 90.0
	minLon = -180.0
	maxLon = 180.0
)

// gridWidth is the number of columns in the zone grid, used to fold a 2-D
// cell index into a single integer zone identifier.
const gridWidth = int((maxLon - minLon) / cellDegrees) + 1

// ZoneOf buckets a coordinate into a deterministic integer zone. Coordinates
// outside the mapped region return (ZoneUnmapped, false).
func ZoneOf(c domain.Coordinates) (domain.Zone, bool) {
	if !validCoordinate(c) {
		return domain.ZoneUnmapped, false
	}

	col := cellIndex(c.Lon, minLon)
	row := cellIndex(c.Lat, minLat)

	return domain.Zone(row*gridWidth + col), true
}

func validCoordinate(c domain.Coordinates) bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return false
	}
	return c.Lat >= minLat && c.Lat <= maxLat && c.Lon >= minLon && c.Lon <= maxLon
}

func cellIndex(v, min float64) int {
	return int(math.Floor((v - min) / cellDegrees))
}

// AdjacentZones returns the (up to) eight zone identifiers bordering z, in
// deterministic ascending order. z itself is never included. Unmapped zones
// have no neighbors.
func AdjacentZones(z domain.Zone) []domain.Zone {
	if z == domain.ZoneUnmapped {
		return nil
	}

	row := int(z) / gridWidth
	col := int(z) % gridWidth

	neighbors := make([]domain.Zone, 0, 8)
	for dRow := -1; dRow <= 1; dRow++ {
		for dCol := -1; dCol <= 1; dCol++ {
			if dRow == 0 && dCol == 0 {
				continue
			}
			nRow := row + dRow
			nCol := col + dCol
			if nCol < 0 || nCol >= gridWidth || nRow < 0 {
				continue
			}
			neighbors = append(neighbors, domain.Zone(nRow*gridWidth+nCol))
		}
	}
	return neighbors
}
