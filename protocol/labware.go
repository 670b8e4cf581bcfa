package protocol

import "strings"

// Coord is a labware well/tube coordinate: a row letter followed by a column
// number ("A1", "H12"). Coordinates are pure values; validity depends on the
// labware they address.
type Coord string

// Control sample sentinels. The normalizer sample sheet may name these as
// aspirate locations; they resolve to the configured control tubes rather
// than a rack position.
const (
	ControlSource1 Coord = "CNTL1"
	ControlSource2 Coord = "CNTL2"
)

// NormalizeCoord upper-cases the coordinate and strips a leading zero from
// the column part ("b07" -> "B7"). Idempotent for every valid coordinate.
func NormalizeCoord(c Coord) Coord {
	s := strings.ToUpper(string(c))
	if len(s) >= 3 && s[1] == '0' {
		s = s[:1] + s[2:]
	}
	return Coord(s)
}

// parseCoord splits a coordinate into row letter and column number.
// Returns ok=false for anything that is not letter-then-digits with no
// leading zero.
func parseCoord(c Coord) (row byte, col int, ok bool) {
	s := string(c)
	if len(s) < 2 {
		return 0, 0, false
	}
	row = s[0]
	if row < 'A' || row > 'Z' {
		return 0, 0, false
	}
	if s[1] == '0' {
		return 0, 0, false
	}
	for i := 1; i < len(s); i++ {
		d := s[i]
		if d < '0' || d > '9' {
			return 0, 0, false
		}
		col = col*10 + int(d-'0')
	}
	return row, col, true
}

// ValidPlateCoord reports whether c addresses a 96-well plate (rows A-H,
// columns 1-12).
func ValidPlateCoord(c Coord) bool {
	row, col, ok := parseCoord(c)
	return ok && row >= 'A' && row <= 'H' && col >= 1 && col <= 12
}

// ValidRackCoord reports whether c addresses a 24-position tube rack
// (rows A-D, columns 1-6).
func ValidRackCoord(c Coord) bool {
	row, col, ok := parseCoord(c)
	return ok && row >= 'A' && row <= 'D' && col >= 1 && col <= 6
}

// Location is a physical well or tube the driver can address: a labware
// identity plus a coordinate on it.
type Location struct {
	Labware string
	Well    Coord
}

func (l Location) String() string {
	return l.Labware + "[" + string(l.Well) + "]"
}
