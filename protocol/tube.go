package protocol

// TubeClass is one of the three reservoir tube geometries, carrying the
// constants that drive the height/volume decay model. Heights are mm above
// the tube bottom, volumes are µl.
type TubeClass struct {
	Name       string  // token as written in the parameter sheet, e.g. "15 ml"
	Breakpoint float64 // µl; below this the tube is too shallow to model and height pins to the floor
	BaseOffset float64 // mm from tube bottom to the liquid surface at exactly Breakpoint µl
	DrainCoeff float64 // mm of surface drop per µl withdrawn (inverse cross-sectional area)
}

const (
	// minAspirateHeight is the floor for every computed aspiration height.
	// Below the breakpoint the tip just rides the tube bottom.
	minAspirateHeight = 1.0

	// submersionMargin keeps the tip this far below the liquid surface.
	submersionMargin = 5.0
)

// The three supported tube geometries: 2 ml Eppendorf snap-cap, and 15/50 ml
// Falcon conicals.
var (
	Tube2ML  = TubeClass{Name: "2 ml", Breakpoint: 500, BaseOffset: 10, DrainCoeff: 0.0160}
	Tube15ML = TubeClass{Name: "15 ml", Breakpoint: 1500, BaseOffset: 23, DrainCoeff: 0.00635}
	Tube50ML = TubeClass{Name: "50 ml", Breakpoint: 4000, BaseOffset: 20, DrainCoeff: 0.00175}
)

// ParseTubeClass maps a parameter-sheet token to a tube class.
func ParseTubeClass(token string) (TubeClass, error) {
	switch token {
	case Tube2ML.Name:
		return Tube2ML, nil
	case Tube15ML.Name:
		return Tube15ML, nil
	case Tube50ML.Name:
		return Tube50ML, nil
	}
	return TubeClass{}, validationErrorf(KindBadTubeClass,
		"tube size must be '2 ml', '15 ml', or '50 ml', got %q", token)
}

// InitialHeight returns the aspiration height for a tube of this class
// filled with fillVol µl. At or below the breakpoint the height pins to the
// 1 mm floor; above it the height tracks the liquid surface minus the
// submersion margin.
func (tc TubeClass) InitialHeight(fillVol float64) float64 {
	if fillVol <= tc.Breakpoint {
		return minAspirateHeight
	}
	h := tc.BaseOffset + (fillVol-tc.Breakpoint)*tc.DrainCoeff - submersionMargin
	if h < minAspirateHeight {
		return minAspirateHeight
	}
	return h
}

// Decay returns the aspiration height and remaining volume after drawing
// `drawn` µl from a tube currently at (height, volume). Pure function: the
// caller threads the returned pair into the next call. Height never rises
// and never falls below the 1 mm floor.
func (tc TubeClass) Decay(height, volume, drawn float64) (newHeight, newVolume float64) {
	newVolume = volume - drawn
	if newVolume < tc.Breakpoint {
		return minAspirateHeight, newVolume
	}
	newHeight = height - drawn*tc.DrainCoeff
	if newHeight < minAspirateHeight {
		newHeight = minAspirateHeight
	}
	return newHeight, newVolume
}

// Reservoir is a tracked fluid source: a tube of known class whose aspiration
// height and remaining volume are updated after every draw. The validator
// guarantees ahead of time that Volume never goes negative during a run.
type Reservoir struct {
	Name     string // diagnostic label: "reagent", "diluent", "control 1", ...
	Class    TubeClass
	Location Location
	Height   float64
	Volume   float64
}

// NewReservoir builds a reservoir with its starting aspiration height
// computed from its own fill volume.
func NewReservoir(name string, class TubeClass, loc Location, fillVol float64) *Reservoir {
	return &Reservoir{
		Name:     name,
		Class:    class,
		Location: loc,
		Height:   class.InitialHeight(fillVol),
		Volume:   fillVol,
	}
}

// Draw records a withdrawal of vol µl, decaying the tracked height and
// volume for the next draw.
func (r *Reservoir) Draw(vol float64) {
	r.Height, r.Volume = r.Class.Decay(r.Height, r.Volume, vol)
}
