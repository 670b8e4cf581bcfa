package protocol

import "github.com/sirupsen/logrus"

// Instrument identifies one of the two dispensing pipettes.
type Instrument int

const (
	InstrumentNone   Instrument = iota
	InstrumentFine              // P20-class: volumes in (0, 20] µl
	InstrumentCoarse            // P300-class: volumes above 20 µl
)

func (i Instrument) String() string {
	switch i {
	case InstrumentFine:
		return "p20"
	case InstrumentCoarse:
		return "p300"
	}
	return "none"
}

// FineMaxVolume is the routing threshold: transfers above it go to the
// coarse instrument, transfers in (0, FineMaxVolume] to the fine one.
const FineMaxVolume = 20.0

// InstrumentFor routes a transfer volume to an instrument. A zero volume
// routes to no instrument at all.
func InstrumentFor(vol float64) Instrument {
	switch {
	case vol > FineMaxVolume:
		return InstrumentCoarse
	case vol > 0:
		return InstrumentFine
	}
	return InstrumentNone
}

// Driver is the motion/instrument capability the sequencer drives. Any
// error aborts the run; there is no retry and no partial-completion
// recovery.
type Driver interface {
	PickUpTip(inst Instrument) error
	DropTip(inst Instrument) error
	// Aspirate draws vol µl from src with the tip height mm above the
	// bottom of the source well.
	Aspirate(inst Instrument, vol float64, src Location, height float64) error
	Dispense(inst Instrument, vol float64, dest Location) error
	// TouchTip knocks droplets off against the well wall.
	TouchTip(inst Instrument, radius, vOffset float64) error
	Mix(inst Instrument, reps int, vol float64, loc Location) error
	DelaySeconds(sec float64) error
	SetRailLights(on bool) error
}

// Operator is the operator-interaction channel: Pause blocks until an
// external acknowledgment arrives. No protocol state decays while paused.
type Operator interface {
	Pause(msg string) error
}

// LogDriver is a Driver that performs no motion and logs every action, used
// for rehearsing a validated plan.
type LogDriver struct{}

func (LogDriver) PickUpTip(inst Instrument) error {
	logrus.Debugf("%s: pick up tip", inst)
	return nil
}

func (LogDriver) DropTip(inst Instrument) error {
	logrus.Debugf("%s: drop tip", inst)
	return nil
}

func (LogDriver) Aspirate(inst Instrument, vol float64, src Location, height float64) error {
	logrus.Infof("%s: aspirate %.1f µl from %s at %.2f mm", inst, vol, src, height)
	return nil
}

func (LogDriver) Dispense(inst Instrument, vol float64, dest Location) error {
	logrus.Infof("%s: dispense %.1f µl to %s", inst, vol, dest)
	return nil
}

func (LogDriver) TouchTip(inst Instrument, radius, vOffset float64) error {
	logrus.Debugf("%s: touch tip (radius %.1f, offset %.1f mm)", inst, radius, vOffset)
	return nil
}

func (LogDriver) Mix(inst Instrument, reps int, vol float64, loc Location) error {
	logrus.Infof("%s: mix %d x %.1f µl at %s", inst, reps, vol, loc)
	return nil
}

func (LogDriver) DelaySeconds(sec float64) error {
	logrus.Debugf("delay %.1f s", sec)
	return nil
}

func (LogDriver) SetRailLights(on bool) error {
	logrus.Debugf("rail lights: %v", on)
	return nil
}
