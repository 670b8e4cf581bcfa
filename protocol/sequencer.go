package protocol

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// touchTip geometry shared by every transfer.
const (
	touchTipRadius  = 0.9
	touchTipVOffset = -2.0
)

// pauseMessage is shown before the post-pause additive pass while the plate
// is off-deck for disulfide reduction.
const pauseMessage = "Place the deep well plate in a thermomixer for disulfide reduction, " +
	"cool to room temperature, and then return the plate to its slot. " +
	"The samples can now be frozen for storage."

// Sequencer executes a validated plan in strict record order, threading the
// geometry decay model through every tracked-reservoir draw. It owns the
// per-reservoir (height, volume) pairs exclusively; nothing else reads or
// writes them during a run.
type Sequencer struct {
	plan     *Plan
	driver   Driver
	operator Operator
}

// NewSequencer wires a validated plan to its external collaborators.
func NewSequencer(plan *Plan, driver Driver, operator Operator) *Sequencer {
	return &Sequencer{plan: plan, driver: driver, operator: operator}
}

// Run executes the plan. The rail lights bracket the run; a deferred toggle
// turns them off even when an instrument call aborts mid-run.
func (s *Sequencer) Run() (err error) {
	if err := s.driver.SetRailLights(true); err != nil {
		return fmt.Errorf("rail lights on: %w", err)
	}
	defer func() {
		if lightsErr := s.driver.SetRailLights(false); lightsErr != nil && err == nil {
			err = fmt.Errorf("rail lights off: %w", lightsErr)
		}
	}()

	switch s.plan.Variant {
	case VariantAssay:
		if s.plan.Params.DispenseReagent {
			if err := s.reagentPass(); err != nil {
				return err
			}
		}
		if err := s.sampleLoop(); err != nil {
			return err
		}
	case VariantNormalizer:
		if s.plan.Params.TCEP.Enabled {
			if err := s.additivePass(s.plan.Reservoirs.TCEP, s.plan.Params.TCEP.VolPerWell, false); err != nil {
				return err
			}
		}
		if err := s.sampleLoop(); err != nil {
			return err
		}
		if s.plan.Params.IAM.Enabled {
			logrus.Info("pausing for off-deck disulfide reduction")
			if err := s.operator.Pause(pauseMessage); err != nil {
				return fmt.Errorf("operator pause: %w", err)
			}
			if err := s.additivePass(s.plan.Reservoirs.IAM, s.plan.Params.IAM.VolPerWell, true); err != nil {
				return err
			}
		}
	}

	logrus.Infof("%s run complete: %d records dispensed", s.plan.Variant, len(s.plan.Records))
	return nil
}

// reagentPass bulk-loads the assay reagent into every destination well with
// a single coarse tip, decaying the reagent tube after each draw.
func (s *Sequencer) reagentPass() error {
	reagent := s.plan.Reservoirs.Reagent
	perWell := s.plan.Params.ReagentVolPerWell
	logrus.Infof("reagent pass: %g µl into %d wells", perWell, len(s.plan.Records))

	if err := s.driver.PickUpTip(InstrumentCoarse); err != nil {
		return fmt.Errorf("reagent pass: %w", err)
	}
	for _, rec := range s.plan.Records {
		dest := s.plan.DestLocation(rec)
		if err := s.moveFluid(InstrumentCoarse, perWell, reagent.Location, reagent.Height, dest); err != nil {
			return fmt.Errorf("reagent pass (%s): %w", rec.Dest, err)
		}
		reagent.Draw(perWell)
	}
	if err := s.driver.DropTip(InstrumentCoarse); err != nil {
		return fmt.Errorf("reagent pass: %w", err)
	}
	return nil
}

// additivePass bulk-loads one additive into every destination well, routed
// by the per-well volume. The pre-pause pass reuses one tip; the post-pause
// pass takes a fresh tip per well because those wells already hold reduced
// protein.
func (s *Sequencer) additivePass(res *Reservoir, perWell float64, freshTipPerWell bool) error {
	inst := InstrumentFor(perWell)
	if inst == InstrumentNone {
		return nil
	}
	logrus.Infof("%s pass: %g µl into %d wells", res.Name, perWell, len(s.plan.Records))

	if !freshTipPerWell {
		if err := s.driver.PickUpTip(inst); err != nil {
			return fmt.Errorf("%s pass: %w", res.Name, err)
		}
	}
	for _, rec := range s.plan.Records {
		if freshTipPerWell {
			if err := s.driver.PickUpTip(inst); err != nil {
				return fmt.Errorf("%s pass: %w", res.Name, err)
			}
		}
		dest := s.plan.DestLocation(rec)
		if err := s.moveFluid(inst, perWell, res.Location, res.Height, dest); err != nil {
			return fmt.Errorf("%s pass (%s): %w", res.Name, rec.Dest, err)
		}
		res.Draw(perWell)
		if freshTipPerWell {
			if err := s.driver.DropTip(inst); err != nil {
				return fmt.Errorf("%s pass: %w", res.Name, err)
			}
		}
	}
	if !freshTipPerWell {
		if err := s.driver.DropTip(inst); err != nil {
			return fmt.Errorf("%s pass: %w", res.Name, err)
		}
	}
	return nil
}

// sampleLoop transfers each record's sample volume and then its diluent
// volume, in strict record order.
func (s *Sequencer) sampleLoop() error {
	for i, rec := range s.plan.Records {
		if err := s.transferSample(rec); err != nil {
			return fmt.Errorf("record %d (%s): %w", i+1, rec.Name, err)
		}
		if err := s.transferDiluent(rec); err != nil {
			return fmt.Errorf("record %d (%s): %w", i+1, rec.Name, err)
		}
	}
	return nil
}

// transferSample draws a record's sample volume from its resolved source.
// Control sources aspirate at their tracked reservoir height and decay it;
// rack and plate sources use the configured sample aspiration height.
func (s *Sequencer) transferSample(rec SampleRecord) error {
	inst := InstrumentFor(rec.SampleVol)
	if inst == InstrumentNone {
		return nil
	}
	src := s.plan.SourceLocation(rec)
	dest := s.plan.DestLocation(rec)

	height := s.plan.Params.SampleAspHeight
	ctl := s.plan.Reservoirs.ControlFor(rec.Source)
	if ctl != nil {
		height = ctl.Height
	}

	// mixing always uses the coarse instrument; for a fine transfer that
	// means a separate tip session before the fine pipette takes over
	if s.plan.Params.Mix && inst == InstrumentFine {
		if err := s.driver.PickUpTip(InstrumentCoarse); err != nil {
			return err
		}
		if err := s.driver.Mix(InstrumentCoarse, s.plan.Params.MixReps, s.plan.Params.MixVol, src); err != nil {
			return err
		}
		if err := s.driver.DropTip(InstrumentCoarse); err != nil {
			return err
		}
	}

	if err := s.driver.PickUpTip(inst); err != nil {
		return err
	}
	if s.plan.Params.Mix && inst == InstrumentCoarse {
		if err := s.driver.Mix(InstrumentCoarse, s.plan.Params.MixReps, s.plan.Params.MixVol, src); err != nil {
			return err
		}
	}
	if err := s.driver.Aspirate(inst, rec.SampleVol, src, height); err != nil {
		return err
	}
	// let viscous samples settle at the tip before moving
	if err := s.driver.DelaySeconds(s.plan.Params.AspirateDelaySec); err != nil {
		return err
	}
	if err := s.dispenseAndDrop(inst, rec.SampleVol, dest); err != nil {
		return err
	}

	if ctl != nil {
		ctl.Draw(rec.SampleVol)
	}
	return nil
}

// transferDiluent tops the destination well up to the target volume from
// the diluent tube, decaying it after the draw.
func (s *Sequencer) transferDiluent(rec SampleRecord) error {
	inst := InstrumentFor(rec.DiluentVol)
	if inst == InstrumentNone {
		return nil
	}
	diluent := s.plan.Reservoirs.Diluent
	dest := s.plan.DestLocation(rec)

	if err := s.driver.PickUpTip(inst); err != nil {
		return err
	}
	if err := s.driver.Aspirate(inst, rec.DiluentVol, diluent.Location, diluent.Height); err != nil {
		return err
	}
	if err := s.dispenseAndDrop(inst, rec.DiluentVol, dest); err != nil {
		return err
	}
	diluent.Draw(rec.DiluentVol)
	return nil
}

// moveFluid is one aspirate/dispense round trip within an existing tip
// session, with touch-tips on both ends.
func (s *Sequencer) moveFluid(inst Instrument, vol float64, src Location, height float64, dest Location) error {
	if err := s.driver.Aspirate(inst, vol, src, height); err != nil {
		return err
	}
	if err := s.driver.TouchTip(inst, touchTipRadius, touchTipVOffset); err != nil {
		return err
	}
	if err := s.driver.Dispense(inst, vol, dest); err != nil {
		return err
	}
	return s.driver.TouchTip(inst, touchTipRadius, touchTipVOffset)
}

// dispenseAndDrop finishes a transfer: touch tip, dispense, touch tip, drop.
func (s *Sequencer) dispenseAndDrop(inst Instrument, vol float64, dest Location) error {
	if err := s.driver.TouchTip(inst, touchTipRadius, touchTipVOffset); err != nil {
		return err
	}
	if err := s.driver.Dispense(inst, vol, dest); err != nil {
		return err
	}
	if err := s.driver.TouchTip(inst, touchTipRadius, touchTipVOffset); err != nil {
		return err
	}
	return s.driver.DropTip(inst)
}
