package core

import "errors"

// ErrProbe is returned by Ranger.PowerOn when the sensor is absent or does
// not answer.
var ErrProbe = errors.New("ranger: sensor not responding")

// Measurement is one full reading of a distance sensor.
type Measurement struct {
	Range    uint16 // distance in mm, or one of the Range* codes
	RawRange uint16 // distance in mm before range/quality gating
	Quality  uint16
}

// Ranger is the physical distance sensor as seen by a SensorChannel.
// Implementations wrap a real driver; none of the calls may block for
// longer than one bus transaction.
type Ranger interface {
	// PowerOn probes and initialises the sensor.
	PowerOn() error

	// Standby puts the sensor in its low power state. It is also called on
	// sensors that never answered.
	Standby()

	// StartContinuous starts free-running ranging with periodMs between
	// measurements (0 = back to back).
	StartContinuous(periodMs uint32) error

	// StopContinuous stops free-running ranging.
	StopContinuous() error

	// SetRange sets the valid distance window in mm.
	SetRange(minMM, maxMM uint16)

	// SetQualityThreshold sets the minimum quality of a valid reading.
	SetQualityThreshold(q uint16)

	// FullMeasure fetches the latest measurement. It fails when no new
	// measurement is available.
	FullMeasure() (Measurement, error)
}

// ClassifyRange applies the distance window and quality threshold to a raw
// reading and returns the value published in the range register.
func ClassifyRange(rawMM, minMM, maxMM, quality, threshold uint16) uint16 {
	switch {
	case quality < threshold:
		return RangeNotUpdated
	case rawMM < minMM:
		return RangeTooClose
	case rawMM > maxMM:
		return RangeNoObstacle
	case rawMM < RangeCodeLimit:
		return RangeTooClose
	}
	return rawMM
}
