package bmh

import (
	"encoding/binary"
	"fmt"
)

// ImpedanceState is the high nibble of the second work status byte.
type ImpedanceState byte

const (
	ImpedanceNotStarted ImpedanceState = 0
	ImpedanceMeasuring  ImpedanceState = 1
	ImpedanceSucceeded  ImpedanceState = 2
	ImpedanceFailed     ImpedanceState = 3
)

func (s ImpedanceState) String() string {
	switch s {
	case ImpedanceNotStarted:
		return "not started"
	case ImpedanceMeasuring:
		return "measuring"
	case ImpedanceSucceeded:
		return "succeeded"
	case ImpedanceFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", byte(s))
}

// ReadingClass says what a caller may do with an impedance reading.
type ReadingClass int

const (
	// ReadingNotReady: the measurement has not started, is still running or
	// the module reported a state this package does not know.
	ReadingNotReady ReadingClass = iota
	// ReadingFailed: the module gave up on the measurement.
	ReadingFailed
	// ReadingPending: measurement succeeded but the value is still zero.
	ReadingPending
	// ReadingInvalid: electrode contact failure sentinel.
	ReadingInvalid
	// ReadingValid: the value can be fed into BodyComposition.
	ReadingValid
)

var readingClassNames = map[ReadingClass]string{
	ReadingNotReady: "not ready",
	ReadingFailed:   "failed",
	ReadingPending:  "pending",
	ReadingInvalid:  "invalid",
	ReadingValid:    "valid",
}

func (c ReadingClass) String() string {
	if name, ok := readingClassNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ReadingClass(%d)", int(c))
}

func (c ReadingClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// ClassifyImpedance is defined for every 16-bit value: the three contact
// failure sentinels are invalid, zero is pending, anything else is valid.
func ClassifyImpedance(v uint16) ReadingClass {
	switch v {
	case 0xFFFF, 0xFFF1, 0xFFF2:
		return ReadingInvalid
	case 0x0000:
		return ReadingPending
	}
	return ReadingValid
}

type ImpedanceReading struct {
	Class ReadingClass `json:"class"`
	Value uint16       `json:"value"` // ohm, only meaningful when Class is ReadingValid
}

// ImpedanceStatus is the decoded reply to the status query.
type ImpedanceStatus struct {
	WorkStatus byte // first work status byte, reported verbatim
	State      ImpedanceState
	Reading    ImpedanceReading
}

// Offsets into the status payload (frame offset - 5).
const (
	statusWorkStatus2 = 0
	statusImpedance   = 4
)

// DecodeStatus interprets the payload of a status reply. The raw impedance
// is only read once the module reports a successful measurement.
func DecodeStatus(pdu *ProtocolDataUnit) (ImpedanceStatus, error) {
	if len(pdu.Data) < statusImpedance+2 {
		return ImpedanceStatus{}, fmt.Errorf("%w: status payload has %d bytes", ErrStructuralMismatch, len(pdu.Data))
	}
	status := ImpedanceStatus{
		WorkStatus: pdu.Status,
		State:      ImpedanceState((pdu.Data[statusWorkStatus2] >> 4) & 0x0F),
	}
	switch status.State {
	case ImpedanceSucceeded:
		v := binary.BigEndian.Uint16(pdu.Data[statusImpedance:])
		status.Reading = ImpedanceReading{Class: ClassifyImpedance(v), Value: v}
	case ImpedanceFailed:
		status.Reading.Class = ReadingFailed
	default:
		status.Reading.Class = ReadingNotReady
	}
	return status, nil
}

// BodyComposition is what the module computes from impedance and profile.
type BodyComposition struct {
	BodyFat         float64 `json:"body_fat"`         // %
	Water           float64 `json:"water"`            // %
	MuscleRate      float64 `json:"muscle_rate"`      // %
	MuscleMass      float64 `json:"muscle_mass"`      // kg, derived from MuscleRate and weight
	BoneMass        float64 `json:"bone_mass"`        // kg
	BMR             float64 `json:"bmr"`              // kcal/day
	VisceralFat     int     `json:"visceral_fat"`     // level
	BMI             float64 `json:"bmi"`
	BodyAge         int     `json:"body_age"`         // years
	Protein         float64 `json:"protein"`          // %
	SubcutaneousFat float64 `json:"subcutaneous_fat"` // kg
}

// Offsets into the composition payload.
const (
	compositionFat          = 0
	compositionWater        = 2
	compositionMuscle       = 4
	compositionBone         = 6
	compositionBMR          = 7
	compositionVisceral     = 9
	compositionBMI          = 10
	compositionBodyAge      = 12
	compositionProtein      = 13
	compositionSubcutaneous = 15
	compositionSize         = 17
)

// EncodeComposition builds the payload of the composition command. The
// profile must be valid.
func EncodeComposition(profile UserProfile, impedance uint16) []byte {
	data := make([]byte, 7)
	data[0] = byte(profile.Height)
	binary.BigEndian.PutUint16(data[1:], profile.weightUnits())
	data[3] = byte(profile.Age)
	data[4] = byte(profile.Gender)
	binary.BigEndian.PutUint16(data[5:], impedance)
	return data
}

// DecodeComposition turns a successful composition reply into values.
// A non-zero status is returned as *DeviceError and nothing is decoded.
func DecodeComposition(pdu *ProtocolDataUnit, profile UserProfile) (*BodyComposition, error) {
	if pdu.Status != 0 {
		return nil, &DeviceError{Command: CommandComposition, Code: pdu.Status}
	}
	data := pdu.Data
	if len(data) < compositionSize {
		return nil, fmt.Errorf("%w: composition payload has %d bytes", ErrStructuralMismatch, len(data))
	}
	tenths := func(off int) float64 {
		return float64(binary.BigEndian.Uint16(data[off:])) / 10.0
	}
	c := &BodyComposition{
		BodyFat:         tenths(compositionFat),
		Water:           tenths(compositionWater),
		MuscleRate:      tenths(compositionMuscle),
		BoneMass:        float64(data[compositionBone]) / 10.0,
		BMR:             float64(binary.BigEndian.Uint16(data[compositionBMR:])),
		VisceralFat:     int(data[compositionVisceral]),
		BMI:             tenths(compositionBMI),
		BodyAge:         int(data[compositionBodyAge]),
		Protein:         tenths(compositionProtein),
		SubcutaneousFat: tenths(compositionSubcutaneous),
	}
	c.MuscleMass = (c.MuscleRate / 100.0) * profile.Weight
	return c, nil
}
