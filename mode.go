package bmh

import "fmt"

// Mode selects the electrodes used for the impedance measurement.
type Mode byte

const (
	FootMode Mode = 0
	HandMode Mode = 1
)

func (m Mode) String() string {
	if m == HandMode {
		return "hand"
	}
	return "foot"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseMode accepts "hand" or "foot".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "hand":
		return HandMode, nil
	case "foot":
		return FootMode, nil
	}
	return FootMode, fmt.Errorf("%w: mode %q", ErrInvalidInput, s)
}

const (
	parameterRead  = 0x01
	parameterWrite = 0x02

	parameterMode = 0x2D

	// the parameter value is a 32-bit big-endian word; the mode sits in its low byte
	parameterValueLow = 4
)

func parameterFrame(op byte, param byte, value byte) []byte {
	return []byte{op, param, 0x00, 0x00, 0x00, value}
}

// decodeMode reads the mode from a parameter reply.
func decodeMode(pdu *ProtocolDataUnit) (Mode, error) {
	if pdu.Status != 0 {
		return FootMode, &DeviceError{Command: CommandParameter, Code: pdu.Status}
	}
	if len(pdu.Data) <= parameterValueLow {
		return FootMode, fmt.Errorf("%w: parameter payload has %d bytes", ErrStructuralMismatch, len(pdu.Data))
	}
	if pdu.Data[parameterValueLow] != 0 {
		return HandMode, nil
	}
	return FootMode, nil
}
