package bmh

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is matched by every *TimeoutError: the module did not deliver a
	// complete response within the transaction window.
	ErrTimeout = errors.New("bmh: transaction timeout")
	// ErrShortRead is matched by a *TimeoutError that received at least one byte.
	ErrShortRead = errors.New("bmh: short read")
	// ErrStructuralMismatch signals a response whose start marker, declared length
	// or command echo does not fit the request. The link is probably out of sync.
	ErrStructuralMismatch = errors.New("bmh: response structure mismatch")
	// ErrChecksum is returned when checksum verification is enabled and fails.
	ErrChecksum = errors.New("bmh: response checksum mismatch")
	// ErrInvalidInput signals a parameter outside the range the protocol accepts.
	// Nothing is sent to the module in that case.
	ErrInvalidInput = errors.New("bmh: invalid input")
	// ErrFrameTooLong is returned when a payload does not fit a single-byte length.
	ErrFrameTooLong = errors.New("bmh: frame exceeds 255 bytes")

	// Composition rejections reported by the module (command 0x15).
	ErrImpedanceData = errors.New("bmh: impedance data error")
	ErrAge           = errors.New("bmh: age error")
	ErrHeight        = errors.New("bmh: height error")
	ErrWeight        = errors.New("bmh: weight error")
	ErrGender        = errors.New("bmh: gender error")
	ErrUnknownDevice = errors.New("bmh: unknown device error")
)

var compositionErrors = map[byte]error{
	0x01: ErrImpedanceData,
	0x02: ErrAge,
	0x03: ErrHeight,
	0x04: ErrWeight,
	0x05: ErrGender,
}

// TimeoutError reports how many bytes arrived before the window closed.
type TimeoutError struct {
	Command  byte
	Received int
	Expected int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("bmh: %s: received %d of %d bytes before timeout", commandName(e.Command), e.Received, e.Expected)
}

func (e *TimeoutError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return true
	case ErrShortRead:
		return e.Received > 0
	}
	return false
}

// DeviceError is a request the module explicitly rejected. Code is the raw
// status byte; its meaning depends on Command.
type DeviceError struct {
	Command byte
	Code    byte
}

func (e *DeviceError) Error() string {
	if err := e.Unwrap(); err != nil {
		return fmt.Sprintf("%v (%s, code 0x%02X)", err, commandName(e.Command), e.Code)
	}
	return fmt.Sprintf("bmh: %s rejected with code 0x%02X", commandName(e.Command), e.Code)
}

// Unwrap maps composition codes onto the Err* sentinels so callers can use
// errors.Is. Other commands have no documented code table.
func (e *DeviceError) Unwrap() error {
	if e.Command != CommandComposition {
		return nil
	}
	if err, ok := compositionErrors[e.Code]; ok {
		return err
	}
	return ErrUnknownDevice
}
