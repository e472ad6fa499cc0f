// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package bmh

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	StartMarker = 0xA5
	AckMarker   = 0x5A
	EndMarker   = 0xAA
	DeviceType  = 0x26

	CommandImpedanceMode = 0x10
	CommandStatus        = 0x11
	CommandParameter     = 0x14
	CommandComposition   = 0x15
	CommandLevels        = 0x16

	// start, length, device, command, checksum, end
	bmhOverhead = 6
	// a response always carries a status byte on top of the overhead
	bmhMinResponseSize = bmhOverhead + 1
	bmhMaxSize         = 255

	statusOffset = 4

	transactionTimeout = 500 * time.Millisecond
	pollInterval       = time.Millisecond
)

type commandInfo struct {
	name           string
	responseLength int
}

var commands = map[byte]commandInfo{
	CommandImpedanceMode: {"enter impedance mode", 7},
	CommandStatus:        {"query status", 18},
	CommandParameter:     {"parameter", 12},
	CommandComposition:   {"compute composition", 24},
	CommandLevels:        {"compute levels", 16},
}

func commandName(code byte) string {
	if c, ok := commands[code]; ok {
		return c.name
	}
	return fmt.Sprintf("command 0x%02X", code)
}

// ClientHandler implements Packager and Transporter interface.
type ClientHandler struct {
	bmhPackager
	bmhTransporter
}

// NewClientHandler allocates a handler talking to the module on the serial
// device at address, 9600 8N1.
func NewClientHandler(address string) *ClientHandler {
	handler := &ClientHandler{}
	handler.DeviceType = DeviceType
	handler.Address = address
	handler.BaudRate = 9600
	handler.DataBits = 8
	handler.StopBits = 1
	handler.Parity = "N"
	handler.Timeout = serialTimeout
	handler.IdleTimeout = serialIdleTimeout
	return handler
}

// NewPortHandler allocates a handler on top of an already open Port.
func NewPortHandler(port Port) *ClientHandler {
	handler := &ClientHandler{}
	handler.DeviceType = DeviceType
	handler.Port = port
	return handler
}

// BuildFrame encodes a request frame:
//
//	Start marker    : 1 byte (0xA5)
//	Declared length : 1 byte (frame length - 2)
//	Device type     : 1 byte
//	Command         : 1 byte
//	Payload         : 0..249 bytes
//	Checksum        : 1 byte
//	End marker      : 1 byte (0xAA)
func BuildFrame(command, device byte, payload []byte) ([]byte, error) {
	length := len(payload) + bmhOverhead
	if length > bmhMaxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLong, length)
	}
	adu := make([]byte, length)
	adu[0] = StartMarker
	adu[1] = byte(length - 2)
	adu[2] = device
	adu[3] = command
	copy(adu[4:], payload)
	adu[length-2] = Checksum(adu)
	adu[length-1] = EndMarker
	return adu, nil
}

// Checksum XORs every byte after the start marker up to, but excluding, the
// checksum and end marker.
func Checksum(adu []byte) byte {
	var sum byte
	for i := 1; i < len(adu)-2; i++ {
		sum ^= adu[i]
	}
	return sum
}

// bmhPackager implements Packager interface.
type bmhPackager struct {
	DeviceType byte
	// VerifyChecksum makes Verify reject responses whose checksum byte does
	// not match. The module's own error replies do not always carry a valid
	// one, so it is off by default.
	VerifyChecksum bool
}

func (mb *bmhPackager) Encode(pdu *ProtocolDataUnit) (adu []byte, err error) {
	return BuildFrame(pdu.Command, mb.DeviceType, pdu.Data)
}

// Verify checks the response start marker, that the declared length matches
// the one expected for the request's command and the command echo.
func (mb *bmhPackager) Verify(aduRequest []byte, aduResponse []byte) (err error) {
	length := len(aduResponse)
	if length < bmhMinResponseSize {
		return fmt.Errorf("%w: response length %d does not meet minimum %d", ErrStructuralMismatch, length, bmhMinResponseSize)
	}
	if aduResponse[0] != AckMarker {
		return fmt.Errorf("%w: start marker 0x%02X, expected 0x%02X", ErrStructuralMismatch, aduResponse[0], AckMarker)
	}
	expected := length
	if len(aduRequest) > 3 {
		if c, ok := commands[aduRequest[3]]; ok {
			expected = c.responseLength
		}
	}
	if int(aduResponse[1]) != expected-2 {
		return fmt.Errorf("%w: declared length 0x%02X, expected 0x%02X", ErrStructuralMismatch, aduResponse[1], expected-2)
	}
	if len(aduRequest) > 3 && aduResponse[3] != aduRequest[3] {
		return fmt.Errorf("%w: command echo 0x%02X, expected 0x%02X", ErrStructuralMismatch, aduResponse[3], aduRequest[3])
	}
	if mb.VerifyChecksum && aduResponse[length-2] != Checksum(aduResponse) {
		return fmt.Errorf("%w: got 0x%02X, computed 0x%02X", ErrChecksum, aduResponse[length-2], Checksum(aduResponse))
	}
	return nil
}

// Decode extracts the status byte and the payload that follows it.
func (mb *bmhPackager) Decode(adu []byte) (pdu *ProtocolDataUnit, err error) {
	length := len(adu)
	if length < bmhMinResponseSize {
		return nil, fmt.Errorf("%w: response length %d does not meet minimum %d", ErrStructuralMismatch, length, bmhMinResponseSize)
	}
	pdu = &ProtocolDataUnit{
		Command: adu[3],
		Status:  adu[statusOffset],
		Data:    adu[statusOffset+1 : length-2],
	}
	return pdu, nil
}

// bmhTransporter implements Transporter interface.
type bmhTransporter struct {
	serialPort

	// Port replaces the serial port when set.
	Port Port
	// Clock defaults to the system clock.
	Clock Clock
	// ResponseTimeout bounds the wait for a complete response (500ms).
	ResponseTimeout time.Duration
	// PollInterval is the pause between two looks at the receive buffer (1ms).
	PollInterval time.Duration
	Metrics      *Metrics

	txMu sync.Mutex
}

func (mb *bmhTransporter) transport() Port {
	if mb.Port != nil {
		return mb.Port
	}
	return &mb.serialPort
}

func (mb *bmhTransporter) clock() Clock {
	if mb.Clock != nil {
		return mb.Clock
	}
	return systemClock{}
}

// Send discards stale input, writes the request and collects exactly
// responseLength bytes or gives up once ResponseTimeout has elapsed.
func (mb *bmhTransporter) Send(aduRequest []byte, responseLength int) (aduResponse []byte, err error) {
	mb.txMu.Lock()
	defer mb.txMu.Unlock()

	var code byte
	if len(aduRequest) > 3 {
		code = aduRequest[3]
	}
	port, clock := mb.transport(), mb.clock()
	timeout := mb.ResponseTimeout
	if timeout <= 0 {
		timeout = transactionTimeout
	}
	interval := mb.PollInterval
	if interval <= 0 {
		interval = pollInterval
	}
	log := mb.log().WithField("command", commandName(code))

	begin := clock.Now()
	result, received := "ok", 0
	defer func() {
		mb.Metrics.observe(code, result, clock.Now().Sub(begin), received)
	}()

	// Whatever is still buffered belongs to an earlier, abandoned exchange.
	if err = port.Discard(); err != nil {
		log.WithError(err).Warn("serial: discard failed")
	}

	log.Debugf("serial: sending % x", aduRequest)
	n, err := port.Write(aduRequest)
	if err == nil && n != len(aduRequest) {
		err = io.ErrShortWrite
	}
	if err != nil {
		result = "write_error"
		return nil, fmt.Errorf("bmh: %s: write: %w", commandName(code), err)
	}

	data := make([]byte, responseLength)
	start := clock.Now()
	for received < responseLength {
		if port.Buffered() > 0 {
			n, err = port.ReadBuffered(data[received:])
			received += n
			if err != nil {
				result = "read_error"
				return nil, fmt.Errorf("bmh: %s: read: %w", commandName(code), err)
			}
			if received == responseLength {
				break
			}
		}
		if clock.Now().Sub(start) >= timeout {
			break
		}
		clock.Sleep(interval)
	}

	if received != responseLength {
		result = "timeout"
		if received > 0 {
			result = "short_read"
		}
		log.WithFields(logrus.Fields{"received": received, "expected": responseLength}).
			Warnf("serial: incomplete response % x", data[:received])
		return nil, &TimeoutError{Command: code, Received: received, Expected: responseLength}
	}
	aduResponse = data
	log.Debugf("serial: received % x", aduResponse)
	return aduResponse, nil
}
