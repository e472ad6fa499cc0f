// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package bmh

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
// For requests Data is the command payload; for responses Status carries the
// byte at offset 4 and Data the bytes between it and the checksum.
type ProtocolDataUnit struct {
	Command byte
	Status  byte
	Data    []byte
}

// Packager specifies the communication layer.
type Packager interface {
	Encode(pdu *ProtocolDataUnit) (adu []byte, err error)
	Decode(adu []byte) (pdu *ProtocolDataUnit, err error)
	Verify(aduRequest []byte, aduResponse []byte) (err error)
}

// Transporter specifies the transport layer. The response length is a
// property of the command that was sent, not of the bytes on the wire.
type Transporter interface {
	Send(aduRequest []byte, responseLength int) (aduResponse []byte, err error)
}
