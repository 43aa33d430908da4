/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package protocol implements the PTPv1 (IEEE 1588-2002) wire format used by
// Dante grandmasters: a 40-byte common header followed by a message-specific
// body. Only Sync and FollowUp are decoded; every other message type is
// reported back to the caller but never parsed into a body.
package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Version is the only PTP version this codec accepts.
const Version uint16 = 1

// HeaderLength is the fixed size of the PTPv1 common header in bytes.
const HeaderLength = 40

// UDP port numbers for the PTPv1 Dante multicast group 224.0.1.129.
const (
	PortEvent   = 319 // Sync messages
	PortGeneral = 320 // FollowUp and all other general messages
)

// MulticastGroup is the well-known PTPv1 multicast address Dante grandmasters
// transmit on.
const MulticastGroup = "224.0.1.129"

// MessageType identifies the PTPv1 message carried after the header.
type MessageType uint8

// PTPv1 message types we care about. Values follow IEEE 1588-2002 Table 6;
// all other defined types (DelayReq, DelayResp, Management, etc.) are
// represented generically and never decoded into a body.
const (
	MessageSync     MessageType = 0x01
	MessageDelayReq MessageType = 0x02
	MessageFollowUp MessageType = 0x08
	MessageDelayResp MessageType = 0x09
	MessageManagement MessageType = 0x0d
)

func (m MessageType) String() string {
	switch m {
	case MessageSync:
		return "Sync"
	case MessageDelayReq:
		return "DelayReq"
	case MessageFollowUp:
		return "FollowUp"
	case MessageDelayResp:
		return "DelayResp"
	case MessageManagement:
		return "Management"
	default:
		return fmt.Sprintf("Unknown(0x%02x)", uint8(m))
	}
}

// Timestamp is a PTPv1 wire timestamp: seconds and nanoseconds since an
// unspecified epoch. For Dante grandmasters this is device uptime, never UTC.
type Timestamp struct {
	Seconds     uint32
	Nanoseconds uint32
}

// Header is the 40-byte PTPv1 common header (IEEE 1588-2002 Table 8),
// trimmed to the fields this codec needs plus the reserved padding that
// keeps the struct exactly HeaderLength bytes when read with binary.Read.
type Header struct {
	VersionPTP                    uint16
	VersionNetwork                uint16
	Subdomain                     [16]byte
	MessageType_                  uint8
	SourceCommunicationTechnology uint8
	SourceUUID                    [6]byte
	SourcePortID                  uint16
	SequenceID                    uint16
	Control                       uint8
	Reserved1                     uint8
	Flags                         uint16
	Reserved2                     [4]byte
}

// MessageType returns the decoded message type field.
func (h *Header) MessageType() MessageType {
	return MessageType(h.MessageType_)
}

// GrandmasterID is a stable identifier for the clock that sourced a message,
// derived from the header's source UUID and port. Comparing GrandmasterIDs
// across messages is how a grandmaster failover is detected.
type GrandmasterID string

// GrandmasterID extracts the sourcing clock's identity from the header.
func (h *Header) GrandmasterID() GrandmasterID {
	return GrandmasterID(fmt.Sprintf("%x-%d", h.SourceUUID, h.SourcePortID))
}

// SyncBody is the Sync message body (IEEE 1588-2002 Table 11), trimmed to
// the fields Dante discipline actually reads.
type SyncBody struct {
	OriginTimestamp         Timestamp
	EpochNumber             uint16
	CurrentUTCOffset        int16
	GrandmasterClockStratum uint8
	GrandmasterClockIdentifier [4]byte
	SyncInterval            int8
	LocalClockVariance      int16
	LocalStepsRemoved       uint16
	LocalClockStratum       uint8
	LocalClockIdentifier    [4]byte
}

// Sync is a full Sync packet: header plus body.
type Sync struct {
	Header
	SyncBody
}

// FollowUpBody is the FollowUp message body (IEEE 1588-2002 Table 17).
type FollowUpBody struct {
	AssociatedSequenceID   uint16
	PreciseOriginTimestamp Timestamp
}

// FollowUp is a full FollowUp packet: header plus body.
type FollowUp struct {
	Header
	FollowUpBody
}

// Malformed reports a packet that failed structural validation: wrong
// version, a message type other than the one asked for, or a buffer too
// short for the header or body. No declared-length check is made: Header
// has no length field, and bytes past the decoded body are ignored.
type Malformed struct {
	Reason string
}

func (e *Malformed) Error() string {
	return fmt.Sprintf("malformed PTPv1 packet: %s", e.Reason)
}

// ParseHeader reads the 40-byte common header from buf and validates the
// version field. It does not consume the message body.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderLength {
		return nil, &Malformed{Reason: fmt.Sprintf("buffer too short: %d bytes, need %d", len(buf), HeaderLength)}
	}
	h := &Header{}
	r := bytes.NewReader(buf[:HeaderLength])
	if err := binary.Read(r, binary.BigEndian, h); err != nil {
		return nil, &Malformed{Reason: err.Error()}
	}
	if h.VersionPTP != Version {
		return nil, &Malformed{Reason: fmt.Sprintf("unsupported version %d", h.VersionPTP)}
	}
	return h, nil
}

// ParseSync decodes a full Sync packet from buf, which must begin at the
// start of the PTPv1 header.
func ParseSync(buf []byte) (*Sync, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.MessageType() != MessageSync {
		return nil, &Malformed{Reason: fmt.Sprintf("expected Sync, got %s", h.MessageType())}
	}
	s := &Sync{Header: *h}
	r := bytes.NewReader(buf[HeaderLength:])
	if err := binary.Read(r, binary.BigEndian, &s.SyncBody); err != nil {
		return nil, &Malformed{Reason: fmt.Sprintf("decoding Sync body: %s", err)}
	}
	return s, nil
}

// ParseFollowUp decodes a full FollowUp packet from buf, which must begin at
// the start of the PTPv1 header.
func ParseFollowUp(buf []byte) (*FollowUp, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	if h.MessageType() != MessageFollowUp {
		return nil, &Malformed{Reason: fmt.Sprintf("expected FollowUp, got %s", h.MessageType())}
	}
	f := &FollowUp{Header: *h}
	r := bytes.NewReader(buf[HeaderLength:])
	if err := binary.Read(r, binary.BigEndian, &f.FollowUpBody); err != nil {
		return nil, &Malformed{Reason: fmt.Sprintf("decoding FollowUp body: %s", err)}
	}
	return f, nil
}

// Packet is a decoded PTPv1 message: either *Sync or *FollowUp. Any other
// message type decodes to nil with a nil error from Decode, signalling
// "recognized but ignored".
type Packet interface {
	MessageType() MessageType
}

// Decode parses buf into a Sync or FollowUp packet. Messages of a type the
// engine doesn't act on (DelayReq, DelayResp, Management, ...) return
// (nil, nil) rather than an error, since IEEE 1588-2002 permits any
// conformant implementation to receive and ignore them.
func Decode(buf []byte) (Packet, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}
	switch h.MessageType() {
	case MessageSync:
		return ParseSync(buf)
	case MessageFollowUp:
		return ParseFollowUp(buf)
	default:
		return nil, nil
	}
}

// Bytes serializes a Sync or FollowUp packet back into its wire form.
func Bytes(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	switch v := p.(type) {
	case *Sync:
		if err := binary.Write(&buf, binary.BigEndian, v.Header); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, v.SyncBody); err != nil {
			return nil, err
		}
	case *FollowUp:
		if err := binary.Write(&buf, binary.BigEndian, v.Header); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, v.FollowUpBody); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported packet type %T", p)
	}
	return buf.Bytes(), nil
}
