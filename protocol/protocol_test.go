package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func makeHeader(msgType MessageType, seq uint16) Header {
	h := Header{
		VersionPTP:     Version,
		VersionNetwork: 1,
		MessageType_:   uint8(msgType),
		SequenceID:     seq,
	}
	copy(h.SourceUUID[:], []byte{0xaa, 0xbb, 0xcc, 0x00, 0x01, 0x02})
	h.SourcePortID = 1
	return h
}

func TestParseSyncRoundTrip(t *testing.T) {
	s := &Sync{
		Header: makeHeader(MessageSync, 42),
		SyncBody: SyncBody{
			OriginTimestamp: Timestamp{Seconds: 1000, Nanoseconds: 500},
		},
	}
	raw, err := Bytes(s)
	require.NoError(t, err)
	require.Greater(t, len(raw), HeaderLength)

	decoded, err := ParseSync(raw)
	require.NoError(t, err)
	require.Equal(t, uint16(42), decoded.SequenceID)
	require.Equal(t, uint32(1000), decoded.OriginTimestamp.Seconds)
	require.Equal(t, uint32(500), decoded.OriginTimestamp.Nanoseconds)
}

func TestParseFollowUpRoundTrip(t *testing.T) {
	f := &FollowUp{
		Header: makeHeader(MessageFollowUp, 42),
		FollowUpBody: FollowUpBody{
			AssociatedSequenceID:   42,
			PreciseOriginTimestamp: Timestamp{Seconds: 2000, Nanoseconds: 123456},
		},
	}
	raw, err := Bytes(f)
	require.NoError(t, err)

	decoded, err := ParseFollowUp(raw)
	require.NoError(t, err)
	require.Equal(t, uint16(42), decoded.AssociatedSequenceID)
	require.Equal(t, uint32(2000), decoded.PreciseOriginTimestamp.Seconds)
}

func TestDecodeDispatchesByMessageType(t *testing.T) {
	s := &Sync{Header: makeHeader(MessageSync, 1)}
	raw, err := Bytes(s)
	require.NoError(t, err)

	p, err := Decode(raw)
	require.NoError(t, err)
	require.IsType(t, &Sync{}, p)
	require.Equal(t, MessageSync, p.MessageType())
}

func TestDecodeIgnoresUnhandledMessageTypes(t *testing.T) {
	h := makeHeader(MessageDelayReq, 7)
	raw := make([]byte, HeaderLength)
	buf, err := Bytes(&FollowUp{Header: h})
	require.NoError(t, err)
	copy(raw, buf[:HeaderLength])

	p, err := Decode(raw)
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestParseHeaderRejectsWrongVersion(t *testing.T) {
	h := makeHeader(MessageSync, 1)
	h.VersionPTP = 2
	s := &Sync{Header: h}
	raw, err := Bytes(s)
	require.NoError(t, err)

	_, err = ParseHeader(raw)
	require.Error(t, err)
	var malformed *Malformed
	require.ErrorAs(t, err, &malformed)
}

func TestParseHeaderRejectsShortBuffer(t *testing.T) {
	_, err := ParseHeader(make([]byte, HeaderLength-1))
	require.Error(t, err)
}

func TestGrandmasterIDStableAcrossMessages(t *testing.T) {
	syncHeader := makeHeader(MessageSync, 1)
	followUpHeader := makeHeader(MessageFollowUp, 1)
	require.Equal(t, syncHeader.GrandmasterID(), followUpHeader.GrandmasterID())

	otherHeader := makeHeader(MessageSync, 1)
	otherHeader.SourcePortID = 2
	require.NotEqual(t, syncHeader.GrandmasterID(), otherHeader.GrandmasterID())
}
