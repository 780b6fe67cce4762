// Package message defines the tagged variant over BitTorrent peer wire
// messages that the dispatch core fans in and out. The dispatcher is
// polymorphic over Message; it never inspects Kind itself (spec.md §3).
package message

import (
	"bytes"
	"fmt"

	"github.com/jackpal/bencode-go"
	"github.com/willf/bitset"
)

// Kind identifies which variant of Message is populated.
type Kind int

// Message kinds, matching the BitTorrent peer wire protocol plus the
// BEP-10 extension envelope.
const (
	KeepAlive Kind = iota
	Choke
	Unchoke
	Interested
	NotInterested
	Have
	Bitfield
	Request
	Piece
	Cancel
	Extension
)

func (k Kind) String() string {
	switch k {
	case KeepAlive:
		return "keep-alive"
	case Choke:
		return "choke"
	case Unchoke:
		return "unchoke"
	case Interested:
		return "interested"
	case NotInterested:
		return "not-interested"
	case Have:
		return "have"
	case Bitfield:
		return "bitfield"
	case Request:
		return "request"
	case Piece:
		return "piece"
	case Cancel:
		return "cancel"
	case Extension:
		return "extension"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// HaveMessage announces that the sender now has a complete piece.
type HaveMessage struct {
	Index int
}

// BitfieldMessage announces the full set of pieces the sender has.
type BitfieldMessage struct {
	Bits *bitset.BitSet
}

// RequestMessage requests a block of a piece.
type RequestMessage struct {
	Index  int
	Begin  int
	Length int
}

// PieceMessage carries a block of piece data.
type PieceMessage struct {
	Index int
	Begin int
	Block []byte
}

// CancelMessage cancels a previously sent RequestMessage.
type CancelMessage struct {
	Index  int
	Begin  int
	Length int
}

// ExtensionMessage carries a BEP-10 extension message: an extension id
// and a bencoded payload dictionary. Only the envelope is modeled here;
// no specific extension (ut_metadata, ut_pex, ...) is implemented —
// piece selection and extension semantics are out of this core's scope.
type ExtensionMessage struct {
	ExtendedID uint8
	Payload    ExtensionPayload
}

// ExtensionPayload is the decoded bencoded dictionary carried by an
// extension message.
type ExtensionPayload map[string]interface{}

// EncodePayload bencodes p for transmission.
func (p ExtensionPayload) EncodePayload() ([]byte, error) {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, map[string]interface{}(p)); err != nil {
		return nil, fmt.Errorf("bencode marshal extension payload: %s", err)
	}
	return buf.Bytes(), nil
}

// DecodeExtensionPayload parses a bencoded dictionary into an ExtensionPayload.
func DecodeExtensionPayload(raw []byte) (ExtensionPayload, error) {
	var m map[string]interface{}
	if err := bencode.Unmarshal(bytes.NewReader(raw), &m); err != nil {
		return nil, fmt.Errorf("bencode unmarshal extension payload: %s", err)
	}
	return ExtensionPayload(m), nil
}

// Message is a tagged union over the peer wire protocol. At most one of
// the pointer fields is non-nil, selected by Kind; KeepAlive, Choke,
// Unchoke, Interested, and NotInterested carry no payload and leave all
// of them nil.
type Message struct {
	Kind      Kind
	Have      *HaveMessage
	Bitfield  *BitfieldMessage
	Request   *RequestMessage
	Piece     *PieceMessage
	Cancel    *CancelMessage
	Extension *ExtensionMessage
}

// NewKeepAliveMessage returns a keep-alive Message.
func NewKeepAliveMessage() Message { return Message{Kind: KeepAlive} }

// NewChokeMessage returns a choke Message.
func NewChokeMessage() Message { return Message{Kind: Choke} }

// NewUnchokeMessage returns an unchoke Message.
func NewUnchokeMessage() Message { return Message{Kind: Unchoke} }

// NewInterestedMessage returns an interested Message.
func NewInterestedMessage() Message { return Message{Kind: Interested} }

// NewNotInterestedMessage returns a not-interested Message.
func NewNotInterestedMessage() Message { return Message{Kind: NotInterested} }

// NewHaveMessage returns a Message announcing piece index.
func NewHaveMessage(index int) Message {
	return Message{Kind: Have, Have: &HaveMessage{Index: index}}
}

// NewBitfieldMessage returns a Message announcing bits.
func NewBitfieldMessage(bits *bitset.BitSet) Message {
	return Message{Kind: Bitfield, Bitfield: &BitfieldMessage{Bits: bits}}
}

// NewRequestMessage returns a Message requesting a block.
func NewRequestMessage(index, begin, length int) Message {
	return Message{Kind: Request, Request: &RequestMessage{Index: index, Begin: begin, Length: length}}
}

// NewPieceMessage returns a Message carrying a block of piece data.
func NewPieceMessage(index, begin int, block []byte) Message {
	return Message{Kind: Piece, Piece: &PieceMessage{Index: index, Begin: begin, Block: block}}
}

// NewCancelMessage returns a Message cancelling a prior request.
func NewCancelMessage(index, begin, length int) Message {
	return Message{Kind: Cancel, Cancel: &CancelMessage{Index: index, Begin: begin, Length: length}}
}

// NewExtensionMessage returns an extension Message.
func NewExtensionMessage(extendedID uint8, payload ExtensionPayload) Message {
	return Message{Kind: Extension, Extension: &ExtensionMessage{ExtendedID: extendedID, Payload: payload}}
}

func (m Message) String() string {
	switch m.Kind {
	case Have:
		return fmt.Sprintf("have(%d)", m.Have.Index)
	case Request:
		return fmt.Sprintf("request(%d, %d, %d)", m.Request.Index, m.Request.Begin, m.Request.Length)
	case Piece:
		return fmt.Sprintf("piece(%d, %d, %d bytes)", m.Piece.Index, m.Piece.Begin, len(m.Piece.Block))
	case Cancel:
		return fmt.Sprintf("cancel(%d, %d, %d)", m.Cancel.Index, m.Cancel.Begin, m.Cancel.Length)
	case Extension:
		return fmt.Sprintf("extension(%d)", m.Extension.ExtendedID)
	default:
		return m.Kind.String()
	}
}
