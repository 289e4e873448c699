package protocol

import (
	"errors"
	"fmt"

	"github.com/tinylib/msgp/msgp"
)

// Version is the envelope version written by Encode and accepted by Decode
const Version = 1

var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrMissingBody        = errors.New("envelope has no body")
)

// Encode wraps msg in the envelope {"v": 1, "type": "<TYPE>", "body": {...}}
func Encode(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, ErrUnknownMessageType
	}
	b := make([]byte, 0, 64)
	b = msgp.AppendMapHeader(b, 3)
	b = msgp.AppendString(b, "v")
	b = msgp.AppendInt(b, Version)
	b = msgp.AppendString(b, "type")
	b = msgp.AppendString(b, string(msg.Type()))
	b = msgp.AppendString(b, "body")
	b, err := msg.MarshalMsg(b)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return b, nil
}

// Decode parses an envelope produced by Encode. Envelope keys are accepted in
// any order; unknown envelope and body keys are ignored.
func Decode(data []byte) (Message, error) {
	var (
		version    = -1
		typ        string
		body       []byte
		hasVersion bool
	)

	rest, err := readMap(data, func(key string, bts []byte) ([]byte, error) {
		switch key {
		case "v":
			hasVersion = true
			v, o, err := msgp.ReadIntBytes(bts)
			version = v
			return o, err
		case "type":
			s, o, err := msgp.ReadStringBytes(bts)
			typ = s
			return o, err
		case "body":
			o, err := msgp.Skip(bts)
			if err != nil {
				return o, err
			}
			body = bts[:len(bts)-len(o)]
			return o, nil
		default:
			return msgp.Skip(bts)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode envelope: %d trailing bytes", len(rest))
	}
	if !hasVersion || version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	msg, err := New(MessageType(typ))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, typ)
	}
	if body == nil {
		return nil, fmt.Errorf("decode %s: %w", typ, ErrMissingBody)
	}
	if _, err := msg.UnmarshalMsg(body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", typ, err)
	}
	return msg, nil
}
