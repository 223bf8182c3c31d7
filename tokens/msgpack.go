package tokens

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// A MsgpackSource reads a MessagePack document and yields its tokens.
//
// MessagePack containers carry explicit lengths rather than end
// markers, so the source counts elements and synthesizes ObjectEnd
// and ArrayEnd tokens at the right points. Integers are delivered as
// decimal literals, floats via strconv's shortest round-trip form,
// and binary values as base64 text so that callers handle bytes the
// same way for every source. Map keys must be strings.
type MsgpackSource struct {
	dec   *msgpack.Decoder
	stack []msgpackFrame
}

type msgpackFrame struct {
	isMap     bool
	remaining int // tokens (not pairs) left in the container
}

// NewMsgpackSource returns a MsgpackSource reading from r.
func NewMsgpackSource(r io.Reader) *MsgpackSource {
	return &MsgpackSource{dec: msgpack.NewDecoder(r)}
}

// Next implements Source.
func (s *MsgpackSource) Next() (Token, error) {
	if f := s.top(); f != nil && f.remaining == 0 {
		s.stack = s.stack[:len(s.stack)-1]
		if f.isMap {
			return Token{Kind: ObjectEnd}, nil
		}
		return Token{Kind: ArrayEnd}, nil
	}

	code, err := s.dec.PeekCode()
	if err != nil {
		if err == io.EOF && len(s.stack) > 0 {
			err = io.ErrUnexpectedEOF
		}
		return Token{}, err
	}

	keyNext := false
	if f := s.top(); f != nil {
		keyNext = f.isMap && f.remaining%2 == 0
		f.remaining--
	}
	if keyNext {
		if !msgpcode.IsString(code) {
			return Token{}, fmt.Errorf("non-string map key (code %#x)", code)
		}
		k, err := s.dec.DecodeString()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Name, Str: k}, nil
	}

	switch {
	case code == msgpcode.Nil:
		if err := s.dec.DecodeNil(); err != nil {
			return Token{}, err
		}
		return Token{Kind: Null}, nil
	case code == msgpcode.True, code == msgpcode.False:
		b, err := s.dec.DecodeBool()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Bool, Bool: b}, nil
	case code >= msgpcode.Uint8 && code <= msgpcode.Uint64:
		n, err := s.dec.DecodeUint64()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Number, Str: strconv.FormatUint(n, 10)}, nil
	case msgpcode.IsFixedNum(code), code >= msgpcode.Int8 && code <= msgpcode.Int64:
		n, err := s.dec.DecodeInt64()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Number, Str: strconv.FormatInt(n, 10)}, nil
	case code == msgpcode.Float, code == msgpcode.Double:
		f, err := s.dec.DecodeFloat64()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Number, Str: strconv.FormatFloat(f, 'g', -1, 64)}, nil
	case msgpcode.IsString(code):
		v, err := s.dec.DecodeString()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: String, Str: v}, nil
	case msgpcode.IsBin(code):
		b, err := s.dec.DecodeBytes()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: String, Str: base64.StdEncoding.EncodeToString(b)}, nil
	case msgpcode.IsFixedMap(code), code == msgpcode.Map16, code == msgpcode.Map32:
		n, err := s.dec.DecodeMapLen()
		if err != nil {
			return Token{}, err
		}
		s.stack = append(s.stack, msgpackFrame{isMap: true, remaining: 2 * n})
		return Token{Kind: ObjectStart}, nil
	case msgpcode.IsFixedArray(code), code == msgpcode.Array16, code == msgpcode.Array32:
		n, err := s.dec.DecodeArrayLen()
		if err != nil {
			return Token{}, err
		}
		s.stack = append(s.stack, msgpackFrame{remaining: n})
		return Token{Kind: ArrayStart}, nil
	default:
		return Token{}, fmt.Errorf("unsupported msgpack code %#x", code)
	}
}

func (s *MsgpackSource) top() *msgpackFrame {
	if len(s.stack) == 0 {
		return nil
	}
	return &s.stack[len(s.stack)-1]
}
