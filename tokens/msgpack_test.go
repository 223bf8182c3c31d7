package tokens_test

import (
	"bytes"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/danderson/wirebind/tokens"
	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"
)

// pack builds a MessagePack document with explicit encoder calls, so
// the byte layout and key order are deterministic. Writes to a
// bytes.Buffer cannot fail.
func pack(build func(enc *msgpack.Encoder)) []byte {
	var buf bytes.Buffer
	build(msgpack.NewEncoder(&buf))
	return buf.Bytes()
}

func TestMsgpackSource(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []tokens.Token
	}{
		{
			"flat map",
			pack(func(enc *msgpack.Encoder) {
				enc.EncodeMapLen(4)
				enc.EncodeString("name")
				enc.EncodeString("test")
				enc.EncodeString("count")
				enc.EncodeInt(5)
				enc.EncodeString("ok")
				enc.EncodeBool(true)
				enc.EncodeString("gone")
				enc.EncodeNil()
			}),
			[]tokens.Token{
				objStart,
				nameTok("name"), stringTok("test"),
				nameTok("count"), numberTok("5"),
				nameTok("ok"), boolTok(true),
				nameTok("gone"), nullTok,
				objEnd,
			},
		},
		{
			"nested",
			pack(func(enc *msgpack.Encoder) {
				enc.EncodeMapLen(2)
				enc.EncodeString("outer")
				enc.EncodeMapLen(1)
				enc.EncodeString("inner")
				enc.EncodeArrayLen(2)
				enc.EncodeInt(1)
				enc.EncodeInt(2)
				enc.EncodeString("tail")
				enc.EncodeString("x")
			}),
			[]tokens.Token{
				objStart,
				nameTok("outer"), objStart,
				nameTok("inner"), arrStart, numberTok("1"), numberTok("2"), arrEnd,
				objEnd,
				nameTok("tail"), stringTok("x"),
				objEnd,
			},
		},
		{
			"numbers",
			pack(func(enc *msgpack.Encoder) {
				enc.EncodeArrayLen(4)
				enc.EncodeInt(-40000)
				enc.EncodeUint(math.MaxUint64)
				enc.EncodeFloat64(2.5)
				enc.EncodeInt(127)
			}),
			[]tokens.Token{
				arrStart,
				numberTok("-40000"),
				numberTok("18446744073709551615"),
				numberTok("2.5"),
				numberTok("127"),
				arrEnd,
			},
		},
		{
			"binary as base64",
			pack(func(enc *msgpack.Encoder) {
				enc.EncodeMapLen(1)
				enc.EncodeString("data")
				enc.EncodeBytes([]byte{1, 2, 3})
			}),
			[]tokens.Token{
				objStart,
				nameTok("data"), stringTok("AQID"),
				objEnd,
			},
		},
		{
			"empty containers",
			pack(func(enc *msgpack.Encoder) {
				enc.EncodeMapLen(2)
				enc.EncodeString("a")
				enc.EncodeMapLen(0)
				enc.EncodeString("b")
				enc.EncodeArrayLen(0)
			}),
			[]tokens.Token{
				objStart,
				nameTok("a"), objStart, objEnd,
				nameTok("b"), arrStart, arrEnd,
				objEnd,
			},
		},
		{
			"top-level scalar",
			pack(func(enc *msgpack.Encoder) {
				enc.EncodeString("hello")
			}),
			[]tokens.Token{stringTok("hello")},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := collect(t, tokens.NewMsgpackSource(bytes.NewReader(tc.in)))
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("token stream (-got+want):\n%s", diff)
			}
		})
	}
}

func TestMsgpackSourceTruncated(t *testing.T) {
	// A one-pair map with the value missing entirely.
	in := pack(func(enc *msgpack.Encoder) {
		enc.EncodeMapLen(1)
		enc.EncodeString("a")
	})
	src := tokens.NewMsgpackSource(bytes.NewReader(in))
	for i := 0; i < 2; i++ { // map start, key
		if _, err := src.Next(); err != nil {
			t.Fatalf("Next() got err: %v", err)
		}
	}
	if _, err := src.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Next() on truncated input got err %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestMsgpackSourceNonStringKey(t *testing.T) {
	in := pack(func(enc *msgpack.Encoder) {
		enc.EncodeMapLen(1)
		enc.EncodeInt(1)
		enc.EncodeString("v")
	})
	src := tokens.NewMsgpackSource(bytes.NewReader(in))
	if _, err := src.Next(); err != nil { // map start
		t.Fatalf("Next() got err: %v", err)
	}
	_, err := src.Next()
	if err == nil {
		t.Fatal("Next() on integer map key unexpectedly succeeded")
	}
	if !strings.Contains(err.Error(), "non-string map key") {
		t.Errorf("Next() got err %q, want it to mention the non-string key", err)
	}
}
