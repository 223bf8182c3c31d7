package wirebind

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// color and flag are named scalar kinds, for checking that wire values
// land in named types.
type color string

type flag bool

type rawBytes []byte

func TestDateText(t *testing.T) {
	tests := []struct {
		name   string
		format TimeFormat
		t      time.Time
		want   string
	}{
		{"iso8601", ISO8601, refTime, "2024-01-15T10:30:00.000Z"},
		{"iso8601 millis", ISO8601, refTime.Add(450 * time.Millisecond), "2024-01-15T10:30:00.450Z"},
		{"iso8601 renders UTC", ISO8601, refTime.In(time.FixedZone("CET", 3600)), "2024-01-15T10:30:00.000Z"},
		{"unix seconds", UnixSeconds, refTime, "1705314600"},
		{"unix millis", UnixMillis, refTime.Add(450 * time.Millisecond), "1705314600450"},
		{"rfc822", RFC822, refTime, "Mon, 15 Jan 2024 10:30:00 GMT"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := dateText(tc.format, tc.t); got != tc.want {
				t.Errorf("wrong text:\n  got: %s\n want: %s", got, tc.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name   string
		format TimeFormat
		in     string
		want   time.Time
		ok     bool
	}{
		{"iso8601", ISO8601, "2024-01-15T10:30:00.000Z", refTime, true},
		{"iso8601 offset", ISO8601, "2024-01-15T11:30:00+01:00", refTime, true},
		{"iso8601 nanos", ISO8601, "2024-01-15T10:30:00.450Z", refTime.Add(450 * time.Millisecond), true},
		{"iso8601 junk", ISO8601, "yesterday", time.Time{}, false},
		{"unix seconds", UnixSeconds, "1705314600", refTime, true},
		{"unix seconds fraction", UnixSeconds, "1705314600.5", refTime.Add(500 * time.Millisecond), true},
		{"unix seconds junk", UnixSeconds, "soon", time.Time{}, false},
		{"unix millis", UnixMillis, "1705314600450", refTime.Add(450 * time.Millisecond), true},
		{"unix millis fraction", UnixMillis, "1705314600.5", time.Time{}, false},
		{"rfc822", RFC822, "Mon, 15 Jan 2024 10:30:00 GMT", refTime, true},
		{"rfc822 junk", RFC822, "Mon 15th", time.Time{}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDate(tc.format, tc.in)
			if !tc.ok {
				if err == nil {
					t.Errorf("parseDate = %v, want error", got)
				} else if testing.Verbose() {
					t.Logf("parseDate = err: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDate failed: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Errorf("wrong time:\n  got: %v\n want: %v", got, tc.want)
			}
		})
	}
}

func TestScalarText(t *testing.T) {
	tests := []struct {
		name string
		b    Binding
		v    any
		want string // empty means want error
	}{
		{"string", Binding{Type: TypeString}, "hi", "hi"},
		{"named string", Binding{Type: TypeString}, color("teal"), "teal"},
		{"int", Binding{Type: TypeInt}, int32(42), "42"},
		{"int from uint", Binding{Type: TypeInt}, uint8(200), "200"},
		{"int from integral float", Binding{Type: TypeInt}, float64(5), "5"},
		{"int from json number", Binding{Type: TypeInt}, json.Number("7"), "7"},
		{"int from exponent", Binding{Type: TypeInt}, json.Number("5e2"), "500"},
		{"int min", Binding{Type: TypeInt}, int64(math.MinInt32), "-2147483648"},
		{"int from fraction", Binding{Type: TypeInt}, 5.5, ""},
		{"int out of range", Binding{Type: TypeInt}, int64(math.MaxInt32) + 1, ""},
		{"int from junk number", Binding{Type: TypeInt}, json.Number("many"), ""},
		{"int from string", Binding{Type: TypeInt}, "42", ""},
		{"long", Binding{Type: TypeLong}, int64(9000000000), "9000000000"},
		{"long keeps precision", Binding{Type: TypeLong}, json.Number("9007199254740993"), "9007199254740993"},
		{"double", Binding{Type: TypeDouble}, 1.5, "1.5"},
		{"double from int", Binding{Type: TypeDouble}, 3, "3"},
		{"double from json number", Binding{Type: TypeDouble}, json.Number("2.5"), "2.5"},
		{"double nan", Binding{Type: TypeDouble}, math.NaN(), ""},
		{"double inf", Binding{Type: TypeDouble}, math.Inf(1), ""},
		{"bool", Binding{Type: TypeBool}, true, "true"},
		{"bool from int", Binding{Type: TypeBool}, 1, ""},
		{"date", Binding{Type: TypeDate, Format: UnixSeconds}, refTime, "1705314600"},
		{"date from string", Binding{Type: TypeDate, Format: UnixSeconds}, "now", ""},
		{"blob", Binding{Type: TypeBlob}, []byte("hello"), "aGVsbG8="},
		{"blob from string", Binding{Type: TypeBlob}, "hello", ""},
		{"list has no text form", Binding{Type: TypeList, Elem: &Binding{Type: TypeString}}, []string{"a"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := scalarText(&tc.b, reflect.ValueOf(tc.v))
			if tc.want == "" {
				if err == nil {
					t.Errorf("scalarText = %q, want error", got)
				} else if testing.Verbose() {
					t.Logf("scalarText = err: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("scalarText failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("wrong text:\n  got: %s\n want: %s", got, tc.want)
			}
		})
	}
}

func TestScalarFromText(t *testing.T) {
	tests := []struct {
		name string
		b    Binding
		in   string
		want any // nil means want error
	}{
		{"string", Binding{Type: TypeString}, "x", "x"},
		{"int", Binding{Type: TypeInt}, "42", int32(42)},
		{"int junk", Binding{Type: TypeInt}, "many", nil},
		{"int too big", Binding{Type: TypeInt}, "3000000000", nil},
		{"long", Binding{Type: TypeLong}, "9000000000", int64(9000000000)},
		{"double", Binding{Type: TypeDouble}, "1.5", 1.5},
		{"bool true", Binding{Type: TypeBool}, "true", true},
		{"bool false", Binding{Type: TypeBool}, "false", false},
		{"bool is strict", Binding{Type: TypeBool}, "TRUE", nil},
		{"bool numeric", Binding{Type: TypeBool}, "1", nil},
		{"date", Binding{Type: TypeDate, Format: RFC822}, "Mon, 15 Jan 2024 10:30:00 GMT", refTime},
		{"blob", Binding{Type: TypeBlob}, "aGVsbG8=", []byte("hello")},
		{"blob junk", Binding{Type: TypeBlob}, "!!", nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := scalarFromText(&tc.b, tc.in)
			if tc.want == nil {
				if err == nil {
					t.Errorf("scalarFromText = %v, want error", got)
				} else if testing.Verbose() {
					t.Logf("scalarFromText = err: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("scalarFromText failed: %v", err)
			}
			if diff := cmp.Diff(got, tc.want, timeComparer); diff != "" {
				t.Errorf("wrong value (-got+want):\n%s", diff)
			}
		})
	}
}

func TestAssignScalar(t *testing.T) {
	tests := []struct {
		name string
		into any // a zero sample of the target type
		val  any
		want any // nil means want error
	}{
		{"same type", int32(0), int32(7), int32(7)},
		{"narrow", int32(0), int64(7), int32(7)},
		{"widen", int64(0), int32(7), int64(7)},
		{"plain int", 0, int64(7), 7},
		{"int overflow", int8(0), int64(300), nil},
		{"int into uint", uint16(0), int64(500), uint16(500)},
		{"negative into uint", uint32(0), int64(-1), nil},
		{"uint overflow", uint8(0), int64(300), nil},
		{"float width", float32(0), 0.5, float32(0.5)},
		{"named string", color(""), "teal", color("teal")},
		{"named bool", flag(false), true, flag(true)},
		{"time", time.Time{}, refTime, refTime},
		{"bytes", rawBytes(nil), []byte("hi"), rawBytes("hi")},
		{"string into int", 0, "x", nil},
		{"bool into string", "", true, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := reflect.New(reflect.TypeOf(tc.into)).Elem()
			err := assignScalar(target, tc.val)
			if tc.want == nil {
				if err == nil {
					t.Errorf("assignScalar stored %v, want error", target)
				} else if testing.Verbose() {
					t.Logf("assignScalar = err: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("assignScalar failed: %v", err)
			}
			if diff := cmp.Diff(target.Interface(), tc.want, timeComparer); diff != "" {
				t.Errorf("wrong value (-got+want):\n%s", diff)
			}
		})
	}

	// Dates convert into named time types.
	type stamp time.Time
	var s stamp
	if err := assignScalar(reflect.ValueOf(&s).Elem(), refTime); err != nil {
		t.Fatalf("assignScalar failed: %v", err)
	}
	if !time.Time(s).Equal(refTime) {
		t.Errorf("wrong stamp: got %v, want %v", time.Time(s), refTime)
	}
}
