package wirebind

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/creachadair/mds/mapset"
	"github.com/danderson/wirebind/tokens"
)

var (
	// intKinds and uintKinds are the reflect.Kinds accepted for
	// integer wire types.
	intKinds = mapset.New(
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
	)
	uintKinds = mapset.New(
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
	)
	floatKinds = mapset.New(
		reflect.Float32,
		reflect.Float64,
	)
)

var (
	timeType       = reflect.TypeFor[time.Time]()
	byteSliceType  = reflect.TypeFor[[]byte]()
	jsonNumberType = reflect.TypeFor[json.Number]()
)

// iso8601Layout is the wire form of ISO8601 dates: UTC with
// millisecond precision and a literal Z.
const iso8601Layout = "2006-01-02T15:04:05.000Z"

// dateText renders t in the given format.
func dateText(f TimeFormat, t time.Time) string {
	switch f {
	case ISO8601:
		return t.UTC().Format(iso8601Layout)
	case UnixSeconds:
		return strconv.FormatInt(t.Unix(), 10)
	case UnixMillis:
		return strconv.FormatInt(t.UnixMilli(), 10)
	case RFC822:
		return t.UTC().Format(http.TimeFormat)
	}
	panic(fmt.Sprintf("unknown time format %v", f))
}

// parseDate parses the wire form of a date. ISO8601 accepts any
// RFC 3339 timestamp, UnixSeconds accepts a decimal fraction.
func parseDate(f TimeFormat, s string) (time.Time, error) {
	switch f {
	case ISO8601:
		return time.Parse(time.RFC3339Nano, s)
	case UnixSeconds:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch seconds %q", s)
		}
		sec, frac := math.Modf(n)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case UnixMillis:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid epoch milliseconds %q", s)
		}
		return time.UnixMilli(n).UTC(), nil
	case RFC822:
		return time.Parse(time.RFC1123, s)
	}
	return time.Time{}, fmt.Errorf("unknown time format %v", f)
}

// intValue extracts an integer from v, range-checked to [min, max].
// Record values carry integers however encoding/json left them, so
// integral floats and json.Number are accepted too.
func intValue(v reflect.Value, min, max int64) (int64, error) {
	switch {
	case intKinds.Has(v.Kind()):
		n := v.Int()
		if n < min || n > max {
			return 0, fmt.Errorf("%d out of range", n)
		}
		return n, nil
	case uintKinds.Has(v.Kind()):
		n := v.Uint()
		if n > uint64(max) {
			return 0, fmt.Errorf("%d out of range", n)
		}
		return int64(n), nil
	case floatKinds.Has(v.Kind()):
		return intFromFloat(v.Float(), min, max)
	case v.Type() == jsonNumberType:
		s := v.String()
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if n < min || n > max {
				return 0, fmt.Errorf("%d out of range", n)
			}
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", s)
		}
		return intFromFloat(f, min, max)
	}
	return 0, fmt.Errorf("cannot render %s as an integer", v.Type())
}

func intFromFloat(f float64, min, max int64) (int64, error) {
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	// float64(max)+1 is exact for both int32 and int64 bounds, which
	// float64(max) alone is not.
	if f < float64(min) || f >= float64(max)+1 {
		return 0, fmt.Errorf("%v out of range", f)
	}
	return int64(f), nil
}

// doubleValue extracts a float from v. Integer values widen.
func doubleValue(v reflect.Value) (float64, error) {
	switch {
	case floatKinds.Has(v.Kind()):
		return v.Float(), nil
	case intKinds.Has(v.Kind()):
		return float64(v.Int()), nil
	case uintKinds.Has(v.Kind()):
		return float64(v.Uint()), nil
	case v.Type() == jsonNumberType:
		f, err := strconv.ParseFloat(v.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid double %q", v.String())
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot render %s as a double", v.Type())
}

// scalarText renders v as the text form of b's wire type, the form
// query parameters, headers and path segments carry.
func scalarText(b *Binding, v reflect.Value) (string, error) {
	switch b.Type {
	case TypeString:
		if v.Kind() != reflect.String {
			return "", fmt.Errorf("cannot render %s as a string", v.Type())
		}
		return v.String(), nil
	case TypeInt:
		n, err := intValue(v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case TypeLong:
		n, err := intValue(v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(n, 10), nil
	case TypeDouble:
		f, err := doubleValue(v)
		if err != nil {
			return "", err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("cannot render %v", f)
		}
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case TypeBool:
		if v.Kind() != reflect.Bool {
			return "", fmt.Errorf("cannot render %s as a bool", v.Type())
		}
		return strconv.FormatBool(v.Bool()), nil
	case TypeDate:
		t, err := timeValue(v)
		if err != nil {
			return "", err
		}
		return dateText(b.Format, t), nil
	case TypeBlob:
		raw, err := blobValue(v)
		if err != nil {
			return "", err
		}
		return base64.StdEncoding.EncodeToString(raw), nil
	}
	return "", fmt.Errorf("%v has no text form", b.Type)
}

// writeScalar renders v as b's wire type into w. Integer and float
// types become Number tokens, ISO8601 and RFC822 dates become
// strings, epoch dates become numbers, blobs become base64 strings.
func writeScalar(w tokens.Writer, b *Binding, v reflect.Value) error {
	switch b.Type {
	case TypeString:
		if v.Kind() != reflect.String {
			return fmt.Errorf("cannot render %s as a string", v.Type())
		}
		w.String(v.String())
		return nil
	case TypeInt, TypeLong, TypeDouble:
		s, err := scalarText(b, v)
		if err != nil {
			return err
		}
		w.Number(s)
		return nil
	case TypeBool:
		if v.Kind() != reflect.Bool {
			return fmt.Errorf("cannot render %s as a bool", v.Type())
		}
		w.Bool(v.Bool())
		return nil
	case TypeDate:
		t, err := timeValue(v)
		if err != nil {
			return err
		}
		switch b.Format {
		case UnixSeconds, UnixMillis:
			w.Number(dateText(b.Format, t))
		default:
			w.String(dateText(b.Format, t))
		}
		return nil
	case TypeBlob:
		raw, err := blobValue(v)
		if err != nil {
			return err
		}
		w.String(base64.StdEncoding.EncodeToString(raw))
		return nil
	}
	return fmt.Errorf("%v is not a scalar type", b.Type)
}

// scalarFromToken converts tok into the native Go value of b's wire
// type: string, int32, int64, float64, bool, time.Time or []byte.
func scalarFromToken(b *Binding, tok tokens.Token) (any, error) {
	switch b.Type {
	case TypeString:
		if tok.Kind != tokens.String {
			return nil, fmt.Errorf("got %v, want a string", tok.Kind)
		}
		return tok.Str, nil
	case TypeInt:
		if tok.Kind != tokens.Number {
			return nil, fmt.Errorf("got %v, want a number", tok.Kind)
		}
		n, err := strconv.ParseInt(tok.Str, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", tok.Str)
		}
		return int32(n), nil
	case TypeLong:
		if tok.Kind != tokens.Number {
			return nil, fmt.Errorf("got %v, want a number", tok.Kind)
		}
		n, err := strconv.ParseInt(tok.Str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid long %q", tok.Str)
		}
		return n, nil
	case TypeDouble:
		if tok.Kind != tokens.Number {
			return nil, fmt.Errorf("got %v, want a number", tok.Kind)
		}
		f, err := strconv.ParseFloat(tok.Str, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid double %q", tok.Str)
		}
		return f, nil
	case TypeBool:
		if tok.Kind != tokens.Bool {
			return nil, fmt.Errorf("got %v, want a bool", tok.Kind)
		}
		return tok.Bool, nil
	case TypeDate:
		switch b.Format {
		case UnixSeconds, UnixMillis:
			if tok.Kind != tokens.Number {
				return nil, fmt.Errorf("got %v, want an epoch number", tok.Kind)
			}
		default:
			if tok.Kind != tokens.String {
				return nil, fmt.Errorf("got %v, want a date string", tok.Kind)
			}
		}
		return parseDate(b.Format, tok.Str)
	case TypeBlob:
		if tok.Kind != tokens.String {
			return nil, fmt.Errorf("got %v, want base64 text", tok.Kind)
		}
		raw, err := base64.StdEncoding.DecodeString(tok.Str)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %v", err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%v is not a scalar type", b.Type)
}

// scalarFromText parses the text form of b's wire type, as carried by
// headers and the status line.
func scalarFromText(b *Binding, s string) (any, error) {
	switch b.Type {
	case TypeString:
		return s, nil
	case TypeInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", s)
		}
		return int32(n), nil
	case TypeLong:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid long %q", s)
		}
		return n, nil
	case TypeDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid double %q", s)
		}
		return f, nil
	case TypeBool:
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid bool %q", s)
	case TypeDate:
		return parseDate(b.Format, s)
	case TypeBlob:
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %v", err)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("%v has no text form", b.Type)
}

// assignScalar stores a decoded native value into v, converting
// between integer widths where the value fits.
func assignScalar(v reflect.Value, got any) error {
	gv := reflect.ValueOf(got)
	if gv.Type().AssignableTo(v.Type()) {
		v.Set(gv)
		return nil
	}
	switch {
	case intKinds.Has(v.Kind()) && intKinds.Has(gv.Kind()):
		n := gv.Int()
		if v.OverflowInt(n) {
			return fmt.Errorf("%d overflows %s", n, v.Type())
		}
		v.SetInt(n)
	case uintKinds.Has(v.Kind()) && intKinds.Has(gv.Kind()):
		n := gv.Int()
		if n < 0 || v.OverflowUint(uint64(n)) {
			return fmt.Errorf("%d overflows %s", n, v.Type())
		}
		v.SetUint(uint64(n))
	case floatKinds.Has(v.Kind()) && floatKinds.Has(gv.Kind()):
		v.SetFloat(gv.Float())
	case v.Kind() == reflect.String && gv.Kind() == reflect.String:
		v.SetString(gv.String())
	case v.Kind() == reflect.Bool && gv.Kind() == reflect.Bool:
		v.SetBool(gv.Bool())
	case gv.Type() == timeType && gv.Type().ConvertibleTo(v.Type()):
		v.Set(gv.Convert(v.Type()))
	case gv.Type() == byteSliceType && v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		v.SetBytes(gv.Bytes())
	default:
		return fmt.Errorf("cannot store %s into %s", gv.Type(), v.Type())
	}
	return nil
}

func timeValue(v reflect.Value) (time.Time, error) {
	if v.Type() != timeType && !v.Type().ConvertibleTo(timeType) {
		return time.Time{}, fmt.Errorf("cannot render %s as a date", v.Type())
	}
	if v.Type() != timeType {
		v = v.Convert(timeType)
	}
	return v.Interface().(time.Time), nil
}

func blobValue(v reflect.Value) ([]byte, error) {
	if v.Kind() != reflect.Slice || v.Type().Elem().Kind() != reflect.Uint8 {
		return nil, fmt.Errorf("cannot render %s as a blob", v.Type())
	}
	return v.Bytes(), nil
}
