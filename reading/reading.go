// Package reading defines the normalized sensor snapshot shared by every
// part of sensorsync, together with the rules that produce and compare it.
//
// A [Reading] is an immutable value. Live readings are built by [Normalize]
// from an endpoint payload; the single [Fallback] reading stands in whenever
// no trustworthy live data is available. Numeric fields use the tagged
// [Value] type so that a missing measurement is never confused with zero or
// NaN.
package reading

import (
	"encoding/json"
	"math"
	"strconv"
)

const (
	// FallbackStatus is the fixed status carried by the fallback reading.
	FallbackStatus = "simulated data, sensors offline"

	// UnidentifiedStatus replaces an empty or missing status on a live reading.
	UnidentifiedStatus = "unidentified environment"
)

// Value is a numeric measurement that is either a finite number or absent.
//
// The zero Value is absent.
type Value struct {
	n  float64
	ok bool
}

// Number returns a present Value holding x. Non-finite inputs yield [Absent].
func Number(x float64) Value {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return Value{}
	}
	return Value{n: x, ok: true}
}

// Absent returns the Value representing a missing measurement.
func Absent() Value {
	return Value{}
}

// Float returns the number and whether it is present.
func (v Value) Float() (float64, bool) {
	return v.n, v.ok
}

// IsAbsent reports whether the value is missing.
func (v Value) IsAbsent() bool {
	return !v.ok
}

// Close reports whether v and o are equal within eps.
// Two absent values are equal; absent and present never are.
func (v Value) Close(o Value, eps float64) bool {
	if !v.ok || !o.ok {
		return v.ok == o.ok
	}
	return math.Abs(v.n-o.n) < eps
}

// String returns the number formatted without trailing zeros, or "null".
func (v Value) String() string {
	if !v.ok {
		return "null"
	}
	return strconv.FormatFloat(v.n, 'f', -1, 64)
}

// MarshalJSON encodes the value as a JSON number or null.
func (v Value) MarshalJSON() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalJSON decodes a JSON number or null.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Value{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*v = Number(f)
	return nil
}

// Reading is a normalized snapshot of the sensor feed.
//
// Readings are immutable; use [New] or [Fallback] to construct one.
type Reading struct {
	temperature Value
	luminosity  Value
	sound       Value
	status      string
	fallback    bool
}

// New returns a live reading. An empty status is replaced with
// [UnidentifiedStatus].
func New(temperature, luminosity, sound Value, status string) Reading {
	if status == "" {
		status = UnidentifiedStatus
	}
	return Reading{
		temperature: temperature,
		luminosity:  luminosity,
		sound:       sound,
		status:      status,
	}
}

// Fallback returns the sentinel reading shown when no live data is trusted.
// Every call returns an identical value.
func Fallback() Reading {
	return Reading{status: FallbackStatus, fallback: true}
}

// Temperature returns the temperature measurement.
func (r Reading) Temperature() Value { return r.temperature }

// Luminosity returns the luminosity measurement.
func (r Reading) Luminosity() Value { return r.luminosity }

// Sound returns the sound level measurement.
func (r Reading) Sound() Value { return r.sound }

// Status returns the status text.
func (r Reading) Status() string { return r.status }

// IsFallback reports whether r is the fallback sentinel.
func (r Reading) IsFallback() bool { return r.fallback }

// wireReading is the JSON shape of a Reading.
type wireReading struct {
	Temperature Value  `json:"temperature"`
	Luminosity  Value  `json:"luminosity"`
	Sound       Value  `json:"sound"`
	Status      string `json:"status"`
	IsFallback  bool   `json:"is_fallback"`
}

// MarshalJSON encodes the reading with snake_case keys.
func (r Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireReading{
		Temperature: r.temperature,
		Luminosity:  r.luminosity,
		Sound:       r.sound,
		Status:      r.status,
		IsFallback:  r.fallback,
	})
}

// UnmarshalJSON decodes a reading previously encoded with MarshalJSON.
// A fallback flag always yields the canonical [Fallback] value.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var w wireReading
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.IsFallback {
		*r = Fallback()
		return nil
	}
	*r = New(w.Temperature, w.Luminosity, w.Sound, w.Status)
	return nil
}

// String returns a compact human-readable form used in logs.
func (r Reading) String() string {
	if r.fallback {
		return "fallback(" + r.status + ")"
	}
	return "live(t=" + r.temperature.String() +
		" l=" + r.luminosity.String() +
		" s=" + r.sound.String() +
		" status=" + strconv.Quote(r.status) + ")"
}
