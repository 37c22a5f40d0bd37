package reading

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Payload field names published by the sensor endpoint.
const (
	FieldTemperature = "temperatura"
	FieldLuminosity  = "luminosidade"
	FieldSound       = "som"
	FieldStatus      = "status"
)

// Payload is the raw outcome of one fetch from the sensor endpoint.
type Payload struct {
	// Body is the response body, possibly empty.
	Body []byte

	// StatusCode is the HTTP status code, zero if no response was received.
	StatusCode int

	// Err is the fetch-layer failure (network error, timeout), if any.
	Err error
}

// TransportError reports that the fetch itself failed: a network error,
// a timeout or a non-2xx response.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return "transport: " + e.Err.Error()
	}
	return fmt.Sprintf("transport: unexpected HTTP status %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedPayloadError reports a response body that is not a non-empty
// JSON object of the expected shape.
type MalformedPayloadError struct {
	Reason string
	Err    error
}

func (e *MalformedPayloadError) Error() string {
	if e.Err != nil {
		return "malformed payload: " + e.Reason + ": " + e.Err.Error()
	}
	return "malformed payload: " + e.Reason
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// Normalize converts a fetched payload into a live [Reading].
//
// On failure it returns [Fallback] together with a [*TransportError] or a
// [*MalformedPayloadError]; the reading is usable either way.
func Normalize(p Payload) (Reading, error) {
	if p.Err != nil {
		return Fallback(), &TransportError{StatusCode: p.StatusCode, Err: p.Err}
	}
	if p.StatusCode < 200 || p.StatusCode > 299 {
		return Fallback(), &TransportError{StatusCode: p.StatusCode}
	}

	fields, err := decodeObject(p.Body)
	if err != nil {
		return Fallback(), err
	}

	status, err := parseStatus(fields[FieldStatus])
	if err != nil {
		return Fallback(), err
	}

	return New(
		parseValue(fields[FieldTemperature]),
		parseValue(fields[FieldLuminosity]),
		parseValue(fields[FieldSound]),
		status,
	), nil
}

// decodeObject parses body as a single non-empty JSON object.
func decodeObject(body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &MalformedPayloadError{Reason: "empty body"}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedPayloadError{Reason: "invalid JSON", Err: err}
	}
	if dec.More() {
		return nil, &MalformedPayloadError{Reason: "trailing data after JSON value"}
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &MalformedPayloadError{Reason: fmt.Sprintf("expected JSON object, got %s", jsonKind(raw))}
	}
	if len(obj) == 0 {
		return nil, &MalformedPayloadError{Reason: "empty JSON object"}
	}
	return obj, nil
}

// parseValue reads a number-like field. Anything that is not a finite number
// or a string holding one becomes absent.
func parseValue(raw any) Value {
	var s string
	switch v := raw.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	default:
		return Absent()
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Absent()
	}
	return Number(f)
}

// parseStatus trims and NFC-normalizes the status text.
// A missing or null status is treated as empty.
func parseStatus(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return UnidentifiedStatus, nil
	case string:
		s := norm.NFC.String(strings.TrimSpace(v))
		if s == "" {
			return UnidentifiedStatus, nil
		}
		return s, nil
	default:
		return "", &MalformedPayloadError{Reason: fmt.Sprintf("status must be a string, got %s", jsonKind(raw))}
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// IsTransport reports whether err is, or wraps, a [*TransportError].
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsMalformed reports whether err is, or wraps, a [*MalformedPayloadError].
func IsMalformed(err error) bool {
	var me *MalformedPayloadError
	return errors.As(err, &me)
}

// FailureKind returns a short label for a normalization error, suitable for
// metric labels: "transport", "malformed" or "" for nil.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTransport(err):
		return "transport"
	case IsMalformed(err):
		return "malformed"
	default:
		return "unknown"
	}
}
