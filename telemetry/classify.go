package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// StatusField is the payload field holding the device state code.
const StatusField = "status"

// RootField is reported by [MissingField] when the body is not a JSON object.
const RootField = "root"

// Classify turns an HTTP status code and response body into a [Reading].
//
// The checks run in a fixed order so that the same payload always yields the
// same error:
//  1. httpStatus must be 200, else [UnexpectedStatus]
//  2. body must be a JSON object, else MissingField("root")
//  3. "status" must be present, an integer, and a known state
//  4. while the sensor is attached, every schema rate field must be present
//  5. for [ReportingData], the schema value field must be a non-negative integer
//
// Rate fields are ignored for every status other than [ReportingData], even
// when the bridge sends them.
func Classify(httpStatus int, body []byte, schema Schema) (Reading, error) {
	return ClassifyAt(httpStatus, body, schema, time.Now())
}

// ClassifyAt is [Classify] with an explicit classification time.
func ClassifyAt(httpStatus int, body []byte, schema Schema, at time.Time) (Reading, error) {
	if httpStatus != http.StatusOK {
		return Reading{}, UnexpectedStatus(httpStatus)
	}

	obj, ok := decodeObject(body)
	if !ok {
		return Reading{}, MissingField(RootField)
	}

	code, present, err := intField(obj, StatusField)
	if !present {
		return Reading{}, MissingField(StatusField)
	}
	if err != nil {
		return Reading{}, InvalidField(StatusField, err)
	}

	status := Status(code)
	if !status.Known() {
		return Reading{}, UnknownStatus(code)
	}

	if status.Attached() {
		for _, field := range schema.RateFields() {
			if _, ok := obj[field]; !ok {
				return Reading{}, MissingField(field)
			}
		}
	}

	if status != ReportingData {
		return Reading{status: status, checkedAt: at}, nil
	}

	field := schema.ValueField()
	rate, present, err := intField(obj, field)
	if !present {
		return Reading{}, MissingField(field)
	}
	if err != nil {
		return Reading{}, InvalidField(field, err)
	}
	if rate < 0 {
		return Reading{}, InvalidField(field, fmt.Errorf("negative rate %d", rate))
	}

	return Reading{status: status, value: rate, hasValue: true, checkedAt: at}, nil
}

// decodeObject parses body as a JSON object, keeping numbers exact.
func decodeObject(body []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// intField extracts an integral number from obj[name].
// Integral floats such as 72.0 are accepted.
func intField(obj map[string]any, name string) (value int, present bool, err error) {
	raw, ok := obj[name]
	if !ok {
		return 0, false, nil
	}

	n, ok := raw.(json.Number)
	if !ok {
		return 0, true, fmt.Errorf("expected integer, got %s", jsonType(raw))
	}

	if i, err := n.Int64(); err == nil {
		if i < math.MinInt32 || i > math.MaxInt32 {
			return 0, true, fmt.Errorf("integer %d out of range", i)
		}
		return int(i), true, nil
	}

	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, true, fmt.Errorf("expected integer, got %s", n.String())
	}
	return int(f), true, nil
}

// jsonType names the JSON type of a decoded value for error messages.
func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
