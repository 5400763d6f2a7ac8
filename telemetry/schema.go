package telemetry

import (
	"fmt"
	"sort"
	"strings"
)

// Schema describes the field layout of one bridge firmware variant.
//
// Every schema shares the integer "status" field; they differ in which rate
// fields accompany it and which of them carries the reported heart rate.
// RateFields are checked in order, so the first missing one is always the
// one reported.
type Schema interface {
	// Name is the configuration name of the schema.
	Name() string

	// RateFields lists the fields the bridge must send while the sensor is
	// attached, in check order.
	RateFields() []string

	// ValueField is the rate field whose value becomes [Reading.Value].
	ValueField() string
}

// fieldSchema is a Schema defined purely by field names.
type fieldSchema struct {
	name       string
	rateFields []string
	valueField string
}

func (s fieldSchema) Name() string { return s.name }

func (s fieldSchema) RateFields() []string {
	return append([]string(nil), s.rateFields...)
}

func (s fieldSchema) ValueField() string { return s.valueField }

var (
	// HeartRateSchema is the single-field variant: {"status": 2, "hr": 72}.
	HeartRateSchema Schema = fieldSchema{
		name:       "hr",
		rateFields: []string{"hr"},
		valueField: "hr",
	}

	// PeriodRateSchema is the two-period variant sending an instantaneous
	// rate and a reporting-period rate. The reporting-period rate is the
	// published value.
	PeriodRateSchema Schema = fieldSchema{
		name:       "period_rate",
		rateFields: []string{"micro_period_rate", "report_period_rate"},
		valueField: "report_period_rate",
	}
)

var schemas = map[string]Schema{
	HeartRateSchema.Name():  HeartRateSchema,
	PeriodRateSchema.Name(): PeriodRateSchema,
}

// SchemaByName returns the built-in schema with the given configuration name.
func SchemaByName(name string) (Schema, error) {
	s, ok := schemas[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q (expected one of: %s)", name, strings.Join(Schemas(), ", "))
	}
	return s, nil
}

// Schemas returns the names of the built-in schemas, sorted.
func Schemas() []string {
	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
