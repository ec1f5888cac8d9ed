package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Units accepted for a measurement value.
const (
	UnitCentimeters = "cm"
	UnitMillimeters = "mm"
)

// Measurement is one measured value of an organ.
type Measurement struct {
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	IsAbnormal bool    `json:"is_abnormal"`
}

// Validate checks the unit.
func (m Measurement) Validate() error {
	switch m.Unit {
	case UnitCentimeters, UnitMillimeters:
		return nil
	default:
		return fmt.Errorf("invalid unit %q (want cm or mm)", m.Unit)
	}
}

// InCentimeters returns the value converted to centimeters.
func (m Measurement) InCentimeters() float64 {
	if m.Unit == UnitMillimeters {
		return m.Value / 10
	}
	return m.Value
}

// NamedMeasurement is a measurement stored under a slot name such as "comprimento" or "medida_1".
type NamedMeasurement struct {
	Slot string
	Measurement
}

// Measurements is the ordered set of measurement slots of one organ.
// Order is insertion order; it serializes as a JSON object whose key order is preserved
// in both directions, so the order written by the client is the order rendered in reports.
type Measurements []NamedMeasurement

// Get returns the measurement stored under slot.
func (ms Measurements) Get(slot string) (Measurement, bool) {
	for _, m := range ms {
		if m.Slot == slot {
			return m.Measurement, true
		}
	}
	return Measurement{}, false
}

// Set replaces the measurement under slot in place, or appends a new slot.
func (ms *Measurements) Set(slot string, m Measurement) {
	for i := range *ms {
		if (*ms)[i].Slot == slot {
			(*ms)[i].Measurement = m
			return
		}
	}
	*ms = append(*ms, NamedMeasurement{Slot: slot, Measurement: m})
}

// Delete removes slot, keeping the order of the remaining slots.
func (ms *Measurements) Delete(slot string) {
	out := (*ms)[:0]
	for _, m := range *ms {
		if m.Slot != slot {
			out = append(out, m)
		}
	}
	*ms = out
}

// Values returns the measurement values in slot order.
func (ms Measurements) Values() []float64 {
	out := make([]float64, len(ms))
	for i, m := range ms {
		out[i] = m.Value
	}
	return out
}

// MarshalJSON writes the slots as a JSON object in slot order.
func (ms Measurements) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range ms {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(m.Slot)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.Measurement)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object token by token so that key order survives decoding.
// A repeated key replaces the earlier value in place.
func (ms *Measurements) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*ms = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("measurements: expected object, got %v", tok)
	}
	out := Measurements{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		slot, ok := tok.(string)
		if !ok {
			return fmt.Errorf("measurements: expected slot name, got %v", tok)
		}
		var m Measurement
		if err := dec.Decode(&m); err != nil {
			return fmt.Errorf("measurements: slot %q: %w", slot, err)
		}
		out.Set(slot, m)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*ms = out
	return nil
}
