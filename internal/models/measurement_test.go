package models

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurements_UnmarshalKeepsKeyOrder(t *testing.T) {
	raw := `{"medida_3":{"value":3,"unit":"cm","is_abnormal":false},
		"comprimento":{"value":1.5,"unit":"mm","is_abnormal":true},
		"medida_1":{"value":2,"unit":"cm","is_abnormal":false}}`

	var ms Measurements
	require.NoError(t, json.Unmarshal([]byte(raw), &ms))

	slots := make([]string, len(ms))
	for i, m := range ms {
		slots[i] = m.Slot
	}
	assert.Equal(t, []string{"medida_3", "comprimento", "medida_1"}, slots)
	assert.Equal(t, []float64{3, 1.5, 2}, ms.Values())

	m, ok := ms.Get("comprimento")
	require.True(t, ok)
	assert.True(t, m.IsAbnormal)
	assert.Equal(t, UnitMillimeters, m.Unit)
}

func TestMeasurements_RoundTripPreservesOrder(t *testing.T) {
	var ms Measurements
	ms.Set("b", Measurement{Value: 1, Unit: "cm"})
	ms.Set("a", Measurement{Value: 2, Unit: "cm"})

	data, err := json.Marshal(ms)
	require.NoError(t, err)
	assert.Equal(t, `{"b":{"value":1,"unit":"cm","is_abnormal":false},"a":{"value":2,"unit":"cm","is_abnormal":false}}`, string(data))

	var back Measurements
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(ms, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMeasurements_SetReplacesInPlace(t *testing.T) {
	var ms Measurements
	ms.Set("x", Measurement{Value: 1, Unit: "cm"})
	ms.Set("y", Measurement{Value: 2, Unit: "cm"})
	ms.Set("x", Measurement{Value: 9, Unit: "mm"})

	assert.Equal(t, []float64{9, 2}, ms.Values())
	assert.Equal(t, "x", ms[0].Slot)

	ms.Delete("x")
	assert.Equal(t, []float64{2}, ms.Values())
}

func TestMeasurements_DuplicateKeyReplaces(t *testing.T) {
	var ms Measurements
	require.NoError(t, json.Unmarshal([]byte(`{"a":{"value":1,"unit":"cm"},"b":{"value":2,"unit":"cm"},"a":{"value":3,"unit":"cm"}}`), &ms))
	assert.Equal(t, []float64{3, 2}, ms.Values())
}

func TestMeasurements_NullAndInvalid(t *testing.T) {
	var ms Measurements
	require.NoError(t, json.Unmarshal([]byte(`null`), &ms))
	assert.Nil(t, ms)

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &ms))
}

func TestMeasurement_Validate(t *testing.T) {
	assert.NoError(t, Measurement{Unit: "cm"}.Validate())
	assert.NoError(t, Measurement{Unit: "mm"}.Validate())
	assert.Error(t, Measurement{Unit: "in"}.Validate())
	assert.InDelta(t, 0.45, Measurement{Value: 4.5, Unit: "mm"}.InCentimeters(), 1e-9)
}
