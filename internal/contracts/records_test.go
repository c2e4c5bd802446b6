package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"already padded", "005930", "005930", true},
		{"short numeric", "5930", "005930", true},
		{"whitespace", " 35720 ", "035720", true},
		{"alphanumeric", "00593A", "", false},
		{"empty", "", "", false},
		{"too long", "1234567", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeCode(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFloatJSON(t *testing.T) {
	type row struct {
		PER Float `json:"per"`
	}

	t.Run("NaN encodes as null", func(t *testing.T) {
		data, err := json.Marshal(row{PER: NaN()})
		require.NoError(t, err)
		assert.JSONEq(t, `{"per":null}`, string(data))
	})

	t.Run("null decodes as NaN", func(t *testing.T) {
		var r row
		require.NoError(t, json.Unmarshal([]byte(`{"per":null}`), &r))
		assert.True(t, r.PER.IsNaN())
	})

	t.Run("round trip", func(t *testing.T) {
		data, err := json.Marshal(row{PER: 12.5})
		require.NoError(t, err)

		var r row
		require.NoError(t, json.Unmarshal(data, &r))
		assert.Equal(t, Float(12.5), r.PER)
	})
}

func TestFloatOr(t *testing.T) {
	assert.Equal(t, 0.0, NaN().Or(0))
	assert.Equal(t, 3.0, Float(3).Or(0))
}
