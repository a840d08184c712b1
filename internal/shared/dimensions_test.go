package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDimensions(t *testing.T) {
	cases := map[string]struct {
		label   string
		want    Dimensions
		wantErr bool
	}{
		"full label":      {label: "L: 10, W: 5, T: 0.25", want: Dims(10, 5, 0.25)},
		"tight spacing":   {label: "L:10,W:5,T:0.25", want: Dims(10, 5, 0.25)},
		"padded":          {label: "  L: 120, W: 48, T: 1  ", want: Dims(120, 48, 1)},
		"empty":           {label: "", want: Dimensions{}},
		"blank":           {label: "   ", want: Dimensions{}},
		"missing width":   {label: "L: 10, T: 0.25", wantErr: true},
		"free text":       {label: "ten by five", wantErr: true},
		"negative":        {label: "L: -10, W: 5, T: 0.25", wantErr: true},
		"lowercase names": {label: "l: 10, w: 5, t: 0.25", wantErr: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseDimensions(tc.label)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidDimensions)
				assert.Equal(t, KindInvalidInput, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDimensionsLabelRoundTrip(t *testing.T) {
	d := Dims(10, 5, 0.25)
	assert.Equal(t, "L: 10, W: 5, T: 0.25", d.Label())
	parsed, err := ParseDimensions(d.Label())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)

	length := 12.5
	assert.Equal(t, "L: 12.5", Dimensions{Length: &length}.Label())
	assert.Empty(t, Dimensions{}.Label())
}

func TestDimensionsMatches(t *testing.T) {
	stock := Dims(10, 5, 0.25)
	length, thickness := 10.0, 0.25
	other := 11.0

	assert.True(t, Dimensions{}.Matches(stock), "zero dimensions match anything")
	assert.True(t, Dimensions{Length: &length, Thickness: &thickness}.Matches(stock))
	assert.False(t, Dimensions{Length: &other}.Matches(stock))
	assert.False(t, Dims(10, 5, 0.25).Matches(Dimensions{Length: &length}), "unset stock dimension does not satisfy a set one")
}

func TestDimensionsValidate(t *testing.T) {
	neg := -1.0
	require.NoError(t, Dims(1, 2, 3).Validate())
	require.NoError(t, Dimensions{}.Validate())
	err := Dimensions{Width: &neg}.Validate()
	require.Error(t, err)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.True(t, Dimensions{}.IsZero())
	assert.False(t, Dimensions{Width: &neg}.IsZero())
}
