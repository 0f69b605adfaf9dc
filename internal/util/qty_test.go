package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"listquote/internal"
)

func TestParseQty(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
		unit  string
	}{
		{name: "trailing unit", input: "Cuaderno universitario 100 hojas 3 unid.", want: 3, unit: "u"},
		{name: "leading number", input: "2 cuadernos rayados", want: 2},
		{name: "bullet and leading number", input: "- 4 lápices HB", want: 4},
		{name: "numbered list keeps quantity", input: "1. 5 gomas de borrar", want: 5},
		{name: "multiplier suffix", input: "Témperas 12 colores x3", want: 3},
		{name: "multiplier prefix", input: "6x plumones", want: 6},
		{name: "dozen", input: "Lápices de colores 2 docenas", want: 24, unit: "u"},
		{name: "boxes", input: "Clips metálicos 3 cajas", want: 3, unit: "caja"},
		{name: "thousands", input: "Hojas bond 1.000 u", want: 1000, unit: "u"},
		{name: "decimal comma", input: "Resma carta 1,5 resmas", want: 1.5, unit: "resma"},
		{name: "trailing bare number", input: "Corrector líquido 2", want: 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseQty(tc.input)
			require.NotNil(t, parsed.Qty)
			require.Equal(t, tc.want, *parsed.Qty)
			if tc.unit != "" {
				require.NotNil(t, parsed.Unit)
				require.Equal(t, tc.unit, *parsed.Unit)
			}
		})
	}
}

func TestParseQtyLeavesDescriptionNumbers(t *testing.T) {
	for _, input := range []string{
		"Cuaderno 100 hojas cuadriculado",
		"Témperas x 6 colores",
		"1. Regla 30 cm",
	} {
		parsed := ParseQty(input)
		require.Nil(t, parsed.Qty, input)
	}
}

func TestParseQtyRawSpan(t *testing.T) {
	parsed := ParseQty("Pegamento en barra 3 unidades")
	require.NotNil(t, parsed.QtyRaw)
	require.Equal(t, "3 unidades", *parsed.QtyRaw)
}

func TestRequestedQuantity(t *testing.T) {
	require.Equal(t, 1, RequestedQuantity(nil))
	require.Equal(t, 1, RequestedQuantity(FloatPtr(0)))
	require.Equal(t, 1, RequestedQuantity(FloatPtr(-3)))
	require.Equal(t, 2, RequestedQuantity(FloatPtr(1.5)))
	require.Equal(t, 7, RequestedQuantity(FloatPtr(7)))
	require.Equal(t, internal.MaxQuantity, RequestedQuantity(FloatPtr(math.Inf(1))))
	require.Equal(t, 1, RequestedQuantity(FloatPtr(math.NaN())))

	huge := ParseQty("cuaderno 99999999999999999999 u")
	require.NotNil(t, huge.Qty)
	require.Equal(t, internal.MaxQuantity, RequestedQuantity(huge.Qty))
}

func TestParseAmount(t *testing.T) {
	cases := map[string]float64{
		"$1.250,50": 1250.50,
		"1,250.50":  1250.50,
		"990":       990,
		"0,40":      0.40,
		"12.000":    12000,
		"CLP 3.490": 3490,
	}
	for input, want := range cases {
		got, ok := ParseAmount(input)
		require.True(t, ok, input)
		require.InDelta(t, want, got, 1e-9, input)
	}

	_, ok := ParseAmount("consultar")
	require.False(t, ok)
	_, ok = ParseAmount("")
	require.False(t, ok)
}
