package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectShoppingList(t *testing.T) {
	res := DetectShoppingList("Lista de útiles 3° básico", "Necesito cotizar:\n2 cuadernos\n3 lápices\n", "", nil)
	require.True(t, res.IsList)
	require.Equal(t, "rules_positive", res.Reason)

	res = DetectShoppingList("Pedido", "Adjunto mi pedido.", "", []string{"pedido.xlsx"})
	require.True(t, res.IsList)
}

func TestDetectIgnoresOrdinaryMail(t *testing.T) {
	res := DetectShoppingList("Factura marzo", "Adjunto la factura del mes.\nSaludos", "", nil)
	require.False(t, res.IsList)
	require.Less(t, res.Score, 0.45)
}
