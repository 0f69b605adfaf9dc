package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractTextSkipsNoise(t *testing.T) {
	text := "Hola, buenas tardes:\n" +
		"Necesito la siguiente lista de útiles:\n" +
		"- 2 cuadernos universitarios\n" +
		"Lápiz grafito HB x3\n" +
		"1. Regla 30 cm\n" +
		"Goma de borrar 4 unidades\n" +
		"Saludos\n" +
		"María\n" +
		"+56 9 1234 5678\n"

	lines := ExtractText(text)
	require.Len(t, lines, 4)

	require.Equal(t, "cuadernos universitarios", lines[0].Name)
	require.Equal(t, 2.0, *lines[0].Qty)
	require.Equal(t, "Lápiz grafito HB", lines[1].Name)
	require.Equal(t, 3.0, *lines[1].Qty)
	require.Equal(t, "Regla 30 cm", lines[2].Name)
	require.Nil(t, lines[2].Qty)
	require.Equal(t, "Goma de borrar", lines[3].Name)
	require.Equal(t, 4.0, *lines[3].Qty)
	require.Equal(t, "u", *lines[3].Unit)
}

func TestExtractTextCodeLine(t *testing.T) {
	lines := ExtractText("CU-100 3 unidades")
	require.Len(t, lines, 1)
	require.Equal(t, "CU-100", lines[0].Name)
}

func TestExtractHTMLTables(t *testing.T) {
	html := `<table>
<tr><th>Producto</th><th>Cantidad</th></tr>
<tr><td>Cuaderno college</td><td>3</td></tr>
<tr><td>Tijera punta roma</td><td></td></tr>
</table>`

	lines := ExtractHTMLTables(html)
	require.Len(t, lines, 2)
	require.Equal(t, "Cuaderno college", lines[0].Name)
	require.Equal(t, 3.0, *lines[0].Qty)
	require.Equal(t, SourceHTMLTable, lines[0].Source)
	require.Equal(t, "Tijera punta roma", lines[1].Name)
	require.Nil(t, lines[1].Qty)
}

func TestExtractXLSXWithHeader(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Descripción", "Cant.", "Unidad"},
		{"Cuaderno college", 10, "u"},
		{"Papel lustre", "2,5", "paq"},
	})
	lines, err := ExtractXLSX(blob)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, 10.0, *lines[0].Qty)
	require.Equal(t, "u", *lines[0].Unit)
	require.Equal(t, "Papel lustre", lines[1].Name)
	require.Equal(t, 2.5, *lines[1].Qty)
	require.Equal(t, "paq", *lines[1].Unit)
}

func TestExtractXLSXWithoutHeader(t *testing.T) {
	blob := mkXLSX([][]any{
		{"Cuaderno", 2},
		{"Lápiz", 5},
		{"Sin cantidad"},
	})
	lines, err := ExtractXLSX(blob)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "Lápiz", lines[1].Name)
}

func TestExtractEmailBodyAndAttachment(t *testing.T) {
	sheet := mkXLSX([][]any{
		{"Producto", "Cantidad"},
		{"Goma de borrar", 2},
		{"Regla 30 cm", 1},
	})
	raw := buildEML("Lista de utiles", "Hola:\nNecesito cotizar:\n3 cuadernos college\nLápiz pasta azul x 10\n",
		attachment{name: "lista.xlsx", contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data: sheet})

	content, err := ExtractEmail(raw)
	require.NoError(t, err)
	require.Equal(t, "Lista de utiles", content.Subject)
	require.Equal(t, []string{"lista.xlsx"}, content.Attachments)
	require.Len(t, content.Lines, 4)
	require.Equal(t, "cuadernos college", content.Lines[0].Name)
	require.Equal(t, 10.0, *content.Lines[1].Qty)
	require.Equal(t, "lista.xlsx", content.Lines[2].Attachment)
	for i, line := range content.Lines {
		require.Equal(t, i+1, line.LineNo)
	}
}

func TestExtractEmailDropsDuplicateLines(t *testing.T) {
	raw := buildEML("Pedido", "2 cuadernos college\n2 cuadernos college\n")
	content, err := ExtractEmail(raw)
	require.NoError(t, err)
	require.Len(t, content.Lines, 1)
}
