package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel returns one element per sheet, cells tab-separated.
func extractExcel(content []byte) ([]Element, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var elements []Element
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		elements = append(elements, Element{
			Kind: "sheet",
			Text: strings.TrimSpace(buf.String()),
			Meta: map[string]interface{}{"sheet": sheet},
		})
	}
	return elements, nil
}
