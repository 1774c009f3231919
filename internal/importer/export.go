package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/andresuchdata/eisen-inventory/internal/domain"
)

func writeInventoryCSV(w io.Writer, products []domain.Product) error {
	out := csv.NewWriter(w)
	if err := out.Write(RequiredHeaders); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for i, p := range products {
		record := []string{
			strconv.Itoa(i + 1),
			p.Name,
			p.SKU,
			"",
			"",
			strconv.Itoa(p.CurrentStock),
			restockLabel(p.MinimumStockLevel),
		}
		if err := out.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", p.SKU, err)
		}
	}
	out.Flush()
	return out.Error()
}
