package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Comandas column positions. The export carries no reliable header row, so
// columns are mapped by position.
const (
	colFolioComanda = iota
	colFolioCuenta
	colOrden
	colFechaApertura
	colFechaCierre
	colMesero
	colClaveProducto
	colFechaCaptura
	colDescripcion
	colCantidad
	colDescuento
	colImporte
	comandasColumns
)

// dateLayouts are the timestamp formats seen across POS exports.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseComandasFile reads the line-item export. Rows missing a bill folio,
// amount, or quantity are logged and skipped rather than aborting the file,
// so one malformed row never loses the rest of the batch.
func ParseComandasFile(path string) ([]ComandaLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening comandas file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var lines []ComandaLine
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading comandas file at row %d: %w", rowNum+1, err)
		}
		rowNum++

		if isComandasHeader(record) {
			continue
		}
		if len(record) < comandasColumns {
			slog.Warn("skipping short comandas row", "row", rowNum, "fields", len(record))
			continue
		}

		folioCuenta := strings.TrimSpace(record[colFolioCuenta])
		if folioCuenta == "" {
			slog.Warn("skipping comandas row with empty foliocuenta", "row", rowNum)
			continue
		}

		cantidad, err := parseDecimal(record[colCantidad])
		if err != nil {
			slog.Warn("skipping comandas row with bad cantidad",
				"row", rowNum, "value", record[colCantidad])
			continue
		}
		importe, err := parseDecimal(record[colImporte])
		if err != nil {
			slog.Warn("skipping comandas row with bad importe",
				"row", rowNum, "value", record[colImporte])
			continue
		}

		descuento, err := parseDecimal(record[colDescuento])
		if err != nil {
			descuento = decimal.Zero
		}
		orden, _ := strconv.Atoi(strings.TrimSpace(record[colOrden]))

		lines = append(lines, ComandaLine{
			FolioComanda:  strings.TrimSpace(record[colFolioComanda]),
			FolioCuenta:   folioCuenta,
			Orden:         orden,
			FechaApertura: parseTimestamp(record[colFechaApertura]),
			FechaCierre:   parseTimestamp(record[colFechaCierre]),
			FechaCaptura:  parseTimestamp(record[colFechaCaptura]),
			Mesero:        strings.TrimSpace(record[colMesero]),
			ClaveProducto: strings.TrimSpace(record[colClaveProducto]),
			Descripcion:   strings.TrimSpace(record[colDescripcion]),
			Cantidad:      cantidad,
			Descuento:     descuento,
			Importe:       importe,
		})
	}

	slog.Info("parsed comandas file", "path", path, "lines", len(lines))
	return lines, nil
}

// ParseVentasFile reads the bill-summary export. The file opens with report
// banner rows before the real header, so the parser scans for the row
// containing a folio column and maps the remaining columns by name.
func ParseVentasFile(path string) ([]VentaSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ventas file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var columns map[string]int
	var ventas []VentaSummary
	rowNum := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ventas file at row %d: %w", rowNum+1, err)
		}
		rowNum++

		if columns == nil {
			columns = mapVentasColumns(record)
			if columns != nil {
				slog.Info("found ventas header", "row", rowNum)
			}
			continue
		}

		folioIdx := columns["folio"]
		if folioIdx >= len(record) {
			continue
		}
		folio := strings.TrimSpace(record[folioIdx])
		if folio == "" {
			continue
		}

		venta := VentaSummary{Folio: folio}
		if idx, ok := columns["total"]; ok && idx < len(record) {
			venta.Total, _ = parseDecimal(record[idx])
		}
		if idx, ok := columns["neto"]; ok && idx < len(record) {
			venta.Neto, _ = parseDecimal(record[idx])
		}
		if idx, ok := columns["impuestos"]; ok && idx < len(record) {
			venta.Impuestos, _ = parseDecimal(record[idx])
		}
		if idx, ok := columns["descuentos"]; ok && idx < len(record) {
			venta.Descuentos, _ = parseDecimal(record[idx])
		}
		if idx, ok := columns["cierre"]; ok && idx < len(record) {
			venta.Cierre = parseTimestamp(record[idx])
		}
		ventas = append(ventas, venta)
	}

	if columns == nil {
		return nil, fmt.Errorf("ventas file %s has no folio header row", path)
	}

	slog.Info("parsed ventas file", "path", path, "ventas", len(ventas))
	return ventas, nil
}

// isComandasHeader detects a stray header row inside the data.
func isComandasHeader(record []string) bool {
	for _, field := range record {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "foliocuenta", "foliocomanda", "claveproducto", "descripcion", "importe", "cantidad":
			return true
		}
	}
	return false
}

// mapVentasColumns returns a name-to-index map if the record looks like the
// ventas header row, nil otherwise.
func mapVentasColumns(record []string) map[string]int {
	columns := make(map[string]int)
	for i, field := range record {
		name := strings.ToLower(strings.TrimSpace(field))
		switch {
		case strings.Contains(name, "folio"):
			columns["folio"] = i
		case name == "total":
			columns["total"] = i
		case strings.Contains(name, "articulos"):
			columns["neto"] = i
		case strings.Contains(name, "impuesto"):
			columns["impuestos"] = i
		case strings.Contains(name, "descuento") && strings.Contains(name, "cortesia"):
			columns["descuentos"] = i
		case strings.Contains(name, "cierre"):
			columns["cierre"] = i
		}
	}
	if _, ok := columns["folio"]; !ok {
		return nil
	}
	return columns
}

func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	return decimal.NewFromString(s)
}

func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
