// Package cfdi parses Mexican electronic invoice (CFDI) XML documents into
// the domain model. Both CFDI 3.3 and 4.0 namespaces are supported.
package cfdi

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/facturaflow/facturaflow/internal/model"
)

// comprobante mirrors the cfdi:Comprobante root element. The two CFDI
// namespace versions share attribute names, so one struct covers both.
type comprobante struct {
	XMLName   xml.Name   `xml:"Comprobante"`
	Version   string     `xml:"Version,attr"`
	Serie     string     `xml:"Serie,attr"`
	Folio     string     `xml:"Folio,attr"`
	Fecha     string     `xml:"Fecha,attr"`
	Moneda    string     `xml:"Moneda,attr"`
	SubTotal  string     `xml:"SubTotal,attr"`
	Total     string     `xml:"Total,attr"`
	Emisor    parte      `xml:"Emisor"`
	Receptor  parte      `xml:"Receptor"`
	Conceptos []concepto `xml:"Conceptos>Concepto"`
	Timbre    timbre     `xml:"Complemento>TimbreFiscalDigital"`
}

type parte struct {
	RFC    string `xml:"Rfc,attr"`
	Nombre string `xml:"Nombre,attr"`
}

type concepto struct {
	ClaveProdServ string `xml:"ClaveProdServ,attr"`
	Descripcion   string `xml:"Descripcion,attr"`
	ClaveUnidad   string `xml:"ClaveUnidad,attr"`
	Unidad        string `xml:"Unidad,attr"`
	Cantidad      string `xml:"Cantidad,attr"`
	ValorUnitario string `xml:"ValorUnitario,attr"`
	Importe       string `xml:"Importe,attr"`
}

type timbre struct {
	UUID string `xml:"UUID,attr"`
}

// ParseFile reads and parses one CFDI XML document.
func ParseFile(path string) (*model.Invoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading CFDI file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a CFDI document from raw XML bytes.
func Parse(data []byte) (*model.Invoice, error) {
	var doc comprobante
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding CFDI XML: %w", err)
	}
	if doc.Version == "" {
		return nil, fmt.Errorf("document is not a CFDI comprobante")
	}
	if len(doc.Conceptos) == 0 {
		return nil, fmt.Errorf("comprobante has no conceptos")
	}

	invoice := &model.Invoice{
		UUID:         doc.Timbre.UUID,
		Serie:        doc.Serie,
		Folio:        doc.Folio,
		IssuerRFC:    doc.Emisor.RFC,
		IssuerName:   doc.Emisor.Nombre,
		ReceiverRFC:  doc.Receptor.RFC,
		ReceiverName: doc.Receptor.Nombre,
		Currency:     doc.Moneda,
		Subtotal:     parseAmount(doc.SubTotal),
		Total:        parseAmount(doc.Total),
	}
	if invoice.Currency == "" {
		invoice.Currency = "MXN"
	}
	if issuedAt, err := parseFecha(doc.Fecha); err == nil {
		invoice.IssuedAt = issuedAt
	}

	for _, c := range doc.Conceptos {
		unitCode := c.ClaveUnidad
		if unitCode == "" {
			unitCode = c.Unidad
		}
		invoice.LineItems = append(invoice.LineItems, model.LineItem{
			Description: c.Descripcion,
			ProductCode: c.ClaveProdServ,
			UnitCode:    unitCode,
			Quantity:    parseAmount(c.Cantidad),
			UnitPrice:   parseAmount(c.ValorUnitario),
			Amount:      parseAmount(c.Importe),
		})
	}

	return invoice, nil
}

// parseFecha handles the CFDI timestamp format, with and without zone.
func parseFecha(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized CFDI date: %q", s)
}

func parseAmount(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
