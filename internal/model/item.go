// Package model defines the core domain models used throughout the application.
package model

import "time"

// LineItem represents a single concepto from a CFDI invoice.
type LineItem struct {
	Description string
	ProductCode string // SAT product/service code (ClaveProdServ)
	UnitCode    string // Raw unit as it appears on the invoice (KG, PZA, Caja...)
	Quantity    float64
	UnitPrice   float64
	Amount      float64
}

// Invoice represents a parsed CFDI document with its line items.
type Invoice struct {
	IssuedAt     time.Time
	UUID         string
	Serie        string
	Folio        string
	IssuerRFC    string
	IssuerName   string
	ReceiverRFC  string
	ReceiverName string
	Currency     string
	LineItems    []LineItem
	Subtotal     float64
	Total        float64
}
