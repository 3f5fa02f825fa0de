package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValidationStatus is the terminal outcome of reconciling one bill.
type ValidationStatus string

const (
	// StatusMatched means the bill appears in both source files.
	StatusMatched ValidationStatus = "matched"
	// StatusOrphanedComanda means line items exist with no bill summary.
	StatusOrphanedComanda ValidationStatus = "orphaned_comanda"
	// StatusOrphanedVenta means a bill summary exists with no line items.
	StatusOrphanedVenta ValidationStatus = "orphaned_venta"
	// StatusDuplicate means the same order was re-encountered.
	StatusDuplicate ValidationStatus = "duplicate"
	// StatusDuplicateFolio means the same folio appeared twice in one file.
	StatusDuplicateFolio ValidationStatus = "duplicate_folio"
	// StatusMismatch marks an amount discrepancy beyond tolerance.
	StatusMismatch ValidationStatus = "mismatch"
	// StatusPendingValidation is the initial state before reconciliation.
	StatusPendingValidation ValidationStatus = "pending"
)

// SalesOrder is one restaurant bill reconciled across the comandas
// (line item) and ventas (bill summary) exports. At most one order exists
// per (FolioCuenta, ProcessingDate); re-encounters bump DuplicateCount.
type SalesOrder struct {
	FechaApertura  *time.Time
	FechaCierre    *time.Time
	VentasTotal    *decimal.Decimal // nil when the bill is an orphaned comanda
	NetSales       *decimal.Decimal
	Taxes          *decimal.Decimal
	Discounts      *decimal.Decimal
	ProcessingDate time.Time
	LastProcessed  time.Time
	FolioCuenta    string
	FolioComanda   string
	Mesero         string
	Status         ValidationStatus
	ComandasTotal  decimal.Decimal
	DuplicateCount int
	ID             int64
}

// SalesItem is a single comanda line belonging to one order. It keeps its
// own folio copy so items can be re-filtered independently of the order.
type SalesItem struct {
	FechaApertura  *time.Time
	FechaCierre    *time.Time
	FechaCaptura   *time.Time
	ProcessingDate time.Time
	FolioComanda   string
	FolioCuenta    string
	ClaveProducto  string
	Descripcion    string
	Mesero         string
	Cantidad       decimal.Decimal
	Importe        decimal.Decimal
	Descuento      decimal.Decimal
	OrderID        int64
	Orden          int
	DuplicateCount int
	ID             int64
}

// IssueType classifies a reconciliation quality finding.
type IssueType string

const (
	// IssueOrphanedVenta flags a bill summary with no matching line items.
	IssueOrphanedVenta IssueType = "ORPHANED_VENTA"
	// IssueOrphanedComanda flags line items with no matching bill summary.
	IssueOrphanedComanda IssueType = "ORPHANED_COMANDA"
	// IssueMismatch flags an amount difference beyond tolerance.
	IssueMismatch IssueType = "MISMATCH"
	// IssueDuplicate flags a re-processed order.
	IssueDuplicate IssueType = "DUPLICATE"
)

// IssueSeverity grades a quality issue.
type IssueSeverity string

// Quality issue severities.
const (
	SeverityInfo     IssueSeverity = "INFO"
	SeverityWarning  IssueSeverity = "WARNING"
	SeverityError    IssueSeverity = "ERROR"
	SeverityCritical IssueSeverity = "CRITICAL"
)

// QualityIssue is an append-only audit record of a reconciliation anomaly.
// Issues are never updated or deleted.
type QualityIssue struct {
	CreatedAt      time.Time
	ProcessingDate time.Time
	ExpectedValue  *decimal.Decimal
	ActualValue    *decimal.Decimal
	Difference     *decimal.Decimal
	ID             string
	Type           IssueType
	Severity       IssueSeverity
	Description    string
	SourceFile     string
	Folio          string
}
