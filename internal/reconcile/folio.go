// Package reconcile matches restaurant point-of-sale exports: the comandas
// file (one row per line item) against the ventas file (one row per bill).
// Bills are joined by normalized folio; mismatches, orphans, and duplicates
// become quality issues rather than errors.
package reconcile

import (
	"regexp"
	"strings"
)

// folioZeroPad matches a letter prefix followed by zero-padded digits.
var folioZeroPad = regexp.MustCompile(`([A-Z]+)0+(\d+)`)

// NormalizeFolio canonicalizes a bill identifier for matching. Folios are
// uppercased, trimmed, and stripped of zero padding after a letter prefix,
// so "p077" and "P77" refer to the same bill. Empty input normalizes to "".
func NormalizeFolio(folio string) string {
	folio = strings.ToUpper(strings.TrimSpace(folio))
	if folio == "" {
		return ""
	}
	return folioZeroPad.ReplaceAllString(folio, "$1$2")
}
