package model

import (
	"crypto/md5" // #nosec G501 -- key fingerprint, not a security boundary
	"fmt"
	"strings"
	"time"
	"unicode"
)

// maxSKUKeyBase bounds the normalized portion of a SKU key before hashing.
const maxSKUKeyBase = 200

// SKUKey derives a deterministic cache key from an item's description and
// optional SAT product code. Identical inputs always yield identical keys,
// and inputs differing only in case or whitespace collapse to the same key.
func SKUKey(description string, productCode string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(description) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	normalized := strings.Join(strings.Fields(b.String()), "_")

	keyBase := normalized
	if productCode != "" {
		keyBase = productCode + "_" + normalized
	}
	if len(keyBase) > maxSKUKeyBase {
		keyBase = keyBase[:maxSKUKeyBase]
	}

	sum := md5.Sum([]byte(keyBase)) // #nosec G401
	prefix := keyBase
	if len(prefix) > 50 {
		prefix = prefix[:50]
	}
	return fmt.Sprintf("sku_%x_%s", sum[:4], prefix)
}

// ApprovedSKU is a human-ratified classification keyed by SKU key.
// Created by the approval workflow; this system only reads it and bumps
// the usage counters.
type ApprovedSKU struct {
	LastUsed         time.Time
	ApprovedAt       time.Time
	SKUKey           string
	Description      string
	Category         string
	Subcategory      string
	SubSubCategory   string
	StandardizedUnit string
	PackageType      string
	UnitsPerPackage  float64
	Confidence       float64
	UsageCount       int
}

// Classification converts the stored record into a classification result
// attributed to the approved-SKU store.
func (a *ApprovedSKU) Classification() Classification {
	confidence := a.Confidence
	if confidence == 0 {
		confidence = 1.0
	}
	unitsPerPackage := a.UnitsPerPackage
	if unitsPerPackage <= 0 {
		unitsPerPackage = 1.0
	}
	return Classification{
		ClassifiedAt:     time.Now(),
		Category:         a.Category,
		Subcategory:      a.Subcategory,
		SubSubCategory:   a.SubSubCategory,
		StandardizedUnit: a.StandardizedUnit,
		PackageType:      a.PackageType,
		SKUKey:           a.SKUKey,
		Source:           SourceApprovedSKU,
		ApprovalStatus:   StatusApproved,
		UnitsPerPackage:  unitsPerPackage,
		ConversionFactor: unitsPerPackage,
		Confidence:       confidence,
	}
}
