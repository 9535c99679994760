package config

import (
	"os"
	"strings"
)

// WasteAwareAvailability makes the availability calculator inflate each
// recipe requirement by the ingredient's waste percentage before flooring.
// Whether waste should reduce the advertised sellable quantity is a product
// policy decision, so it ships behind a flag and defaults to off.
//
// Set via env:
// - FEATURE_WASTE_AWARE_AVAILABILITY=true
func WasteAwareAvailability() bool {
	return boolFromEnv("FEATURE_WASTE_AWARE_AVAILABILITY")
}

// StrictReceiptImmutability disallows any mutation of inventory entries after
// creation (including admin tooling). Receipts are append-only either way; the
// flag additionally blocks the internal cleanup endpoints.
//
// Set via env:
// - STRICT_RECEIPT_IMMUTABLE=true
func StrictReceiptImmutability() bool {
	return boolFromEnv("STRICT_RECEIPT_IMMUTABLE")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
