// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package core

import "golang.org/x/text/unicode/norm"

// sanitize normalizes user-supplied strings to NFC before they are measured
// and stored as beacon payload bytes. Null/empty input is left as-is; the
// caller decides whether an empty result means "drop this record."
func sanitize(s string) string {
	if s == "" {
		return s
	}
	return norm.NFC.String(s)
}
