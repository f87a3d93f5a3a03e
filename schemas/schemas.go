// Package schemas holds the embedded JSON-schema documents describing the
// dispatch domain payloads. Top-level files are the per-kind request body
// schemas, refs/ holds shared definitions (email shape, mobile number
// pattern, geo coordinates, postal address).
package schemas

import "embed"

//go:embed *.json refs/*.json
var FS embed.FS
