// Package dataurl decodes base64 data URIs as produced by browser canvas
// and file-reader APIs ("data:image/jpeg;base64,/9j/4AAQ...").
package dataurl

import (
	"encoding/base64"
	"strings"
)

// Parse splits a data URI into its MIME type and decoded bytes.
// ok is false for anything that is not a well-formed base64 data URI.
func Parse(s string) (mime string, data []byte, ok bool) {
	rest, found := strings.CutPrefix(s, "data:")
	if !found {
		return "", nil, false
	}
	meta, b64, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, false
	}
	mime, found = strings.CutSuffix(meta, ";base64")
	if !found || mime == "" {
		return "", nil, false
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", nil, false
	}
	return mime, data, true
}

// Ext derives a file extension from a MIME type ("image/jpeg" → "jpeg").
// Unknown shapes fall back to "bin".
func Ext(mime string) string {
	if _, sub, ok := strings.Cut(mime, "/"); ok && sub != "" {
		return sub
	}
	return "bin"
}
