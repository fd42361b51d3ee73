// music_common.go - Shared string helpers for chunk parsers

package main

import "strings"

// parsePaddedString extracts a string from a fixed-size field,
// trimming trailing null bytes and spaces
// Used by phdr/inst/shdr names and INFO sub-chunks
func parsePaddedString(data []byte) string {
	// Find first null byte
	end := len(data)
	for i, b := range data {
		if b == 0 {
			end = i
			break
		}
	}
	return strings.TrimRight(string(data[:end]), " ")
}
