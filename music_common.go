// music_common.go - Shared utilities for music parsers and metadata

package main

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// parseNullTerminatedString extracts a string up to the first null byte
// Returns the string and the new offset (after the null terminator)
func parseNullTerminatedString(data []byte, offset int) (string, int) {
	start := offset
	for offset < len(data) && data[offset] != 0 {
		offset++
	}
	end := offset
	if offset < len(data) {
		offset++ // Skip null terminator
	}
	if end <= start {
		return "", offset
	}
	return string(data[start:end]), offset
}

// parseUTF16LEString extracts a UTF-16LE string up to the first 16-bit null
// Returns the string and the new offset (after the terminator)
// Used by the GD3 tag block, which stores all text as UTF-16LE
func parseUTF16LEString(data []byte, offset int) (string, int) {
	var units []uint16
	for offset+1 < len(data) {
		u := uint16(data[offset]) | uint16(data[offset+1])<<8
		offset += 2
		if u == 0 {
			return string(utf16.Decode(units)), offset
		}
		units = append(units, u)
	}
	// Unterminated string: consume what is there
	return string(utf16.Decode(units)), len(data)
}

// parsePaddedString extracts a string from a fixed-size field,
// trimming trailing null bytes and spaces
// Used by the SPC ID666 block and other fixed-width string fields
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

// parseASCIIDigits parses a fixed-width ASCII digit field.
// Blank or non-numeric fields return 0; dumpers leave these fields
// unset often enough that failure must not be an error.
func parseASCIIDigits(data []byte) int {
	value := 0
	seen := false
	for _, b := range data {
		if b == 0 || b == ' ' {
			break
		}
		if b < '0' || b > '9' {
			return 0
		}
		value = value*10 + int(b-'0')
		seen = true
	}
	if !seen {
		return 0
	}
	return value
}

// filenameStem strips the directory and extension from an archive entry name
func filenameStem(name string) string {
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndexByte(name, '.'); idx > 0 {
		name = name[:idx]
	}
	return name
}

// formatDuration renders seconds as "m:ss" (e.g. 205 -> "3:25")
func formatDuration(seconds float64) string {
	if seconds <= 0 {
		return "0:00"
	}
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// MusicMetadata contains common metadata fields across both track formats.
// The *JP fields hold the localized variants carried by GD3 tags; SPC files
// leave them empty.
type MusicMetadata struct {
	Title    string
	TitleJP  string
	Game     string
	GameJP   string
	System   string // "Super Nintendo", "Sega Mega Drive", etc.
	SystemJP string
	Author   string
	AuthorJP string
	Date     string
	Ripper   string
	Notes    string
	Duration float64 // seconds, 0 = unknown
	FadeMs   int     // fade-out length in milliseconds, 0 = unknown
}

// DisplayTitle resolves the user-facing track title: the English title when
// present, the localized title otherwise, and finally the filename stem.
func (m MusicMetadata) DisplayTitle(filename string) string {
	if m.Title != "" {
		return m.Title
	}
	if m.TitleJP != "" {
		return m.TitleJP
	}
	return filenameStem(filename)
}

// DurationOrDefault returns the declared duration and fade, substituting the
// playback fallbacks (180 s, 10 000 ms) when the tag carries no duration.
// A tagged duration with a zero fade means exactly that: no fade-out.
func (m MusicMetadata) DurationOrDefault() (seconds float64, fadeMs int) {
	if m.Duration <= 0 {
		return DEFAULT_DURATION_SECONDS, DEFAULT_FADE_MS
	}
	return m.Duration, m.FadeMs
}
