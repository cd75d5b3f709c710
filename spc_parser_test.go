package main

import (
	"errors"
	"testing"
)

// buildSPCImage creates a minimal valid SPC file: header, 64 KiB RAM,
// 128 DSP registers and the 64-byte extra RAM block.
func buildSPCImage() []byte {
	data := make([]byte, spcOffExtraRAM+spcExtraRAMSize)
	copy(data, spcSignature)
	data[0x23] = 26 // ID666 present
	data[0x24] = 30
	return data
}

func putSPCField(data []byte, offset int, value string) {
	copy(data[offset:], value)
}

func TestSPCParse_ID666Fields(t *testing.T) {
	data := buildSPCImage()
	putSPCField(data, 0x2E, "Stickerbrush Symphony")
	putSPCField(data, 0x4E, "Donkey Kong Country 2")
	putSPCField(data, 0x6E, "Dumper")
	putSPCField(data, 0x7E, "ripped 1996")
	putSPCField(data, 0x9E, "1996/02/01")
	putSPCField(data, 0xA9, "205")
	putSPCField(data, 0xAC, "8000")
	putSPCField(data, 0xB1, "David Wise")

	spc, err := ParseSPCData(data)
	if err != nil {
		t.Fatalf("ParseSPCData failed: %v", err)
	}
	h := spc.Header
	if !h.HasID666 {
		t.Error("expected ID666 tag present")
	}
	if h.Song != "Stickerbrush Symphony" {
		t.Errorf("song: %q", h.Song)
	}
	if h.Game != "Donkey Kong Country 2" {
		t.Errorf("game: %q", h.Game)
	}
	if h.Artist != "David Wise" {
		t.Errorf("artist: %q", h.Artist)
	}
	if h.DurationSeconds != 205 {
		t.Errorf("duration: got %d, want 205", h.DurationSeconds)
	}
	if h.FadeMs != 8000 {
		t.Errorf("fade: got %d, want 8000", h.FadeMs)
	}
	if len(spc.RAM) != spcRAMSize || len(spc.DSPRegs) != spcDSPRegCount {
		t.Errorf("payload sizes: ram=%d dsp=%d", len(spc.RAM), len(spc.DSPRegs))
	}
}

func TestSPCParse_BadSignature(t *testing.T) {
	data := buildSPCImage()
	data[0] = 'X'

	_, err := ParseSPCData(data)
	if err == nil {
		t.Fatal("expected error for bad signature")
	}
	if !errors.Is(err, ErrParseFailure) {
		t.Errorf("expected ErrParseFailure, got %v", err)
	}
}

func TestSPCParse_TooShort(t *testing.T) {
	data := buildSPCImage()[:spcMinFileSize-1]

	_, err := ParseSPCData(data)
	if !errors.Is(err, ErrParseFailure) {
		t.Errorf("expected ErrParseFailure, got %v", err)
	}
}

func TestSPCParse_NonNumericDuration(t *testing.T) {
	// Dumpers leave these fields blank or filled with junk; both must
	// parse as 0 and fall through to the playback defaults.
	tests := []struct {
		name    string
		seconds string
		fade    string
	}{
		{"blank", "", ""},
		{"spaces", "   ", "     "},
		{"letters", "abc", "xyz"},
		{"mixed", "1a2", "50o00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildSPCImage()
			putSPCField(data, 0xA9, tt.seconds)
			putSPCField(data, 0xAC, tt.fade)

			spc, err := ParseSPCData(data)
			if err != nil {
				t.Fatalf("ParseSPCData failed: %v", err)
			}
			if spc.Header.DurationSeconds != 0 {
				t.Errorf("duration: got %d, want 0", spc.Header.DurationSeconds)
			}
			if spc.Header.FadeMs != 0 {
				t.Errorf("fade: got %d, want 0", spc.Header.FadeMs)
			}

			seconds, fadeMs := spc.GetMetadata().DurationOrDefault()
			if seconds != DEFAULT_DURATION_SECONDS {
				t.Errorf("fallback duration: got %v, want %d", seconds, DEFAULT_DURATION_SECONDS)
			}
			if fadeMs != DEFAULT_FADE_MS {
				t.Errorf("fallback fade: got %d, want %d", fadeMs, DEFAULT_FADE_MS)
			}
		})
	}
}

func TestSPCParse_NoTagMarker(t *testing.T) {
	data := buildSPCImage()
	data[0x23] = 27 // no ID666
	putSPCField(data, 0x2E, "should be ignored")

	spc, err := ParseSPCData(data)
	if err != nil {
		t.Fatalf("ParseSPCData failed: %v", err)
	}
	if spc.Header.HasID666 {
		t.Error("expected no ID666 tag")
	}
	if spc.Header.Song != "" {
		t.Errorf("song should be empty, got %q", spc.Header.Song)
	}
}

func TestSPCParse_RegisterSnapshot(t *testing.T) {
	data := buildSPCImage()
	data[0x25] = 0xC0 // PC low
	data[0x26] = 0x04 // PC high
	data[0x27] = 0x11
	data[0x28] = 0x22
	data[0x29] = 0x33
	data[0x2A] = 0x44
	data[0x2B] = 0xEF

	spc, err := ParseSPCData(data)
	if err != nil {
		t.Fatalf("ParseSPCData failed: %v", err)
	}
	h := spc.Header
	if h.PC != 0x04C0 {
		t.Errorf("PC: got 0x%04X, want 0x04C0", h.PC)
	}
	if h.A != 0x11 || h.X != 0x22 || h.Y != 0x33 || h.PSW != 0x44 || h.SP != 0xEF {
		t.Errorf("registers: A=%02X X=%02X Y=%02X PSW=%02X SP=%02X", h.A, h.X, h.Y, h.PSW, h.SP)
	}
}

func TestSPCParse_PaddedFieldsTrimmed(t *testing.T) {
	data := buildSPCImage()
	putSPCField(data, 0x2E, "Short   ") // trailing spaces then NULs

	spc, err := ParseSPCData(data)
	if err != nil {
		t.Fatalf("ParseSPCData failed: %v", err)
	}
	if spc.Header.Song != "Short" {
		t.Errorf("song: got %q, want %q", spc.Header.Song, "Short")
	}
}

func TestSPCParse_DisplayTitleFallback(t *testing.T) {
	data := buildSPCImage()

	spc, err := ParseSPCData(data)
	if err != nil {
		t.Fatalf("ParseSPCData failed: %v", err)
	}
	got := spc.GetMetadata().DisplayTitle("music/07 Stickerbrush.spc")
	if got != "07 Stickerbrush" {
		t.Errorf("display title: got %q", got)
	}
}
