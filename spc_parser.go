// spc_parser.go - SPC file parser (SNES SPC700 RAM snapshot + ID666 tag)

package main

import (
	"fmt"
	"os"
)

// spcSignature is the 33-byte text signature followed by two 0x1A bytes.
const spcSignature = "SNES-SPC700 Sound File Data v0.30\x1a\x1a"

const (
	spcHeaderSize   = 0x100
	spcRAMSize      = 0x10000
	spcDSPRegCount  = 128
	spcExtraRAMSize = 64

	spcMinFileSize = spcHeaderSize + spcRAMSize + spcDSPRegCount

	spcOffRAM      = 0x100
	spcOffDSP      = 0x10100
	spcOffExtraRAM = 0x101C0
)

type SPCHeader struct {
	HasID666 bool

	// SPC700 register snapshot taken at dump time
	PC  uint16
	A   uint8
	X   uint8
	Y   uint8
	PSW uint8
	SP  uint8

	Song     string
	Game     string
	Dumper   string
	Comments string
	DumpDate string
	Artist   string

	// DurationSeconds and FadeMs are 0 when the tag is absent, blank or
	// non-numeric; playback substitutes its fallbacks in that case.
	DurationSeconds int
	FadeMs          int
}

type SPCFile struct {
	Header   SPCHeader
	RAM      []byte // 64 KiB of SPC700 RAM
	DSPRegs  []byte // 128 S-DSP registers
	ExtraRAM []byte // 64 bytes shadowed under the IPL ROM, when present
}

func ParseSPCFile(path string) (*SPCFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSPCData(data)
}

func ParseSPCData(data []byte) (*SPCFile, error) {
	if len(data) < spcMinFileSize {
		return nil, fmt.Errorf("spc: data too short (%d bytes): %w", len(data), ErrParseFailure)
	}
	if string(data[:len(spcSignature)]) != spcSignature {
		return nil, fmt.Errorf("spc: bad signature: %w", ErrParseFailure)
	}

	header := SPCHeader{
		// 26 marks an ID666 tag, 27 marks none. Dumps with anything else
		// in the marker byte are treated as untagged rather than rejected.
		HasID666: data[0x23] == 26,

		PC:  uint16(data[0x25]) | uint16(data[0x26])<<8,
		A:   data[0x27],
		X:   data[0x28],
		Y:   data[0x29],
		PSW: data[0x2A],
		SP:  data[0x2B],
	}

	if header.HasID666 {
		header.Song = parsePaddedString(data[0x2E : 0x2E+32])
		header.Game = parsePaddedString(data[0x4E : 0x4E+32])
		header.Dumper = parsePaddedString(data[0x6E : 0x6E+16])
		header.Comments = parsePaddedString(data[0x7E : 0x7E+32])
		header.DumpDate = parsePaddedString(data[0x9E : 0x9E+11])
		header.DurationSeconds = parseASCIIDigits(data[0xA9 : 0xA9+3])
		header.FadeMs = parseASCIIDigits(data[0xAC : 0xAC+5])
		header.Artist = parsePaddedString(data[0xB1 : 0xB1+32])
	}

	ram := make([]byte, spcRAMSize)
	copy(ram, data[spcOffRAM:spcOffRAM+spcRAMSize])

	dspRegs := make([]byte, spcDSPRegCount)
	copy(dspRegs, data[spcOffDSP:spcOffDSP+spcDSPRegCount])

	file := &SPCFile{
		Header:  header,
		RAM:     ram,
		DSPRegs: dspRegs,
	}

	if len(data) >= spcOffExtraRAM+spcExtraRAMSize {
		file.ExtraRAM = make([]byte, spcExtraRAMSize)
		copy(file.ExtraRAM, data[spcOffExtraRAM:spcOffExtraRAM+spcExtraRAMSize])
	}

	return file, nil
}

// GetMetadata implements MusicFile.
func (f *SPCFile) GetMetadata() MusicMetadata {
	return MusicMetadata{
		Title:    f.Header.Song,
		Game:     f.Header.Game,
		System:   "Super Nintendo",
		Author:   f.Header.Artist,
		Date:     f.Header.DumpDate,
		Ripper:   f.Header.Dumper,
		Notes:    f.Header.Comments,
		Duration: float64(f.Header.DurationSeconds),
		FadeMs:   f.Header.FadeMs,
	}
}

// GetData implements MusicFile. Returns the RAM image.
func (f *SPCFile) GetData() []byte {
	return f.RAM
}
