// vgm_parser.go - VGM/VGZ parser for Mega Drive chip writes and GD3 tags.
//
// Supported chips (commands interpreted during playback):
//   - YM2612 (cmd 0x52-0x53), including DAC samples fed from data blocks
//     via the 0x80-0x8F write-and-wait commands and 0xE0 seeks
//   - SN76489 / SN76496 (cmd 0x50) and Game Gear stereo mask (cmd 0x4F)
//
// Ignored chips (commands skipped gracefully, with correct operand sizes):
//   - YM2413 (0x51), YM2151 (0x54), YM2203 (0x55), YM2608 (0x56-0x57),
//     YM2610 (0x58-0x59), YM3812 (0x5A), YM3526 (0x5B), Y8950 (0x5C),
//     YMF262 (0x5D-0x5E), AY-3-8910 (0xA0), Sega PCM (0xC0+),
//     DAC stream control (0x90-0x95), PCM RAM writes (0x68)
//
// Rejected: only structural damage (bad magic, out-of-range offsets,
// truncated commands). Unknown single-byte commands are skipped.

package main

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// GD3Tag holds the eleven UTF-16LE strings of a GD3 block, in file order.
// A VGM without a GD3 block yields the zero value.
type GD3Tag struct {
	TrackEN  string
	TrackJP  string
	GameEN   string
	GameJP   string
	SystemEN string
	SystemJP string
	AuthorEN string
	AuthorJP string
	Date     string
	Ripper   string
	Notes    string
}

type VGMFile struct {
	Version uint32

	// Commands is the playback stream with data blocks stripped out;
	// the engine walks it with vgmCommandLength for anything it skips.
	Commands []byte

	// PCMBank is the concatenation of all type-00 data blocks, indexed
	// by the 0xE0 seek command during playback.
	PCMBank []byte

	FMClockHz uint32 // YM2612 clock (0 if not present)
	SNClockHz uint32 // SN76489 clock (0 if not present)

	TotalSamples uint64
	LoopSample   uint64 // sample position where the loop restarts
	LoopCmdPos   int    // offset into Commands where the loop restarts
	HasLoop      bool

	Tag GD3Tag
}

func ParseVGMFile(path string) (*VGMFile, error) {
	data, err := readVGMData(path)
	if err != nil {
		return nil, err
	}
	return ParseVGMData(data)
}

func ParseVGMData(data []byte) (*VGMFile, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("vgm: too short: %w", ErrParseFailure)
	}
	if data[0] == 0x1F && data[1] == 0x8B {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("vgm: %v: %w", err, ErrParseFailure)
		}
		defer gz.Close()
		data, err = io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("vgm: %v: %w", err, ErrParseFailure)
		}
	}
	if len(data) < 0x40 {
		return nil, fmt.Errorf("vgm: too short: %w", ErrParseFailure)
	}
	if !bytes.Equal(data[0:4], []byte("Vgm ")) {
		return nil, fmt.Errorf("vgm: invalid header magic: %w", ErrParseFailure)
	}

	version := binary.LittleEndian.Uint32(data[0x08:0x0C])

	totalSamples := uint64(binary.LittleEndian.Uint32(data[0x18:0x1C]))
	loopOffset := binary.LittleEndian.Uint32(data[0x1C:0x20])
	loopSamples := binary.LittleEndian.Uint32(data[0x20:0x24])

	dataOffset := binary.LittleEndian.Uint32(data[0x34:0x38])
	dataStart := uint32(0x40)
	// The relative data offset exists from v1.50; older files start at 0x40.
	if version >= 0x150 && dataOffset != 0 {
		dataStart = 0x34 + dataOffset
	}
	if int(dataStart) >= len(data) {
		return nil, fmt.Errorf("vgm: data offset out of range: %w", ErrParseFailure)
	}

	// Chip clocks. Bit 31 flags a dual-chip setup; the clock is the rest.
	snClockHz := binary.LittleEndian.Uint32(data[0x0C:0x10]) & 0x3FFFFFFF
	fmClockHz := uint32(0)
	if version >= 0x110 && len(data) >= 0x30 {
		fmClockHz = binary.LittleEndian.Uint32(data[0x2C:0x30]) & 0x3FFFFFFF
	}

	loopStart := uint32(0)
	if loopOffset != 0 {
		loopStart = 0x1C + loopOffset
	}

	out := vgmStreamBuilder{
		commands:  make([]byte, 0, len(data)-int(dataStart)),
		loopStart: int(loopStart),
	}
	if err := out.walk(data, int(dataStart)); err != nil {
		return nil, err
	}

	if out.samplePos > totalSamples {
		totalSamples = out.samplePos
	}
	hasLoop := out.loopCmdPos >= 0
	loopSample := out.loopSample
	if !hasLoop && loopSamples > 0 && totalSamples >= uint64(loopSamples) {
		// Some rips carry loop lengths without a loop offset; keep the
		// sample position for duration display even without a jump target.
		loopSample = totalSamples - uint64(loopSamples)
	}

	return &VGMFile{
		Version:      version,
		Commands:     out.commands,
		PCMBank:      out.pcmBank,
		FMClockHz:    fmClockHz,
		SNClockHz:    snClockHz,
		TotalSamples: totalSamples,
		LoopSample:   loopSample,
		LoopCmdPos:   out.loopCmdPos,
		HasLoop:      hasLoop,
		Tag:          parseGD3(data),
	}, nil
}

// vgmCommandLength returns the total byte length of fixed-size commands the
// player does not interpret, or 0 for commands handled explicitly. Shared by
// the parser walk and the playback cursor so both skip identically.
func vgmCommandLength(cmd byte) int {
	switch {
	case cmd >= 0x30 && cmd <= 0x3F:
		return 2 // reserved one-operand
	case cmd >= 0x41 && cmd <= 0x4E:
		return 3 // reserved two-operand
	case cmd == 0x51 || (cmd >= 0x54 && cmd <= 0x5F):
		return 3 // other FM chips
	case cmd >= 0x90 && cmd <= 0x91:
		return 5 // DAC stream setup / set data
	case cmd == 0x92:
		return 6 // DAC stream frequency
	case cmd == 0x93:
		return 11 // DAC stream start
	case cmd == 0x94:
		return 2 // DAC stream stop
	case cmd == 0x95:
		return 5 // DAC stream start fast
	case cmd >= 0xA0 && cmd <= 0xBF:
		return 3 // AY and other two-operand chips
	case cmd >= 0xC0 && cmd <= 0xDF:
		return 4 // three-operand chips
	case cmd >= 0xE1 && cmd <= 0xFF:
		return 5 // reserved four-operand
	default:
		return 0
	}
}

// vgmStreamBuilder copies playable commands out of the raw stream, lifting
// data blocks into the PCM bank and remapping the loop offset as bytes move.
type vgmStreamBuilder struct {
	commands   []byte
	pcmBank    []byte
	samplePos  uint64
	loopStart  int // absolute offset in the raw file, 0 = none
	loopCmdPos int
	loopSample uint64
}

func (b *vgmStreamBuilder) walk(data []byte, start int) error {
	b.loopCmdPos = -1
	for i := start; i < len(data); {
		if b.loopStart != 0 && b.loopCmdPos < 0 && i >= b.loopStart {
			b.loopCmdPos = len(b.commands)
			b.loopSample = b.samplePos
		}
		cmd := data[i]
		switch {
		case cmd == 0x66:
			return nil
		case cmd == 0x61:
			if i+2 >= len(data) {
				return fmt.Errorf("vgm: truncated wait at offset %d: %w", i, ErrParseFailure)
			}
			b.samplePos += uint64(binary.LittleEndian.Uint16(data[i+1 : i+3]))
			b.commands = append(b.commands, data[i:i+3]...)
			i += 3
		case cmd == 0x62:
			b.samplePos += 735
			b.commands = append(b.commands, cmd)
			i++
		case cmd == 0x63:
			b.samplePos += 882
			b.commands = append(b.commands, cmd)
			i++
		case cmd >= 0x70 && cmd <= 0x7F:
			b.samplePos += uint64(cmd&0x0F) + 1
			b.commands = append(b.commands, cmd)
			i++
		case cmd >= 0x80 && cmd <= 0x8F:
			// DAC write from bank + wait 0-15 samples
			b.samplePos += uint64(cmd & 0x0F)
			b.commands = append(b.commands, cmd)
			i++
		case cmd == 0x50 || cmd == 0x4F:
			if i+1 >= len(data) {
				return fmt.Errorf("vgm: truncated psg write at offset %d: %w", i, ErrParseFailure)
			}
			b.commands = append(b.commands, data[i:i+2]...)
			i += 2
		case cmd == 0x52 || cmd == 0x53:
			if i+2 >= len(data) {
				return fmt.Errorf("vgm: truncated fm write at offset %d: %w", i, ErrParseFailure)
			}
			b.commands = append(b.commands, data[i:i+3]...)
			i += 3
		case cmd == 0xE0:
			if i+4 >= len(data) {
				return fmt.Errorf("vgm: truncated pcm seek at offset %d: %w", i, ErrParseFailure)
			}
			b.commands = append(b.commands, data[i:i+5]...)
			i += 5
		case cmd == 0x67:
			var err error
			i, err = b.takeDataBlock(data, i)
			if err != nil {
				return err
			}
		case cmd == 0x68:
			// PCM RAM write: 12 bytes total
			if i+12 > len(data) {
				return fmt.Errorf("vgm: truncated PCM RAM write at offset %d: %w", i, ErrParseFailure)
			}
			i += 12
		default:
			n := vgmCommandLength(cmd)
			if n == 0 {
				// Unknown command: skip 1 byte and hope for the best
				i++
				continue
			}
			if i+n > len(data) {
				return fmt.Errorf("vgm: truncated command 0x%02X at offset %d: %w", cmd, i, ErrParseFailure)
			}
			i += n
		}
	}
	return nil
}

func (b *vgmStreamBuilder) takeDataBlock(data []byte, i int) (int, error) {
	if i+6 >= len(data) {
		return 0, fmt.Errorf("vgm: truncated data block at offset %d: %w", i, ErrParseFailure)
	}
	if data[i+1] != 0x66 {
		return 0, fmt.Errorf("vgm: invalid data block at offset %d: %w", i, ErrParseFailure)
	}
	blockType := data[i+2]
	blockLen := binary.LittleEndian.Uint32(data[i+3 : i+7])
	end := i + 7 + int(blockLen)
	if end > len(data) || end < i {
		return 0, fmt.Errorf("vgm: data block overruns file at offset %d: %w", i, ErrParseFailure)
	}
	if blockType == 0x00 {
		b.pcmBank = append(b.pcmBank, data[i+7:end]...)
	}
	return end, nil
}

// parseGD3 reads the GD3 tag block. GD3 parsing never fails: a zero offset,
// bad magic or truncated string table all yield empty metadata, because a
// track without tags is still playable.
func parseGD3(data []byte) GD3Tag {
	var tag GD3Tag
	if len(data) < 0x18 {
		return tag
	}
	rel := binary.LittleEndian.Uint32(data[0x14:0x18])
	if rel == 0 {
		return tag
	}
	start := int(0x14 + rel)
	if start < 0 || start+12 > len(data) {
		return tag
	}
	if !bytes.Equal(data[start:start+4], []byte("Gd3 ")) {
		return tag
	}
	length := int(binary.LittleEndian.Uint32(data[start+8 : start+12]))
	strStart := start + 12
	strEnd := strStart + length
	if length < 0 || strEnd > len(data) {
		strEnd = len(data)
	}
	table := data[strStart:strEnd]

	fields := [...]*string{
		&tag.TrackEN, &tag.TrackJP,
		&tag.GameEN, &tag.GameJP,
		&tag.SystemEN, &tag.SystemJP,
		&tag.AuthorEN, &tag.AuthorJP,
		&tag.Date, &tag.Ripper, &tag.Notes,
	}
	offset := 0
	for _, field := range fields {
		if offset >= len(table) {
			break
		}
		*field, offset = parseUTF16LEString(table, offset)
	}
	return tag
}

// GetMetadata implements MusicFile.
func (f *VGMFile) GetMetadata() MusicMetadata {
	system := f.Tag.SystemEN
	if system == "" && f.Tag.SystemJP == "" {
		system = "Sega Mega Drive"
	}
	// Looping rips never end on their own, so they get the default
	// fade-out; one-shot rips end naturally and fade only if asked to.
	fadeMs := 0
	if f.HasLoop {
		fadeMs = DEFAULT_FADE_MS
	}
	return MusicMetadata{
		Title:    f.Tag.TrackEN,
		TitleJP:  f.Tag.TrackJP,
		Game:     f.Tag.GameEN,
		GameJP:   f.Tag.GameJP,
		System:   system,
		SystemJP: f.Tag.SystemJP,
		Author:   f.Tag.AuthorEN,
		AuthorJP: f.Tag.AuthorJP,
		Date:     f.Tag.Date,
		Ripper:   f.Tag.Ripper,
		Notes:    f.Tag.Notes,
		Duration: float64(f.TotalSamples) / float64(VGM_SAMPLE_RATE),
		FadeMs:   fadeMs,
	}
}

// GetData implements MusicFile. Returns the playback command stream.
func (f *VGMFile) GetData() []byte {
	return f.Commands
}

func readVGMData(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, 2)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	if header[0] == 0x1F && header[1] == 0x8B {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	}

	return io.ReadAll(f)
}
