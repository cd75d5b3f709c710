// spc_cpu.go - Sony SPC700 CPU core.

package main

// SPCBus is the 64KiB address space seen by the SPC700 core. The
// engine intercepts the I/O page at 0x00F0-0x00FF and the IPL ROM
// window at 0xFFC0-0xFFFF.
type SPCBus interface {
	Read(addr uint16) byte
	Write(addr uint16, value byte)
}

const (
	spcFlagN = 0x80 // Negative
	spcFlagV = 0x40 // Overflow
	spcFlagP = 0x20 // Direct page select
	spcFlagB = 0x10 // Break
	spcFlagH = 0x08 // Half carry
	spcFlagI = 0x04 // Interrupt enable (unused on the SNES)
	spcFlagZ = 0x02 // Zero
	spcFlagC = 0x01 // Carry
)

/*
   CPU_SPC700 emulates the Sony SPC700 core inside the SNES APU.

   The instruction set is 6502-flavoured with a movable direct page
   selected by the P flag, a fixed page-1 stack, packed single-bit
   operations on a 13-bit address space, and 16-bit word operations on
   the YA register pair. All 256 opcodes are implemented.

   The core is driven synchronously from the render path, so no
   locking happens here. Step executes one instruction and returns the
   consumed cycle count at the nominal 1.024MHz clock; the caller uses
   that count to keep the DSP and timers in step.
*/
type CPU_SPC700 struct {
	A   byte
	X   byte
	Y   byte
	SP  byte
	PC  uint16
	PSW byte

	// Set by SLEEP and STOP. Interrupts are never delivered on the
	// SNES APU, so a stopped core stays stopped.
	Stopped bool

	Cycles uint64

	bus SPCBus
}

func NewCPU_SPC700(bus SPCBus) *CPU_SPC700 {
	cpu := &CPU_SPC700{bus: bus}
	cpu.Reset()
	return cpu
}

// Reset puts the core into the power-on state and loads PC from the
// reset vector at 0xFFFE.
func (c *CPU_SPC700) Reset() {
	c.A = 0
	c.X = 0
	c.Y = 0
	c.SP = 0xFF
	c.PSW = 0
	c.Stopped = false
	c.Cycles = 0
	c.PC = c.readWord(0xFFFE)
}

func (c *CPU_SPC700) flag(mask byte) bool {
	return c.PSW&mask != 0
}

func (c *CPU_SPC700) setFlag(mask byte, on bool) {
	if on {
		c.PSW |= mask
	} else {
		c.PSW &^= mask
	}
}

func (c *CPU_SPC700) updateNZ(value byte) {
	c.setFlag(spcFlagZ, value == 0)
	c.setFlag(spcFlagN, value&0x80 != 0)
}

func (c *CPU_SPC700) updateNZ16(value uint16) {
	c.setFlag(spcFlagZ, value == 0)
	c.setFlag(spcFlagN, value&0x8000 != 0)
}

func (c *CPU_SPC700) read(addr uint16) byte {
	return c.bus.Read(addr)
}

func (c *CPU_SPC700) write(addr uint16, value byte) {
	c.bus.Write(addr, value)
}

func (c *CPU_SPC700) readWord(addr uint16) uint16 {
	lo := uint16(c.read(addr))
	hi := uint16(c.read(addr + 1))
	return hi<<8 | lo
}

func (c *CPU_SPC700) fetchByte() byte {
	value := c.read(c.PC)
	c.PC++
	return value
}

func (c *CPU_SPC700) fetchWord() uint16 {
	lo := uint16(c.fetchByte())
	hi := uint16(c.fetchByte())
	return hi<<8 | lo
}

// directBase returns 0x0000 or 0x0100 depending on the P flag.
func (c *CPU_SPC700) directBase() uint16 {
	if c.flag(spcFlagP) {
		return 0x0100
	}
	return 0x0000
}

func (c *CPU_SPC700) getDirect() uint16 {
	return c.directBase() | uint16(c.fetchByte())
}

// Indexed direct addressing wraps within the direct page.
func (c *CPU_SPC700) getDirectX() uint16 {
	return c.directBase() | uint16(c.fetchByte()+c.X)
}

func (c *CPU_SPC700) getDirectY() uint16 {
	return c.directBase() | uint16(c.fetchByte()+c.Y)
}

func (c *CPU_SPC700) getAbsolute() uint16 {
	return c.fetchWord()
}

func (c *CPU_SPC700) getAbsoluteX() uint16 {
	return c.fetchWord() + uint16(c.X)
}

func (c *CPU_SPC700) getAbsoluteY() uint16 {
	return c.fetchWord() + uint16(c.Y)
}

// getXIndirect resolves (X): the X register as a direct page offset.
func (c *CPU_SPC700) getXIndirect() uint16 {
	return c.directBase() | uint16(c.X)
}

func (c *CPU_SPC700) getYIndirect() uint16 {
	return c.directBase() | uint16(c.Y)
}

// getIndirectX resolves [dp+X]: a word pointer read from the direct
// page at dp+X. The pointer read wraps within the page.
func (c *CPU_SPC700) getIndirectX() uint16 {
	return c.readDirectWord(c.fetchByte() + c.X)
}

// getIndirectY resolves [dp]+Y: a word pointer read from the direct
// page at dp, then indexed by Y.
func (c *CPU_SPC700) getIndirectY() uint16 {
	return c.readDirectWord(c.fetchByte()) + uint16(c.Y)
}

func (c *CPU_SPC700) readDirectWord(d byte) uint16 {
	base := c.directBase()
	lo := uint16(c.read(base | uint16(d)))
	hi := uint16(c.read(base | uint16(d+1)))
	return hi<<8 | lo
}

func (c *CPU_SPC700) writeDirectWord(d byte, value uint16) {
	base := c.directBase()
	c.write(base|uint16(d), byte(value))
	c.write(base|uint16(d+1), byte(value>>8))
}

// fetchDirectPair fetches the operands of a dp,dp instruction: source
// offset first, destination offset second.
func (c *CPU_SPC700) fetchDirectPair() (srcVal byte, dstAddr uint16) {
	srcVal = c.read(c.getDirect())
	dstAddr = c.getDirect()
	return srcVal, dstAddr
}

// fetchImmDirect fetches the operands of a dp,#imm instruction:
// immediate first, direct page offset second.
func (c *CPU_SPC700) fetchImmDirect() (imm byte, addr uint16) {
	imm = c.fetchByte()
	addr = c.getDirect()
	return imm, addr
}

// fetchBitOperand decodes the packed operand of the single-bit
// instructions: 13-bit address in the low bits, bit number in the top
// three.
func (c *CPU_SPC700) fetchBitOperand() (uint16, byte) {
	v := c.fetchWord()
	return v & 0x1FFF, byte(v >> 13)
}

// The stack lives in page 1 regardless of the P flag.
func (c *CPU_SPC700) push(value byte) {
	c.write(0x0100|uint16(c.SP), value)
	c.SP--
}

func (c *CPU_SPC700) pop() byte {
	c.SP++
	return c.read(0x0100 | uint16(c.SP))
}

func (c *CPU_SPC700) pushWord(value uint16) {
	c.push(byte(value >> 8))
	c.push(byte(value))
}

func (c *CPU_SPC700) popWord() uint16 {
	lo := uint16(c.pop())
	hi := uint16(c.pop())
	return hi<<8 | lo
}

// branch fetches the relative operand and takes the branch when told
// to, returning the extra cycles consumed.
func (c *CPU_SPC700) branch(taken bool) int {
	rel := int8(c.fetchByte())
	if !taken {
		return 0
	}
	c.PC += uint16(int16(rel))
	return 2
}

func (c *CPU_SPC700) ya() uint16 {
	return uint16(c.Y)<<8 | uint16(c.A)
}

func (c *CPU_SPC700) setYA(value uint16) {
	c.Y = byte(value >> 8)
	c.A = byte(value)
}

func (c *CPU_SPC700) adc(a, b byte) byte {
	carry := byte(0)
	if c.flag(spcFlagC) {
		carry = 1
	}
	sum := uint16(a) + uint16(b) + uint16(carry)
	result := byte(sum)
	c.setFlag(spcFlagC, sum > 0xFF)
	c.setFlag(spcFlagH, (a&0x0F)+(b&0x0F)+carry > 0x0F)
	c.setFlag(spcFlagV, (^(a^b)&(a^result))&0x80 != 0)
	c.updateNZ(result)
	return result
}

// sbc is adc with the operand complemented; the carry flag acts as
// the inverted borrow.
func (c *CPU_SPC700) sbc(a, b byte) byte {
	return c.adc(a, ^b)
}

// compare sets N, Z and C. H and V are untouched.
func (c *CPU_SPC700) compare(a, b byte) {
	diff := int(a) - int(b)
	c.setFlag(spcFlagC, diff >= 0)
	c.updateNZ(byte(diff))
}

func (c *CPU_SPC700) addw(ya, w uint16) uint16 {
	sum := uint32(ya) + uint32(w)
	result := uint16(sum)
	c.setFlag(spcFlagC, sum > 0xFFFF)
	c.setFlag(spcFlagH, (ya&0x0FFF)+(w&0x0FFF) > 0x0FFF)
	c.setFlag(spcFlagV, (^(ya^w)&(ya^result))&0x8000 != 0)
	c.updateNZ16(result)
	return result
}

func (c *CPU_SPC700) subw(ya, w uint16) uint16 {
	inv := ^w
	sum := uint32(ya) + uint32(inv) + 1
	result := uint16(sum)
	c.setFlag(spcFlagC, sum > 0xFFFF)
	c.setFlag(spcFlagH, uint32(ya&0x0FFF)+uint32(inv&0x0FFF)+1 > 0x0FFF)
	c.setFlag(spcFlagV, ((ya^w)&(ya^result))&0x8000 != 0)
	c.updateNZ16(result)
	return result
}

func (c *CPU_SPC700) asl(v byte) byte {
	c.setFlag(spcFlagC, v&0x80 != 0)
	v <<= 1
	c.updateNZ(v)
	return v
}

func (c *CPU_SPC700) rol(v byte) byte {
	carry := byte(0)
	if c.flag(spcFlagC) {
		carry = 1
	}
	c.setFlag(spcFlagC, v&0x80 != 0)
	v = v<<1 | carry
	c.updateNZ(v)
	return v
}

func (c *CPU_SPC700) lsr(v byte) byte {
	c.setFlag(spcFlagC, v&0x01 != 0)
	v >>= 1
	c.updateNZ(v)
	return v
}

func (c *CPU_SPC700) ror(v byte) byte {
	carry := byte(0)
	if c.flag(spcFlagC) {
		carry = 0x80
	}
	c.setFlag(spcFlagC, v&0x01 != 0)
	v = v>>1 | carry
	c.updateNZ(v)
	return v
}

// Step executes one instruction and returns the cycles consumed. A
// stopped core still reports time passing so the caller's clock keeps
// advancing.
func (c *CPU_SPC700) Step() int {
	if c.Stopped {
		return 2
	}
	opcode := c.read(c.PC)
	c.PC++
	cycles := c.execute(opcode)
	c.Cycles += uint64(cycles)
	return cycles
}

func (c *CPU_SPC700) execute(opcode byte) int {
	switch opcode {

	// MOV: loads into A, X and Y. Loads set N and Z.
	case 0xE8: // MOV A, #imm
		c.A = c.fetchByte()
		c.updateNZ(c.A)
		return 2

	case 0xE4: // MOV A, dp
		c.A = c.read(c.getDirect())
		c.updateNZ(c.A)
		return 3

	case 0xF4: // MOV A, dp+X
		c.A = c.read(c.getDirectX())
		c.updateNZ(c.A)
		return 4

	case 0xE5: // MOV A, !abs
		c.A = c.read(c.getAbsolute())
		c.updateNZ(c.A)
		return 4

	case 0xF5: // MOV A, !abs+X
		c.A = c.read(c.getAbsoluteX())
		c.updateNZ(c.A)
		return 5

	case 0xF6: // MOV A, !abs+Y
		c.A = c.read(c.getAbsoluteY())
		c.updateNZ(c.A)
		return 5

	case 0xE6: // MOV A, (X)
		c.A = c.read(c.getXIndirect())
		c.updateNZ(c.A)
		return 3

	case 0xBF: // MOV A, (X)+
		c.A = c.read(c.getXIndirect())
		c.X++
		c.updateNZ(c.A)
		return 4

	case 0xE7: // MOV A, [dp+X]
		c.A = c.read(c.getIndirectX())
		c.updateNZ(c.A)
		return 6

	case 0xF7: // MOV A, [dp]+Y
		c.A = c.read(c.getIndirectY())
		c.updateNZ(c.A)
		return 6

	case 0xCD: // MOV X, #imm
		c.X = c.fetchByte()
		c.updateNZ(c.X)
		return 2

	case 0xF8: // MOV X, dp
		c.X = c.read(c.getDirect())
		c.updateNZ(c.X)
		return 3

	case 0xF9: // MOV X, dp+Y
		c.X = c.read(c.getDirectY())
		c.updateNZ(c.X)
		return 4

	case 0xE9: // MOV X, !abs
		c.X = c.read(c.getAbsolute())
		c.updateNZ(c.X)
		return 4

	case 0x8D: // MOV Y, #imm
		c.Y = c.fetchByte()
		c.updateNZ(c.Y)
		return 2

	case 0xEB: // MOV Y, dp
		c.Y = c.read(c.getDirect())
		c.updateNZ(c.Y)
		return 3

	case 0xFB: // MOV Y, dp+X
		c.Y = c.read(c.getDirectX())
		c.updateNZ(c.Y)
		return 4

	case 0xEC: // MOV Y, !abs
		c.Y = c.read(c.getAbsolute())
		c.updateNZ(c.Y)
		return 4

	// MOV: stores. Stores read the destination before writing, as the
	// hardware does; reads of the counter ports 0xFD-0xFF are
	// destructive and some drivers depend on that read happening.
	// Stores never touch the flags.
	case 0xC4: // MOV dp, A
		addr := c.getDirect()
		c.read(addr)
		c.write(addr, c.A)
		return 4

	case 0xD4: // MOV dp+X, A
		addr := c.getDirectX()
		c.read(addr)
		c.write(addr, c.A)
		return 5

	case 0xC5: // MOV !abs, A
		addr := c.getAbsolute()
		c.read(addr)
		c.write(addr, c.A)
		return 5

	case 0xD5: // MOV !abs+X, A
		addr := c.getAbsoluteX()
		c.read(addr)
		c.write(addr, c.A)
		return 6

	case 0xD6: // MOV !abs+Y, A
		addr := c.getAbsoluteY()
		c.read(addr)
		c.write(addr, c.A)
		return 6

	case 0xC6: // MOV (X), A
		addr := c.getXIndirect()
		c.read(addr)
		c.write(addr, c.A)
		return 4

	case 0xAF: // MOV (X)+, A
		c.write(c.getXIndirect(), c.A)
		c.X++
		return 4

	case 0xC7: // MOV [dp+X], A
		addr := c.getIndirectX()
		c.read(addr)
		c.write(addr, c.A)
		return 7

	case 0xD7: // MOV [dp]+Y, A
		addr := c.getIndirectY()
		c.read(addr)
		c.write(addr, c.A)
		return 7

	case 0xD8: // MOV dp, X
		addr := c.getDirect()
		c.read(addr)
		c.write(addr, c.X)
		return 4

	case 0xD9: // MOV dp+Y, X
		addr := c.getDirectY()
		c.read(addr)
		c.write(addr, c.X)
		return 5

	case 0xC9: // MOV !abs, X
		addr := c.getAbsolute()
		c.read(addr)
		c.write(addr, c.X)
		return 5

	case 0xCB: // MOV dp, Y
		addr := c.getDirect()
		c.read(addr)
		c.write(addr, c.Y)
		return 4

	case 0xDB: // MOV dp+X, Y
		addr := c.getDirectX()
		c.read(addr)
		c.write(addr, c.Y)
		return 5

	case 0xCC: // MOV !abs, Y
		addr := c.getAbsolute()
		c.read(addr)
		c.write(addr, c.Y)
		return 5

	case 0x8F: // MOV dp, #imm
		imm, addr := c.fetchImmDirect()
		c.read(addr)
		c.write(addr, imm)
		return 5

	case 0xFA: // MOV dp, dp
		src := c.read(c.getDirect())
		c.write(c.getDirect(), src)
		return 5

	// MOV: register transfers. MOV SP,X is the only transfer that
	// leaves the flags alone.
	case 0x7D: // MOV A, X
		c.A = c.X
		c.updateNZ(c.A)
		return 2

	case 0x5D: // MOV X, A
		c.X = c.A
		c.updateNZ(c.X)
		return 2

	case 0xDD: // MOV A, Y
		c.A = c.Y
		c.updateNZ(c.A)
		return 2

	case 0xFD: // MOV Y, A
		c.Y = c.A
		c.updateNZ(c.Y)
		return 2

	case 0x9D: // MOV X, SP
		c.X = c.SP
		c.updateNZ(c.X)
		return 2

	case 0xBD: // MOV SP, X
		c.SP = c.X
		return 2

	// OR
	case 0x08: // OR A, #imm
		c.A |= c.fetchByte()
		c.updateNZ(c.A)
		return 2

	case 0x04: // OR A, dp
		c.A |= c.read(c.getDirect())
		c.updateNZ(c.A)
		return 3

	case 0x14: // OR A, dp+X
		c.A |= c.read(c.getDirectX())
		c.updateNZ(c.A)
		return 4

	case 0x05: // OR A, !abs
		c.A |= c.read(c.getAbsolute())
		c.updateNZ(c.A)
		return 4

	case 0x15: // OR A, !abs+X
		c.A |= c.read(c.getAbsoluteX())
		c.updateNZ(c.A)
		return 5

	case 0x16: // OR A, !abs+Y
		c.A |= c.read(c.getAbsoluteY())
		c.updateNZ(c.A)
		return 5

	case 0x06: // OR A, (X)
		c.A |= c.read(c.getXIndirect())
		c.updateNZ(c.A)
		return 3

	case 0x07: // OR A, [dp+X]
		c.A |= c.read(c.getIndirectX())
		c.updateNZ(c.A)
		return 6

	case 0x17: // OR A, [dp]+Y
		c.A |= c.read(c.getIndirectY())
		c.updateNZ(c.A)
		return 6

	case 0x09: // OR dp, dp
		src, addr := c.fetchDirectPair()
		v := c.read(addr) | src
		c.updateNZ(v)
		c.write(addr, v)
		return 6

	case 0x18: // OR dp, #imm
		imm, addr := c.fetchImmDirect()
		v := c.read(addr) | imm
		c.updateNZ(v)
		c.write(addr, v)
		return 5

	case 0x19: // OR (X), (Y)
		v := c.read(c.getXIndirect()) | c.read(c.getYIndirect())
		c.updateNZ(v)
		c.write(c.getXIndirect(), v)
		return 5

	// AND
	case 0x28: // AND A, #imm
		c.A &= c.fetchByte()
		c.updateNZ(c.A)
		return 2

	case 0x24: // AND A, dp
		c.A &= c.read(c.getDirect())
		c.updateNZ(c.A)
		return 3

	case 0x34: // AND A, dp+X
		c.A &= c.read(c.getDirectX())
		c.updateNZ(c.A)
		return 4

	case 0x25: // AND A, !abs
		c.A &= c.read(c.getAbsolute())
		c.updateNZ(c.A)
		return 4

	case 0x35: // AND A, !abs+X
		c.A &= c.read(c.getAbsoluteX())
		c.updateNZ(c.A)
		return 5

	case 0x36: // AND A, !abs+Y
		c.A &= c.read(c.getAbsoluteY())
		c.updateNZ(c.A)
		return 5

	case 0x26: // AND A, (X)
		c.A &= c.read(c.getXIndirect())
		c.updateNZ(c.A)
		return 3

	case 0x27: // AND A, [dp+X]
		c.A &= c.read(c.getIndirectX())
		c.updateNZ(c.A)
		return 6

	case 0x37: // AND A, [dp]+Y
		c.A &= c.read(c.getIndirectY())
		c.updateNZ(c.A)
		return 6

	case 0x29: // AND dp, dp
		src, addr := c.fetchDirectPair()
		v := c.read(addr) & src
		c.updateNZ(v)
		c.write(addr, v)
		return 6

	case 0x38: // AND dp, #imm
		imm, addr := c.fetchImmDirect()
		v := c.read(addr) & imm
		c.updateNZ(v)
		c.write(addr, v)
		return 5

	case 0x39: // AND (X), (Y)
		v := c.read(c.getXIndirect()) & c.read(c.getYIndirect())
		c.updateNZ(v)
		c.write(c.getXIndirect(), v)
		return 5

	// EOR
	case 0x48: // EOR A, #imm
		c.A ^= c.fetchByte()
		c.updateNZ(c.A)
		return 2

	case 0x44: // EOR A, dp
		c.A ^= c.read(c.getDirect())
		c.updateNZ(c.A)
		return 3

	case 0x54: // EOR A, dp+X
		c.A ^= c.read(c.getDirectX())
		c.updateNZ(c.A)
		return 4

	case 0x45: // EOR A, !abs
		c.A ^= c.read(c.getAbsolute())
		c.updateNZ(c.A)
		return 4

	case 0x55: // EOR A, !abs+X
		c.A ^= c.read(c.getAbsoluteX())
		c.updateNZ(c.A)
		return 5

	case 0x56: // EOR A, !abs+Y
		c.A ^= c.read(c.getAbsoluteY())
		c.updateNZ(c.A)
		return 5

	case 0x46: // EOR A, (X)
		c.A ^= c.read(c.getXIndirect())
		c.updateNZ(c.A)
		return 3

	case 0x47: // EOR A, [dp+X]
		c.A ^= c.read(c.getIndirectX())
		c.updateNZ(c.A)
		return 6

	case 0x57: // EOR A, [dp]+Y
		c.A ^= c.read(c.getIndirectY())
		c.updateNZ(c.A)
		return 6

	case 0x49: // EOR dp, dp
		src, addr := c.fetchDirectPair()
		v := c.read(addr) ^ src
		c.updateNZ(v)
		c.write(addr, v)
		return 6

	case 0x58: // EOR dp, #imm
		imm, addr := c.fetchImmDirect()
		v := c.read(addr) ^ imm
		c.updateNZ(v)
		c.write(addr, v)
		return 5

	case 0x59: // EOR (X), (Y)
		v := c.read(c.getXIndirect()) ^ c.read(c.getYIndirect())
		c.updateNZ(v)
		c.write(c.getXIndirect(), v)
		return 5

	// CMP
	case 0x68: // CMP A, #imm
		c.compare(c.A, c.fetchByte())
		return 2

	case 0x64: // CMP A, dp
		c.compare(c.A, c.read(c.getDirect()))
		return 3

	case 0x74: // CMP A, dp+X
		c.compare(c.A, c.read(c.getDirectX()))
		return 4

	case 0x65: // CMP A, !abs
		c.compare(c.A, c.read(c.getAbsolute()))
		return 4

	case 0x75: // CMP A, !abs+X
		c.compare(c.A, c.read(c.getAbsoluteX()))
		return 5

	case 0x76: // CMP A, !abs+Y
		c.compare(c.A, c.read(c.getAbsoluteY()))
		return 5

	case 0x66: // CMP A, (X)
		c.compare(c.A, c.read(c.getXIndirect()))
		return 3

	case 0x67: // CMP A, [dp+X]
		c.compare(c.A, c.read(c.getIndirectX()))
		return 6

	case 0x77: // CMP A, [dp]+Y
		c.compare(c.A, c.read(c.getIndirectY()))
		return 6

	case 0x69: // CMP dp, dp
		src, addr := c.fetchDirectPair()
		c.compare(c.read(addr), src)
		return 6

	case 0x78: // CMP dp, #imm
		imm, addr := c.fetchImmDirect()
		c.compare(c.read(addr), imm)
		return 5

	case 0x79: // CMP (X), (Y)
		c.compare(c.read(c.getXIndirect()), c.read(c.getYIndirect()))
		return 5

	case 0xC8: // CMP X, #imm
		c.compare(c.X, c.fetchByte())
		return 2

	case 0x3E: // CMP X, dp
		c.compare(c.X, c.read(c.getDirect()))
		return 3

	case 0x1E: // CMP X, !abs
		c.compare(c.X, c.read(c.getAbsolute()))
		return 4

	case 0xAD: // CMP Y, #imm
		c.compare(c.Y, c.fetchByte())
		return 2

	case 0x7E: // CMP Y, dp
		c.compare(c.Y, c.read(c.getDirect()))
		return 3

	case 0x5E: // CMP Y, !abs
		c.compare(c.Y, c.read(c.getAbsolute()))
		return 4

	// ADC
	case 0x88: // ADC A, #imm
		c.A = c.adc(c.A, c.fetchByte())
		return 2

	case 0x84: // ADC A, dp
		c.A = c.adc(c.A, c.read(c.getDirect()))
		return 3

	case 0x94: // ADC A, dp+X
		c.A = c.adc(c.A, c.read(c.getDirectX()))
		return 4

	case 0x85: // ADC A, !abs
		c.A = c.adc(c.A, c.read(c.getAbsolute()))
		return 4

	case 0x95: // ADC A, !abs+X
		c.A = c.adc(c.A, c.read(c.getAbsoluteX()))
		return 5

	case 0x96: // ADC A, !abs+Y
		c.A = c.adc(c.A, c.read(c.getAbsoluteY()))
		return 5

	case 0x86: // ADC A, (X)
		c.A = c.adc(c.A, c.read(c.getXIndirect()))
		return 3

	case 0x87: // ADC A, [dp+X]
		c.A = c.adc(c.A, c.read(c.getIndirectX()))
		return 6

	case 0x97: // ADC A, [dp]+Y
		c.A = c.adc(c.A, c.read(c.getIndirectY()))
		return 6

	case 0x89: // ADC dp, dp
		src, addr := c.fetchDirectPair()
		c.write(addr, c.adc(c.read(addr), src))
		return 6

	case 0x98: // ADC dp, #imm
		imm, addr := c.fetchImmDirect()
		c.write(addr, c.adc(c.read(addr), imm))
		return 5

	case 0x99: // ADC (X), (Y)
		v := c.adc(c.read(c.getXIndirect()), c.read(c.getYIndirect()))
		c.write(c.getXIndirect(), v)
		return 5

	// SBC
	case 0xA8: // SBC A, #imm
		c.A = c.sbc(c.A, c.fetchByte())
		return 2

	case 0xA4: // SBC A, dp
		c.A = c.sbc(c.A, c.read(c.getDirect()))
		return 3

	case 0xB4: // SBC A, dp+X
		c.A = c.sbc(c.A, c.read(c.getDirectX()))
		return 4

	case 0xA5: // SBC A, !abs
		c.A = c.sbc(c.A, c.read(c.getAbsolute()))
		return 4

	case 0xB5: // SBC A, !abs+X
		c.A = c.sbc(c.A, c.read(c.getAbsoluteX()))
		return 5

	case 0xB6: // SBC A, !abs+Y
		c.A = c.sbc(c.A, c.read(c.getAbsoluteY()))
		return 5

	case 0xA6: // SBC A, (X)
		c.A = c.sbc(c.A, c.read(c.getXIndirect()))
		return 3

	case 0xA7: // SBC A, [dp+X]
		c.A = c.sbc(c.A, c.read(c.getIndirectX()))
		return 6

	case 0xB7: // SBC A, [dp]+Y
		c.A = c.sbc(c.A, c.read(c.getIndirectY()))
		return 6

	case 0xA9: // SBC dp, dp
		src, addr := c.fetchDirectPair()
		c.write(addr, c.sbc(c.read(addr), src))
		return 6

	case 0xB8: // SBC dp, #imm
		imm, addr := c.fetchImmDirect()
		c.write(addr, c.sbc(c.read(addr), imm))
		return 5

	case 0xB9: // SBC (X), (Y)
		v := c.sbc(c.read(c.getXIndirect()), c.read(c.getYIndirect()))
		c.write(c.getXIndirect(), v)
		return 5

	// Shifts and rotates
	case 0x1C: // ASL A
		c.A = c.asl(c.A)
		return 2

	case 0x0B: // ASL dp
		addr := c.getDirect()
		c.write(addr, c.asl(c.read(addr)))
		return 4

	case 0x1B: // ASL dp+X
		addr := c.getDirectX()
		c.write(addr, c.asl(c.read(addr)))
		return 5

	case 0x0C: // ASL !abs
		addr := c.getAbsolute()
		c.write(addr, c.asl(c.read(addr)))
		return 5

	case 0x3C: // ROL A
		c.A = c.rol(c.A)
		return 2

	case 0x2B: // ROL dp
		addr := c.getDirect()
		c.write(addr, c.rol(c.read(addr)))
		return 4

	case 0x3B: // ROL dp+X
		addr := c.getDirectX()
		c.write(addr, c.rol(c.read(addr)))
		return 5

	case 0x2C: // ROL !abs
		addr := c.getAbsolute()
		c.write(addr, c.rol(c.read(addr)))
		return 5

	case 0x5C: // LSR A
		c.A = c.lsr(c.A)
		return 2

	case 0x4B: // LSR dp
		addr := c.getDirect()
		c.write(addr, c.lsr(c.read(addr)))
		return 4

	case 0x5B: // LSR dp+X
		addr := c.getDirectX()
		c.write(addr, c.lsr(c.read(addr)))
		return 5

	case 0x4C: // LSR !abs
		addr := c.getAbsolute()
		c.write(addr, c.lsr(c.read(addr)))
		return 5

	case 0x7C: // ROR A
		c.A = c.ror(c.A)
		return 2

	case 0x6B: // ROR dp
		addr := c.getDirect()
		c.write(addr, c.ror(c.read(addr)))
		return 4

	case 0x7B: // ROR dp+X
		addr := c.getDirectX()
		c.write(addr, c.ror(c.read(addr)))
		return 5

	case 0x6C: // ROR !abs
		addr := c.getAbsolute()
		c.write(addr, c.ror(c.read(addr)))
		return 5

	// INC and DEC
	case 0xBC: // INC A
		c.A++
		c.updateNZ(c.A)
		return 2

	case 0x3D: // INC X
		c.X++
		c.updateNZ(c.X)
		return 2

	case 0xFC: // INC Y
		c.Y++
		c.updateNZ(c.Y)
		return 2

	case 0xAB: // INC dp
		addr := c.getDirect()
		v := c.read(addr) + 1
		c.updateNZ(v)
		c.write(addr, v)
		return 4

	case 0xBB: // INC dp+X
		addr := c.getDirectX()
		v := c.read(addr) + 1
		c.updateNZ(v)
		c.write(addr, v)
		return 5

	case 0xAC: // INC !abs
		addr := c.getAbsolute()
		v := c.read(addr) + 1
		c.updateNZ(v)
		c.write(addr, v)
		return 5

	case 0x9C: // DEC A
		c.A--
		c.updateNZ(c.A)
		return 2

	case 0x1D: // DEC X
		c.X--
		c.updateNZ(c.X)
		return 2

	case 0xDC: // DEC Y
		c.Y--
		c.updateNZ(c.Y)
		return 2

	case 0x8B: // DEC dp
		addr := c.getDirect()
		v := c.read(addr) - 1
		c.updateNZ(v)
		c.write(addr, v)
		return 4

	case 0x9B: // DEC dp+X
		addr := c.getDirectX()
		v := c.read(addr) - 1
		c.updateNZ(v)
		c.write(addr, v)
		return 5

	case 0x8C: // DEC !abs
		addr := c.getAbsolute()
		v := c.read(addr) - 1
		c.updateNZ(v)
		c.write(addr, v)
		return 5

	// 16-bit operations on YA and direct page words
	case 0xBA: // MOVW YA, dp
		v := c.readDirectWord(c.fetchByte())
		c.setYA(v)
		c.updateNZ16(v)
		return 5

	case 0xDA: // MOVW dp, YA
		d := c.fetchByte()
		c.read(c.directBase() | uint16(d))
		c.writeDirectWord(d, c.ya())
		return 5

	case 0x7A: // ADDW YA, dp
		v := c.readDirectWord(c.fetchByte())
		c.setYA(c.addw(c.ya(), v))
		return 5

	case 0x9A: // SUBW YA, dp
		v := c.readDirectWord(c.fetchByte())
		c.setYA(c.subw(c.ya(), v))
		return 5

	case 0x5A: // CMPW YA, dp
		v := c.readDirectWord(c.fetchByte())
		sum := uint32(c.ya()) + uint32(^v) + 1
		c.setFlag(spcFlagC, sum > 0xFFFF)
		c.updateNZ16(uint16(sum))
		return 4

	case 0x3A: // INCW dp
		d := c.fetchByte()
		v := c.readDirectWord(d) + 1
		c.writeDirectWord(d, v)
		c.updateNZ16(v)
		return 6

	case 0x1A: // DECW dp
		d := c.fetchByte()
		v := c.readDirectWord(d) - 1
		c.writeDirectWord(d, v)
		c.updateNZ16(v)
		return 6

	case 0xCF: // MUL YA
		c.setYA(uint16(c.Y) * uint16(c.A))
		c.updateNZ(c.Y)
		return 9

	case 0x9E: // DIV YA, X
		// Quotient lands in A, remainder in Y. When the quotient does
		// not fit in eight bits the hardware produces the wrapped
		// values below rather than saturating.
		ya := uint32(c.ya())
		x := uint32(c.X)
		c.setFlag(spcFlagH, c.Y&0x0F >= c.X&0x0F)
		c.setFlag(spcFlagV, c.Y >= c.X)
		if uint32(c.Y) < x<<1 {
			c.A = byte(ya / x)
			c.Y = byte(ya % x)
		} else {
			c.A = byte(255 - (ya-x<<9)/(256-x))
			c.Y = byte(x + (ya-x<<9)%(256-x))
		}
		c.updateNZ(c.A)
		return 12

	// Decimal adjust and nibble swap
	case 0xDF: // DAA
		if c.flag(spcFlagC) || c.A > 0x99 {
			c.A += 0x60
			c.setFlag(spcFlagC, true)
		}
		if c.flag(spcFlagH) || c.A&0x0F > 0x09 {
			c.A += 0x06
		}
		c.updateNZ(c.A)
		return 3

	case 0xBE: // DAS
		if !c.flag(spcFlagC) || c.A > 0x99 {
			c.A -= 0x60
			c.setFlag(spcFlagC, false)
		}
		if !c.flag(spcFlagH) || c.A&0x0F > 0x09 {
			c.A -= 0x06
		}
		c.updateNZ(c.A)
		return 3

	case 0x9F: // XCN A
		c.A = c.A>>4 | c.A<<4
		c.updateNZ(c.A)
		return 5

	// Single-bit operations
	case 0x02, 0x22, 0x42, 0x62, 0x82, 0xA2, 0xC2, 0xE2: // SET1 dp.bit
		bit := opcode >> 5
		addr := c.getDirect()
		c.write(addr, c.read(addr)|1<<bit)
		return 4

	case 0x12, 0x32, 0x52, 0x72, 0x92, 0xB2, 0xD2, 0xF2: // CLR1 dp.bit
		bit := opcode >> 5
		addr := c.getDirect()
		c.write(addr, c.read(addr)&^(1<<bit))
		return 4

	case 0x0E: // TSET1 !abs
		addr := c.getAbsolute()
		v := c.read(addr)
		c.updateNZ(c.A - v)
		c.write(addr, v|c.A)
		return 6

	case 0x4E: // TCLR1 !abs
		addr := c.getAbsolute()
		v := c.read(addr)
		c.updateNZ(c.A - v)
		c.write(addr, v&^c.A)
		return 6

	case 0x0A: // OR1 C, m.b
		addr, bit := c.fetchBitOperand()
		if c.read(addr)&(1<<bit) != 0 {
			c.setFlag(spcFlagC, true)
		}
		return 5

	case 0x2A: // OR1 C, /m.b
		addr, bit := c.fetchBitOperand()
		if c.read(addr)&(1<<bit) == 0 {
			c.setFlag(spcFlagC, true)
		}
		return 5

	case 0x4A: // AND1 C, m.b
		addr, bit := c.fetchBitOperand()
		if c.read(addr)&(1<<bit) == 0 {
			c.setFlag(spcFlagC, false)
		}
		return 4

	case 0x6A: // AND1 C, /m.b
		addr, bit := c.fetchBitOperand()
		if c.read(addr)&(1<<bit) != 0 {
			c.setFlag(spcFlagC, false)
		}
		return 4

	case 0x8A: // EOR1 C, m.b
		addr, bit := c.fetchBitOperand()
		if c.read(addr)&(1<<bit) != 0 {
			c.setFlag(spcFlagC, !c.flag(spcFlagC))
		}
		return 5

	case 0xAA: // MOV1 C, m.b
		addr, bit := c.fetchBitOperand()
		c.setFlag(spcFlagC, c.read(addr)&(1<<bit) != 0)
		return 4

	case 0xCA: // MOV1 m.b, C
		addr, bit := c.fetchBitOperand()
		v := c.read(addr)
		if c.flag(spcFlagC) {
			v |= 1 << bit
		} else {
			v &^= 1 << bit
		}
		c.write(addr, v)
		return 6

	case 0xEA: // NOT1 m.b
		addr, bit := c.fetchBitOperand()
		c.write(addr, c.read(addr)^(1<<bit))
		return 5

	// Stack
	case 0x0D: // PUSH PSW
		c.push(c.PSW)
		return 4

	case 0x2D: // PUSH A
		c.push(c.A)
		return 4

	case 0x4D: // PUSH X
		c.push(c.X)
		return 4

	case 0x6D: // PUSH Y
		c.push(c.Y)
		return 4

	case 0x8E: // POP PSW
		c.PSW = c.pop()
		return 4

	case 0xAE: // POP A
		c.A = c.pop()
		return 4

	case 0xCE: // POP X
		c.X = c.pop()
		return 4

	case 0xEE: // POP Y
		c.Y = c.pop()
		return 4

	// Branches. Taken branches cost two extra cycles.
	case 0x10: // BPL rel
		return 2 + c.branch(!c.flag(spcFlagN))

	case 0x30: // BMI rel
		return 2 + c.branch(c.flag(spcFlagN))

	case 0x50: // BVC rel
		return 2 + c.branch(!c.flag(spcFlagV))

	case 0x70: // BVS rel
		return 2 + c.branch(c.flag(spcFlagV))

	case 0x90: // BCC rel
		return 2 + c.branch(!c.flag(spcFlagC))

	case 0xB0: // BCS rel
		return 2 + c.branch(c.flag(spcFlagC))

	case 0xD0: // BNE rel
		return 2 + c.branch(!c.flag(spcFlagZ))

	case 0xF0: // BEQ rel
		return 2 + c.branch(c.flag(spcFlagZ))

	case 0x2F: // BRA rel
		return 2 + c.branch(true)

	case 0x03, 0x23, 0x43, 0x63, 0x83, 0xA3, 0xC3, 0xE3: // BBS dp.bit, rel
		bit := opcode >> 5
		v := c.read(c.getDirect())
		return 5 + c.branch(v&(1<<bit) != 0)

	case 0x13, 0x33, 0x53, 0x73, 0x93, 0xB3, 0xD3, 0xF3: // BBC dp.bit, rel
		bit := opcode >> 5
		v := c.read(c.getDirect())
		return 5 + c.branch(v&(1<<bit) == 0)

	// CBNE and DBNZ branch without touching the flags.
	case 0x2E: // CBNE dp, rel
		v := c.read(c.getDirect())
		return 5 + c.branch(c.A != v)

	case 0xDE: // CBNE dp+X, rel
		v := c.read(c.getDirectX())
		return 6 + c.branch(c.A != v)

	case 0x6E: // DBNZ dp, rel
		addr := c.getDirect()
		v := c.read(addr) - 1
		c.write(addr, v)
		return 5 + c.branch(v != 0)

	case 0xFE: // DBNZ Y, rel
		c.Y--
		return 4 + c.branch(c.Y != 0)

	// Jumps and calls
	case 0x5F: // JMP !abs
		c.PC = c.fetchWord()
		return 3

	case 0x1F: // JMP [!abs+X]
		c.PC = c.readWord(c.fetchWord() + uint16(c.X))
		return 6

	case 0x3F: // CALL !abs
		addr := c.fetchWord()
		c.pushWord(c.PC)
		c.PC = addr
		return 8

	case 0x4F: // PCALL up
		page := c.fetchByte()
		c.pushWord(c.PC)
		c.PC = 0xFF00 | uint16(page)
		return 6

	case 0x01, 0x11, 0x21, 0x31, 0x41, 0x51, 0x61, 0x71,
		0x81, 0x91, 0xA1, 0xB1, 0xC1, 0xD1, 0xE1, 0xF1: // TCALL n
		// Vector table runs downward from 0xFFDE.
		c.pushWord(c.PC)
		c.PC = c.readWord(0xFFDE - uint16(opcode>>4)*2)
		return 8

	case 0x6F: // RET
		c.PC = c.popWord()
		return 5

	case 0x7F: // RETI
		c.PSW = c.pop()
		c.PC = c.popWord()
		return 6

	case 0x0F: // BRK
		c.pushWord(c.PC)
		c.push(c.PSW)
		c.setFlag(spcFlagB, true)
		c.setFlag(spcFlagI, false)
		c.PC = c.readWord(0xFFDE)
		return 8

	// PSW manipulation
	case 0x60: // CLRC
		c.setFlag(spcFlagC, false)
		return 2

	case 0x80: // SETC
		c.setFlag(spcFlagC, true)
		return 2

	case 0xED: // NOTC
		c.setFlag(spcFlagC, !c.flag(spcFlagC))
		return 3

	case 0xE0: // CLRV clears V and H together
		c.PSW &^= spcFlagV | spcFlagH
		return 2

	case 0x20: // CLRP
		c.setFlag(spcFlagP, false)
		return 2

	case 0x40: // SETP
		c.setFlag(spcFlagP, true)
		return 2

	case 0xA0: // EI
		c.setFlag(spcFlagI, true)
		return 3

	case 0xC0: // DI
		c.setFlag(spcFlagI, false)
		return 3

	// Control
	case 0x00: // NOP
		return 2

	case 0xEF: // SLEEP
		c.Stopped = true
		return 3

	case 0xFF: // STOP
		c.Stopped = true
		return 3
	}

	return 2
}
