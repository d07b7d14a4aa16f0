// Package output implements the output buffer and address-space
// simulation used by the assembler. It models target memory as a single
// writable buffer, tracks the virtual program counter as statements are
// assembled, records written segments so address-range collisions can be
// detected, supports nested offset-assembly (pseudo-PC) contexts, and
// serializes the finished buffer to one of several file formats.
//
// All mutable state lives in a Context owned by the assembler driver.
// The driver calls PassInit before each pass, SetPC and the byte-sink
// operations while statements are evaluated, EndStatement once per
// statement, and Save once at the end of assembly.
package output

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrOverflow is returned when a write would exceed the output buffer's
// capacity.
var ErrOverflow = errors.New("produced too much code")

// SegmentFlags control how a segment participates in overlap detection.
type SegmentFlags uint8

const (
	// SegmentOverlay suppresses overlap checking against other segments.
	SegmentOverlay SegmentFlags = 1 << iota
	// SegmentInvisible excludes the segment from recording and reporting.
	SegmentInvisible
)

// Compat selects the compatibility level for behavior that changed
// across assembler releases.
type Compat int

const (
	// CompatOld restores the oldest behavior: a PC-setting directive
	// closes any active offset assembly and says so.
	CompatOld Compat = iota
	// CompatObsolete still closes active offset assembly on a PC-setting
	// directive, but the warning no longer mentions switching it off.
	CompatObsolete
	// CompatCurrent requires offset-assembly blocks to be closed
	// explicitly.
	CompatCurrent
)

// Config carries the driver-supplied configuration toggles.
type Config struct {
	LargeBuffer    bool // 16 MiB address space instead of 64 KiB
	FillValue      int  // initial fill byte; negative means "use default"
	StrictSegments bool // segment overlap diagnostics become errors
	Verbosity      int  // process verbosity level
	Compat         Compat
}

// A Reporter is the sink for warnings and errors generated during
// assembly simulation. *logrus.Logger satisfies it.
type Reporter interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopReporter struct{}

func (nopReporter) Warnf(format string, args ...any)  {}
func (nopReporter) Errorf(format string, args ...any) {}

// A Number is a value paired with its definedness, as produced by the
// expression evaluator. The program counter is exposed as a Number so
// the "current address" operator can observe an undefined PC.
type Number struct {
	Value   int
	Defined bool
	AddrRef bool // value counts as an address reference
}

type writeState byte

const (
	writeDisabled writeState = iota // no PC set yet; first write complains
	writeEnabled
)

const (
	smallBufSize = 0x10000
	largeBufSize = 0x1000000

	defaultFill = 0

	noSegmentStart = -1
)

// A Context holds all output state for one assembled binary: the buffer,
// watermarks, segment records, program counter, and pseudo-PC chain.
type Context struct {
	cfg    Config
	report Reporter
	out    io.Writer // verbose output

	bufsize   int
	buffer    []byte
	writeIdx  int
	lowest    int // smallest index written this pass
	highest   int // largest index written this pass
	fillValue byte
	fillSet   bool
	xor       byte
	state     writeState

	// segment records, sorted by (start, length); never cleared between
	// passes. Overlap diagnostics only fire during the first pass, so
	// the stale records stay quiet.
	segments []segmentRecord
	seg      struct {
		start int // start of current segment, or noSegmentStart
		max   int // highest address the segment may use
		flags SegmentFlags
	}

	pc      Number
	addToPC int // bytes emitted by the current statement

	pseudo  []pseudoContext // arena, reset each pass
	current Ref

	firstPass bool
	extraPass bool

	format   Format
	filename string
}

// New creates an output context sized and filled per the configuration.
// Verbose output is written to out (default os.Stdout).
func New(cfg Config, report Reporter, out io.Writer) *Context {
	if report == nil {
		report = nopReporter{}
	}
	if out == nil {
		out = os.Stdout
	}

	c := &Context{
		cfg:     cfg,
		report:  report,
		out:     out,
		bufsize: smallBufSize,
	}
	if cfg.LargeBuffer {
		c.bufsize = largeBufSize
	}
	c.buffer = make([]byte, c.bufsize)

	fill := byte(defaultFill)
	if cfg.FillValue >= 0 {
		fill = byte(cfg.FillValue)
		c.fillSet = true
	}
	c.fillCompletely(fill)

	c.seg.start = noSegmentStart
	c.seg.max = c.bufsize - 1
	return c
}

// PassInit prepares the context for another assembly pass: watermarks,
// cursor, xor mask, PC, and pseudo-PC state are reset, and writing is
// disabled until the PC is set. The segment record list survives from
// pass to pass.
func (c *Context) PassInit(first bool) {
	c.firstPass = first
	c.extraPass = false

	// Invalidate start and end; the first byte written fixes them.
	c.lowest = c.bufsize - 1
	c.highest = 0
	c.state = writeDisabled
	c.writeIdx = 0
	c.seg.start = noSegmentStart
	c.seg.max = c.bufsize - 1
	c.seg.flags = 0
	c.xor = 0

	// PC value 0 matches the write index on pass init, so the first
	// SetPC computes a sensible delta even while the PC is undefined.
	c.pc = Number{}
	c.addToPC = 0

	c.pseudo = c.pseudo[:0]
	c.current = NoContext
}

// Capacity returns the size of the output buffer.
func (c *Context) Capacity() int {
	return c.bufsize
}

// Bounds returns the low and high watermarks of the current pass.
// low > high means nothing has been written yet.
func (c *Context) Bounds() (low, high int) {
	return c.lowest, c.highest
}

// ExtraPassNeeded reports whether a directive has requested at least one
// more assembly pass.
func (c *Context) ExtraPassNeeded() bool {
	return c.extraPass
}

// Xor returns the mask applied to every stored byte.
func (c *Context) Xor() byte {
	return c.xor
}

// SetXor changes the mask applied to every stored byte.
func (c *Context) SetXor(x byte) {
	c.xor = x
}

// Peek returns a copy of n buffer bytes starting at addr, for display
// purposes. The range is clamped to the buffer.
func (c *Context) Peek(addr, n int) []byte {
	if addr < 0 || addr >= c.bufsize || n < 1 {
		return nil
	}
	if addr+n > c.bufsize {
		n = c.bufsize - addr
	}
	b := make([]byte, n)
	copy(b, c.buffer[addr:addr+n])
	return b
}

// WriteByte sends the low byte of v to the output buffer, advancing the
// write cursor and the statement size. If the PC has not been set yet,
// a one-shot diagnostic is reported and the write proceeds anyway.
// ErrOverflow is returned when the buffer capacity is exceeded.
func (c *Context) WriteByte(v int) error {
	if c.state == writeDisabled {
		// Complain once, then stop complaining until the next pass.
		c.report.Warnf("Program counter undefined.")
		c.state = writeEnabled
	}

	// Did we reach the next segment?
	if c.writeIdx > c.seg.max {
		if err := c.borderCrossed(c.writeIdx); err != nil {
			return err
		}
	}
	if c.writeIdx < c.lowest {
		c.lowest = c.writeIdx
	}
	if c.writeIdx > c.highest {
		c.highest = c.writeIdx
	}

	c.buffer[c.writeIdx] = byte(v) ^ c.xor
	c.writeIdx++
	c.addToPC++
	return nil
}

// Skip advances the write cursor by size bytes without storing anything,
// applying the same boundary and watermark checks as size individual
// writes. A size below 1 is a no-op.
func (c *Context) Skip(size int) error {
	if size < 1 {
		return nil
	}

	if c.state == writeDisabled {
		// Trigger the one-shot diagnostic with a dummy byte.
		if err := c.WriteByte(0); err != nil {
			return err
		}
		size--
	}

	end := c.writeIdx + size - 1
	if end > c.seg.max {
		if err := c.borderCrossed(end); err != nil {
			return err
		}
	}
	if c.writeIdx < c.lowest {
		c.lowest = c.writeIdx
	}
	if end > c.highest {
		c.highest = end
	}

	c.writeIdx += size
	c.addToPC += size
	return nil
}

// borderCrossed handles the write cursor reaching the current segment's
// upper bound. Exceeding the buffer capacity is fatal. Otherwise the
// collision is reported during the first pass only, and the bound is
// recomputed so simulation continues without repeated complaints.
func (c *Context) borderCrossed(offset int) error {
	if offset >= c.bufsize {
		return ErrOverflow
	}
	if c.firstPass {
		c.overlapDiag("Segment reached another one, overwriting it.")
		c.findSegmentMax(offset + 1)
	}
	return nil
}

// overlapDiag reports a segment collision with the configured severity.
func (c *Context) overlapDiag(msg string) {
	if c.cfg.StrictSegments {
		c.report.Errorf("%s", msg)
	} else {
		c.report.Warnf("%s", msg)
	}
}

// fillCompletely overwrites the whole buffer with value and records it
// as the fill value.
func (c *Context) fillCompletely(value byte) {
	for i := range c.buffer {
		c.buffer[i] = value
	}
	c.fillValue = value
}

// InitMem sets the default value for empty memory. It reports whether
// the value was accepted; a second attempt in the same run warns and
// leaves the first value in place. Accepting a fill value forces at
// least one more assembly pass.
func (c *Context) InitMem(value byte) bool {
	if c.fillSet {
		c.report.Warnf("Memory already initialised.")
		return false
	}
	c.fillSet = true
	c.fillCompletely(value)
	c.extraPass = true
	return true
}

func (c *Context) logf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
	fmt.Fprintf(c.out, "\n")
}
