package output

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder captures diagnostics for inspection.
type recorder struct {
	warnings []string
	errors   []string
}

func (r *recorder) Warnf(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (r *recorder) Errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func newTestContext(t *testing.T, cfg Config) (*Context, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := New(cfg, rec, io.Discard)
	c.PassInit(true)
	return c, rec
}

func saveBytes(t *testing.T, c *Context) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))
	return buf.Bytes()
}

func TestWatermarks(t *testing.T) {
	c, _ := newTestContext(t, Config{})

	c.SetPC(0x1000, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.WriteByte(0x10+i))
	}

	low, high := c.Bounds()
	assert.Equal(t, 0x1000, low)
	assert.Equal(t, 0x1002, high)

	// Nothing outside the watermark range may be written.
	assert.Equal(t, []byte{0x00}, c.Peek(0x0fff, 1))
	assert.Equal(t, []byte{0x10, 0x11, 0x12}, c.Peek(0x1000, 3))
	assert.Equal(t, []byte{0x00}, c.Peek(0x1003, 1))
}

func TestNothingWrittenBounds(t *testing.T) {
	c, _ := newTestContext(t, Config{})
	low, high := c.Bounds()
	assert.Greater(t, low, high)
	assert.Empty(t, saveBytes(t, c))
}

func TestWriteBeforePCSet(t *testing.T) {
	c, rec := newTestContext(t, Config{})

	// The first offending write complains once, then succeeds.
	require.NoError(t, c.WriteByte(0xaa))
	require.NoError(t, c.WriteByte(0xbb))
	assert.Equal(t, []string{"Program counter undefined."}, rec.warnings)
	assert.Equal(t, []byte{0xaa, 0xbb}, c.Peek(0, 2))

	// The next pass disables writing again.
	c.PassInit(false)
	require.NoError(t, c.WriteByte(0xcc))
	assert.Len(t, rec.warnings, 2)
}

func TestSkipBeforePCSet(t *testing.T) {
	c, rec := newTestContext(t, Config{})

	require.NoError(t, c.Skip(4))
	assert.Equal(t, []string{"Program counter undefined."}, rec.warnings)

	// The dummy byte counts toward the skipped amount.
	low, high := c.Bounds()
	assert.Equal(t, 0, low)
	assert.Equal(t, 3, high)
	assert.Equal(t, 4, c.StatementSize())
}

func TestSkipNonPositive(t *testing.T) {
	c, rec := newTestContext(t, Config{})
	c.SetPC(0x2000, 0)
	c.EndStatement()

	require.NoError(t, c.Skip(0))
	require.NoError(t, c.Skip(-5))
	assert.Equal(t, 0, c.StatementSize())
	low, high := c.Bounds()
	assert.Greater(t, low, high)
	assert.Empty(t, rec.warnings)
}

func TestCapacityExceededIsFatal(t *testing.T) {
	c, _ := newTestContext(t, Config{})

	// Writing exactly the full buffer is fine.
	c.SetPC(0, 0)
	require.NoError(t, c.Skip(c.Capacity()))

	// One more byte overflows.
	err := c.WriteByte(0)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestXorMask(t *testing.T) {
	c, _ := newTestContext(t, Config{})

	c.SetPC(0, 0)
	c.SetXor(0xff)
	require.NoError(t, c.WriteByte(0x01))
	c.SetXor(0)
	require.NoError(t, c.WriteByte(0x02))

	assert.Equal(t, []byte{0xfe, 0x02}, c.Peek(0, 2))

	// The mask resets on pass init.
	c.SetXor(0xff)
	c.PassInit(false)
	assert.EqualValues(t, 0, c.Xor())
}

func TestInitMemTwice(t *testing.T) {
	c, rec := newTestContext(t, Config{})

	assert.True(t, c.InitMem(0xaa))
	assert.True(t, c.ExtraPassNeeded())
	assert.Equal(t, []byte{0xaa}, c.Peek(0x8000, 1))

	// The second attempt fails and leaves the first value in place.
	assert.False(t, c.InitMem(0xbb))
	assert.Equal(t, []string{"Memory already initialised."}, rec.warnings)
	assert.Equal(t, []byte{0xaa}, c.Peek(0x8000, 1))
}

func TestConfiguredFillBlocksInitMem(t *testing.T) {
	c, rec := newTestContext(t, Config{FillValue: 0xea})

	assert.Equal(t, []byte{0xea}, c.Peek(0x1234, 1))
	assert.False(t, c.InitMem(0x00))
	assert.Len(t, rec.warnings, 1)
}

func TestEndStatementWrapsPC(t *testing.T) {
	c, _ := newTestContext(t, Config{})

	// Oversized values are accepted silently and wrap at statement end.
	c.SetPC(0x12345, 0)
	assert.Equal(t, 0x12345, c.PC().Value)
	c.EndStatement()
	assert.Equal(t, 0x2345, c.PC().Value)
}

func TestStatementSize(t *testing.T) {
	c, _ := newTestContext(t, Config{})

	c.SetPC(0x0400, 0)
	c.EndStatement()

	require.NoError(t, c.WriteByte(1))
	require.NoError(t, c.WriteByte(2))
	assert.Equal(t, 2, c.StatementSize())
	c.EndStatement()
	assert.Equal(t, 0, c.StatementSize())
	assert.Equal(t, 0x0402, c.PC().Value)
}

func TestMultiByteHelpers(t *testing.T) {
	c, _ := newTestContext(t, Config{})
	c.SetPC(0, 0)

	require.NoError(t, c.Write16LE(0x1234))
	require.NoError(t, c.Write16BE(0x1234))
	require.NoError(t, c.Write24LE(0x123456))
	require.NoError(t, c.Write24BE(0x123456))
	require.NoError(t, c.Write32LE(0x12345678))
	require.NoError(t, c.Write32BE(0x12345678))

	want := []byte{
		0x34, 0x12,
		0x12, 0x34,
		0x56, 0x34, 0x12,
		0x12, 0x34, 0x56,
		0x78, 0x56, 0x34, 0x12,
		0x12, 0x34, 0x56, 0x78,
	}
	assert.Equal(t, want, c.Peek(0, len(want)))
	assert.Equal(t, len(want), c.StatementSize())
}

func TestLargeBuffer(t *testing.T) {
	c, _ := newTestContext(t, Config{LargeBuffer: true})
	assert.Equal(t, 0x1000000, c.Capacity())

	c.SetPC(0x123456, 0)
	require.NoError(t, c.WriteByte(0x42))
	low, high := c.Bounds()
	assert.Equal(t, 0x123456, low)
	assert.Equal(t, 0x123456, high)
}
