package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emit(t *testing.T, c *Context, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, c.WriteByte(0xea))
	}
	c.EndStatement()
}

func TestSegmentMaxQueries(t *testing.T) {
	c, _ := newTestContext(t, Config{})
	c.recordSegment(0x2000, 0x10)
	c.recordSegment(0x4000, 0x100)

	c.findSegmentMax(0x1000)
	assert.Equal(t, 0x1fff, c.seg.max)

	// Inside a recorded segment, the bound is still the next start.
	c.findSegmentMax(0x2005)
	assert.Equal(t, 0x3fff, c.seg.max)

	// Beyond the last segment, the whole buffer remains.
	c.findSegmentMax(0x4100)
	assert.Equal(t, c.Capacity()-1, c.seg.max)
}

func TestRecordSegmentOrdering(t *testing.T) {
	c, _ := newTestContext(t, Config{})
	c.recordSegment(0x4000, 0x10)
	c.recordSegment(0x2000, 0x20)
	c.recordSegment(0x2000, 0x10)
	c.recordSegment(0x2000, 0x20)

	want := []segmentRecord{
		{start: 0x2000, length: 0x10},
		{start: 0x2000, length: 0x20},
		{start: 0x2000, length: 0x20},
		{start: 0x4000, length: 0x10},
	}
	assert.Equal(t, want, c.segments)
}

func TestOverlapReported(t *testing.T) {
	c, rec := newTestContext(t, Config{})

	c.SetPC(0x2000, 0)
	emit(t, c, 0x10)

	// Opening a segment inside the recorded one complains.
	c.SetPC(0x2005, 0)
	assert.Equal(t, []string{"Segment starts inside another one, overwriting it."}, rec.warnings)
	assert.Empty(t, rec.errors)
}

func TestOverlapAsError(t *testing.T) {
	c, rec := newTestContext(t, Config{StrictSegments: true})

	c.SetPC(0x2000, 0)
	emit(t, c, 0x10)
	c.SetPC(0x2005, 0)

	assert.Empty(t, rec.warnings)
	assert.Equal(t, []string{"Segment starts inside another one, overwriting it."}, rec.errors)
}

func TestOverlaySuppressesOverlapCheck(t *testing.T) {
	c, rec := newTestContext(t, Config{})

	c.SetPC(0x2000, 0)
	emit(t, c, 0x10)
	c.SetPC(0x2005, SegmentOverlay)

	assert.Empty(t, rec.warnings)
	assert.Empty(t, rec.errors)
}

func TestInvisibleSegmentNotRecorded(t *testing.T) {
	c, rec := newTestContext(t, Config{})

	c.SetPC(0x2000, SegmentInvisible)
	emit(t, c, 0x10)
	c.SetPC(0x3000, 0)

	assert.Empty(t, c.segments)
	assert.Empty(t, rec.warnings)
}

func TestEmptySegmentDiscarded(t *testing.T) {
	c, _ := newTestContext(t, Config{})

	c.SetPC(0x2000, 0)
	c.EndStatement()
	c.SetPC(0x3000, 0)
	c.EndSegment()

	assert.Empty(t, c.segments)
}

func TestBorderCrossingContinues(t *testing.T) {
	c, rec := newTestContext(t, Config{})

	c.SetPC(0x2000, 0)
	emit(t, c, 0x10)

	// A segment below runs into the recorded one: one complaint, then
	// the bound is recomputed and writing continues quietly.
	c.SetPC(0x1ff0, 0)
	emit(t, c, 0x20)

	assert.Equal(t, []string{"Segment reached another one, overwriting it."}, rec.warnings)
	assert.Equal(t, 0x2010, c.PC().Value)
}

func TestSegmentsSurvivePasses(t *testing.T) {
	c, rec := newTestContext(t, Config{})

	c.SetPC(0x2000, 0)
	emit(t, c, 0x10)
	c.SetPC(0x3000, 0)
	require.Len(t, c.segments, 1)

	// Later passes keep the records but stay quiet about collisions.
	c.PassInit(false)
	assert.Len(t, c.segments, 1)

	c.SetPC(0x2005, 0)
	emit(t, c, 0x10)
	c.SetPC(0x3000, 0)

	assert.Empty(t, rec.warnings)
	assert.Empty(t, rec.errors)
	assert.Len(t, c.segments, 1)
}

func TestEndSegmentOutsideFirstPass(t *testing.T) {
	c, _ := newTestContext(t, Config{})
	c.PassInit(false)

	c.SetPC(0x2000, 0)
	emit(t, c, 0x10)
	c.EndSegment()

	assert.Empty(t, c.segments)
}
