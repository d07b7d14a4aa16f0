package output

import "sort"

// A segmentRecord describes an address range written during the first
// pass. Records are immutable once inserted.
type segmentRecord struct {
	start  int
	length int
}

// recordSegment inserts a record into the segment list, keeping it
// sorted by (start, length) ascending. Records with equal keys are kept,
// not merged.
func (c *Context) recordSegment(start, length int) {
	i := sort.Search(len(c.segments), func(i int) bool {
		s := c.segments[i]
		return s.start > start || (s.start == start && s.length >= length)
	})
	c.segments = append(c.segments, segmentRecord{})
	copy(c.segments[i+1:], c.segments[i:])
	c.segments[i] = segmentRecord{start: start, length: length}
}

// findSegmentMax recomputes the current segment's upper bound: one less
// than the smallest recorded start beyond addr, or the end of the buffer
// if there is none.
func (c *Context) findSegmentMax(addr int) {
	i := sort.Search(len(c.segments), func(i int) bool {
		return c.segments[i].start > addr
	})
	if i == len(c.segments) {
		c.seg.max = c.bufsize - 1
	} else {
		c.seg.max = c.segments[i].start - 1
	}
}

// checkSegment reports a collision if addr falls inside a recorded
// segment. Only the first match is reported. Called during the first
// pass only, otherwise too many diagnostics would be generated.
func (c *Context) checkSegment(addr int) {
	for _, s := range c.segments {
		if s.start > addr {
			break
		}
		if s.start+s.length > addr {
			c.overlapDiag("Segment starts inside another one, overwriting it.")
			return
		}
	}
}

// EndSegment finalizes the current segment: empty and invisible segments
// are discarded, anything else is recorded for overlap detection. Called
// whenever a new segment begins, and by the driver at end of pass.
// Outside the first pass this does nothing.
func (c *Context) EndSegment() {
	if !c.firstPass {
		return
	}
	if c.seg.start == noSegmentStart {
		return
	}
	if c.seg.flags&SegmentInvisible != 0 {
		return
	}

	amount := c.writeIdx - c.seg.start
	if amount == 0 {
		return
	}

	c.recordSegment(c.seg.start, amount)
	if c.cfg.Verbosity > 1 {
		c.logf("Segment size is %d (0x%x) bytes (0x%x - 0x%x exclusive).",
			amount, amount, c.seg.start, c.writeIdx)
	}
}

// startSegment closes the current segment, moves the write cursor by
// delta (wrapping at the buffer size), and opens a new segment there.
// Writing is enabled from here on. During the first pass the new start
// is checked against recorded segments unless the overlay flag is set.
func (c *Context) startSegment(delta int, flags SegmentFlags) {
	c.EndSegment()

	c.writeIdx = (c.writeIdx + delta) & (c.bufsize - 1)
	c.seg.start = c.writeIdx
	c.seg.flags = flags
	c.state = writeEnabled

	if c.firstPass {
		if flags&SegmentOverlay == 0 {
			c.checkSegment(c.seg.start)
		}
		c.findSegmentMax(c.seg.start)
	}
}
