package output

// SetPC assigns a new value to the program counter and starts a new
// segment at the matching buffer position. Oversized or negative values
// are accepted without complaint and wrap at the end of the statement.
//
// Under the current compatibility level an active offset-assembly block
// is left alone; the caller manages it explicitly. Older levels close
// all open blocks here and warn about it.
func (c *Context) SetPC(value int, flags SegmentFlags) {
	if c.current != NoContext {
		switch {
		case c.cfg.Compat < CompatObsolete:
			c.report.Warnf("Offset assembly still active at end of segment. Switched it off.")
			c.EndAllPseudoPC()
		case c.cfg.Compat < CompatCurrent:
			// The warning stopped mentioning the switch-off, but the
			// switch-off itself stayed.
			c.report.Warnf("Offset assembly still active at end of segment.")
			c.EndAllPseudoPC()
		}
	}

	delta := value - c.pc.Value
	c.pc.Value = value
	c.pc.Defined = true
	c.pc.AddrRef = true
	c.startSegment(delta, flags)
}

// PC returns the current program counter, for the "current address"
// operator.
func (c *Context) PC() Number {
	return c.pc
}

// StatementSize returns the number of bytes emitted so far by the
// current statement.
func (c *Context) StatementSize() int {
	return c.addToPC
}

// EndStatement folds the emitted byte count into the program counter,
// wrapping at the buffer size. The driver must call this exactly once
// per source statement.
func (c *Context) EndStatement() {
	c.pc.Value = (c.pc.Value + c.addToPC) & (c.bufsize - 1)
	c.addToPC = 0
}

// Multi-byte emission helpers layered on WriteByte.

// Write16LE emits v as two bytes, low byte first.
func (c *Context) Write16LE(v int) error {
	if err := c.WriteByte(v); err != nil {
		return err
	}
	return c.WriteByte(v >> 8)
}

// Write16BE emits v as two bytes, high byte first.
func (c *Context) Write16BE(v int) error {
	if err := c.WriteByte(v >> 8); err != nil {
		return err
	}
	return c.WriteByte(v)
}

// Write24LE emits v as three bytes, low byte first.
func (c *Context) Write24LE(v int) error {
	if err := c.Write16LE(v); err != nil {
		return err
	}
	return c.WriteByte(v >> 16)
}

// Write24BE emits v as three bytes, high byte first.
func (c *Context) Write24BE(v int) error {
	if err := c.WriteByte(v >> 16); err != nil {
		return err
	}
	return c.Write16BE(v)
}

// Write32LE emits v as four bytes, low byte first.
func (c *Context) Write32LE(v int) error {
	if err := c.Write16LE(v); err != nil {
		return err
	}
	return c.Write16LE(v >> 16)
}

// Write32BE emits v as four bytes, high byte first.
func (c *Context) Write32BE(v int) error {
	if err := c.Write16BE(v >> 16); err != nil {
		return err
	}
	return c.Write16BE(v)
}
