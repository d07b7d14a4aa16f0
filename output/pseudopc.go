package output

import "errors"

// errNoPseudoContext is returned by Unmap when the requested level count
// exceeds the nesting depth at the reference point.
var errNoPseudoContext = errors.New("no pseudopc context")

// A Ref identifies a pseudo-PC context within the current pass. Label
// values defined inside an offset-assembly block capture the Ref active
// at their definition site, so contexts must stay valid for the whole
// pass even after their block is closed. Contexts live in a per-pass
// arena and are referenced by index, never by pointer.
type Ref int

// NoContext is the Ref held outside of any offset-assembly block.
const NoContext Ref = 0

// A pseudoContext records one level of offset assembly.
type pseudoContext struct {
	outer        Ref // enclosing context, NoContext at the outermost level
	offset       int // inner minus outer pc at entry
	outerDefined bool
}

// PseudoPC enters an offset-assembly block: the difference between the
// new and current PC is captured, and the PC takes the new value, marked
// defined.
func (c *Context) PseudoPC(n Number) {
	c.pseudo = append(c.pseudo, pseudoContext{
		outer:        c.current,
		offset:       n.Value - c.pc.Value,
		outerDefined: c.pc.Defined,
	})
	c.current = Ref(len(c.pseudo))

	c.pc.Value = n.Value
	c.pc.Defined = true
}

// EndPseudoPC leaves the innermost offset-assembly block, restoring the
// outer PC value and definedness.
//
// Calling it with no block active is a driver bug under the current
// compatibility level and panics; older levels exposed this path through
// since-removed syntax and tolerate it without effect.
func (c *Context) EndPseudoPC() {
	if c.current == NoContext {
		if c.cfg.Compat >= CompatCurrent {
			panic("closing unopened pseudopc block")
		}
		return
	}

	ctx := c.pseudo[c.current-1]
	// The pc might have wrapped around.
	c.pc.Value = (c.pc.Value - ctx.offset) & (c.bufsize - 1)
	c.pc.Defined = ctx.outerDefined
	c.current = ctx.outer
}

// EndAllPseudoPC unwinds every open offset-assembly block. Only the
// legacy force-disable paths use this.
func (c *Context) EndAllPseudoPC() {
	for c.current != NoContext {
		c.EndPseudoPC()
	}
}

// PseudoContext returns the Ref of the innermost active block, or
// NoContext. Label definitions capture this.
func (c *Context) PseudoContext() Ref {
	return c.current
}

// Unmap translates a value captured inside nested offset-assembly
// blocks back toward real address space, walking the given number of
// levels outward from ref. Running out of contexts is reported and
// returns an error.
func (c *Context) Unmap(value int, ref Ref, levels int) (int, error) {
	for ; levels > 0; levels-- {
		if ref == NoContext {
			c.report.Errorf("Un-pseudopc operator '&' has no !pseudopc context.")
			return value, errNoPseudoContext
		}
		ctx := c.pseudo[ref-1]
		value = (value - ctx.offset) & (c.bufsize - 1)
		ref = ctx.outer
	}
	return value, nil
}
