package output

import (
	"bufio"
	"fmt"
	"io"
)

// Save writes the used portion of the output buffer, bounded by the
// watermarks, to w in the chosen format. If nothing was written during
// the pass, the output holds no code bytes.
func (c *Context) Save(w io.Writer) error {
	var start, amount int
	if c.highest < c.lowest {
		start, amount = 0, 0
	} else {
		start = c.lowest
		amount = c.highest - start + 1
	}

	if c.cfg.Verbosity > 0 {
		c.logf("Saving %d (0x%x) bytes (0x%x - 0x%x exclusive).",
			amount, amount, start, start+amount)
	}

	bw := bufio.NewWriter(w)
	switch c.format {
	case FormatApple:
		// 16-bit load address and length, little-endian.
		bw.WriteByte(byte(start))
		bw.WriteByte(byte(start >> 8))
		bw.WriteByte(byte(amount))
		bw.WriteByte(byte(amount >> 8))
	case FormatCBM:
		// 16-bit load address, little-endian.
		bw.WriteByte(byte(start))
		bw.WriteByte(byte(start >> 8))
	case FormatIntelHex:
		if err := c.saveHex(bw, start, start+amount); err != nil {
			return err
		}
		return bw.Flush()
	}

	if _, err := bw.Write(c.buffer[start : start+amount]); err != nil {
		return err
	}
	return bw.Flush()
}

const (
	// Longest run of the fill value kept inside a hex record; longer
	// runs are treated as untouched memory and skipped.
	maxFillRun = 32
	// Data bytes per hex record.
	maxRecordLen = 64
)

// saveHex writes buffer bytes in [start, end) as Intel HEX data records,
// ending with the terminator record.
func (c *Context) saveHex(w io.Writer, start, end int) error {
	for i := start; i < end; {
		if run := c.fillRun(i, end); run > maxFillRun {
			i += run
			continue
		}

		// Gather one record: up to maxRecordLen bytes, stopping short
		// of any long fill run.
		j := i
		for j < end && j-i < maxRecordLen {
			if c.buffer[j] == c.fillValue {
				run := c.fillRun(j, end)
				if run > maxFillRun {
					break
				}
				j += run
				if j > i+maxRecordLen {
					j = i + maxRecordLen
				}
				continue
			}
			j++
		}

		if err := writeHexRecord(w, i, c.buffer[i:j]); err != nil {
			return err
		}
		i = j
	}

	_, err := io.WriteString(w, ":00000001FF\n")
	return err
}

// fillRun returns the number of consecutive fill-value bytes at i.
func (c *Context) fillRun(i, end int) int {
	n := 0
	for i+n < end && c.buffer[i+n] == c.fillValue {
		n++
	}
	return n
}

// writeHexRecord writes a single Intel HEX data record. The checksum
// byte makes the record's byte sum zero mod 256.
func writeHexRecord(w io.Writer, addr int, data []byte) error {
	addr &= 0xffff
	sum := len(data) + addr>>8 + addr&0xff

	if _, err := fmt.Fprintf(w, ":%02X%04X00", len(data), addr); err != nil {
		return err
	}
	for _, b := range data {
		sum += int(b)
		if _, err := fmt.Fprintf(w, "%02X", b); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%02X\n", -sum&0xff)
	return err
}
