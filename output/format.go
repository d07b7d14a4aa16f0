package output

import (
	"fmt"

	"github.com/beevik/prefixtree/v2"
)

// Format identifies an output file format.
type Format int

const (
	// FormatUnspecified saves plain binary until a format is chosen.
	FormatUnspecified Format = iota
	// FormatApple prefixes load address and length, little-endian.
	FormatApple
	// FormatCBM prefixes the load address, little-endian.
	FormatCBM
	// FormatPlain saves the raw code bytes only.
	FormatPlain
	// FormatIntelHex saves Intel HEX text records.
	FormatIntelHex
)

// knownFormats is shown when an unknown format name is rejected.
const knownFormats = "'plain', 'cbm', 'apple', 'hex'"

var formatNames = map[Format]string{
	FormatUnspecified: "unspecified",
	FormatApple:       "apple",
	FormatCBM:         "cbm",
	FormatPlain:       "plain",
	FormatIntelHex:    "hex",
}

func (f Format) String() string {
	return formatNames[f]
}

var formatTree = prefixtree.New[Format]()

func init() {
	formatTree.Add("apple", FormatApple)
	formatTree.Add("cbm", FormatCBM)
	formatTree.Add("plain", FormatPlain)
	formatTree.Add("hex", FormatIntelHex)
}

// SetFormat chooses the output file format by name. Unknown names are
// rejected with an error listing the valid set. If a format was already
// chosen, the first choice wins and a warning is reported.
func (c *Context) SetFormat(name string) error {
	f, err := formatTree.FindValue(name)
	if err != nil {
		return fmt.Errorf("invalid output format '%s'; expected one of %s", name, knownFormats)
	}
	if c.format != FormatUnspecified {
		c.report.Warnf("Output format already chosen.")
		return nil
	}
	c.format = f
	return nil
}

// PreferCBM chooses the CBM format if no format has been chosen yet.
// It reports whether the format changed.
func (c *Context) PreferCBM() bool {
	if c.format != FormatUnspecified {
		return false
	}
	c.format = FormatCBM
	return true
}

// Format returns the chosen output file format.
func (c *Context) Format() Format {
	return c.format
}

// SetFilename chooses the output filename. It reports whether the name
// was accepted; choosing twice warns and keeps the first name.
func (c *Context) SetFilename(name string) bool {
	if c.filename != "" {
		c.report.Warnf("Output file already chosen.")
		return false
	}
	c.filename = name
	return true
}

// Filename returns the chosen output filename, or "".
func (c *Context) Filename() string {
	return c.filename
}
