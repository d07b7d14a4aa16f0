// Package host provides a scriptable shell around the output engine.
// Commands map one to one onto engine operations, with one statement per
// line: addresses and byte values arrive pre-evaluated, the way the
// assembler's expression evaluator would deliver them. The shell can run
// command script files or an interactive session.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/beevik/cmd"

	"github.com/sehugg/acme/output"
)

var errQuit = errors.New("quitting")

var cmds *cmd.Tree

func init() {
	cmds = cmd.NewTree("acme", []cmd.Command{
		{
			Name:     "help",
			Shortcut: "?",
			Data:     (*Host).cmdHelp,
		},
		{
			Name:     "org",
			Shortcut: "o",
			Brief:    "Set the program counter",
			Description: "Set the program counter to the given address and" +
				" start a new segment there. The 'overlay' flag suppresses" +
				" overlap checks against previously recorded segments; the" +
				" 'invisible' flag keeps the segment out of the records" +
				" entirely.",
			HelpText: "org <address> [overlay] [invisible]",
			Data:     (*Host).cmdOrg,
		},
		{
			Name:     "byte",
			Shortcut: "b",
			Brief:    "Emit bytes",
			Description: "Emit one or more bytes at the current program" +
				" counter.",
			HelpText: "byte <value> [<value> ...]",
			Data:     (*Host).cmdByte,
		},
		{
			Name:  "word",
			Brief: "Emit 16-bit words, little-endian",
			Description: "Emit one or more 16-bit words at the current" +
				" program counter, low byte first.",
			HelpText: "word <value> [<value> ...]",
			Data:     (*Host).cmdWord,
		},
		{
			Name:  "wordbe",
			Brief: "Emit 16-bit words, big-endian",
			Description: "Emit one or more 16-bit words at the current" +
				" program counter, high byte first.",
			HelpText: "wordbe <value> [<value> ...]",
			Data:     (*Host).cmdWordBE,
		},
		{
			Name:  "dword",
			Brief: "Emit 32-bit words, little-endian",
			Description: "Emit one or more 32-bit words at the current" +
				" program counter, low byte first.",
			HelpText: "dword <value> [<value> ...]",
			Data:     (*Host).cmdDword,
		},
		{
			Name:  "skip",
			Brief: "Skip output bytes",
			Description: "Advance the write cursor without storing" +
				" anything, as the '!skip' directive would.",
			HelpText: "skip <amount>",
			Data:     (*Host).cmdSkip,
		},
		{
			Name:  "fill",
			Brief: "Initialise empty memory",
			Description: "Set the byte value used for uninitialised" +
				" memory. Accepted at most once per run.",
			HelpText: "fill <value>",
			Data:     (*Host).cmdFill,
		},
		{
			Name:        "xor",
			Brief:       "Set the output cipher mask",
			Description: "XOR every subsequently stored byte with the given mask.",
			HelpText:    "xor <value>",
			Data:        (*Host).cmdXor,
		},
		{
			Name:  "pseudopc",
			Brief: "Start offset assembly",
			Description: "Enter a pseudo-PC block: the program counter" +
				" takes the given value while bytes keep landing at the" +
				" real buffer position.",
			HelpText: "pseudopc <address>",
			Data:     (*Host).cmdPseudoPC,
		},
		{
			Name:        "endpseudo",
			Brief:       "End offset assembly",
			Description: "Leave the innermost pseudo-PC block.",
			HelpText:    "endpseudo",
			Data:        (*Host).cmdEndPseudo,
		},
		{
			Name:  "realpc",
			Brief: "End all offset assembly",
			Description: "Leave every open pseudo-PC block at once. This" +
				" mirrors the deprecated '!realpc' directive.",
			HelpText: "realpc",
			Data:     (*Host).cmdRealPC,
		},
		{
			Name:        "format",
			Brief:       "Choose the output file format",
			Description: "Choose one of the output file formats: plain, cbm, apple or hex.",
			HelpText:    "format <name>",
			Data:        (*Host).cmdFormat,
		},
		{
			Name:  "to",
			Brief: "Choose the output file",
			Description: "Choose the output filename and, optionally, the" +
				" file format. Without a format, cbm is used.",
			HelpText: "to <filename> [<format>]",
			Data:     (*Host).cmdTo,
		},
		{
			Name:  "pass",
			Brief: "Begin the next assembly pass",
			Description: "Finish the current segment and reinitialise the" +
				" engine for another pass over the program.",
			HelpText: "pass",
			Data:     (*Host).cmdPass,
		},
		{
			Name:     "status",
			Shortcut: "s",
			Brief:    "Show engine state",
			Description: "Show the pass number, program counter," +
				" watermarks, cipher mask, and output file selection.",
			HelpText: "status",
			Data:     (*Host).cmdStatus,
		},
		{
			Name:  "dump",
			Brief: "Dump buffer contents",
			Description: "Dump output buffer contents starting at the" +
				" given address.",
			HelpText: "dump <address> [<bytes>]",
			Data:     (*Host).cmdDump,
		},
		{
			Name:  "save",
			Brief: "Save the assembled output",
			Description: "Write the used portion of the output buffer to" +
				" the chosen (or given) file in the chosen format.",
			HelpText: "save [<filename>]",
			Data:     (*Host).cmdSave,
		},
		{
			Name:     "quit",
			Shortcut: "q",
			Brief:    "Quit the shell",
			Data:     (*Host).cmdQuit,
		},
	})
}

// A Host drives one output context from a stream of commands.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	ctx         *output.Context
	pass        int
	lastCmd     *cmd.Selection
}

// New creates a shell around the given output context and starts the
// first assembly pass.
func New(ctx *output.Context) *Host {
	h := &Host{
		ctx:  ctx,
		pass: 1,
	}
	ctx.PassInit(true)
	return h
}

// RunCommands accepts commands from a reader and writes the results to a
// writer. Each line is one statement. If interactive, a prompt is shown
// while waiting for input, and an empty line repeats the last command.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}
		if line = strings.TrimSpace(line); strings.HasPrefix(line, ";") {
			continue
		}

		var c cmd.Selection
		if line != "" {
			c, err = cmds.Lookup(line)
			switch {
			case err == cmd.ErrNotFound:
				h.println("Command not found.")
				continue
			case err == cmd.ErrAmbiguous:
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}
		} else if h.interactive && h.lastCmd != nil {
			c = *h.lastCmd
		}

		if c.Command == nil {
			continue
		}
		h.lastCmd = &c

		handler := c.Command.Data.(func(*Host, cmd.Selection) error)
		err = handler(h, c)
		if errors.Is(err, output.ErrOverflow) {
			h.printf("FATAL: %v.\n", err)
			break
		}
		if err != nil {
			break
		}

		// Each command line is one statement.
		h.ctx.EndStatement()
	}
	h.flush()
}

func (h *Host) cmdHelp(c cmd.Selection) error {
	switch {
	case len(c.Args) == 0:
		h.displayCommands(cmds)
	default:
		s, err := cmds.Lookup(strings.Join(c.Args, " "))
		if err != nil {
			h.printf("%v\n", err)
			break
		}
		if s.Command.HelpText != "" {
			h.printf("Syntax: %s\n", s.Command.HelpText)
		}
		if s.Command.Description != "" {
			h.printf("%s\n", s.Command.Description)
		}
	}
	return nil
}

func (h *Host) cmdOrg(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}

	addr, err := parseNum(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	var flags output.SegmentFlags
	for _, arg := range c.Args[1:] {
		switch strings.ToLower(arg) {
		case "overlay":
			flags |= output.SegmentOverlay
		case "invisible":
			flags |= output.SegmentInvisible
		default:
			h.printf("Unknown segment flag '%s'.\n", arg)
			return nil
		}
	}

	h.ctx.SetPC(addr, flags)
	return nil
}

func (h *Host) emitValues(c cmd.Selection, emit func(int) error) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}
	for _, arg := range c.Args {
		v, err := parseNum(arg)
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		if err := emit(v); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) cmdByte(c cmd.Selection) error {
	return h.emitValues(c, h.ctx.WriteByte)
}

func (h *Host) cmdWord(c cmd.Selection) error {
	return h.emitValues(c, h.ctx.Write16LE)
}

func (h *Host) cmdWordBE(c cmd.Selection) error {
	return h.emitValues(c, h.ctx.Write16BE)
}

func (h *Host) cmdDword(c cmd.Selection) error {
	return h.emitValues(c, h.ctx.Write32LE)
}

func (h *Host) cmdSkip(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}
	size, err := parseNum(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	return h.ctx.Skip(size)
}

func (h *Host) cmdFill(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}
	v, err := parseNum(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.ctx.InitMem(byte(v))
	return nil
}

func (h *Host) cmdXor(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}
	v, err := parseNum(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.ctx.SetXor(byte(v))
	return nil
}

func (h *Host) cmdPseudoPC(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}
	addr, err := parseNum(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	h.ctx.PseudoPC(output.Number{Value: addr, Defined: true})
	return nil
}

func (h *Host) cmdEndPseudo(c cmd.Selection) error {
	if h.ctx.PseudoContext() == output.NoContext {
		h.println("No pseudopc block is open.")
		return nil
	}
	h.ctx.EndPseudoPC()
	return nil
}

func (h *Host) cmdRealPC(c cmd.Selection) error {
	h.ctx.EndAllPseudoPC()
	return nil
}

func (h *Host) cmdFormat(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}
	if err := h.ctx.SetFormat(c.Args[0]); err != nil {
		h.printf("%v\n", err)
	}
	return nil
}

func (h *Host) cmdTo(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}

	h.ctx.SetFilename(c.Args[0])
	switch {
	case len(c.Args) >= 2:
		if err := h.ctx.SetFormat(c.Args[1]); err != nil {
			h.printf("%v\n", err)
		}
	case h.ctx.PreferCBM():
		h.printf("Using 'cbm' file format.\n")
	}
	return nil
}

func (h *Host) cmdPass(c cmd.Selection) error {
	h.ctx.EndSegment()
	h.pass++
	h.ctx.PassInit(false)
	h.printf("Pass %d.\n", h.pass)
	return nil
}

func (h *Host) cmdStatus(c cmd.Selection) error {
	pc := h.ctx.PC()
	switch {
	case pc.Defined:
		h.printf("pass %d  pc $%04X\n", h.pass, pc.Value)
	default:
		h.printf("pass %d  pc undefined\n", h.pass)
	}

	low, high := h.ctx.Bounds()
	if high < low {
		h.println("nothing written")
	} else {
		h.printf("written $%04X - $%04X (%d bytes)\n", low, high, high-low+1)
	}

	if x := h.ctx.Xor(); x != 0 {
		h.printf("xor mask $%02X\n", x)
	}
	h.printf("format %s", h.ctx.Format())
	if f := h.ctx.Filename(); f != "" {
		h.printf("  file '%s'", f)
	}
	h.println()
	return nil
}

func (h *Host) cmdDump(c cmd.Selection) error {
	if len(c.Args) < 1 {
		h.displayHelpText(c.Command)
		return nil
	}
	addr, err := parseNum(c.Args[0])
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}

	n := 64
	if len(c.Args) >= 2 {
		if n, err = parseNum(c.Args[1]); err != nil {
			h.printf("%v\n", err)
			return nil
		}
	}

	b := h.ctx.Peek(addr, n)
	for i := 0; i < len(b); i += 16 {
		j := i + 16
		if j > len(b) {
			j = len(b)
		}
		h.printf("%04X-  %s\n", addr+i, byteString(b[i:j]))
	}
	return nil
}

func (h *Host) cmdSave(c cmd.Selection) error {
	h.ctx.EndSegment()

	filename := h.ctx.Filename()
	if len(c.Args) >= 1 {
		filename = c.Args[0]
	}
	if filename == "" {
		h.println("No output file chosen.")
		return nil
	}
	if h.ctx.PreferCBM() {
		h.printf("Using 'cbm' file format.\n")
	}

	file, err := os.Create(filename)
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	defer file.Close()

	if err := h.ctx.Save(file); err != nil {
		return err
	}
	h.printf("Saved '%s'.\n", filename)
	return nil
}

func (h *Host) cmdQuit(c cmd.Selection) error {
	return errQuit
}

func (h *Host) displayHelpText(c *cmd.Command) {
	if c.HelpText != "" {
		h.printf("Syntax: %s\n", c.HelpText)
	} else {
		h.println("<no help text>")
	}
}

func (h *Host) displayCommands(commands *cmd.Tree) {
	h.printf("%s commands:\n", commands.Title)
	for _, c := range commands.Commands {
		if c.Brief != "" {
			h.printf("    %-10s  %s\n", c.Name, c.Brief)
		}
	}
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return h.input.Text(), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
	}
}
