package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/beevik/term"
	"github.com/sirupsen/logrus"

	"github.com/sehugg/acme/host"
	"github.com/sehugg/acme/output"
)

var cli struct {
	Format  string `short:"f" help:"Output file format: plain, cbm, apple or hex."`
	Outfile string `short:"o" help:"Output filename." type:"path"`
	Fill    int    `default:"-1" help:"Byte value used for uninitialised memory."`
	Large   bool   `help:"Use a 16 MiB output buffer instead of 64 KiB."`
	Strict  bool   `help:"Treat segment overlap warnings as errors."`
	Compat  int    `default:"2" help:"Compatibility level (0=oldest, 2=current)."`
	Verbose int    `short:"v" type:"counter" help:"Increase process verbosity."`

	Scripts []string `arg:"" optional:"" help:"Command script files." type:"existingfile"`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("acme"),
		kong.Description("Output engine workbench for the acme cross-assembler."),
		kong.UsageOnError(),
	)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	ctx := output.New(output.Config{
		LargeBuffer:    cli.Large,
		FillValue:      cli.Fill,
		StrictSegments: cli.Strict,
		Verbosity:      cli.Verbose,
		Compat:         output.Compat(cli.Compat),
	}, log, os.Stdout)

	if cli.Format != "" {
		kctx.FatalIfErrorf(ctx.SetFormat(cli.Format))
	}
	if cli.Outfile != "" {
		ctx.SetFilename(cli.Outfile)
	}

	h := host.New(ctx)

	// Run command script files, then exit.
	if len(cli.Scripts) > 0 {
		for _, filename := range cli.Scripts {
			file, err := os.Open(filename)
			kctx.FatalIfErrorf(err)
			h.RunCommands(file, os.Stdout, false)
			file.Close()
		}
		return
	}

	// Otherwise read commands from stdin, with a prompt if it is a
	// terminal.
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	h.RunCommands(os.Stdin, os.Stdout, interactive)
}
