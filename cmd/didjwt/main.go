package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
	"github.com/pilacorp/go-didjwt/cmd/didjwt/cli"
)

type app struct {
	cli.Cli

	Decode  cli.DecodeCmd  `cmd:"" help:"print the header and payload of a token"`
	Verify  cli.VerifyCmd  `cmd:"" help:"verify a token against its issuer's DID document"`
	Create  cli.CreateCmd  `cmd:"" help:"create a signed token"`
	Address cli.AddressCmd `cmd:"" help:"print the address and DID of a key"`
	Keygen  cli.KeygenCmd  `cmd:"" help:"generate a key and its DID document"`
}

func main() {
	realMain(os.Args, os.Stdout, os.Stderr, os.Exit)
}

func realMain(args []string, out io.Writer, errout io.Writer, exit func(int)) {
	cl := app{
		Cli: cli.Cli{},
	}
	cl.Cli.WithErrWriter(errout).
		WithWriter(out)

	parser, err := kong.New(&cl,
		kong.Name("didjwt"),
		kong.Description("DID-JWT tools"),
		kong.Writers(out, errout),
		kong.Exit(exit),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}))
	if err != nil {
		panic(err)
	}

	ctx, err := parser.Parse(args[1:])
	parser.FatalIfErrorf(err)

	if ctx != nil {
		err = ctx.Run(&cl.Cli)
		ctx.FatalIfErrorf(err)
	}
}
