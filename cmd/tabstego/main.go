// Command tabstego hides a payload in the row order of a CSV file and
// recovers it again.
//
// Usage:
//
//	tabstego encode --message "hello" in.csv out.csv
//	tabstego decode out.csv
//	tabstego capacity in.csv
//	tabstego tolerance --message "hello" --trials 5 --step 50 out.csv
//
// Every command accepts the codec flags (--bit-per-row, --block-size,
// --parity-size, --hash, --password, --fountain, --compress, ...). A TOML
// file given with the global --config flag supplies defaults that flags
// override. Keys are the tabstego.Config field names:
//
//	BitPerRow = 2
//	ParitySize = 10
//	Password = "secret"
package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v1"

	"github.com/tamirms/tabstego"
)

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	verboseFlag = cli.BoolFlag{
		Name:  "verbose",
		Usage: "log codec progress to stderr",
	}
	jsonFlag = cli.BoolFlag{
		Name:  "json",
		Usage: "print reports as JSON",
	}
)

func newApp(stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "tabstego"
	app.Usage = "hide data in the row order of a table"
	app.Version = "0.1.0"
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Flags = []cli.Flag{configFileFlag, verboseFlag, jsonFlag}
	app.Before = func(ctx *cli.Context) error {
		if !ctx.Bool(verboseFlag.Name) {
			tabstego.SetLogger(zap.NewNop())
			return nil
		}
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		tabstego.SetLogger(l)
		return nil
	}
	app.After = func(ctx *cli.Context) error {
		_ = tabstego.Logger().Sync() // stderr sync fails on some terminals
		return nil
	}
	app.Commands = []cli.Command{
		encodeCommand,
		decodeCommand,
		capacityCommand,
		toleranceCommand,
	}
	return app
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
