package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"gopkg.in/urfave/cli.v1"

	"github.com/tamirms/tabstego"
	stegerrors "github.com/tamirms/tabstego/errors"
)

// Exit codes beyond the generic 1.
const (
	exitNoPayload = 2
	exitCapacity  = 3
)

var (
	messageFlag = cli.StringFlag{
		Name:  "message",
		Usage: "payload given inline",
	}
	payloadFileFlag = cli.StringFlag{
		Name:  "payload-file",
		Usage: "read the payload from a file",
	}
	outFlag = cli.StringFlag{
		Name:  "out",
		Usage: "write the decoded payload to a file instead of stdout",
	}
	trialsFlag = cli.IntFlag{
		Name:  "trials",
		Usage: "independent deletion orders to try",
		Value: 5,
	}
	stepFlag = cli.IntFlag{
		Name:  "step",
		Usage: "rows deleted per round",
		Value: 50,
	}
	trialSeedFlag = cli.Uint64Flag{
		Name:  "trial-seed",
		Usage: "seed for the deletion orders",
		Value: 1,
	}

	encodeCommand = cli.Command{
		Action:    runEncode,
		Name:      "encode",
		Usage:     "Hide a payload in the row order of a CSV file",
		ArgsUsage: "<in.csv> <out.csv>",
		Flags:     append([]cli.Flag{messageFlag, payloadFileFlag}, codecFlags...),
		Description: `The encode command reorders the rows of <in.csv> so that they carry
the payload and writes the result to <out.csv>. Cell values are unchanged.`,
	}
	decodeCommand = cli.Command{
		Action:    runDecode,
		Name:      "decode",
		Usage:     "Recover a payload from a CSV file",
		ArgsUsage: "<in.csv>",
		Flags:     append([]cli.Flag{outFlag}, codecFlags...),
		Description: `The decode command scans <in.csv> for a payload. It exits with
status 2 when none is found.`,
	}
	capacityCommand = cli.Command{
		Action:    runCapacity,
		Name:      "capacity",
		Usage:     "Estimate how much a CSV file can carry",
		ArgsUsage: "<in.csv>",
		Flags:     codecFlags,
	}
	toleranceCommand = cli.Command{
		Action:    runTolerance,
		Name:      "tolerance",
		Usage:     "Measure how many random row deletions an encoded file survives",
		ArgsUsage: "<encoded.csv>",
		Flags:     append([]cli.Flag{messageFlag, payloadFileFlag, trialsFlag, stepFlag, trialSeedFlag}, codecFlags...),
	}
)

// signalContext is cancelled on the first interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func readPayload(ctx *cli.Context) ([]byte, error) {
	msg, file := ctx.String(messageFlag.Name), ctx.String(payloadFileFlag.Name)
	switch {
	case msg != "" && file != "":
		return nil, fmt.Errorf("--%s and --%s are mutually exclusive", messageFlag.Name, payloadFileFlag.Name)
	case file != "":
		return os.ReadFile(file)
	case msg != "":
		return []byte(msg), nil
	}
	return nil, fmt.Errorf("one of --%s or --%s is required", messageFlag.Name, payloadFileFlag.Name)
}

func checkArgs(ctx *cli.Context, n int) error {
	if ctx.NArg() != n {
		return cli.NewExitError(fmt.Sprintf("usage: %s %s %s", ctx.App.Name, ctx.Command.Name, ctx.Command.ArgsUsage), 1)
	}
	return nil
}

func writeTable(path string, t tabstego.Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := tabstego.WriteCSV(w, t); err != nil {
		return err
	}
	return w.Flush()
}

func runEncode(ctx *cli.Context) error {
	if err := checkArgs(ctx, 2); err != nil {
		return err
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	payload, err := readPayload(ctx)
	if err != nil {
		return err
	}
	in, err := openTable(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}

	sctx, cancel := signalContext()
	defer cancel()
	out, stats, err := tabstego.EncodeWithStats(sctx, in, payload, tabstego.WithConfig(cfg))
	var capErr *stegerrors.CapacityError
	if errors.As(err, &capErr) {
		return cli.NewExitError(err.Error(), exitCapacity)
	}
	if err != nil {
		return err
	}
	if err := writeTable(ctx.Args().Get(1), out); err != nil {
		return err
	}
	tabstego.Logger().Info("encoded",
		zap.String("out", ctx.Args().Get(1)),
		zap.Int("packets", stats.Packets))
	return printReport(ctx.App.Writer, (*encodeReport)(stats), ctx.GlobalBool(jsonFlag.Name))
}

func runDecode(ctx *cli.Context) error {
	if err := checkArgs(ctx, 1); err != nil {
		return err
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	in, err := openTable(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}

	sctx, cancel := signalContext()
	defer cancel()
	rec, err := tabstego.Decode(sctx, in, tabstego.WithConfig(cfg))
	if err != nil {
		return err
	}
	asJSON := ctx.GlobalBool(jsonFlag.Name)
	if asJSON {
		if err := printReport(ctx.App.Writer, (*decodeReport)(rec), true); err != nil {
			return err
		}
	}
	if !rec.Success {
		return cli.NewExitError("no payload found", exitNoPayload)
	}

	if out := ctx.String(outFlag.Name); out != "" {
		return os.WriteFile(out, rec.Payload, 0o644)
	}
	if !asJSON {
		_, err = fmt.Fprintf(ctx.App.Writer, "%s\n", rec.Payload)
	}
	return err
}

func runCapacity(ctx *cli.Context) error {
	if err := checkArgs(ctx, 1); err != nil {
		return err
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	in, err := openTable(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}

	sctx, cancel := signalContext()
	defer cancel()
	r, err := tabstego.EstimateCapacity(sctx, in, tabstego.WithConfig(cfg))
	if err != nil {
		return err
	}
	return printReport(ctx.App.Writer, (*capacityReport)(r), ctx.GlobalBool(jsonFlag.Name))
}

func runTolerance(ctx *cli.Context) error {
	if err := checkArgs(ctx, 1); err != nil {
		return err
	}
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}
	want, err := readPayload(ctx)
	if err != nil {
		return err
	}
	in, err := openTable(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}

	sctx, cancel := signalContext()
	defer cancel()
	r, err := tabstego.MeasureDeletionTolerance(sctx, in, want,
		ctx.Int(trialsFlag.Name), ctx.Int(stepFlag.Name), ctx.Uint64(trialSeedFlag.Name),
		tabstego.WithConfig(cfg))
	if err != nil {
		return err
	}
	return printReport(ctx.App.Writer, (*toleranceReport)(r), ctx.GlobalBool(jsonFlag.Name))
}
