package main

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"reflect"

	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/tamirms/tabstego"
)

var (
	bitPerRowFlag = cli.IntFlag{
		Name:  "bit-per-row",
		Usage: "bits carried by each row (1, 2 or 4)",
		Value: tabstego.DefaultConfig().BitPerRow,
	}
	blockSizeFlag = cli.IntFlag{
		Name:  "block-size",
		Usage: "fountain block size in bytes",
		Value: tabstego.DefaultConfig().BlockSize,
	}
	paritySizeFlag = cli.IntFlag{
		Name:  "parity-size",
		Usage: "Reed-Solomon parity bytes per packet, 0 disables correction",
		Value: tabstego.DefaultConfig().ParitySize,
	}
	hashFlag = cli.StringFlag{
		Name:  "hash",
		Usage: "row hash algorithm",
		Value: tabstego.DefaultConfig().HashAlgorithm,
	}
	passwordFlag = cli.StringFlag{
		Name:   "password",
		Usage:  "password for keyed row classification",
		EnvVar: "TABSTEGO_PASSWORD",
	}
	reverseFlag = cli.BoolFlag{
		Name:  "reverse",
		Usage: "also read the table bottom to top when decoding",
	}
	fountainFlag = cli.StringFlag{
		Name:  "fountain",
		Usage: "fountain code: lt or raptorq",
		Value: tabstego.DefaultConfig().Fountain,
	}
	seedFlag = cli.Uint64Flag{
		Name:  "seed",
		Usage: "encoder seed for reproducible output, 0 for random",
	}
	maxPacketsFlag = cli.IntFlag{
		Name:  "max-packets",
		Usage: "stop after this many packets, 0 fills the table",
	}
	workersFlag = cli.IntFlag{
		Name:  "workers",
		Usage: "goroutines for classification and scanning",
		Value: tabstego.DefaultConfig().Workers,
	}
	compressFlag = cli.BoolFlag{
		Name:  "compress",
		Usage: "zstd-compress the payload (decode needs the same flag)",
	}
	noHeaderFlag = cli.BoolFlag{
		Name:  "no-header",
		Usage: "treat the first CSV line as data",
	}

	codecFlags = []cli.Flag{
		bitPerRowFlag,
		blockSizeFlag,
		paritySizeFlag,
		hashFlag,
		passwordFlag,
		reverseFlag,
		fountainFlag,
		seedFlag,
		maxPacketsFlag,
		workersFlag,
		compressFlag,
		noHeaderFlag,
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

func loadConfig(file string, cfg *tabstego.Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig starts from the defaults, applies the config file and then
// every flag the user set explicitly.
func makeConfig(ctx *cli.Context) (tabstego.Config, error) {
	cfg := tabstego.DefaultConfig()
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if ctx.IsSet(bitPerRowFlag.Name) {
		cfg.BitPerRow = ctx.Int(bitPerRowFlag.Name)
	}
	if ctx.IsSet(blockSizeFlag.Name) {
		cfg.BlockSize = ctx.Int(blockSizeFlag.Name)
	}
	if ctx.IsSet(paritySizeFlag.Name) {
		cfg.ParitySize = ctx.Int(paritySizeFlag.Name)
	}
	if ctx.IsSet(hashFlag.Name) {
		cfg.HashAlgorithm = ctx.String(hashFlag.Name)
	}
	if ctx.IsSet(passwordFlag.Name) {
		cfg.Password = ctx.String(passwordFlag.Name)
	}
	if ctx.IsSet(reverseFlag.Name) {
		cfg.ReverseReading = ctx.Bool(reverseFlag.Name)
	}
	if ctx.IsSet(fountainFlag.Name) {
		cfg.Fountain = ctx.String(fountainFlag.Name)
	}
	if ctx.IsSet(seedFlag.Name) {
		seed := ctx.Uint64(seedFlag.Name)
		if seed > math.MaxUint32 {
			return cfg, fmt.Errorf("--%s %d does not fit in 32 bits", seedFlag.Name, seed)
		}
		cfg.Seed = uint32(seed)
	}
	if ctx.IsSet(maxPacketsFlag.Name) {
		cfg.MaxPackets = ctx.Int(maxPacketsFlag.Name)
	}
	if ctx.IsSet(workersFlag.Name) {
		cfg.Workers = ctx.Int(workersFlag.Name)
	}
	if ctx.IsSet(compressFlag.Name) {
		cfg.Compress = ctx.Bool(compressFlag.Name)
	}
	return cfg, cfg.Validate()
}

func openTable(ctx *cli.Context, path string) (*tabstego.MemTable, error) {
	return tabstego.OpenCSV(path, !ctx.Bool(noHeaderFlag.Name))
}
