// Package tabstego hides a byte payload in the row order of a table.
//
// Cell contents are never touched. Every row is hashed into a small bucket
// value (1, 2 or 4 bits), and the payload is written by choosing which
// bucket the next output row comes from. The payload is spread over a
// rateless fountain code and each coded block is framed with a CRC32 and
// Reed-Solomon parity, so a copy of the table with rows deleted,
// duplicated or reversed still decodes without access to the original.
//
// # Basic Usage
//
// Encoding:
//
//	t, err := tabstego.OpenCSV("data.csv", true)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := tabstego.Encode(ctx, t, []byte("hello"), tabstego.WithPassword("pw"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = tabstego.WriteCSV(w, out)
//
// Decoding:
//
//	rec, err := tabstego.Decode(ctx, t, tabstego.WithPassword("pw"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if rec.Success {
//	    fmt.Printf("%s\n", rec.Payload)
//	}
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: encode.go (Encode), decode.go (Decode), capacity.go, tolerance.go
//   - Configuration: options.go (Config, Option, With* functions)
//   - Tables: table.go (Table, MemTable), csv.go (ReadCSV, OpenCSV, WriteCSV)
//   - Row classification: internal/classify/
//   - Bucket queues: internal/pool/
//   - Fountain codes: internal/fountain/ (LT, RaptorQ)
//   - Packet framing: internal/framing/ (CRC32, Reed-Solomon)
//   - Decoder scan: internal/scan/
//   - Platform: madvise_*.go (OS-specific read hints)
package tabstego
