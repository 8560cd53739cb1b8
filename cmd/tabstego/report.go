package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"github.com/francoispqt/gojay"
	"github.com/olekukonko/tablewriter"

	"github.com/tamirms/tabstego"
)

type intArray []int

func (a intArray) MarshalJSONArray(enc *gojay.Encoder) {
	for _, v := range a {
		enc.Int(v)
	}
}

func (a intArray) IsNil() bool { return a == nil }

type encodeReport tabstego.EncodeStats

func (r *encodeReport) MarshalJSONObject(enc *gojay.Encoder) {
	enc.IntKey("rows", r.Rows)
	enc.IntKey("rows_per_packet", r.RowsPerPacket)
	enc.IntKey("rows_used", r.RowsUsed)
	enc.IntKey("packets", r.Packets)
	enc.IntKey("source_blocks", r.SourceBlocks)
	enc.IntKey("packets_needed", r.PacketsNeeded)
	enc.IntKey("payload_bytes", r.PayloadBytes)
	enc.ArrayKey("buckets", intArray(r.Buckets))
}

func (r *encodeReport) IsNil() bool { return r == nil }

func (r *encodeReport) rows() [][]string {
	return [][]string{
		{"Rows", strconv.Itoa(r.Rows)},
		{"Rows per packet", strconv.Itoa(r.RowsPerPacket)},
		{"Rows used", strconv.Itoa(r.RowsUsed)},
		{"Packets", strconv.Itoa(r.Packets)},
		{"Source blocks", strconv.Itoa(r.SourceBlocks)},
		{"Packets needed", strconv.Itoa(r.PacketsNeeded)},
		{"Payload bytes", strconv.Itoa(r.PayloadBytes)},
		{"Buckets", fmt.Sprint(r.Buckets)},
	}
}

type decodeReport tabstego.PayloadRecord

func (r *decodeReport) MarshalJSONObject(enc *gojay.Encoder) {
	enc.BoolKey("success", r.Success)
	if r.Success {
		if utf8.Valid(r.Payload) {
			enc.StringKey("payload", string(r.Payload))
		} else {
			enc.StringKey("payload_base64", base64.StdEncoding.EncodeToString(r.Payload))
		}
	}
	enc.IntKey("valid_packets", r.ValidPackets)
	enc.IntKey("probes", r.Stats.Probes)
	enc.IntKey("corrected", r.Stats.Corrected)
	enc.IntKey("rejected_uncorrectable", r.Stats.RejectedUncorrectable)
	enc.IntKey("rejected_checksum", r.Stats.RejectedChecksum)
	enc.IntKey("rejected_header", r.Stats.RejectedHeader)
}

func (r *decodeReport) IsNil() bool { return r == nil }

func (r *decodeReport) rows() [][]string {
	return [][]string{
		{"Valid packets", strconv.Itoa(r.ValidPackets)},
		{"Probes", strconv.Itoa(r.Stats.Probes)},
		{"Corrected bytes", strconv.Itoa(r.Stats.Corrected)},
		{"Rejected (uncorrectable)", strconv.Itoa(r.Stats.RejectedUncorrectable)},
		{"Rejected (checksum)", strconv.Itoa(r.Stats.RejectedChecksum)},
		{"Rejected (header)", strconv.Itoa(r.Stats.RejectedHeader)},
	}
}

type capacityReport tabstego.CapacityReport

func (r *capacityReport) MarshalJSONObject(enc *gojay.Encoder) {
	enc.IntKey("rows", r.Rows)
	enc.IntKey("bit_per_row", r.BitPerRow)
	enc.IntKey("packet_size", r.PacketSize)
	enc.IntKey("rows_per_packet", r.RowsPerPacket)
	enc.ArrayKey("buckets", intArray(r.Buckets))
	enc.IntKey("max_packets", r.MaxPackets)
	enc.IntKey("estimated_packets", r.EstimatedPackets)
	enc.IntKey("packets_needed", r.PacketsNeeded)
	enc.IntKey("estimated_payload", r.EstimatedPayload)
}

func (r *capacityReport) IsNil() bool { return r == nil }

func (r *capacityReport) rows() [][]string {
	rows := [][]string{
		{"Rows", strconv.Itoa(r.Rows)},
		{"Bits per row", strconv.Itoa(r.BitPerRow)},
		{"Packet size", strconv.Itoa(r.PacketSize) + " B"},
		{"Rows per packet", strconv.Itoa(r.RowsPerPacket)},
	}
	for v, n := range r.Buckets {
		rows = append(rows, []string{fmt.Sprintf("Bucket %d", v), strconv.Itoa(n)})
	}
	return append(rows,
		[]string{"Max packets", strconv.Itoa(r.MaxPackets)},
		[]string{"Estimated packets", strconv.Itoa(r.EstimatedPackets)},
		[]string{"Packets needed", strconv.Itoa(r.PacketsNeeded)},
		[]string{"Estimated payload", strconv.Itoa(r.EstimatedPayload) + " B"},
	)
}

type toleranceReport tabstego.ToleranceReport

func (r *toleranceReport) MarshalJSONObject(enc *gojay.Encoder) {
	enc.IntKey("trials", r.Trials)
	enc.IntKey("step", r.Step)
	enc.ArrayKey("tolerated", intArray(r.Tolerated))
	enc.IntKey("median", r.Median)
	enc.IntKey("min", r.Min)
	enc.IntKey("max", r.Max)
}

func (r *toleranceReport) IsNil() bool { return r == nil }

func (r *toleranceReport) rows() [][]string {
	return [][]string{
		{"Trials", strconv.Itoa(r.Trials)},
		{"Step", strconv.Itoa(r.Step)},
		{"Tolerated", fmt.Sprint(r.Tolerated)},
		{"Median", strconv.Itoa(r.Median)},
		{"Min", strconv.Itoa(r.Min)},
		{"Max", strconv.Itoa(r.Max)},
	}
}

type report interface {
	gojay.MarshalerJSONObject
	rows() [][]string
}

// printReport writes r as a single JSON line or as a two-column table.
func printReport(w io.Writer, r report, asJSON bool) error {
	if asJSON {
		b, err := gojay.MarshalJSONObject(r)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(r.rows())
	table.Render()
	return nil
}
