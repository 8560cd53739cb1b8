package tabstego

import (
	"context"

	"go.uber.org/zap"

	"github.com/tamirms/tabstego/internal/scan"
)

// PayloadRecord is the result of Decode.
type PayloadRecord struct {
	Payload      []byte // nil unless Success
	Success      bool
	ValidPackets int // packets accepted by the fountain decoder
	Stats        ScanStats
}

// ScanStats summarizes the sliding-window scan.
type ScanStats struct {
	Probes                int // window offsets examined
	Corrected             int // bytes repaired by Reed-Solomon
	RejectedUncorrectable int
	RejectedChecksum      int
	RejectedHeader        int
}

// Decode scans t for a hidden payload.
//
// A table without a payload, one encoded with a different password and
// one damaged beyond repair all yield Success == false with a nil error.
// The error is non-nil only for an invalid configuration, an empty table
// or a cancelled context.
func Decode(ctx context.Context, t Table, opts ...Option) (*PayloadRecord, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	rec, res, err := decode(ctx, t, o.cfg)
	switch {
	case err != nil:
		o.metrics.observeDecode("error", nil)
	case rec.Success:
		o.metrics.observeDecode("success", res)
	default:
		o.metrics.observeDecode("failure", res)
	}
	return rec, err
}

func decode(ctx context.Context, t Table, cfg Config) (*PayloadRecord, *scan.Result, error) {
	c, err := cfg.classifier()
	if err != nil {
		return nil, nil, err
	}
	values, err := classifyRows(ctx, t, c, cfg.Workers)
	if err != nil {
		return nil, nil, err
	}
	s, err := scan.New(scan.Config{
		BitPerRow:  cfg.BitPerRow,
		BlockSize:  cfg.BlockSize,
		ParitySize: cfg.ParitySize,
		Scheme:     cfg.scheme(),
		Workers:    cfg.Workers,
	})
	if err != nil {
		return nil, nil, err
	}
	res, err := s.Scan(ctx, scan.Stream(values, cfg.ReverseReading))
	if err != nil {
		return nil, nil, err
	}

	rec := &PayloadRecord{
		ValidPackets: res.ValidPackets,
		Stats: ScanStats{
			Probes:                res.Probes,
			Corrected:             res.Corrected,
			RejectedUncorrectable: res.Rejected.Uncorrectable,
			RejectedChecksum:      res.Rejected.Checksum,
			RejectedHeader:        res.Rejected.Header,
		},
	}
	log := Logger()
	fields := []zap.Field{
		zap.Int("rows", t.RowCount()),
		zap.Int("probes", res.Probes),
		zap.Int("valid_packets", res.ValidPackets),
		zap.Int("corrected_bytes", res.Corrected),
		zap.Int("rejected", res.Rejected.Total()),
	}
	if !res.Success {
		log.Info("no payload found", fields...)
		return rec, res, nil
	}

	payload := res.Payload
	if cfg.Compress {
		if payload, err = decompressPayload(res.Payload); err != nil {
			log.Info("payload failed to decompress", append(fields, zap.Error(err))...)
			return rec, res, nil
		}
	}
	rec.Payload = payload
	rec.Success = true
	log.Debug("decoded payload", append(fields, zap.Int("payload_bytes", len(payload)))...)
	return rec, res, nil
}
