// Package pcap implements a reporter that writes every reported segment
// to a pcap file, so a transcript can be opened in Wireshark.
package pcap

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/mitchellh/mapstructure"

	"firestige.xyz/smbtrace/internal/core"
	"firestige.xyz/smbtrace/internal/log"
	"firestige.xyz/smbtrace/pkg/plugin"
)

// Name is the reporter name.
const Name = "pcap"

const defaultSnapLen = 65535

func init() {
	plugin.RegisterReporter(Name, NewPcapReporter)
}

// Options configures the pcap reporter.
type Options struct {
	Path    string `mapstructure:"path"`
	SnapLen uint32 `mapstructure:"snaplen"`
}

// PcapReporter writes segments as raw IPv4 frames (LINKTYPE_RAW), since a
// transcript carries no link layer.
type PcapReporter struct {
	name    string
	path    string
	snapLen uint32

	file    *os.File
	buf     *bufio.Writer
	writer  *pcapgo.Writer
	written atomic.Uint64
}

// NewPcapReporter creates a pcap reporter. Init must provide a path.
func NewPcapReporter() plugin.Reporter {
	return &PcapReporter{name: Name, snapLen: defaultSnapLen}
}

// Name returns the plugin name.
func (r *PcapReporter) Name() string {
	return r.name
}

// Init decodes Options from cfg.
func (r *PcapReporter) Init(cfg map[string]any) error {
	var opts Options
	if err := mapstructure.WeakDecode(cfg, &opts); err != nil {
		return fmt.Errorf("%w: pcap: %w", core.ErrPluginInitFailed, err)
	}
	if opts.Path == "" {
		return fmt.Errorf("%w: pcap: path is required", core.ErrPluginInitFailed)
	}
	r.path = opts.Path
	if opts.SnapLen > 0 {
		r.snapLen = opts.SnapLen
	}
	return nil
}

// Start creates the file and writes the pcap file header.
func (r *PcapReporter) Start(ctx context.Context) error {
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("pcap: create %s: %w", r.path, err)
	}
	r.file = f
	r.buf = bufio.NewWriter(f)
	r.writer = pcapgo.NewWriter(r.buf)
	if err := r.writer.WriteFileHeader(r.snapLen, layers.LinkTypeRaw); err != nil {
		f.Close()
		return fmt.Errorf("pcap: write header: %w", err)
	}
	log.GetLogger().WithField("path", r.path).Debug("pcap reporter started")
	return nil
}

// Report appends the segment. The original length comes from the IPv4
// total length when the dump was cut short by the capture snap length.
func (r *PcapReporter) Report(ctx context.Context, rec *core.OutputRecord) error {
	if rec == nil {
		return fmt.Errorf("pcap: nil record")
	}
	if r.writer == nil {
		return fmt.Errorf("pcap: reporter not started")
	}

	data := rec.Segment.Raw()
	if len(data) > int(r.snapLen) {
		data = data[:r.snapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     rec.Timestamp,
		CaptureLength: len(data),
		Length:        max(rec.Segment.Block.Len(), int(rec.IP.TotalLen)),
	}
	if err := r.writer.WritePacket(ci, data); err != nil {
		return fmt.Errorf("pcap: write packet %d: %w", rec.Index, err)
	}
	r.written.Add(1)
	return nil
}

// Flush writes buffered packets to the file.
func (r *PcapReporter) Flush(ctx context.Context) error {
	if r.buf == nil {
		return nil
	}
	return r.buf.Flush()
}

// Stop flushes and closes the file.
func (r *PcapReporter) Stop(ctx context.Context) error {
	if r.file == nil {
		return nil
	}
	err := r.Flush(ctx)
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.file, r.buf, r.writer = nil, nil, nil
	log.GetLogger().WithFields(map[string]interface{}{
		"path":    r.path,
		"packets": r.written.Load(),
	}).Debug("pcap reporter stopped")
	return err
}
