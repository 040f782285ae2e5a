package sink

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/collectd-forward/agent/internal/ingest"
)

// DiskSink appends records to a single file as newline-delimited JSON, one
// object per record. The file is opened once at startup and stays open for
// the process lifetime.
type DiskSink struct {
	file *os.File
	w    *bufio.Writer
}

// NewDisk opens (creating if absent) the output file in append mode.
func NewDisk(path string) (*DiskSink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open output file %s", path)
	}
	log.WithField("path", path).Info("disk sink ready")
	return &DiskSink{file: file, w: bufio.NewWriter(file)}, nil
}

// Flush writes each record as one JSON line, in batch order, then drains
// the user-space buffer. No fsync: an OS or process crash can lose lines
// already reported as flushed.
func (d *DiskSink) Flush(batch []ingest.FlatRecord) error {
	for i := range batch {
		line, err := json.Marshal(&batch[i])
		if err != nil {
			return errors.Wrap(err, "serialize record")
		}
		if _, err := d.w.Write(line); err != nil {
			return errors.Wrap(err, "write record")
		}
		if err := d.w.WriteByte('\n'); err != nil {
			return errors.Wrap(err, "write record")
		}
	}
	return errors.Wrap(d.w.Flush(), "flush output file")
}

func (d *DiskSink) Close() error {
	if err := d.w.Flush(); err != nil {
		d.file.Close()
		return errors.Wrap(err, "flush output file")
	}
	return d.file.Close()
}
