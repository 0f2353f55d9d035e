package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/segmentio/parquet-go"

	"github.com/mso/pkg/capture"
	"github.com/mso/pkg/channel"
	"github.com/mso/pkg/settings"
)

// FrameRow is one display column of a recorded frame.
type FrameRow struct {
	Frame   int64 `parquet:"frame"`
	Index   int32 `parquet:"index"`
	CH1     int32 `parquet:"ch1"`
	CH2     int32 `parquet:"ch2"`
	Digital int32 `parquet:"digital"`
	Rate    int32 `parquet:"rate"`
	Forced  bool  `parquet:"forced"`
	Roll    bool  `parquet:"roll"`
}

// NewParquetWriter creates a frame writer carrying the settings, rate and
// session id as file metadata.
func NewParquetWriter(w io.Writer, s *settings.Settings, session string) *parquet.GenericWriter[FrameRow] {
	settingsStr := "{}"
	if s != nil {
		b, _ := json.Marshal(s)
		settingsStr = string(b)
	}
	rate := 0
	if s != nil {
		rate = int(s.Rate)
	}

	return parquet.NewGenericWriter[FrameRow](w,
		parquet.KeyValueMetadata("settings", settingsStr),
		parquet.KeyValueMetadata("rate", strconv.Itoa(rate)),
		parquet.KeyValueMetadata("session", session),
	)
}

// FrameRecorder appends captured frames to a Parquet file.
type FrameRecorder struct {
	file   io.Closer
	writer *parquet.GenericWriter[FrameRow]
	rows   []FrameRow
	frames int
}

func NewFrameRecorder(f io.WriteCloser, s *settings.Settings, session string) *FrameRecorder {
	return &FrameRecorder{
		file:   f,
		writer: NewParquetWriter(f, s, session),
		rows:   make([]FrameRow, channel.FrameSize),
	}
}

// WriteFrame writes one row per display column of f.
func (p *FrameRecorder) WriteFrame(f *capture.Frame) error {
	for i := range p.rows {
		p.rows[i] = FrameRow{
			Frame:   int64(f.Counter),
			Index:   int32(i),
			CH1:     int32(f.CH1[i]),
			CH2:     int32(f.CH2[i]),
			Digital: int32(f.Digital[i]),
			Rate:    int32(f.Rate),
			Forced:  f.Forced,
			Roll:    f.Roll,
		}
	}
	if _, err := p.writer.Write(p.rows); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Counter, err)
	}
	p.frames++
	return nil
}

// Frames returns the number of frames written.
func (p *FrameRecorder) Frames() int { return p.frames }

func (p *FrameRecorder) Close() error {
	if err := p.writer.Close(); err != nil {
		p.file.Close()
		return err
	}
	return p.file.Close()
}
