// Package journal writes and reads session journals: zstd-compressed JSON
// lines holding a header, one record per executed command, and a trailer.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	marsrover "github.com/iaimans/mars-rover-ai-jam"
	"github.com/iaimans/mars-rover-ai-jam/internal/cube"
	"github.com/iaimans/mars-rover-ai-jam/internal/rover"
)

// Version is the journal format version.
const Version = "1"

// Ext is the journal file extension.
const Ext = ".jsonl.zst"

type RecordType string

const (
	RecordHeader RecordType = "header"
	RecordStep   RecordType = "step"
	RecordEnd    RecordType = "end"
)

// Header describes the mission a journal was recorded on.
type Header struct {
	Version   string             `json:"version"`
	SessionID string             `json:"session_id,omitempty"`
	Source    string             `json:"source,omitempty"`
	Settings  marsrover.Settings `json:"settings"`
	Obstacles []cube.Obstacle    `json:"obstacles"`
}

// End closes a journal.
type End struct {
	Final    cube.State     `json:"final"`
	Odometry rover.Odometry `json:"odometry"`
}

// Record is one line of a journal.
type Record struct {
	Type      RecordType  `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	ElapsedMs int64       `json:"elapsed_ms"`
	Header    *Header     `json:"header,omitempty"`
	Step      *rover.Step `json:"step,omitempty"`
	End       *End        `json:"end,omitempty"`
}

// Writer appends records to a journal file. It is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	path  string
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	start time.Time
	ended bool
}

// FileName returns the journal file name for a session started at t.
func FileName(t time.Time, sessionID string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	if short == "" {
		short = "local"
	}
	return fmt.Sprintf("session_%s_%s%s", t.Format("20060102_150405"), short, Ext)
}

// Create starts a journal at path and writes the header.
func Create(path string, h Header) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to create journal encoder: %w", err)
	}

	w := &Writer{
		path:  path,
		f:     f,
		enc:   enc,
		w:     bufio.NewWriterSize(enc, 64*1024),
		start: time.Now(),
	}
	if h.Version == "" {
		h.Version = Version
	}
	if err := w.write(Record{Type: RecordHeader, Header: &h}); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}

// CreateInDir starts a journal in dir named after the session.
func CreateInDir(dir string, h Header) (*Writer, error) {
	return Create(filepath.Join(dir, FileName(time.Now(), h.SessionID)), h)
}

// Path returns the journal file path.
func (w *Writer) Path() string { return w.path }

// WriteStep appends one executed command.
func (w *Writer) WriteStep(s rover.Step) error {
	return w.write(Record{Type: RecordStep, Step: &s})
}

// Finish writes the trailer and closes the journal.
func (w *Writer) Finish(final cube.State, odo rover.Odometry) error {
	if err := w.write(Record{Type: RecordEnd, End: &End{Final: final, Odometry: odo}}); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (w *Writer) write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		return ErrClosed
	}
	if w.ended {
		return fmt.Errorf("%w: record after end", ErrClosed)
	}
	now := time.Now()
	r.Timestamp = now.UTC()
	r.ElapsedMs = now.Sub(w.start).Milliseconds()

	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal journal record: %w", err)
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("failed to write journal record: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write journal record: %w", err)
	}
	if r.Type == RecordEnd {
		w.ended = true
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal record: %w", err)
	}
	// Emit a complete zstd block so a journal left open by a crash still
	// decodes up to its last record.
	if err := w.enc.Flush(); err != nil {
		return fmt.Errorf("failed to flush journal record: %w", err)
	}
	return nil
}

// Close flushes and closes the journal without a trailer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

// Journal is a journal read back into memory.
type Journal struct {
	Header Header
	Steps  []Record
	// End is nil when the journal was not finished.
	End *End
	// Truncated is set when the compressed stream stopped mid-frame, as it
	// does when the writer was never closed.
	Truncated bool
}

// Commands returns the recorded commands in order.
func (j *Journal) Commands() []rover.Command {
	out := make([]rover.Command, 0, len(j.Steps))
	for _, r := range j.Steps {
		out = append(out, r.Step.Command)
	}
	return out
}

// Load reads a journal. Files without the zstd extension are read as plain
// JSON lines.
func Load(path string) (*Journal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var (
		r   io.Reader = f
		cut *cutReader
	)
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("failed to open journal decoder: %w", err)
		}
		defer dec.Close()
		cut = &cutReader{r: dec}
		r = cut
	}

	j, err := read(r, func() bool { return cut != nil && cut.cut })
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return j, nil
}

// cutReader ends a stream that stops mid-frame cleanly and remembers that
// it did.
type cutReader struct {
	r   io.Reader
	cut bool
}

func (c *cutReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		c.cut = true
		err = io.EOF
	}
	return n, err
}

// Read parses uncompressed journal lines.
func Read(r io.Reader) (*Journal, error) {
	return read(r, func() bool { return false })
}

// read parses journal lines. When truncated reports true at the end of the
// stream, a final line that does not parse is dropped as a partial write.
func read(r io.Reader, truncated func() bool) (*Journal, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var (
		j         Journal
		sawHeader bool
		lineNum   int
		pending   error
	)
	for sc.Scan() {
		lineNum++
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		if pending != nil {
			return nil, pending
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			pending = fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineNum, err)
			continue
		}

		switch rec.Type {
		case RecordHeader:
			if sawHeader || rec.Header == nil {
				return nil, fmt.Errorf("%w: line %d: unexpected header", ErrCorrupt, lineNum)
			}
			if rec.Header.Version != Version {
				return nil, fmt.Errorf("%w: version %q", ErrUnsupportedVersion, rec.Header.Version)
			}
			j.Header = *rec.Header
			sawHeader = true
		case RecordStep:
			if !sawHeader || rec.Step == nil || j.End != nil {
				return nil, fmt.Errorf("%w: line %d: unexpected step", ErrCorrupt, lineNum)
			}
			j.Steps = append(j.Steps, rec)
		case RecordEnd:
			if !sawHeader || rec.End == nil || j.End != nil {
				return nil, fmt.Errorf("%w: line %d: unexpected end", ErrCorrupt, lineNum)
			}
			j.End = rec.End
		default:
			return nil, fmt.Errorf("%w: line %d: unknown record type %q", ErrCorrupt, lineNum, rec.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	j.Truncated = truncated()
	if pending != nil && !j.Truncated {
		return nil, pending
	}
	if !sawHeader {
		return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	return &j, nil
}
