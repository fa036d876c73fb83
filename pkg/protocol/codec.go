package protocol

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/backkem/mlle/pkg/transport"
)

// Codec defaults.
const (
	// RecordSize is the size of a single channel read. It matches the largest
	// TLS record so one read never splits a record.
	RecordSize = 16 * 1024

	// DefaultMaxPayload bounds the payload a Reader accepts in one message.
	DefaultMaxPayload = 256 * 1024 * 1024

	// DefaultMaxRetries bounds consecutive would-block retries on one operation.
	DefaultMaxRetries = 64
)

// CodecConfig configures a Reader or Writer.
type CodecConfig struct {
	// MaxPayload is the largest declared payload accepted by a Reader.
	// Default: DefaultMaxPayload.
	MaxPayload int64

	// MaxRetries is the number of consecutive would-block or timeout results
	// tolerated on one read or write. Expired deadlines are never retried. Default: DefaultMaxRetries.
	MaxRetries int
}

func (c *CodecConfig) applyDefaults() {
	if c.MaxPayload <= 0 {
		c.MaxPayload = DefaultMaxPayload
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
}

// Reader reassembles protocol messages from a channel.
//
// A single channel read may carry part of a message, a whole message or more
// than one message. The Reader accumulates records until the header line is
// complete and then until the declared payload is present. Bytes belonging
// to the next message are kept for the following call.
type Reader struct {
	r      io.Reader
	config CodecConfig
	buf    []byte
	record []byte

	// skipping is set after ErrLineTooLong until the next newline is consumed.
	skipping bool
}

// NewReader creates a Reader with default limits.
func NewReader(r io.Reader) *Reader {
	return NewReaderWithConfig(r, CodecConfig{})
}

// NewReaderWithConfig creates a Reader with the given limits.
func NewReaderWithConfig(r io.Reader, config CodecConfig) *Reader {
	config.applyDefaults()
	return &Reader{
		r:      r,
		config: config,
		record: make([]byte, RecordSize),
	}
}

// ReadMessage returns the next complete message: header line, newline and payload.
//
// Returns io.EOF when the channel ends between messages and
// io.ErrUnexpectedEOF when it ends inside one. ErrLineTooLong is
// recoverable; ReadMessage may be called again afterwards.
func (r *Reader) ReadMessage() ([]byte, error) {
	for {
		if r.skipping {
			if i := bytes.IndexByte(r.buf, '\n'); i >= 0 {
				r.buf = r.buf[i+1:]
				r.skipping = false
			} else {
				r.buf = r.buf[:0]
			}
		}

		if !r.skipping {
			msg, err := r.next()
			if msg != nil || err != nil {
				return msg, err
			}
		}

		if err := r.fill(); err != nil {
			if errors.Is(err, io.EOF) {
				if len(r.buf) == 0 || r.skipping {
					return nil, io.EOF
				}
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// next extracts a complete message from the buffer, if one is present.
func (r *Reader) next() ([]byte, error) {
	i := bytes.IndexByte(r.buf, '\n')
	if i < 0 {
		if len(r.buf) > MaxLineSize {
			r.buf = r.buf[:0]
			r.skipping = true
			return nil, ErrLineTooLong
		}
		return nil, nil
	}
	if i > MaxLineSize {
		r.buf = r.buf[i+1:]
		return nil, ErrLineTooLong
	}

	need := declaredLength(r.buf[:i])
	if need > r.config.MaxPayload {
		r.buf = r.buf[:0]
		return nil, ErrMessageTooLarge
	}

	total := i + 1 + int(need)
	if len(r.buf) < total {
		return nil, nil
	}

	msg := make([]byte, total)
	copy(msg, r.buf[:total])
	r.buf = r.buf[total:]
	if len(r.buf) == 0 {
		r.buf = nil
	}
	return msg, nil
}

// fill performs one channel read, retrying transient conditions.
func (r *Reader) fill() error {
	for retries := 0; ; retries++ {
		n, err := r.r.Read(r.record)
		if n > 0 {
			r.buf = append(r.buf, r.record[:n]...)
		}
		if err == nil {
			if n > 0 {
				return nil
			}
		} else if !isRetryable(err) {
			if n > 0 && errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if retries >= r.config.MaxRetries {
			return ErrRetriesExhausted
		}
	}
}

// Writer serializes protocol messages onto a channel.
// Every message is sent with exactly one logical write.
type Writer struct {
	w      io.Writer
	config CodecConfig
}

// NewWriter creates a Writer with default limits.
func NewWriter(w io.Writer) *Writer {
	return NewWriterWithConfig(w, CodecConfig{})
}

// NewWriterWithConfig creates a Writer with the given limits.
func NewWriterWithConfig(w io.Writer, config CodecConfig) *Writer {
	config.applyDefaults()
	return &Writer{w: w, config: config}
}

// WriteSimple writes "NAME\n".
func (w *Writer) WriteSimple(id CommandID) error {
	if id.Form() != FormSimple {
		return ErrFormMismatch
	}
	return w.write(AppendMessage(nil, id, 0, nil))
}

// WriteNumber writes "NAME n\n".
func (w *Writer) WriteNumber(id CommandID, n int64) error {
	if id.Form() != FormNumber {
		return ErrFormMismatch
	}
	return w.write(AppendMessage(nil, id, n, nil))
}

// WriteLength writes "NAME len\n" followed by data.
func (w *Writer) WriteLength(id CommandID, data []byte) error {
	if id.Form() != FormLength {
		return ErrFormMismatch
	}
	return w.write(AppendMessage(nil, id, 0, data))
}

// WriteNumberAndLength writes "NAME n len\n" followed by data.
func (w *Writer) WriteNumberAndLength(id CommandID, n int64, data []byte) error {
	if id.Form() != FormNumberAndLength {
		return ErrFormMismatch
	}
	return w.write(AppendMessage(nil, id, n, data))
}

// WriteError writes an ERROR message carrying code and a human-readable message.
func (w *Writer) WriteError(code ErrorCode, msg string) error {
	return w.WriteNumberAndLength(CmdError, int64(code), []byte(msg))
}

// WriteCommand writes cmd in the form its ID requires.
func (w *Writer) WriteCommand(cmd *Command) error {
	if !cmd.ID.IsValid() {
		return ErrFormMismatch
	}
	return w.write(AppendMessage(nil, cmd.ID, cmd.Number, cmd.Data))
}

// write sends buf, retrying the remainder while the channel asks for it.
func (w *Writer) write(buf []byte) error {
	retries := 0
	for len(buf) > 0 {
		n, err := w.w.Write(buf)
		buf = buf[n:]
		switch {
		case err == nil && n > 0:
			retries = 0
			continue
		case err != nil && !isRetryable(err):
			return err
		}
		retries++
		if retries > w.config.MaxRetries {
			if err == nil {
				return io.ErrShortWrite
			}
			return ErrRetriesExhausted
		}
	}
	return nil
}

// AppendMessage appends the wire encoding of a message to dst.
// Number is written for number forms; data and its length for length forms.
func AppendMessage(dst []byte, id CommandID, n int64, data []byte) []byte {
	form := id.Form()
	dst = append(dst, id.String()...)
	if form.HasNumber() {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, n, 10)
	}
	if form.HasLength() {
		dst = append(dst, ' ')
		dst = strconv.AppendInt(dst, int64(len(data)), 10)
	}
	dst = append(dst, '\n')
	if form.HasLength() {
		dst = append(dst, data...)
	}
	return dst
}

// isRetryable reports whether err is transient. An expired deadline is
// final: every later call would fail the same way.
func isRetryable(err error) bool {
	if errors.Is(err, transport.ErrWouldBlock) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return false
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
