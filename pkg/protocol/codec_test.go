package protocol

import (
	"bytes"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/backkem/mlle/pkg/transport"
)

// chunkReader returns one scripted chunk (or error) per Read call.
type chunkReader struct {
	steps []readStep
}

type readStep struct {
	data []byte
	err  error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.steps) == 0 {
		return 0, io.EOF
	}
	s := c.steps[0]
	c.steps = c.steps[1:]
	n := copy(p, s.data)
	return n, s.err
}

func chunks(parts ...string) *chunkReader {
	r := &chunkReader{}
	for _, p := range parts {
		r.steps = append(r.steps, readStep{data: []byte(p)})
	}
	return r
}

func TestReaderSingleRecord(t *testing.T) {
	r := NewReader(chunks("VERSION 1\n"))

	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	if string(msg) != "VERSION 1\n" {
		t.Errorf("ReadMessage() = %q", msg)
	}

	if _, err := r.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Errorf("ReadMessage() at end error = %v, want io.EOF", err)
	}
}

func TestReaderReassemblesAcrossRecords(t *testing.T) {
	r := NewReader(chunks("FILEC", "ONT 11\nhello", " ", "world"))

	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	if string(msg) != "FILECONT 11\nhello world" {
		t.Errorf("ReadMessage() = %q", msg)
	}
}

func TestReaderSplitsCoalescedMessages(t *testing.T) {
	r := NewReader(chunks("YES\nNO 3\nabcFILECONT 2\nx", "yVERSION 1\n"))

	want := []string{"YES\n", "NO 3\nabc", "FILECONT 2\nxy", "VERSION 1\n"}
	for i, w := range want {
		msg, err := r.ReadMessage()
		if err != nil {
			t.Fatalf("message %d: ReadMessage() error: %v", i, err)
		}
		if string(msg) != w {
			t.Errorf("message %d = %q, want %q", i, msg, w)
		}
	}
}

func TestReaderLargePayload(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789abcdef"), 5000) // 80000 bytes
	var wire bytes.Buffer
	wire.Write(AppendMessage(nil, CmdFileCont, 0, payload))

	r := NewReader(&wire)
	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	cmd, err := ParseCommand(msg)
	if err != nil {
		t.Fatalf("ParseCommand() error: %v", err)
	}
	if !bytes.Equal(cmd.Data, payload) {
		t.Error("payload mismatch after reassembly")
	}
}

func TestReaderUnexpectedEOF(t *testing.T) {
	r := NewReader(chunks("FILECONT 10\nabc"))
	if _, err := r.ReadMessage(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadMessage() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestReaderLineTooLong(t *testing.T) {
	long := strings.Repeat("A", MaxLineSize+10)
	r := NewReader(chunks(long[:600], long[600:], "\nYES\n"))

	if _, err := r.ReadMessage(); !errors.Is(err, ErrLineTooLong) {
		t.Fatalf("ReadMessage() error = %v, want ErrLineTooLong", err)
	}

	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() after long line error: %v", err)
	}
	if string(msg) != "YES\n" {
		t.Errorf("ReadMessage() = %q, want rest of stream", msg)
	}
}

func TestReaderMaxPayload(t *testing.T) {
	r := NewReaderWithConfig(chunks("FILECONT 1000\n"), CodecConfig{MaxPayload: 100})
	if _, err := r.ReadMessage(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("ReadMessage() error = %v, want ErrMessageTooLarge", err)
	}
}

func TestReaderRetriesWouldBlock(t *testing.T) {
	r := NewReaderWithConfig(&chunkReader{steps: []readStep{
		{data: []byte("NO 2\n")},
		{err: transport.ErrWouldBlock},
		{err: transport.ErrWouldBlock},
		{data: []byte("ok")},
	}}, CodecConfig{MaxRetries: 3})

	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	if string(msg) != "NO 2\nok" {
		t.Errorf("ReadMessage() = %q", msg)
	}
}

func TestReaderRetriesExhausted(t *testing.T) {
	steps := []readStep{{data: []byte("NO 2\n")}}
	for i := 0; i < 5; i++ {
		steps = append(steps, readStep{err: transport.ErrWouldBlock})
	}
	r := NewReaderWithConfig(&chunkReader{steps: steps}, CodecConfig{MaxRetries: 2})

	if _, err := r.ReadMessage(); !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("ReadMessage() error = %v, want ErrRetriesExhausted", err)
	}
}

func TestReaderDeadlineNotRetried(t *testing.T) {
	src := &chunkReader{steps: []readStep{
		{err: os.ErrDeadlineExceeded},
		{err: os.ErrDeadlineExceeded},
		{data: []byte("YES\n")},
	}}
	r := NewReader(src)
	if _, err := r.ReadMessage(); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("ReadMessage() error = %v, want os.ErrDeadlineExceeded", err)
	}
	if len(src.steps) != 2 {
		t.Errorf("Read called %d times, want 1", 3-len(src.steps))
	}
}

func TestReaderDeadlineOverNetPipe(t *testing.T) {
	c0, c1 := net.Pipe()
	defer c0.Close()
	defer c1.Close()

	if err := c1.SetReadDeadline(time.Now().Add(-time.Second)); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	_, err := NewReaderWithConfig(c1, CodecConfig{MaxRetries: 1 << 20}).ReadMessage()
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("ReadMessage() error = %v, want os.ErrDeadlineExceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Error("expired deadline was retried")
	}
}

func TestReaderChannelError(t *testing.T) {
	boom := errors.New("boom")
	r := NewReader(&chunkReader{steps: []readStep{{err: boom}}})
	if _, err := r.ReadMessage(); !errors.Is(err, boom) {
		t.Errorf("ReadMessage() error = %v, want %v", err, boom)
	}
}

// flakyWriter asks for a retry a fixed number of times, then accepts.
type flakyWriter struct {
	blocks int
	writes int
	buf    bytes.Buffer
}

func (f *flakyWriter) Write(p []byte) (int, error) {
	f.writes++
	if f.blocks > 0 {
		f.blocks--
		return 0, transport.ErrWouldBlock
	}
	return f.buf.Write(p)
}

func TestWriterForms(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer) error
		want  string
	}{
		{"simple", func(w *Writer) error { return w.WriteSimple(CmdYes) }, "YES\n"},
		{"number", func(w *Writer) error { return w.WriteNumber(CmdVersion, 1) }, "VERSION 1\n"},
		{"length", func(w *Writer) error { return w.WriteLength(CmdFile, []byte("P/a.moc")) }, "FILE 7\nP/a.moc"},
		{"empty length", func(w *Writer) error { return w.WriteLength(CmdLib, nil) }, "LIB 0\n"},
		{"number and length", func(w *Writer) error { return w.WriteNumberAndLength(CmdError, 7, []byte("bad")) }, "ERROR 7 3\nbad"},
		{"error helper", func(w *Writer) error { return w.WriteError(ErrorFileIO, "x") }, "ERROR 6 1\nx"},
		{"command", func(w *Writer) error {
			return w.WriteCommand(&Command{ID: CmdNo, Data: []byte("why")})
		}, "NO 3\nwhy"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fw := &flakyWriter{}
			if err := tc.write(NewWriter(fw)); err != nil {
				t.Fatalf("write error: %v", err)
			}
			if fw.buf.String() != tc.want {
				t.Errorf("wire = %q, want %q", fw.buf.String(), tc.want)
			}
			if fw.writes != 1 {
				t.Errorf("writes = %d, want exactly 1", fw.writes)
			}
		})
	}
}

func TestWriterFormMismatch(t *testing.T) {
	w := NewWriter(io.Discard)
	if err := w.WriteSimple(CmdVersion); !errors.Is(err, ErrFormMismatch) {
		t.Errorf("WriteSimple(VERSION) error = %v", err)
	}
	if err := w.WriteNumber(CmdFile, 1); !errors.Is(err, ErrFormMismatch) {
		t.Errorf("WriteNumber(FILE) error = %v", err)
	}
	if err := w.WriteLength(CmdError, nil); !errors.Is(err, ErrFormMismatch) {
		t.Errorf("WriteLength(ERROR) error = %v", err)
	}
}

func TestWriterRetry(t *testing.T) {
	fw := &flakyWriter{blocks: 2}
	w := NewWriterWithConfig(fw, CodecConfig{MaxRetries: 2})
	if err := w.WriteSimple(CmdTools); err != nil {
		t.Fatalf("WriteSimple() error: %v", err)
	}
	if fw.buf.String() != "TOOLS\n" {
		t.Errorf("wire = %q", fw.buf.String())
	}

	fw = &flakyWriter{blocks: 10}
	w = NewWriterWithConfig(fw, CodecConfig{MaxRetries: 2})
	if err := w.WriteSimple(CmdTools); !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("WriteSimple() error = %v, want ErrRetriesExhausted", err)
	}
}

func TestCodecOverNetPipe(t *testing.T) {
	c0, c1 := net.Pipe()
	defer c0.Close()
	defer c1.Close()

	payload := bytes.Repeat([]byte{0xA5}, 3*RecordSize+7)
	errCh := make(chan error, 1)
	go func() {
		w := NewWriter(c0)
		if err := w.WriteNumber(CmdVersion, 1); err != nil {
			errCh <- err
			return
		}
		errCh <- w.WriteLength(CmdFileCont, payload)
	}()

	r := NewReader(c1)
	c1.SetReadDeadline(time.Now().Add(5 * time.Second))

	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	if string(msg) != "VERSION 1\n" {
		t.Errorf("first message = %q", msg)
	}

	msg, err = r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error: %v", err)
	}
	cmd, err := ParseCommand(msg)
	if err != nil {
		t.Fatalf("ParseCommand() error: %v", err)
	}
	if cmd.ID != CmdFileCont || !bytes.Equal(cmd.Data, payload) {
		t.Error("FILECONT payload mismatch")
	}
	if err := <-errCh; err != nil {
		t.Errorf("writer error: %v", err)
	}
}
