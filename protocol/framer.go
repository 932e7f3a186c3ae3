package protocol

import "bytes"

// Separator terminates every record on the wire.
const Separator = '\n'

// MaxLineSize bounds the bytes a Framer buffers while waiting for a
// separator. A longer partial line is discarded.
const MaxLineSize = 64 * 1024

// Framer splits a byte stream into newline-delimited records. It is not
// safe for concurrent use.
type Framer struct {
	buf       []byte
	discarded int
}

// Feed appends p to the buffer and returns every complete, non-blank line,
// trimmed of surrounding whitespace. Returned slices do not alias p.
func (f *Framer) Feed(p []byte) [][]byte {
	f.buf = append(f.buf, p...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(f.buf, Separator)
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(f.buf[:i])
		if len(line) > 0 {
			lines = append(lines, append([]byte(nil), line...))
		}
		f.buf = f.buf[i+1:]
	}

	if len(f.buf) > MaxLineSize {
		f.discarded += len(f.buf)
		f.buf = nil
	}
	return lines
}

// Pending returns the number of buffered bytes not yet terminated.
func (f *Framer) Pending() int { return len(f.buf) }

// Discarded returns the number of bytes dropped for exceeding MaxLineSize.
func (f *Framer) Discarded() int { return f.discarded }

// Reset drops any partial line.
func (f *Framer) Reset() { f.buf = nil }

// Frame appends the record separator to an encoded envelope.
func Frame(msg []byte) []byte {
	out := make([]byte, 0, len(msg)+1)
	out = append(out, msg...)
	return append(out, Separator)
}
