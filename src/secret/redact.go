package secret

import (
	"bytes"
	"io"
	"sort"
	"strings"
)

// Mask is what redacted values are replaced with in captured output.
const Mask = "***"

// Redactor replaces known credential values in text. It is applied to
// all captured stage output before the output is stored or displayed.
type Redactor struct {
	values   []string
	maxLen   int
	replacer *strings.Replacer
}

// NewRedactor builds a redactor for the given raw values. Longer values
// are replaced first so partial overlaps cannot leak a suffix.
func NewRedactor(values []string) *Redactor {
	filtered := make([]string, 0, len(values))
	maxLen := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		filtered = append(filtered, v)
		if len(v) > maxLen {
			maxLen = len(v)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return len(filtered[i]) > len(filtered[j]) })

	pairs := make([]string, 0, len(filtered)*2)
	for _, v := range filtered {
		pairs = append(pairs, v, Mask)
	}

	return &Redactor{
		values:   filtered,
		maxLen:   maxLen,
		replacer: strings.NewReplacer(pairs...),
	}
}

// Redact returns s with all known values masked.
func (r *Redactor) Redact(s string) string {
	if len(r.values) == 0 {
		return s
	}
	return r.replacer.Replace(s)
}

// Writer wraps w so everything written through it is redacted.
// Writes are buffered up to the longest known value so a secret split
// across two writes is still caught.
func (r *Redactor) Writer(w io.Writer) io.Writer {
	if len(r.values) == 0 {
		return w
	}
	return &redactWriter{r: r, dst: w}
}

type redactWriter struct {
	r    *Redactor
	dst  io.Writer
	tail bytes.Buffer
}

func (w *redactWriter) Write(p []byte) (int, error) {
	w.tail.Write(p)

	data := w.tail.Bytes()
	// Hold back maxLen-1 bytes in case a value straddles the boundary,
	// but always flush through the last newline.
	hold := w.r.maxLen - 1
	flushTo := len(data) - hold
	if i := bytes.LastIndexByte(data, '\n'); i >= flushTo {
		flushTo = i + 1
	}
	if flushTo <= 0 {
		return len(p), nil
	}

	out := w.r.Redact(string(data[:flushTo]))
	rest := append([]byte(nil), data[flushTo:]...)
	w.tail.Reset()
	w.tail.Write(rest)

	if _, err := io.WriteString(w.dst, out); err != nil {
		return len(p), err
	}
	return len(p), nil
}

// Flush drains any held-back bytes. Call once after the wrapped stream
// is complete.
func (w *redactWriter) Flush() error {
	if w.tail.Len() == 0 {
		return nil
	}
	out := w.r.Redact(w.tail.String())
	w.tail.Reset()
	_, err := io.WriteString(w.dst, out)
	return err
}

// FlushWriter flushes w if it is a redacting writer.
func FlushWriter(w io.Writer) error {
	if rw, ok := w.(*redactWriter); ok {
		return rw.Flush()
	}
	return nil
}
