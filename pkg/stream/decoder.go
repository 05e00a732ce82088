package stream

import "bytes"

// Frame is one decoded block of the event stream: an event name line and a
// data payload, terminated by a blank line.
type Frame struct {
	Event string
	Data  []byte
}

// Decoder assembles frames from a chunked byte stream. Chunks may split a
// frame at any byte; the decoder buffers the incomplete tail and emits a
// frame only once its blank-line terminator has arrived. Frames are emitted
// strictly in wire order, never coalesced.
//
// Within a block, only `event:` and `data:` fields participate; comment
// lines (leading ':') and other field names are skipped. Multiple data lines
// are joined with newlines.
type Decoder struct {
	buf []byte
}

// Feed appends a chunk and returns every frame completed by it, in order.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		end, skip := blockEnd(d.buf)
		if end < 0 {
			return frames
		}
		block := d.buf[:end]
		d.buf = append([]byte(nil), d.buf[end+skip:]...)

		if f, ok := parseBlock(block); ok {
			frames = append(frames, f)
		}
	}
}

// Buffered reports whether an incomplete frame is pending.
func (d *Decoder) Buffered() bool {
	return len(d.buf) > 0
}

// blockEnd locates the first blank-line separator, returning its start index
// and length, or (-1, 0) when the buffer holds no complete block yet.
func blockEnd(buf []byte) (int, int) {
	lf := bytes.Index(buf, []byte("\n\n"))
	crlf := bytes.Index(buf, []byte("\r\n\r\n"))

	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf < 0 || (lf >= 0 && lf < crlf):
		return lf, 2
	default:
		return crlf, 4
	}
}

// parseBlock extracts the event name and data payload from one block. Blocks
// carrying neither are dropped (keepalive comments).
func parseBlock(block []byte) (Frame, bool) {
	var f Frame
	var dataLines [][]byte

	for _, line := range bytes.Split(block, []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 || line[0] == ':' {
			continue
		}

		field, value, found := bytes.Cut(line, []byte(":"))
		if !found {
			continue
		}
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "event":
			f.Event = string(value)
		case "data":
			dataLines = append(dataLines, append([]byte(nil), value...))
		}
	}

	if f.Event == "" && len(dataLines) == 0 {
		return Frame{}, false
	}
	f.Data = bytes.Join(dataLines, []byte("\n"))
	return f, true
}
