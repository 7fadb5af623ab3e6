package frame

import "errors"

// Decoder reassembles frames from a byte stream that may split or coalesce them.
//
// Decoder is not goroutine-safe; a session owns exactly one per connection.
type Decoder struct {
	buf []byte
	// response selects which frame direction is accepted
	response bool
}

// NewResponseDecoder returns a Decoder accepting response frames, as used by clients.
func NewResponseDecoder() *Decoder { return &Decoder{response: true} }

// NewRequestDecoder returns a Decoder accepting request frames, as used by servers.
func NewRequestDecoder() *Decoder { return &Decoder{} }

// Write appends p to the internal buffer. It never fails.
func (d *Decoder) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next returns the next complete frame. It returns ErrIncomplete when more bytes are needed,
// keeping everything buffered. Any other error is a FrameError; the stream cannot be resynchronised
// and the caller should drop the connection.
func (d *Decoder) Next() (*Frame, error) {
	total, err := Length(d.buf)
	if err != nil {
		return nil, err
	}
	if len(d.buf) < total {
		return nil, ErrIncomplete
	}
	if d.buf[0] != d.subheader() {
		return nil, frameErr(0, ErrBadSubheader, "unexpected direction % X", d.buf[:2])
	}

	f := decode(d.buf[:total])
	rest := copy(d.buf, d.buf[total:])
	d.buf = d.buf[:rest]

	return f, nil
}

// Buffered returns the number of bytes waiting for a complete frame.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Reset discards buffered bytes.
func (d *Decoder) Reset() { d.buf = d.buf[:0] }

func (d *Decoder) subheader() byte {
	if d.response {
		return responseSubheader[0]
	}

	return requestSubheader[0]
}

// IsFatal reports whether err from Next leaves the stream unusable.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrIncomplete)
}
