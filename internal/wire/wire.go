// Package wire implements the fixed-header framing used on every game
// connection.
//
// Each frame starts with a HeaderSize-byte ASCII header padded with Filler.
// The header holds either a control token of at most two characters
// ("PI--------") or the decimal length of the payload that follows
// ("57--------").
package wire

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	HeaderSize = 10
	Filler     = '-'

	// MaxPayload bounds a single frame. The largest snapshot for six players
	// is well under a kilobyte.
	MaxPayload = 1 << 20
)

// Control tokens.
const (
	Ping      = "PI"
	Pong      = "PO"
	Terminate = "TE"
)

var controls = map[string]bool{
	Ping:      true,
	Pong:      true,
	Terminate: true,
}

var (
	ErrMalformedHeader = errors.New("MALFORMED_HEADER: header is neither a length nor a control token")
	ErrFrameTooLarge   = errors.New("FRAME_TOO_LARGE: payload exceeds maximum frame size")
	ErrUnknownControl  = errors.New("UNKNOWN_CONTROL: unrecognised control token")
)

// Frame is a single decoded unit. Exactly one of Control or Payload is set.
type Frame struct {
	Control string
	Payload []byte
}

func (f Frame) IsControl() bool {
	return f.Control != ""
}

// EncodeHeader pads content with Filler up to HeaderSize.
func EncodeHeader(content string) ([]byte, error) {
	if content == "" || len(content) > HeaderSize || strings.ContainsRune(content, Filler) {
		return nil, errors.Wrapf(ErrMalformedHeader, "content %q", content)
	}
	header := make([]byte, HeaderSize)
	copy(header, content)
	for i := len(content); i < HeaderSize; i++ {
		header[i] = Filler
	}
	return header, nil
}

// ParseHeader strips filler and classifies the header. For a length header
// it returns the payload size and an empty control token.
func ParseHeader(header []byte) (size int, control string, err error) {
	if len(header) != HeaderSize {
		return 0, "", errors.Wrapf(ErrMalformedHeader, "header length %d", len(header))
	}
	content := strings.Trim(string(header), string(Filler))
	if content == "" {
		return 0, "", errors.Wrap(ErrMalformedHeader, "empty header")
	}

	if content[0] >= '0' && content[0] <= '9' {
		size, err := strconv.Atoi(content)
		if err != nil || size < 0 {
			return 0, "", errors.Wrapf(ErrMalformedHeader, "length %q", content)
		}
		if size > MaxPayload {
			return 0, "", errors.Wrapf(ErrFrameTooLarge, "%d bytes", size)
		}
		return size, "", nil
	}

	if len(content) > 2 {
		return 0, "", errors.Wrapf(ErrMalformedHeader, "token %q", content)
	}
	if !controls[content] {
		return 0, "", errors.Wrapf(ErrUnknownControl, "token %q", content)
	}
	return 0, content, nil
}

// WriteFrame writes a length-prefixed payload as a single Write call.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayload {
		return errors.Wrapf(ErrFrameTooLarge, "%d bytes", len(payload))
	}
	header, err := EncodeHeader(strconv.Itoa(len(payload)))
	if err != nil {
		return err
	}
	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, header...)
	buf = append(buf, payload...)
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "write frame failed")
	}
	return nil
}

// WriteControl writes a header-only control frame.
func WriteControl(w io.Writer, token string) error {
	if !controls[token] {
		return errors.Wrapf(ErrUnknownControl, "token %q", token)
	}
	header, err := EncodeHeader(token)
	if err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "write control failed")
	}
	return nil
}

// ReadFrame reads exactly one frame. A short header or payload surfaces as
// io.ErrUnexpectedEOF; a clean close before any header byte surfaces as io.EOF.
func ReadFrame(r io.Reader) (Frame, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}
	size, control, err := ParseHeader(header)
	if err != nil {
		return Frame{}, err
	}
	if control != "" {
		return Frame{Control: control}, nil
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, err
	}
	return Frame{Payload: payload}, nil
}
