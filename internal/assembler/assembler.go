// Package assembler rebuilds a single chat response object from a byte
// stream whose chunk boundaries carry no meaning.
package assembler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/soyeahso/geminichat/internal/domain"
)

var (
	// ErrNoStream is reported when the stream carried no data.
	ErrNoStream = errors.New("no response stream available")
	// ErrMalformed is reported when the data never formed a valid response.
	ErrMalformed = errors.New("malformed response")
	// ErrInterrupted is reported when reading the stream failed midway.
	ErrInterrupted = errors.New("response stream interrupted")
)

// Error is a terminal assembly failure. Reason is one of the sentinels above.
type Error struct {
	Reason error
	Cause  error
	Bytes  int // bytes received before the failure
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Cause)
	}
	return e.Reason.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Reason, e.Cause}
	}
	return []error{e.Reason}
}

// Assembler accumulates decoded text and parses it after every chunk.
// It is not safe for concurrent use.
type Assembler struct {
	dec     transform.Transformer
	pending []byte // undecoded tail, an incomplete UTF-8 sequence
	text    []byte
	scratch [4096]byte
	total   int

	resp *domain.ChatResponse
	err  error
}

// New returns an empty Assembler.
func New() *Assembler {
	return &Assembler{dec: unicode.UTF8.NewDecoder()}
}

// Done reports whether a response was assembled or a terminal error hit.
func (a *Assembler) Done() bool {
	return a.resp != nil || a.err != nil
}

// Feed appends one chunk. It returns the response and true as soon as the
// accumulated text parses; chunks fed after that are ignored.
func (a *Assembler) Feed(chunk []byte) (*domain.ChatResponse, bool, error) {
	if a.resp != nil {
		return a.resp, true, nil
	}
	if a.err != nil {
		return nil, false, a.err
	}

	a.total += len(chunk)
	if err := a.decode(chunk, false); err != nil {
		return nil, false, a.fail(ErrMalformed, err)
	}
	return a.tryParse()
}

// Close marks the end of the stream and returns the response or the
// terminal failure.
func (a *Assembler) Close() (*domain.ChatResponse, error) {
	if a.resp != nil {
		return a.resp, nil
	}
	if a.err != nil {
		return nil, a.err
	}

	if err := a.decode(nil, true); err != nil {
		return nil, a.fail(ErrMalformed, err)
	}
	if len(bytes.TrimSpace(a.text)) == 0 {
		return nil, a.fail(ErrNoStream, nil)
	}
	if resp, ok, err := a.tryParse(); ok || err != nil {
		return resp, err
	}

	var v any
	cause := json.Unmarshal(a.text, &v)
	return nil, a.fail(ErrMalformed, cause)
}

// decode runs src through the UTF-8 decoder, keeping an incomplete
// trailing sequence for the next call unless atEOF.
func (a *Assembler) decode(chunk []byte, atEOF bool) error {
	src := chunk
	if len(a.pending) > 0 {
		src = append(a.pending, chunk...)
		a.pending = nil
	}

	for {
		nDst, nSrc, err := a.dec.Transform(a.scratch[:], src, atEOF)
		a.text = append(a.text, a.scratch[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			return nil
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			a.pending = slices.Clone(src)
			return nil
		default:
			return err
		}
	}
}

// wireResponse mirrors domain.ChatResponse so a missing message is detectable.
type wireResponse struct {
	Message   *domain.Message `json:"message"`
	ChatTitle string          `json:"chatTitle"`
}

func (a *Assembler) tryParse() (*domain.ChatResponse, bool, error) {
	trimmed := bytes.TrimSpace(a.text)
	// a complete object always ends with '}'
	if len(trimmed) == 0 || trimmed[len(trimmed)-1] != '}' {
		return nil, false, nil
	}

	var w wireResponse
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil, false, nil
	}
	if w.Message == nil || !w.Message.Role.Valid() {
		return nil, false, a.fail(ErrMalformed, errors.New("response carries no valid message"))
	}

	a.resp = &domain.ChatResponse{Message: *w.Message, ChatTitle: w.ChatTitle}
	return a.resp, true, nil
}

func (a *Assembler) fail(reason, cause error) error {
	a.err = &Error{Reason: reason, Cause: cause, Bytes: a.total}
	return a.err
}

// Assemble reads r until a response parses or the stream ends. It stops
// reading as soon as a response is complete. A cancelled ctx abandons the
// read and returns ctx.Err().
func Assemble(ctx context.Context, r io.Reader) (*domain.ChatResponse, error) {
	if r == nil {
		return nil, &Error{Reason: ErrNoStream}
	}

	a := New()
	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			resp, ok, err := a.Feed(buf[:n])
			if ok {
				return resp, nil
			}
			if err != nil {
				return nil, err
			}
		}

		if readErr == io.EOF {
			return a.Close()
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, a.fail(ErrInterrupted, readErr)
		}
	}
}
