package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"ledger-socket/src/helpers"
	"ledger-socket/src/models"
)

// Delimiter terminates every command and every response.
const Delimiter = '\n'

// -----------------------------------------------------------------------------

// NewResponse builds an envelope; data may be nil.
func NewResponse(ok bool, message string, data map[string]interface{}) *models.MResponse {
	return &models.MResponse{Ok: ok, Message: message, Data: data}
}

// -----------------------------------------------------------------------------

// Encode serializes resp as one JSON line. Non-ASCII text is written as-is
// and HTML characters are not escaped.
func Encode(resp *models.MResponse) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		return nil, err
	}
	// json.Encoder already terminates with '\n'
	return buf.Bytes(), nil
}

// -----------------------------------------------------------------------------

// Decode parses one response line. Anything that is not a JSON object wraps
// helpers.ErrUpstreamProtocol.
func Decode(line string) (*models.MResponse, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, helpers.NewValidationError("response is not a JSON object", helpers.ErrUpstreamProtocol)
	}

	var resp models.MResponse
	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := dec.Decode(&resp); err != nil {
		return nil, helpers.NewValidationError(err.Error(), helpers.ErrUpstreamProtocol)
	}
	if dec.More() {
		return nil, helpers.NewValidationError("trailing data after envelope", helpers.ErrUpstreamProtocol)
	}
	return &resp, nil
}

// -----------------------------------------------------------------------------
// LineReader splits a byte stream into delimiter-terminated lines. Bytes read
// past a delimiter stay buffered for the next call, so pipelined commands and
// lines split across several TCP segments are both handled.
// -----------------------------------------------------------------------------

type LineReader struct {
	r *bufio.Reader
}

func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 4096)}
}

// ReadLine returns the next complete line without its delimiter. A trailing
// fragment with no delimiter before EOF is returned together with io.EOF.
func (lr *LineReader) ReadLine() (string, error) {
	line, err := lr.r.ReadString(Delimiter)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return line, io.EOF
		}
		return line, err
	}
	return strings.TrimSuffix(line, string(Delimiter)), nil
}
