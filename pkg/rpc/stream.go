package rpc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rhuss/workbridge/pkg/debug"
)

// maxEventSize bounds a single reassembled event. Page bodies can be large.
const maxEventSize = 16 << 20

// readEventStream reads a text/event-stream body until it finds the
// response whose id matches. Multi-line data fields of one event are
// joined with newlines before decoding, per the SSE format:
//
//	event: message
//	id: 1
//	data: {"jsonrpc":"2.0",
//	data:  "id":"...","result":{...}}
//
// Server-initiated requests and notifications interleaved in the stream
// are skipped. A stream that ends before the response arrives is reported
// as nil with io.ErrUnexpectedEOF.
func readEventStream(ctx context.Context, body io.Reader, id jsonrpc.ID) (*jsonrpc.Response, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	var data bytes.Buffer
	dispatch := func() (*jsonrpc.Response, bool) {
		if data.Len() == 0 {
			return nil, false
		}
		payload := data.Bytes()
		defer data.Reset()

		resp, err := decodeResponse(payload)
		switch {
		case errors.Is(err, errNotResponse):
			debug.Log(debug.RPC, "skipping server-initiated stream message")
			return nil, false
		case err != nil:
			slog.Warn("skipping malformed event stream message",
				"error", err.Error(),
				"data", debug.Truncate(string(payload), 200),
			)
			return nil, false
		case resp.ID != id:
			debug.Log(debug.RPC, "skipping unrelated stream response", "id", idString(resp.ID))
			return nil, false
		}
		return resp, true
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		line := scanner.Text()
		if line == "" {
			if resp, ok := dispatch(); ok {
				return resp, nil
			}
			continue
		}

		// Comments (":") and the event/id/retry fields carry nothing we need.
		field, value, found := strings.Cut(line, ":")
		if !found || field != "data" {
			continue
		}
		value = strings.TrimPrefix(value, " ")
		if data.Len() > 0 {
			data.WriteByte('\n')
		}
		data.WriteString(value)
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	// The final event may not be followed by a blank line.
	if resp, ok := dispatch(); ok {
		return resp, nil
	}
	return nil, io.ErrUnexpectedEOF
}
