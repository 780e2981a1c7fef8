package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// newCall builds a JSON-RPC call with a fresh correlation id.
func newCall(method string, params json.RawMessage) (*jsonrpc.Request, error) {
	id, err := jsonrpc.MakeID(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &jsonrpc.Request{ID: id, Method: method, Params: params}, nil
}

// decodeResponse decodes one wire message that must be a response.
// Server-initiated requests and notifications yield errNotResponse.
func decodeResponse(data []byte) (*jsonrpc.Response, error) {
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		return nil, errNotResponse
	}
	return resp, nil
}

var errNotResponse = errors.New("message is not a response")

// wireError returns the JSON-RPC error object carried by resp, if any.
func wireError(resp *jsonrpc.Response) *jsonrpc.Error {
	if resp == nil || resp.Error == nil {
		return nil
	}
	var w *jsonrpc.Error
	if errors.As(resp.Error, &w) {
		return w
	}
	return &jsonrpc.Error{Message: resp.Error.Error()}
}

// rpcErrorBody reports whether data is a JSON-RPC response carrying an
// error object.
func rpcErrorBody(data []byte) (*jsonrpc.Response, bool) {
	resp, err := decodeResponse(data)
	if err != nil || wireError(resp) == nil {
		return nil, false
	}
	return resp, true
}

func idString(id jsonrpc.ID) string {
	return fmt.Sprint(id.Raw())
}
