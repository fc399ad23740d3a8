package odoorpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// JSONRPCVersion is the version that must appear in the "jsonrpc" field of
// JSON-RPC 2.0 requests and responses.
const JSONRPCVersion = "2.0"

// CallMethod is the value of the "method" field on every request. Odoo
// selects the operation to perform from the URL path, not from the JSON-RPC
// method name, so the method name is a constant.
const CallMethod = "call"

// Request encapsulates a JSON-RPC request in the shape Odoo expects.
type Request struct {
	// Version is the JSON-RPC version.
	//
	// As per the JSON-RPC specification it MUST be exactly "2.0".
	Version string `json:"jsonrpc"`

	// ID identifies the request.
	//
	// It only needs to distinguish one request from the next for correlation
	// in server logs; responses are not matched against pending requests, as
	// each request occupies its own HTTP round-trip.
	ID json.RawMessage `json:"id"`

	// Method is the name of the RPC method to be invoked. It is always
	// CallMethod; the target operation is addressed by the URL path instead.
	Method string `json:"method"`

	// Parameters holds the named arguments for the invocation.
	//
	// Odoo requires it to be a JSON object, never an array.
	Parameters json.RawMessage `json:"params"`
}

// NewCallRequest returns a request that invokes an endpoint with the given
// named parameters.
//
// params must marshal to a JSON object; a nil params produces an empty
// object. The request is assigned a fresh random ID.
func NewCallRequest(params interface{}) (Request, error) {
	p, err := marshalCallParameters(params)
	if err != nil {
		return Request{}, err
	}

	return Request{
		Version:    JSONRPCVersion,
		ID:         json.RawMessage(strconv.FormatInt(nextRequestID(), 10)),
		Method:     CallMethod,
		Parameters: p,
	}, nil
}

// marshalCallParameters marshals params and verifies that the result is a
// JSON object.
func marshalCallParameters(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return json.RawMessage(`{}`), nil
	}

	data, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal call parameters: %w", err)
	}

	if bytes.Equal(data, []byte(`null`)) {
		return json.RawMessage(`{}`), nil
	}

	if len(data) == 0 || data[0] != '{' {
		return nil, fmt.Errorf("call parameters must be a JSON object")
	}

	return data, nil
}

// requestIDLimit bounds generated request IDs to the same range the reference
// Odoo clients use.
const requestIDLimit = 1000000000

var (
	requestIDm    sync.Mutex
	requestIDs    = rand.New(rand.NewSource(time.Now().UnixNano()))
	lastRequestID int64 = -1
)

// nextRequestID returns a random request ID.
//
// IDs only need to differ between consecutive requests, so a repeat of the
// previous ID is re-rolled but older collisions are acceptable.
func nextRequestID() int64 {
	requestIDm.Lock()
	defer requestIDm.Unlock()

	id := requestIDs.Int63n(requestIDLimit)
	for id == lastRequestID {
		id = requestIDs.Int63n(requestIDLimit)
	}

	lastRequestID = id
	return id
}
