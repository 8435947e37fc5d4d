package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

var rpcID atomic.Int64

// call posts one JSON-RPC request. A populated error field aborts with the
// provider's own message; there is no silent fallback.
func call(ctx context.Context, client *http.Client, url, method string, params []interface{}, out interface{}) error {
	reqBody := rpcRequest{JSONRPC: "2.0", ID: rpcID.Add(1), Method: method, Params: params}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("bundler: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("bundler: %s failed: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bundler: %s unexpected status %d", method, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if len(rpcResp.Result) == 0 || string(rpcResp.Result) == "null" {
		return errEmptyResult
	}
	return json.Unmarshal(rpcResp.Result, out)
}

var errEmptyResult = fmt.Errorf("bundler: empty result")
