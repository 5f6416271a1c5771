package rpcpipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/ethereum/go-ethereum/log"
)

// cacheableMethods is the set of JSON-RPC methods eligible for caching.
var cacheableMethods = map[string]bool{
	"eth_getBlockByNumber": true,
	"eth_getLogs":          true,
	"eth_call":             true,
}

// uncacheableTokens are byte substrings whose presence anywhere in the raw
// request disqualifies it from caching, since they denote a moving target
// (the chain head) rather than a fixed historical query.
var uncacheableTokens = [][]byte{
	[]byte("earliest"),
	[]byte("latest"),
	[]byte("safe"),
	[]byte("finalized"),
	[]byte("pending"),
}

var idField = regexp.MustCompile(`"id":\s*-?\d+`)

// fingerprint rewrites the request's "id" field to 0, leaving every other
// byte untouched, and reports whether the request is cacheable at all.
func fingerprint(body []byte) (key []byte, cacheable bool) {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, false
	}
	if !cacheableMethods[probe.Method] {
		return nil, false
	}
	for _, tok := range uncacheableTokens {
		if bytes.Contains(body, tok) {
			return nil, false
		}
	}
	return idField.ReplaceAll(body, []byte(`"id":0`)), true
}

// CacheRoundTripper is the cache middleware: an http.RoundTripper decorator
// that short-circuits cacheable requests against a persistent Store and
// populates it on cache misses.
type CacheRoundTripper struct {
	Store *Store
	Next  http.RoundTripper
}

func (rt *CacheRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil {
		return rt.Next.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("rpcpipe: reading request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))

	key, cacheable := fingerprint(body)
	if !cacheable {
		return rt.Next.RoundTrip(req)
	}

	if cached, ok := rt.Store.Get(key); ok {
		return syntheticResponse(req, cached), nil
	}

	resp, err := rt.Next.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return resp, nil //nolint:nilerr // response already consumed; surface as-is
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	if result, ok := successResult(respBody); ok {
		rt.Store.Put(key, result)
	}
	return resp, nil
}

// successResult extracts the "result" field from a JSON-RPC response body,
// returning ok=false for any response carrying a top-level "error" object.
func successResult(body []byte) (result []byte, ok bool) {
	var env struct {
		Result json.RawMessage `json:"result"`
		Error  json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if len(env.Error) > 0 {
		return nil, false
	}
	if len(env.Result) == 0 {
		return nil, false
	}
	return env.Result, true
}

// syntheticResponse builds a success envelope carrying a cached result,
// without ever invoking the inner transport.
func syntheticResponse(req *http.Request, result []byte) *http.Response {
	payload := append(append([]byte(`{"jsonrpc":"2.0","id":0,"result":`), result...), '}')
	log.Debug("rpcpipe: serving cached response", "bytes", len(payload))
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Body:          io.NopCloser(bytes.NewReader(payload)),
		ContentLength: int64(len(payload)),
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Request:       req,
	}
}
