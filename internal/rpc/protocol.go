package rpc

import "encoding/json"

// RPC method names.
const (
	MethodGetLatestPrices     = "getLatestPrices"
	MethodGetHistoricalPrices = "getHistoricalPrices"
)

// Hello is the first frame the server sends on every connection: its
// identity plus a signature over the nonce the client supplied, so the
// caller can verify it reached the key it pinned.
type Hello struct {
	NodeID    string `json:"nodeId"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

// Request is one RPC call frame.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Response is the reply to a Request. Every request receives a
// well-formed Response; failures carry Success=false and an error
// message instead of breaking the connection.
type Response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// LatestParams are the parameters of getLatestPrices. An empty or
// absent pairs list means every known symbol.
type LatestParams struct {
	Pairs []string `json:"pairs"`
}

// HistoricalParams are the parameters of getHistoricalPrices. From and
// To are epoch milliseconds; pointers distinguish absent from zero, and
// Pairs stays raw so a missing or non-array value fails validation
// instead of collapsing into an empty list.
type HistoricalParams struct {
	Pairs json.RawMessage `json:"pairs"`
	From  *float64        `json:"from"`
	To    *float64        `json:"to"`
}
