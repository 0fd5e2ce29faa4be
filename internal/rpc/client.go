package rpc

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/leaopedro/top-coins-price-tracker/internal/model"
)

// Client is a remote caller of the price query methods. It pins the
// server's public key and verifies the handshake signature before
// issuing any request.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to addr and verifies the server's hello against
// serverKeyHex, the pinned credential. The connection is rejected if
// the key or the nonce signature does not match.
func Dial(ctx context.Context, addr, serverKeyHex string) (*Client, error) {
	keyBytes, err := hex.DecodeString(serverKeyHex)
	if err != nil || len(keyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid server key %q", serverKeyHex)
	}
	serverKey := ed25519.PublicKey(keyBytes)

	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		return nil, err
	}
	nonce := hex.EncodeToString(nonceBytes)

	u := url.URL{Scheme: "ws", Host: addr, Path: "/rpc", RawQuery: "nonce=" + nonce}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	var hello Hello
	if err := readJSON(ctx, conn, &hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("read hello: %w", err)
	}

	if hello.PublicKey != serverKeyHex {
		conn.Close()
		return nil, fmt.Errorf("server key mismatch: got %s", hello.PublicKey)
	}
	signature, err := hex.DecodeString(hello.Signature)
	if err != nil || !ed25519.Verify(serverKey, []byte(nonce), signature) {
		conn.Close()
		return nil, fmt.Errorf("server failed nonce verification")
	}

	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// GetLatestPrices returns the most recent observation per symbol. An
// empty pairs list means all known symbols.
func (c *Client) GetLatestPrices(ctx context.Context, pairs []string) (map[string]model.PriceObservation, error) {
	params := LatestParams{Pairs: pairs}
	var out map[string]model.PriceObservation
	if err := c.call(ctx, MethodGetLatestPrices, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetHistoricalPrices returns each symbol's observations with
// timestamps in [from, to].
func (c *Client) GetHistoricalPrices(ctx context.Context, pairs []string, from, to time.Time) (map[string][]model.PriceObservation, error) {
	if pairs == nil {
		pairs = []string{}
	}
	fromMs := float64(from.UnixMilli())
	toMs := float64(to.UnixMilli())
	params := struct {
		Pairs []string `json:"pairs"`
		From  float64  `json:"from"`
		To    float64  `json:"to"`
	}{Pairs: pairs, From: fromMs, To: toMs}

	var out map[string][]model.PriceObservation
	if err := c.call(ctx, MethodGetHistoricalPrices, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req := Request{ID: uuid.NewString(), Method: method, Params: rawParams}

	if err := c.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}

	// Replies arrive in request order on this connection; drain until
	// our correlation ID shows up.
	for {
		var resp Response
		if err := readJSON(ctx, c.conn, &resp); err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		if resp.ID != req.ID {
			continue
		}
		if !resp.Success {
			return fmt.Errorf("%s: %s", method, resp.Error)
		}
		if out == nil || resp.Data == nil {
			return nil
		}
		return json.Unmarshal(resp.Data, out)
	}
}

func readJSON(ctx context.Context, conn *websocket.Conn, out any) error {
	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	return conn.ReadJSON(out)
}
