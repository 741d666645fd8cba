package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MixinNetwork/rworld/session"
	"github.com/MixinNetwork/rworld/storage"
	"github.com/MixinNetwork/rworld/world"
)

// Client calls the RPC of one world daemon.
type Client struct {
	node string
	http *http.Client
}

func NewClient(node string) *Client {
	return &Client{
		node: node,
		http: &http.Client{Timeout: 20 * time.Second},
	}
}

// Call posts method and decodes the data field into out when out is not nil.
// A failed call returns an error wrapping *Error.
func (c *Client) Call(method string, params []any, out any) error {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(map[string]any{
		"method": method,
		"params": params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequest("POST", c.node, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		Data  json.RawMessage `json:"data"`
		Error *Error          `json:"error"`
	}
	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return fmt.Errorf("rpc %s %s => %d %v", c.node, method, resp.StatusCode, err)
	}
	if result.Error != nil {
		return fmt.Errorf("rpc %s %v => %w", method, params, result.Error)
	}
	if out == nil || len(result.Data) == 0 {
		return nil
	}
	return json.Unmarshal(result.Data, out)
}

func (c *Client) GetInfo() (*world.Info, error) {
	var info world.Info
	err := c.Call("getinfo", nil, &info)
	return &info, err
}

func (c *Client) StartWorld(port int) (*world.Info, error) {
	var info world.Info
	err := c.Call("startworld", []any{port}, &info)
	return &info, err
}

func (c *Client) StopWorld() (*world.Info, error) {
	var info world.Info
	err := c.Call("stopworld", nil, &info)
	return &info, err
}

func (c *Client) JoinWorld(address string, port int) (*world.Info, error) {
	var info world.Info
	err := c.Call("joinworld", []any{address, port}, &info)
	return &info, err
}

func (c *Client) ListPeers() ([]*session.PeerInfo, error) {
	var peers []*session.PeerInfo
	err := c.Call("listpeers", nil, &peers)
	return peers, err
}

func (c *Client) SendMessage(peer, text string) error {
	return c.Call("sendmessage", []any{peer, text}, nil)
}

func (c *Client) ListEvents(offset, count uint64) ([]*storage.Event, error) {
	var events []*storage.Event
	err := c.Call("listevents", []any{offset, count}, &events)
	return events, err
}
