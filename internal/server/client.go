package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iamgilwell/proctopo/internal/notify"
)

// Client talks to a running server found through its info file.
type Client struct {
	info ServInfo
	http *http.Client
}

// Dial reads the info file at path and returns a client for that server.
func Dial(path string) (*Client, error) {
	info, err := ReadInfo(path)
	if err != nil {
		return nil, err
	}
	return NewClient(info), nil
}

// NewClient returns a client for info.
func NewClient(info ServInfo) *Client {
	return &Client{info: info, http: &http.Client{Timeout: 5 * time.Second}}
}

// Info returns the advertised server info.
func (c *Client) Info() ServInfo { return c.info }

// Notify posts cmd to /notify.
func (c *Client) Notify(ctx context.Context, cmd string) error {
	body, _ := json.Marshal(notify.Notification{Cmd: cmd})
	return c.do(ctx, http.MethodPost, "/notify", body, nil)
}

// Status fetches /api/status.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.info.BaseURL()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
