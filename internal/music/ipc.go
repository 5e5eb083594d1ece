package music

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// ipcTimeout bounds a single request/response exchange with mpv
const ipcTimeout = 2 * time.Second

// ipcClient speaks mpv's JSON IPC protocol: one JSON object per line in
// each direction. Replies carry the request_id of the command; asynchronous
// event lines are skipped.
type ipcClient struct {
	conn   net.Conn
	reader *bufio.Reader
	nextID atomic.Int64
}

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type ipcResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID int64           `json:"request_id"`
	Event     string          `json:"event,omitempty"`
}

func newIPCClient(conn net.Conn) *ipcClient {
	return &ipcClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// dialIPC connects to the mpv socket, retrying until the deadline while
// the player creates it.
func dialIPC(path string, wait time.Duration) (*ipcClient, error) {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", path, ipcTimeout)
		if err == nil {
			return newIPCClient(conn), nil
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	return nil, fmt.Errorf("dial mpv socket %s: %w", path, lastErr)
}

// call sends a command and waits for its reply
func (c *ipcClient) call(args ...any) error {
	id := c.nextID.Add(1)
	payload, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		return fmt.Errorf("marshal mpv command: %w", err)
	}

	_ = c.conn.SetDeadline(time.Now().Add(ipcTimeout))
	defer func() { _ = c.conn.SetDeadline(time.Time{}) }()

	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write mpv command: %w", err)
	}

	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("read mpv reply: %w", err)
		}

		var resp ipcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("unmarshal mpv reply: %w", err)
		}
		if resp.Event != "" || resp.RequestID != id {
			continue
		}
		if resp.Error != "success" {
			return fmt.Errorf("mpv error: %s", resp.Error)
		}
		return nil
	}
}

func (c *ipcClient) Close() error {
	return c.conn.Close()
}
