package player

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// IPC is the subset of mpv's JSON IPC the engine uses.
type IPC interface {
	Get(property string) (any, error)
	Set(property string, value any) error
	Command(args ...any) error
	Close() error
}

const ipcTimeout = 2 * time.Second

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type ipcResponse struct {
	Data      any    `json:"data"`
	Error     string `json:"error"`
	RequestID *int64 `json:"request_id"`
	Event     string `json:"event"`
}

// ipcConn speaks mpv's line-oriented JSON protocol over a unix socket.
// Asynchronous event lines are skipped while waiting for a reply.
type ipcConn struct {
	mu     sync.Mutex
	conn   net.Conn
	r      *bufio.Reader
	nextID int64
}

// DialIPC connects to an mpv --input-ipc-server socket.
func DialIPC(path string) (IPC, error) {
	conn, err := net.DialTimeout("unix", path, ipcTimeout)
	if err != nil {
		return nil, err
	}
	return &ipcConn{conn: conn, r: bufio.NewReader(conn)}, nil
}

func (c *ipcConn) call(args ...any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	req, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, err
	}

	c.conn.SetDeadline(time.Now().Add(ipcTimeout))
	if _, err := c.conn.Write(append(req, '\n')); err != nil {
		return nil, fmt.Errorf("mpv ipc write: %w", err)
	}

	for {
		line, err := c.r.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("mpv ipc read: %w", err)
		}
		var resp ipcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("mpv ipc decode: %w", err)
		}
		if resp.Event != "" || resp.RequestID == nil || *resp.RequestID != id {
			continue
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("mpv ipc %v: %s", args[0], resp.Error)
		}
		return resp.Data, nil
	}
}

func (c *ipcConn) Get(property string) (any, error) {
	return c.call("get_property", property)
}

func (c *ipcConn) Set(property string, value any) error {
	_, err := c.call("set_property", property, value)
	return err
}

func (c *ipcConn) Command(args ...any) error {
	_, err := c.call(args...)
	return err
}

func (c *ipcConn) Close() error {
	return c.conn.Close()
}
