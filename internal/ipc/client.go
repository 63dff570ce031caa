package ipc

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

// Client sends single-line commands to the daemon.
type Client struct {
	conn net.Conn
}

// Dial connects to the daemon socket at the given path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Send writes one command line and reads the one-line reply.
func (c *Client) Send(command string) (string, error) {
	if _, err := fmt.Fprintln(c.conn, command); err != nil {
		return "", fmt.Errorf("send command: %w", err)
	}
	reply, err := bufio.NewReader(c.conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	return strings.TrimRight(reply, "\n"), nil
}
