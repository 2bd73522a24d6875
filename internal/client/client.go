// Package client provides a client for communicating with the daemon.
package client

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/d2verb/katago-sgf/internal/protocol"
)

// ErrUnreachable is returned when no daemon accepts connections on the
// configured address.
var ErrUnreachable = errors.New("daemon not reachable")

const (
	defaultDialAttempts = 3
	dialDelay           = 100 * time.Millisecond
	ioTimeout           = 30 * time.Second
)

// Client communicates with the daemon via its socket.
type Client struct {
	network  string
	address  string
	attempts uint
}

// New creates a new daemon client. network is "unix" or "tcp".
func New(network, address string) *Client {
	return &Client{network: network, address: address, attempts: defaultDialAttempts}
}

// WithDialAttempts returns a copy of c that tries to connect n times.
func (c *Client) WithDialAttempts(n uint) *Client {
	cc := *c
	cc.attempts = max(n, 1)
	return &cc
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := retry.DoWithData(
		func() (net.Conn, error) {
			return net.DialTimeout(c.network, c.address, time.Second)
		},
		retry.Attempts(c.attempts),
		retry.Delay(dialDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrUnreachable, c.address, err)
	}
	return conn, nil
}

// Send sends a request to the daemon and returns the response.
func (c *Client) Send(req *protocol.Request) (*protocol.Response, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ioTimeout))

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp protocol.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(req.ID) > 0 && !bytes.Equal(resp.ID, req.ID) {
		return nil, fmt.Errorf("response id %s does not match request id %s", resp.ID, req.ID)
	}

	return &resp, nil
}

// call sends one method call and decodes its result into out.
func (c *Client) call(method string, params, out any) error {
	req, err := protocol.NewRequest(method, params, uuid.NewString())
	if err != nil {
		return err
	}
	resp, err := c.Send(req)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return resp.Error
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Submit queues a file for analysis and returns its job id. Zero limits use
// the daemon's defaults.
func (c *Client) Submit(params protocol.SubmitParams) (string, error) {
	var id string
	if err := c.call(protocol.MethodSubmit, params, &id); err != nil {
		return "", err
	}
	return id, nil
}

// ListJobs returns the jobs in flight.
func (c *Client) ListJobs() ([]protocol.Job, error) {
	var jobs []protocol.Job
	if err := c.call(protocol.MethodListJobs, nil, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Status returns the daemon's engine state.
func (c *Client) Status() (*protocol.Status, error) {
	var status protocol.Status
	if err := c.call(protocol.MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
