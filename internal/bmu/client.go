package bmu

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grid-x/modbus"
)

// Client is the production Transport: Modbus RTU framing carried over a TCP
// socket, which is what the BMU's service port speaks. A mutex serializes
// all register operations; the device cannot handle pipelined requests.
//
// The client performs exactly one bus transaction per call. Reads of the
// data register drain a FIFO slice, so a hidden retry after a lost response
// would consume the next slice and shift every following field. Callers that
// read idempotent blocks add their own retry on top.
type Client struct {
	handler *modbus.RTUOverTCPClientHandler
	client  modbus.Client
	lock    sync.Mutex
}

// ClientConfig carries the connection parameters for the BMU service port.
type ClientConfig struct {
	Host    string
	Port    int
	SlaveID byte
	Timeout time.Duration
}

// NewClient connects to the BMU. A refused connection usually means the BMU
// is off, unreachable, or another application (BE Connect) holds the single
// available session.
func NewClient(cfg ClientConfig) (*Client, error) {
	handler := modbus.NewRTUOverTCPClientHandler(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))

	handler.SlaveID = cfg.SlaveID
	handler.Timeout = cfg.Timeout

	if err := handler.Connect(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to connect to bmu at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Client{handler: handler, client: modbus.NewClient(handler)}, nil
}

func (c *Client) Close() {
	if c.handler != nil {
		c.handler.Close()
	}
}

func (c *Client) ReadHoldingRegisters(ctx context.Context, address, quantity uint16) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.client.ReadHoldingRegisters(ctx, address, quantity)
}

func (c *Client) WriteMultipleRegisters(ctx context.Context, address, quantity uint16, value []byte) ([]byte, error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.client.WriteMultipleRegisters(ctx, address, quantity, value)
}
