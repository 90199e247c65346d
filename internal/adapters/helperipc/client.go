// Package helperipc implements the HelperChannel port over the location
// helper's unix domain socket.
package helperipc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nlzhang/geopin/internal/core/domain"
	"github.com/nlzhang/geopin/internal/core/ports"
	"github.com/nlzhang/geopin/internal/pkg/helperproto"
	"github.com/nlzhang/geopin/internal/pkg/metrics"
)

// DefaultCallTimeout bounds each helper call when the caller's context has
// no earlier deadline.
const DefaultCallTimeout = 3 * time.Second

// Client talks to the helper over a single lazily-dialed connection. A write
// or read failure drops the connection and the next call dials again; a call
// that merely times out abandons its response and keeps the connection. There
// are no automatic retries: the caller decides what a failure means.
type Client struct {
	socketPath string
	timeout    time.Duration
	tracer     trace.Tracer

	mu      sync.Mutex
	conn    net.Conn
	enc     *json.Encoder
	nextID  uint64
	waiters map[uint64]chan helperproto.Response
}

// New creates a client for the helper socket. socketPath accepts an optional
// unix:// prefix. timeout bounds each call; zero means DefaultCallTimeout.
func New(socketPath string, timeout time.Duration) (*Client, error) {
	socketPath = strings.TrimPrefix(socketPath, "unix://")
	if socketPath == "" || !(strings.HasPrefix(socketPath, "/") || strings.HasPrefix(socketPath, "@")) {
		return nil, fmt.Errorf("helper socket path must be absolute, got %q", socketPath)
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Client{
		socketPath: socketPath,
		timeout:    timeout,
		tracer:     otel.Tracer("geopin/helperipc"),
		waiters:    make(map[uint64]chan helperproto.Response),
	}, nil
}

// Begin asks the helper to start feeding the override.
func (c *Client) Begin(ctx context.Context, ov domain.LocationOverride) error {
	return c.call(ctx, helperproto.OpBeginOverride, &helperproto.OverrideParams{
		Latitude:           ov.Latitude,
		Longitude:          ov.Longitude,
		Altitude:           ov.Altitude,
		HorizontalAccuracy: ov.HorizontalAccuracy,
		VerticalAccuracy:   ov.VerticalAccuracy,
		Timestamp:          helperproto.EpochSeconds(ov.Timestamp),
	})
}

// End asks the helper to stop overriding. The helper treats an End with no
// active override as success.
func (c *Client) End(ctx context.Context) error {
	return c.call(ctx, helperproto.OpEndOverride, nil)
}

// Ping checks the helper is reachable and answering.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, helperproto.OpPing, nil)
}

func (c *Client) call(ctx context.Context, op string, params *helperproto.OverrideParams) error {
	ctx, span := c.tracer.Start(ctx, "helper."+op,
		trace.WithAttributes(attribute.String("helper.op", op)))
	defer span.End()

	start := time.Now()
	err := c.doCall(ctx, op, params)
	metrics.HelperRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.HelperRequests.WithLabelValues(op, outcome(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) doCall(ctx context.Context, op string, params *helperproto.OverrideParams) error {
	if err := ctx.Err(); err != nil {
		return domain.NewOpError(domain.KindHelperUnavailable, "helper call aborted: "+err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	id, ch, err := c.send(ctx, op, params)
	if err != nil {
		return err
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return domain.NewOpError(domain.KindHelperUnavailable, "helper connection lost during "+op)
		}
		if resp.OK {
			return nil
		}
		if resp.Error != nil {
			return domain.NewOpError(domain.KindHelperRejected,
				fmt.Sprintf("helper rejected %s: %s: %s", op, resp.Error.Code, resp.Error.Message))
		}
		return domain.NewOpError(domain.KindUnknown, "helper refused "+op+" without saying why")
	case <-ctx.Done():
		c.forget(id)
		return domain.NewOpError(domain.KindHelperUnavailable,
			fmt.Sprintf("no response to %s within deadline: %v", op, ctx.Err()))
	}
}

// send dials if needed, registers a waiter, and writes one request line.
func (c *Client) send(ctx context.Context, op string, params *helperproto.OverrideParams) (uint64, chan helperproto.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "unix", c.socketPath)
		if err != nil {
			return 0, nil, domain.NewOpError(domain.KindHelperUnavailable, "helper not reachable: "+err.Error())
		}
		c.conn = conn
		c.enc = json.NewEncoder(conn)
		go c.readLoop(conn)
	}

	c.nextID++
	id := c.nextID
	ch := make(chan helperproto.Response, 1)
	c.waiters[id] = ch

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	if err := c.enc.Encode(helperproto.Request{ID: id, Op: op, Params: params}); err != nil {
		delete(c.waiters, id)
		c.dropConnLocked()
		return 0, nil, domain.NewOpError(domain.KindHelperUnavailable, "helper write failed: "+err.Error())
	}
	return id, ch, nil
}

// readLoop fans responses out to waiters by id. Responses nobody is waiting
// for (the caller already timed out) are dropped. A read error poisons the
// connection: every outstanding waiter fails and the next call re-dials.
func (c *Client) readLoop(conn net.Conn) {
	dec := json.NewDecoder(conn)
	for {
		var resp helperproto.Response
		if err := dec.Decode(&resp); err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.dropConnLocked()
			}
			c.mu.Unlock()
			return
		}
		c.mu.Lock()
		ch, ok := c.waiters[resp.ID]
		if ok {
			delete(c.waiters, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// forget abandons a waiter after its caller gave up.
func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.waiters, id)
	c.mu.Unlock()
}

func (c *Client) dropConnLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.enc = nil
	}
	for id, ch := range c.waiters {
		delete(c.waiters, id)
		close(ch)
	}
}

// Close drops the connection. Outstanding calls fail as unavailable.
func (c *Client) Close() {
	c.mu.Lock()
	c.dropConnLocked()
	c.mu.Unlock()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch domain.AsOpError(err).Kind {
	case domain.KindHelperRejected:
		return "rejected"
	case domain.KindHelperUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

var _ ports.HelperChannel = (*Client)(nil)
