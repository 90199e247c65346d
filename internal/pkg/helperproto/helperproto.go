// Package helperproto defines the wire protocol spoken between the daemon
// and the location helper: newline-delimited JSON over a unix domain socket.
// Requests and responses pair by id, so a slow response never gets delivered
// to the wrong caller.
package helperproto

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"time"
)

// Operations the helper understands.
const (
	OpBeginOverride = "begin_override"
	OpEndOverride   = "end_override"
	OpPing          = "ping"
)

// Error codes a helper may return.
const (
	CodeInvalidParams = "invalid_params"
	CodeUnsupportedOp = "unsupported_op"
	CodeAlreadyActive = "already_active"
)

// Request is one line sent daemon → helper.
type Request struct {
	ID     uint64          `json:"id"`
	Op     string          `json:"op"`
	Params *OverrideParams `json:"params,omitempty"`
}

// OverrideParams carries the coordinate to feed, in the true space.
type OverrideParams struct {
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	Altitude           float64 `json:"altitude"`            // meters
	HorizontalAccuracy float64 `json:"horizontal_accuracy"` // meters
	VerticalAccuracy   float64 `json:"vertical_accuracy"`   // meters
	Timestamp          float64 `json:"timestamp"`           // epoch seconds
}

// Response is one line sent helper → daemon.
type Response struct {
	ID    uint64     `json:"id"`
	OK    bool       `json:"ok"`
	Error *WireError `json:"error,omitempty"`
}

// WireError is an explicit rejection from the helper.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EpochSeconds converts a time to the wire timestamp format.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// TimeFromEpoch converts a wire timestamp back to a time.
func TimeFromEpoch(s float64) time.Time {
	return time.Unix(0, int64(s*1e9))
}

// Handler decides the outcome of override requests. A nil return means the
// request succeeded.
type Handler interface {
	BeginOverride(params OverrideParams) *WireError
	EndOverride() *WireError
}

// Serve accepts connections and speaks the protocol on each until the
// listener closes.
func Serve(l net.Listener, h Handler) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go func() {
			defer conn.Close()
			ServeConn(conn, h)
		}()
	}
}

// ServeConn answers requests on a single connection until it closes or a
// line fails to parse.
func ServeConn(conn net.Conn, h Handler) {
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			// Unparseable line. The framing is lost, so drop the connection.
			return
		}

		resp := Response{ID: req.ID, OK: true}
		switch req.Op {
		case OpPing:
		case OpBeginOverride:
			if req.Params == nil {
				resp = reject(req.ID, CodeInvalidParams, "begin_override requires params")
				break
			}
			if werr := h.BeginOverride(*req.Params); werr != nil {
				resp = Response{ID: req.ID, OK: false, Error: werr}
			}
		case OpEndOverride:
			if werr := h.EndOverride(); werr != nil {
				resp = Response{ID: req.ID, OK: false, Error: werr}
			}
		default:
			resp = reject(req.ID, CodeUnsupportedOp, "unknown op "+req.Op)
		}

		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func reject(id uint64, code, message string) Response {
	return Response{ID: id, OK: false, Error: &WireError{Code: code, Message: message}}
}
