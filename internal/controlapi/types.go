package controlapi

import (
	"time"

	"github.com/gorilla/websocket"
)

// JSON-RPC 2.0 error codes, adapted from the teacher's reserved-range
// scheme but renumbered for this process's own error conditions instead
// of camera/MediaMTX ones.
const (
	ErrParseError     = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternalError  = -32603

	ErrAuthenticationRequired  = -32001
	ErrRateLimitExceeded       = -32002
	ErrInsufficientPermissions = -32003
	ErrNoActiveTrip            = -32004
	ErrRecordingInProgress     = -32005
	ErrTripNotFound            = -32006
	ErrGeodataJobNotFound      = -32007
	ErrInsufficientStorage     = -32008
)

// ErrorMessages maps error codes to their default human-readable text.
var ErrorMessages = map[int]string{
	ErrParseError:              "Parse error",
	ErrInvalidRequest:          "Invalid request",
	ErrMethodNotFound:          "Method not found",
	ErrInvalidParams:           "Invalid parameters",
	ErrInternalError:           "Internal server error",
	ErrAuthenticationRequired:  "Authentication required",
	ErrRateLimitExceeded:       "Rate limit exceeded",
	ErrInsufficientPermissions: "Insufficient permissions",
	ErrNoActiveTrip:            "No active trip",
	ErrRecordingInProgress:     "Recording already in progress",
	ErrTripNotFound:            "Trip not found",
	ErrGeodataJobNotFound:      "Geodata job not found",
	ErrInsufficientStorage:     "Insufficient storage space",
}

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	ID      interface{}            `json:"id,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id,omitempty"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// Notification is a server-initiated, unsolicited JSON-RPC 2.0 message
// (no ID), as sent by Server.Notify.
type Notification struct {
	JSONRPC string                 `json:"jsonrpc"`
	Method  string                 `json:"method"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRPCError builds an RPCError, falling back to ErrorMessages for an
// empty message.
func NewRPCError(code int, message string) *RPCError {
	if message == "" {
		message = ErrorMessages[code]
	}
	return &RPCError{Code: code, Message: message}
}

// client is a connected control-plane websocket client.
type client struct {
	id            string
	authenticated bool
	userID        string
	role          string
	connectedAt   time.Time
	conn          *websocket.Conn
}

// methodHandler is the signature every registered RPC method implements.
type methodHandler func(params map[string]interface{}, c *client) (interface{}, error)

// ServerConfig configures the control-plane websocket listener.
type ServerConfig struct {
	Path           string
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

// DefaultServerConfig returns conservative defaults suitable for a
// single-vehicle control-plane with at most a handful of concurrent
// clients (the mobile companion app, a diagnostics laptop).
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Path:           "/api/control",
		MaxConnections: 16,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   5 * time.Second,
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 256 * 1024,
	}
}
