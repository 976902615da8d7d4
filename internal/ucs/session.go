package ucs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrSessionClosed is returned for calls made after the session dropped.
var ErrSessionClosed = errors.New("ucs session closed")

// Notification is a push message from the UCS server, delivered outside the
// request/response cycle.
type Notification struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type envelope struct {
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params interface{}     `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Session is one authenticated connection to the UCS server. It multiplexes
// concurrent requests over a single socket and fans push notifications out
// to a handler. The server speaks newline-delimited JSON envelopes.
type Session struct {
	conn   net.Conn
	writer *bufio.Writer
	logger zerolog.Logger

	writeMu sync.Mutex
	nextID  atomic.Int64

	pendingMu sync.Mutex
	pending   map[int64]chan envelope

	notifyFn func(Notification)
	closedFn func(error)

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens a session to the UCS server. notifyFn receives every push
// notification; closedFn fires once when the session drops, with the
// transport error that killed it.
func Dial(ctx context.Context, host string, port int, notifyFn func(Notification), closedFn func(error), logger zerolog.Logger) (*Session, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("dial ucs %s:%d: %w", host, port, err)
	}

	s := &Session{
		conn:     conn,
		writer:   bufio.NewWriter(conn),
		logger:   logger,
		pending:  map[int64]chan envelope{},
		notifyFn: notifyFn,
		closedFn: closedFn,
		closed:   make(chan struct{}),
	}

	go s.readLoop()
	return s, nil
}

// Login authenticates the session. It must be the first call after Dial.
func (s *Session) Login(ctx context.Context, username, password string) error {
	params := map[string]string{"username": username, "password": password}
	return s.Call(ctx, "login", params, nil)
}

// Call performs one request/response round trip. The context deadline bounds
// the wait for the response; the request itself is not retracted server-side
// on expiry.
func (s *Session) Call(ctx context.Context, method string, params interface{}, result interface{}) error {
	select {
	case <-s.closed:
		return ErrSessionClosed
	default:
	}

	id := s.nextID.Add(1)
	respCh := make(chan envelope, 1)

	s.pendingMu.Lock()
	s.pending[id] = respCh
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	if err := s.write(envelope{ID: id, Method: method, Params: params}); err != nil {
		return err
	}

	select {
	case resp := <-respCh:
		if resp.Error != "" {
			return fmt.Errorf("ucs %s: %s", method, resp.Error)
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s response: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
		return ErrSessionClosed
	}
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	s.shutdown(nil)
	return nil
}

func (s *Session) write(env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", env.Method, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writer.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write %s request: %w", env.Method, err)
	}
	return s.writer.Flush()
}

func (s *Session) readLoop() {
	scanner := bufio.NewScanner(s.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var env envelope
		if err := json.Unmarshal(scanner.Bytes(), &env); err != nil {
			s.logger.Warn().Err(err).Msg("Dropping undecodable UCS frame")
			continue
		}

		if env.Event != "" {
			if s.notifyFn != nil {
				s.notifyFn(Notification{Event: env.Event, Data: env.Data})
			}
			continue
		}

		s.pendingMu.Lock()
		respCh, ok := s.pending[env.ID]
		s.pendingMu.Unlock()
		if ok {
			respCh <- env
		}
	}

	err := scanner.Err()
	if err == nil {
		err = ErrSessionClosed
	}
	s.shutdown(err)
}

func (s *Session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
		if s.closedFn != nil && cause != nil {
			s.closedFn(cause)
		}
	})
}
