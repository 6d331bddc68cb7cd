package natsclient

import (
	"context"
	"crypto/tls"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/health"
	"github.com/raceant/scull/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error messages
var (
	ErrNotConnected = fmt.Errorf("not connected to NATS: %w", errors.ErrNoConnection)
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Status holds runtime status information for the client
type Status struct {
	Status          ConnectionStatus `json:"-"`
	State           string           `json:"state"`
	FailureCount    int32            `json:"failure_count"`
	LastFailureTime time.Time        `json:"last_failure_time"`
	RTT             time.Duration    `json:"rtt"`
}

// Client manages a NATS connection with a circuit breaker
type Client struct {
	url     string
	status  atomic.Value // ConnectionStatus
	breaker circuit
	logger  *slog.Logger
	metrics *metric.Metrics

	conn *nats.Conn
	subs []*nats.Subscription

	maxReconnects  int
	reconnectWait  time.Duration
	pingInterval   time.Duration
	timeout        time.Duration
	drainTimeout   time.Duration
	healthInterval time.Duration

	// cleared on close
	username string
	password string
	token    string

	clientName string
	tlsConfig  *tls.Config

	onHealthChange func(bool)
	healthDone     chan struct{}

	mu      sync.RWMutex
	closeMu sync.Mutex
	closed  atomic.Bool
}

// NewClient creates a client for url, which may list several
// comma-separated servers. It does not connect.
func NewClient(url string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		url:            url,
		logger:         slog.Default(),
		maxReconnects:  -1,
		reconnectWait:  2 * time.Second,
		pingInterval:   30 * time.Second,
		healthInterval: 10 * time.Second,
		timeout:        5 * time.Second,
		drainTimeout:   10 * time.Second,
	}
	c.breaker.threshold = defaultCircuitThreshold
	c.breaker.maxBackoff = defaultMaxBackoff

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	c.logger = c.logger.With("component", "natsclient")
	c.status.Store(StatusDisconnected)
	c.breaker.backoff.Store(int64(initialBackoff))
	c.breaker.lastFailure.Store(time.Time{})

	return c, nil
}

// URL returns the NATS server URL
func (m *Client) URL() string {
	return m.url
}

// Status returns the current connection status
func (m *Client) Status() ConnectionStatus {
	return m.status.Load().(ConnectionStatus)
}

func (m *Client) setStatus(status ConnectionStatus) {
	m.status.Store(status)
	m.reportStatus(status)
}

func (m *Client) reportStatus(status ConnectionStatus) {
	if m.metrics != nil {
		m.metrics.RecordNATSStatus(status == StatusConnected)
	}
}

// IsHealthy returns true if the connection is established
func (m *Client) IsHealthy() bool {
	return m.Status() == StatusConnected
}

// Failures returns the number of failures since the last success
func (m *Client) Failures() int32 {
	return m.breaker.failures.Load()
}

// Backoff returns the wait applied the next time the circuit opens
func (m *Client) Backoff() time.Duration {
	return m.breaker.currentBackoff()
}

// WaitForConnection blocks until the client is connected or ctx ends
func (m *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if m.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(ctx.Err(), "Client", "WaitForConnection", "wait for connection")
		case <-ticker.C:
		}
	}
}

func (m *Client) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(m.maxReconnects),
		nats.ReconnectWait(m.reconnectWait),
		nats.PingInterval(m.pingInterval),
		nats.Timeout(m.timeout),
		nats.DrainTimeout(m.drainTimeout),
		nats.DisconnectErrHandler(m.handleDisconnect),
		nats.ReconnectHandler(m.handleReconnect),
		nats.ClosedHandler(m.handleClosed),
		nats.ErrorHandler(m.handleError),
	}
	if m.username != "" && m.password != "" {
		opts = append(opts, nats.UserInfo(m.username, m.password))
	}
	if m.token != "" {
		opts = append(opts, nats.Token(m.token))
	}
	if m.clientName != "" {
		opts = append(opts, nats.Name(m.clientName))
	}
	if m.tlsConfig != nil {
		opts = append(opts, nats.Secure(m.tlsConfig))
	}
	return opts
}

// GetStatus returns current status information
func (m *Client) GetStatus() Status {
	status := m.Status()
	s := Status{
		Status:          status,
		State:           status.String(),
		FailureCount:    m.breaker.failures.Load(),
		LastFailureTime: m.breaker.lastFailure.Load().(time.Time),
	}
	if rtt, err := m.RTT(); err == nil {
		s.RTT = rtt
	}
	return s
}

// Health maps the connection state onto a health status: connected is
// healthy, connecting or reconnecting is degraded, anything else unhealthy.
func (m *Client) Health() health.Status {
	const name = "nats"
	switch status := m.Status(); status {
	case StatusConnected:
		return health.NewHealthy(name, "connected")
	case StatusConnecting, StatusReconnecting:
		return health.NewDegraded(name, status.String())
	default:
		return health.NewUnhealthy(name, status.String())
	}
}

type connectResult struct {
	conn *nats.Conn
	err  error
}

// Connect establishes connection to NATS server
func (m *Client) Connect(ctx context.Context) error {
	if m.closed.Load() {
		return errors.WrapInvalid(errors.ErrAlreadyStopped, "Client", "Connect", "check state")
	}
	if m.Status() == StatusCircuitOpen {
		return ErrCircuitOpen
	}

	m.setStatus(StatusConnecting)
	m.logger.Info("connecting to NATS", "url", m.url)

	opts := m.connectionOptions()
	done := make(chan connectResult, 1)
	go func() {
		conn, err := nats.Connect(m.url, opts...)
		done <- connectResult{conn: conn, err: err}
	}()

	var res connectResult
	select {
	case res = <-done:
	case <-ctx.Done():
		// A connection that completes after we gave up is discarded.
		go func() {
			if late := <-done; late.conn != nil {
				late.conn.Close()
			}
		}()
		res.err = ctx.Err()
	}

	if res.err != nil {
		m.recordFailure()
		if m.Status() == StatusCircuitOpen {
			return ErrCircuitOpen
		}
		m.setStatus(StatusDisconnected)
		return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
	}

	m.mu.Lock()
	m.conn = res.conn
	m.mu.Unlock()

	m.setStatus(StatusConnected)
	m.resetCircuit()
	m.logger.Info("connected to NATS", "url", res.conn.ConnectedUrlRedacted())

	if m.healthInterval > 0 {
		m.startHealthMonitoring()
	}
	m.notifyHealth(true)
	return nil
}

// Close drains and closes the connection. Later calls are no-ops.
func (m *Client) Close(ctx context.Context) error {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()

	if m.closed.Swap(true) {
		return nil
	}

	m.stopHealthMonitoring()

	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, sub := range m.subs {
		if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}
	m.subs = nil

	if m.conn != nil {
		drainTimeout := m.drainTimeout
		if deadline, ok := ctx.Deadline(); ok {
			if remaining := time.Until(deadline); remaining > 0 && remaining < drainTimeout {
				drainTimeout = remaining
			}
		}

		drained := make(chan error, 1)
		go func() { drained <- m.conn.Drain() }()

		select {
		case err := <-drained:
			if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
				errs = append(errs, errors.Wrap(err, "Client", "Close", "drain connection"))
			}
		case <-time.After(drainTimeout):
			errs = append(errs, errors.WrapTransient(
				fmt.Errorf("drain timeout after %v", drainTimeout), "Client", "Close", "drain connection"))
		case <-ctx.Done():
			errs = append(errs, errors.Wrap(ctx.Err(), "Client", "Close", "drain connection"))
		}

		m.conn.Close()
		m.conn = nil
	}

	m.username, m.password, m.token = "", "", ""
	m.setStatus(StatusDisconnected)

	if err := stderrors.Join(errs...); err != nil {
		m.logger.Warn("NATS close finished with errors", "error", err)
		return err
	}
	return nil
}

func (m *Client) connected() (*nats.Conn, error) {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil || !conn.IsConnected() {
		return nil, ErrNotConnected
	}
	return conn, nil
}

// RTT returns the round-trip time to the NATS server
func (m *Client) RTT() (time.Duration, error) {
	conn, err := m.connected()
	if err != nil {
		return 0, err
	}
	return conn.RTT()
}

// Subscribe registers handler for subject. Each message gets a context
// derived from ctx with a 30-second timeout.
func (m *Client) Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error {
	conn, err := m.connected()
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		handler(msgCtx, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", "subscribe "+subject)
	}

	m.mu.Lock()
	m.subs = append(m.subs, sub)
	m.mu.Unlock()
	return nil
}

// Publish publishes a message to a NATS subject
func (m *Client) Publish(_ context.Context, subject string, data []byte) error {
	conn, err := m.connected()
	if err != nil {
		return err
	}
	return conn.Publish(subject, data)
}

// Flush waits until the server has processed everything published so far.
func (m *Client) Flush(ctx context.Context) error {
	conn, err := m.connected()
	if err != nil {
		return err
	}
	return conn.FlushWithContext(ctx)
}

func (m *Client) notifyHealth(healthy bool) {
	if m.onHealthChange != nil {
		go m.onHealthChange(healthy)
	}
}

func (m *Client) handleDisconnect(_ *nats.Conn, err error) {
	if m.closed.Load() {
		return
	}
	m.setStatus(StatusReconnecting)
	m.logger.Warn("NATS disconnected", "error", err)
	m.notifyHealth(false)
}

func (m *Client) handleReconnect(conn *nats.Conn) {
	m.setStatus(StatusConnected)
	m.resetCircuit()
	m.logger.Info("NATS reconnected", "url", conn.ConnectedUrlRedacted())
	m.notifyHealth(true)
}

func (m *Client) handleClosed(_ *nats.Conn) {
	m.setStatus(StatusDisconnected)
	m.notifyHealth(false)
}

func (m *Client) handleError(_ *nats.Conn, _ *nats.Subscription, err error) {
	m.logger.Error("NATS error", "error", err)
}

// startHealthMonitoring probes the connection every healthInterval.
func (m *Client) startHealthMonitoring() {
	m.stopHealthMonitoring()

	done := make(chan struct{})
	m.mu.Lock()
	m.healthDone = done
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.healthInterval)
		defer ticker.Stop()
		lastHealthy := m.IsHealthy()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_, err := m.RTT()
				healthy := err == nil

				if healthy && m.Status() != StatusConnected {
					m.setStatus(StatusConnected)
				} else if !healthy && m.Status() == StatusConnected {
					m.setStatus(StatusReconnecting)
				}
				if healthy != lastHealthy {
					m.notifyHealth(healthy)
				}
				lastHealthy = healthy
			}
		}
	}()
}

func (m *Client) stopHealthMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.healthDone != nil {
		close(m.healthDone)
		m.healthDone = nil
	}
}
