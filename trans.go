package ethcore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const jsonRpcVersion = "2.0"

/*
Common interface implemented by RPC transports. Obtained via "Dial" and passed
to the various RPC functions. Implementations must be safe for concurrent use:
many watchers may share one transport.

Transports return raw errors; the typed RPC functions classify them into
"TransportError".
*/
type Trans interface {
	/**
	Should make an RPC request and decode the response body into `out`, which
	must be a pointer. Returns a request error or a decoding error. JSON "null"
	leaves `out` untouched.
	*/
	Call(ctx context.Context, out interface{}, method string, params ...interface{}) error

	/**
	Should register a subscription and block until it's finished, sending values
	over the provided channel and returning the error that interrupted it, if
	any. Before returning, should always close the output channel and, if
	possible, send an unsubscribe command to the server.

	In case of non-cancelation error, the caller is expected to wait via
	`.Connected()`, then retry.

	If the channel is full, new values may be dropped. The caller is responsible
	for ensuring the channel has enough space.
	*/
	Subscribe(ctx context.Context, out chan []byte, params ...interface{}) error

	/**
	Should return a channel that becomes closed when the transport is connected.
	Stateless transports such as HTTP should always return a closed channel.
	Persistent transports such as websocket, IPC, TCP: when connected, should
	return a closed channel; when not connected, should return an open channel
	and close it when connected.
	*/
	Connected() chan struct{}
}

/*
Chooses the appropriate transport for the given URL. Several comma-separated
URLs produce a "FallbackTrans" trying them in order. Waits until connected, if
possible. The optional logger is used for background logging, if that's
relevant for the chosen transport.
*/
func Dial(rpcPath string, logger *zap.Logger) (Trans, error) {
	if strings.Contains(rpcPath, ",") {
		var out FallbackTrans
		out.Logger = logger
		for _, path := range strings.Split(rpcPath, ",") {
			path = strings.TrimSpace(path)
			if path == "" {
				continue
			}
			trans, err := Dial(path, logger)
			if err != nil {
				return nil, err
			}
			out.Trans = append(out.Trans, trans)
		}
		return &out, nil
	}

	rpcUrl, err := url.Parse(rpcPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if rpcUrl.Scheme == "ws" || rpcUrl.Scheme == "wss" {
		return DialWs(*rpcUrl, logger)
	}

	if rpcUrl.Scheme == "http" || rpcUrl.Scheme == "https" {
		return HttpTrans{Url: *rpcUrl}, nil
	}

	return nil, errors.Errorf("unsupported RPC path: %v", rpcPath)
}

/*
Stateless HTTP transport. Doesn't support subscriptions. Uses
"http.DefaultClient" unless ".Client" is set.
*/
type HttpTrans struct {
	Url    url.URL
	Client *http.Client
}

// Since an HTTP transport is "always connected", this returns a channel that's
// always closed.
func (self HttpTrans) Connected() chan struct{} { return alwaysConnected }

var alwaysConnected = func() chan struct{} {
	out := make(chan struct{})
	close(out)
	return out
}()

/*
Makes an RPC call. Non-200 responses produce "HttpStatusError"; undecodable
responses produce "ResponseError"; JSON-RPC error objects produce "RpcError".
*/
func (self HttpTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	var body bytes.Buffer
	err := json.NewEncoder(&body).Encode(rpcRequest{
		Jsonrpc: jsonRpcVersion,
		Id:      randomId(),
		Method:  method,
		Params:  rpcParams(params),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, self.Url.String(), &body)
	if err != nil {
		return errors.WithStack(err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := self.Client
	if client == nil {
		client = http.DefaultClient
	}

	res, err := client.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		bytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return errors.WithStack(HttpStatusError{Code: res.StatusCode, Status: res.Status, Body: bytes})
	}

	rpcRes := rpcResponse{Result: out}
	err = json.NewDecoder(res.Body).Decode(&rpcRes)
	if err != nil {
		return errors.WithStack(ResponseError{Cause: err})
	}
	// Note: `error((*RpcError)(nil)) != nil` !!!
	if rpcRes.Error != nil {
		return errors.WithStack(*rpcRes.Error)
	}
	return nil
}

// Not implemented for the HTTP transport. Always returns an error.
func (self HttpTrans) Subscribe(_ context.Context, out chan []byte, _ ...interface{}) error {
	close(out)
	return errors.New("HTTP RPC transport doesn't support streaming")
}

/*
Stateful websocket transport. Supports RPC calls, subscriptions, and automatic
reconnect. The ".ReconnectInterval" property defaults to 1s, can be modified
before the first disconnect.
*/
type WsTrans struct {
	Url               url.URL
	Logger            *zap.Logger
	ReconnectInterval time.Duration

	// Guards "conn", "connected" and "closed".
	stateLock sync.RWMutex
	conn      *websocket.Conn
	connected chan struct{}
	closed    bool
	done      chan struct{}

	// Unavoidable bottleneck
	writeLock sync.Mutex

	subLock sync.Mutex
	subs    map[string]chan either
}

/*
Attempts to establish a websocket connection to the RPC node at the given URL.
Waits until the connection is established. This starts a persistent background
loop which reconnects on failure until ".Close" is called.
*/
func DialWs(url url.URL, logger *zap.Logger) (*WsTrans, error) {
	transport := &WsTrans{
		Url:               url,
		Logger:            orNopLogger(logger).With(zap.String("url", url.Redacted())),
		ReconnectInterval: defaultReconnectInterval,
		connected:         make(chan struct{}),
		done:              make(chan struct{}),
		subs:              map[string]chan either{},
	}

	err := transport.connect()
	if err != nil {
		return nil, err
	}

	go transport.run()
	return transport, nil
}

/*
Stops the reconnect loop and closes the connection. Pending calls and
subscriptions fail. Idempotent.
*/
func (self *WsTrans) Close() error {
	self.stateLock.Lock()
	if self.closed {
		self.stateLock.Unlock()
		return nil
	}
	self.closed = true
	close(self.done)
	conn := self.conn
	self.stateLock.Unlock()

	if conn != nil {
		return errors.WithStack(conn.Close())
	}
	return nil
}

func (self *WsTrans) isClosed() bool {
	self.stateLock.RLock()
	defer self.stateLock.RUnlock()
	return self.closed
}

func (self *WsTrans) run() {
	for {
		err := self.receiveLoop()
		if self.isClosed() {
			return
		}
		self.Logger.Warn("disconnected from RPC node", zap.Error(err))

		for {
			self.Logger.Debug("waiting before reconnecting", zap.Duration("interval", self.ReconnectInterval))

			select {
			case <-self.done:
				return
			case <-time.After(self.ReconnectInterval):
			}

			err := self.connect()
			if err == nil {
				self.Logger.Info("reconnected to RPC node")
				break
			}
			self.Logger.Warn("failed to connect to RPC node", zap.Error(err))
		}
	}
}

func (self *WsTrans) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(self.Url.String(), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.closed {
		conn.Close()
		return errors.New("websocket transport is closed")
	}
	self.conn = conn
	close(self.connected)
	return nil
}

func (self *WsTrans) receiveLoop() error {
	self.stateLock.RLock()
	conn := self.conn
	self.stateLock.RUnlock()

	defer func() {
		self.stateLock.Lock()
		self.conn = nil
		self.connected = make(chan struct{})
		self.stateLock.Unlock()

		conn.Close()
		self.clearSubs(errors.New("disconnected from RPC server"))
	}()

	/**
	Note: we receive and unmarshal separately. A receiving failure indicates
	a disconnect. An unmarshaling error indicates a malformed message, but
	not necessarily a connection problem.
	*/
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var head struct{ Id string }
		err = json.Unmarshal(payload, &head)
		if err != nil {
			self.Logger.Warn("failed to decode RPC message", zap.Error(err))
			continue
		}

		if len(head.Id) != 0 {
			var body json.RawMessage
			res := rpcResponse{Result: &body}
			err = json.Unmarshal(payload, &res)
			if err != nil {
				self.Logger.Warn("failed to decode RPC message as a response", zap.Error(err))
				self.dispatchToSub(head.Id, nil, errors.WithStack(ResponseError{Cause: err}))
				continue
			}

			// Note: `error((*RpcError)(nil)) != nil` !!!
			if res.Error != nil {
				err = errors.WithStack(*res.Error)
			}

			self.dispatchToSub(head.Id, []byte(body), err)
			continue
		}

		// When ID is missing, assume it's a notification:
		// https://www.jsonrpc.org/specification#notification
		var notification rpcNotification
		err = json.Unmarshal(payload, &notification)
		if err != nil {
			self.Logger.Warn("failed to decode RPC message as a notification", zap.Error(err))
			continue
		}
		id := notification.Params.Subscription
		val := notification.Params.Result
		self.dispatchToSub(id, val, nil)
	}
}

/*
Returns a channel that becomes closed when the transport is connected. If the
transport is currently connected, the channel is closed.
*/
func (self *WsTrans) Connected() chan struct{} {
	self.stateLock.RLock()
	defer self.stateLock.RUnlock()
	return self.connected
}

// Makes an RPC call. Waits for a connection if currently disconnected.
func (self *WsTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case <-self.done:
		return errors.New("websocket transport is closed")
	case <-self.Connected():
	}

	id := randomId()
	sub := make(chan either, 1)
	self.registerSub(id, sub)
	defer self.unregisterSub(id)

	err := self.send(id, method, params...)
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	case either, ok := <-sub:
		if !ok {
			return errors.New("disconnected from RPC server")
		}
		if either.err != nil {
			return either.err
		}
		if either.val == nil {
			return nil
		}
		err := json.Unmarshal(either.val, out)
		if err != nil {
			return errors.WithStack(ResponseError{Cause: err})
		}
		return nil
	}
}

func (self *WsTrans) send(id string, method string, params ...interface{}) error {
	self.stateLock.RLock()
	conn := self.conn
	self.stateLock.RUnlock()
	if conn == nil {
		return errors.New("not connected to RPC server")
	}

	self.writeLock.Lock()
	defer self.writeLock.Unlock()
	err := conn.WriteJSON(rpcRequest{
		Jsonrpc: jsonRpcVersion,
		Id:      id,
		Method:  method,
		Params:  rpcParams(params),
	})
	return errors.WithStack(err)
}

/*
Creates a subscription with the given params, sending raw messages over the
provided channel. The caller is expected to handle decoding on their own.

See https://geth.ethereum.org/docs/interacting-with-geth/rpc/pubsub for details
on the Ethereum subscriptions API.

Returns an error when the context is canceled, or when the connection is
interrupted. Does NOT automatically resubscribe.
*/
func (self *WsTrans) Subscribe(ctx context.Context, out chan []byte, params ...interface{}) error {
	defer close(out)

	var subId string
	err := self.Call(ctx, &subId, "eth_subscribe", params...)
	if err != nil {
		return err
	}
	if subId == "" {
		return errors.New("failed to subscribe: received empty subscription ID")
	}
	defer func() {
		go self.send(randomId(), "eth_unsubscribe", subId)
	}()

	sub := make(chan either, cap(out))
	self.registerSub(subId, sub)
	defer self.unregisterSub(subId)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case either, ok := <-sub:
			if !ok {
				return errors.New("disconnected from RPC server")
			}
			if either.err != nil {
				return either.err
			}
			select {
			case out <- either.val:
			default:
				self.Logger.Warn("subscription channel is full, dropping a message", zap.String("subscription", subId))
			}
		}
	}
}

func (self *WsTrans) registerSub(id string, sub chan either) {
	self.subLock.Lock()
	self.subs[id] = sub
	self.subLock.Unlock()
}

func (self *WsTrans) unregisterSub(id string) {
	self.subLock.Lock()
	delete(self.subs, id)
	self.subLock.Unlock()
}

func (self *WsTrans) dispatchToSub(id string, val []byte, err error) {
	self.subLock.Lock()
	defer self.subLock.Unlock()

	sub := self.subs[id]
	if sub != nil {
		select {
		case sub <- either{val: val, err: err}:
		default:
		}
	}
}

func (self *WsTrans) clearSubs(err error) {
	self.subLock.Lock()
	defer self.subLock.Unlock()

	for _, sub := range self.subs {
		if err != nil {
			select {
			case sub <- either{err: err}:
			default:
			}
		}
		close(sub)
	}
	self.subs = map[string]chan either{}
}

/*
Tries an ordered list of transports, failing over to the next one when a call
fails with a retryable error. Fatal errors, such as the node rejecting a
transaction, are returned immediately: another node would reject it too. The
last transport that succeeded is tried first on the next call.
*/
type FallbackTrans struct {
	Trans  []Trans
	Logger *zap.Logger

	lock    sync.Mutex
	current int
}

// Returns a closed channel if any transport is connected, otherwise the channel of the current one.
func (self *FallbackTrans) Connected() chan struct{} {
	if len(self.Trans) == 0 {
		return make(chan struct{})
	}
	for _, trans := range self.Trans {
		select {
		case <-trans.Connected():
			return alwaysConnected
		default:
		}
	}
	return self.Trans[self.start()].Connected()
}

// Makes an RPC call, failing over on retryable errors.
func (self *FallbackTrans) Call(ctx context.Context, out interface{}, method string, params ...interface{}) error {
	if len(self.Trans) == 0 {
		return errors.New("fallback transport has no transports")
	}

	start := self.start()
	var err error
	for i := range self.Trans {
		index := (start + i) % len(self.Trans)
		err = self.Trans[index].Call(ctx, out, method, params...)
		if err == nil {
			self.setCurrent(index)
			return nil
		}
		if ctx.Err() != nil || IsFatal(transportError(method, err)) {
			return err
		}
		orNopLogger(self.Logger).Warn("RPC call failed, trying the next transport",
			zap.String("method", method), zap.Int("transport", index), zap.Error(err))
	}
	return err
}

// Subscribes via the first connected transport.
func (self *FallbackTrans) Subscribe(ctx context.Context, out chan []byte, params ...interface{}) error {
	if len(self.Trans) == 0 {
		close(out)
		return errors.New("fallback transport has no transports")
	}

	start := self.start()
	for i := range self.Trans {
		index := (start + i) % len(self.Trans)
		select {
		case <-self.Trans[index].Connected():
			return self.Trans[index].Subscribe(ctx, out, params...)
		default:
		}
	}
	return self.Trans[start].Subscribe(ctx, out, params...)
}

func (self *FallbackTrans) start() int {
	self.lock.Lock()
	defer self.lock.Unlock()
	return self.current
}

func (self *FallbackTrans) setCurrent(index int) {
	self.lock.Lock()
	self.current = index
	self.lock.Unlock()
}

// Nil params must be encoded as "[]", not "null", which some nodes reject.
func rpcParams(params []interface{}) []interface{} {
	if params == nil {
		return []interface{}{}
	}
	return params
}

var (
	rnd     = rand.New(rand.NewSource(time.Now().UnixNano()))
	rndLock sync.Mutex
)

// Tens of times faster than "crypto/rand". IDs only need to be unique per connection.
func randomId() string {
	var buf Word
	rndLock.Lock()
	rnd.Read(buf[:])
	rndLock.Unlock()
	return buf.String()
}

func orNopLogger(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
