// Package netmc provides the Minecraft connection on top of a net.Conn:
// the ordered filter pipeline of framing, cipher, compression and packet
// coding, driven by a read loop that hands packets to a session handler.
package netmc

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/atomic"

	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/errs"
)

// MinecraftConn is a Minecraft connection of a client or a backend server.
// The connection is unusable after Close was called and must be recreated.
type MinecraftConn interface {
	// Context returns the context of the connection.
	// It is canceled on Close and can be used to attach
	// more context values to a connection.
	Context() context.Context
	// Close closes the connection, if not already, and calls
	// SessionHandler.Disconnected. It is okay to call this method multiple
	// times. If the connection is in a closing state, Close blocks until
	// the connection completed the close.
	Close() error

	// State returns the current protocol state of the connection.
	State() *state.Registry
	// Protocol returns the protocol version of the connection.
	Protocol() proto.Protocol
	// RemoteAddr returns the remote address of the connection.
	RemoteAddr() net.Addr
	// LocalAddr returns the local address of the connection.
	LocalAddr() net.Addr
	// SessionHandler returns the current session handler of the connection.
	SessionHandler() SessionHandler
	// SetSessionHandler sets the session handler for this connection and
	// calls Deactivated() on the old and Activated() on the new handler.
	SetSessionHandler(SessionHandler)

	// Reader exposes the connection's reader for split state transitions.
	Reader() Reader
	// Writer exposes the connection's writer for split state transitions.
	Writer() Writer

	StateChanger
	PacketWriter
}

// Closed returns true if the connection is closed.
func Closed(c interface{ Context() context.Context }) bool {
	return c.Context().Err() != nil
}

// PacketWriter is the interface for writing packets to the underlying connection.
type PacketWriter interface {
	// WritePacket writes a packet to the connection's
	// write buffer and flushes the complete buffer afterwards.
	//
	// The connection will be closed on any error encountered!
	WritePacket(p proto.Packet) (err error)
	// Write encodes and writes payload to the connection's
	// write buffer and flushes the complete buffer afterwards.
	Write(payload []byte) (err error)

	// BufferPacket writes a packet into the connection's write buffer.
	BufferPacket(packet proto.Packet) (err error)
	// BufferPayload writes payload (packet id + data) into the connection's write buffer.
	BufferPayload(payload []byte) (err error)
	// Flush flushes the buffered data to the connection.
	Flush() error
}

// StateChanger updates the state of a connection.
type StateChanger interface {
	// SetProtocol switches the connection's protocol version.
	SetProtocol(proto.Protocol)
	// SetState switches the connection's state.
	SetState(state *state.Registry)
	// SetCompressionThreshold sets the compression threshold of the
	// connection. packet.SetCompression must be sent beforehand.
	SetCompressionThreshold(threshold int) error
	// EnableEncryption takes the secret key negotiated between the client
	// and the server to enable encryption on the connection.
	EnableEncryption(secret []byte) error
}

// SessionHandler handles received packets of the associated connection.
//
// Since connections transition between states, packets need to be handled
// differently. This behaviour is divided between sessions by session handlers.
type SessionHandler interface {
	HandlePacket(pc *proto.PacketContext) // Called to handle an incoming known or unknown packet.
	Disconnected()                        // Called when the connection is closing, to tear down the session.

	Activated()   // Called when the connection is now managed by this SessionHandler.
	Deactivated() // Called when the connection is no longer managed by this SessionHandler.
}

// NewMinecraftConn returns a new MinecraftConn and the func
// to start the blocking read loop.
func NewMinecraftConn(
	ctx context.Context,
	base net.Conn,
	direction proto.Direction,
	readTimeout time.Duration,
	writeTimeout time.Duration,
	compressionLevel int,
) (conn MinecraftConn, startReadLoop func()) {
	in := proto.ServerBound  // reads from client are server bound (proxy <- client)
	out := proto.ClientBound // writes to client are client bound (proxy -> client)
	logName := "client"
	if direction == proto.ClientBound { // a backend server connection
		in = proto.ClientBound  // reads from backend are client bound (proxy <- backend)
		out = proto.ServerBound // writes to backend are server bound (proxy -> backend)
		logName = "server"
	}

	log := logr.FromContextOrDiscard(ctx).WithName(logName)
	ctx = logr.NewContext(ctx, log)

	ctx, cancel := context.WithCancel(ctx)
	c := &minecraftConn{
		log:       log,
		c:         base,
		ctx:       ctx,
		cancelCtx: cancel,
		rd:        NewReader(base, in, readTimeout, log),
		wr:        NewWriter(base, out, writeTimeout, compressionLevel, log),
		state:     state.Handshake,
		protocol:  version.Minecraft_1_7_2.Protocol,
	}
	return c, c.startReadLoop
}

type minecraftConn struct {
	c   net.Conn    // underlying connection
	log logr.Logger // the connection's own logger

	rd Reader
	wr Writer

	ctx             context.Context // canceled when the connection closed
	cancelCtx       context.CancelFunc
	closeOnce       sync.Once   // Makes sure the connection is closed once, while blocking proceeding calls.
	knownDisconnect atomic.Bool // Silences expected disconnects.

	protocol proto.Protocol

	mu    sync.RWMutex    // Protects following fields
	state *state.Registry // The current protocol state.

	sessionHandlerMu struct {
		sync.RWMutex
		SessionHandler // The current session handler.
	}
}

// startReadLoop is the main goroutine of this connection. It reads packets
// and passes them to the current SessionHandler.
// Close will be called on method return.
func (c *minecraftConn) startReadLoop() {
	// Make sure to close the connection on return, if not already closed.
	defer func() { _ = c.closeKnown(false) }()

	next := func() bool {
		// Read the next packet from the underlying connection.
		packetCtx, err := c.rd.ReadPacket()
		if err != nil {
			if errors.Is(err, ErrReadPacketRetry) {
				// Sleep briefly and try again.
				time.Sleep(time.Millisecond * 5)
				return true
			}
			return false
		}

		// Handle the packet with the connection's current session handler.
		c.SessionHandler().HandlePacket(packetCtx)
		return true
	}

	// Two nested loops to call "defer, recover" less often
	// and still be able to continue the loop after a panic.
	cond := func() bool { return !Closed(c) && next() }
	loop := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error(nil, "recovered panic in packets read loop", "panic", r)
				ok = true // recovered, keep going
			}
		}()
		for cond() {
		}
		return false
	}

	for loop() {
	}
}

func (c *minecraftConn) Context() context.Context { return c.ctx }

func (c *minecraftConn) Flush() error {
	err := c.wr.Flush()
	c.closeOnErr(err)
	return err
}

func (c *minecraftConn) WritePacket(p proto.Packet) (err error) {
	if Closed(c) {
		return ErrClosedConn
	}
	defer func() { c.closeOnErr(err) }()
	if err = c.BufferPacket(p); err != nil {
		return err
	}
	return c.Flush()
}

func (c *minecraftConn) Write(payload []byte) (err error) {
	if Closed(c) {
		return ErrClosedConn
	}
	defer func() { c.closeOnErr(err) }()
	if _, err = c.wr.Write(payload); err != nil {
		return err
	}
	return c.Flush()
}

func (c *minecraftConn) BufferPacket(packet proto.Packet) (err error) {
	if Closed(c) {
		return ErrClosedConn
	}
	defer func() { c.closeOnErr(err) }()
	_, err = c.wr.WritePacket(packet)
	return err
}

func (c *minecraftConn) BufferPayload(payload []byte) (err error) {
	if Closed(c) {
		return ErrClosedConn
	}
	defer func() { c.closeOnErr(err) }()
	_, err = c.wr.Write(payload)
	return err
}

func (c *minecraftConn) closeOnErr(err error) {
	if err == nil {
		return
	}
	_ = c.Close()
	if err == ErrClosedConn {
		return // Don't log this error
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && errs.IsConnClosedErr(opErr.Err) {
		return // Don't log this error
	}
	c.log.V(1).Info("error writing packet, closing connection", "error", err)
}

func (c *minecraftConn) Close() error {
	return c.closeKnown(true)
}

// ErrClosedConn indicates a connection is already closed.
var ErrClosedConn = errors.New("connection is closed")

func (c *minecraftConn) closeKnown(markKnown bool) (err error) {
	alreadyClosed := true
	c.closeOnce.Do(func() {
		alreadyClosed = false
		if markKnown {
			c.knownDisconnect.Store(true)
		}

		c.cancelCtx()
		err = c.c.Close()

		if sh := c.SessionHandler(); sh != nil {
			sh.Disconnected()

			if p, ok := sh.(interface{ PlayerLog() logr.Logger }); ok && !c.knownDisconnect.Load() {
				p.PlayerLog().Info("player has disconnected unexpectedly")
			}
		}
	})
	if alreadyClosed {
		err = ErrClosedConn
	}
	return err
}

// CloseWith closes the connection after writing the packet.
func CloseWith(c MinecraftConn, packet proto.Packet) (err error) {
	if Closed(c) {
		return ErrClosedConn
	}
	defer func() {
		err = c.Close()
	}()
	if mc, ok := c.(*minecraftConn); ok {
		mc.knownDisconnect.Store(true)
	}
	_ = c.WritePacket(packet)
	return
}

// KnownDisconnect returns true if the connection was
// or will be expectedly closed by the proxy.
func KnownDisconnect(c MinecraftConn) bool {
	if mc, ok := c.(*minecraftConn); ok {
		return mc.knownDisconnect.Load()
	}
	return false
}

// CloseUnknown closes the connection for an unexpected disconnect.
// Use MinecraftConn.Close to prevent logging of expected disconnects.
func CloseUnknown(c MinecraftConn) error {
	if mc, ok := c.(*minecraftConn); ok {
		return mc.closeKnown(false)
	}
	return c.Close()
}

func (c *minecraftConn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

func (c *minecraftConn) LocalAddr() net.Addr {
	return c.c.LocalAddr()
}

func (c *minecraftConn) Protocol() proto.Protocol {
	return c.protocol
}

func (c *minecraftConn) SetProtocol(protocol proto.Protocol) {
	c.protocol = protocol
	c.rd.SetProtocol(protocol)
	c.wr.SetProtocol(protocol)
}

func (c *minecraftConn) State() *state.Registry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *minecraftConn) SetState(state *state.Registry) {
	c.mu.Lock()
	c.state = state
	c.rd.SetState(state)
	c.wr.SetState(state)
	c.mu.Unlock()
}

func (c *minecraftConn) Reader() Reader { return c.rd }
func (c *minecraftConn) Writer() Writer { return c.wr }

func (c *minecraftConn) SessionHandler() SessionHandler {
	c.sessionHandlerMu.RLock()
	defer c.sessionHandlerMu.RUnlock()
	return c.sessionHandlerMu.SessionHandler
}

func (c *minecraftConn) SetSessionHandler(handler SessionHandler) {
	c.sessionHandlerMu.Lock()
	previous := c.sessionHandlerMu.SessionHandler
	c.sessionHandlerMu.SessionHandler = handler
	c.sessionHandlerMu.Unlock()
	// Run the lifecycle callbacks outside the lock: an Activated
	// implementation may install the next session handler itself.
	if previous != nil {
		previous.Deactivated()
	}
	handler.Activated()
}

// SetCompressionThreshold sets the compression threshold on the connection.
// The caller is responsible for sending packet.SetCompression beforehand.
func (c *minecraftConn) SetCompressionThreshold(threshold int) error {
	c.log.V(1).Info("updating compression", "threshold", threshold)
	err := c.rd.SetCompressionThreshold(threshold)
	if err != nil {
		return err
	}
	return c.wr.SetCompressionThreshold(threshold)
}

func (c *minecraftConn) EnableEncryption(secret []byte) error {
	err := c.rd.EnableEncryption(secret)
	if err != nil {
		return err
	}
	return c.wr.EnableEncryption(secret)
}

// Conn exports the hidden underlying connection
// and can be retrieved with interface assertion.
func (c *minecraftConn) Conn() net.Conn {
	return c.c
}

// SendKeepAlive sends a keep-alive packet to the connection if in Play state.
// This prevents a connection timeout during long proxy-side work.
func SendKeepAlive(c interface {
	State() *state.Registry
	WritePacket(proto.Packet) error
}) error {
	if c.State() == state.Play {
		return c.WritePacket(&packet.KeepAlive{
			RandomID: int64(randomUint64()),
		})
	}
	return nil
}

func randomUint64() uint64 {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf) // always succeeds
	return binary.LittleEndian.Uint64(buf)
}

// A NopSessionHandler can be embedded to
// implement the SessionHandler interface.
type NopSessionHandler struct{}

var _ SessionHandler = (*NopSessionHandler)(nil)

func (NopSessionHandler) HandlePacket(*proto.PacketContext) {}
func (NopSessionHandler) Disconnected()                     {}
func (NopSessionHandler) Activated()                        {}
func (NopSessionHandler) Deactivated()                      {}
