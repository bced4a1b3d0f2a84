package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/cuemby/thorium/pkg/actor"
	"github.com/cuemby/thorium/pkg/log"
	"github.com/cuemby/thorium/pkg/metrics"
	"github.com/cuemby/thorium/pkg/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	grpcpeer "google.golang.org/grpc/peer"
)

const (
	// outboundQueueSize bounds how many messages to one peer can be
	// pending before Send starts returning an error rather than blocking
	// the node's main loop.
	outboundQueueSize = 4096
	// inboundQueueCap bounds the same thing on the receive side.
	inboundQueueCap = 4096
	// maxCoalesce is the largest number of wire messages one envelope
	// batches before the writer flushes, so a single slow peer can't
	// delay delivery to everyone else indefinitely.
	maxCoalesce = 64
)

// Config configures a gRPC-backed Transport.
type Config struct {
	// ListenAddr is the address this node's NodeLink service binds to.
	ListenAddr string

	// NodeID names this node for certificate issuance when TLS is on.
	NodeID      string
	DNSNames    []string
	IPAddresses []net.IP

	// TLS enables mutual TLS between node pairs using CA. Both must be
	// set together, or not at all: the transport boundary is pluggable,
	// and mTLS is one concrete instantiation of it, not a requirement
	// the core imposes.
	TLS bool
	CA  *security.CertAuthority

	DialTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
}

// peerConn is the outbound half of a node-pair link: a long-lived gRPC
// stream this node pushes envelopes into. One peerConn exists per remote
// address that has ever been sent a message.
type peerConn struct {
	addr      string
	sessionID uuid.UUID
	conn      *grpc.ClientConn
	stream    grpc.ClientStream
	cancel    context.CancelFunc
	// outbound carries already wire-encoded frames rather than *actor.Message:
	// Send encodes synchronously before queuing, so the caller's message
	// (and any pooled buffer backing it) is never read again once Send
	// returns, no matter when runPeerWriter gets around to the actual
	// network write.
	outbound chan []byte
}

// Transport implements node.Transport over a bidirectional-streaming gRPC
// service. Each node dials its peers lazily, on first
// Send to a given address, and keeps the stream open for the life of the
// process; inbound connections are served by a single grpc.Server bound
// to Config.ListenAddr.
type Transport struct {
	cfg    Config
	logger zerolog.Logger

	serverCreds credentials.TransportCredentials
	clientCreds credentials.TransportCredentials

	grpcServer *grpc.Server
	listener   net.Listener

	mu    sync.Mutex
	peers map[string]*peerConn

	inboundMu sync.Mutex
	inbound   []*actor.Message

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Transport from cfg. It does not listen or dial anything
// until Start is called.
func New(cfg Config) (*Transport, error) {
	cfg.setDefaults()

	t := &Transport{
		cfg:    cfg,
		logger: log.WithComponent("transport"),
		peers:  make(map[string]*peerConn),
		stopCh: make(chan struct{}),
	}

	if cfg.TLS {
		if cfg.CA == nil {
			return nil, fmt.Errorf("transport: Config.TLS requires Config.CA")
		}
		serverCreds, clientCreds, err := buildTLSCredentials(cfg)
		if err != nil {
			return nil, fmt.Errorf("transport: failed to build TLS credentials: %w", err)
		}
		t.serverCreds = serverCreds
		t.clientCreds = clientCreds
	} else {
		t.clientCreds = insecure.NewCredentials()
	}

	return t, nil
}

// Start binds the listener and begins serving the NodeLink service. It
// satisfies node.Transport.
func (t *Transport) Start() error {
	lis, err := net.Listen("tcp", t.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("transport: failed to listen on %s: %w", t.cfg.ListenAddr, err)
	}
	t.listener = lis

	var opts []grpc.ServerOption
	if t.serverCreds != nil {
		opts = append(opts, grpc.Creds(t.serverCreds))
	}
	t.grpcServer = grpc.NewServer(opts...)
	t.grpcServer.RegisterService(&nodeLinkServiceDesc, t)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.grpcServer.Serve(lis); err != nil {
			select {
			case <-t.stopCh:
				// Stop() already called GracefulStop; Serve returning is
				// expected.
			default:
				t.logger.Error().Err(err).Msg("grpc server exited unexpectedly")
			}
		}
	}()

	t.logger.Info().Str("addr", t.cfg.ListenAddr).Bool("tls", t.cfg.TLS).Msg("transport started")
	return nil
}

// Stop closes the server and every outbound peer connection.
func (t *Transport) Stop() error {
	close(t.stopCh)

	t.mu.Lock()
	for _, p := range t.peers {
		p.cancel()
		_ = p.conn.Close()
	}
	t.peers = make(map[string]*peerConn)
	t.mu.Unlock()

	if t.grpcServer != nil {
		t.grpcServer.GracefulStop()
	}
	t.wg.Wait()
	return nil
}

// Send encodes msg onto the wire and queues the resulting frame for
// delivery to the node listening at remoteNode, dialing a new connection
// on first use. It satisfies node.Transport. Encoding happens before this
// call returns, so the caller is free to recycle msg's buffer (e.g. back
// to a memory pool) the moment Send returns, regardless of when the
// envelope actually reaches the wire.
func (t *Transport) Send(remoteNode string, msg *actor.Message) error {
	p, err := t.getOrDialPeer(remoteNode)
	if err != nil {
		return err
	}

	frame := encodeWireMessage(msg)
	select {
	case p.outbound <- frame:
		return nil
	default:
		metrics.MessagesDroppedTotal.WithLabelValues("queue_full").Inc()
		return fmt.Errorf("transport: outbound queue to %s is full", remoteNode)
	}
}

// Poll returns the next inbound message, or ok=false if none has arrived.
// It satisfies node.Transport.
func (t *Transport) Poll() (*actor.Message, bool) {
	t.inboundMu.Lock()
	defer t.inboundMu.Unlock()
	if len(t.inbound) == 0 {
		return nil, false
	}
	msg := t.inbound[0]
	t.inbound = t.inbound[1:]
	return msg, true
}

func (t *Transport) enqueueInbound(msg *actor.Message, remoteAddr string) {
	t.inboundMu.Lock()
	defer t.inboundMu.Unlock()
	if len(t.inbound) >= inboundQueueCap {
		t.logger.Warn().Str("remote_addr", remoteAddr).Msg("inbound queue full, dropping message")
		metrics.MessagesDroppedTotal.WithLabelValues("queue_full").Inc()
		return
	}
	t.inbound = append(t.inbound, msg)
	metrics.TransportMessagesReceivedTotal.WithLabelValues(remoteAddr).Inc()
}

func (t *Transport) getOrDialPeer(addr string) (*peerConn, error) {
	t.mu.Lock()
	if p, ok := t.peers[addr]; ok {
		t.mu.Unlock()
		return p, nil
	}
	t.mu.Unlock()

	var opts []grpc.DialOption
	if t.clientCreds != nil {
		opts = append(opts, grpc.WithTransportCredentials(t.clientCreds))
	}
	conn, err := grpc.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("transport: failed to dial %s: %w", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := conn.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    linkMethod,
		ServerStreams: true,
		ClientStreams: true,
	}, linkFullMethod, grpc.CallContentSubtype(codecName))
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, fmt.Errorf("transport: failed to open stream to %s: %w", addr, err)
	}

	p := &peerConn{
		addr:      addr,
		sessionID: uuid.New(),
		conn:      conn,
		stream:    stream,
		cancel:    cancel,
		outbound:  make(chan []byte, outboundQueueSize),
	}

	t.mu.Lock()
	if existing, ok := t.peers[addr]; ok {
		t.mu.Unlock()
		cancel()
		_ = conn.Close()
		return existing, nil
	}
	t.peers[addr] = p
	t.mu.Unlock()

	t.wg.Add(1)
	go t.runPeerWriter(p)

	t.logger.Debug().Str("addr", addr).Str("session", p.sessionID.String()).Msg("peer link dialed")
	return p, nil
}

// runPeerWriter drains p.outbound, coalescing pending frames into
// envelopes so a burst of traffic to one peer costs one stream write
// instead of many, while preserving per-pair order (frames are appended
// to the envelope in the order they were read off the channel).
func (t *Transport) runPeerWriter(p *peerConn) {
	defer t.wg.Done()
	for {
		select {
		case <-t.stopCh:
			return
		case frame := <-p.outbound:
			frames := make([][]byte, 0, maxCoalesce)
			frames = append(frames, frame)

		drain:
			for len(frames) < maxCoalesce {
				select {
				case next := <-p.outbound:
					frames = append(frames, next)
				default:
					break drain
				}
			}

			if err := p.stream.SendMsg(&envelope{frames: frames}); err != nil {
				t.logger.Warn().Err(err).Str("addr", p.addr).Msg("failed to send envelope, dropping peer link")
				metrics.MessagesDroppedTotal.WithLabelValues("queue_full").Inc()
				t.mu.Lock()
				if t.peers[p.addr] == p {
					delete(t.peers, p.addr)
				}
				t.mu.Unlock()
				p.cancel()
				_ = p.conn.Close()
				return
			}
			metrics.TransportMessagesSentTotal.WithLabelValues(p.addr).Inc()
		}
	}
}

// link implements nodeLinkServer: the server side of one peer's stream.
// It decodes every envelope the peer sends and queues the wire messages
// for Poll.
func (t *Transport) link(stream grpc.ServerStream) error {
	remoteAddr := "unknown"
	if p, ok := grpcpeer.FromContext(stream.Context()); ok {
		remoteAddr = p.Addr.String()
	}
	sessionID := uuid.New()
	t.logger.Debug().Str("remote_addr", remoteAddr).Str("session", sessionID.String()).Msg("peer link accepted")

	for {
		in := &envelope{}
		if err := stream.RecvMsg(in); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		for _, frame := range in.frames {
			msg, err := decodeWireMessage(frame)
			if err != nil {
				metrics.TransportDecodeErrorsTotal.Inc()
				metrics.MessagesDroppedTotal.WithLabelValues("decode_error").Inc()
				t.logger.Warn().Err(err).Str("remote_addr", remoteAddr).Msg("dropping malformed wire message")
				continue
			}
			t.enqueueInbound(msg, remoteAddr)
		}
	}
}
