package network

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
)

// /etc/sysctl.conf
// net.core.rmem_max=8388608
// net.core.wmem_max=8388608

const (
	MaxIncomingStreams = 1
	HandshakeTimeout   = 5 * time.Second
	IdleTimeout        = 60 * time.Second

	quicNextProto      = "rworld-quic-peer"
	quicStreamPreamble = 0x52
)

type QuicClient struct {
	conn   quic.Connection
	stream quic.Stream
	opts   Options
	once   sync.Once
}

type QuicListener struct {
	listener *quic.Listener
	opts     Options
	queue    *acceptQueue
}

type QuicTransport struct {
	opts Options
}

func NewQuicTransport(opts Options) *QuicTransport {
	return &QuicTransport{opts: opts.withDefaults()}
}

func quicConfig(opts Options) *quic.Config {
	idle := IdleTimeout
	if opts.ReadTimeout > 0 && opts.ReadTimeout < idle {
		idle = opts.ReadTimeout
	}
	return &quic.Config{
		MaxIncomingStreams:   MaxIncomingStreams,
		HandshakeIdleTimeout: HandshakeTimeout,
		MaxIdleTimeout:       idle,
		KeepAlivePeriod:      idle / 2,
	}
}

func (t *QuicTransport) Dial(ctx context.Context, address string, port uint16) (Client, error) {
	if t.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.DialTimeout)
		defer cancel()
	}
	addr, err := dialAddress(ctx, address, port)
	if err != nil {
		return nil, err
	}
	conn, err := quic.DialAddr(ctx, addr, &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{quicNextProto},
	}, quicConfig(t.opts))
	if err != nil {
		return nil, fmt.Errorf("%w: quic dial %s %v", ErrConnect, addr, err)
	}
	stm, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "OPEN")
		return nil, fmt.Errorf("%w: quic open stream %s %v", ErrConnect, addr, err)
	}
	// a stream is invisible to the acceptor until something is written
	_, err = stm.Write([]byte{quicStreamPreamble})
	if err != nil {
		conn.CloseWithError(0, "PREAMBLE")
		return nil, fmt.Errorf("%w: quic preamble %s %v", ErrConnect, addr, err)
	}
	return &QuicClient{conn: conn, stream: stm, opts: t.opts}, nil
}

func (t *QuicTransport) Listen(port uint16) (Listener, error) {
	tlsConf, err := generateTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: quic tls %v", ErrBind, err)
	}
	l, err := quic.ListenAddr(listenAddress(port), tlsConf, quicConfig(t.opts))
	if err != nil {
		return nil, fmt.Errorf("%w: quic listen %d %v", ErrBind, port, err)
	}
	ql := &QuicListener{
		listener: l,
		opts:     t.opts,
		queue:    newAcceptQueue(),
	}
	go ql.loopAccept()
	return ql, nil
}

func (l *QuicListener) loopAccept() {
	for !l.queue.isClosed() {
		conn, err := l.listener.Accept(context.Background())
		if errors.Is(err, quic.ErrServerClosed) {
			return
		} else if err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		go l.acceptStream(conn)
	}
}

func (l *QuicListener) acceptStream(conn quic.Connection) {
	ctx, cancel := context.WithTimeout(context.Background(), HandshakeTimeout)
	defer cancel()

	stm, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "STREAM")
		return
	}
	stm.SetReadDeadline(time.Now().Add(HandshakeTimeout))
	preamble := make([]byte, 1)
	_, err = io.ReadFull(stm, preamble)
	if err != nil || preamble[0] != quicStreamPreamble {
		conn.CloseWithError(0, "PREAMBLE")
		return
	}
	err = stm.SetReadDeadline(time.Time{})
	if err != nil {
		conn.CloseWithError(0, "DEADLINE")
		return
	}
	l.queue.offer(&QuicClient{conn: conn, stream: stm, opts: l.opts})
}

func (l *QuicListener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *QuicListener) Accept(ctx context.Context) (Client, error) {
	return l.queue.accept(ctx)
}

func (l *QuicListener) Close() error {
	return l.queue.close(l.listener.Close)
}

func (c *QuicClient) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *QuicClient) Receive() (*TransportMessage, error) {
	if c.opts.ReadTimeout > 0 {
		err := c.stream.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
	return readFrame(c.stream, c.opts.MaxMessageSize)
}

func (c *QuicClient) Send(data []byte) error {
	err := checkMessageSize(data, c.opts.MaxMessageSize)
	if err != nil {
		return fmt.Errorf("quic send %v", err)
	}
	if c.opts.WriteTimeout > 0 {
		err = c.stream.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
	err = writeFrame(c.stream, data, c.opts.CompressThreshold)
	if err != nil {
		return fmt.Errorf("%w: quic send %v", ErrConnectionLost, err)
	}
	return nil
}

func (c *QuicClient) Close() error {
	var err error
	c.once.Do(func() {
		c.stream.Close()
		err = c.conn.CloseWithError(0, "DONE")
	})
	return err
}

func generateTLSConfig() (*tls.Config, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour * 24 * 30),
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{quicNextProto},
	}, nil
}
