package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

type TcpClient struct {
	conn net.Conn
	opts Options
	once sync.Once
}

type TcpListener struct {
	listener net.Listener
	opts     Options
	queue    *acceptQueue
}

type TcpTransport struct {
	opts Options
}

func NewTcpTransport(opts Options) *TcpTransport {
	return &TcpTransport{opts: opts.withDefaults()}
}

func (t *TcpTransport) Dial(ctx context.Context, address string, port uint16) (Client, error) {
	if t.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.DialTimeout)
		defer cancel()
	}
	addr, err := dialAddress(ctx, address, port)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: tcp dial %s %v", ErrConnect, addr, err)
	}
	return &TcpClient{conn: conn, opts: t.opts}, nil
}

func (t *TcpTransport) Listen(port uint16) (Listener, error) {
	l, err := net.Listen("tcp", listenAddress(port))
	if err != nil {
		return nil, fmt.Errorf("%w: tcp listen %d %v", ErrBind, port, err)
	}
	tl := &TcpListener{
		listener: l,
		opts:     t.opts,
		queue:    newAcceptQueue(),
	}
	go tl.loopAccept()
	return tl, nil
}

func (l *TcpListener) loopAccept() {
	for !l.queue.isClosed() {
		conn, err := l.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		} else if err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		l.queue.offer(&TcpClient{conn: conn, opts: l.opts})
	}
}

func (l *TcpListener) Addr() net.Addr {
	return l.listener.Addr()
}

func (l *TcpListener) Accept(ctx context.Context) (Client, error) {
	return l.queue.accept(ctx)
}

func (l *TcpListener) Close() error {
	return l.queue.close(l.listener.Close)
}

func (c *TcpClient) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *TcpClient) Receive() (*TransportMessage, error) {
	if c.opts.ReadTimeout > 0 {
		err := c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
	return readFrame(c.conn, c.opts.MaxMessageSize)
}

func (c *TcpClient) Send(data []byte) error {
	err := checkMessageSize(data, c.opts.MaxMessageSize)
	if err != nil {
		return fmt.Errorf("tcp send %v", err)
	}
	if c.opts.WriteTimeout > 0 {
		err = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
	}
	err = writeFrame(c.conn, data, c.opts.CompressThreshold)
	if err != nil {
		return fmt.Errorf("%w: tcp send %v", ErrConnectionLost, err)
	}
	return nil
}

func (c *TcpClient) Close() error {
	var err error
	c.once.Do(func() {
		err = c.conn.Close()
	})
	return err
}
