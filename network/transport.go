package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/MixinNetwork/rworld/config"
)

const (
	TransportMessageVersion        = 3
	TransportMessageHeaderSize     = 6
	TransportMessageFlagCompressed = 1
)

var (
	ErrBind           = errors.New("bind error")
	ErrResolution     = errors.New("resolution error")
	ErrConnect        = errors.New("connect error")
	ErrConnectionLost = errors.New("connection lost")
	ErrListenerClosed = errors.New("listener closed")
)

type TransportMessage struct {
	Version uint8
	Flags   uint8
	Size    uint32
	Data    []byte
}

type Client interface {
	RemoteAddr() net.Addr
	Receive() (*TransportMessage, error)
	Send([]byte) error
	Close() error
}

type Listener interface {
	Addr() net.Addr
	Accept(ctx context.Context) (Client, error)
	Close() error
}

type Transport interface {
	Listen(port uint16) (Listener, error)
	Dial(ctx context.Context, address string, port uint16) (Client, error)
}

type Options struct {
	DialTimeout       time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	MaxMessageSize    int
	CompressThreshold int
}

func OptionsFromConfig(custom *config.Custom) Options {
	return Options{
		DialTimeout:       custom.DialTimeout(),
		ReadTimeout:       custom.ReadTimeout(),
		WriteTimeout:      custom.WriteTimeout(),
		MaxMessageSize:    custom.Network.MaxMessageSize,
		CompressThreshold: custom.Network.CompressThreshold,
	}
}

// withDefaults fills unset timeouts and limits, a zero ReadTimeout would
// otherwise leave peers without any liveness check.
func (opts Options) withDefaults() Options {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = config.DefaultDialTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = config.DefaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = config.DefaultWriteTimeout
	}
	if opts.MaxMessageSize < 1 {
		opts.MaxMessageSize = config.DefaultMaxMessageSize
	}
	return opts
}

func NewTransport(kind string, opts Options) (Transport, error) {
	switch kind {
	case "tcp":
		return NewTcpTransport(opts), nil
	case "quic":
		return NewQuicTransport(opts), nil
	}
	return nil, fmt.Errorf("unknown transport %s", kind)
}

// resolveAddress returns an IP literal for address, preferring IPv4.
func resolveAddress(ctx context.Context, address string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("%w: empty address", ErrResolution)
	}
	if ip := net.ParseIP(address); ip != nil {
		return address, nil
	}
	ips, err := net.DefaultResolver.LookupIPAddr(ctx, address)
	if err != nil {
		return "", fmt.Errorf("%w: lookup %s %v", ErrResolution, address, err)
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("%w: lookup %s no address", ErrResolution, address)
	}
	for _, ip := range ips {
		if ip.IP.To4() != nil {
			return ip.IP.String(), nil
		}
	}
	return ips[0].IP.String(), nil
}

func dialAddress(ctx context.Context, address string, port uint16) (string, error) {
	if port == 0 {
		return "", fmt.Errorf("%w: invalid port %d", ErrConnect, port)
	}
	host, err := resolveAddress(ctx, address)
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, fmt.Sprint(port)), nil
}

func listenAddress(port uint16) string {
	return fmt.Sprintf(":%d", port)
}
