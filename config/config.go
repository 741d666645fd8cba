package config

import "time"

const (
	BuildVersion    = "v0.1.0-BUILD_VERSION"
	ProtocolVersion = 1

	DefaultWorldName         = "rworld"
	DefaultTransport         = "tcp"
	DefaultDialTimeout       = 5 * time.Second
	DefaultReadTimeout       = 30 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultKeepAlive         = 5 * time.Second
	DefaultMaxMessageSize    = 4 * 1024 * 1024
	DefaultCompressThreshold = 1024
	DefaultQueueSize         = 1024
	DefaultRPCPort           = 7160
)
