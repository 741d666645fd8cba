package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
)

type Custom struct {
	World struct {
		Name string `toml:"name"`
	} `toml:"world"`
	Network struct {
		Transport         string `toml:"transport"`
		DialTimeout       int    `toml:"dial-timeout"`
		ReadTimeout       int    `toml:"read-timeout"`
		WriteTimeout      int    `toml:"write-timeout"`
		KeepAlive         int    `toml:"keep-alive"`
		MaxMessageSize    int    `toml:"max-message-size"`
		CompressThreshold int    `toml:"compress-threshold"`
		QueueSize         int    `toml:"queue-size"`
	} `toml:"network"`
	Storage struct {
		Dir string `toml:"dir"`
	} `toml:"storage"`
	RPC struct {
		Port int `toml:"port"`
	} `toml:"rpc"`
	Dev struct {
		Port int `toml:"port"`
	} `toml:"dev"`
	Log struct {
		Level   int    `toml:"level"`
		Filter  string `toml:"filter"`
		Limiter int    `toml:"limiter"`
	} `toml:"log"`
}

func Initialize(file string) (*Custom, error) {
	f, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	var config Custom
	err = toml.Unmarshal(f, &config)
	if err != nil {
		return nil, err
	}
	return &config, config.fill()
}

// Default returns a configuration with every field at its default value.
func Default() *Custom {
	var config Custom
	err := config.fill()
	if err != nil {
		panic(err)
	}
	return &config
}

func (c *Custom) fill() error {
	if c.World.Name == "" {
		c.World.Name = DefaultWorldName
	}
	switch c.Network.Transport {
	case "":
		c.Network.Transport = DefaultTransport
	case "tcp", "quic":
	default:
		return fmt.Errorf("invalid network transport %s", c.Network.Transport)
	}
	if c.Network.DialTimeout == 0 {
		c.Network.DialTimeout = int(DefaultDialTimeout / time.Second)
	}
	if c.Network.ReadTimeout == 0 {
		c.Network.ReadTimeout = int(DefaultReadTimeout / time.Second)
	}
	if c.Network.WriteTimeout == 0 {
		c.Network.WriteTimeout = int(DefaultWriteTimeout / time.Second)
	}
	if c.Network.KeepAlive == 0 {
		c.Network.KeepAlive = int(DefaultKeepAlive / time.Second)
	}
	if c.Network.KeepAlive >= c.Network.ReadTimeout {
		return fmt.Errorf("keep-alive %d must be less than read-timeout %d", c.Network.KeepAlive, c.Network.ReadTimeout)
	}
	if c.Network.MaxMessageSize == 0 {
		c.Network.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Network.CompressThreshold == 0 {
		c.Network.CompressThreshold = DefaultCompressThreshold
	}
	if c.Network.QueueSize == 0 {
		c.Network.QueueSize = DefaultQueueSize
	}
	if c.Log.Level == 0 {
		c.Log.Level = 2
	}
	return nil
}

func (c *Custom) DialTimeout() time.Duration {
	return time.Duration(c.Network.DialTimeout) * time.Second
}

func (c *Custom) ReadTimeout() time.Duration {
	return time.Duration(c.Network.ReadTimeout) * time.Second
}

func (c *Custom) WriteTimeout() time.Duration {
	return time.Duration(c.Network.WriteTimeout) * time.Second
}

func (c *Custom) KeepAlive() time.Duration {
	return time.Duration(c.Network.KeepAlive) * time.Second
}
