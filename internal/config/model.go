package config

import (
	"fmt"

	"vexdb/internal/log"
)

// ServerConfig is the store-node daemon configuration.
type ServerConfig struct {
	StoreID     uint64            `yaml:"storeID"`
	Role        string            `yaml:"role"` // "store" or "index"
	Dir         string            `yaml:"dir"`
	Raft        RaftConfig        `yaml:"raft"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	GRPC        GRPCConfig        `yaml:"grpc"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         log.Options       `yaml:"log"`
}

type RaftConfig struct {
	// Address other stores use to reach this store's raft endpoint.
	Address string `yaml:"address"`
}

type CoordinatorConfig struct {
	Address          string `yaml:"address"`
	HeartbeatSeconds int    `yaml:"heartbeatSeconds"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type MetricsConfig struct {
	Address string `yaml:"address"`
}

// Validate checks the config for obvious mistakes before wiring starts.
func (c *ServerConfig) Validate() error {
	if c.StoreID == 0 {
		return fmt.Errorf("storeID must be non-zero")
	}
	if c.Dir == "" {
		return fmt.Errorf("dir must be set")
	}
	switch c.Role {
	case "", "store", "index":
	default:
		return fmt.Errorf("role must be store or index, got %q", c.Role)
	}
	return nil
}

// IsIndexRole reports whether this node hosts vector index regions.
func (c *ServerConfig) IsIndexRole() bool {
	return c.Role == "index"
}
