package config

import "time"

// Configuration file paths
const (
	ConfigPathFarm = "configs/farm.json"
)

// Default configuration values
const (
	DefaultDBMaxConns          = 20
	DefaultSettlementWorkers   = 4
	DefaultSettlementQueueSize = 256
	DefaultDeadLetterPath      = "logs/dead_letter.jsonl"
)

// Default durations
const (
	DefaultDBMaxConnIdleTime = 5 * time.Minute
	DefaultDBMaxConnLifetime = 30 * time.Minute
	DefaultRegistryTimeout   = 10 * time.Second
)
