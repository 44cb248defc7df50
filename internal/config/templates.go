package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Trade Reconciler Configuration

[ledger]
# Lot matching discipline: "lifo" or "fifo"
discipline = "lifo"
# Broker recorded on every transaction
broker = "IB"
# Time zone for fill times that carry no offset
timezone = "America/New_York"

[fees]
# Commission model: "zero", "flat" or "per_share"
model = "per_share"
# Flat model: commission per order
per_order = 1.0
# Per-share model: rate, minimum per order and cap as a fraction of value
per_share = 0.005
minimum = 1.0
max_percent = 0.01
# Regulatory fee rate on sell value, charged on sells only
regulatory_rate = 0.0000278

[settlement]
# Business days from trade date to settlement
days = 1

[dispatch]
# Worker goroutines (0 = number of CPUs)
workers = 0
# Queued fills per worker
queue_size = 256
# Trades written to the database per batch
batch_size = 100

[store]
# SQLite database for matched trades (defaults to the config directory)
# db_path = "/path/to/reconciler.db"

[log]
# Log level: debug, info, warn, error
level = "info"
console = false
file = true
max_size = 100
max_backups = 7
max_age = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "2006-01-02"
`

// createTemplateConfig writes the template config.toml into configDir and
// returns its path.
func createTemplateConfig(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}

	return path, nil
}
