package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	Storage  MStorageConfig `yaml:"storage"`
	Network  MNetworkConfig `yaml:"network"`
	Feed     MFeedConfig    `yaml:"feed"`
	Hub      MHubConfig     `yaml:"hub"`
}

type MStorageConfig struct {
	Enabled            bool   `yaml:"enabled"`
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	RequestTimeout int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"retries"`
	UserAgent      string `yaml:"user_agent"`
}

type MFeedConfig struct {
	Mode                string   `yaml:"mode"` // "simulation" or "binance"
	Instruments         []string `yaml:"instruments"`
	InitialDepth        int      `yaml:"initial_depth"`
	UpdateIntervalMs    int      `yaml:"update_interval_ms"`
	SnapshotIntervalSec int      `yaml:"snapshot_interval_sec"`
	Seed                int64    `yaml:"seed"` // 0 = time-based
	WSURL               string   `yaml:"ws_url"`
	RestURL             string   `yaml:"rest_url"`
	BridgeTimeoutSec    int      `yaml:"bridge_timeout_sec"`
}

type MHubConfig struct {
	ClientQueueSize int    `yaml:"client_queue_size"`
	OverflowPolicy  string `yaml:"overflow_policy"` // drop_newest, drop_oldest, disconnect
}
