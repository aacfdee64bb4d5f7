package config

import "github.com/BurntSushi/toml"

func ReadFile(filepath string, cfg interface{}) error {
	_, err := toml.DecodeFile(filepath, cfg)
	return err
}

type BaseConfig struct {
	DB      DB      `toml:"db"`
	Scraper Scraper `toml:"scraper"`
	Timeout Timeout `toml:"timeout"`
	Log     Log     `toml:"log"`
}

var DefaultBaseConfig = BaseConfig{
	DB:      defaultDB,
	Scraper: defaultScraper,
	Timeout: defaultTimeout,
	Log:     defaultLog,
}

type DB struct {
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	DBName     string `toml:"db_name"`
	LogQueries bool   `toml:"log_queries"`
}

var defaultDB = DB{
	Host: "localhost",
	Port: 5432,
}

type Scraper struct {
	// TrackedAccounts is the allow-list of accounts the scraper maintains
	// projections for. Everything outside it is ignored.
	TrackedAccounts []string `toml:"tracked_accounts"`

	BatchSize          uint64 `toml:"batch_size"`
	MaxWorkers         int    `toml:"max_workers"`
	QuickBackfillBatch int    `toml:"quick_backfill_batch"`
	QuickScan          bool   `toml:"quick_scan"`
	RetryDelaySeconds  int    `toml:"retry_delay_seconds"`
	PollIntervalMillis int    `toml:"poll_interval_millis"`
	ScanPauseSeconds   int    `toml:"scan_pause_seconds"`
	StatsPauseSeconds  int    `toml:"stats_pause_seconds"`
}

var defaultScraper = Scraper{
	BatchSize:          100,
	MaxWorkers:         50,
	QuickBackfillBatch: 200,
	RetryDelaySeconds:  5,
	PollIntervalMillis: 500,
	ScanPauseSeconds:   60,
	StatsPauseSeconds:  60,
}

type Timeout struct {
	BackoffMaxElapsedTimeSeconds int `toml:"backoff_max_elapsed_time_seconds"`
	RequestTimeoutMillis         int `toml:"request_timeout_millis"`
}

var defaultTimeout = Timeout{
	BackoffMaxElapsedTimeSeconds: 300,
	RequestTimeoutMillis:         3000,
}

type Log struct {
	Level string `toml:"level"`
}

var defaultLog = Log{
	Level: "info",
}
