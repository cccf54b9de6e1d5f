package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/transferd-network/transferd/pkg/wallet"
)

const (
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// ListenAddrKey is the address <host:port> the json interface listens on
	ListenAddrKey = "LISTEN_ADDR"
	// AdminTokenKey is the token granting node management access, empty locks it down
	AdminTokenKey = "ADMIN_TOKEN"
	// ChainIDKey is the id of the ledger network transfers are signed for
	ChainIDKey = "CHAIN_ID"
	// HRPKey is the bech32 human readable part of the network's addresses
	HRPKey = "HRP"
	// BaseDerivationPathKey is the BIP-44 template accounts are derived from
	BaseDerivationPathKey = "BASE_DERIVATION_PATH"
	// PBKDF2IterationsKey is the key-stretching round count for mnemonic encryption
	PBKDF2IterationsKey = "PBKDF2_ITERATIONS"
	// LedgerHTTPNodesKey is the list of ledger-query node urls
	LedgerHTTPNodesKey = "LEDGER_HTTP_NODES"
	// AppHTTPNodesKey is the list of application-api node urls
	AppHTTPNodesKey = "APP_HTTP_NODES"
	// LedgerWSNodesKey is the list of ledger websocket node urls
	LedgerWSNodesKey = "LEDGER_WS_NODES"
	// MinNodesKey is the minimum number of nodes each pool must keep
	MinNodesKey = "MIN_NODES"
	// MaxNodesKey is the maximum number of nodes each pool accepts
	MaxNodesKey = "MAX_NODES"
	// MaxBroadcastAttemptsKey bounds node retries for one transfer submission
	MaxBroadcastAttemptsKey = "MAX_BROADCAST_ATTEMPTS"
	// ConfirmTimeoutKey bounds the wait for a transfer's terminal status
	ConfirmTimeoutKey = "CONFIRM_TIMEOUT"
	// PollIntervalKey is the pacing of the status poll fallback
	PollIntervalKey = "POLL_INTERVAL"
	// StreamKeyKey is the redis stream holding queued transfer outcomes
	StreamKeyKey = "STREAM_KEY"
	// StreamBatchSizeKey bounds how many entries one consumer read pulls
	StreamBatchSizeKey = "STREAM_BATCH_SIZE"
	// BlockLookupTimeoutKey bounds the block time fetch per consumed entry
	BlockLookupTimeoutKey = "BLOCK_LOOKUP_TIMEOUT"
	// PersistTimeoutKey bounds the storage write per consumed entry
	PersistTimeoutKey = "PERSIST_TIMEOUT"
	// RedisAddrKey is the address <host:port> of the redis server
	RedisAddrKey = "REDIS_ADDR"
	// RedisPasswordKey is the password of the redis server, empty disables auth
	RedisPasswordKey = "REDIS_PASSWORD"
	// PgUserKey is the postgres user
	PgUserKey = "PG_USER"
	// PgPasswordKey is the postgres password
	PgPasswordKey = "PG_PASSWORD"
	// PgHostKey is the postgres host
	PgHostKey = "PG_HOST"
	// PgPortKey is the postgres port
	PgPortKey = "PG_PORT"
	// PgNameKey is the postgres database name
	PgNameKey = "PG_NAME"
	// PgMigrationSource is the path to the migration files for postgres
	PgMigrationSource = "PG_MIGRATION_SOURCE"
	// EnableProfilerKey enables periodic logging of runtime statistics
	EnableProfilerKey = "ENABLE_PROFILER"
	// StatsIntervalKey defines the interval between runtime statistics logs
	StatsIntervalKey = "STATS_INTERVAL"
	// StatsDumpPathKey is the file the runtime metrics are dumped to on exit
	StatsDumpPathKey = "STATS_DUMP_PATH"
)

var vip *viper.Viper

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("TRANSFERD")
	vip.AutomaticEnv()

	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(ListenAddrKey, ":7074")
	vip.SetDefault(ChainIDKey, "transfernet-1")
	vip.SetDefault(HRPKey, wallet.DefaultHRP)
	vip.SetDefault(BaseDerivationPathKey, wallet.DefaultBaseDerivationPath)
	vip.SetDefault(PBKDF2IterationsKey, wallet.DefaultPBKDF2Iterations)
	vip.SetDefault(MinNodesKey, 1)
	vip.SetDefault(MaxNodesKey, 5)
	vip.SetDefault(MaxBroadcastAttemptsKey, 3)
	vip.SetDefault(ConfirmTimeoutKey, 60*time.Second)
	vip.SetDefault(PollIntervalKey, 2*time.Second)
	vip.SetDefault(StreamKeyKey, "transfer_outcomes")
	vip.SetDefault(StreamBatchSizeKey, 10)
	vip.SetDefault(BlockLookupTimeoutKey, 5*time.Second)
	vip.SetDefault(PersistTimeoutKey, 3*time.Second)
	vip.SetDefault(RedisAddrKey, "localhost:6379")
	vip.SetDefault(PgUserKey, "root")
	vip.SetDefault(PgPasswordKey, "secret")
	vip.SetDefault(PgHostKey, "127.0.0.1")
	vip.SetDefault(PgPortKey, 5432)
	vip.SetDefault(PgNameKey, "transferd")
	vip.SetDefault(PgMigrationSource, "file://internal/infrastructure/storage/db/pg/migration/")
	vip.SetDefault(EnableProfilerKey, false)
	vip.SetDefault(StatsIntervalKey, 600*time.Second)
	vip.SetDefault(StatsDumpPathKey, "stats")

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetStringSlice(key string) []string {
	return vip.GetStringSlice(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func validate() error {
	if len(GetString(ChainIDKey)) <= 0 {
		return fmt.Errorf("missing chain id")
	}
	if len(GetString(HRPKey)) <= 0 {
		return fmt.Errorf("missing address prefix")
	}
	if _, err := wallet.ParseDerivationPath(
		GetString(BaseDerivationPathKey),
	); err != nil {
		return fmt.Errorf("invalid base derivation path: %s", err)
	}
	if GetInt(PBKDF2IterationsKey) < 1 {
		return fmt.Errorf("%s must be a positive number", PBKDF2IterationsKey)
	}

	minNodes, maxNodes := GetInt(MinNodesKey), GetInt(MaxNodesKey)
	if minNodes < 1 || minNodes > maxNodes {
		return fmt.Errorf(
			"%s must be in range [1, %s]", MinNodesKey, MaxNodesKey,
		)
	}
	for _, key := range []string{
		LedgerHTTPNodesKey, AppHTTPNodesKey, LedgerWSNodesKey,
	} {
		if count := len(GetStringSlice(key)); count < minNodes || count > maxNodes {
			return fmt.Errorf(
				"%s must list between %d and %d node urls", key, minNodes, maxNodes,
			)
		}
	}

	if len(GetString(StreamKeyKey)) <= 0 {
		return fmt.Errorf("missing stream key")
	}
	return nil
}
