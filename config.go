package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "yuvd.conf"
	defaultDataDirname    = "data"
	defaultLogFilename    = "yuvd.log"
	defaultLogLevel       = "info"

	defaultRPCListen = "localhost:18332"
	defaultP2PListen = ":8455"

	defaultConfirmations      = 6
	defaultPollInterval       = 10 * time.Second
	defaultInvSharingInterval = 5 * time.Second
	defaultMaxInvSize         = 100
	defaultCleanupPeriod      = time.Hour
	defaultTxOutdatedDuration = 24 * time.Hour
	defaultBitcoindRPCHost    = "localhost:8332"
)

var defaultHomeDir = btcutilAppDataDir()

func btcutilAppDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".yuvd")
}

// bitcoindConfig is the connection to the backing Bitcoin node.
type bitcoindConfig struct {
	RPCHost string `long:"rpchost" description:"Bitcoin node RPC host:port"`
	RPCUser string `long:"rpcuser" description:"Bitcoin node RPC username"`
	RPCPass string `long:"rpcpass" description:"Bitcoin node RPC password"`
	RPCCert string `long:"rpccert" description:"Path to the Bitcoin node's TLS certificate; empty disables TLS (bitcoind)"`
}

// p2pConfig configures the YUV peer layer.
type p2pConfig struct {
	Listen  string   `long:"listen" description:"Address to listen on for inbound YUV peers; empty disables listening"`
	Connect []string `long:"connect" description:"YUV peer addresses to maintain outbound connections to"`

	MaxInvSize         int           `long:"maxinvsize" description:"Maximum txids per gossiped Inv"`
	InvSharingInterval time.Duration `long:"invinterval" description:"How often to gossip inventory to peers"`
}

// rpcConfig configures the node's own JSON-RPC surface.
type rpcConfig struct {
	Listen string `long:"listen" description:"Address for the JSON-RPC server"`
}

// indexerConfig configures the confirmation follower.
type indexerConfig struct {
	Confirmations uint32        `long:"confirmations" description:"Confirmations, counting the block itself, a block must reach before it is indexed"`
	PollInterval  time.Duration `long:"pollinterval" description:"How often to poll the Bitcoin node for new blocks"`
	StartHeight   uint32        `long:"startheight" description:"Lower bound on the first height to index"`
	Reindex       bool          `long:"reindex" description:"Discard stored progress and rescan from genesis"`
}

// storageConfig configures the embedded database.
type storageConfig struct {
	DataDir string `long:"datadir" description:"Directory holding the node's database"`
}

// graphConfig configures the attacher's TTL cleanup.
type graphConfig struct {
	CleanupPeriod      time.Duration `long:"cleanupperiod" description:"How often to sweep waiting transactions"`
	TxOutdatedDuration time.Duration `long:"txoutdated" description:"How long a transaction may wait on missing parents before it is purged"`
}

type config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	LogLevel    string `long:"loglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	Network     string `long:"network" description:"Bitcoin network to operate on {mainnet, testnet, signet, regtest, mutiny}"`

	Bitcoind *bitcoindConfig `group:"Bitcoind" namespace:"bitcoind"`
	P2P      *p2pConfig      `group:"P2P" namespace:"p2p"`
	RPC      *rpcConfig      `group:"RPC" namespace:"rpc"`
	Indexer  *indexerConfig  `group:"Indexer" namespace:"indexer"`
	Storage  *storageConfig  `group:"Storage" namespace:"storage"`
	Graph    *graphConfig    `group:"Graph" namespace:"graph"`
}

// defaultConfig seeds every knob with its default before parsing.
func defaultConfig() config {
	return config{
		ConfigFile: filepath.Join(defaultHomeDir, defaultConfigFilename),
		LogLevel:   defaultLogLevel,
		Network:    "mainnet",
		Bitcoind: &bitcoindConfig{
			RPCHost: defaultBitcoindRPCHost,
		},
		P2P: &p2pConfig{
			Listen:             defaultP2PListen,
			MaxInvSize:         defaultMaxInvSize,
			InvSharingInterval: defaultInvSharingInterval,
		},
		RPC: &rpcConfig{
			Listen: defaultRPCListen,
		},
		Indexer: &indexerConfig{
			Confirmations: defaultConfirmations,
			PollInterval:  defaultPollInterval,
		},
		Storage: &storageConfig{
			DataDir: filepath.Join(defaultHomeDir, defaultDataDirname),
		},
		Graph: &graphConfig{
			CleanupPeriod:      defaultCleanupPeriod,
			TxOutdatedDuration: defaultTxOutdatedDuration,
		},
	}
}

// loadConfig parses command line options, then the config file if present,
// then the command line again so flags always win. It also selects the
// active network parameters and sets up logging.
func loadConfig() (*config, error) {
	cfg := defaultConfig()

	preParser := flags.NewParser(&cfg, flags.Default)
	if _, err := preParser.Parse(); err != nil {
		return nil, err
	}

	if cfg.ShowVersion {
		fmt.Println(appName, "version", version())
		os.Exit(0)
	}

	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		parser := flags.NewParser(&cfg, flags.Default)
		if err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %v", err)
		}
		// Flags override file settings.
		if _, err := parser.Parse(); err != nil {
			return nil, err
		}
	}

	if err := setActiveNetParams(cfg.Network); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	logFile := filepath.Join(cfg.Storage.DataDir, defaultLogFilename)
	if err := initLogRotator(logFile); err != nil {
		return nil, err
	}
	if err := setLogLevels(cfg.LogLevel); err != nil {
		return nil, err
	}

	return &cfg, nil
}
