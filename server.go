package main

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/lightningnetwork/lnd/healthcheck"
	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/yuvprotocol/yuvd/controller"
	"github.com/yuvprotocol/yuvd/eventbus"
	"github.com/yuvprotocol/yuvd/graph"
	"github.com/yuvprotocol/yuvd/indexer"
	"github.com/yuvprotocol/yuvd/p2p"
	"github.com/yuvprotocol/yuvd/pipeline"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
)

const (
	chainCheckInterval = time.Minute
	chainCheckTimeout  = 30 * time.Second
	chainCheckBackoff  = 5 * time.Second
	chainCheckAttempts = 3
)

// server owns every long-running component of the node and starts/stops
// them in dependency order.
type server struct {
	started  int32
	shutdown int32

	cfg *config

	db      *store.DB
	backend kvdb.Backend

	bus          *eventbus.Bus
	peers        *p2p.PeerManager
	ctrl         *controller.Controller
	builder      *graph.Builder
	pipe         *pipeline.Service
	idx          *indexer.BitcoinIndexer
	confirmWatch *indexer.ConfirmationSubindexer
	emulator     *txcheck.Emulator

	chainClient *rpcclient.Client
	healthMon   *healthcheck.Monitor

	// requestShutdown asks the process to wind down; it is handed to the
	// indexer and the health monitor as their terminal-failure escape.
	requestShutdown func()
}

// newServer wires every component together but starts nothing.
func newServer(cfg *config, requestShutdown func()) (*server, error) {
	backend, err := kvdb.Create(
		kvdb.BoltBackendName,
		filepath.Join(cfg.Storage.DataDir, "yuv.db"),
		true, kvdb.DefaultDBTimeout,
	)
	if err != nil {
		return nil, err
	}

	db, err := store.Open(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	chainClient, err := newChainClient(cfg.Bitcoind)
	if err != nil {
		backend.Close()
		return nil, err
	}

	bus := eventbus.New()

	peers := p2p.NewPeerManager(cfg.P2P.Listen, cfg.P2P.Connect)

	ctrl := controller.New(db, bus, peers).
		WithMaxInvSize(cfg.P2P.MaxInvSize).
		WithInvSharingInterval(cfg.P2P.InvSharingInterval)
	peers.SetMessageHandler(ctrl.HandleP2PMessage)

	builder := graph.NewBuilder(db).
		WithCleanupPeriod(cfg.Graph.CleanupPeriod).
		WithOutdatedDuration(cfg.Graph.TxOutdatedDuration)

	pipe := pipeline.New(
		db, txcheck.NewContextualChecker(db), builder, bus,
		activeNetParams.Params,
	)

	confirmWatch := indexer.NewConfirmationSubindexer(bus)

	idx := indexer.NewBitcoinIndexer(
		db, chainClient, activeNetParams.yuvNetwork, requestShutdown,
	).
		WithConfirmations(cfg.Indexer.Confirmations).
		WithPollInterval(cfg.Indexer.PollInterval).
		WithStartHeight(cfg.Indexer.StartHeight)
	if cfg.Indexer.Reindex {
		idx = idx.WithReindex()
	}
	idx.AddSubindexer(indexer.NewAnnouncementSubindexer(bus, activeNetParams.yuvNetwork))
	idx.AddSubindexer(confirmWatch)

	chainCheck := healthcheck.NewObservation(
		"chain backend",
		func() error {
			_, err := chainClient.GetBlockCount()
			return err
		},
		chainCheckInterval, chainCheckTimeout, chainCheckBackoff,
		chainCheckAttempts,
	)
	healthMon := healthcheck.NewMonitor(&healthcheck.Config{
		Checks: []*healthcheck.Observation{chainCheck},
		Shutdown: func(format string, params ...interface{}) {
			srvrLog.Criticalf(format, params...)
			requestShutdown()
		},
	})

	return &server{
		cfg:             cfg,
		db:              db,
		backend:         backend,
		bus:             bus,
		peers:           peers,
		ctrl:            ctrl,
		builder:         builder,
		pipe:            pipe,
		idx:             idx,
		confirmWatch:    confirmWatch,
		emulator:        txcheck.NewEmulator(db, activeNetParams.Params),
		chainClient:     chainClient,
		healthMon:       healthMon,
		requestShutdown: requestShutdown,
	}, nil
}

// newChainClient dials the backing Bitcoin node over JSON-RPC. bitcoind
// speaks plain HTTP POST; btcd requires its TLS certificate.
func newChainClient(cfg *bitcoindConfig) (*rpcclient.Client, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.RPCHost,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	if cfg.RPCCert != "" {
		cert, err := os.ReadFile(cfg.RPCCert)
		if err != nil {
			return nil, err
		}
		connCfg.Certificates = cert
		connCfg.DisableTLS = false
		connCfg.HTTPPostMode = false
	}

	return rpcclient.New(connCfg, nil)
}

// Start brings the node up: consumers before producers, the indexer last so
// nothing it emits is dropped.
func (s *server) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}

	srvrLog.Infof("Starting yuv server on %s", s.cfg.Network)

	if err := s.builder.Start(); err != nil {
		return err
	}
	if err := s.pipe.Start(); err != nil {
		return err
	}
	if err := s.ctrl.Start(); err != nil {
		return err
	}
	if err := s.peers.Start(); err != nil {
		return err
	}
	if err := s.healthMon.Start(); err != nil {
		return err
	}

	return s.idx.Start()
}

// Stop tears the node down in reverse order and flushes storage.
func (s *server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.shutdown, 0, 1) {
		return nil
	}

	srvrLog.Infof("Stopping yuv server")

	if err := s.idx.Stop(); err != nil {
		srvrLog.Errorf("failed to stop indexer: %v", err)
	}
	if err := s.healthMon.Stop(); err != nil {
		srvrLog.Errorf("failed to stop health monitor: %v", err)
	}
	if err := s.peers.Stop(); err != nil {
		srvrLog.Errorf("failed to stop peer manager: %v", err)
	}
	if err := s.ctrl.Stop(); err != nil {
		srvrLog.Errorf("failed to stop controller: %v", err)
	}
	if err := s.pipe.Stop(); err != nil {
		srvrLog.Errorf("failed to stop pipeline: %v", err)
	}
	if err := s.builder.Stop(); err != nil {
		srvrLog.Errorf("failed to stop graph builder: %v", err)
	}

	s.chainClient.Shutdown()

	return s.db.Close()
}
