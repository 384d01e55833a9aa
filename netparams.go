package main

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/yuvprotocol/yuvd/announcement"
)

// netParams couples the Bitcoin chain parameters with the YUV activation
// schedule for that network and the Bitcoin node's default RPC port.
type netParams struct {
	*chaincfg.Params
	rpcPort    string
	yuvNetwork announcement.Network
}

var (
	bitcoinMainNetParams = netParams{
		Params:     &chaincfg.MainNetParams,
		rpcPort:    "8334",
		yuvNetwork: announcement.NetworkMainnet,
	}

	bitcoinTestNetParams = netParams{
		Params:     &chaincfg.TestNet3Params,
		rpcPort:    "18334",
		yuvNetwork: announcement.NetworkTestnet,
	}

	bitcoinSigNetParams = netParams{
		Params:     &chaincfg.SigNetParams,
		rpcPort:    "38332",
		yuvNetwork: announcement.NetworkSignet,
	}

	bitcoinRegTestNetParams = netParams{
		Params:     &chaincfg.RegressionNetParams,
		rpcPort:    "18334",
		yuvNetwork: announcement.NetworkRegtest,
	}

	// Mutiny is a public signet with its own YUV activation schedule.
	bitcoinMutinyNetParams = netParams{
		Params:     &chaincfg.SigNetParams,
		rpcPort:    "38332",
		yuvNetwork: announcement.NetworkMutiny,
	}
)

// activeNetParams is set once at startup by loadConfig.
var activeNetParams = bitcoinMainNetParams

func setActiveNetParams(network string) error {
	switch network {
	case "mainnet":
		activeNetParams = bitcoinMainNetParams
	case "testnet":
		activeNetParams = bitcoinTestNetParams
	case "signet":
		activeNetParams = bitcoinSigNetParams
	case "regtest":
		activeNetParams = bitcoinRegTestNetParams
	case "mutiny":
		activeNetParams = bitcoinMutinyNetParams
	default:
		return fmt.Errorf("unknown network %q", network)
	}
	return nil
}
