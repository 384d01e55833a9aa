package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/urfave/cli"

	"github.com/yuvprotocol/yuvd/txcheck"
)

var provideYuvProofCommand = cli.Command{
	Name:      "provideyuvproof",
	Usage:     "submit a yuv transaction for validation.",
	ArgsUsage: "yuvtx-hex",
	Action:    provideYuvProof,
}

func provideYuvProof(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "provideyuvproof")
	}

	result, err := getClient(ctx).call("provideyuvproof", ctx.Args().First())
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

var getRawYuvTransactionCommand = cli.Command{
	Name:      "getrawyuvtransaction",
	Usage:     "look up a yuv transaction's state by txid.",
	ArgsUsage: "txid",
	Action:    getRawYuvTransaction,
}

func getRawYuvTransaction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "getrawyuvtransaction")
	}

	result, err := getClient(ctx).call("getrawyuvtransaction", ctx.Args().First())
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

var listYuvTransactionsCommand = cli.Command{
	Name:      "listyuvtransactions",
	Usage:     "list attached yuv transactions, one page at a time.",
	ArgsUsage: "page",
	Action:    listYuvTransactions,
}

func listYuvTransactions(ctx *cli.Context) error {
	page := uint64(0)
	if ctx.NArg() > 0 {
		var err error
		page, err = strconv.ParseUint(ctx.Args().First(), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid page: %v", err)
		}
	}

	result, err := getClient(ctx).call("listyuvtransactions", uint32(page))
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

var isYuvTxOutFrozenCommand = cli.Command{
	Name:      "isyuvtxoutfrozen",
	Usage:     "check whether an outpoint is frozen.",
	ArgsUsage: "txid vout",
	Action:    isYuvTxOutFrozen,
}

func isYuvTxOutFrozen(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return cli.ShowCommandHelp(ctx, "isyuvtxoutfrozen")
	}

	vout, err := strconv.ParseUint(ctx.Args().Get(1), 10, 32)
	if err != nil {
		return fmt.Errorf("invalid vout: %v", err)
	}

	result, err := getClient(ctx).call(
		"isyuvtxoutfrozen", ctx.Args().First(), uint32(vout),
	)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

var emulateYuvTransactionCommand = cli.Command{
	Name:      "emulateyuvtransaction",
	Usage:     "dry-run a yuv transaction through the checker without persisting.",
	ArgsUsage: "yuvtx-hex",
	Action:    emulateYuvTransaction,
}

func emulateYuvTransaction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "emulateyuvtransaction")
	}

	result, err := getClient(ctx).call("emulateyuvtransaction", ctx.Args().First())
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

var getChromaInfoCommand = cli.Command{
	Name:      "getchromainfo",
	Usage:     "fetch a chroma's announcement, supply, and owner.",
	ArgsUsage: "chroma-hex",
	Action:    getChromaInfo,
}

func getChromaInfo(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "getchromainfo")
	}

	result, err := getClient(ctx).call("getchromainfo", ctx.Args().First())
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

var sendRawYuvTxCommand = cli.Command{
	Name:      "sendrawyuvtx",
	Usage:     "broadcast the bitcoin transaction, then submit the yuv transaction for validation.",
	ArgsUsage: "yuvtx-hex",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name: "psbt",
			Usage: "base64 finalized PSBT whose extracted transaction " +
				"replaces the envelope's bitcoin transaction before sending",
		},
	},
	Action: sendRawYuvTx,
}

func sendRawYuvTx(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return cli.ShowCommandHelp(ctx, "sendrawyuvtx")
	}

	txHex := ctx.Args().First()

	// A wallet that builds with PSBTs hands us the finalized packet
	// separately; splice its extracted transaction into the envelope.
	if packetB64 := ctx.String("psbt"); packetB64 != "" {
		spliced, err := splicePsbt(txHex, packetB64)
		if err != nil {
			return err
		}
		txHex = spliced
	}

	result, err := getClient(ctx).call("sendrawyuvtx", txHex)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

// splicePsbt replaces the bitcoin transaction inside the yuv envelope with
// the transaction extracted from a finalized PSBT.
func splicePsbt(txHex, packetB64 string) (string, error) {
	raw, err := hex.DecodeString(txHex)
	if err != nil {
		return "", fmt.Errorf("invalid yuvtx hex: %v", err)
	}
	yuvTx, err := txcheck.DecodeYuvTransaction(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode yuv transaction: %v", err)
	}

	packetBytes, err := base64.StdEncoding.DecodeString(packetB64)
	if err != nil {
		return "", fmt.Errorf("invalid psbt base64: %v", err)
	}
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(packetBytes), false)
	if err != nil {
		return "", fmt.Errorf("failed to parse psbt: %v", err)
	}
	finalTx, err := psbt.Extract(packet)
	if err != nil {
		return "", fmt.Errorf("failed to extract transaction from psbt: %v", err)
	}

	yuvTx.BitcoinTx = finalTx

	var buf bytes.Buffer
	if err := txcheck.EncodeYuvTransaction(&buf, yuvTx); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
