package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/urfave/cli"
)

const defaultRPCAddr = "http://localhost:18332"

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[yuvctl] %v\n", err)
	os.Exit(1)
}

// client is a minimal JSON-RPC client for yuvd's HTTP surface.
type client struct {
	addr string
}

func getClient(ctx *cli.Context) *client {
	return &client{addr: ctx.GlobalString("rpcserver")}
}

// call performs one JSON-RPC request and returns the raw result.
func (c *client) call(method string, params ...interface{}) (json.RawMessage, error) {
	marshalled := make([]json.RawMessage, 0, len(params))
	for _, param := range params {
		raw, err := json.Marshal(param)
		if err != nil {
			return nil, err
		}
		marshalled = append(marshalled, raw)
	}

	req := btcjson.Request{
		Jsonrpc: btcjson.RpcVersion1,
		Method:  method,
		Params:  marshalled,
		ID:      1,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpResp, err := http.Post(c.addr, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	var resp btcjson.Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Result, nil
}

func printResult(raw json.RawMessage) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "    "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(out.String())
}

func main() {
	app := cli.NewApp()
	app.Name = "yuvctl"
	app.Usage = "control plane for your yuvd daemon"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rpcserver",
			Value: defaultRPCAddr,
			Usage: "URL of the yuvd JSON-RPC server",
		},
	}
	app.Commands = []cli.Command{
		provideYuvProofCommand,
		getRawYuvTransactionCommand,
		listYuvTransactionsCommand,
		isYuvTxOutFrozenCommand,
		emulateYuvTransactionCommand,
		getChromaInfoCommand,
		sendRawYuvTxCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}
