package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/kvdb"

	"github.com/yuvprotocol/yuvd/controller"
	"github.com/yuvprotocol/yuvd/pixel"
	"github.com/yuvprotocol/yuvd/store"
	"github.com/yuvprotocol/yuvd/txcheck"
)

// rpcServer exposes the node's JSON-RPC surface over HTTP POST, framed with
// btcjson requests/responses the same way the backing Bitcoin node's RPC
// is.
type rpcServer struct {
	started  int32
	shutdown int32

	server *server
	http   *http.Server
}

func newRPCServer(s *server) *rpcServer {
	r := &rpcServer{server: s}
	r.http = &http.Server{
		Addr:    s.cfg.RPC.Listen,
		Handler: r,
	}
	return r
}

// Start begins serving RPC requests.
func (r *rpcServer) Start() error {
	if !atomic.CompareAndSwapInt32(&r.started, 0, 1) {
		return nil
	}

	rpcsLog.Infof("RPC server listening on %s", r.http.Addr)

	go func() {
		if err := r.http.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {

			rpcsLog.Errorf("RPC server failed: %v", err)
			r.server.requestShutdown()
		}
	}()

	return nil
}

// Stop shuts the HTTP listener down.
func (r *rpcServer) Stop() error {
	if !atomic.CompareAndSwapInt32(&r.shutdown, 0, 1) {
		return nil
	}
	return r.http.Close()
}

// rpcHandler executes one method; it returns a result to marshal or a
// *btcjson.RPCError.
type rpcHandler func(params []json.RawMessage) (interface{}, *btcjson.RPCError)

func (r *rpcServer) handlers() map[string]rpcHandler {
	return map[string]rpcHandler{
		"provideyuvproof":       r.provideYuvProof,
		"getrawyuvtransaction":  r.getRawYuvTransaction,
		"listyuvtransactions":   r.listYuvTransactions,
		"isyuvtxoutfrozen":      r.isYuvTxOutFrozen,
		"emulateyuvtransaction": r.emulateYuvTransaction,
		"getchromainfo":         r.getChromaInfo,
		"sendrawyuvtx":          r.sendRawYuvTx,
	}
}

func (r *rpcServer) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "JSON-RPC requires POST", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<24))
	if err != nil {
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}

	var request btcjson.Request
	if err := json.Unmarshal(body, &request); err != nil {
		writeResponse(w, nil, nil, btcjson.ErrRPCParse)
		return
	}

	handler, ok := r.handlers()[request.Method]
	if !ok {
		writeResponse(w, request.ID, nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCMethodNotFound.Code,
			Message: fmt.Sprintf("unknown method %q", request.Method),
		})
		return
	}

	result, rpcErr := handler(request.Params)
	writeResponse(w, request.ID, result, rpcErr)
}

func writeResponse(w http.ResponseWriter, id interface{}, result interface{}, rpcErr *btcjson.RPCError) {
	resp, err := btcjson.MarshalResponse(btcjson.RpcVersion1, id, result, rpcErr)
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(resp)
}

func invalidParams(format string, args ...interface{}) *btcjson.RPCError {
	return &btcjson.RPCError{
		Code:    btcjson.ErrRPCInvalidParameter,
		Message: fmt.Sprintf(format, args...),
	}
}

func internalError(err error) *btcjson.RPCError {
	return &btcjson.RPCError{
		Code:    btcjson.ErrRPCInternal.Code,
		Message: err.Error(),
	}
}

func parseStringParam(params []json.RawMessage, i int) (string, *btcjson.RPCError) {
	if i >= len(params) {
		return "", invalidParams("missing parameter %d", i)
	}
	var s string
	if err := json.Unmarshal(params[i], &s); err != nil {
		return "", invalidParams("parameter %d must be a string", i)
	}
	return s, nil
}

func parseUint32Param(params []json.RawMessage, i int) (uint32, *btcjson.RPCError) {
	if i >= len(params) {
		return 0, invalidParams("missing parameter %d", i)
	}
	var n uint32
	if err := json.Unmarshal(params[i], &n); err != nil {
		return 0, invalidParams("parameter %d must be an unsigned integer", i)
	}
	return n, nil
}

func parseYuvTxParam(params []json.RawMessage, i int) (*txcheck.YuvTransaction, *btcjson.RPCError) {
	raw, rpcErr := parseStringParam(params, i)
	if rpcErr != nil {
		return nil, rpcErr
	}

	data, err := hex.DecodeString(raw)
	if err != nil {
		return nil, invalidParams("parameter %d is not valid hex", i)
	}

	yuvTx, err := txcheck.DecodeYuvTransaction(bytes.NewReader(data))
	if err != nil {
		return nil, invalidParams("failed to decode yuv transaction: %v", err)
	}
	return yuvTx, nil
}

// provideYuvProof accepts a transaction for validation. It is released to
// the checker once the indexer sees it confirmed.
func (r *rpcServer) provideYuvProof(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
	yuvTx, rpcErr := parseYuvTxParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	r.server.confirmWatch.Observe([]*txcheck.YuvTransaction{yuvTx})
	return true, nil
}

// getRawYuvTransactionResult mirrors the transaction state machine: none,
// pending, checked, or attached with the raw transaction.
type getRawYuvTransactionResult struct {
	Status string `json:"status"`
	TxHex  string `json:"tx,omitempty"`
}

func (r *rpcServer) getRawYuvTransaction(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
	txidStr, rpcErr := parseStringParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	txid, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		return nil, invalidParams("invalid txid: %v", err)
	}

	if state, ok := r.server.ctrl.PendingState(*txid); ok {
		status := "pending"
		if state == controller.TxStateChecked {
			status = "checked"
		}
		return &getRawYuvTransactionResult{Status: status}, nil
	}

	var stored *store.StoredTx
	dbErr := r.server.db.View(func(tx kvdb.RTx) error {
		var err error
		stored, err = r.server.db.GetTransaction(tx, *txid)
		return err
	})
	if dbErr == store.ErrTransactionNotFound {
		return &getRawYuvTransactionResult{Status: "none"}, nil
	}
	if dbErr != nil {
		return nil, internalError(dbErr)
	}

	var buf bytes.Buffer
	if err := stored.Tx.Serialize(&buf); err != nil {
		return nil, internalError(err)
	}

	return &getRawYuvTransactionResult{
		Status: "attached",
		TxHex:  hex.EncodeToString(buf.Bytes()),
	}, nil
}

func (r *rpcServer) listYuvTransactions(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
	page, rpcErr := parseUint32Param(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var txids []chainhash.Hash
	err := r.server.db.View(func(tx kvdb.RTx) error {
		var err error
		txids, err = r.server.db.GetPage(tx, page)
		return err
	})
	if err == store.ErrPageNotFound {
		return []string{}, nil
	}
	if err != nil {
		return nil, internalError(err)
	}

	out := make([]string, len(txids))
	for i, txid := range txids {
		out[i] = txid.String()
	}
	return out, nil
}

func (r *rpcServer) isYuvTxOutFrozen(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
	txidStr, rpcErr := parseStringParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}
	vout, rpcErr := parseUint32Param(params, 1)
	if rpcErr != nil {
		return nil, rpcErr
	}

	txid, err := chainhash.NewHashFromStr(txidStr)
	if err != nil {
		return nil, invalidParams("invalid txid: %v", err)
	}

	var frozen bool
	dbErr := r.server.db.View(func(tx kvdb.RTx) error {
		frozen = r.server.db.IsFrozen(tx, wire.OutPoint{Hash: *txid, Index: vout})
		return nil
	})
	if dbErr != nil {
		return nil, internalError(dbErr)
	}

	return frozen, nil
}

// emulateYuvTransactionResult carries the dry-run verdict; an invalid
// transaction is a successful emulation, not an RPC error.
type emulateYuvTransactionResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func (r *rpcServer) emulateYuvTransaction(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
	yuvTx, rpcErr := parseYuvTxParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	result, err := r.server.emulator.Emulate(yuvTx)
	if err != nil {
		return nil, internalError(err)
	}

	return &emulateYuvTransactionResult{
		Valid:  result.Valid,
		Reason: result.Reason,
	}, nil
}

type getChromaInfoResult struct {
	Name        string `json:"name,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Decimal     uint8  `json:"decimal,omitempty"`
	MaxSupply   string `json:"max_supply,omitempty"`
	IsFreezable *bool  `json:"is_freezable,omitempty"`
	TotalSupply string `json:"total_supply"`
	Owner       string `json:"owner,omitempty"`
}

func (r *rpcServer) getChromaInfo(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
	chromaStr, rpcErr := parseStringParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	raw, err := hex.DecodeString(chromaStr)
	if err != nil || len(raw) != pixel.ChromaSize {
		return nil, invalidParams("chroma must be %d hex-encoded bytes", pixel.ChromaSize)
	}
	var chroma pixel.Chroma
	copy(chroma[:], raw)

	var info *store.ChromaInfo
	dbErr := r.server.db.View(func(tx kvdb.RTx) error {
		var err error
		info, err = r.server.db.GetChroma(tx, chroma)
		return err
	})
	if dbErr == store.ErrChromaNotFound {
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCInvalidParameter,
			Message: "chroma not found",
		}
	}
	if dbErr != nil {
		return nil, internalError(dbErr)
	}

	result := &getChromaInfoResult{
		TotalSupply: info.TotalSupply.BigInt().String(),
		Owner:       hex.EncodeToString(info.OwnerScript),
	}
	if ann := info.Announcement; ann != nil {
		result.Name = ann.Name
		result.Symbol = ann.Symbol
		result.Decimal = ann.Decimal
		result.IsFreezable = &ann.IsFreezable
		if ann.MaxSupply != nil {
			result.MaxSupply = ann.MaxSupply.String()
		}
	}
	return result, nil
}

// sendRawYuvTx broadcasts the underlying Bitcoin transaction, then accepts
// the yuv transaction for validation once confirmed.
func (r *rpcServer) sendRawYuvTx(params []json.RawMessage) (interface{}, *btcjson.RPCError) {
	yuvTx, rpcErr := parseYuvTxParam(params, 0)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if _, err := r.server.chainClient.SendRawTransaction(yuvTx.BitcoinTx, false); err != nil {
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCTxRejected,
			Message: fmt.Sprintf("broadcast failed: %v", err),
		}
	}

	r.server.confirmWatch.Observe([]*txcheck.YuvTransaction{yuvTx})
	return true, nil
}
