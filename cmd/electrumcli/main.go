// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/go-electrum/electrum"
)

// commandContext carries everything a command handler needs.
type commandContext struct {
	client *electrum.Client
	params *chaincfg.Params
}

// commandHandler executes one CLI command and returns its result for
// display.  A nil result with a nil error means the handler produced its own
// output.
type commandHandler struct {
	fn      func(*commandContext, []string) (interface{}, error)
	numArgs int
	usage   string
}

var commandHandlers = map[string]commandHandler{
	"version":     {fn: handleVersion, usage: "version"},
	"ping":        {fn: handlePing, usage: "ping"},
	"banner":      {fn: handleBanner, usage: "banner"},
	"features":    {fn: handleFeatures, usage: "features"},
	"donation":    {fn: handleDonation, usage: "donation"},
	"peers":       {fn: handlePeers, usage: "peers"},
	"balance":     {fn: handleBalance, numArgs: 1, usage: "balance <address>"},
	"history":     {fn: handleHistory, numArgs: 1, usage: "history <address>"},
	"mempool":     {fn: handleMempool, numArgs: 1, usage: "mempool <address>"},
	"unspent":     {fn: handleUnspent, numArgs: 1, usage: "unspent <address>"},
	"header":      {fn: handleHeader, numArgs: 1, usage: "header <height>"},
	"headers":     {fn: handleHeaders, numArgs: 2, usage: "headers <start> <count>"},
	"tx":          {fn: handleTx, numArgs: 1, usage: "tx <txid>"},
	"rawtx":       {fn: handleRawTx, numArgs: 1, usage: "rawtx <txid>"},
	"merkle":      {fn: handleMerkle, numArgs: 2, usage: "merkle <txid> <height>"},
	"broadcast":   {fn: handleBroadcast, numArgs: 1, usage: "broadcast <rawtx-hex>"},
	"estimatefee": {fn: handleEstimateFee, numArgs: 1, usage: "estimatefee <blocks>"},
	"relayfee":    {fn: handleRelayFee, usage: "relayfee"},
	"feehist":     {fn: handleFeeHistogram, usage: "feehist"},
	"watch":       {fn: handleWatch, numArgs: 1, usage: "watch <address>"},
	"watchtip":    {fn: handleWatchTip, usage: "watchtip"},
}

func handleVersion(ctx *commandContext, args []string) (interface{}, error) {
	return ctx.client.ServerVersion()
}

func handlePing(ctx *commandContext, args []string) (interface{}, error) {
	return nil, ctx.client.Ping()
}

func handleBanner(ctx *commandContext, args []string) (interface{}, error) {
	banner, err := ctx.client.ServerBanner()
	if err != nil {
		return nil, err
	}
	fmt.Println(banner)
	return nil, nil
}

func handleFeatures(ctx *commandContext, args []string) (interface{}, error) {
	return ctx.client.ServerFeatures()
}

func handleDonation(ctx *commandContext, args []string) (interface{}, error) {
	return ctx.client.ServerDonationAddress()
}

func handlePeers(ctx *commandContext, args []string) (interface{}, error) {
	return ctx.client.ServerPeers()
}

func handleBalance(ctx *commandContext, args []string) (interface{}, error) {
	scriptHash, err := electrum.AddressScriptHash(args[0], ctx.params)
	if err != nil {
		return nil, err
	}
	return ctx.client.GetBalance(scriptHash)
}

func handleHistory(ctx *commandContext, args []string) (interface{}, error) {
	scriptHash, err := electrum.AddressScriptHash(args[0], ctx.params)
	if err != nil {
		return nil, err
	}
	return ctx.client.GetHistory(scriptHash)
}

func handleMempool(ctx *commandContext, args []string) (interface{}, error) {
	scriptHash, err := electrum.AddressScriptHash(args[0], ctx.params)
	if err != nil {
		return nil, err
	}
	return ctx.client.GetMempool(scriptHash)
}

func handleUnspent(ctx *commandContext, args []string) (interface{}, error) {
	scriptHash, err := electrum.AddressScriptHash(args[0], ctx.params)
	if err != nil {
		return nil, err
	}
	return ctx.client.ListUnspent(scriptHash)
}

func handleHeader(ctx *commandContext, args []string) (interface{}, error) {
	height, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, err
	}
	return ctx.client.BlockHeader(uint32(height))
}

func handleHeaders(ctx *commandContext, args []string) (interface{}, error) {
	start, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, err
	}
	count, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return nil, err
	}
	return ctx.client.BlockHeaders(uint32(start), uint32(count))
}

func handleTx(ctx *commandContext, args []string) (interface{}, error) {
	txHash, err := chainhash.NewHashFromStr(args[0])
	if err != nil {
		return nil, err
	}
	return ctx.client.GetTransaction(txHash)
}

func handleRawTx(ctx *commandContext, args []string) (interface{}, error) {
	txHash, err := chainhash.NewHashFromStr(args[0])
	if err != nil {
		return nil, err
	}
	return ctx.client.GetRawTransaction(txHash)
}

func handleMerkle(ctx *commandContext, args []string) (interface{}, error) {
	txHash, err := chainhash.NewHashFromStr(args[0])
	if err != nil {
		return nil, err
	}
	height, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return nil, err
	}
	return ctx.client.GetMerkle(txHash, uint32(height))
}

func handleBroadcast(ctx *commandContext, args []string) (interface{}, error) {
	// Raw bytes are passed through; the server rejects malformed
	// transactions with an RPC error that carries its reason.
	var txid string
	result, err := ctx.client.Call("blockchain.transaction.broadcast",
		args[0])
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(result, &txid); err != nil {
		return nil, err
	}
	return txid, nil
}

func handleEstimateFee(ctx *commandContext, args []string) (interface{},
	error) {

	blocks, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return nil, err
	}
	fee, err := ctx.client.EstimateFee(blocks)
	if err != nil {
		return nil, err
	}
	return fee.String(), nil
}

func handleRelayFee(ctx *commandContext, args []string) (interface{}, error) {
	fee, err := ctx.client.RelayFee()
	if err != nil {
		return nil, err
	}
	return fee.String(), nil
}

func handleFeeHistogram(ctx *commandContext, args []string) (interface{},
	error) {

	return ctx.client.FeeHistogram()
}

// handleWatch subscribes to an address and streams status changes until
// interrupted or disconnected.
func handleWatch(ctx *commandContext, args []string) (interface{}, error) {
	scriptHash, err := electrum.AddressScriptHash(args[0], ctx.params)
	if err != nil {
		return nil, err
	}
	status, statusChan, err := ctx.client.SubscribeScriptHash(scriptHash)
	if err != nil {
		return nil, err
	}
	if status != nil {
		fmt.Printf("status: %s\n", *status)
	} else {
		fmt.Println("status: no history")
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	for {
		select {
		case status, ok := <-statusChan:
			if !ok {
				return nil, electrum.ErrDisconnected
			}
			fmt.Printf("status: %s\n", status)
		case <-interrupt:
			return nil, ctx.client.UnsubscribeScriptHash(scriptHash)
		}
	}
}

// handleWatchTip subscribes to block headers and streams new tips until
// interrupted or disconnected.
func handleWatchTip(ctx *commandContext, args []string) (interface{}, error) {
	tip, tipChan, err := ctx.client.SubscribeHeaders()
	if err != nil {
		return nil, err
	}
	fmt.Printf("tip: height %d\n", tip.Height)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	for {
		select {
		case tip, ok := <-tipChan:
			if !ok {
				return nil, electrum.ErrDisconnected
			}
			fmt.Printf("tip: height %d\n", tip.Height)
		case <-interrupt:
			return nil, nil
		}
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: electrumcli [options] <command> [args]")
	fmt.Fprintln(os.Stderr, "commands:")
	names := make([]string, 0, len(commandHandlers))
	for name := range commandHandlers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s\n", commandHandlers[name].usage)
	}
}

func realMain() error {
	cfg, args, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command specified")
	}

	handler, ok := commandHandlers[args[0]]
	if !ok {
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 != handler.numArgs {
		return fmt.Errorf("usage: %s", handler.usage)
	}

	if err := initLogRotator(defaultLogFile); err != nil {
		return err
	}
	defer logRotator.Close()
	setLogLevel(cfg.DebugLevel)

	client, err := electrum.New(&electrum.ConnConfig{
		Host:          cfg.Server,
		Port:          cfg.Port,
		TLS:           cfg.TLS,
		TLSSkipVerify: cfg.SkipVerify,
		Proxy:         cfg.Proxy,
		ProxyUser:     cfg.ProxyUser,
		ProxyPass:     cfg.ProxyPass,
		TorIsolation:  cfg.TorIsolation,
		Timeout:       cfg.Timeout,
	})
	if err != nil {
		return err
	}
	defer client.Disconnect()

	result, err := handler.fn(&commandContext{
		client: client,
		params: cfg.chainParams(),
	}, args[1:])
	if err != nil {
		return err
	}
	if result != nil {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
	}
	return nil
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
