// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"math"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

const (
	// clientUserAgent is reported to the server in server.version.
	clientUserAgent = "go-electrum/0.1.0"

	// protocolVersion is the Electrum protocol version negotiated in
	// server.version.
	protocolVersion = "1.4"

	// notifyWaitTimeout is the per-wait timeout used by the notification
	// pump goroutines.  Waits end on disconnect, so this is effectively
	// forever.
	notifyWaitTimeout = time.Duration(math.MaxInt64)
)

// HeadersTopic is the notification topic key for new block headers.
const HeadersTopic = "blockchain.headers.subscribe"

// ScriptHashTopic returns the notification topic key for status changes of
// the given script hash.
func ScriptHashTopic(scriptHash string) string {
	return "blockchain.scripthash.subscribe:" + scriptHash
}

// callInto issues a call and unmarshals its result payload into v.
func (c *Client) callInto(v interface{}, method string,
	params ...interface{}) error {

	result, err := c.Call(method, params...)
	if err != nil {
		return err
	}
	return json.Unmarshal(result, v)
}

// ServerVersion negotiates the protocol version with the server and returns
// its software identification.
func (c *Client) ServerVersion() (*ServerVersionResult, error) {
	result := &ServerVersionResult{}
	err := c.callInto(result, "server.version", clientUserAgent,
		protocolVersion)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Ping checks that the connection to the server is alive.  Servers also use
// it as a sign of client activity for their idle timeout.
func (c *Client) Ping() error {
	_, err := c.Call("server.ping")
	return err
}

// ServerBanner returns the server operator's banner text.
func (c *Client) ServerBanner() (string, error) {
	var banner string
	err := c.callInto(&banner, "server.banner")
	return banner, err
}

// ServerFeatures returns the features and limits the server advertises.
func (c *Client) ServerFeatures() (*ServerFeaturesResult, error) {
	result := &ServerFeaturesResult{}
	if err := c.callInto(result, "server.features"); err != nil {
		return nil, err
	}
	return result, nil
}

// ServerDonationAddress returns the server operator's donation address.
func (c *Client) ServerDonationAddress() (string, error) {
	var address string
	err := c.callInto(&address, "server.donation_address")
	return address, err
}

// ServerPeers returns the other Electrum servers this server knows about.
func (c *Client) ServerPeers() ([][]interface{}, error) {
	var peers [][]interface{}
	err := c.callInto(&peers, "server.peers.subscribe")
	return peers, err
}

// BlockHeader returns the block header at the given height.
func (c *Client) BlockHeader(height uint32) (*wire.BlockHeader, error) {
	rawHex, err := c.RawBlockHeader(height)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, err
	}
	header := &wire.BlockHeader{}
	if err := header.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return header, nil
}

// RawBlockHeader returns the hex-encoded block header at the given height.
func (c *Client) RawBlockHeader(height uint32) (string, error) {
	var rawHex string
	err := c.callInto(&rawHex, "blockchain.block.header", height)
	return rawHex, err
}

// BlockHeaders returns up to count concatenated block headers starting at
// the given height.  The server caps count at the result's Max.
func (c *Client) BlockHeaders(startHeight, count uint32) (*GetHeadersResult,
	error) {

	result := &GetHeadersResult{}
	err := c.callInto(result, "blockchain.block.headers", startHeight,
		count)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EstimateFee returns the estimated fee, per kilobyte, for a transaction to
// be confirmed within the given number of blocks.
func (c *Client) EstimateFee(confTarget int64) (btcutil.Amount, error) {
	var btcPerKB float64
	if err := c.callInto(&btcPerKB, "blockchain.estimatefee",
		confTarget); err != nil {

		return 0, err
	}
	return btcutil.NewAmount(btcPerKB)
}

// RelayFee returns the minimum fee, per kilobyte, the server's node accepts
// for relay.
func (c *Client) RelayFee() (btcutil.Amount, error) {
	var btcPerKB float64
	if err := c.callInto(&btcPerKB, "blockchain.relayfee"); err != nil {
		return 0, err
	}
	return btcutil.NewAmount(btcPerKB)
}

// FeeHistogram returns the fee histogram of the server's mempool.
func (c *Client) FeeHistogram() ([]FeeHistogramBin, error) {
	var histogram []FeeHistogramBin
	err := c.callInto(&histogram, "mempool.get_fee_histogram")
	return histogram, err
}

// GetBalance returns the confirmed and unconfirmed balances of a script
// hash.
func (c *Client) GetBalance(scriptHash string) (*GetBalanceResult, error) {
	result := &GetBalanceResult{}
	err := c.callInto(result, "blockchain.scripthash.get_balance",
		scriptHash)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetBalanceBatch returns the balances of multiple script hashes using a
// single batched round trip.  Results are in input order.  The first
// server-reported item error fails the lot; callers needing per-item
// outcomes should use CallBatch directly.
func (c *Client) GetBalanceBatch(scriptHashes []string) ([]GetBalanceResult,
	error) {

	calls := make([]BatchRequest, len(scriptHashes))
	for i, scriptHash := range scriptHashes {
		calls[i] = BatchRequest{
			Method: "blockchain.scripthash.get_balance",
			Params: []interface{}{scriptHash},
		}
	}
	results, err := c.CallBatch(calls)
	if err != nil {
		return nil, err
	}

	balances := make([]GetBalanceResult, len(results))
	for i, result := range results {
		if result.Err != nil {
			return nil, result.Err
		}
		err := json.Unmarshal(result.Result, &balances[i])
		if err != nil {
			return nil, err
		}
	}
	return balances, nil
}

// GetHistory returns the confirmed and mempool history of a script hash.
func (c *Client) GetHistory(scriptHash string) ([]GetHistoryResult, error) {
	var history []GetHistoryResult
	err := c.callInto(&history, "blockchain.scripthash.get_history",
		scriptHash)
	return history, err
}

// GetHistoryBatch returns the histories of multiple script hashes using a
// single batched round trip.  Results are in input order.
func (c *Client) GetHistoryBatch(
	scriptHashes []string) ([][]GetHistoryResult, error) {

	calls := make([]BatchRequest, len(scriptHashes))
	for i, scriptHash := range scriptHashes {
		calls[i] = BatchRequest{
			Method: "blockchain.scripthash.get_history",
			Params: []interface{}{scriptHash},
		}
	}
	results, err := c.CallBatch(calls)
	if err != nil {
		return nil, err
	}

	histories := make([][]GetHistoryResult, len(results))
	for i, result := range results {
		if result.Err != nil {
			return nil, result.Err
		}
		err := json.Unmarshal(result.Result, &histories[i])
		if err != nil {
			return nil, err
		}
	}
	return histories, nil
}

// GetMempool returns the unconfirmed transactions touching a script hash.
func (c *Client) GetMempool(scriptHash string) ([]GetHistoryResult, error) {
	var mempool []GetHistoryResult
	err := c.callInto(&mempool, "blockchain.scripthash.get_mempool",
		scriptHash)
	return mempool, err
}

// ListUnspent returns the unspent outputs of a script hash.
func (c *Client) ListUnspent(scriptHash string) ([]ListUnspentResult, error) {
	var utxos []ListUnspentResult
	err := c.callInto(&utxos, "blockchain.scripthash.listunspent",
		scriptHash)
	return utxos, err
}

// GetRawTransaction returns the hex-encoded serialized transaction with the
// given hash.
func (c *Client) GetRawTransaction(txHash *chainhash.Hash) (string, error) {
	var rawHex string
	err := c.callInto(&rawHex, "blockchain.transaction.get",
		txHash.String())
	return rawHex, err
}

// GetTransaction returns the deserialized transaction with the given hash.
func (c *Client) GetTransaction(txHash *chainhash.Hash) (*wire.MsgTx, error) {
	rawHex, err := c.GetRawTransaction(txHash)
	if err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, err
	}
	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return tx, nil
}

// BroadcastTransaction submits a transaction to the network through the
// server and returns its hash as confirmed by the server.
func (c *Client) BroadcastTransaction(tx *wire.MsgTx) (*chainhash.Hash,
	error) {

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}

	var txid string
	err := c.callInto(&txid, "blockchain.transaction.broadcast",
		hex.EncodeToString(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	return chainhash.NewHashFromStr(txid)
}

// GetMerkle returns the merkle branch proving that the given transaction is
// included in the block at the given height.
func (c *Client) GetMerkle(txHash *chainhash.Hash,
	height uint32) (*GetMerkleResult, error) {

	result := &GetMerkleResult{}
	err := c.callInto(result, "blockchain.transaction.get_merkle",
		txHash.String(), height)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SubscribeHeaders subscribes to block header notifications.  It returns the
// server's current tip along with a channel delivering each new tip.  The
// channel is closed when the connection is lost.
func (c *Client) SubscribeHeaders() (*HeaderNotification,
	<-chan *HeaderNotification, error) {

	initial := &HeaderNotification{}
	err := c.callInto(initial, "blockchain.headers.subscribe")
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan *HeaderNotification, 1)
	go func() {
		defer close(ch)
		for {
			payload, err := c.subs.popNext(HeadersTopic,
				notifyWaitTimeout)
			if err == ErrCallTimeout {
				continue
			}
			if err != nil {
				return
			}

			notification := &HeaderNotification{}
			if err := json.Unmarshal(payload,
				notification); err != nil {

				log.Warnf("Malformed header notification: %v",
					err)
				continue
			}
			select {
			case ch <- notification:
			case <-c.quit:
				return
			}
		}
	}()
	return initial, ch, nil
}

// SubscribeScriptHash subscribes to status change notifications for a script
// hash.  It returns the current status (nil when the script hash has no
// history) along with a channel delivering each new status.  The channel is
// closed when the connection is lost.  Subscriptions are ref-counted per
// script hash: only the first subscriber triggers a server round trip.
func (c *Client) SubscribeScriptHash(scriptHash string) (*string,
	<-chan string, error) {

	topic := ScriptHashTopic(scriptHash)

	var initial *string
	if c.subs.addSubscriber(topic) == 1 {
		result, err := c.Call("blockchain.scripthash.subscribe",
			scriptHash)
		if err != nil {
			c.subs.removeSubscriber(topic)
			return nil, nil, err
		}
		if err := json.Unmarshal(result, &initial); err != nil {
			return nil, nil, err
		}
	} else if payload, ok := c.subs.peek(topic); ok {
		if err := json.Unmarshal(payload, &initial); err != nil {
			return nil, nil, err
		}
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			payload, err := c.subs.popNext(topic, notifyWaitTimeout)
			if err == ErrCallTimeout {
				continue
			}
			if err != nil {
				return
			}

			var status string
			if err := json.Unmarshal(payload, &status); err != nil {
				log.Warnf("Malformed status notification for "+
					"%s: %v", scriptHash, err)
				continue
			}
			select {
			case ch <- status:
			case <-c.quit:
				return
			}
		}
	}()
	return initial, ch, nil
}

// UnsubscribeScriptHash drops one subscription to the script hash.  The
// server-side subscription is only torn down once the last subscriber is
// gone.
func (c *Client) UnsubscribeScriptHash(scriptHash string) error {
	topic := ScriptHashTopic(scriptHash)
	remaining, err := c.subs.removeSubscriber(topic)
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}

	_, err = c.Call("blockchain.scripthash.unsubscribe", scriptHash)
	return err
}
