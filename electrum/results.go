// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ServerVersionResult is the result of a server.version call.
type ServerVersionResult struct {
	// Software identifies the server implementation, e.g.
	// "ElectrumX 1.16.0".
	Software string

	// Protocol is the protocol version the server settled on.
	Protocol string
}

// UnmarshalJSON decodes the two element [software, protocol] array the
// server returns.
func (r *ServerVersionResult) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("server.version returned %d elements, "+
			"want 2", len(pair))
	}
	r.Software, r.Protocol = pair[0], pair[1]
	return nil
}

// HostPorts describes the ports a server advertises for one of its hosts in
// server.features.
type HostPorts struct {
	TCPPort uint16 `json:"tcp_port"`
	SSLPort uint16 `json:"ssl_port"`
}

// ServerFeaturesResult is the result of a server.features call.
type ServerFeaturesResult struct {
	Hosts         map[string]HostPorts `json:"hosts"`
	GenesisHash   string               `json:"genesis_hash"`
	HashFunction  string               `json:"hash_function"`
	ServerVersion string               `json:"server_version"`
	ProtocolMin   string               `json:"protocol_min"`
	ProtocolMax   string               `json:"protocol_max"`
	Pruning       *int64               `json:"pruning"`
}

// GetBalanceResult is the result of a blockchain.scripthash.get_balance
// call.  Both amounts are in satoshis.
type GetBalanceResult struct {
	Confirmed   btcutil.Amount `json:"confirmed"`
	Unconfirmed btcutil.Amount `json:"unconfirmed"`
}

// GetHistoryResult is one entry of a blockchain.scripthash.get_history or
// get_mempool result.
type GetHistoryResult struct {
	// Height is the confirmation height of the transaction, 0 for an
	// unconfirmed transaction, and -1 for an unconfirmed transaction with
	// unconfirmed inputs.
	Height int32 `json:"height"`

	// TxHash is the hex transaction hash.
	TxHash string `json:"tx_hash"`

	// Fee is the transaction fee in satoshis.  Only set for mempool
	// transactions.
	Fee btcutil.Amount `json:"fee,omitempty"`
}

// ListUnspentResult is one entry of a blockchain.scripthash.listunspent
// result.
type ListUnspentResult struct {
	Height uint32         `json:"height"`
	TxHash string         `json:"tx_hash"`
	TxPos  uint32         `json:"tx_pos"`
	Value  btcutil.Amount `json:"value"`
}

// GetMerkleResult is the result of a blockchain.transaction.get_merkle
// call.
type GetMerkleResult struct {
	BlockHeight uint32   `json:"block_height"`
	Pos         uint32   `json:"pos"`
	Merkle      []string `json:"merkle"`
}

// GetHeadersResult is the result of a blockchain.block.headers call.
type GetHeadersResult struct {
	Count uint32 `json:"count"`
	Max   uint32 `json:"max"`
	Hex   string `json:"hex"`
}

// Headers decodes the concatenated raw headers.
func (r *GetHeadersResult) Headers() ([]*wire.BlockHeader, error) {
	raw, err := hex.DecodeString(r.Hex)
	if err != nil {
		return nil, err
	}

	reader := bytes.NewReader(raw)
	headers := make([]*wire.BlockHeader, 0, r.Count)
	for reader.Len() > 0 {
		header := &wire.BlockHeader{}
		if err := header.Deserialize(reader); err != nil {
			return nil, err
		}
		headers = append(headers, header)
	}
	return headers, nil
}

// HeaderNotification is both the result of a blockchain.headers.subscribe
// call and the payload of each subsequent notification.
type HeaderNotification struct {
	Height int32  `json:"height"`
	Hex    string `json:"hex"`
}

// Header decodes the raw header.
func (n *HeaderNotification) Header() (*wire.BlockHeader, error) {
	raw, err := hex.DecodeString(n.Hex)
	if err != nil {
		return nil, err
	}
	header := &wire.BlockHeader{}
	if err := header.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return header, nil
}

// FeeHistogramBin is one [fee, vsize] pair of a mempool.get_fee_histogram
// result.
type FeeHistogramBin struct {
	// Fee is the bin's fee rate in sat/vbyte.
	Fee float64

	// VSize is the total virtual size, in vbytes, of the mempool
	// transactions paying at least Fee.
	VSize uint64
}

// UnmarshalJSON decodes the two element [fee, vsize] array form.
func (b *FeeHistogramBin) UnmarshalJSON(data []byte) error {
	var pair [2]float64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	b.Fee = pair[0]
	b.VSize = uint64(pair[1])
	return nil
}
