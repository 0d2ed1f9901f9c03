// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
)

// ScriptHash returns the Electrum script hash of the given public key
// script: the sha256 of the script in reversed hex order.  This is the key
// servers index balances, histories, and subscriptions by.
func ScriptHash(pkScript []byte) string {
	hash := chainhash.Hash(sha256.Sum256(pkScript))

	// chainhash prints in reversed byte order, which is exactly the
	// Electrum convention.
	return hash.String()
}

// AddressScriptHash returns the Electrum script hash for the pay-to-address
// script of the given address.
func AddressScriptHash(address string, params *chaincfg.Params) (string,
	error) {

	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return "", err
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return "", err
	}
	return ScriptHash(pkScript), nil
}
