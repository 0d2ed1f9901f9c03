// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package electrum

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/require"
)

// TestScriptHash checks the hash-and-reverse convention against the sha256
// of the empty script.
func TestScriptHash(t *testing.T) {
	t.Parallel()

	// sha256("") reversed.
	require.Equal(t,
		"55b852781b9995a44c939b64e441ae2724b96f99c8f4fb9a141cfc9842c4b0e3",
		ScriptHash(nil))
}

// TestAddressScriptHash checks the documented protocol example: the script
// hash of the P2PKH script for a known mainnet address.
func TestAddressScriptHash(t *testing.T) {
	t.Parallel()

	scriptHash, err := AddressScriptHash(
		"1HZwkjkeaoZfTSaJxDw6aKkxp45agDiEzN", &chaincfg.MainNetParams)
	require.NoError(t, err)
	require.Equal(t,
		"8b01df4e368ea28f8dc0423bcf7a4923e3a12d307c875e47a0cfbf90b5c39161",
		scriptHash)

	_, err = AddressScriptHash("not an address", &chaincfg.MainNetParams)
	require.Error(t, err)

	// Decoding against the wrong network fails rather than producing a
	// hash for the wrong script.
	_, err = AddressScriptHash("1HZwkjkeaoZfTSaJxDw6aKkxp45agDiEzN",
		&chaincfg.TestNet3Params)
	require.Error(t, err)
}
