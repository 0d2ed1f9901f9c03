// Copyright (c) 2023-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "electrumcli.conf"
	defaultLogFilename    = "electrumcli.log"
	defaultDebugLevel     = "info"
	defaultTCPPort        = 50001
	defaultTLSPort        = 50002
)

var (
	defaultHomeDir    = btcutil.AppDataDir("electrumcli", false)
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultLogFile    = filepath.Join(defaultHomeDir, defaultLogFilename)
)

// config defines the configuration options for electrumcli.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion    bool          `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile     string        `short:"C" long:"configfile" description:"Path to configuration file"`
	Server         string        `short:"s" long:"server" description:"Electrum server to connect to"`
	Port           uint16        `short:"p" long:"port" description:"Server port (default: 50001, or 50002 with --tls)"`
	TLS            bool          `long:"tls" description:"Connect using TLS"`
	SkipVerify     bool          `long:"skipverify" description:"Skip TLS certificate verification -- NOTE: this is only intended for servers you control or explicitly trust"`
	Proxy          string        `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050); required for .onion servers"`
	ProxyUser      string        `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass      string        `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	TorIsolation   bool          `long:"torisolation" description:"Enable Tor stream isolation by randomizing proxy credentials"`
	Timeout        time.Duration `long:"timeout" description:"Timeout for a call to complete.  Valid time units are {s, m, h}"`
	TestNet3       bool          `long:"testnet" description:"Use the test network"`
	RegressionTest bool          `long:"regtest" description:"Use the regression test network"`
	DebugLevel     string        `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
}

// chainParams returns the chain parameters for the network the config
// selects.  Used for decoding addresses into script hashes.
func (cfg *config) chainParams() *chaincfg.Params {
	switch {
	case cfg.TestNet3:
		return &chaincfg.TestNet3Params
	case cfg.RegressionTest:
		return &chaincfg.RegressionNetParams
	default:
		return &chaincfg.MainNetParams
	}
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, []string, error) {
	cfg := config{
		ConfigFile: defaultConfigFile,
		DebugLevel: defaultDebugLevel,
	}

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		return nil, nil, err
	}

	if preCfg.ShowVersion {
		fmt.Printf("electrumcli version %s\n", version())
		os.Exit(0)
	}

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		// A missing default config file is fine; a missing file the
		// user asked for is not.
		if _, ok := err.(*os.PathError); !ok ||
			preCfg.ConfigFile != defaultConfigFile {

			return nil, nil, err
		}
	}

	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
		return nil, nil, err
	}

	if cfg.Server == "" {
		return nil, nil, fmt.Errorf("no server specified -- use " +
			"--server")
	}
	if cfg.TestNet3 && cfg.RegressionTest {
		return nil, nil, fmt.Errorf("--testnet and --regtest are " +
			"mutually exclusive")
	}
	if !validDebugLevel(cfg.DebugLevel) {
		return nil, nil, fmt.Errorf("invalid debuglevel %q",
			cfg.DebugLevel)
	}

	if cfg.Port == 0 {
		if cfg.TLS {
			cfg.Port = defaultTLSPort
		} else {
			cfg.Port = defaultTCPPort
		}
	}

	return &cfg, remainingArgs, nil
}
