// Package evm reads authoritative market and ticket state from BetCampaign
// contracts over JSON-RPC and submits claim transactions. The engine mirrors
// the contract's arithmetic off-chain; this package is the only component
// that talks to the chain.
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// ClientConfig holds connection parameters for the ledger RPC endpoint.
type ClientConfig struct {
	RPCURL  string
	ChainID int64
}

// Client wraps an ethclient connection and pins the expected chain ID.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
}

// New dials the RPC endpoint and verifies it serves the configured chain.
// Connecting to the wrong chain would make every snapshot silently wrong,
// so a mismatch is a hard error.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("evm: dial %s: %w", cfg.RPCURL, err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("evm: chain id: %w", err)
	}
	if chainID.Int64() != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("evm: endpoint serves chain %d, configured for %d", chainID.Int64(), cfg.ChainID)
	}

	return &Client{eth: eth, chainID: chainID}, nil
}

// ChainID returns the verified chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Backend returns the underlying ethclient for contract binding.
func (c *Client) Backend() *ethclient.Client {
	return c.eth
}

// Close tears down the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
