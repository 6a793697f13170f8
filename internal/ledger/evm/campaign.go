package evm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/betclaim/internal/domain"
)

// campaignABIJSON is the subset of the BetCampaign contract interface the
// claim engine uses: the global market state getters, the per-ticket
// getter, and claim(ticketId).
const campaignABIJSON = `[
  {"type":"function","name":"state","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"function","name":"outcomeTrue","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"totalTrue","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalFalse","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"totalInitialPot","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"feeBps","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"endTime","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"tickets","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
    {"name":"bettor","type":"address"},
    {"name":"side","type":"uint8"},
    {"name":"stake","type":"uint256"},
    {"name":"claimed","type":"bool"}
  ]},
  {"type":"function","name":"claim","stateMutability":"nonpayable","inputs":[{"name":"ticketId","type":"uint256"}],"outputs":[]}
]`

var campaignABI = mustParseABI(campaignABIJSON)

func mustParseABI(src string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(src))
	if err != nil {
		panic(fmt.Sprintf("evm: parsing campaign ABI: %v", err))
	}
	return parsed
}

// Campaign reads BetCampaign state and submits claims. It implements
// domain.LedgerReader always and domain.ClaimSubmitter when constructed
// with a signing key; a nil key yields a read-only instance.
type Campaign struct {
	client         *Client
	key            *ecdsa.PrivateKey
	confirmTimeout time.Duration
	logger         *slog.Logger
}

// NewCampaign creates a Campaign accessor. key may be nil for read-only use.
func NewCampaign(client *Client, key *ecdsa.PrivateKey, confirmTimeout time.Duration, logger *slog.Logger) *Campaign {
	return &Campaign{
		client:         client,
		key:            key,
		confirmTimeout: confirmTimeout,
		logger:         logger.With(slog.String("component", "ledger")),
	}
}

func (c *Campaign) contract(address string) *bind.BoundContract {
	addr := common.HexToAddress(address)
	return bind.NewBoundContract(addr, campaignABI, c.client.eth, c.client.eth, c.client.eth)
}

// MarketSnapshot reads the full market state in one pass. Any RPC failure
// wraps domain.ErrSourceUnavailable so callers can degrade instead of
// computing entitlements from a partial view.
func (c *Campaign) MarketSnapshot(ctx context.Context, address string) (domain.Market, error) {
	contract := c.contract(address)
	opts := &bind.CallOpts{Context: ctx}

	state, err := callUint8(contract, opts, "state")
	if err != nil {
		return domain.Market{}, snapshotErr(address, "state", err)
	}
	outcome, err := callBool(contract, opts, "outcomeTrue")
	if err != nil {
		return domain.Market{}, snapshotErr(address, "outcomeTrue", err)
	}
	totalTrue, err := callMicros(contract, opts, "totalTrue")
	if err != nil {
		return domain.Market{}, snapshotErr(address, "totalTrue", err)
	}
	totalFalse, err := callMicros(contract, opts, "totalFalse")
	if err != nil {
		return domain.Market{}, snapshotErr(address, "totalFalse", err)
	}
	pot, err := callMicros(contract, opts, "totalInitialPot")
	if err != nil {
		return domain.Market{}, snapshotErr(address, "totalInitialPot", err)
	}
	feeBps, err := callMicros(contract, opts, "feeBps")
	if err != nil {
		return domain.Market{}, snapshotErr(address, "feeBps", err)
	}
	endTime, err := callBig(contract, opts, "endTime")
	if err != nil {
		return domain.Market{}, snapshotErr(address, "endTime", err)
	}

	m := domain.Market{
		Address:          strings.ToLower(address),
		Resolved:         state == domain.LedgerStateResolved,
		OutcomeTrue:      outcome,
		TotalTrueMicros:  totalTrue,
		TotalFalseMicros: totalFalse,
		InitialPotMicros: pot,
		FeeBps:           feeBps,
		EndTime:          time.Unix(endTime.Int64(), 0).UTC(),
		FetchedAt:        time.Now().UTC(),
	}
	if err := m.Validate(); err != nil {
		return domain.Market{}, fmt.Errorf("evm: snapshot %s: %w", address, err)
	}
	return m, nil
}

// Ticket reads one stake ticket from the campaign's ticket registry.
func (c *Campaign) Ticket(ctx context.Context, address string, ticketID uint64) (domain.StakeTicket, error) {
	contract := c.contract(address)

	var out []interface{}
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "tickets", new(big.Int).SetUint64(ticketID))
	if err != nil {
		return domain.StakeTicket{}, fmt.Errorf("evm: ticket %d of %s: %v: %w", ticketID, address, err, domain.ErrSourceUnavailable)
	}
	if len(out) != 4 {
		return domain.StakeTicket{}, fmt.Errorf("evm: ticket %d of %s: unexpected %d return values", ticketID, address, len(out))
	}

	sideRaw, ok := out[1].(uint8)
	if !ok {
		return domain.StakeTicket{}, fmt.Errorf("evm: ticket %d of %s: bad side type %T", ticketID, address, out[1])
	}
	side, err := domain.SideFromLedger(sideRaw)
	if err != nil {
		return domain.StakeTicket{}, fmt.Errorf("evm: ticket %d of %s: %w", ticketID, address, err)
	}

	stakeRaw, ok := out[2].(*big.Int)
	if !ok {
		return domain.StakeTicket{}, fmt.Errorf("evm: ticket %d of %s: bad stake type %T", ticketID, address, out[2])
	}
	stake, err := micros(stakeRaw)
	if err != nil {
		return domain.StakeTicket{}, fmt.Errorf("evm: ticket %d of %s: %w", ticketID, address, err)
	}

	claimed, ok := out[3].(bool)
	if !ok {
		return domain.StakeTicket{}, fmt.Errorf("evm: ticket %d of %s: bad claimed type %T", ticketID, address, out[3])
	}

	return domain.StakeTicket{
		ID:          ticketID,
		Market:      strings.ToLower(address),
		Side:        side,
		StakeMicros: stake,
		Claimed:     claimed,
	}, nil
}

// SubmitClaim sends claim(ticketId) and waits for the receipt. A reverted
// transaction, a declined signature, or a confirmation timeout all wrap
// domain.ErrClaimRejected; the caller reverts the ticket to Unclaimed and
// may retry later.
func (c *Campaign) SubmitClaim(ctx context.Context, address string, ticketID uint64) (string, error) {
	if c.key == nil {
		return "", fmt.Errorf("evm: claim %d of %s: no signing key configured", ticketID, address)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.client.chainID)
	if err != nil {
		return "", fmt.Errorf("evm: claim %d of %s: transactor: %w", ticketID, address, err)
	}
	opts.Context = ctx

	tx, err := c.contract(address).Transact(opts, "claim", new(big.Int).SetUint64(ticketID))
	if err != nil {
		return "", fmt.Errorf("evm: claim %d of %s: %v: %w", ticketID, address, err, domain.ErrClaimRejected)
	}

	c.logger.InfoContext(ctx, "claim transaction submitted",
		slog.String("market", address),
		slog.Uint64("ticket_id", ticketID),
		slog.String("tx", tx.Hash().Hex()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, c.client.eth, tx)
	if err != nil {
		return "", fmt.Errorf("evm: claim %d of %s: confirmation: %v: %w", ticketID, address, err, domain.ErrClaimRejected)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("evm: claim %d of %s: tx %s reverted: %w", ticketID, address, tx.Hash().Hex(), domain.ErrClaimRejected)
	}

	return tx.Hash().Hex(), nil
}

// --- typed call helpers ---

func snapshotErr(address, method string, err error) error {
	return fmt.Errorf("evm: snapshot %s: %s: %v: %w", address, method, err, domain.ErrSourceUnavailable)
}

func callBig(c *bind.BoundContract, opts *bind.CallOpts, method string) (*big.Int, error) {
	var out []interface{}
	if err := c.Call(opts, &out, method); err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s returned %T, want *big.Int", method, out[0])
	}
	return v, nil
}

func callMicros(c *bind.BoundContract, opts *bind.CallOpts, method string) (int64, error) {
	v, err := callBig(c, opts, method)
	if err != nil {
		return 0, err
	}
	return micros(v)
}

func callBool(c *bind.BoundContract, opts *bind.CallOpts, method string) (bool, error) {
	var out []interface{}
	if err := c.Call(opts, &out, method); err != nil {
		return false, err
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s returned %T, want bool", method, out[0])
	}
	return v, nil
}

func callUint8(c *bind.BoundContract, opts *bind.CallOpts, method string) (uint8, error) {
	var out []interface{}
	if err := c.Call(opts, &out, method); err != nil {
		return 0, err
	}
	v, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("%s returned %T, want uint8", method, out[0])
	}
	return v, nil
}

// micros narrows a uint256 amount to the engine's int64 fixed-point range.
func micros(v *big.Int) (int64, error) {
	if !v.IsInt64() || v.Sign() < 0 {
		return 0, fmt.Errorf("value %s: %w", v, domain.ErrAmountOverflow)
	}
	return v.Int64(), nil
}

// Compile-time interface checks.
var (
	_ domain.LedgerReader   = (*Campaign)(nil)
	_ domain.ClaimSubmitter = (*Campaign)(nil)
)
