package domain

// Entitlement is the derived claim status for one ticket. It is recomputed
// on every reconciliation pass and never cached across resolution-state
// changes.
type Entitlement struct {
	TicketID uint64
	IsWinner bool
	// PayoutMicros is the floor-rounded proportional share of the
	// distributable pool; 0 for losers and for already-claimed tickets.
	PayoutMicros int64
	// AlreadyClaimedElsewhere is set when the ledger reports the ticket
	// claimed but the bookkeeping service has no payout record for it.
	// It is a staleness signal, not an error; the ticket must not be
	// offered for claiming again.
	AlreadyClaimedElsewhere bool
}

// CampaignRecord is the bookkeeping service's cached view of one campaign.
// Its resolution signal can legitimately run ahead of the ledger (its oracle
// feed resolves first); the resolver honors it provisionally.
type CampaignRecord struct {
	Address     string `json:"address"`
	Resolved    bool   `json:"is_resolved"`
	OutcomeTrue bool   `json:"outcome"`
}

// BetRecord is one user-bet row from the off-chain bookkeeping service.
// All fields are advisory cache only; the ledger ticket is authoritative.
type BetRecord struct {
	TicketID        uint64 `json:"ticket_id"`
	CampaignAddress string `json:"campaign_address"`
	Side            uint8  `json:"side"`
	StakeMicros     int64  `json:"stake"`
	Claimed         bool   `json:"claimed"`
	PayoutMicros    int64  `json:"payout"`
}
