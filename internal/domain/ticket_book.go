package domain

import "fmt"

// TicketBook is the in-memory view of one user's stake tickets in one
// market, together with the claim workflow state of each ticket. A single
// logical consumer owns a book; state only changes through validated
// transitions driven by discrete external confirmations, so no internal
// locking is needed.
type TicketBook struct {
	market  string
	tickets map[uint64]StakeTicket
	states  map[uint64]ClaimState
	order   []uint64 // insertion order, for deterministic iteration
}

// NewTicketBook creates an empty book for the given market.
func NewTicketBook(market string) *TicketBook {
	return &TicketBook{
		market:  market,
		tickets: make(map[uint64]StakeTicket),
		states:  make(map[uint64]ClaimState),
	}
}

// Put inserts or refreshes a ticket snapshot. A ticket the ledger already
// reports claimed enters (or is promoted to) Confirmed; the claimed flag
// never reverts, so a Confirmed ticket stays Confirmed even if a stale
// snapshot says otherwise.
func (b *TicketBook) Put(t StakeTicket) error {
	if t.StakeMicros <= 0 {
		return fmt.Errorf("ticket %d: stake must be positive", t.ID)
	}
	if _, ok := b.tickets[t.ID]; !ok {
		b.order = append(b.order, t.ID)
		b.states[t.ID] = ClaimStateUnclaimed
	}
	if t.Claimed {
		b.states[t.ID] = ClaimStateConfirmed
	}
	b.tickets[t.ID] = t
	return nil
}

// Get returns the ticket and its claim state.
func (b *TicketBook) Get(id uint64) (StakeTicket, ClaimState, error) {
	t, ok := b.tickets[id]
	if !ok {
		return StakeTicket{}, "", fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	return t, b.states[id], nil
}

// Advance moves the ticket's claim state along a validated edge. Advancing
// to Confirmed also flips the stored ticket's Claimed flag, which never
// reverts afterwards.
func (b *TicketBook) Advance(id uint64, next ClaimState) error {
	t, ok := b.tickets[id]
	if !ok {
		return fmt.Errorf("ticket %d: %w", id, ErrNotFound)
	}
	state, err := b.states[id].Transition(next)
	if err != nil {
		return fmt.Errorf("ticket %d: %w", id, err)
	}
	b.states[id] = state
	if state == ClaimStateConfirmed {
		t.Claimed = true
		b.tickets[id] = t
	}
	return nil
}

// Market returns the market address this book belongs to.
func (b *TicketBook) Market() string { return b.market }

// Len returns the number of tickets in the book.
func (b *TicketBook) Len() int { return len(b.order) }

// All returns every ticket in insertion order.
func (b *TicketBook) All() []StakeTicket {
	out := make([]StakeTicket, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.tickets[id])
	}
	return out
}

// Unclaimed returns the tickets currently in the Unclaimed state, in
// insertion order. Tickets in Claiming or Confirmed are excluded, so a
// ticket can never be offered for a second concurrent claim.
func (b *TicketBook) Unclaimed() []StakeTicket {
	var out []StakeTicket
	for _, id := range b.order {
		if b.states[id] == ClaimStateUnclaimed {
			out = append(out, b.tickets[id])
		}
	}
	return out
}
