package domain

import (
	"errors"
	"testing"
)

func TestClaimStateTransitions(t *testing.T) {
	tests := []struct {
		from, to ClaimState
		ok       bool
	}{
		{ClaimStateUnclaimed, ClaimStateClaiming, true},
		{ClaimStateClaiming, ClaimStateConfirmed, true},
		{ClaimStateClaiming, ClaimStateUnclaimed, true}, // rejected tx falls back
		{ClaimStateUnclaimed, ClaimStateConfirmed, false},
		{ClaimStateConfirmed, ClaimStateClaiming, false},
		{ClaimStateConfirmed, ClaimStateUnclaimed, false},
		{ClaimStateUnclaimed, ClaimStateUnclaimed, false},
	}

	for _, tc := range tests {
		got, err := tc.from.Transition(tc.to)
		if tc.ok {
			if err != nil {
				t.Fatalf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
			}
			if got != tc.to {
				t.Fatalf("%s -> %s: state = %s", tc.from, tc.to, got)
			}
		} else {
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("%s -> %s: err = %v, want ErrInvalidTransition", tc.from, tc.to, err)
			}
			if got != tc.from {
				t.Fatalf("%s -> %s: failed transition moved state to %s", tc.from, tc.to, got)
			}
		}
	}
}

func TestTicketBookLifecycle(t *testing.T) {
	book := NewTicketBook("0xcampaign")

	if err := book.Put(StakeTicket{ID: 1, Side: SideYes, StakeMicros: 100}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := book.Put(StakeTicket{ID: 2, Side: SideNo, StakeMicros: 50}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := book.Put(StakeTicket{ID: 3, Side: SideYes, StakeMicros: 0}); err == nil {
		t.Fatal("Put accepted zero stake")
	}

	if got := len(book.Unclaimed()); got != 2 {
		t.Fatalf("Unclaimed = %d tickets, want 2", got)
	}

	// Claim ticket 1: Unclaimed -> Claiming -> Confirmed.
	if err := book.Advance(1, ClaimStateClaiming); err != nil {
		t.Fatalf("Advance claiming: %v", err)
	}
	if got := len(book.Unclaimed()); got != 1 {
		t.Fatalf("ticket in Claiming still offered: %d unclaimed, want 1", got)
	}
	if err := book.Advance(1, ClaimStateConfirmed); err != nil {
		t.Fatalf("Advance confirmed: %v", err)
	}

	ticket, state, err := book.Get(1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state != ClaimStateConfirmed || !ticket.Claimed {
		t.Fatalf("state=%s claimed=%v, want confirmed/true", state, ticket.Claimed)
	}

	// Confirmed is terminal.
	if err := book.Advance(1, ClaimStateClaiming); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("re-claim of confirmed ticket: err = %v, want ErrInvalidTransition", err)
	}

	// A stale snapshot with Claimed=false must not demote the ticket.
	if err := book.Put(StakeTicket{ID: 1, Side: SideYes, StakeMicros: 100}); err != nil {
		t.Fatalf("Put refresh: %v", err)
	}
	if _, state, _ := book.Get(1); state != ClaimStateConfirmed {
		t.Fatalf("stale refresh demoted state to %s", state)
	}
}

func TestTicketBookRejectedClaimReturnsToPool(t *testing.T) {
	book := NewTicketBook("0xcampaign")
	if err := book.Put(StakeTicket{ID: 9, Side: SideYes, StakeMicros: 10}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if err := book.Advance(9, ClaimStateClaiming); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := book.Advance(9, ClaimStateUnclaimed); err != nil {
		t.Fatalf("Advance back: %v", err)
	}

	if got := len(book.Unclaimed()); got != 1 {
		t.Fatalf("rejected ticket not back in pool: %d unclaimed, want 1", got)
	}
}
