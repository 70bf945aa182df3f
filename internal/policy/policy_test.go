package policy

import (
	"math/rand"
	"testing"

	"github.com/cartridge/landlord/internal/cards"
	"github.com/cartridge/landlord/internal/landlord"
)

func mustHand(t *testing.T, s string) cards.Vector {
	t.Helper()
	cs, err := cards.ParseCards(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return cards.CardsToVector(cs)
}

func TestRandomPolicy_CoversMoves(t *testing.T) {
	p := NewRandom(rand.New(rand.NewSource(1)))
	h := mustHand(t, "3 4 5 K")
	moves := landlord.LegalMoves(h, nil)

	seen := make(map[int]bool)
	for i := 0; i < 200; i++ {
		idx, err := p.SelectMove(landlord.View{Seat: landlord.DownFarmer, Hand: h}, moves)
		if err != nil {
			t.Fatalf("Failed to select move: %v", err)
		}
		if idx < 0 || idx >= len(moves) {
			t.Fatalf("Move %d out of range [0, %d)", idx, len(moves))
		}
		seen[idx] = true
	}
	if len(seen) != len(moves) {
		t.Errorf("Expected all %d moves to be chosen, got %d", len(moves), len(seen))
	}
}

func TestRandomPolicy_NoMoves(t *testing.T) {
	p := NewRandom(nil)
	if _, err := p.SelectMove(landlord.View{}, nil); err == nil {
		t.Error("Expected error for empty move list")
	}
}

func TestHeuristic_LeadsLowestLongest(t *testing.T) {
	p := NewHeuristic()
	h := mustHand(t, "3 3 3 4 K")
	moves := landlord.LegalMoves(h, nil)
	idx, err := p.SelectMove(landlord.View{Seat: landlord.DownFarmer, Hand: h}, moves)
	if err != nil {
		t.Fatal(err)
	}
	m := moves[idx]
	if m.Rank != cards.Rank3 || m.Kind != landlord.KindTrioSingle {
		t.Errorf("Expected trio of 3s with a kicker, got %v", m)
	}
}

func TestHeuristic_FollowsCheapest(t *testing.T) {
	p := NewHeuristic()
	h := mustHand(t, "5 8 K 7 7 7 7")
	last := landlord.Move{Kind: landlord.KindSingle, Rank: cards.Rank6, Length: 1}
	moves := landlord.LegalMoves(h, &last)
	view := landlord.View{
		Seat:     landlord.DownFarmer,
		Hand:     h,
		Last:     &last,
		LastSeat: landlord.Landlord,
		Left:     [landlord.NumSeats]int{15, 7, 17},
	}
	idx, err := p.SelectMove(view, moves)
	if err != nil {
		t.Fatal(err)
	}
	if moves[idx].Kind != landlord.KindSingle || moves[idx].Rank != cards.Rank7 {
		t.Errorf("Expected single 7, got %v", moves[idx])
	}
}

func TestHeuristic_BombsOnlyInDanger(t *testing.T) {
	p := NewHeuristic()
	h := mustHand(t, "4 7 7 7 7")
	last := landlord.Move{Kind: landlord.KindPair, Rank: cards.RankA, Length: 1}
	moves := landlord.LegalMoves(h, &last)
	view := landlord.View{
		Seat:     landlord.UpFarmer,
		Hand:     h,
		Last:     &last,
		LastSeat: landlord.Landlord,
		Left:     [landlord.NumSeats]int{10, 17, 5},
	}
	idx, _ := p.SelectMove(view, moves)
	if moves[idx].Kind != landlord.KindPass {
		t.Errorf("Expected pass while landlord is safe, got %v", moves[idx])
	}

	view.Left[landlord.Landlord] = 2
	idx, _ = p.SelectMove(view, moves)
	if moves[idx].Kind != landlord.KindBomb {
		t.Errorf("Expected bomb when landlord is about to win, got %v", moves[idx])
	}
}

func TestHeuristic_DoesNotOvertakePartner(t *testing.T) {
	p := NewHeuristic()
	h := mustHand(t, "K A")
	last := landlord.Move{Kind: landlord.KindSingle, Rank: cards.Rank3, Length: 1}
	moves := landlord.LegalMoves(h, &last)
	view := landlord.View{Seat: landlord.UpFarmer, Hand: h, Last: &last, LastSeat: landlord.DownFarmer}
	idx, _ := p.SelectMove(view, moves)
	if moves[idx].Kind != landlord.KindPass {
		t.Errorf("Expected pass behind partner, got %v", moves[idx])
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"heuristic", "random", ""} {
		if _, err := New(name, rand.New(rand.NewSource(1))); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New("minimax", nil); err == nil {
		t.Error("Expected error for unknown policy")
	}
}
