package landlord

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/cartridge/landlord/internal/cards"
)

var (
	// ErrIllegalMove is returned when a play is not among the legal moves of
	// the seat to act.
	ErrIllegalMove = errors.New("landlord: illegal move")
	// ErrGameOver is returned when acting after the game was decided.
	ErrGameOver = errors.New("landlord: game is over")
	// ErrNotScripted is returned when PlayScripted is called for a seat
	// without a scripted policy.
	ErrNotScripted = errors.New("landlord: seat has no scripted policy")
)

// Seat identifies a player. The landlord always acts first, followed by the
// farmer after it and then the farmer before it.
type Seat int

const (
	Landlord Seat = iota
	DownFarmer
	UpFarmer
	NumSeats
)

func (s Seat) Next() Seat { return (s + 1) % NumSeats }

func (s Seat) String() string {
	switch s {
	case Landlord:
		return "landlord"
	case DownFarmer:
		return "farmer-down"
	case UpFarmer:
		return "farmer-up"
	}
	return fmt.Sprintf("Seat(%d)", int(s))
}

// Result is the game outcome from the landlord's perspective.
type Result int

const (
	Undecided Result = iota
	LandlordWins
	LandlordLoses
)

func (r Result) String() string {
	switch r {
	case Undecided:
		return "undecided"
	case LandlordWins:
		return "landlord-wins"
	case LandlordLoses:
		return "landlord-loses"
	}
	return fmt.Sprintf("Result(%d)", int(r))
}

const (
	handSize  = 17
	kittySize = 3
)

// View is what a scripted seat may look at when choosing a move.
type View struct {
	Seat     Seat
	Hand     cards.Vector
	Last     *Move
	LastSeat Seat
	Left     [NumSeats]int
}

// SeatPolicy chooses a move for a non-learning seat.
type SeatPolicy interface {
	SelectMove(view View, moves []Move) (int, error)
}

// Play is the outcome of one seat acting.
type Play struct {
	Seat   Seat
	Move   Move
	Result Result
	Next   Seat
}

// Game holds one deal and its turn state.
type Game struct {
	rng      *rand.Rand
	policies [NumSeats]SeatPolicy
	hands    [NumSeats]cards.Vector
	toAct    Seat
	last     *Move
	lastSeat Seat
	passes   int
	result   Result
	history  []Play
}

// NewGame creates a game whose farmers are driven by the given policies.
func NewGame(rng *rand.Rand, down, up SeatPolicy) *Game {
	g := &Game{rng: rng}
	g.policies[DownFarmer] = down
	g.policies[UpFarmer] = up
	return g
}

// Reset shuffles and deals a new game. The landlord receives the kitty.
func (g *Game) Reset() {
	deck := cards.FullDeck()
	g.rng.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	var hands [NumSeats]cards.Vector
	hands[Landlord] = cards.CardsToVector(deck[:handSize+kittySize])
	hands[DownFarmer] = cards.CardsToVector(deck[handSize+kittySize : 2*handSize+kittySize])
	hands[UpFarmer] = cards.CardsToVector(deck[2*handSize+kittySize:])
	g.Deal(hands)
}

// Deal starts a game from fixed hands, with the landlord to act.
func (g *Game) Deal(hands [NumSeats]cards.Vector) {
	g.hands = hands
	g.toAct = Landlord
	g.last = nil
	g.lastSeat = Landlord
	g.passes = 0
	g.result = Undecided
	g.history = g.history[:0]
}

func (g *Game) Hand(seat Seat) cards.Vector { return g.hands[seat] }

func (g *Game) ToAct() Seat { return g.toAct }

func (g *Game) Result() Result { return g.result }

// History returns every play made since the deal.
func (g *Game) History() []Play { return g.history }

// LegalMoves lists the moves available to the seat to act.
func (g *Game) LegalMoves() []Move {
	return LegalMoves(g.hands[g.toAct], g.last)
}

// LegalActions lists the legal moves as card counts.
func (g *Game) LegalActions() []cards.Vector {
	moves := g.LegalMoves()
	out := make([]cards.Vector, len(moves))
	for i, m := range moves {
		out[i] = m.Cards
	}
	return out
}

// ApplyMove plays v for the seat to act. v must equal one of the legal moves.
func (g *Game) ApplyMove(v cards.Vector) (Play, error) {
	if g.result != Undecided {
		return Play{}, ErrGameOver
	}
	for _, m := range g.LegalMoves() {
		if m.Cards == v {
			return g.apply(m), nil
		}
	}
	return Play{}, fmt.Errorf("%w: %s cannot play %v", ErrIllegalMove, g.toAct, v)
}

// PlayScripted lets the scripted policy of the seat to act choose and play.
func (g *Game) PlayScripted() (Play, error) {
	if g.result != Undecided {
		return Play{}, ErrGameOver
	}
	policy := g.policies[g.toAct]
	if policy == nil {
		return Play{}, fmt.Errorf("%w: %s", ErrNotScripted, g.toAct)
	}
	moves := g.LegalMoves()
	idx, err := policy.SelectMove(g.view(), moves)
	if err != nil {
		return Play{}, fmt.Errorf("%s policy: %w", g.toAct, err)
	}
	if idx < 0 || idx >= len(moves) {
		return Play{}, fmt.Errorf("%w: %s policy chose move %d of %d", ErrIllegalMove, g.toAct, idx, len(moves))
	}
	return g.apply(moves[idx]), nil
}

func (g *Game) view() View {
	v := View{
		Seat:     g.toAct,
		Hand:     g.hands[g.toAct],
		Last:     g.last,
		LastSeat: g.lastSeat,
	}
	for s := range g.hands {
		v.Left[s] = g.hands[s].Len()
	}
	return v
}

func (g *Game) apply(m Move) Play {
	seat := g.toAct
	if m.Kind == KindPass {
		g.passes++
		if g.passes == int(NumSeats)-1 {
			g.last = nil
			g.passes = 0
		}
	} else {
		g.hands[seat] = g.hands[seat].Sub(m.Cards)
		played := m
		g.last = &played
		g.lastSeat = seat
		g.passes = 0
		if g.hands[seat].IsZero() {
			if seat == Landlord {
				g.result = LandlordWins
			} else {
				g.result = LandlordLoses
			}
		}
	}
	g.toAct = seat.Next()
	p := Play{Seat: seat, Move: m, Result: g.result, Next: g.toAct}
	g.history = append(g.history, p)
	return p
}
