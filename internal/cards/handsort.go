package cards

import "sort"

// suitGroup summarises the cards of one suit in a hand.
type suitGroup struct {
	suit  Suit
	count int
	total int
}

// stronger orders suits by card count, then by summed face value, then by
// pack order so the result never depends on hand order.
func stronger(a, b suitGroup) bool {
	if a.count != b.count {
		return a.count > b.count
	}
	if a.total != b.total {
		return a.total > b.total
	}
	return a.suit < b.suit
}

func groupSuits(hand []Card) map[Suit]suitGroup {
	groups := make(map[Suit]suitGroup, 4)
	for _, c := range hand {
		g := groups[c.Suit]
		g.suit = c.Suit
		g.count++
		g.total += c.Rank.Value()
		groups[c.Suit] = g
	}
	return groups
}

// SuitOrder returns all four suits, highest priority first, for the given
// hand and trump suit. The first two entries are the preferred suits; the
// remaining two complete the colour pairing.
func SuitOrder(hand []Card, trump Suit) [4]Suit {
	groups := groupSuits(hand)
	present := func(s Suit) bool { _, ok := groups[s]; return ok }
	pick := func(a, b Suit) (Suit, Suit) {
		if stronger(groups[a], groups[b]) {
			return a, b
		}
		return b, a
	}

	var order []Suit
	switch len(groups) {
	case 4:
		opposite, _ := pick(oppositeColour(trump))
		order = []Suit{trump, opposite, trump.Partner(), opposite.Partner()}

	case 3:
		if present(trump) {
			a, b := oppositeColour(trump)
			if present(trump.Partner()) {
				// Trump sits in the majority colour: the lone suit goes between
				// trump and its partner.
				lone := a
				if !present(a) {
					lone = b
				}
				order = []Suit{trump, lone, trump.Partner()}
			} else {
				first, second := pick(a, b)
				order = []Suit{trump, first, second}
			}
		} else {
			// Trump missing: both opposite-colour suits are present and the
			// trump partner separates them.
			first, second := pick(oppositeColour(trump))
			order = []Suit{first, trump.Partner(), second}
		}

	case 2:
		var held []Suit
		for _, s := range Suits {
			if present(s) {
				held = append(held, s)
			}
		}
		switch {
		case present(trump):
			other := held[0]
			if other == trump {
				other = held[1]
			}
			order = []Suit{trump, other}
		default:
			first, second := pick(held[0], held[1])
			order = []Suit{first, second}
		}

	default:
		order = []Suit{trump}
	}

	return completeOrder(order)
}

// oppositeColour returns the two suits whose colour differs from s.
func oppositeColour(s Suit) (Suit, Suit) {
	if s.IsBlack() {
		return Hearts, Diamonds
	}
	return Clubs, Spades
}

// completeOrder appends the suits missing from order, taking a suit of the
// opposite colour to the last placed one whenever possible.
func completeOrder(order []Suit) [4]Suit {
	var out [4]Suit
	used := make(map[Suit]bool, 4)
	for i, s := range order {
		out[i] = s
		used[s] = true
	}
	n := len(order)
	for n < 4 {
		last := out[n-1]
		a, b := oppositeColour(last)
		next := Suit(-1)
		switch {
		case !used[a]:
			next = a
		case !used[b]:
			next = b
		default:
			for _, s := range Suits {
				if !used[s] {
					next = s
					break
				}
			}
		}
		out[n] = next
		used[next] = true
		n++
	}
	return out
}

// SuitPriority maps each suit to its sort priority, 4 for the most preferred
// suit down to 1.
func SuitPriority(hand []Card, trump Suit) map[Suit]int {
	order := SuitOrder(hand, trump)
	priority := make(map[Suit]int, 4)
	for i, s := range order {
		priority[s] = 4 - i
	}
	return priority
}

// SortHand returns hand ordered descending by suit priority and then by face
// value. Hands holding fewer than two suits are returned unchanged.
func SortHand(hand []Card, trump Suit) []Card {
	out := append([]Card(nil), hand...)
	if len(groupSuits(hand)) < 2 {
		return out
	}
	priority := SuitPriority(hand, trump)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := priority[out[i].Suit], priority[out[j].Suit]
		if pi != pj {
			return pi > pj
		}
		return out[i].Rank.Value() > out[j].Rank.Value()
	})
	return out
}

// ResortAfterPlay removes played from hand. The remaining cards are only
// re-sorted when the played suit sat strictly between the highest and lowest
// priority suits held before the play; otherwise the existing order is kept.
func ResortAfterPlay(hand []Card, played Card, trump Suit) []Card {
	remaining := Remove(hand, played)

	groups := groupSuits(hand)
	var held []Suit
	for _, s := range SuitOrder(hand, trump) {
		if _, ok := groups[s]; ok {
			held = append(held, s)
		}
	}
	if len(held) == 0 || played.Suit == held[0] || played.Suit == held[len(held)-1] {
		return remaining
	}
	return SortHand(remaining, trump)
}
