package service

import (
	"math"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
)

const (
	championToken   = "1st"
	runnerUpToken   = "2nd"
	eliminatedToken = "eliminated"
)

// Gets the nearest power of 2 while rounding up, so with input 5 it returns 8 and so on
func calcBracketSize(count int) int {
	if count <= 0 {
		return 0
	}

	// Log2 -> Ceil -> 2^^log2 to round up
	log2 := math.Ceil(math.Log2(float64(count)))
	return int(math.Pow(2, log2))
}

func generateRound1Pairs(bracketSize int) [][2]int {
	if bracketSize == 0 {
		return [][2]int{}
	}

	rounds := []int{0}
	for len(rounds) < bracketSize {
		var nextRound []int
		currentCount := len(rounds) * 2

		for _, seed := range rounds {
			nextRound = append(nextRound, seed)
			nextRound = append(nextRound, (currentCount-1)-seed)
		}
		rounds = nextRound
	}

	pairs := make([][2]int, 0, bracketSize/2)
	for i := 0; i < len(rounds); i += 2 {
		matchup := [2]int{rounds[i], rounds[i+1]}
		pairs = append(pairs, matchup)
	}

	return pairs
}

// GenerateSingleElimLayout builds the routing graph of a single elimination
// bracket for teamCount teams and returns it with the number of matches.
// Matches are numbered round by round, so every feeder has a smaller number
// than the match it feeds.
func GenerateSingleElimLayout(teamCount int) (*bracket.Layout, int) {
	layout := &bracket.Layout{Connections: make(map[int]bracket.Connection)}

	bracketSize := calcBracketSize(teamCount)
	if bracketSize < 2 {
		return layout, 0
	}
	totalRounds := int(math.Log2(float64(bracketSize)))

	offset := 0
	for r := 1; r <= totalRounds; r++ {
		matchesInRound := bracketSize >> r
		nextOffset := offset + matchesInRound

		for order := 1; order <= matchesInRound; order++ {
			matchNumber := offset + order

			if r == totalRounds {
				layout.Connections[matchNumber] = bracket.Connection{
					Win:  bracket.TerminalDot(championToken),
					Lose: bracket.TerminalDot(runnerUpToken),
				}
				continue
			}

			seat := 2
			if order%2 != 0 {
				seat = 1
			}
			layout.Connections[matchNumber] = bracket.Connection{
				Win:  bracket.RoutedDot(nextOffset+(order+1)/2, seat),
				Lose: bracket.TerminalDot(eliminatedToken),
			}
		}
		offset = nextOffset
	}

	return layout, offset
}
