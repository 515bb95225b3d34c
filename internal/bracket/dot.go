package bracket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const dotSeparator = "."

// Dot is a routing target in dot notation. "5.2" routes into seat 2 of
// match 5, while a token without a separator ("1st", "final") is terminal
// and routes nowhere.
type Dot struct {
	routed      bool
	MatchNumber int
	Seat        int
	Token       string
}

func RoutedDot(matchNumber, seat int) Dot {
	return Dot{
		routed:      true,
		MatchNumber: matchNumber,
		Seat:        seat,
		Token:       fmt.Sprintf("%d%s%d", matchNumber, dotSeparator, seat),
	}
}

func TerminalDot(token string) Dot {
	return Dot{Token: token}
}

// ParseDot does no range checking. Non-numeric parts around the separator
// leave the number or seat at zero, which never matches a real match. Only
// the first two segments are read, so "5.2.1" still routes into seat 2.
func ParseDot(token string) Dot {
	before, after, found := strings.Cut(token, dotSeparator)
	if !found {
		return TerminalDot(token)
	}
	seatPart, _, _ := strings.Cut(after, dotSeparator)

	matchNumber, _ := strconv.Atoi(before)
	seat, _ := strconv.Atoi(seatPart)

	return Dot{
		routed:      true,
		MatchNumber: matchNumber,
		Seat:        seat,
		Token:       token,
	}
}

func (d Dot) IsRouted() bool {
	return d.routed
}

func (d Dot) RoutesTo(matchNumber int) bool {
	return d.routed && d.MatchNumber == matchNumber
}

func (d Dot) String() string {
	return d.Token
}

func (d Dot) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Token)
}

func (d *Dot) UnmarshalJSON(data []byte) error {
	var token *string
	if err := json.Unmarshal(data, &token); err != nil {
		return fmt.Errorf("dot must be a string: %w", err)
	}
	if token == nil {
		*d = TerminalDot("")
		return nil
	}
	*d = ParseDot(*token)
	return nil
}
