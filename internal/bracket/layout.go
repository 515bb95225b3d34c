package bracket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

var (
	ErrLayoutParse        = errors.New("bracket layout is not valid JSON")
	ErrNoConnections      = errors.New("bracket layout has no connections")
	ErrInvalidMatchNumber = errors.New("bracket layout has an invalid match number")
)

type Connection struct {
	Win  Dot `json:"win"`
	Lose Dot `json:"lose"`
}

type Layout struct {
	Connections map[int]Connection
}

type layoutDocument struct {
	Connections map[string]Connection `json:"connections"`
}

func ParseLayout(raw string) (*Layout, error) {
	var doc layoutDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLayoutParse, err)
	}
	if doc.Connections == nil {
		return nil, ErrNoConnections
	}

	connections := make(map[int]Connection, len(doc.Connections))
	for key, connection := range doc.Connections {
		matchNumber, err := strconv.Atoi(key)
		if err != nil || matchNumber < 1 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMatchNumber, key)
		}
		connections[matchNumber] = connection
	}

	return &Layout{Connections: connections}, nil
}

// MatchNumbers returns the layout's match numbers in ascending numeric order.
func (l *Layout) MatchNumbers() []int {
	numbers := make([]int, 0, len(l.Connections))
	for n := range l.Connections {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

func (l *Layout) MarshalJSON() ([]byte, error) {
	doc := layoutDocument{Connections: make(map[string]Connection, len(l.Connections))}
	for n, connection := range l.Connections {
		doc.Connections[strconv.Itoa(n)] = connection
	}
	return json.Marshal(doc)
}
