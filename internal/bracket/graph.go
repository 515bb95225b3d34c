package bracket

type Role string

const (
	RoleWinner Role = "winner"
	RoleLoser  Role = "loser"
)

// Feeder is a match whose result fills a seat of a later match.
type Feeder struct {
	Source int
	Seat   int
	Role   Role
}

// Graph answers which matches feed into a given match. It is read-only once built.
type Graph struct {
	layout  *Layout
	numbers []int
}

func NewGraph(layout *Layout) *Graph {
	return &Graph{layout: layout, numbers: layout.MatchNumbers()}
}

func (g *Graph) MatchNumbers() []int {
	return g.numbers
}

func (g *Graph) Connection(matchNumber int) (Connection, bool) {
	c, ok := g.layout.Connections[matchNumber]
	return c, ok
}

// FeedersOf lists feeders of target in ascending source match order. A source
// may appear twice when both its winner and loser route into target.
func (g *Graph) FeedersOf(target int) []Feeder {
	var feeders []Feeder
	for _, source := range g.numbers {
		c := g.layout.Connections[source]
		if c.Win.RoutesTo(target) {
			feeders = append(feeders, Feeder{Source: source, Seat: c.Win.Seat, Role: RoleWinner})
		}
		if c.Lose.RoutesTo(target) {
			feeders = append(feeders, Feeder{Source: source, Seat: c.Lose.Seat, Role: RoleLoser})
		}
	}
	return feeders
}
