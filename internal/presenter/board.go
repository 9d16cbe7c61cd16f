// Package presenter turns poller state into render-ready tables.
package presenter

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/elecciones-pr/tablero/internal/party"
	"github.com/elecciones-pr/tablero/internal/poller"
	"github.com/elecciones-pr/tablero/internal/results"
)

// DefaultTimeLayout matches the en-US locale date format.
const DefaultTimeLayout = "1/2/2006, 3:04:05 PM"

// Row is one candidate line of a results table.
type Row struct {
	Logo       string `json:"logo"`
	Candidate  string `json:"candidate"`
	Party      string `json:"party"`
	Votes      string `json:"votes"`
	Percentage string `json:"percentage"`
	Leader     bool   `json:"leader"`
	Winner     bool   `json:"winner"`
}

// Table is the rendered view of one contest.
type Table struct {
	Office results.Office `json:"office"`
	Title  string         `json:"title"`
	Rows   []Row          `json:"rows"`
}

// Board is everything the page shows.
type Board struct {
	Tables               []Table `json:"tables"`
	LastUpdated          string  `json:"last_updated"`
	SecondsUntilNextPoll int     `json:"seconds_until_next_poll"`
}

// Presenter builds Boards. It holds only read-only configuration, so one
// Presenter may be shared across goroutines.
type Presenter struct {
	parties party.Table
	loc     *time.Location
	layout  string
}

// New creates a Presenter. A nil loc means UTC; an empty layout means
// DefaultTimeLayout.
func New(parties party.Table, loc *time.Location, layout string) *Presenter {
	if loc == nil {
		loc = time.UTC
	}
	if layout == "" {
		layout = DefaultTimeLayout
	}
	return &Presenter{parties: parties, loc: loc, layout: layout}
}

// Build renders a snapshot. Both contests always get a table, possibly
// empty, in results.Offices order. Rows keep the feed's order.
func (p *Presenter) Build(state poller.State) Board {
	groups := results.GroupByOffice(state.Records)

	board := Board{
		Tables:               make([]Table, 0, len(results.Offices)),
		SecondsUntilNextPoll: state.SecondsUntilNextPoll,
	}
	if !state.LastUpdated.IsZero() {
		board.LastUpdated = state.LastUpdated.In(p.loc).Format(p.layout)
	}

	for _, office := range results.Offices {
		board.Tables = append(board.Tables, p.table(office, groups[office]))
	}
	return board
}

func (p *Presenter) table(office results.Office, group []results.Record) Table {
	leader := results.LeaderIndex(group)

	rows := make([]Row, len(group))
	for i, r := range group {
		logo, label := p.parties.Lookup(r.Party)
		rows[i] = Row{
			Logo:       logo,
			Candidate:  r.Candidate,
			Party:      label,
			Votes:      humanize.Comma(r.Votes),
			Percentage: r.Percentage.String(),
			Leader:     i == leader,
			Winner:     r.Winner,
		}
	}
	return Table{Office: office, Title: string(office), Rows: rows}
}
