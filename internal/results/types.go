package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Office identifies the contest a candidate runs in, as reported in the
// Puesto field of the results feed.
type Office string

const (
	OfficeGovernor     Office = "Gobernador"
	OfficeCommissioner Office = "Comisionado Residente"
)

// Offices lists the displayed contests in board order.
var Offices = []Office{OfficeGovernor, OfficeCommissioner}

// Known reports whether the office is one of the displayed contests.
func (o Office) Known() bool {
	for _, known := range Offices {
		if o == known {
			return true
		}
	}
	return false
}

// Slug returns a lowercase, space-free key for the office.
func (o Office) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(o)), " ", "-")
}

// Percent is a percentage exactly as the feed reported it. The feed sends
// strings ("55.0") but a bare JSON number is accepted too; either way the
// original text is kept so it can be displayed without re-rounding.
type Percent string

// UnmarshalJSON accepts a JSON string, number or null.
func (p *Percent) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*p = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Percent(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("percent: expected string or number, got %s", b)
	}
	*p = Percent(n.String())
	return nil
}

// Value parses the leading decimal number of the percentage. Surrounding
// whitespace and a trailing "%" are ignored. Text with no leading number
// yields NaN, which never compares greater than anything.
func (p Percent) Value() float64 {
	s := strings.TrimSpace(string(p))
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}

	end := 0
	seenDot, seenDigit := false, false
scan:
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			end = i + 1
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '+' || r == '-') && i == 0:
		default:
			break scan
		}
	}
	if !seenDigit {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func (p Percent) String() string { return string(p) }

// Record is one candidate's result in one contest. Records are never
// mutated after decoding; each poll produces a fresh slice.
type Record struct {
	Candidate  string  `json:"Candidato"`
	Party      string  `json:"Partido"`
	Office     Office  `json:"Puesto"`
	Votes      int64   `json:"Votos"`
	Percentage Percent `json:"PorCiento"`
	Winner     bool    `json:"Ganador"`
}

// Payload is the decoded body of one successful poll.
type Payload struct {
	Records   []Record
	UpdatedAt time.Time
}
