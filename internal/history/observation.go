package history

import (
	"fmt"
	"math"
	"mostracker/internal/assert"
	"strconv"
	"strings"
	"time"
)

type Platform string

const (
	X         Platform = "x"
	Instagram Platform = "instagram"
)

// Platforms lists every tracked platform in column order.
var Platforms = []Platform{X, Instagram}

// ParsePlatform accepts the platform id as well as the common aliases.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "twitter", "tw":
		return X, nil
	case "instagram", "insta", "ig":
		return Instagram, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Label is the short suffix charts use for a platform.
func (p Platform) Label() string {
	switch p {
	case X:
		return "X"
	case Instagram:
		return "IG"
	}
	return string(p)
}

// Count is a follower count that may be absent, absence means the fetcher
// could not get a value or the entity is not tracked on that platform.
type Count struct {
	Value int64
	Valid bool
}

func Some(n int64) Count {
	assert.NonNegative("follower count", n)
	return Count{Value: n, Valid: true}
}

var None = Count{}

// String renders the count the way it is stored, absent counts are empty.
func (c Count) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.FormatInt(c.Value, 10)
}

// ParseCount parses a stored cell. Integral floats ("1234.0") are accepted
// since logs written by dataframe tooling turn gappy integer columns into floats.
func ParseCount(cell string) (Count, error) {
	cell = strings.TrimSpace(cell)
	switch strings.ToLower(cell) {
	case "", "nan", "none", "null":
		return None, nil
	}

	n, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(cell, 64)
		if ferr != nil || f != math.Trunc(f) || math.IsInf(f, 0) || f >= math.MaxInt64 {
			return None, fmt.Errorf("invalid follower count %q", cell)
		}
		n = int64(f)
	}
	if n < 0 {
		return None, fmt.Errorf("negative follower count %q", cell)
	}
	return Count{Value: n, Valid: true}, nil
}

// Date is a calendar date in YYYY-MM-DD form, which also makes string order
// chronological order.
type Date string

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(time.DateOnly))
}

func (d Date) String() string {
	return string(d)
}

// Row is the per-entity input of a single day's ingest.
type Row struct {
	Name      string
	Twitter   Count
	Instagram Count
}

// Record is one stored row, it carries the observations of both platforms
// for an entity on a date.
type Record struct {
	Date      Date
	Name      string
	Twitter   Count
	Instagram Count
}

func (r Record) Count(p Platform) Count {
	switch p {
	case X:
		return r.Twitter
	case Instagram:
		return r.Instagram
	}
	return None
}

// Observation is a single (entity, platform, date) reading.
type Observation struct {
	Date     Date
	Entity   string
	Platform Platform
	Count    Count
}

// Observations splits the record into one observation per platform.
func (r Record) Observations() []Observation {
	out := make([]Observation, len(Platforms))
	for i, p := range Platforms {
		out[i] = Observation{
			Date:     r.Date,
			Entity:   r.Name,
			Platform: p,
			Count:    r.Count(p),
		}
	}
	return out
}
