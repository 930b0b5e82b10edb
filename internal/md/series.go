package md

import (
	"errors"
	"fmt"
	"time"
)

var ErrNoData = errors.New("no data")

type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
}

// Series is the ordered bar history of one symbol.
type Series struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

func (s Series) Validate() error {
	if len(s.Bars) == 0 {
		return fmt.Errorf("%s: %w", s.Symbol, ErrNoData)
	}
	for i := 1; i < len(s.Bars); i++ {
		if !s.Bars[i].Timestamp.After(s.Bars[i-1].Timestamp) {
			return fmt.Errorf("%s: bar %d at %s is not after %s", s.Symbol, i,
				s.Bars[i].Timestamp.Format(time.RFC3339), s.Bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

func (s Series) Len() int {
	return len(s.Bars)
}

func (s Series) Closes() []float64 {
	closes := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar; the series must not be empty.
func (s Series) Last() Bar {
	return s.Bars[len(s.Bars)-1]
}

// SeriesFromCloses builds a daily series from close prices, mostly for tests and replays.
func SeriesFromCloses(symbol string, start time.Time, closes []float64) Series {
	bars := make([]Bar, len(closes))
	for i, c := range closes {
		bars[i] = Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
		}
	}
	return Series{Symbol: symbol, Bars: bars}
}
