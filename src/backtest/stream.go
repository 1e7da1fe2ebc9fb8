package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/jiaming2012/crypto-backtest/src/models"
)

// BarStream yields the bars of a single symbol in chronological order. Next
// returns false once the stream is exhausted.
type BarStream interface {
	Symbol() string
	Next() (*models.Candle, bool)
}

// SeriesStream adapts an in-memory candle slice to the BarStream interface.
type SeriesStream struct {
	symbol  string
	candles models.Candles
	cursor  int
}

func NewSeriesStream(symbol string, candles models.Candles) *SeriesStream {
	return &SeriesStream{symbol: symbol, candles: candles}
}

func (s *SeriesStream) Symbol() string {
	return s.symbol
}

func (s *SeriesStream) Next() (*models.Candle, bool) {
	if s.cursor >= len(s.candles) {
		return nil, false
	}

	candle := s.candles[s.cursor]
	s.cursor++

	return candle, true
}

type streamHead struct {
	stream BarStream
	head   *models.Candle
	prev   time.Time
	primed bool
	done   bool
}

// mergedStream interleaves several per-symbol streams into one chronological
// sequence. Bars sharing a timestamp come out in lexical symbol order. A bar
// whose timestamp does not advance past its predecessor on the same symbol
// stops the merge with a DataGapError.
type mergedStream struct {
	heads []*streamHead
}

func newMergedStream(streams []BarStream) (*mergedStream, error) {
	seen := make(map[string]bool)
	heads := make([]*streamHead, 0, len(streams))

	for _, stream := range streams {
		if seen[stream.Symbol()] {
			return nil, fmt.Errorf("newMergedStream: duplicate stream for symbol %s", stream.Symbol())
		}

		seen[stream.Symbol()] = true
		heads = append(heads, &streamHead{stream: stream})
	}

	sort.Slice(heads, func(i, j int) bool {
		return heads[i].stream.Symbol() < heads[j].stream.Symbol()
	})

	return &mergedStream{heads: heads}, nil
}

func (m *mergedStream) Next() (*models.Candle, bool, error) {
	var best *streamHead

	for _, h := range m.heads {
		if h.head == nil && !h.done {
			candle, ok := h.stream.Next()
			if !ok {
				h.done = true
			} else {
				if candle.Symbol == "" {
					candle.Symbol = h.stream.Symbol()
				}

				if h.primed && !candle.Timestamp.After(h.prev) {
					return nil, false, &models.DataGapError{
						Symbol:    h.stream.Symbol(),
						Timestamp: candle.Timestamp,
						Previous:  h.prev,
					}
				}

				h.head = candle
			}
		}

		if h.head == nil {
			continue
		}

		// strictly-before keeps lexical symbol order on timestamp ties
		// because heads are sorted by symbol
		if best == nil || h.head.Timestamp.Before(best.head.Timestamp) {
			best = h
		}
	}

	if best == nil {
		return nil, false, nil
	}

	candle := best.head
	best.head = nil
	best.prev = candle.Timestamp
	best.primed = true

	return candle, true, nil
}
