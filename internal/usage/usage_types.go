package usage

import "time"

// UsageData is the root structure stored in usage.json.
type UsageData struct {
	Version   string          `json:"version"`
	Updated   time.Time       `json:"updated"`
	Aggregate AggregatedStats `json:"aggregate"`
}

// AggregatedStats holds token counters broken down by dimension.
type AggregatedStats struct {
	Total       TokenCounts            `json:"total"`
	ByModel     map[string]TokenCounts `json:"by_model"`
	ByOperation map[string]TokenCounts `json:"by_operation"` // model call, follow-up call
	ByDocument  map[string]TokenCounts `json:"by_document"`
}

// TokenCounts holds input/output sums.
type TokenCounts struct {
	Calls  int64 `json:"calls"`
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
	Total  int64 `json:"total"`
}

func (tc *TokenCounts) Add(input, output int) {
	tc.Calls++
	tc.Input += int64(input)
	tc.Output += int64(output)
	tc.Total += int64(input + output)
}

func newAggregate() AggregatedStats {
	return AggregatedStats{
		ByModel:     make(map[string]TokenCounts),
		ByOperation: make(map[string]TokenCounts),
		ByDocument:  make(map[string]TokenCounts),
	}
}

func (a *AggregatedStats) ensureMaps() {
	if a.ByModel == nil {
		a.ByModel = make(map[string]TokenCounts)
	}
	if a.ByOperation == nil {
		a.ByOperation = make(map[string]TokenCounts)
	}
	if a.ByDocument == nil {
		a.ByDocument = make(map[string]TokenCounts)
	}
}
