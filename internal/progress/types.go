package progress

import (
	"strings"
	"time"
)

type SessionStatus int

const (
	SessionPending SessionStatus = iota
	SessionRunning
	SessionCompleted
	SessionCompletedWithErrors
	SessionFailed
	SessionCancelled
	// SessionUnknown -- значение, прочитанное из незнакомой строки.
	SessionUnknown
)

var sessionStatusNames = map[SessionStatus]string{
	SessionPending:             "pending",
	SessionRunning:             "running",
	SessionCompleted:           "completed",
	SessionCompletedWithErrors: "completed_with_errors",
	SessionFailed:              "failed",
	SessionCancelled:           "cancelled",
	SessionUnknown:             "unknown",
}

func (s SessionStatus) String() string {
	if name, ok := sessionStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Finished -- статус финальный и больше не меняется.
func (s SessionStatus) Finished() bool {
	return s != SessionPending && s != SessionRunning
}

func (s SessionStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SessionStatus) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for st, n := range sessionStatusNames {
		if n == name {
			*s = st
			return nil
		}
	}
	*s = SessionUnknown
	return nil
}

type AggregateStatus int

const (
	AggregatePending AggregateStatus = iota
	AggregateRunning
	AggregateCompleted
	AggregateFailed
	AggregateUnknown
)

var aggregateStatusNames = map[AggregateStatus]string{
	AggregatePending:   "pending",
	AggregateRunning:   "running",
	AggregateCompleted: "completed",
	AggregateFailed:    "failed",
	AggregateUnknown:   "unknown",
}

func (s AggregateStatus) String() string {
	if name, ok := aggregateStatusNames[s]; ok {
		return name
	}
	return "unknown"
}

func (s AggregateStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *AggregateStatus) UnmarshalText(b []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(b)))
	for st, n := range aggregateStatusNames {
		if n == name {
			*s = st
			return nil
		}
	}
	*s = AggregateUnknown
	return nil
}

type AggregateProgress struct {
	Index       string          `json:"aggregate_index"`
	Name        string          `json:"aggregate_name"`
	Status      AggregateStatus `json:"status"`
	Processed   int             `json:"processed"`
	Total       *int            `json:"total,omitempty"`
	Inserted    int             `json:"inserted"`
	Updated     int             `json:"updated"`
	Errors      int             `json:"errors"`
	CurrentItem *string         `json:"current_item,omitempty"`
	Counters    map[string]int  `json:"counters,omitempty"`
}

type ImportError struct {
	Aggregate *string   `json:"aggregate_index,omitempty"`
	Message   string    `json:"message"`
	Details   *string   `json:"details,omitempty"`
	At        time.Time `json:"timestamp"`
}

// ImportProgress -- снимок сессии импорта. Наружу отдаётся только копия.
type ImportProgress struct {
	SessionID      string              `json:"session_id"`
	Status         SessionStatus       `json:"status"`
	StartedAt      time.Time           `json:"started_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	Aggregates     []AggregateProgress `json:"aggregates"`
	TotalProcessed int                 `json:"total_processed"`
	TotalInserted  int                 `json:"total_inserted"`
	TotalUpdated   int                 `json:"total_updated"`
	TotalErrors    int                 `json:"total_errors"`
	Errors         []ImportError       `json:"errors"`
}

func (p *ImportProgress) aggregate(index string) *AggregateProgress {
	for i := range p.Aggregates {
		if p.Aggregates[i].Index == index {
			return &p.Aggregates[i]
		}
	}
	return nil
}

func (p *ImportProgress) recalcTotals() {
	p.TotalProcessed, p.TotalInserted, p.TotalUpdated = 0, 0, 0
	for _, a := range p.Aggregates {
		p.TotalProcessed += a.Processed
		p.TotalInserted += a.Inserted
		p.TotalUpdated += a.Updated
	}
}

func (p ImportProgress) clone() ImportProgress {
	out := p
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		out.CompletedAt = &t
	}
	out.Aggregates = make([]AggregateProgress, len(p.Aggregates))
	for i, a := range p.Aggregates {
		out.Aggregates[i] = a
		if a.Total != nil {
			v := *a.Total
			out.Aggregates[i].Total = &v
		}
		if a.CurrentItem != nil {
			v := *a.CurrentItem
			out.Aggregates[i].CurrentItem = &v
		}
		if a.Counters != nil {
			out.Aggregates[i].Counters = make(map[string]int, len(a.Counters))
			for k, v := range a.Counters {
				out.Aggregates[i].Counters[k] = v
			}
		}
	}
	out.Errors = make([]ImportError, len(p.Errors))
	for i, e := range p.Errors {
		out.Errors[i] = e
		if e.Aggregate != nil {
			v := *e.Aggregate
			out.Errors[i].Aggregate = &v
		}
		if e.Details != nil {
			v := *e.Details
			out.Errors[i].Details = &v
		}
	}
	return out
}
