// Package publish announces serialized expression sets on NATS so downstream
// consumers can pick them up without polling the output directory.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"passthru_parser/internal/logging"
	"passthru_parser/internal/passthru"
)

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Summary is the message published for each expression set.
type Summary struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	OutputPath  string         `json:"output_path,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Expressions int            `json:"expressions"`
	Invalid     int            `json:"invalid"`
	ByKind      map[string]int `json:"by_kind"`
	Missing     map[string]int `json:"missing_fields,omitempty"`
}

// Summarize builds the published summary of set.
func Summarize(set *passthru.ExpressionSet) Summary {
	s := Summary{
		ID:          set.ID.String(),
		Source:      set.Source,
		OutputPath:  set.OutputPath,
		CreatedAt:   set.CreatedAt,
		Expressions: set.Len(),
		ByKind:      make(map[string]int),
	}
	for kind, n := range set.CountByKind() {
		s.ByKind[kind.String()] = n
	}
	for _, e := range set.Expressions {
		if !e.Valid() {
			s.Invalid++
		}
		for _, name := range e.MissingFields() {
			if s.Missing == nil {
				s.Missing = make(map[string]int)
			}
			s.Missing[name]++
		}
	}
	return s
}

// Publisher sends one Summary per set to a subject.
type Publisher struct {
	conn    Conn
	subject string
	log     logging.Logger
}

// New creates a publisher over an existing connection.
func New(conn Conn, subject string, log logging.Logger) *Publisher {
	if log == nil {
		log = logging.Discard()
	}
	return &Publisher{conn: conn, subject: subject, log: log}
}

// Connect dials the NATS server at url.
func Connect(url, subject string, log logging.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("ptexp"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(5),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return New(nc, subject, log), nil
}

// SaveSet publishes the summary of set and waits for the server to
// acknowledge the flush, bounded by ctx's deadline or five seconds.
func (p *Publisher) SaveSet(ctx context.Context, set *passthru.ExpressionSet) error {
	data, err := json.Marshal(Summarize(set))
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := p.conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}

	p.log.Info("published expression set", "subject", p.subject, "id", set.ID.String())
	return nil
}

// Close closes the connection.
func (p *Publisher) Close() error {
	p.conn.Close()
	return nil
}
