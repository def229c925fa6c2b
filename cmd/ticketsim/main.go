package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/dennisdiepolder/monti/orchestrator/pkg/client"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var diverseTexts = []string{
	"I was charged twice for my subscription this month",
	"Please send me a copy of the invoice for March",
	"The mobile app crashes when I open settings",
	"Login fails with a timeout error since this morning",
	"Our legal team needs the data processing agreement",
	"I want to cancel my contract and get a refund",
	"The API returns 500 errors for every request",
	"Can you explain the GDPR terms in the privacy policy",
}

// summary is what a run reports at the end
type summary struct {
	Sent       int
	Assigned   int
	Queued     int
	Suppressed int
	Failed     int
	Incidents  map[string]int
}

func main() {
	var (
		backendURL  = flag.String("backend-url", "http://localhost:8080", "Orchestrator URL")
		token       = flag.String("token", os.Getenv("ORCHESTRATOR_TOKEN"), "Bearer token for the API")
		stormSize   = flag.Int("storm", 15, "Number of identical tickets sent as a storm")
		stormText   = flag.String("storm-text", "Payment page shows error 502 at checkout", "Text of the storm tickets")
		diverse     = flag.Int("diverse", 10, "Number of unrelated tickets sent after the storm")
		interval    = flag.Duration("interval", 50*time.Millisecond, "Delay between tickets")
		concurrency = flag.Int("concurrency", 4, "Maximum tickets in flight")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Str("service", "ticketsim").
		Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := client.NewClient(*backendURL).WithToken(*token)
	if err := c.Health(ctx); err != nil {
		logger.Fatal().Err(err).Str("backend_url", *backendURL).Msg("orchestrator not reachable")
	}

	tickets := make([]client.Ticket, 0, *stormSize+*diverse)
	for i := 0; i < *stormSize; i++ {
		tickets = append(tickets, client.Ticket{TicketID: "storm-" + uuid.NewString(), Text: *stormText, UserID: "ticketsim"})
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < *diverse; i++ {
		text := fmt.Sprintf("%s (ref %d)", diverseTexts[rng.Intn(len(diverseTexts))], rng.Intn(100000))
		tickets = append(tickets, client.Ticket{TicketID: uuid.NewString(), Text: text, UserID: "ticketsim"})
	}

	logger.Info().
		Int("storm", *stormSize).
		Int("diverse", *diverse).
		Str("backend_url", *backendURL).
		Msg("sending tickets")

	if *concurrency < 1 {
		*concurrency = 1
	}
	s := run(ctx, c, tickets, *concurrency, *interval, logger)

	logger.Info().
		Int("sent", s.Sent).
		Int("assigned", s.Assigned).
		Int("queued", s.Queued).
		Int("suppressed", s.Suppressed).
		Int("failed", s.Failed).
		Int("incidents", len(s.Incidents)).
		Msg("run complete")

	for id, n := range s.Incidents {
		logger.Info().Str("master_incident_id", id).Int("suppressed", n).Msg("master incident")
	}

	if cs, err := c.CircuitStatus(ctx); err == nil {
		logger.Info().Str("state", string(cs.State)).Int("failures", cs.FailureCount).Msg("circuit breaker")
	}
}

func run(ctx context.Context, c *client.Client, tickets []client.Ticket, concurrency int, interval time.Duration, logger zerolog.Logger) summary {
	s := summary{Incidents: make(map[string]int)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, t := range tickets {
		t := t
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			d, err := c.SubmitTicket(gctx, t)

			mu.Lock()
			defer mu.Unlock()
			s.Sent++
			if err != nil {
				var se *client.StatusError
				if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
					logger.Warn().Str("ticket_id", t.TicketID).Msg("ticket already in flight")
				} else {
					logger.Error().Err(err).Str("ticket_id", t.TicketID).Msg("submit failed")
				}
				s.Failed++
				return nil
			}

			switch d.Status {
			case types.StatusAssigned:
				s.Assigned++
			case types.StatusQueued:
				s.Queued++
			case types.StatusSuppressed:
				s.Suppressed++
				s.Incidents[d.MasterIncidentID]++
			}

			ev := logger.Debug().
				Str("ticket_id", d.TicketID).
				Str("status", string(d.Status)).
				Str("source", string(d.Source))
			if d.Assignment != nil {
				ev = ev.Str("agent_id", d.Assignment.AgentID)
			}
			ev.Msg("ticket decided")
			return nil
		})

		select {
		case <-gctx.Done():
		case <-time.After(interval):
		}
	}

	// Submissions never fail the group; errors are counted instead
	_ = g.Wait()
	return s
}
