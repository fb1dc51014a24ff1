package research

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deepresearch/internal/llm"
	"github.com/mohammad-safakhou/deepresearch/internal/search"
	"github.com/mohammad-safakhou/deepresearch/internal/telemetry"
)

// Gateway is the chat-completion surface the controllers drive.
type Gateway interface {
	Complete(ctx context.Context, req llm.Request) (llm.Response, error)
	StartStream(ctx context.Context, req llm.Request) (llm.Stream, error)
	Model() string
}

// Searcher is the web-search surface of the fixed pipeline.
type Searcher interface {
	Search(ctx context.Context, query string, opts search.Options) (*search.Result, error)
}

// Options tune one controller instance.
type Options struct {
	NumberQueries   int // desired queries per generation, default 1
	MaxSearchLoop   int // extra research/reflect rounds after the first, default 3
	ResultsPerQuery int // organic results fetched per query, default 3
	CountryCode     string
	LanguageCode    string
}

func (o *Options) applyDefaults() {
	if o.NumberQueries < 1 {
		o.NumberQueries = 1
	}
	if o.MaxSearchLoop == 0 {
		o.MaxSearchLoop = 3
	}
	if o.ResultsPerQuery < 1 {
		o.ResultsPerQuery = 3
	}
}

// DeepResearcher runs the fixed 4-phase pipeline: generate queries, search
// the web, reflect on sufficiency, loop while insufficient, then stream the
// final answer.
type DeepResearcher struct {
	gateway  Gateway
	searcher Searcher
	opts     Options
	logger   *log.Logger
}

func NewDeepResearcher(gateway Gateway, searcher Searcher, opts Options, logger *log.Logger) *DeepResearcher {
	opts.applyDefaults()
	if logger == nil {
		logger = log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags)
	}
	return &DeepResearcher{gateway: gateway, searcher: searcher, opts: opts, logger: logger}
}

// Run starts one research run and returns its event stream. The channel is
// closed after the terminal Done event. Cancelling ctx stops the producer
// promptly, including any in-flight gateway call.
func (d *DeepResearcher) Run(ctx context.Context, topic string) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		start := time.Now()

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		err := d.run(ctx, topic, emit)
		status := "ok"
		if err != nil {
			status = "error"
			d.logger.Printf("run failed: %v", err)
			if !emit(Event{Kind: EventError, Text: err.Error()}) {
				return
			}
		}
		telemetry.ObserveRun("deep_research", status, time.Since(start))
		emit(Event{Kind: EventDone})
	}()
	return events
}

func (d *DeepResearcher) run(ctx context.Context, topic string, emit func(Event) bool) error {
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("empty research topic")
	}

	// Step 1: generate queries
	if !emit(Event{Kind: EventNotify, Text: "Starting query generation..."}) {
		return ctx.Err()
	}
	query, err := d.generateQuery(ctx, topic)
	if err != nil {
		return err
	}
	if !emit(Event{Kind: EventNotify, Text: "Finished query generation"}) {
		return ctx.Err()
	}

	// Step 2 + 3: research and reflect, looping while insufficient. Summaries
	// accumulate across rounds so reflection and the final answer see the
	// full gathered context.
	var summaries []string

	runRound := func(queries []string) (ReflectionResult, error) {
		if !emit(Event{Kind: EventNotify, Text: "Starting web research..."}) {
			return ReflectionResult{}, ctx.Err()
		}
		summary, err := d.webResearch(ctx, topic, queries)
		if err != nil {
			return ReflectionResult{}, err
		}
		summaries = append(summaries, summary)
		if !emit(Event{Kind: EventNotify, Text: "Finished web research"}) {
			return ReflectionResult{}, ctx.Err()
		}

		if !emit(Event{Kind: EventNotify, Text: "Starting reflection..."}) {
			return ReflectionResult{}, ctx.Err()
		}
		reflection, err := d.reflect(ctx, topic, summaries)
		if err != nil {
			return ReflectionResult{}, err
		}
		if !emit(Event{Kind: EventNotify, Text: "Finished reflection..."}) {
			return ReflectionResult{}, ctx.Err()
		}
		return reflection, nil
	}

	reflection, err := runRound(query.Queries)
	if err != nil {
		return err
	}

	for loop := 0; !reflection.IsSufficient && loop < d.opts.MaxSearchLoop; loop++ {
		d.logger.Printf("insufficient after round %d: %s", loop+1, reflection.KnowledgeGap)
		reflection, err = runRound(reflection.FollowUpQueries)
		if err != nil {
			return err
		}
	}

	// Step 4: stream the final answer
	return d.finalize(ctx, topic, summaries, emit)
}

func (d *DeepResearcher) generateQuery(ctx context.Context, topic string) (GenerateQueryResult, error) {
	prompt := fmt.Sprintf(queryWriterInstructions, CurrentDate(), topic, d.opts.NumberQueries)

	resp, err := d.complete(ctx, llm.Request{Messages: []llm.Message{llm.Text("user", prompt)}})
	if err != nil {
		return GenerateQueryResult{}, err
	}
	return ParseGenerateQuery(resp.Choices[0].Message.Content)
}

// webResearch searches each query in order, accumulates the formatted results
// into one context block, and asks the model for an analysis of it.
func (d *DeepResearcher) webResearch(ctx context.Context, topic string, queries []string) (string, error) {
	var searchContext strings.Builder
	for _, q := range queries {
		start := time.Now()
		result, err := d.searcher.Search(ctx, q, search.Options{
			Num: d.opts.ResultsPerQuery,
			GL:  d.opts.CountryCode,
			HL:  d.opts.LanguageCode,
		})
		telemetry.ObserveSearch(err, time.Since(start))
		if err != nil {
			return "", err
		}
		searchContext.WriteString(search.FormatResults(result))
		searchContext.WriteString("\n")
	}

	prompt := fmt.Sprintf(webSearcherInstructions, CurrentDate(), topic)
	resp, err := d.complete(ctx, llm.Request{Messages: []llm.Message{
		llm.Text("system", prompt),
		llm.Text("user", "Based on the following search results, provide a comprehensive analysis:\n\n"+searchContext.String()),
	}})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

func (d *DeepResearcher) reflect(ctx context.Context, topic string, summaries []string) (ReflectionResult, error) {
	prompt := fmt.Sprintf(reflectionInstructions, CurrentDate(), topic, strings.Join(summaries, "\n\n---\n\n"))

	resp, err := d.complete(ctx, llm.Request{Messages: []llm.Message{llm.Text("system", prompt)}})
	if err != nil {
		return ReflectionResult{}, err
	}
	return ParseReflection(resp.Choices[0].Message.Content)
}

// finalize streams the answer, forwarding every content delta as soon as it
// arrives.
func (d *DeepResearcher) finalize(ctx context.Context, topic string, summaries []string, emit func(Event) bool) error {
	prompt := fmt.Sprintf(answerInstructions, CurrentDate(), topic, strings.Join(summaries, "\n---\n\n"))

	start := time.Now()
	stream, err := d.gateway.StartStream(ctx, llm.Request{Messages: []llm.Message{llm.Text("system", prompt)}})
	telemetry.ObserveLLMRequest("stream", err, time.Since(start))
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != nil && *choice.Delta.Content != "" {
				if !emit(Event{Kind: EventContent, Text: *choice.Delta.Content}) {
					return ctx.Err()
				}
			}
		}
	}
}

func (d *DeepResearcher) complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	start := time.Now()
	resp, err := d.gateway.Complete(ctx, req)
	telemetry.ObserveLLMRequest("complete", err, time.Since(start))
	return resp, err
}
