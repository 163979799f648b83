package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arunmenon/text2sql/engine/core"
	"github.com/arunmenon/text2sql/engine/entity"
	"github.com/arunmenon/text2sql/engine/graph"
	"github.com/arunmenon/text2sql/engine/intent"
	"github.com/arunmenon/text2sql/engine/llm"
	"github.com/arunmenon/text2sql/engine/reasoning"
	"github.com/arunmenon/text2sql/engine/relationship"
	"github.com/arunmenon/text2sql/engine/resolver"
	"github.com/arunmenon/text2sql/engine/sqlgen"
	"github.com/arunmenon/text2sql/pkg/config"
	"github.com/arunmenon/text2sql/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Response is the caller-facing outcome of one query run. A response is
// produced for every query except a failed schema fetch.
type Response struct {
	QueryID                    core.ID              `json:"query_id"`
	OriginalQuery              string               `json:"original_query"`
	InterpretedAs              string               `json:"interpreted_as"`
	AmbiguityLevel             float64              `json:"ambiguity_level"`
	PrimaryInterpretation      sqlgen.SQLResult     `json:"primary_interpretation"`
	AlternativeInterpretations []sqlgen.SQLResult   `json:"alternative_interpretations,omitempty"`
	EntitiesResolved           map[string]string    `json:"entities_resolved"`
	RequiresClarification      bool                 `json:"requires_clarification"`
	ReasoningTrace             []reasoning.Stage    `json:"reasoning_trace"`
	KnowledgeBoundaries        []reasoning.Boundary `json:"knowledge_boundaries"`
}

// Orchestrator runs the four stages strictly in order: intent, entity,
// relationship, SQL. Each stage reads the previous stage's output; only
// the initial schema fetch can fail the whole query.
type Orchestrator struct {
	store        graph.Store
	intent       *intent.Agent
	entity       *entity.Agent
	relationship *relationship.Agent
	sql          *sqlgen.Agent
	stageTimeout time.Duration
	tracer       trace.Tracer
}

// New wires the orchestrator from configuration. The entity strategy
// chain is built from the configured identifiers; unknown identifiers
// fail construction, not query time.
func New(store graph.Store, generator llm.Generator, cfg *config.Config) (*Orchestrator, error) {
	registry := resolver.NewRegistry()
	if err := entity.RegisterStrategies(registry); err != nil {
		return nil, fmt.Errorf("pipeline: register entity strategies: %w", err)
	}
	chain, err := registry.Build(cfg.Entity.Strategies, &resolver.Deps{Store: store, Generator: generator})
	if err != nil {
		return nil, fmt.Errorf("pipeline: build entity chain: %w", err)
	}

	return &Orchestrator{
		store: store,
		intent: intent.NewAgent(generator, intent.Config{
			ClarificationThreshold: cfg.Thresholds.Clarification,
			AmbiguityHigh:          cfg.Thresholds.AmbiguityHigh,
		}),
		entity: entity.NewAgent(chain, generator, entity.Config{
			BoundaryLow:     cfg.Thresholds.BoundaryLow,
			AlternativeHigh: cfg.Thresholds.EntityAlternativeHigh,
			MaxAlternatives: cfg.Entity.MaxAlternatives,
			MaxConcurrency:  cfg.Pipeline.MaxConcurrency,
		}),
		relationship: relationship.NewAgent(store, generator, relationship.Config{
			PathStrategy:    graph.PathStrategy(cfg.Relationship.PathStrategy),
			TreeStrategy:    relationship.TreeStrategy(cfg.Relationship.TreeStrategy),
			MaxHops:         cfg.Relationship.MaxHops,
			MaxPaths:        cfg.Relationship.MaxPaths,
			MinConfidence:   cfg.Relationship.MinConfidence,
			AlternativeLow:  cfg.Thresholds.BoundaryLow,
			AlternativeHigh: cfg.Thresholds.PathAlternativeHigh,
			MaxConcurrency:  cfg.Pipeline.MaxConcurrency,
		}),
		sql: sqlgen.NewAgent(generator, sqlgen.Config{
			MaxAlternatives: cfg.SQL.MaxAlternatives,
			AlternativeHigh: cfg.Thresholds.Clarification,
			FallbackLimit:   cfg.SQL.FallbackLimit,
		}),
		stageTimeout: cfg.Pipeline.StageTimeout,
		tracer:       otel.Tracer("text2sql.pipeline"),
	}, nil
}

// Process runs one query through the pipeline. The returned error is
// non-nil only when the schema-context fetch fails; every other failure
// degrades into boundaries and low confidence on the response.
func (o *Orchestrator) Process(ctx context.Context, tenantID, query string) (*Response, error) {
	log := logger.FromContext(ctx)
	queryID := core.NewID()
	stream := reasoning.NewStream(queryID, query)
	boundaries := reasoning.NewBoundaryRegistry()

	ctx, span := o.tracer.Start(ctx, "text2sql.pipeline.process", trace.WithAttributes(
		attribute.String("tenant_id", tenantID),
		attribute.String("query_id", string(queryID)),
	))
	defer span.End()

	schema, err := o.store.GetSchemaContext(ctx, tenantID)
	if err != nil {
		span.SetStatus(codes.Error, "schema context unavailable")
		return nil, fmt.Errorf("pipeline: query %s: %w", queryID, err)
	}
	log.Info("Processing query", "query_id", queryID, "tenant", tenantID)

	intentRes, err := o.classifyIntent(ctx, query, stream, boundaries)
	if err != nil {
		return nil, err
	}
	entityRes, err := o.resolveEntities(ctx, query, tenantID, schema, intentRes, stream, boundaries)
	if err != nil {
		return nil, err
	}
	relRes, err := o.discoverRelationships(ctx, entityRes.Tables(), schema, stream, boundaries)
	if err != nil {
		return nil, err
	}
	sqlRes, err := o.generateSQL(ctx, query, schema, intentRes, entityRes, relRes, stream, boundaries)
	if err != nil {
		return nil, err
	}

	response := &Response{
		QueryID:                    queryID,
		OriginalQuery:              query,
		InterpretedAs:              interpret(intentRes, entityRes),
		AmbiguityLevel:             ambiguityLevel(intentRes, entityRes, sqlRes),
		PrimaryInterpretation:      sqlRes.Primary,
		AlternativeInterpretations: sqlRes.Alternatives,
		EntitiesResolved:           entityRes.Entities,
		RequiresClarification:      intentRes.RequiresClarification || boundaries.Len() > 0,
		ReasoningTrace:             stream.Stages(),
		KnowledgeBoundaries:        boundaries.All(),
	}
	log.Info("Query processed",
		"query_id", queryID,
		"ambiguity", response.AmbiguityLevel,
		"boundaries", len(response.KnowledgeBoundaries))
	return response, nil
}

func (o *Orchestrator) classifyIntent(
	ctx context.Context,
	query string,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*intent.Result, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "text2sql.pipeline.intent")
	defer span.End()
	result, err := o.intent.Classify(ctx, query, stream, boundaries)
	if result != nil {
		span.SetAttributes(
			attribute.String("intent", string(result.Intent)),
			attribute.Float64("confidence", result.Confidence),
		)
	}
	return result, err
}

func (o *Orchestrator) resolveEntities(
	ctx context.Context,
	query, tenantID string,
	schema *graph.SchemaContext,
	intentRes *intent.Result,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*entity.Result, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "text2sql.pipeline.entity")
	defer span.End()
	rc := &resolver.Context{TenantID: tenantID, Schema: schema, Intent: intentRes.Intent}
	result, err := o.entity.Resolve(ctx, query, rc, stream, boundaries)
	if result != nil {
		span.SetAttributes(
			attribute.Int("resolved", len(result.Resolutions)),
			attribute.Float64("max_confidence", result.MaxConfidence),
		)
	}
	return result, err
}

func (o *Orchestrator) discoverRelationships(
	ctx context.Context,
	tables []string,
	schema *graph.SchemaContext,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*relationship.Result, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "text2sql.pipeline.relationship")
	defer span.End()
	result, err := o.relationship.Discover(ctx, tables, schema, stream, boundaries)
	if result != nil {
		span.SetAttributes(
			attribute.Bool("requires_joins", result.RequiresJoins),
			attribute.Int("paths", len(result.Paths)),
		)
	}
	return result, err
}

func (o *Orchestrator) generateSQL(
	ctx context.Context,
	query string,
	schema *graph.SchemaContext,
	intentRes *intent.Result,
	entityRes *entity.Result,
	relRes *relationship.Result,
	stream *reasoning.Stream,
	boundaries *reasoning.BoundaryRegistry,
) (*sqlgen.Result, error) {
	ctx, cancel := o.stageContext(ctx)
	defer cancel()
	ctx, span := o.tracer.Start(ctx, "text2sql.pipeline.sql")
	defer span.End()
	result, err := o.sql.Generate(ctx, query, sqlgen.Input{
		Intent:   intentRes.Intent,
		Entities: entityRes.Entities,
		Tables:   entityRes.Tables(),
		Paths:    relRes.Tree.Edges,
		Schema:   schema,
	}, stream, boundaries)
	if result != nil {
		span.SetAttributes(attribute.Float64("confidence", result.Primary.Confidence))
	}
	return result, err
}

// stageContext applies the per-stage deadline. In-flight store and
// service calls observe the cancellation and degrade to no-result.
func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.stageTimeout)
}

// ambiguityLevel is 1 minus the weakest of the three stage confidences.
func ambiguityLevel(intentRes *intent.Result, entityRes *entity.Result, sqlRes *sqlgen.Result) float64 {
	min := intentRes.Confidence
	if entityRes.MaxConfidence < min {
		min = entityRes.MaxConfidence
	}
	if sqlRes.Primary.Confidence < min {
		min = sqlRes.Primary.Confidence
	}
	return core.ClampConfidence(1 - min)
}

// interpret renders a one-line restatement of how the query was read.
func interpret(intentRes *intent.Result, entityRes *entity.Result) string {
	tables := entityRes.Tables()
	if len(tables) == 0 {
		return fmt.Sprintf("a %s query over no recognized data", intentRes.Intent)
	}
	return fmt.Sprintf("a %s query over %s", intentRes.Intent, strings.Join(tables, ", "))
}
