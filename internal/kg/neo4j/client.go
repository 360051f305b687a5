package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/hebrew-ms/backend/internal/metrics"
	"github.com/hebrew-ms/backend/pkg/circuitbreaker"
	"github.com/hebrew-ms/backend/pkg/logger"
	"github.com/hebrew-ms/backend/pkg/retry"
)

const writeTimeout = 30 * time.Second

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type PlaceManuscript struct {
	ManuscriptID string
	EventType    string
	EventClass   string
}

func NewClient(ctx context.Context, uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OnStateChange: func(name string, _ circuitbreaker.State, to circuitbreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
		Logger: logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if database == "" {
		database = "neo4j"
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri), zap.String("database", database))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.driver.VerifyConnectivity(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

func (c *Client) EnsureConstraints(ctx context.Context) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `CREATE CONSTRAINT resource_uri IF NOT EXISTS FOR (n:` + ResourceLabel + `) REQUIRE n.uri IS UNIQUE`
		if _, err := session.Run(ctx, query, nil); err != nil {
			return fmt.Errorf("failed to create uri constraint: %w", err)
		}
		return nil
	})
}

// MergeGraph merges every node by uri, then every relationship, in a single write
// transaction. Nodes sharing a label set are sent as one UNWIND batch.
func (c *Client) MergeGraph(ctx context.Context, g *Graph) error {
	nodeBatches := map[string][]map[string]any{}
	nodeLabels := map[string][]string{}
	for _, n := range g.Nodes() {
		key := labelKey(n.Labels)
		nodeLabels[key] = n.Labels
		nodeBatches[key] = append(nodeBatches[key], map[string]any{"uri": n.URI, "props": n.Props})
	}

	relBatches := map[string][]map[string]any{}
	for _, r := range g.Relationships() {
		props := r.Props
		if props == nil {
			props = map[string]any{}
		}
		relBatches[r.Type] = append(relBatches[r.Type], map[string]any{"from": r.From, "to": r.To, "props": props})
	}

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for key, rows := range nodeBatches {
				query := `
					UNWIND $rows AS row
					MERGE (n:` + ResourceLabel + ` {uri: row.uri})
					SET n += row.props`
				if labels := nodeLabels[key]; len(labels) > 0 {
					query += "\n\t\t\t\t\tSET n:" + joinLabels(labels)
				}
				if _, err := tx.Run(ctx, query, map[string]any{"rows": rows}); err != nil {
					return nil, fmt.Errorf("failed to merge nodes: %w", err)
				}
			}
			for relType, rows := range relBatches {
				query := `
					UNWIND $rows AS row
					MATCH (a:` + ResourceLabel + ` {uri: row.from})
					MATCH (b:` + ResourceLabel + ` {uri: row.to})
					MERGE (a)-[r:` + relType + `]->(b)
					SET r += row.props`
				if _, err := tx.Run(ctx, query, map[string]any{"rows": rows}); err != nil {
					return nil, fmt.Errorf("failed to merge relationships: %w", err)
				}
			}
			return nil, nil
		})
		return err
	})
	if err != nil {
		return err
	}

	for label, n := range g.LabelCounts() {
		metrics.GraphNodesWritten.WithLabelValues(label).Add(float64(n))
	}
	logger.Debug("Graph merged",
		zap.Int("nodes", len(g.Nodes())),
		zap.Int("relationships", len(g.Relationships())),
	)
	return nil
}

// ManuscriptsAtPlace finds manuscripts linked to a place through any event.
func (c *Client) ManuscriptsAtPlace(ctx context.Context, placeName string, limit int) ([]PlaceManuscript, error) {
	var out []PlaceManuscript

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (p:E53_Place {label: $name})<-[:P7_took_place_at]-(e)-->(m:F4_Manifestation_Singleton)
			RETURN DISTINCT m.identifier AS id, e.event_type AS event_type, e.event_class AS event_class
			ORDER BY id
			LIMIT $limit
		`

		result, err := session.Run(ctx, query, map[string]any{
			"name":  placeName,
			"limit": limit,
		})
		if err != nil {
			return fmt.Errorf("failed to query place manuscripts: %w", err)
		}

		out = out[:0]
		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("id")
			eventType, _ := record.Get("event_type")
			eventClass, _ := record.Get("event_class")

			pm := PlaceManuscript{}
			pm.ManuscriptID, _ = id.(string)
			pm.EventType, _ = eventType.(string)
			pm.EventClass, _ = eventClass.(string)
			out = append(out, pm)
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Graph place query completed",
		zap.String("place", placeName),
		zap.Int("results_found", len(out)),
	)
	return out, nil
}

func joinLabels(labels []string) string {
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ":"
		}
		out += l
	}
	return out
}
