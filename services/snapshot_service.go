package services

import (
	"context"
	"fmt"
	"os"
	"time"

	kafka_client "fundametrics/clients/kafka"
	mongo_client "fundametrics/clients/mongo"
	rabbitmq_client "fundametrics/clients/rabbitmq"
	"fundametrics/types"
	"fundametrics/utils/helpers"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type SnapshotServiceI interface {
	RecomputeAll(ctx context.Context)
	RecomputeCompany(ctx context.Context, document bson.M) (*types.MetricsComputedEvent, error)
}

type snapshotService struct{}

var SnapshotService SnapshotServiceI = &snapshotService{}

func snapshotCollection() string {
	if name := os.Getenv("SNAPSHOT_COLLECTION"); name != "" {
		return name
	}
	return "company_snapshots"
}

// RecomputeAll walks every company document carrying a source URL,
// refreshes its scraped tables and recomputes the metric snapshot.
func (s *snapshotService) RecomputeAll(ctx context.Context) {
	zap.L().Info("Starting snapshot recompute process")

	collection := mongo_client.Client.Database(os.Getenv("DATABASE")).Collection(snapshotCollection())

	filter := bson.M{"company_url": bson.M{"$exists": true, "$ne": ""}}
	cursor, err := collection.Find(ctx, filter, options.Find())
	if err != nil {
		zap.L().Error("Error while fetching snapshot documents", zap.Error(err))
		return
	}
	defer cursor.Close(ctx)

	updatedCount := 0
	errorCount := 0

	for cursor.Next(ctx) {
		var document bson.M
		if err := cursor.Decode(&document); err != nil {
			zap.L().Error("Error while decoding snapshot document", zap.Error(err))
			errorCount++
			continue
		}

		event, err := s.RecomputeCompany(ctx, document)
		if err != nil {
			zap.L().Error("Error recomputing company snapshot",
				zap.Any("_id", document["_id"]),
				zap.Error(err))
			errorCount++
			continue
		}
		updatedCount++

		kafka_client.SendMessage(*event)
		rabbitmq_client.SendMessage(*event)

		// Small delay so the source site is not hammered.
		time.Sleep(1 * time.Second)
	}

	zap.L().Info("Snapshot recompute process completed",
		zap.Int("updated", updatedCount),
		zap.Int("errors", errorCount))
}

// RecomputeCompany scrapes one company page, canonicalizes its statement
// tables, recomputes metrics and persists the refreshed snapshot.
func (s *snapshotService) RecomputeCompany(ctx context.Context, document bson.M) (*types.MetricsComputedEvent, error) {
	url, ok := document["company_url"].(string)
	if !ok || url == "" {
		return nil, fmt.Errorf("document has no company_url")
	}
	companyID, hasID := document["_id"]
	if !hasID {
		return nil, fmt.Errorf("document has no _id")
	}
	companyName, _ := document["company_name"].(string)

	zap.L().Info("Processing company",
		zap.String("name", companyName),
		zap.String("url", url),
		zap.Any("_id", companyID))

	page, err := helpers.FetchCompanyPage(url)
	if err != nil {
		return nil, fmt.Errorf("fetching company page: %w", err)
	}
	if companyName == "" {
		companyName = page.Name
	}

	scope, _ := document["scope"].(string)
	if scope == "" {
		scope = "consolidated"
	}
	exchange, _ := document["exchange"].(string)
	if exchange == "" {
		exchange = "NSE"
	}

	income := helpers.CoerceTable(page.Income, scope, exchange, "INR", "income")
	balance := helpers.CoerceTable(page.Balance, scope, exchange, "INR", "balance")
	cashflow := helpers.CoerceTable(page.Cashflow, scope, exchange, "INR", "cash")
	scrapedRatios := helpers.CoerceTable(page.Ratios, scope, exchange, "INR", "ratios")

	now := time.Now().UTC()
	ttl := 24.0
	metadata := types.ComputeMetadata{
		Generated:  &now,
		TTLHours:   &ttl,
		SharePrice: page.Constants.SharePrice,
		Constants:  page.Constants,
	}

	builder := NewResponseBuilder(companyName, companyName, "")
	builder.About = page.About
	builder.Income = income
	builder.Balance = balance
	builder.Cashflow = cashflow
	builder.RatiosTable = scrapedRatios
	builder.Metadata = metadata
	builder.QuarterlyPeriods = page.QuarterlyPeriods

	bundle := builder.computeMetrics()
	metricsOutput := make(map[string]MetricPayload, len(bundle.Metrics))
	for key, metric := range bundle.Metrics {
		m := metric
		metricsOutput[key] = EmitMetric(&m, "", "Unavailable")
	}
	ratiosOutput := make(map[string]MetricPayload, len(bundle.Ratios))
	for key, ratio := range bundle.Ratios {
		r := ratio
		ratiosOutput[key] = EmitMetric(&r, "", "Unavailable")
	}
	integrity := ResolveIntegrity(metricsOutput, ratiosOutput)

	snapshotID, _ := document["snapshot_id"].(string)
	if snapshotID == "" {
		snapshotID = uuid.New().String()
	}

	updateData := bson.M{
		"$set": bson.M{
			"snapshot_id":      snapshotID,
			"company_name":     companyName,
			"income_statement": income,
			"balance_sheet":    balance,
			"cash_flow":        cashflow,
			"scraped_ratios":   scrapedRatios,
			"metadata":         metadata,
			"metrics":          bundle.Metrics,
			"ratios":           bundle.Ratios,
			"integrity":        integrity,
			"warnings":         builder.warnings,
			"updated_at":       now,
		},
	}

	collection := mongo_client.Client.Database(os.Getenv("DATABASE")).Collection(snapshotCollection())
	updateFilter := bson.M{"_id": companyID}
	updateResult, err := collection.UpdateOne(ctx, updateFilter, updateData, options.Update().SetUpsert(false))
	if err != nil {
		return nil, fmt.Errorf("persisting snapshot: %w", err)
	}
	if updateResult.ModifiedCount == 0 {
		zap.L().Warn("No changes made to company snapshot",
			zap.String("company", companyName),
			zap.Any("_id", companyID))
	}

	countValues := func(values map[string]types.MetricValue) int {
		n := 0
		for _, v := range values {
			if v.Value != nil {
				n++
			}
		}
		return n
	}

	event := &types.MetricsComputedEvent{
		SnapshotID:  snapshotID,
		CompanyName: companyName,
		MetricCount: countValues(bundle.Metrics),
		RatioCount:  countValues(bundle.Ratios),
		Integrity:   integrity,
		ComputedAt:  now,
	}

	zap.L().Info("Successfully recomputed company snapshot",
		zap.String("company", companyName),
		zap.String("snapshot_id", snapshotID),
		zap.Int("metrics", event.MetricCount),
		zap.Int("ratios", event.RatioCount))

	return event, nil
}
