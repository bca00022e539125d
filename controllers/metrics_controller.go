package controllers

import (
	"context"
	"os"
	"strconv"

	mongo_client "fundametrics/clients/mongo"
	"fundametrics/services"
	"fundametrics/types"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MetricsControllerI interface {
	GetCompanyMetrics(ctx *gin.Context)
	GetCompanyRatios(ctx *gin.Context)
	ListCompanies(ctx *gin.Context)
	RecomputeCompany(ctx *gin.Context)
	RecomputeAll(ctx *gin.Context)
}

type metricsController struct{}

var MetricsController MetricsControllerI = &metricsController{}

func snapshotCollectionName() string {
	if name := os.Getenv("SNAPSHOT_COLLECTION"); name != "" {
		return name
	}
	return "company_snapshots"
}

func loadSnapshot(ctx *gin.Context, companyName string) (*types.CompanySnapshot, bool) {
	collection := mongo_client.Client.Database(os.Getenv("DATABASE")).Collection(snapshotCollectionName())

	filter := bson.M{"company_name": bson.M{"$regex": companyName, "$options": "i"}}
	var snapshot types.CompanySnapshot
	if err := collection.FindOne(ctx, filter).Decode(&snapshot); err != nil {
		zap.L().Error("Error finding company snapshot",
			zap.String("company", companyName),
			zap.Error(err))
		ctx.JSON(404, gin.H{"error": "Company not found"})
		return nil, false
	}
	return &snapshot, true
}

func buildFromSnapshot(snapshot *types.CompanySnapshot) *services.ResponseBuilder {
	builder := services.NewResponseBuilder(snapshot.CompanyName, snapshot.CompanyName, "")
	builder.Income = snapshot.Income
	builder.Balance = snapshot.Balance
	builder.Cashflow = snapshot.Cashflow
	builder.RatiosTable = snapshot.Ratios
	builder.Metadata = snapshot.Metadata
	for _, warning := range snapshot.Warnings {
		builder.AddWarning(warning)
	}
	return builder
}

// GetCompanyMetrics serves the full computed payload for one company.
func (m *metricsController) GetCompanyMetrics(ctx *gin.Context) {
	companyName := ctx.Query("company")
	if companyName == "" {
		ctx.JSON(400, gin.H{"error": "Company name is required"})
		return
	}

	snapshot, ok := loadSnapshot(ctx, companyName)
	if !ok {
		return
	}

	response := buildFromSnapshot(snapshot).Build()
	ctx.JSON(200, response)
}

// GetCompanyRatios serves only the derived ratio block.
func (m *metricsController) GetCompanyRatios(ctx *gin.Context) {
	companyName := ctx.Query("company")
	if companyName == "" {
		ctx.JSON(400, gin.H{"error": "Company name is required"})
		return
	}

	snapshot, ok := loadSnapshot(ctx, companyName)
	if !ok {
		return
	}

	engine := services.NewRatiosEngine()
	ratios := engine.Compute(snapshot.Income, snapshot.Balance, &snapshot.Metadata)

	output := make(map[string]services.MetricPayload, len(ratios))
	for key, ratio := range ratios {
		r := ratio
		output[key] = services.EmitMetric(&r, "", "Unavailable")
	}

	ctx.JSON(200, gin.H{
		"company": snapshot.CompanyName,
		"ratios":  output,
	})
}

// ListCompanies pages through the stored snapshots.
func (m *metricsController) ListCompanies(ctx *gin.Context) {
	pageNumberStr := ctx.DefaultQuery("pageNumber", "1")
	pageNumber, err := strconv.Atoi(pageNumberStr)
	if err != nil || pageNumber < 1 {
		ctx.JSON(400, gin.H{"error": "Invalid page number"})
		return
	}

	collection := mongo_client.Client.Database(os.Getenv("DATABASE")).Collection(snapshotCollectionName())

	findOptions := options.Find()
	findOptions.SetLimit(10)
	findOptions.SetSkip(int64(10 * (pageNumber - 1)))
	findOptions.SetSort(bson.M{"company_name": 1})

	cursor, err := collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		zap.L().Error("Error while fetching snapshots", zap.Error(err))
		ctx.JSON(500, gin.H{"error": "Error while fetching companies"})
		return
	}
	defer cursor.Close(ctx)

	companies := []gin.H{}
	for cursor.Next(ctx) {
		var result bson.M
		if err := cursor.Decode(&result); err != nil {
			ctx.JSON(500, gin.H{"error": "Error while decoding companies"})
			return
		}
		companies = append(companies, gin.H{
			"name":        result["company_name"],
			"snapshot_id": result["snapshot_id"],
			"integrity":   result["integrity"],
			"updated_at":  result["updated_at"],
		})
	}

	ctx.JSON(200, gin.H{"companies": companies, "page": pageNumber})
}

// RecomputeCompany refreshes one company's snapshot synchronously.
func (m *metricsController) RecomputeCompany(ctx *gin.Context) {
	companyName := ctx.Query("company")
	if companyName == "" {
		ctx.JSON(400, gin.H{"error": "Company name is required"})
		return
	}

	collection := mongo_client.Client.Database(os.Getenv("DATABASE")).Collection(snapshotCollectionName())

	filter := bson.M{"company_name": bson.M{"$regex": companyName, "$options": "i"}}
	var document bson.M
	if err := collection.FindOne(ctx, filter).Decode(&document); err != nil {
		zap.L().Error("Error finding company snapshot", zap.Error(err))
		ctx.JSON(404, gin.H{"error": "Company not found"})
		return
	}

	event, err := services.SnapshotService.RecomputeCompany(ctx, document)
	if err != nil {
		zap.L().Error("Error recomputing company snapshot",
			zap.String("company", companyName),
			zap.Error(err))
		ctx.JSON(500, gin.H{"error": "Failed to recompute company snapshot"})
		return
	}

	ctx.JSON(200, gin.H{
		"company":      event.CompanyName,
		"snapshot_id":  event.SnapshotID,
		"metric_count": event.MetricCount,
		"ratio_count":  event.RatioCount,
		"integrity":    event.Integrity,
		"computed_at":  event.ComputedAt,
	})
}

// RecomputeAll kicks off a background recompute over every company.
func (m *metricsController) RecomputeAll(ctx *gin.Context) {
	zap.L().Info("Manual snapshot recompute triggered via API")

	go func() {
		services.SnapshotService.RecomputeAll(context.Background())
	}()

	ctx.JSON(200, gin.H{
		"message": "Snapshot recompute process started",
		"status":  "running",
	})
}
