package services

import (
	"context"
	"fmt"
	"os"
	"sort"

	mongo_client "fundametrics/clients/mongo"
	"fundametrics/types"
	"fundametrics/utils/helpers"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"gopkg.in/mgo.v2/bson"
)

type ExportServiceI interface {
	ExportSnapshotXLSX(ctx *gin.Context, companyName string, sentryCtx context.Context) (string, error)
}

type exportService struct{}

var ExportService ExportServiceI = &exportService{}

// ExportSnapshotXLSX renders a company's computed metrics and ratios into
// a workbook, uploads it to Cloudinary and returns the download URL.
func (es *exportService) ExportSnapshotXLSX(ctx *gin.Context, companyName string, sentryCtx context.Context) (string, error) {
	defer sentry.Recover()
	span := sentry.StartSpan(sentryCtx, "[DAO] ExportSnapshotXLSX")
	defer span.Finish()

	cld, err := cloudinary.NewFromURL(os.Getenv("CLOUDINARY_URL"))
	if err != nil {
		sentry.CaptureException(err)
		span.Status = sentry.SpanStatusInternalError
		return "", fmt.Errorf("error initializing Cloudinary: %w", err)
	}

	collection := mongo_client.Client.Database(os.Getenv("DATABASE")).Collection(snapshotCollection())

	var snapshot types.CompanySnapshot
	dbSpan := sentry.StartSpan(span.Context(), "[DB] FindOne snapshot")
	err = collection.FindOne(context.TODO(), bson.M{"company_name": companyName}, options.FindOne()).Decode(&snapshot)
	dbSpan.Finish()
	if err != nil {
		sentry.CaptureException(err)
		return "", fmt.Errorf("snapshot not found for %s: %w", companyName, err)
	}

	builder := NewResponseBuilder(companyName, snapshot.CompanyName, "")
	builder.Income = snapshot.Income
	builder.Balance = snapshot.Balance
	builder.Cashflow = snapshot.Cashflow
	builder.RatiosTable = snapshot.Ratios
	builder.Metadata = snapshot.Metadata
	bundle := builder.computeMetrics()

	f := excelize.NewFile()
	defer f.Close()

	if err := writeMetricSheet(f, "Metrics", bundle.Metrics); err != nil {
		sentry.CaptureException(err)
		return "", err
	}
	if err := writeMetricSheet(f, "Ratios", bundle.Ratios); err != nil {
		sentry.CaptureException(err)
		return "", err
	}
	if err := writeStatementSheet(f, "Income Statement", snapshot.Income); err != nil {
		sentry.CaptureException(err)
		return "", err
	}
	if err := writeStatementSheet(f, "Balance Sheet", snapshot.Balance); err != nil {
		sentry.CaptureException(err)
		return "", err
	}
	f.DeleteSheet("Sheet1")

	buffer, err := f.WriteToBuffer()
	if err != nil {
		sentry.CaptureException(err)
		return "", fmt.Errorf("error writing workbook: %w", err)
	}

	cloudinaryFilename := uuid.New().String() + ".xlsx"
	uploadSpan := sentry.StartSpan(span.Context(), "[DB] Upload XLSX File")
	uploadResult, err := cld.Upload.Upload(ctx, buffer, uploader.UploadParams{
		PublicID: cloudinaryFilename,
		Folder:   "xlsx_exports",
	})
	uploadSpan.Finish()
	if err != nil {
		sentry.CaptureException(err)
		return "", fmt.Errorf("error uploading workbook: %w", err)
	}

	zap.L().Info("Workbook uploaded to Cloudinary",
		zap.String("company", companyName),
		zap.String("url", uploadResult.SecureURL))

	return uploadResult.SecureURL, nil
}

func writeMetricSheet(f *excelize.File, sheet string, values map[string]types.MetricValue) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet %s: %w", sheet, err)
	}

	headers := []interface{}{"Metric", "Value", "Unit", "Computed", "Confidence", "Grade", "Statement ID", "Reason"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for i, key := range keys {
		metric := values[key]
		row := []interface{}{key, nil, metric.Unit, metric.Computed, nil, "", metric.StatementID, metric.Reason}
		if metric.Value != nil {
			row[1] = *metric.Value
		}
		if metric.Confidence != nil {
			row[4] = metric.Confidence.Score
			row[5] = metric.Confidence.Grade
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeStatementSheet(f *excelize.File, sheet string, table types.StatementTable) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet %s: %w", sheet, err)
	}

	periods := make([]string, 0, len(table))
	for period := range table {
		periods = append(periods, period)
	}
	helpers.SortPeriodsByYear(periods)

	rowKeys := map[string]bool{}
	for _, row := range table {
		for key := range row {
			rowKeys[key] = true
		}
	}
	sortedRows := make([]string, 0, len(rowKeys))
	for key := range rowKeys {
		sortedRows = append(sortedRows, key)
	}
	sort.Strings(sortedRows)

	header := []interface{}{"Row"}
	for _, period := range periods {
		header = append(header, period)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, rowKey := range sortedRows {
		line := []interface{}{rowKey}
		for _, period := range periods {
			if metric, ok := table[period][rowKey]; ok && metric.Value != nil {
				line = append(line, *metric.Value)
			} else {
				line = append(line, nil)
			}
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return err
		}
	}
	return nil
}
