package services

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestRecomputeCompany_RejectsDocumentWithoutURL(t *testing.T) {
	_, err := SnapshotService.RecomputeCompany(context.Background(), bson.M{"_id": "abc"})
	if err == nil || err.Error() != "document has no company_url" {
		t.Errorf("Expected missing company_url error, got %v", err)
	}

	// a blank url is as useless as an absent one
	_, err = SnapshotService.RecomputeCompany(context.Background(), bson.M{"_id": "abc", "company_url": ""})
	if err == nil || err.Error() != "document has no company_url" {
		t.Errorf("Expected missing company_url error, got %v", err)
	}
}

func TestRecomputeCompany_RejectsDocumentWithoutID(t *testing.T) {
	document := bson.M{"company_url": "https://www.screener.in/company/TCS/consolidated/"}
	_, err := SnapshotService.RecomputeCompany(context.Background(), document)
	if err == nil || err.Error() != "document has no _id" {
		t.Errorf("Expected missing _id error, got %v", err)
	}
}
