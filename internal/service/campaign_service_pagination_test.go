package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
	"github.com/unclebandit/wsp-bulk-sender/internal/service"
)

// Mock run repository for pagination
type MockRunPaginationRepo struct {
	*MockRunRepo
	all []*model.CampaignRun
}

func newPaginationRepo() *MockRunPaginationRepo {
	repo := &MockRunPaginationRepo{MockRunRepo: NewMockRunRepo()}
	for _, title := range []string{"C5", "C4", "C3", "C2", "C1"} {
		repo.all = append(repo.all, &model.CampaignRun{ID: uuid.New(), Title: title})
	}
	return repo
}

func (m *MockRunPaginationRepo) ListRuns(ctx context.Context, offset, limit int, status string) ([]*model.CampaignRun, int, error) {
	start := offset
	end := offset + limit

	if start >= len(m.all) {
		return []*model.CampaignRun{}, len(m.all), nil
	}
	if end > len(m.all) {
		end = len(m.all)
	}

	return m.all[start:end], len(m.all), nil
}

func TestPagination(t *testing.T) {
	svc := &service.CampaignService{
		RunRepo: newPaginationRepo(),
	}
	ctx := context.Background()

	pageSize := 2

	page1, pagination1, _ := svc.ListRuns(ctx, 1, pageSize, "")
	page2, _, _ := svc.ListRuns(ctx, 2, pageSize, "")

	expectedTotal := 5
	if pagination1["total_count"] != expectedTotal {
		t.Errorf("expected total_count %d, got %d", expectedTotal, pagination1["total_count"])
	}
	if pagination1["total_pages"] != 3 {
		t.Errorf("expected 3 pages, got %d", pagination1["total_pages"])
	}

	if len(page1) != 2 || len(page2) != 2 {
		t.Fatalf("expected full pages, got %d and %d", len(page1), len(page2))
	}

	// Newest first
	if page1[0].Title != "C5" || page2[0].Title != "C3" {
		t.Errorf("unexpected order: %s, %s", page1[0].Title, page2[0].Title)
	}

	// Check no duplicates between pages
	if page1[1].ID == page2[0].ID {
		t.Errorf("duplicate entry between pages: %v", page1[1].ID)
	}

	page3, pagination3, _ := svc.ListRuns(ctx, 3, pageSize, "")
	if len(page3) != 1 {
		t.Errorf("expected last page to have 1 item, got %d", len(page3))
	}
	if pagination3["page"] != 3 {
		t.Errorf("expected page 3, got %d", pagination3["page"])
	}

	// Out of range values are clamped
	_, pagination, _ := svc.ListRuns(ctx, 0, 500, "")
	if pagination["page"] != 1 || pagination["page_size"] != 100 {
		t.Errorf("expected clamped pagination, got %+v", pagination)
	}
}
