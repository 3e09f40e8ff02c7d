package app_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/PavSher76/AI-NK-sub005/internal/app"
	"github.com/PavSher76/AI-NK-sub005/internal/config"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Document{},
		&model.Element{},
		&model.NormativeClause{},
		&model.ClauseRelation{},
		&model.ValidationResult{},
		&model.Finding{},
		&model.ReviewReport{},
		&model.AuditLog{},
	); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func testValidationConfig() config.ValidationConfig {
	return config.ValidationConfig{
		CheckTimeoutMinute: 1,
		CriticalWeight:     25,
		HighWeight:         10,
		MediumWeight:       4,
		LowWeight:          1,
		InfoWeight:         0,
		TemplateVersion:    "v1",
	}
}

// memCache is an in-process ExportCache for tests.
type memCache struct {
	data map[string][]byte
	hits int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	if ok {
		m.hits++
	}
	return v, ok, nil
}

func (m *memCache) Set(ctx context.Context, key string, data []byte) error {
	m.data[key] = data
	return nil
}

func TestVerdictThresholds(t *testing.T) {
	svc := app.NewReportService(nil, nil, nil, testValidationConfig(), "")

	cases := []struct {
		critical int
		high     int
		want     model.OverallStatus
	}{
		{0, 0, model.VerdictPass},
		{0, 1, model.VerdictUncertain},
		{1, 0, model.VerdictFail},
		{1, 5, model.VerdictFail},
	}
	for _, tc := range cases {
		if got := svc.Verdict(tc.critical, tc.high); got != tc.want {
			t.Errorf("Verdict(%d, %d) = %s, want %s", tc.critical, tc.high, got, tc.want)
		}
	}
}

func TestComplianceScoreBounds(t *testing.T) {
	svc := app.NewReportService(nil, nil, nil, testValidationConfig(), "")

	clean := svc.ComplianceScore(&model.ValidationResult{})
	if clean != 100 {
		t.Fatalf("expected 100 for clean result, got %v", clean)
	}

	weighted := svc.ComplianceScore(&model.ValidationResult{Critical: 1, High: 2, Medium: 3, Low: 4, Info: 10})
	if weighted != 100-25-20-12-4 {
		t.Fatalf("unexpected weighted score %v", weighted)
	}

	floor := svc.ComplianceScore(&model.ValidationResult{Critical: 10})
	if floor != 0 {
		t.Fatalf("expected score clamped to 0, got %v", floor)
	}
}

func seedCompletedCheck(t *testing.T, db *gorm.DB, svc *app.ReportService) *model.Document {
	t.Helper()
	docRepo := repository.NewDocumentRepository(db)
	resultRepo := repository.NewResultRepository(db)

	doc := &model.Document{
		Filename:         "tower.pdf",
		Format:           model.FormatPDF,
		Fingerprint:      "export-doc",
		Kind:             model.KindCheckable,
		ProcessingStatus: model.StatusCompleted,
	}
	if err := docRepo.Create(doc); err != nil {
		t.Fatalf("create document: %v", err)
	}

	result := &model.ValidationResult{
		DocumentID:    doc.ID,
		AnalyzedAt:    time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC),
		Method:        model.ModeFlat,
		OverallStatus: model.VerdictUncertain,
		Summary:       "one high deviation",
	}
	findings := []model.Finding{
		{Severity: model.SeverityHigh, Category: "stamps", Title: "Stamp missing", ClauseID: "gost:4.1"},
	}
	if err := resultRepo.CreateWithFindings(result, findings); err != nil {
		t.Fatalf("create result: %v", err)
	}
	report := svc.Compile(result, "tester")
	if err := resultRepo.AttachReport(report); err != nil {
		t.Fatalf("attach report: %v", err)
	}
	return doc
}

func TestExportIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	cache := newMemCache()
	svc := app.NewReportService(
		repository.NewResultRepository(db),
		repository.NewDocumentRepository(db),
		cache,
		testValidationConfig(),
		t.TempDir(),
	)
	doc := seedCompletedCheck(t, db, svc)

	for _, format := range []string{"json", "docx", "pdf"} {
		first, name1, err := svc.Export(context.Background(), doc.ID, format)
		if err != nil {
			t.Fatalf("first %s export: %v", format, err)
		}
		second, name2, err := svc.Export(context.Background(), doc.ID, format)
		if err != nil {
			t.Fatalf("second %s export: %v", format, err)
		}
		if name1 != name2 {
			t.Fatalf("%s export filename changed: %s vs %s", format, name1, name2)
		}
		if !bytes.Equal(first, second) {
			t.Fatalf("%s export is not byte-identical", format)
		}
	}
	if cache.hits == 0 {
		t.Fatal("expected repeated exports to hit the cache")
	}
}

func TestExportRequiresCompletedCheck(t *testing.T) {
	db := newTestDB(t)
	docRepo := repository.NewDocumentRepository(db)
	svc := app.NewReportService(
		repository.NewResultRepository(db),
		docRepo,
		newMemCache(),
		testValidationConfig(),
		t.TempDir(),
	)

	doc := &model.Document{
		Filename:         "pending.pdf",
		Format:           model.FormatPDF,
		Fingerprint:      "pending-doc",
		Kind:             model.KindCheckable,
		ProcessingStatus: model.StatusPending,
	}
	if err := docRepo.Create(doc); err != nil {
		t.Fatalf("create document: %v", err)
	}

	if _, _, err := svc.Export(context.Background(), doc.ID, "json"); err != app.ErrReportNotReady {
		t.Fatalf("expected ErrReportNotReady, got %v", err)
	}
	if _, _, err := svc.Export(context.Background(), 9999, "json"); err != app.ErrDocumentNotFound {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestCurrentReportErrors(t *testing.T) {
	db := newTestDB(t)
	docRepo := repository.NewDocumentRepository(db)
	svc := app.NewReportService(
		repository.NewResultRepository(db),
		docRepo,
		newMemCache(),
		testValidationConfig(),
		"",
	)

	if _, err := svc.CurrentReport(1234); err != app.ErrDocumentNotFound {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}

	doc := &model.Document{
		Filename:    "empty.pdf",
		Format:      model.FormatPDF,
		Fingerprint: "no-report",
		Kind:        model.KindCheckable,
	}
	if err := docRepo.Create(doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	if _, err := svc.CurrentReport(doc.ID); err != app.ErrReportNotFound {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}
