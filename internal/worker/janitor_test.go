package worker_test

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
	"github.com/PavSher76/AI-NK-sub005/internal/worker"
)

func newJanitorFixture(t *testing.T) (*worker.Janitor, *repository.DocumentRepository, *repository.AuditRepository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Document{}, &model.Element{}, &model.NormativeClause{},
		&model.ValidationResult{}, &model.Finding{}, &model.ReviewReport{},
		&model.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	docRepo := repository.NewDocumentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	return worker.NewJanitor(docRepo, auditRepo, time.Hour), docRepo, auditRepo
}

func seedDoc(t *testing.T, repo *repository.DocumentRepository, name string, kind model.DocumentKind, deadline *time.Time) *model.Document {
	t.Helper()
	doc := &model.Document{
		Filename:       name,
		Format:         model.FormatText,
		SizeBytes:      int64(len(name)),
		Fingerprint:    name,
		Kind:           kind,
		ReviewDeadline: deadline,
	}
	if err := repo.Create(doc); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return doc
}

func TestSweepRemovesExpiredCheckables(t *testing.T) {
	janitor, docRepo, auditRepo := newJanitorFixture(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	expired := seedDoc(t, docRepo, "old-plan.txt", model.KindCheckable, &past)
	fresh := seedDoc(t, docRepo, "new-plan.txt", model.KindCheckable, &future)
	reference := seedDoc(t, docRepo, "gost-123.txt", model.KindReference, &past)

	removed, err := janitor.Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	if doc, err := docRepo.GetByID(expired.ID); err != nil {
		t.Fatalf("get expired: %v", err)
	} else if doc != nil {
		t.Error("expired document should be gone")
	}
	for _, keep := range []*model.Document{fresh, reference} {
		if doc, err := docRepo.GetByID(keep.ID); err != nil || doc == nil {
			t.Errorf("document %s should survive the sweep (%v)", keep.Filename, err)
		}
	}

	entries, err := auditRepo.ListRecent(10)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Action != "scheduled_delete" || entry.TargetType != "document" || entry.TargetID != expired.ID {
		t.Errorf("unexpected audit entry: %+v", entry)
	}
}

func TestSweepNothingExpired(t *testing.T) {
	janitor, docRepo, _ := newJanitorFixture(t)

	future := time.Now().Add(time.Hour)
	seedDoc(t, docRepo, "plan.txt", model.KindCheckable, &future)

	removed, err := janitor.Sweep()
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
}
