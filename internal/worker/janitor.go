package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
)

// Janitor removes checkable documents whose review deadline has passed.
// Deletions cascade through elements, results, findings and reports, and
// every removal is recorded in the audit log.
type Janitor struct {
	docRepo   *repository.DocumentRepository
	auditRepo *repository.AuditRepository
	interval  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewJanitor(docRepo *repository.DocumentRepository, auditRepo *repository.AuditRepository, interval time.Duration) *Janitor {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Janitor{
		docRepo:   docRepo,
		auditRepo: auditRepo,
		interval:  interval,
	}
}

func (j *Janitor) Start(ctx context.Context) {
	if j.cancel != nil {
		return
	}
	janitorCtx, cancel := context.WithCancel(ctx)
	j.cancel = cancel

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-janitorCtx.Done():
				return
			case <-ticker.C:
				if n, err := j.Sweep(); err != nil {
					log.Printf("janitor sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("janitor removed %d expired documents", n)
				}
			}
		}
	}()
}

// Sweep deletes all expired checkable documents and returns how many.
func (j *Janitor) Sweep() (int, error) {
	expired, err := j.docRepo.ListExpired(time.Now())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, doc := range expired {
		if err := j.docRepo.Delete(doc.ID); err != nil {
			log.Printf("janitor delete document %d failed: %v", doc.ID, err)
			continue
		}
		removed++
		_ = j.auditRepo.Append(&model.AuditLog{
			Action:     "scheduled_delete",
			TargetType: "document",
			TargetID:   doc.ID,
			Detail:     fmt.Sprintf("%s expired at %s", doc.Filename, doc.ReviewDeadline.Format(time.RFC3339)),
		})
	}
	return removed, nil
}

func (j *Janitor) Close() {
	if j.cancel != nil {
		j.cancel()
	}
	j.wg.Wait()
}
