package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/instadmio/instadm-appointment-setter/platform/logger"
)

// ObjectStore is the write side of an S3-compatible bucket.
type ObjectStore interface {
	PutBytes(ctx context.Context, bucket, key, contentType string, data []byte) error
}

// ArchivingScraper stores every scraped profile in object storage before
// returning it. Storage failures are logged and otherwise ignored.
type ArchivingScraper struct {
	next   Scraper
	store  ObjectStore
	bucket string
	log    *logger.Logger
	now    func() time.Time
}

// NewArchivingScraper wraps next. Keys are prefixed with the tenant carried
// on the request context.
func NewArchivingScraper(next Scraper, store ObjectStore, bucket string, log *logger.Logger) *ArchivingScraper {
	return &ArchivingScraper{next: next, store: store, bucket: bucket, log: log, now: time.Now}
}

func (a *ArchivingScraper) ScrapeProfile(ctx context.Context, username string) (json.RawMessage, error) {
	data, err := a.next.ScrapeProfile(ctx, username)
	if err != nil || len(data) == 0 {
		return data, err
	}

	key := SnapshotKey(tenantFrom(ctx), username, a.now())
	if err := a.store.PutBytes(ctx, a.bucket, key, "application/json", data); err != nil {
		a.log.WithContext(ctx).Warn("scraper: snapshot archive failed", "key", key, "error", err)
	}
	return data, nil
}

// SnapshotKey is <tenant>/<username>/<timestamp>.json.
func SnapshotKey(tenantID, username string, at time.Time) string {
	if tenantID == "" {
		tenantID = "unknown"
	}
	return fmt.Sprintf("%s/%s/%s.json", tenantID, username, at.UTC().Format("20060102T150405.000000000Z"))
}

func tenantFrom(ctx context.Context) string {
	tenant, _ := ctx.Value(logger.TenantIDKey).(string)
	return tenant
}
