package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/csse-ingest/internal/columnar"
	"github.com/sells-group/csse-ingest/internal/storage"
)

// stages selects how far publish goes.
type stages struct {
	poll        bool
	skipUpload  bool
	skipCrawler bool
}

// publish writes rows to t.file, uploads it to t.key and starts the crawler
// on the key's directory. The returned Artifact reflects the steps reached,
// also on error.
func publish[T any](ctx context.Context, p *Pipeline, t target, rows []T, st stages) (Artifact, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("artifact", t.name))
	art := Artifact{
		Name:      t.name,
		LocalPath: t.file,
		Key:       t.key,
		Crawler:   t.crawler,
		Records:   len(rows),
	}

	start := time.Now()
	if err := columnar.WriteFile(t.file, rows); err != nil {
		return art, eris.Wrapf(err, "pipeline: write %s", t.name)
	}
	log.Info("pipeline: parquet written",
		zap.String("path", t.file),
		zap.Int("records", len(rows)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	if st.skipUpload {
		return art, nil
	}

	if err := p.upload.Upload(ctx, t.file, p.cfg.Bucket, t.key); err != nil {
		return art, eris.Wrapf(err, "pipeline: upload %s", t.name)
	}
	art.Uploaded = true
	if p.metrics != nil {
		p.metrics.ArtifactsTotal.Inc()
	}
	if st.skipCrawler {
		return art, nil
	}

	if err := p.crawlers.Ensure(ctx, t.crawler, storage.TargetPath(p.cfg.Bucket, t.key)); err != nil {
		return art, eris.Wrapf(err, "pipeline: ensure crawler for %s", t.name)
	}
	if err := p.crawlers.Start(ctx, t.crawler, st.poll); err != nil {
		return art, eris.Wrapf(err, "pipeline: start crawler for %s", t.name)
	}
	art.Crawled = true
	return art, nil
}
