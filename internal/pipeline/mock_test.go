package pipeline

import (
	"context"
	"io"
	"strings"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/csse-ingest/internal/monitoring"
	"github.com/sells-group/csse-ingest/internal/runlog"
)

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return io.NopCloser(strings.NewReader(args.String(0))), args.Error(1)
}

// --- Uploader Mock ---

type mockUploader struct {
	mock.Mock
}

func (m *mockUploader) Upload(ctx context.Context, localPath, bucket, key string) error {
	args := m.Called(ctx, localPath, bucket, key)
	return args.Error(0)
}

// --- CrawlerManager Mock ---

type mockCrawlers struct {
	mock.Mock
}

func (m *mockCrawlers) Ensure(ctx context.Context, name, targetPath string) error {
	args := m.Called(ctx, name, targetPath)
	return args.Error(0)
}

func (m *mockCrawlers) Start(ctx context.Context, name string, poll bool) error {
	args := m.Called(ctx, name, poll)
	return args.Error(0)
}

// --- RunRecorder Mock ---

type mockRuns struct {
	mock.Mock
}

func (m *mockRuns) Start(ctx context.Context, feed string) (string, error) {
	args := m.Called(ctx, feed)
	return args.String(0), args.Error(1)
}

func (m *mockRuns) Complete(ctx context.Context, id string, res runlog.Result) error {
	args := m.Called(ctx, id, res)
	return args.Error(0)
}

func (m *mockRuns) Fail(ctx context.Context, id string, cause error) error {
	args := m.Called(ctx, id, cause)
	return args.Error(0)
}

// --- Alerter Mock ---

type mockAlerter struct {
	mock.Mock
}

func (m *mockAlerter) SendAlerts(ctx context.Context, alerts []monitoring.Alert) int {
	args := m.Called(ctx, alerts)
	return args.Int(0)
}
