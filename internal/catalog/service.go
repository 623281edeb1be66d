// Package catalog manages the lifecycle of the metadata crawlers that catalog
// published datasets.
package catalog

import (
	"context"

	"github.com/rotisserie/eris"
)

// State is the lifecycle state reported by the crawl service.
type State string

const (
	StateReady    State = "READY"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
)

var (
	// ErrNotFound is returned by Service.GetCrawler when no crawler has the name.
	ErrNotFound = eris.New("crawler not found")
	// ErrAlreadyRunning is returned by Service.StartCrawler when a run is in progress.
	ErrAlreadyRunning = eris.New("crawler already running")
	// ErrInvalidTarget is returned by Ensure for target paths that name an object.
	ErrInvalidTarget = eris.New("crawler target must be a prefix")
)

// Crawler is a snapshot of a remote crawl resource.
type Crawler struct {
	Name       string
	State      State
	Database   string
	TargetPath string
}

// CrawlerSpec describes a crawler to create.
type CrawlerSpec struct {
	Name       string
	Role       string
	Database   string
	TargetPath string
}

// Service is the remote crawl API the Manager drives.
type Service interface {
	GetCrawler(ctx context.Context, name string) (*Crawler, error)
	CreateCrawler(ctx context.Context, spec CrawlerSpec) error
	StartCrawler(ctx context.Context, name string) error
}
