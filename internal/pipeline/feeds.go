package pipeline

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/csse-ingest/internal/timeseries"
)

const (
	filePrefix   = "time_series_19-covid-"
	combinedName = "combined"
)

// Feed is one wide-format CSV to ingest.
type Feed struct {
	Status timeseries.Status
	URL    string
}

// Name is the feed's status name.
func (f Feed) Name() string { return f.Status.String() }

// FeedsFromConfig builds the feed list for statuses under baseURL. The CSV
// for status "deaths" is <baseURL>/time_series_19-covid-Deaths.csv.
func FeedsFromConfig(baseURL string, statuses []string) ([]Feed, error) {
	if len(statuses) == 0 {
		return nil, eris.New("pipeline: no statuses")
	}
	base := strings.TrimRight(baseURL, "/")
	feeds := make([]Feed, 0, len(statuses))
	seen := make(map[timeseries.Status]bool, len(statuses))
	for _, s := range statuses {
		status, err := timeseries.ParseStatus(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: feeds")
		}
		if seen[status] {
			continue
		}
		seen[status] = true
		feeds = append(feeds, Feed{
			Status: status,
			URL:    base + "/" + filePrefix + title(status.String()) + ".csv",
		})
	}
	return feeds, nil
}

// target names where one artifact is written, uploaded and crawled.
type target struct {
	name    string
	file    string
	key     string
	crawler string
}

func feedTarget(cfg Config, status timeseries.Status) target {
	return namedTarget(cfg, status.String())
}

func combinedTarget(cfg Config) target {
	return namedTarget(cfg, combinedName)
}

func namedTarget(cfg Config, name string) target {
	return target{
		name:    name,
		file:    filepath.Join(cfg.WorkDir, name+".parquet"),
		key:     path.Join(cfg.Prefix, name, filePrefix+title(name)+".parquet"),
		crawler: crawlerName(cfg.CrawlerPrefix, name),
	}
}

func crawlerName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "-" + name
}

// title upper-cases the first letter: "deaths" becomes "Deaths".
func title(s string) string {
	return cases.Title(language.English).String(s)
}

func runLabel(opts Options) string {
	if opts.Merge {
		return combinedName
	}
	names := make([]string, len(opts.Feeds))
	for i, f := range opts.Feeds {
		names[i] = f.Name()
	}
	return strings.Join(names, "+")
}
