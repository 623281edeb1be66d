package catalog

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"github.com/rotisserie/eris"
)

// GlueAPI is the subset of the Glue client used by GlueService.
type GlueAPI interface {
	GetCrawler(ctx context.Context, in *glue.GetCrawlerInput, optFns ...func(*glue.Options)) (*glue.GetCrawlerOutput, error)
	CreateCrawler(ctx context.Context, in *glue.CreateCrawlerInput, optFns ...func(*glue.Options)) (*glue.CreateCrawlerOutput, error)
	StartCrawler(ctx context.Context, in *glue.StartCrawlerInput, optFns ...func(*glue.Options)) (*glue.StartCrawlerOutput, error)
}

// GlueService implements Service on AWS Glue crawlers.
type GlueService struct {
	client GlueAPI
}

// NewGlueService wraps a Glue client.
func NewGlueService(client GlueAPI) *GlueService {
	return &GlueService{client: client}
}

// NewGlueClient builds a Glue client from a loaded AWS config. A non-empty
// endpoint overrides the service endpoint (LocalStack and similar).
func NewGlueClient(awsCfg aws.Config, endpoint string) *glue.Client {
	return glue.NewFromConfig(awsCfg, func(o *glue.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// GetCrawler returns the crawler or ErrNotFound.
func (g *GlueService) GetCrawler(ctx context.Context, name string) (*Crawler, error) {
	out, err := g.client.GetCrawler(ctx, &glue.GetCrawlerInput{Name: aws.String(name)})
	if err != nil {
		var nf *types.EntityNotFoundException
		if errors.As(err, &nf) {
			return nil, eris.Wrapf(ErrNotFound, "glue: %s", name)
		}
		return nil, eris.Wrapf(err, "glue: get crawler %s", name)
	}
	if out.Crawler == nil {
		return nil, eris.Wrapf(ErrNotFound, "glue: %s", name)
	}

	c := &Crawler{
		Name:     aws.ToString(out.Crawler.Name),
		State:    State(out.Crawler.State),
		Database: aws.ToString(out.Crawler.DatabaseName),
	}
	if t := out.Crawler.Targets; t != nil && len(t.S3Targets) > 0 {
		c.TargetPath = aws.ToString(t.S3Targets[0].Path)
	}
	return c, nil
}

// CreateCrawler creates a crawler with a single S3 target.
func (g *GlueService) CreateCrawler(ctx context.Context, spec CrawlerSpec) error {
	_, err := g.client.CreateCrawler(ctx, &glue.CreateCrawlerInput{
		Name:         aws.String(spec.Name),
		Role:         aws.String(spec.Role),
		DatabaseName: aws.String(spec.Database),
		Targets: &types.CrawlerTargets{
			S3Targets: []types.S3Target{{Path: aws.String(spec.TargetPath)}},
		},
	})
	if err != nil {
		return eris.Wrapf(err, "glue: create crawler %s", spec.Name)
	}
	return nil
}

// StartCrawler starts a crawl, returning ErrAlreadyRunning on conflict.
func (g *GlueService) StartCrawler(ctx context.Context, name string) error {
	_, err := g.client.StartCrawler(ctx, &glue.StartCrawlerInput{Name: aws.String(name)})
	if err != nil {
		var running *types.CrawlerRunningException
		if errors.As(err, &running) {
			return eris.Wrapf(ErrAlreadyRunning, "glue: %s", name)
		}
		return eris.Wrapf(err, "glue: start crawler %s", name)
	}
	return nil
}
