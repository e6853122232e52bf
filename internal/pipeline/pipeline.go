package pipeline

import (
	"log/slog"

	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// Middleware processes a candidate and returns the (possibly modified)
// candidate. Return nil to drop it.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a candidate. Return nil to drop it.
	Process(c *types.NewsCandidate) (*types.NewsCandidate, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default returns the chain every scraped candidate goes through before
// reconciliation.
func Default(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(NewHTMLSanitizeMiddleware())
	p.Use(&TitleLengthMiddleware{Max: types.MaxTitleLength})
	p.Use(&ImageURLMiddleware{})
	p.Use(&RequiredFieldsMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the candidate through all middleware in order.
func (p *Pipeline) Process(c *types.NewsCandidate) (*types.NewsCandidate, error) {
	current := c

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:     mw.Name(),
				Candidate: current,
				Err:       err,
			}
		}
		if result == nil {
			p.logger.Debug("candidate dropped", "stage", mw.Name(), "url", c.SourceURL)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
