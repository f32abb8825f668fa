package parser

import (
	"github.com/jonesrussell/storesync/internal/domain"
)

// Registry selects the parser for a source by its platform kind. Dispatch is
// explicit: an unmapped kind falls back to the generic parser, never to
// runtime type inspection.
type Registry struct {
	parsers map[domain.PlatformKind]Parser
}

// NewRegistry creates a registry with every platform parser registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[domain.PlatformKind]Parser)}
	r.Register(NewEBayParser())
	r.Register(NewEtsyParser())
	r.Register(NewShopifyParser())
	return r
}

// Register adds a parser under its platform kind.
func (r *Registry) Register(p Parser) {
	r.parsers[p.Platform()] = p
}

// ForSource returns the parser for a source. Generic-website sources get a
// parser bound to their selector configuration; unknown kinds fall back to
// the unconfigured generic parser.
func (r *Registry) ForSource(source *domain.Source, opts *domain.SourceOptions) Parser {
	if source.Platform == domain.PlatformWebsite {
		var selectors *domain.SelectorConfig
		if opts != nil {
			selectors = opts.Selectors
		}
		return NewGenericParser(selectors)
	}

	if p, ok := r.parsers[source.Platform]; ok {
		return p
	}

	return NewGenericParser(nil)
}

// ForURL returns the first registered parser that recognizes the URL, or
// the generic fallback.
func (r *Registry) ForURL(rawURL string) Parser {
	for _, p := range r.parsers {
		if p.CanHandle(rawURL) {
			return p
		}
	}
	return NewGenericParser(nil)
}

// MarkupFallback returns the parser used when a platform's structured feed
// comes back empty or unusable and the driver silently falls back to
// scraping markup.
func (r *Registry) MarkupFallback(opts *domain.SourceOptions) Parser {
	var selectors *domain.SelectorConfig
	if opts != nil {
		selectors = opts.Selectors
	}
	return NewGenericParser(selectors)
}
