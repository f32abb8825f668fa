package domain

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Options decodes the source's config blob into typed crawl options.
// An empty or nil blob yields defaults.
func (s *Source) Options() (*SourceOptions, error) {
	opts := &SourceOptions{}
	if len(s.Config) == 0 {
		return opts, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           opts,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build config decoder: %w", err)
	}

	if decodeErr := decoder.Decode(map[string]any(s.Config)); decodeErr != nil {
		return nil, fmt.Errorf("decode source config: %w", decodeErr)
	}

	return opts, nil
}
