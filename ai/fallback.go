// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"context"
	"log/slog"
)

// fallbackExtractor runs a primary extractor and silently falls back to
// a secondary one when the primary fails.
type fallbackExtractor struct {
	primary  EntityExtractor
	fallback EntityExtractor
	logger   *slog.Logger
}

var _ EntityExtractor = (*fallbackExtractor)(nil)

// NewFallbackExtractor combines a primary extractor (typically the LLM
// path) with a deterministic fallback. A primary failure of any kind is
// logged and absorbed; the fallback runs instead. If the fallback also
// fails the result is empty, never an error, so extraction can never
// fail a document.
func NewFallbackExtractor(primary, fallback EntityExtractor, logger *slog.Logger) EntityExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &fallbackExtractor{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "extractor"),
	}
}

func (f *fallbackExtractor) ExtractEntities(ctx context.Context, text string) (*ExtractionResult, error) {
	if f.primary != nil {
		result, err := f.primary.ExtractEntities(ctx, text)
		if err == nil && result != nil {
			return result, nil
		}
		if err != nil {
			f.logger.Warn("primary extraction failed, using fallback", "err", err)
		}
	}

	if f.fallback == nil {
		return &ExtractionResult{}, nil
	}

	result, err := f.fallback.ExtractEntities(ctx, text)
	if err != nil || result == nil {
		if err != nil {
			f.logger.Warn("fallback extraction failed", "err", err)
		}
		return &ExtractionResult{}, nil
	}
	return result, nil
}
