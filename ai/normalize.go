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

import "strings"

// NormalizeResult canonicalizes raw extractor output before persistence.
//
// Entities are deduplicated by (type, lowercase name); the first occurrence
// wins, including its description. Types are uppercased with runs of
// non-alphanumeric characters collapsed to single underscores; entities with
// an empty type become "CONCEPT", entities with no name are dropped.
// Relationship types get the same token treatment, with empty results
// replaced by RelationshipDefault. Relationships whose endpoints do not
// resolve to a surviving entity name are dropped, as are exact duplicates
// of an earlier (from, to, type) triple.
//
// The input is never modified. A nil input yields an empty result.
func NormalizeResult(res *ExtractionResult) *ExtractionResult {
	out := &ExtractionResult{}
	if res == nil {
		return out
	}

	seen := make(map[string]bool, len(res.Entities))
	names := make(map[string]bool, len(res.Entities))
	for _, ent := range res.Entities {
		name := strings.TrimSpace(ent.Name)
		if name == "" {
			continue
		}
		typ := normalizeToken(ent.Type)
		if typ == "" {
			typ = "CONCEPT"
		}
		key := typ + "\x00" + strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names[strings.ToLower(name)] = true
		out.Entities = append(out.Entities, ExtractedEntity{
			Type:        typ,
			Name:        name,
			Description: strings.TrimSpace(ent.Description),
		})
	}

	dedup := make(map[string]bool, len(res.Relationships))
	for _, rel := range res.Relationships {
		from := strings.TrimSpace(rel.From)
		to := strings.TrimSpace(rel.To)
		if !names[strings.ToLower(from)] || !names[strings.ToLower(to)] {
			continue
		}
		typ := normalizeToken(rel.Type)
		if typ == "" {
			typ = RelationshipDefault
		}
		key := strings.ToLower(from) + "\x00" + strings.ToLower(to) + "\x00" + typ
		if dedup[key] {
			continue
		}
		dedup[key] = true
		out.Relationships = append(out.Relationships, ExtractedRelationship{
			From:    from,
			To:      to,
			Type:    typ,
			Context: strings.TrimSpace(rel.Context),
		})
	}

	return out
}

// normalizeToken uppercases a label and collapses every run of
// non-alphanumeric characters into a single underscore. Leading and
// trailing separators are stripped entirely.
func normalizeToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
	}
	return b.String()
}
