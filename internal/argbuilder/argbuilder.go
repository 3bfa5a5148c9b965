// Package argbuilder resolves a chosen tool's input arguments from free
// text (spec §4.10 Argument Builder): for each schema field, try a
// declared extraction pattern, then a type-driven heuristic, then an
// advisor call, then the field's default — in that order, stopping at the
// first that produces a value. A required field left unresolved fails the
// whole build with ArgumentsIncomplete rather than invoking with partial
// arguments.
//
// Grounded on Design Notes §9's "tagged enum, no reflection": schema
// fields are walked as the explicit model.SchemaField slice built by the
// upstream package, never through reflect.
package argbuilder

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/kubilitics/mcp-gateway/internal/advisor"
	"github.com/kubilitics/mcp-gateway/internal/gwerr"
	"github.com/kubilitics/mcp-gateway/internal/model"
)

// AdvisorClient is the tool-ranking subset of advisor.Client. Builder does
// not use it: its advisor step goes through FieldGuess.
type AdvisorClient interface {
	Rank(ctx context.Context, taskText string, candidates []model.Tool) ([]advisor.Ranking, error)
}

// FieldGuess is implemented by a small advisor-backed helper that asks the
// advisor to produce a literal value for one field; kept separate from
// AdvisorClient's Rank (which scores tools, not fields) since the prompt
// shape is entirely different.
type FieldGuess func(ctx context.Context, taskText string, field model.SchemaField) (any, bool)

// Builder resolves arguments for one tool invocation at a time.
type Builder struct {
	guess FieldGuess
}

// New builds a Builder. guess may be nil, in which case the advisor step
// is skipped and only extraction/heuristic/default are tried.
func New(guess FieldGuess) *Builder {
	return &Builder{guess: guess}
}

// Build resolves every field of schema against taskText, returning
// ArgumentsIncomplete if any required field has no value after all
// strategies are tried (spec §4.10).
func (b *Builder) Build(ctx context.Context, taskText string, schema model.InputSchema) (map[string]any, error) {
	args := make(map[string]any, len(schema.Fields))
	var missing []string

	for _, field := range schema.Fields {
		value, ok := b.resolveField(ctx, taskText, field)
		if ok {
			args[field.Name] = value
			continue
		}
		if field.Required {
			missing = append(missing, field.Name)
		}
	}

	if len(missing) > 0 {
		return nil, gwerr.Newf(gwerr.ArgumentsIncomplete, "missing required fields: %s", strings.Join(missing, ", "))
	}
	return args, nil
}

func (b *Builder) resolveField(ctx context.Context, taskText string, field model.SchemaField) (any, bool) {
	if field.Pattern != "" {
		if v, ok := extractByPattern(taskText, field); ok {
			return v, true
		}
	}
	if v, ok := heuristicExtract(taskText, field); ok {
		return v, true
	}
	if b.guess != nil {
		if v, ok := b.guess(ctx, taskText, field); ok {
			return v, true
		}
	}
	if field.Default != nil {
		return field.Default, true
	}
	return nil, false
}

func extractByPattern(taskText string, field model.SchemaField) (any, bool) {
	re, err := regexp.Compile(field.Pattern)
	if err != nil {
		return nil, false
	}
	match := re.FindStringSubmatch(taskText)
	if match == nil {
		return nil, false
	}
	if len(match) > 1 {
		return coerce(match[1], field.Type), true
	}
	return coerce(match[0], field.Type), true
}

// heuristicExtract applies a small set of type-driven rules: an enum
// field matches if any of its allowed values appears verbatim in the
// text; a boolean field matches common yes/no phrasing; numbers and
// strings fall through to the advisor step when no pattern was declared.
func heuristicExtract(taskText string, field model.SchemaField) (any, bool) {
	lower := strings.ToLower(taskText)
	switch field.Type {
	case model.SchemaEnum:
		for _, option := range field.Enum {
			if strings.Contains(lower, strings.ToLower(option)) {
				return option, true
			}
		}
	case model.SchemaBool:
		if containsAny(lower, "yes", "true", "enable", "on") {
			return true, true
		}
		if containsAny(lower, "no", "false", "disable", "off") {
			return false, true
		}
	}
	return nil, false
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func coerce(raw string, fieldType model.SchemaFieldType) any {
	switch fieldType {
	case model.SchemaNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case model.SchemaBool:
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return raw
}
