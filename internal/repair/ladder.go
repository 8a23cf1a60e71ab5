// Package repair turns raw, frequently malformed model output into structured
// data. Repairs are attempted as an ordered ladder: each rung is more
// permissive and less faithful than the one before it, and the final rung is a
// synthetic fallback that is always valid.
package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

// Rung names, in ladder order.
const (
	RungDirect     = "direct"
	RungSanitized  = "sanitized"
	RungBasic      = "basic"
	RungAggressive = "aggressive"
	RungFields     = "fields"
	RungFallback   = "fallback"
)

// ErrNoObject is returned when the text contains no '{' at all.
var ErrNoObject = errors.New("no JSON object found in model output")

// Rung prepares a candidate JSON object text from raw model output.
type Rung struct {
	Name    string
	Prepare func(raw string) (string, error)
}

// Ladder is the ordered list of text rungs tried before field extraction.
// Order is part of the contract: strict first.
var Ladder = []Rung{
	{Name: RungDirect, Prepare: prepareDirect},
	{Name: RungSanitized, Prepare: prepareSanitized},
	{Name: RungBasic, Prepare: prepareBasic},
	{Name: RungAggressive, Prepare: prepareAggressive},
}

func prepareDirect(raw string) (string, error) {
	cleaned := stripFences(raw)
	start := strings.Index(cleaned, "{")
	if start < 0 {
		return "", ErrNoObject
	}
	return cleaned[start:], nil
}

func prepareSanitized(raw string) (string, error) {
	candidate, err := prepareDirect(raw)
	if err != nil {
		return "", err
	}
	return sanitize(candidate), nil
}

func prepareBasic(raw string) (string, error) {
	cleaned := stripFences(raw)
	start := strings.Index(cleaned, "{")
	if start < 0 {
		return "", ErrNoObject
	}
	candidate := cleaned[start:]
	if end := matchBraces(cleaned, start); end >= 0 {
		candidate = cleaned[start : end+1]
	}
	return sanitize(candidate), nil
}

func prepareAggressive(raw string) (string, error) {
	cleaned := stripFences(raw)
	start := strings.Index(cleaned, "{")
	if start < 0 {
		return "", ErrNoObject
	}
	candidate := cleaned[start:]
	if end := matchBracesQuoted(cleaned, start); end >= 0 {
		candidate = cleaned[start : end+1]
	}
	return sanitize(flattenReplacer.Replace(candidate)), nil
}

// decodeObject parses s and requires the top-level value to be an object.
func decodeObject(s string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level JSON value is %T, not an object", v)
	}
	return obj, nil
}

// repairObject walks the text rungs and returns the first object that parses,
// the name of the rung that produced it, and otherwise the last error seen.
func repairObject(raw string) (map[string]any, string, error) {
	var lastErr error
	for _, rung := range Ladder {
		candidate, err := rung.Prepare(raw)
		if err != nil {
			lastErr = err
			continue
		}
		obj, err := decodeObject(candidate)
		if err != nil {
			lastErr = fmt.Errorf("%s parse: %w", rung.Name, err)
			continue
		}
		return obj, rung.Name, nil
	}
	return nil, "", lastErr
}

// RepairJSON runs the text rungs on raw and returns the recovered object
// re-encoded as JSON, together with the rung that recovered it. It is shape
// agnostic and is used for any object the model is asked for.
func RepairJSON(raw string) (json.RawMessage, string, error) {
	obj, rung, err := repairObject(raw)
	if err != nil {
		return nil, "", err
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, "", fmt.Errorf("failed to re-encode repaired JSON: %w", err)
	}
	return out, rung, nil
}

// Parse converts raw model output into a ParsedAnalysis. It never fails:
// when no rung recovers data it returns Fallback(raw, lastErr).
func Parse(raw string) models.ParsedAnalysis {
	analysis, _ := ParseWithRung(raw)
	return analysis
}

// ParseWithRung is Parse that also reports which rung produced the result.
func ParseWithRung(raw string) (models.ParsedAnalysis, string) {
	obj, rung, err := repairObject(raw)
	if err == nil {
		if rung != RungDirect {
			slog.Debug("Model output required repair.", "rung", rung, "rawLength", len(raw))
		}
		return FromMap(obj), rung
	}

	if analysis, ok := ExtractFields(raw); ok {
		slog.Warn("Recovered analysis by field extraction.", "error", err, "rawLength", len(raw))
		return analysis, RungFields
	}

	slog.Warn("All repair rungs failed, using fallback analysis.", "error", err, "rawLength", len(raw))
	return Fallback(raw, err), RungFallback
}
