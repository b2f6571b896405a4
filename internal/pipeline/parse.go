package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const affinitySchemaJSON = `{
  "type": "object",
  "required": ["candidates"],
  "properties": {
    "candidates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["product_name"],
        "properties": {
          "product_name": {"type": "string", "minLength": 1},
          "recommendation_type": {"type": "string"},
          "rationale": {"type": "string"},
          "estimated_value_hint": {"type": ["string", "number", "null"]}
        }
      }
    }
  }
}`

const scoringSchemaJSON = `{
  "type": "object",
  "required": ["scores"],
  "properties": {
    "scores": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["product_name", "confidence_score"],
        "properties": {
          "product_name": {"type": "string", "minLength": 1},
          "recommendation_type": {"type": "string"},
          "confidence_score": {"type": ["number", "string"]},
          "estimated_value": {"type": ["number", "string", "null"]},
          "rationale": {"type": "string"}
        }
      }
    }
  }
}`

var (
	affinitySchema = mustSchema(affinitySchemaJSON)
	scoringSchema  = mustSchema(scoringSchemaJSON)
)

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic("pipeline: invalid schema: " + err.Error())
	}
	return schema
}

// extractJSON strips markdown fences and returns the JSON document in text.
// Text that opens with '{' or '[' is JSON by contract; otherwise an object or
// array embedded in prose is used only when it is valid JSON. ok is false
// when text holds no JSON document.
func extractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		closer := "}"
		if text[0] == '[' {
			closer = "]"
		}
		if doc, ok := enclosed(text, text[:1], closer); ok {
			return doc, true
		}
		return text, true
	}

	// Prefer whichever valid document starts first.
	best, bestAt := "", -1
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		doc, ok := enclosed(text, pair[0], pair[1])
		if !ok || !json.Valid([]byte(doc)) {
			continue
		}
		if at := strings.Index(text, doc); bestAt < 0 || at < bestAt {
			best, bestAt = doc, at
		}
	}
	return best, bestAt >= 0
}

// enclosed returns text from the first open to the last close delimiter.
func enclosed(text, open, close string) (string, bool) {
	start := strings.Index(text, open)
	end := strings.LastIndex(text, close)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// wrapArray turns a bare JSON array into {"key": [...]} so one schema covers
// both shapes.
func wrapArray(doc, key string) string {
	if !strings.HasPrefix(doc, "[") {
		return doc
	}
	return `{"` + key + `":` + doc + `}`
}

// decodeValidated checks doc against schema and decodes it into v.
func decodeValidated(schema *gojsonschema.Schema, doc string, v any) error {
	res, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return malformedf("invalid JSON: %v", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return malformedf("schema violation: %s", strings.Join(msgs, "; "))
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return malformedf("decode: %v", err)
	}
	return nil
}

// listMarker matches a leading bullet or "1." / "1)" list number.
var listMarker = regexp.MustCompile(`^\s*(?:[•*-]|\d+[.)])\s*`)

// parseBulletLines reads a plain list of product names, one per line.
func parseBulletLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Based on") || strings.HasPrefix(line, "Here are") {
			continue
		}
		line = strings.TrimSpace(listMarker.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// scoreBlock is one entry of the line-oriented scoring format.
type scoreBlock struct {
	Product   string
	Type      string
	Score     string
	Rationale string
	Value     string
}

// parseScoreBlocks reads "Product:/Type:/Score:/Rationale:/Value:" blocks
// separated by "---". Blocks without Product and Type are dropped.
func parseScoreBlocks(text string) []scoreBlock {
	var out []scoreBlock
	for _, entry := range strings.Split(text, "---") {
		var b scoreBlock
		for _, line := range strings.Split(entry, "\n") {
			line = strings.TrimSpace(line)
			key, val, found := strings.Cut(line, ":")
			if !found {
				continue
			}
			val = strings.TrimSpace(val)
			switch strings.TrimSpace(key) {
			case "Product":
				b.Product = val
			case "Type":
				b.Type = val
			case "Score":
				b.Score = val
			case "Rationale":
				b.Rationale = val
			case "Value":
				b.Value = val
			}
		}
		if b.Product != "" && b.Type != "" {
			out = append(out, b)
		}
	}
	return out
}

// parseMoney reads a number, optionally written as currency text.
func parseMoney(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.NewReplacer("$", "", ",", "", "USD", "", " ", "").Replace(strings.TrimSpace(n))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// parseConfidence reads a confidence written as a number or numeric text.
// A trailing percent sign means the value is on a 0-100 scale.
func parseConfidence(v any) (float64, bool) {
	s, ok := v.(string)
	if !ok {
		return parseMoney(v)
	}
	s = strings.TrimSpace(s)
	if pct, found := strings.CutSuffix(s, "%"); found {
		f, ok := parseMoney(strings.TrimSpace(pct))
		return f / 100, ok
	}
	return parseMoney(s)
}

func hintString(v any) string {
	switch h := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(h)
	case float64:
		return strconv.FormatFloat(h, 'f', -1, 64)
	default:
		return fmt.Sprint(h)
	}
}
