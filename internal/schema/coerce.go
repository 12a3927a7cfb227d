package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

var (
	currencyCode = regexp.MustCompile(`^[A-Z]{3}\s*|\s*[A-Z]{3}$`)
	// commas only as thousands groups before any decimal point
	thousandsGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d+)?$`)
)

// ParseDecimal accepts the number spellings models tend to produce: thousands
// separators, currency symbols or codes, and accounting parentheses for negatives.
// A comma that is not a thousands separator (decimal comma) is rejected.
// Zero always comes back as canonical 0.
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = currencyCode.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	if strings.Contains(s, ",") {
		if !thousandsGrouped.MatchString(s) {
			return decimal.Zero, errors.Newf("ambiguous separators: %q", raw)
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	if s == "" {
		return decimal.Zero, errors.Newf("not a number: %q", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "not a number: %q", raw)
	}
	if neg {
		d = d.Neg()
	}
	if d.IsZero() {
		return decimal.Zero, nil
	}
	return d, nil
}

func isNullish(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") || strings.EqualFold(s, "n/a")
}

// Coerce normalises an untyped decoded object (decoded with UseNumber) into a
// document ready for validation. Strings are trimmed; numeric strings become
// json.Number; enum values are canonicalised. Null and empty values are dropped.
// Optional values that cannot be coerced are dropped; required ones are kept as-is
// so validation rejects them. Unknown keys are dropped. The second return lists
// what was dropped, for logging.
func (s *Schema) Coerce(raw map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(s.Fields))
	var dropped []string

	for _, f := range s.Fields {
		v, ok := raw[f.Name]
		if !ok {
			continue
		}
		cv, keep := s.coerceValue(f, v)
		switch {
		case keep:
			out[f.Name] = cv
		case cv == nil:
			dropped = append(dropped, f.Name+"(empty)")
		case f.Required:
			out[f.Name] = v
		default:
			dropped = append(dropped, f.Name+"(invalid)")
		}
	}

	var unknown []string
	for k := range raw {
		if !s.Has(k) {
			unknown = append(unknown, k+"(unknown)")
		}
	}
	sort.Strings(unknown)
	return out, append(dropped, unknown...)
}

// coerceValue returns (value, true) on success, (nil, false) for an empty value and
// (original, false) for a value that does not fit the field.
func (s *Schema) coerceValue(f Field, v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	switch f.Type {
	case Number:
		var d decimal.Decimal
		var err error
		switch t := v.(type) {
		case json.Number:
			d, err = ParseDecimal(t.String())
		case float64:
			d = decimal.NewFromFloat(t)
			if d.IsZero() {
				d = decimal.Zero
			}
		case string:
			if isNullish(t) {
				return nil, false
			}
			d, err = ParseDecimal(t)
		default:
			return v, false
		}
		if err != nil {
			return v, false
		}
		return json.Number(d.String()), true

	case Boolean:
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			if isNullish(t) {
				return nil, false
			}
			switch strings.ToLower(strings.TrimSpace(t)) {
			case "true", "yes", "y":
				return true, true
			case "false", "no", "n":
				return false, true
			}
		}
		return v, false

	default:
		var str string
		switch t := v.(type) {
		case string:
			str = t
		case json.Number:
			str = t.String()
		case float64:
			str = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			return v, false
		}
		str = strings.TrimSpace(str)
		if isNullish(str) {
			return nil, false
		}
		if norm, ok := s.normalizers[f.Name]; ok {
			if c, ok := norm(str); ok {
				str = c
			}
		}
		if len(f.Enum) == 0 {
			return str, true
		}
		for _, e := range f.Enum {
			if strings.EqualFold(e, str) {
				return e, true
			}
		}
		return str, false
	}
}

// ToRecord converts a validated document into a Record with typed values.
func (s *Schema) ToRecord(fileName string, doc map[string]any) (*entity.Record, error) {
	values := make(map[string]any, len(doc))
	for k, v := range doc {
		if n, ok := v.(json.Number); ok {
			d, err := decimal.NewFromString(n.String())
			if err != nil {
				return nil, errors.Wrapf(err, "field %s", k)
			}
			if d.IsZero() {
				d = decimal.Zero
			}
			values[k] = d
			continue
		}
		values[k] = v
	}
	return &entity.Record{FileName: fileName, Values: values}, nil
}

// FormatValue renders a record value for a CSV cell.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case decimal.Decimal:
		return t.String()
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
