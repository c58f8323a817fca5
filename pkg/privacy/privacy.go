// Package privacy detects and masks personally identifiable information in
// datasets before any data leaves the core for external consumers.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// Kind classifies detected PII.
type Kind string

const (
	KindEmail    Kind = "email"
	KindPhone    Kind = "phone"
	KindSSN      Kind = "ssn"
	KindCard     Kind = "credit_card"
	KindIP       Kind = "ip_address"
	KindName     Kind = "name"
	KindAddress  Kind = "address"
	KindIdentity Kind = "identity"
)

// Strategy chooses how a detected column is masked.
type Strategy string

const (
	StrategyPartial Strategy = "partial"
	StrategyFull    Strategy = "full"
	StrategyHash    Strategy = "hash"
	StrategyRemove  Strategy = "remove"
)

// Detection marks one column as containing PII.
type Detection struct {
	Column     string  `json:"column"`
	Kind       Kind    `json:"kind"`
	Confidence float64 `json:"confidence"`
	// ByName is true when the column name alone triggered detection.
	ByName bool `json:"by_name"`
}

var patterns = []struct {
	kind    Kind
	re      *regexp.Regexp
	minRate float64
}{
	{KindEmail, regexp.MustCompile(`^[\w.+-]+@[\w-]+\.[\w.]+$`), 0.5},
	{KindSSN, regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`), 0.5},
	{KindCard, regexp.MustCompile(`^(?:\d[ -]?){13,19}$`), 0.5},
	{KindIP, regexp.MustCompile(`^(?:\d{1,3}\.){3}\d{1,3}$`), 0.5},
	{KindPhone, regexp.MustCompile(`^\+?[\d\s().-]{7,20}$`), 0.3},
}

// nameHints maps column-name keywords to PII kinds.
var nameHints = map[string]Kind{
	"email":  KindEmail,
	"e_mail": KindEmail,

	"phone":     KindPhone,
	"mobile":    KindPhone,
	"telephone": KindPhone,

	"ssn":             KindSSN,
	"social_security": KindSSN,

	"credit_card": KindCard,
	"card_number": KindCard,

	"ip_address": KindIP,

	"first_name": KindName,
	"last_name":  KindName,
	"full_name":  KindName,
	"surname":    KindName,

	"address":  KindAddress,
	"street":   KindAddress,
	"zip":      KindAddress,
	"postcode": KindAddress,

	"passport":    KindIdentity,
	"national_id": KindIdentity,
	"dob":         KindIdentity,
	"birth":       KindIdentity,
}

// Masker detects and masks PII columns.
type Masker struct {
	logger *slog.Logger
}

// NewMasker creates a Masker. A nil logger discards output.
func NewMasker(logger *slog.Logger) *Masker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Masker{logger: logger}
}

// Detect scans every column for PII by name keywords first, then by value
// pattern match rate.
func (m *Masker) Detect(ds *dataset.Dataset) []Detection {
	var out []Detection
	for _, col := range ds.Columns {
		if d, ok := detectByName(col.Name); ok {
			out = append(out, d)
			continue
		}
		if col.Type != dataset.TypeText {
			continue
		}
		if d, ok := detectByValues(col); ok {
			out = append(out, d)
		}
	}
	m.logger.Debug("pii scan complete", "dataset", ds.Name, "detections", len(out))
	return out
}

func detectByName(name string) (Detection, bool) {
	n := strings.ToLower(name)
	for hint, kind := range nameHints {
		if strings.Contains(n, hint) {
			return Detection{Column: name, Kind: kind, Confidence: 1.0, ByName: true}, true
		}
	}
	return Detection{}, false
}

func detectByValues(col *dataset.Column) (Detection, bool) {
	nonNull := 0
	matches := map[Kind]int{}
	for _, v := range col.Values {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		nonNull++
		for _, p := range patterns {
			if p.re.MatchString(strings.TrimSpace(s)) {
				matches[p.kind]++
				break
			}
		}
	}
	if nonNull == 0 {
		return Detection{}, false
	}
	for _, p := range patterns {
		rate := float64(matches[p.kind]) / float64(nonNull)
		if rate >= p.minRate {
			return Detection{Column: col.Name, Kind: p.kind, Confidence: rate}, true
		}
	}
	return Detection{}, false
}

// Mask returns a copy of the dataset with the detected columns masked by
// the given strategy. StrategyRemove drops the column entirely.
func (m *Masker) Mask(ds *dataset.Dataset, detections []Detection, strategy Strategy) (*dataset.Dataset, error) {
	flagged := make(map[string]Kind, len(detections))
	for _, d := range detections {
		flagged[d.Column] = d.Kind
	}
	out := ds.Clone()
	if strategy == StrategyRemove {
		kept := out.Columns[:0]
		for _, col := range out.Columns {
			if _, ok := flagged[col.Name]; !ok {
				kept = append(kept, col)
			}
		}
		out.Columns = kept
		return out, nil
	}
	for _, col := range out.Columns {
		kind, ok := flagged[col.Name]
		if !ok {
			continue
		}
		for i, v := range col.Values {
			if v == nil {
				continue
			}
			s := dataset.FormatValue(v)
			masked, err := maskValue(s, kind, strategy)
			if err != nil {
				return nil, err
			}
			col.Values[i] = masked
		}
		col.Type = dataset.TypeText
	}
	return out, nil
}

func maskValue(s string, kind Kind, strategy Strategy) (string, error) {
	switch strategy {
	case StrategyFull:
		return strings.Repeat("*", len(s)), nil
	case StrategyHash:
		sum := sha256.Sum256([]byte(s))
		return hex.EncodeToString(sum[:])[:16], nil
	case StrategyPartial:
		return partialMask(s, kind), nil
	default:
		return "", fmt.Errorf("unknown masking strategy %q", strategy)
	}
}

// partialMask keeps enough of the value to stay recognizable: the first
// character and domain for emails, the last 4 digits for numbers.
func partialMask(s string, kind Kind) string {
	switch kind {
	case KindEmail:
		at := strings.LastIndex(s, "@")
		if at > 0 {
			return s[:1] + strings.Repeat("*", at-1) + s[at:]
		}
	case KindPhone, KindSSN, KindCard:
		if len(s) > 4 {
			return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
		}
	}
	if len(s) <= 2 {
		return strings.Repeat("*", len(s))
	}
	return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
}

// Minimize drops every column not in the keep list and truncates to the
// first maxRows rows (0 means no cap). It is the data-minimization step
// applied before a dataset crosses to an external consumer.
func Minimize(ds *dataset.Dataset, keep []string, maxRows int) *dataset.Dataset {
	wanted := make(map[string]bool, len(keep))
	for _, k := range keep {
		wanted[k] = true
	}
	out := ds.Clone()
	kept := out.Columns[:0]
	for _, col := range out.Columns {
		if !wanted[col.Name] {
			continue
		}
		if maxRows > 0 && len(col.Values) > maxRows {
			col.Values = col.Values[:maxRows]
		}
		kept = append(kept, col)
	}
	out.Columns = kept
	return out
}
