// Package etl implements the warehouse-loading pipeline: dimension
// resolution, conformed-attribute derivation, time dimension
// generation, and the fact merge across all source origins.
package etl

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// BaselineClassifications always exist after a run, whatever the
// survey data contains.
var BaselineClassifications = []string{"Positiva", "Negativa", "Neutra"}


// ExtractProductID strips every non-digit character from a source
// product code and parses the remainder ("P016" -> 16). Codes with no
// digits are rejected, never defaulted.
func ExtractProductID(code string) (int, error) {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(code) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, eris.Errorf("resolve: product code %q has no numeric id", code)
	}
	id, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, eris.Wrapf(err, "resolve: product code %q", code)
	}
	return id, nil
}

// ProductResolution is the outcome of normalizing product candidates.
type ProductResolution struct {
	Dims     []model.ProductDim
	Rejected []string // product codes with no extractable numeric id
}

// ResolveProducts normalizes product codes to integer natural keys and
// deduplicates them, first writer wins.
func ResolveProducts(products []model.RawProduct) ProductResolution {
	var res ProductResolution
	seen := make(map[int]bool, len(products))
	for _, p := range products {
		id, err := ExtractProductID(p.ProductCode)
		if err != nil {
			res.Rejected = append(res.Rejected, p.ProductCode)
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		res.Dims = append(res.Dims, model.ProductDim{ID: id, Name: p.Name, Category: p.Category})
	}
	return res
}

// ResolveClients deduplicates client candidates by natural key, first
// writer wins. Blank ids are dropped.
func ResolveClients(clients []model.RawClient) []model.ClientDim {
	var dims []model.ClientDim
	seen := make(map[string]bool, len(clients))
	for _, c := range clients {
		id := strings.TrimSpace(c.ClientID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		dims = append(dims, model.ClientDim{NaturalKey: id, Name: c.Name, Email: c.Email})
	}
	return dims
}

// ResolveDataSources deduplicates data-source candidates by source
// code, first writer wins. Blank codes are dropped.
func ResolveDataSources(sources []model.RawDataSource) []model.DataSourceDim {
	var dims []model.DataSourceDim
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		code := strings.TrimSpace(s.SourceCode)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		dims = append(dims, model.DataSourceDim{Code: code, Type: s.SourceType, LoadedAt: s.LoadedAt})
	}
	return dims
}

// HarmonizeLabel normalizes a free-text classification label: trimmed
// and title-cased with Spanish casing rules ("positiva" -> "Positiva").
// Blank input harmonizes to "".
func HarmonizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	// cases.Caser carries transform state, so a fresh one per call
	// keeps this safe from the concurrent fact phases.
	return cases.Title(language.Spanish).String(strings.ToLower(label))
}

// ClassificationSet returns the union of every distinct non-blank
// harmonized classification label in the surveys plus the baseline
// labels, sorted for deterministic load order.
func ClassificationSet(surveys []model.RawSurveyOpinion) []string {
	set := make(map[string]bool, len(surveys)+len(BaselineClassifications))
	for _, label := range BaselineClassifications {
		set[label] = true
	}
	for _, s := range surveys {
		if label := HarmonizeLabel(s.Classification); label != "" {
			set[label] = true
		}
	}

	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
