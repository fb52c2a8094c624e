package etl

import (
	"strings"

	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// networkBySource is the fixed source-code to social-network mapping.
// Lookups are case-insensitive; codes absent from the table map to no
// network at all.
var networkBySource = map[string]string{
	"FB":              "Facebook",
	"FACEBOOK":        "Facebook",
	"TW":              "Twitter",
	"TWITTER":         "Twitter",
	"IG":              "Instagram",
	"INSTAGRAM":       "Instagram",
	"ENCUESTAINTERNA": "Encuesta Interna",
	"WEB":             "Sitio Web",
}

// NetworkForSource maps a source code to its canonical social-network
// name. ok is false for unrecognized codes.
func NetworkForSource(code string) (string, bool) {
	name, ok := networkBySource[strings.ToUpper(strings.TrimSpace(code))]
	return name, ok
}

// DeriveSocialNetworks maps persisted data-source rows through the
// fixed table. Unrecognized source codes produce no dimension row; two
// codes mapping to the same network keep the last source key seen,
// matching the warehouse overwrite contract.
func DeriveSocialNetworks(refs []model.DataSourceRef) []model.SocialNetworkDim {
	var dims []model.SocialNetworkDim
	index := make(map[string]int, len(refs))
	for _, ref := range refs {
		name, ok := NetworkForSource(ref.Code)
		if !ok {
			continue
		}
		if i, dup := index[name]; dup {
			dims[i].SourceKey = ref.Key
			continue
		}
		index[name] = len(dims)
		dims = append(dims, model.SocialNetworkDim{Name: name, SourceKey: ref.Key})
	}
	return dims
}
