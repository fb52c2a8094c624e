package model

import (
	"strings"
	"time"
)

// Origin tags a fact row with the source pipeline that produced it.
type Origin string

const (
	OriginWebReviews     Origin = "web_reviews"
	OriginSurveys        Origin = "surveys_part1"
	OriginSocialComments Origin = "social_comments"
	OriginRelationalDB   Origin = "db_relacional"
	OriginAPI            Origin = "api_rest"
)

// ProductDim is a row of dimension.dim_productos. ID is the natural key
// extracted from the source product code.
type ProductDim struct {
	ID       int
	Name     string
	Category string
}

// ClientDim is a row of dimension.dim_clientes.
type ClientDim struct {
	NaturalKey string
	Name       string
	Email      string
}

// DataSourceDim is a row of dimension.dim_fuente_datos.
type DataSourceDim struct {
	Code     string
	Type     string
	LoadedAt *time.Time
}

// SocialNetworkDim is a row of dimension.dim_red_social. SourceKey
// references the dim_fuente_datos row the network was derived from.
type SocialNetworkDim struct {
	Name      string
	SourceKey int64
}

// TimeDim is a row of dimension.dim_time. Key is the YYYYMMDD integer
// natural key.
type TimeDim struct {
	Key        int
	Date       time.Time
	Year       int
	Quarter    int
	Month      int
	MonthName  string
	Day        int
	DayName    string
	WeekOfYear int
	IsWeekend  bool
}

// DataSourceRef pairs a persisted data-source surrogate key with its
// natural key, as read back from the warehouse.
type DataSourceRef struct {
	Key  int64
	Code string
}

// FactRow is the canonical opinion fact shape. Dimension references are
// carried as natural keys; the warehouse writer resolves them to
// surrogate keys at insert time, and an unresolvable reference becomes
// a NULL foreign key, never an error.
type FactRow struct {
	Origin   Origin
	SourceID string
	Score    *float64
	Comment  *string
	HasText  bool
	Date     *time.Time

	ClientID       *string
	ProductID      *int
	SourceCode     *string
	Network        *string
	Classification *string
}

// HasTextOf reports whether a comment is non-blank after trimming.
func HasTextOf(comment string) bool {
	return strings.TrimSpace(comment) != ""
}
