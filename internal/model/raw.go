// Package model defines the raw source records and warehouse entities
// shared across extractors, the load pipeline, and the warehouse writer.
package model

import "time"

// RawProduct is one row of the products CSV. The product code keeps its
// source formatting ("P016"); numeric-id extraction happens at load time.
type RawProduct struct {
	ProductCode string
	Name        string
	Category    string
}

// RawClient is one row of the clients CSV.
type RawClient struct {
	ClientID string
	Name     string
	Email    string
}

// RawDataSource is one row of the data-sources CSV.
type RawDataSource struct {
	SourceCode string
	SourceType string
	LoadedAt   *time.Time
}

// RawWebReview is one row of the web reviews CSV.
type RawWebReview struct {
	ReviewID    string
	ClientID    string
	ProductCode string
	Date        time.Time
	Comment     string
	Rating      float64
}

// RawSurveyOpinion is one row of the surveys CSV.
type RawSurveyOpinion struct {
	OpinionID      string
	ClientID       string
	ProductCode    string
	Date           time.Time
	Comment        string
	Classification string
	Satisfaction   float64
	SourceCode     string
}

// RawSocialComment is one row of the social comments CSV.
type RawSocialComment struct {
	CommentID   string
	ClientID    string
	ProductCode string
	SourceCode  string
	Date        time.Time
	Comment     string
}

// RawDBOpinion is one denormalized opinion from the transactional
// database, joined with its client, product, category, classification,
// and source attributes.
type RawDBOpinion struct {
	OpinionID      int
	ClientID       int
	ClientName     string
	ClientEmail    string
	ProductCode    string
	ProductName    string
	CategoryName   *string
	Date           time.Time
	Comment        *string
	Satisfaction   *int
	Rating         *int
	SourceID       int
	SourceType     *string
	OpinionType    string
	SocialSource   *string
	Classification *string
}

// RawAPIOpinion is one opinion retrieved from the REST source.
// ID may be empty; the fact loader generates an identifier then.
type RawAPIOpinion struct {
	ID          string
	ClientID    string
	ProductCode string
	Date        time.Time
	Comment     string
	Score       *float64
}
