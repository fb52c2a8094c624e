package etl

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// productRef extracts the integer product reference from a source
// code. A blank code is simply no reference; a non-blank code without
// digits is a row-shape error.
func productRef(code string) (*int, error) {
	if strings.TrimSpace(code) == "" {
		return nil, nil
	}
	id, err := ExtractProductID(code)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func strRef(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func commentRef(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func dateRef(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := DateOnly(t)
	return &d
}

// FromWebReview maps a web review into the canonical fact shape.
// Reviews always originate from the website source.
func FromWebReview(r model.RawWebReview) (model.FactRow, error) {
	product, err := productRef(r.ProductCode)
	if err != nil {
		return model.FactRow{}, err
	}
	score := r.Rating
	webSource := "WEB"
	return model.FactRow{
		Origin:     model.OriginWebReviews,
		SourceID:   r.ReviewID,
		Score:      &score,
		Comment:    commentRef(r.Comment),
		HasText:    model.HasTextOf(r.Comment),
		Date:       dateRef(r.Date),
		ClientID:   strRef(r.ClientID),
		ProductID:  product,
		SourceCode: &webSource,
	}, nil
}

// FromSurvey maps a survey opinion into the canonical fact shape.
func FromSurvey(r model.RawSurveyOpinion) (model.FactRow, error) {
	product, err := productRef(r.ProductCode)
	if err != nil {
		return model.FactRow{}, err
	}
	score := r.Satisfaction
	var classification *string
	if label := HarmonizeLabel(r.Classification); label != "" {
		classification = &label
	}
	return model.FactRow{
		Origin:         model.OriginSurveys,
		SourceID:       r.OpinionID,
		Score:          &score,
		Comment:        commentRef(r.Comment),
		HasText:        model.HasTextOf(r.Comment),
		Date:           dateRef(r.Date),
		ClientID:       strRef(r.ClientID),
		ProductID:      product,
		SourceCode:     strRef(r.SourceCode),
		Classification: classification,
	}, nil
}

// FromSocialComment maps a social comment into the canonical fact
// shape. Comments carry no score; the network reference comes from the
// fixed source mapping.
func FromSocialComment(r model.RawSocialComment) (model.FactRow, error) {
	product, err := productRef(r.ProductCode)
	if err != nil {
		return model.FactRow{}, err
	}
	var network *string
	if name, ok := NetworkForSource(r.SourceCode); ok {
		network = &name
	}
	return model.FactRow{
		Origin:     model.OriginSocialComments,
		SourceID:   r.CommentID,
		Comment:    commentRef(r.Comment),
		HasText:    model.HasTextOf(r.Comment),
		Date:       dateRef(r.Date),
		ClientID:   strRef(r.ClientID),
		ProductID:  product,
		SourceCode: strRef(r.SourceCode),
		Network:    network,
	}, nil
}

// FromDBOpinion maps a relational opinion into the canonical fact
// shape. The explicit rating wins over the satisfaction score; the
// relational source keys its clients and sources in its own id space,
// so those lookups may miss and yield NULL references.
func FromDBOpinion(r model.RawDBOpinion) (model.FactRow, error) {
	product, err := productRef(r.ProductCode)
	if err != nil {
		return model.FactRow{}, err
	}

	var score *float64
	switch {
	case r.Rating != nil:
		s := float64(*r.Rating)
		score = &s
	case r.Satisfaction != nil:
		s := float64(*r.Satisfaction)
		score = &s
	}

	var comment string
	if r.Comment != nil {
		comment = *r.Comment
	}

	var network *string
	if r.SocialSource != nil {
		if name, ok := NetworkForSource(*r.SocialSource); ok {
			network = &name
		}
	}

	var classification *string
	if r.Classification != nil {
		if label := HarmonizeLabel(*r.Classification); label != "" {
			classification = &label
		}
	}

	clientID := strconv.Itoa(r.ClientID)
	return model.FactRow{
		Origin:         model.OriginRelationalDB,
		SourceID:       strconv.Itoa(r.OpinionID),
		Score:          score,
		Comment:        r.Comment,
		HasText:        model.HasTextOf(comment),
		Date:           dateRef(r.Date),
		ClientID:       &clientID,
		ProductID:      product,
		Network:        network,
		Classification: classification,
	}, nil
}

// FromAPIOpinion maps a REST opinion into the canonical fact shape.
// Records without any id field get a generated identifier; this is the
// only origin allowed to synthesize its source-local id.
func FromAPIOpinion(r model.RawAPIOpinion) (model.FactRow, error) {
	product, err := productRef(r.ProductCode)
	if err != nil {
		return model.FactRow{}, err
	}
	id := r.ID
	if id == "" {
		id = uuid.New().String()
	}
	return model.FactRow{
		Origin:    model.OriginAPI,
		SourceID:  id,
		Score:     r.Score,
		Comment:   commentRef(r.Comment),
		HasText:   model.HasTextOf(r.Comment),
		Date:      dateRef(r.Date),
		ClientID:  strRef(r.ClientID),
		ProductID: product,
	}, nil
}
