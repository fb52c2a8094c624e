// Package extract reads raw opinion records from the delimited-file,
// relational, and REST sources.
package extract

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sur-analytics/opiniones-etl/internal/config"
	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// CSVExtractor reads the six delimited source files. Every file keeps
// the column headers of the upstream export, accents included.
type CSVExtractor struct {
	cfg config.CSVConfig
}

// NewCSVExtractor creates a CSVExtractor over the configured paths.
func NewCSVExtractor(cfg config.CSVConfig) *CSVExtractor {
	return &CSVExtractor{cfg: cfg}
}

type productRecord struct {
	ProductCode string `csv:"IdProducto"`
	Name        string `csv:"Nombre"`
	Category    string `csv:"Categoría"`
}

type clientRecord struct {
	ClientID string `csv:"IdCliente"`
	Name     string `csv:"Nombre"`
	Email    string `csv:"Email"`
}

type sourceRecord struct {
	SourceCode string `csv:"IdFuente"`
	SourceType string `csv:"TipoFuente"`
	LoadedAt   string `csv:"FechaCarga"`
}

type webReviewRecord struct {
	ReviewID    string `csv:"IdReview"`
	ClientID    string `csv:"IdCliente"`
	ProductCode string `csv:"IdProducto"`
	Date        string `csv:"Fecha"`
	Comment     string `csv:"Comentario"`
	Rating      string `csv:"Rating"`
}

type surveyRecord struct {
	OpinionID      string `csv:"IdOpinion"`
	ClientID       string `csv:"IdCliente"`
	ProductCode    string `csv:"IdProducto"`
	Date           string `csv:"Fecha"`
	Comment        string `csv:"Comentario"`
	Classification string `csv:"Clasificación"`
	Satisfaction   string `csv:"PuntajeSatisfacción"`
	SourceCode     string `csv:"Fuente"`
}

type socialCommentRecord struct {
	CommentID   string `csv:"IdComment"`
	ClientID    string `csv:"IdCliente"`
	ProductCode string `csv:"IdProducto"`
	SourceCode  string `csv:"Fuente"`
	Date        string `csv:"Fecha"`
	Comment     string `csv:"Comentario"`
}

// dateLayouts are tried in order when parsing source date fields.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("csv: unparseable date %q", s)
}

// readCSV decodes every record of a delimited file into T.
func readCSV[T any](ctx context.Context, path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close()

	dec, err := csvutil.NewDecoder(csv.NewReader(f))
	if err != nil {
		return nil, eris.Wrapf(err, "csv: read header of %s", path)
	}

	var out []T
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: cancelled")
		}
		var rec T
		if err := dec.Decode(&rec); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "csv: decode row of %s", path)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Products reads the products CSV.
func (e *CSVExtractor) Products(ctx context.Context) ([]model.RawProduct, error) {
	recs, err := readCSV[productRecord](ctx, e.cfg.Products)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawProduct, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.RawProduct{ProductCode: r.ProductCode, Name: r.Name, Category: r.Category})
	}
	zap.L().Info("read products CSV", zap.String("path", e.cfg.Products), zap.Int("rows", len(out)))
	return out, nil
}

// Clients reads the clients CSV.
func (e *CSVExtractor) Clients(ctx context.Context) ([]model.RawClient, error) {
	recs, err := readCSV[clientRecord](ctx, e.cfg.Clients)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawClient, 0, len(recs))
	for _, r := range recs {
		out = append(out, model.RawClient{ClientID: r.ClientID, Name: r.Name, Email: r.Email})
	}
	zap.L().Info("read clients CSV", zap.String("path", e.cfg.Clients), zap.Int("rows", len(out)))
	return out, nil
}

// DataSources reads the data-sources CSV. An unparseable load date is
// carried as nil rather than failing the file.
func (e *CSVExtractor) DataSources(ctx context.Context) ([]model.RawDataSource, error) {
	recs, err := readCSV[sourceRecord](ctx, e.cfg.Sources)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawDataSource, 0, len(recs))
	for _, r := range recs {
		ds := model.RawDataSource{SourceCode: r.SourceCode, SourceType: r.SourceType}
		if t, err := parseDate(r.LoadedAt); err == nil {
			ds.LoadedAt = &t
		}
		out = append(out, ds)
	}
	zap.L().Info("read data sources CSV", zap.String("path", e.cfg.Sources), zap.Int("rows", len(out)))
	return out, nil
}

// WebReviews reads the web reviews CSV.
func (e *CSVExtractor) WebReviews(ctx context.Context) ([]model.RawWebReview, error) {
	recs, err := readCSV[webReviewRecord](ctx, e.cfg.WebReviews)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawWebReview, 0, len(recs))
	for _, r := range recs {
		date, err := parseDate(r.Date)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: web review %s", r.ReviewID)
		}
		rating, err := strconv.ParseFloat(r.Rating, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: web review %s: rating %q", r.ReviewID, r.Rating)
		}
		out = append(out, model.RawWebReview{
			ReviewID:    r.ReviewID,
			ClientID:    r.ClientID,
			ProductCode: r.ProductCode,
			Date:        date,
			Comment:     r.Comment,
			Rating:      rating,
		})
	}
	zap.L().Info("read web reviews CSV", zap.String("path", e.cfg.WebReviews), zap.Int("rows", len(out)))
	return out, nil
}

// Surveys reads the surveys CSV.
func (e *CSVExtractor) Surveys(ctx context.Context) ([]model.RawSurveyOpinion, error) {
	recs, err := readCSV[surveyRecord](ctx, e.cfg.Surveys)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawSurveyOpinion, 0, len(recs))
	for _, r := range recs {
		date, err := parseDate(r.Date)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: survey %s", r.OpinionID)
		}
		score, err := strconv.ParseFloat(r.Satisfaction, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: survey %s: satisfaction %q", r.OpinionID, r.Satisfaction)
		}
		out = append(out, model.RawSurveyOpinion{
			OpinionID:      r.OpinionID,
			ClientID:       r.ClientID,
			ProductCode:    r.ProductCode,
			Date:           date,
			Comment:        r.Comment,
			Classification: r.Classification,
			Satisfaction:   score,
			SourceCode:     r.SourceCode,
		})
	}
	zap.L().Info("read surveys CSV", zap.String("path", e.cfg.Surveys), zap.Int("rows", len(out)))
	return out, nil
}

// SocialComments reads the social comments CSV.
func (e *CSVExtractor) SocialComments(ctx context.Context) ([]model.RawSocialComment, error) {
	recs, err := readCSV[socialCommentRecord](ctx, e.cfg.SocialComments)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawSocialComment, 0, len(recs))
	for _, r := range recs {
		date, err := parseDate(r.Date)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: social comment %s", r.CommentID)
		}
		out = append(out, model.RawSocialComment{
			CommentID:   r.CommentID,
			ClientID:    r.ClientID,
			ProductCode: r.ProductCode,
			SourceCode:  r.SourceCode,
			Date:        date,
			Comment:     r.Comment,
		})
	}
	zap.L().Info("read social comments CSV", zap.String("path", e.cfg.SocialComments), zap.Int("rows", len(out)))
	return out, nil
}
