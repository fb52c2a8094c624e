package etl

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// CSVSource produces typed raw records from the six delimited files.
type CSVSource interface {
	Products(ctx context.Context) ([]model.RawProduct, error)
	Clients(ctx context.Context) ([]model.RawClient, error)
	DataSources(ctx context.Context) ([]model.RawDataSource, error)
	WebReviews(ctx context.Context) ([]model.RawWebReview, error)
	Surveys(ctx context.Context) ([]model.RawSurveyOpinion, error)
	SocialComments(ctx context.Context) ([]model.RawSocialComment, error)
}

// RelationalSource produces raw opinions from the transactional store.
type RelationalSource interface {
	Opinions(ctx context.Context) ([]model.RawDBOpinion, error)
}

// APISource produces raw opinions from the REST source. It returns an
// empty slice, not an error, when the source is absent or failing.
type APISource interface {
	Opinions(ctx context.Context) ([]model.RawAPIOpinion, error)
}

// Warehouse is the idempotent writer over the star schema.
type Warehouse interface {
	UpsertProducts(ctx context.Context, dims []model.ProductDim) error
	UpsertClients(ctx context.Context, dims []model.ClientDim) error
	UpsertDataSources(ctx context.Context, dims []model.DataSourceDim) error
	UpsertClassifications(ctx context.Context, labels []string) error
	UpsertSocialNetworks(ctx context.Context, dims []model.SocialNetworkDim) error
	UpsertTimeDim(ctx context.Context, rows []model.TimeDim) error
	DataSourceKeys(ctx context.Context) ([]model.DataSourceRef, error)
	InsertFact(ctx context.Context, row model.FactRow) error
}

// RunLog records per-phase outcomes of a load run. May be nil.
type RunLog interface {
	Start(ctx context.Context, runID, phase string) (int64, error)
	Complete(ctx context.Context, id int64, loaded, skipped int) error
	Fail(ctx context.Context, id int64, cause string) error
}

// Orchestrator sequences one warehouse load: every dimension a fact
// might reference is persisted before any fact referencing it is
// attempted.
type Orchestrator struct {
	csv    CSVSource
	rel    RelationalSource
	api    APISource
	wh     Warehouse
	runLog RunLog
	now    func() time.Time
}

// New creates an Orchestrator. runLog may be nil to disable run logging.
func New(csv CSVSource, rel RelationalSource, api APISource, wh Warehouse, runLog RunLog) *Orchestrator {
	return &Orchestrator{
		csv:    csv,
		rel:    rel,
		api:    api,
		wh:     wh,
		runLog: runLog,
		now:    time.Now,
	}
}

// extracted holds every raw record read during the extract stage.
type extracted struct {
	products    []model.RawProduct
	clients     []model.RawClient
	sources     []model.RawDataSource
	webReviews  []model.RawWebReview
	surveys     []model.RawSurveyOpinion
	social      []model.RawSocialComment
	dbOpinions  []model.RawDBOpinion
	apiOpinions []model.RawAPIOpinion
}

// Run executes the full pipeline once: extract every source, load the
// dimensions in dependency order, then merge facts from every origin.
// Failures reading a source or writing a dimension abort the run;
// individual fact rows that cannot be converted or inserted are
// reported and skipped.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*RunSummary, error) {
	log := zap.L().With(zap.String("component", "etl.orchestrator"), zap.String("run_id", runID))
	log.Info("starting warehouse load")

	raw, err := o.extract(ctx)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{}
	if err := o.loadDimensions(ctx, runID, raw, summary); err != nil {
		return nil, err
	}
	if err := o.loadFacts(ctx, runID, raw, summary); err != nil {
		return nil, err
	}

	log.Info("warehouse load completed",
		zap.Int("time_rows", summary.TimeRows),
		zap.Int("facts_loaded", summary.FactsLoaded()),
		zap.Int("facts_skipped", summary.FactsSkipped()),
	)
	return summary, nil
}

func (o *Orchestrator) extract(ctx context.Context) (*extracted, error) {
	var raw extracted
	var err error

	if raw.products, err = o.csv.Products(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: extract products")
	}
	if raw.clients, err = o.csv.Clients(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: extract clients")
	}
	if raw.sources, err = o.csv.DataSources(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: extract data sources")
	}
	if raw.webReviews, err = o.csv.WebReviews(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: extract web reviews")
	}
	if raw.surveys, err = o.csv.Surveys(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: extract surveys")
	}
	if raw.social, err = o.csv.SocialComments(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: extract social comments")
	}
	if raw.dbOpinions, err = o.rel.Opinions(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: extract relational opinions")
	}
	if raw.apiOpinions, err = o.api.Opinions(ctx); err != nil {
		return nil, eris.Wrap(err, "orchestrator: extract API opinions")
	}
	return &raw, nil
}

// loadDimensions runs phase 1: the strictly ordered dimension loads.
func (o *Orchestrator) loadDimensions(ctx context.Context, runID string, raw *extracted, summary *RunSummary) error {
	log := zap.L().With(zap.String("component", "etl.orchestrator"), zap.String("run_id", runID))

	err := o.phase(ctx, runID, "dim_productos", func(ctx context.Context) (int, int, error) {
		res := ResolveProducts(raw.products)
		for _, code := range res.Rejected {
			log.Warn("product rejected: no numeric id in code", zap.String("product_code", code))
		}
		if err := o.wh.UpsertProducts(ctx, res.Dims); err != nil {
			return 0, 0, err
		}
		summary.Products = len(res.Dims)
		summary.ProductsRejected = len(res.Rejected)
		return len(res.Dims), len(res.Rejected), nil
	})
	if err != nil {
		return err
	}

	err = o.phase(ctx, runID, "dim_clientes", func(ctx context.Context) (int, int, error) {
		dims := ResolveClients(raw.clients)
		if err := o.wh.UpsertClients(ctx, dims); err != nil {
			return 0, 0, err
		}
		summary.Clients = len(dims)
		return len(dims), 0, nil
	})
	if err != nil {
		return err
	}

	err = o.phase(ctx, runID, "dim_fuente_datos", func(ctx context.Context) (int, int, error) {
		dims := ResolveDataSources(raw.sources)
		if err := o.wh.UpsertDataSources(ctx, dims); err != nil {
			return 0, 0, err
		}
		summary.DataSources = len(dims)
		return len(dims), 0, nil
	})
	if err != nil {
		return err
	}

	err = o.phase(ctx, runID, "dim_clasificacion", func(ctx context.Context) (int, int, error) {
		labels := ClassificationSet(raw.surveys)
		if err := o.wh.UpsertClassifications(ctx, labels); err != nil {
			return 0, 0, err
		}
		summary.Classifications = len(labels)
		return len(labels), 0, nil
	})
	if err != nil {
		return err
	}

	// Social networks derive from the persisted data-source rows so the
	// dimension carries real surrogate keys, not candidate ones.
	err = o.phase(ctx, runID, "dim_red_social", func(ctx context.Context) (int, int, error) {
		refs, err := o.wh.DataSourceKeys(ctx)
		if err != nil {
			return 0, 0, err
		}
		dims := DeriveSocialNetworks(refs)
		if err := o.wh.UpsertSocialNetworks(ctx, dims); err != nil {
			return 0, 0, err
		}
		summary.SocialNetworks = len(dims)
		return len(dims), 0, nil
	})
	if err != nil {
		return err
	}

	return o.phase(ctx, runID, "dim_time", func(ctx context.Context) (int, int, error) {
		tr := CoveringRange(o.opinionDates(raw), o.now())
		if tr.Defaulted {
			log.Warn("no opinion dates observed in any source, using default time range",
				zap.Time("min", tr.Min),
				zap.Time("max", tr.Max),
			)
		}
		rows := GenerateTimeDim(tr)
		if err := o.wh.UpsertTimeDim(ctx, rows); err != nil {
			return 0, 0, err
		}
		summary.TimeRows = len(rows)
		summary.TimeDefaulted = tr.Defaulted
		return len(rows), 0, nil
	})
}

// opinionDates collects the date component of every opinion record
// across all sources.
func (o *Orchestrator) opinionDates(raw *extracted) []time.Time {
	var dates []time.Time
	for _, r := range raw.webReviews {
		dates = append(dates, r.Date)
	}
	for _, r := range raw.surveys {
		dates = append(dates, r.Date)
	}
	for _, r := range raw.social {
		dates = append(dates, r.Date)
	}
	for _, r := range raw.dbOpinions {
		dates = append(dates, r.Date)
	}
	for _, r := range raw.apiOpinions {
		if !r.Date.IsZero() {
			dates = append(dates, r.Date)
		}
	}
	return dates
}

// loadFacts runs phase 2: the mutually independent fact origins,
// concurrently. The API origin only runs when any rows were retrieved.
func (o *Orchestrator) loadFacts(ctx context.Context, runID string, raw *extracted, summary *RunSummary) error {
	reports := make([]*BatchReport, 0, 5)

	g, gctx := errgroup.WithContext(ctx)

	webReport := &BatchReport{Origin: model.OriginWebReviews}
	reports = append(reports, webReport)
	g.Go(func() error {
		return factPhase(gctx, o, runID, "fact_web_reviews", webReport, raw.webReviews, FromWebReview)
	})

	surveyReport := &BatchReport{Origin: model.OriginSurveys}
	reports = append(reports, surveyReport)
	g.Go(func() error {
		return factPhase(gctx, o, runID, "fact_surveys", surveyReport, raw.surveys, FromSurvey)
	})

	socialReport := &BatchReport{Origin: model.OriginSocialComments}
	reports = append(reports, socialReport)
	g.Go(func() error {
		return factPhase(gctx, o, runID, "fact_social_comments", socialReport, raw.social, FromSocialComment)
	})

	dbReport := &BatchReport{Origin: model.OriginRelationalDB}
	reports = append(reports, dbReport)
	g.Go(func() error {
		return factPhase(gctx, o, runID, "fact_db_opiniones", dbReport, raw.dbOpinions, FromDBOpinion)
	})

	if len(raw.apiOpinions) > 0 {
		apiReport := &BatchReport{Origin: model.OriginAPI}
		reports = append(reports, apiReport)
		g.Go(func() error {
			return factPhase(gctx, o, runID, "fact_api_opiniones", apiReport, raw.apiOpinions, FromAPIOpinion)
		})
	} else {
		zap.L().Info("REST source returned no rows, skipping API fact phase", zap.String("run_id", runID))
	}

	if err := g.Wait(); err != nil {
		return err
	}

	summary.Facts = reports
	return nil
}

// factPhase converts and upserts one origin's batch, isolating row
// failures into the report. Cancellation is fatal, a bad row is not.
func factPhase[T any](ctx context.Context, o *Orchestrator, runID, phase string, report *BatchReport, items []T, convert func(T) (model.FactRow, error)) error {
	return o.phase(ctx, runID, phase, func(ctx context.Context) (int, int, error) {
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return report.Loaded, len(report.Skipped), eris.Wrapf(err, "orchestrator: %s cancelled", phase)
			}

			row, err := convert(item)
			if err != nil {
				report.skip(rowID(row, item), err)
				continue
			}

			if err := o.wh.InsertFact(ctx, row); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return report.Loaded, len(report.Skipped), err
				}
				report.skip(row.SourceID, err)
				continue
			}
			report.Loaded++
		}
		return report.Loaded, len(report.Skipped), nil
	})
}

// phase wraps one pipeline phase with run logging and summary logging.
func (o *Orchestrator) phase(ctx context.Context, runID, name string, fn func(ctx context.Context) (loaded, skipped int, err error)) error {
	log := zap.L().With(zap.String("component", "etl.orchestrator"), zap.String("run_id", runID), zap.String("phase", name))
	log.Info("phase started")

	var logID int64
	if o.runLog != nil {
		id, err := o.runLog.Start(ctx, runID, name)
		if err != nil {
			return eris.Wrapf(err, "orchestrator: start run log for %s", name)
		}
		logID = id
	}

	loaded, skipped, err := fn(ctx)
	if err != nil {
		wrapped := eris.Wrapf(err, "orchestrator: phase %s", name)
		log.Error("phase failed", zap.Error(err))
		if o.runLog != nil {
			if logErr := o.runLog.Fail(ctx, logID, err.Error()); logErr != nil {
				log.Warn("failed to record phase failure", zap.Error(logErr))
			}
		}
		return wrapped
	}

	if o.runLog != nil {
		if logErr := o.runLog.Complete(ctx, logID, loaded, skipped); logErr != nil {
			log.Warn("failed to record phase completion", zap.Error(logErr))
		}
	}
	log.Info("phase completed", zap.Int("loaded", loaded), zap.Int("skipped", skipped))
	return nil
}

// rowID extracts a best-effort identifier for a row that failed
// conversion, for diagnostics only.
func rowID[T any](row model.FactRow, item T) string {
	if row.SourceID != "" {
		return row.SourceID
	}
	switch v := any(item).(type) {
	case model.RawWebReview:
		return v.ReviewID
	case model.RawSurveyOpinion:
		return v.OpinionID
	case model.RawSocialComment:
		return v.CommentID
	case model.RawDBOpinion:
		return "db:" + strconv.Itoa(v.OpinionID)
	case model.RawAPIOpinion:
		return v.ID
	default:
		return ""
	}
}

