package etl

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sur-analytics/opiniones-etl/internal/model"
)

type fakeCSV struct {
	products []model.RawProduct
	clients  []model.RawClient
	sources  []model.RawDataSource
	reviews  []model.RawWebReview
	surveys  []model.RawSurveyOpinion
	social   []model.RawSocialComment
	err      error
}

func (f *fakeCSV) Products(context.Context) ([]model.RawProduct, error) {
	return f.products, f.err
}
func (f *fakeCSV) Clients(context.Context) ([]model.RawClient, error) { return f.clients, f.err }
func (f *fakeCSV) DataSources(context.Context) ([]model.RawDataSource, error) {
	return f.sources, f.err
}
func (f *fakeCSV) WebReviews(context.Context) ([]model.RawWebReview, error) {
	return f.reviews, f.err
}
func (f *fakeCSV) Surveys(context.Context) ([]model.RawSurveyOpinion, error) {
	return f.surveys, f.err
}
func (f *fakeCSV) SocialComments(context.Context) ([]model.RawSocialComment, error) {
	return f.social, f.err
}

type fakeRelational struct {
	opinions []model.RawDBOpinion
	err      error
}

func (f *fakeRelational) Opinions(context.Context) ([]model.RawDBOpinion, error) {
	return f.opinions, f.err
}

type fakeAPI struct {
	opinions []model.RawAPIOpinion
}

func (f *fakeAPI) Opinions(context.Context) ([]model.RawAPIOpinion, error) {
	return f.opinions, nil
}

// fakeWarehouse records every write in arrival order.
type fakeWarehouse struct {
	mu    sync.Mutex
	calls []string
	facts []model.FactRow

	refs      []model.DataSourceRef
	dimErrs   map[string]error
	insertErr map[string]error // by SourceID
}

func (f *fakeWarehouse) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if f.dimErrs != nil {
		return f.dimErrs[call]
	}
	return nil
}

func (f *fakeWarehouse) UpsertProducts(_ context.Context, _ []model.ProductDim) error {
	return f.record("products")
}
func (f *fakeWarehouse) UpsertClients(_ context.Context, _ []model.ClientDim) error {
	return f.record("clients")
}
func (f *fakeWarehouse) UpsertDataSources(_ context.Context, _ []model.DataSourceDim) error {
	return f.record("sources")
}
func (f *fakeWarehouse) UpsertClassifications(_ context.Context, _ []string) error {
	return f.record("classifications")
}
func (f *fakeWarehouse) UpsertSocialNetworks(_ context.Context, _ []model.SocialNetworkDim) error {
	return f.record("networks")
}
func (f *fakeWarehouse) UpsertTimeDim(_ context.Context, _ []model.TimeDim) error {
	return f.record("time")
}

func (f *fakeWarehouse) DataSourceKeys(context.Context) ([]model.DataSourceRef, error) {
	_ = f.record("source_keys")
	return f.refs, nil
}

func (f *fakeWarehouse) InsertFact(_ context.Context, row model.FactRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "fact")
	if err, ok := f.insertErr[row.SourceID]; ok {
		return err
	}
	f.facts = append(f.facts, row)
	return nil
}

type fakeRunLog struct {
	mu        sync.Mutex
	started   []string
	completed []int64
	failed    []int64
	nextID    int64
}

func (f *fakeRunLog) Start(_ context.Context, _, phase string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, phase)
	f.nextID++
	return f.nextID, nil
}

func (f *fakeRunLog) Complete(_ context.Context, id int64, _, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeRunLog) Fail(_ context.Context, id int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = append(f.failed, id)
	return nil
}

func sampleCSV() *fakeCSV {
	return &fakeCSV{
		products: []model.RawProduct{{ProductCode: "P001", Name: "Laptop"}},
		clients:  []model.RawClient{{ClientID: "C001", Name: "Ana"}},
		sources:  []model.RawDataSource{{SourceCode: "FB", SourceType: "Red Social"}},
		reviews: []model.RawWebReview{
			{ReviewID: "R001", ClientID: "C001", ProductCode: "P001", Date: day(2025, time.March, 1), Comment: "Bien", Rating: 4},
		},
		surveys: []model.RawSurveyOpinion{
			{OpinionID: "OP1", ClientID: "C001", ProductCode: "P001", Date: day(2025, time.March, 2), Classification: "positiva", Satisfaction: 5, SourceCode: "EncuestaInterna"},
		},
		social: []model.RawSocialComment{
			{CommentID: "SC1", ClientID: "C001", ProductCode: "P001", SourceCode: "FB", Date: day(2025, time.March, 3), Comment: "Genial"},
		},
	}
}

func newTestOrchestrator(csv *fakeCSV, rel *fakeRelational, api *fakeAPI, wh *fakeWarehouse, rl RunLog) *Orchestrator {
	o := New(csv, rel, api, wh, rl)
	o.now = func() time.Time { return day(2025, time.June, 15) }
	return o
}

func TestOrchestratorRun_DimensionsBeforeFacts(t *testing.T) {
	wh := &fakeWarehouse{refs: []model.DataSourceRef{{Key: 1, Code: "FB"}}}
	rel := &fakeRelational{opinions: []model.RawDBOpinion{{OpinionID: 9, ClientID: 1, Date: day(2025, time.March, 4)}}}
	api := &fakeAPI{opinions: []model.RawAPIOpinion{{ID: "a1", Date: day(2025, time.March, 5)}}}

	o := newTestOrchestrator(sampleCSV(), rel, api, wh, nil)
	summary, err := o.Run(context.Background(), "run-1")
	require.NoError(t, err)

	// Phase 1 happens in fixed order, every fact write comes after.
	dimOrder := []string{"products", "clients", "sources", "classifications", "source_keys", "networks", "time"}
	require.GreaterOrEqual(t, len(wh.calls), len(dimOrder))
	assert.Equal(t, dimOrder, wh.calls[:len(dimOrder)])
	for _, call := range wh.calls[len(dimOrder):] {
		assert.Equal(t, "fact", call)
	}

	assert.Equal(t, 1, summary.Products)
	assert.Equal(t, 1, summary.Clients)
	assert.Equal(t, 1, summary.DataSources)
	assert.Equal(t, 3, summary.Classifications) // "positiva" harmonizes into the baseline set
	assert.Equal(t, 1, summary.SocialNetworks)
	assert.False(t, summary.TimeDefaulted)
	assert.Equal(t, 5, summary.FactsLoaded())
	assert.Equal(t, 0, summary.FactsSkipped())
	assert.Len(t, summary.Facts, 5)
}

func TestOrchestratorRun_RowFailureIsIsolated(t *testing.T) {
	wh := &fakeWarehouse{
		insertErr: map[string]error{"R001": eris.New("boom")},
	}
	o := newTestOrchestrator(sampleCSV(), &fakeRelational{}, &fakeAPI{}, wh, nil)

	summary, err := o.Run(context.Background(), "run-2")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.FactsLoaded())
	assert.Equal(t, 1, summary.FactsSkipped())

	var webReport *BatchReport
	for _, b := range summary.Facts {
		if b.Origin == model.OriginWebReviews {
			webReport = b
		}
	}
	require.NotNil(t, webReport)
	require.Len(t, webReport.Skipped, 1)
	assert.Equal(t, "R001", webReport.Skipped[0].RowID)
}

func TestOrchestratorRun_BadProductCodeRowIsSkipped(t *testing.T) {
	csv := sampleCSV()
	csv.surveys = append(csv.surveys, model.RawSurveyOpinion{
		OpinionID:   "OP2",
		ProductCode: "SIN-DIGITOS",
		Date:        day(2025, time.March, 6),
	})
	wh := &fakeWarehouse{}

	o := newTestOrchestrator(csv, &fakeRelational{}, &fakeAPI{}, wh, nil)
	summary, err := o.Run(context.Background(), "run-9")
	require.NoError(t, err, "one malformed row must not abort the run")

	var surveyReport *BatchReport
	for _, b := range summary.Facts {
		if b.Origin == model.OriginSurveys {
			surveyReport = b
		}
	}
	require.NotNil(t, surveyReport)
	assert.Equal(t, 1, surveyReport.Loaded)
	require.Len(t, surveyReport.Skipped, 1)
	assert.Equal(t, "OP2", surveyReport.Skipped[0].RowID)
}

func TestOrchestratorRun_DimensionFailureAborts(t *testing.T) {
	wh := &fakeWarehouse{
		dimErrs: map[string]error{"clients": eris.New("db down")},
	}
	o := newTestOrchestrator(sampleCSV(), &fakeRelational{}, &fakeAPI{}, wh, nil)

	_, err := o.Run(context.Background(), "run-3")
	require.Error(t, err)

	for _, call := range wh.calls {
		assert.NotEqual(t, "fact", call, "no fact may be written after a dimension failure")
	}
}

func TestOrchestratorRun_ExtractFailureAborts(t *testing.T) {
	csv := sampleCSV()
	csv.err = eris.New("file missing")
	wh := &fakeWarehouse{}

	o := newTestOrchestrator(csv, &fakeRelational{}, &fakeAPI{}, wh, nil)
	_, err := o.Run(context.Background(), "run-4")
	require.Error(t, err)
	assert.Empty(t, wh.calls)
}

func TestOrchestratorRun_EmptyAPISkipsPhase(t *testing.T) {
	wh := &fakeWarehouse{}
	o := newTestOrchestrator(sampleCSV(), &fakeRelational{}, &fakeAPI{}, wh, nil)

	summary, err := o.Run(context.Background(), "run-5")
	require.NoError(t, err)

	require.Len(t, summary.Facts, 4)
	for _, b := range summary.Facts {
		assert.NotEqual(t, model.OriginAPI, b.Origin)
	}
}

func TestOrchestratorRun_DefaultTimeRange(t *testing.T) {
	csv := &fakeCSV{}
	wh := &fakeWarehouse{}
	o := newTestOrchestrator(csv, &fakeRelational{}, &fakeAPI{}, wh, nil)

	summary, err := o.Run(context.Background(), "run-6")
	require.NoError(t, err)

	assert.True(t, summary.TimeDefaulted)
	// One trailing year plus one month forward, inclusive.
	assert.Equal(t, 396, summary.TimeRows)
}

func TestOrchestratorRun_RecordsRunLog(t *testing.T) {
	rl := &fakeRunLog{}
	wh := &fakeWarehouse{refs: []model.DataSourceRef{{Key: 1, Code: "FB"}}}
	o := newTestOrchestrator(sampleCSV(), &fakeRelational{}, &fakeAPI{}, wh, rl)

	_, err := o.Run(context.Background(), "run-7")
	require.NoError(t, err)

	assert.Len(t, rl.started, 10) // six dimension phases plus four fact origins
	assert.Len(t, rl.completed, 10)
	assert.Empty(t, rl.failed)
}

func TestOrchestratorRun_RunLogFailOnPhaseError(t *testing.T) {
	rl := &fakeRunLog{}
	wh := &fakeWarehouse{
		dimErrs: map[string]error{"time": eris.New("copy failed")},
	}
	o := newTestOrchestrator(sampleCSV(), &fakeRelational{}, &fakeAPI{}, wh, rl)

	_, err := o.Run(context.Background(), "run-8")
	require.Error(t, err)
	assert.Len(t, rl.failed, 1)
}
