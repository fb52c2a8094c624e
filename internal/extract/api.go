package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sur-analytics/opiniones-etl/internal/config"
	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// APIExtractor reads opinions from the comments REST source. The API is
// an optional source: missing configuration, transport failures,
// non-2xx responses, and malformed payloads all degrade to an empty
// result with a warning, never an error.
type APIExtractor struct {
	cfg     config.APIConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewAPIExtractor creates an APIExtractor from config.
func NewAPIExtractor(cfg config.APIConfig) *APIExtractor {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 5
	}
	return &APIExtractor{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), 1),
	}
}

// apiOpinionDTO mirrors the comments API payload. The upstream has
// shipped both "id" and "idOpinion" as the identifier field.
type apiOpinionDTO struct {
	ID          string    `json:"id"`
	OpinionID   string    `json:"idOpinion"`
	ClientID    string    `json:"idCliente"`
	ProductCode string    `json:"idProducto"`
	Date        time.Time `json:"fecha"`
	Comment     string    `json:"comentario"`
	Score       *float64  `json:"puntuacion"`
}

// Opinions fetches the comments endpoint once and returns the decoded
// records, or an empty slice when the source is absent or failing.
func (e *APIExtractor) Opinions(ctx context.Context) ([]model.RawAPIOpinion, error) {
	log := zap.L().With(zap.String("component", "extract.api"))

	if e.cfg.BaseURL == "" || e.cfg.Endpoint == "" {
		log.Warn("REST source not configured, skipping")
		return nil, nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		log.Warn("REST source rate wait cancelled", zap.Error(err))
		return nil, nil
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + e.cfg.Endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		log.Warn("REST source request build failed, skipping", zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	req.Header.Set("Accept", "application/json")
	if e.cfg.Key != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.Key)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		log.Warn("REST source unreachable, skipping", zap.String("url", url), zap.Error(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("REST source returned non-success status, skipping",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return nil, nil
	}

	var dtos []apiOpinionDTO
	if err := json.NewDecoder(resp.Body).Decode(&dtos); err != nil {
		log.Warn("REST source payload undecodable, skipping", zap.String("url", url), zap.Error(err))
		return nil, nil
	}

	out := make([]model.RawAPIOpinion, 0, len(dtos))
	for _, d := range dtos {
		id := d.ID
		if id == "" {
			id = d.OpinionID
		}
		out = append(out, model.RawAPIOpinion{
			ID:          id,
			ClientID:    d.ClientID,
			ProductCode: d.ProductCode,
			Date:        d.Date,
			Comment:     d.Comment,
			Score:       d.Score,
		})
	}

	log.Info("read REST opinions", zap.String("url", url), zap.Int("rows", len(out)))
	return out, nil
}
