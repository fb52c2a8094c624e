// Package warehouse implements the idempotent writer over the
// dimensional star schema.
package warehouse

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sur-analytics/opiniones-etl/internal/config"
	"github.com/sur-analytics/opiniones-etl/internal/db"
	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// Postgres writes dimensions and facts using pgxpool.
type Postgres struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a Postgres warehouse with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *config.PoolConfig) (*Postgres, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "warehouse: ping")
	}
	return &Postgres{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the load log).
func (p *Postgres) Pool() db.Pool {
	return p.pool
}

const warehouseMigration = `
CREATE SCHEMA IF NOT EXISTS dimension;
CREATE SCHEMA IF NOT EXISTS fact;
CREATE SCHEMA IF NOT EXISTS etl;

CREATE TABLE IF NOT EXISTS dimension.dim_productos (
	producto_key SERIAL PRIMARY KEY,
	id_producto  INTEGER NOT NULL UNIQUE,
	nombre       TEXT NOT NULL,
	categoria    TEXT
);

CREATE TABLE IF NOT EXISTS dimension.dim_clientes (
	cliente_key SERIAL PRIMARY KEY,
	nk_cliente  TEXT NOT NULL UNIQUE,
	nombre      TEXT,
	email       TEXT
);

CREATE TABLE IF NOT EXISTS dimension.dim_fuente_datos (
	fuente_key   SERIAL PRIMARY KEY,
	id_fuente    TEXT NOT NULL UNIQUE,
	tipo_fuente  TEXT,
	fecha_carga  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS dimension.dim_clasificacion (
	clasificacion_key SERIAL PRIMARY KEY,
	nombre            TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dimension.dim_red_social (
	red_social_key SERIAL PRIMARY KEY,
	nombre         TEXT NOT NULL UNIQUE,
	fuente_key     INTEGER REFERENCES dimension.dim_fuente_datos(fuente_key)
);

CREATE TABLE IF NOT EXISTS dimension.dim_time (
	time_key    INTEGER PRIMARY KEY,
	fecha       DATE NOT NULL UNIQUE,
	anio        INTEGER NOT NULL,
	trimestre   INTEGER NOT NULL,
	mes         INTEGER NOT NULL,
	nombre_mes  TEXT NOT NULL,
	dia         INTEGER NOT NULL,
	nombre_dia  TEXT NOT NULL,
	semana_anio INTEGER NOT NULL,
	es_fin_de_semana BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS fact.fact_opiniones (
	opinion_key       BIGSERIAL PRIMARY KEY,
	origen            TEXT NOT NULL,
	id_origen         TEXT NOT NULL,
	puntaje           DOUBLE PRECISION,
	comentario        TEXT,
	tiene_texto       BOOLEAN NOT NULL DEFAULT false,
	fecha_opinion     DATE,
	time_key          INTEGER REFERENCES dimension.dim_time(time_key),
	producto_key      INTEGER REFERENCES dimension.dim_productos(producto_key),
	cliente_key       INTEGER REFERENCES dimension.dim_clientes(cliente_key),
	fuente_key        INTEGER REFERENCES dimension.dim_fuente_datos(fuente_key),
	red_social_key    INTEGER REFERENCES dimension.dim_red_social(red_social_key),
	clasificacion_key INTEGER REFERENCES dimension.dim_clasificacion(clasificacion_key),
	cargado_en        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (origen, id_origen)
);

CREATE INDEX IF NOT EXISTS idx_fact_opiniones_time ON fact.fact_opiniones(time_key);
CREATE INDEX IF NOT EXISTS idx_fact_opiniones_producto ON fact.fact_opiniones(producto_key);
CREATE INDEX IF NOT EXISTS idx_fact_opiniones_cliente ON fact.fact_opiniones(cliente_key);

CREATE TABLE IF NOT EXISTS etl.load_log (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL,
	phase       TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	loaded      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_load_log_run_id ON etl.load_log(run_id);
CREATE INDEX IF NOT EXISTS idx_load_log_started_at ON etl.load_log(started_at DESC);
`

func (p *Postgres) Ping(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "warehouse: ping")
}

// migrateLockID serializes concurrent migrators on one warehouse.
const migrateLockID = 7243118

// Migrate creates the star schema. Idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return eris.Wrap(err, "warehouse: acquire migration lock")
	}
	defer func() {
		_, _ = p.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()

	_, err := p.pool.Exec(ctx, warehouseMigration)
	return eris.Wrap(err, "warehouse: migrate")
}

func (p *Postgres) Close() error {
	if p.closeFn != nil {
		p.closeFn()
	}
	return nil
}

// UpsertProducts inserts new products, keeping the first-loaded
// attributes on natural-key collisions.
func (p *Postgres) UpsertProducts(ctx context.Context, dims []model.ProductDim) error {
	for _, d := range dims {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO dimension.dim_productos (id_producto, nombre, categoria)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id_producto) DO NOTHING`,
			d.ID, d.Name, d.Category,
		)
		if err != nil {
			return eris.Wrapf(err, "warehouse: upsert product %d", d.ID)
		}
	}
	return nil
}

func (p *Postgres) UpsertClients(ctx context.Context, dims []model.ClientDim) error {
	for _, d := range dims {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO dimension.dim_clientes (nk_cliente, nombre, email)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (nk_cliente) DO NOTHING`,
			d.NaturalKey, d.Name, d.Email,
		)
		if err != nil {
			return eris.Wrapf(err, "warehouse: upsert client %s", d.NaturalKey)
		}
	}
	return nil
}

func (p *Postgres) UpsertDataSources(ctx context.Context, dims []model.DataSourceDim) error {
	for _, d := range dims {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO dimension.dim_fuente_datos (id_fuente, tipo_fuente, fecha_carga)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (id_fuente) DO NOTHING`,
			d.Code, d.Type, d.LoadedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "warehouse: upsert data source %s", d.Code)
		}
	}
	return nil
}

func (p *Postgres) UpsertClassifications(ctx context.Context, labels []string) error {
	for _, label := range labels {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO dimension.dim_clasificacion (nombre)
			 VALUES ($1)
			 ON CONFLICT (nombre) DO NOTHING`,
			label,
		)
		if err != nil {
			return eris.Wrapf(err, "warehouse: upsert classification %s", label)
		}
	}
	return nil
}

// UpsertSocialNetworks inserts networks by name; an existing network is
// repointed to the latest data-source surrogate key.
func (p *Postgres) UpsertSocialNetworks(ctx context.Context, dims []model.SocialNetworkDim) error {
	for _, d := range dims {
		_, err := p.pool.Exec(ctx,
			`INSERT INTO dimension.dim_red_social (nombre, fuente_key)
			 VALUES ($1, $2)
			 ON CONFLICT (nombre) DO UPDATE SET fuente_key = EXCLUDED.fuente_key`,
			d.Name, d.SourceKey,
		)
		if err != nil {
			return eris.Wrapf(err, "warehouse: upsert social network %s", d.Name)
		}
	}
	return nil
}

// UpsertTimeDim bulk-loads the calendar rows. Existing days are left
// untouched, so re-runs never rewrite the calendar.
func (p *Postgres) UpsertTimeDim(ctx context.Context, rows []model.TimeDim) error {
	upsertRows := make([][]any, 0, len(rows))
	for _, r := range rows {
		upsertRows = append(upsertRows, []any{
			r.Key, r.Date, r.Year, r.Quarter, r.Month, r.MonthName,
			r.Day, r.DayName, r.WeekOfYear, r.IsWeekend,
		})
	}

	_, err := db.BulkUpsert(ctx, p.pool, db.UpsertConfig{
		Table: "dimension.dim_time",
		Columns: []string{
			"time_key", "fecha", "anio", "trimestre", "mes", "nombre_mes",
			"dia", "nombre_dia", "semana_anio", "es_fin_de_semana",
		},
		ConflictKeys: []string{"time_key"},
		DoNothing:    true,
	}, upsertRows)
	return eris.Wrap(err, "warehouse: upsert time dimension")
}

// DataSourceKeys reads back every persisted data source with its
// surrogate key.
func (p *Postgres) DataSourceKeys(ctx context.Context) ([]model.DataSourceRef, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT fuente_key, id_fuente FROM dimension.dim_fuente_datos`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "warehouse: data source keys")
	}
	defer rows.Close()

	var refs []model.DataSourceRef
	for rows.Next() {
		var ref model.DataSourceRef
		if err := rows.Scan(&ref.Key, &ref.Code); err != nil {
			return nil, eris.Wrap(err, "warehouse: scan data source key")
		}
		refs = append(refs, ref)
	}
	return refs, eris.Wrap(rows.Err(), "warehouse: data source keys iterate")
}

// insertFactSQL resolves every dimension reference inside the insert
// itself: a lookup miss yields a NULL foreign key, never an error, and
// the whole row lands in one atomic statement. The opinion date is
// stored on the fact as well, so it survives a dim_time miss.
const insertFactSQL = `
INSERT INTO fact.fact_opiniones
	(origen, id_origen, puntaje, comentario, tiene_texto, fecha_opinion,
	 time_key, producto_key, cliente_key, fuente_key, red_social_key, clasificacion_key)
VALUES (
	$1, $2, $3, $4, $5, $6,
	(SELECT time_key FROM dimension.dim_time WHERE fecha = $6),
	(SELECT producto_key FROM dimension.dim_productos WHERE id_producto = $7),
	(SELECT cliente_key FROM dimension.dim_clientes WHERE nk_cliente = $8),
	(SELECT fuente_key FROM dimension.dim_fuente_datos WHERE id_fuente = $9),
	(SELECT red_social_key FROM dimension.dim_red_social WHERE nombre = $10),
	(SELECT clasificacion_key FROM dimension.dim_clasificacion WHERE nombre = $11)
)
ON CONFLICT (origen, id_origen) DO NOTHING`

// InsertFact merges one opinion into the fact table, keyed by
// (origen, id_origen). A row already present is left untouched.
func (p *Postgres) InsertFact(ctx context.Context, row model.FactRow) error {
	_, err := p.pool.Exec(ctx, insertFactSQL,
		string(row.Origin), row.SourceID, row.Score, row.Comment, row.HasText,
		row.Date, row.ProductID, row.ClientID, row.SourceCode, row.Network, row.Classification,
	)
	return eris.Wrapf(err, "warehouse: insert fact %s/%s", row.Origin, row.SourceID)
}
