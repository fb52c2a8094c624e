package extract

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sur-analytics/opiniones-etl/internal/db"
	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// RelationalExtractor reads denormalized opinions from the
// transactional "Opiniones" database.
type RelationalExtractor struct {
	pool db.Pool
}

// NewRelationalExtractor creates a RelationalExtractor over the given pool.
func NewRelationalExtractor(pool db.Pool) *RelationalExtractor {
	return &RelationalExtractor{pool: pool}
}

const relationalOpinionsSQL = `
SELECT
    o.idopinion,
    c.idcliente,
    c.nombre  AS cliente_nombre,
    c.email   AS cliente_email,
    p.idproducto,
    p.nombre  AS producto_nombre,
    cp.nombre AS categoria_nombre,
    o.fecha,
    o.comentario,
    o.puntajesatisfaccion,
    o.rating,
    o.idfuente,
    tf.nombre AS tipo_fuente,
    o.tipo_opinion,
    o.fuente_social,
    cl.nombre AS clasificacion_nombre
FROM "Opiniones".opiniones o
JOIN "Opiniones".clientes c  ON c.idcliente  = o.cliente
JOIN "Opiniones".productos p ON p.idproducto = o.producto
LEFT JOIN "Opiniones".categoriasproductos cp ON cp.idcategoria     = p.categoria
LEFT JOIN "Opiniones".clasificaciones cl     ON cl.idclasificacion = o.idclasificacion
JOIN "Opiniones".fuentesdatos fd             ON fd.idfuentedato    = o.idfuente
LEFT JOIN "Opiniones".tipofuente tf          ON tf.idtipofuente    = fd.tipofuente`

// Opinions returns every opinion joined with its client, product,
// category, classification, and source attributes.
func (e *RelationalExtractor) Opinions(ctx context.Context) ([]model.RawDBOpinion, error) {
	rows, err := e.pool.Query(ctx, relationalOpinionsSQL)
	if err != nil {
		return nil, eris.Wrap(err, "relational: query opinions")
	}
	defer rows.Close()

	var out []model.RawDBOpinion
	for rows.Next() {
		var o model.RawDBOpinion
		if err := rows.Scan(
			&o.OpinionID,
			&o.ClientID,
			&o.ClientName,
			&o.ClientEmail,
			&o.ProductCode,
			&o.ProductName,
			&o.CategoryName,
			&o.Date,
			&o.Comment,
			&o.Satisfaction,
			&o.Rating,
			&o.SourceID,
			&o.SourceType,
			&o.OpinionType,
			&o.SocialSource,
			&o.Classification,
		); err != nil {
			return nil, eris.Wrap(err, "relational: scan opinion")
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "relational: iterate opinions")
	}

	zap.L().Info("read relational opinions", zap.Int("rows", len(out)))
	return out, nil
}
