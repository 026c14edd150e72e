package postgres

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/Kerhoff/carecircle/internal/models"
)

// audienceColumns splits an audience into its scope and id-array columns.
func audienceColumns(a *models.Audience) (sql.NullString, pq.Int64Array) {
	if a == nil {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(a.Scope), Valid: true}, pq.Int64Array(a.UserIDs)
}

// audienceFromColumns is the inverse of audienceColumns.
func audienceFromColumns(scope sql.NullString, ids pq.Int64Array) *models.Audience {
	if !scope.Valid {
		return nil
	}
	return &models.Audience{Scope: models.AudienceScope(scope.String), UserIDs: []int64(ids)}
}
