package elasticx

import (
	"errors"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9/typedapi/types"
)

const (
	IndexNotFoundException         = "index_not_found_exception"
	ResourceAlreadyExistsException = "resource_already_exists_exception"
)

func IsElasticError(err error) (*types.ElasticsearchError, bool) {
	var eserror *types.ElasticsearchError
	if !errors.As(err, &eserror) {
		return nil, false
	}

	return eserror, true
}

func IsAlreadyExistsError(err error) bool {
	eserror, ok := IsElasticError(err)
	if !ok {
		return false
	}

	return eserror.Status == http.StatusBadRequest && eserror.ErrorCause.Type == ResourceAlreadyExistsException
}

// IsConflictError reports a failed optimistic concurrency check.
func IsConflictError(err error) bool {
	eserror, ok := IsElasticError(err)
	return ok && eserror.Status == http.StatusConflict
}

func IsNotFoundError(err error) bool {
	eserror, ok := IsElasticError(err)
	return ok && eserror.Status == http.StatusNotFound
}
