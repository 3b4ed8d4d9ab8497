package persistencex

import "context"

// Browse fetches every page of a list, starting at opts.Page, until the
// reported total is reached or a page comes back empty.
func Browse[T any](ctx context.Context, fetch func(context.Context, ListRequest) (*ListResponse[T], error), opts ListRequest) ([]T, error) {
	data := []T{}
	opts = opts.Normalize()

	for {
		res, err := fetch(ctx, opts)
		if err != nil {
			return nil, err
		}
		data = append(data, res.Data...)

		if len(res.Data) == 0 || int64(len(data)) >= res.Meta.Total {
			return data, nil
		}
		opts.Page++
	}
}
