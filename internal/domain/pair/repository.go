package pair

import "context"

type Repository interface {
	ListPage(ctx context.Context, filter Filter, offset, limit int) ([]Pair, error)
}
