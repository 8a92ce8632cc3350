package search

import "github.com/pders01/dispatch/internal/storage"

// UpdateListener can be implemented by search backends that maintain an
// external index and want to be notified when articles are fetched.
type UpdateListener interface {
	OnArticlesUpdated(articles []storage.Article)
}
