package catalog

import (
	"strings"
	"time"

	"github.com/maruel/bgstudio/internal/jsonldb"
	"github.com/maruel/bgstudio/internal/models"
)

// DefaultCurrency is used for listings without one.
const DefaultCurrency = "USD"

// ListingService manages bgs_listings, the marketplace.
type ListingService struct {
	table[*models.Listing]
	env *env
}

// Create stores a new listing. An empty SellerID defaults to the signed-in
// user.
func (s *ListingService) Create(l models.Listing) (*models.Listing, error) {
	seller, err := s.env.owner(l.SellerID)
	if err != nil {
		return nil, err
	}
	if err := s.env.requireUser("sellerId", seller); err != nil {
		return nil, err
	}
	l.ID = models.ListingID(jsonldb.NewID())
	l.SellerID = seller
	l.CreatedAt = s.env.now().UTC()
	l.Currency = strings.ToUpper(strings.TrimSpace(l.Currency))
	if l.Currency == "" {
		l.Currency = DefaultCurrency
	}
	if err := s.rows.Append(&l); err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// Update applies fn to a copy of the listing and stores the result.
func (s *ListingService) Update(id models.ListingID, fn func(*models.Listing)) (*models.Listing, error) {
	return s.rows.Modify(string(id), func(l *models.Listing) (*models.Listing, error) {
		fn(l)
		if err := s.env.requireUser("sellerId", l.SellerID); err != nil {
			return nil, err
		}
		return l, nil
	})
}

// Delete removes the listing.
func (s *ListingService) Delete(id models.ListingID) error {
	return s.delete(string(id))
}

// List returns the listings matching f. Tag matches the category.
func (s *ListingService) List(f Filter) []*models.Listing {
	return s.list(func(l *models.Listing) bool {
		return f.matchOwner(l.SellerID) &&
			f.matchTag([]string{l.Category}) &&
			f.matchText(l.Title, l.Description, l.Category)
	}, func(l *models.Listing) time.Time { return l.CreatedAt }, f.Newest)
}
