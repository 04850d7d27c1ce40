package mongo

import (
	"context"

	"github.com/stayhaven/reservations/internal/domain"
	"github.com/stayhaven/reservations/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ListingCatalog reads collaborator-owned listing state. The reservation core
// treats listings as read-only except for the owner-initiated delete cascade.
type ListingCatalog struct {
	listings *mongo.Collection
	reviews  *mongo.Collection
	logger   observability.Logger
}

func NewListingCatalog(db *mongo.Database, logger observability.Logger) *ListingCatalog {
	return &ListingCatalog{
		listings: db.Collection("listings"),
		reviews:  db.Collection("reviews"),
		logger:   logger,
	}
}

type RoomPlanDoc struct {
	Name       string `bson:"name"`
	ExtraPrice int64  `bson:"extra_price"`
}

type ListingDoc struct {
	ID            string        `bson:"_id"`
	Title         string        `bson:"title"`
	PricePerNight int64         `bson:"price"`
	RoomPlans     []RoomPlanDoc `bson:"room_plans"`
	OwnerID       string        `bson:"owner_id"`
	Capacity      int           `bson:"capacity"`
	Reviews       []string      `bson:"reviews"`
}

func (d ListingDoc) toDomain() *domain.Listing {
	plans := make([]domain.RoomPlan, len(d.RoomPlans))
	for i, p := range d.RoomPlans {
		plans[i] = domain.RoomPlan{Name: p.Name, ExtraPrice: p.ExtraPrice}
	}
	return &domain.Listing{
		ID:            d.ID,
		Title:         d.Title,
		PricePerNight: d.PricePerNight,
		RoomPlans:     plans,
		OwnerID:       d.OwnerID,
		Capacity:      d.Capacity,
	}
}

func (c *ListingCatalog) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	var doc ListingDoc
	err := c.listings.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to get listing", err)
		return nil, err
	}
	return doc.toDomain(), nil
}

func (c *ListingCatalog) CreateListing(ctx context.Context, doc ListingDoc) error {
	_, err := c.listings.InsertOne(ctx, doc)
	if err != nil {
		c.logger.Error("failed to create listing", err)
	}
	return err
}

// DeleteListing removes a listing and its dependent reviews as one explicit
// orchestration step. Review cleanup is scoped to the review ids the listing
// references, so unrelated reviews survive. Booking cleanup is the caller's
// responsibility against the ledger.
func (c *ListingCatalog) DeleteListing(ctx context.Context, id string) (*domain.Listing, error) {
	var doc ListingDoc
	err := c.listings.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(doc.Reviews) > 0 {
		_, err = c.reviews.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": doc.Reviews}})
		if err != nil {
			c.logger.Error("failed to cascade delete reviews", err)
			return nil, err
		}
	}

	_, err = c.listings.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (c *ListingCatalog) CountReviews(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return c.reviews.CountDocuments(ctx, bson.M{"_id": bson.M{"$in": ids}})
}
