package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	apartmentserrors "apartur/internal/apartments/errors"
	"apartur/pkg/config"
	"apartur/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Apartments"
)

type ApartmentRepository interface {
	FindByID(ctx context.Context, id string) (*model.Apartment, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Apartment, error)
	Count(ctx context.Context) (int64, error)
	Search(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, error)
	CountSearch(ctx context.Context, filter model.ApartmentFilter) (int64, error)
	FindWithCoordinates(ctx context.Context) ([]*model.Apartment, error)
	UpsertByRegistryNumber(ctx context.Context, apartment *model.Apartment) (bool, error)
	DeactivateMissing(ctx context.Context, seen []string) (int64, error)
	SetPrice(ctx context.Context, id string, pricePerNight float64) error
}

type mongoApartmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoApartmentRepository(cfg *config.Config) ApartmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoApartmentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoApartmentRepository) FindByID(ctx context.Context, id string) (*model.Apartment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apartmentserrors.ErrInvalidID, id)
	}

	var apartment model.Apartment
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&apartment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apartmentserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find apartment: %w", err)
	}
	return &apartment, nil
}

func (r *mongoApartmentRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Apartment, error) {
	return r.find(ctx, bson.M{"active": true}, limit, offset)
}

func (r *mongoApartmentRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, bson.M{"active": true})
}

func (r *mongoApartmentRepository) Search(ctx context.Context, filter model.ApartmentFilter) ([]*model.Apartment, error) {
	return r.find(ctx, searchFilter(filter), filter.Limit, filter.Offset)
}

func (r *mongoApartmentRepository) CountSearch(ctx context.Context, filter model.ApartmentFilter) (int64, error) {
	return r.count(ctx, searchFilter(filter))
}

func (r *mongoApartmentRepository) FindWithCoordinates(ctx context.Context) ([]*model.Apartment, error) {
	return r.find(ctx, bson.M{
		"active":    true,
		"latitude":  bson.M{"$exists": true, "$ne": nil},
		"longitude": bson.M{"$exists": true, "$ne": nil},
	}, 0, 0)
}

// UpsertByRegistryNumber writes registry data only; price_per_night is
// maintained by admins and never touched here. Reports whether a new
// document was inserted.
func (r *mongoApartmentRepository) UpsertByRegistryNumber(ctx context.Context, apartment *model.Apartment) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	set := bson.M{
		"name":         apartment.Name,
		"category":     apartment.Category,
		"province":     apartment.Province,
		"municipality": apartment.Municipality,
		"locality":     apartment.Locality,
		"address":      apartment.Address,
		"postal_code":  apartment.PostalCode,
		"phone":        apartment.Phone,
		"email":        apartment.Email,
		"website":      apartment.Website,
		"capacity":     apartment.Capacity,
		"units":        apartment.Units,
		"active":       true,
		"synced_at":    now,
		"updated_at":   now,
	}
	unset := bson.M{}
	if apartment.HasCoordinates() {
		set["latitude"] = *apartment.Latitude
		set["longitude"] = *apartment.Longitude
	} else {
		unset["latitude"] = ""
		unset["longitude"] = ""
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"registry_number": apartment.RegistryNumber, "created_at": now},
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"registry_number": apartment.RegistryNumber},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert apartment %s: %w", apartment.RegistryNumber, err)
	}
	return result.UpsertedCount > 0, nil
}

// DeactivateMissing hides apartments whose registry number was not in the
// latest fetch.
func (r *mongoApartmentRepository) DeactivateMissing(ctx context.Context, seen []string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateMany(ctx,
		missingFilter(seen),
		bson.M{"$set": bson.M{"active": false, "updated_at": time.Now().UTC().Truncate(time.Millisecond)}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate stale apartments: %w", err)
	}
	return result.ModifiedCount, nil
}

func (r *mongoApartmentRepository) SetPrice(ctx context.Context, id string, pricePerNight float64) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", apartmentserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"price_per_night": pricePerNight, "updated_at": time.Now().UTC().Truncate(time.Millisecond)}},
	)
	if err != nil {
		return fmt.Errorf("failed to set apartment price: %w", err)
	}
	if result.MatchedCount == 0 {
		return apartmentserrors.ErrNotFound
	}
	return nil
}

func (r *mongoApartmentRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Apartment, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(offset)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find apartments: %w", err)
	}
	defer cursor.Close(ctx)

	var apartments []*model.Apartment
	if err := cursor.All(ctx, &apartments); err != nil {
		return nil, fmt.Errorf("failed to decode apartments: %w", err)
	}
	if apartments == nil {
		apartments = []*model.Apartment{}
	}
	return apartments, nil
}

func (r *mongoApartmentRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count apartments: %w", err)
	}
	return count, nil
}

func missingFilter(seen []string) bson.M {
	if seen == nil {
		seen = []string{}
	}
	return bson.M{"active": true, "registry_number": bson.M{"$nin": seen}}
}

// searchFilter matches province and municipality case-insensitively as whole
// values and the free-text query as a substring of the name.
func searchFilter(f model.ApartmentFilter) bson.M {
	filter := bson.M{"active": true}
	if f.Province != "" {
		filter["province"] = exactInsensitive(f.Province)
	}
	if f.Municipality != "" {
		filter["municipality"] = exactInsensitive(f.Municipality)
	}
	if f.MinCapacity > 0 {
		filter["capacity"] = bson.M{"$gte": f.MinCapacity}
	}
	if f.Query != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Query), Options: "i"}
	}
	return filter
}

func exactInsensitive(s string) primitive.Regex {
	return primitive.Regex{Pattern: "^" + regexp.QuoteMeta(s) + "$", Options: "i"}
}
