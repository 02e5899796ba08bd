package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/emedical/clinic-api/internal/apifeatures"
	"github.com/emedical/clinic-api/internal/models"
)

// Principals is the storage contract for one principal collection. Every
// lookup ignores soft-deleted documents.
type Principals[T models.Principal] interface {
	Create(ctx context.Context, doc T) error
	FindByID(ctx context.Context, id string) (T, error)
	FindByEmail(ctx context.Context, email string) (T, error)
	FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (T, error)
	Save(ctx context.Context, doc T) error
	Update(ctx context.Context, id string, set bson.M) (T, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) (T, error)
	List(ctx context.Context, q *apifeatures.APIFeatures) ([]T, error)
}

type PrincipalRepository[T models.Principal] struct {
	coll   *mongo.Collection
	newDoc func() T
}

func NewUserRepository(db *mongo.Database) *PrincipalRepository[*models.User] {
	return &PrincipalRepository[*models.User]{
		coll:   db.Collection(UsersCollection),
		newDoc: func() *models.User { return &models.User{} },
	}
}

func NewDoctorRepository(db *mongo.Database) *PrincipalRepository[*models.Doctor] {
	return &PrincipalRepository[*models.Doctor]{
		coll:   db.Collection(DoctorsCollection),
		newDoc: func() *models.Doctor { return &models.Doctor{} },
	}
}

func (r *PrincipalRepository[T]) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *PrincipalRepository[T]) Create(ctx context.Context, doc T) error {
	acc := doc.GetAccount()
	if acc.ID.IsZero() {
		acc.ID = primitive.NewObjectID()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	acc.Active = true

	_, err := r.coll.InsertOne(ctx, doc)
	return err
}

func (r *PrincipalRepository[T]) FindByID(ctx context.Context, id string) (T, error) {
	oid, err := ParseID("_id", id)
	if err != nil {
		var zero T
		return zero, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *PrincipalRepository[T]) FindByEmail(ctx context.Context, email string) (T, error) {
	return r.findOne(ctx, bson.M{"email": models.NormalizeEmail(email)})
}

func (r *PrincipalRepository[T]) FindByResetToken(ctx context.Context, hashedToken string, now time.Time) (T, error) {
	return r.findOne(ctx, bson.M{
		"passwordResetToken":   hashedToken,
		"passwordResetExpires": bson.M{"$gt": now},
	})
}

func (r *PrincipalRepository[T]) findOne(ctx context.Context, filter bson.M) (T, error) {
	var zero T
	doc := r.newDoc()
	if err := r.coll.FindOne(ctx, activeOnly(filter)).Decode(doc); err != nil {
		return zero, notFound(err)
	}
	return doc, nil
}

// Save replaces the stored document with doc.
func (r *PrincipalRepository[T]) Save(ctx context.Context, doc T) error {
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.GetAccount().ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository[T]) Update(ctx context.Context, id string, set bson.M) (T, error) {
	var zero T
	oid, err := ParseID("_id", id)
	if err != nil {
		return zero, err
	}

	doc := r.newDoc()
	err = r.coll.FindOneAndUpdate(
		ctx,
		activeOnly(bson.M{"_id": oid}),
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(doc)
	if err != nil {
		return zero, notFound(err)
	}
	return doc, nil
}

func (r *PrincipalRepository[T]) Deactivate(ctx context.Context, id string) error {
	oid, err := ParseID("_id", id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"active": false}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PrincipalRepository[T]) Delete(ctx context.Context, id string) (T, error) {
	var zero T
	oid, err := ParseID("_id", id)
	if err != nil {
		return zero, err
	}

	doc := r.newDoc()
	if err := r.coll.FindOneAndDelete(ctx, activeOnly(bson.M{"_id": oid})).Decode(doc); err != nil {
		return zero, notFound(err)
	}
	return doc, nil
}

func (r *PrincipalRepository[T]) List(ctx context.Context, q *apifeatures.APIFeatures) ([]T, error) {
	filter, opts := q.Query()
	cursor, err := r.coll.Find(ctx, activeOnly(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	for cursor.Next(ctx) {
		doc := r.newDoc()
		if err := cursor.Decode(doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, cursor.Err()
}
