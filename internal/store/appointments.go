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

type Appointments interface {
	Create(ctx context.Context, apt *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Update(ctx context.Context, id string, set bson.M) (*models.Appointment, error)
	Delete(ctx context.Context, id string) (*models.Appointment, error)
	List(ctx context.Context, q *apifeatures.APIFeatures) ([]*models.Appointment, error)
	// Transition moves an appointment owned by doctorID from one status to
	// another in a single conditional write. It returns ErrNotFound when the
	// appointment does not exist, belongs to someone else or is not in from.
	Transition(ctx context.Context, id string, doctorID primitive.ObjectID, from, to models.Status, exam *models.Examination) (*models.Appointment, error)
	BookedTimes(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]time.Time, error)
	HasAppointment(ctx context.Context, doctorID, patientID primitive.ObjectID, status models.Status) (bool, error)
	ListByPatient(ctx context.Context, patientID primitive.ObjectID, status models.Status) ([]*models.Appointment, error)
}

type AppointmentRepository struct {
	coll    *mongo.Collection
	users   *mongo.Collection
	doctors *mongo.Collection
}

func NewAppointmentRepository(db *mongo.Database) *AppointmentRepository {
	return &AppointmentRepository{
		coll:    db.Collection(AppointmentsCollection),
		users:   db.Collection(UsersCollection),
		doctors: db.Collection(DoctorsCollection),
	}
}

func (r *AppointmentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "doctor", Value: 1}, {Key: "date", Value: 1}}},
		{Keys: bson.D{{Key: "patient", Value: 1}, {Key: "status", Value: 1}}},
	})
	return err
}

func (r *AppointmentRepository) Create(ctx context.Context, apt *models.Appointment) error {
	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	if apt.Status == "" {
		apt.Status = models.StatusPending
	}
	if apt.CreatedAt.IsZero() {
		apt.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, apt); err != nil {
		return err
	}
	return r.populate(ctx, apt)
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	oid, err := ParseID("_id", id)
	if err != nil {
		return nil, err
	}
	var apt models.Appointment
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&apt); err != nil {
		return nil, notFound(err)
	}
	return &apt, r.populate(ctx, &apt)
}

func (r *AppointmentRepository) Update(ctx context.Context, id string, set bson.M) (*models.Appointment, error) {
	oid, err := ParseID("_id", id)
	if err != nil {
		return nil, err
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid}, set)
}

func (r *AppointmentRepository) Delete(ctx context.Context, id string) (*models.Appointment, error) {
	oid, err := ParseID("_id", id)
	if err != nil {
		return nil, err
	}
	var apt models.Appointment
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&apt); err != nil {
		return nil, notFound(err)
	}
	return &apt, nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *apifeatures.APIFeatures) ([]*models.Appointment, error) {
	filter, opts := q.Query()
	return r.find(ctx, filter, opts)
}

func (r *AppointmentRepository) Transition(
	ctx context.Context,
	id string,
	doctorID primitive.ObjectID,
	from, to models.Status,
	exam *models.Examination,
) (*models.Appointment, error) {
	oid, err := ParseID("appointment", id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"status": to}
	if exam != nil {
		set["examination"] = exam
	}
	return r.findOneAndUpdate(ctx, bson.M{"_id": oid, "doctor": doctorID, "status": from}, set)
}

func (r *AppointmentRepository) BookedTimes(ctx context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]time.Time, error) {
	filter := bson.M{
		"doctor": doctorID,
		"date":   bson.M{"$gte": from, "$lt": to},
		"status": bson.M{"$in": bson.A{models.StatusPending, models.StatusNotFinished}},
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Date time.Time `bson:"date"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	times := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		times = append(times, row.Date)
	}
	return times, nil
}

func (r *AppointmentRepository) HasAppointment(ctx context.Context, doctorID, patientID primitive.ObjectID, status models.Status) (bool, error) {
	n, err := r.coll.CountDocuments(ctx,
		bson.M{"doctor": doctorID, "patient": patientID, "status": status},
		options.Count().SetLimit(1),
	)
	return n > 0, err
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID primitive.ObjectID, status models.Status) ([]*models.Appointment, error) {
	filter := bson.M{"patient": patientID}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
}

func (r *AppointmentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Appointment, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	apts := make([]*models.Appointment, 0)
	if err := cursor.All(ctx, &apts); err != nil {
		return nil, err
	}
	return apts, r.populate(ctx, apts...)
}

func (r *AppointmentRepository) findOneAndUpdate(ctx context.Context, filter, set bson.M) (*models.Appointment, error) {
	var apt models.Appointment
	err := r.coll.FindOneAndUpdate(
		ctx,
		filter,
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&apt)
	if err != nil {
		return nil, notFound(err)
	}
	return &apt, r.populate(ctx, &apt)
}

// populate replaces patient and doctor references with their summaries,
// issuing one query per referenced collection.
func (r *AppointmentRepository) populate(ctx context.Context, apts ...*models.Appointment) error {
	var patientIDs, doctorIDs []primitive.ObjectID
	for _, apt := range apts {
		if !apt.PatientID.IsZero() {
			patientIDs = append(patientIDs, apt.PatientID)
		}
		if !apt.DoctorID.IsZero() {
			doctorIDs = append(doctorIDs, apt.DoctorID)
		}
	}

	patients, err := summaries(ctx, r.users, patientIDs)
	if err != nil {
		return err
	}
	doctors, err := summaries(ctx, r.doctors, doctorIDs)
	if err != nil {
		return err
	}

	for _, apt := range apts {
		if !apt.PatientID.IsZero() {
			apt.Patient = lookupSummary(patients, apt.PatientID)
		}
		if !apt.DoctorID.IsZero() {
			apt.Doctor = lookupSummary(doctors, apt.DoctorID)
		}
	}
	return nil
}

func summaries(ctx context.Context, coll *mongo.Collection, ids []primitive.ObjectID) (map[primitive.ObjectID]models.PrincipalSummary, error) {
	out := make(map[primitive.ObjectID]models.PrincipalSummary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	projection := bson.D{{Key: "name", Value: 1}, {Key: "email", Value: 1}, {Key: "photo", Value: 1}}
	cursor, err := coll.Find(ctx, activeOnly(bson.M{"_id": bson.M{"$in": ids}}), options.Find().SetProjection(projection))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var s models.PrincipalSummary
		if err := cursor.Decode(&s); err != nil {
			return nil, err
		}
		out[s.ID] = s
	}
	return out, cursor.Err()
}

func lookupSummary(m map[primitive.ObjectID]models.PrincipalSummary, id primitive.ObjectID) *models.PrincipalSummary {
	if s, ok := m[id]; ok {
		return &s
	}
	return &models.PrincipalSummary{ID: id}
}
