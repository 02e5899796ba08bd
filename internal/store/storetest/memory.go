// Package storetest provides in-memory implementations of the store
// interfaces. Documents go through a BSON round trip on every write so
// callers never share memory with the store, as with a real database.
//
// List honours equality conditions of the query filter only; operators,
// sorting and paging are ignored.
package storetest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/emedical/clinic-api/internal/apifeatures"
	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/store"
)

type Principals[T models.Principal] struct {
	mu     sync.Mutex
	coll   string
	newDoc func() T
	docs   map[primitive.ObjectID]bson.Raw
	order  []primitive.ObjectID
}

var _ store.Principals[*models.User] = (*Principals[*models.User])(nil)

func NewUsers() *Principals[*models.User] {
	return &Principals[*models.User]{
		coll:   store.UsersCollection,
		newDoc: func() *models.User { return &models.User{} },
		docs:   map[primitive.ObjectID]bson.Raw{},
	}
}

func NewDoctors() *Principals[*models.Doctor] {
	return &Principals[*models.Doctor]{
		coll:   store.DoctorsCollection,
		newDoc: func() *models.Doctor { return &models.Doctor{} },
		docs:   map[primitive.ObjectID]bson.Raw{},
	}
}

func (p *Principals[T]) Create(_ context.Context, doc T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc := doc.GetAccount()
	if err := p.checkEmail(acc.Email, primitive.NilObjectID); err != nil {
		return err
	}
	if acc.ID.IsZero() {
		acc.ID = primitive.NewObjectID()
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	acc.Active = true

	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	p.docs[acc.ID] = raw
	p.order = append(p.order, acc.ID)
	return nil
}

func (p *Principals[T]) FindByID(_ context.Context, id string) (T, error) {
	var zero T
	oid, err := store.ParseID("_id", id)
	if err != nil {
		return zero, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active(oid)
}

func (p *Principals[T]) FindByEmail(_ context.Context, email string) (T, error) {
	email = models.NormalizeEmail(email)
	return p.findFirst(func(acc *models.Account) bool { return acc.Email == email })
}

func (p *Principals[T]) FindByResetToken(_ context.Context, hashedToken string, now time.Time) (T, error) {
	return p.findFirst(func(acc *models.Account) bool {
		return acc.PasswordResetToken == hashedToken &&
			acc.PasswordResetExpires != nil &&
			acc.PasswordResetExpires.After(now)
	})
}

func (p *Principals[T]) Save(_ context.Context, doc T) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	acc := doc.GetAccount()
	if _, ok := p.docs[acc.ID]; !ok {
		return store.ErrNotFound
	}
	if err := p.checkEmail(acc.Email, acc.ID); err != nil {
		return err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	p.docs[acc.ID] = raw
	return nil
}

func (p *Principals[T]) Update(_ context.Context, id string, set bson.M) (T, error) {
	var zero T
	oid, err := store.ParseID("_id", id)
	if err != nil {
		return zero, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.active(oid); err != nil {
		return zero, err
	}
	if email, ok := set["email"].(string); ok {
		if err := p.checkEmail(email, oid); err != nil {
			return zero, err
		}
	}
	raw, err := merge(p.docs[oid], set)
	if err != nil {
		return zero, err
	}
	p.docs[oid] = raw
	return p.decode(raw)
}

func (p *Principals[T]) Deactivate(_ context.Context, id string) error {
	oid, err := store.ParseID("_id", id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	raw, ok := p.docs[oid]
	if !ok {
		return store.ErrNotFound
	}
	raw, err = merge(raw, bson.M{"active": false})
	if err != nil {
		return err
	}
	p.docs[oid] = raw
	return nil
}

func (p *Principals[T]) Delete(_ context.Context, id string) (T, error) {
	var zero T
	oid, err := store.ParseID("_id", id)
	if err != nil {
		return zero, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.active(oid)
	if err != nil {
		return zero, err
	}
	delete(p.docs, oid)
	p.order = slices.DeleteFunc(p.order, func(o primitive.ObjectID) bool { return o == oid })
	return doc, nil
}

func (p *Principals[T]) List(_ context.Context, q *apifeatures.APIFeatures) ([]T, error) {
	filter, _ := q.Query()

	p.mu.Lock()
	defer p.mu.Unlock()

	docs := make([]T, 0)
	for _, oid := range p.order {
		raw := p.docs[oid]
		m, err := toM(raw)
		if err != nil {
			return nil, err
		}
		if m["active"] == false || !matches(m, filter) {
			continue
		}
		doc, err := p.decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Len counts stored documents, soft-deleted ones included.
func (p *Principals[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.docs)
}

// Get returns a stored document regardless of its active flag.
func (p *Principals[T]) Get(id primitive.ObjectID) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	raw, ok := p.docs[id]
	if !ok {
		return zero, false
	}
	doc, err := p.decode(raw)
	return doc, err == nil
}

func (p *Principals[T]) summary(id primitive.ObjectID) (*models.PrincipalSummary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.active(id)
	if err != nil {
		return nil, false
	}
	acc := doc.GetAccount()
	return &models.PrincipalSummary{ID: acc.ID, Name: acc.Name, Email: acc.Email, Photo: acc.Photo}, true
}

func (p *Principals[T]) findFirst(match func(*models.Account) bool) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var zero T
	for _, oid := range p.order {
		doc, err := p.active(oid)
		if err != nil {
			continue
		}
		if match(doc.GetAccount()) {
			return doc, nil
		}
	}
	return zero, store.ErrNotFound
}

func (p *Principals[T]) active(oid primitive.ObjectID) (T, error) {
	var zero T
	raw, ok := p.docs[oid]
	if !ok {
		return zero, store.ErrNotFound
	}
	doc, err := p.decode(raw)
	if err != nil {
		return zero, err
	}
	if !doc.GetAccount().Active {
		return zero, store.ErrNotFound
	}
	return doc, nil
}

func (p *Principals[T]) decode(raw bson.Raw) (T, error) {
	doc := p.newDoc()
	if err := bson.Unmarshal(raw, doc); err != nil {
		var zero T
		return zero, err
	}
	return doc, nil
}

// checkEmail mirrors the unique email index, which also covers
// soft-deleted documents.
func (p *Principals[T]) checkEmail(email string, self primitive.ObjectID) error {
	for oid, raw := range p.docs {
		if oid == self {
			continue
		}
		if stored, ok := raw.Lookup("email").StringValueOK(); ok && stored == email {
			return mongo.WriteException{WriteErrors: mongo.WriteErrors{{
				Code: 11000,
				Message: fmt.Sprintf(
					`E11000 duplicate key error collection: clinic.%s index: email_1 dup key: { email: "%s" }`,
					p.coll, email,
				),
			}}}
		}
	}
	return nil
}

type Appointments struct {
	mu      sync.Mutex
	apts    map[primitive.ObjectID]models.Appointment
	order   []primitive.ObjectID
	users   *Principals[*models.User]
	doctors *Principals[*models.Doctor]
}

var _ store.Appointments = (*Appointments)(nil)

// NewAppointments populates patient and doctor summaries from users and doctors.
func NewAppointments(users *Principals[*models.User], doctors *Principals[*models.Doctor]) *Appointments {
	return &Appointments{
		apts:    map[primitive.ObjectID]models.Appointment{},
		users:   users,
		doctors: doctors,
	}
}

func (a *Appointments) Create(_ context.Context, apt *models.Appointment) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if apt.ID.IsZero() {
		apt.ID = primitive.NewObjectID()
	}
	if apt.Status == "" {
		apt.Status = models.StatusPending
	}
	if apt.CreatedAt.IsZero() {
		apt.CreatedAt = time.Now().UTC()
	}
	stored, err := roundTrip(*apt)
	if err != nil {
		return err
	}
	a.apts[apt.ID] = stored
	a.order = append(a.order, apt.ID)
	a.populate(apt)
	return nil
}

func (a *Appointments) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	oid, err := store.ParseID("_id", id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	apt, ok := a.apts[oid]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a.populate(&apt), nil
}

func (a *Appointments) Update(_ context.Context, id string, set bson.M) (*models.Appointment, error) {
	oid, err := store.ParseID("_id", id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.update(oid, set)
}

func (a *Appointments) Delete(_ context.Context, id string) (*models.Appointment, error) {
	oid, err := store.ParseID("_id", id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	apt, ok := a.apts[oid]
	if !ok {
		return nil, store.ErrNotFound
	}
	delete(a.apts, oid)
	a.order = slices.DeleteFunc(a.order, func(o primitive.ObjectID) bool { return o == oid })
	return &apt, nil
}

func (a *Appointments) List(_ context.Context, q *apifeatures.APIFeatures) ([]*models.Appointment, error) {
	filter, _ := q.Query()

	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*models.Appointment, 0)
	for _, oid := range a.order {
		apt := a.apts[oid]
		m, err := toM(apt)
		if err != nil {
			return nil, err
		}
		if matches(m, filter) {
			out = append(out, a.populate(&apt))
		}
	}
	return out, nil
}

func (a *Appointments) Transition(
	_ context.Context,
	id string,
	doctorID primitive.ObjectID,
	from, to models.Status,
	exam *models.Examination,
) (*models.Appointment, error) {
	oid, err := store.ParseID("appointment", id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	apt, ok := a.apts[oid]
	if !ok || apt.DoctorID != doctorID || apt.Status != from {
		return nil, store.ErrNotFound
	}
	set := bson.M{"status": to}
	if exam != nil {
		set["examination"] = exam
	}
	return a.update(oid, set)
}

func (a *Appointments) BookedTimes(_ context.Context, doctorID primitive.ObjectID, from, to time.Time) ([]time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	times := make([]time.Time, 0)
	for _, oid := range a.order {
		apt := a.apts[oid]
		if apt.DoctorID == doctorID && apt.Status.Active() && !apt.Date.Before(from) && apt.Date.Before(to) {
			times = append(times, apt.Date)
		}
	}
	return times, nil
}

func (a *Appointments) HasAppointment(_ context.Context, doctorID, patientID primitive.ObjectID, status models.Status) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, apt := range a.apts {
		if apt.DoctorID == doctorID && apt.PatientID == patientID && apt.Status == status {
			return true, nil
		}
	}
	return false, nil
}

func (a *Appointments) ListByPatient(_ context.Context, patientID primitive.ObjectID, status models.Status) ([]*models.Appointment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*models.Appointment, 0)
	for _, oid := range a.order {
		apt := a.apts[oid]
		if apt.PatientID == patientID && (status == "" || apt.Status == status) {
			out = append(out, a.populate(&apt))
		}
	}
	slices.SortFunc(out, func(x, y *models.Appointment) int { return y.Date.Compare(x.Date) })
	return out, nil
}

// Len counts stored appointments.
func (a *Appointments) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.apts)
}

func (a *Appointments) update(oid primitive.ObjectID, set bson.M) (*models.Appointment, error) {
	apt, ok := a.apts[oid]
	if !ok {
		return nil, store.ErrNotFound
	}
	raw, err := bson.Marshal(apt)
	if err != nil {
		return nil, err
	}
	raw, err = merge(raw, set)
	if err != nil {
		return nil, err
	}
	var updated models.Appointment
	if err := bson.Unmarshal(raw, &updated); err != nil {
		return nil, err
	}
	a.apts[oid] = updated
	return a.populate(&updated), nil
}

func (a *Appointments) populate(apt *models.Appointment) *models.Appointment {
	if a.users != nil && !apt.PatientID.IsZero() {
		if s, ok := a.users.summary(apt.PatientID); ok {
			apt.Patient = s
		} else {
			apt.Patient = &models.PrincipalSummary{ID: apt.PatientID}
		}
	}
	if a.doctors != nil && !apt.DoctorID.IsZero() {
		if s, ok := a.doctors.summary(apt.DoctorID); ok {
			apt.Doctor = s
		} else {
			apt.Doctor = &models.PrincipalSummary{ID: apt.DoctorID}
		}
	}
	return apt
}

func roundTrip(apt models.Appointment) (models.Appointment, error) {
	var out models.Appointment
	raw, err := bson.Marshal(apt)
	if err != nil {
		return out, err
	}
	err = bson.Unmarshal(raw, &out)
	return out, err
}

// merge applies a top-level $set to a stored document.
func merge(raw bson.Raw, set bson.M) (bson.Raw, error) {
	m, err := toM(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range set {
		m[k] = v
	}
	return bson.Marshal(m)
}

func toM(v any) (bson.M, error) {
	raw, ok := v.(bson.Raw)
	if !ok {
		var err error
		if raw, err = bson.Marshal(v); err != nil {
			return nil, err
		}
	}
	m := bson.M{}
	return m, bson.Unmarshal(raw, &m)
}

func matches(doc, filter bson.M) bool {
	for k, want := range filter {
		if _, isOp := want.(bson.M); isOp {
			continue
		}
		if doc[k] != want {
			return false
		}
	}
	return true
}
