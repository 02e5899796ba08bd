package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/emedical/clinic-api/internal/apifeatures"
	"github.com/emedical/clinic-api/internal/models"
	"github.com/emedical/clinic-api/internal/services"
	"github.com/emedical/clinic-api/internal/store"
	"github.com/emedical/clinic-api/internal/utils"
)

type Options struct {
	Production bool
	CookieTTL  time.Duration
	MaxLimit   int
}

type Handler struct {
	Users           store.Principals[*models.User]
	Doctors         store.Principals[*models.Doctor]
	Appointments    store.Appointments
	NotificationSvc services.Notifier
	SlotLocker      services.Locker
	Tokens          *utils.TokenManager
	Logger          zerolog.Logger

	opts Options
	now  func() time.Time
}

func NewHandler(
	users store.Principals[*models.User],
	doctors store.Principals[*models.Doctor],
	appointments store.Appointments,
	notificationSvc services.Notifier,
	slotLocker services.Locker,
	tokens *utils.TokenManager,
	logger zerolog.Logger,
	opts Options,
) *Handler {
	if slotLocker == nil {
		slotLocker = services.NewLocalSlotLocker()
	}
	return &Handler{
		Users:           users,
		Doctors:         doctors,
		Appointments:    appointments,
		NotificationSvc: notificationSvc,
		SlotLocker:      slotLocker,
		Tokens:          tokens,
		Logger:          logger,
		opts:            opts,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the handler clock. The token manager keeps its own.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// stringFields are stored as strings, so filters on them are never coerced
// into numbers, booleans or dates.
var stringFields = []string{
	"name", "email", "photo", "phoneNumber", "role",
	"department", "location", "clinic", "summary", "idCard",
	"status", "examination.diagnosis", "examination.prescription", "examination.notes",
}

// query applies the request's filter, sort, projection and paging on top of base.
func (h *Handler) query(c *gin.Context, base bson.M, allowed ...string) *apifeatures.APIFeatures {
	opts := []apifeatures.Option{
		apifeatures.WithMaxLimit(h.opts.MaxLimit),
		apifeatures.WithStringFields(stringFields...),
	}
	if len(allowed) > 0 {
		opts = append(opts, apifeatures.WithAllowedFields(allowed...))
	}
	return apifeatures.New(base, c.Request.URL.Query(), opts...).Apply()
}
