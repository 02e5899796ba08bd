// Package apifeatures turns request query parameters into a MongoDB filter
// and find options: field filtering with comparison operators, multi-key
// sorting, sparse field selection and pagination.
//
//	GET /doctors?scheduleStart[gte]=600&sort=name,-createdAt&fields=name,email&page=2&limit=10
package apifeatures

import (
	"math"
	"net/url"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
)

var reservedKeys = []string{"page", "sort", "limit", "fields"}

var comparisonOps = []string{"gte", "gt", "lte", "lt"}

type Option func(*APIFeatures)

// WithMaxLimit caps the page size. Zero keeps it unbounded.
func WithMaxLimit(n int) Option {
	return func(f *APIFeatures) { f.maxLimit = n }
}

// WithStringFields lists fields whose filter values are always compared as
// strings, whatever they look like.
func WithStringFields(fields ...string) Option {
	return func(f *APIFeatures) { f.stringFields = fields }
}

// WithAllowedFields restricts filtering and sorting to the given top-level fields.
func WithAllowedFields(fields ...string) Option {
	return func(f *APIFeatures) { f.allowed = fields }
}

type APIFeatures struct {
	base     bson.M
	params   url.Values
	maxLimit     int
	allowed      []string
	stringFields []string

	filter     bson.M
	sort       bson.D
	projection bson.D
	skip       int64
	limit      int64
	paginated  bool
}

// New starts a query over base, which is always enforced on top of whatever
// the request asks for.
func New(base bson.M, params url.Values, opts ...Option) *APIFeatures {
	f := &APIFeatures{base: base, params: params}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *APIFeatures) Filter() *APIFeatures {
	filter := bson.M{}

	keys := make([]string, 0, len(f.params))
	for k := range f.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := f.params[key]
		if len(values) == 0 || slices.Contains(reservedKeys, key) || strings.Contains(key, "$") {
			continue
		}

		field, op, nested := splitKey(key)
		if !f.fieldAllowed(field) {
			continue
		}

		if nested && slices.Contains(comparisonOps, op) {
			addCondition(filter, field, bson.M{"$" + op: f.coerce(field, values[0])})
			continue
		}
		if nested {
			field = field + "." + op
		}
		if len(values) > 1 {
			in := make(bson.A, 0, len(values))
			for _, v := range values {
				in = append(in, f.coerce(field, v))
			}
			addCondition(filter, field, bson.M{"$in": in})
			continue
		}
		addCondition(filter, field, bson.M{"$eq": f.coerce(field, values[0])})
	}

	for k, v := range f.base {
		filter[k] = v
	}
	f.filter = filter
	return f
}

func (f *APIFeatures) Sort() *APIFeatures {
	raw := f.params.Get("sort")
	if raw == "" {
		f.sort = bson.D{{Key: "createdAt", Value: -1}}
		return f
	}

	sortBy := bson.D{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		dir := 1
		if strings.HasPrefix(part, "-") {
			dir = -1
			part = part[1:]
		}
		if part == "" || strings.Contains(part, "$") || !f.fieldAllowed(topLevel(part)) {
			continue
		}
		sortBy = append(sortBy, bson.E{Key: part, Value: dir})
	}
	if len(sortBy) == 0 {
		sortBy = bson.D{{Key: "createdAt", Value: -1}}
	}
	f.sort = sortBy
	return f
}

func (f *APIFeatures) LimitFields() *APIFeatures {
	raw := f.params.Get("fields")
	if raw == "" {
		f.projection = bson.D{{Key: "__v", Value: 0}}
		return f
	}

	projection := bson.D{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		include := 1
		if strings.HasPrefix(part, "-") {
			include = 0
			part = part[1:]
		}
		if part == "" || strings.Contains(part, "$") {
			continue
		}
		projection = append(projection, bson.E{Key: part, Value: include})
	}
	if len(projection) == 0 {
		projection = bson.D{{Key: "__v", Value: 0}}
	}
	f.projection = projection
	return f
}

func (f *APIFeatures) Paginate() *APIFeatures {
	page := positiveInt(f.params.Get("page"), DefaultPage)
	limit := positiveInt(f.params.Get("limit"), DefaultLimit)
	if f.maxLimit > 0 && limit > f.maxLimit {
		limit = f.maxLimit
	}

	// A page past the largest representable offset is simply empty.
	if int64(page-1) > math.MaxInt64/int64(limit) {
		f.skip = math.MaxInt64
	} else {
		f.skip = int64(page-1) * int64(limit)
	}
	f.limit = int64(limit)
	f.paginated = true
	return f
}

// Apply runs the four steps in their fixed order.
func (f *APIFeatures) Apply() *APIFeatures {
	return f.Filter().Sort().LimitFields().Paginate()
}

// Query returns the filter and options built so far. Steps that were not
// applied leave the corresponding option unset; without Filter the base
// filter alone is used.
func (f *APIFeatures) Query() (bson.M, *options.FindOptions) {
	filter := f.filter
	if filter == nil {
		filter = bson.M{}
		for k, v := range f.base {
			filter[k] = v
		}
	}

	opts := options.Find()
	if f.sort != nil {
		opts.SetSort(f.sort)
	}
	if f.projection != nil {
		opts.SetProjection(f.projection)
	}
	if f.paginated {
		opts.SetSkip(f.skip).SetLimit(f.limit)
	}
	return filter, opts
}

func (f *APIFeatures) fieldAllowed(field string) bool {
	return len(f.allowed) == 0 || slices.Contains(f.allowed, topLevel(field))
}

// splitKey parses "field[op]" into its parts.
func splitKey(key string) (field, op string, nested bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") || open == len(key)-2 {
		return key, "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

func topLevel(field string) string {
	if i := strings.IndexByte(field, '.'); i >= 0 {
		return field[:i]
	}
	return field
}

// addCondition merges cond into the conditions already collected for field.
// A lone equality is stored as the plain value.
func addCondition(filter bson.M, field string, cond bson.M) {
	switch existing := filter[field].(type) {
	case nil:
		if eq, ok := cond["$eq"]; ok && len(cond) == 1 {
			filter[field] = eq
			return
		}
		filter[field] = cond
	case bson.M:
		for k, v := range cond {
			existing[k] = v
		}
	default:
		merged := bson.M{"$eq": existing}
		for k, v := range cond {
			merged[k] = v
		}
		filter[field] = merged
	}
}

func (f *APIFeatures) coerce(field, raw string) interface{} {
	if slices.Contains(f.stringFields, field) {
		return raw
	}
	return coerce(raw)
}

// coerce converts a raw query value into the BSON type it most likely
// represents. Numbers are only converted when the text is their canonical
// form, so values such as phone numbers with a leading zero stay strings.
func coerce(raw string) interface{} {
	if len(raw) == 24 {
		if id, err := primitive.ObjectIDFromHex(raw); err == nil {
			return id
		}
	}
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil && strconv.FormatInt(n, 10) == raw {
		return n
	}
	if x, err := strconv.ParseFloat(raw, 64); err == nil && strconv.FormatFloat(x, 'f', -1, 64) == raw {
		return x
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t
	}
	return raw
}

func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
