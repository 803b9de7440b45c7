package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/models"
)

// MemoryStore keeps everything in process. Transactions run one at a time under a
// single mutex and roll back to a snapshot when the callback fails.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
	now   func() time.Time
}

type memoryState struct {
	nextID     uint
	hosts      map[uint]models.Host
	schedules  map[uint]models.AvailabilitySchedule
	eventTypes map[uint]models.EventType
	bookings   map[uint]models.Booking
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: newMemoryState(),
		now:   time.Now,
	}
}

func newMemoryState() *memoryState {
	return &memoryState{
		hosts:      map[uint]models.Host{},
		schedules:  map[uint]models.AvailabilitySchedule{},
		eventTypes: map[uint]models.EventType{},
		bookings:   map[uint]models.Booking{},
	}
}

func (s *MemoryStore) Repositories() Repositories {
	return memoryRepositories(&memoryTx{store: s})
}

func (s *MemoryStore) WithTx(ctx context.Context, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	if err := fn(ctx, memoryRepositories(&memoryTx{store: s, held: true})); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Reset drops all data.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = newMemoryState()
}

func memoryRepositories(tx *memoryTx) Repositories {
	return Repositories{
		Hosts:      memoryHosts{tx},
		Schedules:  memorySchedules{tx},
		EventTypes: memoryEventTypes{tx},
		Bookings:   memoryBookings{tx},
	}
}

// memoryTx runs each operation under the store mutex unless the caller already holds it.
type memoryTx struct {
	store *MemoryStore
	held  bool
}

func (t *memoryTx) run(ctx context.Context, fn func(state *memoryState) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !t.held {
		t.store.mu.Lock()
		defer t.store.mu.Unlock()
	}
	return fn(t.store.state)
}

func (t *memoryTx) stamp() time.Time {
	return t.store.now().UTC()
}

func (st *memoryState) id() uint {
	st.nextID++
	return st.nextID
}

func (st *memoryState) clone() *memoryState {
	c := newMemoryState()
	c.nextID = st.nextID
	for id, h := range st.hosts {
		c.hosts[id] = h
	}
	for id, s := range st.schedules {
		c.schedules[id] = copySchedule(s)
	}
	for id, e := range st.eventTypes {
		c.eventTypes[id] = copyEventType(e)
	}
	for id, b := range st.bookings {
		c.bookings[id] = copyBooking(b)
	}
	return c
}

func copySchedule(s models.AvailabilitySchedule) models.AvailabilitySchedule {
	s.Rules = append([]models.WeeklyRule(nil), s.Rules...)
	s.Overrides = append([]models.DateOverride(nil), s.Overrides...)
	return s
}

func copyEventType(e models.EventType) models.EventType {
	if e.ScheduleID != nil {
		id := *e.ScheduleID
		e.ScheduleID = &id
	}
	questions := make([]models.Question, len(e.Questions))
	for i, q := range e.Questions {
		q.Options = append([]string(nil), q.Options...)
		questions[i] = q
	}
	e.Questions = questions
	return e
}

func copyBooking(b models.Booking) models.Booking {
	b.Answers = append(b.Answers[:0:0], b.Answers...)
	return b
}

type memoryHosts struct {
	tx *memoryTx
}

func (r memoryHosts) Create(ctx context.Context, host *models.Host) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		for _, existing := range st.hosts {
			if existing.Username == host.Username || existing.Email == host.Email {
				return ErrDuplicate
			}
		}
		now := r.tx.stamp()
		host.ID = st.id()
		host.CreatedAt, host.UpdatedAt = now, now
		st.hosts[host.ID] = *host
		return nil
	})
}

func (r memoryHosts) GetByID(ctx context.Context, id uint) (models.Host, error) {
	var host models.Host
	err := r.tx.run(ctx, func(st *memoryState) error {
		h, ok := st.hosts[id]
		if !ok {
			return ErrNotFound
		}
		host = h
		return nil
	})
	return host, err
}

func (r memoryHosts) find(ctx context.Context, match func(models.Host) bool) (models.Host, error) {
	var host models.Host
	err := r.tx.run(ctx, func(st *memoryState) error {
		for _, h := range st.hosts {
			if match(h) {
				host = h
				return nil
			}
		}
		return ErrNotFound
	})
	return host, err
}

func (r memoryHosts) GetByUsername(ctx context.Context, username string) (models.Host, error) {
	return r.find(ctx, func(h models.Host) bool { return h.Username == username })
}

func (r memoryHosts) GetByEmail(ctx context.Context, email string) (models.Host, error) {
	return r.find(ctx, func(h models.Host) bool { return h.Email == email })
}

// Lock only checks existence; the transaction already holds the store mutex.
func (r memoryHosts) Lock(ctx context.Context, id uint) error {
	_, err := r.GetByID(ctx, id)
	return err
}

type memorySchedules struct {
	tx *memoryTx
}

func sortedSchedule(s models.AvailabilitySchedule) models.AvailabilitySchedule {
	s = copySchedule(s)
	sort.Slice(s.Rules, func(i, j int) bool { return s.Rules[i].DayOfWeek < s.Rules[j].DayOfWeek })
	sort.Slice(s.Overrides, func(i, j int) bool { return s.Overrides[i].Date < s.Overrides[j].Date })
	return s
}

func (r memorySchedules) ListByHost(ctx context.Context, hostID uint) ([]models.AvailabilitySchedule, error) {
	var schedules []models.AvailabilitySchedule
	err := r.tx.run(ctx, func(st *memoryState) error {
		for _, s := range st.schedules {
			if s.HostID == hostID {
				schedules = append(schedules, sortedSchedule(s))
			}
		}
		return nil
	})
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })
	return schedules, err
}

func (r memorySchedules) Get(ctx context.Context, hostID, id uint) (models.AvailabilitySchedule, error) {
	var schedule models.AvailabilitySchedule
	err := r.tx.run(ctx, func(st *memoryState) error {
		s, ok := st.schedules[id]
		if !ok || s.HostID != hostID {
			return ErrNotFound
		}
		schedule = sortedSchedule(s)
		return nil
	})
	return schedule, err
}

func (r memorySchedules) GetDefault(ctx context.Context, hostID uint) (models.AvailabilitySchedule, error) {
	var schedule models.AvailabilitySchedule
	err := r.tx.run(ctx, func(st *memoryState) error {
		for _, s := range st.schedules {
			if s.HostID == hostID && s.IsDefault {
				schedule = sortedSchedule(s)
				return nil
			}
		}
		return ErrNotFound
	})
	return schedule, err
}

func (r memorySchedules) Create(ctx context.Context, schedule *models.AvailabilitySchedule) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		if schedule.IsDefault {
			for _, s := range st.schedules {
				if s.HostID == schedule.HostID && s.IsDefault {
					return ErrDuplicate
				}
			}
		}
		now := r.tx.stamp()
		schedule.ID = st.id()
		schedule.CreatedAt, schedule.UpdatedAt = now, now
		for i := range schedule.Rules {
			schedule.Rules[i].ID = st.id()
			schedule.Rules[i].ScheduleID = schedule.ID
		}
		for i := range schedule.Overrides {
			schedule.Overrides[i].ID = st.id()
			schedule.Overrides[i].ScheduleID = schedule.ID
			schedule.Overrides[i].CreatedAt = now
		}
		st.schedules[schedule.ID] = copySchedule(*schedule)
		return nil
	})
}

func (r memorySchedules) Update(ctx context.Context, schedule *models.AvailabilitySchedule) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		stored, ok := st.schedules[schedule.ID]
		if !ok || stored.HostID != schedule.HostID {
			return ErrNotFound
		}
		if schedule.IsDefault {
			for id, s := range st.schedules {
				if id != schedule.ID && s.HostID == schedule.HostID && s.IsDefault {
					return ErrDuplicate
				}
			}
		}
		stored.Name = schedule.Name
		stored.TimeZone = schedule.TimeZone
		stored.IsDefault = schedule.IsDefault
		stored.UpdatedAt = r.tx.stamp()
		for i := range schedule.Rules {
			schedule.Rules[i].ID = st.id()
			schedule.Rules[i].ScheduleID = schedule.ID
		}
		stored.Rules = append([]models.WeeklyRule(nil), schedule.Rules...)
		st.schedules[schedule.ID] = stored
		return nil
	})
}

func (r memorySchedules) SetDefault(ctx context.Context, hostID, id uint) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		s, ok := st.schedules[id]
		if !ok || s.HostID != hostID {
			return ErrNotFound
		}
		for otherID, other := range st.schedules {
			if otherID != id && other.HostID == hostID && other.IsDefault {
				return ErrDuplicate
			}
		}
		s.IsDefault = true
		st.schedules[id] = s
		return nil
	})
}

func (r memorySchedules) ClearDefault(ctx context.Context, hostID, exceptID uint) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		for id, s := range st.schedules {
			if id != exceptID && s.HostID == hostID && s.IsDefault {
				s.IsDefault = false
				st.schedules[id] = s
			}
		}
		return nil
	})
}

func (r memorySchedules) Delete(ctx context.Context, hostID, id uint) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		s, ok := st.schedules[id]
		if !ok || s.HostID != hostID {
			return ErrNotFound
		}
		delete(st.schedules, id)
		return nil
	})
}

func (r memorySchedules) UpsertOverride(ctx context.Context, override *models.DateOverride) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		s, ok := st.schedules[override.ScheduleID]
		if !ok {
			return ErrNotFound
		}
		kept := s.Overrides[:0:0]
		for _, o := range s.Overrides {
			if o.Date != override.Date {
				kept = append(kept, o)
			}
		}
		override.ID = st.id()
		override.CreatedAt = r.tx.stamp()
		s.Overrides = append(kept, *override)
		st.schedules[s.ID] = s
		return nil
	})
}

func (r memorySchedules) DeleteOverride(ctx context.Context, scheduleID, overrideID uint) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		s, ok := st.schedules[scheduleID]
		if !ok {
			return ErrNotFound
		}
		kept := s.Overrides[:0:0]
		for _, o := range s.Overrides {
			if o.ID != overrideID {
				kept = append(kept, o)
			}
		}
		if len(kept) == len(s.Overrides) {
			return ErrNotFound
		}
		s.Overrides = kept
		st.schedules[scheduleID] = s
		return nil
	})
}

type memoryEventTypes struct {
	tx *memoryTx
}

func sortedEventType(e models.EventType) models.EventType {
	e = copyEventType(e)
	sort.SliceStable(e.Questions, func(i, j int) bool { return e.Questions[i].Position < e.Questions[j].Position })
	return e
}

func slugTaken(st *memoryState, hostID, selfID uint, slug string) bool {
	for id, e := range st.eventTypes {
		if id != selfID && e.HostID == hostID && e.Slug == slug {
			return true
		}
	}
	return false
}

func (r memoryEventTypes) ListByHost(ctx context.Context, hostID uint, activeOnly bool) ([]models.EventType, error) {
	var eventTypes []models.EventType
	err := r.tx.run(ctx, func(st *memoryState) error {
		for _, e := range st.eventTypes {
			if e.HostID != hostID || (activeOnly && !e.IsActive) {
				continue
			}
			eventTypes = append(eventTypes, sortedEventType(e))
		}
		return nil
	})
	sort.Slice(eventTypes, func(i, j int) bool { return eventTypes[i].ID < eventTypes[j].ID })
	return eventTypes, err
}

func (r memoryEventTypes) Get(ctx context.Context, hostID, id uint) (models.EventType, error) {
	e, err := r.GetByID(ctx, id)
	if err != nil {
		return models.EventType{}, err
	}
	if e.HostID != hostID {
		return models.EventType{}, ErrNotFound
	}
	return e, nil
}

func (r memoryEventTypes) GetByID(ctx context.Context, id uint) (models.EventType, error) {
	var eventType models.EventType
	err := r.tx.run(ctx, func(st *memoryState) error {
		e, ok := st.eventTypes[id]
		if !ok {
			return ErrNotFound
		}
		eventType = sortedEventType(e)
		return nil
	})
	return eventType, err
}

func (r memoryEventTypes) GetBySlug(ctx context.Context, hostID uint, slug string) (models.EventType, error) {
	var eventType models.EventType
	err := r.tx.run(ctx, func(st *memoryState) error {
		for _, e := range st.eventTypes {
			if e.HostID == hostID && e.Slug == slug {
				eventType = sortedEventType(e)
				return nil
			}
		}
		return ErrNotFound
	})
	return eventType, err
}

func (r memoryEventTypes) Create(ctx context.Context, eventType *models.EventType) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		if slugTaken(st, eventType.HostID, 0, eventType.Slug) {
			return ErrDuplicate
		}
		now := r.tx.stamp()
		eventType.ID = st.id()
		eventType.CreatedAt, eventType.UpdatedAt = now, now
		for i := range eventType.Questions {
			eventType.Questions[i].ID = st.id()
			eventType.Questions[i].EventTypeID = eventType.ID
		}
		st.eventTypes[eventType.ID] = copyEventType(*eventType)
		return nil
	})
}

func (r memoryEventTypes) Update(ctx context.Context, eventType *models.EventType) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		stored, ok := st.eventTypes[eventType.ID]
		if !ok || stored.HostID != eventType.HostID {
			return ErrNotFound
		}
		if slugTaken(st, eventType.HostID, eventType.ID, eventType.Slug) {
			return ErrDuplicate
		}
		eventType.CreatedAt = stored.CreatedAt
		eventType.UpdatedAt = r.tx.stamp()
		for i := range eventType.Questions {
			eventType.Questions[i].ID = st.id()
			eventType.Questions[i].EventTypeID = eventType.ID
		}
		st.eventTypes[eventType.ID] = copyEventType(*eventType)
		return nil
	})
}

func (r memoryEventTypes) Delete(ctx context.Context, hostID, id uint) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		e, ok := st.eventTypes[id]
		if !ok || e.HostID != hostID {
			return ErrNotFound
		}
		delete(st.eventTypes, id)
		return nil
	})
}

func (r memoryEventTypes) DetachSchedule(ctx context.Context, hostID, scheduleID uint) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		for id, e := range st.eventTypes {
			if e.HostID == hostID && e.ScheduleID != nil && *e.ScheduleID == scheduleID {
				e.ScheduleID = nil
				st.eventTypes[id] = e
			}
		}
		return nil
	})
}

type memoryBookings struct {
	tx *memoryTx
}

func (r memoryBookings) GetByUID(ctx context.Context, uid string) (models.Booking, error) {
	var booking models.Booking
	err := r.tx.run(ctx, func(st *memoryState) error {
		for _, b := range st.bookings {
			if b.UID == uid {
				booking = copyBooking(b)
				return nil
			}
		}
		return ErrNotFound
	})
	return booking, err
}

// GetByUIDForUpdate needs no row lock: transactions already hold the store mutex.
func (r memoryBookings) GetByUIDForUpdate(ctx context.Context, uid string) (models.Booking, error) {
	return r.GetByUID(ctx, uid)
}

func (r memoryBookings) List(ctx context.Context, query BookingQuery) ([]models.Booking, int64, error) {
	var matched []models.Booking
	err := r.tx.run(ctx, func(st *memoryState) error {
		for _, b := range st.bookings {
			if b.HostID != query.HostID {
				continue
			}
			if query.Status != "" && b.Status != query.Status {
				continue
			}
			if !query.EndAtOrAfter.IsZero() && b.EndTime.Before(query.EndAtOrAfter) {
				continue
			}
			if !query.EndBefore.IsZero() && !b.EndTime.Before(query.EndBefore) {
				continue
			}
			matched = append(matched, copyBooking(b))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.StartTime.Equal(b.StartTime) {
			if query.Descending {
				return a.StartTime.After(b.StartTime)
			}
			return a.StartTime.Before(b.StartTime)
		}
		if query.Descending {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})

	total := int64(len(matched))
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []models.Booking{}, total, nil
	}
	matched = matched[offset:]
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return matched, total, nil
}

func (r memoryBookings) Overlapping(ctx context.Context, hostID uint, from, to time.Time, excludeID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.tx.run(ctx, func(st *memoryState) error {
		for id, b := range st.bookings {
			if id == excludeID || b.HostID != hostID || b.Status != models.BookingConfirmed {
				continue
			}
			if b.StartTime.Before(to) && b.EndTime.After(from) {
				bookings = append(bookings, copyBooking(b))
			}
		}
		return nil
	})
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].StartTime.Before(bookings[j].StartTime) })
	return bookings, err
}

func (r memoryBookings) Create(ctx context.Context, booking *models.Booking) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		for _, b := range st.bookings {
			if b.UID == booking.UID {
				return ErrDuplicate
			}
		}
		now := r.tx.stamp()
		booking.ID = st.id()
		booking.CreatedAt, booking.UpdatedAt = now, now
		st.bookings[booking.ID] = copyBooking(*booking)
		return nil
	})
}

func (r memoryBookings) Update(ctx context.Context, booking *models.Booking) error {
	return r.tx.run(ctx, func(st *memoryState) error {
		stored, ok := st.bookings[booking.ID]
		if !ok {
			return ErrNotFound
		}
		stored.Status = booking.Status
		stored.CancellationReason = booking.CancellationReason
		stored.StartTime = booking.StartTime
		stored.EndTime = booking.EndTime
		stored.UpdatedAt = r.tx.stamp()
		booking.UpdatedAt = stored.UpdatedAt
		st.bookings[booking.ID] = stored
		return nil
	})
}
