package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KAsare1/slotbook-server/cmd/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolation = "23505"

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Repositories() Repositories {
	return gormRepositories(s.db)
}

func (s *GormStore) WithTx(ctx context.Context, fn TxFunc) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, gormRepositories(tx))
	})
}

func gormRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Hosts:      gormHosts{db: db},
		Schedules:  gormSchedules{db: db},
		EventTypes: gormEventTypes{db: db},
		Bookings:   gormBookings{db: db},
	}
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

type gormHosts struct {
	db *gorm.DB
}

func (r gormHosts) Create(ctx context.Context, host *models.Host) error {
	return translate(r.db.WithContext(ctx).Create(host).Error)
}

func (r gormHosts) GetByID(ctx context.Context, id uint) (models.Host, error) {
	var host models.Host
	err := r.db.WithContext(ctx).First(&host, id).Error
	return host, translate(err)
}

func (r gormHosts) GetByUsername(ctx context.Context, username string) (models.Host, error) {
	var host models.Host
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&host).Error
	return host, translate(err)
}

func (r gormHosts) GetByEmail(ctx context.Context, email string) (models.Host, error) {
	var host models.Host
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&host).Error
	return host, translate(err)
}

func (r gormHosts) Lock(ctx context.Context, id uint) error {
	var host models.Host
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&host, id).Error
	return translate(err)
}

type gormSchedules struct {
	db *gorm.DB
}

func (r gormSchedules) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Rules", func(db *gorm.DB) *gorm.DB { return db.Order("day_of_week") }).
		Preload("Overrides", func(db *gorm.DB) *gorm.DB { return db.Order("date") })
}

func (r gormSchedules) ListByHost(ctx context.Context, hostID uint) ([]models.AvailabilitySchedule, error) {
	var schedules []models.AvailabilitySchedule
	err := r.withChildren(ctx).Where("host_id = ?", hostID).Order("id").Find(&schedules).Error
	return schedules, translate(err)
}

func (r gormSchedules) Get(ctx context.Context, hostID, id uint) (models.AvailabilitySchedule, error) {
	var schedule models.AvailabilitySchedule
	err := r.withChildren(ctx).Where("host_id = ? AND id = ?", hostID, id).First(&schedule).Error
	return schedule, translate(err)
}

func (r gormSchedules) GetDefault(ctx context.Context, hostID uint) (models.AvailabilitySchedule, error) {
	var schedule models.AvailabilitySchedule
	err := r.withChildren(ctx).Where("host_id = ? AND is_default = ?", hostID, true).First(&schedule).Error
	return schedule, translate(err)
}

func (r gormSchedules) Create(ctx context.Context, schedule *models.AvailabilitySchedule) error {
	return translate(r.db.WithContext(ctx).Create(schedule).Error)
}

func (r gormSchedules) Update(ctx context.Context, schedule *models.AvailabilitySchedule) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.AvailabilitySchedule{}).
		Where("id = ? AND host_id = ?", schedule.ID, schedule.HostID).
		Updates(map[string]interface{}{
			"name":       schedule.Name,
			"timezone":   schedule.TimeZone,
			"is_default": schedule.IsDefault,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	if err := db.Where("schedule_id = ?", schedule.ID).Delete(&models.WeeklyRule{}).Error; err != nil {
		return translate(err)
	}
	if len(schedule.Rules) == 0 {
		return nil
	}
	for i := range schedule.Rules {
		schedule.Rules[i].ID = 0
		schedule.Rules[i].ScheduleID = schedule.ID
	}
	return translate(db.Create(&schedule.Rules).Error)
}

func (r gormSchedules) SetDefault(ctx context.Context, hostID, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.AvailabilitySchedule{}).
		Where("id = ? AND host_id = ?", id, hostID).
		Update("is_default", true)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormSchedules) ClearDefault(ctx context.Context, hostID, exceptID uint) error {
	err := r.db.WithContext(ctx).Model(&models.AvailabilitySchedule{}).
		Where("host_id = ? AND id <> ? AND is_default = ?", hostID, exceptID, true).
		Update("is_default", false).Error
	return translate(err)
}

func (r gormSchedules) Delete(ctx context.Context, hostID, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("schedule_id = ?", id).Delete(&models.WeeklyRule{}).Error; err != nil {
		return translate(err)
	}
	if err := db.Where("schedule_id = ?", id).Delete(&models.DateOverride{}).Error; err != nil {
		return translate(err)
	}
	result := db.Where("host_id = ?", hostID).Delete(&models.AvailabilitySchedule{}, id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r gormSchedules) UpsertOverride(ctx context.Context, override *models.DateOverride) error {
	db := r.db.WithContext(ctx)
	err := db.Where("schedule_id = ? AND date = ?", override.ScheduleID, override.Date).
		Delete(&models.DateOverride{}).Error
	if err != nil {
		return translate(err)
	}
	override.ID = 0
	return translate(db.Create(override).Error)
}

func (r gormSchedules) DeleteOverride(ctx context.Context, scheduleID, overrideID uint) error {
	result := r.db.WithContext(ctx).
		Where("schedule_id = ?", scheduleID).
		Delete(&models.DateOverride{}, overrideID)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type gormEventTypes struct {
	db *gorm.DB
}

func (r gormEventTypes) withQuestions(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") })
}

func (r gormEventTypes) ListByHost(ctx context.Context, hostID uint, activeOnly bool) ([]models.EventType, error) {
	query := r.withQuestions(ctx).Where("host_id = ?", hostID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var eventTypes []models.EventType
	err := query.Order("id").Find(&eventTypes).Error
	return eventTypes, translate(err)
}

func (r gormEventTypes) Get(ctx context.Context, hostID, id uint) (models.EventType, error) {
	var eventType models.EventType
	err := r.withQuestions(ctx).Where("host_id = ? AND id = ?", hostID, id).First(&eventType).Error
	return eventType, translate(err)
}

func (r gormEventTypes) GetByID(ctx context.Context, id uint) (models.EventType, error) {
	var eventType models.EventType
	err := r.withQuestions(ctx).First(&eventType, id).Error
	return eventType, translate(err)
}

func (r gormEventTypes) GetBySlug(ctx context.Context, hostID uint, slug string) (models.EventType, error) {
	var eventType models.EventType
	err := r.withQuestions(ctx).Where("host_id = ? AND slug = ?", hostID, slug).First(&eventType).Error
	return eventType, translate(err)
}

func (r gormEventTypes) Create(ctx context.Context, eventType *models.EventType) error {
	return translate(r.db.WithContext(ctx).Create(eventType).Error)
}

func (r gormEventTypes) Update(ctx context.Context, eventType *models.EventType) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.EventType{}).
		Where("id = ? AND host_id = ?", eventType.ID, eventType.HostID).
		Updates(map[string]interface{}{
			"title":         eventType.Title,
			"slug":          eventType.Slug,
			"description":   eventType.Description,
			"color":         eventType.Color,
			"duration":      eventType.Duration,
			"buffer_before": eventType.BufferBefore,
			"buffer_after":  eventType.BufferAfter,
			"is_active":     eventType.IsActive,
			"schedule_id":   eventType.ScheduleID,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	if err := db.Where("event_type_id = ?", eventType.ID).Delete(&models.Question{}).Error; err != nil {
		return translate(err)
	}
	if len(eventType.Questions) == 0 {
		return nil
	}
	for i := range eventType.Questions {
		eventType.Questions[i].ID = 0
		eventType.Questions[i].EventTypeID = eventType.ID
	}
	return translate(db.Create(&eventType.Questions).Error)
}

func (r gormEventTypes) Delete(ctx context.Context, hostID, id uint) error {
	db := r.db.WithContext(ctx)
	result := db.Where("host_id = ?", hostID).Delete(&models.EventType{}, id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return translate(db.Where("event_type_id = ?", id).Delete(&models.Question{}).Error)
}

func (r gormEventTypes) DetachSchedule(ctx context.Context, hostID, scheduleID uint) error {
	err := r.db.WithContext(ctx).Model(&models.EventType{}).
		Where("host_id = ? AND schedule_id = ?", hostID, scheduleID).
		Update("schedule_id", nil).Error
	return translate(err)
}

type gormBookings struct {
	db *gorm.DB
}

func (r gormBookings) GetByUID(ctx context.Context, uid string) (models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&booking).Error
	return booking, translate(err)
}

func (r gormBookings) GetByUIDForUpdate(ctx context.Context, uid string) (models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uid = ?", uid).
		First(&booking).Error
	return booking, translate(err)
}

func (r gormBookings) List(ctx context.Context, query BookingQuery) ([]models.Booking, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Booking{}).Where("host_id = ?", query.HostID)
	if query.Status != "" {
		db = db.Where("status = ?", query.Status)
	}
	if !query.EndAtOrAfter.IsZero() {
		db = db.Where("end_time >= ?", query.EndAtOrAfter)
	}
	if !query.EndBefore.IsZero() {
		db = db.Where("end_time < ?", query.EndBefore)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	order := "start_time ASC, id ASC"
	if query.Descending {
		order = "start_time DESC, id DESC"
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	db = db.Order(order).Offset(offset)
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	var bookings []models.Booking
	if err := db.Find(&bookings).Error; err != nil {
		return nil, 0, translate(err)
	}
	return bookings, total, nil
}

func (r gormBookings) Overlapping(ctx context.Context, hostID uint, from, to time.Time, excludeID uint) ([]models.Booking, error) {
	db := r.db.WithContext(ctx).
		Where("host_id = ? AND status = ?", hostID, models.BookingConfirmed).
		Where("start_time < ? AND end_time > ?", to, from)
	if excludeID != 0 {
		db = db.Where("id <> ?", excludeID)
	}
	var bookings []models.Booking
	err := db.Order("start_time").Find(&bookings).Error
	return bookings, translate(err)
}

func (r gormBookings) Create(ctx context.Context, booking *models.Booking) error {
	return translate(r.db.WithContext(ctx).Create(booking).Error)
}

func (r gormBookings) Update(ctx context.Context, booking *models.Booking) error {
	booking.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", booking.ID).
		Updates(map[string]interface{}{
			"status":              booking.Status,
			"cancellation_reason": booking.CancellationReason,
			"start_time":          booking.StartTime,
			"end_time":            booking.EndTime,
			"updated_at":          booking.UpdatedAt,
		})
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
