package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	QuestionText     = "text"
	QuestionTextarea = "textarea"
	QuestionSelect   = "select"
)

type EventType struct {
	gorm.Model
	HostID       uint       `gorm:"column:host_id;not null;index" json:"host_id"`
	ScheduleID   *uint      `gorm:"column:schedule_id" json:"schedule_id,omitempty"`
	Title        string     `gorm:"column:title;size:255;not null" json:"title"`
	Slug         string     `gorm:"column:slug;size:128;not null" json:"slug"`
	Description  string     `gorm:"column:description;type:text" json:"description"`
	Color        string     `gorm:"column:color;size:16" json:"color"`
	Duration     int        `gorm:"column:duration;not null" json:"duration"`
	BufferBefore int        `gorm:"column:buffer_before;not null;default:0" json:"buffer_before"`
	BufferAfter  int        `gorm:"column:buffer_after;not null;default:0" json:"buffer_after"`
	IsActive     bool       `gorm:"column:is_active;not null" json:"is_active"`
	Questions    []Question `gorm:"foreignKey:EventTypeID;constraint:OnDelete:CASCADE" json:"questions"`
}

func (EventType) TableName() string {
	return "event_types"
}

// RequiredQuestions returns the questions a booker must answer.
func (e EventType) RequiredQuestions() []Question {
	var required []Question
	for _, q := range e.Questions {
		if q.Required {
			required = append(required, q)
		}
	}
	return required
}

type Question struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	EventTypeID uint           `gorm:"column:event_type_id;not null;index" json:"-"`
	Position    int            `gorm:"column:position;not null;default:0" json:"position"`
	Text        string         `gorm:"column:question;type:text;not null" json:"question"`
	Type        string         `gorm:"column:question_type;size:16;not null;default:text" json:"question_type"`
	Required    bool           `gorm:"column:required;not null;default:false" json:"required"`
	Options     pq.StringArray `gorm:"column:options;type:text[]" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "event_type_questions"
}
