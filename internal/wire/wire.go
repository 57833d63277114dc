// Package wire holds the JSON shapes exchanged with the service and converts them to
// and from domain values. Sentinel encodings and discriminant codes stop here.
package wire

import (
	"errors"
	"fmt"
	"strings"

	"github.com/model-health/modelhealth-go/pkg/domain"
)

// ErrMissingField marks a required field the service left out or sent as null.
var ErrMissingField = errors.New("missing required field")

// ErrUnknownValue marks a closed-set field holding a value outside its set.
var ErrUnknownValue = errors.New("unknown value")

func missing(entity, field string) error {
	return fmt.Errorf("%s: %w %q", entity, ErrMissingField, field)
}

// Session is the service representation of a session.
type Session struct {
	ID          *string `json:"id"`
	User        int     `json:"user"`
	Public      bool    `json:"public"`
	Name        string  `json:"name"`
	SessionName string  `json:"session_name"`
	QRCode      *string `json:"qrcode"`
	Subject     *int    `json:"subject"`
	TrialsCount int     `json:"trials_count"`
}

// ToDomain converts s, failing when the id is absent.
func (s Session) ToDomain() (domain.Session, error) {
	if s.ID == nil || *s.ID == "" {
		return domain.Session{}, missing("session", "id")
	}
	return domain.Session{
		ID:            *s.ID,
		UserID:        s.User,
		Public:        s.Public,
		Name:          s.Name,
		SessionName:   s.SessionName,
		QRCode:        nonEmpty(s.QRCode),
		SubjectID:     s.Subject,
		ActivityCount: s.TrialsCount,
	}, nil
}

// Sessions converts a list; any invalid element fails the whole list.
func Sessions(items []Session) ([]domain.Session, error) {
	out := make([]domain.Session, 0, len(items))
	for i, item := range items {
		session, err := item.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("sessions[%d]: %w", i, err)
		}
		out = append(out, session)
	}
	return out, nil
}

// Sentinel values the service uses for missing subject measurements.
const (
	MissingWeight    = 0.0
	MissingHeight    = 0.0
	MissingAge       = -1
	MissingBirthYear = 0
)

// DecodeMeasure maps the 0.0 weight/height sentinel to nil.
func DecodeMeasure(v *float64) *float64 {
	if v == nil || *v == MissingWeight {
		return nil
	}
	out := *v
	return &out
}

// EncodeMeasure maps nil to the 0.0 sentinel.
func EncodeMeasure(v *float64) float64 {
	if v == nil {
		return MissingWeight
	}
	return *v
}

// DecodeAge maps the -1 sentinel to nil.
func DecodeAge(v *int) *int {
	if v == nil || *v == MissingAge {
		return nil
	}
	out := *v
	return &out
}

// EncodeAge maps nil to the -1 sentinel.
func EncodeAge(v *int) int {
	if v == nil {
		return MissingAge
	}
	return *v
}

// DecodeBirthYear maps the 0 sentinel to nil.
func DecodeBirthYear(v *int) *int {
	if v == nil || *v == MissingBirthYear {
		return nil
	}
	out := *v
	return &out
}

// EncodeBirthYear maps nil to the 0 sentinel.
func EncodeBirthYear(v *int) int {
	if v == nil {
		return MissingBirthYear
	}
	return *v
}

// Subject is the service representation of a subject.
type Subject struct {
	ID              *int     `json:"id"`
	Name            *string  `json:"name"`
	Weight          *float64 `json:"weight"`
	Height          *float64 `json:"height"`
	Age             *int     `json:"age"`
	BirthYear       *int     `json:"birth_year"`
	Gender          string   `json:"gender"`
	SexAtBirth      string   `json:"sex_at_birth"`
	Characteristics string   `json:"characteristics"`
	Tags            []string `json:"subject_tags"`
}

// ToDomain converts s, failing when id or name is absent or when gender or sex at
// birth is outside its closed set. Empty values default to no-response.
func (s Subject) ToDomain() (domain.Subject, error) {
	if s.ID == nil {
		return domain.Subject{}, missing("subject", "id")
	}
	if s.Name == nil {
		return domain.Subject{}, missing("subject", "name")
	}
	gender := domain.Gender(s.Gender)
	if gender == "" {
		gender = domain.GenderNoResponse
	}
	if !gender.Valid() {
		return domain.Subject{}, fmt.Errorf("subject: %w %q for gender", ErrUnknownValue, s.Gender)
	}
	sex := domain.SexAtBirth(s.SexAtBirth)
	if sex == "" {
		sex = domain.SexNoResponse
	}
	if !sex.Valid() {
		return domain.Subject{}, fmt.Errorf("subject: %w %q for sex_at_birth", ErrUnknownValue, s.SexAtBirth)
	}
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Subject{
		ID:              *s.ID,
		Name:            *s.Name,
		Weight:          DecodeMeasure(s.Weight),
		Height:          DecodeMeasure(s.Height),
		Age:             DecodeAge(s.Age),
		BirthYear:       DecodeBirthYear(s.BirthYear),
		Gender:          gender,
		SexAtBirth:      sex,
		Characteristics: s.Characteristics,
		Tags:            tags,
	}, nil
}

// Subjects converts a list; any invalid element fails the whole list.
func Subjects(items []Subject) ([]domain.Subject, error) {
	out := make([]domain.Subject, 0, len(items))
	for i, item := range items {
		subject, err := item.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("subjects[%d]: %w", i, err)
		}
		out = append(out, subject)
	}
	return out, nil
}

// CreateSubject is the request body for subject creation.
type CreateSubject struct {
	Name            string   `json:"name"`
	Weight          float64  `json:"weight"`
	Height          float64  `json:"height"`
	BirthYear       int      `json:"birth_year"`
	Gender          string   `json:"gender"`
	SexAtBirth      string   `json:"sex_at_birth"`
	Characteristics string   `json:"characteristics"`
	Tags            []string `json:"subject_tags"`
	Consent         bool     `json:"terms"`
}

// NewCreateSubject builds the request body from validated params.
func NewCreateSubject(p domain.SubjectParams) CreateSubject {
	p = p.WithDefaults()
	return CreateSubject{
		Name:            strings.TrimSpace(p.Name),
		Weight:          p.Weight,
		Height:          p.Height,
		BirthYear:       p.BirthYear,
		Gender:          string(p.Gender),
		SexAtBirth:      string(p.SexAtBirth),
		Characteristics: p.Characteristics,
		Tags:            p.Tags,
		Consent:         p.Consent,
	}
}

// Video is the service representation of one camera recording.
type Video struct {
	ID         *string `json:"id"`
	Trial      string  `json:"trial"`
	Video      *string `json:"video"`
	VideoThumb *string `json:"video_thumb"`
}

// Result is the service representation of a generated file reference.
type Result struct {
	ID    *int    `json:"id"`
	Trial string  `json:"trial"`
	Tag   *string `json:"tag"`
	Media *string `json:"media"`
}

// Trial is the service representation of an activity.
type Trial struct {
	ID      *string  `json:"id"`
	Session string   `json:"session"`
	Name    *string  `json:"name"`
	Status  string   `json:"status"`
	Videos  []Video  `json:"videos"`
	Results []Result `json:"results"`
}

// ToDomain converts t. Videos and results without ids fail the whole activity.
func (t Trial) ToDomain() (domain.Activity, error) {
	if t.ID == nil || *t.ID == "" {
		return domain.Activity{}, missing("trial", "id")
	}
	activity := domain.Activity{
		ID:        *t.ID,
		SessionID: t.Session,
		Name:      nonEmpty(t.Name),
		Status:    domain.ParseActivityStatus(t.Status),
		RawStatus: t.Status,
		Videos:    make([]domain.Video, 0, len(t.Videos)),
		Results:   make([]domain.Result, 0, len(t.Results)),
	}
	for i, v := range t.Videos {
		if v.ID == nil || *v.ID == "" {
			return domain.Activity{}, fmt.Errorf("trial %s videos[%d]: %w", activity.ID, i, missing("video", "id"))
		}
		activityID := v.Trial
		if activityID == "" {
			activityID = activity.ID
		}
		activity.Videos = append(activity.Videos, domain.Video{
			ID:           *v.ID,
			ActivityID:   activityID,
			VideoURL:     nonEmpty(v.Video),
			ThumbnailURL: nonEmpty(v.VideoThumb),
		})
	}
	for i, r := range t.Results {
		if r.ID == nil {
			return domain.Activity{}, fmt.Errorf("trial %s results[%d]: %w", activity.ID, i, missing("result", "id"))
		}
		activityID := r.Trial
		if activityID == "" {
			activityID = activity.ID
		}
		activity.Results = append(activity.Results, domain.Result{
			ID:         *r.ID,
			ActivityID: activityID,
			Tag:        nonEmpty(r.Tag),
			MediaURL:   nonEmpty(r.Media),
		})
	}
	return activity, nil
}

// Trials converts a list; any invalid element fails the whole list.
func Trials(items []Trial) ([]domain.Activity, error) {
	out := make([]domain.Activity, 0, len(items))
	for i, item := range items {
		activity, err := item.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("trials[%d]: %w", i, err)
		}
		out = append(out, activity)
	}
	return out, nil
}

// UpdateTrial carries the only client-mutable activity field.
type UpdateTrial struct {
	Name *string `json:"name"`
}

// Tag is the service representation of an activity tag.
type Tag struct {
	Value *string `json:"value"`
	Label string  `json:"label"`
}

// Tags converts a list; a tag without value fails the whole list.
func Tags(items []Tag) ([]domain.ActivityTag, error) {
	out := make([]domain.ActivityTag, 0, len(items))
	for i, item := range items {
		if item.Value == nil || *item.Value == "" {
			return nil, fmt.Errorf("tags[%d]: %w", i, missing("tag", "value"))
		}
		label := item.Label
		if label == "" {
			label = *item.Value
		}
		out = append(out, domain.ActivityTag{Value: *item.Value, Label: label})
	}
	return out, nil
}

// SortKey maps a sort order to its query value.
func SortKey(sort domain.ActivitySort) (string, error) {
	switch sort {
	case domain.SortByLastUpdate:
		return "updated_at", nil
	}
	return "", fmt.Errorf("unknown activity sort %d", int(sort))
}

func nonEmpty(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	out := *v
	return &out
}
