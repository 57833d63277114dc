package modelhealth

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/model-health/modelhealth-go/internal/wire"
	"github.com/model-health/modelhealth-go/pkg/domain"
)

// ListSessions returns every session visible to the account.
func (c *Client) ListSessions(ctx context.Context) ([]domain.Session, error) {
	var items []wire.Session
	if err := c.get(ctx, "list_sessions", "sessions/", nil, &items); err != nil {
		return nil, err
	}
	sessions, err := wire.Sessions(items)
	if err != nil {
		return nil, decodeErr("list_sessions", err)
	}
	return sessions, nil
}

// CreateSession opens a new capture session.
func (c *Client) CreateSession(ctx context.Context) (domain.Session, error) {
	var item wire.Session
	if err := c.transport.Do(ctx, "create_session", http.MethodPost, "sessions/", nil, struct{}{}, &item); err != nil {
		return domain.Session{}, err
	}
	session, err := item.ToDomain()
	if err != nil {
		return domain.Session{}, decodeErr("create_session", err)
	}
	return session, nil
}

// GetSession fetches one session.
func (c *Client) GetSession(ctx context.Context, id string) (domain.Session, error) {
	if id == "" {
		return domain.Session{}, &domain.ValidationError{Field: "session id", Reason: "is required"}
	}
	var item wire.Session
	if err := c.get(ctx, "get_session", "sessions/"+escape(id)+"/", nil, &item); err != nil {
		return domain.Session{}, err
	}
	session, err := item.ToDomain()
	if err != nil {
		return domain.Session{}, decodeErr("get_session", err)
	}
	return session, nil
}

// ListSubjects returns every subject of the account.
func (c *Client) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	var items []wire.Subject
	if err := c.get(ctx, "list_subjects", "subjects/", nil, &items); err != nil {
		return nil, err
	}
	subjects, err := wire.Subjects(items)
	if err != nil {
		return nil, decodeErr("list_subjects", err)
	}
	return subjects, nil
}

// CreateSubject registers a subject. Params are validated before any request is made.
func (c *Client) CreateSubject(ctx context.Context, params domain.SubjectParams) (domain.Subject, error) {
	if err := params.Validate(); err != nil {
		return domain.Subject{}, err
	}
	var item wire.Subject
	if err := c.transport.Do(ctx, "create_subject", http.MethodPost, "subjects/", nil, wire.NewCreateSubject(params), &item); err != nil {
		return domain.Subject{}, err
	}
	subject, err := item.ToDomain()
	if err != nil {
		return domain.Subject{}, decodeErr("create_subject", err)
	}
	return subject, nil
}

// ListActivities returns the activities recorded in a session.
func (c *Client) ListActivities(ctx context.Context, sessionID string) ([]domain.Activity, error) {
	if sessionID == "" {
		return nil, &domain.ValidationError{Field: "session id", Reason: "is required"}
	}
	return c.listTrials(ctx, "list_activities", "sessions/"+escape(sessionID)+"/trials/", nil)
}

// ListSubjectActivities pages through a subject's activities. startIndex is an
// absolute offset.
func (c *Client) ListSubjectActivities(ctx context.Context, subjectID, startIndex, count int, sort domain.ActivitySort) ([]domain.Activity, error) {
	if startIndex < 0 {
		return nil, &domain.ValidationError{Field: "start index", Reason: "must be >= 0"}
	}
	if count <= 0 {
		return nil, &domain.ValidationError{Field: "count", Reason: "must be > 0"}
	}
	key, err := wire.SortKey(sort)
	if err != nil {
		return nil, &domain.ValidationError{Field: "sort", Reason: err.Error()}
	}
	query := url.Values{
		"start": {strconv.Itoa(startIndex)},
		"count": {strconv.Itoa(count)},
		"sort":  {key},
	}
	return c.listTrials(ctx, "list_subject_activities", "subjects/"+strconv.Itoa(subjectID)+"/trials/", query)
}

func (c *Client) listTrials(ctx context.Context, op, path string, query url.Values) ([]domain.Activity, error) {
	var items []wire.Trial
	if err := c.get(ctx, op, path, query, &items); err != nil {
		return nil, err
	}
	activities, err := wire.Trials(items)
	if err != nil {
		return nil, decodeErr(op, err)
	}
	return activities, nil
}

// GetActivity fetches one activity with its videos and results.
func (c *Client) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	if id == "" {
		return domain.Activity{}, &domain.ValidationError{Field: "activity id", Reason: "is required"}
	}
	var item wire.Trial
	if err := c.get(ctx, "get_activity", "trials/"+escape(id)+"/", nil, &item); err != nil {
		return domain.Activity{}, err
	}
	return trialToDomain("get_activity", item)
}

// UpdateActivity sends the mutable fields of activity and returns the object the
// service echoes back. Only the name is mutable.
func (c *Client) UpdateActivity(ctx context.Context, activity domain.Activity) (domain.Activity, error) {
	if activity.ID == "" {
		return domain.Activity{}, &domain.ValidationError{Field: "activity id", Reason: "is required"}
	}
	var item wire.Trial
	body := wire.UpdateTrial{Name: activity.Name}
	if err := c.transport.Do(ctx, "update_activity", http.MethodPatch, "trials/"+escape(activity.ID)+"/", nil, body, &item); err != nil {
		return domain.Activity{}, err
	}
	return trialToDomain("update_activity", item)
}

// DeleteActivity removes an activity. Deleting twice surfaces the service's 404; use
// domain.IsNotFound to treat that as done.
func (c *Client) DeleteActivity(ctx context.Context, id string) error {
	if id == "" {
		return &domain.ValidationError{Field: "activity id", Reason: "is required"}
	}
	return c.transport.Do(ctx, "delete_activity", http.MethodDelete, "trials/"+escape(id)+"/", nil, nil, nil)
}

// RegenerateResults asks the service to reprocess an activity's results.
func (c *Client) RegenerateResults(ctx context.Context, id string) error {
	if id == "" {
		return &domain.ValidationError{Field: "activity id", Reason: "is required"}
	}
	return c.transport.Do(ctx, "regenerate_results", http.MethodPost, "trials/"+escape(id)+"/rerun/", nil, struct{}{}, nil)
}

// ListActivityTags returns the tags activities may carry.
func (c *Client) ListActivityTags(ctx context.Context) ([]domain.ActivityTag, error) {
	var items []wire.Tag
	if err := c.get(ctx, "list_activity_tags", "trial-tags/", nil, &items); err != nil {
		return nil, err
	}
	tags, err := wire.Tags(items)
	if err != nil {
		return nil, decodeErr("list_activity_tags", err)
	}
	return tags, nil
}

func trialToDomain(op string, item wire.Trial) (domain.Activity, error) {
	activity, err := item.ToDomain()
	if err != nil {
		return domain.Activity{}, decodeErr(op, err)
	}
	return activity, nil
}
