package modelhealth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/model-health/modelhealth-go/pkg/domain"
)

func TestListsReturnEmptyForEmptyAccount(t *testing.T) {
	for _, body := range []string{`[]`, `null`, ``} {
		t.Run("body="+body, func(t *testing.T) {
			svc := newFakeService(t)
			svc.respond("GET /sessions/", http.StatusOK, body)
			svc.respond("GET /subjects/", http.StatusOK, body)
			svc.respond("GET /trial-tags/", http.StatusOK, body)
			svc.respond("GET /sessions/s-1/trials/", http.StatusOK, body)
			c := svc.client(t)
			ctx := context.Background()

			sessions, err := c.ListSessions(ctx)
			require.NoError(t, err)
			require.NotNil(t, sessions)
			require.Empty(t, sessions)

			subjects, err := c.ListSubjects(ctx)
			require.NoError(t, err)
			require.NotNil(t, subjects)
			require.Empty(t, subjects)

			tags, err := c.ListActivityTags(ctx)
			require.NoError(t, err)
			require.NotNil(t, tags)
			require.Empty(t, tags)

			activities, err := c.ListActivities(ctx, "s-1")
			require.NoError(t, err)
			require.NotNil(t, activities)
			require.Empty(t, activities)
		})
	}
}

func TestListSessionsDecodes(t *testing.T) {
	svc := newFakeService(t)
	svc.respond("GET /sessions/", http.StatusOK, `[
		{"id":"s-1","user":3,"public":false,"name":"","session_name":"Monday","qrcode":"https://cdn/qr.png","subject":12,"trials_count":4},
		{"id":"s-2","user":3,"qrcode":null,"subject":null}
	]`)

	sessions, err := svc.client(t).ListSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.Equal(t, "Monday", sessions[0].SessionName)
	require.Equal(t, 12, *sessions[0].SubjectID)
	require.Equal(t, 4, sessions[0].ActivityCount)
	require.Nil(t, sessions[1].QRCode)
	require.Nil(t, sessions[1].SubjectID)
	require.True(t, sessions[0].Equal(domain.Session{ID: "s-1"}))
}

func TestMissingRequiredFieldIsInternalError(t *testing.T) {
	svc := newFakeService(t)
	svc.respond("GET /sessions/", http.StatusOK, `[{"id":"s-1"},{"user":3}]`)

	_, err := svc.client(t).ListSessions(context.Background())
	require.ErrorIs(t, err, domain.ErrInternal)
}

func validSubjectParams() domain.SubjectParams {
	return domain.SubjectParams{
		Name:      "Ada",
		Weight:    61.5,
		Height:    168,
		BirthYear: 1991,
		Tags:      []string{"athlete"},
		Consent:   true,
	}
}

func TestCreateSubjectValidatesBeforeNetwork(t *testing.T) {
	svc := newFakeService(t)
	c := svc.client(t)

	noConsent := validSubjectParams()
	noConsent.Consent = false
	noTags := validSubjectParams()
	noTags.Tags = nil
	noName := validSubjectParams()
	noName.Name = "  "

	for _, params := range []domain.SubjectParams{noConsent, noTags, noName} {
		_, err := c.CreateSubject(context.Background(), params)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
	require.Zero(t, svc.calls.Load())
}

func TestCreateSubjectSendsDefaults(t *testing.T) {
	svc := newFakeService(t)
	var sent map[string]any
	svc.handle("POST /subjects/", func(w http.ResponseWriter, r *http.Request) {
		sent = decodeBody(t, r)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":9,"name":"Ada","weight":61.5,"height":168,"age":-1,"birth_year":1991,
			"gender":"no-response","sex_at_birth":"no-response","characteristics":"","subject_tags":["athlete"]}`)
	})

	subject, err := svc.client(t).CreateSubject(context.Background(), validSubjectParams())
	require.NoError(t, err)

	require.Equal(t, "no-response", sent["gender"])
	require.Equal(t, "no-response", sent["sex_at_birth"])
	require.Equal(t, "", sent["characteristics"])
	require.Equal(t, true, sent["terms"])
	require.Equal(t, []any{"athlete"}, sent["subject_tags"])

	require.Equal(t, 9, subject.ID)
	require.Nil(t, subject.Age)
	require.Equal(t, 1991, *subject.BirthYear)
	require.Equal(t, 61.5, *subject.Weight)
}

func TestCreateSubjectSurfacesServerValidation(t *testing.T) {
	svc := newFakeService(t)
	svc.respond("POST /subjects/", http.StatusBadRequest, `{"subject_tags":["Unknown tag."]}`)

	_, err := svc.client(t).CreateSubject(context.Background(), validSubjectParams())
	require.ErrorIs(t, err, domain.ErrClientStatus)
	require.Contains(t, err.Error(), "subject_tags: Unknown tag.")
}

func TestListSubjectActivitiesPaginates(t *testing.T) {
	svc := newFakeService(t)
	svc.handle("GET /subjects/12/trials/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "20", r.URL.Query().Get("start"))
		require.Equal(t, "10", r.URL.Query().Get("count"))
		require.Equal(t, "updated_at", r.URL.Query().Get("sort"))
		_, _ = io.WriteString(w, `[{"id":"t-1","session":"s-1","name":"squat","status":"done"}]`)
	})
	c := svc.client(t)

	activities, err := c.ListSubjectActivities(context.Background(), 12, 20, 10, domain.SortByLastUpdate)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	require.Equal(t, domain.ActivityStatusDone, activities[0].Status)

	_, err = c.ListSubjectActivities(context.Background(), 12, -1, 10, domain.SortByLastUpdate)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = c.ListSubjectActivities(context.Background(), 12, 0, 0, domain.SortByLastUpdate)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = c.ListSubjectActivities(context.Background(), 12, 0, 5, domain.ActivitySort(7))
	require.ErrorIs(t, err, domain.ErrValidation)
	require.EqualValues(t, 1, svc.calls.Load())
}

const trialJSON = `{"id":"t-1","session":"s-1","name":"squat","status":"done",
	"videos":[{"id":"v-1","trial":"t-1","video":"https://cdn/v1.mov","video_thumb":"https://cdn/v1.jpg"}],
	"results":[{"id":5,"trial":"t-1","tag":"ik_results","media":"https://cdn/ik.mot"}]}`

func TestUpdateActivitySendsOnlyNameAndReturnsEcho(t *testing.T) {
	svc := newFakeService(t)
	svc.respond("GET /trials/t-1/", http.StatusOK, trialJSON)
	svc.handle("PATCH /trials/t-1/", func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		require.Len(t, raw, 1)
		require.JSONEq(t, `"squat"`, string(raw["name"]))
		_, _ = io.WriteString(w, trialJSON)
	})
	c := svc.client(t)

	original, err := c.GetActivity(context.Background(), "t-1")
	require.NoError(t, err)

	updated, err := c.UpdateActivity(context.Background(), original)
	require.NoError(t, err)
	if diff := cmp.Diff(original, updated); diff != "" {
		t.Fatalf("round trip changed activity (-want +got):\n%s", diff)
	}
}

func TestDeleteActivityTwiceReportsNotFound(t *testing.T) {
	svc := newFakeService(t)
	deleted := false
	svc.handle("DELETE /trials/t-1/", func(w http.ResponseWriter, r *http.Request) {
		if deleted {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"detail":"Not found."}`)
			return
		}
		deleted = true
		w.WriteHeader(http.StatusNoContent)
	})
	c := svc.client(t)

	require.NoError(t, c.DeleteActivity(context.Background(), "t-1"))
	err := c.DeleteActivity(context.Background(), "t-1")
	require.ErrorIs(t, err, domain.ErrClientStatus)
	require.True(t, domain.IsNotFound(err))
}

func TestRegenerateResults(t *testing.T) {
	svc := newFakeService(t)
	svc.respond("POST /trials/t-1/rerun/", http.StatusAccepted, ``)

	require.NoError(t, svc.client(t).RegenerateResults(context.Background(), "t-1"))
	require.EqualValues(t, 1, svc.calls.Load())
}

func TestCreateSession(t *testing.T) {
	svc := newFakeService(t)
	svc.respond("POST /sessions/", http.StatusCreated, `{"id":"s-9","user":1,"trials_count":0}`)
	svc.respond("GET /sessions/s-9/", http.StatusOK, `{"id":"s-9","user":1,"trials_count":2}`)
	c := svc.client(t)

	session, err := c.CreateSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "s-9", session.ID)

	fetched, err := c.GetSession(context.Background(), "s-9")
	require.NoError(t, err)
	require.True(t, session.Equal(fetched))
	require.Equal(t, 2, fetched.ActivityCount)
}
