package notes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/harborlight-hq/harborlight/internal/authz"
	"github.com/harborlight-hq/harborlight/internal/shared"
)

func newTestRouter(svc *Service, actor *shared.Actor) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(req.Context(), actor)))
		})
	})
	NewHandler(nil, svc).MountRoutes(r)
	return r
}

func TestCreateEndpoint(t *testing.T) {
	store := &memStore{}
	svc := NewService(store, &stubAuthorizer{decisions: map[string]authz.Decision{
		authz.PermNotesEdit: {Outcome: authz.OutcomeAllow},
	}}, newTestFilter(nil), &stubPrograms{}, &stubAssignments{})
	router := newTestRouter(svc, &shared.Actor{ID: 7})

	subjectID := uuid.New()
	body := `{"subject_id":"` + subjectID.String() + `","program_id":1,"body":"First visit."}`
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.notes, 1)
	require.Equal(t, int64(7), store.notes[0].AuthorID)
	require.Contains(t, rec.Body.String(), subjectID.String())
}

func TestCreateEndpointRejectsMissingBody(t *testing.T) {
	svc := NewService(&memStore{}, &stubAuthorizer{}, newTestFilter(nil), &stubPrograms{}, &stubAssignments{})
	router := newTestRouter(svc, &shared.Actor{ID: 7})

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(`{"subject_id":"`+uuid.NewString()+`","program_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListEndpointGatedNoteHasNoBody(t *testing.T) {
	subjectID := uuid.New()
	store := &memStore{}
	_, err := store.Insert(context.Background(), Note{
		ID:        uuid.New(),
		SubjectID: subjectID,
		ProgramID: 1,
		Category:  CategoryHealth,
		AuthorID:  2,
		Body:      "medication adjusted",
	})
	require.NoError(t, err)

	svc := NewService(store, &stubAuthorizer{decisions: map[string]authz.Decision{
		authz.PermNotesView: {Outcome: authz.OutcomeAllow},
		authz.PermNotesHealthView: {
			Outcome:  authz.OutcomeGated,
			Reason:   authz.ReasonGrantRequired,
			Guidance: "Request temporary access with a justification.",
		},
	}}, newTestFilter(nil), &stubPrograms{programs: []int64{1}}, &stubAssignments{})
	router := newTestRouter(svc, &shared.Actor{ID: 7})

	req := httptest.NewRequest(http.MethodGet, "/participants/"+subjectID.String()+"/notes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "medication adjusted")
	require.Contains(t, rec.Body.String(), `"gated":true`)
	require.Contains(t, rec.Body.String(), "Request temporary access")
}

func TestListEndpointOmitsDeniedNotes(t *testing.T) {
	subjectID := uuid.New()
	store := &memStore{}
	_, err := store.Insert(context.Background(), Note{
		ID:        uuid.New(),
		SubjectID: subjectID,
		ProgramID: 1,
		Category:  CategoryGeneral,
		AuthorID:  2,
		Body:      "should not leak",
	})
	require.NoError(t, err)

	svc := NewService(store, &stubAuthorizer{}, newTestFilter(nil), &stubPrograms{programs: []int64{1}}, &stubAssignments{})
	router := newTestRouter(svc, &shared.Actor{ID: 7})

	req := httptest.NewRequest(http.MethodGet, "/participants/"+subjectID.String()+"/notes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "should not leak")
}

func TestListEndpointRejectsBadID(t *testing.T) {
	svc := NewService(&memStore{}, &stubAuthorizer{}, newTestFilter(nil), &stubPrograms{}, &stubAssignments{})
	router := newTestRouter(svc, &shared.Actor{ID: 7})

	req := httptest.NewRequest(http.MethodGet, "/participants/not-a-uuid/notes", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
