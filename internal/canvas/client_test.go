package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rahmanfadhil/deadline-radar/pkg/config"
	appErrors "github.com/rahmanfadhil/deadline-radar/pkg/errors"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.CanvasConfig{BaseURL: baseURL, PerPage: 2}, nil, zap.NewNop())
}

func TestClientMe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/self", r.URL.Path)
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 42, "name": "Ada Lovelace"})
	}))
	defer server.Close()

	me, err := newTestClient(server.URL).Me(context.Background(), "token-1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), me.ID)
	assert.Equal(t, "Ada Lovelace", me.Name)
}

func TestClientMeRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Me(context.Background(), "bad-token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstreamAuth.Code, appErr.Code)
	assert.Equal(t, http.StatusUnauthorized, appErr.Status)
}

func TestClientActiveCoursesPagination(t *testing.T) {
	pages := [][]map[string]interface{}{
		{{"id": 1, "name": "Calc"}, {"id": 2, "name": "Linear Algebra"}},
		{{"id": 3, "name": "Physics"}, {"id": 4, "name": "Chemistry"}},
		{{"id": 5, "name": "History"}},
	}
	var requests []string

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.String())
		page := 0
		if p := r.URL.Query().Get("page"); p != "" {
			fmt.Sscanf(p, "%d", &page)
		}
		if page < len(pages)-1 {
			w.Header().Set("Link", fmt.Sprintf(`<%s/users/7/courses?page=%d>; rel="next", <%s/users/7/courses?page=0>; rel="first"`, server.URL, page+1, server.URL))
		}
		_ = json.NewEncoder(w).Encode(pages[page])
	}))
	defer server.Close()

	courses, err := newTestClient(server.URL).ActiveCourses(context.Background(), "token-1", 7)
	require.NoError(t, err)

	require.Len(t, requests, 3, "one request per page")
	require.Len(t, courses, 5)
	assert.Equal(t, "Calc", courses[0].Name)
	assert.Equal(t, "History", courses[4].Name)

	// Seed params ride only on the first request; continuation URLs
	// already carry everything they need.
	assert.Contains(t, requests[0], "enrollment_state=active")
	assert.Contains(t, requests[0], "per_page=2")
	assert.NotContains(t, requests[1], "enrollment_state")
	assert.NotContains(t, requests[2], "enrollment_state")
}

func TestClientAssignmentsTransportError(t *testing.T) {
	var hits int
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits == 1 {
			w.Header().Set("Link", fmt.Sprintf(`<%s/courses/9/assignments?page=1>; rel="next"`, server.URL))
			_ = json.NewEncoder(w).Encode([]map[string]interface{}{{"name": "HW1"}})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Assignments(context.Background(), "token-1", 9)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErr.Code)
	assert.Equal(t, 2, hits, "failure mid-pagination is not retried")
}

func TestClientAssignmentsDecodesDueAt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{
			{"name": "HW1", "due_at": "2024-03-07T23:59:00Z"},
			{"name": "HW2", "due_at": nil},
		})
	}))
	defer server.Close()

	assignments, err := newTestClient(server.URL).Assignments(context.Background(), "token-1", 1)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	require.NotNil(t, assignments[0].DueAt)
	assert.Equal(t, "2024-03-07T23:59:00Z", *assignments[0].DueAt)
	assert.Nil(t, assignments[1].DueAt)
}

func TestParseDueAt(t *testing.T) {
	due, err := ParseDueAt("2024-03-07T23:59:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC), due)

	offset, err := ParseDueAt("2024-03-07T23:59:00+00:00")
	require.NoError(t, err)
	assert.True(t, due.Equal(offset), "Z and +00:00 denote the same instant")

	_, err = ParseDueAt("not-a-date")
	require.Error(t, err)

	_, err = ParseDueAt("")
	require.Error(t, err)
}

func TestNextLink(t *testing.T) {
	header := `<https://lms.test/api/v1/courses?page=2&per_page=10>; rel="next", <https://lms.test/api/v1/courses?page=1>; rel="first"`
	assert.Equal(t, "https://lms.test/api/v1/courses?page=2&per_page=10", nextLink(header))
	assert.Equal(t, "", nextLink(`<https://lms.test/api/v1/courses?page=1>; rel="last"`))
	assert.Equal(t, "", nextLink(""))
}
