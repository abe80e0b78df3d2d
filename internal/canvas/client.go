package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rahmanfadhil/deadline-radar/internal/models"
	"github.com/rahmanfadhil/deadline-radar/pkg/config"
	appErrors "github.com/rahmanfadhil/deadline-radar/pkg/errors"
)

type requestObserver interface {
	ObserveUpstreamRequest(resource string, status int, duration time.Duration)
}

// Client talks to a Canvas-compatible LMS REST API on behalf of a
// supplied bearer token. All operations are read-only.
type Client struct {
	baseURL string
	perPage int
	http    *http.Client
	metrics requestObserver
	logger  *zap.Logger
}

// NewClient constructs a Client from configuration.
func NewClient(cfg config.CanvasConfig, metrics requestObserver, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	return &Client{
		baseURL: cfg.BaseURL,
		perPage: perPage,
		http:    &http.Client{Timeout: timeout},
		metrics: metrics,
		logger:  logger,
	}
}

// Me resolves the identity behind the token. A rejection here means the
// token itself is invalid, which is surfaced distinctly from transport
// failures later in a run.
func (c *Client) Me(ctx context.Context, token string) (*models.Identity, error) {
	resp, err := c.get(ctx, token, c.baseURL+"/users/self", nil, "users.self")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "identity request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, appErrors.Clone(appErrors.ErrUpstreamAuth, "")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, appErrors.Wrap(fmt.Errorf("status %d", resp.StatusCode), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "identity request failed")
	}

	var me models.Identity
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode identity response")
	}
	return &me, nil
}

// ActiveCourses lists the currently-active course memberships for a user.
func (c *Client) ActiveCourses(ctx context.Context, token string, userID int64) ([]models.Course, error) {
	endpoint := fmt.Sprintf("%s/users/%d/courses", c.baseURL, userID)
	params := url.Values{"enrollment_state": {"active"}}
	records, err := c.getAllPages(ctx, token, endpoint, params, "courses")
	if err != nil {
		return nil, err
	}
	courses := make([]models.Course, 0, len(records))
	for _, raw := range records {
		var course models.Course
		if err := json.Unmarshal(raw, &course); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode course record")
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// Assignments lists every assignment of a course. The owning course name
// is attached by the caller, the LMS does not send it.
func (c *Client) Assignments(ctx context.Context, token string, courseID int64) ([]models.Assignment, error) {
	endpoint := fmt.Sprintf("%s/courses/%d/assignments", c.baseURL, courseID)
	records, err := c.getAllPages(ctx, token, endpoint, nil, "assignments")
	if err != nil {
		return nil, err
	}
	assignments := make([]models.Assignment, 0, len(records))
	for _, raw := range records {
		var assignment models.Assignment
		if err := json.Unmarshal(raw, &assignment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode assignment record")
		}
		assignments = append(assignments, assignment)
	}
	return assignments, nil
}

// getAllPages drains a paginated collection endpoint. Query parameters
// ride only on the first request; continuation URLs from the Link header
// already encode them. Pages accumulate in arrival order. Failures
// propagate immediately, there is no retry.
func (c *Client) getAllPages(ctx context.Context, token, endpoint string, params url.Values, resource string) ([]json.RawMessage, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("per_page", strconv.Itoa(c.perPage))

	var results []json.RawMessage
	next := endpoint
	pages := 0
	for next != "" {
		resp, err := c.get(ctx, token, next, params, resource)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, fmt.Sprintf("fetch %s page", resource))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, appErrors.Wrap(fmt.Errorf("status %d", resp.StatusCode), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, fmt.Sprintf("fetch %s page", resource))
		}

		var page []json.RawMessage
		err = json.NewDecoder(resp.Body).Decode(&page)
		link := resp.Header.Get("Link")
		resp.Body.Close()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, fmt.Sprintf("decode %s page", resource))
		}

		results = append(results, page...)
		pages++
		next = nextLink(link)
		params = nil
	}
	c.logger.Debug("collection fetched",
		zap.String("resource", resource),
		zap.Int("pages", pages),
		zap.Int("records", len(results)))
	return results, nil
}

func (c *Client) get(ctx context.Context, token, rawURL string, params url.Values, resource string) (*http.Response, error) {
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		for key, values := range params {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	duration := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if c.metrics != nil {
		c.metrics.ObserveUpstreamRequest(resource, status, duration)
	}
	return resp, err
}
