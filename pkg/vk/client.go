package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"vkharvest/pkg/config"
	"vkharvest/pkg/logger"
	"vkharvest/pkg/ratelimit"
	"vkharvest/pkg/retry"
)

// Client issues calls against the VK API. Every call spends exactly one unit
// of the shared request budget regardless of outcome, and transient failures
// are retried once after a fixed delay before the error reaches the caller.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	version    string
	budget     *ratelimit.Budget
	retryDelay time.Duration
	logger     logger.Logger
}

// NewClient creates a new VK API client sharing the given request budget
func NewClient(cfg *config.Config, budget *ratelimit.Budget, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Harvest.RequestTimeout,
		},
		baseURL:    cfg.VK.BaseURL,
		token:      cfg.VK.Token,
		version:    cfg.VK.APIVersion,
		budget:     budget,
		retryDelay: cfg.Harvest.RetryDelay,
		logger:     log,
	}
}

// Budget returns the request budget shared by all calls through this client
func (c *Client) Budget() *ratelimit.Budget {
	return c.budget
}

// GetGroup fetches a group by id via groups.getById
func (c *Client) GetGroup(ctx context.Context, id int64) (*GroupPayload, error) {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(id, 10))
	params.Set("fields", "description,is_closed,contacts")

	var groups []GroupPayload
	if err := c.call(ctx, "groups.getById", params, &groups); err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, &Error{
			Type:    ErrorTypeParsing,
			Message: fmt.Sprintf("groups.getById returned no group for id %d", id),
		}
	}
	return &groups[0], nil
}

// GetUser fetches a user by id via users.get. A well-formed response that
// carries no user (an invalid or deleted id) yields a nil payload and no
// error; the caller decides how to degrade.
func (c *Client) GetUser(ctx context.Context, id int64) (*UserPayload, error) {
	params := url.Values{}
	params.Set("user_ids", strconv.FormatInt(id, 10))
	params.Set("fields", "deactivated,about")

	var users []UserPayload
	if err := c.call(ctx, "users.get", params, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

// GetWall fetches one page of a group's wall via wall.get. The owner id on
// the wire is the negated group id.
func (c *Client) GetWall(ctx context.Context, ownerID int64, offset, count int) (*WallPage, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(-ownerID, 10))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("count", strconv.Itoa(count))

	var page WallPage
	if err := c.call(ctx, "wall.get", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetComments fetches one page of a post's comments via wall.getComments
func (c *Client) GetComments(ctx context.Context, ownerID, postID int64, offset, count int) (*CommentPage, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(-ownerID, 10))
	params.Set("post_id", strconv.FormatInt(postID, 10))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("count", strconv.Itoa(count))

	var page CommentPage
	if err := c.call(ctx, "wall.getComments", params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// call spends one budget unit and performs the request, retrying a transient
// failure exactly once after the configured delay.
func (c *Client) call(ctx context.Context, method string, params url.Values, target interface{}) error {
	if !c.budget.Spend() {
		return &Error{
			Type:    ErrorTypeBudget,
			Message: "request budget exhausted",
		}
	}

	return retry.Do(func() error {
		return c.fetch(ctx, method, params, target)
	}, &retry.Config{
		MaxAttempts: 2,
		Backoff:     &retry.ConstantBackoff{Delay: c.retryDelay},
		RetryIf:     IsTransient,
		Context:     ctx,
		Logger:      c.logger,
	})
}

// fetch performs a single HTTP round trip and decodes the envelope
func (c *Client) fetch(ctx context.Context, method string, params url.Values, target interface{}) error {
	values := url.Values{}
	for key, vals := range params {
		for _, v := range vals {
			values.Add(key, v)
		}
	}
	values.Set("access_token", c.token)
	values.Set("v", c.version)

	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, method, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{
			Type:    ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   method,
			"error":    err.Error(),
			"duration": duration,
		})
		return &Error{
			Type:    ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}
	defer resp.Body.Close()

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   method,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	if resp.StatusCode != http.StatusOK {
		return &Error{
			Type:    ErrorTypeNetwork,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{
			Type:    ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse response", map[string]interface{}{
			"method":       method,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &Error{
			Type:    ErrorTypeParsing,
			Message: fmt.Sprintf("failed to parse JSON: %v", err),
		}
	}

	if env.Error != nil {
		return c.envelopeError(method, env.Error)
	}

	if env.Response == nil {
		return &Error{
			Type:    ErrorTypeParsing,
			Message: "response carries neither a payload nor an error",
		}
	}

	if err := json.Unmarshal(env.Response, target); err != nil {
		return &Error{
			Type:    ErrorTypeParsing,
			Message: fmt.Sprintf("failed to decode %s response: %v", method, err),
		}
	}

	return nil
}

// envelopeError maps a VK error object to a typed error. Code 5 means the
// access token has expired; everything else is treated as transient.
func (c *Client) envelopeError(method string, apiErr *APIError) error {
	if apiErr.Code == expiredTokenCode {
		c.logger.ErrorWithFields("access token has expired", map[string]interface{}{
			"method":     method,
			"error_code": apiErr.Code,
			"error_msg":  apiErr.Message,
		})
		return &Error{
			Type:    ErrorTypeAuth,
			Message: apiErr.Message,
			Code:    apiErr.Code,
		}
	}

	c.logger.WarnWithFields("API returned an error envelope", map[string]interface{}{
		"method":     method,
		"error_code": apiErr.Code,
		"error_msg":  apiErr.Message,
	})
	return &Error{
		Type:    ErrorTypeAPI,
		Message: apiErr.Message,
		Code:    apiErr.Code,
	}
}
