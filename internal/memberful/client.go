package memberful

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PortNumber53/membership-metrics/internal/models"
)

// DefaultGraphQLURL is the endpoint used when none is configured.
const DefaultGraphQLURL = "https://made.memberful.com/api/graphql"

const pageSize = 100

// Client wraps the Memberful GraphQL API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new Memberful API client. An empty baseURL selects
// DefaultGraphQLURL.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultGraphQLURL
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		baseURL:    baseURL,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

const membersQuery = `query Members($first: Int!, $after: String) {
  members(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      email
      fullName
      totalSpendCents
      subscriptions {
        id
        active
        autorenew
        createdAt
        expiresAt
        plan { id name priceCents intervalUnit intervalCount }
      }
      orders {
        totalCents
        createdAt
        status
        couponDiscountAmountCents
        coupon { code }
      }
    }
  }
}`

const activitiesQuery = `query Activities($first: Int!, $after: String) {
  activities(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    nodes {
      id
      type
      createdAt
      member { id email fullName }
      subscription {
        id
        orders {
          coupon { id code amountOffCents }
          totalCents
        }
        plan { id name priceCents intervalUnit intervalCount }
      }
      previousData {
        plan { id name priceCents intervalUnit intervalCount }
      }
    }
  }
}`

type pageInfo struct {
	HasNextPage bool    `json:"hasNextPage"`
	EndCursor   *string `json:"endCursor"`
}

type connection[T any] struct {
	PageInfo pageInfo `json:"pageInfo"`
	Nodes    []T      `json:"nodes"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// APIError reports a non-2xx response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("memberful API error (%d): %s", e.StatusCode, e.Body)
}

// ErrCursorLoop is returned when the API keeps handing back the same cursor.
var ErrCursorLoop = errors.New("memberful pagination did not advance")

// FetchMembers walks every page of members, calling fn once per page.
func (c *Client) FetchMembers(ctx context.Context, fn func([]models.RawMember) error) error {
	pages := 0
	err := paginate(ctx, c, membersQuery, "members", func(nodes []models.RawMember) error {
		pages++
		return fn(nodes)
	})
	if err != nil {
		return fmt.Errorf("fetch members: %w", err)
	}
	log.Printf("[memberful] Fetched members in %d page(s)", pages)
	return nil
}

// FetchActivities walks every page of activities, calling fn once per page
// with the activities created between start and end inclusive. The API
// cannot filter by date so filtering happens here. Activities whose
// timestamp is missing or malformed are passed through for the caller to
// account for.
func (c *Client) FetchActivities(ctx context.Context, start, end time.Time, fn func([]models.RawActivity) error) error {
	kept, seen := 0, 0
	err := paginate(ctx, c, activitiesQuery, "activities", func(nodes []models.RawActivity) error {
		seen += len(nodes)
		filtered := make([]models.RawActivity, 0, len(nodes))
		for _, a := range nodes {
			at, ok, err := a.CreatedAt.Time()
			if ok && err == nil && (at.Before(start) || at.After(end)) {
				continue
			}
			filtered = append(filtered, a)
		}
		kept += len(filtered)
		if len(filtered) == 0 {
			return nil
		}
		return fn(filtered)
	})
	if err != nil {
		return fmt.Errorf("fetch activities: %w", err)
	}
	log.Printf("[memberful] Kept %d of %d activities between %s and %s", kept, seen, start.Format(time.DateOnly), end.Format(time.DateOnly))
	return nil
}

func paginate[T any](ctx context.Context, c *Client, query, field string, fn func([]T) error) error {
	var after *string
	for {
		variables := map[string]any{"first": pageSize, "after": after}
		data, err := c.do(ctx, query, variables)
		if err != nil {
			return err
		}

		var envelope map[string]connection[T]
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("parse %s page: %w", field, err)
		}
		page, ok := envelope[field]
		if !ok {
			return fmt.Errorf("response missing %q", field)
		}
		if err := fn(page.Nodes); err != nil {
			return err
		}

		if !page.PageInfo.HasNextPage {
			return nil
		}
		next := page.PageInfo.EndCursor
		if next == nil || *next == "" || (after != nil && *after == *next) {
			return ErrCursorLoop
		}
		after = next
	}
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build memberful request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("memberful request failed: %w", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("read memberful response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(truncate(buf.String(), 512))}
	}

	var result graphQLResponse
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		return nil, fmt.Errorf("parse memberful response: %w", err)
	}
	if len(result.Errors) > 0 {
		messages := make([]string, 0, len(result.Errors))
		for _, e := range result.Errors {
			messages = append(messages, e.Message)
		}
		return nil, fmt.Errorf("memberful graphql errors: %s", strings.Join(messages, "; "))
	}
	if len(result.Data) == 0 || string(result.Data) == "null" {
		return nil, errors.New("memberful response has no data")
	}
	return result.Data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
