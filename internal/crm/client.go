package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/maniya81/whatsapp-crm-extension/internal/log"
)

const defaultRequestTimeout = 15 * time.Second

// Client talks to the CRM REST API for one organization.
type Client struct {
	httpClient *http.Client
	baseURL    string
	orgID      string
}

// NewClient creates a CRM client. baseURL and orgID come from persisted
// config; httpClient may be nil to use a default with a request timeout.
func NewClient(baseURL, orgID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		orgID:      orgID,
	}
}

// OrgID returns the organization this client is bound to. Completion
// handlers use it to discard responses that raced an org switch.
func (c *Client) OrgID() string {
	return c.orgID
}

// Stages fetches the organization's pipeline stages, sorted by order,
// with slugs derived from stage names.
func (c *Client) Stages(ctx context.Context) ([]Stage, error) {
	var resp struct {
		Stages []Stage `json:"stages"`
	}
	if err := c.get(ctx, c.endpoint("stages"), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetching stages: %w", err)
	}

	stages := resp.Stages
	for i := range stages {
		stages[i].Slug = SlugifyStage(stages[i].Name)
	}
	sort.SliceStable(stages, func(i, j int) bool {
		return stages[i].Order < stages[j].Order
	})

	log.Debug(log.CatCRM, "fetched stages", "count", len(stages))
	return stages, nil
}

// LeadsPage fetches one page of leads inside the rolling time window.
// pageSize is capped at MaxPageSize.
func (c *Client) LeadsPage(ctx context.Context, page, pageSize, windowDays int) (LeadsPage, error) {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	q.Set("since", sinceWindow(time.Now(), windowDays))

	var resp LeadsPage
	if err := c.get(ctx, c.endpoint("leads"), q, &resp); err != nil {
		return LeadsPage{}, fmt.Errorf("fetching leads page %d: %w", page, err)
	}

	log.Debug(log.CatCRM, "fetched leads page",
		"page", page, "items", len(resp.Items), "totalPages", resp.TotalPages)
	return resp, nil
}

// CreateLead posts a new lead (quick capture from a conversation).
func (c *Client) CreateLead(ctx context.Context, input NewLeadInput) (Lead, error) {
	var created Lead
	if err := c.send(ctx, http.MethodPost, c.endpoint("leads"), input, &created); err != nil {
		return Lead{}, fmt.Errorf("creating lead: %w", err)
	}
	log.Info(log.CatCRM, "created lead", "id", created.ID, "stage", created.Stage)
	return created, nil
}

// UpdateLead moves an existing lead to another stage.
func (c *Client) UpdateLead(ctx context.Context, id string, input UpdateLeadInput) error {
	if err := c.send(ctx, http.MethodPut, c.endpoint("leads/"+url.PathEscape(id)), input, nil); err != nil {
		return fmt.Errorf("updating lead %s: %w", id, err)
	}
	log.Info(log.CatCRM, "updated lead", "id", id, "stage", input.Stage)
	return nil
}

func (c *Client) endpoint(path string) string {
	return fmt.Sprintf("%s/api/v1/orgs/%s/%s", c.baseURL, url.PathEscape(c.orgID), path)
}

func (c *Client) get(ctx context.Context, rawURL string, query url.Values, out any) error {
	if len(query) > 0 {
		rawURL = rawURL + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) send(ctx context.Context, method, rawURL string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read a little of the body for log context, then discard.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		log.Warn(log.CatCRM, "api error response",
			"status", resp.StatusCode, "url", req.URL.Path, "body", string(snippet))
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, req.URL.Path)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
