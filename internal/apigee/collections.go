package apigee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Kind is a collection of versioned entities in an organization.
type Kind string

const (
	KindProxies     Kind = "proxies"
	KindSharedFlows Kind = "sharedflows"
)

// ParseKind accepts the collection names used on the command line.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "proxies", "apiproxies", "apis":
		return KindProxies, nil
	case "sharedflows":
		return KindSharedFlows, nil
	default:
		return "", fmt.Errorf("unknown collection %q", s)
	}
}

func (k Kind) String() string {
	return string(k)
}

func (k Kind) pathSegment() string {
	if k == KindProxies {
		return "apis"
	}
	return string(k)
}

// DeploymentStatus is the deployment state of one revision. Edge reports
// environments, Apigee X reports deployments.
type DeploymentStatus struct {
	Environments []json.RawMessage `json:"environment"`
	Deployments  []json.RawMessage `json:"deployments"`
}

// Deployed reports whether the revision is live in at least one environment.
func (s DeploymentStatus) Deployed() bool {
	return len(s.Environments) > 0 || len(s.Deployments) > 0
}

// APIError is a non-2xx response from the management API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("apigee: %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
	if body := strings.TrimSpace(e.Body); body != "" {
		if len(body) > 256 {
			body = body[:256] + "..."
		}
		msg += ": " + body
	}
	return msg
}

// InvalidRevisionsError lists revision identifiers that are not integers.
// ListRevisions returns it alongside the revisions that did parse.
type InvalidRevisionsError struct {
	Name   string
	Values []string
}

func (e *InvalidRevisionsError) Error() string {
	return fmt.Sprintf("apigee: %s: non-numeric revisions %q", e.Name, e.Values)
}

func (c *Client) request(ctx context.Context, kind Kind, name string) *resty.Request {
	params := map[string]string{
		"org":        c.Org,
		"collection": kind.pathSegment(),
	}
	if name != "" {
		params["name"] = name
	}
	return c.rest.R().SetContext(ctx).SetPathParams(params)
}

func (c *Client) do(req *resty.Request, method, path string) ([]byte, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("apigee: %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return nil, &APIError{
			Method:     method,
			Path:       resp.Request.URL,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	return resp.Body(), nil
}

// ListEntities returns the names of all entities in a collection.
func (c *Client) ListEntities(ctx context.Context, kind Kind) ([]string, error) {
	body, err := c.do(c.request(ctx, kind, ""), http.MethodGet, "/organizations/{org}/{collection}")
	if err != nil {
		return nil, err
	}
	return decodeEntityNames(body)
}

func decodeEntityNames(body []byte) ([]string, error) {
	// Edge: ["a","b"]
	var names []string
	if err := json.Unmarshal(body, &names); err == nil {
		return names, nil
	}

	// Apigee X: {"proxies":[{"name":"a"}]} or {"sharedFlows":[{"name":"a"}]}
	type named struct {
		Name string `json:"name"`
	}
	var wrapped struct {
		Proxies     []named `json:"proxies"`
		SharedFlows []named `json:"sharedFlows"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("apigee: decode entity list: %w", err)
	}
	for _, n := range wrapped.Proxies {
		names = append(names, n.Name)
	}
	for _, n := range wrapped.SharedFlows {
		names = append(names, n.Name)
	}
	return names, nil
}

// ListRevisions returns the revision numbers of one entity in the order the
// platform reports them.
func (c *Client) ListRevisions(ctx context.Context, kind Kind, name string) ([]int, error) {
	body, err := c.do(c.request(ctx, kind, name), http.MethodGet, "/organizations/{org}/{collection}/{name}/revisions")
	if err != nil {
		return nil, err
	}

	var raw []json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		var strs []string
		if err2 := json.Unmarshal(body, &strs); err2 != nil {
			return nil, fmt.Errorf("apigee: decode revisions of %s: %w", name, err)
		}
		for _, s := range strs {
			raw = append(raw, json.Number(s))
		}
	}

	revisions := make([]int, 0, len(raw))
	var invalid []string
	for _, v := range raw {
		n, err := strconv.Atoi(strings.TrimSpace(v.String()))
		if err != nil {
			invalid = append(invalid, v.String())
			continue
		}
		revisions = append(revisions, n)
	}
	if len(invalid) > 0 {
		return revisions, &InvalidRevisionsError{Name: name, Values: invalid}
	}
	return revisions, nil
}

// DeploymentStatus reports where a single revision is deployed.
func (c *Client) DeploymentStatus(ctx context.Context, kind Kind, name string, revision int) (DeploymentStatus, error) {
	req := c.request(ctx, kind, name).SetPathParam("revision", strconv.Itoa(revision))
	body, err := c.do(req, http.MethodGet, "/organizations/{org}/{collection}/{name}/revisions/{revision}/deployments")
	if err != nil {
		return DeploymentStatus{}, err
	}
	var st DeploymentStatus
	if len(strings.TrimSpace(string(body))) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return DeploymentStatus{}, fmt.Errorf("apigee: decode deployments of %s r%d: %w", name, revision, err)
	}
	return st, nil
}

// DeleteRevision permanently removes one revision.
func (c *Client) DeleteRevision(ctx context.Context, kind Kind, name string, revision int) error {
	req := c.request(ctx, kind, name).SetPathParam("revision", strconv.Itoa(revision))
	_, err := c.do(req, http.MethodDelete, "/organizations/{org}/{collection}/{name}/revisions/{revision}")
	return err
}
