package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"civiclens/portal/models"
)

// Client talks to the municipal backend. All authenticated calls carry the
// session bearer token via the auth transport.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL. The session store
// supplies tokens and absorbs 401s.
func NewClient(baseURL string, session TokenSource, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: &authTransport{session: session},
		},
	}
}

// Login exchanges credentials for a session. The error never reveals which
// credential was wrong.
func (c *Client) Login(ctx context.Context, username, password string) (models.Session, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return models.Session{}, fmt.Errorf("error creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Session{}, fmt.Errorf("error calling login endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Session{}, ErrDenied
	}

	var body struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
		Department  string `json:"department"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.Session{}, fmt.Errorf("error decoding login response: %w", err)
	}

	return models.Session{
		Token:      body.AccessToken,
		Role:       body.Role,
		Department: body.Department,
	}, nil
}

// SubmissionResult is the backend's verdict on an uploaded report. The
// normalized contract uses "id"; the legacy serializer uses "report_id" for
// new reports and "original_id" for duplicates.
type SubmissionResult struct {
	Status     string `json:"status"`
	ID         string `json:"id"`
	ReportID   string `json:"report_id"`
	OriginalID string `json:"original_id"`
	Issue      string `json:"issue"`
	AssignedTo string `json:"assigned_to"`
}

// ReportRef returns the report id regardless of which response shape the
// backend used.
func (r *SubmissionResult) ReportRef() string {
	if r.ID != "" {
		return r.ID
	}
	if r.ReportID != "" {
		return r.ReportID
	}
	return r.OriginalID
}

// SubmitReport uploads photographic evidence with its coordinates. Exactly
// one request is issued; retries are the caller's decision.
func (c *Client) SubmitReport(ctx context.Context, filename string, image io.Reader, lat, lon float64) (*SubmissionResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("error building multipart body: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, fmt.Errorf("error copying image data: %w", err)
	}
	if err := mw.WriteField("latitude", strconv.FormatFloat(lat, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("error writing latitude field: %w", err)
	}
	if err := mw.WriteField("longitude", strconv.FormatFloat(lon, 'f', -1, 64)); err != nil {
		return nil, fmt.Errorf("error writing longitude field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("error finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/report", &buf)
	if err != nil {
		return nil, fmt.Errorf("error creating report request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error submitting report: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var result SubmissionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding submission response: %w", err)
	}
	return &result, nil
}

// NearbyReports fetches the reports local to a coordinate pair.
func (c *Client) NearbyReports(ctx context.Context, lat, lon float64) ([]models.Report, error) {
	endpoint := fmt.Sprintf("%s/public/nearby?lat=%s&lon=%s",
		c.baseURL,
		url.QueryEscape(strconv.FormatFloat(lat, 'f', -1, 64)),
		url.QueryEscape(strconv.FormatFloat(lon, 'f', -1, 64)))

	var reports []models.Report
	if err := c.getJSON(ctx, endpoint, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// AdminReports fetches the full report collection, scoped server-side by
// the session's role and department. Server order is preserved.
func (c *Client) AdminReports(ctx context.Context) ([]models.Report, error) {
	var reports []models.Report
	if err := c.getJSON(ctx, c.baseURL+"/admin/reports", &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// UpdateReportStatus asks the backend to move a report to a new lifecycle
// status.
func (c *Client) UpdateReportStatus(ctx context.Context, id, status string) error {
	payload := map[string]string{"status": status}
	endpoint := fmt.Sprintf("%s/admin/report/%s/status", c.baseURL, url.PathEscape(id))
	return c.sendJSON(ctx, "PATCH", endpoint, payload)
}

// Users fetches the staff roster.
func (c *Client) Users(ctx context.Context) ([]models.StaffAccount, error) {
	var users []models.StaffAccount
	if err := c.getJSON(ctx, c.baseURL+"/admin/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// NewStaffAccount is the create-user payload. The password travels write-
// only; the roster never echoes it back.
type NewStaffAccount struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// StaffUpdate is the minimal-diff update payload: only populated fields are
// sent.
type StaffUpdate struct {
	Password   string `json:"password,omitempty"`
	Department string `json:"department,omitempty"`
}

// IsZero reports whether the update would change nothing.
func (u StaffUpdate) IsZero() bool {
	return u.Password == "" && u.Department == ""
}

// CreateUser adds a staff account. A duplicate username yields ErrConflict.
func (c *Client) CreateUser(ctx context.Context, account NewStaffAccount) error {
	err := c.sendJSON(ctx, "POST", c.baseURL+"/admin/create-user", account)

	// The backend signals a duplicate username with 400 ("Username
	// exists") or 409 depending on version.
	var se *StatusError
	if errors.As(err, &se) && (se.Code == http.StatusBadRequest || se.Code == http.StatusConflict) {
		return fmt.Errorf("%w: %s", ErrConflict, account.Username)
	}
	return err
}

// UpdateUser applies a minimal diff to a staff account.
func (c *Client) UpdateUser(ctx context.Context, username string, update StaffUpdate) error {
	endpoint := c.baseURL + "/admin/user/" + url.PathEscape(username)
	return c.sendJSON(ctx, "PATCH", endpoint, update)
}

// DeleteUser removes a staff account.
func (c *Client) DeleteUser(ctx context.Context, username string) error {
	endpoint := c.baseURL + "/admin/user/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, "DELETE", endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating delete request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error deleting user: %w", err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, endpoint string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error calling %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

// checkStatus maps a non-2xx response to an error. 401 becomes
// ErrUnauthorized so managers can tell an expired session from an outage.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
