// Package api is the stateless facade over the upstream ride platform.
// Every method is one HTTP request: bearer token attached when present,
// JSON or multipart body, server error message surfaced verbatim. No
// retries, no backoff; the caller decides what a failure means.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/viacar/internal/models"
	"github.com/example/viacar/internal/observability"
)

// TokenSource yields the current bearer token, empty when unauthenticated.
// It is read at call time, never cached, so a token change applies to the
// next request.
type TokenSource interface {
	Token() string
}

// Error carries the server-provided message from a non-2xx response. The
// message text is what the UI shows, so Error() returns it bare.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

type Client struct {
	BaseURL   string
	Endpoints Endpoints
	Tokens    TokenSource
	HTTP      *http.Client
}

func NewClient(baseURL string, endpoints Endpoints, tokens TokenSource) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Endpoints: endpoints,
		Tokens:    tokens,
		HTTP:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.Tokens != nil {
		if tok := c.Tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		observability.UpstreamRequestDuration.WithLabelValues(path, "error").Observe(time.Since(start).Seconds())
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()
	observability.UpstreamRequestDuration.WithLabelValues(path, strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeError prefers the server's message field, falling back to the HTTP
// status text when the body is absent or unreadable.
func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Message != "" {
		apiErr.Message = body.Message
	}
	return apiErr
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(b), "application/json", out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) SendOTP(ctx context.Context, phone string) error {
	return c.postJSON(ctx, c.Endpoints.SendOTP, OTPRequest{Phone: phone}, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (VerifyOTPResponse, error) {
	var out VerifyOTPResponse
	err := c.postJSON(ctx, c.Endpoints.VerifyOTP, VerifyOTPRequest{Phone: phone, Code: code}, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (Profile, error) {
	var out Profile
	err := c.postJSON(ctx, c.Endpoints.Register, req, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context) (Profile, error) {
	var out Profile
	err := c.getJSON(ctx, c.Endpoints.Profile, &out)
	return out, err
}

func (c *Client) UpdateProfile(ctx context.Context, p Profile) (Profile, error) {
	var out Profile
	err := c.postJSON(ctx, c.Endpoints.UpdateProfile, p, &out)
	return out, err
}

// UploadProfileImage sends the image as multipart form data under the
// "image" field.
func (c *Client) UploadProfileImage(ctx context.Context, filename string, image io.Reader) (Profile, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return Profile{}, fmt.Errorf("build upload form: %w", err)
	}
	if _, err := io.Copy(fw, image); err != nil {
		return Profile{}, fmt.Errorf("copy upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Profile{}, fmt.Errorf("finish upload form: %w", err)
	}
	var out Profile
	err = c.do(ctx, http.MethodPost, c.Endpoints.UploadProfileImage, &buf, mw.FormDataContentType(), &out)
	return out, err
}

func (c *Client) BankAccounts(ctx context.Context) ([]BankAccount, error) {
	var out []BankAccount
	err := c.getJSON(ctx, c.Endpoints.BankAccounts, &out)
	return out, err
}

func (c *Client) AddBankAccount(ctx context.Context, acct BankAccount) (BankAccount, error) {
	var out BankAccount
	err := c.postJSON(ctx, c.Endpoints.AddBankAccount, acct, &out)
	return out, err
}

func (c *Client) UpdateBankAccount(ctx context.Context, acct BankAccount) (BankAccount, error) {
	var out BankAccount
	err := c.postJSON(ctx, c.Endpoints.UpdateBankAccount, acct, &out)
	return out, err
}

func (c *Client) DeleteBankAccount(ctx context.Context, id int) error {
	return c.postJSON(ctx, c.Endpoints.DeleteBankAccount, map[string]int{"id": id}, nil)
}

func (c *Client) VehicleBrands(ctx context.Context) ([]VehicleBrand, error) {
	var out []VehicleBrand
	err := c.getJSON(ctx, c.Endpoints.VehicleBrands, &out)
	return out, err
}

func (c *Client) VehicleModels(ctx context.Context, brandID int) ([]VehicleModel, error) {
	var out []VehicleModel
	err := c.getJSON(ctx, c.Endpoints.VehicleModels+"?brand_id="+strconv.Itoa(brandID), &out)
	return out, err
}

func (c *Client) AddVehicle(ctx context.Context, req AddVehicleRequest) (Vehicle, error) {
	var out Vehicle
	err := c.postJSON(ctx, c.Endpoints.AddVehicle, req, &out)
	return out, err
}

// CreateRide serializes the accumulated draft into one call. Whatever
// subset of fields is present goes up; the platform rejects incomplete
// drafts with an ordinary error response.
func (c *Client) CreateRide(ctx context.Context, draft models.RideDraft) (RideCreated, error) {
	var out RideCreated
	err := c.postJSON(ctx, c.Endpoints.CreateRide, draft, &out)
	return out, err
}

func (c *Client) SearchRides(ctx context.Context, q SearchQuery) (SearchResult, error) {
	var out SearchResult
	err := c.postJSON(ctx, c.Endpoints.SearchRides, q, &out)
	return out, err
}

func (c *Client) RideDetail(ctx context.Context, rideID int) (RideDetail, error) {
	var out RideDetail
	err := c.getJSON(ctx, c.Endpoints.RideDetail+"?ride_id="+strconv.Itoa(rideID), &out)
	return out, err
}

func (c *Client) UpdateRideStatus(ctx context.Context, rideID int, status string) error {
	return c.postJSON(ctx, c.Endpoints.UpdateRideStatus, map[string]any{"ride_id": rideID, "status": status}, nil)
}

func (c *Client) MyRides(ctx context.Context, q MyRidesQuery) (SearchResult, error) {
	var out SearchResult
	err := c.postJSON(ctx, c.Endpoints.MyRides, q, &out)
	return out, err
}

func (c *Client) CreateRideAlert(ctx context.Context, req RideAlertRequest) error {
	return c.postJSON(ctx, c.Endpoints.CreateRideAlert, req, nil)
}

func (c *Client) UserStatus(ctx context.Context) (UserStatus, error) {
	var out UserStatus
	err := c.getJSON(ctx, c.Endpoints.UserStatus, &out)
	return out, err
}
