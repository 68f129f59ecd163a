// Package client talks to the portal server on behalf of the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/laskarbuah/freelance-portal/internal/upstream"
)

const (
	proxyPrefix       = "/api/freelance"
	attendanceCtrl    = "FreelanceAbsensi"
	profileCtrl       = "FreelanceProfile"
	uploadPath        = "/api/upload-s3"
	uploadProfilePath = "/api/upload-profile-s3"
	defaultPhotoType  = "image/jpeg"
	defaultTimeout    = 30 * time.Second
)

// TransportError is a network-level failure reaching the portal
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client represents an HTTP client for the portal server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new portal client
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// LoginRequest represents the credential exchange body
type LoginRequest struct {
	KodeUser   string `json:"kode_user"`
	Password   string `json:"password"`
	IP         string `json:"ip"`
	AplikasiID int    `json:"aplikasi_id"`
}

// LoginData is the identity returned on successful login
type LoginData struct {
	ID    int    `json:"id"`
	Nama  string `json:"nama"`
	Token string `json:"token"`
}

// LogoutRequest represents the logout notification body
type LogoutRequest struct {
	IDFreelance int `json:"id_freelance"`
}

// SubmitAttendanceRequest represents an attendance submission
type SubmitAttendanceRequest struct {
	IDAbsen     int    `json:"id_absen"`
	Foto        string `json:"foto"`
	Map         string `json:"map"`
	IDFreelance int    `json:"id_freelance"`
}

// Record is an upstream object whose fields the portal does not interpret
type Record map[string]any

// UploadResponse is returned by both upload routes
type UploadResponse struct {
	URL     string `json:"url"`
	Success bool   `json:"success,omitempty"`
}

// Login exchanges credentials for a token
func (c *Client) Login(ctx context.Context, req LoginRequest) (upstream.Result[LoginData], error) {
	return call[LoginData](ctx, c, http.MethodPost, proxyPrefix+"/FreelanceLogin", "", req)
}

// Logout tells the upstream the token is no longer in use
func (c *Client) Logout(ctx context.Context, token string, idFreelance int) (upstream.Result[json.RawMessage], error) {
	return call[json.RawMessage](ctx, c, http.MethodPost, proxyPrefix+"/FreelanceLogout", token, LogoutRequest{IDFreelance: idFreelance})
}

// GetAttendanceList returns the attendance schedule for a user
func (c *Client) GetAttendanceList(ctx context.Context, token string, idFreelance int) (upstream.Result[[]Record], error) {
	path := fmt.Sprintf("%s/%s/GetList?id_freelance=%s", proxyPrefix, attendanceCtrl, url.QueryEscape(strconv.Itoa(idFreelance)))
	return call[[]Record](ctx, c, http.MethodGet, path, token, nil)
}

// SubmitAttendance records attendance with a previously uploaded photo URL
func (c *Client) SubmitAttendance(ctx context.Context, token string, req SubmitAttendanceRequest) (upstream.Result[json.RawMessage], error) {
	return call[json.RawMessage](ctx, c, http.MethodPost, fmt.Sprintf("%s/%s/SetAbsen", proxyPrefix, attendanceCtrl), token, req)
}

// GetProfile returns the profile detail for a user
func (c *Client) GetProfile(ctx context.Context, token string, idFreelance int) (upstream.Result[Record], error) {
	path := fmt.Sprintf("%s/%s/GetDetail?id_freelance=%s", proxyPrefix, profileCtrl, url.QueryEscape(strconv.Itoa(idFreelance)))
	return call[Record](ctx, c, http.MethodGet, path, token, nil)
}

// UploadPhoto stores attendance evidence under a generated key
func (c *Client) UploadPhoto(ctx context.Context, filename string, photo io.Reader) (upstream.Result[UploadResponse], error) {
	return c.upload(ctx, uploadPath, filename, photo, nil)
}

// UploadProfilePhoto stores the profile photo for kodeUser, replacing the previous one
func (c *Client) UploadProfilePhoto(ctx context.Context, kodeUser, filename string, photo io.Reader) (upstream.Result[UploadResponse], error) {
	return c.upload(ctx, uploadProfilePath, filename, photo, map[string]string{"kode_user": kodeUser})
}

func (c *Client) upload(ctx context.Context, path, filename string, photo io.Reader, fields map[string]string) (upstream.Result[UploadResponse], error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return upstream.Result[UploadResponse]{}, fmt.Errorf("failed to write form field: %w", err)
		}
	}

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = defaultPhotoType
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return upstream.Result[UploadResponse]{}, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := io.Copy(part, photo); err != nil {
		return upstream.Result[UploadResponse]{}, fmt.Errorf("failed to read photo: %w", err)
	}
	if err := mw.Close(); err != nil {
		return upstream.Result[UploadResponse]{}, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return upstream.Result[UploadResponse]{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return upstream.Result[UploadResponse]{}, &TransportError{Op: "upload photo", Err: err}
	}
	defer resp.Body.Close()

	return upstream.Decode[UploadResponse](resp)
}

// call sends a JSON request through the portal and decodes the tagged result
func call[T any](ctx context.Context, c *Client, method, path, token string, body any) (upstream.Result[T], error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return upstream.Result[T]{}, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return upstream.Result[T]{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return upstream.Result[T]{}, &TransportError{Op: method + " " + strings.SplitN(path, "?", 2)[0], Err: err}
	}
	defer resp.Body.Close()

	return upstream.Decode[T](resp)
}
