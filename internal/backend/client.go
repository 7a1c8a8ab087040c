// Package backend is the HTTP/JSON client for the Protocol Backend
// boundary. Every request carries the tester instance's session identifier
// so a backend serving multiple testers keeps their state isolated.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/grid-telemetry/dnp3-tester/internal/models"
)

// SessionHeader carries the per-instance session identifier.
const SessionHeader = "X-Session-ID"

const msgpackMIME = "application/msgpack"

// Client talks to one Protocol Backend.
type Client struct {
	baseURL   string
	sessionID string
	http      *http.Client
}

// New creates a client with a fresh session identifier. The identifier is
// generated once and persists for the client's lifetime.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   baseURL,
		sessionID: uuid.New().String(),
		http:      &http.Client{Timeout: timeout},
	}
}

// SessionID returns the identifier sent with every request.
func (c *Client) SessionID() string { return c.sessionID }

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set(SessionHeader, c.sessionID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkAPI converts a success=false envelope into an error.
func checkAPI(resp models.APIResponse) error {
	if !resp.Success {
		if resp.Error == "" {
			return fmt.Errorf("backend rejected request")
		}
		return fmt.Errorf("backend rejected request: %s", resp.Error)
	}
	return nil
}

// ApplyConfig pushes the point table to the backend.
func (c *Client) ApplyConfig(ctx context.Context, cfg models.DeviceConfiguration) error {
	var resp models.APIResponse
	if err := c.do(ctx, http.MethodPost, "/api/config/apply", cfg, &resp); err != nil {
		return err
	}
	return checkAPI(resp)
}

// Connect starts a protocol session.
func (c *Client) Connect(ctx context.Context, req models.ConnectRequest) error {
	var resp models.APIResponse
	if err := c.do(ctx, http.MethodPost, "/api/connect", req, &resp); err != nil {
		return err
	}
	return checkAPI(resp)
}

// Disconnect stops the protocol session.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/disconnect", nil, nil)
}

// Read triggers a manual integrity poll. Master role only.
func (c *Client) Read(ctx context.Context) error {
	var resp models.APIResponse
	if err := c.do(ctx, http.MethodPost, "/api/read", nil, &resp); err != nil {
		return err
	}
	return checkAPI(resp)
}

// FetchData retrieves current point values and session counters.
func (c *Client) FetchData(ctx context.Context) (models.DataResponse, error) {
	var resp models.DataResponse
	err := c.do(ctx, http.MethodGet, "/api/data", nil, &resp)
	return resp, err
}

// FetchLogs retrieves the backend's full current log window.
func (c *Client) FetchLogs(ctx context.Context) ([]models.LogEntry, error) {
	var resp models.LogsResponse
	if err := c.do(ctx, http.MethodGet, "/api/logs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Logs, nil
}

// FetchFrames retrieves the backend's full current frame window. Frames
// carry raw bytes, so the client asks for msgpack and falls back to JSON
// when the server answers with it.
func (c *Client) FetchFrames(ctx context.Context) ([]models.FrameCapture, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/frames", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(SessionHeader, c.sessionID)
	req.Header.Set("Accept", msgpackMIME)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("GET /api/frames: status %d: %s", resp.StatusCode, data)
	}

	var frames models.FramesResponse
	if resp.Header.Get("Content-Type") == msgpackMIME {
		err = msgpack.NewDecoder(resp.Body).Decode(&frames)
	} else {
		err = json.NewDecoder(resp.Body).Decode(&frames)
	}
	if err != nil {
		return nil, fmt.Errorf("decode frames: %w", err)
	}
	return frames.Frames, nil
}

// AddPoint appends a single point to the session's point table.
func (c *Client) AddPoint(ctx context.Context, req models.AddPointRequest) error {
	var resp models.APIResponse
	if err := c.do(ctx, http.MethodPost, "/api/datapoints/add", req, &resp); err != nil {
		return err
	}
	return checkAPI(resp)
}

// ClearPoints removes every point from the session's point table.
func (c *Client) ClearPoints(ctx context.Context) error {
	var resp models.APIResponse
	if err := c.do(ctx, http.MethodPost, "/api/datapoints/clear", nil, &resp); err != nil {
		return err
	}
	return checkAPI(resp)
}

// Control issues one control phase. A transport failure is an error; a
// backend rejection comes back as a non-success ControlResponse.
func (c *Client) Control(ctx context.Context, req models.ControlRequest) (models.ControlResponse, error) {
	var resp models.ControlResponse
	err := c.do(ctx, http.MethodPost, "/api/control", req, &resp)
	return resp, err
}

// SerialPorts lists the backend's discoverable serial devices.
func (c *Client) SerialPorts(ctx context.Context) ([]string, error) {
	var resp models.SerialPortsResponse
	if err := c.do(ctx, http.MethodGet, "/api/serial_ports", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Ports, nil
}

// HostIP returns the backend's detected local address, possibly empty.
func (c *Client) HostIP(ctx context.Context) (string, error) {
	var resp models.HostIPResponse
	if err := c.do(ctx, http.MethodGet, "/api/host_ip", nil, &resp); err != nil {
		return "", err
	}
	return resp.IP, nil
}
