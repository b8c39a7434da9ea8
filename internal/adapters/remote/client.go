package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/services"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/workers"
)

var (
	_ services.RemoteDocuments = (*Client)(nil)
	_ workers.DocumentWriter   = (*Client)(nil)
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

const (
	documentPath = "/api/v1/me/document"
	eventsPath   = "/api/v1/me/document/events"
	maxEventSize = 1 << 20
)

// Client talks to the VibeDesk API on behalf of one device.
type Client struct {
	baseURL string
	http    *http.Client
	stream  *http.Client
	logger  *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		stream:  &http.Client{},
		logger:  logger,
	}
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	} `json:"user"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Register(ctx context.Context, email, password, displayName string) (domain.UserContext, error) {
	return c.authenticate(ctx, "/api/v1/auth/register", credentials{Email: email, Password: password, DisplayName: displayName})
}

func (c *Client) Login(ctx context.Context, email, password string) (domain.UserContext, error) {
	return c.authenticate(ctx, "/api/v1/auth/login", credentials{Email: email, Password: password})
}

func (c *Client) authenticate(ctx context.Context, path string, body credentials) (domain.UserContext, error) {
	var out authResponse
	err := c.do(ctx, http.MethodPost, path, domain.UserContext{}, body, &out)
	switch {
	case isStatus(err, http.StatusUnauthorized):
		return domain.UserContext{}, domain.ErrInvalidCredentials
	case isStatus(err, http.StatusConflict):
		return domain.UserContext{}, domain.ErrEmailAlreadyExists
	case err != nil:
		return domain.UserContext{}, err
	}
	return domain.UserContext{UserID: out.User.ID, Email: out.User.Email, Token: out.Token}, nil
}

func (c *Client) Get(ctx context.Context, uc domain.UserContext) (*domain.StoredDocument, error) {
	var doc domain.StoredDocument
	err := c.do(ctx, http.MethodGet, documentPath, uc, nil, &doc)
	if isStatus(err, http.StatusNotFound) {
		return nil, domain.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	doc.UserID = uc.UserID
	return &doc, nil
}

func (c *Client) Merge(ctx context.Context, uc domain.UserContext, patch domain.DocumentPatch) error {
	err := c.do(ctx, http.MethodPatch, documentPath, uc, patch, nil)
	if isStatus(err, http.StatusForbidden) {
		return fmt.Errorf("%w: %v", domain.ErrForbiddenField, err)
	}
	return err
}

// Watch opens the server-sent event stream. The channel closes when ctx is
// cancelled or the connection drops; callers reconnect.
func (c *Client) Watch(ctx context.Context, uc domain.UserContext) (<-chan *domain.StoredDocument, error) {
	req, err := c.newRequest(ctx, http.MethodGet, eventsPath, uc, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	out := make(chan *domain.StoredDocument, 1)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		err := readEvents(resp.Body, func(event string, data []byte) bool {
			if event != "document" {
				return true
			}
			var doc domain.StoredDocument
			if err := json.Unmarshal(data, &doc); err != nil {
				c.logger.Debug("skipping malformed document event", zap.Error(err))
				return true
			}
			doc.UserID = uc.UserID

			select {
			case out <- &doc:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil && ctx.Err() == nil {
			c.logger.Debug("event stream closed", zap.Error(err))
		}
	}()
	return out, nil
}

// readEvents parses a text/event-stream body and calls fn for every complete
// event until fn returns false or the body ends.
func readEvents(body io.Reader, fn func(event string, data []byte) bool) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventSize)

	var event string
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if data.Len() > 0 {
				name := event
				if name == "" {
					name = "message"
				}
				if !fn(name, bytes.TrimSuffix(data.Bytes(), []byte("\n"))) {
					return nil
				}
			}
			event = ""
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data.WriteString(value)
			data.WriteByte('\n')
		}
	}
	return scanner.Err()
}

func (c *Client) newRequest(ctx context.Context, method, path string, uc domain.UserContext, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("remote: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uc.Token != "" {
		req.Header.Set("Authorization", "Bearer "+uc.Token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, uc domain.UserContext, body, out any) error {
	req, err := c.newRequest(ctx, method, path, uc, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remote: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode response: %w", err)
	}
	return nil
}

type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.Code)
	}
	return fmt.Sprintf("%s: %d: %s", ErrUnexpectedStatus, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

func statusError(resp *http.Response) error {
	var body errorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	return &StatusError{Code: resp.StatusCode, Message: body.Error}
}

func isStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
