package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// eventNamespace seeds deterministic idempotency keys so that a retried create for the
// same reservation interval is deduplicated by the provider.
var eventNamespace = uuid.MustParse("6f1c8f3e-4d0b-4c53-9a55-3b7de0a9c6a2")

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProvider talks to a JSON calendar API:
//
//	POST   {base}/events       -> 201 {"id": "..."}
//	DELETE {base}/events/{id}  -> 204 (404 maps to ErrEventNotFound)
type HTTPProvider struct {
	baseURL string
	token   string
	client  HTTPDoer
}

func NewHTTPProvider(baseURL, token string, timeout time.Duration, client HTTPDoer) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type createEventResponse struct {
	ID string `json:"id"`
}

// IdempotencyKey derives a stable key for the event's reservation, interval and generation.
// A retracted event is never handed back for a later generation.
func IdempotencyKey(ev Event) string {
	name := fmt.Sprintf("%s/%d/%d/%d", ev.ReservationID, ev.Start.UnixNano(), ev.End.UnixNano(), ev.Generation)
	return uuid.NewSHA1(eventNamespace, []byte(name)).String()
}

func (p *HTTPProvider) CreateEvent(ctx context.Context, ev Event) (string, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal calendar event: %w", err)
	}

	req, err := p.newRequest(ctx, http.MethodPost, p.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", IdempotencyKey(ev))

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar create_event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", statusError("create_event", resp)
	}

	var out createEventResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("calendar create_event: decode response: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("calendar create_event: response has no event id")
	}
	return out.ID, nil
}

func (p *HTTPProvider) DeleteEvent(ctx context.Context, eventID string) error {
	req, err := p.newRequest(ctx, http.MethodDelete, p.baseURL+"/events/"+url.PathEscape(eventID), nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calendar delete_event: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusAccepted:
		return nil
	case http.StatusNotFound, http.StatusGone:
		return ErrEventNotFound
	default:
		return statusError("delete_event", resp)
	}
}

func (p *HTTPProvider) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	return req, nil
}

func statusError(op string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{
		Operation:  op,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}
