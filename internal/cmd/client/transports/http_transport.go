package transports

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/bytedance/sonic"
)

var jsonAPI = sonic.ConfigStd

// HTTPTransport implements EventsTransport over the HTTP gateway, using
// Server-Sent Events for subscriptions.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport constructs a transport for the gateway at baseURL. A nil
// client uses http.DefaultClient.
func NewHTTPTransport(baseURL string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Publish posts an event.
func (t *HTTPTransport) Publish(ctx context.Context, name string, data []byte) error {
	body, err := jsonAPI.Marshal(map[string]string{"name": name, "data": string(data)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/events/publish", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return httpError(resp)
	}
	return nil
}

// Subscribe opens an SSE stream and forwards each event.
func (t *HTTPTransport) Subscribe(ctx context.Context, names []string, onEvent func(Event) error) error {
	q := url.Values{}
	for _, n := range names {
		q.Add("name", n)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/v1/events/subscribe?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return httpError(resp)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue // event:, comments and blank separators
		}
		var ev struct {
			Name string `json:"name"`
			Data string `json:"data"`
		}
		if err := jsonAPI.UnmarshalFromString(data, &ev); err != nil {
			return fmt.Errorf("transports: bad sse payload: %w", err)
		}
		if err := onEvent(Event{Name: ev.Name, Data: []byte(ev.Data)}); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}

func httpError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if jsonAPI.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("http %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("http %d", resp.StatusCode)
}
