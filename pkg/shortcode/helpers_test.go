package shortcode

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

var (
	testScopes = []string{"foo", "bar"}
	testNow    = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

// call is one request seen by fakeTransport
type call struct {
	Method string
	Path   string
	Body   map[string]any
}

type scripted struct {
	status int
	body   string
	err    error
}

// fakeTransport answers calls from per-endpoint scripts. The last scripted
// response of an endpoint keeps being returned once the others are used up.
type fakeTransport struct {
	mu      sync.Mutex
	scripts map[string][]scripted
	calls   []call
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{scripts: make(map[string][]scripted)}
}

func (f *fakeTransport) on(method, path string, status int, body string) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.scripts[key] = append(f.scripts[key], scripted{status: status, body: body})
	return f
}

func (f *fakeTransport) fail(method, path string, err error) *fakeTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.scripts[key] = append(f.scripts[key], scripted{err: err})
	return f
}

func (f *fakeTransport) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := call{Method: method, Path: path}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &c.Body); err != nil {
			return nil, err
		}
	}
	f.calls = append(f.calls, c)

	key := method + " " + path
	queue := f.scripts[key]
	if len(queue) == 0 {
		return nil, fmt.Errorf("unexpected call %s", key)
	}
	next := queue[0]
	if len(queue) > 1 {
		f.scripts[key] = queue[1:]
	}

	if next.err != nil {
		return nil, next.err
	}
	return &Response{StatusCode: next.status, Path: path, Body: []byte(next.body)}, nil
}

// count returns how many calls were made to method and path
func (f *fakeTransport) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			n++
		}
	}
	return n
}

// bodies returns the request bodies sent to method and path, in order
func (f *fakeTransport) bodies(method, path string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, c := range f.calls {
		if c.Method == method && c.Path == path {
			out = append(out, c.Body)
		}
	}
	return out
}

// transportFunc adapts a function to the Transport interface
type transportFunc func(ctx context.Context, method, path string, body any) (*Response, error)

func (f transportFunc) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	return f(ctx, method, path, body)
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestClient returns a client for "clientId"/"clientSecret" requesting
// testScopes with a fixed clock and a 1ms poll interval
func newTestClient(tr Transport, opts ...Option) *Client {
	base := []Option{
		WithClientSecret("clientSecret"),
		WithTransport(tr),
		WithClock(func() time.Time { return testNow }),
		WithPollInterval(time.Millisecond),
	}
	return NewClient("clientId", testScopes, append(base, opts...)...)
}

const (
	shortcodeCreated = `{"code":"ABC123","expires_in":120,"handle":"sc_handle"}`
	authorizedBody   = `{"code":"oauth_authorization_code"}`
	tokenBody        = `{"access_token":"access_token","refresh_token":"refresh_token","expires_in":60000}`
	checkHandlePath  = "oauth/shortcode/check/sc_handle"
)
