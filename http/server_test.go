package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fwojciec/siteclone"
	sitehttp "github.com/fwojciec/siteclone/http"
	"github.com/fwojciec/siteclone/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(id string) *siteclone.SessionSnapshot {
	return &siteclone.SessionSnapshot{
		ID:      id,
		RootURL: "https://x.com/",
		Status:  siteclone.Status{Phase: siteclone.PhaseInit},
	}
}

func decodeError(t *testing.T, resp *http.Response) (code, message string) {
	t.Helper()
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Code, body.Message
}

func TestServer_StartSession(t *testing.T) {
	t.Parallel()

	t.Run("starts a session", func(t *testing.T) {
		t.Parallel()

		var got siteclone.CloneRequest
		store := &mock.SessionStore{
			StartSessionFn: func(_ context.Context, req siteclone.CloneRequest) (*siteclone.SessionSnapshot, error) {
				got = req
				return snapshot("s1"), nil
			},
		}
		srv := httptest.NewServer(sitehttp.NewServer(store, nil, nil))
		defer srv.Close()

		resp, err := srv.Client().Post(srv.URL+"/sessions", "application/json",
			strings.NewReader(`{"url":"https://x.com","profile":"corporate","menus":[{"trigger":"Company","items":[{"name":"About","url":"https://x.com/about"}]}]}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "/sessions/s1", resp.Header.Get("Location"))
		var snap siteclone.SessionSnapshot
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
		assert.Equal(t, "s1", snap.ID)

		assert.Equal(t, "https://x.com", got.URL)
		assert.Equal(t, "corporate", got.Profile)
		require.Len(t, got.Menus, 1)
		assert.Equal(t, "About", got.Menus[0].Items[0].Name)
	})

	t.Run("rejects malformed bodies", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(sitehttp.NewServer(&mock.SessionStore{}, nil, nil))
		defer srv.Close()

		resp, err := srv.Client().Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{"url":`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		code, _ := decodeError(t, resp)
		assert.Equal(t, siteclone.EINVALID, code)
	})

	t.Run("maps store errors", func(t *testing.T) {
		t.Parallel()

		store := &mock.SessionStore{
			StartSessionFn: func(context.Context, siteclone.CloneRequest) (*siteclone.SessionSnapshot, error) {
				return nil, siteclone.Errorf(siteclone.ENOTFOUND, "unknown profile %q", "nope")
			},
		}
		srv := httptest.NewServer(sitehttp.NewServer(store, nil, nil))
		defer srv.Close()

		resp, err := srv.Client().Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{"url":"https://x.com","profile":"nope"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		code, msg := decodeError(t, resp)
		assert.Equal(t, siteclone.ENOTFOUND, code)
		assert.Contains(t, msg, "nope")
	})
}

func TestServer_FindSessions(t *testing.T) {
	t.Parallel()

	store := &mock.SessionStore{
		FindSessionByIDFn: func(_ context.Context, id string) (*siteclone.SessionSnapshot, error) {
			if id != "s1" {
				return nil, siteclone.Errorf(siteclone.ENOTFOUND, "session %s not found", id)
			}
			return snapshot("s1"), nil
		},
		FindSessionsFn: func(context.Context) ([]*siteclone.SessionSnapshot, error) {
			return []*siteclone.SessionSnapshot{snapshot("s1"), snapshot("s2")}, nil
		},
	}
	srv := httptest.NewServer(sitehttp.NewServer(store, nil, nil))
	t.Cleanup(srv.Close)

	t.Run("by id", func(t *testing.T) {
		t.Parallel()
		resp, err := srv.Client().Get(srv.URL + "/sessions/s1")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
	})

	t.Run("unknown id", func(t *testing.T) {
		t.Parallel()
		resp, err := srv.Client().Get(srv.URL + "/sessions/missing")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("list", func(t *testing.T) {
		t.Parallel()
		resp, err := srv.Client().Get(srv.URL + "/sessions")
		require.NoError(t, err)
		defer resp.Body.Close()
		var list []siteclone.SessionSnapshot
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
		assert.Len(t, list, 2)
	})

	t.Run("wrong method", func(t *testing.T) {
		t.Parallel()
		req, err := http.NewRequest(http.MethodDelete, srv.URL+"/sessions/s1", nil)
		require.NoError(t, err)
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestServer_CancelSession(t *testing.T) {
	t.Parallel()

	var cancelled string
	store := &mock.SessionStore{
		CancelSessionFn: func(_ context.Context, id string) error {
			cancelled = id
			return nil
		},
	}
	srv := httptest.NewServer(sitehttp.NewServer(store, nil, nil))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/sessions/s1/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "s1", cancelled)
}

func TestServer_Events(t *testing.T) {
	t.Parallel()

	t.Run("streams events as SSE messages", func(t *testing.T) {
		t.Parallel()

		store := &mock.SessionStore{
			SubscribeFn: func(_ context.Context, id string) (<-chan siteclone.Event, error) {
				ch := make(chan siteclone.Event, 3)
				ch <- siteclone.Event{SessionID: id, Phase: siteclone.PhaseMenu, Message: "detecting menus"}
				ch <- siteclone.Event{SessionID: id, Phase: siteclone.PhaseCapture, Current: 1, Total: 2, CurrentURL: "https://x.com/about", Outcome: siteclone.OutcomeCaptured}
				ch <- siteclone.Event{SessionID: id, Phase: siteclone.PhaseDone, Current: 2, Total: 2}
				close(ch)
				return ch, nil
			},
		}
		srv := httptest.NewServer(sitehttp.NewServer(store, nil, nil))
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/sessions/s1/events")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		var events []siteclone.Event
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			require.True(t, strings.HasPrefix(line, "data: "), line)
			var e siteclone.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
			events = append(events, e)
		}
		require.NoError(t, scanner.Err())

		require.Len(t, events, 3)
		assert.Equal(t, siteclone.PhaseMenu, events[0].Phase)
		assert.Equal(t, siteclone.OutcomeCaptured, events[1].Outcome)
		assert.Equal(t, siteclone.PhaseDone, events[2].Phase)
		assert.Equal(t, "s1", events[2].SessionID)
	})

	t.Run("unknown session", func(t *testing.T) {
		t.Parallel()

		store := &mock.SessionStore{
			SubscribeFn: func(_ context.Context, id string) (<-chan siteclone.Event, error) {
				return nil, siteclone.Errorf(siteclone.ENOTFOUND, "session %s not found", id)
			},
		}
		srv := httptest.NewServer(sitehttp.NewServer(store, nil, nil))
		defer srv.Close()

		resp, err := srv.Client().Get(srv.URL + "/sessions/missing/events")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_DetectMenus(t *testing.T) {
	t.Parallel()

	t.Run("returns detected menus", func(t *testing.T) {
		t.Parallel()

		menus := &mock.MenuService{
			DetectMenusFn: func(_ context.Context, url string) ([]siteclone.MenuGroup, error) {
				return []siteclone.MenuGroup{{Trigger: "Company", Items: []siteclone.MenuItem{{Name: "About", URL: url + "about"}}}}, nil
			},
		}
		srv := httptest.NewServer(sitehttp.NewServer(&mock.SessionStore{}, menus, nil))
		defer srv.Close()

		resp, err := srv.Client().Post(srv.URL+"/detect", "application/json", strings.NewReader(`{"url":"https://x.com/"}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			URL   string                `json:"url"`
			Menus []siteclone.MenuGroup `json:"menus"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Menus, 1)
		assert.Equal(t, "https://x.com/about", body.Menus[0].Items[0].URL)
	})

	t.Run("root load failure", func(t *testing.T) {
		t.Parallel()

		menus := &mock.MenuService{
			DetectMenusFn: func(context.Context, string) ([]siteclone.MenuGroup, error) {
				return nil, siteclone.Errorf(siteclone.EROOTLOAD, "root page unreachable")
			},
		}
		srv := httptest.NewServer(sitehttp.NewServer(&mock.SessionStore{}, menus, nil))
		defer srv.Close()

		resp, err := srv.Client().Post(srv.URL+"/detect", "application/json", strings.NewReader(`{"url":"https://x.com/"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		t.Parallel()

		menus := &mock.MenuService{
			DetectMenusFn: func(context.Context, string) ([]siteclone.MenuGroup, error) {
				return nil, nil
			},
		}
		srv := httptest.NewServer(sitehttp.NewServer(&mock.SessionStore{}, menus, nil))
		defer srv.Close()

		resp, err := srv.Client().Post(srv.URL+"/detect", "application/json", strings.NewReader(`{"url":"https://x.com/"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.JSONEq(t, `[]`, string(body["menus"]))
	})

	t.Run("disabled without a menu service", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(sitehttp.NewServer(&mock.SessionStore{}, nil, nil))
		defer srv.Close()

		resp, err := srv.Client().Post(srv.URL+"/detect", "application/json", strings.NewReader(`{"url":"https://x.com/"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_Serve(t *testing.T) {
	t.Parallel()

	store := &mock.SessionStore{
		FindSessionsFn: func(context.Context) ([]*siteclone.SessionSnapshot, error) {
			return []*siteclone.SessionSnapshot{}, nil
		},
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sitehttp.NewServer(store, nil, nil).Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/sessions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
