package relaysdk

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user@example.com",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(&Config{
		BaseURL:     srv.URL,
		DeviceID:    "dev-a",
		AccessToken: signedToken(t, time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorClass
	}{
		{401, ClassAuth},
		{403, ClassAuth},
		{408, ClassRetryable},
		{409, ClassRetryable},
		{423, ClassRetryable},
		{425, ClassRetryable},
		{429, ClassRetryable},
		{500, ClassRetryable},
		{503, ClassRetryable},
		{400, ClassPermanent},
		{404, ClassPermanent},
		{410, ClassPermanent},
	}
	for _, tc := range cases {
		err := NewAPIError(tc.status, "E_X", "x")
		assert.Equal(t, tc.want, Classify(err), "status %d", tc.status)
	}

	assert.Equal(t, ClassNone, Classify(nil))
	assert.Equal(t, ClassNetwork, Classify(&NetworkError{Op: "push", Err: errors.New("refused")}))
	assert.Equal(t, ClassAuth, Classify(ErrNoAccessToken))
	assert.True(t, ClassNetwork.Retryable())
	assert.False(t, ClassAuth.Retryable())
}

func TestPushPull(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sync/push", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dev-a", r.Header.Get(HeaderDeviceID))
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		var body PushRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		results := make([]PushResult, len(body.Events))
		for i, ev := range body.Events {
			results[i] = PushResult{EventID: ev.EventID, Accepted: ev.EventID != "bad", Seq: int64(i + 1)}
		}
		writeJSON(w, 200, PushResponse{Results: results})
	})
	mux.HandleFunc("GET /api/v1/sync/pull", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9", r.URL.Query().Get("since"))
		assert.Equal(t, "100", r.URL.Query().Get("limit"))
		writeJSON(w, 200, PullResponse{
			Events:     []SyncEvent{{Seq: 10, EventID: "e10"}, {Seq: 11, EventID: "e11"}},
			NextCursor: 11,
		})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	pushed, err := c.Sync.Push(ctx, []SyncEvent{{EventID: "ok"}, {EventID: "bad"}})
	require.NoError(t, err)
	require.Len(t, pushed.Results, 2)
	assert.True(t, pushed.Results[0].Accepted)
	assert.False(t, pushed.Results[1].Accepted)

	pulled, err := c.Sync.Pull(ctx, 9, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(11), pulled.NextCursor)
	assert.Len(t, pulled.Events, 2)
}

func TestAPIErrorEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/sync/pull", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusGone, map[string]string{"code": CodeCursorStale, "error": "cursor below watermark"})
	})
	mux.HandleFunc("POST /api/v1/sync/push", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "plain failure", http.StatusBadRequest)
	})
	c := newTestClient(t, mux)

	_, err := c.Sync.Pull(context.Background(), 0, 0)
	require.Error(t, err)
	assert.True(t, HasCode(err, CodeCursorStale))
	assert.Equal(t, http.StatusGone, StatusOf(err))
	assert.Equal(t, ClassPermanent, Classify(err))

	_, err = c.Sync.Push(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusOf(err))
	assert.False(t, errors.Is(err, ErrRelayUnavailable))
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New(&Config{BaseURL: srv.URL, AccessToken: signedToken(t, time.Now().Add(time.Hour))})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Sync.Cursor(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRelayUnavailable)
	assert.Equal(t, ClassNetwork, Classify(err))
}

func TestNoAccessToken(t *testing.T) {
	c, err := New(&Config{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Sync.Cursor(context.Background())
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

func TestTransparentRefresh(t *testing.T) {
	fresh := signedToken(t, time.Now().Add(time.Hour))
	var refreshed atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshed.Add(1)
		var body RefreshRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body.RefreshToken)
		writeJSON(w, 200, AuthTokens{AccessToken: fresh, RefreshToken: "refresh-2"})
	})
	mux.HandleFunc("GET /api/v1/sync/cursor", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+fresh, r.Header.Get("Authorization"))
		writeJSON(w, 200, CursorResponse{Cursor: 4})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var saved AuthTokens
	c, err := New(&Config{
		BaseURL:           srv.URL,
		AccessToken:       signedToken(t, time.Now().Add(-time.Minute)),
		RefreshToken:      "refresh-1",
		OnTokensRefreshed: func(tokens AuthTokens) { saved = tokens },
	})
	require.NoError(t, err)
	defer c.Close()

	cur, err := c.Sync.Cursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), cur.Cursor)

	_, err = c.Sync.Cursor(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), refreshed.Load())
	assert.Equal(t, "refresh-2", saved.RefreshToken)
	assert.Equal(t, "refresh-2", c.Tokens().RefreshToken)
}

func TestPairingFlow(t *testing.T) {
	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Second)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/pairing/session", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, PairingSession{PairingID: "p1", Code: "482913", IssuerPublicKey: "pk", ExpiresAt: expires})
	})
	mux.HandleFunc("POST /api/v1/pairing/resolve", func(w http.ResponseWriter, r *http.Request) {
		var body ResolvePairingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body.Code != "482913" {
			writeJSON(w, 404, map[string]string{"code": CodePairingNotFound, "error": "no such code"})
			return
		}
		writeJSON(w, 200, ResolvedPairing{PairingID: "p1", IssuerPublicKey: "pk", ExpiresAt: expires})
	})
	mux.HandleFunc("GET /api/v1/pairing/{id}/bundle", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "p1", r.PathValue("id"))
		writeJSON(w, 200, PairingBundle{EncryptedKeyBundle: "sealed"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	sess, err := c.Pairing.CreateSession(ctx, &CreatePairingRequest{IssuerPublicKey: "pk"})
	require.NoError(t, err)
	assert.Equal(t, "482913", sess.Code)
	assert.True(t, sess.ExpiresAt.Equal(expires))

	_, err = c.Pairing.Resolve(ctx, "000000")
	assert.True(t, HasCode(err, CodePairingNotFound))

	resolved, err := c.Pairing.Resolve(ctx, "482913")
	require.NoError(t, err)
	assert.Equal(t, "p1", resolved.PairingID)

	bundle, err := c.Pairing.Bundle(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "sealed", bundle)
}

func TestSnapshots(t *testing.T) {
	blob := []byte("encrypted snapshot")
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sync/snapshot", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		assert.Equal(t, Checksum(blob), r.Header.Get(HeaderSnapshotChecksum))
		assert.Equal(t, "12", r.Header.Get(HeaderSnapshotSeq))
		writeJSON(w, 200, SnapshotMeta{SnapshotID: "s1", Seq: 12, Checksum: Checksum(blob)})
	})
	mux.HandleFunc("GET /api/v1/sync/snapshot/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 404, map[string]string{"code": CodeSnapshotNotFound, "error": "none"})
	})
	mux.HandleFunc("GET /api/v1/sync/snapshot/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write(blob)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	meta, err := c.Snapshots.Upload(ctx, &SnapshotUpload{EventID: "ev", Seq: 12, KeyVersion: 1, Data: blob})
	require.NoError(t, err)
	assert.Equal(t, "s1", meta.SnapshotID)

	latest, err := c.Snapshots.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	data, err := c.Snapshots.Download(ctx, meta)
	require.NoError(t, err)
	assert.Equal(t, blob, data)

	_, err = c.Snapshots.Download(ctx, &SnapshotMeta{SnapshotID: "s1", Checksum: "sha256:00"})
	assert.True(t, HasCode(err, CodeSnapshotChecksum))
}

func TestWebsocketURL(t *testing.T) {
	assert.Equal(t, "wss://relay.example/api/v1/events", websocketURL("https://relay.example/"))
	assert.Equal(t, "ws://127.0.0.1:8080/api/v1/events", websocketURL("http://127.0.0.1:8080"))
}

func TestEventsSubscribe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"type":"events.available","seq":42}`))
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	})
	c := newTestClient(t, mux)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := c.Events.Subscribe(ctx)
	require.NoError(t, err)

	select {
	case n := <-ch:
		assert.Equal(t, NotificationEventsAvailable, n.Type)
		assert.Equal(t, int64(42), n.Seq)
	case <-ctx.Done():
		t.Fatal("no notification")
	}

	_, err = c.Events.Subscribe(ctx)
	assert.Error(t, err)

	c.Events.Close()
	_, open := <-ch
	for open {
		_, open = <-ch
	}
}
