package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-access/internal/shared/eventbus"
	"campus-access/internal/shared/model"
)

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/requests?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/requests"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebSocketStreamsVisibleEvents(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn := dialWS(t, srv, "token="+s.token(t, "3"))
	assert.Eventually(t, func() bool { return s.h.gateway.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	// 其他楼栋的事件不推送给 cbrown
	rec := s.do(t, "POST", "/api/v1/requests", s.token(t, "1"), model.RequestInput{
		StudentID: "112233445", StudentName: "Peter Pan", BuildingID: 2, RoomID: 201,
		Semester: "Fall 2024", Justification: "Robotics lab work after hours.",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Request](t, rec)
	rec = s.do(t, "PATCH", "/api/v1/requests/"+created.ID+"/status", s.token(t, "4"), map[string]string{"status": "Approved"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, "PATCH", "/api/v1/requests/1/status", s.token(t, "3"), map[string]string{"status": "Under review"})
	require.Equal(t, http.StatusOK, rec.Code)

	msg := readMessage(t, conn)
	assert.Equal(t, "status", msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, "1", msg.Data.RequestID)
	assert.Equal(t, string(model.StatusPending), msg.Data.From)
	assert.Equal(t, string(model.StatusUnderReview), msg.Data.To)
	assert.Equal(t, eventbus.SourceDecision, msg.Data.Source)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping"}))
	assert.Equal(t, "pong", readMessage(t, conn).Type)
}

func TestWebSocketReplaysRecent(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	for _, st := range []string{"Under review", "Approved"} {
		rec := s.do(t, "PATCH", "/api/v1/requests/2/status", s.token(t, "3"), map[string]string{"status": st})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	conn := dialWS(t, srv, "recent=10&token="+s.token(t, "7"))
	first := readMessage(t, conn)
	second := readMessage(t, conn)
	assert.Equal(t, string(model.StatusUnderReview), first.Data.To)
	assert.Equal(t, string(model.StatusApproved), second.Data.To)
}

func TestWebSocketClientRemovedOnClose(t *testing.T) {
	s := newTestServer(t, nil)
	srv := httptest.NewServer(s.router)
	defer srv.Close()

	conn := dialWS(t, srv, "token="+s.token(t, "admin-1"))
	assert.Eventually(t, func() bool { return s.h.gateway.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return s.h.gateway.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
