package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campus-access/pkg/logging"
)

func TestShouldSuggest(t *testing.T) {
	assert.False(t, ShouldSuggest("short text"))
	assert.False(t, ShouldSuggest("exactly twenty chars"))
	assert.True(t, ShouldSuggest("exactly twenty chars!"))
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Graham", "Graham", true},
		{"monroe.", "Monroe", true},
		{"McNair Hall", "McNair", true},
		{"Suggested building: Martin", "Martin", true},
		{"Library", "", false},
		{"Martin or Graham", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestPromptListsBuildings(t *testing.T) {
	p := Prompt("Need the server room")
	assert.Contains(t, p, "McNair, Martin, Graham, Monroe")
	assert.Contains(t, p, "Justification: Need the server room")
}

func TestKeywordSuggester(t *testing.T) {
	s := NewKeywordSuggester()
	ctx := context.Background()

	tests := []struct {
		in   string
		want string
	}{
		{"Needs access for senior design project research.", "McNair"},
		{"Maintaining the server rack and network switches", "Martin"},
		{"Finishing architecture models in the design studio", "Graham"},
		{"Running chemistry experiments overnight", "Monroe"},
		{"Weekend work", "McNair"},
	}
	for _, tt := range tests {
		got, err := s.Suggest(ctx, tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func chatServer(t *testing.T, status int, answer string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if assert.Len(t, req.Messages, 1) {
			assert.Contains(t, req.Messages[0].Content, "Justification:")
		}

		w.WriteHeader(status)
		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: answer}})
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPSuggester(t *testing.T) {
	srv := chatServer(t, http.StatusOK, " Monroe\n")
	defer srv.Close()

	s := NewHTTPSuggester(HTTPConfig{Endpoint: srv.URL, APIKey: "key"}, logging.Nop())
	got, err := s.Suggest(context.Background(), "Running chemistry experiments overnight")
	require.NoError(t, err)
	assert.Equal(t, "Monroe", got)
}

func TestHTTPSuggesterErrors(t *testing.T) {
	bad := chatServer(t, http.StatusOK, "The library")
	defer bad.Close()
	failing := chatServer(t, http.StatusInternalServerError, "Monroe")
	defer failing.Close()

	for _, endpoint := range []string{bad.URL, failing.URL, "http://127.0.0.1:1/unreachable"} {
		s := NewHTTPSuggester(HTTPConfig{Endpoint: endpoint, APIKey: "key"}, logging.Nop())
		_, err := s.Suggest(context.Background(), "Running chemistry experiments overnight")
		assert.ErrorIs(t, err, ErrExternalService, endpoint)
	}
}
