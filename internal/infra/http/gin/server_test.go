package ginserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"adboard/internal/app/commands"
	chatapp "adboard/internal/app/handlers/chat"
	"adboard/internal/app/middleware"
	"adboard/internal/app/queries"
	"adboard/internal/infra/config"
	"adboard/internal/infra/obs"
	"adboard/internal/infra/storage/memory"
)

type testServer struct {
	http  http.Handler
	users *memory.UserDirectory
	ads   *memory.AdDirectory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo := memory.NewConversationRepository()
	ads := memory.NewAdDirectory()
	users := memory.NewUserDirectory()
	box := memory.NewOutbox()
	factory := memory.Factory{ConversationsRepo: repo}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, chatapp.SendMessageCommand{}.Key(), &chatapp.SendMessageHandler{
		UoWFactory: factory, Outbox: box,
	})
	commands.RegisterHandler(commandBus, chatapp.GetMessagesCommand{}.Key(), &chatapp.GetMessagesHandler{
		UoWFactory: factory,
	})
	commands.RegisterHandler(commandBus, chatapp.FlagSuspiciousCommand{}.Key(), &chatapp.FlagSuspiciousHandler{
		UoWFactory: factory, Outbox: box,
	})
	commands.RegisterHandler(commandBus, chatapp.DeactivateCommand{}.Key(), &chatapp.DeactivateHandler{
		UoWFactory: factory,
	})
	commands.RegisterHandler(commandBus, chatapp.SetDisplayNameCommand{}.Key(), &chatapp.SetDisplayNameHandler{
		Directory: users,
	})
	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, chatapp.ListConversationsQuery{}.Key(), &chatapp.ListConversationsHandler{
		UoWFactory: factory, Ownership: ads, Directory: users,
	})

	chained := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(memory.NewIdempotencyStore(), nil),
		middleware.Transaction(factory, nil),
		middleware.OutboxFlush(box),
	)

	server := NewServer(config.Config{Env: "test", HTTPAddr: ":0"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Chat: ChatHandler{
			Commands: chained,
			Queries:  middleware.ChainQueries(queryBus),
		},
		AuthMiddleware: AuthMiddleware{Resolver: users}.Handle,
	})
	return &testServer{http: server.Handler, users: users, ads: ads}
}

func (s *testServer) seedUser(id, name string) string {
	token := "token-" + id
	s.users.Put(id, name, token)
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(payload))
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	s.http.ServeHTTP(recorder, req)
	return recorder
}

func sendBody(adID, recipient, content string) map[string]any {
	return map[string]any{"ad_id": adID, "recipient_id": recipient, "content": content}
}

func TestServer_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(t, http.MethodGet, "/api/v1/chat/conversations", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations", "bogus", nil)
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestServer_SendAndReadRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := srv.seedUser("alice", "Alice")
	bobToken := srv.seedUser("bob", "Bob the Seller")
	srv.ads.Put("ad-1", "bob")

	resp := srv.do(t, http.MethodPost, "/api/v1/chat/messages", aliceToken, sendBody("ad-1", "bob", "is this available?"))
	require.Equal(t, http.StatusCreated, resp.Code)
	var sent struct {
		ConversationID string `json:"conversation_id"`
		Message        struct {
			Seq    int64 `json:"seq"`
			IsRead bool  `json:"is_read"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &sent))
	require.NotEmpty(t, sent.ConversationID)
	require.Equal(t, int64(1), sent.Message.Seq)

	// Bob opens the thread: the message flips to read.
	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations/"+sent.ConversationID, bobToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var page struct {
		Messages []struct {
			Content string `json:"content"`
			IsRead  bool   `json:"is_read"`
		} `json:"messages"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &page))
	require.Equal(t, 1, page.Pagination.Total)
	require.True(t, page.Messages[0].IsRead)

	// Alice's list shows the peer's display name.
	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations?filter=others-ads", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Items []struct {
			ID              string `json:"id"`
			PeerDisplayName string `json:"peer_display_name"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	require.Equal(t, sent.ConversationID, list.Items[0].ID)
	require.Equal(t, "Bob the Seller", list.Items[0].PeerDisplayName)

	// Once the ad is deleted the thread drops out of both ownership
	// partitions, while the unfiltered view keeps it.
	srv.ads.Remove("ad-1")
	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations?filter=others-ads", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotContains(t, resp.Body.String(), sent.ConversationID)
	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations?filter=my-ads", bobToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotContains(t, resp.Body.String(), sent.ConversationID)
	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations", aliceToken, nil)
	require.Contains(t, resp.Body.String(), sent.ConversationID)
}

func TestServer_ErrorMapping(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := srv.seedUser("alice", "Alice")
	srv.seedUser("bob", "Bob")
	malloryToken := srv.seedUser("mallory", "Mallory")

	resp := srv.do(t, http.MethodPost, "/api/v1/chat/messages", aliceToken, sendBody("ad-1", "bob", "  "))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = srv.do(t, http.MethodPost, "/api/v1/chat/messages", aliceToken, sendBody("", "bob", "hello"))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations?filter=archived", aliceToken, nil)
	require.Equal(t, http.StatusBadRequest, resp.Code)

	created := srv.do(t, http.MethodPost, "/api/v1/chat/messages", aliceToken, sendBody("ad-1", "bob", "hello"))
	require.Equal(t, http.StatusCreated, created.Code)
	var sent struct {
		ConversationID string `json:"conversation_id"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &sent))

	// Outsiders cannot see the thread at all.
	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations/"+sent.ConversationID, malloryToken, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)

	resp = srv.do(t, http.MethodPost, "/api/v1/chat/messages", malloryToken, map[string]any{
		"conversation_id": sent.ConversationID, "content": "let me in",
	})
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations/missing", aliceToken, nil)
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestServer_IdempotentSend(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := srv.seedUser("alice", "Alice")
	srv.seedUser("bob", "Bob")

	send := func() *httptest.ResponseRecorder {
		payload, err := json.Marshal(sendBody("ad-1", "bob", "hello"))
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", strings.NewReader(string(payload)))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+aliceToken)
		req.Header.Set("Idempotency-Key", "req-42")
		recorder := httptest.NewRecorder()
		srv.http.ServeHTTP(recorder, req)
		return recorder
	}
	first := send()
	require.Equal(t, http.StatusCreated, first.Code)
	second := send()
	require.Equal(t, http.StatusCreated, second.Code)
	require.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestServer_ModerationEndpoints(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := srv.seedUser("alice", "Alice")
	srv.seedUser("bob", "Bob")

	created := srv.do(t, http.MethodPost, "/api/v1/chat/messages", aliceToken, sendBody("ad-1", "bob", "hello"))
	var sent struct {
		ConversationID string `json:"conversation_id"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &sent))

	resp := srv.do(t, http.MethodPost, fmt.Sprintf("/api/v1/chat/conversations/%s/suspicious", sent.ConversationID), aliceToken, map[string]any{"reason": "spam"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations?filter=suspicious", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), sent.ConversationID)

	resp = srv.do(t, http.MethodDelete, "/api/v1/chat/conversations/"+sent.ConversationID, aliceToken, nil)
	require.Equal(t, http.StatusNoContent, resp.Code)

	resp = srv.do(t, http.MethodGet, "/api/v1/chat/conversations", aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	require.NotContains(t, resp.Body.String(), sent.ConversationID)
}

func TestServer_SetDisplayName(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := srv.seedUser("alice", "Alice")

	resp := srv.do(t, http.MethodPost, "/api/v1/chat/display-name", aliceToken, map[string]any{"display_name": " Alice M. "})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "Alice M.")

	resp = srv.do(t, http.MethodPost, "/api/v1/chat/display-name", aliceToken, map[string]any{"display_name": "  "})
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestServer_HealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/livez", "", nil).Code)
	require.Equal(t, http.StatusOK, srv.do(t, http.MethodGet, "/readyz", "", nil).Code)
}
