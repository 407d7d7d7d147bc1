package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/relay-core/relay/internal/identity"
	"github.com/relay-core/relay/internal/rbac"
	"github.com/relay-core/relay/internal/records"
	"github.com/relay-core/relay/internal/rpc"
	"github.com/relay-core/relay/internal/shared"
)

type e2eUserStore struct {
	user identity.User
}

func (s *e2eUserStore) FindByID(ctx context.Context, id int64) (identity.User, error) {
	if id != s.user.ID {
		return identity.User{}, identity.ErrUserNotFound
	}
	return s.user, nil
}

func (s *e2eUserStore) FindByEmail(ctx context.Context, email string) (identity.User, error) {
	if email != s.user.Email {
		return identity.User{}, identity.ErrUserNotFound
	}
	return s.user, nil
}

type e2ePermStore struct {
	perms []string
}

func (s *e2ePermStore) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	return s.perms, nil
}

type e2eRepo struct {
	store  map[uuid.UUID]records.Record
	audits []shared.AuditLog
	clock  time.Time
}

func newE2ERepo() *e2eRepo {
	return &e2eRepo{
		store: make(map[uuid.UUID]records.Record),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *e2eRepo) WithTx(ctx context.Context, fn func(context.Context, records.TxRepository) error) error {
	return fn(ctx, &e2eTx{repo: r})
}

func (r *e2eRepo) GetRecord(ctx context.Context, id uuid.UUID) (records.Record, error) {
	rec, ok := r.store[id]
	if !ok {
		return records.Record{}, records.ErrNotFound
	}
	return rec, nil
}

func (r *e2eRepo) ListRecords(ctx context.Context, filter records.ListFilter) ([]records.Record, int, error) {
	var out []records.Record
	for _, rec := range r.store {
		if filter.Status != "" && rec.Status != filter.Status {
			continue
		}
		out = append(out, rec)
	}
	return out, len(out), nil
}

func (r *e2eRepo) StaleDraftIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

type e2eTx struct {
	repo *e2eRepo
}

func (t *e2eTx) GetRecordForUpdate(ctx context.Context, id uuid.UUID) (records.Record, error) {
	return t.repo.GetRecord(ctx, id)
}

func (t *e2eTx) InsertRecord(ctx context.Context, rec records.Record) error {
	t.repo.clock = t.repo.clock.Add(time.Minute)
	rec.CreatedAt = t.repo.clock
	rec.UpdatedAt = t.repo.clock
	t.repo.store[rec.ID] = rec
	return nil
}

func (t *e2eTx) UpdateRecord(ctx context.Context, rec records.Record) error {
	if _, ok := t.repo.store[rec.ID]; !ok {
		return records.ErrNotFound
	}
	t.repo.clock = t.repo.clock.Add(time.Minute)
	rec.UpdatedAt = t.repo.clock
	t.repo.store[rec.ID] = rec
	return nil
}

func (t *e2eTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

type envelope struct {
	OK    json.RawMessage     `json:"ok"`
	Error *rpc.TransportError `json:"error"`
}

func newTestServer(t *testing.T, perms []string) *httptest.Server {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &Config{AppEnv: "development", AppRequestTimeout: 5 * time.Second}

	tokens := identity.NewTokenService("e2e-signing-key", "relay", time.Hour)
	userStore := &e2eUserStore{user: identity.User{
		ID:           7,
		Email:        "ops@example.com",
		Name:         "Ops",
		PasswordHash: string(hash),
		IsActive:     true,
		Roles:        []string{"operator"},
	}}
	identityService := identity.NewService(userStore, tokens)
	builder := identity.NewBuilder(tokens, userStore, nil, 0, logger)

	rbacService := rbac.NewService(&e2ePermStore{perms: perms}, nil, 0, logger)
	checker := rbac.NewChecker(rbacService)

	recordsService := records.NewService(newE2ERepo(), nil)

	registry := BuildRegistry(RegistryParams{
		Logger:   logger,
		Identity: identityService,
		Records:  recordsService,
		Checker:  checker,
	})

	router := NewRouter(RouterParams{
		Logger:   logger,
		Config:   cfg,
		Builder:  builder,
		Registry: registry,
		Mapper:   rpc.NewErrorMapper(logger, false),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func callRPC(t *testing.T, srv *httptest.Server, procedure, token string, body any) (int, envelope) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/rpc/"+procedure, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()

	status, env := callRPC(t, srv, "identity.login", "", map[string]string{
		"email":    "ops@example.com",
		"password": "correct horse",
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, env.Error)

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.OK, &out))
	require.NotEmpty(t, out.Token)
	return out.Token
}

func TestRPCEndToEnd(t *testing.T) {
	srv := newTestServer(t, []string{rbac.PermRecordsView, rbac.PermRecordsEdit})
	token := login(t, srv)

	status, env := callRPC(t, srv, "records.create", token, map[string]string{
		"title": "quarterly filing",
	})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, env.Error)

	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.OK, &created))
	require.Equal(t, "DRAFT", created.Status)

	status, env = callRPC(t, srv, "records.get", token, map[string]string{"id": created.ID})
	require.Equal(t, http.StatusOK, status)
	require.Nil(t, env.Error)
}

func TestRPCRejectsMissingToken(t *testing.T) {
	srv := newTestServer(t, nil)

	status, env := callRPC(t, srv, "records.create", "", map[string]string{"title": "x"})
	require.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	require.Equal(t, rpc.CodeUnauthorized, env.Error.Code)
}

func TestRPCRejectsMissingPermission(t *testing.T) {
	srv := newTestServer(t, []string{rbac.PermRecordsView})
	token := login(t, srv)

	status, env := callRPC(t, srv, "records.create", token, map[string]string{"title": "x"})
	require.Equal(t, http.StatusForbidden, status)
	require.NotNil(t, env.Error)
	require.Equal(t, rpc.CodeForbidden, env.Error.Code)
}

func TestRPCRejectsUndeclaredField(t *testing.T) {
	srv := newTestServer(t, []string{rbac.PermRecordsEdit})
	token := login(t, srv)

	status, env := callRPC(t, srv, "records.create", token, map[string]string{
		"title":    "x",
		"surprise": "boom",
	})
	require.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, env.Error)
	require.Equal(t, rpc.CodeBadRequest, env.Error.Code)
}

func TestRPCUnknownProcedureIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	token := login(t, srv)

	status, env := callRPC(t, srv, "records.destroy", token, map[string]string{})
	require.Equal(t, http.StatusNotFound, status)
	require.NotNil(t, env.Error)
	require.Equal(t, rpc.CodeNotFound, env.Error.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
