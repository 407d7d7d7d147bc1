package records

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relay-core/relay/internal/rbac"
	"github.com/relay-core/relay/internal/rpc"
)

type staticPermStore struct {
	perms map[int64][]string
}

func (s staticPermStore) PermissionsForUser(ctx context.Context, userID int64) ([]string, error) {
	return s.perms[userID], nil
}

func testRegistry(repo *memoryRepo) *rpc.Registry {
	perms := staticPermStore{perms: map[int64][]string{
		1: {rbac.PermRecordsView, rbac.PermRecordsEdit},
		2: {rbac.PermRecordsView, rbac.PermRecordsVerify},
		3: {rbac.PermRecordsView, rbac.PermRecordsCertify},
		9: {rbac.PermRecordsView},
	}}
	checker := rbac.NewChecker(rbac.NewService(perms, nil, 0, slog.Default()))
	reg := rpc.NewRegistry()
	reg.Mount("records", Routes(testService(repo), checker))
	return reg
}

func activeCall(userID int64) rpc.Ctx {
	return rpc.NewAuthenticatedCtx("req", rpc.Auth{UserID: userID, Active: true})
}

func TestProceduresRejectUnauthenticatedWithoutStoreAccess(t *testing.T) {
	repo := newMemoryRepo()
	reg := testRegistry(repo)

	_, err := reg.Dispatch(context.Background(), "records.list", json.RawMessage(`{}`), rpc.NewCtx("req"))

	var domain *rpc.Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, rpc.KindUnauthorized, domain.Kind)
	require.Zero(t, repo.reads, "no store read may happen before enforcement")
}

func TestProceduresRejectInactiveAccount(t *testing.T) {
	repo := newMemoryRepo()
	reg := testRegistry(repo)
	call := rpc.NewAuthenticatedCtx("req", rpc.Auth{UserID: 1, Active: false})

	_, err := reg.Dispatch(context.Background(), "records.list", json.RawMessage(`{}`), call)

	var domain *rpc.Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, rpc.KindForbidden, domain.Kind)
	require.Zero(t, repo.reads)
}

func TestProceduresEnforceFineGrainedPermissions(t *testing.T) {
	repo := newMemoryRepo()
	reg := testRegistry(repo)

	// User 9 may view but not create.
	_, err := reg.Dispatch(context.Background(), "records.create",
		json.RawMessage(`{"title":"not allowed"}`), activeCall(9))

	var domain *rpc.Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, rpc.KindForbidden, domain.Kind)
	require.Empty(t, repo.records)
}

func TestCreateProcedureRejectsEmptyTitle(t *testing.T) {
	repo := newMemoryRepo()
	reg := testRegistry(repo)

	_, err := reg.Dispatch(context.Background(), "records.create",
		json.RawMessage(`{"title":""}`), activeCall(1))

	var domain *rpc.Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, rpc.KindValidation, domain.Kind)
	require.Empty(t, repo.records, "no row may be inserted")
}

func TestCreateProcedureRejectsUndeclaredFields(t *testing.T) {
	repo := newMemoryRepo()
	reg := testRegistry(repo)

	_, err := reg.Dispatch(context.Background(), "records.create",
		json.RawMessage(`{"title":"x","certifiedBy":99}`), activeCall(1))

	var domain *rpc.Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, rpc.KindValidation, domain.Kind)
	require.Empty(t, repo.records)
}

func TestFullLifecycleThroughDispatch(t *testing.T) {
	repo := newMemoryRepo()
	reg := testRegistry(repo)
	ctx := context.Background()

	out, err := reg.Dispatch(ctx, "records.create", json.RawMessage(`{"title":"annual report"}`), activeCall(1))
	require.NoError(t, err)
	created, ok := out.(recordOutput)
	require.True(t, ok)
	require.Equal(t, string(StatusDraft), created.Status)

	ref, err := json.Marshal(recordRef{ID: created.ID})
	require.NoError(t, err)

	_, err = reg.Dispatch(ctx, "records.submit", ref, activeCall(1))
	require.NoError(t, err)

	_, err = reg.Dispatch(ctx, "records.verify", ref, activeCall(2))
	require.NoError(t, err)

	// The verifier holds the certify permission here, but separation of
	// duties still rejects the second lifecycle step.
	perms := staticPermStore{perms: map[int64][]string{2: {rbac.PermRecordsCertify}}}
	checker := rbac.NewChecker(rbac.NewService(perms, nil, 0, slog.Default()))
	sameActor := rpc.NewRegistry()
	sameActor.Mount("records", Routes(testService(repo), checker))
	_, err = sameActor.Dispatch(ctx, "records.certify", ref, activeCall(2))
	var domain *rpc.Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, rpc.KindForbidden, domain.Kind)

	out, err = reg.Dispatch(ctx, "records.certify", ref, activeCall(3))
	require.NoError(t, err)
	certified, ok := out.(recordOutput)
	require.True(t, ok)
	require.Equal(t, string(StatusCertified), certified.Status)
	require.NotNil(t, certified.CertifiedBy)
	require.Equal(t, int64(3), *certified.CertifiedBy)
}

func TestListProcedureOutputShape(t *testing.T) {
	repo := newMemoryRepo()
	reg := testRegistry(repo)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d", "e"} {
		_, err := reg.Dispatch(ctx, "records.create",
			json.RawMessage(`{"title":"`+title+`"}`), activeCall(1))
		require.NoError(t, err)
	}

	out, err := reg.Dispatch(ctx, "records.list", json.RawMessage(`{"page":1,"pageSize":2}`), activeCall(9))
	require.NoError(t, err)
	result, ok := out.(rpc.ListResult[recordOutput])
	require.True(t, ok)
	require.Len(t, result.Items, 2)
	require.Equal(t, 5, result.TotalCount)
	require.Equal(t, 3, result.TotalPages)
	require.Equal(t, 1, result.Page)
	require.Equal(t, 2, result.PageSize)
}

func TestListProcedureRejectsUnknownSort(t *testing.T) {
	reg := testRegistry(newMemoryRepo())

	_, err := reg.Dispatch(context.Background(), "records.list",
		json.RawMessage(`{"sortBy":"password_hash"}`), activeCall(9))

	var domain *rpc.Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, rpc.KindValidation, domain.Kind)
}

func TestGetProcedureRejectsMalformedID(t *testing.T) {
	repo := newMemoryRepo()
	reg := testRegistry(repo)

	_, err := reg.Dispatch(context.Background(), "records.get",
		json.RawMessage(`{"id":"not-a-uuid"}`), activeCall(1))

	var domain *rpc.Error
	require.ErrorAs(t, err, &domain)
	require.Equal(t, rpc.KindValidation, domain.Kind)
	require.Zero(t, repo.reads)
}
