package records

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/relay-core/relay/internal/rbac"
	"github.com/relay-core/relay/internal/rpc"
)

// listLimits bounds record listings.
var listLimits = rpc.ListLimits{
	DefaultPageSize: 20,
	MaxPageSize:     100,
	DefaultSort:     "created_at",
	SortFields:      []string{"created_at", "updated_at", "title"},
}

type createInput struct {
	Title          string `json:"title" validate:"required,min=1,max=200"`
	Body           string `json:"body,omitempty" validate:"omitempty,max=20000"`
	IdempotencyKey string `json:"idempotencyKey,omitempty" validate:"omitempty,max=128"`
}

type recordRef struct {
	ID string `json:"id" validate:"required,uuid"`
}

func (r recordRef) parse() (uuid.UUID, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return uuid.UUID{}, rpc.Validation("id must be a valid UUID")
	}
	return id, nil
}

type listInput struct {
	rpc.ListParams
	Status string `json:"status,omitempty" validate:"omitempty,oneof=DRAFT SUBMITTED VERIFIED CERTIFIED ARCHIVED"`
}

type recordOutput struct {
	ID          string    `json:"id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required"`
	Body        string    `json:"body,omitempty"`
	Status      string    `json:"status" validate:"required"`
	CreatedBy   int64     `json:"createdBy" validate:"required"`
	VerifiedBy  *int64    `json:"verifiedBy,omitempty"`
	CertifiedBy *int64    `json:"certifiedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toOutput(rec Record) recordOutput {
	return recordOutput{
		ID:          rec.ID.String(),
		Title:       rec.Title,
		Body:        rec.Body,
		Status:      string(rec.Status),
		CreatedBy:   rec.CreatedBy,
		VerifiedBy:  rec.VerifiedBy,
		CertifiedBy: rec.CertifiedBy,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

// Routes builds the records procedure registry. Every procedure is
// guarded; fine-grained permission checks run inside the handlers.
func Routes(service *Service, checker *rbac.Checker) *rpc.Registry {
	reg := rpc.NewRegistry()

	reg.Handle(rpc.GuardedMutation("create", func(ctx context.Context, call rpc.AuthCtx, in createInput) (recordOutput, error) {
		if err := checker.Require(ctx, call, rbac.PermRecordsEdit); err != nil {
			return recordOutput{}, err
		}
		rec, err := service.Create(ctx, call.Identity.UserID, CreateInput{
			Title:          in.Title,
			Body:           in.Body,
			IdempotencyKey: in.IdempotencyKey,
		})
		if err != nil {
			return recordOutput{}, err
		}
		return toOutput(rec), nil
	}))

	reg.Handle(rpc.GuardedQuery("get", func(ctx context.Context, call rpc.AuthCtx, in recordRef) (recordOutput, error) {
		if err := checker.Require(ctx, call, rbac.PermRecordsView); err != nil {
			return recordOutput{}, err
		}
		id, err := in.parse()
		if err != nil {
			return recordOutput{}, err
		}
		rec, err := service.Get(ctx, id)
		if err != nil {
			return recordOutput{}, err
		}
		return toOutput(rec), nil
	}))

	reg.Handle(rpc.GuardedQuery("list", func(ctx context.Context, call rpc.AuthCtx, in listInput) (rpc.ListResult[recordOutput], error) {
		if err := checker.Require(ctx, call, rbac.PermRecordsView); err != nil {
			return rpc.ListResult[recordOutput]{}, err
		}
		params, err := in.ListParams.Normalize(listLimits)
		if err != nil {
			return rpc.ListResult[recordOutput]{}, err
		}
		items, total, err := service.List(ctx, ListFilter{Status: Status(in.Status), Params: params})
		if err != nil {
			return rpc.ListResult[recordOutput]{}, err
		}
		out := make([]recordOutput, 0, len(items))
		for _, rec := range items {
			out = append(out, toOutput(rec))
		}
		return rpc.NewListResult(out, params, total), nil
	}))

	transition := func(name, perm string, run func(context.Context, int64, uuid.UUID) (Record, error)) {
		reg.Handle(rpc.GuardedMutation(name, func(ctx context.Context, call rpc.AuthCtx, in recordRef) (recordOutput, error) {
			if err := checker.Require(ctx, call, perm); err != nil {
				return recordOutput{}, err
			}
			id, err := in.parse()
			if err != nil {
				return recordOutput{}, err
			}
			rec, err := run(ctx, call.Identity.UserID, id)
			if err != nil {
				return recordOutput{}, err
			}
			return toOutput(rec), nil
		}))
	}

	transition("submit", rbac.PermRecordsEdit, service.Submit)
	transition("verify", rbac.PermRecordsVerify, service.Verify)
	transition("certify", rbac.PermRecordsCertify, service.Certify)
	transition("archive", rbac.PermRecordsEdit, service.Archive)

	return reg
}
