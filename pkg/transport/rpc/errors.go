package rpc

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/plaenen/refactory/pkg/domain"
	"github.com/plaenen/refactory/pkg/eventsourcing"
	"github.com/plaenen/refactory/pkg/factory"
)

// toConnectError maps command errors to connect codes. Rejections become
// FailedPrecondition and carry their code in RejectionCodeHeader.
func toConnectError(err error) *connect.Error {
	if r, ok := factory.IsRejection(err); ok {
		ce := connect.NewError(connect.CodeFailedPrecondition, errors.New(r.Message))
		ce.Meta().Set(RejectionCodeHeader, r.Code)
		return ce
	}

	var verr *factory.ValidationError
	switch {
	case errors.As(err, &verr), errors.Is(err, eventsourcing.ErrInvalidCommand):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, eventsourcing.ErrCommandNotFound):
		return connect.NewError(connect.CodeUnimplemented, err)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

// fromConnectError restores rejections sent by the server so errors.Is
// works against the factory sentinels.
func fromConnectError(err error) error {
	var ce *connect.Error
	if !errors.As(err, &ce) || ce.Code() != connect.CodeFailedPrecondition {
		return err
	}
	code := ce.Meta().Get(RejectionCodeHeader)
	if _, ok := factory.RejectionByCode(code); !ok {
		return err
	}
	return &factory.Rejection{Code: code, Message: ce.Message()}
}
