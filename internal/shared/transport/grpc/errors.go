package grpc

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"

	"umpire/internal/shared/transport"
)

// Status 把业务码转成 grpc status，业务码原样放进 details，客户端用 BizCode 取回。
func Status(bizCode int, msg string) error {
	st := status.New(grpcCode(bizCode), msg)
	detail, err := structpb.NewStruct(map[string]any{"code": bizCode})
	if err != nil {
		return st.Err()
	}
	if withDetail, err := st.WithDetails(protoadapt.MessageV1Of(detail)); err == nil {
		st = withDetail
	}
	return st.Err()
}

// BizCode 从 grpc 错误里取回业务码；没有 details 时按 grpc code 粗略映射。
func BizCode(err error) (int, string) {
	if err == nil {
		return transport.OK, ""
	}
	st, ok := status.FromError(err)
	if !ok {
		return transport.SystemError, err.Error()
	}
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		if v, ok := s.GetFields()["code"]; ok {
			return int(v.GetNumberValue()), st.Message()
		}
	}
	switch st.Code() {
	case codes.Unavailable:
		return transport.UpstreamUnavailable, st.Message()
	case codes.DeadlineExceeded:
		return transport.UpstreamTimeout, st.Message()
	case codes.InvalidArgument:
		return transport.InvalidParam, st.Message()
	default:
		return transport.SystemError, st.Message()
	}
}

func grpcCode(bizCode int) codes.Code {
	switch bizCode {
	case transport.OK:
		return codes.OK
	case transport.InvalidParam:
		return codes.InvalidArgument
	case transport.SessionInvalid:
		return codes.Unauthenticated
	case transport.Forbidden:
		return codes.PermissionDenied
	case transport.NotFound:
		return codes.NotFound
	case transport.ActionRejected, transport.TurnRejected, transport.StateRejected:
		return codes.FailedPrecondition
	case transport.ResyncRequired:
		return codes.Aborted
	case transport.RateLimited:
		return codes.ResourceExhausted
	case transport.UpstreamUnavailable:
		return codes.Unavailable
	case transport.UpstreamTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}
