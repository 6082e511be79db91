package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"umpire/modules/kit/logx"
	"umpire/modules/kit/tracex"
)

// AccessLog 记录一次请求从进入到应答的结果，WS、HTTP、gRPC 共用。
// 处理过程中通过 Annotate 追加对局维度的字段（game_id、player），应答时一起输出。
type AccessLog struct {
	BizCode     BizCode
	ErrorReason string

	action string
	start  time.Time
	fields []zap.Field
	coded  bool
}

type accessLogKey struct{}

// NewContextWithParent 在 parent 上挂一条 AccessLog，保留 parent 的取消信号。
// 已有 trace id 时沿用，每个请求新开一个 span。
func NewContextWithParent(parent context.Context, action string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if action == "" {
		action = "unknown"
	}
	ctx := tracex.WithSpanID(tracex.EnsureTraceID(parent), tracex.NewSpanID())
	// 没走到 SetBizCode 就返回的请求按系统错误记
	return context.WithValue(ctx, accessLogKey{}, &AccessLog{
		BizCode: SystemError,
		action:  action,
		start:   time.Now(),
	})
}

func FromContext(ctx context.Context) *AccessLog {
	if ctx == nil {
		return nil
	}
	al, _ := ctx.Value(accessLogKey{}).(*AccessLog)
	return al
}

func SetBizCode(ctx context.Context, code BizCode) {
	if al := FromContext(ctx); al != nil {
		al.BizCode = code
		al.coded = true
	}
}

// Coded 表示处理过程中已经显式设置过业务码。
func Coded(ctx context.Context) bool {
	al := FromContext(ctx)
	return al != nil && al.coded
}

// Action 返回请求动作名，例如 "WS game.submit_action"。
func Action(ctx context.Context) string {
	if al := FromContext(ctx); al != nil {
		return al.action
	}
	return ""
}

func SetErrorReason(ctx context.Context, reason string) {
	if al := FromContext(ctx); al != nil && reason != "" {
		al.ErrorReason = reason
	}
}

// Annotate 给访问日志追加字段。
func Annotate(ctx context.Context, fields ...zap.Field) {
	if al := FromContext(ctx); al != nil {
		al.fields = append(al.fields, fields...)
	}
}

// WriteAccessLog 在请求结束时调用一次。
func WriteAccessLog(ctx context.Context, log logx.Logger) {
	al := FromContext(ctx)
	if al == nil || log == nil {
		return
	}
	fields := make([]zap.Field, 0, len(al.fields)+3)
	fields = append(fields,
		zap.Duration("latency", time.Since(al.start)),
		zap.String("outcome", al.BizCode.Outcome()),
	)
	if al.BizCode != OK && al.ErrorReason != "" {
		fields = append(fields, zap.String("error_reason", al.ErrorReason))
	}
	fields = append(fields, al.fields...)
	logx.ReportAccess(ctx, log, al.action, int(al.BizCode), fields...)
}
