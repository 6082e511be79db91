package logx

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// ErrorLog 是从错误链里提取出的可读字段。
type ErrorLog struct {
	Error      string
	Code       string
	Msg        string
	Reason     string
	Data       map[string]any
	CauseChain []string
	Origin     string
	Stack      string
}

// BuildErrorLog 通过鸭子类型读取 errx.Error 的 code/msg/data/reason/stack，不直接依赖 errx。
func BuildErrorLog(err error) ErrorLog {
	if err == nil {
		return ErrorLog{}
	}
	out := ErrorLog{Error: err.Error()}

	var cp interface{ CodeText() string }
	if errors.As(err, &cp) {
		out.Code = cp.CodeText()
	}
	var mp interface{ Msg() string }
	if errors.As(err, &mp) {
		out.Msg = mp.Msg()
	}
	var dp interface{ Data() map[string]any }
	if errors.As(err, &dp) {
		out.Data = dp.Data()
	}
	var rp interface{ Reason() string }
	if errors.As(err, &rp) {
		out.Reason = rp.Reason()
	}
	var sp interface{ Stack() []uintptr }
	if errors.As(err, &sp) {
		out.Origin, out.Stack = formatStack(sp.Stack(), 32)
	}
	for cur, i := errors.Unwrap(err), 0; cur != nil && i < 20; cur, i = errors.Unwrap(cur), i+1 {
		out.CauseChain = append(out.CauseChain, fmt.Sprintf("%T: %v", cur, cur))
	}
	return out
}

func formatStack(pcs []uintptr, maxFrames int) (string, string) {
	if len(pcs) == 0 {
		return "", ""
	}
	frames := runtime.CallersFrames(pcs)
	var origin string
	var b strings.Builder
	for i := 0; i < maxFrames; i++ {
		f, more := frames.Next()
		if f.Function == "" && f.File == "" {
			break
		}
		line := fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line)
		if origin == "" {
			origin = line
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
		if !more {
			break
		}
	}
	return origin, b.String()
}

// ReportAccess 写访问日志：biz_code 为 0 记 INFO，>=500 记 ERROR，其余 WARN。
func ReportAccess(ctx context.Context, l Logger, action string, bizCode int, fields ...zap.Field) {
	if l == nil {
		return
	}
	base := append([]zap.Field{
		zap.String("log_type", "access"),
		zap.String("action", action),
		zap.Int("biz_code", bizCode),
	}, fields...)
	withCtx := l.WithContext(ctx)
	switch {
	case bizCode == 0:
		withCtx.Info("access", base...)
	case bizCode >= 500:
		withCtx.Error("access", base...)
	default:
		withCtx.Warn("access", base...)
	}
}

// ReportBiz 记录业务拒绝：INFO，不带栈。
func ReportBiz(ctx context.Context, l Logger, action string, err error, fields ...zap.Field) {
	if l == nil || err == nil {
		return
	}
	meta := BuildErrorLog(err)
	base := append([]zap.Field{
		zap.String("err_type", "biz"),
		zap.String("action", action),
		zap.String("error_code", meta.Code),
	}, fields...)
	if meta.Reason != "" {
		base = append(base, zap.String("reason", meta.Reason))
	}
	l.WithContext(ctx).Info(action+", rejected: "+meta.Error, base...)
}

// ReportSysError 记录技术错误：ERROR，附带 cause 链和发生处的栈。
func ReportSysError(ctx context.Context, l Logger, action string, err error, fields ...zap.Field) {
	if l == nil || err == nil {
		return
	}
	meta := BuildErrorLog(err)
	base := []zap.Field{
		zap.String("err_type", "sys"),
		zap.String("action", action),
	}
	if meta.Code != "" {
		base = append(base, zap.String("error_code", meta.Code))
	}
	if len(meta.CauseChain) != 0 {
		base = append(base, zap.Strings("cause_chain", meta.CauseChain))
	}
	if len(meta.Data) != 0 {
		base = append(base, zap.Any("error_data", meta.Data))
	}
	if meta.Origin != "" {
		base = append(base, zap.String("origin_caller", meta.Origin), zap.String("stack_origin", meta.Stack))
	}
	base = append(base, fields...)
	l.WithContext(ctx).Error(action+", error: "+meta.Error, base...)
}
