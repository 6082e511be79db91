package errs

import "fmt"

type Kind string

const (
	KindUnknown    Kind = "unknown"
	KindInfra      Kind = "infra"
	KindDependency Kind = "dependency"
	KindCorrupt    Kind = "corrupt"
)

// InfraError 是仓库层的技术错误，和对局内的四类业务错误分开。
type InfraError struct {
	Op    string         // 发生位置：repo.game.Load / dc.turn.Record
	Kind  Kind           // 粗分类
	Meta  map[string]any // 关键参数（game_id, turn...）
	Cause error          // 根因
}

func (e *InfraError) Error() string {
	if e.Cause == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *InfraError) Unwrap() error { return e.Cause }

// Wrap 统一包装入口，cause 为 nil 时返回 nil。
func Wrap(op string, kind Kind, cause error, meta map[string]any) error {
	if cause == nil {
		return nil
	}
	return &InfraError{Op: op, Kind: kind, Cause: cause, Meta: meta}
}
