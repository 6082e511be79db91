package errs

import (
	"errors"
	"testing"

	"umpire/modules/kit/errx"
)

func TestAction_包装实体错误并保留cause(t *testing.T) {
	err := Action(ErrOccupied.WithData("loc", "(1,1)"))
	if !IsAction(err) {
		t.Fatalf("期望是动作错误, got=%v", err)
	}
	if !errors.Is(err, ErrStateRejected) {
		t.Fatalf("期望 errors.Is 命中 ErrStateRejected")
	}
	if !errors.Is(err, ErrOccupied) {
		t.Fatalf("期望 cause 链上能找到 ErrOccupied")
	}
	st, ok := StateCause(err)
	if !ok || st.Code() != ErrOccupied.Code() {
		t.Fatalf("期望 StateCause 返回原始实体错误, got=%v", st)
	}
	outer, _ := errx.As(err)
	if outer.Reason() != string(ErrOccupied.Code()) {
		t.Fatalf("期望 reason 是实体错误的 code, got=%q", outer.Reason())
	}
}

func TestAction_已是动作错误时原样返回(t *testing.T) {
	if got := Action(ErrNotOwner); got != error(ErrNotOwner) {
		t.Fatalf("期望不重复包装, got=%v", got)
	}
	if Action(nil) != nil {
		t.Fatalf("nil 进 nil 出")
	}
}

func TestPrefix_分族判断(t *testing.T) {
	if !IsState(ErrNoRoute) || IsState(ErrSyncGap) {
		t.Fatalf("STATE_ 前缀判断错误")
	}
	if !IsTurn(ErrRequirementsNotMet) || !IsSync(ErrSyncGap) {
		t.Fatalf("TURN_/SYNC_ 前缀判断错误")
	}
}
