package utils

import "testing"

func TestSnowflake_单调递增(t *testing.T) {
	ids, err := NewGameIDs(3)
	if err != nil {
		t.Fatalf("NewGameIDs err=%v", err)
	}
	prev := ids.Next()
	for i := 0; i < 5000; i++ {
		next := ids.Next()
		if next <= prev {
			t.Fatalf("id 没有递增, prev=%d next=%d", prev, next)
		}
		prev = next
	}
}

func TestGameIDs_节点越界(t *testing.T) {
	if _, err := NewGameIDs(1 << 10); err == nil {
		t.Fatalf("期望节点 id 越界时报错")
	}
}

func TestGameIDs_时钟回拨与序号用尽(t *testing.T) {
	ids, _ := NewGameIDs(7)
	clock := []int64{idEpoch + 1000}
	ids.now = func() int64 {
		ms := clock[0]
		if len(clock) > 1 {
			clock = clock[1:]
		}
		return ms
	}
	first := ids.Next()
	// 同一毫秒内把序号用完，之后必须等到下一毫秒
	ids.seq = seqMask
	clock = []int64{idEpoch + 900, idEpoch + 1000, idEpoch + 1001}
	next := ids.Next()
	if next <= first {
		t.Fatalf("id 没有递增, first=%d next=%d", first, next)
	}
	at, node := SplitGameID(next)
	if node != 7 || at.UnixMilli() != idEpoch+1001 {
		t.Fatalf("拆分结果不对: at=%v node=%d", at, node)
	}
}

func TestRandSeq_长度与字符集(t *testing.T) {
	s := RandSeq(16)
	if len(s) != 16 {
		t.Fatalf("长度不对, got=%d", len(s))
	}
	for _, c := range s {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			t.Fatalf("非法字符 %q", c)
		}
	}
}
