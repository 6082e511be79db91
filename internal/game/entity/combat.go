package entity

import (
	"golang.org/x/exp/rand"
)

// combatRand 由对局种子和已生效变更数派生，同样的种子和同样的动作序列得到同样的战斗结果。
func (s *Store) combatRand() *rand.Rand {
	return rand.New(rand.NewSource(mix(s.seed ^ mix(s.applied+1))))
}

// fight 逐回合掷硬币扣血，直到一方归零。
func fight(r *rand.Rand, attackerHP, defenderHP int) (int, int) {
	a, d := max(attackerHP, 1), max(defenderHP, 1)
	for a > 0 && d > 0 {
		if r.Intn(2) == 0 {
			d--
		} else {
			a--
		}
	}
	return a, d
}

// mix 是 splitmix64 的终结步骤，把相邻的计数打散。
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
