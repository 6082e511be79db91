// Package mapgen 负责建图：按种子随机生成，或从 ASCII 文本加载。
package mapgen

import (
	"fmt"
	"strings"

	"umpire/internal/game/entity"
	"umpire/internal/game/entity/domain"

	"golang.org/x/exp/rand"
)

type Config struct {
	GameID  entity.GameID
	Dims    domain.Dims
	Wrap    domain.Wrap
	Seed    uint64
	Players int
	// LandRatio 是目标陆地比例，0 取默认值。
	LandRatio float64
	// NeutralCities 是中立城市数量，0 按面积估算。
	NeutralCities int
	// SmoothPasses 是元胞平滑次数。
	SmoothPasses int
}

const (
	defaultLandRatio    = 0.4
	defaultSmoothPasses = 4
	// 每多少格放一座中立城市
	cityDensity = 40
)

// Generate 同样的 Config 永远生成同样的地图。
// 每个玩家拿到一座己方城市，城市之间尽量拉开距离。
func Generate(cfg Config) (*entity.Store, error) {
	if cfg.Dims.Width < 2 || cfg.Dims.Height < 2 {
		return nil, fmt.Errorf("mapgen: dims too small: %dx%d", cfg.Dims.Width, cfg.Dims.Height)
	}
	if cfg.Players < 1 {
		return nil, fmt.Errorf("mapgen: need at least one player")
	}
	ratio := cfg.LandRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = defaultLandRatio
	}
	passes := cfg.SmoothPasses
	if passes <= 0 {
		passes = defaultSmoothPasses
	}
	r := rand.New(rand.NewSource(cfg.Seed))
	land := noise(r, cfg.Dims, cfg.Wrap, ratio, passes)

	s := entity.NewStore(cfg.GameID, cfg.Dims, cfg.Wrap, cfg.Seed, cfg.Players)
	for i, isLand := range land {
		if isLand {
			if err := s.SetTerrain(cfg.Dims.LocAt(i), domain.Land); err != nil {
				return nil, err
			}
		}
	}

	landTiles := make([]domain.Location, 0)
	for i, isLand := range land {
		if isLand {
			landTiles = append(landTiles, cfg.Dims.LocAt(i))
		}
	}
	neutral := cfg.NeutralCities
	if neutral <= 0 {
		neutral = max(cfg.Dims.Area()/cityDensity, cfg.Players)
	}
	// 陆地不够放城市时补陆地
	for len(landTiles) < cfg.Players+neutral {
		l := domain.Loc(r.Intn(cfg.Dims.Width), r.Intn(cfg.Dims.Height))
		if t, _ := s.Terrain(l); t == domain.Land {
			continue
		}
		_ = s.SetTerrain(l, domain.Land)
		landTiles = append(landTiles, l)
	}

	homes := spreadOut(r, cfg.Dims, cfg.Wrap, landTiles, cfg.Players)
	for i, at := range homes {
		if _, err := s.Apply(entity.CreateCity{Owner: domain.PlayerID(i + 1), At: at}); err != nil {
			return nil, err
		}
	}
	r.Shuffle(len(landTiles), func(i, j int) { landTiles[i], landTiles[j] = landTiles[j], landTiles[i] })
	placed := 0
	for _, at := range landTiles {
		if placed >= neutral {
			break
		}
		if _, ok := s.CityAt(at); ok {
			continue
		}
		if _, err := s.Apply(entity.CreateCity{Owner: domain.NoPlayer, At: at}); err == nil {
			placed++
		}
	}
	s.ClearDirty()
	return s, nil
}

// noise 先撒随机点再做多数表决平滑，得到成片的大陆。
func noise(r *rand.Rand, dims domain.Dims, wrap domain.Wrap, ratio float64, passes int) []bool {
	cur := make([]bool, dims.Area())
	for i := range cur {
		cur[i] = r.Float64() < ratio
	}
	for p := 0; p < passes; p++ {
		next := make([]bool, len(cur))
		for i := range cur {
			l := dims.LocAt(i)
			n := 0
			sq := dims.Square(l, 1, wrap)
			for _, o := range sq {
				if cur[dims.Index(o)] {
					n++
				}
			}
			next[i] = n*2 > len(sq)
		}
		cur = next
	}
	return cur
}

// spreadOut 贪心地选出彼此最远的 n 个格子：第一个随机，后续每次取离已选集合最远的。
func spreadOut(r *rand.Rand, dims domain.Dims, wrap domain.Wrap, candidates []domain.Location, n int) []domain.Location {
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	out := []domain.Location{candidates[r.Intn(len(candidates))]}
	for len(out) < n {
		best, bestDist := domain.Location{}, -1
		for _, c := range candidates {
			near := dims.Area()
			for _, o := range out {
				near = min(near, dims.Distance(c, o, wrap))
			}
			if near > bestDist || (near == bestDist && c.Less(best)) {
				best, bestDist = c, near
			}
		}
		if bestDist <= 0 {
			break
		}
		out = append(out, best)
	}
	return out
}

// Placement 是 ASCII 地图之外额外放置的单位。
type Placement struct {
	Owner domain.PlayerID
	Type  domain.UnitType
	At    domain.Location
}

// FromASCII 按行解析地图：
//
//	~ 水   . 陆地   * 中立城市   1-9 对应玩家的城市
//
// 各行长度必须一致。
func FromASCII(id entity.GameID, rows []string, wrap domain.Wrap, seed uint64, players int, units []Placement) (*entity.Store, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("mapgen: empty map")
	}
	width := len(rows[0])
	dims := domain.Dims{Width: width, Height: len(rows)}
	s := entity.NewStore(id, dims, wrap, seed, players)
	type cityAt struct {
		owner domain.PlayerID
		at    domain.Location
	}
	var cities []cityAt
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("mapgen: row %d has width %d, want %d", y, len(row), width)
		}
		for x := 0; x < width; x++ {
			l := domain.Loc(x, y)
			switch c := row[x]; {
			case c == '~' || c == ' ':
			case c == '.':
				_ = s.SetTerrain(l, domain.Land)
			case c == '*':
				_ = s.SetTerrain(l, domain.Land)
				cities = append(cities, cityAt{owner: domain.NoPlayer, at: l})
			case c >= '1' && c <= '9':
				owner := domain.PlayerID(c - '0')
				if int(owner) > players {
					return nil, fmt.Errorf("mapgen: city owner %d exceeds %d players", owner, players)
				}
				_ = s.SetTerrain(l, domain.Land)
				cities = append(cities, cityAt{owner: owner, at: l})
			default:
				return nil, fmt.Errorf("mapgen: unknown tile %q at %v", c, l)
			}
		}
	}
	for _, c := range cities {
		if _, err := s.Apply(entity.CreateCity{Owner: c.owner, At: c.at}); err != nil {
			return nil, err
		}
	}
	for _, u := range units {
		if _, err := s.Apply(entity.CreateUnit{Owner: u.Owner, Type: u.Type, At: u.At}); err != nil {
			return nil, fmt.Errorf("mapgen: place %s at %v: %w", u.Type, u.At, err)
		}
	}
	s.ClearDirty()
	return s, nil
}

// ToASCII 是 FromASCII 的逆过程（不含单位），调试和 hotseat 打印用。
func ToASCII(s *entity.Store) []string {
	dims := s.Dims()
	rows := make([]string, dims.Height)
	for y := 0; y < dims.Height; y++ {
		var b strings.Builder
		for x := 0; x < dims.Width; x++ {
			t := s.Tile(domain.Loc(x, y))
			switch {
			case t.City != nil && t.City.Owner == domain.NoPlayer:
				b.WriteByte('*')
			case t.City != nil:
				b.WriteByte(byte('0' + int(t.City.Owner)%10))
			case t.Terrain == domain.Land:
				b.WriteByte('.')
			default:
				b.WriteByte('~')
			}
		}
		rows[y] = b.String()
	}
	return rows
}
