// hotseat 在一个进程里开一局，同一个会话轮流控制所有玩家，用来本地试玩和调试规则。
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"umpire/internal/game/entity/domain"
	"umpire/internal/game/mapgen"
	"umpire/internal/game/rules"
	"umpire/internal/game/service"
	"umpire/internal/shared/logs"
	"umpire/internal/shared/serverconfig"
	"umpire/modules/kit/logx"
)

const help = `commands:
  view                     当前玩家视角的地图
  list                     己方城市和单位
  req                      待决策的单位和城市
  prod <city> <type>       设置城市生产
  move <unit> <direction>  单步移动（up_left/up/up_right/left/right/down_left/down/down_right）
  goto <unit> <x> <y>      长途移动，目标不可达时返回错误
  sentry|fortify|skip|explore <unit>
  dirs <unit>              合法的移动方向
  end [force]              结束当前玩家的回合
  next                     切换到下一个玩家
  scores                   终局后的得分
  quit`

func main() {
	width := flag.Int("w", 30, "地图宽")
	height := flag.Int("h", 20, "地图高")
	players := flag.Int("players", 2, "玩家数")
	seed := flag.Uint64("seed", 1, "地图种子")
	fog := flag.Bool("fog", true, "战争迷雾")
	reveal := flag.Bool("reveal", false, "开局打印完整地图")
	level := flag.String("log", "warn", "日志级别")
	flag.Parse()

	if err := logs.Init("hotseat", serverconfig.LogConfig{Level: *level}); err != nil {
		panic(err)
	}
	defer logs.Sync()

	store, err := mapgen.Generate(mapgen.Config{
		GameID:  1,
		Dims:    domain.Dims{Width: *width, Height: *height},
		Seed:    *seed,
		Players: *players,
	})
	if err != nil {
		logs.Fatal("generate map failed", zap.Error(err))
	}
	if *reveal {
		for _, row := range mapgen.ToASCII(store) {
			fmt.Println(row)
		}
	}

	g := service.New(store, service.Config{Fog: *fog}, logx.NewZapLogger(logs.Logger()))
	sess, err := g.RegisterPlayers(*players)
	if err != nil {
		logs.Fatal("register players failed", zap.Error(err))
	}

	p := &shell{g: g, sid: sess.ID, seats: sess.Players, cur: 0}
	fmt.Println(help)
	p.show()
	sc := bufio.NewScanner(os.Stdin)
	for fmt.Printf("[p%d] > ", p.player()); sc.Scan(); fmt.Printf("[p%d] > ", p.player()) {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" {
			return
		}
		if err := p.exec(fields); err != nil {
			fmt.Println("error:", err)
		}
	}
}

type shell struct {
	g     *service.Game
	sid   string
	seats []domain.PlayerID
	cur   int
}

func (s *shell) player() domain.PlayerID { return s.seats[s.cur] }

func (s *shell) show() {
	snap, err := s.g.View(s.sid, s.player())
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	renderView(os.Stdout, snap)
}

func (s *shell) exec(f []string) error {
	p := s.player()
	switch f[0] {
	case "view":
		s.show()
	case "list":
		snap, err := s.g.View(s.sid, p)
		if err != nil {
			return err
		}
		renderAssets(os.Stdout, snap)
	case "req":
		req, err := s.g.Requests(s.sid, p)
		if err != nil {
			return err
		}
		fmt.Printf("units=%v cities=%v\n", req.Units, req.Cities)
	case "prod":
		if len(f) < 3 {
			return fmt.Errorf("usage: prod <city> <type>")
		}
		city, err := atoi(f[1])
		if err != nil {
			return err
		}
		t, ok := domain.ParseUnitType(f[2])
		if !ok {
			return fmt.Errorf("unknown unit type %q", f[2])
		}
		return s.submit(rules.Action{Kind: rules.ActSetProduction, City: domain.CityID(city), Production: t})
	case "move":
		if len(f) < 3 {
			return fmt.Errorf("usage: move <unit> <direction>")
		}
		unit, err := atoi(f[1])
		if err != nil {
			return err
		}
		var d domain.Direction
		if err := d.UnmarshalText([]byte(f[2])); err != nil {
			return err
		}
		return s.submit(rules.Action{Kind: rules.ActMoveDirection, Unit: domain.UnitID(unit), Direction: &d})
	case "goto":
		if len(f) < 4 {
			return fmt.Errorf("usage: goto <unit> <x> <y>")
		}
		nums, err := atois(f[1:4])
		if err != nil {
			return err
		}
		dest := domain.Loc(nums[1], nums[2])
		return s.submit(rules.Action{Kind: rules.ActMove, Unit: domain.UnitID(nums[0]), Dest: &dest})
	case "sentry", "fortify", "skip", "explore":
		if len(f) < 2 {
			return fmt.Errorf("usage: %s <unit>", f[0])
		}
		unit, err := atoi(f[1])
		if err != nil {
			return err
		}
		var k domain.OrderKind
		if err := k.UnmarshalText([]byte(f[0])); err != nil {
			return err
		}
		return s.submit(rules.Action{Kind: rules.ActSetOrders, Unit: domain.UnitID(unit), Orders: &domain.Orders{Kind: k}})
	case "dirs":
		if len(f) < 2 {
			return fmt.Errorf("usage: dirs <unit>")
		}
		unit, err := atoi(f[1])
		if err != nil {
			return err
		}
		dirs, err := s.g.LegalDirections(s.sid, p, domain.UnitID(unit))
		if err != nil {
			return err
		}
		fmt.Println(dirs)
	case "end":
		st, err := s.g.EndTurn(s.sid, p, len(f) > 1 && f[1] == "force")
		if err != nil {
			return err
		}
		fmt.Printf("turn=%d phase=%s done=%v\n", st.Turn, st.Phase, st.Done)
		if !st.Terminal {
			s.next()
		}
	case "next":
		s.next()
	case "scores":
		scores, err := s.g.VisibleScores(s.sid)
		if err != nil {
			return err
		}
		fmt.Println(scores)
	default:
		fmt.Println(help)
	}
	return nil
}

func (s *shell) submit(act rules.Action) error {
	snap, err := s.g.SubmitAction(s.sid, s.player(), act)
	if err != nil {
		return err
	}
	renderView(os.Stdout, snap)
	return nil
}

// next 切到下一个还没出局的玩家并打印其视图。
func (s *shell) next() {
	for i := 1; i <= len(s.seats); i++ {
		j := (s.cur + i) % len(s.seats)
		st, err := s.g.Status(s.sid, s.seats[j])
		if err == nil && !st.Eliminated {
			s.cur = j
			break
		}
	}
	s.show()
}

func atoi(v string) (int, error) {
	return strconv.Atoi(v)
}

func atois(vs []string) ([]int, error) {
	out := make([]int, len(vs))
	for i, v := range vs {
		n, err := atoi(v)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
