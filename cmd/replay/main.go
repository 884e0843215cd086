// Command replay steps through a recorded game. The replay comes from a
// file or from the game store.
//
//	replay -file replays/<id>.replay
//	replay -config config/config.yaml -game <id>
//
// Commands: n (next), p (previous), s <position> (seek), e (end), q (quit).
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fparadis2/mox/internal/config"
	"github.com/fparadis2/mox/internal/game"
	"github.com/fparadis2/mox/internal/game/object"
	"github.com/fparadis2/mox/internal/game/rules"
	"github.com/fparadis2/mox/internal/repository"
	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	file       = flag.String("file", "", "replay file")
	gameID     = flag.String("game", "", "id of a stored game")
	at         = flag.Int("at", -1, "print the state at this position and exit")
	verbose    = flag.Bool("v", false, "log replay loading")
)

func main() {
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
			os.Exit(1)
		}
		logger = l
	}
	defer logger.Sync()

	replay, err := load(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load replay: %v\n", err)
		os.Exit(1)
	}
	player, err := replay.Play(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to play replay: %v\n", err)
		os.Exit(1)
	}
	logger.Info("replay loaded", zap.String("game_id", replay.GameID), zap.Int("commands", player.Len()))

	v := &viewer{player: player, out: os.Stdout}
	if *at >= 0 {
		if err := v.exec(fmt.Sprintf("s %d", *at)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := v.run(os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load(logger *zap.Logger) (*game.Replay, error) {
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return game.ReadReplay(f)
	}
	if *gameID == "" {
		return nil, errors.New("either -file or -game is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, err := repository.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	rec, err := store.LoadGame(ctx, *gameID)
	if err != nil {
		return nil, err
	}
	if len(rec.Replay) == 0 {
		return nil, fmt.Errorf("game %s has no replay", *gameID)
	}
	return game.ReadReplay(bytes.NewReader(rec.Replay))
}

// viewer prints the replayed game after every command.
type viewer struct {
	player *game.ReplayPlayer
	out    io.Writer
}

var errQuit = errors.New("quit")

func (v *viewer) run(in io.Reader) error {
	v.print()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		err := v.exec(scanner.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(v.out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

func (v *viewer) exec(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		fields = []string{"n"}
	}
	switch fields[0] {
	case "n", "next":
		if _, err := v.player.Next(); err != nil {
			return err
		}
	case "p", "prev", "previous":
		if _, err := v.player.Previous(); err != nil {
			return err
		}
	case "s", "seek":
		if len(fields) != 2 {
			return fmt.Errorf("usage: s <position>")
		}
		pos, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid position %q", fields[1])
		}
		if err := v.player.Seek(pos); err != nil {
			return err
		}
	case "e", "end":
		if err := v.player.Seek(v.player.Len()); err != nil {
			return err
		}
	case "q", "quit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	v.print()
	return nil
}

func (v *viewer) print() {
	g := v.player.Game
	fmt.Fprintf(v.out, "[%d/%d] turn %d %s/%s\n", v.player.Position(), v.player.Len(), g.TurnNumber(), g.Phase(), g.Step())
	for _, p := range g.Players() {
		fmt.Fprintf(v.out, "  %-12s life %3d  library %2d  hand %2d  graveyard %2d",
			g.PlayerName(p), g.LifeOf(p),
			len(g.Cards(p, rules.ZoneLibrary)),
			len(g.Cards(p, rules.ZoneHand)),
			len(g.Cards(p, rules.ZoneGraveyard)))
		if p == g.ActivePlayer() {
			fmt.Fprint(v.out, "  *")
		}
		fmt.Fprintln(v.out)
		var names []string
		for _, c := range g.Cards(p, rules.ZoneBattlefield) {
			name := g.CardName(c)
			if g.IsTapped(c) {
				name += " (T)"
			}
			names = append(names, name)
		}
		if len(names) > 0 {
			fmt.Fprintf(v.out, "    battlefield: %s\n", strings.Join(names, ", "))
		}
	}
	if top := g.StackTop(); top != object.InvalidID {
		fmt.Fprintf(v.out, "  stack: %s\n", g.CardName(top))
	}
	if g.IsEnded() {
		winner := "draw"
		if w := g.Winner(); w != object.InvalidID {
			winner = g.PlayerName(w)
		}
		fmt.Fprintf(v.out, "  game over: %s\n", winner)
	}
}
