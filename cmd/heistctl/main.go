// cmd/heistctl/main.go is a small command line client for a heist server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/heist/internal/client"
	"github.com/jason-s-yu/heist/internal/game"
	"github.com/jason-s-yu/heist/internal/models"
	"github.com/jason-s-yu/heist/internal/realtime"
	_ "github.com/joho/godotenv/autoload"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	URL   string `envconfig:"HEIST_URL" default:"http://localhost:8080"`
	Token string `envconfig:"HEIST_TOKEN"`
}

const usage = `usage: heistctl [flags] <command> [args]

commands:
  guest NAME                      start a guest session and print its token
  create NAME TRAITORS HEROES     create a room
  join CODE [DISPLAY_NAME]        join the lobby behind CODE
  room ID|CODE                    show a room
  ready ROOM_ID [true|false]      set your ready flag
  start ROOM_ID                   start the game (host)
  advance ROOM_ID                 end the current phase (host)
  ability ROOM_ID ABILITY [TARGET_USER_ID]
  vote ROOM_ID TARGET_USER_ID
  task ROOM_ID wiring|hacking|keypad ok|fail
  say ROOM_ID TEXT...             post to the room chat
  log ROOM_ID                     print the room chat
  watch ROOM_ID                   stream events until interrupted

environment: HEIST_URL, HEIST_TOKEN
`

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		logger.Fatalf("processing the config: %v", err)
	}
	flag.StringVar(&cfg.URL, "url", cfg.URL, "server base URL")
	flag.StringVar(&cfg.Token, "token", cfg.Token, "session token")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(cfg.URL, nil)
	c.Token = cfg.Token

	if err := dispatch(ctx, c, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Fatal(err)
	}
}

func dispatch(ctx context.Context, c *client.Client, cmd string, args []string) error {
	if cmd != "guest" && c.Token == "" {
		return fmt.Errorf("%s needs a session: run `heistctl guest NAME` and set HEIST_TOKEN", cmd)
	}

	switch cmd {
	case "guest":
		if err := need(args, 1); err != nil {
			return err
		}
		if err := c.Guest(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Printf("user %s (%s)\nexport HEIST_TOKEN=%s\n", c.UserID, c.Name, c.Token)
		return nil

	case "create":
		if err := need(args, 3); err != nil {
			return err
		}
		traitors, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("traitors: %w", err)
		}
		heroes, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("heroes: %w", err)
		}
		room, err := c.CreateRoom(ctx, game.CreateRoomParams{Name: args[0], TraitorCount: traitors, HeroCount: heroes})
		if err != nil {
			return err
		}
		fmt.Printf("room %s code %s\n", room.ID, room.Code)
		return nil

	case "join":
		if err := need(args, 1); err != nil {
			return err
		}
		p, err := c.Join(ctx, args[0], strings.Join(args[1:], " "), 0)
		if err != nil {
			return err
		}
		room, err := c.RoomByCode(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("joined %s as %s (avatar %d)\n", room.ID, p.DisplayName, p.AvatarID)
		return nil

	case "room":
		if err := need(args, 1); err != nil {
			return err
		}
		var room *game.RoomView
		if id, err := uuid.Parse(args[0]); err == nil {
			room, err = c.Room(ctx, id)
			if err != nil {
				return err
			}
		} else {
			room, err = c.RoomByCode(ctx, args[0])
			if err != nil {
				return err
			}
		}
		return printJSON(room)
	}

	if err := need(args, 1); err != nil {
		return err
	}
	roomID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("room id: %w", err)
	}
	args = args[1:]

	switch cmd {
	case "ready":
		ready := true
		if len(args) > 0 {
			if ready, err = strconv.ParseBool(args[0]); err != nil {
				return err
			}
		}
		_, err := c.SetReady(ctx, roomID, ready)
		return err

	case "start":
		room, err := c.Start(ctx, roomID)
		if err != nil {
			return err
		}
		return printRoom(room)

	case "advance":
		room, err := c.Advance(ctx, roomID)
		if err != nil {
			return err
		}
		return printRoom(room)

	case "ability":
		if err := need(args, 1); err != nil {
			return err
		}
		a := game.Action{Kind: game.ActionAbility, Ability: models.Ability(args[0])}
		if len(args) > 1 {
			a.TargetID = args[1]
		}
		return act(ctx, c, roomID, a)

	case "vote":
		if err := need(args, 1); err != nil {
			return err
		}
		return act(ctx, c, roomID, game.Action{Kind: game.ActionVote, TargetID: args[0]})

	case "task":
		if err := need(args, 2); err != nil {
			return err
		}
		return act(ctx, c, roomID, game.Action{Kind: game.ActionTask, TaskType: models.TaskType(args[0]), Success: args[1] == "ok"})

	case "say":
		if err := need(args, 1); err != nil {
			return err
		}
		_, err := c.Say(ctx, roomID, strings.Join(args, " "))
		return err

	case "log":
		msgs, err := c.Messages(ctx, roomID)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Printf("%s %s: %s\n", m.Timestamp.Format(time.Kitchen), m.SenderName, m.Content)
		}
		return nil

	case "watch":
		return watch(ctx, c, roomID)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func need(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("expected at least %d argument(s), see heistctl -h", n)
	}
	return nil
}

func act(ctx context.Context, c *client.Client, roomID uuid.UUID, a game.Action) error {
	res, err := c.Act(ctx, roomID, a)
	if err != nil {
		return err
	}
	return printJSON(res)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRoom(v *game.RoomView) error {
	fmt.Printf("%s [%s] round %d/%d phase %s", v.Code, v.Status, v.Game.Round, v.Game.MaxRounds, v.Game.Phase)
	if v.Game.PhaseEndsAt != nil {
		fmt.Printf(" ends in %s", time.Until(*v.Game.PhaseEndsAt).Round(time.Second))
	}
	if v.Game.Winner != models.WinnerNone {
		fmt.Printf(" winner %s", v.Game.Winner)
	}
	fmt.Println()
	for _, p := range v.Players {
		state := "alive"
		if !p.IsAlive {
			state = "out"
		}
		role := ""
		if p.Role != "" {
			role = " " + string(p.Role)
		}
		fmt.Printf("  %-20s %-36s ready=%-5t %s%s\n", p.DisplayName, p.UserID, p.Ready, state, role)
	}
	return nil
}

func watch(ctx context.Context, c *client.Client, roomID uuid.UUID) error {
	var mirror *client.Mirror
	return c.Watch(ctx, roomID, nil, func(f realtime.ServerFrame) error {
		switch f.Type {
		case realtime.FrameEvent:
			fmt.Printf("%s %s %v\n", f.Event.Timestamp.Format(time.Kitchen), f.Event.Type, f.Event.Payload)
		case realtime.FrameState:
			if mirror == nil {
				mirror = client.NewMirror(f.State.ViewerID)
			}
			if mirror.Apply(f.State) {
				return printRoom(mirror.View())
			}
		case realtime.FrameError:
			fmt.Printf("error: %s (%s)\n", f.Error, f.Code)
		}
		return nil
	})
}
