// cmd/presidents/main.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jmattson/presidents-client/internal/api"
	"github.com/jmattson/presidents-client/internal/auth"
	"github.com/jmattson/presidents-client/internal/chat"
	"github.com/jmattson/presidents-client/internal/config"
	"github.com/jmattson/presidents-client/internal/conn"
	"github.com/jmattson/presidents-client/internal/identity"
	"github.com/jmattson/presidents-client/internal/interrupt"
	"github.com/jmattson/presidents-client/internal/lobby"
	"github.com/jmattson/presidents-client/internal/protocol"
	"github.com/jmattson/presidents-client/internal/session"
	"github.com/jmattson/presidents-client/internal/state"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ids := identity.NewStore(logger, cfg.StateFile)
	// The persisted identity must be back in memory before the first
	// connect so the rejoin command can fire immediately.
	if _, err := ids.Load(); err != nil {
		logger.Warnf("could not restore identity: %v", err)
	}

	tokens := auth.NewTokenProvider(logger, cfg.AuthToken)
	client := api.NewClient(logger, cfg.APIBaseURL, tokens, ids)
	store := state.NewStore(logger, ids)
	dir := lobby.NewDirectory(logger, client)
	relay := chat.NewRelay(logger)
	sess := session.New(logger, client, ids, store)
	intr := interrupt.NewHandler(logger, ids, client)

	store.Subscribe(intr.Observe)
	store.Subscribe(func(snap *protocol.RoomSnapshot) {
		if snap != nil {
			fmt.Printf("\n%s\n", renderSnapshot(snap, ids.Current().PlayerID))
		}
	})
	dir.Subscribe(func(entries []protocol.LobbyEntry) {
		fmt.Printf("\nOpen rooms: %d\n", len(entries))
		for _, e := range entries {
			fmt.Printf("  %s  %-10s host=%s  %d/%d  %s\n",
				e.RoomCode, e.GameType, e.HostName, e.CurrentPlayers, e.MaxPlayers, e.Status)
		}
	})
	relay.Register(func(raw json.RawMessage) {
		fmt.Printf("\n[chat] %s\n", string(raw))
	})
	intr.OnTick = func(remaining int64) {
		fmt.Printf("\r[interrupt] %ds left to respond ", remaining)
	}
	sess.OnSessionInvalid = func(reason string) {
		fmt.Printf("\nSession ended: %s\n", reason)
	}

	mgr := conn.NewManager(logger, cfg.WSURL, tokens, ids, store, dir, relay)
	mgr.OnNavigateHome = func(reason string) {
		fmt.Printf("\nRoom was deleted by the host: %s\n", reason)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	repl(ctx, sess, intr, mgr, dir, client, ids, store)

	mgr.Close()
}

func repl(ctx context.Context, sess *session.Session, intr *interrupt.Handler, mgr *conn.Manager, dir *lobby.Directory, client *api.Client, ids *identity.Store, store *state.Store) {
	sc := bufio.NewScanner(os.Stdin)
	fmt.Println("presidents client ready. Type 'help' for commands.")
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]

		var err error
		switch cmd {
		case "help":
			printHelp()
		case "rooms":
			filter := ""
			if len(args) > 0 {
				filter = args[0]
			}
			err = dir.Refresh(ctx, filter)
		case "create":
			if len(args) < 2 {
				err = fmt.Errorf("usage: create <game_type> <name>")
				break
			}
			var code string
			code, err = sess.CreateRoom(ctx, args[0], strings.Join(args[1:], " "))
			if err == nil {
				fmt.Printf("Room created: %s\n", code)
			}
		case "join":
			if len(args) < 2 {
				err = fmt.Errorf("usage: join <CODE> <name>")
				break
			}
			err = sess.JoinRoom(ctx, strings.ToUpper(args[0]), strings.Join(args[1:], " "))
		case "start":
			err = sess.StartRound(ctx)
		case "play":
			var cards []protocol.Card
			cards, err = pickCards(store.Snapshot(), args)
			if err == nil {
				err = sess.PlayCards(ctx, cards)
			}
		case "pass":
			err = sess.PassTurn(ctx)
		case "bid":
			var cards []protocol.Card
			cards, err = pickCards(store.Snapshot(), args)
			if err == nil {
				err = intr.SubmitBid(ctx, cards)
			}
		case "bidpass":
			err = intr.Pass(ctx)
		case "chat":
			id := ids.Current()
			var frame []byte
			frame, err = chat.OutboundMessage(id.RoomCode, id.PlayerID, strings.Join(args, " "))
			if err == nil {
				err = mgr.Send(ctx, frame)
			}
		case "refresh":
			err = sess.RefreshState(ctx)
		case "profile":
			var p *api.UserProfile
			p, err = client.FetchUserProfile(ctx, ids.Current().PlayerID)
			if err == nil {
				fmt.Printf("%s: %d played, %d won\n", p.DisplayName, p.GamesPlayed, p.GamesWon)
			}
		case "history":
			var games []api.GameRecord
			games, err = client.FetchGameHistory(ctx, ids.Current().PlayerID, 10)
			if err == nil {
				for _, g := range games {
					fmt.Printf("  %s %-10s rank=%s\n", g.RoomCode, g.GameType, g.Rank)
				}
			}
		case "status":
			id := ids.Current()
			fmt.Printf("connection=%s room=%q player=%q host=%t\n", mgr.State(), id.RoomCode, id.PlayerID, id.IsHost)
		case "leave":
			err = sess.LeaveRoom(ctx)
		case "delete":
			err = sess.DeleteRoom(ctx)
		case "quit", "exit":
			return
		default:
			err = fmt.Errorf("unknown command %q, try 'help'", cmd)
		}

		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// pickCards resolves card ids from the current hand.
func pickCards(snap *protocol.RoomSnapshot, ids []string) ([]protocol.Card, error) {
	if snap == nil {
		return nil, fmt.Errorf("no room state yet")
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no cards given")
	}
	byID := make(map[string]protocol.Card, len(snap.YourHand))
	for _, c := range snap.YourHand {
		byID[c.ID] = c
	}
	cards := make([]protocol.Card, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("card %q is not in your hand", id)
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func renderSnapshot(snap *protocol.RoomSnapshot, selfID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Room %s v%d | started=%t over=%t | players %d (min %d, max %d)\n",
		snap.RoomCode, snap.Version, snap.GameStarted, snap.GameOver,
		len(snap.Players), snap.MinPlayers, snap.MaxPlayers)
	for _, p := range snap.Players {
		marker := " "
		if p.ID == snap.CurrentTurnPlayerID {
			marker = "*"
		}
		you := ""
		if p.ID == selfID {
			you = " (you)"
		}
		host := ""
		if p.ID == snap.HostID {
			host = " (host)"
		}
		fmt.Fprintf(&b, " %s %s%s%s cards=%d", marker, p.Name, you, host, p.HandSize)
		if p.Rank != "" {
			fmt.Fprintf(&b, " rank=%s", p.Rank)
		}
		b.WriteByte('\n')
	}
	if len(snap.Pile) > 0 {
		top := snap.Pile[len(snap.Pile)-1]
		fmt.Fprintf(&b, " pile: %d cards, top %s%s\n", len(snap.Pile), top.Rank, top.Suit)
	}
	if len(snap.YourHand) > 0 {
		b.WriteString(" hand:")
		for _, c := range snap.YourHand {
			fmt.Fprintf(&b, " %s(%s%s)", c.ID, c.Rank, c.Suit)
		}
		b.WriteByte('\n')
	}
	if snap.InterruptActive() {
		w := snap.Interrupt
		fmt.Fprintf(&b, " INTERRUPT %s by %s rank=%s responded=%d\n",
			w.Type, w.InitiatorID, w.Rank, len(w.RespondedPlayerIDs))
	}
	return b.String()
}

func printHelp() {
	fmt.Println(`commands:
  rooms [type]            list open rooms
  create <type> <name>    create a room and host it
  join <CODE> <name>      join a room by code
  start                   start the round (host)
  play <cardID...>        play cards from your hand
  pass                    pass your turn
  bid <cardID...>         bid into an open interrupt window
  bidpass                 pass on an open interrupt window
  chat <text>             send a chat message
  refresh                 pull the room snapshot once
  profile | history       player profile / recent games
  status                  connection and identity state
  leave | delete          leave the room / delete it (host)
  quit`)
}
