// spectate tails the live event feed of one match from a terminal. Handy for
// checking what a room is actually broadcasting without a browser attached.
//
//	spectate -url ws://localhost:8080/ws -match 42
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/cuevacelis/1vs1core-sub000/pkg/client"
	"github.com/cuevacelis/1vs1core-sub000/pkg/types"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/ws", "websocket endpoint")
	matchID := flag.Int64("match", 0, "match id to watch")
	userID := flag.Int64("user", 0, "join as this participant instead of spectating")
	flag.Parse()

	if *matchID <= 0 {
		fmt.Fprintln(os.Stderr, "spectate: -match is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, client.Options{URL: *url, OnEvent: printEvent})
	if err != nil {
		fmt.Fprintf(os.Stderr, "spectate: dial %s: %v\n", *url, err)
		os.Exit(1)
	}
	defer c.Close()

	isAdmin := *userID <= 0
	if err := c.Subscribe(ctx, *matchID, *userID, isAdmin); err != nil {
		fmt.Fprintf(os.Stderr, "spectate: subscribe: %v\n", err)
		os.Exit(1)
	}

	color.New(color.FgHiBlack).Printf("watching match %d on %s\n", *matchID, *url)
	<-ctx.Done()
	fmt.Println()
}

var (
	selectedC = color.New(color.FgCyan)
	lockedC   = color.New(color.FgGreen, color.Bold)
	updateC   = color.New(color.FgYellow)
	errorC    = color.New(color.FgRed)
)

func printEvent(ev types.Event) {
	switch ev.Type {
	case types.TypeChampionSelected:
		selectedC.Printf("match %d: player %d hovers champion %d\n", ev.MatchID, ev.PlayerID, ev.ChampionID)
	case types.TypeChampionLocked:
		lockedC.Printf("match %d: player %d LOCKED champion %d\n", ev.MatchID, ev.PlayerID, ev.ChampionID)
	case types.TypeMatchUpdate:
		if ev.Data == nil {
			updateC.Printf("match %d updated\n", ev.MatchID)
			return
		}
		line := fmt.Sprintf("match %d -> %s", ev.MatchID, ev.Data.State)
		if ev.Data.WinnerID > 0 {
			line += fmt.Sprintf(" (winner %d)", ev.Data.WinnerID)
		}
		if ev.Data.Reason != "" {
			line += " [" + ev.Data.Reason + "]"
		}
		updateC.Println(line)
	case types.TypeError:
		if ev.Data != nil {
			errorC.Printf("rejected: %s (%s)\n", ev.Data.Message, ev.Data.Code)
		}
	}
}
