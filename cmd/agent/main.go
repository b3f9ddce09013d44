// Command agent is a headless collaborator: it joins an editing session,
// mirrors remote edits into an in-memory surface and sends local edits typed
// on stdin through the same rate-shaped pipeline a real editor uses.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/prajakta250421/ScribeChain/internal/auth"
	"github.com/prajakta250421/ScribeChain/internal/ledger"
	"github.com/prajakta250421/ScribeChain/internal/protocol"
	"github.com/prajakta250421/ScribeChain/internal/session"
	"github.com/prajakta250421/ScribeChain/internal/storage"
)

var (
	server  = flag.String("server", "http://localhost:8080", "server base URL")
	sess    = flag.String("session", "default", "session id to join")
	address = flag.String("address", "", "wallet address to identify as")
)

func main() {
	flag.Parse()
	if *address == "" {
		fmt.Fprintln(os.Stderr, "usage: agent -address <wallet-address> [-server URL] [-session ID]")
		os.Exit(2)
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	issuer := auth.NewHTTPIssuer(*server, *address)
	credential, err := issuer.AcquireCredential(ctx)
	if err != nil {
		log.Fatal("acquire credential", zap.Error(err))
	}

	surface := session.NewBuffer()
	ctrl := session.New(ctx, session.Config{
		Log:       log,
		SessionID: *sess,
		Surface:   surface,
		Transport: session.NewConn(wsBase(*server), log),
		Store:     storage.NewClient(*server, credential),
		Ledger:    ledger.NewClient(*server, credential),
	})
	defer func() { ctrl.Inbox() <- session.Teardown{} }()

	if err := ctrl.Connect(credential); err != nil {
		log.Fatal("connect", zap.Error(err))
	}

	fmt.Println("joined session", *sess, "- type to edit, /save /load /peers /quit")

	scanner := bufio.NewScanner(os.Stdin)
	line := 0
	for scanner.Scan() {
		text := scanner.Text()
		switch text {
		case "/quit":
			return

		case "/save":
			reply := make(chan error, 1)
			ctrl.Inbox() <- session.Save{Reply: reply}
			if err := <-reply; err != nil {
				fmt.Println("save failed:", err)
			} else {
				fmt.Println("saved")
			}

		case "/load":
			reply := make(chan error, 1)
			ctrl.Inbox() <- session.Load{Reply: reply}
			if err := <-reply; err != nil {
				fmt.Println("load failed:", err)
			} else {
				fmt.Println("loaded:", surfaceSummary(surface.Content()))
			}

		case "/peers":
			reply := make(chan session.StateView, 1)
			ctrl.Inbox() <- session.GetState{Reply: reply}
			view := <-reply
			fmt.Printf("connection: %s, me: %s (%s)\n", view.Status, view.Local.UserName, view.Local.UserID)
			for _, u := range view.Users {
				fmt.Printf("  %s (%s) %s\n", u.UserName, u.UserID, u.UserColor)
			}
			for uid, c := range view.Cursors {
				fmt.Printf("  cursor %s at (%.0f, %.0f)\n", uid, c.Position.X, c.Position.Y)
			}

		default:
			line++
			content := surface.Content() + text + "\n"
			surface.SetContent(content)
			ctrl.Inbox() <- session.LocalEdit{
				Content:  content,
				Position: protocol.Position{X: float64(len(text)), Y: float64(line)},
			}
		}
	}
}

func surfaceSummary(content string) string {
	content = strings.ReplaceAll(content, "\n", "⏎")
	if len(content) > 60 {
		return content[:60] + "…"
	}
	return content
}

// wsBase rewrites an http(s) base URL to its ws(s) counterpart.
func wsBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}
