package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NicolasHaas/chatrelay/pkg/client"
	"github.com/NicolasHaas/chatrelay/pkg/logging"
	"github.com/NicolasHaas/chatrelay/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7000", "relay address host:port")
	user := flag.String("user", "", "username (up to 8 bytes)")
	bookmark := flag.String("bookmark", "", "load -addr and -user from this saved bookmark, and save them on success")
	bookmarks := flag.String("bookmarks-file", client.DefaultBookmarkPath(), "bookmark YAML file")
	logLevel := flag.String("log-level", "warn", "Log level: "+logging.LevelNames())
	flag.Parse()

	// Logs go to stderr so they never mix with the chat on stdout.
	log, err := logging.Setup(logging.Options{Level: *logLevel, Format: "text", Output: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	store := client.NewBookmarkStore(*bookmarks)
	if *bookmark != "" {
		if err := store.Load(); err != nil {
			log.Error("load bookmarks", "err", err)
			os.Exit(1)
		}
		if b := store.Find(*bookmark); b != nil {
			if !isFlagSet("addr") {
				*addr = b.Addr
			}
			if !isFlagSet("user") {
				*user = b.Username
			}
		}
	}
	if *user == "" {
		fmt.Fprintln(os.Stderr, "usage: chatrelay-client -addr host:port -user name")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := chat(ctx, *addr, *user, os.Stdin, os.Stdout, log); err != nil {
		log.Error("chat", "err", err)
		os.Exit(1)
	}

	if *bookmark != "" {
		store.Add(client.Bookmark{Name: *bookmark, Addr: *addr, Username: *user})
		store.Touch(*bookmark, time.Now())
		if err := store.Save(); err != nil {
			log.Warn("save bookmarks", "err", err)
		}
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// chat identifies, then relays stdin lines to the server and server events
// to stdout until /quit, end of input, a signal or a lost connection.
func chat(ctx context.Context, addr, user string, in io.Reader, out io.Writer, log *slog.Logger) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	c, err := client.Dial(dialCtx, addr)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()
	c.SetLogger(log)

	if err := c.Identify(user); err != nil {
		return err
	}
	fmt.Fprintf(out, "connected to %s as %s\n%s\n", addr, user, client.Usage)

	c.SetEventHandler(func(msg *protocol.Message) {
		fmt.Fprintln(out, client.Describe(msg))
	})
	c.StartReceiving()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Disconnect()
			return nil
		case <-c.Done():
			fmt.Fprintln(out, "connection closed")
			return nil
		case line, ok := <-lines:
			if !ok {
				_ = c.Disconnect()
				return nil
			}
			msg, err := client.ParseCommand(line)
			if errors.Is(err, client.ErrQuit) {
				if err := c.Disconnect(); err != nil {
					return err
				}
				// Wait for the server to finish teardown and close.
				select {
				case <-c.Done():
				case <-time.After(2 * time.Second):
				}
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
				continue
			}
			if msg == nil {
				continue
			}
			if err := c.Send(msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}
