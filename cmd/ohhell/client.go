package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"ohhell-server/internal/cards"
	"ohhell-server/internal/config"
	"ohhell-server/internal/mirror"
	"ohhell-server/internal/protocol"
	"ohhell-server/internal/transport"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	errQuit  = errors.New("quit")
	errUsage = errors.New("commands: start N, ready, bid N, play ID, ack (or enter), rematch yes|no, hand, quit")
)

// input is one parsed console line.
type input struct {
	verb   string
	n      int
	accept bool
}

func parseInput(line string) (input, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return input{verb: "ack"}, nil
	}
	in := input{verb: fields[0]}
	switch in.verb {
	case "ready", "ack", "hand", "quit":
		if len(fields) != 1 {
			return input{}, errUsage
		}
	case "start", "bid", "play":
		if len(fields) != 2 {
			return input{}, errUsage
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return input{}, errUsage
		}
		in.n = n
	case "rematch":
		if len(fields) != 2 {
			return input{}, errUsage
		}
		switch fields[1] {
		case "yes", "y":
			in.accept = true
		case "no", "n":
		default:
			return input{}, errUsage
		}
	default:
		return input{}, errUsage
	}
	return in, nil
}

// intent turns a parsed line into a command, checked against the mirror.
// A nil command with a nil error means there is nothing to send.
func (in input) intent(m *mirror.Mirror) (*protocol.Command, error) {
	var cmd protocol.Command
	var err error
	switch in.verb {
	case "start":
		cmd, err = m.ChooseStart(in.n)
	case "ready":
		cmd, err = m.Ready()
	case "bid":
		cmd, err = m.Bid(in.n)
	case "play":
		cmd, err = m.Play(in.n)
	case "ack":
		cmd, err = m.Ack()
	case "rematch":
		cmd, err = m.Rematch(in.accept)
	case "quit":
		return nil, errQuit
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cmd, nil
}

func runClient(ctx context.Context, cmd *cobra.Command, c config.Config) error {
	name, _ := cmd.Flags().GetString("name")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var client *transport.Client
	var err error
	timeout := transport.WithClientLivenessTimeout(c.LivenessTimeout)
	if strings.HasPrefix(c.Addr, "ws://") || strings.HasPrefix(c.Addr, "wss://") {
		client, err = transport.DialWebSocket(ctx, c.Addr, c.Password, timeout)
	} else {
		client, err = transport.Dial(ctx, c.Addr, c.Password, timeout)
	}
	if err != nil {
		return err
	}
	go func() {
		if err := client.Run(ctx); err != nil {
			logger.WithError(err).Debug("connection ended")
		}
	}()

	return newConsole(mirror.New(name), client, cmd.InOrStdin(), cmd.OutOrStdout()).run(ctx)
}

// console connects a mirror to a terminal.
type console struct {
	m      *mirror.Mirror
	client *transport.Client
	in     io.Reader
	out    io.Writer
	shown  string
}

func newConsole(m *mirror.Mirror, client *transport.Client, in io.Reader, out io.Writer) *console {
	return &console{m: m, client: client, in: in, out: out}
}

func (c *console) run(ctx context.Context) error {
	join, err := c.m.Join()
	if err != nil {
		return err
	}
	if err := c.client.Send(ctx, join); err != nil {
		return err
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		close(lines)
	}()

	snaps := make(chan protocol.Snapshot)
	recvErr := make(chan error, 1)
	go func() {
		for {
			payload, err := c.client.Receive(ctx)
			if err != nil {
				recvErr <- err
				return
			}
			snap, err := protocol.ParseSnapshot(string(payload))
			if err != nil {
				recvErr <- err
				return
			}
			select {
			case snaps <- snap:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.client.Terminate()
			return nil
		case err := <-recvErr:
			fmt.Fprintln(c.out, "Disconnected from the server.")
			if errors.Is(err, transport.ErrTerminated) {
				return nil
			}
			return err
		case snap := <-snaps:
			if err := c.m.Apply(snap); err != nil {
				return err
			}
			c.render()
		case line, ok := <-lines:
			if !ok {
				_ = c.client.Terminate()
				return nil
			}
			if err := c.handleLine(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					c.leave(ctx)
					return nil
				}
				return err
			}
		}
	}
}

// handleLine reports input mistakes on the console and returns only errors
// that end the session.
func (c *console) handleLine(ctx context.Context, line string) error {
	in, err := parseInput(line)
	if err != nil {
		fmt.Fprintln(c.out, err)
		return nil
	}
	if in.verb == "hand" {
		c.printHand()
		return nil
	}
	cmd, err := in.intent(c.m)
	if errors.Is(err, errQuit) {
		return err
	}
	if err != nil {
		fmt.Fprintln(c.out, err)
		return nil
	}
	if cmd == nil {
		return nil
	}
	if err := c.client.Send(ctx, *cmd); err != nil {
		return err
	}
	c.render()
	return nil
}

// leave asks the server to close the connection and falls back to the
// terminate control frame if it does not.
func (c *console) leave(ctx context.Context) {
	if err := c.client.Send(ctx, protocol.TerminateCommand()); err == nil {
		select {
		case <-c.client.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
	_ = c.client.Terminate()
}

func (c *console) render() {
	for _, note := range c.m.DrainNotes() {
		fmt.Fprintln(c.out, note)
	}
	status := c.m.StatusText()
	if status == c.shown {
		return
	}
	c.shown = status
	switch c.m.Stage() {
	case mirror.Bidding, mirror.Playing:
		c.printHand()
	}
	fmt.Fprintln(c.out, status)
}

func (c *console) printHand() {
	if trump, ok := c.m.Trump(); ok {
		fmt.Fprintf(c.out, "Trump: %s\n", trump)
	}
	if board := c.m.Board(); len(board) > 0 {
		fmt.Fprintf(c.out, "Table: %s\n", describe(board))
	}
	fmt.Fprintf(c.out, "Hand:  %s\n", describe(c.m.Hand()))
	for _, p := range c.m.Players() {
		fmt.Fprintf(c.out, "  %-12s bid %2s  tricks %d  points %d  games %d\n",
			p.Name, bidText(p.Bid), p.TricksWon, p.TotalPoints, p.GamesWon)
	}
}

func describe(cs []cards.Card) string {
	parts := make([]string, len(cs))
	for i, card := range cs {
		parts[i] = fmt.Sprintf("%s[%d]", card, card.ID())
	}
	return strings.Join(parts, " ")
}

func bidText(bid int) string {
	if bid < 0 {
		return "-"
	}
	return strconv.Itoa(bid)
}
