package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"ohhell-server/internal/config"
	"ohhell-server/internal/events"
	"ohhell-server/internal/handshake"
	"ohhell-server/internal/server"
	"ohhell-server/internal/transport"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func runServer(ctx context.Context, cmd *cobra.Command, c config.Config) error {
	if generate, _ := cmd.Flags().GetBool("generate-password"); generate {
		password, err := handshake.GeneratePassword()
		if err != nil {
			return err
		}
		c.Password = password
		fmt.Fprintf(cmd.OutOrStdout(), "table password: %s\n", password)
	}

	var cfgs []server.Cfg
	if c.ManualApproval {
		cfgs = append(cfgs, server.WithApprover(consoleApprover(cmd.InOrStdin(), cmd.OutOrStdout())))
	}
	if c.NATSURL != "" {
		pub, err := events.Connect(c.NATSURL, "ohhell-server")
		if err != nil {
			return err
		}
		cfgs = append(cfgs, server.WithPublisher(pub))
	}

	s, err := server.New(c, cfgs...)
	if err != nil {
		return errors.Wrap(err, "new server failed")
	}
	if err := s.Run(ctx); err != nil {
		return err
	}
	logger.WithField("games", s.Status().GamesPlayed).Info("server stopped")
	return nil
}

// consoleApprover asks the operator about each connection, one at a time.
func consoleApprover(in io.Reader, out io.Writer) transport.Approver {
	var mu sync.Mutex
	lines := bufio.NewScanner(in)
	return func(remote string) bool {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, "Allow connection from %s? [y/N] ", remote)
		if !lines.Scan() {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(lines.Text())) {
		case "y", "yes":
			return true
		}
		return false
	}
}
