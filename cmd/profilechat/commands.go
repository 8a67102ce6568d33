package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"profilechat/internal/server"
	"profilechat/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat (default)",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Fetch and re-index the profile document",
	Args:  cobra.NoArgs,
	RunE:  runIndex,
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Probe engine libraries, models and the index",
	Args:  cobra.NoArgs,
	RunE:  runDiag,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the engine over HTTP (chat_stream NDJSON)",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func setup(cmd *cobra.Command, logToFile bool) (context.Context, context.CancelFunc, *app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	a, err := newApp(ctx, cfg, logToFile)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return ctx, cancel, a, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd, true)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if err := a.service.Start(ctx); err != nil {
		a.logger.Warn("profile index not ready", zap.Error(err))
	}
	m := tui.New(ctx, a.session, "Profile Chat")
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel, a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if err := a.service.Start(ctx); err != nil {
		a.logger.Warn("profile index not ready", zap.Error(err))
	}
	out := &printOutput{notices: cmd.ErrOrStderr()}
	if err := a.session.Submit(ctx, strings.Join(args, " "), out); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.reply)
	return nil
}

func runIndex(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	st, err := a.service.Ingest(ctx)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "source:   %s\n", st.Source)
	fmt.Fprintf(w, "chunks:   %d\n", st.Chunks)
	fmt.Fprintf(w, "terms:    %d\n", st.Terms)
	fmt.Fprintf(w, "sections: %s\n", strings.Join(st.Sections, ", "))
	return nil
}

func runDiag(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	if err := a.service.Start(ctx); err != nil {
		a.logger.Warn("profile index not ready", zap.Error(err))
	}
	out := &printOutput{notices: cmd.OutOrStdout()}
	return a.session.Handle(ctx, "diag", out)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel, a, err := setup(cmd, false)
	if err != nil {
		return err
	}
	defer cancel()
	defer a.Close()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	srv := server.New(server.Config{Addr: a.cfg.Server.Addr, ModelID: a.cfg.Server.ModelID},
		a.resolver, a.metrics, a.registry, a.logger.Named("server"))
	if err := srv.Load(ctx); err != nil {
		a.logger.Warn("serving without an engine", zap.Error(err))
	}
	return srv.Run(ctx)
}

// printOutput collects the final reply and prints notices as they arrive.
type printOutput struct {
	notices io.Writer
	reply   string
}

func (o *printOutput) User(string)           {}
func (o *printOutput) Assistant(text string) { o.reply = text }
func (o *printOutput) Notice(text string)    { fmt.Fprintln(o.notices, text) }
func (o *printOutput) Clear()                {}
