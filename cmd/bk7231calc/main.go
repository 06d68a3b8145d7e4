package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"

	"github.com/udisondev/bk7231calc/internal/config"
	"github.com/udisondev/bk7231calc/internal/search"
)

const ConfigPath = "config/bk7231calc.yaml"

const usage = `Usage: bk7231calc <image file> <base address in hex> <search string>
Use "-" as image file to read the image from standard input.`

var (
	errUsage      = errors.New("wrong number of arguments")
	errInvalidHex = errors.New("invalid hex number")
	errTerminalIn = errors.New("refusing to read image from a terminal")
)

// invocation is the validated command line.
type invocation struct {
	image   string
	base    uint32
	pattern []byte
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfgPath := ConfigPath
	if p := os.Getenv("BK7231CALC_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadCalculator(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	// stdout carries match lines only
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	searcher, err := search.NewSearcher(cfg.Strategy, cfg.Workers)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	inv, err := parseArgs(args, searcher.MinPatternLen())
	if err != nil {
		return err
	}

	image, closeImage, err := openImage(inv.image)
	if err != nil {
		return err
	}
	defer closeImage()

	slog.Debug("search configured", "strategy", searcher.Name(), "image", inv.image,
		"base", fmt.Sprintf("%#x", inv.base), "pattern_len", len(inv.pattern))

	return calculate(ctx, searcher, image, inv, out)
}

// parseArgs validates the positional arguments before any image is opened.
func parseArgs(args []string, minPattern int) (invocation, error) {
	if len(args) != 3 {
		return invocation{}, errUsage
	}

	hex := strings.TrimPrefix(strings.TrimPrefix(args[1], "0x"), "0X")
	base, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return invocation{}, fmt.Errorf("%w: %q", errInvalidHex, args[1])
	}
	if err := search.ValidateBase(uint32(base)); err != nil {
		return invocation{}, err
	}

	pattern := []byte(args[2])
	if err := search.ValidatePattern(pattern, minPattern); err != nil {
		return invocation{}, err
	}

	return invocation{image: args[0], base: uint32(base), pattern: pattern}, nil
}

// openImage opens the image file, or standard input for "-".
func openImage(path string) (io.Reader, func(), error) {
	if path == "-" {
		if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			return nil, nil, errTerminalIn
		}
		return bufio.NewReader(os.Stdin), func() {}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening image: %w", err)
	}
	return bufio.NewReader(f), func() { f.Close() }, nil
}

// calculate runs the search and prints one line per match.
func calculate(ctx context.Context, s search.Searcher, image io.Reader, inv invocation, out io.Writer) error {
	var writeErr error
	found := 0
	emit := func(m search.Match) {
		found++
		if writeErr == nil {
			_, writeErr = fmt.Fprintln(out, m)
		}
	}

	if err := s.Search(ctx, image, inv.base, inv.pattern, emit); err != nil {
		return fmt.Errorf("searching image: %w", err)
	}
	if writeErr != nil {
		return fmt.Errorf("writing results: %w", writeErr)
	}

	slog.Info("search finished", "strategy", s.Name(), "matches", found)
	return nil
}
