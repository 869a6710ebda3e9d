package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yegors/aeris/internal/flight"
	"github.com/yegors/aeris/internal/lookup"
	"github.com/yegors/aeris/internal/view"
)

const prompt = "> "

// Shell is the interactive prompt around a lookup controller
type Shell struct {
	controller *lookup.Controller
	view       *view.Engine
	out        io.Writer
}

// NewShell creates a shell. The controller should render to out.
func NewShell(controller *lookup.Controller, engine *view.Engine, out io.Writer) *Shell {
	return &Shell{controller: controller, view: engine, out: out}
}

// Run reads commands until :q, end of input or ctx is done
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	msgs := s.view.Messages()
	fmt.Fprintln(s.out, msgs.ShellHelp)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == ":q" || line == ":quit":
			return nil
		case line == ":history":
			s.printHistory()
		case line == ":help":
			fmt.Fprintln(s.out, msgs.ShellHelp)
		case strings.HasPrefix(line, ":"):
			s.command(ctx, line)
		default:
			s.controller.SetInput(line)
			s.controller.SubmitSearch(ctx, "")
		}
	}
}

// Search runs one search per argument, in order
func (s *Shell) Search(ctx context.Context, flights []string) []lookup.Outcome {
	outcomes := make([]lookup.Outcome, 0, len(flights))
	for _, f := range flights {
		s.controller.SetInput(f)
		outcomes = append(outcomes, s.controller.SubmitSearch(ctx, ""))
	}
	return outcomes
}

func (s *Shell) printHistory() {
	entries := s.controller.History()
	if len(entries) == 0 {
		fmt.Fprintf(s.out, "%s\n\n", s.view.Messages().NoRecentSearches)
		return
	}
	fmt.Fprintf(s.out, "%s\n\n", s.view.History(entries).Text)
}

// command handles :N replays and the filter commands
func (s *Shell) command(ctx context.Context, line string) {
	msgs := s.view.Messages()
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, ":"), " ")
	arg = strings.TrimSpace(arg)

	f := s.controller.Filter()
	switch name {
	case "from":
		f.Departure = arg
	case "to":
		f.Arrival = arg
	case "date":
		f.Date = arg
	case "clear":
		f = flight.Filter{}
	case "filter":
		s.printFilter()
		return
	default:
		n, err := strconv.Atoi(name)
		if err != nil || arg != "" {
			fmt.Fprintf(s.out, msgs.UnknownCommand+"\n%s\n\n", line, msgs.ShellHelp)
			return
		}
		s.replay(ctx, n)
		return
	}

	f, err := flight.NewFilter(f.Departure, f.Arrival, f.Date)
	if err != nil {
		fmt.Fprintf(s.out, "%s\n\n", msgs.Failure(err.Error()))
		return
	}
	s.controller.SetFilter(f)
	s.printFilter()
}

func (s *Shell) printFilter() {
	msgs := s.view.Messages()
	if f := s.controller.Filter(); !f.Empty() {
		fmt.Fprintf(s.out, msgs.FilterActive+"\n\n", f)
		return
	}
	fmt.Fprintf(s.out, "%s\n\n", msgs.FilterCleared)
}

func (s *Shell) replay(ctx context.Context, n int) {
	entries := s.controller.History()
	if n < 1 || n > len(entries) {
		fmt.Fprintf(s.out, s.view.Messages().UnknownEntry+"\n\n", n)
		return
	}
	s.controller.SelectHistory(ctx, entries[n-1])
}
