// Package interactive provides the interactive command-line interface
// for subs-repl.
package interactive

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/liris-tech/subs-manager/pkg/examples"
	"github.com/liris-tech/subs-manager/pkg/subs"
)

// REPL drives a subscription manager from an interactive prompt.
type REPL struct {
	mgr      *subs.Manager
	provider *examples.SimProvider
	client   string
	rl       *readline.Instance

	// readiness handles obtained from register calls, by canonical key.
	mu      sync.Mutex
	handles map[subs.Key]*subs.Readiness
}

// New creates a new REPL around the given manager.
// client is the default client id used when a command names none.
func New(mgr *subs.Manager, provider *examples.SimProvider, client string) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "subs> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &REPL{
		mgr:      mgr,
		provider: provider,
		client:   client,
		rl:       rl,
		handles:  make(map[subs.Key]*subs.Readiness),
	}, nil
}

// Stdout returns a writer that properly coordinates with the readline
// input. Use this for log output to avoid interfering with the prompt.
func (r *REPL) Stdout() io.Writer {
	return r.rl.Stdout()
}

// Track remembers a readiness handle for the given request, so the
// ready command can report on subscriptions established outside the
// prompt (e.g. preregistered ones).
func (r *REPL) Track(req subs.Request, res *subs.Readiness) {
	key, err := req.Key()
	if err != nil {
		return
	}
	r.mu.Lock()
	r.handles[key] = res
	r.mu.Unlock()
}

// Run starts the interactive command loop.
func (r *REPL) Run(ctx context.Context, cancel context.CancelFunc) {
	defer r.rl.Close()

	r.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			r.printHelp()

		case "register", "reg":
			r.cmdRegister(args)

		case "unregister", "unreg":
			r.cmdUnregister(args)

		case "list", "ls":
			r.cmdList()

		case "ready":
			r.cmdReady(args)

		case "stats":
			r.cmdStats()

		case "client":
			r.cmdClient(args)

		case "reset":
			r.cmdReset()

		case "quit", "exit", "q":
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(r.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (r *REPL) cmdRegister(args []string) {
	pos, flags, err := splitFlags(args)
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if len(pos) == 0 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: register <name> [arg ...] [--client=id] [--permanent] [--delay=500ms]")
		return
	}

	req := subs.NewRequest(pos[0], parseArgs(pos[1:])...)
	client := r.client
	if c, ok := flags["client"]; ok && c != "" {
		client = c
	}

	opts, err := parseOptions(flags)
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}

	res, err := r.mgr.Register(req, client, opts)
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}
	r.Track(req, res)

	fmt.Fprintf(r.rl.Stdout(), "Registered %s for client %s (ready=%v, clients=%d)\n",
		formatRequest(req), client, res.Ready(), r.mgr.ClientCount(req))
}

func (r *REPL) cmdUnregister(args []string) {
	pos, flags, err := splitFlags(args)
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}
	if len(pos) == 0 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: unregister <name> [arg ...] [--client=id]")
		return
	}

	req := subs.NewRequest(pos[0], parseArgs(pos[1:])...)
	client := r.client
	if c, ok := flags["client"]; ok && c != "" {
		client = c
	}

	if err := r.mgr.Unregister(req, client); err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "Unregistered %s for client %s (clients=%d)\n",
		formatRequest(req), client, r.mgr.ClientCount(req))
}

func (r *REPL) cmdList() {
	entries := r.mgr.Snapshot()
	if len(entries) == 0 {
		fmt.Fprintln(r.rl.Stdout(), "No live subscriptions")
		return
	}

	for _, e := range entries {
		fmt.Fprintf(r.rl.Stdout(), "%s  ready=%v  key=%s\n",
			formatRequest(subs.Request{Name: e.Name, Args: e.Args}), e.Ready, shortKey(e.Key))
		for _, c := range e.Clients {
			detail := ""
			if c.Permanent {
				detail = "  permanent"
			} else if c.UnsubDelay > 0 {
				detail = fmt.Sprintf("  delay=%s", c.UnsubDelay)
			}
			fmt.Fprintf(r.rl.Stdout(), "  %-20s %s%s\n", c.ID, c.State, detail)
		}
	}
}

func (r *REPL) cmdReady(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: ready <name> [arg ...]")
		return
	}

	req := subs.NewRequest(args[0], parseArgs(args[1:])...)
	key, err := req.Key()
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}

	r.mu.Lock()
	res, ok := r.handles[key]
	r.mu.Unlock()

	if !ok {
		fmt.Fprintf(r.rl.Stdout(), "No readiness handle for %s (register it first)\n", formatRequest(req))
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "%s ready=%v\n", formatRequest(req), res.Ready())
}

func (r *REPL) cmdStats() {
	fmt.Fprintf(r.rl.Stdout(), "Entries:      %d\n", r.mgr.Count())
	fmt.Fprintf(r.rl.Stdout(), "Acquisitions: %d (live %d, stopped %d)\n",
		r.provider.Subscribes(), r.provider.Live(), r.provider.Stops())
}

func (r *REPL) cmdClient(args []string) {
	if len(args) == 0 {
		fmt.Fprintf(r.rl.Stdout(), "Default client: %s\n", r.client)
		return
	}
	r.client = args[0]
	fmt.Fprintf(r.rl.Stdout(), "Default client set to %s\n", r.client)
}

func (r *REPL) cmdReset() {
	r.mgr.Close()
	r.mu.Lock()
	r.handles = make(map[subs.Key]*subs.Readiness)
	r.mu.Unlock()
	fmt.Fprintln(r.rl.Stdout(), "Registry torn down")
}

func (r *REPL) printHelp() {
	fmt.Fprintln(r.rl.Stdout(), `
Subscription Manager Commands:
  register <name> [arg ...] [flags]   - Register interest in a subscription
      --client=<id>                     Register as a specific client
      --permanent                       Immune to unregister
      --delay=<dur>                     Delayed release (e.g. 500ms)
  unregister <name> [arg ...] [flags] - Withdraw interest
      --client=<id>                     Unregister a specific client
  list                                - Show live entries and their clients
  ready <name> [arg ...]              - Poll a readiness handle
  stats                               - Registry and provider counters
  client [id]                         - Show or change the default client
  reset                               - Tear the whole registry down

  help                                - Show this help
  quit                                - Exit`)
}

// formatRequest renders a request for display.
func formatRequest(req subs.Request) string {
	if len(req.Args) == 0 {
		return req.Name
	}
	parts := make([]string, len(req.Args))
	for i, a := range req.Args {
		parts[i] = fmt.Sprintf("%v", a)
	}
	return fmt.Sprintf("%s(%s)", req.Name, strings.Join(parts, ", "))
}

// shortKey renders an abbreviated canonical key.
func shortKey(k subs.Key) string {
	s := k.String()
	if len(s) > 16 {
		return s[:16] + ".."
	}
	return s
}
