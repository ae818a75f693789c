// Package main implements an interactive CLI for driving a rudp.Client
// against a single peer.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/desertbit/grumble"
	"github.com/google/uuid"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/haldor-io/reliudp/rudp"
)

const banner = `
   ____      _ _ _   _ ____  ____
  |  _ \ ___| (_) | | |  _ \|  _ \
  | |_) / _ \ | | | | | | | | |_) |
  |  _ <  __/ | | |_| | |_| |  __/
  |_| \_\___|_|_|\__,_|____/|_|

  reliable datagram client (v1.0)
`

// session holds the CLI's single active client and its correlation id.
// Only one peer connection is supported at a time, matching the
// protocol's one-session-per-endpoint Non-goal.
var session struct {
	client     *rudp.Client
	transport  *rudp.UDPTransport
	instanceID uuid.UUID
}

var verbose bool

func main() {
	configureLogging()

	app := setupCLI()
	addCommands(app)

	if err := app.Run(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func configureLogging() {
	pterm.DefaultLogger.ShowTime = true
	pterm.DefaultLogger.TimeFormat = "15:04:05"
}

func setupCLI() *grumble.App {
	var histFile string
	home, err := os.UserHomeDir()
	if err != nil {
		histFile = ".reliudp-client"
	} else {
		histFile = filepath.Join(home, ".reliudp-client")
	}

	app := grumble.New(&grumble.Config{
		Name:        "reliudp-client",
		HistoryFile: histFile,
		Flags: func(f *grumble.Flags) {
			f.Bool("v", "verbose", false, "enable debug logging")
		},
	})

	app.SetPrintASCIILogo(func(a *grumble.App) {
		fmt.Print(banner)
	})

	app.OnInit(func(a *grumble.App, flags grumble.FlagMap) error {
		if flags.Bool("verbose") {
			verbose = true
			pterm.DefaultLogger.Level = pterm.LogLevelDebug
		}
		return nil
	})

	return app
}

func addCommands(app *grumble.App) {
	app.AddCommand(&grumble.Command{
		Name: "connect",
		Help: "establish a session with a peer",
		Args: func(a *grumble.Args) {
			a.String("addr", "peer address, host:port")
		},
		Flags: func(f *grumble.Flags) {
			f.Duration("t", "timeout", 5*time.Second, "overall connect timeout, 0 waits forever")
		},
		Run: func(c *grumble.Context) error {
			if session.client != nil {
				pterm.Warning.Println("already connected, run 'close' first")
				return nil
			}

			addr := c.Args.String("addr")
			timeout := c.Flags.Duration("timeout")

			transport, err := rudp.DialUDP(addr)
			if err != nil {
				pterm.Error.Printfln("dial failed: %v", err)
				return nil
			}

			instanceID := uuid.New()
			logger := zerolog.Nop()
			if verbose {
				logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
			}

			client := rudp.NewClient(transport, rudp.WithLogger(logger))
			go client.Run()

			spinner, _ := pterm.DefaultSpinner.Start("connecting to " + addr)
			if err := client.Connect(timeout); err != nil {
				spinner.Fail("connect failed: " + err.Error())
				transport.Close()
				return nil
			}
			spinner.Success("connected to " + addr)

			session.client = client
			session.transport = transport
			session.instanceID = instanceID
			app.SetPrompt(addr + " » ")
			return nil
		},
	})

	app.AddCommand(&grumble.Command{
		Name: "send",
		Help: "reliably send a message to the connected peer",
		Args: func(a *grumble.Args) {
			a.String("message", "payload to send")
		},
		Flags: func(f *grumble.Flags) {
			f.Duration("t", "timeout", 5*time.Second, "send timeout, 0 waits forever")
		},
		Run: func(c *grumble.Context) error {
			if session.client == nil {
				pterm.Warning.Println("not connected, run 'connect <addr>' first")
				return nil
			}

			message := c.Args.String("message")
			timeout := c.Flags.Duration("timeout")

			spinner, _ := pterm.DefaultSpinner.Start("sending")
			if err := session.client.Send([]byte(message), timeout); err != nil {
				spinner.Fail("send failed: " + err.Error())
				return nil
			}
			spinner.Success(fmt.Sprintf("sent %d bytes", len(message)))
			return nil
		},
	})

	app.AddCommand(&grumble.Command{
		Name: "recv",
		Help: "block until the next in-order message arrives",
		Flags: func(f *grumble.Flags) {
			f.Duration("t", "timeout", 10*time.Second, "receive timeout, 0 waits forever")
		},
		Run: func(c *grumble.Context) error {
			if session.client == nil {
				pterm.Warning.Println("not connected, run 'connect <addr>' first")
				return nil
			}

			timeout := c.Flags.Duration("timeout")
			buf := make([]byte, rudp.MaxPayload)
			n, err := session.client.Recv(buf, timeout)
			if err != nil {
				pterm.Error.Printfln("recv failed: %v", err)
				return nil
			}
			pterm.Info.Printfln("received %d bytes: %q", n, buf[:n])
			return nil
		},
	})

	app.AddCommand(&grumble.Command{
		Name: "interactive",
		Help: "read raw stdin a line at a time and send each line reliably, until Ctrl-D",
		Run: func(c *grumble.Context) error {
			if session.client == nil {
				pterm.Warning.Println("not connected, run 'connect <addr>' first")
				return nil
			}
			return runInteractiveSend(session.client)
		},
	})

	app.AddCommand(&grumble.Command{
		Name: "status",
		Help: "show the current session's correlation id and connection state",
		Run: func(c *grumble.Context) error {
			if session.client == nil {
				pterm.Info.Println("not connected")
				return nil
			}
			pterm.Info.Printfln("instance %s, connected", session.instanceID)
			return nil
		},
	})

	app.AddCommand(&grumble.Command{
		Name: "close",
		Help: "tear down the current session",
		Run: func(c *grumble.Context) error {
			if session.client == nil {
				pterm.Info.Println("not connected")
				return nil
			}
			session.client.Close()
			session.transport.Close()
			session.client = nil
			session.transport = nil
			app.SetPrompt("reliudp-client » ")
			pterm.Info.Println("closed")
			return nil
		},
	})
}

// runInteractiveSend puts the terminal in raw mode and streams stdin to
// the peer a line at a time: each completed line is written into the
// outbound buffer through a SendSession and sent reliably.
func runInteractiveSend(client *rudp.Client) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	pterm.Info.Println("interactive mode, Ctrl-D to exit")

	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil || n == 0 {
			break
		}
		switch buf[0] {
		case '\r', '\n':
			if len(line) == 0 {
				continue
			}
			sess := client.CreateSendSession()
			sess.Write(line)
			if err := sess.Send(5 * time.Second); err != nil {
				term.Restore(fd, oldState)
				pterm.Error.Printfln("send failed: %v", err)
				term.MakeRaw(fd)
			}
			line = line[:0]
		case 4: // Ctrl-D
			return nil
		default:
			line = append(line, buf[0])
		}
	}
	return nil
}
