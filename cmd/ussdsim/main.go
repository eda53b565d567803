// Command ussdsim drives a USSD dialog against a running gateway from the
// terminal, sending keystrokes the way a carrier relay does: accumulated
// into '*'-joined text, or only the latest one with --text-mode=latest.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		endpoint    string
		phone       string
		provider    string
		serviceCode string
		sessionID   string
		textMode    string
		timeout     time.Duration
	)

	flagSet := pflag.NewFlagSet("ussdsim", pflag.ContinueOnError)
	flagSet.StringVar(&endpoint, "url", "http://localhost:8080/ussd", "gateway callback URL")
	flagSet.StringVarP(&phone, "phone", "p", "08031234567", "subscriber phone number")
	flagSet.StringVar(&provider, "provider", "", "carrier name or network code (default: detected from phone)")
	flagSet.StringVar(&serviceCode, "service-code", "*384*123#", "dialled service code")
	flagSet.StringVar(&sessionID, "session", "", "session id (default: random)")
	flagSet.StringVar(&textMode, "text-mode", "accumulated", "relay text mode: accumulated or latest")
	flagSet.DurationVar(&timeout, "timeout", 10*time.Second, "per-turn HTTP timeout")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage: ussdsim [flags]\n\n%s", flagSet.FlagUsages())
		return nil
	}
	if textMode != "accumulated" && textMode != "latest" {
		return fmt.Errorf("unknown --text-mode %q", textMode)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sim := &simulator{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		latest:   textMode == "latest",
		form: url.Values{
			"sessionId":   {sessionID},
			"phoneNumber": {phone},
			"serviceCode": {serviceCode},
			"provider":    {provider},
		},
	}
	return sim.loop(ctx, os.Stdin, os.Stdout)
}

type simulator struct {
	client   *http.Client
	endpoint string
	form     url.Values
	latest   bool
	text     []string
}

func (s *simulator) loop(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		reply, err := s.turn(ctx)
		if err != nil {
			return err
		}
		status, message, _ := strings.Cut(reply, " ")
		fmt.Fprintf(out, "\n%s\n", message)
		if status != "CON" {
			return nil
		}

		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		s.text = append(s.text, strings.TrimSpace(scanner.Text()))
	}
}

func (s *simulator) turn(ctx context.Context) (string, error) {
	form := url.Values{}
	for k, v := range s.form {
		form[k] = v
	}
	text := strings.Join(s.text, "*")
	if s.latest && len(s.text) > 0 {
		text = s.text[len(s.text)-1]
	}
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/plain")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post turn: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}
