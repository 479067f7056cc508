package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"promptassist/internal/augment"
	"promptassist/internal/clipboard"
	"promptassist/internal/config"
	"promptassist/internal/health"
	"promptassist/internal/keystroke"
	"promptassist/internal/sentinel"
)

// errCheckFailed is returned when any check fails; details are printed.
var errCheckFailed = errors.New("one or more checks failed")

func (a *app) checkCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify configuration, service health and platform support",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return a.check(ctx, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "health check timeout")
	return cmd
}

func (a *app) check(ctx context.Context, out io.Writer) error {
	path := a.resolveConfigPath()
	cfg, err := a.loadConfig()
	if err != nil {
		printResult(out, health.Result{Name: "config", Status: health.StatusFail, Message: err.Error()})
		return errCheckFailed
	}
	printResult(out, health.Result{Name: "config", Status: health.StatusOK, Message: path})

	var verrs config.ValidationErrors
	if errors.As(cfg.Validate(), &verrs) {
		for _, w := range verrs.Warnings() {
			printResult(out, health.Result{Name: "config", Status: health.StatusWarn,
				Message: fmt.Sprintf("%s: %s", w.Field, w.Message)})
		}
	}

	checker := health.NewChecker()
	client, err := augment.New(augment.Config{
		BaseURL: cfg.Augment.BaseURL,
		APIKey:  cfg.Augment.APIKey,
		Timeout: cfg.Augment.Timeout(),
		Logger:  quietLogger(),
	})
	if err != nil {
		msg := augment.UserMessage(err) + ": " + err.Error()
		checker.RegisterFunc("service", true, func(context.Context) health.Result {
			return health.Fail(msg)
		})
	} else {
		checker.RegisterFunc("service", true, serviceCheck(client))
	}
	checker.RegisterFunc("keyboard", true,
		health.Availability(keystroke.New().Available, health.StatusFail))
	checker.RegisterFunc("focus", false, func(ctx context.Context) health.Result {
		ok, reason := sentinel.NewForegroundReader().Available()
		if ok {
			return health.OK(reason)
		}
		return health.Warn(reason + " (focus changes will not reset triggers)")
	})
	checker.RegisterFunc("clipboard", true, health.Availability(func() (bool, string) {
		if clipboard.NewSystemAccessor().Available() {
			return true, "system clipboard available"
		}
		return false, clipboard.ErrUnsupported.Error()
	}, health.StatusFail))

	results := checker.Run(ctx)
	for _, r := range results {
		printResult(out, r)
	}
	if health.Overall(results) == health.StatusFail {
		return errCheckFailed
	}
	return nil
}

// serviceCheck probes GET /health on the augmentation service.
func serviceCheck(client *augment.Client) health.Check {
	return func(ctx context.Context) health.Result {
		hs, err := client.Health(ctx)
		switch {
		case err != nil:
			return health.Fail(fmt.Sprintf("%s: %s", client.BaseURL(), augment.UserMessage(err)))
		case hs.Status != "ok":
			return health.Fail(fmt.Sprintf("%s reports %q %s", client.BaseURL(), hs.Status, hs.Message))
		}
		detail := client.BaseURL()
		if hs.Model != "" {
			detail += " (model " + hs.Model + ")"
		}
		return health.OK(detail)
	}
}

func printResult(out io.Writer, r health.Result) {
	mark := "ok"
	switch r.Status {
	case health.StatusWarn:
		mark = "warn"
	case health.StatusFail, health.StatusUnknown:
		mark = "FAIL"
	}
	fmt.Fprintf(out, "[%-4s] %-12s %s\n", mark, r.Name, r.Message)
}
