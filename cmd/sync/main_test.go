package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/scouting-sync/internal/config"
	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
	"github.com/riskibarqy/scouting-sync/internal/usecase"
)

type stubRunner struct {
	inputs  []usecase.RunInput
	summary usecase.RunSummary
	err     error
}

func (s *stubRunner) RunSync(_ context.Context, input usecase.RunInput) (usecase.RunSummary, error) {
	s.inputs = append(s.inputs, input)
	return s.summary, s.err
}

func (s *stubRunner) Domains() []usecase.DomainSpec {
	return usecase.DefaultDomainSpecs()
}

func testCLI(cfg config.Config, runner *stubRunner) (cli, *bool) {
	closed := false
	return cli{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		newRuntime: func(config.Config, *logging.Logger) (runtimeHandle, error) {
			return runtimeHandle{
				runner: runner,
				close: func() error {
					closed = true
					return nil
				},
			}, nil
		},
		logOutput: io.Discard,
	}, &closed
}

func execute(c cli, args ...string) (string, error) {
	root := newRootCmd(c)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--env-file", ""))
	err := root.Execute()
	return out.String(), err
}

func TestRun_ParsesFlags(t *testing.T) {
	runner := &stubRunner{}
	c, closed := testCLI(config.Config{}, runner)

	_, err := execute(c, "run",
		"--domain", "physical,passing",
		"--domain", "players",
		"--season", "2024/2025",
		"--competition", "Liga 1",
		"--dry-run",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(runner.inputs) != 1 {
		t.Fatalf("expected one run, got %d", len(runner.inputs))
	}

	input := runner.inputs[0]
	if strings.Join(input.Domains, ",") != "physical,passing,players" {
		t.Fatalf("unexpected domains: %v", input.Domains)
	}
	if input.Season != "2024/2025" || input.Competition != "Liga 1" || !input.DryRun {
		t.Fatalf("unexpected run input: %+v", input)
	}
	if !*closed {
		t.Fatalf("expected runtime to be closed")
	}
}

func TestRun_FallsBackToConfiguredDomains(t *testing.T) {
	runner := &stubRunner{}
	c, _ := testCLI(config.Config{SyncDomains: []string{"off_ball_runs"}}, runner)

	if _, err := execute(c, "run"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(runner.inputs) != 1 || strings.Join(runner.inputs[0].Domains, ",") != "off_ball_runs" {
		t.Fatalf("expected configured domains, got %+v", runner.inputs)
	}
}

func TestRun_RejectsUnknownDomainBeforeRuntime(t *testing.T) {
	built := false
	c := cli{
		loadConfig: func() (config.Config, error) { return config.Config{}, nil },
		newRuntime: func(config.Config, *logging.Logger) (runtimeHandle, error) {
			built = true
			return runtimeHandle{}, nil
		},
		logOutput: io.Discard,
	}

	if _, err := execute(c, "run", "--domain", "tackles"); err == nil {
		t.Fatalf("expected unknown domain error")
	}
	if built {
		t.Fatalf("runtime should not be built for an invalid domain")
	}
}

func TestRun_PrintsSummaryWithTotals(t *testing.T) {
	runner := &stubRunner{summary: usecase.RunSummary{
		Domains: map[stats.Domain]usecase.DomainCounts{
			stats.DomainPhysical: {Success: 2, Skipped: 1},
			stats.DomainPlayers:  {Success: 1, Error: 1},
		},
		PairCount: 2,
		CellCount: 4,
	}}
	c, _ := testCLI(config.Config{}, runner)

	out, err := execute(c, "run")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var got struct {
		PairCount int                  `json:"pair_count"`
		Totals    usecase.DomainCounts `json:"totals"`
	}
	if err := sonic.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal summary %q: %v", out, err)
	}
	if got.PairCount != 2 {
		t.Fatalf("unexpected pair_count: %d", got.PairCount)
	}
	if got.Totals != (usecase.DomainCounts{Success: 3, Skipped: 1, Error: 1}) {
		t.Fatalf("unexpected totals: %+v", got.Totals)
	}
}

func TestRun_FailOnError(t *testing.T) {
	summary := usecase.RunSummary{Domains: map[stats.Domain]usecase.DomainCounts{
		stats.DomainPassing: {Success: 1, Error: 2},
	}}

	c, _ := testCLI(config.Config{}, &stubRunner{summary: summary})
	if _, err := execute(c, "run"); err != nil {
		t.Fatalf("cell errors should not fail without --fail-on-error: %v", err)
	}

	c, _ = testCLI(config.Config{}, &stubRunner{summary: summary})
	if _, err := execute(c, "run", "--fail-on-error"); !errors.Is(err, errCellsFailed) {
		t.Fatalf("expected errCellsFailed, got %v", err)
	}
}

func TestRun_ReturnsFatalRunError(t *testing.T) {
	c, closed := testCLI(config.Config{}, &stubRunner{err: usecase.ErrDependencyUnavailable})

	_, err := execute(c, "run")
	if !errors.Is(err, usecase.ErrDependencyUnavailable) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if !*closed {
		t.Fatalf("expected runtime to be closed after a failed run")
	}
}

func TestDomainsCommand_ListsEveryDomain(t *testing.T) {
	out, err := execute(cli{}, "domains")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, spec := range usecase.DefaultDomainSpecs() {
		if !strings.Contains(out, string(spec.Name)) || !strings.Contains(out, spec.Target.Table) {
			t.Fatalf("domain %s missing from output:\n%s", spec.Name, out)
		}
	}
}
